// Package catalog provides the client for the remote price prediction service.
// It lists districts for a commodity and markets for a district, and issues
// prediction requests.
//
// Answers that reached the service are returned as a tagged Result: either an
// Ok payload or the service's own error message. Calls that could not complete
// (network failure, timeout, unreadable body) return a *models.ConnectionError.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rewired-gh/mandinetra/internal/logger"
	"github.com/rewired-gh/mandinetra/internal/models"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// Client provides access to the prediction service API
type Client struct {
	apiBaseURL     string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
	group          singleflight.Group
}

// ClientConfig holds tuning for the HTTP client.
type ClientConfig struct {
	MaxRetries     int           // attempts for catalog GETs; predictions always make one attempt
	RetryDelayBase time.Duration // linear backoff: attempt n waits n*RetryDelayBase
}

// Result is the outcome of a call the service answered.
type Result[T any] struct {
	Value      T
	ErrMessage string
	StatusCode int
}

// Ok wraps a successful payload.
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v, StatusCode: http.StatusOK}
}

// Fail wraps a service-reported error.
func Fail[T any](status int, message string) Result[T] {
	return Result[T]{ErrMessage: message, StatusCode: status}
}

// IsOk reports whether the result carries a payload.
func (r Result[T]) IsOk() bool {
	return r.ErrMessage == ""
}

// NewClient creates a new prediction service client
func NewClient(apiBaseURL string, timeout time.Duration, cfg ClientConfig) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if cfg.RetryDelayBase < 0 {
		cfg.RetryDelayBase = 0
	}

	return &Client{
		apiBaseURL: strings.TrimRight(apiBaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
	}
}

type districtsResponse struct {
	Districts []models.District `json:"districts"`
	Error     string            `json:"error,omitempty"`
}

type marketsResponse struct {
	Markets      []models.Market `json:"markets"`
	DistrictName string          `json:"district_name,omitempty"`
	Error        string          `json:"error,omitempty"`
}

type commoditiesResponse struct {
	Commodities []struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Color string `json:"color"`
		Icon  string `json:"icon"`
	} `json:"commodities"`
	Error string `json:"error,omitempty"`
}

// Health is the service health summary.
type Health struct {
	Status                  string   `json:"status"`
	AvailableCommodities    []string `json:"available_commodities"`
	TotalCommodities        int      `json:"total_commodities"`
	TotalDistrictsAvailable int      `json:"total_districts_available"`
	Error                   string   `json:"error,omitempty"`
}

type predictRequest struct {
	Commodity string `json:"commodity"`
	District  string `json:"district"`
	Market    string `json:"market"`
}

type predictResponse struct {
	Commodity        string           `json:"commodity"`
	District         string           `json:"district"`
	Market           string           `json:"market"`
	PredictedPrice   *decimal.Decimal `json:"predicted_price"`
	PredictionDate   string           `json:"prediction_date"`
	CommodityDisplay string           `json:"commodity_display,omitempty"`
	Error            string           `json:"error,omitempty"`
}

// FetchDistricts retrieves the districts that trade a commodity.
// Concurrent calls for the same commodity share one request.
func (c *Client) FetchDistricts(ctx context.Context, commodity string) (Result[[]models.District], error) {
	v, err, _ := c.group.Do("districts:"+commodity, func() (interface{}, error) {
		var body districtsResponse
		status, err := c.getJSON(ctx, "/districts/"+url.PathEscape(commodity), &body)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK || body.Error != "" {
			return Fail[[]models.District](status, errorMessage(status, body.Error)), nil
		}

		districts := make([]models.District, 0, len(body.Districts))
		for i := range body.Districts {
			if err := body.Districts[i].Validate(); err != nil {
				logger.Warn("Skipping invalid district for %s: %v", commodity, err)
				continue
			}
			districts = append(districts, body.Districts[i])
		}
		return Ok(districts), nil
	})
	if err != nil {
		return Result[[]models.District]{}, err
	}
	return v.(Result[[]models.District]), nil
}

// FetchMarkets retrieves the markets of a district.
// Concurrent calls for the same district share one request.
func (c *Client) FetchMarkets(ctx context.Context, district string) (Result[[]models.Market], error) {
	v, err, _ := c.group.Do("markets:"+district, func() (interface{}, error) {
		var body marketsResponse
		status, err := c.getJSON(ctx, "/markets/"+url.PathEscape(district), &body)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK || body.Error != "" {
			return Fail[[]models.Market](status, errorMessage(status, body.Error)), nil
		}

		markets := make([]models.Market, 0, len(body.Markets))
		for i := range body.Markets {
			if err := body.Markets[i].Validate(); err != nil {
				logger.Warn("Skipping invalid market for %s: %v", district, err)
				continue
			}
			markets = append(markets, body.Markets[i])
		}
		return Ok(markets), nil
	})
	if err != nil {
		return Result[[]models.Market]{}, err
	}
	return v.(Result[[]models.Market]), nil
}

// FetchCommodities retrieves the commodities the service currently has models for.
// Entries are enriched from the built-in catalogue when known.
func (c *Client) FetchCommodities(ctx context.Context) (Result[[]models.Commodity], error) {
	var body commoditiesResponse
	status, err := c.getJSON(ctx, "/commodities", &body)
	if err != nil {
		return Result[[]models.Commodity]{}, err
	}
	if status != http.StatusOK || body.Error != "" {
		return Fail[[]models.Commodity](status, errorMessage(status, body.Error)), nil
	}

	out := make([]models.Commodity, 0, len(body.Commodities))
	for _, wc := range body.Commodities {
		if wc.ID == "" {
			continue
		}
		com, ok := models.LookupCommodity(wc.ID)
		if !ok {
			com = models.Commodity{ID: wc.ID, Name: wc.Name, DisplayName: wc.Name}
		}
		if wc.Icon != "" {
			com.Icon = wc.Icon
		}
		if wc.Color != "" {
			com.Color = wc.Color
		}
		out = append(out, com)
	}
	return Ok(out), nil
}

// Health probes the service.
func (c *Client) Health(ctx context.Context) (Result[Health], error) {
	var body Health
	status, err := c.getJSON(ctx, "/health", &body)
	if err != nil {
		return Result[Health]{}, err
	}
	if status != http.StatusOK || body.Error != "" {
		return Fail[Health](status, errorMessage(status, body.Error)), nil
	}
	return Ok(body), nil
}

// Predict requests a price prediction. Exactly one HTTP request is made.
func (c *Client) Predict(ctx context.Context, sel models.Selection, requestID string) (Result[models.PredictionResult], error) {
	payload, err := json.Marshal(predictRequest{
		Commodity: sel.Commodity,
		District:  sel.District,
		Market:    sel.Market,
	})
	if err != nil {
		return Result[models.PredictionResult]{}, fmt.Errorf("failed to encode prediction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBaseURL+"/predict", bytes.NewReader(payload))
	if err != nil {
		return Result[models.PredictionResult]{}, fmt.Errorf("failed to build prediction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result[models.PredictionResult]{}, &models.ConnectionError{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	var body predictResponse
	if err := decodeBody(resp.Body, &body); err != nil {
		if resp.StatusCode != http.StatusOK {
			return Fail[models.PredictionResult](resp.StatusCode, errorMessage(resp.StatusCode, "")), nil
		}
		return Result[models.PredictionResult]{}, &models.ConnectionError{Message: "failed to decode prediction: " + err.Error(), Err: err}
	}

	if resp.StatusCode != http.StatusOK || body.Error != "" {
		return Fail[models.PredictionResult](resp.StatusCode, errorMessage(resp.StatusCode, body.Error)), nil
	}
	if body.PredictedPrice == nil {
		return Fail[models.PredictionResult](resp.StatusCode, "invalid prediction response: predicted_price missing"), nil
	}

	result := models.PredictionResult{
		Commodity:      body.Commodity,
		District:       body.District,
		Market:         body.Market,
		PredictedPrice: *body.PredictedPrice,
		PredictionDate: body.PredictionDate,
		DisplayLabel:   body.CommodityDisplay,
		Selection:      sel,
		RequestID:      requestID,
		ReceivedAt:     time.Now(),
	}
	if err := result.Validate(); err != nil {
		return Fail[models.PredictionResult](resp.StatusCode, "invalid prediction response: "+err.Error()), nil
	}
	return Ok(result), nil
}

// getJSON performs a GET with retry logic and decodes the body into out.
// It returns the final status code. Server errors (5xx) and transport
// failures are retried; 4xx answers are returned as-is.
func (c *Client) getJSON(ctx context.Context, path string, out interface{}) (int, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			if err := sleepCtx(ctx, time.Duration(i)*c.retryDelayBase); err != nil {
				return 0, &models.ConnectionError{Message: err.Error(), Err: err}
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBaseURL+path, nil)
		if err != nil {
			return 0, fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if resp.StatusCode >= 500 && i < c.maxRetries-1 {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}

		err = decodeBody(resp.Body, out)
		resp.Body.Close()
		if err != nil {
			if resp.StatusCode != http.StatusOK {
				// Error status without a JSON body; the caller reports the status.
				return resp.StatusCode, nil
			}
			return 0, &models.ConnectionError{Message: "failed to decode response: " + err.Error(), Err: err}
		}
		return resp.StatusCode, nil
	}

	msg := "request failed"
	if lastErr != nil {
		msg = lastErr.Error()
	}
	return 0, &models.ConnectionError{Message: fmt.Sprintf("max retries exceeded: %s", msg), Err: lastErr}
}

func decodeBody(r io.Reader, out interface{}) error {
	if err := json.NewDecoder(r).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty response body")
		}
		return err
	}
	return nil
}

func errorMessage(status int, message string) string {
	if message != "" {
		return message
	}
	return fmt.Sprintf("server returned status %d", status)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
