package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rewired-gh/mandinetra/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string, retries int) *Client {
	return NewClient(url, 5*time.Second, ClientConfig{MaxRetries: retries, RetryDelayBase: time.Millisecond})
}

func TestFetchDistricts(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/districts/wheat", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"districts": []map[string]string{
				{"id": "pune", "name": "Pune"},
				{"id": "", "name": "Broken"},
				{"id": "nashik", "name": "Nashik"},
			},
		})
	}))
	defer mockServer.Close()

	client := newTestClient(mockServer.URL+"/api/", 1)
	res, err := client.FetchDistricts(context.Background(), "wheat")
	require.NoError(t, err)
	require.True(t, res.IsOk())

	assert.Equal(t, []models.District{{ID: "pune", Name: "Pune"}, {ID: "nashik", Name: "Nashik"}}, res.Value,
		"entries without required fields are dropped")
}

func TestFetchDistricts_ServiceError(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Commodity 'tomato' not available."}`))
	}))
	defer mockServer.Close()

	res, err := newTestClient(mockServer.URL, 3).FetchDistricts(context.Background(), "tomato")
	require.NoError(t, err)
	assert.False(t, res.IsOk())
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "Commodity 'tomato' not available.", res.ErrMessage)
}

func TestFetchMarkets_RetriesServerErrors(t *testing.T) {
	var calls int32
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"markets":[{"id":"pune","name":"Pune"},{"id":"baramati","name":"Baramati"}],"district_name":"Pune"}`))
	}))
	defer mockServer.Close()

	res, err := newTestClient(mockServer.URL, 3).FetchMarkets(context.Background(), "pune")
	require.NoError(t, err)
	require.True(t, res.IsOk())
	assert.Len(t, res.Value, 2)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchMarkets_ServerErrorAfterRetries(t *testing.T) {
	var calls int32
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal server error"}`))
	}))
	defer mockServer.Close()

	res, err := newTestClient(mockServer.URL, 2).FetchMarkets(context.Background(), "pune")
	require.NoError(t, err)
	assert.False(t, res.IsOk())
	assert.Equal(t, "Internal server error", res.ErrMessage)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchMarkets_ConnectionError(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := mockServer.URL
	mockServer.Close()

	_, err := newTestClient(url, 2).FetchMarkets(context.Background(), "pune")
	var connErr *models.ConnectionError
	require.True(t, errors.As(err, &connErr), "expected ConnectionError, got %v", err)
}

func TestPredict_Success(t *testing.T) {
	var calls int32
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/predict", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "req-1", r.Header.Get("X-Request-ID"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"commodity": "wheat", "district": "pune", "market": "pune-apmc"}, body)

		_, _ = w.Write([]byte(`{"commodity":"wheat","district":"pune","market":"pune-apmc",
			"predicted_price":2250,"prediction_date":"2026-10-18","commodity_display":"🌾 Wheat","status":"success"}`))
	}))
	defer mockServer.Close()

	sel := models.Selection{Commodity: "wheat", District: "pune", Market: "pune-apmc"}
	res, err := newTestClient(mockServer.URL, 3).Predict(context.Background(), sel, "req-1")
	require.NoError(t, err)
	require.True(t, res.IsOk())

	assert.Equal(t, "wheat", res.Value.Commodity)
	assert.Equal(t, "pune", res.Value.District)
	assert.Equal(t, "pune-apmc", res.Value.Market)
	assert.Equal(t, "2250", res.Value.PredictedPrice.String())
	assert.Equal(t, "2026-10-18", res.Value.PredictionDate)
	assert.Equal(t, "🌾 Wheat", res.Value.DisplayLabel)
	assert.Equal(t, sel, res.Value.Selection)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPredict_ServiceErrorIsNotRetried(t *testing.T) {
	var calls int32
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Prediction failed: model unavailable"}`))
	}))
	defer mockServer.Close()

	sel := models.Selection{Commodity: "wheat", District: "pune", Market: "pune"}
	res, err := newTestClient(mockServer.URL, 3).Predict(context.Background(), sel, "")
	require.NoError(t, err)
	assert.False(t, res.IsOk())
	assert.Equal(t, "Prediction failed: model unavailable", res.ErrMessage)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPredict_MissingPrice(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"commodity":"wheat","district":"pune","market":"pune","prediction_date":"2026-10-18"}`))
	}))
	defer mockServer.Close()

	sel := models.Selection{Commodity: "wheat", District: "pune", Market: "pune"}
	res, err := newTestClient(mockServer.URL, 1).Predict(context.Background(), sel, "")
	require.NoError(t, err)
	assert.False(t, res.IsOk())
	assert.Contains(t, res.ErrMessage, "predicted_price")
}

func TestPredict_MalformedBody(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway</html>`))
	}))
	defer mockServer.Close()

	sel := models.Selection{Commodity: "wheat", District: "pune", Market: "pune"}
	_, err := newTestClient(mockServer.URL, 1).Predict(context.Background(), sel, "")
	var connErr *models.ConnectionError
	assert.True(t, errors.As(err, &connErr))
}

func TestPredict_Timeout(t *testing.T) {
	release := make(chan struct{})
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer mockServer.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	sel := models.Selection{Commodity: "wheat", District: "pune", Market: "pune"}
	_, err := newTestClient(mockServer.URL, 1).Predict(ctx, sel, "")
	var connErr *models.ConnectionError
	assert.True(t, errors.As(err, &connErr))
}

func TestFetchCommoditiesAndHealth(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/commodities", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"commodities":[{"id":"wheat","name":"🌾 Wheat","color":"amber","icon":"🌾"},{"id":"saffron","name":"Saffron"}]}`))
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"healthy","available_commodities":["wheat"],"total_commodities":1}`))
	})
	mockServer := httptest.NewServer(mux)
	defer mockServer.Close()

	client := newTestClient(mockServer.URL, 1)

	coms, err := client.FetchCommodities(context.Background())
	require.NoError(t, err)
	require.True(t, coms.IsOk())
	require.Len(t, coms.Value, 2)
	assert.Equal(t, "Wheat", coms.Value[0].Name, "known commodities keep the catalogue name")
	assert.Equal(t, "Saffron", coms.Value[1].Name)

	health, err := client.Health(context.Background())
	require.NoError(t, err)
	require.True(t, health.IsOk())
	assert.Equal(t, "healthy", health.Value.Status)
	assert.Equal(t, []string{"wheat"}, health.Value.AvailableCommodities)
}
