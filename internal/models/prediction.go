package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// PredictionResult is a successful answer from the prediction service.
// It is created only by the orchestrator and never mutated afterwards.
type PredictionResult struct {
	Commodity      string          `json:"commodity"`
	District       string          `json:"district"`
	Market         string          `json:"market"`
	PredictedPrice decimal.Decimal `json:"predicted_price"`
	PredictionDate string          `json:"prediction_date"` // YYYY-MM-DD as reported by the service
	DisplayLabel   string          `json:"display_label"`
	Selection      Selection       `json:"selection"` // ids the request was issued with
	RequestID      string          `json:"request_id"`
	ReceivedAt     time.Time       `json:"received_at"`
}

// Validate checks that all required result fields are present.
func (p *PredictionResult) Validate() error {
	if p.Commodity == "" {
		return errors.New("commodity must not be empty")
	}
	if p.District == "" {
		return errors.New("district must not be empty")
	}
	if p.Market == "" {
		return errors.New("market must not be empty")
	}
	if p.PredictedPrice.IsNegative() {
		return errors.New("predicted price must not be negative")
	}
	if p.PredictionDate == "" {
		return errors.New("prediction date must not be empty")
	}
	return nil
}

// Label returns the display label, falling back to the commodity name.
func (p *PredictionResult) Label() string {
	if p.DisplayLabel != "" {
		return p.DisplayLabel
	}
	return p.Commodity
}

// FavoriteRecord is a saved prediction, unique on (commodity, district, market).
type FavoriteRecord struct {
	ID             int64           `json:"id"` // creation timestamp, unix ms
	Commodity      string          `json:"commodity"`
	District       string          `json:"district"`
	Market         string          `json:"market"`
	PredictedPrice decimal.Decimal `json:"predictedPrice"`
	DisplayLabel   string          `json:"displayLabel,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Key returns the de-duplication key of the favorite.
func (f FavoriteRecord) Key() string {
	return Selection{Commodity: f.Commodity, District: f.District, Market: f.Market}.Key()
}

// Validate checks that the favorite can be persisted.
func (f *FavoriteRecord) Validate() error {
	if f.Commodity == "" || f.District == "" || f.Market == "" {
		return errors.New("favorite requires commodity, district and market")
	}
	if f.PredictedPrice.IsNegative() {
		return errors.New("predicted price must not be negative")
	}
	return nil
}

// FavoriteFromResult builds an unsaved favorite from a prediction result.
func FavoriteFromResult(r *PredictionResult) FavoriteRecord {
	return FavoriteRecord{
		Commodity:      r.Commodity,
		District:       r.District,
		Market:         r.Market,
		PredictedPrice: r.PredictedPrice,
		DisplayLabel:   r.DisplayLabel,
	}
}
