package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AlertTrigger records one alert matching one prediction.
type AlertTrigger struct {
	ID            string           `json:"id"`
	Alert         AlertRecord      `json:"alert"`
	Result        PredictionResult `json:"result"`
	PreviousPrice *decimal.Decimal `json:"previous_price,omitempty"` // set for change alerts
	ChangePct     decimal.Decimal  `json:"change_pct"`
	DetectedAt    time.Time        `json:"detected_at"`
}

// Direction is "increase", "decrease" or "" when there is no previous price.
func (t *AlertTrigger) Direction() string {
	if t.PreviousPrice == nil {
		return ""
	}
	switch t.Result.PredictedPrice.Cmp(*t.PreviousPrice) {
	case 1:
		return "increase"
	case -1:
		return "decrease"
	}
	return ""
}
