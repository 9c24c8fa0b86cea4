package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AlertCondition selects how a predicted price is compared to the target.
type AlertCondition string

const (
	ConditionAbove  AlertCondition = "above"
	ConditionBelow  AlertCondition = "below"
	ConditionChange AlertCondition = "change" // target is a percentage move
)

// AlertFrequency selects when a triggered alert is delivered.
type AlertFrequency string

const (
	FrequencyInstant AlertFrequency = "instant"
	FrequencyDaily   AlertFrequency = "daily"
	FrequencyWeekly  AlertFrequency = "weekly"
)

// AllDistricts scopes an alert to every district of its commodity.
const AllDistricts = "all"

// AlertRecord is a persisted price alert rule.
type AlertRecord struct {
	ID          int64           `json:"id"`
	Commodity   string          `json:"commodity"`
	Condition   AlertCondition  `json:"condition"`
	TargetPrice decimal.Decimal `json:"targetPrice"`
	District    string          `json:"district"`
	Frequency   AlertFrequency  `json:"frequency"`
	CreatedAt   time.Time       `json:"createdAt"`
	Active      bool            `json:"active"`
	Triggered   bool            `json:"triggered"`
	TriggeredAt *time.Time      `json:"triggeredAt,omitempty"`
}

// AlertFields is the user input for creating an alert.
// TargetPrice is kept as text so that empty and non-numeric input can be told apart.
type AlertFields struct {
	Commodity   string
	Condition   AlertCondition
	TargetPrice string
	District    string
	Frequency   AlertFrequency
}

// Normalize applies the form defaults: condition above, district all, frequency instant.
func (f AlertFields) Normalize() AlertFields {
	f.Commodity = strings.TrimSpace(f.Commodity)
	f.TargetPrice = strings.TrimSpace(f.TargetPrice)
	f.District = strings.TrimSpace(f.District)
	if f.Condition == "" {
		f.Condition = ConditionAbove
	}
	if f.District == "" {
		f.District = AllDistricts
	}
	if f.Frequency == "" {
		f.Frequency = FrequencyInstant
	}
	return f
}

// Validate checks the alert form and returns a *ValidationError on the first problem.
func (f AlertFields) Validate() error {
	if f.Commodity == "" {
		return &ValidationError{Field: "commodity", Message: "must not be empty"}
	}
	if f.TargetPrice == "" {
		return &ValidationError{Field: "targetPrice", Message: "must not be empty"}
	}
	price, err := decimal.NewFromString(f.TargetPrice)
	if err != nil {
		return &ValidationError{Field: "targetPrice", Message: "must be a number"}
	}
	if price.IsNegative() {
		return &ValidationError{Field: "targetPrice", Message: "must not be negative"}
	}
	if !f.Condition.Valid() {
		return &ValidationError{Field: "condition", Message: "must be one of: above, below, change"}
	}
	if !f.Frequency.Valid() {
		return &ValidationError{Field: "frequency", Message: "must be one of: instant, daily, weekly"}
	}
	return nil
}

// Valid reports whether c is a known condition.
func (c AlertCondition) Valid() bool {
	switch c {
	case ConditionAbove, ConditionBelow, ConditionChange:
		return true
	}
	return false
}

// Valid reports whether f is a known frequency.
func (f AlertFrequency) Valid() bool {
	switch f {
	case FrequencyInstant, FrequencyDaily, FrequencyWeekly:
		return true
	}
	return false
}

// AppliesTo reports whether the alert watches the given commodity and district.
func (a *AlertRecord) AppliesTo(commodity, district string) bool {
	if !strings.EqualFold(a.Commodity, commodity) {
		return false
	}
	return a.District == AllDistricts || strings.EqualFold(a.District, district)
}
