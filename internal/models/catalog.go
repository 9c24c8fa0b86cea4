// Package models defines the core domain entities for the mandinetra buyer engine.
// These models represent the commodity catalogue, the dependent selection a buyer
// builds up, prediction results, and the favorites and alert records kept on disk.
// Records that cross a trust boundary carry a Validate method.
//
// Terminology (matching the prediction service's own naming):
//   - Commodity: a crop the service has a price model for.
//   - District: an administrative district that trades a commodity.
//   - Market: an APMC market (mandi) inside a district.
package models

import (
	"errors"
	"strings"
)

// Commodity is one entry of the fixed commodity catalogue.
type Commodity struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Icon        string `json:"icon,omitempty"`
	Color       string `json:"color,omitempty"`
}

// District is only meaningful in the context of the commodity it was fetched for.
type District struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Market is only meaningful in the context of the district it was fetched for.
type Market struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

var commodities = []Commodity{
	{ID: "bajra", Name: "Bajra", DisplayName: "🌾 Bajra", Icon: "🌾", Color: "green"},
	{ID: "wheat", Name: "Wheat", DisplayName: "🌾 Wheat", Icon: "🌾", Color: "amber"},
	{ID: "cotton", Name: "Cotton", DisplayName: "🧵 Cotton", Icon: "🧵", Color: "blue"},
	{ID: "jowar", Name: "Jowar", DisplayName: "🌾 Jowar", Icon: "🌾", Color: "purple"},
	{ID: "rice", Name: "Rice", DisplayName: "🍚 Rice", Icon: "🍚", Color: "red"},
	{ID: "chikoo", Name: "Chikoo", DisplayName: "🥭 Chikoo", Icon: "🥭", Color: "green"},
	{ID: "grapes", Name: "Grapes", DisplayName: "🍇 Grapes", Icon: "🍇", Color: "purple"},
	{ID: "mangos", Name: "Mangoes", DisplayName: "🥭 Mangoes", Icon: "🥭", Color: "orange"},
	{ID: "orange", Name: "Orange", DisplayName: "🍊 Orange", Icon: "🍊", Color: "orange"},
	{ID: "papaya", Name: "Papaya", DisplayName: "🍈 Papaya", Icon: "🍈", Color: "yellow"},
}

// Commodities returns a copy of the built-in commodity catalogue.
func Commodities() []Commodity {
	out := make([]Commodity, len(commodities))
	copy(out, commodities)
	return out
}

// LookupCommodity finds a catalogue entry by id (case-insensitive).
func LookupCommodity(id string) (Commodity, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, c := range commodities {
		if c.ID == id {
			return c, true
		}
	}
	return Commodity{}, false
}

// Validate checks that a fetched district is usable as a selection option.
func (d *District) Validate() error {
	if d.ID == "" {
		return errors.New("district ID must not be empty")
	}
	if d.Name == "" {
		return errors.New("district name must not be empty")
	}
	return nil
}

// Validate checks that a fetched market is usable as a selection option.
func (m *Market) Validate() error {
	if m.ID == "" {
		return errors.New("market ID must not be empty")
	}
	if m.Name == "" {
		return errors.New("market name must not be empty")
	}
	return nil
}

// Selection is the buyer's commodity → district → market choice.
// An empty string means the level has no value.
type Selection struct {
	Commodity string `json:"commodity"`
	District  string `json:"district"`
	Market    string `json:"market"`
}

// Complete reports whether every level of the selection is set.
func (s Selection) Complete() bool {
	return s.Commodity != "" && s.District != "" && s.Market != ""
}

// IsEmpty reports whether no level is set.
func (s Selection) IsEmpty() bool {
	return s.Commodity == "" && s.District == "" && s.Market == ""
}

// Key is the (commodity, district, market) identity used for de-duplication.
func (s Selection) Key() string {
	return strings.ToLower(s.Commodity) + "|" + strings.ToLower(s.District) + "|" + strings.ToLower(s.Market)
}

// ContainsDistrict reports whether id is a member of districts.
func ContainsDistrict(districts []District, id string) bool {
	for _, d := range districts {
		if d.ID == id {
			return true
		}
	}
	return false
}

// ContainsMarket reports whether id is a member of markets.
func ContainsMarket(markets []Market, id string) bool {
	for _, m := range markets {
		if m.ID == id {
			return true
		}
	}
	return false
}
