package mockapi

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rewired-gh/mandinetra/internal/models"
	"github.com/shopspring/decimal"
)

type commodityView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

type option struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type predictRequest struct {
	Commodity string `json:"commodity"`
	District  string `json:"district"`
	Market    string `json:"market"`
}

type predictResponse struct {
	PredictedPrice   json.Number `json:"predicted_price"`
	Commodity        string      `json:"commodity"`
	CommodityDisplay string      `json:"commodity_display"`
	CommodityIcon    string      `json:"commodity_icon"`
	CommodityColor   string      `json:"commodity_color"`
	District         string      `json:"district"`
	Market           string      `json:"market"`
	State            string      `json:"state"`
	PredictionDate   string      `json:"prediction_date"`
	PredictionTime   string      `json:"prediction_time"`
	Status           string      `json:"status"`
}

func availableCommodities() []string {
	ids := make([]string, 0, len(commodityTable))
	for _, c := range commodityTable {
		ids = append(ids, c.ID)
	}
	return ids
}

func allDistrictIDs() []string {
	ids := make([]string, 0, len(districtTable))
	for _, d := range districtTable {
		ids = append(ids, d.ID)
	}
	return ids
}

func lookupCommodity(id string) (commodityInfo, bool) {
	for _, c := range commodityTable {
		if c.ID == id {
			return c, true
		}
	}
	return commodityInfo{}, false
}

// findDistrict resolves a district id exactly, then by partial id or name match.
func findDistrict(input string) (districtInfo, bool) {
	for _, d := range districtTable {
		if d.ID == input {
			return d, true
		}
	}
	for _, d := range districtTable {
		name := strings.ToLower(d.Name)
		if strings.Contains(d.ID, input) || strings.Contains(name, input) || strings.Contains(input, name) {
			return d, true
		}
	}
	return districtInfo{}, false
}

func marketID(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "_")
}

func marketName(id string) string {
	words := strings.Fields(strings.ReplaceAll(id, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	available := availableCommodities()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":               "MandiNetra Price Prediction API",
		"status":                "running",
		"available_commodities": available,
		"total_commodities":     len(available),
	})
}

func (s *Server) handleCommodities(w http.ResponseWriter, r *http.Request) {
	list := make([]commodityView, 0, len(commodityTable))
	for _, c := range commodityTable {
		list = append(list, commodityView{ID: c.ID, Name: c.DisplayName, Color: c.Color, Icon: c.Icon})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"commodities": list})
}

func (s *Server) handleDistricts(w http.ResponseWriter, r *http.Request) {
	requested := chi.URLParam(r, "commodity")
	c, ok := lookupCommodity(strings.ToLower(requested))
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Commodity '%s' not available. Available commodities: %s",
			requested, strings.Join(availableCommodities(), ", ")))
		return
	}

	districts := make([]option, 0, len(c.Districts))
	for _, name := range c.Districts {
		clean := strings.ToLower(strings.TrimSpace(name))
		found := false
		for _, d := range districtTable {
			if strings.ToLower(d.Name) == clean {
				districts = append(districts, option{ID: d.ID, Name: d.Name})
				found = true
				break
			}
		}
		// Districts the model knows but the market table lacks are still listed.
		if !found {
			districts = append(districts, option{ID: strings.ReplaceAll(clean, " ", "_"), Name: strings.TrimSpace(name)})
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"districts": districts})
}

func (s *Server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	requested := chi.URLParam(r, "district")
	d, ok := findDistrict(strings.ToLower(requested))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"error":               fmt.Sprintf("District '%s' not found.", requested),
			"available_districts": allDistrictIDs(),
		})
		return
	}

	markets := make([]option, 0, len(d.Markets))
	for _, m := range d.Markets {
		markets = append(markets, option{ID: marketID(m), Name: m})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"markets":       markets,
		"district_name": d.Name,
	})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "No JSON data provided")
		return
	}

	sel := models.Selection{
		Commodity: strings.ToLower(strings.TrimSpace(req.Commodity)),
		District:  strings.ToLower(strings.TrimSpace(req.District)),
		Market:    strings.ToLower(strings.TrimSpace(req.Market)),
	}
	switch {
	case sel.Commodity == "":
		writeError(w, http.StatusBadRequest, "Commodity is required")
		return
	case sel.District == "":
		writeError(w, http.StatusBadRequest, "District is required")
		return
	case sel.Market == "":
		writeError(w, http.StatusBadRequest, "Market is required")
		return
	}

	c, ok := lookupCommodity(sel.Commodity)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Commodity '%s' not available. Available: %s",
			sel.Commodity, strings.Join(availableCommodities(), ", ")))
		return
	}

	s.mu.RLock()
	pinned, isPinned := s.overrides[sel.Key()]
	s.mu.RUnlock()

	now := s.now()
	resp := predictResponse{
		Commodity:        c.Name,
		CommodityDisplay: c.DisplayName,
		CommodityIcon:    c.Icon,
		CommodityColor:   c.Color,
		Market:           marketName(sel.Market),
		State:            stateName,
		PredictionDate:   now.Format("2006-01-02"),
		PredictionTime:   now.Format("15:04:05"),
		Status:           "success",
	}

	// Pinned selections are answered even when the tables do not list them.
	if isPinned {
		resp.PredictedPrice = json.Number(pinned.StringFixed(2))
		resp.District = marketName(sel.District)
		writeJSON(w, http.StatusOK, resp)
		return
	}

	d, ok := findDistrict(sel.District)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("District '%s' not found. Available districts: %v",
			sel.District, allDistrictIDs()))
		return
	}

	known := false
	for _, m := range d.Markets {
		if marketID(m) == sel.Market {
			known = true
			break
		}
	}
	if !known {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Market '%s' not found in %s. Available markets: %v",
			sel.Market, d.Name, d.Markets))
		return
	}

	trained := false
	for _, name := range c.Districts {
		if strings.EqualFold(name, d.Name) {
			trained = true
			break
		}
	}
	if !trained {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("District '%s' not available for %s. Available districts: %v",
			d.Name, sel.Commodity, c.Districts))
		return
	}

	resp.PredictedPrice = json.Number(derivePrice(c, d, sel.Market, resp.PredictionDate).StringFixed(2))
	resp.District = d.Name
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	info := make(map[string]interface{}, len(commodityTable))
	for _, c := range commodityTable {
		info[c.ID] = map[string]interface{}{
			"districts":      c.Districts,
			"district_count": len(c.Districts),
		}
	}
	available := availableCommodities()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":                    "healthy",
		"available_commodities":     available,
		"total_commodities":         len(available),
		"commodity_info":            info,
		"total_districts_available": len(districtTable),
		"all_districts":             allDistrictIDs(),
	})
}

// derivePrice maps the request onto the commodity's price band. The same
// inputs on the same day always produce the same price.
func derivePrice(c commodityInfo, d districtInfo, market, date string) decimal.Decimal {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s|%d|%d|%s|%s", c.ID, d.DistrictID, d.MarketID, market, date)
	frac := decimal.NewFromInt(int64(h.Sum32() % 10001)).Div(decimal.NewFromInt(10000))
	return c.PMin.Add(c.PMax.Sub(c.PMin).Mul(frac)).Round(2)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
