package main

import (
	"sort"

	"github.com/shopspring/decimal"
)

// groupByCommodity splits observations per commodity
func groupByCommodity(obs []Observation) map[string][]Observation {
	groups := make(map[string][]Observation)
	for _, o := range obs {
		groups[o.Commodity] = append(groups[o.Commodity], o)
	}
	return groups
}

// calculateStats computes the price spread of one commodity
func calculateStats(commodity string, obs []Observation) CommodityStats {
	if len(obs) == 0 {
		return CommodityStats{Commodity: commodity}
	}

	sorted := make([]Observation, len(obs))
	copy(sorted, obs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Price.LessThan(sorted[j].Price)
	})

	total := decimal.Zero
	for _, o := range sorted {
		total = total.Add(o.Price)
	}

	return CommodityStats{
		Commodity: commodity,
		Count:     len(sorted),
		Min:       sorted[0].Price,
		Max:       sorted[len(sorted)-1].Price,
		Avg:       total.Div(decimal.NewFromInt(int64(len(sorted)))).Round(2),
		P25:       percentile(sorted, 25),
		P75:       percentile(sorted, 75),
		Cheapest:  sorted[0],
		Dearest:   sorted[len(sorted)-1],
	}
}

// percentile returns the nearest-rank percentile of price-sorted observations
func percentile(sorted []Observation, p int) decimal.Decimal {
	if len(sorted) == 0 {
		return decimal.Zero
	}
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1].Price
}

// spreadPct is the relative gap between the dearest and cheapest market
func spreadPct(s CommodityStats) decimal.Decimal {
	if s.Min.IsZero() {
		return decimal.Zero
	}
	return s.Max.Sub(s.Min).Div(s.Min).Mul(decimal.NewFromInt(100)).Round(1)
}

// sortedCommodities orders stats by average price, highest first
func sortedCommodities(stats map[string]CommodityStats) []CommodityStats {
	out := make([]CommodityStats, 0, len(stats))
	for _, s := range stats {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Avg.Equal(out[j].Avg) {
			return out[i].Avg.GreaterThan(out[j].Avg)
		}
		return out[i].Commodity < out[j].Commodity
	})
	return out
}
