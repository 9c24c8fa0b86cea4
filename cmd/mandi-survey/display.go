package main

import (
	"fmt"
	"strings"
)

// printCommodityStats displays the spread of one commodity
func printCommodityStats(s CommodityStats) {
	fmt.Printf("\n  Commodity: %s\n", s.Commodity)
	fmt.Printf("    Markets priced: %d\n", s.Count)
	fmt.Printf("    Range: ₹%s - ₹%s (spread %s%%)\n", s.Min.StringFixed(2), s.Max.StringFixed(2), spreadPct(s).String())
	fmt.Printf("    Average: ₹%s\n", s.Avg.StringFixed(2))
	fmt.Printf("    Cheapest: %s, %s\n", s.Cheapest.District, s.Cheapest.Market)
	fmt.Printf("    Dearest:  %s, %s\n", s.Dearest.District, s.Dearest.Market)
}

// printFailures lists the selections that produced no price
func printFailures(failures []SweepFailure) {
	if len(failures) == 0 {
		return
	}
	fmt.Printf("\nFAILED LOOKUPS (%d):\n", len(failures))
	fmt.Println(strings.Repeat("-", 80))
	for _, f := range failures {
		where := strings.Trim(strings.Join([]string{f.Commodity, f.District, f.Market}, "/"), "/")
		fmt.Printf("  %s: %s\n", where, f.Reason)
	}
}

// printRecommendations suggests alert targets from the observed spread
func printRecommendations(stats []CommodityStats) {
	fmt.Println("\nSUGGESTED ALERT TARGETS:")
	fmt.Println(strings.Repeat("-", 80))
	fmt.Println("  Buy signal (below) at the 25th percentile, sell signal (above) at the 75th.")
	for _, s := range stats {
		if s.Count == 0 {
			continue
		}
		fmt.Printf("  %-8s below ₹%-10s above ₹%s\n", s.Commodity, s.P25.StringFixed(2), s.P75.StringFixed(2))
	}
	fmt.Println("\n  Example:")
	if len(stats) > 0 && stats[0].Count > 0 {
		fmt.Printf("    mandinetra alerts add -commodity %s -condition below -target %s -frequency daily\n",
			stats[0].Commodity, stats[0].P25.StringFixed(2))
	}
}
