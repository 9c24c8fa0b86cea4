package main

import "github.com/shopspring/decimal"

// Observation is one predicted price for a commodity, district and market.
type Observation struct {
	Commodity string
	District  string
	Market    string
	Price     decimal.Decimal
	Date      string
}

// CommodityStats holds the price spread of one commodity across all markets
type CommodityStats struct {
	Commodity string
	Count     int
	Min       decimal.Decimal
	Max       decimal.Decimal
	Avg       decimal.Decimal
	P25       decimal.Decimal
	P75       decimal.Decimal
	Cheapest  Observation
	Dearest   Observation
}

// SweepFailure records a lookup or prediction that did not produce a price
type SweepFailure struct {
	Commodity string
	District  string
	Market    string
	Reason    string
}
