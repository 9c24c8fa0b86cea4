package mockapi

import "github.com/shopspring/decimal"

// commodityInfo carries the catalogue entry and the price band predictions fall in.
type commodityInfo struct {
	ID          string
	Name        string
	DisplayName string
	Color       string
	Icon        string
	PMin        decimal.Decimal
	PMax        decimal.Decimal
	Districts   []string // district names the price model was trained on
}

// districtInfo is one row of the district → market table.
type districtInfo struct {
	ID         string
	Name       string
	Markets    []string
	DistrictID int
	MarketID   int
}

const stateName = "Maharashtra"

func band(min, max int64) (decimal.Decimal, decimal.Decimal) {
	return decimal.NewFromInt(min), decimal.NewFromInt(max)
}

func commodity(id, name, display, color, icon string, min, max int64, districts ...string) commodityInfo {
	lo, hi := band(min, max)
	return commodityInfo{
		ID: id, Name: name, DisplayName: display, Color: color, Icon: icon,
		PMin: lo, PMax: hi, Districts: districts,
	}
}

var commodityTable = []commodityInfo{
	commodity("bajra", "Bajra", "🌾 Bajra", "green", "🌾", 1800, 2500, "Ahmadnagar", "Aurangabad", "Bid", "Jalna", "Nashik", "Pune"),
	commodity("wheat", "Wheat", "🌾 Wheat", "amber", "🌾", 2000, 2800, "Ahmadnagar", "Akola", "Amravati", "Aurangabad", "Nagpur", "Nashik", "Pune"),
	commodity("cotton", "Cotton", "🧵 Cotton", "blue", "🧵", 5000, 8000, "Akola", "Amravati", "Aurangabad", "Jalna", "Nandurbar", "Yavatmal"),
	commodity("jowar", "Jowar", "🌾 Jowar", "purple", "🌾", 1900, 2600, "Ahmadnagar", "Bid", "Kolhapur", "Latur", "Pune"),
	commodity("rice", "Rice", "🍚 Rice", "red", "🍚", 2500, 5000, "Bhandara", "Kolhapur", "Nagpur", "Thane"),
	commodity("chikoo", "Chikoo", "🥭 Chikoo", "green", "🥭", 3000, 6000, "Pune", "Thane"),
	commodity("grapes", "Grapes", "🍇 Grapes", "purple", "🍇", 4000, 8000, "Nashik", "Pune", "Latur"),
	commodity("mangos", "Mangoes", "🥭 Mangoes", "orange", "🥭", 2000, 5000, "Kolhapur", "Thane"),
	commodity("orange", "Orange", "🍊 Orange", "orange", "🍊", 2500, 4500, "Akola", "Amravati", "Nagpur"),
	commodity("papaya", "Papaya", "🍈 Papaya", "yellow", "🍈", 1500, 3000, "Dhule", "Jalna", "Nandurbar", "Pune"),
}

var districtTable = []districtInfo{
	{ID: "ahmadnagar", Name: "Ahmadnagar", Markets: []string{"Ahmednagar", "Ahmedpur", "Akhadabalapur"}, DistrictID: 501, MarketID: 1101},
	{ID: "akola", Name: "Akola", Markets: []string{"Akola", "Akot", "Achalpur"}, DistrictID: 502, MarketID: 1102},
	{ID: "amravati", Name: "Amravati", Markets: []string{"Amravati", "Achalpur"}, DistrictID: 503, MarketID: 1103},
	{ID: "aurangabad", Name: "Aurangabad", Markets: []string{"Aurangabad"}, DistrictID: 504, MarketID: 1104},
	{ID: "bid", Name: "Bid", Markets: []string{"Ahmedpur"}, DistrictID: 505, MarketID: 1105},
	{ID: "bhandara", Name: "Bhandara", Markets: []string{"Bhandara", "Tumsar"}, DistrictID: 506, MarketID: 1106},
	{ID: "nandurbar", Name: "Nandurbar", Markets: []string{"Nandurbar"}, DistrictID: 497, MarketID: 165},
	{ID: "nashik", Name: "Nashik", Markets: []string{"Nashik", "Malegaon"}, DistrictID: 507, MarketID: 1107},
	{ID: "pune", Name: "Pune", Markets: []string{"Pune", "Baramati"}, DistrictID: 508, MarketID: 1108},
	{ID: "kolhapur", Name: "Kolhapur", Markets: []string{"Kolhapur"}, DistrictID: 509, MarketID: 1109},
	{ID: "nagpur", Name: "Nagpur", Markets: []string{"Nagpur", "Katol", "Kalmeshwar", "Umred"}, DistrictID: 510, MarketID: 1110},
	{ID: "yavatmal", Name: "Yavatmal", Markets: []string{"Yavatmal", "Wani"}, DistrictID: 511, MarketID: 1111},
	{ID: "latur", Name: "Latur", Markets: []string{"Latur"}, DistrictID: 512, MarketID: 1112},
	{ID: "jalna", Name: "Jalna", Markets: []string{"Jalna"}, DistrictID: 513, MarketID: 1113},
	{ID: "thane", Name: "Thane", Markets: []string{"Thane", "Kalyan"}, DistrictID: 514, MarketID: 1114},
}
