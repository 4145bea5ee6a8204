package rates

import "github.com/shopspring/decimal"

var defaultPlatformRates = map[string]string{
	"spotify":       "0.0033",
	"apple_music":   "0.0073",
	"amazon_music":  "0.0040",
	"youtube_music": "0.0020",
	"tidal":         "0.0125",
	"deezer":        "0.0064",
	Other:           "0.0025",
}

var defaultCountryMultipliers = map[string]string{
	"US":  "1.00",
	"GB":  "0.95",
	"CA":  "0.90",
	"DE":  "0.90",
	"AU":  "0.85",
	"FR":  "0.85",
	"JP":  "0.80",
	"BR":  "0.45",
	"MX":  "0.45",
	"IN":  "0.30",
	Other: "0.30",
}

var defaultFeeRates = map[string]string{
	"paypal":        "0.029",
	"card":          "0.029",
	"stripe":        "0.029",
	"bank_transfer": "0.01",
	"crypto":        "0.005",
}

func DefaultRateTable() *RateTable {
	t, err := NewRateTable(BuiltinVersion, mustDecimals(defaultPlatformRates), mustDecimals(defaultCountryMultipliers))
	if err != nil {
		panic(err)
	}
	return t
}

func DefaultFeeTable() *FeeTable {
	t, err := NewFeeTable(mustDecimals(defaultFeeRates))
	if err != nil {
		panic(err)
	}
	return t
}

func mustDecimals(in map[string]string) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(in))
	for k, v := range in {
		out[k] = decimal.RequireFromString(v)
	}
	return out
}
