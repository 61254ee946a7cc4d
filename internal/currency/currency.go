package currency

import "strings"

// Base is the currency every price is converted into before aggregation.
const Base = "INR"

// currencyMap maps symbols, abbreviations and spelled-out names to ISO codes.
var currencyMap = map[string]string{
	"₹": "INR", "RS": "INR", "RS.": "INR", "INR": "INR", "RUPEES": "INR", "RUPEE": "INR",
	"$": "USD", "US$": "USD", "USD": "USD", "DOLLARS": "USD", "DOLLAR": "USD",
	"€": "EUR", "EUR": "EUR", "EUROS": "EUR", "EURO": "EUR",
	"£": "GBP", "GBP": "GBP", "POUNDS": "GBP", "POUND": "GBP",
	"¥": "JPY", "JPY": "JPY", "YEN": "JPY",
	"C$": "CAD", "CA$": "CAD", "CAD": "CAD",
	"A$": "AUD", "AUD": "AUD",
	"SG$": "SGD", "SGD": "SGD",
	"RM": "MYR", "MYR": "MYR", "RINGGIT": "MYR",
	"CNY": "CNY", "RMB": "CNY", "YUAN": "CNY",
}

// Normalize maps a free-text currency token (symbol, abbreviation, name or ISO
// code) to a canonical ISO code. Empty input defaults to the base currency:
// the typical listing for this domain is priced in it. An unrecognized token
// that is not empty is returned uppercased so the caller can still see what
// was extracted.
func Normalize(token string) string {
	s := strings.TrimSpace(token)
	if s == "" {
		return Base
	}
	up := strings.ToUpper(s)
	if code, ok := currencyMap[up]; ok {
		return code
	}
	if code, ok := currencyMap[s]; ok {
		return code
	}
	if strings.HasPrefix(up, "US$") {
		return "USD"
	}
	if strings.HasPrefix(up, "RS") {
		return Base
	}
	if strings.ContainsRune(s, '₹') {
		return Base
	}
	return up
}

// Known reports whether code is one of the supported ISO codes.
func Known(code string) bool {
	_, ok := staticINRPer[code]
	return ok || code == Base
}
