// Package pricetext extracts a best-guess price and currency from raw page
// text and HTML. It is the heuristic fallback behind the LLM-based listing
// extraction, and the magnitude corrector that reconciles both against
// structured page data.
package pricetext

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"diecastpro/internal/currency"
)

// Price is an extracted (amount, currency) pair.
type Price struct {
	Amount   decimal.Decimal
	Currency string
}

type pattern struct {
	re       *regexp.Regexp
	currency string
}

const num = `([\d,]+(?:\.\d{1,2})?)`

// Ordered: symbol/code before amount first, then amount before symbol/code.
// The first match wins, and the matched token decides the currency.
var textPatterns = []pattern{
	// Alphabetic tokens carry a leading \b so prose like "collectors 123"
	// never reads as "Rs 123".
	{regexp.MustCompile(`(?i)(?:₹|\bRs\.?\s?|\bINR\s*)` + num), "INR"},
	{regexp.MustCompile(`(?i)(?:US\$|\bUSD|\$)\s*` + num), "USD"},
	{regexp.MustCompile(`(?i)(?:€|\bEUR)\s*` + num), "EUR"},
	{regexp.MustCompile(`(?i)(?:£|\bGBP)\s*` + num), "GBP"},
	{regexp.MustCompile(`(?i)(?:C\$|CA\$|\bCAD)\s*` + num), "CAD"},
	{regexp.MustCompile(`(?i)(?:A\$|\bAUD)\s*` + num), "AUD"},
	{regexp.MustCompile(`(?i)(?:SG\$|\bSGD)\s*` + num), "SGD"},
	{regexp.MustCompile(`(?i)(?:\bRM|\bMYR)\s*` + num), "MYR"},
	{regexp.MustCompile(`(?i)(?:\bCNY|\bRMB)\s*` + num), "CNY"},
	{regexp.MustCompile(`(?i)(?:¥|\bJPY)\s*` + num), "JPY"},
	{regexp.MustCompile(`(?i)` + num + `\s*(?:₹|Rs\.?|INR)`), "INR"},
	{regexp.MustCompile(`(?i)` + num + `\s*(?:US\$|USD|\$)`), "USD"},
	{regexp.MustCompile(`(?i)` + num + `\s*(?:€|EUR)`), "EUR"},
	{regexp.MustCompile(`(?i)` + num + `\s*(?:£|GBP)`), "GBP"},
	{regexp.MustCompile(`(?i)` + num + `\s*(?:C\$|CA\$|CAD)`), "CAD"},
	{regexp.MustCompile(`(?i)` + num + `\s*(?:A\$|AUD)`), "AUD"},
	{regexp.MustCompile(`(?i)` + num + `\s*(?:SG\$|SGD)`), "SGD"},
	{regexp.MustCompile(`(?i)` + num + `\s*(?:RM|MYR)`), "MYR"},
	{regexp.MustCompile(`(?i)` + num + `\s*(?:CNY|RMB)`), "CNY"},
	{regexp.MustCompile(`(?i)` + num + `\s*(?:¥|JPY)`), "JPY"},
	// Bare amount with no currency token: currency defaults to the base.
	{regexp.MustCompile(num), currency.Base},
}

// ExtractFromText scans text with the ordered pattern list and returns the
// first positive amount found, or nil when nothing matches.
func ExtractFromText(text string) *Price {
	for _, p := range textPatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		amt, ok := ParseAmount(m[1])
		if !ok || !amt.IsPositive() {
			continue
		}
		return &Price{Amount: amt, Currency: p.currency}
	}
	return nil
}

var amountCleaner = strings.NewReplacer(
	"US$", "", "USD", "", "INR", "", "Rs.", "", "Rs", "",
	",", "", " ", "",
	"₹", "", "$", "", "€", "", "£", "", "¥", "",
)

// ParseAmount parses a numeric-looking string, stripping thousands separators
// and stray currency symbols. Returns false for unparseable input.
func ParseAmount(s string) (decimal.Decimal, bool) {
	cleaned := strings.TrimSpace(amountCleaner.Replace(s))
	if cleaned == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
