package pricetext

import (
	"regexp"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"diecastpro/internal/currency"
)

// Correction reasons reported by CorrectMagnitude.
const (
	ReasonStructuredX10       = "corrected_by_structured_x10"
	ReasonStructuredX100      = "corrected_by_structured_x100"
	ReasonStructuredX1000     = "corrected_by_structured_x1000"
	ReasonStructuredPlausible = "corrected_by_structured_plausibility"
	ReasonTextDecimalX100     = "corrected_by_text_x100"
	ReasonTextDecimalX10      = "corrected_by_text_x10"
)

var decimalAmountRe = regexp.MustCompile(`(?:US\$|USD|\$)\s*([0-9]{1,3}(?:,[0-9]{3})*(?:\.[0-9]{1,2}))`)

// CorrectMagnitude reconciles an extracted price against the page's
// structured data to catch dropped decimal points and misread thousand
// separators. When the ratio between the extraction and the structured price
// is ~10, ~100 or ~1000 (within 5%) the structured value wins; when the two
// agree within 5% the extraction is kept unchanged. As a last resort the raw
// text is scanned for decimal-bearing amounts near extracted/100 or /10.
// Returns the final amount and a non-empty reason when a correction applied.
func CorrectMagnitude(extracted decimal.Decimal, extractedCur string, doc *goquery.Document, text string) (decimal.Decimal, string) {
	if structured := ExtractStructured(doc); structured != nil && structured.Amount.IsPositive() {
		// A structured price in a different currency cannot be compared.
		sameCurrency := structured.Currency == "" || extractedCur == "" ||
			structured.Currency == currency.Normalize(extractedCur)
		if sameCurrency {
			ratio := extracted.Div(structured.Amount)
			switch {
			case near(ratio, decimal.NewFromInt(1)):
				return extracted, ""
			case near(ratio, decimal.NewFromInt(10)):
				return structured.Amount, ReasonStructuredX10
			case near(ratio, decimal.NewFromInt(100)):
				return structured.Amount, ReasonStructuredX100
			case near(ratio, decimal.NewFromInt(1000)):
				return structured.Amount, ReasonStructuredX1000
			}
			// A large extraction against a small structured price is a
			// scaling artifact, not a real spread.
			if extracted.GreaterThanOrEqual(decimal.NewFromInt(100)) &&
				structured.Amount.LessThan(decimal.NewFromInt(50)) &&
				extracted.GreaterThanOrEqual(structured.Amount.Mul(decimal.NewFromInt(50))) {
				return structured.Amount, ReasonStructuredPlausible
			}
		}
	}

	// Text scan fallback, only when the extraction looks scaled up.
	if extracted.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		candidates := decimalCandidates(text)
		tolerance := decimal.RequireFromString("0.05")

		target := extracted.Div(decimal.NewFromInt(100))
		for _, cand := range candidates {
			if cand.Sub(target).Abs().LessThanOrEqual(tolerance) {
				return cand, ReasonTextDecimalX100
			}
		}
		target = extracted.Div(decimal.NewFromInt(10))
		for _, cand := range candidates {
			if cand.Sub(target).Abs().LessThanOrEqual(tolerance) {
				return cand, ReasonTextDecimalX10
			}
		}
	}

	return extracted, ""
}

// near reports whether ratio is within 5% of want.
func near(ratio, want decimal.Decimal) bool {
	if want.IsZero() {
		return false
	}
	return ratio.Sub(want).Abs().LessThanOrEqual(want.Mul(decimal.RequireFromString("0.05")))
}

func decimalCandidates(text string) []decimal.Decimal {
	var out []decimal.Decimal
	for _, m := range decimalAmountRe.FindAllStringSubmatch(text, -1) {
		if amt, ok := ParseAmount(m[1]); ok {
			out = append(out, amt)
		}
	}
	return out
}
