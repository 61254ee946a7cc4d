package pricetext

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestExtractFromText(t *testing.T) {
	tests := []struct {
		text     string
		amount   string
		currency string
	}{
		{"₹2,499.00", "2499.00", "INR"},
		{"Rs. 1500 only", "1500", "INR"},
		{"$19", "19", "USD"},
		{"US$ 3.95 shipping free", "3.95", "USD"},
		{"price: €45.00", "45.00", "EUR"},
		{"£35.50 GBP", "35.50", "GBP"},
		{"1,200 JPY", "1200", "JPY"},
		{"RM 89.90", "89.90", "MYR"},
		{"2499", "2499", "INR"}, // no token: base currency
		// "collectors" must not read as an Rs token.
		{"collectors 123 items available, price $45.99", "45.99", "USD"},
	}

	for _, tt := range tests {
		got := ExtractFromText(tt.text)
		require.NotNil(t, got, "ExtractFromText(%q)", tt.text)
		assert.True(t, got.Amount.Equal(decimal.RequireFromString(tt.amount)),
			"ExtractFromText(%q) amount = %s, want %s", tt.text, got.Amount, tt.amount)
		assert.Equal(t, tt.currency, got.Currency, "ExtractFromText(%q)", tt.text)
	}
}

func TestExtractFromTextNoMatch(t *testing.T) {
	assert.Nil(t, ExtractFromText("no numbers here"))
	assert.Nil(t, ExtractFromText(""))
}

func TestExtractStructuredMetaTags(t *testing.T) {
	doc := mustDoc(t, `<html><head>
		<meta property="og:price:amount" content="49.99">
		<meta property="og:price:currency" content="USD">
	</head><body></body></html>`)

	got := ExtractStructured(doc)
	require.NotNil(t, got)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("49.99")))
	assert.Equal(t, "USD", got.Currency)
}

func TestExtractStructuredItemprop(t *testing.T) {
	doc := mustDoc(t, `<html><body>
		<span itemprop="price" content="2499">₹2,499</span>
		<span itemprop="priceCurrency" content="INR"></span>
	</body></html>`)

	got := ExtractStructured(doc)
	require.NotNil(t, got)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(2499)))
	assert.Equal(t, "INR", got.Currency)
}

func TestExtractStructuredJSONLD(t *testing.T) {
	doc := mustDoc(t, `<html><head><script type="application/ld+json">
		{"@type":"Product","name":"model car","offers":{"price":"34.95","priceCurrency":"EUR"}}
	</script></head><body></body></html>`)

	got := ExtractStructured(doc)
	require.NotNil(t, got)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("34.95")))
	assert.Equal(t, "EUR", got.Currency)
}

func TestExtractStructuredSelector(t *testing.T) {
	doc := mustDoc(t, `<html><body><span id="prcIsum">$12.50</span></body></html>`)

	got := ExtractStructured(doc)
	require.NotNil(t, got)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("12.50")), "got %s", got.Amount)
}

func TestExtractStructuredReturnsNilWithoutPrice(t *testing.T) {
	doc := mustDoc(t, `<html><body><p>nothing for sale</p></body></html>`)
	assert.Nil(t, ExtractStructured(doc))
}

func TestCorrectMagnitudeKeepsMatchingPrice(t *testing.T) {
	doc := mustDoc(t, `<html><head>
		<meta property="og:price:amount" content="25.00">
	</head></html>`)

	got, reason := CorrectMagnitude(decimal.RequireFromString("24.50"), "USD", doc, "")
	assert.Empty(t, reason, "within 5%% of structured price, no correction")
	assert.True(t, got.Equal(decimal.RequireFromString("24.50")))
}

func TestCorrectMagnitudeScaleErrors(t *testing.T) {
	doc := mustDoc(t, `<html><head>
		<meta property="og:price:amount" content="3.95">
	</head></html>`)

	tests := []struct {
		extracted string
		reason    string
	}{
		{"39.50", ReasonStructuredX10},
		{"395", ReasonStructuredX100},
		{"3950", ReasonStructuredX1000},
	}
	for _, tt := range tests {
		got, reason := CorrectMagnitude(decimal.RequireFromString(tt.extracted), "USD", doc, "")
		assert.Equal(t, tt.reason, reason, "extracted %s", tt.extracted)
		assert.True(t, got.Equal(decimal.RequireFromString("3.95")))
	}
}

func TestCorrectMagnitudePlausibility(t *testing.T) {
	doc := mustDoc(t, `<html><head>
		<meta property="og:price:amount" content="8.99">
	</head></html>`)

	// 700 vs 8.99: not a clean power of ten but far beyond factor 50.
	got, reason := CorrectMagnitude(decimal.NewFromInt(700), "USD", doc, "")
	assert.Equal(t, ReasonStructuredPlausible, reason)
	assert.True(t, got.Equal(decimal.RequireFromString("8.99")))
}

func TestCorrectMagnitudeTextFallback(t *testing.T) {
	doc := mustDoc(t, `<html><body></body></html>`)

	got, reason := CorrectMagnitude(decimal.NewFromInt(1995), "USD", doc, "now only $19.95 each")
	assert.Equal(t, ReasonTextDecimalX100, reason)
	assert.True(t, got.Equal(decimal.RequireFromString("19.95")))
}

func TestCorrectMagnitudeDifferentCurrencyIgnored(t *testing.T) {
	doc := mustDoc(t, `<html><head>
		<meta property="og:price:amount" content="3.95">
		<meta property="og:price:currency" content="USD">
	</head></html>`)

	got, reason := CorrectMagnitude(decimal.NewFromInt(395), "INR", doc, "")
	assert.Empty(t, reason, "structured price in another currency must not be used")
	assert.True(t, got.Equal(decimal.NewFromInt(395)))
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"1,200.50", "1200.50", true},
		{"₹2,499.00", "2499.00", true},
		{"US$ 3.95", "3.95", true},
		{"free", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseAmount(tt.in)
		assert.Equal(t, tt.ok, ok, "ParseAmount(%q)", tt.in)
		if tt.ok {
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "ParseAmount(%q) = %s", tt.in, got)
		}
	}
}
