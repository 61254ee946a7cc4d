package listing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diecastpro/internal/platform/crawler"
)

type stubFetcher struct {
	page *crawler.Page
	err  error
}

func (s *stubFetcher) Fetch(_ context.Context, _ string) (*crawler.Page, error) {
	return s.page, s.err
}

type stubGenerator struct {
	out string
	err error
}

func (s *stubGenerator) GenerateText(_ context.Context, _ string, _ float64, _ int) (string, error) {
	return s.out, s.err
}

func listingPage() *crawler.Page {
	return &crawler.Page{
		URL:   "https://www.ebay.com/itm/123",
		Title: "Hot Wheels Nissan Skyline GT-R 1:64 diecast",
		HTML:  `<html><body><span>Hot Wheels Nissan Skyline GT-R</span></body></html>`,
		Text:  "Hot Wheels Nissan Skyline GT-R 1:64 diecast Price: $24.99 Buy It Now",
	}
}

var target = Target{Manufacturer: "Hot Wheels", ModelName: "Nissan Skyline GT-R", Scale: "1:64"}

func TestExtractModelPath(t *testing.T) {
	gen := &stubGenerator{out: "```json\n" +
		`{"price": 24.99, "currency": "USD", "title": "Hot Wheels Skyline GT-R 1:64", "seller": "", "confidence": 0.92}` +
		"\n```"}
	e := NewExtractor(&stubFetcher{page: listingPage()}, gen, time.Second)

	c := e.Extract(context.Background(), "https://www.ebay.com/itm/123", target)
	require.NotNil(t, c)
	assert.True(t, c.Price.Equal(decimal.RequireFromString("24.99")))
	assert.Equal(t, "USD", c.Currency)
	assert.Equal(t, 0.92, c.Confidence)
	assert.Equal(t, "eBay", c.Seller)
	assert.Equal(t, "1:64", c.Scale)
	assert.Equal(t, "Hot Wheels", c.Manufacturer)
}

func TestExtractStringPriceAndSymbolCurrency(t *testing.T) {
	gen := &stubGenerator{out: `{"price": "₹2,499.00", "currency": "₹", "title": "Skyline", "confidence": 0.8}`}
	page := listingPage()
	page.Text = "Hot Wheels Nissan Skyline GT-R 1:64 diecast Price: ₹2,499.00 Buy It Now"
	e := NewExtractor(&stubFetcher{page: page}, gen, time.Second)

	c := e.Extract(context.Background(), "https://www.ebay.com/itm/123", target)
	require.NotNil(t, c)
	assert.True(t, c.Price.Equal(decimal.RequireFromString("2499")))
	assert.Equal(t, "INR", c.Currency)
}

func TestExtractNoMatchIsDefinitive(t *testing.T) {
	gen := &stubGenerator{out: "NO_MATCH"}
	e := NewExtractor(&stubFetcher{page: listingPage()}, gen, time.Second)
	assert.Nil(t, e.Extract(context.Background(), "https://www.ebay.com/itm/123", target))
}

func TestExtractFallsBackOnModelError(t *testing.T) {
	gen := &stubGenerator{err: errors.New("rate limited")}
	e := NewExtractor(&stubFetcher{page: listingPage()}, gen, time.Second)

	c := e.Extract(context.Background(), "https://www.ebay.com/itm/123", target)
	require.NotNil(t, c)
	assert.True(t, c.Price.Equal(decimal.RequireFromString("24.99")))
	assert.Equal(t, "USD", c.Currency)
	assert.Equal(t, fallbackConfidence, c.Confidence)
	assert.Equal(t, "eBay", c.Seller)
}

func TestExtractFallsBackOnGarbageResponse(t *testing.T) {
	gen := &stubGenerator{out: "I could not find any structured data, sorry!"}
	e := NewExtractor(&stubFetcher{page: listingPage()}, gen, time.Second)

	c := e.Extract(context.Background(), "https://www.ebay.com/itm/123", target)
	require.NotNil(t, c)
	assert.Equal(t, fallbackConfidence, c.Confidence)
}

func TestExtractSentinelPriceRejected(t *testing.T) {
	gen := &stubGenerator{out: `{"price": "n/a", "currency": "USD"}`}
	page := listingPage()
	page.Text = "no prices here at all"
	e := NewExtractor(&stubFetcher{page: page}, gen, time.Second)
	assert.Nil(t, e.Extract(context.Background(), "https://www.ebay.com/itm/123", target))
}

func TestExtractFetchFailure(t *testing.T) {
	e := NewExtractor(&stubFetcher{err: errors.New("timeout")}, &stubGenerator{out: "{}"}, time.Second)
	assert.Nil(t, e.Extract(context.Background(), "https://www.ebay.com/itm/123", target))
}

func TestParsePayloadVariants(t *testing.T) {
	obj := `{"price": 10, "currency": "USD"}`

	for name, in := range map[string]string{
		"bare object":  obj,
		"fenced":       "```json\n" + obj + "\n```",
		"inside prose": "Here you go: " + obj + " hope that helps",
		"array":        "[" + obj + `, {"price": 20}]`,
	} {
		t.Run(name, func(t *testing.T) {
			p, ok := parsePayload(in)
			require.True(t, ok)
			amount, ok := cleanPrice(p.Price)
			require.True(t, ok)
			assert.True(t, amount.Equal(decimal.NewFromInt(10)))
		})
	}

	_, ok := parsePayload("no json here")
	assert.False(t, ok)
}

func TestGuessSeller(t *testing.T) {
	cases := map[string]string{
		"https://www.ebay.co.uk/itm/5":       "eBay",
		"https://amazon.in/dp/B0":            "Amazon",
		"https://www.etsy.com/listing/1":     "Etsy",
		"https://shop.collectibles.net/item": "Collectibles",
		"https://www.diecastmodels.io/p/1":   "Diecastmodels",
	}
	for in, want := range cases {
		assert.Equal(t, want, GuessSeller(in), in)
	}
}

func TestGuessScale(t *testing.T) {
	assert.Equal(t, "1:64", GuessScale("Hot Wheels Skyline 1:64 diecast"))
	assert.Equal(t, "1:18", GuessScale("AUTOart 1/18 Ferrari"))
	assert.Equal(t, "1:43", GuessScale("Minichamps scale 1:43 BMW"))
	assert.Equal(t, "", GuessScale("no scale mentioned"))
}

func TestGuessBrandAndModelName(t *testing.T) {
	title := "Hot Wheels Nissan Skyline GT-R 1:64 diecast"
	brand := GuessBrand(title)
	assert.Equal(t, "Hot Wheels", brand)
	assert.Equal(t, "Nissan Skyline GT-R diecast", GuessModelName(title, brand))

	assert.Equal(t, "", GuessBrand("generic model car"))
}

func TestTruncateOnRune(t *testing.T) {
	s := strings.Repeat("a", 10) + "₹99"
	got := truncateOnRune(s, 11)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", 10), got)

	assert.Equal(t, s, truncateOnRune(s, 100))
}
