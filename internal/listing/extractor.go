package listing

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"diecastpro/internal/currency"
	"diecastpro/internal/platform/crawler"
	"diecastpro/internal/platform/gemini"
	"diecastpro/internal/pricetext"
)

// PageFetcher is the slice of the crawler the extractor needs.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (*crawler.Page, error)
}

// TextGenerator is the slice of the LLM client the extractor needs.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)
}

const (
	extractMaxTokens = 1024
	maxTitleLen      = 200
	maxPromptChars   = 5000

	// defaultConfidence is assumed when the model omits the field.
	defaultConfidence = 0.8

	// fallbackConfidence marks candidates recovered by the regex scan.
	fallbackConfidence = 0.5
)

const extractPrompt = `Analyze this webpage content and extract the price information for a diecast model car.

Context - We are looking for:
Manufacturer: %s
Model: %s
Scale: %s

Webpage URL: %s
Title: %s
Content (truncated): %s

Extract the following information:
1. Price: numeric value only, preserve decimal digits EXACTLY as shown on the page. Remove only currency symbols and thousands separators. Do NOT round.
2. Currency: ISO code inferred from page content ONLY (symbols/text near the price). Do NOT assume from the domain.
3. Product title from the page
4. Seller/marketplace name if identifiable
5. Confidence score (0-1) that this is the correct model

IMPORTANT:
- Only extract if the listing matches or is very similar to the target model
- If multiple prices exist, choose the MAIN selling price (not shipping, not taxes, not strikethrough MSRP/was/list price)
- Prefer labels like "Price", "Our Price", "Now", "Sale", "Add to Cart" over "MSRP", "Was", "Compare at"
- If you can't find a valid price or it's not the right model, return "NO_MATCH"

Return ONLY a JSON object like this (no extra text):
{"price": 99.99, "currency": "USD", "title": "Product Title", "seller": "eBay", "confidence": 0.95}

Or return: NO_MATCH`

// Extractor pulls one priced Candidate out of a listing URL. Every failure
// mode short of a definitive NO_MATCH degrades to the regex fallback; the
// extractor itself never returns an error, only nil.
type Extractor struct {
	fetcher PageFetcher
	gen     TextGenerator
	timeout time.Duration
}

func NewExtractor(fetcher PageFetcher, gen TextGenerator, perURLTimeout time.Duration) *Extractor {
	if perURLTimeout <= 0 {
		perURLTimeout = 60 * time.Second
	}
	return &Extractor{fetcher: fetcher, gen: gen, timeout: perURLTimeout}
}

// Extract fetches pageURL and returns the best candidate found, or nil.
func (e *Extractor) Extract(ctx context.Context, pageURL string, target Target) *Candidate {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	page, err := e.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		log.Printf("listing: fetch %s: %v", pageURL, err)
		return nil
	}

	if e.gen != nil {
		cand, noMatch := e.extractWithModel(ctx, page, target)
		if noMatch {
			return nil
		}
		if cand != nil {
			return cand
		}
	}
	return e.extractFallback(page)
}

func (e *Extractor) extractWithModel(ctx context.Context, page *crawler.Page, target Target) (cand *Candidate, noMatch bool) {
	content := truncateOnRune(page.Text, maxPromptChars)
	prompt := fmt.Sprintf(extractPrompt,
		orUnknown(target.Manufacturer), orUnknown(target.ModelName), orUnknown(target.Scale),
		page.URL, page.Title, content)

	out, err := e.gen.GenerateText(ctx, prompt, 0.1, extractMaxTokens)
	if err != nil {
		log.Printf("listing: extraction call failed for %s: %v", page.URL, err)
		return nil, false
	}
	if strings.Contains(out, "NO_MATCH") {
		return nil, true
	}

	p, ok := parsePayload(out)
	if !ok {
		log.Printf("listing: unparseable extraction response for %s", page.URL)
		return nil, false
	}

	price, ok := cleanPrice(p.Price)
	if !ok || !price.IsPositive() {
		return nil, false
	}

	cur := currency.Normalize(p.Currency)

	if doc, err := page.Doc(); err == nil {
		if corrected, reason := pricetext.CorrectMagnitude(price, cur, doc, page.Text); reason != "" {
			log.Printf("listing: price corrected %s -> %s (%s) for %s", price, corrected, reason, page.URL)
			price = corrected
		}
	}

	confidence := defaultConfidence
	if p.Confidence != nil {
		confidence = *p.Confidence
	}

	title := strings.TrimSpace(p.Title)
	if title == "" {
		title = page.Title
	}
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen]
	}

	c := &Candidate{
		Price:        price,
		Currency:     cur,
		Title:        title,
		URL:          page.URL,
		ModelName:    strings.TrimSpace(p.ModelName),
		Manufacturer: strings.TrimSpace(p.Manufacturer),
		Scale:        strings.TrimSpace(p.Scale),
		Seller:       strings.TrimSpace(p.Seller),
		Confidence:   confidence,
	}
	backfill(c)
	return c, false
}

// extractFallback scans the page text for a price pattern when the model
// path produced nothing.
func (e *Extractor) extractFallback(page *crawler.Page) *Candidate {
	found := pricetext.ExtractFromText(page.Text)
	if found == nil {
		return nil
	}

	title := page.Title
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen]
	}

	c := &Candidate{
		Price:      found.Amount,
		Currency:   found.Currency,
		Title:      title,
		URL:        page.URL,
		Confidence: fallbackConfidence,
	}
	backfill(c)
	return c
}

// backfill fills fields the extraction left empty with heuristic guesses.
func backfill(c *Candidate) {
	if c.Seller == "" {
		c.Seller = GuessSeller(c.URL)
	}
	if c.Scale == "" {
		c.Scale = GuessScale(c.Title)
	}
	if c.Manufacturer == "" {
		c.Manufacturer = GuessBrand(c.Title)
	}
	if c.ModelName == "" {
		c.ModelName = GuessModelName(c.Title, c.Manufacturer)
	}
}

type payload struct {
	Price        json.RawMessage `json:"price"`
	Currency     string          `json:"currency"`
	Title        string          `json:"title"`
	Seller       string          `json:"seller"`
	ModelName    string          `json:"model_name"`
	Manufacturer string          `json:"manufacturer"`
	Scale        string          `json:"scale"`
	Confidence   *float64        `json:"confidence"`
}

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// parsePayload tolerates the shapes the model actually returns: a bare
// object, an object inside prose or a code fence, or an array of objects.
func parsePayload(out string) (payload, bool) {
	out = gemini.StripCodeFences(out)

	raw := jsonObjectRe.FindString(out)
	if raw == "" {
		trimmed := strings.TrimSpace(out)
		if strings.HasPrefix(trimmed, "[") {
			raw = trimmed
		} else {
			return payload{}, false
		}
	}

	var p payload
	if err := json.Unmarshal([]byte(raw), &p); err == nil {
		return p, true
	}

	var list []payload
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &list); err == nil && len(list) > 0 {
		return list[0], true
	}
	return payload{}, false
}

// priceSentinels are string values the model uses for "no price".
var priceSentinels = map[string]bool{"null": true, "none": true, "n/a": true, "na": true}

// cleanPrice accepts a JSON number or a string with currency clutter.
func cleanPrice(raw json.RawMessage) (decimal.Decimal, bool) {
	if len(raw) == 0 {
		return decimal.Decimal{}, false
	}

	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return decimal.NewFromFloat(num), true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return decimal.Decimal{}, false
	}
	s = strings.TrimSpace(s)
	if s == "" || priceSentinels[strings.ToLower(s)] {
		return decimal.Decimal{}, false
	}
	return pricetext.ParseAmount(s)
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// truncateOnRune caps s at max bytes without splitting a multi-byte rune.
func truncateOnRune(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
