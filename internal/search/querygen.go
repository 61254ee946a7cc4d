package search

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// TextGenerator is the slice of the LLM client query generation needs.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)
}

// maxQueryLen rejects model responses that ramble instead of returning a
// bare query string.
const maxQueryLen = 200

const queryPrompt = `Generate a single optimized web search query to find current market prices for this specific diecast model car.
The query should help find actual listings where this model is for sale.

Manufacturer: %s
Model Name: %s
Scale: %s

Requirements:
- Include the exact manufacturer and model name
- Include the scale if provided
- Add keywords like "diecast", "for sale", "price", "buy"
- Make it specific enough to find this exact model
- Return ONLY the search query, no explanations

Example output format:
Hot Wheels Ferrari 488 GTB 1:64 diecast for sale price`

// QueryBuilder turns a car's identity into a search query, asking the LLM
// for a tuned query and falling back to a fixed template.
type QueryBuilder struct {
	gen TextGenerator
}

func NewQueryBuilder(gen TextGenerator) *QueryBuilder {
	return &QueryBuilder{gen: gen}
}

// Build returns a search query for the given car identity. It never fails:
// any generation problem falls back to the template query.
func (b *QueryBuilder) Build(ctx context.Context, manufacturer, modelName, scale string) string {
	fallback := FallbackQuery(manufacturer, modelName, scale)
	if b.gen == nil {
		return fallback
	}

	out, err := b.gen.GenerateText(ctx, fmt.Sprintf(queryPrompt, manufacturer, modelName, scale), 0.1, 256)
	if err != nil {
		log.Printf("search: query generation failed, using fallback: %v", err)
		return fallback
	}

	query := strings.Trim(strings.TrimSpace(out), `"'`)
	if query == "" || len(query) > maxQueryLen || strings.Contains(query, "\n") {
		return fallback
	}
	return query
}

// FallbackQuery is the template query used when generation is unavailable.
func FallbackQuery(manufacturer, modelName, scale string) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{manufacturer, modelName, scale} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	parts = append(parts, "diecast for sale price")
	return strings.Join(parts, " ")
}
