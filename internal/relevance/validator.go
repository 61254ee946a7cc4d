// Package relevance decides whether an extracted listing actually prices the
// target car. The LLM judgment is cached and every failure mode degrades to
// a permissive accept so a flaky model never empties the pipeline.
package relevance

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"diecastpro/internal/listing"
	"diecastpro/internal/platform/gemini"
)

// AcceptThreshold is the minimum confidence for a judgment to be trusted.
// Below it the verdict is discarded and the permissive fallback applies.
const AcceptThreshold = 0.3

const defaultCacheTTL = time.Hour

// TextGenerator is the slice of the LLM client the validator needs.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)
}

// Decision is one relevance judgment.
type Decision struct {
	Relevant   bool
	Confidence float64
	Reasoning  string
}

// Accept reports whether the candidate should flow into aggregation. A
// judgment below the confidence threshold is not trusted either way and
// degrades to the permissive accept, like any other validator failure.
func (d Decision) Accept() bool {
	if d.Confidence < AcceptThreshold {
		return true
	}
	return d.Relevant
}

const validationPrompt = `You are an expert in diecast model cars and market analysis. Your task is to determine if an extracted market quote is relevant to a specific target diecast model car.

TARGET CAR SPECIFICATIONS:
- Manufacturer: %s
- Model Name: %s
- Scale: %s

EXTRACTED QUOTE INFORMATION:
- Manufacturer: %s
- Model Name: %s
- Scale: %s
- Title: %s
- Price: %s %s

ANALYSIS INSTRUCTIONS:
1. Determine if the extracted quote is for the SAME or VERY SIMILAR diecast model car as the target
2. Consider manufacturer variations (e.g., "Hot Wheels" vs "Hotwheels")
3. Consider model name variations and partial matches
4. Consider scale compatibility (1:18 vs 1/18, missing scale info)
5. Use the title as additional context when structured data is incomplete
6. Be reasonably permissive for legitimate variations but reject clearly different models

Respond with a JSON object containing:
{
    "is_relevant": boolean,
    "confidence": float (0.0 to 1.0),
    "reasoning": "Brief explanation of your decision"
}

Be decisive and provide clear reasoning. Focus on whether this quote would be useful for pricing the target car.`

type cacheEntry struct {
	decision Decision
	expires  time.Time
}

// Validator judges candidate relevance, memoizing decisions per
// (target, candidate identity) pair.
type Validator struct {
	gen TextGenerator
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
}

func NewValidator(gen TextGenerator) *Validator {
	return &Validator{
		gen:   gen,
		ttl:   defaultCacheTTL,
		now:   time.Now,
		cache: make(map[string]cacheEntry),
	}
}

// Validate judges whether cand prices the target car. Any generation or
// parse problem yields a low-confidence accept rather than an error.
func (v *Validator) Validate(ctx context.Context, target listing.Target, cand *listing.Candidate) Decision {
	key := cacheKey(target, cand)

	v.mu.Lock()
	if entry, ok := v.cache[key]; ok && v.now().Before(entry.expires) {
		v.mu.Unlock()
		return entry.decision
	}
	v.mu.Unlock()

	d := v.judge(ctx, target, cand)

	v.mu.Lock()
	v.cache[key] = cacheEntry{decision: d, expires: v.now().Add(v.ttl)}
	v.mu.Unlock()
	return d
}

func (v *Validator) judge(ctx context.Context, target listing.Target, cand *listing.Candidate) Decision {
	if v.gen == nil {
		return permissive("no validator model configured")
	}

	prompt := fmt.Sprintf(validationPrompt,
		target.Manufacturer, target.ModelName, target.Scale,
		cand.Manufacturer, cand.ModelName, cand.Scale,
		cand.Title, cand.Price, cand.Currency)

	out, err := v.gen.GenerateText(ctx, prompt, 0.1, 500)
	if err != nil {
		log.Printf("relevance: validation call failed, accepting: %v", err)
		return permissive("validation error, defaulting to accept")
	}
	return parseDecision(out)
}

// permissive is the accept-all fallback used when no trustworthy judgment
// is available.
func permissive(reason string) Decision {
	return Decision{Relevant: true, Confidence: AcceptThreshold, Reasoning: reason}
}

func parseDecision(out string) Decision {
	var body struct {
		IsRelevant *bool    `json:"is_relevant"`
		Confidence *float64 `json:"confidence"`
		Reasoning  string   `json:"reasoning"`
	}

	cleaned := gemini.StripCodeFences(out)
	if err := json.Unmarshal([]byte(cleaned), &body); err == nil && body.IsRelevant != nil {
		confidence := 0.5
		if body.Confidence != nil && *body.Confidence >= 0 && *body.Confidence <= 1 {
			confidence = *body.Confidence
		}
		reasoning := body.Reasoning
		if reasoning == "" {
			reasoning = "No reasoning provided"
		}
		return Decision{Relevant: *body.IsRelevant, Confidence: confidence, Reasoning: reasoning}
	}

	// Keyword scan over unparseable prose, defaulting to permissive.
	lower := strings.ToLower(out)
	relevant := true
	switch {
	case strings.Contains(lower, "false") || strings.Contains(lower, "not relevant"):
		relevant = false
	case strings.Contains(lower, "true") && strings.Contains(lower, "relevant"):
		relevant = true
	}
	return Decision{Relevant: relevant, Confidence: 0.5, Reasoning: "fallback parsing of unstructured response"}
}

// cacheKey hashes the target and the candidate's identity. Price is left
// out: the same listing seen at a different price is still the same
// relevance question.
func cacheKey(target listing.Target, cand *listing.Candidate) string {
	payload, _ := json.Marshal(struct {
		TM, TN, TS string
		CM, CN, CS string
		Title      string
		Currency   string
		URL        string
	}{
		target.Manufacturer, target.ModelName, target.Scale,
		cand.Manufacturer, cand.ModelName, cand.Scale,
		cand.Title, cand.Currency, cand.URL,
	})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
