package market

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"diecastpro/internal/car"
	"diecastpro/internal/credit"
	"diecastpro/internal/listing"
	"diecastpro/internal/quote"
	"diecastpro/internal/relevance"

	"github.com/shopspring/decimal"
)

// ErrModelUnavailable is returned when a live fetch is requested but no
// generation model is configured.
var ErrModelUnavailable = errors.New("market: generation model not configured")

// CarStore is the slice of car storage the orchestrator needs.
type CarStore interface {
	GetByID(ctx context.Context, id, userID string) (car.Car, error)
	ListByUser(ctx context.Context, userID string) ([]car.Car, error)
}

// CreditService meters fetches per user per day.
type CreditService interface {
	Consume(ctx context.Context, userID string) (remaining int, err error)
	Status(ctx context.Context, userID string) (credit.Status, error)
}

// QueryBuilder produces the web search query for a car.
type QueryBuilder interface {
	Build(ctx context.Context, manufacturer, modelName, scale string) string
}

// URLSearcher resolves a query to candidate listing URLs.
type URLSearcher interface {
	Search(ctx context.Context, query string) []string
}

// CandidateExtractor pulls a price candidate out of one listing URL.
// A nil candidate means the URL yielded nothing usable.
type CandidateExtractor interface {
	Extract(ctx context.Context, pageURL string, target listing.Target) *listing.Candidate
}

// RelevanceValidator judges whether a candidate matches the target car.
type RelevanceValidator interface {
	Validate(ctx context.Context, target listing.Target, cand *listing.Candidate) relevance.Decision
}

// CurrencyConverter normalizes extracted prices into INR.
type CurrencyConverter interface {
	ConvertToINR(ctx context.Context, amount decimal.Decimal, cur string) decimal.Decimal
}

// FetchStats summarizes one market fetch run for a car.
type FetchStats struct {
	Query            string              `json:"query"`
	Count            int                 `json:"count"`
	AverageINR       decimal.Decimal     `json:"average_inr"`
	Comparison       *decimal.Decimal    `json:"comparison_percent,omitempty"`
	PerSource        map[string]int      `json:"per_source,omitempty"`
	Duplicates       int                 `json:"duplicates"`
	Rejected         int                 `json:"rejected"`
	CreditsRemaining int                 `json:"credits_remaining"`
	Quotes           []quote.MarketQuote `json:"quotes"`
}

// Deps are the orchestrator's collaborators.
type Deps struct {
	Cars     CarStore
	Quotes   quote.Repository
	Credits  CreditService
	Query    QueryBuilder
	Search   URLSearcher
	Extract  CandidateExtractor
	Validate RelevanceValidator
	Convert  CurrencyConverter

	// Concurrency bounds parallel URL extractions per fetch.
	Concurrency int
	// PortfolioConcurrency bounds parallel cars in a portfolio valuation.
	PortfolioConcurrency int
	// ModelConfigured is false when no generation API key is set; live
	// fetches are refused in that case, simulated fetches still work.
	ModelConfigured bool
}

// Orchestrator runs the full market price discovery pipeline for one car:
// query generation, web search, per-URL extraction, relevance validation,
// currency normalization and aggregation.
type Orchestrator struct {
	deps Deps
	now  func() time.Time
}

func NewOrchestrator(deps Deps) *Orchestrator {
	if deps.Concurrency <= 0 {
		deps.Concurrency = 3
	}
	if deps.PortfolioConcurrency <= 0 {
		deps.PortfolioConcurrency = 5
	}
	return &Orchestrator{deps: deps, now: time.Now}
}

// Fetch runs the pipeline for one car. A credit is consumed up front and is
// not refunded when the run finds nothing. Quotes of the run share a single
// fetched_at timestamp so the batch can be recalled as a unit.
func (o *Orchestrator) Fetch(ctx context.Context, carID, userID string, simulate bool) (FetchStats, error) {
	c, err := o.deps.Cars.GetByID(ctx, carID, userID)
	if err != nil {
		return FetchStats{}, err
	}

	if !simulate && !o.deps.ModelConfigured {
		return FetchStats{}, ErrModelUnavailable
	}

	remaining, err := o.deps.Credits.Consume(ctx, userID)
	if err != nil {
		return FetchStats{}, err
	}

	if simulate {
		return o.fetchSimulated(ctx, c, remaining)
	}

	query := o.deps.Query.Build(ctx, c.Manufacturer, c.ModelName, c.Scale)
	urls := o.deps.Search.Search(ctx, query)

	target := listing.Target{
		Manufacturer: c.Manufacturer,
		ModelName:    c.ModelName,
		Scale:        c.Scale,
	}

	candidates := o.extractAll(ctx, urls, target)

	agg := quote.NewAggregator()
	irrelevant := 0
	for _, cand := range candidates {
		decision := o.deps.Validate.Validate(ctx, target, cand)
		if !decision.Accept() {
			irrelevant++
			log.Printf("[market] rejected %s: %s", cand.URL, decision.Reasoning)
			continue
		}
		agg.Add(o.toQuote(ctx, c.ID, cand))
	}
	agg.FilterOutliers()

	stats, err := o.finish(ctx, c, agg, query, remaining)
	if err != nil {
		return FetchStats{}, err
	}
	stats.Rejected += irrelevant
	return stats, nil
}

// extractAll fans out over the URLs with a bounded number of workers.
// Failed URLs are dropped, they never fail the run.
func (o *Orchestrator) extractAll(ctx context.Context, urls []string, target listing.Target) []*listing.Candidate {
	results := make([]*listing.Candidate, len(urls))
	sem := make(chan struct{}, o.deps.Concurrency)
	var wg sync.WaitGroup

	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = o.deps.Extract.Extract(ctx, u, target)
		}(i, u)
	}
	wg.Wait()

	out := make([]*listing.Candidate, 0, len(urls))
	for _, cand := range results {
		if cand != nil {
			out = append(out, cand)
		}
	}
	return out
}

func (o *Orchestrator) toQuote(ctx context.Context, carID string, cand *listing.Candidate) quote.MarketQuote {
	return quote.MarketQuote{
		CarID:        carID,
		Source:       cand.Seller,
		Price:        cand.Price,
		Currency:     cand.Currency,
		PriceINR:     o.deps.Convert.ConvertToINR(ctx, cand.Price, cand.Currency).Round(2),
		SourceURL:    cand.URL,
		Title:        cand.Title,
		Seller:       cand.Seller,
		ModelName:    cand.ModelName,
		Manufacturer: cand.Manufacturer,
		Scale:        cand.Scale,
	}
}

// finish stamps, persists and summarizes the accepted quotes.
func (o *Orchestrator) finish(ctx context.Context, c car.Car, agg *quote.Aggregator, query string, remaining int) (FetchStats, error) {
	res := agg.Finalize(c.Price)
	quotes := agg.Quotes()

	fetchedAt := o.now().UTC()
	for i := range quotes {
		quotes[i].FetchedAt = fetchedAt
	}
	if len(quotes) > 0 {
		if err := o.deps.Quotes.InsertBatch(ctx, quotes); err != nil {
			return FetchStats{}, fmt.Errorf("persist quotes: %w", err)
		}
	}

	return FetchStats{
		Query:            query,
		Count:            res.Count,
		AverageINR:       res.Average,
		Comparison:       res.Comparison,
		PerSource:        res.PerSource,
		Duplicates:       res.Duplicates,
		Rejected:         res.Rejected,
		CreditsRemaining: remaining,
		Quotes:           quotes,
	}, nil
}

// History returns the most recent fetch batch for a car the user owns.
func (o *Orchestrator) History(ctx context.Context, carID, userID string) ([]quote.MarketQuote, error) {
	if _, err := o.deps.Cars.GetByID(ctx, carID, userID); err != nil {
		return nil, err
	}
	return o.deps.Quotes.LatestBatch(ctx, carID)
}

// ClearHistory drops all recorded quotes for a car the user owns and
// returns how many were removed.
func (o *Orchestrator) ClearHistory(ctx context.Context, carID, userID string) (int64, error) {
	if _, err := o.deps.Cars.GetByID(ctx, carID, userID); err != nil {
		return 0, err
	}
	return o.deps.Quotes.DeleteByCar(ctx, carID)
}
