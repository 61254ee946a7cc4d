package market

import (
	"context"
	"testing"
	"time"

	"diecastpro/internal/car"
	"diecastpro/internal/credit"
	"diecastpro/internal/listing"
	"diecastpro/internal/quote"
	"diecastpro/internal/relevance"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inr(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

type stubCars struct {
	cars map[string]car.Car
}

func (s *stubCars) GetByID(_ context.Context, id, userID string) (car.Car, error) {
	c, ok := s.cars[id]
	if !ok || c.UserID != userID {
		return car.Car{}, car.ErrNotFound
	}
	return c, nil
}

func (s *stubCars) ListByUser(_ context.Context, userID string) ([]car.Car, error) {
	var out []car.Car
	for _, c := range s.cars {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

type stubQuotes struct {
	inserted []quote.MarketQuote
	latest   map[string][]quote.MarketQuote
}

func (s *stubQuotes) InsertBatch(_ context.Context, quotes []quote.MarketQuote) error {
	s.inserted = append(s.inserted, quotes...)
	return nil
}

func (s *stubQuotes) ListByCar(_ context.Context, carID string) ([]quote.MarketQuote, error) {
	return s.latest[carID], nil
}

func (s *stubQuotes) LatestBatch(_ context.Context, carID string) ([]quote.MarketQuote, error) {
	return s.latest[carID], nil
}

func (s *stubQuotes) DeleteByCar(_ context.Context, carID string) (int64, error) {
	n := int64(len(s.latest[carID]))
	delete(s.latest, carID)
	return n, nil
}

type stubCredits struct {
	remaining int
	consumed  int
}

func (s *stubCredits) Consume(_ context.Context, _ string) (int, error) {
	if s.remaining <= 0 {
		return 0, credit.ErrExhausted
	}
	s.remaining--
	s.consumed++
	return s.remaining, nil
}

func (s *stubCredits) Status(_ context.Context, _ string) (credit.Status, error) {
	return credit.Status{Used: s.consumed, Remaining: s.remaining, Limit: credit.DailyLimit}, nil
}

type stubQuery struct{ query string }

func (s *stubQuery) Build(_ context.Context, _, _, _ string) string { return s.query }

type stubSearch struct {
	urls   []string
	called int
}

func (s *stubSearch) Search(_ context.Context, _ string) []string {
	s.called++
	return s.urls
}

type stubExtract struct {
	byURL map[string]*listing.Candidate
}

func (s *stubExtract) Extract(_ context.Context, pageURL string, _ listing.Target) *listing.Candidate {
	return s.byURL[pageURL]
}

type stubValidate struct {
	rejectURLs map[string]bool
}

func (s *stubValidate) Validate(_ context.Context, _ listing.Target, cand *listing.Candidate) relevance.Decision {
	if s.rejectURLs[cand.URL] {
		return relevance.Decision{Relevant: false, Confidence: 0.9, Reasoning: "different model"}
	}
	return relevance.Decision{Relevant: true, Confidence: 0.9}
}

type identityConvert struct{}

func (identityConvert) ConvertToINR(_ context.Context, amount decimal.Decimal, _ string) decimal.Decimal {
	return amount
}

func candidate(url, price, cur string) *listing.Candidate {
	return &listing.Candidate{
		Price:        inr(price),
		Currency:     cur,
		Title:        "Hot Wheels Skyline GT-R 1:64",
		URL:          url,
		ModelName:    "Skyline GT-R",
		Manufacturer: "Hot Wheels",
		Scale:        "1:64",
		Seller:       "eBay",
		Confidence:   0.9,
	}
}

func testCar() car.Car {
	return car.Car{
		ID:           "car-1",
		UserID:       "user-1",
		ModelName:    "Skyline GT-R",
		Manufacturer: "Hot Wheels",
		Scale:        "1:64",
		Price:        inr("500"),
	}
}

func newTestOrchestrator(t *testing.T, deps Deps) (*Orchestrator, *stubQuotes, *stubCredits) {
	t.Helper()
	quotes := &stubQuotes{latest: map[string][]quote.MarketQuote{}}
	credits := &stubCredits{remaining: credit.DailyLimit}

	if deps.Cars == nil {
		deps.Cars = &stubCars{cars: map[string]car.Car{"car-1": testCar()}}
	}
	deps.Quotes = quotes
	deps.Credits = credits
	if deps.Query == nil {
		deps.Query = &stubQuery{query: "Hot Wheels Skyline GT-R 1:64 diecast for sale price"}
	}
	if deps.Search == nil {
		deps.Search = &stubSearch{}
	}
	if deps.Extract == nil {
		deps.Extract = &stubExtract{}
	}
	if deps.Validate == nil {
		deps.Validate = &stubValidate{}
	}
	deps.Convert = identityConvert{}
	deps.ModelConfigured = true

	return NewOrchestrator(deps), quotes, credits
}

func TestFetchAggregatesAndPersists(t *testing.T) {
	urls := []string{"https://a.example/1", "https://b.example/2", "https://c.example/3"}
	orch, quotes, credits := newTestOrchestrator(t, Deps{
		Search: &stubSearch{urls: urls},
		Extract: &stubExtract{byURL: map[string]*listing.Candidate{
			urls[0]: candidate(urls[0], "450", "INR"),
			urls[1]: candidate(urls[1], "520", "INR"),
			urls[2]: candidate(urls[2], "480", "INR"),
		}},
	})

	stats, err := orch.Fetch(context.Background(), "car-1", "user-1", false)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Count)
	assert.Equal(t, "483.33", stats.AverageINR.StringFixed(2))
	require.NotNil(t, stats.Comparison)
	assert.Equal(t, "3.45", stats.Comparison.StringFixed(2))
	assert.Equal(t, map[string]int{"eBay": 3}, stats.PerSource)
	assert.Equal(t, credit.DailyLimit-1, stats.CreditsRemaining)
	assert.Equal(t, 1, credits.consumed)

	require.Len(t, quotes.inserted, 3)
	fetchedAt := quotes.inserted[0].FetchedAt
	assert.False(t, fetchedAt.IsZero())
	for _, q := range quotes.inserted {
		assert.Equal(t, "car-1", q.CarID)
		assert.Equal(t, fetchedAt, q.FetchedAt)
	}
}

func TestFetchSkipsIrrelevantAndFailedURLs(t *testing.T) {
	urls := []string{"https://a.example/1", "https://b.example/2", "https://c.example/3"}
	orch, quotes, _ := newTestOrchestrator(t, Deps{
		Search: &stubSearch{urls: urls},
		Extract: &stubExtract{byURL: map[string]*listing.Candidate{
			// urls[0] yields nothing, simulating a fetch or extraction failure.
			urls[1]: candidate(urls[1], "520", "INR"),
			urls[2]: candidate(urls[2], "480", "INR"),
		}},
		Validate: &stubValidate{rejectURLs: map[string]bool{urls[2]: true}},
	})

	stats, err := orch.Fetch(context.Background(), "car-1", "user-1", false)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Count)
	assert.Equal(t, 1, stats.Rejected)
	assert.Equal(t, "520.00", stats.AverageINR.StringFixed(2))
	assert.Len(t, quotes.inserted, 1)
}

func TestFetchCarNotFound(t *testing.T) {
	orch, _, credits := newTestOrchestrator(t, Deps{})

	_, err := orch.Fetch(context.Background(), "missing", "user-1", false)
	assert.ErrorIs(t, err, car.ErrNotFound)
	assert.Zero(t, credits.consumed)
}

func TestFetchWalksDownDailyCredits(t *testing.T) {
	urls := []string{"https://a.example/1"}
	search := &stubSearch{urls: urls}
	orch, _, credits := newTestOrchestrator(t, Deps{
		Search: search,
		Extract: &stubExtract{byURL: map[string]*listing.Candidate{
			urls[0]: candidate(urls[0], "450", "INR"),
		}},
	})

	for i := 0; i < credit.DailyLimit; i++ {
		stats, err := orch.Fetch(context.Background(), "car-1", "user-1", false)
		require.NoError(t, err)
		assert.Equal(t, credit.DailyLimit-1-i, stats.CreditsRemaining)
	}

	searchCalls := search.called
	_, err := orch.Fetch(context.Background(), "car-1", "user-1", false)
	assert.ErrorIs(t, err, credit.ErrExhausted)
	assert.Equal(t, searchCalls, search.called)
	assert.Equal(t, credit.DailyLimit, credits.consumed)
}

func TestFetchExhaustedCreditsStopPipeline(t *testing.T) {
	search := &stubSearch{urls: []string{"https://a.example/1"}}
	orch, _, credits := newTestOrchestrator(t, Deps{Search: search})
	credits.remaining = 0

	_, err := orch.Fetch(context.Background(), "car-1", "user-1", false)
	assert.ErrorIs(t, err, credit.ErrExhausted)
	assert.Zero(t, search.called)
}

func TestFetchRefusesWithoutModel(t *testing.T) {
	orch, _, credits := newTestOrchestrator(t, Deps{})
	orch.deps.ModelConfigured = false

	_, err := orch.Fetch(context.Background(), "car-1", "user-1", false)
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.Zero(t, credits.consumed)
}

func TestFetchSimulated(t *testing.T) {
	search := &stubSearch{}
	orch, quotes, _ := newTestOrchestrator(t, Deps{Search: search})
	orch.deps.ModelConfigured = false

	stats, err := orch.Fetch(context.Background(), "car-1", "user-1", true)
	require.NoError(t, err)

	assert.Zero(t, search.called)
	require.GreaterOrEqual(t, stats.Count, 1)
	require.LessOrEqual(t, stats.Count, 3)
	assert.Len(t, quotes.inserted, stats.Count)

	lo, hi := inr("400"), inr("650") // 0.8x and 1.3x of 500
	for _, q := range quotes.inserted {
		assert.Equal(t, "simulated", q.Source)
		assert.Equal(t, "INR", q.Currency)
		assert.True(t, q.PriceINR.GreaterThanOrEqual(lo), "price %s below floor", q.PriceINR)
		assert.True(t, q.PriceINR.LessThanOrEqual(hi), "price %s above ceiling", q.PriceINR)
	}
}

func TestHistoryChecksOwnership(t *testing.T) {
	orch, quotes, _ := newTestOrchestrator(t, Deps{})
	quotes.latest["car-1"] = []quote.MarketQuote{{ID: "q1", CarID: "car-1", PriceINR: inr("450")}}

	batch, err := orch.History(context.Background(), "car-1", "user-1")
	require.NoError(t, err)
	assert.Len(t, batch, 1)

	_, err = orch.History(context.Background(), "car-1", "someone-else")
	assert.ErrorIs(t, err, car.ErrNotFound)
}

func TestClearHistory(t *testing.T) {
	orch, quotes, _ := newTestOrchestrator(t, Deps{})
	quotes.latest["car-1"] = []quote.MarketQuote{{ID: "q1", CarID: "car-1"}, {ID: "q2", CarID: "car-1"}}

	deleted, err := orch.ClearHistory(context.Background(), "car-1", "user-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	_, err = orch.ClearHistory(context.Background(), "car-1", "someone-else")
	assert.ErrorIs(t, err, car.ErrNotFound)
}

func TestValuatePortfolio(t *testing.T) {
	withQuotes := testCar()
	noQuotes := car.Car{
		ID: "car-2", UserID: "user-1",
		ModelName: "911 GT3", Manufacturer: "Minichamps", Scale: "1:43",
		Price: inr("8000"),
	}
	orch, quotes, _ := newTestOrchestrator(t, Deps{
		Cars: &stubCars{cars: map[string]car.Car{"car-1": withQuotes, "car-2": noQuotes}},
	})
	now := time.Now()
	quotes.latest["car-1"] = []quote.MarketQuote{
		{CarID: "car-1", PriceINR: inr("450"), FetchedAt: now},
		{CarID: "car-1", PriceINR: inr("520"), FetchedAt: now},
		{CarID: "car-1", PriceINR: inr("480"), FetchedAt: now},
	}

	p, err := orch.Valuate(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, 2, p.Count)

	byID := map[string]PortfolioItem{}
	for _, item := range p.Items {
		byID[item.CarID] = item
	}
	assert.Equal(t, ValueFromMarket, byID["car-1"].ValueSource)
	assert.Equal(t, "483.33", byID["car-1"].MarketValue.StringFixed(2))
	assert.Equal(t, 3, byID["car-1"].QuoteCount)
	assert.Equal(t, ValueFromPurchase, byID["car-2"].ValueSource)
	assert.True(t, byID["car-2"].MarketValue.Equal(inr("8000")))

	assert.Equal(t, "8500.00", p.TotalPurchase.StringFixed(2))
	assert.Equal(t, "8483.33", p.TotalMarket.StringFixed(2))
	require.NotNil(t, p.GainPercent)
	assert.Equal(t, "-0.20", p.GainPercent.StringFixed(2))
}
