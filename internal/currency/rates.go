package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// staticINRPer is the approximate fallback table: INR per one unit of the
// foreign currency. Used whenever the live rate cache is empty or stale and
// cannot be refreshed.
var staticINRPer = map[string]decimal.Decimal{
	"USD": decimal.NewFromInt(84),
	"EUR": decimal.NewFromInt(92),
	"GBP": decimal.NewFromInt(108),
	"JPY": decimal.RequireFromString("0.55"),
	"CAD": decimal.NewFromInt(62),
	"AUD": decimal.NewFromInt(57),
	"SGD": decimal.NewFromInt(62),
	"MYR": decimal.NewFromInt(18),
	"CNY": decimal.NewFromInt(11),
}

const defaultRateTTL = time.Hour

// RateCache is a process-wide cache of exchange rates, keyed by ISO code and
// storing units of that currency per one INR. It refreshes lazily on miss or
// expiry and never fails a conversion: a failed refresh keeps the stale cache,
// and an empty cache falls back to the static table.
type RateCache struct {
	mu        sync.RWMutex
	perINR    map[string]decimal.Decimal
	fetchedAt time.Time
	ttl       time.Duration

	client  *http.Client
	baseURL string
}

// NewRateCache creates a RateCache with a one-hour TTL.
func NewRateCache() *RateCache {
	return &RateCache{
		perINR:  make(map[string]decimal.Decimal),
		ttl:     defaultRateTTL,
		client:  &http.Client{Timeout: 8 * time.Second},
		baseURL: "https://api.exchangerate.host",
	}
}

// NewRateCacheWithBaseURL is used by tests to point at a stub server.
func NewRateCacheWithBaseURL(baseURL string) *RateCache {
	c := NewRateCache()
	c.baseURL = baseURL
	return c
}

// ConvertToINR converts amount in the given currency (symbol, alias or ISO
// code) into INR. An already-INR amount is returned unchanged. A currency
// outside the known set is treated as INR and returned unchanged — a lossy
// but deliberate policy, logged so it is visible in production.
func (c *RateCache) ConvertToINR(ctx context.Context, amount decimal.Decimal, cur string) decimal.Decimal {
	code := Normalize(cur)
	if code == Base {
		return amount
	}

	if perINR, ok := c.rate(ctx, code); ok && !perINR.IsZero() {
		return amount.Div(perINR)
	}

	if inrPer, ok := staticINRPer[code]; ok {
		return amount.Mul(inrPer)
	}

	log.Printf("[currency] unknown currency %q, treating amount as %s", cur, Base)
	return amount
}

// rate returns units of code per one INR, refreshing the cache when expired.
func (c *RateCache) rate(ctx context.Context, code string) (decimal.Decimal, bool) {
	c.mu.RLock()
	fresh := time.Since(c.fetchedAt) <= c.ttl && len(c.perINR) > 0
	r, ok := c.perINR[code]
	c.mu.RUnlock()

	if fresh {
		return r, ok
	}

	if err := c.refresh(ctx); err != nil {
		log.Printf("[currency] rate refresh failed, keeping cached table: %v", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok = c.perINR[code]
	return r, ok
}

type ratesResponse struct {
	Rates map[string]float64 `json:"rates"`
}

func (c *RateCache) refresh(ctx context.Context) error {
	url := c.baseURL + "/latest?base=" + Base
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rate service returned %d", resp.StatusCode)
	}

	var body ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return err
	}
	if len(body.Rates) == 0 {
		return fmt.Errorf("rate service returned no rates")
	}

	perINR := make(map[string]decimal.Decimal, len(body.Rates))
	for code, v := range body.Rates {
		d := decimal.NewFromFloat(v)
		if d.IsPositive() {
			perINR[code] = d
		}
	}

	c.mu.Lock()
	c.perINR = perINR
	c.fetchedAt = time.Now()
	c.mu.Unlock()
	return nil
}
