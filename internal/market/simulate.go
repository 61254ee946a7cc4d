package market

import (
	"context"
	"math/rand"

	"diecastpro/internal/car"
	"diecastpro/internal/currency"
	"diecastpro/internal/quote"

	"github.com/shopspring/decimal"
)

// Simulated quotes spread 0.8x to 1.3x around the purchase price.
var (
	simulateFloor = decimal.NewFromFloat(0.8)
	simulateSpan  = 0.5
)

// fetchSimulated fabricates 1 to 3 plausible quotes around the purchase
// price, for demos and for environments without a model key. They flow
// through the same aggregation and persistence as live quotes.
func (o *Orchestrator) fetchSimulated(ctx context.Context, c car.Car, remaining int) (FetchStats, error) {
	agg := quote.NewAggregator()

	n := 1 + rand.Intn(3)
	for i := 0; i < n; i++ {
		factor := simulateFloor.Add(decimal.NewFromFloat(rand.Float64() * simulateSpan))
		price := c.Price.Mul(factor).Round(2)
		agg.Add(quote.MarketQuote{
			CarID:     c.ID,
			Source:    "simulated",
			Price:     price,
			Currency:  currency.Base,
			PriceINR:  price,
			Title:     c.Manufacturer + " " + c.ModelName + " " + c.Scale,
			Seller:    "simulated",
			ModelName: c.ModelName,
		})
	}

	return o.finish(ctx, c, agg, "", remaining)
}
