package market

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// ValueSource tells how a car's market value was derived.
const (
	ValueFromMarket   = "market"
	ValueFromPurchase = "purchase"
)

// PortfolioItem is one car's valuation.
type PortfolioItem struct {
	CarID         string          `json:"car_id"`
	ModelName     string          `json:"model_name"`
	Manufacturer  string          `json:"manufacturer"`
	Scale         string          `json:"scale"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	MarketValue   decimal.Decimal `json:"market_value"`
	ValueSource   string          `json:"value_source"`
	QuoteCount    int             `json:"quote_count"`
}

// Portfolio is a user's full collection valuation in INR.
type Portfolio struct {
	Items         []PortfolioItem  `json:"items"`
	Count         int              `json:"count"`
	TotalPurchase decimal.Decimal  `json:"total_purchase"`
	TotalMarket   decimal.Decimal  `json:"total_market"`
	GainPercent   *decimal.Decimal `json:"gain_percent,omitempty"`
}

// Valuate prices every car the user owns. Cars with a recorded fetch batch
// use the batch average, the rest fall back to their purchase price. Cars
// are valued in parallel, bounded by PortfolioConcurrency.
func (o *Orchestrator) Valuate(ctx context.Context, userID string) (Portfolio, error) {
	cars, err := o.deps.Cars.ListByUser(ctx, userID)
	if err != nil {
		return Portfolio{}, err
	}

	items := make([]PortfolioItem, len(cars))
	sem := make(chan struct{}, o.deps.PortfolioConcurrency)
	var wg sync.WaitGroup

	for i, c := range cars {
		items[i] = PortfolioItem{
			CarID:         c.ID,
			ModelName:     c.ModelName,
			Manufacturer:  c.Manufacturer,
			Scale:         c.Scale,
			PurchasePrice: c.Price,
		}

		wg.Add(1)
		go func(i int, carID string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			item := &items[i]
			item.MarketValue = item.PurchasePrice
			item.ValueSource = ValueFromPurchase

			batch, err := o.deps.Quotes.LatestBatch(ctx, carID)
			if err != nil || len(batch) == 0 {
				return
			}
			sum := decimal.Zero
			for _, q := range batch {
				sum = sum.Add(q.PriceINR)
			}
			item.MarketValue = sum.Div(decimal.NewFromInt(int64(len(batch)))).Round(2)
			item.ValueSource = ValueFromMarket
			item.QuoteCount = len(batch)
		}(i, c.ID)
	}
	wg.Wait()

	p := Portfolio{Items: items, Count: len(items)}
	for _, item := range items {
		p.TotalPurchase = p.TotalPurchase.Add(item.PurchasePrice)
		p.TotalMarket = p.TotalMarket.Add(item.MarketValue)
	}
	if p.TotalPurchase.IsPositive() {
		gain := p.TotalMarket.Sub(p.TotalPurchase).Div(p.TotalPurchase).Mul(decimal.NewFromInt(100)).Round(2)
		p.GainPercent = &gain
	}
	return p, nil
}
