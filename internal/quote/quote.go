package quote

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when no quotes exist for a car.
var ErrNotFound = errors.New("market quotes not found")

// MarketQuote is one accepted price observation for a car. Price and
// Currency are as extracted from the listing; PriceINR is the converted
// amount used for aggregation. Quotes are immutable once recorded.
type MarketQuote struct {
	ID           string          `json:"id"`
	CarID        string          `json:"car_id"`
	Source       string          `json:"source"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	PriceINR     decimal.Decimal `json:"price_inr"`
	SourceURL    string          `json:"source_url,omitempty"`
	Title        string          `json:"title,omitempty"`
	Seller       string          `json:"seller,omitempty"`
	ModelName    string          `json:"model_name,omitempty"`
	Manufacturer string          `json:"manufacturer,omitempty"`
	Scale        string          `json:"scale,omitempty"`
	FetchedAt    time.Time       `json:"fetched_at"`
}
