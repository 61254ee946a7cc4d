package quote

import (
	"context"
)

// Repository defines the contract for market quote storage.
type Repository interface {
	InsertBatch(ctx context.Context, quotes []MarketQuote) error
	ListByCar(ctx context.Context, carID string) ([]MarketQuote, error)
	LatestBatch(ctx context.Context, carID string) ([]MarketQuote, error)
	DeleteByCar(ctx context.Context, carID string) (int64, error)
}
