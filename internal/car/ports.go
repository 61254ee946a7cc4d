package car

import (
	"context"
)

// Repository defines the contract for car storage. All reads and writes are
// scoped to the owning user.
type Repository interface {
	Create(ctx context.Context, c *Car) error
	GetByID(ctx context.Context, id, userID string) (Car, error)
	ListByUser(ctx context.Context, userID string) ([]Car, error)
	Update(ctx context.Context, c *Car) error
	Delete(ctx context.Context, id, userID string) error
}
