package car

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Service provides car inventory business logic.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create stores a new car after deriving its payment and status fields.
func (s *Service) Create(ctx context.Context, c *Car) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Scale == "" {
		c.Scale = "1:43"
	}
	if c.SellerName == "" {
		c.SellerName = "Unknown Seller"
	}
	if c.PurchaseDate.IsZero() {
		c.PurchaseDate = s.now()
	}
	c.Normalize(s.now())
	return s.repo.Create(ctx, c)
}

func (s *Service) Get(ctx context.Context, id, userID string) (Car, error) {
	return s.repo.GetByID(ctx, id, userID)
}

func (s *Service) List(ctx context.Context, userID string) ([]Car, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Update persists edits to a car, re-deriving status and remaining payment.
func (s *Service) Update(ctx context.Context, c *Car) error {
	c.Normalize(s.now())
	return s.repo.Update(ctx, c)
}

// MarkShipped flags an in-flight delivery. Only fully paid, undelivered cars
// hold the Shipped status through normalization.
func (s *Service) MarkShipped(ctx context.Context, id, userID, trackingID, deliveryService string) (Car, error) {
	c, err := s.repo.GetByID(ctx, id, userID)
	if err != nil {
		return Car{}, err
	}
	c.Status = StatusShipped
	c.TrackingID = trackingID
	c.DeliveryService = deliveryService
	c.Normalize(s.now())
	if err := s.repo.Update(ctx, &c); err != nil {
		return Car{}, err
	}
	return c, nil
}

// MarkDelivered records the delivery date, which forces Delivered status.
func (s *Service) MarkDelivered(ctx context.Context, id, userID string, deliveredAt time.Time) (Car, error) {
	c, err := s.repo.GetByID(ctx, id, userID)
	if err != nil {
		return Car{}, err
	}
	c.DeliveredDate = &deliveredAt
	c.Normalize(s.now())
	if err := s.repo.Update(ctx, &c); err != nil {
		return Car{}, err
	}
	return c, nil
}

func (s *Service) Delete(ctx context.Context, id, userID string) error {
	return s.repo.Delete(ctx, id, userID)
}
