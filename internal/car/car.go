package car

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a car does not exist or belongs to another user.
var ErrNotFound = errors.New("car not found")

// Car statuses, derived from payment and delivery state.
const (
	StatusPurchasedPaid = "Purchased/Paid"
	StatusShipped       = "Shipped"
	StatusDelivered     = "Delivered"
	StatusOverdue       = "Overdue"
	StatusPreOrder      = "Pre-Order"
	StatusCommentedSold = "Commented Sold"
)

// Car is one diecast model in a collector's inventory. Prices are INR.
type Car struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	ModelName        string          `json:"model_name"`
	Manufacturer     string          `json:"manufacturer"`
	Scale            string          `json:"scale"`
	PurchaseDate     time.Time       `json:"purchase_date"`
	Price            decimal.Decimal `json:"price"`
	ShippingCost     decimal.Decimal `json:"shipping_cost"`
	AdvancePayment   decimal.Decimal `json:"advance_payment"`
	RemainingPayment decimal.Decimal `json:"remaining_payment"`
	SellerName       string          `json:"seller_name"`
	WebsiteURL       string          `json:"website_url,omitempty"`
	DeliveryDueDate  time.Time       `json:"delivery_due_date"`
	DeliveredDate    *time.Time      `json:"delivered_date,omitempty"`
	TrackingID       string          `json:"tracking_id,omitempty"`
	DeliveryService  string          `json:"delivery_service,omitempty"`
	Status           string          `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// TotalCost is the full amount owed for the car.
func (c *Car) TotalCost() decimal.Decimal {
	return c.Price.Add(c.ShippingCost)
}

// Normalize recomputes the derived fields before every write: the remaining
// payment, and the status from payment and delivery state. An explicit
// Shipped status survives normalization until delivery.
func (c *Car) Normalize(today time.Time) {
	c.RemainingPayment = c.TotalCost().Sub(c.AdvancePayment)

	today = today.Truncate(24 * time.Hour)
	due := c.DeliveryDueDate.Truncate(24 * time.Hour)

	switch {
	case c.DeliveredDate != nil:
		c.Status = StatusDelivered
	case c.AdvancePayment.IsZero():
		c.Status = StatusCommentedSold
	case c.AdvancePayment.LessThan(c.TotalCost()):
		c.Status = StatusPreOrder
	default:
		switch {
		case due.Before(today):
			c.Status = StatusOverdue
		case c.Status == StatusOverdue:
			c.Status = StatusPurchasedPaid
		case c.Status != StatusShipped:
			c.Status = StatusPurchasedPaid
		}
	}
}
