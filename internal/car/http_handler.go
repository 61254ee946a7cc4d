package car

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"diecastpro/internal/httpx"

	"github.com/shopspring/decimal"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

type carRequest struct {
	ModelName       string          `json:"model_name" validate:"required,max=200"`
	Manufacturer    string          `json:"manufacturer" validate:"required,max=100"`
	Scale           string          `json:"scale" validate:"omitempty,scale"`
	PurchaseDate    string          `json:"purchase_date" validate:"omitempty,datetime=2006-01-02"`
	Price           decimal.Decimal `json:"price" validate:"required"`
	ShippingCost    decimal.Decimal `json:"shipping_cost"`
	AdvancePayment  decimal.Decimal `json:"advance_payment"`
	SellerName      string          `json:"seller_name" validate:"omitempty,max=200"`
	WebsiteURL      string          `json:"website_url" validate:"omitempty,url,max=500"`
	DeliveryDueDate string          `json:"delivery_due_date" validate:"required,datetime=2006-01-02"`
}

type shippedRequest struct {
	TrackingID      string `json:"tracking_id" validate:"required,max=100"`
	DeliveryService string `json:"delivery_service" validate:"omitempty,max=100"`
}

type deliveredRequest struct {
	DeliveredDate string `json:"delivered_date" validate:"omitempty,datetime=2006-01-02"`
}

func (req *carRequest) apply(c *Car) error {
	c.ModelName = req.ModelName
	c.Manufacturer = req.Manufacturer
	c.Scale = req.Scale
	c.Price = req.Price
	c.ShippingCost = req.ShippingCost
	c.AdvancePayment = req.AdvancePayment
	c.SellerName = req.SellerName
	c.WebsiteURL = req.WebsiteURL

	if req.PurchaseDate != "" {
		d, err := time.Parse("2006-01-02", req.PurchaseDate)
		if err != nil {
			return err
		}
		c.PurchaseDate = d
	}
	due, err := time.Parse("2006-01-02", req.DeliveryDueDate)
	if err != nil {
		return err
	}
	c.DeliveryDueDate = due
	return nil
}

// Create handles POST /cars
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req carRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid JSON body", nil)
		return
	}
	if details := httpx.ValidateStruct(req); details != nil {
		httpx.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", details)
		return
	}

	c := Car{UserID: httpx.UserIDFrom(r)}
	if err := req.apply(&c); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid date format", nil)
		return
	}

	if err := h.service.Create(r.Context(), &c); err != nil {
		log.Printf("car create: %v", err)
		httpx.JSONError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
		return
	}
	httpx.JSONSuccessCreated(w, c)
}

// List handles GET /cars
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	cars, err := h.service.List(r.Context(), httpx.UserIDFrom(r))
	if err != nil {
		log.Printf("car list: %v", err)
		httpx.JSONError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
		return
	}
	if cars == nil {
		cars = []Car{}
	}
	httpx.JSONSuccess(w, cars, map[string]any{"total": len(cars)})
}

// Get handles GET /cars/{id}
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Get(r.Context(), r.PathValue("id"), httpx.UserIDFrom(r))
	if err != nil {
		h.writeGetError(w, err)
		return
	}
	httpx.JSONSuccess(w, c, nil)
}

// Update handles PUT /cars/{id}
func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req carRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid JSON body", nil)
		return
	}
	if details := httpx.ValidateStruct(req); details != nil {
		httpx.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", details)
		return
	}

	c, err := h.service.Get(r.Context(), r.PathValue("id"), httpx.UserIDFrom(r))
	if err != nil {
		h.writeGetError(w, err)
		return
	}
	if err := req.apply(&c); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid date format", nil)
		return
	}

	if err := h.service.Update(r.Context(), &c); err != nil {
		h.writeGetError(w, err)
		return
	}
	httpx.JSONSuccess(w, c, nil)
}

// MarkShipped handles POST /cars/{id}/shipped
func (h *HTTPHandler) MarkShipped(w http.ResponseWriter, r *http.Request) {
	var req shippedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid JSON body", nil)
		return
	}
	if details := httpx.ValidateStruct(req); details != nil {
		httpx.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", details)
		return
	}

	c, err := h.service.MarkShipped(r.Context(), r.PathValue("id"), httpx.UserIDFrom(r), req.TrackingID, req.DeliveryService)
	if err != nil {
		h.writeGetError(w, err)
		return
	}
	httpx.JSONSuccess(w, c, nil)
}

// MarkDelivered handles POST /cars/{id}/delivered
func (h *HTTPHandler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	var req deliveredRequest
	if r.Body != nil {
		// Body is optional; delivery defaults to today.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if details := httpx.ValidateStruct(req); details != nil {
		httpx.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", details)
		return
	}

	deliveredAt := time.Now().UTC().Truncate(24 * time.Hour)
	if req.DeliveredDate != "" {
		d, err := time.Parse("2006-01-02", req.DeliveredDate)
		if err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid date format", nil)
			return
		}
		deliveredAt = d
	}

	c, err := h.service.MarkDelivered(r.Context(), r.PathValue("id"), httpx.UserIDFrom(r), deliveredAt)
	if err != nil {
		h.writeGetError(w, err)
		return
	}
	httpx.JSONSuccess(w, c, nil)
}

// Delete handles DELETE /cars/{id}
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), r.PathValue("id"), httpx.UserIDFrom(r)); err != nil {
		h.writeGetError(w, err)
		return
	}
	httpx.JSONSuccessNoContent(w)
}

func (h *HTTPHandler) writeGetError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		httpx.JSONError(w, http.StatusNotFound, "NOT_FOUND", "Car not found", nil)
		return
	}
	log.Printf("car: %v", err)
	httpx.JSONError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
}
