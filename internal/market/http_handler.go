package market

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"diecastpro/internal/car"
	"diecastpro/internal/credit"
	"diecastpro/internal/httpx"
	"diecastpro/internal/quote"
)

type HTTPHandler struct {
	orch    *Orchestrator
	credits CreditService
}

func NewHTTPHandler(orch *Orchestrator, credits CreditService) *HTTPHandler {
	return &HTTPHandler{orch: orch, credits: credits}
}

// Fetch handles GET /cars/{id}/market/fetch
func (h *HTTPHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	simulate := r.URL.Query().Get("simulate") == "true"

	stats, err := h.orch.Fetch(r.Context(), r.PathValue("id"), httpx.UserIDFrom(r), simulate)
	if err != nil {
		switch {
		case errors.Is(err, car.ErrNotFound):
			httpx.JSONError(w, http.StatusNotFound, "NOT_FOUND", "Car not found", nil)
		case errors.Is(err, credit.ErrExhausted):
			msg := "Daily fetch credits exhausted, try again tomorrow"
			if status, serr := h.credits.Status(r.Context(), httpx.UserIDFrom(r)); serr == nil {
				w.Header().Set("Retry-After", status.ResetsAt.UTC().Format(http.TimeFormat))
				msg = fmt.Sprintf("Daily fetch credits exhausted (%d/%d used), resets at %s",
					status.Used, status.Limit, status.ResetsAt.UTC().Format(time.RFC3339))
			}
			httpx.JSONError(w, http.StatusTooManyRequests, "CREDITS_EXHAUSTED", msg, nil)
		case errors.Is(err, ErrModelUnavailable):
			httpx.JSONError(w, http.StatusServiceUnavailable, "MODEL_UNAVAILABLE",
				"Price fetching is not configured on this server", nil)
		default:
			log.Printf("market fetch: %v", err)
			httpx.JSONError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
		}
		return
	}
	httpx.JSONSuccess(w, stats, nil)
}

// History handles GET /cars/{id}/market
func (h *HTTPHandler) History(w http.ResponseWriter, r *http.Request) {
	quotes, err := h.orch.History(r.Context(), r.PathValue("id"), httpx.UserIDFrom(r))
	if err != nil {
		if errors.Is(err, car.ErrNotFound) {
			httpx.JSONError(w, http.StatusNotFound, "NOT_FOUND", "Car not found", nil)
			return
		}
		log.Printf("market history: %v", err)
		httpx.JSONError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
		return
	}
	if quotes == nil {
		quotes = []quote.MarketQuote{}
	}
	httpx.JSONSuccess(w, quotes, map[string]any{"total": len(quotes)})
}

// ClearHistory handles DELETE /cars/{id}/market
func (h *HTTPHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.orch.ClearHistory(r.Context(), r.PathValue("id"), httpx.UserIDFrom(r))
	if err != nil {
		if errors.Is(err, car.ErrNotFound) {
			httpx.JSONError(w, http.StatusNotFound, "NOT_FOUND", "Car not found", nil)
			return
		}
		log.Printf("market clear: %v", err)
		httpx.JSONError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
		return
	}
	httpx.JSONSuccess(w, map[string]any{"deleted": deleted}, nil)
}

// Portfolio handles GET /portfolio
func (h *HTTPHandler) Portfolio(w http.ResponseWriter, r *http.Request) {
	p, err := h.orch.Valuate(r.Context(), httpx.UserIDFrom(r))
	if err != nil {
		log.Printf("portfolio: %v", err)
		httpx.JSONError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
		return
	}
	httpx.JSONSuccess(w, p, nil)
}

// Credits handles GET /market/credits
func (h *HTTPHandler) Credits(w http.ResponseWriter, r *http.Request) {
	status, err := h.credits.Status(r.Context(), httpx.UserIDFrom(r))
	if err != nil {
		log.Printf("credits: %v", err)
		httpx.JSONError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
		return
	}
	httpx.JSONSuccess(w, status, nil)
}
