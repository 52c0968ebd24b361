package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aster-goods/commerce/internal/platform/httpx"
	"github.com/aster-goods/commerce/internal/services"
)

// InternalHandlers exposes operator-facing endpoints that are not part of the
// public API surface.
type InternalHandlers struct {
	expiry services.ExpiryService
	clock  func() time.Time
}

// NewInternalHandlers constructs internal handlers.
func NewInternalHandlers(expiry services.ExpiryService, clock func() time.Time) *InternalHandlers {
	if clock == nil {
		clock = time.Now
	}
	return &InternalHandlers{expiry: expiry, clock: clock}
}

// Routes registers the /internal endpoints.
func (h *InternalHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/inventory:sweep", h.sweepReservations)
}

type sweepResponse struct {
	Expired int `json:"expired"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// sweepReservations triggers one reservation expiry pass. The same logic runs
// on a timer in cmd/api; this endpoint exists for operators and tests.
func (h *InternalHandlers) sweepReservations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.expiry == nil {
		httpx.WriteError(ctx, w, httpx.NewError("expiry_service_unavailable", "expiry service unavailable", http.StatusServiceUnavailable))
		return
	}

	result, err := h.expiry.ExpireReservations(ctx, h.clock())
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("sweep_failed", err.Error(), http.StatusInternalServerError))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sweepResponse{
		Expired: result.Expired,
		Skipped: result.Skipped,
		Failed:  result.Failed,
	})
}
