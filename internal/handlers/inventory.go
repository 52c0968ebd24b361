package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aster-goods/commerce/internal/platform/httpx"
	"github.com/aster-goods/commerce/internal/services"
)

// InventoryHandlers exposes stock administration endpoints.
type InventoryHandlers struct {
	inventory services.InventoryService
}

// NewInventoryHandlers constructs a new InventoryHandlers instance.
func NewInventoryHandlers(inventory services.InventoryService) *InventoryHandlers {
	return &InventoryHandlers{inventory: inventory}
}

// Routes registers the /inventory endpoints.
func (h *InventoryHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{sku}", h.getStock)
	r.Put("/{sku}", h.adjustStock)
}

type adjustStockRequest struct {
	QtyOnHand int `json:"qty_on_hand"`
}

type stockPayload struct {
	SKU         string `json:"sku"`
	QtyOnHand   int    `json:"qty_on_hand"`
	QtyReserved int    `json:"qty_reserved"`
	Available   int    `json:"available"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

func (h *InventoryHandlers) getStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sku := strings.TrimSpace(chi.URLParam(r, "sku"))
	if sku == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "sku is required", http.StatusBadRequest))
		return
	}

	record, err := h.inventory.GetStock(ctx, sku)
	if err != nil {
		writeInventoryError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildStockPayload(record))
}

func (h *InventoryHandlers) adjustStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sku := strings.TrimSpace(chi.URLParam(r, "sku"))
	if sku == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "sku is required", http.StatusBadRequest))
		return
	}

	var req adjustStockRequest
	if !decodeBody(w, r, &req) {
		return
	}

	record, err := h.inventory.AdjustStock(ctx, services.AdjustStockCommand{
		SKU:       sku,
		QtyOnHand: req.QtyOnHand,
		ActorID:   actorID(r),
	})
	if err != nil {
		writeInventoryError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildStockPayload(record))
}

func buildStockPayload(record services.InventoryRecord) stockPayload {
	return stockPayload{
		SKU:         record.SKU,
		QtyOnHand:   record.QtyOnHand,
		QtyReserved: record.QtyReserved,
		Available:   record.Available(),
		UpdatedAt:   formatTime(record.UpdatedAt),
	}
}
