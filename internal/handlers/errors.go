package handlers

import (
	"context"
	"errors"
	"net/http"

	domain "github.com/aster-goods/commerce/internal/domain"
	"github.com/aster-goods/commerce/internal/platform/httpx"
	"github.com/aster-goods/commerce/internal/repositories"
	"github.com/aster-goods/commerce/internal/services"
)

// writeOrderError maps service failures to the JSON error envelope. Ledger
// conflicts and rejected transitions both surface as 409.
func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	var transitionErr *domain.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", transitionErr.Error(), http.StatusConflict).
			WithDetails(map[string]any{
				"kind": string(transitionErr.Kind),
				"from": transitionErr.From,
				"to":   transitionErr.To,
			}))
		return
	}

	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		status := http.StatusConflict
		if invErr.Code == repositories.InventoryErrorStockNotFound {
			status = http.StatusNotFound
		}
		httpx.WriteError(ctx, w, httpx.NewError(string(invErr.Code), invErr.Message, status).
			WithDetails(map[string]any{"sku": invErr.SKU}))
		return
	}

	switch {
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "internal server error", http.StatusInternalServerError))
	}
}

func writeInventoryError(ctx context.Context, w http.ResponseWriter, err error) {
	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		httpx.WriteError(ctx, w, httpx.NewError(string(invErr.Code), invErr.Message, http.StatusConflict).
			WithDetails(map[string]any{"sku": invErr.SKU}))
		return
	}

	switch {
	case errors.Is(err, services.ErrInventoryNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("stock_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrInventoryInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "internal server error", http.StatusInternalServerError))
	}
}
