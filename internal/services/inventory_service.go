package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aster-goods/commerce/internal/repositories"
)

var (
	// ErrInventoryInvalidInput signals the caller provided invalid data.
	ErrInventoryInvalidInput = errors.New("inventory: invalid input")
	// ErrInventoryNotFound indicates the stock record could not be located.
	ErrInventoryNotFound = errors.New("inventory: not found")
)

// InventoryServiceDeps bundles collaborators for the inventory service.
type InventoryServiceDeps struct {
	Inventory repositories.InventoryRepository
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type inventoryService struct {
	inventory repositories.InventoryRepository
	clock     func() time.Time
	logger    func(context.Context, string, map[string]any)
}

// NewInventoryService wires dependencies into a concrete InventoryService.
func NewInventoryService(deps InventoryServiceDeps) (InventoryService, error) {
	if deps.Inventory == nil {
		return nil, errors.New("inventory service: inventory repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &inventoryService{
		inventory: deps.Inventory,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *inventoryService) AdjustStock(ctx context.Context, cmd AdjustStockCommand) (InventoryRecord, error) {
	sku := strings.TrimSpace(cmd.SKU)
	if sku == "" {
		return InventoryRecord{}, fmt.Errorf("%w: sku is required", ErrInventoryInvalidInput)
	}
	if cmd.QtyOnHand < 0 {
		return InventoryRecord{}, fmt.Errorf("%w: onHand cannot be negative", ErrInventoryInvalidInput)
	}

	now := s.clock()
	record, err := s.inventory.AdjustStock(ctx, repositories.StockAdjustment{
		SKU:       sku,
		QtyOnHand: cmd.QtyOnHand,
		Now:       now,
	})
	if err != nil {
		return InventoryRecord{}, err
	}

	s.logger(ctx, "inventory.stock.adjusted", map[string]any{
		"sku":    sku,
		"onHand": record.QtyOnHand,
		"actor":  strings.TrimSpace(cmd.ActorID),
	})
	return record, nil
}

func (s *inventoryService) GetStock(ctx context.Context, sku string) (InventoryRecord, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return InventoryRecord{}, fmt.Errorf("%w: sku is required", ErrInventoryInvalidInput)
	}

	record, err := s.inventory.Get(ctx, sku)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return InventoryRecord{}, fmt.Errorf("%w: %s", ErrInventoryNotFound, sku)
		}
		return InventoryRecord{}, err
	}
	return record, nil
}
