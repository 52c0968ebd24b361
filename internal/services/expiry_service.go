package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/aster-goods/commerce/internal/domain"
	"github.com/aster-goods/commerce/internal/repositories"
)

const defaultSweepBatchSize = 100

// ExpiryMetricsRecorder receives the count of reservations released per sweep.
type ExpiryMetricsRecorder interface {
	RecordReservationsExpired(ctx context.Context, count int64)
}

// ExpiryServiceDeps bundles collaborators for the reservation expiry sweep.
type ExpiryServiceDeps struct {
	Orders     repositories.OrderRepository
	Events     repositories.OrderEventRepository
	Inventory  repositories.InventoryRepository
	UnitOfWork repositories.UnitOfWork

	IDGenerator func() string
	Metrics     ExpiryMetricsRecorder
	Logger      func(ctx context.Context, event string, fields map[string]any)

	BatchSize int
}

type expiryService struct {
	orders     repositories.OrderRepository
	events     repositories.OrderEventRepository
	inventory  repositories.InventoryRepository
	unitOfWork repositories.UnitOfWork

	newID   func() string
	metrics ExpiryMetricsRecorder
	logger  func(context.Context, string, map[string]any)

	batchSize int
}

// NewExpiryService wires dependencies into a concrete ExpiryService.
func NewExpiryService(deps ExpiryServiceDeps) (ExpiryService, error) {
	if deps.Orders == nil {
		return nil, errors.New("expiry service: order repository is required")
	}
	if deps.Events == nil {
		return nil, errors.New("expiry service: event repository is required")
	}
	if deps.Inventory == nil {
		return nil, errors.New("expiry service: inventory repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = defaultIDGenerator
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	batch := deps.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatchSize
	}

	return &expiryService{
		orders:     deps.Orders,
		events:     deps.Events,
		inventory:  deps.Inventory,
		unitOfWork: unit,
		newID:      idGen,
		metrics:    deps.Metrics,
		logger:     logger,
		batchSize:  batch,
	}, nil
}

// ExpireReservations releases the inventory held by orders that stayed NEW
// past their reservation deadline. Each candidate is handled in its own unit
// of work with the predicate re-checked at the update point, so an order
// confirmed between the listing and the update is left alone. Per-order
// failures are logged and counted; the sweep continues.
func (s *expiryService) ExpireReservations(ctx context.Context, now time.Time) (ExpireResult, error) {
	now = now.UTC()

	candidates, err := s.orders.ListExpired(ctx, domain.OrderStatusNew, now, s.batchSize)
	if err != nil {
		return ExpireResult{}, err
	}

	var result ExpireResult
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		expired, err := s.expireOne(ctx, candidate.ID, now)
		switch {
		case err != nil:
			result.Failed++
			s.logger(ctx, "order.reservation.expire.failed", map[string]any{
				"order": candidate.ID,
				"error": err.Error(),
			})
		case expired:
			result.Expired++
		default:
			result.Skipped++
		}
	}

	if s.metrics != nil {
		s.metrics.RecordReservationsExpired(ctx, int64(result.Expired))
	}
	return result, nil
}

func (s *expiryService) expireOne(ctx context.Context, orderID string, now time.Time) (bool, error) {
	expired := false

	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return err
		}

		// Listing ran outside this transaction; the order may have been
		// confirmed or canceled since.
		if order.OrderStatus != domain.OrderStatusNew || !order.ReservationExpiresAt.Before(now) {
			return nil
		}

		if err := s.inventory.Release(txCtx, reservationLines(order.Items), now); err != nil {
			return err
		}

		order.OrderStatus = domain.OrderStatusCanceled
		order.PaymentStatus = domain.PaymentStatusUnpaid
		order.FulfillmentStatus = domain.FulfillmentStatusUnfulfilled
		order.CancelReason = "reservation expired"
		order.CanceledAt = &now
		order.UpdatedAt = now

		if err := s.orders.Update(txCtx, order); err != nil {
			return err
		}
		if err := s.events.Append(txCtx, domain.OrderEvent{
			ID:        eventIDPrefix + s.newID(),
			OrderID:   order.ID,
			Type:      domain.EventReservationExpired,
			Data:      map[string]any{"expiredAt": order.ReservationExpiresAt},
			CreatedAt: now,
		}); err != nil {
			return err
		}

		expired = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return expired, nil
}
