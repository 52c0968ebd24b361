package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/aster-goods/commerce/internal/domain"
	"github.com/aster-goods/commerce/internal/repositories"
)

func TestExpireReservationsCancelsExpiredOrders(t *testing.T) {
	now := time.Date(2026, 5, 3, 6, 0, 0, 0, time.UTC)
	deadline := now.Add(-time.Minute)

	stale := domain.Order{
		ID:                   "ord_1",
		OrderStatus:          domain.OrderStatusNew,
		PaymentStatus:        domain.PaymentStatusUnpaid,
		FulfillmentStatus:    domain.FulfillmentStatusUnfulfilled,
		ReservationExpiresAt: deadline,
		Items:                []domain.OrderItem{{SKU: "SKU-1", Quantity: 2}},
	}

	var released []repositories.InventoryLine
	var updated domain.Order
	events := &captureEventRepo{}
	metrics := &captureMetrics{}

	svc, err := NewExpiryService(ExpiryServiceDeps{
		Orders: &stubOrderRepo{
			listExpiredFn: func(_ context.Context, status domain.OrderStatus, _ time.Time, limit int) ([]domain.Order, error) {
				if status != domain.OrderStatusNew {
					t.Fatalf("listed status %s, want new", status)
				}
				if limit != 50 {
					t.Fatalf("limit = %d, want 50", limit)
				}
				return []domain.Order{stale}, nil
			},
			findFn: func(context.Context, string) (domain.Order, error) {
				return stale, nil
			},
			updateFn: func(_ context.Context, order domain.Order) error {
				updated = order
				return nil
			},
		},
		Events: events,
		Inventory: &stubInventoryRepo{
			releaseFn: func(_ context.Context, lines []repositories.InventoryLine, _ time.Time) error {
				released = lines
				return nil
			},
		},
		Metrics:   metrics,
		BatchSize: 50,
	})
	if err != nil {
		t.Fatalf("new expiry service: %v", err)
	}

	result, err := svc.ExpireReservations(context.Background(), now)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if result.Expired != 1 || result.Skipped != 0 || result.Failed != 0 {
		t.Fatalf("result = %+v", result)
	}
	if len(released) != 1 || released[0].SKU != "SKU-1" || released[0].Quantity != 2 {
		t.Fatalf("released = %+v", released)
	}
	if updated.OrderStatus != domain.OrderStatusCanceled {
		t.Fatalf("order status = %s, want canceled", updated.OrderStatus)
	}
	if updated.PaymentStatus != domain.PaymentStatusUnpaid || updated.FulfillmentStatus != domain.FulfillmentStatusUnfulfilled {
		t.Fatalf("statuses = %s/%s", updated.PaymentStatus, updated.FulfillmentStatus)
	}
	if updated.CancelReason != "reservation expired" || updated.CanceledAt == nil {
		t.Fatalf("cancel fields = %q/%v", updated.CancelReason, updated.CanceledAt)
	}
	if len(events.appended) != 1 || events.appended[0].Type != domain.EventReservationExpired {
		t.Fatalf("events = %+v", events.appended)
	}
	if metrics.expired != 1 {
		t.Fatalf("expired metric = %d, want 1", metrics.expired)
	}
}

func TestExpireReservationsSkipsConcurrentlyConfirmedOrder(t *testing.T) {
	now := time.Date(2026, 5, 3, 6, 0, 0, 0, time.UTC)

	releaseCalled := false
	updateCalled := false

	svc, err := NewExpiryService(ExpiryServiceDeps{
		Orders: &stubOrderRepo{
			listExpiredFn: func(context.Context, domain.OrderStatus, time.Time, int) ([]domain.Order, error) {
				return []domain.Order{{ID: "ord_1", OrderStatus: domain.OrderStatusNew, ReservationExpiresAt: now.Add(-time.Minute)}}, nil
			},
			// The order was confirmed between the listing and this read.
			findFn: func(context.Context, string) (domain.Order, error) {
				return domain.Order{
					ID:                   "ord_1",
					OrderStatus:          domain.OrderStatusConfirmed,
					ReservationExpiresAt: now.Add(-time.Minute),
				}, nil
			},
			updateFn: func(context.Context, domain.Order) error {
				updateCalled = true
				return nil
			},
		},
		Events: &captureEventRepo{},
		Inventory: &stubInventoryRepo{
			releaseFn: func(context.Context, []repositories.InventoryLine, time.Time) error {
				releaseCalled = true
				return nil
			},
		},
	})
	if err != nil {
		t.Fatalf("new expiry service: %v", err)
	}

	result, err := svc.ExpireReservations(context.Background(), now)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if result.Expired != 0 || result.Skipped != 1 || result.Failed != 0 {
		t.Fatalf("result = %+v", result)
	}
	if releaseCalled || updateCalled {
		t.Fatal("sweep mutated a confirmed order")
	}
}

func TestExpireReservationsContinuesPastFailures(t *testing.T) {
	now := time.Date(2026, 5, 3, 6, 0, 0, 0, time.UTC)
	deadline := now.Add(-time.Minute)

	orders := map[string]domain.Order{
		"ord_bad": {ID: "ord_bad", OrderStatus: domain.OrderStatusNew, ReservationExpiresAt: deadline, Items: []domain.OrderItem{{SKU: "SKU-X", Quantity: 1}}},
		"ord_ok":  {ID: "ord_ok", OrderStatus: domain.OrderStatusNew, ReservationExpiresAt: deadline, Items: []domain.OrderItem{{SKU: "SKU-1", Quantity: 1}}},
	}

	var logged []string

	svc, err := NewExpiryService(ExpiryServiceDeps{
		Orders: &stubOrderRepo{
			listExpiredFn: func(context.Context, domain.OrderStatus, time.Time, int) ([]domain.Order, error) {
				return []domain.Order{orders["ord_bad"], orders["ord_ok"]}, nil
			},
			findFn: func(_ context.Context, orderID string) (domain.Order, error) {
				return orders[orderID], nil
			},
		},
		Events: &captureEventRepo{},
		Inventory: &stubInventoryRepo{
			releaseFn: func(_ context.Context, lines []repositories.InventoryLine, _ time.Time) error {
				if lines[0].SKU == "SKU-X" {
					return errors.New("stock backend unavailable")
				}
				return nil
			},
		},
		Logger: func(_ context.Context, event string, _ map[string]any) {
			logged = append(logged, event)
		},
	})
	if err != nil {
		t.Fatalf("new expiry service: %v", err)
	}

	result, err := svc.ExpireReservations(context.Background(), now)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if result.Expired != 1 || result.Failed != 1 {
		t.Fatalf("result = %+v", result)
	}
	if len(logged) != 1 || logged[0] != "order.reservation.expire.failed" {
		t.Fatalf("logged = %v", logged)
	}
}

func TestExpireReservationsStopsOnContextCancel(t *testing.T) {
	now := time.Date(2026, 5, 3, 6, 0, 0, 0, time.UTC)
	ctx, cancel := context.WithCancel(context.Background())

	svc, err := NewExpiryService(ExpiryServiceDeps{
		Orders: &stubOrderRepo{
			listExpiredFn: func(context.Context, domain.OrderStatus, time.Time, int) ([]domain.Order, error) {
				cancel()
				return []domain.Order{{ID: "ord_1"}, {ID: "ord_2"}}, nil
			},
		},
		Events:    &captureEventRepo{},
		Inventory: &stubInventoryRepo{},
	})
	if err != nil {
		t.Fatalf("new expiry service: %v", err)
	}

	if _, err := svc.ExpireReservations(ctx, now); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}
