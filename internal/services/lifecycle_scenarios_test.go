package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/aster-goods/commerce/internal/domain"
	"github.com/aster-goods/commerce/internal/repositories"
	"github.com/aster-goods/commerce/internal/repositories/memory"
)

// End-to-end lifecycle tests run the real services against the in-memory
// registry, exercising the same unit-of-work wiring as production.

func newScenarioServices(t *testing.T, registry *memory.Registry, clock func() time.Time) (OrderService, ExpiryService) {
	t.Helper()

	orders, err := NewOrderService(OrderServiceDeps{
		Orders:     registry.Orders(),
		Payments:   registry.OrderPayments(),
		Shipments:  registry.OrderShipments(),
		Events:     registry.OrderEvents(),
		Inventory:  registry.Inventory(),
		Counters:   registry.Counters(),
		UnitOfWork: registry,
		Clock:      clock,
	})
	if err != nil {
		t.Fatalf("new order service: %v", err)
	}

	expiry, err := NewExpiryService(ExpiryServiceDeps{
		Orders:     registry.Orders(),
		Events:     registry.OrderEvents(),
		Inventory:  registry.Inventory(),
		UnitOfWork: registry,
	})
	if err != nil {
		t.Fatalf("new expiry service: %v", err)
	}

	return orders, expiry
}

func TestLifecycleReservationBlocksOversell(t *testing.T) {
	ctx := context.Background()
	registry := memory.NewRegistry()
	registry.Seed(domain.InventoryRecord{SKU: "X", QtyOnHand: 2})

	orders, _ := newScenarioServices(t, registry, time.Now)

	first, err := orders.CreateOrder(ctx, CreateOrderCommand{
		Currency: "USD",
		Items:    []OrderItemInput{{SKU: "X", Name: "Widget", Quantity: 2, UnitPrice: 1000}},
	})
	if err != nil {
		t.Fatalf("first order: %v", err)
	}

	record, err := registry.Inventory().Get(ctx, "X")
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	if record.QtyReserved != 2 {
		t.Fatalf("reserved = %d, want 2", record.QtyReserved)
	}

	_, err = orders.CreateOrder(ctx, CreateOrderCommand{
		Currency: "USD",
		Items:    []OrderItemInput{{SKU: "X", Name: "Widget", Quantity: 1, UnitPrice: 1000}},
	})
	var invErr *repositories.InventoryError
	if !errors.As(err, &invErr) {
		t.Fatalf("error = %v, want inventory error", err)
	}
	if invErr.Code != repositories.InventoryErrorInsufficientStock || invErr.SKU != "X" {
		t.Fatalf("inventory error = %+v", invErr)
	}

	// The rejected order left no trace.
	page, err := orders.ListOrders(ctx, OrderListFilter{})
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if page.TotalCount != 1 || page.Items[0].ID != first.ID {
		t.Fatalf("orders = %+v", page.Items)
	}
}

func TestLifecycleFullPaymentStartsProgress(t *testing.T) {
	ctx := context.Background()
	registry := memory.NewRegistry()
	registry.Seed(domain.InventoryRecord{SKU: "X", QtyOnHand: 5})

	orders, _ := newScenarioServices(t, registry, time.Now)

	created, err := orders.CreateOrder(ctx, CreateOrderCommand{
		Currency: "USD",
		Items:    []OrderItemInput{{SKU: "X", Name: "Widget", Quantity: 1, UnitPrice: 4200}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	paid, err := orders.AddPayment(ctx, AddPaymentCommand{
		OrderID: created.ID,
		Amount:  created.Total,
		Method:  "MANUAL",
	})
	if err != nil {
		t.Fatalf("add payment: %v", err)
	}
	if paid.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("payment status = %s, want paid", paid.PaymentStatus)
	}
	if paid.OrderStatus != domain.OrderStatusInProgress {
		t.Fatalf("order status = %s, want in_progress", paid.OrderStatus)
	}
}

func TestLifecycleShipRequiresFulfillmentSteps(t *testing.T) {
	ctx := context.Background()
	registry := memory.NewRegistry()
	registry.Seed(domain.InventoryRecord{SKU: "X", QtyOnHand: 5})

	orders, _ := newScenarioServices(t, registry, time.Now)

	created, err := orders.CreateOrder(ctx, CreateOrderCommand{
		Currency: "USD",
		Items:    []OrderItemInput{{SKU: "X", Name: "Widget", Quantity: 1, UnitPrice: 1000}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	// No shipment was created, so the order is still UNFULFILLED and cannot
	// jump straight to SHIPPED.
	_, err = orders.MarkShipped(ctx, FulfillmentCommand{OrderID: created.ID})
	var transitionErr *domain.InvalidTransitionError
	if !errors.As(err, &transitionErr) {
		t.Fatalf("error = %v, want invalid transition", err)
	}
	if transitionErr.From != string(domain.FulfillmentStatusUnfulfilled) || transitionErr.To != string(domain.FulfillmentStatusShipped) {
		t.Fatalf("transition error = %+v", transitionErr)
	}

	// Stock stays reserved, not committed.
	record, err := registry.Inventory().Get(ctx, "X")
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	if record.QtyOnHand != 5 || record.QtyReserved != 1 {
		t.Fatalf("stock = %d/%d, want 5/1", record.QtyOnHand, record.QtyReserved)
	}

	// The full ladder works.
	if _, err := orders.CreateShipment(ctx, CreateShipmentCommand{OrderID: created.ID, Carrier: "ups"}); err != nil {
		t.Fatalf("create shipment: %v", err)
	}
	if _, err := orders.MarkPacked(ctx, FulfillmentCommand{OrderID: created.ID}); err != nil {
		t.Fatalf("mark packed: %v", err)
	}
	shipped, err := orders.MarkShipped(ctx, FulfillmentCommand{OrderID: created.ID})
	if err != nil {
		t.Fatalf("mark shipped: %v", err)
	}
	if shipped.FulfillmentStatus != domain.FulfillmentStatusShipped {
		t.Fatalf("fulfillment status = %s", shipped.FulfillmentStatus)
	}

	record, err = registry.Inventory().Get(ctx, "X")
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	if record.QtyOnHand != 4 || record.QtyReserved != 0 {
		t.Fatalf("stock = %d/%d, want 4/0", record.QtyOnHand, record.QtyReserved)
	}
}

func TestLifecycleSweepReleasesStaleReservation(t *testing.T) {
	ctx := context.Background()
	registry := memory.NewRegistry()
	registry.Seed(domain.InventoryRecord{SKU: "X", QtyOnHand: 3})

	past := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	clock := past
	orders, expiry := newScenarioServices(t, registry, func() time.Time { return clock })

	created, err := orders.CreateOrder(ctx, CreateOrderCommand{
		Currency: "USD",
		Items:    []OrderItemInput{{SKU: "X", Name: "Widget", Quantity: 3, UnitPrice: 500}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	sweepAt := past.Add(2 * time.Hour)
	result, err := expiry.ExpireReservations(ctx, sweepAt)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if result.Expired != 1 {
		t.Fatalf("result = %+v", result)
	}

	canceled, err := orders.GetOrder(ctx, created.ID, OrderReadOptions{IncludeEvents: true})
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if canceled.OrderStatus != domain.OrderStatusCanceled {
		t.Fatalf("order status = %s, want canceled", canceled.OrderStatus)
	}
	var sawExpiry bool
	for _, event := range canceled.Events {
		if event.Type == domain.EventReservationExpired {
			sawExpiry = true
		}
	}
	if !sawExpiry {
		t.Fatalf("events = %+v", canceled.Events)
	}

	record, err := registry.Inventory().Get(ctx, "X")
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	if record.QtyOnHand != 3 || record.QtyReserved != 0 {
		t.Fatalf("stock = %d/%d, want 3/0", record.QtyOnHand, record.QtyReserved)
	}

	// A later cancel of the same order is a no-op and must not release again.
	if _, err := orders.CancelOrder(ctx, CancelOrderCommand{OrderID: created.ID}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	record, err = registry.Inventory().Get(ctx, "X")
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	if record.QtyReserved != 0 || record.QtyOnHand != 3 {
		t.Fatalf("stock = %d/%d after repeat cancel", record.QtyOnHand, record.QtyReserved)
	}
}
