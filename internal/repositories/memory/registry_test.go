package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domain "github.com/aster-goods/commerce/internal/domain"
	"github.com/aster-goods/commerce/internal/repositories"
)

func seedStock(reg *Registry, sku string, onHand, reserved int) {
	reg.Seed(domain.InventoryRecord{
		SKU:         sku,
		QtyOnHand:   onHand,
		QtyReserved: reserved,
		UpdatedAt:   time.Now().UTC(),
	})
}

func TestInventoryReserveInsufficientStock(t *testing.T) {
	reg := NewRegistry()
	seedStock(reg, "SKU-1", 2, 0)
	ctx := context.Background()
	now := time.Now().UTC()

	err := reg.Inventory().Reserve(ctx, []repositories.InventoryLine{{SKU: "SKU-1", Quantity: 3}}, now)
	if err == nil {
		t.Fatal("expected insufficient stock error")
	}
	var invErr *repositories.InventoryError
	if !errors.As(err, &invErr) || invErr.Code != repositories.InventoryErrorInsufficientStock {
		t.Fatalf("expected insufficient stock code, got %v", err)
	}
	if invErr.SKU != "SKU-1" {
		t.Fatalf("expected failing sku SKU-1, got %s", invErr.SKU)
	}

	record, err := reg.Inventory().Get(ctx, "SKU-1")
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	if record.QtyReserved != 0 {
		t.Fatalf("reserved should be unchanged, got %d", record.QtyReserved)
	}
}

func TestInventoryReserveMultiLineRollsBackAtomically(t *testing.T) {
	reg := NewRegistry()
	seedStock(reg, "SKU-A", 5, 0)
	seedStock(reg, "SKU-B", 1, 0)
	ctx := context.Background()
	now := time.Now().UTC()

	err := reg.Inventory().Reserve(ctx, []repositories.InventoryLine{
		{SKU: "SKU-A", Quantity: 2},
		{SKU: "SKU-B", Quantity: 2},
	}, now)
	if err == nil {
		t.Fatal("expected insufficient stock for SKU-B")
	}

	recordA, _ := reg.Inventory().Get(ctx, "SKU-A")
	if recordA.QtyReserved != 0 {
		t.Fatalf("SKU-A reservation must roll back, got reserved=%d", recordA.QtyReserved)
	}
}

func TestInventoryReserveDuplicateSKULinesAggregate(t *testing.T) {
	reg := NewRegistry()
	seedStock(reg, "SKU-1", 3, 0)
	ctx := context.Background()
	now := time.Now().UTC()

	// Two lines for the same SKU count against availability as one combined
	// quantity, not as independent checks.
	err := reg.Inventory().Reserve(ctx, []repositories.InventoryLine{
		{SKU: "SKU-1", Quantity: 2},
		{SKU: "SKU-1", Quantity: 2},
	}, now)
	var invErr *repositories.InventoryError
	if !errors.As(err, &invErr) || invErr.Code != repositories.InventoryErrorInsufficientStock {
		t.Fatalf("expected insufficient stock for combined quantity, got %v", err)
	}
	record, _ := reg.Inventory().Get(ctx, "SKU-1")
	if record.QtyReserved != 0 {
		t.Fatalf("failed reserve must leave nothing held, got reserved=%d", record.QtyReserved)
	}

	if err := reg.Inventory().Reserve(ctx, []repositories.InventoryLine{
		{SKU: "SKU-1", Quantity: 1},
		{SKU: "SKU-1", Quantity: 2},
	}, now); err != nil {
		t.Fatalf("reserve within stock: %v", err)
	}
	record, _ = reg.Inventory().Get(ctx, "SKU-1")
	if record.QtyReserved != 3 {
		t.Fatalf("expected combined reservation of 3, got %d", record.QtyReserved)
	}
}

func TestInventoryReserveReleaseRestoresCounters(t *testing.T) {
	reg := NewRegistry()
	seedStock(reg, "SKU-1", 5, 0)
	ctx := context.Background()
	now := time.Now().UTC()
	lines := []repositories.InventoryLine{{SKU: "SKU-1", Quantity: 3}}

	if err := reg.Inventory().Reserve(ctx, lines, now); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	record, _ := reg.Inventory().Get(ctx, "SKU-1")
	if record.QtyReserved != 3 || record.QtyOnHand != 5 {
		t.Fatalf("unexpected stock after reserve: %+v", record)
	}

	if err := reg.Inventory().Release(ctx, lines, now); err != nil {
		t.Fatalf("release: %v", err)
	}
	record, _ = reg.Inventory().Get(ctx, "SKU-1")
	if record.QtyReserved != 0 || record.QtyOnHand != 5 {
		t.Fatalf("unexpected stock after release: %+v", record)
	}

	// Double release floors at zero instead of going negative.
	if err := reg.Inventory().Release(ctx, lines, now); err != nil {
		t.Fatalf("second release: %v", err)
	}
	record, _ = reg.Inventory().Get(ctx, "SKU-1")
	if record.QtyReserved != 0 {
		t.Fatalf("reserved went negative: %+v", record)
	}
}

func TestInventoryCommitDecrementsBothAndRejectsSecondCommit(t *testing.T) {
	reg := NewRegistry()
	seedStock(reg, "SKU-1", 5, 0)
	ctx := context.Background()
	now := time.Now().UTC()
	lines := []repositories.InventoryLine{{SKU: "SKU-1", Quantity: 2}}

	if err := reg.Inventory().Reserve(ctx, lines, now); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := reg.Inventory().Commit(ctx, lines, now); err != nil {
		t.Fatalf("commit: %v", err)
	}
	record, _ := reg.Inventory().Get(ctx, "SKU-1")
	if record.QtyOnHand != 3 || record.QtyReserved != 0 {
		t.Fatalf("unexpected stock after commit: %+v", record)
	}

	err := reg.Inventory().Commit(ctx, lines, now)
	if err == nil {
		t.Fatal("expected second commit to fail")
	}
	var invErr *repositories.InventoryError
	if !errors.As(err, &invErr) || invErr.Code != repositories.InventoryErrorCannotCommit {
		t.Fatalf("expected cannot commit code, got %v", err)
	}
}

func TestInventoryConcurrentReservesNeverOversell(t *testing.T) {
	const onHand = 10
	const workers = 50

	reg := NewRegistry()
	seedStock(reg, "SKU-HOT", onHand, 0)
	ctx := context.Background()
	now := time.Now().UTC()

	var wg sync.WaitGroup
	var successMu sync.Mutex
	successes := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := reg.Inventory().Reserve(ctx, []repositories.InventoryLine{{SKU: "SKU-HOT", Quantity: 1}}, now)
			if err == nil {
				successMu.Lock()
				successes++
				successMu.Unlock()
				return
			}
			var invErr *repositories.InventoryError
			if !errors.As(err, &invErr) || invErr.Code != repositories.InventoryErrorInsufficientStock {
				t.Errorf("loser got unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != onHand {
		t.Fatalf("expected exactly %d successful reserves, got %d", onHand, successes)
	}
	record, _ := reg.Inventory().Get(ctx, "SKU-HOT")
	if record.QtyReserved != onHand {
		t.Fatalf("expected reserved=%d, got %d", onHand, record.QtyReserved)
	}
	if record.QtyReserved > record.QtyOnHand {
		t.Fatalf("ledger invariant violated: %+v", record)
	}
}

func TestAdjustStockRejectsOnHandBelowReserved(t *testing.T) {
	reg := NewRegistry()
	seedStock(reg, "SKU-1", 5, 3)
	ctx := context.Background()

	_, err := reg.Inventory().AdjustStock(ctx, repositories.StockAdjustment{SKU: "SKU-1", QtyOnHand: 2, Now: time.Now()})
	if err == nil {
		t.Fatal("expected adjust below reserved to fail")
	}

	record, adjustErr := reg.Inventory().AdjustStock(ctx, repositories.StockAdjustment{SKU: "SKU-1", QtyOnHand: 8, Now: time.Now()})
	if adjustErr != nil {
		t.Fatalf("adjust: %v", adjustErr)
	}
	if record.QtyOnHand != 8 || record.QtyReserved != 3 {
		t.Fatalf("unexpected record after adjust: %+v", record)
	}
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	reg := NewRegistry()
	seedStock(reg, "SKU-1", 5, 0)
	ctx := context.Background()
	now := time.Now().UTC()
	sentinel := errors.New("boom")

	err := reg.RunInTx(ctx, func(ctx context.Context) error {
		if err := reg.Orders().Insert(ctx, domain.Order{ID: "ord_1", OrderStatus: domain.OrderStatusNew}); err != nil {
			return err
		}
		if err := reg.Inventory().Reserve(ctx, []repositories.InventoryLine{{SKU: "SKU-1", Quantity: 2}}, now); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	if _, err := reg.Orders().FindByID(ctx, "ord_1"); err == nil {
		t.Fatal("order insert should have rolled back")
	}
	record, _ := reg.Inventory().Get(ctx, "SKU-1")
	if record.QtyReserved != 0 {
		t.Fatalf("reservation should have rolled back, got %+v", record)
	}
}

func TestRunInTxCommitsOnSuccess(t *testing.T) {
	reg := NewRegistry()
	seedStock(reg, "SKU-1", 5, 0)
	ctx := context.Background()
	now := time.Now().UTC()

	err := reg.RunInTx(ctx, func(ctx context.Context) error {
		if err := reg.Orders().Insert(ctx, domain.Order{ID: "ord_1", OrderStatus: domain.OrderStatusNew, CreatedAt: now}); err != nil {
			return err
		}
		return reg.Inventory().Reserve(ctx, []repositories.InventoryLine{{SKU: "SKU-1", Quantity: 2}}, now)
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}

	order, err := reg.Orders().FindByID(ctx, "ord_1")
	if err != nil {
		t.Fatalf("find order: %v", err)
	}
	if order.OrderStatus != domain.OrderStatusNew {
		t.Fatalf("unexpected order: %+v", order)
	}
	record, _ := reg.Inventory().Get(ctx, "SKU-1")
	if record.QtyReserved != 2 {
		t.Fatalf("unexpected stock: %+v", record)
	}
}

func TestOrderListFiltersAndPaginates(t *testing.T) {
	reg := NewRegistry()
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	statuses := []domain.OrderStatus{
		domain.OrderStatusNew,
		domain.OrderStatusNew,
		domain.OrderStatusConfirmed,
		domain.OrderStatusNew,
		domain.OrderStatusCanceled,
	}
	for i, s := range statuses {
		order := domain.Order{
			ID:          string(rune('a' + i)),
			OrderStatus: s,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		if err := reg.Orders().Insert(ctx, order); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	page, err := reg.Orders().List(ctx, repositories.OrderListFilter{
		OrderStatus: domain.OrderStatusNew,
		Limit:       2,
		Offset:      0,
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.TotalCount != 3 {
		t.Fatalf("expected total 3, got %d", page.TotalCount)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(page.Items))
	}
	// Newest first.
	if !page.Items[0].CreatedAt.After(page.Items[1].CreatedAt) {
		t.Fatalf("expected newest first ordering")
	}

	rest, err := reg.Orders().List(ctx, repositories.OrderListFilter{
		OrderStatus: domain.OrderStatusNew,
		Limit:       2,
		Offset:      2,
	})
	if err != nil {
		t.Fatalf("list offset: %v", err)
	}
	if len(rest.Items) != 1 || rest.TotalCount != 3 {
		t.Fatalf("unexpected second page: %d items, total %d", len(rest.Items), rest.TotalCount)
	}
}

func TestListExpiredOnlyMatchesStatusAndDeadline(t *testing.T) {
	reg := NewRegistry()
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	orders := []domain.Order{
		{ID: "expired-new", OrderStatus: domain.OrderStatusNew, ReservationExpiresAt: now.Add(-time.Hour)},
		{ID: "live-new", OrderStatus: domain.OrderStatusNew, ReservationExpiresAt: now.Add(time.Hour)},
		{ID: "expired-confirmed", OrderStatus: domain.OrderStatusConfirmed, ReservationExpiresAt: now.Add(-time.Hour)},
	}
	for _, order := range orders {
		if err := reg.Orders().Insert(ctx, order); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	expired, err := reg.Orders().ListExpired(ctx, domain.OrderStatusNew, now, 10)
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != "expired-new" {
		t.Fatalf("unexpected expired set: %+v", expired)
	}
}

func TestCounterNextIncrements(t *testing.T) {
	reg := NewRegistry()
	ctx := context.Background()

	first, err := reg.Counters().Next(ctx, "orders", 1)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	second, err := reg.Counters().Next(ctx, "orders", 1)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if first != 1 || second != 2 {
		t.Fatalf("expected 1 then 2, got %d then %d", first, second)
	}
}

func TestEventsAreAppendOnlyAndOrdered(t *testing.T) {
	reg := NewRegistry()
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	for i, eventType := range []string{domain.EventOrderCreated, domain.EventOrderConfirmed, domain.EventPaymentPosted} {
		event := domain.OrderEvent{
			ID:        string(rune('x' + i)),
			OrderID:   "ord_1",
			Type:      eventType,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := reg.OrderEvents().Append(ctx, event); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	events, err := reg.OrderEvents().List(ctx, "ord_1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	want := []string{domain.EventOrderCreated, domain.EventOrderConfirmed, domain.EventPaymentPosted}
	for i, event := range events {
		if event.Type != want[i] {
			t.Fatalf("event %d out of order: got %s want %s", i, event.Type, want[i])
		}
	}
}
