package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	domain "github.com/aster-goods/commerce/internal/domain"
	"github.com/aster-goods/commerce/internal/repositories"
)

// Registry is a mutex-guarded in-memory implementation of
// repositories.Registry used for tests and local development. RunInTx
// serialises on the registry lock and restores a snapshot when the function
// fails, so the transactional contract matches the Firestore backend.
type Registry struct {
	store *store
}

type store struct {
	mu        chanMutex
	orders    map[string]domain.Order
	payments  map[string][]domain.Payment
	shipments map[string][]domain.Shipment
	events    map[string][]domain.OrderEvent
	stocks    map[string]domain.InventoryRecord
	counters  map[string]int64
}

// chanMutex is a mutex that can be checked against context cancellation.
type chanMutex chan struct{}

func newChanMutex() chanMutex {
	m := make(chanMutex, 1)
	return m
}

func (m chanMutex) lock(ctx context.Context) error {
	select {
	case m <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m chanMutex) unlock() {
	<-m
}

type txKey struct{}

func inTx(ctx context.Context) bool {
	flag, ok := ctx.Value(txKey{}).(bool)
	return ok && flag
}

// NewRegistry constructs an empty in-memory registry.
func NewRegistry() *Registry {
	return &Registry{
		store: &store{
			mu:        newChanMutex(),
			orders:    make(map[string]domain.Order),
			payments:  make(map[string][]domain.Payment),
			shipments: make(map[string][]domain.Shipment),
			events:    make(map[string][]domain.OrderEvent),
			stocks:    make(map[string]domain.InventoryRecord),
			counters:  make(map[string]int64),
		},
	}
}

// Close implements repositories.Registry; nothing to release.
func (r *Registry) Close(context.Context) error { return nil }

func (r *Registry) Orders() repositories.OrderRepository                 { return &orderRepo{store: r.store} }
func (r *Registry) OrderPayments() repositories.OrderPaymentRepository   { return &paymentRepo{store: r.store} }
func (r *Registry) OrderShipments() repositories.OrderShipmentRepository { return &shipmentRepo{store: r.store} }
func (r *Registry) OrderEvents() repositories.OrderEventRepository       { return &eventRepo{store: r.store} }
func (r *Registry) Inventory() repositories.InventoryRepository          { return &inventoryRepo{store: r.store} }
func (r *Registry) Counters() repositories.CounterRepository             { return &counterRepo{store: r.store} }

// RunInTx executes fn while holding the registry lock. On error the state is
// rolled back to the snapshot taken at entry.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return errors.New("memory registry: transaction function is nil")
	}
	if inTx(ctx) {
		return fn(ctx)
	}
	if err := r.store.mu.lock(ctx); err != nil {
		return err
	}
	defer r.store.mu.unlock()

	snapshot := r.store.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		r.store.restore(snapshot)
		return err
	}
	return nil
}

// Seed installs a stock record directly, bypassing validation. Test helper.
func (r *Registry) Seed(record domain.InventoryRecord) {
	_ = r.store.mu.lock(context.Background())
	defer r.store.mu.unlock()
	r.store.stocks[record.SKU] = record
}

type storeSnapshot struct {
	orders    map[string]domain.Order
	payments  map[string][]domain.Payment
	shipments map[string][]domain.Shipment
	events    map[string][]domain.OrderEvent
	stocks    map[string]domain.InventoryRecord
	counters  map[string]int64
}

func (s *store) snapshot() storeSnapshot {
	snap := storeSnapshot{
		orders:    make(map[string]domain.Order, len(s.orders)),
		payments:  make(map[string][]domain.Payment, len(s.payments)),
		shipments: make(map[string][]domain.Shipment, len(s.shipments)),
		events:    make(map[string][]domain.OrderEvent, len(s.events)),
		stocks:    make(map[string]domain.InventoryRecord, len(s.stocks)),
		counters:  make(map[string]int64, len(s.counters)),
	}
	for id, order := range s.orders {
		snap.orders[id] = cloneOrder(order)
	}
	for id, list := range s.payments {
		snap.payments[id] = append([]domain.Payment(nil), list...)
	}
	for id, list := range s.shipments {
		snap.shipments[id] = append([]domain.Shipment(nil), list...)
	}
	for id, list := range s.events {
		snap.events[id] = append([]domain.OrderEvent(nil), list...)
	}
	for sku, stock := range s.stocks {
		snap.stocks[sku] = stock
	}
	for id, value := range s.counters {
		snap.counters[id] = value
	}
	return snap
}

func (s *store) restore(snap storeSnapshot) {
	s.orders = snap.orders
	s.payments = snap.payments
	s.shipments = snap.shipments
	s.events = snap.events
	s.stocks = snap.stocks
	s.counters = snap.counters
}

// with runs fn under the registry lock unless the context already holds it.
func (s *store) with(ctx context.Context, fn func() error) error {
	if inTx(ctx) {
		return fn()
	}
	if err := s.mu.lock(ctx); err != nil {
		return err
	}
	defer s.mu.unlock()
	return fn()
}

func cloneOrder(order domain.Order) domain.Order {
	cloned := order
	cloned.Items = append([]domain.OrderItem(nil), order.Items...)
	cloned.Addresses = append([]domain.Address(nil), order.Addresses...)
	if order.CanceledAt != nil {
		canceled := *order.CanceledAt
		cloned.CanceledAt = &canceled
	}
	cloned.Payments = nil
	cloned.Shipments = nil
	cloned.Events = nil
	return cloned
}

// notFoundError implements repositories.RepositoryError for missing entities.
type notFoundError struct {
	msg string
}

func (e *notFoundError) Error() string       { return e.msg }
func (e *notFoundError) IsNotFound() bool    { return true }
func (e *notFoundError) IsConflict() bool    { return false }
func (e *notFoundError) IsUnavailable() bool { return false }

// conflictError implements repositories.RepositoryError for duplicate inserts.
type conflictError struct {
	msg string
}

func (e *conflictError) Error() string       { return e.msg }
func (e *conflictError) IsNotFound() bool    { return false }
func (e *conflictError) IsConflict() bool    { return true }
func (e *conflictError) IsUnavailable() bool { return false }

// Order repository -----------------------------------------------------------

type orderRepo struct {
	store *store
}

func (r *orderRepo) Insert(ctx context.Context, order domain.Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order insert: id is required")
	}
	return r.store.with(ctx, func() error {
		if _, exists := r.store.orders[order.ID]; exists {
			return &conflictError{msg: fmt.Sprintf("order %s already exists", order.ID)}
		}
		r.store.orders[order.ID] = cloneOrder(order)
		return nil
	})
}

func (r *orderRepo) Update(ctx context.Context, order domain.Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order update: id is required")
	}
	return r.store.with(ctx, func() error {
		if _, exists := r.store.orders[order.ID]; !exists {
			return &notFoundError{msg: fmt.Sprintf("order %s not found", order.ID)}
		}
		r.store.orders[order.ID] = cloneOrder(order)
		return nil
	})
}

func (r *orderRepo) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	var found domain.Order
	err := r.store.with(ctx, func() error {
		order, exists := r.store.orders[orderID]
		if !exists {
			return &notFoundError{msg: fmt.Sprintf("order %s not found", orderID)}
		}
		found = cloneOrder(order)
		return nil
	})
	return found, err
}

func (r *orderRepo) List(ctx context.Context, filter repositories.OrderListFilter) (domain.Page[domain.Order], error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	var page domain.Page[domain.Order]
	err := r.store.with(ctx, func() error {
		matched := make([]domain.Order, 0, len(r.store.orders))
		for _, order := range r.store.orders {
			if filter.OrderStatus != "" && order.OrderStatus != filter.OrderStatus {
				continue
			}
			if filter.PaymentStatus != "" && order.PaymentStatus != filter.PaymentStatus {
				continue
			}
			if filter.FulfillmentStatus != "" && order.FulfillmentStatus != filter.FulfillmentStatus {
				continue
			}
			matched = append(matched, cloneOrder(order))
		}
		sort.Slice(matched, func(i, j int) bool {
			if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
				return matched[i].ID > matched[j].ID
			}
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		})

		page.TotalCount = int64(len(matched))
		if offset >= len(matched) {
			page.Items = []domain.Order{}
			return nil
		}
		end := offset + limit
		if end > len(matched) {
			end = len(matched)
		}
		page.Items = matched[offset:end]
		return nil
	})
	return page, err
}

func (r *orderRepo) ListExpired(ctx context.Context, orderStatus domain.OrderStatus, now time.Time, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 20
	}
	var expired []domain.Order
	err := r.store.with(ctx, func() error {
		for _, order := range r.store.orders {
			if order.OrderStatus != orderStatus {
				continue
			}
			if !order.ReservationExpiresAt.Before(now) {
				continue
			}
			expired = append(expired, cloneOrder(order))
		}
		sort.Slice(expired, func(i, j int) bool {
			return expired[i].ReservationExpiresAt.Before(expired[j].ReservationExpiresAt)
		})
		if len(expired) > limit {
			expired = expired[:limit]
		}
		return nil
	})
	return expired, err
}

// Payment repository ---------------------------------------------------------

type paymentRepo struct {
	store *store
}

func (r *paymentRepo) Insert(ctx context.Context, payment domain.Payment) error {
	if strings.TrimSpace(payment.ID) == "" {
		return errors.New("payment insert: id is required")
	}
	if strings.TrimSpace(payment.OrderID) == "" {
		return errors.New("payment insert: order id is required")
	}
	return r.store.with(ctx, func() error {
		r.store.payments[payment.OrderID] = append(r.store.payments[payment.OrderID], payment)
		return nil
	})
}

func (r *paymentRepo) List(ctx context.Context, orderID string) ([]domain.Payment, error) {
	var payments []domain.Payment
	err := r.store.with(ctx, func() error {
		payments = append([]domain.Payment(nil), r.store.payments[orderID]...)
		return nil
	})
	return payments, err
}

// Shipment repository --------------------------------------------------------

type shipmentRepo struct {
	store *store
}

func (r *shipmentRepo) Insert(ctx context.Context, shipment domain.Shipment) error {
	if strings.TrimSpace(shipment.ID) == "" {
		return errors.New("shipment insert: id is required")
	}
	if strings.TrimSpace(shipment.OrderID) == "" {
		return errors.New("shipment insert: order id is required")
	}
	return r.store.with(ctx, func() error {
		r.store.shipments[shipment.OrderID] = append(r.store.shipments[shipment.OrderID], shipment)
		return nil
	})
}

func (r *shipmentRepo) List(ctx context.Context, orderID string) ([]domain.Shipment, error) {
	var shipments []domain.Shipment
	err := r.store.with(ctx, func() error {
		shipments = append([]domain.Shipment(nil), r.store.shipments[orderID]...)
		return nil
	})
	return shipments, err
}

// Event repository -----------------------------------------------------------

type eventRepo struct {
	store *store
}

func (r *eventRepo) Append(ctx context.Context, event domain.OrderEvent) error {
	if strings.TrimSpace(event.ID) == "" {
		return errors.New("event append: id is required")
	}
	if strings.TrimSpace(event.OrderID) == "" {
		return errors.New("event append: order id is required")
	}
	if strings.TrimSpace(event.Type) == "" {
		return errors.New("event append: type is required")
	}
	return r.store.with(ctx, func() error {
		r.store.events[event.OrderID] = append(r.store.events[event.OrderID], event)
		return nil
	})
}

func (r *eventRepo) List(ctx context.Context, orderID string) ([]domain.OrderEvent, error) {
	var events []domain.OrderEvent
	err := r.store.with(ctx, func() error {
		events = append([]domain.OrderEvent(nil), r.store.events[orderID]...)
		return nil
	})
	return events, err
}

// Inventory repository -------------------------------------------------------

type inventoryRepo struct {
	store *store
}

func (r *inventoryRepo) Reserve(ctx context.Context, lines []repositories.InventoryLine, now time.Time) error {
	return r.mutate(ctx, "inventory.reserve", lines, now, func(sku string, qty int, record *domain.InventoryRecord) error {
		if record.QtyOnHand-record.QtyReserved < qty {
			return repositories.NewInventoryError(repositories.InventoryErrorInsufficientStock, sku, fmt.Sprintf("insufficient stock for %s", sku), nil)
		}
		record.QtyReserved += qty
		return nil
	})
}

func (r *inventoryRepo) Release(ctx context.Context, lines []repositories.InventoryLine, now time.Time) error {
	return r.mutate(ctx, "inventory.release", lines, now, func(sku string, qty int, record *domain.InventoryRecord) error {
		record.QtyReserved -= qty
		if record.QtyReserved < 0 {
			record.QtyReserved = 0
		}
		return nil
	})
}

func (r *inventoryRepo) Commit(ctx context.Context, lines []repositories.InventoryLine, now time.Time) error {
	return r.mutate(ctx, "inventory.commit", lines, now, func(sku string, qty int, record *domain.InventoryRecord) error {
		if record.QtyReserved < qty || record.QtyOnHand < qty {
			return repositories.NewInventoryError(repositories.InventoryErrorCannotCommit, sku, fmt.Sprintf("cannot commit %d of %s", qty, sku), nil)
		}
		record.QtyReserved -= qty
		record.QtyOnHand -= qty
		return nil
	})
}

func (r *inventoryRepo) mutate(ctx context.Context, op string, lines []repositories.InventoryLine, now time.Time, apply func(sku string, qty int, record *domain.InventoryRecord) error) error {
	if len(lines) == 0 {
		return errors.New(op + ": at least one line is required")
	}
	for _, line := range lines {
		if strings.TrimSpace(line.SKU) == "" {
			return errors.New(op + ": sku is required")
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("%s: quantity for %s must be > 0", op, line.SKU)
		}
	}

	now = now.UTC()
	return r.store.with(ctx, func() error {
		// Validate every line against a scratch copy before touching the
		// stored records so a late failure leaves no partial writes.
		scratch := make(map[string]domain.InventoryRecord, len(lines))
		for _, line := range lines {
			sku := strings.TrimSpace(line.SKU)
			record, seen := scratch[sku]
			if !seen {
				record = r.store.stocks[sku]
				record.SKU = sku
			}
			if err := apply(sku, line.Quantity, &record); err != nil {
				return err
			}
			record.UpdatedAt = now
			scratch[sku] = record
		}
		for sku, record := range scratch {
			r.store.stocks[sku] = record
		}
		return nil
	})
}

func (r *inventoryRepo) AdjustStock(ctx context.Context, adjustment repositories.StockAdjustment) (domain.InventoryRecord, error) {
	sku := strings.TrimSpace(adjustment.SKU)
	if sku == "" {
		return domain.InventoryRecord{}, errors.New("inventory adjust: sku is required")
	}
	if adjustment.QtyOnHand < 0 {
		return domain.InventoryRecord{}, fmt.Errorf("inventory adjust: onHand for %s must be >= 0", sku)
	}

	var result domain.InventoryRecord
	err := r.store.with(ctx, func() error {
		record := r.store.stocks[sku]
		record.SKU = sku
		if adjustment.QtyOnHand < record.QtyReserved {
			return repositories.NewInventoryError(repositories.InventoryErrorInsufficientStock, sku, fmt.Sprintf("onHand below reserved for %s", sku), nil)
		}
		record.QtyOnHand = adjustment.QtyOnHand
		record.UpdatedAt = adjustment.Now.UTC()
		r.store.stocks[sku] = record
		result = record
		return nil
	})
	return result, err
}

func (r *inventoryRepo) Get(ctx context.Context, sku string) (domain.InventoryRecord, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return domain.InventoryRecord{}, errors.New("inventory get: sku is required")
	}
	var record domain.InventoryRecord
	err := r.store.with(ctx, func() error {
		stored, exists := r.store.stocks[sku]
		if !exists {
			return &notFoundError{msg: fmt.Sprintf("stock %s not found", sku)}
		}
		record = stored
		return nil
	})
	return record, err
}

// Counter repository ---------------------------------------------------------

type counterRepo struct {
	store *store
}

func (r *counterRepo) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	id := strings.TrimSpace(counterID)
	if id == "" {
		return 0, errors.New("counters.next: counter id is required")
	}
	if step < 0 {
		return 0, fmt.Errorf("counters.next: step must be positive, got %d", step)
	}
	if step == 0 {
		step = 1
	}

	var next int64
	err := r.store.with(ctx, func() error {
		r.store.counters[id] += step
		next = r.store.counters[id]
		return nil
	})
	return next, err
}
