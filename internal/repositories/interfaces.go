package repositories

import (
	"context"
	"time"

	domain "github.com/aster-goods/commerce/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	OrderPayments() OrderPaymentRepository
	OrderShipments() OrderShipmentRepository
	OrderEvents() OrderEventRepository
	Inventory() InventoryRepository
	Counters() CounterRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
// Repository calls made inside fn observe and join the same transaction.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists order headers and provides query helpers.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.Page[domain.Order], error)
	// ListExpired returns orders still in the given status whose reservation
	// deadline passed before now, capped at limit.
	ListExpired(ctx context.Context, status domain.OrderStatus, now time.Time, limit int) ([]domain.Order, error)
}

// OrderPaymentRepository stores payment records underneath an order document.
type OrderPaymentRepository interface {
	Insert(ctx context.Context, payment domain.Payment) error
	List(ctx context.Context, orderID string) ([]domain.Payment, error)
}

// OrderShipmentRepository stores fulfillment data for orders.
type OrderShipmentRepository interface {
	Insert(ctx context.Context, shipment domain.Shipment) error
	List(ctx context.Context, orderID string) ([]domain.Shipment, error)
}

// OrderEventRepository stores the append-only audit trail for an order.
// Events are never updated or deleted.
type OrderEventRepository interface {
	Append(ctx context.Context, event domain.OrderEvent) error
	List(ctx context.Context, orderID string) ([]domain.OrderEvent, error)
}

// InventoryRepository manages per-SKU stock counters with transactional guarantees.
// Each call is atomic across all its lines.
type InventoryRepository interface {
	Reserve(ctx context.Context, lines []InventoryLine, now time.Time) error
	Release(ctx context.Context, lines []InventoryLine, now time.Time) error
	Commit(ctx context.Context, lines []InventoryLine, now time.Time) error
	AdjustStock(ctx context.Context, adjustment StockAdjustment) (domain.InventoryRecord, error)
	Get(ctx context.Context, sku string) (domain.InventoryRecord, error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
}

// Filter DTOs shared across repositories ------------------------------------

// OrderListFilter narrows order listings. Zero values mean no constraint;
// Limit defaults are applied by the repository.
type OrderListFilter struct {
	OrderStatus       domain.OrderStatus
	PaymentStatus     domain.PaymentStatus
	FulfillmentStatus domain.FulfillmentStatus
	Limit             int
	Offset            int
}

// InventoryLine addresses a quantity of one SKU within a ledger operation.
type InventoryLine struct {
	SKU      string
	Quantity int
}

// StockAdjustment upserts the on-hand level of one SKU.
type StockAdjustment struct {
	SKU       string
	QtyOnHand int
	Now       time.Time
}
