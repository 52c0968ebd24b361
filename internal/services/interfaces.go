package services

import (
	"context"
	"time"

	domain "github.com/aster-goods/commerce/internal/domain"
	"github.com/aster-goods/commerce/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Order             = domain.Order
	OrderItem         = domain.OrderItem
	OrderEvent        = domain.OrderEvent
	OrderStatus       = domain.OrderStatus
	PaymentStatus     = domain.PaymentStatus
	FulfillmentStatus = domain.FulfillmentStatus
	Payment           = domain.Payment
	Shipment          = domain.Shipment
	Address           = domain.Address
	InventoryRecord   = domain.InventoryRecord
)

// OrderService encapsulates the order lifecycle: creation with inventory
// reservation, payment recording, fulfillment progression, and cancellation.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	GetOrder(ctx context.Context, orderID string, opts OrderReadOptions) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.Page[Order], error)
	UpdateOrder(ctx context.Context, cmd UpdateOrderCommand) (Order, error)
	ConfirmOrder(ctx context.Context, cmd ConfirmOrderCommand) (Order, error)
	AddPayment(ctx context.Context, cmd AddPaymentCommand) (Order, error)
	CreateShipment(ctx context.Context, cmd CreateShipmentCommand) (Order, error)
	MarkPacked(ctx context.Context, cmd FulfillmentCommand) (Order, error)
	MarkShipped(ctx context.Context, cmd FulfillmentCommand) (Order, error)
	MarkDelivered(ctx context.Context, cmd FulfillmentCommand) (Order, error)
	CancelOrder(ctx context.Context, cmd CancelOrderCommand) (Order, error)
}

// InventoryService exposes stock administration on top of the ledger.
type InventoryService interface {
	AdjustStock(ctx context.Context, cmd AdjustStockCommand) (InventoryRecord, error)
	GetStock(ctx context.Context, sku string) (InventoryRecord, error)
}

// ExpiryService sweeps reservations whose TTL elapsed while the order stayed
// in its initial status.
type ExpiryService interface {
	ExpireReservations(ctx context.Context, now time.Time) (ExpireResult, error)
}

// ExpireResult summarises one sweep pass.
type ExpireResult struct {
	Expired int
	Skipped int
	Failed  int
}

// OrderNotificationPublisher publishes order lifecycle notifications for
// downstream consumers. Publishing is best effort; failures never roll back
// the order mutation.
type OrderNotificationPublisher interface {
	PublishOrderNotification(ctx context.Context, message OrderNotification) (string, error)
}

// OrderNotification captures metadata for emitted order notifications.
type OrderNotification struct {
	OrderID     string         `json:"orderId"`
	OrderNumber string         `json:"orderNumber"`
	EventType   string         `json:"eventType"`
	OccurredAt  time.Time      `json:"occurredAt"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Commands and DTOs ----------------------------------------------------------

// CreateOrderCommand carries the input for order creation.
type CreateOrderCommand struct {
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Currency      string
	Items         []OrderItemInput
	Addresses     []AddressInput
	ActorID       string
}

// OrderItemInput is a requested order line. The line total is recomputed
// server-side.
type OrderItemInput struct {
	SKU       string
	Name      string
	Quantity  int
	UnitPrice int64
}

// AddressInput is a postal address supplied at creation or update.
type AddressInput struct {
	Type       string
	Country    string
	City       string
	Line1      string
	Line2      string
	PostalCode string
}

// OrderReadOptions toggles hydration of order sub-resources.
type OrderReadOptions struct {
	IncludePayments  bool
	IncludeShipments bool
	IncludeEvents    bool
}

// OrderListFilter narrows and paginates order listings.
type OrderListFilter = repositories.OrderListFilter

// UpdateOrderCommand patches customer contact fields and addresses. Statuses
// are never writable through this path.
type UpdateOrderCommand struct {
	OrderID       string
	CustomerName  *string
	CustomerEmail *string
	CustomerPhone *string
	Addresses     []AddressInput
	ActorID       string
}

// ConfirmOrderCommand accepts a NEW order.
type ConfirmOrderCommand struct {
	OrderID string
	ActorID string
}

// AddPaymentCommand records a settled payment fact.
type AddPaymentCommand struct {
	OrderID string
	Amount  int64
	Method  string
	ActorID string
}

// CreateShipmentCommand opens fulfillment for an order.
type CreateShipmentCommand struct {
	OrderID      string
	Carrier      string
	Service      string
	TrackingCode string
	ActorID      string
}

// FulfillmentCommand drives a fulfillment status progression.
type FulfillmentCommand struct {
	OrderID string
	ActorID string
}

// CancelOrderCommand cancels an order, releasing its reservation.
type CancelOrderCommand struct {
	OrderID string
	Reason  string
	ActorID string
}

// AdjustStockCommand sets the on-hand level for a SKU.
type AdjustStockCommand struct {
	SKU       string
	QtyOnHand int
	ActorID   string
}
