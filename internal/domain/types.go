package domain

import (
	"time"
)

// OrderStatus enumerates the commercial lifecycle states of an order.
type OrderStatus string

const (
	// OrderStatusNew indicates the order was just created and holds a soft
	// inventory reservation.
	OrderStatusNew OrderStatus = "new"
	// OrderStatusConfirmed indicates the order has been accepted by staff.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusInProgress indicates the order is being worked on.
	OrderStatusInProgress OrderStatus = "in_progress"
	// OrderStatusCompleted indicates the order has been fully handled.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCanceled indicates the order has been canceled.
	OrderStatusCanceled OrderStatus = "canceled"
)

// PaymentStatus enumerates the payment lifecycle states of an order.
type PaymentStatus string

const (
	PaymentStatusUnpaid            PaymentStatus = "unpaid"
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusPaid              PaymentStatus = "paid"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
	PaymentStatusRefunded          PaymentStatus = "refunded"
)

// FulfillmentStatus enumerates the fulfillment lifecycle states of an order.
type FulfillmentStatus string

const (
	FulfillmentStatusUnfulfilled       FulfillmentStatus = "unfulfilled"
	FulfillmentStatusPicking           FulfillmentStatus = "picking"
	FulfillmentStatusPacked            FulfillmentStatus = "packed"
	FulfillmentStatusShipped           FulfillmentStatus = "shipped"
	FulfillmentStatusDelivered         FulfillmentStatus = "delivered"
	FulfillmentStatusPartiallyReturned FulfillmentStatus = "partially_returned"
	FulfillmentStatusReturned          FulfillmentStatus = "returned"
)

// Order is the aggregate root for a customer purchase. The three status
// fields evolve under independent transition graphs; they are correlated by
// service logic but never derived from one another.
type Order struct {
	ID                   string
	Number               string
	CustomerName         string
	CustomerEmail        string
	CustomerPhone        string
	Items                []OrderItem
	Addresses            []Address
	OrderStatus          OrderStatus
	PaymentStatus        PaymentStatus
	FulfillmentStatus    FulfillmentStatus
	Subtotal             int64
	Total                int64
	Currency             string
	ReservationExpiresAt time.Time
	CancelReason         string
	CanceledAt           *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time

	// Hydrated on demand by read paths; never persisted on the header.
	Payments  []Payment
	Shipments []Shipment
	Events    []OrderEvent
}

// OrderItem is a single SKU line belonging to exactly one order. Total is
// always recomputed as Quantity*UnitPrice, never trusted from the caller.
type OrderItem struct {
	SKU       string
	Name      string
	Quantity  int
	UnitPrice int64
	Total     int64
}

// AddressType tags an address as shipping or billing.
type AddressType string

const (
	AddressTypeShipping AddressType = "shipping"
	AddressTypeBilling  AddressType = "billing"
)

// Address is a postal address attached to an order.
type Address struct {
	Type       AddressType
	Country    string
	City       string
	Line1      string
	Line2      string
	PostalCode string
}

// PaymentStatusPosted marks a payment that counts toward the paid threshold.
const (
	PaymentStatusPosted = "posted"
	PaymentStatusVoided = "voided"
)

// Payment records a settled payment fact supplied by an external caller.
// An order is paid once the sum of posted payments covers its total.
type Payment struct {
	ID        string
	OrderID   string
	Amount    int64
	Method    string
	Status    string
	CreatedAt time.Time
}

// Shipment is a fulfillment record for an order.
type Shipment struct {
	ID           string
	OrderID      string
	Carrier      string
	Service      string
	TrackingCode string
	CreatedAt    time.Time
}

// Event type tags recorded on the order audit trail.
const (
	EventOrderCreated       = "created"
	EventOrderConfirmed     = "confirmed"
	EventOrderUpdated       = "updated"
	EventPaymentPosted      = "payment_posted"
	EventShipmentCreated    = "shipment_created"
	EventShipmentPacked     = "shipment_packed"
	EventShipmentShipped    = "shipment_shipped"
	EventShipmentDelivered  = "shipment_delivered"
	EventOrderCanceled      = "canceled"
	EventReservationExpired = "reservation_expired"
)

// OrderEvent is one immutable entry in an order's audit trail. Events are
// append-only; the sequence for an order reconstructs its history in
// creation order.
type OrderEvent struct {
	ID        string
	OrderID   string
	Type      string
	Data      map[string]any
	ActorID   string
	CreatedAt time.Time
}

// InventoryRecord tracks per-SKU stock counters. The ledger invariant
// 0 <= QtyReserved <= QtyOnHand holds after every mutation.
type InventoryRecord struct {
	SKU         string
	QtyOnHand   int
	QtyReserved int
	UpdatedAt   time.Time
}

// Available reports the quantity still open for reservation.
func (r InventoryRecord) Available() int {
	return r.QtyOnHand - r.QtyReserved
}

// Page packages offset-paginated list results with the total match count.
type Page[T any] struct {
	Items      []T
	TotalCount int64
}
