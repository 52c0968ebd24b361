package firestore

import (
	"time"

	domain "github.com/aster-goods/commerce/internal/domain"
)

const (
	ordersCollection    = "orders"
	inventoryCollection = "inventory"
	countersCollection  = "counters"
	paymentsSubcoll     = "payments"
	shipmentsSubcoll    = "shipments"
	eventsSubcoll       = "events"
)

type orderDocument struct {
	Number               string            `firestore:"number"`
	CustomerName         string            `firestore:"customerName,omitempty"`
	CustomerEmail        string            `firestore:"customerEmail,omitempty"`
	CustomerPhone        string            `firestore:"customerPhone,omitempty"`
	Items                []itemDocument    `firestore:"items"`
	Addresses            []addressDocument `firestore:"addresses,omitempty"`
	OrderStatus          string            `firestore:"orderStatus"`
	PaymentStatus        string            `firestore:"paymentStatus"`
	FulfillmentStatus    string            `firestore:"fulfillmentStatus"`
	Subtotal             int64             `firestore:"subtotal"`
	Total                int64             `firestore:"total"`
	Currency             string            `firestore:"currency"`
	ReservationExpiresAt time.Time         `firestore:"reservationExpiresAt"`
	CancelReason         string            `firestore:"cancelReason,omitempty"`
	CanceledAt           *time.Time        `firestore:"canceledAt,omitempty"`
	CreatedAt            time.Time         `firestore:"createdAt"`
	UpdatedAt            time.Time         `firestore:"updatedAt"`
}

type itemDocument struct {
	SKU       string `firestore:"sku"`
	Name      string `firestore:"name"`
	Quantity  int    `firestore:"qty"`
	UnitPrice int64  `firestore:"unitPrice"`
	Total     int64  `firestore:"total"`
}

type addressDocument struct {
	Type       string `firestore:"type"`
	Country    string `firestore:"country"`
	City       string `firestore:"city"`
	Line1      string `firestore:"line1"`
	Line2      string `firestore:"line2,omitempty"`
	PostalCode string `firestore:"postalCode"`
}

type paymentDocument struct {
	Amount    int64     `firestore:"amount"`
	Method    string    `firestore:"method"`
	Status    string    `firestore:"status"`
	CreatedAt time.Time `firestore:"createdAt"`
}

type shipmentDocument struct {
	Carrier      string    `firestore:"carrier"`
	Service      string    `firestore:"service,omitempty"`
	TrackingCode string    `firestore:"trackingCode,omitempty"`
	CreatedAt    time.Time `firestore:"createdAt"`
}

type eventDocument struct {
	Type      string         `firestore:"type"`
	Data      map[string]any `firestore:"data,omitempty"`
	ActorID   string         `firestore:"actorId,omitempty"`
	CreatedAt time.Time      `firestore:"createdAt"`
}

type stockDocument struct {
	SKU       string    `firestore:"sku"`
	OnHand    int       `firestore:"onHand"`
	Reserved  int       `firestore:"reserved"`
	Available int       `firestore:"available"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func (d *stockDocument) recalculate() {
	d.Available = d.OnHand - d.Reserved
}

func (d stockDocument) toDomain(sku string) domain.InventoryRecord {
	if d.SKU != "" {
		sku = d.SKU
	}
	return domain.InventoryRecord{
		SKU:         sku,
		QtyOnHand:   d.OnHand,
		QtyReserved: d.Reserved,
		UpdatedAt:   d.UpdatedAt,
	}
}

type counterDocument struct {
	CurrentValue int64     `firestore:"currentValue"`
	Step         int64     `firestore:"step"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

func newOrderDocument(order domain.Order) orderDocument {
	doc := orderDocument{
		Number:               order.Number,
		CustomerName:         order.CustomerName,
		CustomerEmail:        order.CustomerEmail,
		CustomerPhone:        order.CustomerPhone,
		OrderStatus:          string(order.OrderStatus),
		PaymentStatus:        string(order.PaymentStatus),
		FulfillmentStatus:    string(order.FulfillmentStatus),
		Subtotal:             order.Subtotal,
		Total:                order.Total,
		Currency:             order.Currency,
		ReservationExpiresAt: order.ReservationExpiresAt.UTC(),
		CancelReason:         order.CancelReason,
		CreatedAt:            order.CreatedAt.UTC(),
		UpdatedAt:            order.UpdatedAt.UTC(),
	}
	if order.CanceledAt != nil {
		canceled := order.CanceledAt.UTC()
		doc.CanceledAt = &canceled
	}
	doc.Items = make([]itemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		doc.Items = append(doc.Items, itemDocument{
			SKU:       item.SKU,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Total:     item.Total,
		})
	}
	if len(order.Addresses) > 0 {
		doc.Addresses = make([]addressDocument, 0, len(order.Addresses))
		for _, addr := range order.Addresses {
			doc.Addresses = append(doc.Addresses, addressDocument{
				Type:       string(addr.Type),
				Country:    addr.Country,
				City:       addr.City,
				Line1:      addr.Line1,
				Line2:      addr.Line2,
				PostalCode: addr.PostalCode,
			})
		}
	}
	return doc
}

func (d orderDocument) toDomain(id string) domain.Order {
	order := domain.Order{
		ID:                   id,
		Number:               d.Number,
		CustomerName:         d.CustomerName,
		CustomerEmail:        d.CustomerEmail,
		CustomerPhone:        d.CustomerPhone,
		OrderStatus:          domain.OrderStatus(d.OrderStatus),
		PaymentStatus:        domain.PaymentStatus(d.PaymentStatus),
		FulfillmentStatus:    domain.FulfillmentStatus(d.FulfillmentStatus),
		Subtotal:             d.Subtotal,
		Total:                d.Total,
		Currency:             d.Currency,
		ReservationExpiresAt: d.ReservationExpiresAt,
		CancelReason:         d.CancelReason,
		CanceledAt:           d.CanceledAt,
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
	}
	order.Items = make([]domain.OrderItem, 0, len(d.Items))
	for _, item := range d.Items {
		order.Items = append(order.Items, domain.OrderItem{
			SKU:       item.SKU,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Total:     item.Total,
		})
	}
	if len(d.Addresses) > 0 {
		order.Addresses = make([]domain.Address, 0, len(d.Addresses))
		for _, addr := range d.Addresses {
			order.Addresses = append(order.Addresses, domain.Address{
				Type:       domain.AddressType(addr.Type),
				Country:    addr.Country,
				City:       addr.City,
				Line1:      addr.Line1,
				Line2:      addr.Line2,
				PostalCode: addr.PostalCode,
			})
		}
	}
	return order
}
