package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/aster-goods/commerce/internal/domain"
	"github.com/aster-goods/commerce/internal/repositories"
)

const (
	orderIDPrefix    = "ord_"
	paymentIDPrefix  = "pay_"
	shipmentIDPrefix = "shp_"
	eventIDPrefix    = "evt_"

	orderNumberCounterID = "orders"

	defaultReservationTTL = 30 * time.Minute
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates the operation does not apply to the
	// order's current statuses.
	ErrOrderInvalidState = errors.New("order: invalid state")
	// ErrOrderConflict indicates duplicate inserts or concurrent update races.
	ErrOrderConflict = errors.New("order: conflict")
)

// OrderMetricsRecorder receives counter increments from the order flows.
type OrderMetricsRecorder interface {
	RecordOrderCreated(ctx context.Context)
	RecordOrderCanceled(ctx context.Context)
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders     repositories.OrderRepository
	Payments   repositories.OrderPaymentRepository
	Shipments  repositories.OrderShipmentRepository
	Events     repositories.OrderEventRepository
	Inventory  repositories.InventoryRepository
	Counters   repositories.CounterRepository
	UnitOfWork repositories.UnitOfWork

	Clock       func() time.Time
	IDGenerator func() string
	Notifier    OrderNotificationPublisher
	Metrics     OrderMetricsRecorder
	Logger      func(ctx context.Context, event string, fields map[string]any)

	NumberPrefix   string
	ReservationTTL time.Duration
}

type orderService struct {
	orders     repositories.OrderRepository
	payments   repositories.OrderPaymentRepository
	shipments  repositories.OrderShipmentRepository
	events     repositories.OrderEventRepository
	inventory  repositories.InventoryRepository
	counters   repositories.CounterRepository
	unitOfWork repositories.UnitOfWork

	clock    func() time.Time
	newID    func() string
	notifier OrderNotificationPublisher
	metrics  OrderMetricsRecorder
	logger   func(context.Context, string, map[string]any)

	numberPrefix   string
	reservationTTL time.Duration
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("order service: payment repository is required")
	}
	if deps.Shipments == nil {
		return nil, errors.New("order service: shipment repository is required")
	}
	if deps.Events == nil {
		return nil, errors.New("order service: event repository is required")
	}
	if deps.Inventory == nil {
		return nil, errors.New("order service: inventory repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = defaultIDGenerator
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	ttl := deps.ReservationTTL
	if ttl <= 0 {
		ttl = defaultReservationTTL
	}

	return &orderService{
		orders:     deps.Orders,
		payments:   deps.Payments,
		shipments:  deps.Shipments,
		events:     deps.Events,
		inventory:  deps.Inventory,
		counters:   deps.Counters,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:          idGen,
		notifier:       deps.Notifier,
		metrics:        deps.Metrics,
		logger:         logger,
		numberPrefix:   strings.TrimSpace(deps.NumberPrefix),
		reservationTTL: ttl,
	}, nil
}

func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	items, err := buildOrderItems(cmd.Items)
	if err != nil {
		return Order{}, err
	}
	addresses, err := buildAddresses(cmd.Addresses)
	if err != nil {
		return Order{}, err
	}
	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		return Order{}, fmt.Errorf("%w: currency is required", ErrOrderInvalidInput)
	}

	now := s.now()
	entropy := s.newID()

	// The sequence hint reads and writes its own counter document, so it runs
	// outside the order transaction; the entropy suffix keeps numbers unique
	// regardless of how the hint lands.
	seq, err := s.counters.Next(ctx, orderNumberCounterID, 1)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	var subtotal int64
	for _, item := range items {
		subtotal += item.Total
	}

	order := Order{
		ID:                   orderIDPrefix + entropy,
		Number:               orderNumber(s.numberPrefix, now, seq, entropy),
		CustomerName:         strings.TrimSpace(cmd.CustomerName),
		CustomerEmail:        strings.TrimSpace(cmd.CustomerEmail),
		CustomerPhone:        strings.TrimSpace(cmd.CustomerPhone),
		Items:                items,
		Addresses:            addresses,
		OrderStatus:          domain.OrderStatusNew,
		PaymentStatus:        domain.PaymentStatusUnpaid,
		FulfillmentStatus:    domain.FulfillmentStatusUnfulfilled,
		Subtotal:             subtotal,
		Total:                subtotal,
		Currency:             currency,
		ReservationExpiresAt: now.Add(s.reservationTTL),
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		// Stock reads happen before the order insert so the whole unit of
		// work keeps reads ahead of writes.
		if err := s.inventory.Reserve(txCtx, reservationLines(order.Items), now); err != nil {
			return err
		}
		if err := s.orders.Insert(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return s.appendEvent(txCtx, order.ID, domain.EventOrderCreated, cmd.ActorID, now, map[string]any{
			"number": order.Number,
			"total":  order.Total,
		})
	})
	if err != nil {
		return Order{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordOrderCreated(ctx)
	}
	s.publishNotification(ctx, order, domain.EventOrderCreated, now, nil)

	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string, opts OrderReadOptions) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if opts.IncludePayments {
		payments, err := s.payments.List(ctx, orderID)
		if err != nil {
			return Order{}, s.mapRepositoryError(err)
		}
		order.Payments = payments
	}

	if opts.IncludeShipments {
		shipments, err := s.shipments.List(ctx, orderID)
		if err != nil {
			return Order{}, s.mapRepositoryError(err)
		}
		order.Shipments = shipments
	}

	if opts.IncludeEvents {
		events, err := s.events.List(ctx, orderID)
		if err != nil {
			return Order{}, s.mapRepositoryError(err)
		}
		order.Events = events
	}

	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.Page[Order], error) {
	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.Page[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) UpdateOrder(ctx context.Context, cmd UpdateOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if cmd.CustomerName == nil && cmd.CustomerEmail == nil && cmd.CustomerPhone == nil && cmd.Addresses == nil {
		return Order{}, fmt.Errorf("%w: no fields to update", ErrOrderInvalidInput)
	}

	var addresses []Address
	if cmd.Addresses != nil {
		built, err := buildAddresses(cmd.Addresses)
		if err != nil {
			return Order{}, err
		}
		addresses = built
	}

	now := s.now()
	var order Order

	err := s.runInTx(ctx, func(txCtx context.Context) error {
		current, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}

		changed := map[string]any{}
		if cmd.CustomerName != nil {
			current.CustomerName = strings.TrimSpace(*cmd.CustomerName)
			changed["customerName"] = current.CustomerName
		}
		if cmd.CustomerEmail != nil {
			current.CustomerEmail = strings.TrimSpace(*cmd.CustomerEmail)
			changed["customerEmail"] = current.CustomerEmail
		}
		if cmd.CustomerPhone != nil {
			current.CustomerPhone = strings.TrimSpace(*cmd.CustomerPhone)
			changed["customerPhone"] = current.CustomerPhone
		}
		if cmd.Addresses != nil {
			current.Addresses = addresses
			changed["addresses"] = len(addresses)
		}
		current.UpdatedAt = now

		if err := s.orders.Update(txCtx, current); err != nil {
			return s.mapRepositoryError(err)
		}
		if err := s.appendEvent(txCtx, current.ID, domain.EventOrderUpdated, cmd.ActorID, now, changed); err != nil {
			return err
		}
		order = current
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

func (s *orderService) ConfirmOrder(ctx context.Context, cmd ConfirmOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	now := s.now()
	var order Order

	err := s.runInTx(ctx, func(txCtx context.Context) error {
		current, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}

		if err := domain.AssertOrderTransition(current.OrderStatus, domain.OrderStatusConfirmed); err != nil {
			return err
		}
		current.OrderStatus = domain.OrderStatusConfirmed
		current.UpdatedAt = now

		if err := s.orders.Update(txCtx, current); err != nil {
			return s.mapRepositoryError(err)
		}
		if err := s.appendEvent(txCtx, current.ID, domain.EventOrderConfirmed, cmd.ActorID, now, nil); err != nil {
			return err
		}
		order = current
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishNotification(ctx, order, domain.EventOrderConfirmed, now, nil)
	return order, nil
}

func (s *orderService) AddPayment(ctx context.Context, cmd AddPaymentCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if cmd.Amount <= 0 {
		return Order{}, fmt.Errorf("%w: payment amount must be positive", ErrOrderInvalidInput)
	}
	method := strings.TrimSpace(cmd.Method)
	if method == "" {
		return Order{}, fmt.Errorf("%w: payment method is required", ErrOrderInvalidInput)
	}

	now := s.now()
	var order Order

	err := s.runInTx(ctx, func(txCtx context.Context) error {
		current, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		if current.OrderStatus == domain.OrderStatusCanceled {
			return fmt.Errorf("%w: canceled orders cannot accept payments", ErrOrderInvalidState)
		}

		existing, err := s.payments.List(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}

		payment := Payment{
			ID:        paymentIDPrefix + s.newID(),
			OrderID:   orderID,
			Amount:    cmd.Amount,
			Method:    method,
			Status:    domain.PaymentStatusPosted,
			CreatedAt: now,
		}

		posted := payment.Amount
		for _, p := range existing {
			if p.Status == domain.PaymentStatusPosted {
				posted += p.Amount
			}
		}

		target := domain.PaymentStatusPending
		if posted >= current.Total {
			target = domain.PaymentStatusPaid
		}
		if target != current.PaymentStatus {
			if err := domain.AssertPaymentTransition(current.PaymentStatus, target); err != nil {
				return err
			}
			current.PaymentStatus = target
		}

		// Reaching the paid threshold moves the order into the working state,
		// passing through CONFIRMED when staff have not accepted it yet.
		if target == domain.PaymentStatusPaid && current.OrderStatus != domain.OrderStatusInProgress {
			if current.OrderStatus == domain.OrderStatusNew {
				if err := domain.AssertOrderTransition(current.OrderStatus, domain.OrderStatusConfirmed); err != nil {
					return err
				}
				current.OrderStatus = domain.OrderStatusConfirmed
			}
			if current.OrderStatus == domain.OrderStatusConfirmed {
				if err := domain.AssertOrderTransition(current.OrderStatus, domain.OrderStatusInProgress); err != nil {
					return err
				}
				current.OrderStatus = domain.OrderStatusInProgress
			}
		}
		current.UpdatedAt = now

		if err := s.payments.Insert(txCtx, payment); err != nil {
			return s.mapRepositoryError(err)
		}
		if err := s.orders.Update(txCtx, current); err != nil {
			return s.mapRepositoryError(err)
		}
		if err := s.appendEvent(txCtx, current.ID, domain.EventPaymentPosted, cmd.ActorID, now, map[string]any{
			"paymentId": payment.ID,
			"amount":    payment.Amount,
			"method":    payment.Method,
			"status":    string(current.PaymentStatus),
		}); err != nil {
			return err
		}
		order = current
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishNotification(ctx, order, domain.EventPaymentPosted, now, map[string]any{
		"amount": cmd.Amount,
	})
	return order, nil
}

func (s *orderService) CreateShipment(ctx context.Context, cmd CreateShipmentCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	carrier := strings.TrimSpace(cmd.Carrier)
	if carrier == "" {
		return Order{}, fmt.Errorf("%w: shipment carrier is required", ErrOrderInvalidInput)
	}

	now := s.now()
	var order Order

	err := s.runInTx(ctx, func(txCtx context.Context) error {
		current, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}

		if err := domain.AssertFulfillmentTransition(current.FulfillmentStatus, domain.FulfillmentStatusPicking); err != nil {
			return err
		}
		current.FulfillmentStatus = domain.FulfillmentStatusPicking
		current.UpdatedAt = now

		shipment := Shipment{
			ID:           shipmentIDPrefix + s.newID(),
			OrderID:      orderID,
			Carrier:      carrier,
			Service:      strings.TrimSpace(cmd.Service),
			TrackingCode: strings.TrimSpace(cmd.TrackingCode),
			CreatedAt:    now,
		}

		if err := s.shipments.Insert(txCtx, shipment); err != nil {
			return s.mapRepositoryError(err)
		}
		if err := s.orders.Update(txCtx, current); err != nil {
			return s.mapRepositoryError(err)
		}
		if err := s.appendEvent(txCtx, current.ID, domain.EventShipmentCreated, cmd.ActorID, now, map[string]any{
			"shipmentId": shipment.ID,
			"carrier":    shipment.Carrier,
		}); err != nil {
			return err
		}
		order = current
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishNotification(ctx, order, domain.EventShipmentCreated, now, nil)
	return order, nil
}

func (s *orderService) MarkPacked(ctx context.Context, cmd FulfillmentCommand) (Order, error) {
	return s.advanceFulfillment(ctx, cmd, domain.FulfillmentStatusPacked, domain.EventShipmentPacked, nil)
}

func (s *orderService) MarkShipped(ctx context.Context, cmd FulfillmentCommand) (Order, error) {
	// Shipping converts the soft reservation into a physical deduction in the
	// same unit of work as the status change.
	return s.advanceFulfillment(ctx, cmd, domain.FulfillmentStatusShipped, domain.EventShipmentShipped,
		func(txCtx context.Context, order *Order, now time.Time) error {
			return s.inventory.Commit(txCtx, reservationLines(order.Items), now)
		})
}

func (s *orderService) MarkDelivered(ctx context.Context, cmd FulfillmentCommand) (Order, error) {
	return s.advanceFulfillment(ctx, cmd, domain.FulfillmentStatusDelivered, domain.EventShipmentDelivered,
		func(txCtx context.Context, order *Order, now time.Time) error {
			if err := domain.AssertOrderTransition(order.OrderStatus, domain.OrderStatusCompleted); err != nil {
				return err
			}
			order.OrderStatus = domain.OrderStatusCompleted
			return nil
		})
}

// advanceFulfillment moves the fulfillment status one step forward, running
// the optional hook between the transition check and the order write.
func (s *orderService) advanceFulfillment(ctx context.Context, cmd FulfillmentCommand, target domain.FulfillmentStatus, eventType string, hook func(ctx context.Context, order *Order, now time.Time) error) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	now := s.now()
	var order Order

	err := s.runInTx(ctx, func(txCtx context.Context) error {
		current, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}

		prev := current.FulfillmentStatus
		if err := domain.AssertFulfillmentTransition(prev, target); err != nil {
			return err
		}
		current.FulfillmentStatus = target
		current.UpdatedAt = now

		if hook != nil {
			if err := hook(txCtx, &current, now); err != nil {
				return err
			}
		}

		if err := s.orders.Update(txCtx, current); err != nil {
			return s.mapRepositoryError(err)
		}
		if err := s.appendEvent(txCtx, current.ID, eventType, cmd.ActorID, now, map[string]any{
			"from": string(prev),
			"to":   string(target),
		}); err != nil {
			return err
		}
		order = current
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishNotification(ctx, order, eventType, now, nil)
	return order, nil
}

func (s *orderService) CancelOrder(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	reason := strings.TrimSpace(cmd.Reason)

	now := s.now()
	var order Order
	alreadyCanceled := false

	err := s.runInTx(ctx, func(txCtx context.Context) error {
		current, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}

		if current.OrderStatus == domain.OrderStatusCanceled {
			alreadyCanceled = true
			order = current
			return nil
		}

		if err := domain.AssertOrderTransition(current.OrderStatus, domain.OrderStatusCanceled); err != nil {
			return err
		}

		// Reservations already committed by shipping stay deducted; only a
		// still-held reservation is returned to the pool.
		if reservationHeld(current.FulfillmentStatus) {
			if err := s.inventory.Release(txCtx, reservationLines(current.Items), now); err != nil {
				return err
			}
		}

		current.OrderStatus = domain.OrderStatusCanceled
		// Cancellation resets payment tracking directly; refunds are handled
		// outside this system.
		current.PaymentStatus = domain.PaymentStatusUnpaid
		current.CancelReason = reason
		current.CanceledAt = &now
		current.UpdatedAt = now

		if err := s.orders.Update(txCtx, current); err != nil {
			return s.mapRepositoryError(err)
		}
		if err := s.appendEvent(txCtx, current.ID, domain.EventOrderCanceled, cmd.ActorID, now, map[string]any{
			"reason": reason,
		}); err != nil {
			return err
		}
		order = current
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	if alreadyCanceled {
		return order, nil
	}

	if s.metrics != nil {
		s.metrics.RecordOrderCanceled(ctx)
	}
	s.publishNotification(ctx, order, domain.EventOrderCanceled, now, map[string]any{
		"reason": reason,
	})
	return order, nil
}

// reservationHeld reports whether the order's soft reservation is still open.
// Shipping commits the reservation, after which there is nothing to release.
func reservationHeld(status domain.FulfillmentStatus) bool {
	switch status {
	case domain.FulfillmentStatusUnfulfilled, domain.FulfillmentStatusPicking, domain.FulfillmentStatusPacked:
		return true
	}
	return false
}

func reservationLines(items []OrderItem) []repositories.InventoryLine {
	lines := make([]repositories.InventoryLine, len(items))
	for i, item := range items {
		lines[i] = repositories.InventoryLine{SKU: item.SKU, Quantity: item.Quantity}
	}
	return lines
}

func buildOrderItems(inputs []OrderItemInput) ([]OrderItem, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: at least one item is required", ErrOrderInvalidInput)
	}
	items := make([]OrderItem, len(inputs))
	for i, input := range inputs {
		sku := strings.TrimSpace(input.SKU)
		if sku == "" {
			return nil, fmt.Errorf("%w: item %d sku is required", ErrOrderInvalidInput, i)
		}
		if input.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item %s quantity must be positive", ErrOrderInvalidInput, sku)
		}
		if input.UnitPrice < 0 {
			return nil, fmt.Errorf("%w: item %s unit price cannot be negative", ErrOrderInvalidInput, sku)
		}
		items[i] = OrderItem{
			SKU:       sku,
			Name:      strings.TrimSpace(input.Name),
			Quantity:  input.Quantity,
			UnitPrice: input.UnitPrice,
			Total:     input.UnitPrice * int64(input.Quantity),
		}
	}
	return items, nil
}

func buildAddresses(inputs []AddressInput) ([]Address, error) {
	addresses := make([]Address, len(inputs))
	for i, input := range inputs {
		addrType := domain.AddressType(strings.ToLower(strings.TrimSpace(input.Type)))
		if addrType != domain.AddressTypeShipping && addrType != domain.AddressTypeBilling {
			return nil, fmt.Errorf("%w: address %d type must be shipping or billing", ErrOrderInvalidInput, i)
		}
		if strings.TrimSpace(input.Line1) == "" {
			return nil, fmt.Errorf("%w: address %d line1 is required", ErrOrderInvalidInput, i)
		}
		addresses[i] = Address{
			Type:       addrType,
			Country:    strings.ToUpper(strings.TrimSpace(input.Country)),
			City:       strings.TrimSpace(input.City),
			Line1:      strings.TrimSpace(input.Line1),
			Line2:      strings.TrimSpace(input.Line2),
			PostalCode: strings.TrimSpace(input.PostalCode),
		}
	}
	return addresses, nil
}

func (s *orderService) appendEvent(ctx context.Context, orderID, eventType, actorID string, now time.Time, data map[string]any) error {
	event := OrderEvent{
		ID:        eventIDPrefix + s.newID(),
		OrderID:   orderID,
		Type:      eventType,
		Data:      data,
		ActorID:   strings.TrimSpace(actorID),
		CreatedAt: now,
	}
	if err := s.events.Append(ctx, event); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *orderService) publishNotification(ctx context.Context, order Order, eventType string, occurredAt time.Time, metadata map[string]any) {
	if s.notifier == nil {
		return
	}
	_, err := s.notifier.PublishOrderNotification(ctx, OrderNotification{
		OrderID:     order.ID,
		OrderNumber: order.Number,
		EventType:   eventType,
		OccurredAt:  occurredAt,
		Metadata:    metadata,
	})
	if err != nil {
		s.logger(ctx, "order.notification.publish.failed", map[string]any{
			"type":  eventType,
			"order": order.ID,
			"error": err.Error(),
		})
	}
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func defaultIDGenerator() string {
	return ulid.Make().String()
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
