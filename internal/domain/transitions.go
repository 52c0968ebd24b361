package domain

import "fmt"

// StatusKind names one of the three independent status dimensions.
type StatusKind string

const (
	StatusKindOrder       StatusKind = "order"
	StatusKindPayment     StatusKind = "payment"
	StatusKindFulfillment StatusKind = "fulfillment"
)

// InvalidTransitionError reports a status change rejected by the transition
// tables.
type InvalidTransitionError struct {
	Kind StatusKind
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s status transition %s -> %s", e.Kind, e.From, e.To)
}

var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusNew:        {OrderStatusConfirmed, OrderStatusCanceled},
	OrderStatusConfirmed:  {OrderStatusInProgress, OrderStatusCanceled},
	OrderStatusInProgress: {OrderStatusCompleted, OrderStatusCanceled},
	OrderStatusCompleted:  {},
	OrderStatusCanceled:   {},
}

var paymentStatusTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusUnpaid:            {PaymentStatusPending, PaymentStatusPaid},
	PaymentStatusPending:           {PaymentStatusPaid, PaymentStatusUnpaid},
	PaymentStatusPaid:              {PaymentStatusPartiallyRefunded, PaymentStatusRefunded},
	PaymentStatusPartiallyRefunded: {PaymentStatusRefunded},
	PaymentStatusRefunded:          {},
}

var fulfillmentStatusTransitions = map[FulfillmentStatus][]FulfillmentStatus{
	FulfillmentStatusUnfulfilled:       {FulfillmentStatusPicking},
	FulfillmentStatusPicking:           {FulfillmentStatusPacked},
	FulfillmentStatusPacked:            {FulfillmentStatusShipped},
	FulfillmentStatusShipped:           {FulfillmentStatusDelivered},
	FulfillmentStatusDelivered:         {FulfillmentStatusPartiallyReturned, FulfillmentStatusReturned},
	FulfillmentStatusPartiallyReturned: {FulfillmentStatusReturned},
	FulfillmentStatusReturned:          {},
}

// CanTransitionOrder reports whether the order status may move from current
// to next. Unknown current states admit no successors.
func CanTransitionOrder(current, next OrderStatus) bool {
	for _, allowed := range orderStatusTransitions[current] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CanTransitionPayment reports whether the payment status may move from
// current to next.
func CanTransitionPayment(current, next PaymentStatus) bool {
	for _, allowed := range paymentStatusTransitions[current] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CanTransitionFulfillment reports whether the fulfillment status may move
// from current to next.
func CanTransitionFulfillment(current, next FulfillmentStatus) bool {
	for _, allowed := range fulfillmentStatusTransitions[current] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AssertOrderTransition validates an order status change, returning a typed
// error when the tables reject it.
func AssertOrderTransition(current, next OrderStatus) error {
	if !CanTransitionOrder(current, next) {
		return &InvalidTransitionError{Kind: StatusKindOrder, From: string(current), To: string(next)}
	}
	return nil
}

// AssertPaymentTransition validates a payment status change.
func AssertPaymentTransition(current, next PaymentStatus) error {
	if !CanTransitionPayment(current, next) {
		return &InvalidTransitionError{Kind: StatusKindPayment, From: string(current), To: string(next)}
	}
	return nil
}

// AssertFulfillmentTransition validates a fulfillment status change.
func AssertFulfillmentTransition(current, next FulfillmentStatus) error {
	if !CanTransitionFulfillment(current, next) {
		return &InvalidTransitionError{Kind: StatusKindFulfillment, From: string(current), To: string(next)}
	}
	return nil
}
