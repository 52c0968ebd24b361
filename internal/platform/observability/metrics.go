package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const metricNamespace = "github.com/aster-goods/commerce"

// OrderMetrics bundles the counters recorded by the order flows. Counters
// that fail to register degrade to no-ops rather than blocking startup.
type OrderMetrics struct {
	ordersCreated       metric.Int64Counter
	createdEnabled      bool
	ordersCanceled      metric.Int64Counter
	canceledEnabled     bool
	reservationsExpired metric.Int64Counter
	expiredEnabled      bool
}

// NewOrderMetrics registers the order counters on the supplied meter, or the
// global meter provider when nil.
func NewOrderMetrics(meter metric.Meter, logger *zap.Logger) *OrderMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(metricNamespace)
	}

	m := &OrderMetrics{}

	created, err := meter.Int64Counter(
		"orders.created",
		metric.WithDescription("Count of orders created"),
	)
	if err != nil {
		logger.Warn("metrics: unable to register orders.created", zap.Error(err))
	} else {
		m.ordersCreated = created
		m.createdEnabled = true
	}

	canceled, err := meter.Int64Counter(
		"orders.canceled",
		metric.WithDescription("Count of orders canceled"),
	)
	if err != nil {
		logger.Warn("metrics: unable to register orders.canceled", zap.Error(err))
	} else {
		m.ordersCanceled = canceled
		m.canceledEnabled = true
	}

	expired, err := meter.Int64Counter(
		"orders.reservations_expired",
		metric.WithDescription("Count of reservations released by the expiry sweep"),
	)
	if err != nil {
		logger.Warn("metrics: unable to register orders.reservations_expired", zap.Error(err))
	} else {
		m.reservationsExpired = expired
		m.expiredEnabled = true
	}

	return m
}

// RecordOrderCreated increments the created counter.
func (m *OrderMetrics) RecordOrderCreated(ctx context.Context) {
	if m == nil || !m.createdEnabled {
		return
	}
	m.ordersCreated.Add(ctx, 1)
}

// RecordOrderCanceled increments the canceled counter.
func (m *OrderMetrics) RecordOrderCanceled(ctx context.Context) {
	if m == nil || !m.canceledEnabled {
		return
	}
	m.ordersCanceled.Add(ctx, 1)
}

// RecordReservationsExpired adds the number of reservations released by one
// sweep pass.
func (m *OrderMetrics) RecordReservationsExpired(ctx context.Context, count int64) {
	if m == nil || !m.expiredEnabled || count <= 0 {
		return
	}
	m.reservationsExpired.Add(ctx, count)
}
