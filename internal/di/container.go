package di

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aster-goods/commerce/internal/platform/config"
	"github.com/aster-goods/commerce/internal/platform/observability"
	"github.com/aster-goods/commerce/internal/repositories"
	"github.com/aster-goods/commerce/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Orders    services.OrderService
	Inventory services.InventoryService
	Expiry    services.ExpiryService
}

// ContainerDeps carries optional collaborators for NewContainer. Nil fields
// fall back to no-op implementations.
type ContainerDeps struct {
	Logger   *zap.Logger
	Notifier services.OrderNotificationPublisher
	Metrics  *observability.OrderMetrics
}

// Container wires repositories, services, and shared infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
	Metrics      *observability.OrderMetrics
}

// NewContainer constructs the runtime dependencies. Production wiring provides
// the Firestore registry; tests can supply the in-memory one.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, deps ContainerDeps) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	metrics := deps.Metrics
	if metrics == nil {
		metrics = observability.NewOrderMetrics(nil, logger)
	}

	serviceLogger := func(ctx context.Context, event string, fields map[string]any) {
		zapFields := make([]zap.Field, 0, len(fields))
		for k, v := range fields {
			zapFields = append(zapFields, zap.Any(k, v))
		}
		if strings.HasSuffix(event, ".failed") {
			logger.Warn(event, zapFields...)
			return
		}
		logger.Info(event, zapFields...)
	}

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:         reg.Orders(),
		Payments:       reg.OrderPayments(),
		Shipments:      reg.OrderShipments(),
		Events:         reg.OrderEvents(),
		Inventory:      reg.Inventory(),
		Counters:       reg.Counters(),
		UnitOfWork:     reg,
		Clock:          time.Now,
		Notifier:       deps.Notifier,
		Metrics:        metrics,
		Logger:         serviceLogger,
		NumberPrefix:   cfg.Orders.NumberPrefix,
		ReservationTTL: cfg.Inventory.ReservationTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("build order service: %w", err)
	}

	inventorySvc, err := services.NewInventoryService(services.InventoryServiceDeps{
		Inventory: reg.Inventory(),
		Clock:     time.Now,
		Logger:    serviceLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("build inventory service: %w", err)
	}

	expirySvc, err := services.NewExpiryService(services.ExpiryServiceDeps{
		Orders:     reg.Orders(),
		Events:     reg.OrderEvents(),
		Inventory:  reg.Inventory(),
		UnitOfWork: reg,
		Metrics:    metrics,
		Logger:     serviceLogger,
		BatchSize:  cfg.Inventory.SweepBatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("build expiry service: %w", err)
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services: Services{
			Orders:    orderSvc,
			Inventory: inventorySvc,
			Expiry:    expirySvc,
		},
		Metrics: metrics,
	}, nil
}

// Close releases repository clients and other held resources.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}
