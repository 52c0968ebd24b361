package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/aster-goods/commerce/internal/platform/firestore"
	"github.com/aster-goods/commerce/internal/repositories"
)

// Registry wires the Firestore-backed repositories behind the repositories.Registry interface.
type Registry struct {
	provider  *pfirestore.Provider
	orders    *OrderRepository
	payments  *OrderPaymentRepository
	shipments *OrderShipmentRepository
	events    *OrderEventRepository
	inventory *InventoryRepository
	counters  *CounterRepository
}

// NewRegistry constructs the registry and all repositories on a shared provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry requires provider")
	}

	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	payments, err := NewOrderPaymentRepository(provider)
	if err != nil {
		return nil, err
	}
	shipments, err := NewOrderShipmentRepository(provider)
	if err != nil {
		return nil, err
	}
	events, err := NewOrderEventRepository(provider)
	if err != nil {
		return nil, err
	}
	inventory, err := NewInventoryRepository(provider)
	if err != nil {
		return nil, err
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:  provider,
		orders:    orders,
		payments:  payments,
		shipments: shipments,
		events:    events,
		inventory: inventory,
		counters:  counters,
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

func (r *Registry) Orders() repositories.OrderRepository                 { return r.orders }
func (r *Registry) OrderPayments() repositories.OrderPaymentRepository   { return r.payments }
func (r *Registry) OrderShipments() repositories.OrderShipmentRepository { return r.shipments }
func (r *Registry) OrderEvents() repositories.OrderEventRepository       { return r.events }
func (r *Registry) Inventory() repositories.InventoryRepository          { return r.inventory }
func (r *Registry) Counters() repositories.CounterRepository             { return r.counters }

// RunInTx executes fn inside a single Firestore transaction. Repository calls
// made within fn pick the transaction up from the context and join it.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil || r.provider == nil {
		return errors.New("firestore registry not initialised")
	}
	if fn == nil {
		return errors.New("firestore registry: transaction function is nil")
	}
	return r.provider.RunTransaction(ctx, func(ctx context.Context, _ *firestore.Transaction) error {
		return fn(ctx)
	})
}
