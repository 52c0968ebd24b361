package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/aster-goods/commerce/internal/domain"
	pfirestore "github.com/aster-goods/commerce/internal/platform/firestore"
)

// OrderEventRepository stores the append-only audit trail underneath an order
// document. Events are inserted with Create so an existing id can never be
// overwritten.
type OrderEventRepository struct {
	provider *pfirestore.Provider
}

// NewOrderEventRepository constructs a Firestore-backed event repository.
func NewOrderEventRepository(provider *pfirestore.Provider) (*OrderEventRepository, error) {
	if provider == nil {
		return nil, errors.New("order event repository requires firestore provider")
	}
	return &OrderEventRepository{provider: provider}, nil
}

// Append records one event. Events are never updated or deleted.
func (r *OrderEventRepository) Append(ctx context.Context, event domain.OrderEvent) error {
	if strings.TrimSpace(event.ID) == "" {
		return errors.New("event append: id is required")
	}
	if strings.TrimSpace(event.OrderID) == "" {
		return errors.New("event append: order id is required")
	}
	if strings.TrimSpace(event.Type) == "" {
		return errors.New("event append: type is required")
	}
	doc := eventDocument{
		Type:      event.Type,
		Data:      event.Data,
		ActorID:   event.ActorID,
		CreatedAt: event.CreatedAt.UTC(),
	}
	return subcollectionCreate(ctx, r.provider, event.OrderID, eventsSubcoll, event.ID, doc, "events.append")
}

// List returns the events for an order in creation order.
func (r *OrderEventRepository) List(ctx context.Context, orderID string) ([]domain.OrderEvent, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, errors.New("event list: order id is required")
	}
	snaps, err := subcollectionQuery(ctx, r.provider, orderID, eventsSubcoll, "events.list")
	if err != nil {
		return nil, err
	}

	events := make([]domain.OrderEvent, 0, len(snaps))
	for _, snap := range snaps {
		var doc eventDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode event %s: %w", snap.Ref.ID, err)
		}
		events = append(events, domain.OrderEvent{
			ID:        snap.Ref.ID,
			OrderID:   orderID,
			Type:      doc.Type,
			Data:      doc.Data,
			ActorID:   doc.ActorID,
			CreatedAt: doc.CreatedAt,
		})
	}
	return events, nil
}
