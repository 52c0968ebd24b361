package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/aster-goods/commerce/internal/domain"
	pfirestore "github.com/aster-goods/commerce/internal/platform/firestore"
)

// OrderShipmentRepository stores fulfillment records underneath an order document.
type OrderShipmentRepository struct {
	provider *pfirestore.Provider
}

// NewOrderShipmentRepository constructs a Firestore-backed shipment repository.
func NewOrderShipmentRepository(provider *pfirestore.Provider) (*OrderShipmentRepository, error) {
	if provider == nil {
		return nil, errors.New("order shipment repository requires firestore provider")
	}
	return &OrderShipmentRepository{provider: provider}, nil
}

// Insert creates a shipment record under its order.
func (r *OrderShipmentRepository) Insert(ctx context.Context, shipment domain.Shipment) error {
	if strings.TrimSpace(shipment.ID) == "" {
		return errors.New("shipment insert: id is required")
	}
	if strings.TrimSpace(shipment.OrderID) == "" {
		return errors.New("shipment insert: order id is required")
	}
	doc := shipmentDocument{
		Carrier:      shipment.Carrier,
		Service:      shipment.Service,
		TrackingCode: shipment.TrackingCode,
		CreatedAt:    shipment.CreatedAt.UTC(),
	}
	return subcollectionCreate(ctx, r.provider, shipment.OrderID, shipmentsSubcoll, shipment.ID, doc, "shipments.insert")
}

// List returns the shipments for an order in creation order.
func (r *OrderShipmentRepository) List(ctx context.Context, orderID string) ([]domain.Shipment, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, errors.New("shipment list: order id is required")
	}
	snaps, err := subcollectionQuery(ctx, r.provider, orderID, shipmentsSubcoll, "shipments.list")
	if err != nil {
		return nil, err
	}

	shipments := make([]domain.Shipment, 0, len(snaps))
	for _, snap := range snaps {
		var doc shipmentDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode shipment %s: %w", snap.Ref.ID, err)
		}
		shipments = append(shipments, domain.Shipment{
			ID:           snap.Ref.ID,
			OrderID:      orderID,
			Carrier:      doc.Carrier,
			Service:      doc.Service,
			TrackingCode: doc.TrackingCode,
			CreatedAt:    doc.CreatedAt,
		})
	}
	return shipments, nil
}
