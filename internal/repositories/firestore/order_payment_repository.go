package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/aster-goods/commerce/internal/domain"
	pfirestore "github.com/aster-goods/commerce/internal/platform/firestore"
)

// OrderPaymentRepository stores payment records underneath an order document.
type OrderPaymentRepository struct {
	provider *pfirestore.Provider
}

// NewOrderPaymentRepository constructs a Firestore-backed payment repository.
func NewOrderPaymentRepository(provider *pfirestore.Provider) (*OrderPaymentRepository, error) {
	if provider == nil {
		return nil, errors.New("order payment repository requires firestore provider")
	}
	return &OrderPaymentRepository{provider: provider}, nil
}

// Insert creates a payment record under its order.
func (r *OrderPaymentRepository) Insert(ctx context.Context, payment domain.Payment) error {
	if strings.TrimSpace(payment.ID) == "" {
		return errors.New("payment insert: id is required")
	}
	if strings.TrimSpace(payment.OrderID) == "" {
		return errors.New("payment insert: order id is required")
	}
	doc := paymentDocument{
		Amount:    payment.Amount,
		Method:    payment.Method,
		Status:    payment.Status,
		CreatedAt: payment.CreatedAt.UTC(),
	}
	return subcollectionCreate(ctx, r.provider, payment.OrderID, paymentsSubcoll, payment.ID, doc, "payments.insert")
}

// List returns the payments for an order in creation order.
func (r *OrderPaymentRepository) List(ctx context.Context, orderID string) ([]domain.Payment, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, errors.New("payment list: order id is required")
	}
	snaps, err := subcollectionQuery(ctx, r.provider, orderID, paymentsSubcoll, "payments.list")
	if err != nil {
		return nil, err
	}

	payments := make([]domain.Payment, 0, len(snaps))
	for _, snap := range snaps {
		var doc paymentDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode payment %s: %w", snap.Ref.ID, err)
		}
		payments = append(payments, domain.Payment{
			ID:        snap.Ref.ID,
			OrderID:   orderID,
			Amount:    doc.Amount,
			Method:    doc.Method,
			Status:    doc.Status,
			CreatedAt: doc.CreatedAt,
		})
	}
	return payments, nil
}
