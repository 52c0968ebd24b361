package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/aster-goods/commerce/internal/domain"
	pfirestore "github.com/aster-goods/commerce/internal/platform/firestore"
	"github.com/aster-goods/commerce/internal/repositories"
)

const defaultListLimit = 20

// OrderRepository implements repositories.OrderRepository on Firestore.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		orders:   pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil),
	}, nil
}

// Insert creates the order document, failing when the id already exists.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order insert: id is required")
	}
	ref, err := r.orders.DocumentRef(ctx, order.ID)
	if err != nil {
		return err
	}
	doc := newOrderDocument(order)

	if tx, ok := pfirestore.TxFromContext(ctx); ok {
		return pfirestore.WrapError("orders.insert", tx.Create(ref, doc))
	}
	_, err = ref.Create(ctx, doc)
	return pfirestore.WrapError("orders.insert", err)
}

// Update replaces the order document.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order update: id is required")
	}
	ref, err := r.orders.DocumentRef(ctx, order.ID)
	if err != nil {
		return err
	}
	doc := newOrderDocument(order)

	if tx, ok := pfirestore.TxFromContext(ctx); ok {
		return pfirestore.WrapError("orders.update", tx.Set(ref, doc))
	}
	_, err = ref.Set(ctx, doc)
	return pfirestore.WrapError("orders.update", err)
}

// FindByID loads a single order header.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	ref, err := r.orders.DocumentRef(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	var snap *firestore.DocumentSnapshot
	if tx, ok := pfirestore.TxFromContext(ctx); ok {
		snap, err = tx.Get(ref)
	} else {
		snap, err = ref.Get(ctx)
	}
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.get", err)
	}

	var doc orderDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Order{}, fmt.Errorf("decode order %s: %w", orderID, err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

// List returns a page of orders matching the filter, newest first, along with
// the total match count.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.Page[domain.Order], error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	applyFilter := func(query firestore.Query) firestore.Query {
		if filter.OrderStatus != "" {
			query = query.Where("orderStatus", "==", string(filter.OrderStatus))
		}
		if filter.PaymentStatus != "" {
			query = query.Where("paymentStatus", "==", string(filter.PaymentStatus))
		}
		if filter.FulfillmentStatus != "" {
			query = query.Where("fulfillmentStatus", "==", string(filter.FulfillmentStatus))
		}
		return query
	}

	total, err := r.orders.Count(ctx, applyFilter)
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}

	docs, err := r.orders.Query(ctx, func(query firestore.Query) firestore.Query {
		query = applyFilter(query)
		return query.OrderBy("createdAt", firestore.Desc).Offset(offset).Limit(limit)
	})
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}

	items := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.Data.toDomain(doc.ID))
	}
	return domain.Page[domain.Order]{Items: items, TotalCount: total}, nil
}

// ListExpired returns orders still in the given status whose reservation
// deadline passed before now.
func (r *OrderRepository) ListExpired(ctx context.Context, orderStatus domain.OrderStatus, now time.Time, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	docs, err := r.orders.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("orderStatus", "==", string(orderStatus)).
			Where("reservationExpiresAt", "<", now.UTC()).
			OrderBy("reservationExpiresAt", firestore.Asc).
			Limit(limit)
	})
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, doc.Data.toDomain(doc.ID))
	}
	return orders, nil
}

// subcollectionQuery reads documents underneath an order, joining any ambient
// transaction.
func subcollectionQuery(ctx context.Context, provider *pfirestore.Provider, orderID, subcoll, op string) ([]*firestore.DocumentSnapshot, error) {
	client, err := provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	query := client.Collection(ordersCollection).Doc(orderID).Collection(subcoll).
		OrderBy("createdAt", firestore.Asc)

	var iter *firestore.DocumentIterator
	if tx, ok := pfirestore.TxFromContext(ctx); ok {
		iter = tx.Documents(query)
	} else {
		iter = query.Documents(ctx)
	}
	defer iter.Stop()

	var snaps []*firestore.DocumentSnapshot
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError(op, err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// subcollectionCreate inserts a document underneath an order, joining any
// ambient transaction.
func subcollectionCreate(ctx context.Context, provider *pfirestore.Provider, orderID, subcoll, id string, doc any, op string) error {
	client, err := provider.Client(ctx)
	if err != nil {
		return err
	}
	ref := client.Collection(ordersCollection).Doc(orderID).Collection(subcoll).Doc(id)

	if tx, ok := pfirestore.TxFromContext(ctx); ok {
		return pfirestore.WrapError(op, tx.Create(ref, doc))
	}
	_, err = ref.Create(ctx, doc)
	return pfirestore.WrapError(op, err)
}
