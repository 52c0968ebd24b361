package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/aster-goods/commerce/internal/domain"
	pfirestore "github.com/aster-goods/commerce/internal/platform/firestore"
	"github.com/aster-goods/commerce/internal/repositories"
)

// InventoryRepository maintains per-SKU stock counters. Every mutation runs
// inside a Firestore transaction; all stock documents are read and validated
// before the first write so whole-call atomicity holds across lines.
type InventoryRepository struct {
	provider *pfirestore.Provider
	stocks   *pfirestore.BaseRepository[stockDocument]
}

// NewInventoryRepository constructs a Firestore-backed inventory ledger.
func NewInventoryRepository(provider *pfirestore.Provider) (*InventoryRepository, error) {
	if provider == nil {
		return nil, errors.New("inventory repository requires firestore provider")
	}
	return &InventoryRepository{
		provider: provider,
		stocks:   pfirestore.NewBaseRepository[stockDocument](provider, inventoryCollection, nil, nil),
	}, nil
}

// Reserve increments qtyReserved for each line after checking availability.
// The first line lacking stock fails the whole call with no writes applied.
func (r *InventoryRepository) Reserve(ctx context.Context, lines []repositories.InventoryLine, now time.Time) error {
	return r.mutate(ctx, "inventory.reserve", lines, now, func(sku string, qty int, doc *stockDocument) error {
		if doc.OnHand-doc.Reserved < qty {
			return repositories.NewInventoryError(repositories.InventoryErrorInsufficientStock, sku, fmt.Sprintf("insufficient stock for %s", sku), nil)
		}
		doc.Reserved += qty
		return nil
	})
}

// Release decrements qtyReserved for each line, flooring at zero so a double
// release is a harmless no-op.
func (r *InventoryRepository) Release(ctx context.Context, lines []repositories.InventoryLine, now time.Time) error {
	return r.mutate(ctx, "inventory.release", lines, now, func(sku string, qty int, doc *stockDocument) error {
		doc.Reserved -= qty
		if doc.Reserved < 0 {
			doc.Reserved = 0
		}
		return nil
	})
}

// Commit converts reservations into physical deductions, decrementing both
// qtyOnHand and qtyReserved. A commit without a matching reservation fails.
func (r *InventoryRepository) Commit(ctx context.Context, lines []repositories.InventoryLine, now time.Time) error {
	return r.mutate(ctx, "inventory.commit", lines, now, func(sku string, qty int, doc *stockDocument) error {
		if doc.Reserved < qty || doc.OnHand < qty {
			return repositories.NewInventoryError(repositories.InventoryErrorCannotCommit, sku, fmt.Sprintf("cannot commit %d of %s", qty, sku), nil)
		}
		doc.Reserved -= qty
		doc.OnHand -= qty
		return nil
	})
}

func (r *InventoryRepository) mutate(ctx context.Context, op string, lines []repositories.InventoryLine, now time.Time, apply func(sku string, qty int, doc *stockDocument) error) error {
	if r == nil || r.provider == nil {
		return errors.New("inventory repository not initialised")
	}
	if len(lines) == 0 {
		return errors.New(op + ": at least one line is required")
	}
	for _, line := range lines {
		if strings.TrimSpace(line.SKU) == "" {
			return errors.New(op + ": sku is required")
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("%s: quantity for %s must be > 0", op, line.SKU)
		}
	}

	// Repeated SKUs collapse into one aggregated line; each stock document is
	// read and written exactly once per transaction.
	merged := mergeLines(lines)

	now = now.UTC()
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		refs := make([]*firestore.DocumentRef, len(merged))
		docs := make([]stockDocument, len(merged))

		// All reads happen before the first write.
		for i, line := range merged {
			sku := line.SKU
			ref, err := r.stocks.DocumentRef(ctx, sku)
			if err != nil {
				return err
			}
			refs[i] = ref

			snap, err := tx.Get(ref)
			switch status.Code(err) {
			case codes.OK:
				if err := snap.DataTo(&docs[i]); err != nil {
					return fmt.Errorf("decode inventory stock %s: %w", sku, err)
				}
			case codes.NotFound:
				docs[i] = stockDocument{SKU: sku}
			default:
				return err
			}
			if docs[i].SKU == "" {
				docs[i].SKU = sku
			}
		}

		for i, line := range merged {
			if err := apply(docs[i].SKU, line.Quantity, &docs[i]); err != nil {
				return err
			}
			docs[i].UpdatedAt = now
			docs[i].recalculate()
		}

		for i := range merged {
			if err := tx.Set(refs[i], docs[i]); err != nil {
				return err
			}
		}
		return nil
	})
	return wrapInventoryError(op, err)
}

// mergeLines sums quantities per SKU, preserving first-seen order and
// trimming SKU whitespace. An order holding the same SKU on two lines
// must debit the ledger once with the combined quantity.
func mergeLines(lines []repositories.InventoryLine) []repositories.InventoryLine {
	merged := make([]repositories.InventoryLine, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, line := range lines {
		sku := strings.TrimSpace(line.SKU)
		if i, ok := index[sku]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[sku] = len(merged)
		merged = append(merged, repositories.InventoryLine{SKU: sku, Quantity: line.Quantity})
	}
	return merged
}

// AdjustStock sets the on-hand level for a SKU, creating the record when
// missing. Reserved stock is preserved; onHand never drops below reserved.
func (r *InventoryRepository) AdjustStock(ctx context.Context, adjustment repositories.StockAdjustment) (domain.InventoryRecord, error) {
	if r == nil || r.provider == nil {
		return domain.InventoryRecord{}, errors.New("inventory repository not initialised")
	}
	sku := strings.TrimSpace(adjustment.SKU)
	if sku == "" {
		return domain.InventoryRecord{}, errors.New("inventory adjust: sku is required")
	}
	if adjustment.QtyOnHand < 0 {
		return domain.InventoryRecord{}, fmt.Errorf("inventory adjust: onHand for %s must be >= 0", sku)
	}

	now := adjustment.Now.UTC()
	var result domain.InventoryRecord

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.stocks.DocumentRef(ctx, sku)
		if err != nil {
			return err
		}

		doc := stockDocument{SKU: sku}
		snap, err := tx.Get(ref)
		switch status.Code(err) {
		case codes.OK:
			if err := snap.DataTo(&doc); err != nil {
				return fmt.Errorf("decode inventory stock %s: %w", sku, err)
			}
		case codes.NotFound:
			// new record
		default:
			return err
		}

		if adjustment.QtyOnHand < doc.Reserved {
			return repositories.NewInventoryError(repositories.InventoryErrorInsufficientStock, sku, fmt.Sprintf("onHand below reserved for %s", sku), nil)
		}

		doc.SKU = sku
		doc.OnHand = adjustment.QtyOnHand
		doc.UpdatedAt = now
		doc.recalculate()

		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		result = doc.toDomain(sku)
		return nil
	})
	if err != nil {
		return domain.InventoryRecord{}, wrapInventoryError("inventory.adjust", err)
	}
	return result, nil
}

// Get loads the stock record for one SKU.
func (r *InventoryRepository) Get(ctx context.Context, sku string) (domain.InventoryRecord, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return domain.InventoryRecord{}, errors.New("inventory get: sku is required")
	}
	ref, err := r.stocks.DocumentRef(ctx, sku)
	if err != nil {
		return domain.InventoryRecord{}, err
	}

	var snap *firestore.DocumentSnapshot
	if tx, ok := pfirestore.TxFromContext(ctx); ok {
		snap, err = tx.Get(ref)
	} else {
		snap, err = ref.Get(ctx)
	}
	if err != nil {
		return domain.InventoryRecord{}, pfirestore.WrapError("inventory.get", err)
	}

	var doc stockDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.InventoryRecord{}, fmt.Errorf("decode inventory stock %s: %w", sku, err)
	}
	return doc.toDomain(sku), nil
}

// wrapInventoryError keeps typed inventory errors intact while giving other
// failures repository semantics.
func wrapInventoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		if invErr.Op == "" {
			invErr.Op = op
		}
		return invErr
	}
	return pfirestore.WrapError(op, err)
}
