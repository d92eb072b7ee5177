package postgres

import (
	"context"

	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/domain"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ledgerRepository struct {
	db *gorm.DB
}

func (r *ledgerRepository) Create(ctx context.Context, entry domain.LedgerEntry) error {
	rec, err := toLedgerModel(entry)
	if err != nil {
		return err
	}
	return translate(r.db.WithContext(ctx).Create(&rec).Error, "share "+entry.ShareID)
}

func (r *ledgerRepository) Get(ctx context.Context, kind domain.LedgerKind, productID, id string) (domain.LedgerEntry, error) {
	return r.take(ctx, string(kind)+" documents "+id, "kind = ? AND product_id = ? AND ledger_id = ?", string(kind), productID, id)
}

func (r *ledgerRepository) GetByShareID(ctx context.Context, kind domain.LedgerKind, productID, shareID string) (domain.LedgerEntry, error) {
	return r.take(ctx, string(kind)+" documents for share "+shareID, "kind = ? AND product_id = ? AND share_id = ?", string(kind), productID, shareID)
}

func (r *ledgerRepository) take(ctx context.Context, what, query string, args ...any) (domain.LedgerEntry, error) {
	var rec ledgerModel
	if err := r.db.WithContext(ctx).Where(query, args...).Take(&rec).Error; err != nil {
		return domain.LedgerEntry{}, translate(err, what)
	}
	return toDomainLedger(rec)
}

func (r *ledgerRepository) List(ctx context.Context, kind domain.LedgerKind, productID string) ([]domain.LedgerEntry, error) {
	return r.find(ctx, "kind = ? AND product_id = ?", string(kind), productID)
}

func (r *ledgerRepository) ListByRequest(ctx context.Context, kind domain.LedgerKind, productID, requestID string) ([]domain.LedgerEntry, error) {
	return r.find(ctx, "kind = ? AND product_id = ? AND request_id = ?", string(kind), productID, requestID)
}

func (r *ledgerRepository) find(ctx context.Context, query string, args ...any) ([]domain.LedgerEntry, error) {
	var rows []ledgerModel
	if err := r.db.WithContext(ctx).Where(query, args...).Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := toDomainLedger(row)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

func (r *ledgerRepository) Mutate(ctx context.Context, kind domain.LedgerKind, productID, id string, fn func(*domain.LedgerEntry) error) (domain.LedgerEntry, error) {
	var out domain.LedgerEntry
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec ledgerModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("kind = ? AND product_id = ? AND ledger_id = ?", string(kind), productID, id).
			Take(&rec).Error; err != nil {
			return translate(err, string(kind)+" documents "+id)
		}
		entry, err := toDomainLedger(rec)
		if err != nil {
			return err
		}
		if err := fn(&entry); err != nil {
			return err
		}
		updated, err := toLedgerModel(entry)
		if err != nil {
			return err
		}
		if err := tx.Save(&updated).Error; err != nil {
			return err
		}
		out = entry
		return nil
	})
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	return out, nil
}

var _ ports.LedgerRepository = (*ledgerRepository)(nil)
