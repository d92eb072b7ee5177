package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/domain"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type documentRepository struct {
	db *gorm.DB
}

func (r *documentRepository) Create(ctx context.Context, doc domain.Document) error {
	rec, err := toDocumentModel(doc)
	if err != nil {
		return err
	}
	return translate(r.db.WithContext(ctx).Create(&rec).Error, "document "+doc.ID)
}

func (r *documentRepository) Get(ctx context.Context, productID, documentID string) (domain.Document, error) {
	var rec documentModel
	err := r.db.WithContext(ctx).Where("product_id = ? AND document_id = ?", productID, documentID).Take(&rec).Error
	if err != nil {
		return domain.Document{}, translate(err, "document "+documentID)
	}
	return toDomainDocument(rec)
}

func (r *documentRepository) Exists(ctx context.Context, productID, documentID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&documentModel{}).
		Where("product_id = ? AND document_id = ?", productID, documentID).
		Count(&count).Error
	return count > 0, err
}

func (r *documentRepository) ListByProduct(ctx context.Context, productID string) ([]domain.Document, error) {
	var rows []documentModel
	if err := r.db.WithContext(ctx).Where("product_id = ?", productID).Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := toDomainDocument(row)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (r *documentRepository) Mutate(ctx context.Context, productID, documentID string, fn func(*domain.Document) error) (domain.Document, error) {
	var out domain.Document
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec documentModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("product_id = ? AND document_id = ?", productID, documentID).
			Take(&rec).Error; err != nil {
			return translate(err, "document "+documentID)
		}
		doc, err := toDomainDocument(rec)
		if err != nil {
			return err
		}
		if err := fn(&doc); err != nil {
			return err
		}
		updated, err := toDocumentModel(doc)
		if err != nil {
			return err
		}
		if err := tx.Save(&updated).Error; err != nil {
			return err
		}
		out = doc
		return nil
	})
	if err != nil {
		return domain.Document{}, err
	}
	return out, nil
}

func (r *documentRepository) AppendShareDate(ctx context.Context, productID, documentID, counterpartyID string, at time.Time) (domain.Document, error) {
	return r.Mutate(ctx, productID, documentID, func(d *domain.Document) error {
		d.AppendShareDate(counterpartyID, at)
		d.UpdatedAt = at
		return nil
	})
}

// SetShareEntry writes one element of shared_with in place. An index equal to the array length
// appends.
func (r *documentRepository) SetShareEntry(ctx context.Context, productID, documentID string, index int, entry domain.ShareEntry) error {
	if index < 0 {
		return fmt.Errorf("%w: share index %d out of range", domain.ErrInvalidOperation, index)
	}
	raw, err := toJSON(entry)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Model(&documentModel{}).
		Where("product_id = ? AND document_id = ? AND jsonb_array_length(shared_with) >= ?", productID, documentID, index).
		Updates(map[string]any{
			"shared_with": gorm.Expr("jsonb_set(shared_with, ?::text[], ?::jsonb, true)", fmt.Sprintf("{%d}", index), string(raw)),
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: document %s share index %d", domain.ErrItemNotFound, documentID, index)
	}
	return nil
}

func (r *documentRepository) Delete(ctx context.Context, productID, documentID string) error {
	res := r.db.WithContext(ctx).Where("product_id = ? AND document_id = ?", productID, documentID).Delete(&documentModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: document %s", domain.ErrItemNotFound, documentID)
	}
	return nil
}

var _ ports.DocumentRepository = (*documentRepository)(nil)
