package postgres

import (
	"context"

	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/domain"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type requestRepository struct {
	db *gorm.DB
}

func (r *requestRepository) Create(ctx context.Context, req domain.Request) error {
	rec, err := toRequestModel(req)
	if err != nil {
		return err
	}
	return translate(r.db.WithContext(ctx).Create(&rec).Error, "request "+req.ID)
}

func (r *requestRepository) Get(ctx context.Context, direction domain.RequestDirection, productID, requestID string) (domain.Request, error) {
	var rec requestModel
	err := r.db.WithContext(ctx).
		Where("direction = ? AND product_id = ? AND request_id = ?", string(direction), productID, requestID).
		Take(&rec).Error
	if err != nil {
		return domain.Request{}, translate(err, string(direction)+" request "+requestID)
	}
	return toDomainRequest(rec)
}

func (r *requestRepository) List(ctx context.Context, direction domain.RequestDirection, productID string) ([]domain.Request, error) {
	var rows []requestModel
	if err := r.db.WithContext(ctx).
		Where("direction = ? AND product_id = ?", string(direction), productID).
		Order("created_at asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Request, 0, len(rows))
	for _, row := range rows {
		req, err := toDomainRequest(row)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

func (r *requestRepository) MarkTypesSent(ctx context.Context, direction domain.RequestDirection, productID, requestID string, documentIDs, typeIDs []string) (domain.Request, int, error) {
	added := 0
	updated, err := r.Mutate(ctx, direction, productID, requestID, func(req *domain.Request) error {
		added = req.MarkTypesSent(documentIDs, typeIDs)
		return nil
	})
	if err != nil {
		return domain.Request{}, 0, err
	}
	return updated, added, nil
}

func (r *requestRepository) Mutate(ctx context.Context, direction domain.RequestDirection, productID, requestID string, fn func(*domain.Request) error) (domain.Request, error) {
	var out domain.Request
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec requestModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("direction = ? AND product_id = ? AND request_id = ?", string(direction), productID, requestID).
			Take(&rec).Error; err != nil {
			return translate(err, string(direction)+" request "+requestID)
		}
		req, err := toDomainRequest(rec)
		if err != nil {
			return err
		}
		if err := fn(&req); err != nil {
			return err
		}
		updated, err := toRequestModel(req)
		if err != nil {
			return err
		}
		if err := tx.Save(&updated).Error; err != nil {
			return err
		}
		out = req
		return nil
	})
	if err != nil {
		return domain.Request{}, err
	}
	return out, nil
}

var _ ports.RequestRepository = (*requestRepository)(nil)
