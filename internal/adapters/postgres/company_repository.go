package postgres

import (
	"context"

	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/domain"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type companyRepository struct {
	db *gorm.DB
}

func (r *companyRepository) Get(ctx context.Context, companyID string) (domain.Company, error) {
	var rec companyModel
	if err := r.db.WithContext(ctx).Where("company_id = ?", companyID).Take(&rec).Error; err != nil {
		return domain.Company{}, translate(err, "company "+companyID)
	}
	return domain.Company{ID: rec.CompanyID, Name: rec.Name}, nil
}

func (r *companyRepository) Upsert(ctx context.Context, company domain.Company) error {
	rec := companyModel{CompanyID: company.ID, Name: company.Name}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "company_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name"}),
	}).Create(&rec).Error
}

func (r *companyRepository) List(ctx context.Context) ([]domain.Company, error) {
	var rows []companyModel
	if err := r.db.WithContext(ctx).Order("name asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Company, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.Company{ID: row.CompanyID, Name: row.Name})
	}
	return out, nil
}

var _ ports.CompanyRepository = (*companyRepository)(nil)
