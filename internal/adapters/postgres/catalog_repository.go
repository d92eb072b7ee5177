package postgres

import (
	"context"
	"fmt"

	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/domain"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/ports"
	"gorm.io/gorm"
)

type catalogRepository struct {
	db *gorm.DB
}

func (r *catalogRepository) CreateCategory(ctx context.Context, c domain.Category) error {
	rec := categoryModel{ProductID: c.ProductID, CategoryID: c.ID, Name: c.Name, Predefined: c.Predefined, CreatedAt: utc(c.CreatedAt)}
	return translate(r.db.WithContext(ctx).Create(&rec).Error, "category "+c.ID)
}

func (r *catalogRepository) GetCategory(ctx context.Context, productID, id string) (domain.Category, error) {
	var rec categoryModel
	if err := r.db.WithContext(ctx).Where("product_id = ? AND category_id = ?", productID, id).Take(&rec).Error; err != nil {
		return domain.Category{}, translate(err, "category "+id)
	}
	return toDomainCategory(rec), nil
}

func (r *catalogRepository) ListCategories(ctx context.Context, productID string) ([]domain.Category, error) {
	var rows []categoryModel
	if err := r.db.WithContext(ctx).Where("product_id = ?", productID).Order("name asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Category, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainCategory(row))
	}
	return out, nil
}

func (r *catalogRepository) UpdateCategory(ctx context.Context, c domain.Category) error {
	res := r.db.WithContext(ctx).Model(&categoryModel{}).
		Where("product_id = ? AND category_id = ?", c.ProductID, c.ID).
		Update("name", c.Name)
	return affected(res, "category "+c.ID)
}

func (r *catalogRepository) DeleteCategory(ctx context.Context, productID, id string) error {
	res := r.db.WithContext(ctx).Where("product_id = ? AND category_id = ?", productID, id).Delete(&categoryModel{})
	return affected(res, "category "+id)
}

func (r *catalogRepository) CreateType(ctx context.Context, t domain.DocumentType) error {
	rec := documentTypeModel{ProductID: t.ProductID, TypeID: t.ID, CategoryID: t.CategoryID, Name: t.Name, Predefined: t.Predefined, CreatedAt: utc(t.CreatedAt)}
	return translate(r.db.WithContext(ctx).Create(&rec).Error, "document type "+t.ID)
}

func (r *catalogRepository) GetType(ctx context.Context, productID, id string) (domain.DocumentType, error) {
	var rec documentTypeModel
	if err := r.db.WithContext(ctx).Where("product_id = ? AND type_id = ?", productID, id).Take(&rec).Error; err != nil {
		return domain.DocumentType{}, translate(err, "document type "+id)
	}
	return toDomainType(rec), nil
}

func (r *catalogRepository) ListTypes(ctx context.Context, productID string) ([]domain.DocumentType, error) {
	var rows []documentTypeModel
	if err := r.db.WithContext(ctx).Where("product_id = ?", productID).Order("name asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.DocumentType, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainType(row))
	}
	return out, nil
}

func (r *catalogRepository) UpdateType(ctx context.Context, t domain.DocumentType) error {
	res := r.db.WithContext(ctx).Model(&documentTypeModel{}).
		Where("product_id = ? AND type_id = ?", t.ProductID, t.ID).
		Updates(map[string]any{"name": t.Name, "category_id": t.CategoryID})
	return affected(res, "document type "+t.ID)
}

func (r *catalogRepository) DeleteType(ctx context.Context, productID, id string) error {
	res := r.db.WithContext(ctx).Where("product_id = ? AND type_id = ?", productID, id).Delete(&documentTypeModel{})
	return affected(res, "document type "+id)
}

func (r *catalogRepository) CreateTemplate(ctx context.Context, t domain.Template) error {
	rec := templateModel{ProductID: t.ProductID, TemplateID: t.ID, TypeID: t.TypeID, Name: t.Name, FileID: t.FileID, CreatedAt: utc(t.CreatedAt)}
	return translate(r.db.WithContext(ctx).Create(&rec).Error, "template "+t.ID)
}

func (r *catalogRepository) GetTemplate(ctx context.Context, productID, id string) (domain.Template, error) {
	var rec templateModel
	if err := r.db.WithContext(ctx).Where("product_id = ? AND template_id = ?", productID, id).Take(&rec).Error; err != nil {
		return domain.Template{}, translate(err, "template "+id)
	}
	return toDomainTemplate(rec), nil
}

func (r *catalogRepository) ListTemplates(ctx context.Context, productID string) ([]domain.Template, error) {
	var rows []templateModel
	if err := r.db.WithContext(ctx).Where("product_id = ?", productID).Order("name asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Template, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainTemplate(row))
	}
	return out, nil
}

func (r *catalogRepository) DeleteTemplate(ctx context.Context, productID, id string) error {
	res := r.db.WithContext(ctx).Where("product_id = ? AND template_id = ?", productID, id).Delete(&templateModel{})
	return affected(res, "template "+id)
}

func affected(res *gorm.DB, what string) error {
	if res.Error != nil {
		return translate(res.Error, what)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrItemNotFound, what)
	}
	return nil
}

func toDomainCategory(m categoryModel) domain.Category {
	return domain.Category{ID: m.CategoryID, ProductID: m.ProductID, Name: m.Name, Predefined: m.Predefined, CreatedAt: m.CreatedAt.UTC()}
}

func toDomainType(m documentTypeModel) domain.DocumentType {
	return domain.DocumentType{ID: m.TypeID, ProductID: m.ProductID, CategoryID: m.CategoryID, Name: m.Name, Predefined: m.Predefined, CreatedAt: m.CreatedAt.UTC()}
}

func toDomainTemplate(m templateModel) domain.Template {
	return domain.Template{ID: m.TemplateID, ProductID: m.ProductID, TypeID: m.TypeID, Name: m.Name, FileID: m.FileID, CreatedAt: m.CreatedAt.UTC()}
}

var _ ports.CatalogRepository = (*catalogRepository)(nil)
