package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/domain"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/ports"
)

func (s *Service) CreateCategory(ctx context.Context, productID string, in CategoryInput) (domain.Category, error) {
	name := strings.TrimSpace(in.Name)
	if err := domain.ValidateName("category", name); err != nil {
		return domain.Category{}, err
	}
	category := domain.Category{
		ID:        uuid.NewString(),
		ProductID: productID,
		Name:      name,
		CreatedAt: s.nowFn(),
	}
	if err := s.catalog.CreateCategory(ctx, category); err != nil {
		return domain.Category{}, err
	}
	return category, nil
}

func (s *Service) ListCategories(ctx context.Context, productID string) ([]domain.Category, error) {
	return s.catalog.ListCategories(ctx, productID)
}

func (s *Service) RenameCategory(ctx context.Context, productID, categoryID string, in CategoryInput) (domain.Category, error) {
	name := strings.TrimSpace(in.Name)
	if err := domain.ValidateName("category", name); err != nil {
		return domain.Category{}, err
	}
	category, err := s.catalog.GetCategory(ctx, productID, categoryID)
	if err != nil {
		return domain.Category{}, err
	}
	if err := category.EnsureMutable(); err != nil {
		return domain.Category{}, err
	}
	category.Name = name
	if err := s.catalog.UpdateCategory(ctx, category); err != nil {
		return domain.Category{}, err
	}
	return category, nil
}

// DeleteCategory refuses predefined categories and categories that still hold types.
func (s *Service) DeleteCategory(ctx context.Context, productID, categoryID string) error {
	category, err := s.catalog.GetCategory(ctx, productID, categoryID)
	if err != nil {
		return err
	}
	if err := category.EnsureMutable(); err != nil {
		return err
	}
	types, err := s.catalog.ListTypes(ctx, productID)
	if err != nil {
		return err
	}
	for _, t := range types {
		if t.CategoryID == categoryID {
			return fmt.Errorf("%w: category %s still has document types", domain.ErrInvalidOperation, category.Name)
		}
	}
	return s.catalog.DeleteCategory(ctx, productID, categoryID)
}

func (s *Service) CreateDocumentType(ctx context.Context, productID string, in DocumentTypeInput) (domain.DocumentType, error) {
	name := strings.TrimSpace(in.Name)
	if err := domain.ValidateName("document type", name); err != nil {
		return domain.DocumentType{}, err
	}
	if _, err := s.catalog.GetCategory(ctx, productID, in.CategoryID); err != nil {
		return domain.DocumentType{}, err
	}
	docType := domain.DocumentType{
		ID:         uuid.NewString(),
		ProductID:  productID,
		CategoryID: in.CategoryID,
		Name:       name,
		CreatedAt:  s.nowFn(),
	}
	if err := s.catalog.CreateType(ctx, docType); err != nil {
		return domain.DocumentType{}, err
	}
	return docType, nil
}

func (s *Service) ListDocumentTypes(ctx context.Context, productID string) ([]domain.DocumentType, error) {
	return s.catalog.ListTypes(ctx, productID)
}

func (s *Service) UpdateDocumentType(ctx context.Context, productID, typeID string, in DocumentTypeInput) (domain.DocumentType, error) {
	docType, err := s.catalog.GetType(ctx, productID, typeID)
	if err != nil {
		return domain.DocumentType{}, err
	}
	if err := docType.EnsureMutable(); err != nil {
		return domain.DocumentType{}, err
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		if err := domain.ValidateName("document type", name); err != nil {
			return domain.DocumentType{}, err
		}
		docType.Name = name
	}
	if in.CategoryID != "" && in.CategoryID != docType.CategoryID {
		if _, err := s.catalog.GetCategory(ctx, productID, in.CategoryID); err != nil {
			return domain.DocumentType{}, err
		}
		docType.CategoryID = in.CategoryID
	}
	if err := s.catalog.UpdateType(ctx, docType); err != nil {
		return domain.DocumentType{}, err
	}
	return docType, nil
}

func (s *Service) DeleteDocumentType(ctx context.Context, productID, typeID string) error {
	docType, err := s.catalog.GetType(ctx, productID, typeID)
	if err != nil {
		return err
	}
	if err := docType.EnsureMutable(); err != nil {
		return err
	}
	return s.catalog.DeleteType(ctx, productID, typeID)
}

func (s *Service) CreateTemplate(ctx context.Context, productID string, in TemplateInput) (domain.Template, error) {
	name := strings.TrimSpace(in.Name)
	if err := domain.ValidateName("template", name); err != nil {
		return domain.Template{}, err
	}
	if _, err := s.catalog.GetType(ctx, productID, in.TypeID); err != nil {
		return domain.Template{}, err
	}
	template := domain.Template{
		ID:        uuid.NewString(),
		ProductID: productID,
		TypeID:    in.TypeID,
		Name:      name,
		FileID:    in.FileID,
		CreatedAt: s.nowFn(),
	}
	if err := s.catalog.CreateTemplate(ctx, template); err != nil {
		return domain.Template{}, err
	}
	return template, nil
}

func (s *Service) GetTemplate(ctx context.Context, productID, templateID string) (domain.Template, error) {
	return s.catalog.GetTemplate(ctx, productID, templateID)
}

func (s *Service) ListTemplates(ctx context.Context, productID string) ([]domain.Template, error) {
	return s.catalog.ListTemplates(ctx, productID)
}

func (s *Service) DeleteTemplate(ctx context.Context, productID, templateID string) error {
	return s.catalog.DeleteTemplate(ctx, productID, templateID)
}

func (s *Service) UpsertCompany(ctx context.Context, company domain.Company) (domain.Company, error) {
	company.ID = strings.TrimSpace(company.ID)
	if company.ID == "" {
		return domain.Company{}, fmt.Errorf("%w: company id is required", domain.ErrInvalidItem)
	}
	if err := domain.ValidateName("company", company.Name); err != nil {
		return domain.Company{}, err
	}
	if err := s.companies.Upsert(ctx, company); err != nil {
		return domain.Company{}, err
	}
	if forgetter, ok := s.directory.(ports.DirectoryInvalidator); ok {
		if err := forgetter.Forget(ctx, company.ID); err != nil {
			s.log(ctx, "upsert_company").WarnContext(ctx, "company name cache not invalidated",
				"outcome", "degraded",
				"company_id", company.ID,
				"error", err,
			)
		}
	}
	return company, nil
}

func (s *Service) ListCompanies(ctx context.Context) ([]domain.Company, error) {
	return s.companies.List(ctx)
}
