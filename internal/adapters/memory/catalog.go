package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/domain"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/ports"
)

type CatalogRepository struct {
	mu         sync.Mutex
	categories map[string]domain.Category
	types      map[string]domain.DocumentType
	templates  map[string]domain.Template
}

func (r *CatalogRepository) CreateCategory(_ context.Context, c domain.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(c.ProductID, c.ID)
	if _, ok := r.categories[k]; ok {
		return fmt.Errorf("%w: category %s", domain.ErrDuplicatedItem, c.ID)
	}
	r.categories[k] = c
	return nil
}

func (r *CatalogRepository) GetCategory(_ context.Context, productID, id string) (domain.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.categories[key(productID, id)]
	if !ok {
		return domain.Category{}, fmt.Errorf("%w: category %s", domain.ErrItemNotFound, id)
	}
	return row, nil
}

func (r *CatalogRepository) ListCategories(_ context.Context, productID string) ([]domain.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Category, 0)
	for _, row := range r.categories {
		if row.ProductID == productID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *CatalogRepository) UpdateCategory(_ context.Context, c domain.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(c.ProductID, c.ID)
	if _, ok := r.categories[k]; !ok {
		return fmt.Errorf("%w: category %s", domain.ErrItemNotFound, c.ID)
	}
	r.categories[k] = c
	return nil
}

func (r *CatalogRepository) DeleteCategory(_ context.Context, productID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(productID, id)
	if _, ok := r.categories[k]; !ok {
		return fmt.Errorf("%w: category %s", domain.ErrItemNotFound, id)
	}
	delete(r.categories, k)
	return nil
}

func (r *CatalogRepository) CreateType(_ context.Context, t domain.DocumentType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(t.ProductID, t.ID)
	if _, ok := r.types[k]; ok {
		return fmt.Errorf("%w: document type %s", domain.ErrDuplicatedItem, t.ID)
	}
	r.types[k] = t
	return nil
}

func (r *CatalogRepository) GetType(_ context.Context, productID, id string) (domain.DocumentType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.types[key(productID, id)]
	if !ok {
		return domain.DocumentType{}, fmt.Errorf("%w: document type %s", domain.ErrItemNotFound, id)
	}
	return row, nil
}

func (r *CatalogRepository) ListTypes(_ context.Context, productID string) ([]domain.DocumentType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.DocumentType, 0)
	for _, row := range r.types {
		if row.ProductID == productID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *CatalogRepository) UpdateType(_ context.Context, t domain.DocumentType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(t.ProductID, t.ID)
	if _, ok := r.types[k]; !ok {
		return fmt.Errorf("%w: document type %s", domain.ErrItemNotFound, t.ID)
	}
	r.types[k] = t
	return nil
}

func (r *CatalogRepository) DeleteType(_ context.Context, productID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(productID, id)
	if _, ok := r.types[k]; !ok {
		return fmt.Errorf("%w: document type %s", domain.ErrItemNotFound, id)
	}
	delete(r.types, k)
	return nil
}

func (r *CatalogRepository) CreateTemplate(_ context.Context, t domain.Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(t.ProductID, t.ID)
	if _, ok := r.templates[k]; ok {
		return fmt.Errorf("%w: template %s", domain.ErrDuplicatedItem, t.ID)
	}
	r.templates[k] = t
	return nil
}

func (r *CatalogRepository) GetTemplate(_ context.Context, productID, id string) (domain.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.templates[key(productID, id)]
	if !ok {
		return domain.Template{}, fmt.Errorf("%w: template %s", domain.ErrItemNotFound, id)
	}
	return row, nil
}

func (r *CatalogRepository) ListTemplates(_ context.Context, productID string) ([]domain.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Template, 0)
	for _, row := range r.templates {
		if row.ProductID == productID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *CatalogRepository) DeleteTemplate(_ context.Context, productID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(productID, id)
	if _, ok := r.templates[k]; !ok {
		return fmt.Errorf("%w: template %s", domain.ErrItemNotFound, id)
	}
	delete(r.templates, k)
	return nil
}

var _ ports.CatalogRepository = (*CatalogRepository)(nil)
