package postgres

import (
	"time"

	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Documents   ports.DocumentRepository
	Requests    ports.RequestRepository
	Ledgers     ports.LedgerRepository
	Catalog     ports.CatalogRepository
	Companies   ports.CompanyRepository
	Outbox      ports.OutboxRepository
	EventDedup  ports.EventDedupRepository
	Idempotency ports.IdempotencyRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Documents:   &documentRepository{db: db},
		Requests:    &requestRepository{db: db},
		Ledgers:     &ledgerRepository{db: db},
		Catalog:     &catalogRepository{db: db},
		Companies:   &companyRepository{db: db},
		Outbox:      &outboxRepository{db: db},
		EventDedup:  &processedMessageRepository{db: db, now: time.Now},
		Idempotency: &idempotencyRepository{db: db},
	}
}
