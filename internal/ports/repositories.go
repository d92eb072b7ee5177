package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/domain"
)

type DocumentRepository interface {
	Create(ctx context.Context, doc domain.Document) error
	Get(ctx context.Context, productID, documentID string) (domain.Document, error)
	Exists(ctx context.Context, productID, documentID string) (bool, error)
	ListByProduct(ctx context.Context, productID string) ([]domain.Document, error)
	// Mutate loads the document under a row lock, applies fn and persists the result.
	Mutate(ctx context.Context, productID, documentID string, fn func(*domain.Document) error) (domain.Document, error)
	AppendShareDate(ctx context.Context, productID, documentID, counterpartyID string, at time.Time) (domain.Document, error)
	// SetShareEntry overwrites the share entry at index without reading the rest of the document.
	SetShareEntry(ctx context.Context, productID, documentID string, index int, entry domain.ShareEntry) error
	Delete(ctx context.Context, productID, documentID string) error
}

type RequestRepository interface {
	Create(ctx context.Context, req domain.Request) error
	Get(ctx context.Context, direction domain.RequestDirection, productID, requestID string) (domain.Request, error)
	List(ctx context.Context, direction domain.RequestDirection, productID string) ([]domain.Request, error)
	// MarkTypesSent applies the set-union update and returns the updated request with the count
	// of newly recorded types.
	MarkTypesSent(ctx context.Context, direction domain.RequestDirection, productID, requestID string, documentIDs, typeIDs []string) (domain.Request, int, error)
	Mutate(ctx context.Context, direction domain.RequestDirection, productID, requestID string, fn func(*domain.Request) error) (domain.Request, error)
}

type LedgerRepository interface {
	Create(ctx context.Context, entry domain.LedgerEntry) error
	Get(ctx context.Context, kind domain.LedgerKind, productID, id string) (domain.LedgerEntry, error)
	GetByShareID(ctx context.Context, kind domain.LedgerKind, productID, shareID string) (domain.LedgerEntry, error)
	List(ctx context.Context, kind domain.LedgerKind, productID string) ([]domain.LedgerEntry, error)
	ListByRequest(ctx context.Context, kind domain.LedgerKind, productID, requestID string) ([]domain.LedgerEntry, error)
	Mutate(ctx context.Context, kind domain.LedgerKind, productID, id string, fn func(*domain.LedgerEntry) error) (domain.LedgerEntry, error)
}

type CatalogRepository interface {
	CreateCategory(ctx context.Context, c domain.Category) error
	GetCategory(ctx context.Context, productID, id string) (domain.Category, error)
	ListCategories(ctx context.Context, productID string) ([]domain.Category, error)
	UpdateCategory(ctx context.Context, c domain.Category) error
	DeleteCategory(ctx context.Context, productID, id string) error

	CreateType(ctx context.Context, t domain.DocumentType) error
	GetType(ctx context.Context, productID, id string) (domain.DocumentType, error)
	ListTypes(ctx context.Context, productID string) ([]domain.DocumentType, error)
	UpdateType(ctx context.Context, t domain.DocumentType) error
	DeleteType(ctx context.Context, productID, id string) error

	CreateTemplate(ctx context.Context, t domain.Template) error
	GetTemplate(ctx context.Context, productID, id string) (domain.Template, error)
	ListTemplates(ctx context.Context, productID string) ([]domain.Template, error)
	DeleteTemplate(ctx context.Context, productID, id string) error
}

type CompanyRepository interface {
	Get(ctx context.Context, companyID string) (domain.Company, error)
	Upsert(ctx context.Context, company domain.Company) error
	List(ctx context.Context) ([]domain.Company, error)
}

type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

type OutboxRecord struct {
	OutboxID     uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	RetryCount   int
	PublishedAt  *time.Time
	LastError    *string
	LastErrorAt  *time.Time
	FirstSeenAt  time.Time
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	FetchUnpublished(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, errMsg string, at time.Time) error
}

type EventDedupRepository interface {
	IsDuplicate(ctx context.Context, eventID string, now time.Time) (bool, error)
	MarkProcessed(ctx context.Context, eventID, eventType string, expiresAt time.Time) error
}

type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	Status       string
	ResponseCode int
	ResponseBody []byte
	ExpiresAt    time.Time
}

type IdempotencyRepository interface {
	Get(ctx context.Context, key string) (*IdempotencyRecord, error)
	Reserve(ctx context.Context, key, requestHash string, expiresAt time.Time) error
	Complete(ctx context.Context, key string, responseCode int, responseBody []byte, at time.Time) error
}
