package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/domain"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/ports"
)

// Repositories is an in-process record store. It backs tests and the `memory` store driver.
type Repositories struct {
	Documents   *DocumentRepository
	Requests    *RequestRepository
	Ledgers     *LedgerRepository
	Catalog     *CatalogRepository
	Companies   *CompanyRepository
	Outbox      *OutboxRepository
	EventDedup  *EventDedupRepository
	Idempotency *IdempotencyRepository
}

func NewRepositories() *Repositories {
	return &Repositories{
		Documents:   &DocumentRepository{rows: map[string]domain.Document{}},
		Requests:    &RequestRepository{rows: map[string]domain.Request{}},
		Ledgers:     &LedgerRepository{rows: map[string]domain.LedgerEntry{}},
		Catalog:     &CatalogRepository{categories: map[string]domain.Category{}, types: map[string]domain.DocumentType{}, templates: map[string]domain.Template{}},
		Companies:   &CompanyRepository{rows: map[string]domain.Company{}},
		Outbox:      &OutboxRepository{},
		EventDedup:  &EventDedupRepository{rows: map[string]time.Time{}},
		Idempotency: &IdempotencyRepository{rows: map[string]ports.IdempotencyRecord{}},
	}
}

func key(parts ...string) string {
	return strings.Join(parts, "/")
}

type DocumentRepository struct {
	mu   sync.Mutex
	rows map[string]domain.Document
}

func (r *DocumentRepository) Create(_ context.Context, doc domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(doc.ProductID, doc.ID)
	if _, ok := r.rows[k]; ok {
		return fmt.Errorf("%w: document %s", domain.ErrDuplicatedItem, doc.ID)
	}
	r.rows[k] = cloneDocument(doc)
	return nil
}

func (r *DocumentRepository) Get(_ context.Context, productID, documentID string) (domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[key(productID, documentID)]
	if !ok {
		return domain.Document{}, fmt.Errorf("%w: document %s", domain.ErrItemNotFound, documentID)
	}
	return cloneDocument(row), nil
}

func (r *DocumentRepository) Exists(_ context.Context, productID, documentID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rows[key(productID, documentID)]
	return ok, nil
}

func (r *DocumentRepository) ListByProduct(_ context.Context, productID string) ([]domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Document, 0)
	for _, row := range r.rows {
		if row.ProductID == productID {
			out = append(out, cloneDocument(row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *DocumentRepository) Mutate(_ context.Context, productID, documentID string, fn func(*domain.Document) error) (domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(productID, documentID)
	row, ok := r.rows[k]
	if !ok {
		return domain.Document{}, fmt.Errorf("%w: document %s", domain.ErrItemNotFound, documentID)
	}
	updated := cloneDocument(row)
	if err := fn(&updated); err != nil {
		return domain.Document{}, err
	}
	r.rows[k] = cloneDocument(updated)
	return updated, nil
}

func (r *DocumentRepository) AppendShareDate(ctx context.Context, productID, documentID, counterpartyID string, at time.Time) (domain.Document, error) {
	return r.Mutate(ctx, productID, documentID, func(d *domain.Document) error {
		d.AppendShareDate(counterpartyID, at)
		return nil
	})
}

func (r *DocumentRepository) SetShareEntry(_ context.Context, productID, documentID string, index int, entry domain.ShareEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(productID, documentID)
	row, ok := r.rows[k]
	if !ok {
		return fmt.Errorf("%w: document %s", domain.ErrItemNotFound, documentID)
	}
	switch {
	case index == len(row.SharedWith):
		row.SharedWith = append(row.SharedWith, entry)
	case index >= 0 && index < len(row.SharedWith):
		row.SharedWith[index] = entry
	default:
		return fmt.Errorf("%w: share index %d out of range", domain.ErrInvalidOperation, index)
	}
	r.rows[k] = cloneDocument(row)
	return nil
}

func (r *DocumentRepository) Delete(_ context.Context, productID, documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(productID, documentID)
	if _, ok := r.rows[k]; !ok {
		return fmt.Errorf("%w: document %s", domain.ErrItemNotFound, documentID)
	}
	delete(r.rows, k)
	return nil
}

type RequestRepository struct {
	mu   sync.Mutex
	rows map[string]domain.Request
}

func (r *RequestRepository) Create(_ context.Context, req domain.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(string(req.Direction), req.ProductID, req.ID)
	if _, ok := r.rows[k]; ok {
		return fmt.Errorf("%w: request %s", domain.ErrDuplicatedItem, req.ID)
	}
	r.rows[k] = cloneRequest(req)
	return nil
}

func (r *RequestRepository) Get(_ context.Context, direction domain.RequestDirection, productID, requestID string) (domain.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[key(string(direction), productID, requestID)]
	if !ok {
		return domain.Request{}, fmt.Errorf("%w: %s request %s", domain.ErrItemNotFound, direction, requestID)
	}
	return cloneRequest(row), nil
}

func (r *RequestRepository) List(_ context.Context, direction domain.RequestDirection, productID string) ([]domain.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Request, 0)
	for _, row := range r.rows {
		if row.Direction == direction && row.ProductID == productID {
			out = append(out, cloneRequest(row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *RequestRepository) MarkTypesSent(ctx context.Context, direction domain.RequestDirection, productID, requestID string, documentIDs, typeIDs []string) (domain.Request, int, error) {
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

func (r *RequestRepository) Mutate(_ context.Context, direction domain.RequestDirection, productID, requestID string, fn func(*domain.Request) error) (domain.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(string(direction), productID, requestID)
	row, ok := r.rows[k]
	if !ok {
		return domain.Request{}, fmt.Errorf("%w: %s request %s", domain.ErrItemNotFound, direction, requestID)
	}
	updated := cloneRequest(row)
	if err := fn(&updated); err != nil {
		return domain.Request{}, err
	}
	r.rows[k] = cloneRequest(updated)
	return updated, nil
}

type LedgerRepository struct {
	mu   sync.Mutex
	rows map[string]domain.LedgerEntry
}

func (r *LedgerRepository) Create(_ context.Context, entry domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(string(entry.Kind), entry.ProductID, entry.ID)
	if _, ok := r.rows[k]; ok {
		return fmt.Errorf("%w: %s documents %s", domain.ErrDuplicatedItem, entry.Kind, entry.ID)
	}
	for _, row := range r.rows {
		if row.Kind == entry.Kind && row.ProductID == entry.ProductID && row.ShareID == entry.ShareID {
			return fmt.Errorf("%w: share %s already recorded", domain.ErrDuplicatedItem, entry.ShareID)
		}
	}
	r.rows[k] = cloneLedger(entry)
	return nil
}

func (r *LedgerRepository) Get(_ context.Context, kind domain.LedgerKind, productID, id string) (domain.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[key(string(kind), productID, id)]
	if !ok {
		return domain.LedgerEntry{}, fmt.Errorf("%w: %s documents %s", domain.ErrItemNotFound, kind, id)
	}
	return cloneLedger(row), nil
}

func (r *LedgerRepository) GetByShareID(_ context.Context, kind domain.LedgerKind, productID, shareID string) (domain.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.Kind == kind && row.ProductID == productID && row.ShareID == shareID {
			return cloneLedger(row), nil
		}
	}
	return domain.LedgerEntry{}, fmt.Errorf("%w: %s documents for share %s", domain.ErrItemNotFound, kind, shareID)
}

func (r *LedgerRepository) List(_ context.Context, kind domain.LedgerKind, productID string) ([]domain.LedgerEntry, error) {
	return r.filter(func(row domain.LedgerEntry) bool {
		return row.Kind == kind && row.ProductID == productID
	}), nil
}

func (r *LedgerRepository) ListByRequest(_ context.Context, kind domain.LedgerKind, productID, requestID string) ([]domain.LedgerEntry, error) {
	return r.filter(func(row domain.LedgerEntry) bool {
		return row.Kind == kind && row.ProductID == productID && row.RequestIDValue() == requestID
	}), nil
}

func (r *LedgerRepository) filter(match func(domain.LedgerEntry) bool) []domain.LedgerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.LedgerEntry, 0)
	for _, row := range r.rows {
		if match(row) {
			out = append(out, cloneLedger(row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *LedgerRepository) Mutate(_ context.Context, kind domain.LedgerKind, productID, id string, fn func(*domain.LedgerEntry) error) (domain.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(string(kind), productID, id)
	row, ok := r.rows[k]
	if !ok {
		return domain.LedgerEntry{}, fmt.Errorf("%w: %s documents %s", domain.ErrItemNotFound, kind, id)
	}
	updated := cloneLedger(row)
	if err := fn(&updated); err != nil {
		return domain.LedgerEntry{}, err
	}
	r.rows[k] = cloneLedger(updated)
	return updated, nil
}

type CompanyRepository struct {
	mu   sync.Mutex
	rows map[string]domain.Company
}

func (r *CompanyRepository) Get(_ context.Context, companyID string) (domain.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[companyID]
	if !ok {
		return domain.Company{}, fmt.Errorf("%w: company %s", domain.ErrItemNotFound, companyID)
	}
	return row, nil
}

func (r *CompanyRepository) Upsert(_ context.Context, company domain.Company) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[company.ID] = company
	return nil
}

func (r *CompanyRepository) List(_ context.Context) ([]domain.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Company, 0, len(r.rows))
	for _, row := range r.rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type OutboxRepository struct {
	mu   sync.Mutex
	rows []ports.OutboxRecord
}

func (r *OutboxRepository) Enqueue(_ context.Context, event ports.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, ports.OutboxRecord{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      append([]byte(nil), event.Payload...),
		FirstSeenAt:  event.OccurredAt,
	})
	return nil
}

func (r *OutboxRepository) FetchUnpublished(_ context.Context, limit int) ([]ports.OutboxRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ports.OutboxRecord, 0)
	for _, row := range r.rows {
		if row.PublishedAt != nil {
			continue
		}
		out = append(out, row)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *OutboxRepository) MarkPublished(_ context.Context, outboxID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].OutboxID == outboxID {
			published := at
			r.rows[i].PublishedAt = &published
			return nil
		}
	}
	return fmt.Errorf("%w: outbox %s", domain.ErrItemNotFound, outboxID)
}

func (r *OutboxRepository) MarkFailed(_ context.Context, outboxID uuid.UUID, errMsg string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].OutboxID == outboxID {
			msg := errMsg
			failedAt := at
			r.rows[i].RetryCount++
			r.rows[i].LastError = &msg
			r.rows[i].LastErrorAt = &failedAt
			return nil
		}
	}
	return fmt.Errorf("%w: outbox %s", domain.ErrItemNotFound, outboxID)
}

// Records returns a snapshot of every outbox row.
func (r *OutboxRepository) Records() []ports.OutboxRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ports.OutboxRecord(nil), r.rows...)
}

type EventDedupRepository struct {
	mu   sync.Mutex
	rows map[string]time.Time
}

func (r *EventDedupRepository) IsDuplicate(_ context.Context, eventID string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	expiresAt, ok := r.rows[eventID]
	return ok && expiresAt.After(now), nil
}

func (r *EventDedupRepository) MarkProcessed(_ context.Context, eventID, _ string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[eventID] = expiresAt
	return nil
}

type IdempotencyRepository struct {
	mu   sync.Mutex
	rows map[string]ports.IdempotencyRecord
}

func (r *IdempotencyRepository) Get(_ context.Context, k string) (*ports.IdempotencyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[k]
	if !ok {
		return nil, nil
	}
	out := row
	return &out, nil
}

func (r *IdempotencyRepository) Reserve(_ context.Context, k, requestHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.rows[k]; ok && existing.ExpiresAt.After(time.Now().UTC()) {
		return fmt.Errorf("already reserved")
	}
	r.rows[k] = ports.IdempotencyRecord{Key: k, RequestHash: requestHash, Status: "reserved", ExpiresAt: expiresAt}
	return nil
}

func (r *IdempotencyRepository) Complete(_ context.Context, k string, responseCode int, responseBody []byte, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[k]
	if !ok {
		return fmt.Errorf("%w: idempotency key %s", domain.ErrItemNotFound, k)
	}
	row.Status = "completed"
	row.ResponseCode = responseCode
	row.ResponseBody = append([]byte(nil), responseBody...)
	r.rows[k] = row
	return nil
}

var (
	_ ports.DocumentRepository    = (*DocumentRepository)(nil)
	_ ports.RequestRepository     = (*RequestRepository)(nil)
	_ ports.LedgerRepository      = (*LedgerRepository)(nil)
	_ ports.CompanyRepository     = (*CompanyRepository)(nil)
	_ ports.OutboxRepository      = (*OutboxRepository)(nil)
	_ ports.EventDedupRepository  = (*EventDedupRepository)(nil)
	_ ports.IdempotencyRepository = (*IdempotencyRepository)(nil)
)
