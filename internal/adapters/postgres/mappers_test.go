package postgres

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/domain"
	"gorm.io/gorm"
)

func TestDocumentModelKeepsShareHistory(t *testing.T) {
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	doc := domain.Document{
		ID:        "doc-1",
		ProductID: "prod-1",
		Name:      "Insurance certificate",
		State:     domain.DocumentStateRegistered,
		Content:   domain.Content{FileID: "file-1", Size: 12},
		Context:   map[string]any{"site": "north"},
		CreatedAt: at,
		UpdatedAt: at,
	}
	doc.AppendShareDate("company-acme", at)
	doc.AppendShareDate("company-acme", at.Add(time.Hour))

	rec, err := toDocumentModel(doc)
	if err != nil {
		t.Fatalf("to model: %v", err)
	}
	back, err := toDomainDocument(rec)
	if err != nil {
		t.Fatalf("to domain: %v", err)
	}
	if len(back.SharedWith) != 1 || len(back.SharedWith[0].SharedDates) != 2 {
		t.Fatalf("share history lost: %+v", back.SharedWith)
	}
	if !domain.ContextMatches(back.Context, doc.Context) || back.Content.Size != 12 {
		t.Fatalf("document fields lost: %+v", back)
	}
}

func TestRequestModelDefaultsEmptyArrays(t *testing.T) {
	rec, err := toRequestModel(domain.Request{ID: "req-1", Direction: domain.RequestIncoming, Types: []string{"type-a"}})
	if err != nil {
		t.Fatalf("to model: %v", err)
	}
	if string(rec.SentDocumentTypes) != "[]" || string(rec.Notes) != "[]" {
		t.Fatalf("nil slices must persist as empty arrays: %s %s", rec.SentDocumentTypes, rec.Notes)
	}
	back, err := toDomainRequest(rec)
	if err != nil {
		t.Fatalf("to domain: %v", err)
	}
	if back.SentDocumentTypes == nil || len(back.Types) != 1 {
		t.Fatalf("unexpected request: %+v", back)
	}
}

func TestLedgerModelNullableRequest(t *testing.T) {
	entry := domain.NewLedgerEntry(domain.LedgerReceived, "l-1", "prod-1", "company-acme", "share-1", nil, nil, []string{"doc-1"}, time.Now())
	rec, err := toLedgerModel(entry)
	if err != nil {
		t.Fatalf("to model: %v", err)
	}
	if rec.RequestID != nil {
		t.Fatalf("ad-hoc share must store a null request id")
	}
	back, err := toDomainLedger(rec)
	if err != nil {
		t.Fatalf("to domain: %v", err)
	}
	if len(back.Documents) != 1 || back.Documents[0].Status != domain.ReviewPending {
		t.Fatalf("unexpected ledger documents: %+v", back.Documents)
	}
}

func TestTranslateErrors(t *testing.T) {
	if err := translate(gorm.ErrRecordNotFound, "document x"); !errors.Is(err, domain.ErrItemNotFound) {
		t.Fatalf("expected item not found, got %v", err)
	}
	if err := translate(gorm.ErrDuplicatedKey, "share y"); !errors.Is(err, domain.ErrDuplicatedItem) {
		t.Fatalf("expected duplicated item, got %v", err)
	}
	raw := fmt.Errorf("ERROR: duplicate key value violates unique constraint")
	if err := translate(raw, "share y"); !errors.Is(err, domain.ErrDuplicatedItem) {
		t.Fatalf("expected duplicated item from driver text, got %v", err)
	}
	if err := translate(nil, "x"); err != nil {
		t.Fatalf("nil must stay nil")
	}
}

func TestMigrationsAreEmbedded(t *testing.T) {
	names, err := migrationNames()
	if err != nil {
		t.Fatalf("list migrations: %v", err)
	}
	if len(names) == 0 || names[0] != "0001_init.sql" {
		t.Fatalf("unexpected migrations: %v", names)
	}
}

func TestProcessedMessageRowIsUTC(t *testing.T) {
	zone := time.FixedZone("UTC+2", 2*60*60)
	processed := time.Date(2026, 2, 3, 10, 0, 0, 0, zone)
	row := newProcessedMessage("msg-1", "exchange.note", processed, processed.Add(24*time.Hour))
	if row.MessageID != "msg-1" || row.RoutingKey != "exchange.note" {
		t.Fatalf("unexpected row: %+v", row)
	}
	if row.ProcessedAt.Location() != time.UTC || row.ExpiresAt.Location() != time.UTC {
		t.Fatalf("timestamps must be stored in UTC: %+v", row)
	}
	if !row.ExpiresAt.Equal(processed.Add(24 * time.Hour)) {
		t.Fatalf("expiry shifted: %v", row.ExpiresAt)
	}
	if row.TableName() != "exchange_processed_messages" {
		t.Fatalf("unexpected table %q", row.TableName())
	}
	raw, err := migrationFS.ReadFile("migrations/0001_init.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if !strings.Contains(string(raw), "CREATE TABLE IF NOT EXISTS exchange_processed_messages") {
		t.Fatalf("processed messages table missing from migrations")
	}
}
