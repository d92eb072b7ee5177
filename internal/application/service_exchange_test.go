package application_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/adapters/memory"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/application"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/contracts"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/domain"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/ports"
)

func receiveRequest(t *testing.T, n *node, requestID string, types ...string) {
	t.Helper()
	env := inbound(t, testPeer, requestID, contracts.RequestDocumentsEvent{RequestID: requestID, Types: types})
	if err := n.svc.HandleEnvelope(context.Background(), env); err != nil {
		t.Fatalf("receive request: %v", err)
	}
}

func TestSendDocumentsProgressesRequestTask(t *testing.T) {
	self := newNode(t, testSelf, nil)
	ctx := context.Background()
	if err := self.repos.Companies.Upsert(ctx, domain.Company{ID: testPeer, Name: testPeerName}); err != nil {
		t.Fatalf("seed company: %v", err)
	}
	docA := self.registeredDocument(t, typeA, "Insurance certificate")
	docB := self.registeredDocument(t, typeB, "Tax clearance")
	receiveRequest(t, self, "req-1", typeA, typeB)

	if len(self.tasks.created) != 1 || self.tasks.created[0].Summary != "2 document(s) requested by Acme Corp" {
		t.Fatalf("unexpected request task: %+v", self.tasks.created)
	}
	reference := domain.RequestTaskReference(testProduct, "req-1")

	send := func(documentID string) {
		t.Helper()
		if _, err := self.svc.SendDocuments(ctx, testProduct, application.SendDocumentsInput{
			CompanyID: testPeer,
			Documents: []string{documentID},
			RequestID: strPtr("req-1"),
		}); err != nil {
			t.Fatalf("send %s: %v", documentID, err)
		}
	}

	send(docA.ID)
	updates := self.tasks.updatesFor(reference)
	if len(updates) != 1 {
		t.Fatalf("expected one task update, got %d", len(updates))
	}
	if updates[0].Status != domain.TaskInProgress || updates[0].Summary != "Complete document request: 1/2" {
		t.Fatalf("unexpected in-progress update: %+v", updates[0])
	}

	send(docA.ID)
	if got := len(self.tasks.updatesFor(reference)); got != 1 {
		t.Fatalf("resending a covered type must not move the task, got %d updates", got)
	}

	send(docB.ID)
	updates = self.tasks.updatesFor(reference)
	done := updates[len(updates)-1]
	if done.Status != domain.TaskDone || done.Summary != "2 document(s) requested from Acme Corp" {
		t.Fatalf("unexpected done update: %+v", done)
	}
	if done.Comment != "Sent 2 documents to a counterparty" || done.Outcome == nil || !*done.Outcome {
		t.Fatalf("unexpected done comment or outcome: %+v", done)
	}

	send(docB.ID)
	send(docA.ID)
	doneCount := 0
	for _, u := range self.tasks.updatesFor(reference) {
		if u.Status == domain.TaskDone {
			doneCount++
		}
	}
	if doneCount != 1 {
		t.Fatalf("expected exactly one done transition, got %d", doneCount)
	}

	req, err := self.svc.GetRequest(ctx, domain.RequestIncoming, testProduct, "req-1")
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if len(req.SentDocumentTypes) != 2 || !req.IsComplete() {
		t.Fatalf("unexpected sent types: %+v", req.SentDocumentTypes)
	}
	for _, typeID := range req.SentDocumentTypes {
		if !req.HasType(typeID) {
			t.Fatalf("sent type %s is not requested", typeID)
		}
	}
	if got := len(self.gateway.byRoutingKey(contracts.RoutingKeySendDocuments)); got != 5 {
		t.Fatalf("expected five send-documents messages, got %d", got)
	}
}

func TestSendDocumentsRejectsEmptySelection(t *testing.T) {
	self := newNode(t, testSelf, nil)
	ctx := context.Background()

	_, err := self.svc.SendDocuments(ctx, testProduct, application.SendDocumentsInput{CompanyID: testPeer})
	if !errors.Is(err, domain.ErrInvalidItem) {
		t.Fatalf("expected invalid item, got %v", err)
	}
	shared, err := self.svc.ListSharedDocuments(ctx, testProduct)
	if err != nil {
		t.Fatalf("list shared: %v", err)
	}
	if len(shared) != 0 || self.gateway.count() != 0 {
		t.Fatalf("empty send left side effects: ledger=%d messages=%d", len(shared), self.gateway.count())
	}
}

func TestSendDocumentsUnknownRequestOrDocument(t *testing.T) {
	self := newNode(t, testSelf, nil)
	ctx := context.Background()
	doc := self.registeredDocument(t, typeA, "Insurance certificate")

	_, err := self.svc.SendDocuments(ctx, testProduct, application.SendDocumentsInput{CompanyID: testPeer, Documents: []string{doc.ID}, RequestID: strPtr("missing")})
	if !errors.Is(err, domain.ErrItemNotFound) {
		t.Fatalf("expected item not found for request, got %v", err)
	}
	_, err = self.svc.SendDocuments(ctx, testProduct, application.SendDocumentsInput{CompanyID: testPeer, Documents: []string{"missing-doc"}})
	if !errors.Is(err, domain.ErrItemNotFound) {
		t.Fatalf("expected item not found for document, got %v", err)
	}
}

func TestSendDocumentsRequiresRegisteredState(t *testing.T) {
	self := newNode(t, testSelf, nil)
	ctx := context.Background()
	doc := self.uploadDocument(t, typeA, "Draft policy", nil)

	_, err := self.svc.SendDocuments(ctx, testProduct, application.SendDocumentsInput{CompanyID: testPeer, Documents: []string{doc.ID}})
	if !errors.Is(err, domain.ErrNotRegistered) {
		t.Fatalf("expected not registered, got %v", err)
	}
	if !strings.Contains(err.Error(), "Draft policy") {
		t.Fatalf("error must name the document: %v", err)
	}

	exempt := newNode(t, testSelf, func(cfg *application.Config) {
		cfg.Policies = domain.NewPolicyTable([]string{testProduct})
	})
	pending := exempt.uploadDocument(t, typeA, "Draft policy", nil)
	if _, err := exempt.svc.SendDocuments(ctx, testProduct, application.SendDocumentsInput{CompanyID: testPeer, Documents: []string{pending.ID}}); err != nil {
		t.Fatalf("exempt product send: %v", err)
	}
}

func TestSendDocumentsAccumulatesShareDates(t *testing.T) {
	self := newNode(t, testSelf, nil)
	ctx := context.Background()
	doc := self.registeredDocument(t, typeA, "Insurance certificate")

	for i := 0; i < 2; i++ {
		if _, err := self.svc.SendDocuments(ctx, testProduct, application.SendDocumentsInput{CompanyID: testPeer, Documents: []string{doc.ID}}); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	stored, err := self.svc.GetDocument(ctx, testProduct, doc.ID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if len(stored.SharedWith) != 1 {
		t.Fatalf("expected one share entry, got %+v", stored.SharedWith)
	}
	if len(stored.SharedWith[0].SharedDates) != 2 {
		t.Fatalf("expected two share dates, got %+v", stored.SharedWith[0].SharedDates)
	}
	if err := self.svc.DeleteDocument(ctx, testProduct, doc.ID); !errors.Is(err, domain.ErrInvalidOperation) {
		t.Fatalf("shared document must not be deletable, got %v", err)
	}
}

// appendFailingDocuments rejects the atomic share-date append so the positional write is used.
type appendFailingDocuments struct {
	*memory.DocumentRepository
	mu      sync.Mutex
	appends int
}

func (d *appendFailingDocuments) AppendShareDate(context.Context, string, string, string, time.Time) (domain.Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.appends++
	return domain.Document{}, errors.New("array append unavailable")
}

func TestSendDocumentsFallsBackToPositionalShareUpdate(t *testing.T) {
	var documents *appendFailingDocuments
	self := newNodeWithDocuments(t, testSelf, nil, func(inner *memory.DocumentRepository) ports.DocumentRepository {
		documents = &appendFailingDocuments{DocumentRepository: inner}
		return documents
	})
	ctx := context.Background()
	doc := self.registeredDocument(t, typeA, "Insurance certificate")

	for i, counterparty := range []string{testPeer, testPeer, "company-other"} {
		sent, err := self.svc.SendDocuments(ctx, testProduct, application.SendDocumentsInput{CompanyID: counterparty, Documents: []string{doc.ID}})
		if err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
		if len(sent) != 1 || sent[0].ShareEntryIndex(counterparty) < 0 {
			t.Fatalf("send %d returned document without share entry: %+v", i, sent)
		}
	}
	if documents.appends != 3 {
		t.Fatalf("expected three failed appends, got %d", documents.appends)
	}

	stored, err := self.svc.GetDocument(ctx, testProduct, doc.ID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if len(stored.SharedWith) != 2 {
		t.Fatalf("expected one entry per counterparty, got %+v", stored.SharedWith)
	}
	if stored.SharedWith[0].CounterpartyID != testPeer || len(stored.SharedWith[0].SharedDates) != 2 {
		t.Fatalf("share dates not accumulated: %+v", stored.SharedWith[0])
	}
	if stored.SharedWith[1].CounterpartyID != "company-other" || len(stored.SharedWith[1].SharedDates) != 1 {
		t.Fatalf("unexpected second entry: %+v", stored.SharedWith[1])
	}
	if got := len(self.gateway.byRoutingKey(contracts.RoutingKeySendDocuments)); got != 3 {
		t.Fatalf("expected three send-documents messages, got %d", got)
	}
}

func TestSendDocumentsContextAndPayloadChecks(t *testing.T) {
	self := newNode(t, testSelf, func(cfg *application.Config) { cfg.MaxSendPayloadBytes = 40 })
	ctx := context.Background()
	scoped := self.uploadDocument(t, typeA, "Site permit", map[string]any{"site": "north"})
	if _, err := self.svc.ApplyTransactionResult(ctx, testProduct, contracts.TransactionResultEvent{DocumentID: scoped.ID, TxID: "tx-1", Success: true}); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := self.svc.SendDocuments(ctx, testProduct, application.SendDocumentsInput{
		CompanyID: testPeer,
		Documents: []string{scoped.ID},
		Context:   map[string]any{"site": "south"},
	})
	if !errors.Is(err, domain.ErrInvalidItem) {
		t.Fatalf("expected context mismatch, got %v", err)
	}

	_, err = self.svc.SendDocuments(ctx, testProduct, application.SendDocumentsInput{
		CompanyID: testPeer,
		Documents: []string{scoped.ID},
		Context:   map[string]any{"site": "north", domain.ReviewNotRequiredKey: true},
	})
	if err != nil {
		t.Fatalf("matching context with transient flag: %v", err)
	}
	shared, _ := self.svc.ListSharedDocuments(ctx, testProduct)
	if len(shared) != 1 || !shared[0].ReviewNotRequired {
		t.Fatalf("expected review-not-required share, got %+v", shared)
	}

	other := self.registeredDocument(t, typeB, "Annual accounts")
	_, err = self.svc.SendDocuments(ctx, testProduct, application.SendDocumentsInput{
		CompanyID: testPeer,
		Documents: []string{scoped.ID, other.ID},
		Context:   map[string]any{"site": "north"},
	})
	if err == nil {
		t.Fatalf("expected a context or size failure")
	}

	_, err = self.svc.SendDocuments(ctx, testProduct, application.SendDocumentsInput{
		CompanyID: testPeer,
		Documents: []string{other.ID, self.registeredDocument(t, typeC, "Board minutes").ID},
	})
	var tooLarge *domain.PayloadTooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected payload too large, got %v", err)
	}
	if tooLarge.Limit != 40 || tooLarge.Total <= 40 {
		t.Fatalf("unexpected size report: %+v", tooLarge)
	}
}

func TestSendDocumentsSurfacesMessagingError(t *testing.T) {
	self := newNode(t, testSelf, nil)
	ctx := context.Background()
	doc := self.registeredDocument(t, typeA, "Insurance certificate")
	receiveRequest(t, self, "req-9", typeA)
	self.gateway.err = &domain.MessagingError{RoutingKey: contracts.RoutingKeySendDocuments, RecipientID: testPeer, Err: domain.ErrBufferFull}

	_, err := self.svc.SendDocuments(ctx, testProduct, application.SendDocumentsInput{CompanyID: testPeer, Documents: []string{doc.ID}, RequestID: strPtr("req-9")})
	var msgErr *domain.MessagingError
	if !errors.As(err, &msgErr) {
		t.Fatalf("expected messaging error, got %v", err)
	}
	if !errors.Is(err, domain.ErrBufferFull) {
		t.Fatalf("expected buffer full cause, got %v", err)
	}
	if msgErr.RequestID != "req-9" || len(msgErr.DocumentIDs) != 1 || msgErr.DocumentIDs[0] != doc.ID {
		t.Fatalf("messaging error lacks context: %+v", msgErr)
	}
	shared, _ := self.svc.ListSharedDocuments(ctx, testProduct)
	if len(shared) != 1 {
		t.Fatalf("ledger row must survive a failed publish, got %d", len(shared))
	}
	stored, _ := self.svc.GetDocument(ctx, testProduct, doc.ID)
	if stored.IsShared() {
		t.Fatalf("share date recorded for an undelivered message")
	}
}

func TestSendDocumentsIdempotencyKey(t *testing.T) {
	self := newNode(t, testSelf, nil)
	ctx := context.Background()
	doc := self.registeredDocument(t, typeA, "Insurance certificate")
	in := application.SendDocumentsInput{CompanyID: testPeer, Documents: []string{doc.ID}}

	first, err := self.svc.SendDocumentsIdempotent(ctx, testProduct, in, "idem-send-1")
	if err != nil {
		t.Fatalf("first send: %v", err)
	}
	second, err := self.svc.SendDocumentsIdempotent(ctx, testProduct, in, "idem-send-1")
	if err != nil {
		t.Fatalf("replayed send: %v", err)
	}
	if len(first) != 1 || len(second) != 1 || first[0].ID != second[0].ID {
		t.Fatalf("replay returned different documents")
	}
	if got := self.gateway.count(); got != 1 {
		t.Fatalf("replay must not resend, got %d messages", got)
	}
	in.Note = "changed"
	if _, err := self.svc.SendDocumentsIdempotent(ctx, testProduct, in, "idem-send-1"); !errors.Is(err, domain.ErrIdempotencyConflict) {
		t.Fatalf("expected idempotency conflict, got %v", err)
	}
}

func TestSendDocumentsIdempotencyKeyKeptAfterRelayFailure(t *testing.T) {
	self := newNode(t, testSelf, nil)
	ctx := context.Background()
	doc := self.registeredDocument(t, typeA, "Insurance certificate")
	receiveRequest(t, self, "req-7", typeA, typeB)
	self.gateway.failOn = map[string]error{
		contracts.RoutingKeyNote: &domain.MessagingError{RoutingKey: contracts.RoutingKeyNote, RecipientID: testPeer, Err: domain.ErrBufferFull},
	}
	in := application.SendDocumentsInput{CompanyID: testPeer, Documents: []string{doc.ID}, RequestID: strPtr("req-7"), Note: "see attached"}

	sent, err := self.svc.SendDocumentsIdempotent(ctx, testProduct, in, "idem-send-7")
	if !domain.IsMessagingError(err) {
		t.Fatalf("expected note relay error, got %v", err)
	}
	if len(sent) != 1 || sent[0].ID != doc.ID {
		t.Fatalf("delivered documents not returned with the relay error: %+v", sent)
	}

	self.gateway.failOn = nil
	replay, err := self.svc.SendDocumentsIdempotent(ctx, testProduct, in, "idem-send-7")
	if err != nil {
		t.Fatalf("retry with the same key: %v", err)
	}
	if len(replay) != 1 || replay[0].ID != doc.ID {
		t.Fatalf("unexpected replay: %+v", replay)
	}
	if got := len(self.gateway.byRoutingKey(contracts.RoutingKeySendDocuments)); got != 1 {
		t.Fatalf("retry must not resend documents, got %d messages", got)
	}
	shared, err := self.svc.ListSharedDocuments(ctx, testProduct)
	if err != nil || len(shared) != 1 {
		t.Fatalf("expected one shared batch, got %d (%v)", len(shared), err)
	}
	req, err := self.svc.GetRequest(ctx, domain.RequestIncoming, testProduct, "req-7")
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if len(req.SentDocumentTypes) != 1 || req.SentDocumentTypes[0] != typeA {
		t.Fatalf("progress not recorded despite relay failure: %+v", req.SentDocumentTypes)
	}
}

func TestSendDocumentsRelaysNoteAndDismissals(t *testing.T) {
	self := newNode(t, testSelf, nil)
	ctx := context.Background()
	doc := self.registeredDocument(t, typeA, "Insurance certificate")
	receiveRequest(t, self, "req-2", typeA, typeB)

	self.gateway.err = &domain.MessagingError{Err: domain.ErrBufferFull}
	_, err := self.svc.DismissTypes(ctx, testProduct, "req-2", []application.DismissTypeInput{{TypeID: typeB, Content: "not applicable"}})
	if !domain.IsMessagingError(err) {
		t.Fatalf("expected messaging error on dismissal relay, got %v", err)
	}
	self.gateway.err = nil

	if _, err := self.svc.SendDocuments(ctx, testProduct, application.SendDocumentsInput{
		CompanyID: testPeer,
		Documents: []string{doc.ID},
		RequestID: strPtr("req-2"),
		Note:      "see attached",
	}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := len(self.gateway.byRoutingKey(contracts.RoutingKeyNote)); got != 1 {
		t.Fatalf("expected one note relay, got %d", got)
	}
	if got := len(self.gateway.byRoutingKey(contracts.RoutingKeyDismissTypes)); got != 1 {
		t.Fatalf("expected one dismissal relay, got %d", got)
	}
	req, err := self.svc.GetRequest(ctx, domain.RequestIncoming, testProduct, "req-2")
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if len(req.PendingDismissals()) != 0 {
		t.Fatalf("dismissal still pending: %+v", req.DismissedTypes)
	}
}
