package application_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/adapters/memory"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/adapters/storage"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/application"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/contracts"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/domain"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/ports"
)

const (
	testProduct   = "prod-1"
	testSelf      = "company-self"
	testPeer      = "company-acme"
	testPeerName  = "Acme Corp"
	testRegistrar = "registrar-1"
	typeA         = "type-a"
	typeB         = "type-b"
	typeC         = "type-c"
)

type sentMessage struct {
	RoutingKey  string
	RecipientID string
	Envelope    contracts.Envelope
}

// recordingGateway captures outbound envelopes and optionally delivers them to a peer node.
type recordingGateway struct {
	mu       sync.Mutex
	messages []sentMessage
	err      error
	// failOn fails only messages with these routing keys.
	failOn  map[string]error
	deliver func(ctx context.Context, recipientID string, env contracts.Envelope) error
}

func (g *recordingGateway) SendMessage(ctx context.Context, routingKey, recipientID string, env contracts.Envelope) (string, error) {
	g.mu.Lock()
	if g.err != nil {
		err := g.err
		g.mu.Unlock()
		return "", err
	}
	if err, ok := g.failOn[routingKey]; ok {
		g.mu.Unlock()
		return "", err
	}
	g.messages = append(g.messages, sentMessage{RoutingKey: routingKey, RecipientID: recipientID, Envelope: env})
	deliver := g.deliver
	g.mu.Unlock()
	if deliver != nil {
		if err := deliver(ctx, recipientID, env); err != nil {
			return "", err
		}
	}
	return env.MessageID, nil
}

func (g *recordingGateway) byRoutingKey(routingKey string) []sentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]sentMessage, 0)
	for _, m := range g.messages {
		if m.RoutingKey == routingKey {
			out = append(out, m)
		}
	}
	return out
}

func (g *recordingGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.messages)
}

type recordingTasks struct {
	mu            sync.Mutex
	created       []domain.Task
	updates       []domain.TaskUpdate
	notifications []domain.NotificationMessage
}

func (r *recordingTasks) CreateTask(_ context.Context, task domain.Task, notification *domain.NotificationMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, task)
	if notification != nil {
		r.notifications = append(r.notifications, *notification)
	}
	return nil
}

func (r *recordingTasks) UpdateTaskStatus(_ context.Context, update domain.TaskUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, update)
	return nil
}

func (r *recordingTasks) Notify(_ context.Context, notification domain.NotificationMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, notification)
	return nil
}

func (r *recordingTasks) updatesFor(reference string) []domain.TaskUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.TaskUpdate, 0)
	for _, u := range r.updates {
		if u.Reference == reference {
			out = append(out, u)
		}
	}
	return out
}

type node struct {
	svc     *application.Service
	repos   *memory.Repositories
	files   *storage.MemoryStorage
	gateway *recordingGateway
	tasks   *recordingTasks
}

func steppingClock() func() time.Time {
	var mu sync.Mutex
	current := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func newNode(t *testing.T, companyID string, mutate func(*application.Config)) *node {
	t.Helper()
	return newNodeWithDocuments(t, companyID, mutate, nil)
}

// newNodeWithDocuments lets a test put a wrapper in front of the document repository.
func newNodeWithDocuments(t *testing.T, companyID string, mutate func(*application.Config), wrap func(*memory.DocumentRepository) ports.DocumentRepository) *node {
	t.Helper()
	repos := memory.NewRepositories()
	var documents ports.DocumentRepository = repos.Documents
	if wrap != nil {
		documents = wrap(repos.Documents)
	}
	files := storage.NewMemoryStorage()
	gateway := &recordingGateway{}
	tasks := &recordingTasks{}
	cfg := application.Config{CompanyID: companyID, RegistrarID: testRegistrar}
	if mutate != nil {
		mutate(&cfg)
	}
	svc := application.NewService(application.Dependencies{
		Config:      cfg,
		Documents:   documents,
		Requests:    repos.Requests,
		Ledgers:     repos.Ledgers,
		Catalog:     repos.Catalog,
		Companies:   repos.Companies,
		Outbox:      repos.Outbox,
		EventDedup:  repos.EventDedup,
		Idempotency: repos.Idempotency,
		Gateway:     gateway,
		Tasks:       tasks,
		Files:       files,
		Clock:       steppingClock(),
	})
	ctx := context.Background()
	if err := repos.Catalog.CreateCategory(ctx, domain.Category{ID: "cat-1", ProductID: testProduct, Name: "Compliance"}); err != nil {
		t.Fatalf("seed category: %v", err)
	}
	for _, id := range []string{typeA, typeB, typeC} {
		if err := repos.Catalog.CreateType(ctx, domain.DocumentType{ID: id, ProductID: testProduct, CategoryID: "cat-1", Name: id}); err != nil {
			t.Fatalf("seed type %s: %v", id, err)
		}
	}
	return &node{svc: svc, repos: repos, files: files, gateway: gateway, tasks: tasks}
}

// link delivers every envelope sent by either node to the other one.
func link(a, b *node, aID, bID string) {
	a.gateway.deliver = func(ctx context.Context, recipientID string, env contracts.Envelope) error {
		if recipientID != bID {
			return nil
		}
		return b.svc.HandleEnvelope(ctx, env)
	}
	b.gateway.deliver = func(ctx context.Context, recipientID string, env contracts.Envelope) error {
		if recipientID != aID {
			return nil
		}
		return a.svc.HandleEnvelope(ctx, env)
	}
}

func (n *node) uploadDocument(t *testing.T, typeID, name string, ctxValues map[string]any) domain.Document {
	t.Helper()
	doc, err := n.svc.UploadDocument(context.Background(), testProduct, application.UploadDocumentInput{
		TypeID:  typeID,
		Name:    name,
		Context: ctxValues,
		Data:    []byte("content of " + name),
	})
	if err != nil {
		t.Fatalf("upload %s: %v", name, err)
	}
	return doc
}

func (n *node) registeredDocument(t *testing.T, typeID, name string) domain.Document {
	t.Helper()
	doc := n.uploadDocument(t, typeID, name, nil)
	registered, err := n.svc.ApplyTransactionResult(context.Background(), testProduct, contracts.TransactionResultEvent{
		DocumentID: doc.ID,
		TxID:       "tx-" + doc.ID,
		Success:    true,
		Signature:  "sig",
		Hash:       "hash",
	})
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return registered
}

func inbound(t *testing.T, senderID string, requestID string, event contracts.Event) contracts.Envelope {
	t.Helper()
	env, err := contracts.NewEnvelope(uuid.NewString(), senderID, testProduct, requestID, event, time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	return env
}

func strPtr(v string) *string { return &v }
