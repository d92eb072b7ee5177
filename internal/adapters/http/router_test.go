package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/adapters/memory"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/adapters/storage"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/application"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/contracts"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/domain"
)

type stubGateway struct {
	sent int
	err  error
}

func (g *stubGateway) SendMessage(_ context.Context, routingKey, recipientID string, env contracts.Envelope) (string, error) {
	if g.err != nil {
		return "", &domain.MessagingError{RoutingKey: routingKey, RecipientID: recipientID, Err: g.err}
	}
	g.sent++
	return env.MessageID, nil
}

type stubTasks struct{}

func (stubTasks) CreateTask(context.Context, domain.Task, *domain.NotificationMessage) error {
	return nil
}
func (stubTasks) UpdateTaskStatus(context.Context, domain.TaskUpdate) error { return nil }
func (stubTasks) Notify(context.Context, domain.NotificationMessage) error  { return nil }

type fixture struct {
	router  http.Handler
	repos   *memory.Repositories
	gateway *stubGateway
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	repos := memory.NewRepositories()
	gateway := &stubGateway{}
	svc := application.NewService(application.Dependencies{
		Config:      application.Config{CompanyID: "company-self", RegistrarID: "registrar", MaxSendPayloadBytes: 64},
		Logger:      logger,
		Documents:   repos.Documents,
		Requests:    repos.Requests,
		Ledgers:     repos.Ledgers,
		Catalog:     repos.Catalog,
		Companies:   repos.Companies,
		Outbox:      repos.Outbox,
		EventDedup:  repos.EventDedup,
		Idempotency: repos.Idempotency,
		Gateway:     gateway,
		Tasks:       stubTasks{},
		Files:       storage.NewMemoryStorage(),
	})
	ctx := context.Background()
	if err := repos.Catalog.CreateCategory(ctx, domain.Category{ID: "cat-1", ProductID: "prod-1", Name: "Compliance"}); err != nil {
		t.Fatalf("seed category: %v", err)
	}
	if err := repos.Catalog.CreateType(ctx, domain.DocumentType{ID: "type-a", ProductID: "prod-1", CategoryID: "cat-1", Name: "Insurance"}); err != nil {
		t.Fatalf("seed type: %v", err)
	}
	return &fixture{router: NewRouter(NewHandler(svc, nil, logger)), repos: repos, gateway: gateway}
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var envelope struct {
		Status string `json:"status"`
		Data   T      `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return envelope.Data
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp contracts.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return resp.Error.Code
}

func (f *fixture) upload(t *testing.T, name string) domain.Document {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/v1/products/prod-1/documents", application.UploadDocumentInput{TypeID: "type-a", Name: name, Data: []byte("pdf")}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status %d: %s", rec.Code, rec.Body.String())
	}
	return decodeData[domain.Document](t, rec)
}

func (f *fixture) register(t *testing.T, doc domain.Document) {
	t.Helper()
	_, err := f.repos.Documents.Mutate(context.Background(), "prod-1", doc.ID, func(d *domain.Document) error {
		d.State = domain.DocumentStateRegistered
		return nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/v1/products/prod-1/documents/missing", nil, map[string]string{"X-Request-Id": "req-abc"})
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "NOT_FOUND" {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-Id") != "req-abc" {
		t.Fatalf("request id not echoed")
	}
	var resp contracts.ErrorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.RequestID != "req-abc" {
		t.Fatalf("request id missing from error body: %+v", resp)
	}
}

func TestSendDocumentsErrorMapping(t *testing.T) {
	f := newFixture(t)
	pending := f.upload(t, "Pending certificate")

	rec := f.do(t, http.MethodPost, "/v1/products/prod-1/shared-documents", application.SendDocumentsInput{CompanyID: "company-acme", Documents: []string{pending.ID}}, nil)
	if rec.Code != http.StatusUnprocessableEntity || errorCode(t, rec) != "INVALID_OPERATION" {
		t.Fatalf("expected 422 for unregistered document, got %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/v1/products/prod-1/shared-documents", application.SendDocumentsInput{CompanyID: "company-acme", Documents: []string{"ghost"}}, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown document, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/v1/products/prod-1/shared-documents", application.SendDocumentsInput{CompanyID: "company-acme"}, nil)
	if rec.Code != http.StatusUnprocessableEntity || errorCode(t, rec) != "INVALID_ITEM" {
		t.Fatalf("expected 422 for empty selection, got %d %s", rec.Code, rec.Body.String())
	}

	registered := f.upload(t, "Registered certificate")
	f.register(t, registered)
	f.gateway.err = domain.ErrBufferFull
	rec = f.do(t, http.MethodPost, "/v1/products/prod-1/shared-documents", application.SendDocumentsInput{CompanyID: "company-acme", Documents: []string{registered.ID}}, nil)
	if rec.Code != http.StatusServiceUnavailable || errorCode(t, rec) != "MESSAGING_ERROR" {
		t.Fatalf("expected 503 for messaging error, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestUploadTooLarge(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/v1/products/prod-1/documents", application.UploadDocumentInput{TypeID: "type-a", Name: "Big", Data: bytes.Repeat([]byte("x"), 100)}, nil)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestSendDocumentsIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	doc := f.upload(t, "Certificate")
	f.register(t, doc)
	headers := map[string]string{"Idempotency-Key": "key-1"}
	body := application.SendDocumentsInput{CompanyID: "company-acme", Documents: []string{doc.ID}}

	first := f.do(t, http.MethodPost, "/v1/products/prod-1/shared-documents", body, headers)
	if first.Code != http.StatusOK {
		t.Fatalf("first send %d %s", first.Code, first.Body.String())
	}
	replay := f.do(t, http.MethodPost, "/v1/products/prod-1/shared-documents", body, headers)
	if replay.Code != http.StatusOK || f.gateway.sent != 1 {
		t.Fatalf("replay must not resend: status %d sent %d", replay.Code, f.gateway.sent)
	}
	body.Note = "changed"
	conflict := f.do(t, http.MethodPost, "/v1/products/prod-1/shared-documents", body, headers)
	if conflict.Code != http.StatusConflict || errorCode(t, conflict) != "IDEMPOTENCY_CONFLICT" {
		t.Fatalf("expected 409, got %d %s", conflict.Code, conflict.Body.String())
	}

	shared := f.do(t, http.MethodGet, "/v1/products/prod-1/shared-documents", nil, nil)
	entries := decodeData[[]domain.LedgerEntry](t, shared)
	if len(entries) != 1 {
		t.Fatalf("expected one shared entry, got %d", len(entries))
	}
}

func TestRequestRoutes(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/v1/products/prod-1/requests", application.RequestDocumentsInput{CompanyID: "company-acme", Types: []string{"type-a"}}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("request documents %d %s", rec.Code, rec.Body.String())
	}
	created := decodeData[domain.Request](t, rec)

	rec = f.do(t, http.MethodGet, "/v1/products/prod-1/requests/outgoing/"+created.ID, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get outgoing %d", rec.Code)
	}
	rec = f.do(t, http.MethodPost, "/v1/products/prod-1/requests/outgoing/"+created.ID+"/notes", application.NoteInput{Content: "any update?"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("send note %d %s", rec.Code, rec.Body.String())
	}
	if rec := f.do(t, http.MethodGet, "/v1/products/prod-1/requests/sideways", nil, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown direction, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodPost, "/v1/products/prod-1/requests/incoming/"+created.ID+"/dismissals", dismissTypesRequest{Dismissals: []application.DismissTypeInput{{TypeID: "type-a", Content: "n/a"}}}, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("dismissing on a missing incoming request must be 404, got %d", rec.Code)
	}
}

func TestMalformedBodyAndDisabledStream(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/products/prod-1/categories", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/v1/products/prod-1/events", nil, nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a hub, got %d", rec.Code)
	}
}

func TestMapDomainError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrItemNotFound, http.StatusNotFound},
		{&domain.PayloadTooLargeError{Total: 10, Limit: 5}, http.StatusRequestEntityTooLarge},
		{domain.ErrInvalidItem, http.StatusUnprocessableEntity},
		{domain.ErrInvalidOperation, http.StatusUnprocessableEntity},
		{domain.ErrNotRegistered, http.StatusUnprocessableEntity},
		{domain.ErrDuplicatedItem, http.StatusConflict},
		{domain.ErrIdempotencyConflict, http.StatusConflict},
		{&domain.MessagingError{Err: domain.ErrBufferFull}, http.StatusServiceUnavailable},
		{domain.ErrDependencyUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got, _, _ := mapDomainError(tc.err); got != tc.want {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.want, got)
		}
	}
}
