package taskclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/domain"
)

type scriptedServer struct {
	mu       sync.Mutex
	statuses []int
	requests []*http.Request
	bodies   [][]byte
}

func (s *scriptedServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.requests = append(s.requests, r)
	s.bodies = append(s.bodies, body)
	status := http.StatusOK
	if len(s.statuses) > 0 {
		status = s.statuses[0]
		s.statuses = s.statuses[1:]
	}
	s.mu.Unlock()
	w.WriteHeader(status)
}

func newTestClient(t *testing.T, srv *httptest.Server, delays *[]time.Duration) *Client {
	t.Helper()
	client, err := New(slog.New(slog.NewJSONHandler(io.Discard, nil)), Config{
		BaseURL:       srv.URL,
		Token:         "secret",
		RatePerSecond: 1000,
		Burst:         100,
		MaxAttempts:   3,
		BaseDelay:     10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.sleep = func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return client
}

func TestCreateTaskSendsTaskAndNotification(t *testing.T) {
	script := &scriptedServer{}
	srv := httptest.NewServer(script)
	defer srv.Close()
	var delays []time.Duration
	client := newTestClient(t, srv, &delays)

	task := domain.Task{Reference: "review:prod-1:l-1", ProductID: "prod-1", Kind: domain.TaskKindDocumentReview, Summary: "1 document(s) received from Acme", Status: domain.TaskOpen}
	note := &domain.NotificationMessage{ProductID: "prod-1", Title: "Documents received"}
	if err := client.CreateTask(context.Background(), task, note); err != nil {
		t.Fatalf("create task: %v", err)
	}
	if len(script.requests) != 1 {
		t.Fatalf("expected one request, got %d", len(script.requests))
	}
	req := script.requests[0]
	if req.Method != http.MethodPost || req.URL.Path != "/v1/tasks" || req.Header.Get("Authorization") != "Bearer secret" {
		t.Fatalf("unexpected request %s %s", req.Method, req.URL.Path)
	}
	var body createTaskRequest
	if err := json.Unmarshal(script.bodies[0], &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Task.Reference != task.Reference || body.Notification == nil || body.Notification.Title != "Documents received" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestExpectedStatusesAreSwallowed(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity} {
		script := &scriptedServer{statuses: []int{status}}
		srv := httptest.NewServer(script)
		var delays []time.Duration
		client := newTestClient(t, srv, &delays)
		err := client.UpdateTaskStatus(context.Background(), domain.TaskUpdate{Reference: "request:prod-1:r-1", Status: domain.TaskDone})
		srv.Close()
		if err != nil {
			t.Fatalf("status %d: expected nil, got %v", status, err)
		}
		if len(script.requests) != 1 || len(delays) != 0 {
			t.Fatalf("status %d must not be retried", status)
		}
		if script.requests[0].Method != http.MethodPatch || script.requests[0].URL.Path != "/v1/tasks/request:prod-1:r-1" {
			t.Fatalf("unexpected request %s %s", script.requests[0].Method, script.requests[0].URL.Path)
		}
	}
}

func TestRetriesWithExponentialBackoff(t *testing.T) {
	script := &scriptedServer{statuses: []int{http.StatusServiceUnavailable, http.StatusTooManyRequests, http.StatusOK}}
	srv := httptest.NewServer(script)
	defer srv.Close()
	var delays []time.Duration
	client := newTestClient(t, srv, &delays)

	if err := client.Notify(context.Background(), domain.NotificationMessage{ProductID: "prod-1", Title: "hi"}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(script.requests) != 3 {
		t.Fatalf("expected three attempts, got %d", len(script.requests))
	}
	if len(delays) != 2 || delays[0] != 10*time.Millisecond || delays[1] != 20*time.Millisecond {
		t.Fatalf("unexpected backoff %v", delays)
	}
}

func TestGivesUpAfterMaxAttempts(t *testing.T) {
	script := &scriptedServer{statuses: []int{500, 502, 503, 200}}
	srv := httptest.NewServer(script)
	defer srv.Close()
	var delays []time.Duration
	client := newTestClient(t, srv, &delays)

	err := client.Notify(context.Background(), domain.NotificationMessage{ProductID: "prod-1"})
	if !errors.Is(err, domain.ErrDependencyUnavailable) {
		t.Fatalf("expected dependency unavailable, got %v", err)
	}
	if len(script.requests) != 3 {
		t.Fatalf("expected three attempts, got %d", len(script.requests))
	}
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	script := &scriptedServer{statuses: []int{http.StatusBadRequest}}
	srv := httptest.NewServer(script)
	defer srv.Close()
	var delays []time.Duration
	client := newTestClient(t, srv, &delays)

	if err := client.Notify(context.Background(), domain.NotificationMessage{ProductID: "prod-1"}); err == nil {
		t.Fatalf("expected error for bad request")
	}
	if len(script.requests) != 1 {
		t.Fatalf("bad request must not be retried")
	}
}

func TestNewRejectsInvalidURL(t *testing.T) {
	if _, err := New(slog.New(slog.NewJSONHandler(io.Discard, nil)), Config{BaseURL: "not a url"}); err == nil {
		t.Fatalf("expected invalid url error")
	}
}
