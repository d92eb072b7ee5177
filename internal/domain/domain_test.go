package domain

import (
	"errors"
	"testing"
	"time"
)

func TestDocumentRegistrationIsTerminal(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	doc := Document{ID: "doc-1", State: DocumentStatePending}
	if err := doc.Register("sig", "hash", "tx-1", now); err != nil {
		t.Fatalf("register pending document: %v", err)
	}
	if doc.State != DocumentStateRegistered || doc.Content.Signature != "sig" || doc.Hash != "hash" {
		t.Fatalf("unexpected document after register: %+v", doc)
	}
	if err := doc.Register("sig-2", "", "", now); !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("expected invalid operation on re-register, got %v", err)
	}
	if err := doc.Fail("", now); !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("expected invalid operation on fail after register, got %v", err)
	}

	failed := Document{ID: "doc-2", State: DocumentStatePending}
	if err := failed.Fail("tx-2", now); err != nil {
		t.Fatalf("fail pending document: %v", err)
	}
	if err := failed.Register("sig", "hash", "", now); !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("expected invalid operation registering failed document, got %v", err)
	}
}

func TestAppendShareDateKeepsOneEntryPerCounterparty(t *testing.T) {
	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)
	doc := Document{ID: "doc-1"}
	doc.AppendShareDate("company-b", first)
	doc.AppendShareDate("company-c", first)
	doc.AppendShareDate("company-b", second)

	if len(doc.SharedWith) != 2 {
		t.Fatalf("expected 2 share entries, got %d", len(doc.SharedWith))
	}
	entry := doc.SharedWith[doc.ShareEntryIndex("company-b")]
	if len(entry.SharedDates) != 2 || !entry.SharedDates[1].Equal(second) {
		t.Fatalf("expected accumulated share dates, got %+v", entry.SharedDates)
	}
}

func TestCanDelete(t *testing.T) {
	if err := (Document{ID: "a"}).CanDelete(); err != nil {
		t.Fatalf("expected unshared document to be deletable: %v", err)
	}
	shared := Document{ID: "b", SharedWith: []ShareEntry{{CounterpartyID: "x"}}}
	if err := shared.CanDelete(); !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("expected invalid operation for shared document, got %v", err)
	}
	received := Document{ID: "c", SharedBy: "company-a"}
	if err := received.CanDelete(); !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("expected invalid operation for received document, got %v", err)
	}
}

func TestContextMatches(t *testing.T) {
	cases := []struct {
		name      string
		doc       map[string]any
		requested map[string]any
		want      bool
	}{
		{name: "both empty", doc: nil, requested: map[string]any{}, want: true},
		{name: "ignores review flag", doc: map[string]any{"case": "42"}, requested: map[string]any{"case": "42", ReviewNotRequiredKey: true}, want: true},
		{name: "nested equal", doc: map[string]any{"deal": map[string]any{"id": "d1"}}, requested: map[string]any{"deal": map[string]any{"id": "d1"}}, want: true},
		{name: "value differs", doc: map[string]any{"case": "42"}, requested: map[string]any{"case": "43"}, want: false},
		{name: "extra key", doc: map[string]any{}, requested: map[string]any{"case": "42"}, want: false},
	}
	for _, tc := range cases {
		if got := ContextMatches(tc.doc, tc.requested); got != tc.want {
			t.Errorf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestMarkTypesSentIsMonotonicSubset(t *testing.T) {
	req := Request{ID: "req-1", Types: []string{"A", "B"}}
	if added := req.MarkTypesSent([]string{"d1"}, []string{"A", "Z"}); added != 1 {
		t.Fatalf("expected 1 new type, got %d", added)
	}
	if added := req.MarkTypesSent([]string{"d1", "d2"}, []string{"A"}); added != 0 {
		t.Fatalf("expected re-send to be a no-op, got %d", added)
	}
	if len(req.SentDocumentTypes) != 1 || len(req.SentDocuments) != 2 {
		t.Fatalf("unexpected request progress: %+v", req)
	}
	if req.IsComplete() {
		t.Fatalf("request should not be complete yet")
	}
	req.MarkTypesSent([]string{"d3"}, []string{"B"})
	if !req.IsComplete() {
		t.Fatalf("request should be complete")
	}
	for _, typeID := range req.SentDocumentTypes {
		if !req.HasType(typeID) {
			t.Fatalf("sent type %s not requested", typeID)
		}
	}
}

func TestAddDismissal(t *testing.T) {
	req := Request{ID: "req-1", Types: []string{"A"}}
	if err := req.AddDismissal(DismissedType{TypeID: "A", Content: "not available"}); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	if err := req.AddDismissal(DismissedType{TypeID: "A"}); !errors.Is(err, ErrDuplicatedItem) {
		t.Fatalf("expected duplicated item, got %v", err)
	}
	if err := req.AddDismissal(DismissedType{TypeID: "B"}); !errors.Is(err, ErrInvalidItem) {
		t.Fatalf("expected invalid item, got %v", err)
	}
	if len(req.PendingDismissals()) != 1 {
		t.Fatalf("expected one pending dismissal")
	}
	req.MarkDismissalsRelayed([]string{"A"})
	if len(req.PendingDismissals()) != 0 {
		t.Fatalf("expected no pending dismissals after relay")
	}
}

func TestLedgerReviewCounts(t *testing.T) {
	entry := NewLedgerEntry(LedgerReceived, "rd-1", "p1", "company-a", "share-1", nil, nil, []string{"d1", "d2", "d3"}, time.Now())
	if err := entry.ApplyReview(DocumentFeedback{DocumentID: "d2", Status: ReviewRejected, Note: "blurry"}); err != nil {
		t.Fatalf("apply review: %v", err)
	}
	reviewed, total := entry.ReviewCounts()
	if reviewed != 1 || total != 3 {
		t.Fatalf("unexpected counts %d/%d", reviewed, total)
	}
	if entry.Documents[0].Status != ReviewPending || entry.Documents[1].Note != "blurry" {
		t.Fatalf("review leaked to other documents: %+v", entry.Documents)
	}
	if err := entry.ApplyReview(DocumentFeedback{DocumentID: "missing", Status: ReviewAccepted}); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected item not found, got %v", err)
	}
	if err := entry.ApplyReview(DocumentFeedback{DocumentID: "d1", Status: "Maybe"}); !errors.Is(err, ErrInvalidItem) {
		t.Fatalf("expected invalid item, got %v", err)
	}
}

func TestTaskProjections(t *testing.T) {
	if ClassifyProgress(0, 2) != ProgressNone {
		t.Fatalf("expected no change with nothing done")
	}
	inProgress := RequestInProgressUpdate("p1", "req-1", 1, 2)
	if inProgress.Summary != "Complete document request: 1/2" || inProgress.Status != TaskInProgress {
		t.Fatalf("unexpected in-progress update: %+v", inProgress)
	}
	done := RequestDoneUpdate("p1", "req-1", 2, "Acme")
	if done.Summary != "2 document(s) requested from Acme" || done.Comment != "Sent 2 documents to a counterparty" || done.Outcome == nil || !*done.Outcome {
		t.Fatalf("unexpected done update: %+v", done)
	}
	if _, ok := ReviewProgressUpdate("ref", "p1", 0, 3); ok {
		t.Fatalf("expected no review update with zero reviewed")
	}
	review, ok := ReviewProgressUpdate("ref", "p1", 1, 3)
	if !ok || review.Summary != "Complete document review: 1/3" || review.Status != TaskInProgress {
		t.Fatalf("unexpected review update: %+v", review)
	}
	feedback := FeedbackUpdate("ref", "p1", 0, 1)
	if feedback.Comment != "0 documents approved, 1 documents rejected" || feedback.Outcome == nil || *feedback.Outcome {
		t.Fatalf("unexpected feedback update: %+v", feedback)
	}
}

func TestPolicyTable(t *testing.T) {
	table := NewPolicyTable([]string{"legacy-kyc", ""})
	if !table.For("legacy-kyc").AllowUnregisteredShare {
		t.Fatalf("expected legacy product to allow unregistered share")
	}
	if table.For("other").AllowUnregisteredShare {
		t.Fatalf("expected default policy to require registration")
	}
}

func TestMessagingErrorContext(t *testing.T) {
	base := &MessagingError{RoutingKey: "exchange.send-documents", RecipientID: "company-b", Err: ErrBufferFull}
	err := AttachMessagingContext(base, "req-1", []string{"d1"})
	var msgErr *MessagingError
	if !errors.As(err, &msgErr) {
		t.Fatalf("expected messaging error, got %T", err)
	}
	if msgErr.RequestID != "req-1" || len(msgErr.DocumentIDs) != 1 || !errors.Is(err, ErrBufferFull) {
		t.Fatalf("unexpected messaging error: %+v", msgErr)
	}
	if base.RequestID != "" {
		t.Fatalf("original error must not be mutated")
	}
	plain := errors.New("boom")
	if AttachMessagingContext(plain, "req-1", nil) != plain {
		t.Fatalf("non-messaging errors pass through")
	}
}

func TestPayloadTooLargeMatchesInvalidItem(t *testing.T) {
	err := error(&PayloadTooLargeError{Total: 10, Limit: 5})
	if !errors.Is(err, ErrPayloadTooLarge) || !errors.Is(err, ErrInvalidItem) {
		t.Fatalf("expected payload too large to match both sentinels")
	}
}
