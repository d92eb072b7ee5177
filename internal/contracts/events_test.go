package contracts

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/domain"
)

func TestEnvelopeDecodesTypedEvent(t *testing.T) {
	sentAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	env, err := NewEnvelope("msg-1", "company-a", "p1", "req-1", DismissTypesEvent{
		RequestID:  "req-1",
		Dismissals: []DismissalPayload{{TypeID: "A", Content: "not available", Date: sentAt}},
	}, sentAt)
	if err != nil {
		t.Fatalf("new envelope: %v", err)
	}
	if env.MessageType != RoutingKeyDismissTypes || env.RequestIDValue() != "req-1" {
		t.Fatalf("unexpected envelope header: %+v", env)
	}

	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	var decoded Envelope
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	event, err := decoded.DecodeEvent()
	if err != nil {
		t.Fatalf("decode event: %v", err)
	}
	dismiss, ok := event.(DismissTypesEvent)
	if !ok {
		t.Fatalf("expected DismissTypesEvent, got %T", event)
	}
	if len(dismiss.Dismissals) != 1 || dismiss.Dismissals[0].TypeID != "A" {
		t.Fatalf("unexpected payload: %+v", dismiss)
	}
}

func TestEnvelopeWithoutRequestID(t *testing.T) {
	env, err := NewEnvelope("msg-2", "company-a", "p1", "", FeedbackEvent{ShareID: "s1"}, time.Now())
	if err != nil {
		t.Fatalf("new envelope: %v", err)
	}
	if env.Context.RequestID != nil {
		t.Fatalf("expected nil request id for ad-hoc message")
	}
}

func TestDecodeUnknownMessageType(t *testing.T) {
	env := Envelope{MessageType: "exchange.unknown", Data: json.RawMessage(`{}`)}
	if _, err := env.DecodeEvent(); !errors.Is(err, domain.ErrUnsupportedEvent) {
		t.Fatalf("expected unsupported event, got %v", err)
	}
}

func TestDecodeMalformedPayload(t *testing.T) {
	env := Envelope{MessageType: RoutingKeyNote, Data: json.RawMessage(`{"requestId": 7}`)}
	if _, err := env.DecodeEvent(); !errors.Is(err, domain.ErrInvalidItem) {
		t.Fatalf("expected invalid item, got %v", err)
	}
}
