package contracts

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/domain"
)

const EnvelopeVersion = "1.0"

const (
	RoutingKeyRequestDocuments    = "exchange.request-documents"
	RoutingKeySendDocuments       = "exchange.send-documents"
	RoutingKeyDismissTypes        = "exchange.dismiss-types"
	RoutingKeyNote                = "exchange.note"
	RoutingKeyFeedback            = "exchange.feedback"
	RoutingKeyTransactionResult   = "ledger.transaction-result"
	RoutingKeyRegistrationRequest = "ledger.registration-request"
)

type EnvelopeContext struct {
	ProductID string  `json:"productId"`
	RequestID *string `json:"requestId,omitempty"`
}

// Envelope is the wire form of every exchange message between company nodes.
type Envelope struct {
	Version     string          `json:"version"`
	MessageID   string          `json:"messageId"`
	MessageType string          `json:"messageType"`
	SenderID    string          `json:"senderId"`
	SentAt      time.Time       `json:"sentAt"`
	Context     EnvelopeContext `json:"context"`
	Data        json.RawMessage `json:"data"`
}

// Event is the closed set of exchange payloads. Each kind reports the routing key it travels on.
type Event interface {
	RoutingKey() string
	isEvent()
}

type DocumentPayload struct {
	ID            string         `json:"id"`
	CategoryID    string         `json:"categoryId"`
	TypeID        string         `json:"typeId"`
	Name          string         `json:"name"`
	Owner         domain.Owner   `json:"owner"`
	Content       domain.Content `json:"content"`
	Hash          string         `json:"hash,omitempty"`
	ContentHash   string         `json:"contentHash,omitempty"`
	State         string         `json:"state"`
	Context       map[string]any `json:"context,omitempty"`
	Comment       string         `json:"comment,omitempty"`
	ContentBase64 string         `json:"contentBase64,omitempty"`
}

type NotePayload struct {
	Date    time.Time `json:"date"`
	Sender  string    `json:"sender"`
	Content string    `json:"content"`
}

type DismissalPayload struct {
	TypeID  string    `json:"typeId"`
	Content string    `json:"content"`
	Date    time.Time `json:"date"`
}

type RequestDocumentsEvent struct {
	RequestID string       `json:"requestId"`
	Types     []string     `json:"types"`
	Documents []string     `json:"documents"`
	Note      *NotePayload `json:"note,omitempty"`
}

type SendDocumentsEvent struct {
	ShareID                   string            `json:"shareId"`
	RequestID                 *string           `json:"requestId,omitempty"`
	Context                   map[string]any    `json:"context,omitempty"`
	ReviewNotRequired         bool              `json:"reviewNotRequired"`
	DocumentShareNotification bool              `json:"documentShareNotification"`
	Documents                 []DocumentPayload `json:"documents"`
}

type DismissTypesEvent struct {
	RequestID  string             `json:"requestId"`
	Dismissals []DismissalPayload `json:"dismissals"`
}

type NoteEvent struct {
	RequestID string      `json:"requestId"`
	Note      NotePayload `json:"note"`
}

type FeedbackEvent struct {
	ShareID   string                    `json:"shareId"`
	RequestID *string                   `json:"requestId,omitempty"`
	Documents []domain.DocumentFeedback `json:"documents"`
}

type TransactionResultEvent struct {
	DocumentID string `json:"documentId"`
	TxID       string `json:"txId"`
	Success    bool   `json:"success"`
	Signature  string `json:"signature,omitempty"`
	Hash       string `json:"hash,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

type RegistrationRequestEvent struct {
	DocumentID  string `json:"documentId"`
	ContentHash string `json:"contentHash"`
	FileID      string `json:"fileId"`
}

func (RequestDocumentsEvent) RoutingKey() string    { return RoutingKeyRequestDocuments }
func (SendDocumentsEvent) RoutingKey() string       { return RoutingKeySendDocuments }
func (DismissTypesEvent) RoutingKey() string        { return RoutingKeyDismissTypes }
func (NoteEvent) RoutingKey() string                { return RoutingKeyNote }
func (FeedbackEvent) RoutingKey() string            { return RoutingKeyFeedback }
func (TransactionResultEvent) RoutingKey() string   { return RoutingKeyTransactionResult }
func (RegistrationRequestEvent) RoutingKey() string { return RoutingKeyRegistrationRequest }

func (RequestDocumentsEvent) isEvent()    {}
func (SendDocumentsEvent) isEvent()       {}
func (DismissTypesEvent) isEvent()        {}
func (NoteEvent) isEvent()                {}
func (FeedbackEvent) isEvent()            {}
func (TransactionResultEvent) isEvent()   {}
func (RegistrationRequestEvent) isEvent() {}

// NewEnvelope wraps event for delivery. requestID may be empty for ad-hoc messages.
func NewEnvelope(messageID, senderID, productID, requestID string, event Event, sentAt time.Time) (Envelope, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", event.RoutingKey(), err)
	}
	env := Envelope{
		Version:     EnvelopeVersion,
		MessageID:   messageID,
		MessageType: event.RoutingKey(),
		SenderID:    senderID,
		SentAt:      sentAt.UTC(),
		Context:     EnvelopeContext{ProductID: productID},
		Data:        data,
	}
	if requestID != "" {
		rid := requestID
		env.Context.RequestID = &rid
	}
	return env, nil
}

// DecodeEvent turns the envelope data into its typed payload.
func (e Envelope) DecodeEvent() (Event, error) {
	switch e.MessageType {
	case RoutingKeyRequestDocuments:
		return decodeAs[RequestDocumentsEvent](e.Data)
	case RoutingKeySendDocuments:
		return decodeAs[SendDocumentsEvent](e.Data)
	case RoutingKeyDismissTypes:
		return decodeAs[DismissTypesEvent](e.Data)
	case RoutingKeyNote:
		return decodeAs[NoteEvent](e.Data)
	case RoutingKeyFeedback:
		return decodeAs[FeedbackEvent](e.Data)
	case RoutingKeyTransactionResult:
		return decodeAs[TransactionResultEvent](e.Data)
	case RoutingKeyRegistrationRequest:
		return decodeAs[RegistrationRequestEvent](e.Data)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedEvent, e.MessageType)
	}
}

func (e Envelope) RequestIDValue() string {
	if e.Context.RequestID == nil {
		return ""
	}
	return *e.Context.RequestID
}

func decodeAs[T Event](raw json.RawMessage) (Event, error) {
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrInvalidItem, out.RoutingKey(), err)
	}
	return out, nil
}

// LocalEvent is a same-node notification for internal consumers such as connected UI clients.
type LocalEvent struct {
	EventID    string         `json:"eventId"`
	EventType  string         `json:"eventType"`
	ProductID  string         `json:"productId"`
	OccurredAt time.Time      `json:"occurredAt"`
	Data       map[string]any `json:"data"`
}

const (
	LocalEventDocumentsReceived  = "documents.received"
	LocalEventRequestReceived    = "request.received"
	LocalEventFeedbackReceived   = "feedback.received"
	LocalEventDocumentRegistered = "document.registered"
)
