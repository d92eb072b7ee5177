package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrItemNotFound          = errors.New("item not found")
	ErrInvalidItem           = errors.New("invalid item")
	ErrInvalidOperation      = errors.New("invalid operation")
	ErrDuplicatedItem        = errors.New("duplicated item")
	ErrPayloadTooLarge       = errors.New("payload too large")
	ErrNotRegistered         = errors.New("document not yet registered")
	ErrBufferFull            = errors.New("message buffer full")
	ErrIdempotencyConflict   = errors.New("idempotency conflict")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrUnsupportedEvent      = errors.New("unsupported event")
)

// PayloadTooLargeError reports the aggregate content size of a send against the configured ceiling.
type PayloadTooLargeError struct {
	Total int64
	Limit int64
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("%s: total %d bytes exceeds limit of %d bytes", ErrPayloadTooLarge, e.Total, e.Limit)
}

func (e *PayloadTooLargeError) Is(target error) bool {
	return target == ErrPayloadTooLarge || target == ErrInvalidItem
}

// MessagingError is a transport failure of the messaging gateway. The engine enriches it with the
// request and documents it was acting on and always hands it back to the caller.
type MessagingError struct {
	RoutingKey  string
	RecipientID string
	RequestID   string
	DocumentIDs []string
	Err         error
}

func (e *MessagingError) Error() string {
	var b strings.Builder
	b.WriteString("messaging error")
	if e.RoutingKey != "" {
		b.WriteString(" routing_key=" + e.RoutingKey)
	}
	if e.RecipientID != "" {
		b.WriteString(" recipient=" + e.RecipientID)
	}
	if e.RequestID != "" {
		b.WriteString(" request=" + e.RequestID)
	}
	if len(e.DocumentIDs) > 0 {
		b.WriteString(" documents=" + strings.Join(e.DocumentIDs, ","))
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *MessagingError) Unwrap() error { return e.Err }

// WithContext returns a copy of e carrying the request and document ids.
func (e *MessagingError) WithContext(requestID string, documentIDs []string) *MessagingError {
	out := *e
	if requestID != "" {
		out.RequestID = requestID
	}
	if len(documentIDs) > 0 {
		out.DocumentIDs = append([]string(nil), documentIDs...)
	}
	return &out
}

// AttachMessagingContext enriches err when it is a MessagingError and returns it unchanged otherwise.
func AttachMessagingContext(err error, requestID string, documentIDs []string) error {
	var msgErr *MessagingError
	if errors.As(err, &msgErr) {
		return msgErr.WithContext(requestID, documentIDs)
	}
	return err
}

func IsMessagingError(err error) bool {
	var msgErr *MessagingError
	return errors.As(err, &msgErr)
}
