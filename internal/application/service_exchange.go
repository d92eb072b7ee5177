package application

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/contracts"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/domain"
)

func encodeContent(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func decodeContent(raw string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(raw)
}

// SendDocuments shares registered documents with a counterparty, optionally in fulfillment of an
// incoming request. The ledger row is written before the message is published; a publish failure
// leaves the row in place and is returned as a *domain.MessagingError. A note or dismissal relay
// failure after delivery returns the sent documents together with the error.
func (s *Service) SendDocuments(ctx context.Context, productID string, in SendDocumentsInput) ([]domain.Document, error) {
	documentIDs := uniqueStrings(in.Documents)
	if len(documentIDs) == 0 {
		return nil, fmt.Errorf("%w: no documents to send", domain.ErrInvalidItem)
	}
	if strings.TrimSpace(in.CompanyID) == "" {
		return nil, fmt.Errorf("%w: recipient company is required", domain.ErrInvalidItem)
	}
	if in.CompanyID == s.cfg.CompanyID {
		return nil, fmt.Errorf("%w: cannot send documents to own company", domain.ErrInvalidItem)
	}
	requestID := in.requestID()
	logger := s.log(ctx, "send_documents").With("product_id", productID, "recipient_id", in.CompanyID)

	var request *domain.Request
	if requestID != "" {
		req, err := s.requests.Get(ctx, domain.RequestIncoming, productID, requestID)
		if err != nil {
			return nil, err
		}
		if req.CompanyID != in.CompanyID {
			return nil, fmt.Errorf("%w: request %s was issued by %s", domain.ErrInvalidItem, requestID, req.CompanyID)
		}
		request = &req
	}

	docs := make([]domain.Document, 0, len(documentIDs))
	for _, id := range documentIDs {
		doc, err := s.documents.Get(ctx, productID, id)
		if err != nil {
			return nil, err
		}
		if !domain.ContextMatches(doc.Context, in.Context) {
			return nil, fmt.Errorf("%w: context of document %s does not match the requested context", domain.ErrInvalidItem, doc.DisplayName())
		}
		docs = append(docs, doc)
	}

	var total int64
	for _, doc := range docs {
		size, err := s.storedSize(ctx, doc)
		if err != nil {
			return nil, err
		}
		total += size
	}
	if total > s.cfg.MaxSendPayloadBytes {
		return nil, &domain.PayloadTooLargeError{Total: total, Limit: s.cfg.MaxSendPayloadBytes}
	}

	if !s.cfg.Policies.For(productID).AllowUnregisteredShare {
		for _, doc := range docs {
			if doc.State != domain.DocumentStateRegistered {
				return nil, fmt.Errorf("%w: document %s is %s", domain.ErrNotRegistered, doc.DisplayName(), doc.State)
			}
		}
	}

	payloads := make([]contracts.DocumentPayload, 0, len(docs))
	typeIDs := make([]string, 0, len(docs))
	for _, doc := range docs {
		content, err := s.loadContent(ctx, doc)
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, toDocumentPayload(doc, content))
		typeIDs = append(typeIDs, doc.TypeID)
	}

	now := s.nowFn()
	reviewNotRequired := in.ReviewNotRequired || domain.ReviewNotRequired(in.Context)
	entry := domain.NewLedgerEntry(domain.LedgerShared, uuid.NewString(), productID, in.CompanyID, uuid.NewString(), in.RequestID, in.Context, documentIDs, now)
	entry.ReviewNotRequired = reviewNotRequired
	if err := s.ledgers.Create(ctx, entry); err != nil {
		return nil, err
	}

	_, err := s.send(ctx, productID, requestID, in.CompanyID, contracts.SendDocumentsEvent{
		ShareID:                   entry.ShareID,
		RequestID:                 in.RequestID,
		Context:                   in.Context,
		ReviewNotRequired:         reviewNotRequired,
		DocumentShareNotification: in.DocumentShareNotification,
		Documents:                 payloads,
	})
	if err != nil {
		logger.ErrorContext(ctx, "send documents message failed",
			"outcome", "failure",
			"shared_documents_id", entry.ID,
			"error", err,
		)
		return nil, domain.AttachMessagingContext(err, requestID, documentIDs)
	}

	for i := range docs {
		docs[i] = s.recordShare(ctx, docs[i], in.CompanyID)
	}

	if request != nil {
		if err := s.progressIncomingRequest(ctx, *request, in.Note, documentIDs, typeIDs); err != nil {
			// The documents are already delivered; the caller gets them with the relay error.
			return docs, err
		}
	}
	logger.InfoContext(ctx, "documents sent",
		"outcome", "success",
		"exchange_request_id", requestID,
		"document_count", len(docs),
		"shared_documents_id", entry.ID,
	)
	return docs, nil
}

// recordShare appends the share date after the message left. A failed atomic append is retried
// once as a positional write of the entry computed from the copy already in hand.
func (s *Service) recordShare(ctx context.Context, doc domain.Document, counterpartyID string) domain.Document {
	at := s.nowFn()
	updated, err := s.documents.AppendShareDate(ctx, doc.ProductID, doc.ID, counterpartyID, at)
	if err == nil {
		return updated
	}
	logger := s.log(ctx, "record_share").With("product_id", doc.ProductID, "document_id", doc.ID)
	logger.WarnContext(ctx, "share date append failed, retrying positional update", "outcome", "retry", "error", err)

	fallback := doc
	fallback.AppendShareDate(counterpartyID, at)
	index := fallback.ShareEntryIndex(counterpartyID)
	if setErr := s.documents.SetShareEntry(ctx, doc.ProductID, doc.ID, index, fallback.SharedWith[index]); setErr != nil {
		logger.ErrorContext(ctx, "share date update lost", "outcome", "failure", "error", setErr)
	}
	return fallback
}

// progressIncomingRequest relays the pending note and dismissals, then records what was sent
// and moves the request task. Relay failures are returned after progress is recorded.
func (s *Service) progressIncomingRequest(ctx context.Context, request domain.Request, note string, documentIDs, typeIDs []string) error {
	productID := request.ProductID
	var relayErr error

	if strings.TrimSpace(note) != "" {
		if _, err := s.SendNote(ctx, productID, domain.RequestIncoming, request.ID, NoteInput{Content: note}); err != nil {
			relayErr = err
		}
	}
	if pending := request.PendingDismissals(); len(pending) > 0 {
		if err := s.relayDismissals(ctx, request, pending); err != nil && relayErr == nil {
			relayErr = err
		}
	}

	updated, added, err := s.requests.MarkTypesSent(ctx, domain.RequestIncoming, productID, request.ID, documentIDs, typeIDs)
	if err != nil {
		return err
	}
	if added > 0 {
		sent, total := len(updated.SentDocumentTypes), len(updated.Types)
		switch domain.ClassifyProgress(sent, total) {
		case domain.ProgressInProgress:
			s.updateTask(ctx, domain.RequestInProgressUpdate(productID, request.ID, sent, total))
		case domain.ProgressDone:
			name := s.counterpartyName(ctx, updated.CompanyID)
			s.updateTask(ctx, domain.RequestDoneUpdate(productID, request.ID, total, name))
		}
	}
	if relayErr != nil {
		return domain.AttachMessagingContext(relayErr, request.ID, documentIDs)
	}
	return nil
}

// SendDocumentsIdempotent runs SendDocuments under an Idempotency-Key. A completed key replays
// the stored documents; a key reused with a different body is a conflict. A note or dismissal
// relay failure after delivery still completes the key.
func (s *Service) SendDocumentsIdempotent(ctx context.Context, productID string, in SendDocumentsInput, idempotencyKey string) ([]domain.Document, error) {
	scope := struct {
		ProductID string             `json:"productId"`
		Input     SendDocumentsInput `json:"input"`
	}{ProductID: productID, Input: in}
	existing, err := s.reserveIdempotency(ctx, idempotencyKey, scope)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.ResponseCode == http.StatusOK {
		var replay []domain.Document
		if err := json.Unmarshal(existing.ResponseBody, &replay); err != nil {
			return nil, fmt.Errorf("decode idempotent replay: %w", err)
		}
		return replay, nil
	}
	docs, err := s.SendDocuments(ctx, productID, in)
	if docs == nil {
		// Nothing left the node, so the key is released for a retry with the same body.
		s.completeIdempotency(ctx, idempotencyKey, 0, nil)
		return nil, err
	}
	// Once the documents message is out a retry replays it instead of creating another share.
	s.completeIdempotency(ctx, idempotencyKey, http.StatusOK, docs)
	return docs, err
}

// ReceiveDocuments applies an inbound send-documents message.
func (s *Service) ReceiveDocuments(ctx context.Context, env contracts.Envelope, ev contracts.SendDocumentsEvent) (domain.LedgerEntry, error) {
	productID := env.Context.ProductID
	senderID := env.SenderID
	if len(ev.Documents) == 0 {
		return domain.LedgerEntry{}, fmt.Errorf("%w: send-documents message without documents", domain.ErrInvalidItem)
	}
	logger := s.log(ctx, "receive_documents").With("product_id", productID, "sender_id", senderID, "message_id", env.MessageID)
	now := s.nowFn()

	documentIDs := make([]string, 0, len(ev.Documents))
	typeIDs := make([]string, 0, len(ev.Documents))
	for _, payload := range ev.Documents {
		documentIDs = append(documentIDs, payload.ID)
		typeIDs = append(typeIDs, payload.TypeID)
		exists, err := s.documents.Exists(ctx, productID, payload.ID)
		if err != nil {
			return domain.LedgerEntry{}, err
		}
		if exists {
			continue
		}
		if err := s.storeReceivedDocument(ctx, productID, senderID, payload, now); err != nil {
			if errors.Is(err, domain.ErrDuplicatedItem) {
				logger.WarnContext(ctx, "document stored concurrently", "outcome", "skipped", "document_id", payload.ID)
				continue
			}
			return domain.LedgerEntry{}, err
		}
	}

	entry := domain.NewLedgerEntry(domain.LedgerReceived, uuid.NewString(), productID, senderID, ev.ShareID, ev.RequestID, ev.Context, documentIDs, now)
	entry.ReviewNotRequired = ev.ReviewNotRequired
	if err := s.ledgers.Create(ctx, entry); err != nil {
		return domain.LedgerEntry{}, err
	}

	if ev.RequestID != nil && *ev.RequestID != "" {
		if _, _, err := s.requests.MarkTypesSent(ctx, domain.RequestOutgoing, productID, *ev.RequestID, documentIDs, typeIDs); err != nil {
			logger.WarnContext(ctx, "outgoing request progress not recorded",
				"outcome", "skipped",
				"exchange_request_id", *ev.RequestID,
				"error", err,
			)
		}
	}

	name := s.counterpartyName(ctx, senderID)
	summary := domain.ReceivedSummary(len(documentIDs), name)
	switch {
	case ev.DocumentShareNotification:
		s.notify(ctx, domain.NotificationMessage{ProductID: productID, Title: "Documents received", Body: summary})
	case !ev.ReviewNotRequired:
		s.createTask(ctx, domain.Task{
			Reference: domain.ReviewTaskReference(productID, entry.ID),
			ProductID: productID,
			Kind:      domain.TaskKindDocumentReview,
			Summary:   summary,
			Status:    domain.TaskOpen,
		}, &domain.NotificationMessage{ProductID: productID, Title: "Documents to review", Body: summary})
	}

	s.enqueueLocalEvent(ctx, contracts.LocalEventDocumentsReceived, productID, map[string]any{
		"receivedDocumentsId": entry.ID,
		"senderId":            senderID,
		"requestId":           entry.RequestIDValue(),
		"documents":           documentIDs,
	})
	logger.InfoContext(ctx, "documents received",
		"outcome", "success",
		"received_documents_id", entry.ID,
		"document_count", len(documentIDs),
	)
	return entry, nil
}

func (s *Service) storeReceivedDocument(ctx context.Context, productID, senderID string, payload contracts.DocumentPayload, now time.Time) error {
	content := payload.Content
	if payload.ContentBase64 != "" && s.files != nil {
		data, err := decodeContent(payload.ContentBase64)
		if err != nil {
			return fmt.Errorf("%w: content of document %s: %v", domain.ErrInvalidItem, payload.ID, err)
		}
		if content.FileID == "" {
			content.FileID = uuid.NewString()
		}
		if err := s.files.Put(ctx, storageKey(productID, content.FileID), data, "application/octet-stream"); err != nil {
			return fmt.Errorf("%w: store received content: %v", domain.ErrDependencyUnavailable, err)
		}
		content.Size = int64(len(data))
	}
	state := domain.DocumentState(payload.State)
	if state == "" {
		state = domain.DocumentStateRegistered
	}
	return s.documents.Create(ctx, domain.Document{
		ID:          payload.ID,
		ProductID:   productID,
		CategoryID:  payload.CategoryID,
		TypeID:      payload.TypeID,
		Name:        payload.Name,
		Owner:       payload.Owner,
		Content:     content,
		Hash:        payload.Hash,
		ContentHash: payload.ContentHash,
		State:       state,
		SharedWith:  []domain.ShareEntry{},
		SharedBy:    senderID,
		Context:     payload.Context,
		Comment:     payload.Comment,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}
