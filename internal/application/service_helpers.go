package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/contracts"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/domain"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/ports"
)

func hashRequest(v any) string {
	raw, _ := json.Marshal(v)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func hashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func storageKey(productID, fileID string) string {
	return productID + "/" + fileID
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// send wraps event in an envelope and hands it to the gateway.
func (s *Service) send(ctx context.Context, productID, requestID, recipientID string, event contracts.Event) (string, error) {
	env, err := contracts.NewEnvelope(uuid.NewString(), s.cfg.CompanyID, productID, requestID, event, s.nowFn())
	if err != nil {
		return "", err
	}
	messageID, err := s.gateway.SendMessage(ctx, event.RoutingKey(), recipientID, env)
	if err != nil {
		return "", err
	}
	s.log(ctx, "send_message").InfoContext(ctx, "exchange message sent",
		"outcome", "success",
		"routing_key", event.RoutingKey(),
		"recipient_id", recipientID,
		"product_id", productID,
		"message_id", messageID,
	)
	return messageID, nil
}

// counterpartyName falls back to the company id when the directory cannot resolve a name.
func (s *Service) counterpartyName(ctx context.Context, companyID string) string {
	if s.directory == nil {
		return companyID
	}
	name, err := s.directory.DisplayName(ctx, companyID)
	if err != nil || name == "" {
		if err != nil {
			s.log(ctx, "resolve_counterparty").WarnContext(ctx, "counterparty name lookup failed",
				"outcome", "fallback",
				"company_id", companyID,
				"error", err,
			)
		}
		return companyID
	}
	return name
}

func (s *Service) updateTask(ctx context.Context, update domain.TaskUpdate) {
	if s.tasks == nil {
		return
	}
	if err := s.tasks.UpdateTaskStatus(ctx, update); err != nil {
		s.log(ctx, "update_task").ErrorContext(ctx, "task update failed",
			"outcome", "failure",
			"task_reference", update.Reference,
			"error", err,
		)
	}
}

func (s *Service) createTask(ctx context.Context, task domain.Task, notification *domain.NotificationMessage) {
	if s.tasks == nil {
		return
	}
	if err := s.tasks.CreateTask(ctx, task, notification); err != nil {
		s.log(ctx, "create_task").ErrorContext(ctx, "task creation failed",
			"outcome", "failure",
			"task_reference", task.Reference,
			"error", err,
		)
	}
}

func (s *Service) notify(ctx context.Context, notification domain.NotificationMessage) {
	if s.tasks == nil {
		return
	}
	if err := s.tasks.Notify(ctx, notification); err != nil {
		s.log(ctx, "notify").ErrorContext(ctx, "notification failed",
			"outcome", "failure",
			"product_id", notification.ProductID,
			"error", err,
		)
	}
}

// enqueueLocalEvent records a same-node event in the outbox for the outbox worker to fan out.
func (s *Service) enqueueLocalEvent(ctx context.Context, eventType, productID string, data map[string]any) {
	if s.outbox == nil {
		return
	}
	occurredAt := s.nowFn()
	event := contracts.LocalEvent{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		ProductID:  productID,
		OccurredAt: occurredAt,
		Data:       data,
	}
	payload, err := json.Marshal(event)
	if err == nil {
		err = s.outbox.Enqueue(ctx, ports.OutboxEvent{
			EventID:      uuid.MustParse(event.EventID),
			EventType:    eventType,
			PartitionKey: productID,
			Payload:      payload,
			OccurredAt:   occurredAt,
		})
	}
	if err != nil {
		s.log(ctx, "enqueue_local_event").ErrorContext(ctx, "local event enqueue failed",
			"outcome", "failure",
			"event_type", eventType,
			"product_id", productID,
			"error", err,
		)
	}
}

func (s *Service) reserveIdempotency(ctx context.Context, key string, request any) (*ports.IdempotencyRecord, error) {
	if key == "" || s.idempotency == nil {
		return nil, nil
	}
	requestHash := hashRequest(request)
	existing, err := s.idempotency.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.RequestHash != requestHash {
			return nil, fmt.Errorf("%w: key reused with a different request", domain.ErrIdempotencyConflict)
		}
		if existing.Status != "completed" {
			return nil, fmt.Errorf("%w: request still in progress", domain.ErrIdempotencyConflict)
		}
		return existing, nil
	}
	if err := s.idempotency.Reserve(ctx, key, requestHash, s.nowFn().Add(s.cfg.IdempotencyTTL)); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIdempotencyConflict, err)
	}
	return nil, nil
}

func (s *Service) completeIdempotency(ctx context.Context, key string, code int, response any) {
	if key == "" || s.idempotency == nil {
		return
	}
	var body []byte
	if response != nil {
		body, _ = json.Marshal(response)
	}
	if err := s.idempotency.Complete(ctx, key, code, body, s.nowFn()); err != nil {
		s.log(ctx, "complete_idempotency").WarnContext(ctx, "idempotency completion failed",
			"outcome", "failure",
			"error", err,
		)
	}
}

func toDocumentPayload(doc domain.Document, content []byte) contracts.DocumentPayload {
	payload := contracts.DocumentPayload{
		ID:          doc.ID,
		CategoryID:  doc.CategoryID,
		TypeID:      doc.TypeID,
		Name:        doc.Name,
		Owner:       doc.Owner,
		Content:     doc.Content,
		Hash:        doc.Hash,
		ContentHash: doc.ContentHash,
		State:       string(doc.State),
		Context:     doc.Context,
		Comment:     doc.Comment,
	}
	if len(content) > 0 {
		payload.ContentBase64 = encodeContent(content)
	}
	return payload
}
