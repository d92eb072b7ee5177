package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/contracts"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/domain"
)

// HandleEnvelope dispatches one inbound exchange message. Messages that reference unknown items,
// repeat already applied state or violate an ownership rule are logged and acknowledged; any other
// error is returned so the consumer redelivers.
func (s *Service) HandleEnvelope(ctx context.Context, env contracts.Envelope) error {
	logger := s.log(ctx, "handle_envelope").With(
		"message_id", env.MessageID,
		"message_type", env.MessageType,
		"sender_id", env.SenderID,
		"product_id", env.Context.ProductID,
	)
	if env.MessageID == "" || env.SenderID == "" || env.Context.ProductID == "" {
		return fmt.Errorf("%w: envelope is missing messageId, senderId or productId", domain.ErrInvalidItem)
	}
	if s.eventDedup != nil {
		duplicate, err := s.eventDedup.IsDuplicate(ctx, env.MessageID, s.nowFn())
		if err != nil {
			return err
		}
		if duplicate {
			logger.InfoContext(ctx, "duplicate message skipped", "outcome", "duplicate")
			return nil
		}
	}

	event, err := env.DecodeEvent()
	if err != nil {
		return err
	}
	err = s.dispatch(ctx, env, event)
	switch {
	case err == nil:
		logger.InfoContext(ctx, "message applied", "outcome", "success")
	case errors.Is(err, domain.ErrItemNotFound),
		errors.Is(err, domain.ErrDuplicatedItem),
		errors.Is(err, domain.ErrInvalidOperation):
		logger.WarnContext(ctx, "message skipped", "outcome", "skipped", "error", err)
	default:
		logger.ErrorContext(ctx, "message failed", "outcome", "failure", "error", err)
		return err
	}

	if s.eventDedup != nil {
		if err := s.eventDedup.MarkProcessed(ctx, env.MessageID, env.MessageType, s.nowFn().Add(s.cfg.EventDedupTTL)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) dispatch(ctx context.Context, env contracts.Envelope, event contracts.Event) error {
	var err error
	switch ev := event.(type) {
	case contracts.RequestDocumentsEvent:
		_, err = s.ApplyRequestDocuments(ctx, env, ev)
	case contracts.SendDocumentsEvent:
		_, err = s.ReceiveDocuments(ctx, env, ev)
	case contracts.DismissTypesEvent:
		_, err = s.ApplyDismissTypes(ctx, env, ev)
	case contracts.NoteEvent:
		_, err = s.ApplyNote(ctx, env, ev)
	case contracts.FeedbackEvent:
		_, err = s.ApplyFeedback(ctx, env, ev)
	case contracts.TransactionResultEvent:
		if s.cfg.RegistrarID != "" && env.SenderID != s.cfg.RegistrarID {
			return fmt.Errorf("%w: transaction result from %s", domain.ErrInvalidOperation, env.SenderID)
		}
		_, err = s.ApplyTransactionResult(ctx, env.Context.ProductID, ev)
	case contracts.RegistrationRequestEvent:
		return fmt.Errorf("%w: %s is handled by the registrar", domain.ErrUnsupportedEvent, ev.RoutingKey())
	default:
		return fmt.Errorf("%w: %T", domain.ErrUnsupportedEvent, event)
	}
	return err
}
