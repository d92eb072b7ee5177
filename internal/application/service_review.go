package application

import (
	"context"
	"fmt"

	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/contracts"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/domain"
)

func (s *Service) ListSharedDocuments(ctx context.Context, productID string) ([]domain.LedgerEntry, error) {
	return s.ledgers.List(ctx, domain.LedgerShared, productID)
}

func (s *Service) GetSharedDocuments(ctx context.Context, productID, id string) (domain.LedgerEntry, error) {
	return s.ledgers.Get(ctx, domain.LedgerShared, productID, id)
}

func (s *Service) ListReceivedDocuments(ctx context.Context, productID string) ([]domain.LedgerEntry, error) {
	return s.ledgers.List(ctx, domain.LedgerReceived, productID)
}

func (s *Service) GetReceivedDocuments(ctx context.Context, productID, id string) (domain.LedgerEntry, error) {
	return s.ledgers.Get(ctx, domain.LedgerReceived, productID, id)
}

// UpdateDocumentsStatus merges reviews into received batches. Addressed by request id, the
// reviews are routed to whichever batch holds each document and progress is summed across every
// batch of the request.
func (s *Service) UpdateDocumentsStatus(ctx context.Context, productID string, in UpdateStatusInput) (ReviewProgress, error) {
	if len(in.Reviews) == 0 {
		return ReviewProgress{}, fmt.Errorf("%w: no reviews supplied", domain.ErrInvalidItem)
	}
	if (in.ReceivedDocumentsID == "") == (in.RequestID == "") {
		return ReviewProgress{}, fmt.Errorf("%w: exactly one of receivedDocumentsId or requestId is required", domain.ErrInvalidItem)
	}
	for _, review := range in.Reviews {
		if !review.Status.Valid() {
			return ReviewProgress{}, fmt.Errorf("%w: unknown review status %q", domain.ErrInvalidItem, review.Status)
		}
	}

	var batches []domain.LedgerEntry
	if in.ReceivedDocumentsID != "" {
		entry, err := s.ledgers.Get(ctx, domain.LedgerReceived, productID, in.ReceivedDocumentsID)
		if err != nil {
			return ReviewProgress{}, err
		}
		batches = []domain.LedgerEntry{entry}
	} else {
		entries, err := s.ledgers.ListByRequest(ctx, domain.LedgerReceived, productID, in.RequestID)
		if err != nil {
			return ReviewProgress{}, err
		}
		if len(entries) == 0 {
			return ReviewProgress{}, fmt.Errorf("%w: no received documents for request %s", domain.ErrItemNotFound, in.RequestID)
		}
		batches = entries
	}

	grouped := make(map[string][]domain.DocumentFeedback, len(batches))
	for _, review := range in.Reviews {
		feedback := domain.DocumentFeedback{
			DocumentID:          review.DocumentID,
			Status:              review.Status,
			Note:                review.Note,
			NewVersionRequested: review.NewVersionRequested,
			ReviewerID:          review.ReviewerID,
		}
		// A document received in several batches is reviewed in all of them.
		found := false
		for _, batch := range batches {
			if batch.HasDocument(review.DocumentID) {
				grouped[batch.ID] = append(grouped[batch.ID], feedback)
				found = true
			}
		}
		if !found {
			return ReviewProgress{}, fmt.Errorf("%w: document %s was not received in this scope", domain.ErrItemNotFound, review.DocumentID)
		}
	}

	for i, batch := range batches {
		reviews, ok := grouped[batch.ID]
		if !ok {
			continue
		}
		updated, err := s.ledgers.Mutate(ctx, domain.LedgerReceived, productID, batch.ID, func(l *domain.LedgerEntry) error {
			for _, review := range reviews {
				if err := l.ApplyReview(review); err != nil {
					return err
				}
			}
			l.UpdatedAt = s.nowFn()
			return nil
		})
		if err != nil {
			return ReviewProgress{}, err
		}
		batches[i] = updated
	}

	progress := ReviewProgress{Batches: batches}
	for _, batch := range batches {
		reviewed, total := batch.ReviewCounts()
		progress.Reviewed += reviewed
		progress.Total += total
	}
	for _, batch := range batches {
		if batch.ReviewNotRequired {
			continue
		}
		update, ok := domain.ReviewProgressUpdate(domain.ReviewTaskReference(productID, batch.ID), productID, progress.Reviewed, progress.Total)
		if !ok {
			break
		}
		progress.Status = update.Status
		progress.Summary = update.Summary
		s.updateTask(ctx, update)
	}
	if progress.Summary == "" {
		if update, ok := domain.ReviewProgressUpdate("", productID, progress.Reviewed, progress.Total); ok {
			progress.Status = update.Status
			progress.Summary = update.Summary
		}
	}
	return progress, nil
}

// SendFeedback returns the review verdicts of a received batch to its sender and closes the
// review task.
func (s *Service) SendFeedback(ctx context.Context, productID, receivedDocumentsID string) (domain.LedgerEntry, error) {
	entry, err := s.ledgers.Get(ctx, domain.LedgerReceived, productID, receivedDocumentsID)
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	if entry.FeedbackSent {
		return domain.LedgerEntry{}, fmt.Errorf("%w: feedback for %s already sent", domain.ErrInvalidOperation, entry.ID)
	}
	_, err = s.send(ctx, productID, entry.RequestIDValue(), entry.CompanyID, contracts.FeedbackEvent{
		ShareID:   entry.ShareID,
		RequestID: entry.RequestID,
		Documents: entry.Documents,
	})
	if err != nil {
		return domain.LedgerEntry{}, domain.AttachMessagingContext(err, entry.RequestIDValue(), entry.DocumentIDs())
	}
	updated, err := s.ledgers.Mutate(ctx, domain.LedgerReceived, productID, entry.ID, func(l *domain.LedgerEntry) error {
		l.FeedbackSent = true
		l.UpdatedAt = s.nowFn()
		return nil
	})
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	accepted, rejected := updated.VerdictCounts()
	s.updateTask(ctx, domain.FeedbackUpdate(domain.ReviewTaskReference(productID, entry.ID), productID, accepted, rejected))
	return updated, nil
}

// ApplyFeedback merges a counterparty's verdicts into the matching shared batch.
func (s *Service) ApplyFeedback(ctx context.Context, env contracts.Envelope, ev contracts.FeedbackEvent) (domain.LedgerEntry, error) {
	productID := env.Context.ProductID
	entry, err := s.ledgers.GetByShareID(ctx, domain.LedgerShared, productID, ev.ShareID)
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	if entry.CompanyID != env.SenderID {
		return domain.LedgerEntry{}, fmt.Errorf("%w: share %s was sent to %s", domain.ErrInvalidOperation, ev.ShareID, entry.CompanyID)
	}
	logger := s.log(ctx, "apply_feedback").With("product_id", productID, "shared_documents_id", entry.ID)
	updated, err := s.ledgers.Mutate(ctx, domain.LedgerShared, productID, entry.ID, func(l *domain.LedgerEntry) error {
		for _, feedback := range ev.Documents {
			if !l.HasDocument(feedback.DocumentID) {
				logger.WarnContext(ctx, "feedback for unknown document skipped", "outcome", "skipped", "document_id", feedback.DocumentID)
				continue
			}
			if err := l.ApplyReview(feedback); err != nil {
				return err
			}
		}
		l.FeedbackReceived = true
		l.UpdatedAt = s.nowFn()
		return nil
	})
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	accepted, rejected := updated.VerdictCounts()
	s.enqueueLocalEvent(ctx, contracts.LocalEventFeedbackReceived, productID, map[string]any{
		"sharedDocumentsId": updated.ID,
		"companyId":         updated.CompanyID,
		"accepted":          accepted,
		"rejected":          rejected,
	})
	return updated, nil
}
