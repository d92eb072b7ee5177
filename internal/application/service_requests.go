package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/contracts"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/domain"
)

// RequestDocuments asks a counterparty for documents of the given types.
func (s *Service) RequestDocuments(ctx context.Context, productID string, in RequestDocumentsInput) (domain.Request, error) {
	types := uniqueStrings(in.Types)
	if strings.TrimSpace(in.CompanyID) == "" {
		return domain.Request{}, fmt.Errorf("%w: counterparty company is required", domain.ErrInvalidItem)
	}
	if in.CompanyID == s.cfg.CompanyID {
		return domain.Request{}, fmt.Errorf("%w: cannot request documents from own company", domain.ErrInvalidItem)
	}
	if len(types) == 0 {
		return domain.Request{}, fmt.Errorf("%w: at least one document type is required", domain.ErrInvalidItem)
	}
	for _, typeID := range types {
		if _, err := s.catalog.GetType(ctx, productID, typeID); err != nil {
			return domain.Request{}, err
		}
	}
	attachments := uniqueStrings(in.Documents)
	for _, documentID := range attachments {
		exists, err := s.documents.Exists(ctx, productID, documentID)
		if err != nil {
			return domain.Request{}, err
		}
		if !exists {
			return domain.Request{}, fmt.Errorf("%w: document %s", domain.ErrItemNotFound, documentID)
		}
	}

	now := s.nowFn()
	req := domain.Request{
		ID:                uuid.NewString(),
		Direction:         domain.RequestOutgoing,
		ProductID:         productID,
		CompanyID:         in.CompanyID,
		Types:             types,
		Documents:         attachments,
		SentDocumentTypes: []string{},
		SentDocuments:     []string{},
		DismissedTypes:    []domain.DismissedType{},
		Notes:             []domain.Note{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	var notePayload *contracts.NotePayload
	if content := strings.TrimSpace(in.Note); content != "" {
		note := domain.Note{Date: now, Sender: s.cfg.CompanyID, Content: content, Relayed: true}
		req.Notes = append(req.Notes, note)
		notePayload = &contracts.NotePayload{Date: note.Date, Sender: note.Sender, Content: note.Content}
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return domain.Request{}, err
	}
	_, err := s.send(ctx, productID, req.ID, req.CompanyID, contracts.RequestDocumentsEvent{
		RequestID: req.ID,
		Types:     req.Types,
		Documents: req.Documents,
		Note:      notePayload,
	})
	if err != nil {
		return domain.Request{}, domain.AttachMessagingContext(err, req.ID, attachments)
	}
	return req, nil
}

func (s *Service) GetRequest(ctx context.Context, direction domain.RequestDirection, productID, requestID string) (domain.Request, error) {
	return s.requests.Get(ctx, direction, productID, requestID)
}

func (s *Service) ListRequests(ctx context.Context, direction domain.RequestDirection, productID string) ([]domain.Request, error) {
	return s.requests.List(ctx, direction, productID)
}

// DismissTypes declines requested types on an incoming request. Dismissals are stored first and
// relayed afterwards; an unrelayed dismissal goes out with the next send.
func (s *Service) DismissTypes(ctx context.Context, productID, requestID string, in []DismissTypeInput) (domain.Request, error) {
	if len(in) == 0 {
		return domain.Request{}, fmt.Errorf("%w: no types to dismiss", domain.ErrInvalidItem)
	}
	now := s.nowFn()
	req, err := s.requests.Mutate(ctx, domain.RequestIncoming, productID, requestID, func(r *domain.Request) error {
		for _, item := range in {
			if err := r.AddDismissal(domain.DismissedType{TypeID: item.TypeID, Content: item.Content, Date: now}); err != nil {
				return err
			}
		}
		r.UpdatedAt = now
		return nil
	})
	if err != nil {
		return domain.Request{}, err
	}
	if err := s.relayDismissals(ctx, req, req.PendingDismissals()); err != nil {
		return domain.Request{}, domain.AttachMessagingContext(err, requestID, nil)
	}
	return s.requests.Get(ctx, domain.RequestIncoming, productID, requestID)
}

func (s *Service) relayDismissals(ctx context.Context, req domain.Request, pending []domain.DismissedType) error {
	if len(pending) == 0 {
		return nil
	}
	payload := make([]contracts.DismissalPayload, 0, len(pending))
	typeIDs := make([]string, 0, len(pending))
	for _, d := range pending {
		payload = append(payload, contracts.DismissalPayload{TypeID: d.TypeID, Content: d.Content, Date: d.Date})
		typeIDs = append(typeIDs, d.TypeID)
	}
	if _, err := s.send(ctx, req.ProductID, req.ID, req.CompanyID, contracts.DismissTypesEvent{RequestID: req.ID, Dismissals: payload}); err != nil {
		return err
	}
	_, err := s.requests.Mutate(ctx, domain.RequestIncoming, req.ProductID, req.ID, func(r *domain.Request) error {
		r.MarkDismissalsRelayed(typeIDs)
		return nil
	})
	return err
}

// SendNote appends a note to either end of a request and relays it to the counterparty.
func (s *Service) SendNote(ctx context.Context, productID string, direction domain.RequestDirection, requestID string, in NoteInput) (domain.Request, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return domain.Request{}, fmt.Errorf("%w: note content is required", domain.ErrInvalidItem)
	}
	note := domain.Note{Date: s.nowFn(), Sender: s.cfg.CompanyID, Content: content}
	req, err := s.requests.Mutate(ctx, direction, productID, requestID, func(r *domain.Request) error {
		r.Notes = append(r.Notes, note)
		r.UpdatedAt = note.Date
		return nil
	})
	if err != nil {
		return domain.Request{}, err
	}
	_, err = s.send(ctx, productID, requestID, req.CompanyID, contracts.NoteEvent{
		RequestID: requestID,
		Note:      contracts.NotePayload{Date: note.Date, Sender: note.Sender, Content: note.Content},
	})
	if err != nil {
		return domain.Request{}, domain.AttachMessagingContext(err, requestID, nil)
	}
	return s.requests.Mutate(ctx, direction, productID, requestID, func(r *domain.Request) error {
		for i := range r.Notes {
			if r.Notes[i].Date.Equal(note.Date) && r.Notes[i].Content == note.Content && r.Notes[i].Sender == note.Sender {
				r.Notes[i].Relayed = true
			}
		}
		return nil
	})
}

// ApplyRequestDocuments mirrors a counterparty's request as an incoming request and opens the
// request task.
func (s *Service) ApplyRequestDocuments(ctx context.Context, env contracts.Envelope, ev contracts.RequestDocumentsEvent) (domain.Request, error) {
	productID := env.Context.ProductID
	if ev.RequestID == "" || len(ev.Types) == 0 {
		return domain.Request{}, fmt.Errorf("%w: request-documents message without request id or types", domain.ErrInvalidItem)
	}
	now := s.nowFn()
	req := domain.Request{
		ID:                ev.RequestID,
		Direction:         domain.RequestIncoming,
		ProductID:         productID,
		CompanyID:         env.SenderID,
		Types:             uniqueStrings(ev.Types),
		Documents:         uniqueStrings(ev.Documents),
		SentDocumentTypes: []string{},
		SentDocuments:     []string{},
		DismissedTypes:    []domain.DismissedType{},
		Notes:             []domain.Note{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if ev.Note != nil {
		req.Notes = append(req.Notes, domain.Note{Date: ev.Note.Date, Sender: ev.Note.Sender, Content: ev.Note.Content, Relayed: true})
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return domain.Request{}, err
	}

	name := s.counterpartyName(ctx, env.SenderID)
	summary := domain.RequestReceivedSummary(len(req.Types), name)
	s.createTask(ctx, domain.Task{
		Reference: domain.RequestTaskReference(productID, req.ID),
		ProductID: productID,
		Kind:      domain.TaskKindDocumentRequest,
		Summary:   summary,
		Status:    domain.TaskOpen,
	}, &domain.NotificationMessage{ProductID: productID, Title: "New document request", Body: summary})
	s.enqueueLocalEvent(ctx, contracts.LocalEventRequestReceived, productID, map[string]any{
		"requestId": req.ID,
		"companyId": req.CompanyID,
		"types":     req.Types,
	})
	return req, nil
}

// ApplyDismissTypes records a counterparty's dismissals on the outgoing request. Types already
// dismissed or never requested are skipped.
func (s *Service) ApplyDismissTypes(ctx context.Context, env contracts.Envelope, ev contracts.DismissTypesEvent) (domain.Request, error) {
	productID := env.Context.ProductID
	logger := s.log(ctx, "apply_dismiss_types").With("product_id", productID, "exchange_request_id", ev.RequestID)
	return s.requests.Mutate(ctx, domain.RequestOutgoing, productID, ev.RequestID, func(r *domain.Request) error {
		if r.CompanyID != env.SenderID {
			return fmt.Errorf("%w: request %s belongs to %s", domain.ErrInvalidOperation, r.ID, r.CompanyID)
		}
		for _, d := range ev.Dismissals {
			err := r.AddDismissal(domain.DismissedType{TypeID: d.TypeID, Content: d.Content, Date: d.Date, Relayed: true})
			if errors.Is(err, domain.ErrDuplicatedItem) || errors.Is(err, domain.ErrInvalidItem) {
				logger.WarnContext(ctx, "dismissal skipped", "outcome", "skipped", "type_id", d.TypeID, "error", err)
				continue
			}
			if err != nil {
				return err
			}
		}
		r.UpdatedAt = s.nowFn()
		return nil
	})
}

// ApplyNote appends a relayed note to whichever local end of the request exists.
func (s *Service) ApplyNote(ctx context.Context, env contracts.Envelope, ev contracts.NoteEvent) (domain.Request, error) {
	productID := env.Context.ProductID
	note := domain.Note{Date: ev.Note.Date, Sender: ev.Note.Sender, Content: ev.Note.Content, Relayed: true}
	apply := func(r *domain.Request) error {
		if r.CompanyID != env.SenderID {
			return fmt.Errorf("%w: request %s belongs to %s", domain.ErrInvalidOperation, r.ID, r.CompanyID)
		}
		if r.HasNote(note) {
			return nil
		}
		r.Notes = append(r.Notes, note)
		r.UpdatedAt = s.nowFn()
		return nil
	}
	req, err := s.requests.Mutate(ctx, domain.RequestOutgoing, productID, ev.RequestID, apply)
	if errors.Is(err, domain.ErrItemNotFound) {
		return s.requests.Mutate(ctx, domain.RequestIncoming, productID, ev.RequestID, apply)
	}
	return req, err
}
