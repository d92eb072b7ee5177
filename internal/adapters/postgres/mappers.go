package postgres

import (
	"time"

	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/domain"
)

func toDocumentModel(d domain.Document) (documentModel, error) {
	owner, err := toJSON(d.Owner)
	if err != nil {
		return documentModel{}, err
	}
	content, err := toJSON(d.Content)
	if err != nil {
		return documentModel{}, err
	}
	sharedWith := d.SharedWith
	if sharedWith == nil {
		sharedWith = []domain.ShareEntry{}
	}
	shared, err := toJSON(sharedWith)
	if err != nil {
		return documentModel{}, err
	}
	ctxJSON, err := toJSON(d.Context)
	if err != nil {
		return documentModel{}, err
	}
	return documentModel{
		ProductID:   d.ProductID,
		DocumentID:  d.ID,
		CategoryID:  d.CategoryID,
		TypeID:      d.TypeID,
		Name:        d.Name,
		Owner:       owner,
		Content:     content,
		Hash:        d.Hash,
		ContentHash: d.ContentHash,
		State:       string(d.State),
		SharedWith:  shared,
		SharedBy:    d.SharedBy,
		Context:     ctxJSON,
		Comment:     d.Comment,
		TxID:        d.TxID,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}, nil
}

func toDomainDocument(m documentModel) (domain.Document, error) {
	owner, err := fromJSON(m.Owner, domain.Owner{})
	if err != nil {
		return domain.Document{}, err
	}
	content, err := fromJSON(m.Content, domain.Content{})
	if err != nil {
		return domain.Document{}, err
	}
	shared, err := fromJSON(m.SharedWith, []domain.ShareEntry{})
	if err != nil {
		return domain.Document{}, err
	}
	ctx, err := fromJSON[map[string]any](m.Context, nil)
	if err != nil {
		return domain.Document{}, err
	}
	return domain.Document{
		ID:          m.DocumentID,
		ProductID:   m.ProductID,
		CategoryID:  m.CategoryID,
		TypeID:      m.TypeID,
		Name:        m.Name,
		Owner:       owner,
		Content:     content,
		Hash:        m.Hash,
		ContentHash: m.ContentHash,
		State:       domain.DocumentState(m.State),
		SharedWith:  shared,
		SharedBy:    m.SharedBy,
		Context:     ctx,
		Comment:     m.Comment,
		TxID:        m.TxID,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}, nil
}

func toRequestModel(r domain.Request) (requestModel, error) {
	m := requestModel{
		Direction: string(r.Direction),
		ProductID: r.ProductID,
		RequestID: r.ID,
		CompanyID: r.CompanyID,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	var err error
	if m.Types, err = toJSON(orEmpty(r.Types)); err != nil {
		return requestModel{}, err
	}
	if m.Documents, err = toJSON(orEmpty(r.Documents)); err != nil {
		return requestModel{}, err
	}
	if m.SentDocumentTypes, err = toJSON(orEmpty(r.SentDocumentTypes)); err != nil {
		return requestModel{}, err
	}
	if m.SentDocuments, err = toJSON(orEmpty(r.SentDocuments)); err != nil {
		return requestModel{}, err
	}
	if m.DismissedTypes, err = toJSON(orEmpty(r.DismissedTypes)); err != nil {
		return requestModel{}, err
	}
	if m.Notes, err = toJSON(orEmpty(r.Notes)); err != nil {
		return requestModel{}, err
	}
	return m, nil
}

func toDomainRequest(m requestModel) (domain.Request, error) {
	r := domain.Request{
		ID:        m.RequestID,
		Direction: domain.RequestDirection(m.Direction),
		ProductID: m.ProductID,
		CompanyID: m.CompanyID,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
	var err error
	if r.Types, err = fromJSON(m.Types, []string{}); err != nil {
		return domain.Request{}, err
	}
	if r.Documents, err = fromJSON(m.Documents, []string{}); err != nil {
		return domain.Request{}, err
	}
	if r.SentDocumentTypes, err = fromJSON(m.SentDocumentTypes, []string{}); err != nil {
		return domain.Request{}, err
	}
	if r.SentDocuments, err = fromJSON(m.SentDocuments, []string{}); err != nil {
		return domain.Request{}, err
	}
	if r.DismissedTypes, err = fromJSON(m.DismissedTypes, []domain.DismissedType{}); err != nil {
		return domain.Request{}, err
	}
	if r.Notes, err = fromJSON(m.Notes, []domain.Note{}); err != nil {
		return domain.Request{}, err
	}
	return r, nil
}

func toLedgerModel(l domain.LedgerEntry) (ledgerModel, error) {
	ctxJSON, err := toJSON(l.Context)
	if err != nil {
		return ledgerModel{}, err
	}
	docs, err := toJSON(orEmpty(l.Documents))
	if err != nil {
		return ledgerModel{}, err
	}
	return ledgerModel{
		Kind:              string(l.Kind),
		ProductID:         l.ProductID,
		LedgerID:          l.ID,
		CompanyID:         l.CompanyID,
		RequestID:         l.RequestID,
		ShareID:           l.ShareID,
		Context:           ctxJSON,
		ReviewNotRequired: l.ReviewNotRequired,
		Documents:         docs,
		FeedbackReceived:  l.FeedbackReceived,
		FeedbackSent:      l.FeedbackSent,
		CreatedAt:         l.CreatedAt,
		UpdatedAt:         l.UpdatedAt,
	}, nil
}

func toDomainLedger(m ledgerModel) (domain.LedgerEntry, error) {
	ctx, err := fromJSON[map[string]any](m.Context, nil)
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	docs, err := fromJSON(m.Documents, []domain.DocumentFeedback{})
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	return domain.LedgerEntry{
		ID:                m.LedgerID,
		Kind:              domain.LedgerKind(m.Kind),
		ProductID:         m.ProductID,
		CompanyID:         m.CompanyID,
		RequestID:         m.RequestID,
		ShareID:           m.ShareID,
		Context:           ctx,
		ReviewNotRequired: m.ReviewNotRequired,
		Documents:         docs,
		FeedbackReceived:  m.FeedbackReceived,
		FeedbackSent:      m.FeedbackSent,
		CreatedAt:         m.CreatedAt.UTC(),
		UpdatedAt:         m.UpdatedAt.UTC(),
	}, nil
}

func orEmpty[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func utc(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
