package domain

import (
	"fmt"
	"time"
)

type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "Pending"
	ReviewAccepted ReviewStatus = "Accepted"
	ReviewRejected ReviewStatus = "Rejected"
)

func (s ReviewStatus) Valid() bool {
	switch s {
	case ReviewPending, ReviewAccepted, ReviewRejected:
		return true
	default:
		return false
	}
}

type DocumentFeedback struct {
	DocumentID          string       `json:"documentId"`
	Status              ReviewStatus `json:"status"`
	Note                string       `json:"note,omitempty"`
	NewVersionRequested bool         `json:"newVersionRequested,omitempty"`
	ReviewerID          string       `json:"reviewerId,omitempty"`
}

type LedgerKind string

const (
	LedgerShared   LedgerKind = "shared"
	LedgerReceived LedgerKind = "received"
)

// LedgerEntry pairs one batch of exchanged documents with their review state. Shared entries
// live at the sender and track FeedbackReceived; received entries live at the receiver and
// track FeedbackSent.
type LedgerEntry struct {
	ID                string             `json:"id"`
	Kind              LedgerKind         `json:"kind"`
	ProductID         string             `json:"productId"`
	CompanyID         string             `json:"companyId"`
	RequestID         *string            `json:"requestId"`
	ShareID           string             `json:"shareId"`
	Context           map[string]any     `json:"context,omitempty"`
	ReviewNotRequired bool               `json:"reviewNotRequired,omitempty"`
	Documents         []DocumentFeedback `json:"documents"`
	FeedbackReceived  bool               `json:"feedbackReceived"`
	FeedbackSent      bool               `json:"feedbackSent"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

func NewLedgerEntry(kind LedgerKind, id, productID, companyID, shareID string, requestID *string, ctx map[string]any, documentIDs []string, at time.Time) LedgerEntry {
	docs := make([]DocumentFeedback, 0, len(documentIDs))
	for _, documentID := range documentIDs {
		docs = append(docs, DocumentFeedback{DocumentID: documentID, Status: ReviewPending})
	}
	return LedgerEntry{
		ID:        id,
		Kind:      kind,
		ProductID: productID,
		CompanyID: companyID,
		RequestID: requestID,
		ShareID:   shareID,
		Context:   ctx,
		Documents: docs,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func (l LedgerEntry) RequestIDValue() string {
	if l.RequestID == nil {
		return ""
	}
	return *l.RequestID
}

// ApplyReview overwrites the status and note of one document. Other documents are untouched.
func (l *LedgerEntry) ApplyReview(review DocumentFeedback) error {
	if !review.Status.Valid() {
		return fmt.Errorf("%w: unknown review status %q", ErrInvalidItem, review.Status)
	}
	for i := range l.Documents {
		if l.Documents[i].DocumentID != review.DocumentID {
			continue
		}
		l.Documents[i].Status = review.Status
		l.Documents[i].Note = review.Note
		if review.ReviewerID != "" {
			l.Documents[i].ReviewerID = review.ReviewerID
		}
		l.Documents[i].NewVersionRequested = review.NewVersionRequested
		return nil
	}
	return fmt.Errorf("%w: document %s is not part of batch %s", ErrItemNotFound, review.DocumentID, l.ID)
}

func (l LedgerEntry) HasDocument(documentID string) bool {
	for _, d := range l.Documents {
		if d.DocumentID == documentID {
			return true
		}
	}
	return false
}

func (l LedgerEntry) DocumentIDs() []string {
	out := make([]string, 0, len(l.Documents))
	for _, d := range l.Documents {
		out = append(out, d.DocumentID)
	}
	return out
}

// ReviewCounts returns how many documents are reviewed (not Pending) out of the total.
func (l LedgerEntry) ReviewCounts() (reviewed, total int) {
	for _, d := range l.Documents {
		if d.Status != ReviewPending {
			reviewed++
		}
	}
	return reviewed, len(l.Documents)
}

func (l LedgerEntry) VerdictCounts() (accepted, rejected int) {
	for _, d := range l.Documents {
		switch d.Status {
		case ReviewAccepted:
			accepted++
		case ReviewRejected:
			rejected++
		}
	}
	return accepted, rejected
}
