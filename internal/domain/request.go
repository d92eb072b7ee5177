package domain

import (
	"fmt"
	"slices"
	"time"
)

type RequestDirection string

const (
	RequestOutgoing RequestDirection = "outgoing"
	RequestIncoming RequestDirection = "incoming"
)

type DismissedType struct {
	TypeID  string    `json:"typeId"`
	Content string    `json:"content"`
	Date    time.Time `json:"date"`
	Relayed bool      `json:"relayed"`
}

type Note struct {
	Date    time.Time `json:"date"`
	Sender  string    `json:"sender"`
	Content string    `json:"content"`
	Relayed bool      `json:"relayed"`
}

// Request is one end of a document request conversation. The Outgoing end lives at the
// requesting company, the Incoming end at the company asked to provide documents. Both ends
// share the same id.
type Request struct {
	ID                string           `json:"id"`
	Direction         RequestDirection `json:"direction"`
	ProductID         string           `json:"productId"`
	CompanyID         string           `json:"companyId"`
	Types             []string         `json:"types"`
	Documents         []string         `json:"documents"`
	SentDocumentTypes []string         `json:"sentDocumentTypes"`
	SentDocuments     []string         `json:"sentDocuments"`
	DismissedTypes    []DismissedType  `json:"dismissedTypes"`
	Notes             []Note           `json:"notes"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// MarkTypesSent records sent documents and types with set-union semantics. Types not requested
// are ignored so SentDocumentTypes stays a subset of Types. It returns the number of newly
// recorded types.
func (r *Request) MarkTypesSent(documentIDs, typeIDs []string) int {
	for _, id := range documentIDs {
		if !slices.Contains(r.SentDocuments, id) {
			r.SentDocuments = append(r.SentDocuments, id)
		}
	}
	added := 0
	for _, typeID := range typeIDs {
		if !slices.Contains(r.Types, typeID) || slices.Contains(r.SentDocumentTypes, typeID) {
			continue
		}
		r.SentDocumentTypes = append(r.SentDocumentTypes, typeID)
		added++
	}
	return added
}

// IsComplete compares lengths. SentDocumentTypes only ever holds requested types.
func (r Request) IsComplete() bool {
	return len(r.Types) > 0 && len(r.SentDocumentTypes) == len(r.Types)
}

func (r Request) HasType(typeID string) bool {
	return slices.Contains(r.Types, typeID)
}

// AddDismissal appends a dismissal unless the type was already dismissed.
func (r *Request) AddDismissal(d DismissedType) error {
	if !r.HasType(d.TypeID) {
		return fmt.Errorf("%w: type %s is not part of request %s", ErrInvalidItem, d.TypeID, r.ID)
	}
	for _, existing := range r.DismissedTypes {
		if existing.TypeID == d.TypeID {
			return fmt.Errorf("%w: type %s already dismissed", ErrDuplicatedItem, d.TypeID)
		}
	}
	r.DismissedTypes = append(r.DismissedTypes, d)
	return nil
}

func (r Request) PendingDismissals() []DismissedType {
	out := make([]DismissedType, 0)
	for _, d := range r.DismissedTypes {
		if !d.Relayed {
			out = append(out, d)
		}
	}
	return out
}

func (r *Request) MarkDismissalsRelayed(typeIDs []string) {
	for i := range r.DismissedTypes {
		if slices.Contains(typeIDs, r.DismissedTypes[i].TypeID) {
			r.DismissedTypes[i].Relayed = true
		}
	}
}

// HasNote reports whether a note with the same sender, date and content is already recorded.
func (r Request) HasNote(n Note) bool {
	for _, existing := range r.Notes {
		if existing.Sender == n.Sender && existing.Content == n.Content && existing.Date.Equal(n.Date) {
			return true
		}
	}
	return false
}
