package domain

import (
	"fmt"
	"reflect"
	"time"
)

type DocumentState string

const (
	DocumentStatePending    DocumentState = "Pending"
	DocumentStateRegistered DocumentState = "Registered"
	DocumentStateFailed     DocumentState = "Failed"
)

func (s DocumentState) IsTerminal() bool {
	return s == DocumentStateRegistered || s == DocumentStateFailed
}

// ReviewNotRequiredKey is a transient context flag that never takes part in context matching.
const ReviewNotRequiredKey = "reviewNotRequired"

type Owner struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	CompanyID string `json:"companyId"`
}

type Content struct {
	FileID    string `json:"fileId"`
	Signature string `json:"signature,omitempty"`
	Size      int64  `json:"size"`
}

type ShareEntry struct {
	CounterpartyID string      `json:"counterpartyId"`
	SharedDates    []time.Time `json:"sharedDates"`
}

type Document struct {
	ID          string         `json:"id"`
	ProductID   string         `json:"productId"`
	CategoryID  string         `json:"categoryId"`
	TypeID      string         `json:"typeId"`
	Name        string         `json:"name"`
	Owner       Owner          `json:"owner"`
	Content     Content        `json:"content"`
	Hash        string         `json:"hash,omitempty"`
	ContentHash string         `json:"contentHash,omitempty"`
	State       DocumentState  `json:"state"`
	SharedWith  []ShareEntry   `json:"sharedWith"`
	SharedBy    string         `json:"sharedBy,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
	Comment     string         `json:"comment,omitempty"`
	TxID        string         `json:"txId,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// DisplayName is the name used in error details and task texts.
func (d Document) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

// Register moves a pending document to Registered. Terminal documents are rejected.
func (d *Document) Register(signature, hash, txID string, at time.Time) error {
	if d.State.IsTerminal() {
		return fmt.Errorf("%w: document %s is already %s", ErrInvalidOperation, d.ID, d.State)
	}
	d.State = DocumentStateRegistered
	d.Content.Signature = signature
	if hash != "" {
		d.Hash = hash
	}
	if txID != "" {
		d.TxID = txID
	}
	d.UpdatedAt = at
	return nil
}

// Fail moves a pending document to Failed. Terminal documents are rejected.
func (d *Document) Fail(txID string, at time.Time) error {
	if d.State.IsTerminal() {
		return fmt.Errorf("%w: document %s is already %s", ErrInvalidOperation, d.ID, d.State)
	}
	d.State = DocumentStateFailed
	if txID != "" {
		d.TxID = txID
	}
	d.UpdatedAt = at
	return nil
}

// AppendShareDate records a share with counterpartyID. A counterparty appears at most once in
// SharedWith; repeated shares accumulate dates on the existing entry.
func (d *Document) AppendShareDate(counterpartyID string, at time.Time) {
	for i := range d.SharedWith {
		if d.SharedWith[i].CounterpartyID == counterpartyID {
			d.SharedWith[i].SharedDates = append(d.SharedWith[i].SharedDates, at)
			return
		}
	}
	d.SharedWith = append(d.SharedWith, ShareEntry{CounterpartyID: counterpartyID, SharedDates: []time.Time{at}})
}

// ShareEntryIndex returns the position of counterpartyID in SharedWith, or -1.
func (d Document) ShareEntryIndex(counterpartyID string) int {
	for i, entry := range d.SharedWith {
		if entry.CounterpartyID == counterpartyID {
			return i
		}
	}
	return -1
}

func (d Document) IsShared() bool {
	return len(d.SharedWith) > 0
}

func (d Document) IsReceived() bool {
	return d.SharedBy != ""
}

// CanDelete reports whether the document may be physically removed.
func (d Document) CanDelete() error {
	if d.IsShared() {
		return fmt.Errorf("%w: document %s has been shared", ErrInvalidOperation, d.ID)
	}
	if d.IsReceived() {
		return fmt.Errorf("%w: document %s was received from %s", ErrInvalidOperation, d.ID, d.SharedBy)
	}
	return nil
}

// ContextMatches compares two document contexts ignoring the reviewNotRequired flag.
// A nil context and an empty context are equal.
func ContextMatches(documentContext, requested map[string]any) bool {
	return reflect.DeepEqual(stripTransient(documentContext), stripTransient(requested))
}

func stripTransient(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if k == ReviewNotRequiredKey {
			continue
		}
		out[k] = v
	}
	return out
}

// ReviewNotRequired reads the transient flag out of a context map.
func ReviewNotRequired(ctx map[string]any) bool {
	v, ok := ctx[ReviewNotRequiredKey]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}
