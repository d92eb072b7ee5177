package application

import (
	"time"

	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/domain"
)

type Config struct {
	ServiceName string
	// CompanyID identifies this node on the exchange network.
	CompanyID           string
	RegistrarID         string
	MaxSendPayloadBytes int64
	Policies            domain.PolicyTable
	IdempotencyTTL      time.Duration
	EventDedupTTL       time.Duration
}

type UploadDocumentInput struct {
	CategoryID  string         `json:"categoryId"`
	TypeID      string         `json:"typeId"`
	Name        string         `json:"name"`
	Owner       domain.Owner   `json:"owner"`
	Context     map[string]any `json:"context,omitempty"`
	Comment     string         `json:"comment,omitempty"`
	ContentType string         `json:"contentType,omitempty"`
	Data        []byte         `json:"data"`
}

type SendDocumentsInput struct {
	CompanyID                 string         `json:"companyId"`
	Documents                 []string       `json:"documents"`
	RequestID                 *string        `json:"requestId,omitempty"`
	Context                   map[string]any `json:"context,omitempty"`
	ReviewNotRequired         bool           `json:"reviewNotRequired,omitempty"`
	DocumentShareNotification bool           `json:"documentShareNotification,omitempty"`
	Note                      string         `json:"note,omitempty"`
}

func (in SendDocumentsInput) requestID() string {
	if in.RequestID == nil {
		return ""
	}
	return *in.RequestID
}

type RequestDocumentsInput struct {
	CompanyID string   `json:"companyId"`
	Types     []string `json:"types"`
	Documents []string `json:"documents,omitempty"`
	Note      string   `json:"note,omitempty"`
}

type DismissTypeInput struct {
	TypeID  string `json:"typeId"`
	Content string `json:"content"`
}

type NoteInput struct {
	Content string `json:"content"`
}

type ReviewInput struct {
	DocumentID          string              `json:"documentId"`
	Status              domain.ReviewStatus `json:"status"`
	Note                string              `json:"note,omitempty"`
	NewVersionRequested bool                `json:"newVersionRequested,omitempty"`
	ReviewerID          string              `json:"reviewerId,omitempty"`
}

// UpdateStatusInput addresses either one received batch or every batch of a request.
type UpdateStatusInput struct {
	ReceivedDocumentsID string        `json:"receivedDocumentsId,omitempty"`
	RequestID           string        `json:"requestId,omitempty"`
	Reviews             []ReviewInput `json:"reviews"`
}

type ReviewProgress struct {
	Reviewed int                  `json:"reviewed"`
	Total    int                  `json:"total"`
	Status   domain.TaskStatus    `json:"status,omitempty"`
	Summary  string               `json:"summary,omitempty"`
	Batches  []domain.LedgerEntry `json:"batches"`
}

type CategoryInput struct {
	Name string `json:"name"`
}

type DocumentTypeInput struct {
	CategoryID string `json:"categoryId"`
	Name       string `json:"name"`
}

type TemplateInput struct {
	TypeID string `json:"typeId"`
	Name   string `json:"name"`
	FileID string `json:"fileId,omitempty"`
}
