package postgres

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type documentModel struct {
	ProductID   string         `gorm:"column:product_id;primaryKey"`
	DocumentID  string         `gorm:"column:document_id;primaryKey"`
	CategoryID  string         `gorm:"column:category_id"`
	TypeID      string         `gorm:"column:type_id"`
	Name        string         `gorm:"column:name"`
	Owner       datatypes.JSON `gorm:"column:owner;type:jsonb"`
	Content     datatypes.JSON `gorm:"column:content;type:jsonb"`
	Hash        string         `gorm:"column:hash"`
	ContentHash string         `gorm:"column:content_hash"`
	State       string         `gorm:"column:state"`
	SharedWith  datatypes.JSON `gorm:"column:shared_with;type:jsonb"`
	SharedBy    string         `gorm:"column:shared_by"`
	Context     datatypes.JSON `gorm:"column:context;type:jsonb"`
	Comment     string         `gorm:"column:comment"`
	TxID        string         `gorm:"column:tx_id"`
	CreatedAt   time.Time      `gorm:"column:created_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at"`
}

func (documentModel) TableName() string { return "exchange_documents" }

type requestModel struct {
	Direction         string         `gorm:"column:direction;primaryKey"`
	ProductID         string         `gorm:"column:product_id;primaryKey"`
	RequestID         string         `gorm:"column:request_id;primaryKey"`
	CompanyID         string         `gorm:"column:company_id"`
	Types             datatypes.JSON `gorm:"column:types;type:jsonb"`
	Documents         datatypes.JSON `gorm:"column:documents;type:jsonb"`
	SentDocumentTypes datatypes.JSON `gorm:"column:sent_document_types;type:jsonb"`
	SentDocuments     datatypes.JSON `gorm:"column:sent_documents;type:jsonb"`
	DismissedTypes    datatypes.JSON `gorm:"column:dismissed_types;type:jsonb"`
	Notes             datatypes.JSON `gorm:"column:notes;type:jsonb"`
	CreatedAt         time.Time      `gorm:"column:created_at"`
	UpdatedAt         time.Time      `gorm:"column:updated_at"`
}

func (requestModel) TableName() string { return "exchange_requests" }

type ledgerModel struct {
	Kind              string         `gorm:"column:kind;primaryKey"`
	ProductID         string         `gorm:"column:product_id;primaryKey"`
	LedgerID          string         `gorm:"column:ledger_id;primaryKey"`
	CompanyID         string         `gorm:"column:company_id"`
	RequestID         *string        `gorm:"column:request_id"`
	ShareID           string         `gorm:"column:share_id"`
	Context           datatypes.JSON `gorm:"column:context;type:jsonb"`
	ReviewNotRequired bool           `gorm:"column:review_not_required"`
	Documents         datatypes.JSON `gorm:"column:documents;type:jsonb"`
	FeedbackReceived  bool           `gorm:"column:feedback_received"`
	FeedbackSent      bool           `gorm:"column:feedback_sent"`
	CreatedAt         time.Time      `gorm:"column:created_at"`
	UpdatedAt         time.Time      `gorm:"column:updated_at"`
}

func (ledgerModel) TableName() string { return "exchange_ledger" }

type categoryModel struct {
	ProductID  string    `gorm:"column:product_id;primaryKey"`
	CategoryID string    `gorm:"column:category_id;primaryKey"`
	Name       string    `gorm:"column:name"`
	Predefined bool      `gorm:"column:predefined"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (categoryModel) TableName() string { return "exchange_categories" }

type documentTypeModel struct {
	ProductID  string    `gorm:"column:product_id;primaryKey"`
	TypeID     string    `gorm:"column:type_id;primaryKey"`
	CategoryID string    `gorm:"column:category_id"`
	Name       string    `gorm:"column:name"`
	Predefined bool      `gorm:"column:predefined"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (documentTypeModel) TableName() string { return "exchange_document_types" }

type templateModel struct {
	ProductID  string    `gorm:"column:product_id;primaryKey"`
	TemplateID string    `gorm:"column:template_id;primaryKey"`
	TypeID     string    `gorm:"column:type_id"`
	Name       string    `gorm:"column:name"`
	FileID     string    `gorm:"column:file_id"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (templateModel) TableName() string { return "exchange_templates" }

type companyModel struct {
	CompanyID string `gorm:"column:company_id;primaryKey"`
	Name      string `gorm:"column:name"`
}

func (companyModel) TableName() string { return "exchange_companies" }

type outboxModel struct {
	OutboxID     uuid.UUID      `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType    string         `gorm:"column:event_type"`
	PartitionKey string         `gorm:"column:partition_key"`
	Payload      datatypes.JSON `gorm:"column:payload;type:jsonb"`
	RetryCount   int            `gorm:"column:retry_count"`
	PublishedAt  *time.Time     `gorm:"column:published_at"`
	LastError    *string        `gorm:"column:last_error"`
	LastErrorAt  *time.Time     `gorm:"column:last_error_at"`
	FirstSeenAt  time.Time      `gorm:"column:first_seen_at"`
	CreatedAt    time.Time      `gorm:"column:created_at"`
}

func (outboxModel) TableName() string { return "exchange_outbox" }

// processedMessageModel remembers an inbound envelope id until it expires.
type processedMessageModel struct {
	MessageID   string    `gorm:"column:message_id;primaryKey"`
	RoutingKey  string    `gorm:"column:routing_key"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (processedMessageModel) TableName() string { return "exchange_processed_messages" }

type idempotencyModel struct {
	IdempotencyKey string    `gorm:"column:idempotency_key;primaryKey"`
	RequestHash    string    `gorm:"column:request_hash"`
	Status         string    `gorm:"column:status"`
	ResponseCode   int       `gorm:"column:response_code"`
	ResponseBody   *string   `gorm:"column:response_body"`
	ExpiresAt      time.Time `gorm:"column:expires_at"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (idempotencyModel) TableName() string { return "exchange_idempotency" }
