package ports

import (
	"context"
	"time"

	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/contracts"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/domain"
)

// MessagingGateway delivers exchange envelopes to another company node. Transport failures,
// including a full outbound buffer, are returned as *domain.MessagingError.
type MessagingGateway interface {
	SendMessage(ctx context.Context, routingKey, recipientID string, env contracts.Envelope) (string, error)
}

// TaskClient talks to the task/notification service. Duplicate and missing-task responses are
// not errors.
type TaskClient interface {
	CreateTask(ctx context.Context, task domain.Task, notification *domain.NotificationMessage) error
	UpdateTaskStatus(ctx context.Context, update domain.TaskUpdate) error
	Notify(ctx context.Context, notification domain.NotificationMessage) error
}

type FileStorage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Size(ctx context.Context, key string) (int64, error)
}

type CompanyDirectory interface {
	DisplayName(ctx context.Context, companyID string) (string, error)
}

// DirectoryInvalidator is implemented by directories that cache names.
type DirectoryInvalidator interface {
	Forget(ctx context.Context, companyID string) error
}

type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
}
