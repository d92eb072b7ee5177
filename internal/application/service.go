package application

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/domain"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/ports"
)

type Service struct {
	cfg         Config
	logger      *slog.Logger
	documents   ports.DocumentRepository
	requests    ports.RequestRepository
	ledgers     ports.LedgerRepository
	catalog     ports.CatalogRepository
	companies   ports.CompanyRepository
	directory   ports.CompanyDirectory
	outbox      ports.OutboxRepository
	eventDedup  ports.EventDedupRepository
	idempotency ports.IdempotencyRepository
	gateway     ports.MessagingGateway
	tasks       ports.TaskClient
	files       ports.FileStorage
	nowFn       func() time.Time
}

type Dependencies struct {
	Config      Config
	Logger      *slog.Logger
	Documents   ports.DocumentRepository
	Requests    ports.RequestRepository
	Ledgers     ports.LedgerRepository
	Catalog     ports.CatalogRepository
	Companies   ports.CompanyRepository
	Directory   ports.CompanyDirectory
	Outbox      ports.OutboxRepository
	EventDedup  ports.EventDedupRepository
	Idempotency ports.IdempotencyRepository
	Gateway     ports.MessagingGateway
	Tasks       ports.TaskClient
	Files       ports.FileStorage
	Clock       func() time.Time
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "M32-Document-Exchange-Service"
	}
	if cfg.MaxSendPayloadBytes <= 0 {
		cfg.MaxSendPayloadBytes = 25 << 20
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 7 * 24 * time.Hour
	}
	if cfg.EventDedupTTL <= 0 {
		cfg.EventDedupTTL = 7 * 24 * time.Hour
	}
	if cfg.Policies == nil {
		cfg.Policies = domain.PolicyTable{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	directory := deps.Directory
	if directory == nil && deps.Companies != nil {
		directory = NewRepositoryDirectory(deps.Companies)
	}
	nowFn := deps.Clock
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}

	return &Service{
		cfg:         cfg,
		logger:      logger,
		documents:   deps.Documents,
		requests:    deps.Requests,
		ledgers:     deps.Ledgers,
		catalog:     deps.Catalog,
		companies:   deps.Companies,
		directory:   directory,
		outbox:      deps.Outbox,
		eventDedup:  deps.EventDedup,
		idempotency: deps.Idempotency,
		gateway:     deps.Gateway,
		tasks:       deps.Tasks,
		files:       deps.Files,
		nowFn:       nowFn,
	}
}

func (s *Service) CompanyID() string {
	return s.cfg.CompanyID
}

type ctxKey string

const ctxKeyRequestID ctxKey = "request_id"

// WithRequestID tags ctx with the caller's correlation id. Service log records carry it.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return v
	}
	return ""
}

func (s *Service) log(ctx context.Context, operation string) *slog.Logger {
	logger := s.logger.With(
		"module", "application.service",
		"layer", "application",
		"operation", operation,
	)
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		logger = logger.With("request_id", requestID)
	}
	return logger
}

// RepositoryDirectory resolves counterparty names from the company records.
type RepositoryDirectory struct {
	companies ports.CompanyRepository
}

func NewRepositoryDirectory(companies ports.CompanyRepository) RepositoryDirectory {
	return RepositoryDirectory{companies: companies}
}

func (d RepositoryDirectory) DisplayName(ctx context.Context, companyID string) (string, error) {
	company, err := d.companies.Get(ctx, companyID)
	if err != nil {
		return "", err
	}
	return company.Name, nil
}
