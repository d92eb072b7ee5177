package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/adapters/cache"
	eventadapter "github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/adapters/events"
	grpcadapter "github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/adapters/grpc"
	httpadapter "github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/adapters/http"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/adapters/memory"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/adapters/postgres"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/adapters/storage"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/adapters/taskclient"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/adapters/ws"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/application"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/domain"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/ports"
	"google.golang.org/grpc"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	service    *application.Service
	httpServer *http.Server
	grpcServer *grpc.Server
	health     *grpcadapter.HealthReporter
	outbox     *eventadapter.OutboxWorker
	consumer   *eventadapter.ConsumerWorker
	cleanupFn  func(context.Context)
}

type store struct {
	documents   ports.DocumentRepository
	requests    ports.RequestRepository
	ledgers     ports.LedgerRepository
	catalog     ports.CatalogRepository
	companies   ports.CompanyRepository
	outbox      ports.OutboxRepository
	eventDedup  ports.EventDedupRepository
	idempotency ports.IdempotencyRepository
}

func NewLogger(serviceID string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With("service", serviceID)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := NewLogger(cfg.ServiceID)
	slog.SetDefault(logger)

	var closers []io.Closer
	cleanup := func(context.Context) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}
	fail := func(err error) (*Runtime, error) {
		cleanup(ctx)
		return nil, err
	}
	probes := map[string]grpcadapter.Probe{}

	var st store
	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		db, connErr := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
		if connErr != nil {
			return fail(connErr)
		}
		sqlDB, dbErr := db.DB()
		if dbErr != nil {
			return fail(dbErr)
		}
		closers = append(closers, sqlDB)
		if migrateErr := postgres.RunMigrations(ctx, db); migrateErr != nil {
			return fail(migrateErr)
		}
		probes["postgres"] = sqlDB.PingContext
		repos := postgres.NewRepositories(db)
		st = store{repos.Documents, repos.Requests, repos.Ledgers, repos.Catalog, repos.Companies, repos.Outbox, repos.EventDedup, repos.Idempotency}
	default:
		logger.WarnContext(ctx, "using in-memory record store, data is lost on restart",
			"module", "bootstrap", "layer", "bootstrap", "operation", "new_runtime", "outcome", "degraded")
		repos := memory.NewRepositories()
		st = store{repos.Documents, repos.Requests, repos.Ledgers, repos.Catalog, repos.Companies, repos.Outbox, repos.EventDedup, repos.Idempotency}
	}

	var cacheStore ports.Cache = memory.NewCache()
	if cfg.RedisURL != "" {
		redisClient, redisErr := cache.Connect(ctx, cfg.RedisURL)
		if redisErr != nil {
			return fail(redisErr)
		}
		closers = append(closers, redisClient)
		redisCache := cache.NewRedisCache(redisClient)
		probes["redis"] = redisCache.Ping
		cacheStore = redisCache
	}
	directory := cache.NewCachedDirectory(logger, application.NewRepositoryDirectory(st.companies), cacheStore, cfg.CompanyNameCacheTTL)

	var files ports.FileStorage
	if cfg.S3Bucket != "" {
		s3Storage, s3Err := storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Prefix:    cfg.S3Prefix,
		})
		if s3Err != nil {
			return fail(s3Err)
		}
		files = s3Storage
	} else {
		logger.WarnContext(ctx, "no s3 bucket configured, document content is kept in memory",
			"module", "bootstrap", "layer", "bootstrap", "operation", "new_runtime", "outcome", "degraded")
		files = storage.NewMemoryStorage()
	}

	var tasks ports.TaskClient
	if cfg.TaskServiceURL != "" {
		client, taskErr := taskclient.New(logger, taskclient.Config{
			BaseURL:       cfg.TaskServiceURL,
			Token:         cfg.TaskServiceToken,
			RatePerSecond: cfg.TaskRatePerSecond,
			MaxAttempts:   cfg.TaskRetryAttempts,
			BaseDelay:     cfg.TaskRetryBaseDelay,
		})
		if taskErr != nil {
			return fail(taskErr)
		}
		tasks = client
	}

	gateway := ports.MessagingGateway(eventadapter.NewLoggingGateway(logger))
	localPublisher := ports.EventPublisher(eventadapter.NewLoggingPublisher(logger))
	deadLetter := ports.EventPublisher(eventadapter.NewLoggingPublisher(logger))
	consumerAdapter := eventadapter.Consumer(eventadapter.NewNoopConsumer())
	if len(cfg.KafkaBrokers) > 0 {
		kafkaGateway, gwErr := eventadapter.NewKafkaGateway(logger, cfg.KafkaBrokers, cfg.InboxTopicPrefix, cfg.GatewayBufferSize)
		if gwErr != nil {
			return fail(gwErr)
		}
		gateway = kafkaGateway
		closers = append(closers, kafkaGateway)

		kafkaPublisher, pubErr := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, map[string]string{
			eventadapter.DeadLetterEventType: cfg.DeadLetterTopic,
		}, cfg.LocalEventsTopic)
		if pubErr != nil {
			logger.WarnContext(ctx, "kafka publisher disabled, using logging publisher", "error", pubErr)
		} else {
			localPublisher = kafkaPublisher
			deadLetter = kafkaPublisher
			closers = append(closers, kafkaPublisher)
		}

		kafkaConsumer, conErr := eventadapter.NewKafkaConsumer(
			cfg.KafkaBrokers,
			cfg.KafkaConsumerGroup,
			[]string{eventadapter.InboxTopic(cfg.InboxTopicPrefix, cfg.CompanyID)},
		)
		if conErr != nil {
			logger.WarnContext(ctx, "kafka consumer disabled, using noop consumer", "error", conErr)
		} else {
			consumerAdapter = kafkaConsumer
			closers = append(closers, kafkaConsumer)
		}
	}

	service := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName:         cfg.ServiceID,
			CompanyID:           cfg.CompanyID,
			RegistrarID:         cfg.RegistrarID,
			MaxSendPayloadBytes: cfg.MaxSendPayloadBytes,
			Policies:            domain.NewPolicyTable(cfg.UnregisteredShareProducts),
			IdempotencyTTL:      cfg.IdempotencyTTL,
			EventDedupTTL:       cfg.EventDedupTTL,
		},
		Logger:      logger,
		Documents:   st.documents,
		Requests:    st.requests,
		Ledgers:     st.ledgers,
		Catalog:     st.catalog,
		Companies:   st.companies,
		Directory:   directory,
		Outbox:      st.outbox,
		EventDedup:  st.eventDedup,
		Idempotency: st.idempotency,
		Gateway:     gateway,
		Tasks:       tasks,
		Files:       files,
	})

	hub := ws.NewHub(logger, cfg.WSOriginPatterns, 32)
	handler := httpadapter.NewHandler(service, hub, logger)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           httpadapter.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	health := grpcadapter.NewHealthReporter(logger, probes, cfg.HealthProbeInterval)
	grpcServer := grpcadapter.NewServer(health)

	processor, err := eventadapter.NewProcessor(logger, service, deadLetter)
	if err != nil {
		return fail(err)
	}
	outbox := eventadapter.NewOutboxWorker(logger, st.outbox, eventadapter.NewFanoutPublisher(localPublisher, hub), cfg.OutboxPollInterval, cfg.OutboxBatchSize)
	consumer := eventadapter.NewConsumerWorker(logger, consumerAdapter, processor, eventadapter.ConsumerWorkerConfig{
		Interval:    cfg.ConsumerPollInterval,
		BatchSize:   cfg.ConsumerBatchSize,
		MaxAttempts: cfg.ConsumerMaxAttempts,
	})

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		service:    service,
		httpServer: httpServer,
		grpcServer: grpcServer,
		health:     health,
		outbox:     outbox,
		consumer:   consumer,
		cleanupFn:  cleanup,
	}, nil
}

// RunAPI serves HTTP and gRPC and fans local events out to websocket clients. The outbox worker
// runs here because the websocket hub lives in this process.
func (r *Runtime) RunAPI(ctx context.Context) error {
	return r.run(ctx, true, false)
}

// RunWorker consumes this node's inbox.
func (r *Runtime) RunWorker(ctx context.Context) error {
	return r.run(ctx, false, true)
}

// RunAll serves the API and consumes the inbox in one process, as the memory store requires.
func (r *Runtime) RunAll(ctx context.Context) error {
	return r.run(ctx, true, true)
}

func (r *Runtime) run(ctx context.Context, api, worker bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 5)

	if api {
		grpcLis, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.GRPCPort))
		if err != nil {
			r.cleanupFn(ctx)
			return err
		}
		go func() {
			if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
		go func() {
			if err := r.grpcServer.Serve(grpcLis); err != nil {
				errCh <- err
			}
		}()
		go func() {
			_ = r.health.Run(ctx)
		}()
		go func() {
			if err := r.outbox.Run(ctx); err != nil && ctx.Err() == nil {
				errCh <- err
			}
		}()
	}
	if worker {
		go func() {
			if err := r.consumer.Run(ctx); err != nil && ctx.Err() == nil {
				errCh <- err
			}
		}()
	}

	r.logger.InfoContext(ctx, "runtime started",
		"module", "bootstrap",
		"layer", "bootstrap",
		"operation", "run",
		"outcome", "success",
		"company_id", r.cfg.CompanyID,
		"api", api,
		"worker", worker,
	)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		r.logger.ErrorContext(ctx, "runtime failure", "error", runErr)
	}
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if api {
		_ = r.httpServer.Shutdown(shutdownCtx)
		r.health.Shutdown()
		r.grpcServer.GracefulStop()
	}
	r.cleanupFn(shutdownCtx)
	return runErr
}

// Migrate applies the embedded schema and exits.
func Migrate(ctx context.Context, configPath string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.StoreDriver != StoreDriverPostgres {
		return fmt.Errorf("migrate requires the %s store driver", StoreDriverPostgres)
	}
	logger := NewLogger(cfg.ServiceID)
	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	if err := postgres.RunMigrations(ctx, db); err != nil {
		return err
	}
	logger.InfoContext(ctx, "migrations applied",
		"module", "bootstrap",
		"layer", "bootstrap",
		"operation", "migrate",
		"outcome", "success",
	)
	return nil
}
