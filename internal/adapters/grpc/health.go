package grpc

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported next to the overall ("") status.
const ServiceName = "exchange.v1.DocumentExchange"

// Probe checks one dependency. A nil error means healthy.
type Probe func(ctx context.Context) error

// HealthReporter flips the grpc health status according to dependency probes.
type HealthReporter struct {
	logger   *slog.Logger
	server   *health.Server
	probes   map[string]Probe
	interval time.Duration
	timeout  time.Duration

	mu      sync.Mutex
	serving bool
}

func NewServer(reporter *HealthReporter) *grpc.Server {
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, reporter.server)
	return srv
}

func NewHealthReporter(logger *slog.Logger, probes map[string]Probe, interval time.Duration) *HealthReporter {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	srv := health.NewServer()
	srv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	srv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return &HealthReporter{
		logger:   logger,
		server:   srv,
		probes:   probes,
		interval: interval,
		timeout:  2 * time.Second,
		serving:  true,
	}
}

func (h *HealthReporter) Health() healthpb.HealthServer {
	return h.server
}

func (h *HealthReporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		h.CheckOnce(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// CheckOnce runs every probe and reports whether all of them passed.
func (h *HealthReporter) CheckOnce(ctx context.Context) bool {
	healthy := true
	for name, probe := range h.probes {
		probeCtx, cancel := context.WithTimeout(ctx, h.timeout)
		err := probe(probeCtx)
		cancel()
		if err != nil {
			healthy = false
			h.logger.WarnContext(ctx, "dependency probe failed",
				"module", "grpc.health",
				"layer", "adapter",
				"operation", "probe",
				"outcome", "failure",
				"dependency", name,
				"error", err,
			)
		}
	}

	h.mu.Lock()
	changed := healthy != h.serving
	h.serving = healthy
	h.mu.Unlock()
	if changed {
		status := healthpb.HealthCheckResponse_SERVING
		if !healthy {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		h.server.SetServingStatus("", status)
		h.server.SetServingStatus(ServiceName, status)
	}
	return healthy
}

func (h *HealthReporter) Shutdown() {
	h.server.Shutdown()
}
