package bootstrap

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func memoryEnv(t *testing.T) string {
	t.Helper()
	t.Setenv("COMPANY_ID", "company-self")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("HTTP_PORT", "0")
	t.Setenv("GRPC_PORT", "0")
	return filepath.Join(t.TempDir(), "missing.yaml")
}

func TestRuntimeRunsWithMemoryDriver(t *testing.T) {
	path := memoryEnv(t)
	rt, err := NewRuntime(context.Background(), path)
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	if rt.service == nil || rt.outbox == nil || rt.consumer == nil {
		t.Fatalf("runtime not fully wired: %+v", rt)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if err := rt.RunAll(ctx); err != nil {
		t.Fatalf("run all: %v", err)
	}
}

func TestMigrateRequiresPostgres(t *testing.T) {
	path := memoryEnv(t)
	err := Migrate(context.Background(), path)
	if err == nil || !strings.Contains(err.Error(), "postgres store driver") {
		t.Fatalf("expected postgres driver error, got %v", err)
	}
}
