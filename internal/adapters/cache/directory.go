package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/ports"
)

const companyNameKeyPrefix = "exchange:company-name:"

// CachedDirectory keeps counterparty display names in the cache in front of another directory.
// Cache failures degrade to a direct lookup.
type CachedDirectory struct {
	logger *slog.Logger
	inner  ports.CompanyDirectory
	cache  ports.Cache
	ttl    time.Duration
}

func NewCachedDirectory(logger *slog.Logger, inner ports.CompanyDirectory, cache ports.Cache, ttl time.Duration) *CachedDirectory {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedDirectory{logger: logger, inner: inner, cache: cache, ttl: ttl}
}

func (d *CachedDirectory) DisplayName(ctx context.Context, companyID string) (string, error) {
	key := companyNameKeyPrefix + companyID
	if cached, err := d.cache.Get(ctx, key); err == nil && cached != "" {
		return cached, nil
	} else if err != nil {
		d.warn(ctx, "cache_get", companyID, err)
	}
	name, err := d.inner.DisplayName(ctx, companyID)
	if err != nil {
		return "", err
	}
	if name != "" {
		if err := d.cache.Set(ctx, key, name, d.ttl); err != nil {
			d.warn(ctx, "cache_set", companyID, err)
		}
	}
	return name, nil
}

func (d *CachedDirectory) Forget(ctx context.Context, companyID string) error {
	return d.cache.Delete(ctx, companyNameKeyPrefix+companyID)
}

func (d *CachedDirectory) warn(ctx context.Context, operation, companyID string, err error) {
	d.logger.WarnContext(ctx, "company name cache unavailable",
		"module", "cache.directory",
		"layer", "adapter",
		"operation", operation,
		"outcome", "degraded",
		"company_id", companyID,
		"error", err,
	)
}
