package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/refiner/pkg/guard"
	"github.com/dukex/refiner/pkg/persistence/file"
	"github.com/dukex/refiner/pkg/persistence/postgresql"
	"github.com/dukex/refiner/pkg/persistence/redis"
)

// NewAuditTrail opens the recursion audit trail at auditURL. An empty URL or "memory"
// keeps snapshots in process memory. The returned close function is never nil.
func NewAuditTrail(ctx context.Context, logger *slog.Logger, auditURL string) (guard.AuditTrail, func() error, error) {
	noop := func() error { return nil }

	if auditURL == "" {
		return guard.NewMemoryTrail(), noop, nil
	}

	switch provider := ParseProvider(auditURL); provider {
	case ProviderMemory:
		return guard.NewMemoryTrail(), noop, nil
	case ProviderFile:
		return file.NewAuditTrail(auditURL), noop, nil
	case ProviderRedis:
		trail, err := redis.Connect(ctx, auditURL, logger)
		if err != nil {
			return nil, nil, err
		}

		return trail, trail.Close, nil
	case ProviderPostgres:
		db, err := postgresql.Open(ctx, logger, auditURL)
		if err != nil {
			return nil, nil, err
		}

		return postgresql.NewAuditTrail(db, logger), db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported audit trail provider: %s", provider)
	}
}
