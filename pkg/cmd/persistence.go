// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dukex/refiner/pkg/persistence"
	"github.com/dukex/refiner/pkg/persistence/file"
	"github.com/dukex/refiner/pkg/persistence/postgresql"
)

// Provider names a storage backend selected by URL scheme.
type Provider string

const (
	ProviderFile     Provider = "file"
	ProviderPostgres Provider = "postgres"
	ProviderRedis    Provider = "redis"
	ProviderMemory   Provider = "memory"
)

// ParseProvider returns the backend of a storage URL. URLs without a scheme are file paths.
func ParseProvider(url string) Provider {
	scheme, _, found := strings.Cut(url, "://")
	if !found {
		if url == string(ProviderMemory) {
			return ProviderMemory
		}

		return ProviderFile
	}

	switch scheme {
	case "postgres", "postgresql":
		return ProviderPostgres
	case "redis", "rediss":
		return ProviderRedis
	case "memory":
		return ProviderMemory
	default:
		return ProviderFile
	}
}

// NewPersistence opens the workflow and lineage store at databaseURL.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch provider := ParseProvider(databaseURL); provider {
	case ProviderPostgres:
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case ProviderFile:
		root := file.CleanRoot(databaseURL)

		if err := os.MkdirAll(root, 0750); err != nil {
			return nil, fmt.Errorf("failed to create data directory %s: %w", root, err)
		}

		return file.NewPersistence(root), nil
	default:
		return nil, fmt.Errorf("unsupported persistence provider: %s", provider)
	}
}
