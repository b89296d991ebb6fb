// Package redis stores recursion audit trails in Redis lists.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/refiner/pkg/models"
	goredis "github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "refiner:audit:"

// AuditTrail appends snapshots to one Redis list per root.
type AuditTrail struct {
	client    goredis.UniversalClient
	keyPrefix string
	logger    *slog.Logger
}

// NewAuditTrail wraps an existing client.
func NewAuditTrail(client goredis.UniversalClient, logger *slog.Logger) *AuditTrail {
	return &AuditTrail{
		client:    client,
		keyPrefix: defaultKeyPrefix,
		logger:    logger.With("module", "redis_audit_trail"),
	}
}

// Connect parses a redis:// URL, pings the server and returns an audit trail using it.
func Connect(ctx context.Context, redisURL string, logger *slog.Logger) (*AuditTrail, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", opts.Addr, "db", opts.DB)

	return NewAuditTrail(client, logger), nil
}

// Append pushes the snapshot to the tail of the root's list.
func (a *AuditTrail) Append(ctx context.Context, snapshot models.RecursionSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	err = a.client.RPush(ctx, a.key(snapshot.RootID), data).Err()
	if err != nil {
		return fmt.Errorf("failed to append snapshot for root %s: %w", snapshot.RootID, err)
	}

	return nil
}

// Snapshots returns every snapshot of rootID in append order.
func (a *AuditTrail) Snapshots(ctx context.Context, rootID string) ([]models.RecursionSnapshot, error) {
	values, err := a.client.LRange(ctx, a.key(rootID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshots for root %s: %w", rootID, err)
	}

	snapshots := make([]models.RecursionSnapshot, 0, len(values))

	for _, value := range values {
		var snapshot models.RecursionSnapshot
		if err := json.Unmarshal([]byte(value), &snapshot); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}

		snapshots = append(snapshots, snapshot)
	}

	return snapshots, nil
}

// Close releases the underlying client.
func (a *AuditTrail) Close() error {
	return a.client.Close()
}

func (a *AuditTrail) key(rootID string) string {
	return a.keyPrefix + rootID
}
