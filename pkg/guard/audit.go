package guard

import (
	"context"
	"slices"
	"sync"

	"github.com/dukex/refiner/pkg/models"
)

// AuditTrail is an append-only store of recursion snapshots, grouped by root.
type AuditTrail interface {
	Append(ctx context.Context, snapshot models.RecursionSnapshot) error
	Snapshots(ctx context.Context, rootID string) ([]models.RecursionSnapshot, error)
}

// MemoryTrail keeps audit snapshots in process memory.
type MemoryTrail struct {
	mu     sync.RWMutex
	byRoot map[string][]models.RecursionSnapshot
}

func NewMemoryTrail() *MemoryTrail {
	return &MemoryTrail{byRoot: make(map[string][]models.RecursionSnapshot)}
}

func (t *MemoryTrail) Append(_ context.Context, snapshot models.RecursionSnapshot) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.byRoot[snapshot.RootID] = append(t.byRoot[snapshot.RootID], snapshot)

	return nil
}

// Snapshots returns a copy of the trail of rootID in append order.
func (t *MemoryTrail) Snapshots(_ context.Context, rootID string) ([]models.RecursionSnapshot, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return slices.Clone(t.byRoot[rootID]), nil
}
