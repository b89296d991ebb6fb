// Package guard enforces depth, fan-out, cost and checkpoint limits on refinement
// trees and keeps the append-only audit trail of every recursive call attempt.
package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/refiner/pkg/models"
)

// CheckpointFunc is consulted near policy limits. Returning false stops the tree.
type CheckpointFunc func(ctx context.Context, snapshot models.RecursionSnapshot) bool

// StepRequest describes a recursive refinement call asking for authorization.
type StepRequest struct {
	RootID               string
	ParentID             string
	DeclaredCost         float64
	TerminationCondition string
}

// Option customizes the guard.
type Option func(*Guard)

// Guard is the sole authority permitting or denying another refinement step.
type Guard struct {
	policy     models.RefinementPolicy
	ledgers    *Ledgers
	trail      AuditTrail
	checkpoint CheckpointFunc
	now        func() time.Time
	logger     *slog.Logger
}

// WithLedgers sets the ledger store the guard mutates.
func WithLedgers(ledgers *Ledgers) Option {
	return func(g *Guard) {
		if ledgers != nil {
			g.ledgers = ledgers
		}
	}
}

// WithAuditTrail sets where snapshots are appended.
func WithAuditTrail(trail AuditTrail) Option {
	return func(g *Guard) {
		if trail != nil {
			g.trail = trail
		}
	}
}

// WithCheckpoint installs the cooperative cancellation callback.
func WithCheckpoint(checkpoint CheckpointFunc) Option {
	return func(g *Guard) {
		g.checkpoint = checkpoint
	}
}

// WithClock overrides the snapshot clock.
func WithClock(clock func() time.Time) Option {
	return func(g *Guard) {
		if clock != nil {
			g.now = clock
		}
	}
}

// WithLogger sets the guard logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// New creates a guard for policy.
func New(policy models.RefinementPolicy, opts ...Option) (*Guard, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	g := &Guard{
		policy:  policy,
		ledgers: NewLedgers(),
		trail:   NewMemoryTrail(),
		now:     func() time.Time { return time.Now().UTC() },
		logger:  slog.Default().With("module", "recursion_guard"),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return g, nil
}

// Policy returns the guard's policy.
func (g *Guard) Policy() models.RefinementPolicy {
	return g.policy
}

// Ledger returns the ledger state of rootID as held in memory. Use LoadLedger to
// include steps authorized by earlier processes.
func (g *Guard) Ledger(rootID string) LedgerState {
	return g.ledgers.For(rootID).State()
}

// LoadLedger returns the ledger state of rootID, restoring it from the audit trail
// if this guard has not seen the root yet.
func (g *Guard) LoadLedger(ctx context.Context, rootID string) (LedgerState, error) {
	ledger := g.ledgers.For(rootID)

	ledger.mu.Lock()
	defer ledger.mu.Unlock()

	if err := g.restore(ctx, rootID, ledger); err != nil {
		return LedgerState{}, &StepError{Op: "LoadLedger", RootID: rootID, Err: err}
	}

	return ledger.state, nil
}

// restore rebuilds an unloaded ledger from the last authorized snapshot of its root.
// The caller holds ledger.mu.
func (g *Guard) restore(ctx context.Context, rootID string, ledger *Ledger) error {
	if ledger.loaded {
		return nil
	}

	snapshots, err := g.trail.Snapshots(ctx, rootID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuditFailure, err)
	}

	for _, snapshot := range snapshots {
		if snapshot.Outcome != models.SnapshotAuthorized {
			continue
		}

		ledger.state = LedgerState{
			Depth:             snapshot.Depth,
			ChildrenGenerated: snapshot.ChildrenGenerated,
			CostSpent:         snapshot.CostSpent,
		}
	}

	ledger.loaded = true

	if len(snapshots) > 0 {
		g.logger.DebugContext(ctx, "Restored ledger from audit trail",
			"root_id", rootID,
			"depth", ledger.state.Depth,
			"cost_spent", ledger.state.CostSpent,
		)
	}

	return nil
}

// Trail returns the audit trail of rootID in append order.
func (g *Guard) Trail(ctx context.Context, rootID string) ([]models.RecursionSnapshot, error) {
	return g.trail.Snapshots(ctx, rootID)
}

// AuthorizeStep checks a recursive call against the policy. On success it appends an
// authorized snapshot and only then commits the ledger update; on denial it appends a
// denied snapshot carrying the unchanged ledger values.
func (g *Guard) AuthorizeStep(ctx context.Context, req StepRequest) (models.RecursionSnapshot, error) {
	if req.RootID == "" {
		return models.RecursionSnapshot{}, &StepError{Op: "AuthorizeStep", Err: ErrMissingRoot}
	}

	ledger := g.ledgers.For(req.RootID)

	ledger.mu.Lock()
	defer ledger.mu.Unlock()

	if err := g.restore(ctx, req.RootID, ledger); err != nil {
		return models.RecursionSnapshot{}, &StepError{Op: "AuthorizeStep", RootID: req.RootID, Err: err}
	}

	current := ledger.state
	next := LedgerState{
		Depth:             current.Depth + 1,
		ChildrenGenerated: current.ChildrenGenerated + 1,
		CostSpent:         current.CostSpent + req.DeclaredCost,
	}

	err := g.check(req, next)
	if err == nil && g.nearLimit(next) && g.checkpoint != nil {
		if !g.checkpoint(ctx, g.snapshot(req, next, models.SnapshotAuthorized, "")) {
			err = ErrCheckpointDenied
		}
	}

	if err != nil {
		denied := g.snapshot(req, current, models.SnapshotDenied, err.Error())
		if appendErr := g.trail.Append(ctx, denied); appendErr != nil {
			err = errors.Join(err, fmt.Errorf("%w: %w", ErrAuditFailure, appendErr))
		}

		g.logger.WarnContext(ctx, "Refinement step denied",
			"root_id", req.RootID,
			"parent_id", req.ParentID,
			"depth", current.Depth,
			"cost_spent", current.CostSpent,
			"reason", err.Error(),
		)

		return denied, &StepError{Op: "AuthorizeStep", RootID: req.RootID, Err: err}
	}

	authorized := g.snapshot(req, next, models.SnapshotAuthorized, "")
	if appendErr := g.trail.Append(ctx, authorized); appendErr != nil {
		return models.RecursionSnapshot{}, &StepError{
			Op:     "AuthorizeStep",
			RootID: req.RootID,
			Err:    fmt.Errorf("%w: %w", ErrAuditFailure, appendErr),
		}
	}

	ledger.state = next

	g.logger.DebugContext(ctx, "Refinement step authorized",
		"root_id", req.RootID,
		"depth", next.Depth,
		"children_generated", next.ChildrenGenerated,
		"remaining_budget", authorized.RemainingBudget,
	)

	return authorized, nil
}

// RecordFailure appends a failed snapshot for an error raised outside the guard, so
// that no failure in a refinement tree goes unrecorded.
func (g *Guard) RecordFailure(ctx context.Context, req StepRequest, reason error) error {
	if req.RootID == "" {
		return &StepError{Op: "RecordFailure", Err: ErrMissingRoot}
	}

	message := ""
	if reason != nil {
		message = reason.Error()
	}

	ledger := g.ledgers.For(req.RootID)

	ledger.mu.Lock()
	defer ledger.mu.Unlock()

	if err := g.restore(ctx, req.RootID, ledger); err != nil {
		return &StepError{Op: "RecordFailure", RootID: req.RootID, Err: err}
	}

	err := g.trail.Append(ctx, g.snapshot(req, ledger.state, models.SnapshotFailed, message))
	if err != nil {
		return &StepError{Op: "RecordFailure", RootID: req.RootID, Err: fmt.Errorf("%w: %w", ErrAuditFailure, err)}
	}

	return nil
}

func (g *Guard) check(req StepRequest, next LedgerState) error {
	switch {
	case req.TerminationCondition == "":
		return ErrTerminationMissing
	case req.DeclaredCost < 0:
		return ErrInvalidCost
	case next.Depth > g.policy.MaxDepth:
		return ErrDepthExceeded
	case next.ChildrenGenerated > g.policy.MaxChildren:
		return ErrFanoutExceeded
	case next.CostSpent > g.policy.CostBudget:
		return ErrBudgetExceeded
	}

	return nil
}

func (g *Guard) nearLimit(next LedgerState) bool {
	depthRatio := float64(next.Depth) / float64(g.policy.MaxDepth)
	costRatio := next.CostSpent / g.policy.CostBudget

	return depthRatio >= g.policy.CheckpointRatio || costRatio >= g.policy.CheckpointRatio
}

func (g *Guard) snapshot(req StepRequest, state LedgerState, outcome models.SnapshotOutcome, reason string) models.RecursionSnapshot {
	return models.RecursionSnapshot{
		RootID:               req.RootID,
		ParentID:             req.ParentID,
		Depth:                state.Depth,
		ChildrenGenerated:    state.ChildrenGenerated,
		CostSpent:            state.CostSpent,
		RemainingBudget:      g.policy.CostBudget - state.CostSpent,
		TerminationCondition: req.TerminationCondition,
		Outcome:              outcome,
		Reason:               reason,
		Timestamp:            g.now(),
	}
}
