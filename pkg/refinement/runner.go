package refinement

import (
	"context"
	"fmt"

	"github.com/dukex/refiner/pkg/models"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds how many roots a Runner refines at once.
const DefaultConcurrency = 4

// Runner refines independent roots concurrently. The guard keeps a separate ledger and
// audit trail per root, so trees never share limits.
type Runner struct {
	orchestrator *Orchestrator
	concurrency  int
}

func NewRunner(orchestrator *Orchestrator, concurrency int) *Runner {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	return &Runner{orchestrator: orchestrator, concurrency: concurrency}
}

// RefineAll refines every workflow in the tree it belongs to. RootID in opts is
// ignored; a workflow produced by an earlier refinement continues its own root, any
// other workflow roots a new tree at its id. At most one workflow per root may be
// given. Outcomes are returned in input order. The first failure to record a tree
// cancels the remaining ones.
func (r *Runner) RefineAll(ctx context.Context, workflows []*models.Workflow, opts RunOptions) ([]*Outcome, error) {
	seen := make(map[string]bool, len(workflows))

	for i, workflow := range workflows {
		if workflow == nil {
			return nil, fmt.Errorf("%w: index %d", ErrNilWorkflow, i)
		}

		root := workflow.Root()
		if root == "" {
			continue
		}

		if seen[root] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRoot, root)
		}

		seen[root] = true
	}

	outcomes := make([]*Outcome, len(workflows))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(r.concurrency)

	for i, workflow := range workflows {
		group.Go(func() error {
			treeOpts := opts
			treeOpts.RootID = workflow.Root()

			outcome, err := r.orchestrator.Refine(ctx, workflow, treeOpts)
			outcomes[i] = outcome

			if err != nil {
				return fmt.Errorf("refine %s: %w", workflow.ID, err)
			}

			return nil
		})
	}

	err := group.Wait()

	return outcomes, err
}
