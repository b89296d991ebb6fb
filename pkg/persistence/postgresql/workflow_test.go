package postgresql_test

import (
	"fmt"
	"testing"

	"github.com/dukex/refiner/pkg/models"
	"github.com/dukex/refiner/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowRepository_ListWorkflows(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	for i := range 5 {
		workflow := testWorkflow(fmt.Sprintf("wf-%d", i))
		workflow.Evaluation = &models.EvaluationResult{OverallScore: float64(i) / 10}

		if i > 0 {
			workflow.ParentID = "wf-0"
		}

		require.NoError(t, p.SaveWorkflow(ctx, workflow))
	}

	tests := []struct {
		name     string
		opts     persistence.ListWorkflowsOptions
		total    int64
		firstID  string
		count    int
		nextPage bool
	}{
		{
			name:     "by id ascending",
			opts:     persistence.ListWorkflowsOptions{SortBy: "id", SortOrder: "asc", Limit: 2},
			total:    5,
			firstID:  "wf-0",
			count:    2,
			nextPage: true,
		},
		{
			name:    "by score descending",
			opts:    persistence.ListWorkflowsOptions{SortBy: "score"},
			total:   5,
			firstID: "wf-4",
			count:   5,
		},
		{
			name:    "children of root",
			opts:    persistence.ListWorkflowsOptions{ParentID: "wf-0", SortBy: "id", SortOrder: "asc", Offset: 3},
			total:   4,
			firstID: "wf-4",
			count:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := p.ListWorkflows(ctx, tt.opts)
			require.NoError(t, err)

			assert.Equal(t, tt.total, result.TotalCount)
			assert.Equal(t, tt.nextPage, result.HasNextPage)
			require.Len(t, result.Workflows, tt.count)
			assert.Equal(t, tt.firstID, result.Workflows[0].ID)
		})
	}
}

func TestWorkflowRepository_ListWorkflows_InvalidSort(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	_, err := p.ListWorkflows(ctx, persistence.ListWorkflowsOptions{SortBy: "name; DROP TABLE workflows"})

	assert.ErrorIs(t, err, persistence.ErrInvalidSortField)
}
