package persistence

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dukex/refiner/pkg/models"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ListWorkflowsOptions filters, sorts and paginates workflow listings.
type ListWorkflowsOptions struct {
	// ParentID keeps only workflows derived from the given workflow.
	ParentID  string
	Limit     int
	Offset    int
	SortBy    string
	SortOrder string
}

// WorkflowListResult is one page of workflows.
type WorkflowListResult struct {
	Workflows   []*models.Workflow `json:"workflows"`
	TotalCount  int64              `json:"total_count"`
	HasNextPage bool               `json:"has_next_page"`
}

// SortColumns maps the allowed sort fields to their column names.
var SortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"id":         "id",
	"score":      "overall_score",
}

// Normalize applies defaults and validates the sort parameters against the allowlist.
func (o ListWorkflowsOptions) Normalize() (ListWorkflowsOptions, error) {
	if o.Limit <= 0 || o.Limit > MaxListLimit {
		o.Limit = DefaultListLimit
	}

	if o.Offset < 0 {
		o.Offset = 0
	}

	if o.SortBy == "" {
		o.SortBy = "created_at"
	}

	o.SortOrder = strings.ToLower(o.SortOrder)
	if o.SortOrder != "asc" {
		o.SortOrder = "desc"
	}

	if _, ok := SortColumns[o.SortBy]; !ok {
		return o, fmt.Errorf("%w: %s", ErrInvalidSortField, o.SortBy)
	}

	return o, nil
}

// Paginate filters, sorts and slices workflows in memory.
func Paginate(workflows []*models.Workflow, opts ListWorkflowsOptions) (*WorkflowListResult, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.Workflow, 0, len(workflows))
	for _, workflow := range workflows {
		if opts.ParentID != "" && workflow.ParentID != opts.ParentID {
			continue
		}

		filtered = append(filtered, workflow)
	}

	slices.SortStableFunc(filtered, func(a, b *models.Workflow) int {
		cmp := compareWorkflows(a, b, opts.SortBy)
		if opts.SortOrder == "desc" {
			return -cmp
		}

		return cmp
	})

	total := int64(len(filtered))

	if opts.Offset >= len(filtered) {
		return &WorkflowListResult{Workflows: make([]*models.Workflow, 0), TotalCount: total}, nil
	}

	end := min(opts.Offset+opts.Limit, len(filtered))

	return &WorkflowListResult{
		Workflows:   filtered[opts.Offset:end],
		TotalCount:  total,
		HasNextPage: end < len(filtered),
	}, nil
}

func compareWorkflows(a, b *models.Workflow, sortBy string) int {
	switch sortBy {
	case "updated_at":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case "id":
		return strings.Compare(a.ID, b.ID)
	case "score":
		return compareFloat(score(a), score(b))
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func score(w *models.Workflow) float64 {
	if w.Evaluation == nil {
		return 0
	}

	return w.Evaluation.OverallScore
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
