package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dukex/refiner/pkg/models"
	"github.com/dukex/refiner/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWorkflow(id string) *models.Workflow {
	return &models.Workflow{
		ID:       id,
		Version:  "1",
		Metadata: map[string]any{models.MetadataTitle: "Release checklist"},
		Phases: []*models.Phase{
			{ID: "build", Title: "Build", AutomatedBehavior: "compile the release"},
			{ID: "ship", Title: "Ship", DependsOn: []string{"build"}},
		},
		Evaluation: &models.EvaluationResult{
			Metrics:      map[string]float64{models.MetricClarity: 0.4},
			OverallScore: 0.4,
		},
	}
}

func TestNewPersistence(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/tmp/test", NewPersistence("/tmp/test").root)
	assert.Equal(t, "/tmp/test", NewPersistence("file:///tmp/test").root)
}

func TestPersistence_Close(t *testing.T) {
	t.Parallel()

	assert.NoError(t, NewPersistence("./test-data").Close(t.Context()))
}

func TestPersistence_HealthCheck(t *testing.T) {
	t.Parallel()

	assert.NoError(t, NewPersistence(t.TempDir()).HealthCheck(t.Context()))
	assert.ErrorIs(t, NewPersistence(filepath.Join(t.TempDir(), "missing")).HealthCheck(t.Context()), os.ErrNotExist)
}

func TestPersistence_SaveAndLoadWorkflow(t *testing.T) {
	t.Parallel()

	testDir := t.TempDir()
	p := NewPersistence(testDir)
	ctx := t.Context()

	workflow := testWorkflow("release")
	require.NoError(t, p.SaveWorkflow(ctx, workflow))

	assert.FileExists(t, filepath.Join(testDir, "workflows", "release.json"))
	assert.False(t, workflow.CreatedAt.IsZero())
	assert.False(t, workflow.UpdatedAt.IsZero())

	loaded, err := p.WorkflowByID(ctx, "release")
	require.NoError(t, err)
	assert.Equal(t, workflow.Phases, loaded.Phases)
	assert.Equal(t, workflow.Evaluation, loaded.Evaluation)
	assert.Equal(t, "Release checklist", loaded.MetadataString(models.MetadataTitle))

	all, err := p.Workflows(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPersistence_SaveWorkflow_KeepsCreatedAt(t *testing.T) {
	t.Parallel()

	p := NewPersistence(t.TempDir())

	created := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	workflow := testWorkflow("keep")
	workflow.CreatedAt = created

	require.NoError(t, p.SaveWorkflow(t.Context(), workflow))

	assert.Equal(t, created, workflow.CreatedAt)
	assert.True(t, workflow.UpdatedAt.After(created))
}

func TestPersistence_WorkflowNotFound(t *testing.T) {
	t.Parallel()

	p := NewPersistence(t.TempDir())

	_, err := p.WorkflowByID(t.Context(), "ghost")
	assert.True(t, persistence.IsWorkflowNotFound(err))

	err = p.DeleteWorkflow(t.Context(), "ghost")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestPersistence_RejectsTraversal(t *testing.T) {
	t.Parallel()

	p := NewPersistence(t.TempDir())
	ctx := t.Context()

	assert.ErrorIs(t, p.SaveWorkflow(ctx, testWorkflow("../escape")), persistence.ErrInvalidID)

	_, err := p.WorkflowByID(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, persistence.ErrInvalidID)

	_, err = p.Lineage(ctx, "a/b")
	assert.ErrorIs(t, err, persistence.ErrInvalidID)
}

func TestPersistence_DeleteWorkflow(t *testing.T) {
	t.Parallel()

	p := NewPersistence(t.TempDir())
	ctx := t.Context()

	require.NoError(t, p.SaveWorkflow(ctx, testWorkflow("gone")))
	require.NoError(t, p.DeleteWorkflow(ctx, "gone"))

	_, err := p.WorkflowByID(ctx, "gone")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestPersistence_Lineage(t *testing.T) {
	t.Parallel()

	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	records, err := p.Lineage(ctx, "root-1")
	require.NoError(t, err)
	assert.Empty(t, records)

	for cycle, decision := range []models.Decision{models.DecisionAccepted, models.DecisionRejected} {
		require.NoError(t, p.RecordLineage(ctx, &models.LineageRecord{
			ID:         "rec-" + string(decision),
			RootID:     "root-1",
			Cycle:      cycle + 1,
			WorkflowID: "wf",
			Decision:   decision,
			ScoreDelta: 0.1,
			Snapshot:   &models.RecursionSnapshot{RootID: "root-1", Depth: cycle + 1},
		}))
	}

	require.NoError(t, p.RecordLineage(ctx, &models.LineageRecord{ID: "other", RootID: "root-2"}))

	records, err = p.Lineage(ctx, "root-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, models.DecisionAccepted, records[0].Decision)
	assert.Equal(t, 2, records[1].Snapshot.Depth)

	err = p.RecordLineage(ctx, &models.LineageRecord{RootID: "root-1"})
	assert.ErrorIs(t, err, persistence.ErrInvalidLineage)
}

func TestAuditTrail(t *testing.T) {
	t.Parallel()

	trail := NewAuditTrail("file://" + t.TempDir())
	ctx := t.Context()

	for depth := 1; depth <= 3; depth++ {
		require.NoError(t, trail.Append(ctx, models.RecursionSnapshot{
			RootID:  "root",
			Depth:   depth,
			Outcome: models.SnapshotAuthorized,
		}))
	}

	snapshots, err := trail.Snapshots(ctx, "root")
	require.NoError(t, err)
	require.Len(t, snapshots, 3)

	for i, snapshot := range snapshots {
		assert.Equal(t, i+1, snapshot.Depth)
	}

	empty, err := trail.Snapshots(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
