package workflowfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dukex/refiner/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlWorkflow = `
id: onboarding
version: "2"
metadata:
  purpose: onboard new engineers
phases:
  - id: accounts
    title: Accounts
    automated_behavior: create accounts in every system
    tasks:
      - description: create the directory entry
        inputs: [offer letter]
        outputs: [account]
  - id: intro
    title: Introductions
    human_behavior: meet the team
    depends_on: [accounts]
`

func TestDecode_YAML(t *testing.T) {
	t.Parallel()

	workflow, err := Decode(strings.NewReader(yamlWorkflow), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, "onboarding", workflow.ID)
	assert.Equal(t, "2", workflow.Version)
	assert.Equal(t, "onboard new engineers", workflow.MetadataString(models.MetadataPurpose))
	require.Len(t, workflow.Phases, 2)
	assert.Equal(t, []string{"accounts"}, workflow.Phases[1].DependsOn)
	assert.True(t, workflow.Phases[0].Tasks[0].HasInputs())
	assert.True(t, workflow.Phases[0].Tasks[0].HasOutputs())
}

func TestDecode_RejectsUnknownFields(t *testing.T) {
	t.Parallel()

	_, err := Decode(strings.NewReader(`{"id":"x","version":"1","phases":[],"nodes":[]}`), FormatJSON)
	require.Error(t, err)

	_, err = Decode(strings.NewReader("id: x\ntriggers: []\n"), FormatYAML)
	require.Error(t, err)

	_, err = Decode(strings.NewReader("{}"), Format("toml"))
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestSaveLoad(t *testing.T) {
	t.Parallel()

	original, err := Decode(strings.NewReader(yamlWorkflow), FormatYAML)
	require.NoError(t, err)

	dir := t.TempDir()

	for _, name := range []string{"b.json", "a.yaml"} {
		require.NoError(t, Save(filepath.Join(dir, name), original))
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# notes"), 0o600))

	loaded, err := Load(filepath.Join(dir, "b.json"))
	require.NoError(t, err)
	assert.Equal(t, original.Phases, loaded.Phases)

	workflows, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, workflows, 2)
	assert.Equal(t, original.Phases, workflows[0].Phases)
	assert.Equal(t, original.Phases, workflows[1].Phases)
}

func TestFormatOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{path: "w.json", want: FormatJSON},
		{path: "w.YAML", want: FormatYAML},
		{path: "dir/w.yml", want: FormatYAML},
		{path: "w.txt", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			format, err := FormatOf(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownFormat)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, format)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.ErrorContains(t, err, "failed to read workflow file")

	path := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("phases: [\n"), 0o600))

	_, err = Load(path)
	assert.ErrorContains(t, err, "broken.yaml")
}

func TestWriteAtomic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "wf.json")

	require.NoError(t, WriteAtomic(path, []byte(`{"id":"a"}`)))
	require.NoError(t, WriteAtomic(path, []byte(`{"id":"b"}`)))

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"b"}`, string(body))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	assert.Error(t, WriteAtomic(filepath.Join(dir, "missing", "wf.json"), nil))
}
