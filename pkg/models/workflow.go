// Package models defines the core domain models for workflow refinement.
package models

import (
	"maps"
	"time"
)

// Metadata keys read by the evaluation engine.
const (
	MetadataPurpose     = "purpose"
	MetadataDescription = "description"
	MetadataTitle       = "title"
	MetadataAudience    = "audience"
	MetadataAuthor      = "author"
)

// Workflow is the versioned document being refined.
type Workflow struct {
	ID         string            `json:"id"                   yaml:"id"                   validate:"required"`
	Version    string            `json:"version"              yaml:"version"              validate:"required"`
	ParentID   string            `json:"parent_id,omitempty"  yaml:"parent_id,omitempty"`
	RootID     string            `json:"root_id,omitempty"    yaml:"root_id,omitempty"`
	Metadata   map[string]any    `json:"metadata,omitempty"   yaml:"metadata,omitempty"`
	Phases     []*Phase          `json:"phases"               yaml:"phases"               validate:"required,min=1,dive,required"`
	Graph      *DependencyGraph  `json:"graph,omitempty"      yaml:"graph,omitempty"`
	Evaluation *EvaluationResult `json:"evaluation,omitempty" yaml:"evaluation,omitempty"`
	Notes      []string          `json:"notes,omitempty"      yaml:"notes,omitempty"`
	CreatedAt  time.Time         `json:"created_at"           yaml:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"           yaml:"updated_at"`
}

// Phase is an ordered unit of a workflow with declared dependencies.
type Phase struct {
	ID                string   `json:"id"                           yaml:"id"                           validate:"required"`
	Title             string   `json:"title"                        yaml:"title"                        validate:"required"`
	Tasks             []*Task  `json:"tasks,omitempty"              yaml:"tasks,omitempty"              validate:"dive,required"`
	AutomatedBehavior string   `json:"automated_behavior,omitempty" yaml:"automated_behavior,omitempty"`
	HumanBehavior     string   `json:"human_behavior,omitempty"     yaml:"human_behavior,omitempty"`
	DependsOn         []string `json:"depends_on,omitempty"         yaml:"depends_on,omitempty"`
}

// Task is a single step inside a phase.
type Task struct {
	ID          string   `json:"id,omitempty"          yaml:"id,omitempty"`
	Description string   `json:"description"           yaml:"description"`
	Action      string   `json:"action,omitempty"      yaml:"action,omitempty"`
	Inputs      []string `json:"inputs,omitempty"      yaml:"inputs,omitempty"`
	Outputs     []string `json:"outputs,omitempty"     yaml:"outputs,omitempty"`
}

// Root returns the id of the refinement tree the workflow belongs to. A workflow that
// was never refined roots its own tree.
func (w *Workflow) Root() string {
	if w.RootID != "" {
		return w.RootID
	}

	return w.ID
}

// MetadataString returns the metadata value for key when it is a string.
func (w *Workflow) MetadataString(key string) string {
	if w == nil || w.Metadata == nil {
		return ""
	}

	value, _ := w.Metadata[key].(string)

	return value
}

// PhaseIDs returns the phase identifiers in declaration order.
func (w *Workflow) PhaseIDs() []string {
	ids := make([]string, 0, len(w.Phases))
	for _, phase := range w.Phases {
		if phase != nil {
			ids = append(ids, phase.ID)
		}
	}

	return ids
}

// AddNote appends a note to the workflow.
func (w *Workflow) AddNote(note string) {
	w.Notes = append(w.Notes, note)
}

// Clone returns a deep copy of the workflow.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}

	clone := *w
	clone.Metadata = maps.Clone(w.Metadata)
	clone.Notes = cloneStrings(w.Notes)

	if w.Phases != nil {
		clone.Phases = make([]*Phase, len(w.Phases))
		for i, phase := range w.Phases {
			clone.Phases[i] = phase.Clone()
		}
	}

	clone.Graph = w.Graph.Clone()
	clone.Evaluation = w.Evaluation.Clone()

	return &clone
}

// Clone returns a deep copy of the phase.
func (p *Phase) Clone() *Phase {
	if p == nil {
		return nil
	}

	clone := *p
	clone.DependsOn = cloneStrings(p.DependsOn)

	if p.Tasks != nil {
		clone.Tasks = make([]*Task, len(p.Tasks))
		for i, task := range p.Tasks {
			clone.Tasks[i] = task.Clone()
		}
	}

	return &clone
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}

	clone := *t
	clone.Inputs = cloneStrings(t.Inputs)
	clone.Outputs = cloneStrings(t.Outputs)

	return &clone
}

// HasInputs reports whether the task declares inputs or prerequisites.
func (t *Task) HasInputs() bool {
	return hasNonEmpty(t.Inputs)
}

// HasOutputs reports whether the task declares outputs or expected results.
func (t *Task) HasOutputs() bool {
	return hasNonEmpty(t.Outputs)
}

// Text returns the task's description, falling back to its action.
func (t *Task) Text() string {
	if t.Description != "" {
		return t.Description
	}

	return t.Action
}

func hasNonEmpty(values []string) bool {
	for _, v := range values {
		if v != "" {
			return true
		}
	}

	return false
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}

	return append([]string(nil), values...)
}
