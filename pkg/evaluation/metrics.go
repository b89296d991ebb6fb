package evaluation

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/dukex/refiner/pkg/models"
)

const (
	clarityWordTarget     = 10.0
	specificityCharTarget = 500.0
)

// Metric is a pure scoring function. Results outside [0, 1] are clamped by the engine.
type Metric func(w *models.Workflow) float64

// Clamp limits v to [0, 1]. NaN becomes 0.
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func phasesOf(w *models.Workflow) []*models.Phase {
	if w == nil {
		return nil
	}

	phases := make([]*models.Phase, 0, len(w.Phases))
	for _, phase := range w.Phases {
		if phase != nil {
			phases = append(phases, phase)
		}
	}

	return phases
}

func tasksOf(w *models.Workflow) []*models.Task {
	tasks := make([]*models.Task, 0)

	for _, phase := range phasesOf(w) {
		for _, task := range phase.Tasks {
			if task != nil {
				tasks = append(tasks, task)
			}
		}
	}

	return tasks
}

// Clarity averages, over phases, the word count of the phase text divided by ten.
func Clarity(w *models.Workflow) float64 {
	phases := phasesOf(w)
	if len(phases) == 0 {
		return 0
	}

	total := 0.0
	for _, phase := range phases {
		words := len(strings.Fields(phaseText(phase)))
		total += Clamp(float64(words) / clarityWordTarget)
	}

	return total / float64(len(phases))
}

// Coverage is the fraction of phases with automated or human-facing text.
func Coverage(w *models.Workflow) float64 {
	phases := phasesOf(w)
	if len(phases) == 0 {
		return 0
	}

	covered := 0
	for _, phase := range phases {
		if phaseText(phase) != "" {
			covered++
		}
	}

	return float64(covered) / float64(len(phases))
}

// Coherence is one minus the mean pairwise token overlap of phase texts, so duplicated
// or near-duplicated phases lower the score.
func Coherence(w *models.Workflow) float64 {
	sets := make([]map[string]struct{}, 0)

	for _, phase := range phasesOf(w) {
		text := strings.TrimSpace(phase.AutomatedBehavior + " " + phase.HumanBehavior)
		if text == "" {
			continue
		}

		sets = append(sets, tokenSet(ContentTokens(text)))
	}

	if len(sets) < 2 {
		return 1
	}

	total, pairs := 0.0, 0

	for i := range sets {
		for j := i + 1; j < len(sets); j++ {
			total += jaccard(sets[i], sets[j])
			pairs++
		}
	}

	return 1 - total/float64(pairs)
}

// Specificity is the average text block length relative to 500 characters.
func Specificity(w *models.Workflow) float64 {
	blocks := TextBlocks(w)
	if len(blocks) == 0 {
		return 0
	}

	total := 0
	for _, block := range blocks {
		total += utf8.RuneCountInString(block)
	}

	return math.Min(1, float64(total)/float64(len(blocks))/specificityCharTarget)
}

// Completeness averages the fraction of phases that have tasks with the fraction of
// tasks declaring both inputs and outputs.
func Completeness(w *models.Workflow) float64 {
	phases := phasesOf(w)
	if len(phases) == 0 {
		return 0
	}

	withTasks := 0
	for _, phase := range phases {
		for _, task := range phase.Tasks {
			if task != nil {
				withTasks++

				break
			}
		}
	}

	phaseFraction := float64(withTasks) / float64(len(phases))

	tasks := tasksOf(w)
	taskFraction := 0.0

	if len(tasks) > 0 {
		complete := 0
		for _, task := range tasks {
			if task.HasInputs() && task.HasOutputs() {
				complete++
			}
		}

		taskFraction = float64(complete) / float64(len(tasks))
	}

	return (phaseFraction + taskFraction) / 2
}

// IntentAlignment is the fraction of intent tokens (purpose, description, title
// metadata) that also occur in the workflow content. Stop words are ignored.
func IntentAlignment(w *models.Workflow) float64 {
	if w == nil {
		return 0
	}

	intent := tokenSet(ContentTokens(strings.Join([]string{
		w.MetadataString(models.MetadataPurpose),
		w.MetadataString(models.MetadataDescription),
		w.MetadataString(models.MetadataTitle),
	}, " ")))
	if len(intent) == 0 {
		return 0
	}

	content := tokenSet(ContentTokens(WorkflowText(w)))

	matched := 0
	for token := range intent {
		if _, ok := content[token]; ok {
			matched++
		}
	}

	return float64(matched) / float64(len(intent))
}

// Usability is the fraction of tasks declaring inputs, outputs and a description or action.
func Usability(w *models.Workflow) float64 {
	tasks := tasksOf(w)
	if len(tasks) == 0 {
		return 0
	}

	usable := 0
	for _, task := range tasks {
		if task.HasInputs() && task.HasOutputs() && strings.TrimSpace(task.Text()) != "" {
			usable++
		}
	}

	return float64(usable) / float64(len(tasks))
}
