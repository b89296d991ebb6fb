package evaluation

import (
	"strings"
	"unicode"

	"github.com/dukex/refiner/pkg/models"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "have": {}, "in": {}, "into": {}, "is": {}, "it": {},
	"its": {}, "of": {}, "on": {}, "or": {}, "that": {}, "the": {}, "their": {}, "then": {},
	"there": {}, "these": {}, "this": {}, "to": {}, "was": {}, "were": {}, "will": {},
	"with": {}, "we": {}, "you": {}, "your": {}, "our": {}, "they": {}, "them": {}, "can": {},
	"should": {}, "must": {}, "each": {}, "all": {}, "any": {}, "not": {}, "no": {}, "so": {},
	"if": {}, "but": {}, "do": {}, "does": {}, "via": {}, "per": {}, "than": {}, "which": {},
}

// IsStopWord reports whether the lower-cased token is a stop word.
func IsStopWord(token string) bool {
	_, ok := stopWords[token]

	return ok
}

// Tokenize lower-cases text and splits it on anything that is not a letter or digit.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// ContentTokens tokenizes text and drops stop words.
func ContentTokens(text string) []string {
	tokens := Tokenize(text)
	kept := tokens[:0]

	for _, token := range tokens {
		if !IsStopWord(token) {
			kept = append(kept, token)
		}
	}

	return kept
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		set[token] = struct{}{}
	}

	return set
}

// jaccard returns |a ∩ b| / |a ∪ b|. Two empty sets are identical.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}

	shared := 0

	for token := range a {
		if _, ok := b[token]; ok {
			shared++
		}
	}

	return float64(shared) / float64(len(a)+len(b)-shared)
}

// phaseText is the text a phase's clarity is judged on: its automated behavior,
// falling back to the human-facing description.
func phaseText(phase *models.Phase) string {
	if text := strings.TrimSpace(phase.AutomatedBehavior); text != "" {
		return text
	}

	return strings.TrimSpace(phase.HumanBehavior)
}

// TextBlocks extracts the non-empty free-text blocks of a workflow in phase order:
// automated behavior, human behavior and task texts.
func TextBlocks(w *models.Workflow) []string {
	if w == nil {
		return nil
	}

	blocks := make([]string, 0)

	for _, phase := range w.Phases {
		if phase == nil {
			continue
		}

		for _, text := range []string{phase.AutomatedBehavior, phase.HumanBehavior} {
			if text = strings.TrimSpace(text); text != "" {
				blocks = append(blocks, text)
			}
		}

		for _, task := range phase.Tasks {
			if task == nil {
				continue
			}

			if text := strings.TrimSpace(task.Text()); text != "" {
				blocks = append(blocks, text)
			}
		}
	}

	return blocks
}

// WorkflowText flattens a workflow's titles and text blocks into one document.
func WorkflowText(w *models.Workflow) string {
	if w == nil {
		return ""
	}

	var sb strings.Builder

	for _, phase := range w.Phases {
		if phase == nil {
			continue
		}

		sb.WriteString(phase.Title)
		sb.WriteByte('\n')
	}

	sb.WriteString(strings.Join(TextBlocks(w), "\n"))

	return sb.String()
}
