package evaluation

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/dukex/refiner/pkg/models"
)

var ErrDimensionMismatch = errors.New("embedding dimensions do not match")

// Similarity measures how alike two texts are, in [0, 1].
type Similarity interface {
	Name() string
	Similarity(ctx context.Context, a, b string) (float64, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
}

// LexicalSimilarity is the deterministic token-set overlap proxy used when no
// embedding backend is configured.
type LexicalSimilarity struct{}

func (LexicalSimilarity) Name() string { return "lexical" }

func (LexicalSimilarity) Similarity(_ context.Context, a, b string) (float64, error) {
	return jaccard(tokenSet(ContentTokens(a)), tokenSet(ContentTokens(b))), nil
}

// EmbeddingSimilarity compares texts by the cosine of their embeddings.
type EmbeddingSimilarity struct {
	embedder Embedder
}

func NewEmbeddingSimilarity(embedder Embedder) *EmbeddingSimilarity {
	return &EmbeddingSimilarity{embedder: embedder}
}

func (s *EmbeddingSimilarity) Name() string { return "embedding" }

func (s *EmbeddingSimilarity) Similarity(ctx context.Context, a, b string) (float64, error) {
	va, err := s.embedder.GetEmbedding(ctx, a)
	if err != nil {
		return 0, fmt.Errorf("failed to embed text: %w", err)
	}

	vb, err := s.embedder.GetEmbedding(ctx, b)
	if err != nil {
		return 0, fmt.Errorf("failed to embed text: %w", err)
	}

	return Cosine(va, vb)
}

// NewSimilarity picks the embedding backend when an embedder is available and the
// lexical proxy otherwise. The choice is made once, so a run uses a single backend.
func NewSimilarity(embedder Embedder) Similarity {
	if embedder == nil {
		return LexicalSimilarity{}
	}

	return NewEmbeddingSimilarity(embedder)
}

// Cosine returns the cosine similarity of a and b clamped to [0, 1]. Two zero
// vectors are identical; a zero vector and a non-zero one share nothing.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64

	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	switch {
	case normA == 0 && normB == 0:
		return 1, nil
	case normA == 0 || normB == 0:
		return 0, nil
	}

	return Clamp(dot / (math.Sqrt(normA) * math.Sqrt(normB))), nil
}

// SemanticDelta returns 1 - similarity(before, after) over the workflows' text.
func SemanticDelta(ctx context.Context, sim Similarity, before, after *models.Workflow) (float64, error) {
	similarity, err := sim.Similarity(ctx, WorkflowText(before), WorkflowText(after))
	if err != nil {
		return 0, err
	}

	return Clamp(1 - similarity), nil
}
