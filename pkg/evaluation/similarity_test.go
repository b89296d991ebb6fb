package evaluation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukex/refiner/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexicalSimilarity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sim := LexicalSimilarity{}

	identical, err := sim.Similarity(ctx, "Deploy the service", "deploy service")
	require.NoError(t, err)
	assert.Equal(t, 1.0, identical)

	disjoint, err := sim.Similarity(ctx, "deploy service", "write documentation")
	require.NoError(t, err)
	assert.Zero(t, disjoint)

	partial, err := sim.Similarity(ctx, "deploy service now", "deploy service later")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, partial, 1e-12)
}

func TestSemanticDelta_Lexical(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	before := onboardingWorkflow()

	delta, err := SemanticDelta(ctx, NewSimilarity(nil), before, before.Clone())
	require.NoError(t, err)
	assert.Zero(t, delta)

	after := before.Clone()
	after.Phases[0].AutomatedBehavior = "Completely different automated provisioning narrative"

	delta, err = SemanticDelta(ctx, NewSimilarity(nil), before, after)
	require.NoError(t, err)
	assert.Greater(t, delta, 0.0)
	assert.LessOrEqual(t, delta, 1.0)
}

func TestCosine(t *testing.T) {
	t.Parallel()

	same, err := Cosine([]float32{1, 2, 3}, []float32{2, 4, 6})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, same, 1e-9)

	orthogonal, err := Cosine([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.Zero(t, orthogonal)

	opposite, err := Cosine([]float32{1, 0}, []float32{-1, 0})
	require.NoError(t, err)
	assert.Zero(t, opposite)

	zeros, err := Cosine([]float32{0, 0}, []float32{0, 0})
	require.NoError(t, err)
	assert.Equal(t, 1.0, zeros)

	_, err = Cosine([]float32{1}, []float32{1, 2})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestHTTPEmbedder_EmbeddingSimilarity(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embedding", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		vector := []float32{1, 0}
		if strings.Contains(body["text"], "other") {
			vector = []float32{0, 1}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(vector)
	}))
	defer server.Close()

	sim := NewSimilarity(NewHTTPEmbedder(server.URL + "/"))
	assert.Equal(t, "embedding", sim.Name())

	value, err := sim.Similarity(context.Background(), "some text", "other text")
	require.NoError(t, err)
	assert.Zero(t, value)

	value, err = sim.Similarity(context.Background(), "some text", "more text")
	require.NoError(t, err)
	assert.Equal(t, 1.0, value)
}

func TestHTTPEmbedder_ErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := SemanticDelta(context.Background(), NewSimilarity(NewHTTPEmbedder(server.URL)),
		&models.Workflow{}, &models.Workflow{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status code 503")
}
