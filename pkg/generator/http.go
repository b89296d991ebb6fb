// Package generator provides candidate generators backed by external services.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukex/refiner/pkg/models"
	"github.com/dukex/refiner/pkg/refinement"
)

const (
	DefaultTimeout = 2 * time.Minute

	maxResponseBytes = 10 << 20
)

var ErrUnexpectedStatus = errors.New("unexpected status from generator")

// Request is the body posted to the generator service.
type Request struct {
	Workflow   *models.Workflow         `json:"workflow"`
	Evaluation *models.EvaluationResult `json:"evaluation"`
}

// Response is the body expected back from the generator service.
type Response struct {
	Workflow *models.Workflow `json:"workflow"`
	Decision string           `json:"decision"`
}

type Option func(*HTTPGenerator)

func WithHTTPClient(client *http.Client) Option {
	return func(g *HTTPGenerator) {
		if client != nil {
			g.client = client
		}
	}
}

func WithHeader(key, value string) Option {
	return func(g *HTTPGenerator) {
		g.headers[key] = value
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *HTTPGenerator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// HTTPGenerator asks a remote service for a candidate: POST {url} with the baseline
// and its evaluation, answered by a candidate workflow and a decision signal. Calls
// are never retried.
type HTTPGenerator struct {
	url     string
	client  *http.Client
	headers map[string]string
	logger  *slog.Logger
}

var _ refinement.Generator = (*HTTPGenerator)(nil)

func NewHTTPGenerator(url string, opts ...Option) *HTTPGenerator {
	g := &HTTPGenerator{
		url:     strings.TrimRight(url, "/"),
		client:  &http.Client{Timeout: DefaultTimeout},
		headers: make(map[string]string),
		logger:  slog.Default().With("module", "http_generator"),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

func (g *HTTPGenerator) Propose(
	ctx context.Context,
	baseline *models.Workflow,
	evaluation *models.EvaluationResult,
) (*refinement.Proposal, error) {
	body, err := json.Marshal(Request{Workflow: baseline, Evaluation: evaluation})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	for key, value := range g.headers {
		req.Header.Set(key, value)
	}

	started := time.Now()

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	g.logger.DebugContext(ctx, "Generator responded",
		"status_code", resp.StatusCode,
		"body_length", len(payload),
		"duration", time.Since(started),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %d: %s", ErrUnexpectedStatus, resp.StatusCode, snippet(payload))
	}

	var response Response
	if err := json.Unmarshal(payload, &response); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}

	if response.Workflow == nil {
		return nil, errors.New("generator response has no workflow")
	}

	return &refinement.Proposal{Workflow: response.Workflow, Signal: response.Decision}, nil
}

func snippet(payload []byte) string {
	const limit = 256

	text := strings.TrimSpace(string(payload))
	if len(text) > limit {
		return text[:limit] + "..."
	}

	return text
}
