package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/veridian-labs/docquery/internal/core/domain"
	"github.com/veridian-labs/docquery/internal/core/ports/driving"
	"github.com/veridian-labs/docquery/internal/logger"
)

var _ driving.QueryService = (*QueryEngine)(nil)

// QueryEngine runs the retrieve-then-synthesize pipeline for a single
// question.
type QueryEngine struct {
	retriever   *Retriever
	synthesizer *Synthesizer

	defaultTopK int
	defaultMode domain.ResponseMode
}

// NewQueryEngine wires a retriever and synthesizer with configured
// defaults for top-k and response mode.
func NewQueryEngine(retriever *Retriever, synthesizer *Synthesizer, cfg *domain.Config) *QueryEngine {
	return &QueryEngine{
		retriever:   retriever,
		synthesizer: synthesizer,
		defaultTopK: cfg.TopK,
		defaultMode: cfg.ResponseMode,
	}
}

// Ask answers the question from the indexed corpus. Zero values in
// opts fall back to the configured defaults. The returned answer
// carries the retrieved chunks that grounded it and the end-to-end
// latency.
func (q *QueryEngine) Ask(ctx context.Context, question string, opts domain.QueryOptions) (*domain.Answer, []domain.RetrievedChunk, error) {
	if strings.TrimSpace(question) == "" {
		return nil, nil, fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = q.defaultTopK
	}
	mode := opts.Mode
	if mode == "" {
		mode = q.defaultMode
	}
	if !mode.IsValid() {
		return nil, nil, fmt.Errorf("%w: unknown response mode %q", domain.ErrInvalidInput, mode)
	}

	start := time.Now()

	chunks, err := q.retriever.Retrieve(ctx, question, topK)
	if err != nil {
		return nil, nil, err
	}

	answer, err := q.synthesizer.Synthesize(ctx, question, chunks, mode)
	if err != nil {
		return nil, nil, err
	}
	answer.Latency = time.Since(start)

	logger.Debug("Answered in %s with %d source chunks (mode=%s)",
		answer.Latency.Round(time.Millisecond), len(chunks), mode)
	return answer, chunks, nil
}
