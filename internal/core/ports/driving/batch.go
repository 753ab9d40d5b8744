package driving

import (
	"context"

	"github.com/veridian-labs/docquery/internal/core/domain"
)

// BatchService runs a sequence of prompts against the query service.
type BatchService interface {
	// Run processes the prompts with a bounded worker pool and returns
	// one record per prompt in input order, plus the run summary.
	// emit, when non-nil, receives each record in input order as soon
	// as it and all its predecessors are complete.
	//
	// A single prompt's failure is recorded with status "error" and the
	// run continues. Cancellation is cooperative: in-flight prompts
	// finish, pending ones are recorded as cancelled.
	Run(ctx context.Context, prompts []domain.BatchPrompt, emit func(domain.BatchRecord)) ([]domain.BatchRecord, domain.BatchSummary, error)
}
