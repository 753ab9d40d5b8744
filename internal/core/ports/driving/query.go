package driving

import (
	"context"

	"github.com/veridian-labs/docquery/internal/core/domain"
)

// QueryService answers questions against the indexed corpus.
type QueryService interface {
	// Ask retrieves supporting chunks for the question and synthesizes
	// a grounded answer with citations. The chunks that grounded the
	// answer are returned alongside it, best match first.
	Ask(ctx context.Context, question string, opts domain.QueryOptions) (*domain.Answer, []domain.RetrievedChunk, error)
}
