package driving

import (
	"context"

	"github.com/veridian-labs/docquery/internal/core/domain"
)

// IndexService manages the persisted index lifecycle.
type IndexService interface {
	// EnsureIndex loads the persisted index when the manifest matches
	// the current corpus scan, or rebuilds it otherwise. force skips
	// the reuse check. Returns the manifest in effect and whether a
	// rebuild was performed.
	EnsureIndex(ctx context.Context, force bool) (*domain.Manifest, bool, error)

	// Stats reports aggregate index statistics from the manifest and
	// store, without re-reading raw corpus files.
	Stats(ctx context.Context) (*domain.IndexStats, error)
}
