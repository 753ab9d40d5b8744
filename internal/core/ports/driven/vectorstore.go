package driven

import (
	"context"

	"github.com/veridian-labs/docquery/internal/core/domain"
)

// VectorStore persists chunk embeddings and answers similarity queries.
//
// Inserts happen only during an index build; Search is strictly
// read-only and never mutates on-disk or in-memory state, so concurrent
// queries are safe.
type VectorStore interface {
	// Insert stores chunks with their embeddings. Each vector must
	// match the store's dimension; chunks[i] pairs with vectors[i].
	Insert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error

	// Search returns the topK chunks closest to the query vector,
	// ordered by descending score with ties broken by insertion order.
	// topK larger than the store size is clamped, never an error.
	// A query vector of the wrong dimension fails with
	// domain.ErrDimensionMismatch.
	Search(ctx context.Context, vector []float32, topK int) ([]domain.RetrievedChunk, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// Dimensions returns the vector size the store was created with.
	Dimensions() int

	// Close flushes and releases resources.
	Close() error
}

// VectorStoreProvider creates and opens persisted vector stores.
// The index manager uses it to build into a fresh directory and to
// reopen an existing index for querying.
type VectorStoreProvider interface {
	// Create initialises an empty store in dir for the given dimension.
	// dir must not already contain a store.
	Create(ctx context.Context, dir string, dimensions int) (VectorStore, error)

	// Open loads an existing store from dir.
	// Fails with domain.ErrPersistence if dir holds no valid store.
	Open(ctx context.Context, dir string) (VectorStore, error)
}
