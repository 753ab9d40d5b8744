package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian-labs/docquery/internal/core/domain"
)

func seededStore(t *testing.T, embedder *mockEmbedder, texts ...string) *memStore {
	t.Helper()
	store := &memStore{dims: embedder.dims}
	chunks := make([]domain.Chunk, len(texts))
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		chunks[i] = domain.Chunk{
			ID:         domain.ChunkID("doc.txt", 1, i),
			SourceFile: "doc.txt",
			PageNumber: 1,
			Text:       text,
		}
		vectors[i] = embedder.vector(text)
	}
	require.NoError(t, store.Insert(context.Background(), chunks, vectors))
	return store
}

func TestRetrieverReturnsRankedChunks(t *testing.T) {
	embedder := newMockEmbedder(8)
	store := seededStore(t, embedder,
		"restart the ingest service",
		"configure backup retention",
		"rotate the signing keys",
	)
	r := NewRetriever(embedder, store)

	hits, err := r.Retrieve(context.Background(), "restart the ingest service", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	// The query embeds identically to the first chunk, so it must rank
	// first with a perfect normalised score.
	assert.Equal(t, "restart the ingest service", hits[0].Chunk.Text)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)
}

func TestRetrieverRejectsEmptyQuery(t *testing.T) {
	embedder := newMockEmbedder(8)
	r := NewRetriever(embedder, seededStore(t, embedder, "text"))

	for _, query := range []string{"", "   ", "\n\t"} {
		_, err := r.Retrieve(context.Background(), query, 3)
		require.ErrorIs(t, err, domain.ErrInvalidInput)
	}
	assert.Zero(t, embedder.embedCalls)
}

func TestRetrieverDefaultsTopK(t *testing.T) {
	embedder := newMockEmbedder(8)
	texts := make([]string, 10)
	for i := range texts {
		texts[i] = "passage number " + string(rune('a'+i))
	}
	r := NewRetriever(embedder, seededStore(t, embedder, texts...))

	hits, err := r.Retrieve(context.Background(), "passage", 0)
	require.NoError(t, err)
	assert.Len(t, hits, domain.DefaultTopK)
}

func TestRetrieverEmptyIndex(t *testing.T) {
	embedder := newMockEmbedder(8)
	r := NewRetriever(embedder, &memStore{dims: 8})

	hits, err := r.Retrieve(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
