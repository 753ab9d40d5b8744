package driven

import "context"

// EmbeddingService generates vector embeddings from text.
//
// The dimension is fixed per service instance and recorded in the index
// manifest; an index built with one provider/model/dimension must never
// be queried with vectors from another.
//
// Implementations may include:
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Ollama (nomic-embed-text, all-minilm)
//
// Adapters own the retry policy for transient backend failures (rate
// limits, 5xx); what surfaces here is either a result or a final error
// wrapping domain.ErrEmbedding.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts efficiently.
	// The result has the same length and order as the input.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 384, 768, 1536).
	Dimensions() int

	// ProviderID returns the stable provider identifier recorded in
	// the manifest (e.g., "openai", "ollama").
	ProviderID() string

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight
	// test request. Used at startup before committing to a build.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
