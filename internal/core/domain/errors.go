package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfiguration indicates bad or missing setup (credentials,
	// paths, chunk parameters). Fatal; never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrNoDocuments indicates the corpus root contains no eligible documents.
	ErrNoDocuments = errors.New("no eligible documents")

	// ErrPersistence indicates corrupt or ambiguous on-disk index state.
	// Fatal; never auto-repaired or silently overwritten.
	ErrPersistence = errors.New("persistence error")

	// ErrEmbedding indicates the embedding backend failed.
	// Transient conditions are retried by the adapter before this surfaces.
	ErrEmbedding = errors.New("embedding error")

	// ErrSynthesis indicates the LLM backend was unreachable or returned
	// malformed output. Never swallowed into an empty answer.
	ErrSynthesis = errors.New("synthesis error")

	// ErrDimensionMismatch indicates a vector's dimension does not match
	// the index. Querying an index with embeddings from a different
	// provider or model is a hard failure, not a silent wrong answer.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrRateLimited indicates the external API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrBuildInProgress indicates another process holds the build lock
	// for the same persist directory.
	ErrBuildInProgress = errors.New("index build already in progress")
)
