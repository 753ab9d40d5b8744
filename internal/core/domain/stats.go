package domain

import "time"

// IndexStats are aggregate statistics about a persisted index, computed
// from the manifest and store metadata rather than re-scanning the
// corpus.
type IndexStats struct {
	// Documents is the number of indexed source files.
	Documents int

	// Chunks is the number of stored chunks.
	Chunks int

	// ContentBytes is the total extracted text size.
	ContentBytes int64

	// StorageBytes is the on-disk size of the persist directory.
	StorageBytes int64

	// Provider and Model identify the embedding backend.
	Provider string
	Model    string

	// Dimensions is the embedding vector size.
	Dimensions int

	// Chunking are the build-time chunk parameters.
	Chunking ChunkParams

	// BuiltAt is when the index build completed.
	BuiltAt time.Time
}

// QueryOptions configure one ask operation.
type QueryOptions struct {
	// TopK is the retrieval depth. Zero means the configured default.
	TopK int

	// Mode is the synthesis mode. Empty means the configured default.
	Mode ResponseMode
}
