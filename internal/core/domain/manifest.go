package domain

import "time"

// ManifestVersion is the current manifest schema version.
const ManifestVersion = 1

// ChunkParams are the chunking parameters an index was built with.
type ChunkParams struct {
	// Size is the maximum tokens per chunk.
	Size int `json:"chunk_size"`

	// Overlap is the number of tokens consecutive chunks share.
	// Invariant: Size > Overlap >= 0.
	Overlap int `json:"chunk_overlap"`
}

// Valid returns nil if the parameters satisfy Size > Overlap >= 0.
func (p ChunkParams) Valid() bool {
	return p.Size > p.Overlap && p.Overlap >= 0
}

// ManifestFile records one indexed source file.
type ManifestFile struct {
	// Path is the corpus-relative file path.
	Path string `json:"path"`

	// ModTime is the file modification time at index build.
	ModTime time.Time `json:"mtime"`

	// Size is the file size in bytes at index build.
	Size int64 `json:"size"`
}

// Manifest is the persisted metadata describing how an index was built.
// The index manager owns it exclusively: written atomically on a
// successful build, read-only afterwards until the next build.
type Manifest struct {
	// Version is the manifest schema version.
	Version int `json:"version"`

	// Provider identifies the embedding provider the index was built with.
	Provider string `json:"embedding_provider"`

	// Model is the embedding model name.
	Model string `json:"embedding_model"`

	// Dimensions is the embedding vector size. An index is only
	// queryable with vectors of this dimension.
	Dimensions int `json:"dimensions"`

	// Chunking are the chunk parameters used at build time.
	Chunking ChunkParams `json:"chunking"`

	// Files is the set of indexed source files, sorted by path.
	Files []ManifestFile `json:"files"`

	// TotalChunks is the number of chunks in the index.
	TotalChunks int `json:"total_chunks"`

	// TotalContentBytes is the total extracted text size across all chunks.
	TotalContentBytes int64 `json:"total_content_bytes"`

	// BuiltAt is when the build completed.
	BuiltAt time.Time `json:"built_at"`
}

// Matches reports whether an existing index built per this manifest can
// be reused for the given provider identity, chunk parameters and
// current corpus scan. The comparison is exact: any added, removed,
// resized or touched file forces a rebuild.
func (m *Manifest) Matches(provider, model string, dimensions int, params ChunkParams, files []SourceFile) bool {
	if m.Version != ManifestVersion {
		return false
	}
	if m.Provider != provider || m.Model != model || m.Dimensions != dimensions {
		return false
	}
	if m.Chunking != params {
		return false
	}
	if len(m.Files) != len(files) {
		return false
	}
	// Both sides are sorted by path.
	for i, f := range files {
		mf := m.Files[i]
		if mf.Path != f.Path || mf.Size != f.Size || !mf.ModTime.Equal(f.ModTime) {
			return false
		}
	}
	return true
}
