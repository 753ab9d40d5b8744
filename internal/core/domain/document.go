package domain

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// SourceFile identifies one document file in the corpus.
// Path, modification time and size together form the identity used
// by the manifest to detect corpus changes between builds.
type SourceFile struct {
	// Path is the file path relative to the corpus root.
	Path string

	// ModTime is the file's last modification time.
	ModTime time.Time

	// Size is the file size in bytes.
	Size int64
}

// Page is one page of extracted text from a source file.
// Pages are immutable once read.
type Page struct {
	// File is the source file this page belongs to.
	File SourceFile

	// Number is the 1-based page number.
	Number int

	// Text is the raw extracted text.
	Text string
}

// Chunk is a bounded, overlapping segment of page text.
// It is the unit of embedding and retrieval. Chunks are created during
// an index build, never mutated afterwards, and superseded on rebuild.
type Chunk struct {
	// ID uniquely identifies the chunk. It is derived from the source
	// path, page number and token offset, so identical inputs always
	// produce identical IDs across rebuilds.
	ID string

	// SourceFile is the corpus-relative path of the originating file.
	SourceFile string

	// PageNumber is the 1-based page the chunk was cut from.
	PageNumber int

	// Text is the chunk content.
	Text string

	// TokenCount is the number of tokens in Text.
	// Invariant: TokenCount <= the chunk size the index was built with.
	TokenCount int
}

// ChunkID derives the canonical chunk identifier for a source file,
// page and token offset within the page.
func ChunkID(sourceFile string, pageNumber, tokenOffset int) string {
	return fmt.Sprintf("%s#p%d.%d", sourceFile, pageNumber, tokenOffset)
}

// RetrievedChunk is a chunk returned by similarity search,
// with its normalised score. Ephemeral, produced per query.
type RetrievedChunk struct {
	// Chunk is the matched chunk.
	Chunk Chunk

	// Score is the cosine similarity mapped into [0, 1].
	Score float64
}

// Preview returns at most n bytes of the chunk text with an ellipsis,
// suitable for citation listings. The cut never splits a multi-byte
// rune.
func (r RetrievedChunk) Preview(n int) string {
	text := r.Chunk.Text
	if len(text) <= n {
		return text
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}

// AnswerStatus distinguishes a synthesized answer from a deliberate
// "nothing relevant found" outcome. An empty answer text is only valid
// together with AnswerNoContext or response mode "no_text"; failures
// are reported as errors, never as empty answers.
type AnswerStatus string

// Answer statuses.
const (
	// AnswerOK means the answer was synthesized from retrieved context.
	AnswerOK AnswerStatus = "ok"

	// AnswerNoContext means retrieval found no relevant content and
	// no synthesis was attempted.
	AnswerNoContext AnswerStatus = "no_context"
)

// Answer is the result of one query: the synthesized text plus the
// retrieved chunks that actually contributed to it. Not persisted by
// the core; callers may record it.
type Answer struct {
	// Text is the synthesized answer. Empty for no_text mode and for
	// AnswerNoContext results.
	Text string

	// Status reports whether context was found.
	Status AnswerStatus

	// Citations are the retrieved chunks the model referenced, in
	// retrieval order. Always a subsequence of the retrieval result.
	Citations []RetrievedChunk

	// Latency is the wall-clock duration of retrieval plus synthesis.
	Latency time.Duration
}
