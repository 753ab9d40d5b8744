package services

import (
	"strings"

	"github.com/veridian-labs/docquery/internal/core/domain"
)

// ChunkPage splits one page of text into token-bounded chunks.
//
// Tokens are whitespace-delimited words. Consecutive chunks share
// exactly params.Overlap tokens; the final chunk may be shorter than
// params.Size. A page with fewer tokens than params.Size yields exactly
// one chunk; a blank page yields none.
//
// The split is deterministic: identical text and parameters always
// produce the same chunk sequence with the same IDs, which is what
// makes manifest-based reuse detection meaningful across rebuilds.
func ChunkPage(page domain.Page, params domain.ChunkParams) []domain.Chunk {
	tokens := strings.Fields(page.Text)
	if len(tokens) == 0 {
		return nil
	}

	step := params.Size - params.Overlap
	estimated := (len(tokens) / step) + 1
	chunks := make([]domain.Chunk, 0, estimated)

	for start := 0; start < len(tokens); start += step {
		end := start + params.Size
		if end > len(tokens) {
			end = len(tokens)
		}

		chunks = append(chunks, domain.Chunk{
			ID:         domain.ChunkID(page.File.Path, page.Number, start),
			SourceFile: page.File.Path,
			PageNumber: page.Number,
			Text:       strings.Join(tokens[start:end], " "),
			TokenCount: end - start,
		})

		if end == len(tokens) {
			break
		}
	}

	return chunks
}
