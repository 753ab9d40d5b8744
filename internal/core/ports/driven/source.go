package driven

import (
	"context"

	"github.com/veridian-labs/docquery/internal/core/domain"
)

// DocumentSource enumerates and reads corpus documents.
type DocumentSource interface {
	// List scans the corpus root recursively and returns all eligible
	// source files sorted by corpus-relative path.
	List(ctx context.Context) ([]domain.SourceFile, error)

	// Read extracts per-page text from one source file.
	// Pages are returned in order; page numbers are 1-based.
	Read(ctx context.Context, file domain.SourceFile) ([]domain.Page, error)
}

// CommandRunner executes an external command and returns its stdout.
// It exists so text extractors that shell out (pdftotext) can be
// tested without the binary installed.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}
