// Package fs reads corpus documents from the local filesystem.
//
// PDF text extraction shells out to pdftotext through the
// CommandRunner port; plain text and markdown files are read directly
// as single-page documents.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/veridian-labs/docquery/internal/core/domain"
	"github.com/veridian-labs/docquery/internal/core/ports/driven"
)

// Ensure Source implements the interface.
var _ driven.DocumentSource = (*Source)(nil)

// supportedExtensions are the file types eligible for indexing,
// lowercased.
var supportedExtensions = map[string]bool{
	".pdf": true,
	".txt": true,
	".md":  true,
}

// Source scans a corpus root directory for supported documents.
type Source struct {
	root   string
	runner driven.CommandRunner
}

// New creates a filesystem document source rooted at root.
func New(root string, runner driven.CommandRunner) *Source {
	return &Source{root: root, runner: runner}
}

// List scans the corpus root recursively and returns all eligible
// source files sorted by corpus-relative path. Hidden directories are
// skipped.
func (s *Source) List(ctx context.Context) ([]domain.SourceFile, error) {
	info, err := os.Stat(s.root)
	if err != nil {
		return nil, fmt.Errorf("%w: corpus root %s", domain.ErrNotFound, s.root)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: corpus root %s is not a directory", domain.ErrInvalidInput, s.root)
	}

	var files []domain.SourceFile
	err = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != s.root {
				return filepath.SkipDir
			}
			return nil
		}
		if !supportedExtensions[strings.ToLower(filepath.Ext(d.Name()))] {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		files = append(files, domain.SourceFile{
			Path:    filepath.ToSlash(rel),
			ModTime: fi.ModTime(),
			Size:    fi.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Read extracts per-page text from one source file. PDFs are split on
// the form feeds pdftotext emits between pages; text and markdown
// files become a single page.
func (s *Source) Read(ctx context.Context, file domain.SourceFile) ([]domain.Page, error) {
	absPath := filepath.Join(s.root, filepath.FromSlash(file.Path))

	switch strings.ToLower(filepath.Ext(file.Path)) {
	case ".pdf":
		return s.readPDF(ctx, file, absPath)
	case ".txt", ".md":
		return s.readPlain(file, absPath)
	default:
		return nil, fmt.Errorf("%w: unsupported file type %s", domain.ErrInvalidInput, file.Path)
	}
}

// readPDF extracts PDF text with pdftotext, one page per form feed.
func (s *Source) readPDF(ctx context.Context, file domain.SourceFile, absPath string) ([]domain.Page, error) {
	output, err := s.runner.Run(ctx, "pdftotext", "-enc", "UTF-8", absPath, "-")
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", file.Path, err)
	}

	// pdftotext terminates every page with \f, so the final element of
	// the split is an empty trailer.
	raw := strings.Split(string(output), "\f")
	if len(raw) > 1 && strings.TrimSpace(raw[len(raw)-1]) == "" {
		raw = raw[:len(raw)-1]
	}

	pages := make([]domain.Page, len(raw))
	for i, text := range raw {
		pages[i] = domain.Page{File: file, Number: i + 1, Text: text}
	}
	return pages, nil
}

// readPlain reads a text or markdown file as a single page.
func (s *Source) readPlain(file domain.SourceFile, absPath string) ([]domain.Page, error) {
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file.Path, err)
	}
	return []domain.Page{{File: file, Number: 1, Text: string(data)}}, nil
}

// ExecRunner executes commands with os/exec.
type ExecRunner struct{}

// NewExecRunner creates a command runner backed by os/exec.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes the command and returns its stdout. Stderr is folded
// into the error on failure.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	output, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if msg := strings.TrimSpace(string(exitErr.Stderr)); msg != "" {
				return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
			}
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return output, nil
}
