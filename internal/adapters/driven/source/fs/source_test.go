package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian-labs/docquery/internal/core/domain"
)

// mockRunner is a test double for CommandRunner.
type mockRunner struct {
	output   []byte
	err      error
	lastName string
	lastArgs []string
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	m.lastName = name
	m.lastArgs = args
	return m.output, m.err
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestListFiltersAndSorts(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "zeta.txt", "z")
	writeFile(t, root, "guides/ops.pdf", "%PDF")
	writeFile(t, root, "guides/readme.md", "# readme")
	writeFile(t, root, "guides/image.png", "binary")
	writeFile(t, root, "archive.ZIP", "binary")
	writeFile(t, root, ".hidden/secret.txt", "hidden")

	source := New(root, &mockRunner{})
	files, err := source.List(context.Background())
	require.NoError(t, err)

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	assert.Equal(t, []string{"guides/ops.pdf", "guides/readme.md", "zeta.txt"}, paths)

	for _, f := range files {
		assert.Positive(t, f.Size)
		assert.False(t, f.ModTime.IsZero())
	}
}

func TestListCaseInsensitiveExtensions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "UPPER.PDF", "%PDF")
	writeFile(t, root, "mixed.Txt", "text")

	files, err := New(root, &mockRunner{}).List(context.Background())
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestListMissingRoot(t *testing.T) {
	source := New(filepath.Join(t.TempDir(), "nope"), &mockRunner{})
	_, err := source.List(context.Background())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReadPDFSplitsPages(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "manual.pdf", "%PDF")
	runner := &mockRunner{output: []byte("page one text\fpage two text\fpage three\f")}
	source := New(root, runner)

	file := domain.SourceFile{Path: "manual.pdf"}
	pages, err := source.Read(context.Background(), file)
	require.NoError(t, err)

	assert.Equal(t, "pdftotext", runner.lastName)
	assert.Equal(t, []string{"-enc", "UTF-8", filepath.Join(root, "manual.pdf"), "-"}, runner.lastArgs)

	require.Len(t, pages, 3)
	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, "page one text", pages[0].Text)
	assert.Equal(t, 3, pages[2].Number)
	assert.Equal(t, "page three", pages[2].Text)
	assert.Equal(t, file, pages[0].File)
}

func TestReadPDFExtractionFailure(t *testing.T) {
	runner := &mockRunner{err: errors.New("pdftotext: command not found")}
	source := New(t.TempDir(), runner)

	_, err := source.Read(context.Background(), domain.SourceFile{Path: "broken.pdf"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.pdf")
}

func TestReadPlainTextSinglePage(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "notes/log.txt", "line one\nline two")
	source := New(root, &mockRunner{})

	pages, err := source.Read(context.Background(), domain.SourceFile{Path: "notes/log.txt"})
	require.NoError(t, err)

	require.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, "line one\nline two", pages[0].Text)
}

func TestReadMarkdownSinglePage(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "README.md", "# Title\n\nBody")
	source := New(root, &mockRunner{})

	pages, err := source.Read(context.Background(), domain.SourceFile{Path: "README.md"})
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "# Title\n\nBody", pages[0].Text)
}

func TestReadUnsupportedType(t *testing.T) {
	source := New(t.TempDir(), &mockRunner{})
	_, err := source.Read(context.Background(), domain.SourceFile{Path: "data.csv"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}
