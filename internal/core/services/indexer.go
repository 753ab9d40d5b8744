package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/veridian-labs/docquery/internal/core/domain"
	"github.com/veridian-labs/docquery/internal/core/ports/driven"
	"github.com/veridian-labs/docquery/internal/core/ports/driving"
	"github.com/veridian-labs/docquery/internal/logger"
)

// Ensure Indexer implements the interface.
var _ driving.IndexService = (*Indexer)(nil)

// ManifestFileName is the manifest file inside the persist directory.
const ManifestFileName = "manifest.json"

// embedBatchSize is the number of chunk texts sent per embedding call.
const embedBatchSize = 32

// Indexer owns the persisted index lifecycle: it decides between
// loading an existing index and rebuilding from the corpus, and it
// owns the manifest exclusively.
type Indexer struct {
	docsDir    string
	persistDir string
	chunking   domain.ChunkParams

	source   driven.DocumentSource
	embedder driven.EmbeddingService
	stores   driven.VectorStoreProvider

	store    driven.VectorStore
	manifest *domain.Manifest
}

// NewIndexer creates an index manager for one corpus and persist
// directory pair.
func NewIndexer(
	cfg *domain.Config,
	source driven.DocumentSource,
	embedder driven.EmbeddingService,
	stores driven.VectorStoreProvider,
) *Indexer {
	return &Indexer{
		docsDir:    cfg.DocsDir,
		persistDir: cfg.StorageDir,
		chunking:   cfg.Chunking,
		source:     source,
		embedder:   embedder,
		stores:     stores,
	}
}

// Store returns the open vector store after a successful EnsureIndex.
func (ix *Indexer) Store() driven.VectorStore {
	return ix.store
}

// Manifest returns the manifest in effect after a successful EnsureIndex.
func (ix *Indexer) Manifest() *domain.Manifest {
	return ix.manifest
}

// EnsureIndex loads the persisted index when the manifest exactly
// matches the current corpus scan and chunk parameters, or performs a
// full rebuild otherwise.
//
// Rebuilds go into a sibling temporary directory that is atomically
// swapped in after the manifest is written, so a crash mid-build never
// leaves a manifest pointing at a partial index. Only one build per
// persist directory runs at a time, enforced by an advisory file lock.
func (ix *Indexer) EnsureIndex(ctx context.Context, force bool) (*domain.Manifest, bool, error) {
	logger.Section("Ensure Index")

	files, err := ix.source.List(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("scan corpus %s: %w", ix.docsDir, err)
	}
	if len(files) == 0 {
		return nil, false, fmt.Errorf("%w found under %s", domain.ErrNoDocuments, ix.docsDir)
	}
	logger.Info("Corpus scan: %d eligible documents", len(files))

	if !force {
		manifest, err := readManifest(ix.persistDir)
		switch {
		case err == nil:
			if manifest.Matches(ix.embedder.ProviderID(), ix.embedder.ModelName(),
				ix.embedder.Dimensions(), ix.chunking, files) {
				logger.Info("Manifest matches, reusing persisted index")
				return manifest, false, ix.openExisting(ctx, manifest)
			}
			logger.Info("Manifest mismatch, rebuilding")
		case errors.Is(err, fs.ErrNotExist):
			// No prior index. Refuse to build over a directory that
			// holds unrecognised content.
			if err := ensureDirUsable(ix.persistDir); err != nil {
				return nil, false, err
			}
		default:
			return nil, false, fmt.Errorf("%w: unreadable manifest in %s: %v",
				domain.ErrPersistence, ix.persistDir, err)
		}
	}

	manifest, err := ix.rebuild(ctx, files)
	if err != nil {
		return nil, false, err
	}
	return manifest, true, nil
}

// openExisting opens the persisted store and records it as current.
func (ix *Indexer) openExisting(ctx context.Context, manifest *domain.Manifest) error {
	store, err := ix.stores.Open(ctx, ix.persistDir)
	if err != nil {
		return fmt.Errorf("open persisted index: %w", err)
	}
	ix.setCurrent(store, manifest)
	return nil
}

// rebuild chunks, embeds and stores the whole corpus, then swaps the
// result into place.
func (ix *Indexer) rebuild(ctx context.Context, files []domain.SourceFile) (*domain.Manifest, error) {
	lock := flock.New(ix.persistDir + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire build lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w for %s", domain.ErrBuildInProgress, ix.persistDir)
	}
	defer lock.Unlock() //nolint:errcheck // best-effort release

	buildDir := ix.persistDir + ".build"
	if err := os.RemoveAll(buildDir); err != nil {
		return nil, fmt.Errorf("clear build directory: %w", err)
	}
	if err := os.MkdirAll(buildDir, 0o700); err != nil {
		return nil, fmt.Errorf("create build directory: %w", err)
	}

	store, err := ix.stores.Create(ctx, buildDir, ix.embedder.Dimensions())
	if err != nil {
		return nil, fmt.Errorf("create vector store: %w", err)
	}

	totalChunks := 0
	var contentBytes int64

	logger.Section("Index Build")
	for _, file := range files {
		pages, err := ix.source.Read(ctx, file)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("read %s: %w", file.Path, err)
		}

		var chunks []domain.Chunk
		for _, page := range pages {
			chunks = append(chunks, ChunkPage(page, ix.chunking)...)
		}
		logger.Debug("%s: %d pages, %d chunks", file.Path, len(pages), len(chunks))

		if err := ix.embedAndInsert(ctx, store, chunks); err != nil {
			store.Close()
			return nil, fmt.Errorf("index %s: %w", file.Path, err)
		}

		totalChunks += len(chunks)
		for _, c := range chunks {
			contentBytes += int64(len(c.Text))
		}
	}
	if totalChunks == 0 {
		logger.Warn("Corpus contained no extractable text")
	}

	if err := store.Close(); err != nil {
		return nil, fmt.Errorf("flush vector store: %w", err)
	}

	mfs := make([]domain.ManifestFile, len(files))
	for i, f := range files {
		mfs[i] = domain.ManifestFile{Path: f.Path, ModTime: f.ModTime, Size: f.Size}
	}
	manifest := &domain.Manifest{
		Version:           domain.ManifestVersion,
		Provider:          ix.embedder.ProviderID(),
		Model:             ix.embedder.ModelName(),
		Dimensions:        ix.embedder.Dimensions(),
		Chunking:          ix.chunking,
		Files:             mfs,
		TotalChunks:       totalChunks,
		TotalContentBytes: contentBytes,
		BuiltAt:           time.Now(),
	}
	if err := writeManifest(buildDir, manifest); err != nil {
		return nil, err
	}

	if err := ix.swapIn(buildDir); err != nil {
		return nil, err
	}
	logger.Info("Index built: %d documents, %d chunks", len(files), totalChunks)

	opened, err := ix.stores.Open(ctx, ix.persistDir)
	if err != nil {
		return nil, fmt.Errorf("reopen built index: %w", err)
	}
	ix.setCurrent(opened, manifest)
	return manifest, nil
}

// embedAndInsert embeds chunk texts in batches and inserts the pairs.
func (ix *Indexer) embedAndInsert(ctx context.Context, store driven.VectorStore, chunks []domain.Chunk) error {
	for start := 0; start < len(chunks); start += embedBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := ix.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch: %w", err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("%w: got %d vectors for %d texts",
				domain.ErrEmbedding, len(vectors), len(batch))
		}

		if err := store.Insert(ctx, batch, vectors); err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}
	}
	return nil
}

// swapIn atomically replaces the persist directory with the build
// directory. The old index is removed only after the new one is fully
// written, including its manifest.
func (ix *Indexer) swapIn(buildDir string) error {
	if ix.store != nil {
		ix.store.Close()
		ix.store = nil
	}
	if err := os.RemoveAll(ix.persistDir); err != nil {
		return fmt.Errorf("remove previous index: %w", err)
	}
	if err := os.Rename(buildDir, ix.persistDir); err != nil {
		return fmt.Errorf("swap in built index: %w", err)
	}
	return nil
}

func (ix *Indexer) setCurrent(store driven.VectorStore, manifest *domain.Manifest) {
	if ix.store != nil && ix.store != store {
		ix.store.Close()
	}
	ix.store = store
	ix.manifest = manifest
}

// Stats reports aggregate index statistics from the manifest and the
// persist directory, without re-reading raw corpus files.
func (ix *Indexer) Stats(_ context.Context) (*domain.IndexStats, error) {
	manifest := ix.manifest
	if manifest == nil {
		m, err := readManifest(ix.persistDir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: no index at %s (run 'docquery index' first)",
					domain.ErrNotFound, ix.persistDir)
			}
			return nil, fmt.Errorf("%w: unreadable manifest in %s: %v",
				domain.ErrPersistence, ix.persistDir, err)
		}
		manifest = m
	}

	storageBytes, err := dirSize(ix.persistDir)
	if err != nil {
		return nil, fmt.Errorf("measure storage: %w", err)
	}

	return &domain.IndexStats{
		Documents:    len(manifest.Files),
		Chunks:       manifest.TotalChunks,
		ContentBytes: manifest.TotalContentBytes,
		StorageBytes: storageBytes,
		Provider:     manifest.Provider,
		Model:        manifest.Model,
		Dimensions:   manifest.Dimensions,
		Chunking:     manifest.Chunking,
		BuiltAt:      manifest.BuiltAt,
	}, nil
}

// Close releases the open store, if any.
func (ix *Indexer) Close() error {
	if ix.store == nil {
		return nil
	}
	err := ix.store.Close()
	ix.store = nil
	return err
}

// ensureDirUsable verifies that building into dir will not destroy
// unrecognised content. A missing or empty directory is fine; anything
// else without a readable manifest is ambiguous and refused.
func ensureDirUsable(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("inspect %s: %w", dir, err)
	}
	if len(entries) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s contains %d entries but no recognisable index manifest; refusing to overwrite",
		domain.ErrPersistence, dir, len(entries))
}

// readManifest loads the manifest from dir.
// Returns fs.ErrNotExist when no manifest file is present.
func readManifest(dir string) (*domain.Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFileName))
	if err != nil {
		return nil, err
	}
	var m domain.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

// writeManifest writes the manifest into dir atomically
// (write-to-temp-then-rename).
func writeManifest(dir string, m *domain.Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	tmp := filepath.Join(dir, ManifestFileName+".tmp")
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, ManifestFileName)); err != nil {
		return fmt.Errorf("commit manifest: %w", err)
	}
	return nil
}

// dirSize sums the file sizes under dir.
func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	return total, err
}
