// Package sqlite provides a persisted vector store backed by SQLite.
//
// Chunk text and embeddings live in a single database file inside the
// index directory. Embeddings are additionally cached in memory at
// open time, so similarity search is a flat in-memory scan and the
// database is only touched by inserts.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/veridian-labs/docquery/internal/adapters/driven/vectorstore/sqlite/migrations"
	"github.com/veridian-labs/docquery/internal/core/domain"
	"github.com/veridian-labs/docquery/internal/core/ports/driven"
)

// Ensure interfaces are implemented.
var (
	_ driven.VectorStore         = (*Store)(nil)
	_ driven.VectorStoreProvider = (*Provider)(nil)
)

// DBFileName is the database file inside the index directory.
const DBFileName = "vectors.db"

// metaDimensionsKey is the index_meta row holding the vector size.
const metaDimensionsKey = "dimensions"

// Provider creates and opens SQLite vector stores.
type Provider struct{}

// NewProvider creates a vector store provider.
func NewProvider() *Provider {
	return &Provider{}
}

// Create initialises an empty store in dir for the given dimension.
func (p *Provider) Create(ctx context.Context, dir string, dimensions int) (driven.VectorStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive, got %d", domain.ErrInvalidInput, dimensions)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(dir, DBFileName)
	if _, err := os.Stat(dbPath); err == nil {
		return nil, fmt.Errorf("%w: %s already contains a vector store", domain.ErrPersistence, dir)
	}

	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}
	if err := migrate(db, migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	if _, err := db.ExecContext(ctx,
		"INSERT INTO index_meta (key, value) VALUES (?, ?)",
		metaDimensionsKey, strconv.Itoa(dimensions),
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("recording dimensions: %w", err)
	}

	return &Store{db: db, path: dbPath, dims: dimensions}, nil
}

// Open loads an existing store from dir and caches all embeddings in
// memory for search.
func (p *Provider) Open(ctx context.Context, dir string) (driven.VectorStore, error) {
	dbPath := filepath.Join(dir, DBFileName)
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("%w: no vector store in %s", domain.ErrPersistence, dir)
	}

	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}
	if err := migrate(db, migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	var dimsValue string
	err = db.QueryRowContext(ctx,
		"SELECT value FROM index_meta WHERE key = ?", metaDimensionsKey,
	).Scan(&dimsValue)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: store in %s has no dimension record: %v", domain.ErrPersistence, dir, err)
	}
	dims, err := strconv.Atoi(dimsValue)
	if err != nil || dims <= 0 {
		db.Close()
		return nil, fmt.Errorf("%w: store in %s has invalid dimension %q", domain.ErrPersistence, dir, dimsValue)
	}

	s := &Store{db: db, path: dbPath, dims: dims}
	if err := s.loadAll(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// openDB opens the database with WAL mode for better concurrency.
func openDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// migrate applies embedded .up.sql files newer than the current
// schema version, in filename order.
func migrate(db *sql.DB, fsys embed.FS) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// Store is a SQLite-backed vector store with an in-memory search
// cache. Chunks keep their insertion order, which breaks score ties.
type Store struct {
	db   *sql.DB
	path string
	dims int

	mu      sync.RWMutex
	chunks  []domain.Chunk
	vectors [][]float32
}

// Insert stores chunks with their embeddings in one transaction and
// appends them to the search cache.
func (s *Store) Insert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks with %d vectors", domain.ErrInvalidInput, len(chunks), len(vectors))
	}
	for i, v := range vectors {
		if len(v) != s.dims {
			return fmt.Errorf("%w: vector %d has %d dimensions, store expects %d",
				domain.ErrDimensionMismatch, i, len(v), s.dims)
		}
	}
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, source_file, page_number, content, token_count, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, chunk := range chunks {
		blob := float32SliceToBytes(vectors[i])
		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.SourceFile, chunk.PageNumber,
			chunk.Text, chunk.TokenCount, blob); err != nil {
			return fmt.Errorf("saving chunk %s: %w", chunk.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.mu.Lock()
	s.chunks = append(s.chunks, chunks...)
	s.vectors = append(s.vectors, vectors...)
	s.mu.Unlock()
	return nil
}

// Search returns the topK closest chunks, scored by cosine similarity
// mapped into [0, 1]. Results are ordered by descending score with
// ties broken by insertion order; topK beyond the store size is
// clamped.
func (s *Store) Search(_ context.Context, vector []float32, topK int) ([]domain.RetrievedChunk, error) {
	if len(vector) != s.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrDimensionMismatch, len(vector), s.dims)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", domain.ErrInvalidInput, topK)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		idx   int
		score float64
	}
	all := make([]scored, len(s.vectors))
	for i, v := range s.vectors {
		all[i] = scored{idx: i, score: (cosineSimilarity(vector, v) + 1) / 2}
	}
	sort.SliceStable(all, func(a, b int) bool { return all[a].score > all[b].score })

	if topK > len(all) {
		topK = len(all)
	}
	results := make([]domain.RetrievedChunk, topK)
	for i := 0; i < topK; i++ {
		results[i] = domain.RetrievedChunk{
			Chunk: s.chunks[all[i].idx],
			Score: all[i].score,
		}
	}
	return results, nil
}

// Count returns the number of stored chunks.
func (s *Store) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

// Dimensions returns the vector size the store was created with.
func (s *Store) Dimensions() int {
	return s.dims
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// loadAll fills the search cache from the database in insertion order.
func (s *Store) loadAll(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_file, page_number, content, token_count, embedding
		FROM chunks ORDER BY seq
	`)
	if err != nil {
		return fmt.Errorf("loading chunks: %w", err)
	}
	defer rows.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	for rows.Next() {
		var chunk domain.Chunk
		var blob []byte
		if err := rows.Scan(&chunk.ID, &chunk.SourceFile, &chunk.PageNumber,
			&chunk.Text, &chunk.TokenCount, &blob); err != nil {
			return fmt.Errorf("scanning chunk: %w", err)
		}

		vector := bytesToFloat32Slice(blob)
		if len(vector) != s.dims {
			return fmt.Errorf("%w: chunk %s has %d dimensions, store expects %d",
				domain.ErrPersistence, chunk.ID, len(vector), s.dims)
		}
		s.chunks = append(s.chunks, chunk)
		s.vectors = append(s.vectors, vector)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating chunks: %w", err)
	}
	return nil
}

// cosineSimilarity computes the cosine of the angle between two
// vectors. Zero-norm vectors yield 0.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
