package services

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"sync"

	"github.com/veridian-labs/docquery/internal/core/domain"
	"github.com/veridian-labs/docquery/internal/core/ports/driven"
)

// mockEmbedder produces deterministic vectors derived from the text,
// so identical inputs always embed identically across runs.
type mockEmbedder struct {
	mu         sync.Mutex
	dims       int
	provider   string
	model      string
	embedCalls int
	batchCalls int
	failWith   error
}

func newMockEmbedder(dims int) *mockEmbedder {
	return &mockEmbedder{dims: dims, provider: "mock", model: "mock-embed"}
}

func (m *mockEmbedder) vector(text string) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()
	v := make([]float32, m.dims)
	for i := range v {
		seed = seed*1664525 + 1013904223
		v[i] = float32(seed%1000)/1000 - 0.5
	}
	return v
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedCalls++
	if m.failWith != nil {
		return nil, m.failWith
	}
	return m.vector(text), nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchCalls++
	if m.failWith != nil {
		return nil, m.failWith
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vector(t)
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int            { return m.dims }
func (m *mockEmbedder) ProviderID() string         { return m.provider }
func (m *mockEmbedder) ModelName() string          { return m.model }
func (m *mockEmbedder) Ping(context.Context) error { return nil }
func (m *mockEmbedder) Close() error               { return nil }

func (m *mockEmbedder) totalBatchCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batchCalls
}

// mockLLM replays canned responses in call order and records every
// prompt it sees.
type mockLLM struct {
	mu        sync.Mutex
	responses []string
	prompts   []string
	systems   []string
	failWith  error
}

func (m *mockLLM) Generate(_ context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return "", m.failWith
	}
	m.prompts = append(m.prompts, prompt)
	m.systems = append(m.systems, opts.System)
	if len(m.responses) == 0 {
		return "canned answer", nil
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, nil
}

func (m *mockLLM) Chat(_ context.Context, messages []driven.ChatMessage, _ driven.ChatOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return "", m.failWith
	}
	if len(messages) == 0 {
		return "", fmt.Errorf("no messages")
	}
	return "chat: " + messages[len(messages)-1].Content, nil
}

func (m *mockLLM) ModelName() string          { return "mock-llm" }
func (m *mockLLM) Ping(context.Context) error { return nil }
func (m *mockLLM) Close() error               { return nil }

func (m *mockLLM) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// memStore is an in-memory vector store with the same search contract
// as the persisted one: cosine similarity mapped into [0, 1],
// descending order, ties broken by insertion order, topK clamped.
type memStore struct {
	mu      sync.Mutex
	dims    int
	chunks  []domain.Chunk
	vectors [][]float32
	closed  bool
}

func (s *memStore) Insert(_ context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector length mismatch")
	}
	for _, v := range vectors {
		if len(v) != s.dims {
			return fmt.Errorf("%w: got %d, store has %d", domain.ErrDimensionMismatch, len(v), s.dims)
		}
	}
	s.chunks = append(s.chunks, chunks...)
	s.vectors = append(s.vectors, vectors...)
	return nil
}

func (s *memStore) Search(_ context.Context, vector []float32, topK int) ([]domain.RetrievedChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(vector) != s.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrDimensionMismatch, len(vector), s.dims)
	}

	type scored struct {
		idx   int
		score float64
	}
	all := make([]scored, len(s.vectors))
	for i, v := range s.vectors {
		all[i] = scored{idx: i, score: (cosine(vector, v) + 1) / 2}
	}
	sort.SliceStable(all, func(a, b int) bool { return all[a].score > all[b].score })

	if topK > len(all) {
		topK = len(all)
	}
	out := make([]domain.RetrievedChunk, topK)
	for i := 0; i < topK; i++ {
		out[i] = domain.RetrievedChunk{Chunk: s.chunks[all[i].idx], Score: all[i].score}
	}
	return out, nil
}

func (s *memStore) Count(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks), nil
}

func (s *memStore) Dimensions() int { return s.dims }

func (s *memStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// memStoreProvider hands out memStores. It tracks the last store it
// created so Open after a directory swap finds the built data.
type memStoreProvider struct {
	mu          sync.Mutex
	last        *memStore
	createCalls int
	openCalls   int
}

func (p *memStoreProvider) Create(_ context.Context, _ string, dimensions int) (driven.VectorStore, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.createCalls++
	p.last = &memStore{dims: dimensions}
	return p.last, nil
}

func (p *memStoreProvider) Open(context.Context, string) (driven.VectorStore, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.openCalls++
	if p.last == nil {
		return nil, fmt.Errorf("%w: no store to open", domain.ErrPersistence)
	}
	p.last.closed = false
	return p.last, nil
}

// mockSource serves a fixed corpus from memory.
type mockSource struct {
	mu        sync.Mutex
	files     []domain.SourceFile
	pages     map[string][]domain.Page
	readCalls int
	listErr   error
}

func (m *mockSource) List(context.Context) ([]domain.SourceFile, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]domain.SourceFile, len(m.files))
	copy(out, m.files)
	return out, nil
}

func (m *mockSource) Read(_ context.Context, file domain.SourceFile) ([]domain.Page, error) {
	m.mu.Lock()
	m.readCalls++
	m.mu.Unlock()
	pages, ok := m.pages[file.Path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, file.Path)
	}
	return pages, nil
}

// stubQuery is a scriptable QueryService for batch runner tests.
type stubQuery struct {
	mu    sync.Mutex
	calls []string

	// answer decides the outcome per question.
	answer func(question string) (*domain.Answer, []domain.RetrievedChunk, error)

	// gate, when non-nil, blocks each call until the channel is closed.
	gate chan struct{}
}

// Ask honours ctx the way the real adapters do: their HTTP requests
// are context-bound and abort as soon as ctx is cancelled.
func (s *stubQuery) Ask(ctx context.Context, question string, _ domain.QueryOptions) (*domain.Answer, []domain.RetrievedChunk, error) {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	s.calls = append(s.calls, question)
	s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("llm request: %w", err)
	}
	if s.answer != nil {
		return s.answer(question)
	}
	return &domain.Answer{Text: "answer to " + question, Status: domain.AnswerOK}, nil, nil
}
