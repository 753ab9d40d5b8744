package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/veridian-labs/docquery/internal/core/domain"
	"github.com/veridian-labs/docquery/internal/core/ports/driving"
	"github.com/veridian-labs/docquery/internal/logger"
)

var _ driving.BatchService = (*BatchRunner)(nil)

// sourcePreviewBytes bounds the text preview stored per citation in a
// batch record.
const sourcePreviewBytes = 200

// BatchRunner executes a list of prompts against the query service
// with a bounded worker pool, preserving input order in its output.
type BatchRunner struct {
	query   driving.QueryService
	workers int
}

// NewBatchRunner creates a batch runner. workers values below 1 are
// treated as 1.
func NewBatchRunner(query driving.QueryService, workers int) *BatchRunner {
	if workers < 1 {
		workers = 1
	}
	return &BatchRunner{query: query, workers: workers}
}

// Run processes the prompts concurrently and returns one record per
// prompt in input order. Individual prompt failures become records
// with status "error"; the run itself fails only on invalid input or
// cancellation. When emit is non-nil every record is passed to it in
// input order, as soon as it and all records before it are complete.
func (b *BatchRunner) Run(ctx context.Context, prompts []domain.BatchPrompt, emit func(domain.BatchRecord)) ([]domain.BatchRecord, domain.BatchSummary, error) {
	if len(prompts) == 0 {
		return nil, domain.BatchSummary{}, fmt.Errorf("%w: no prompts to process", domain.ErrInvalidInput)
	}

	normalised := make([]domain.BatchPrompt, len(prompts))
	for i, p := range prompts {
		if err := p.Normalise(i); err != nil {
			return nil, domain.BatchSummary{}, err
		}
		normalised[i] = p
	}

	workers := b.workers
	if workers > len(normalised) {
		workers = len(normalised)
	}
	logger.Section("Batch Run")
	logger.Info("Processing %d prompts with %d workers", len(normalised), workers)

	type job struct {
		index  int
		prompt domain.BatchPrompt
	}

	jobs := make(chan job)
	records := make([]domain.BatchRecord, len(normalised))
	done := make([]bool, len(normalised))

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		emitted int
	)

	// flush hands completed records to emit in input order. Called with
	// mu held.
	flush := func() {
		for emitted < len(records) && done[emitted] {
			if emit != nil {
				emit(records[emitted])
			}
			emitted++
		}
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				rec := b.runOne(ctx, j.prompt)
				mu.Lock()
				records[j.index] = rec
				done[j.index] = true
				flush()
				mu.Unlock()
			}
		}()
	}

	// Feed jobs until done or cancelled. On cancellation the remaining
	// prompts are recorded as errors without being attempted.
	var cancelled error
feed:
	for i, p := range normalised {
		select {
		case <-ctx.Done():
			cancelled = ctx.Err()
			mu.Lock()
			for k := i; k < len(normalised); k++ {
				records[k] = cancelledRecord(normalised[k], cancelled)
				done[k] = true
			}
			flush()
			mu.Unlock()
			break feed
		case jobs <- job{index: i, prompt: p}:
		}
	}
	close(jobs)
	wg.Wait()

	// Workers may have finished after the cancellation pass filled the
	// tail. Flush anything still pending.
	mu.Lock()
	flush()
	mu.Unlock()

	summary := domain.Summarise(records)
	logger.Info("Batch complete: %d/%d successful", summary.Successful, summary.Total)
	if cancelled != nil {
		return records, summary, fmt.Errorf("batch interrupted: %w", cancelled)
	}
	return records, summary, nil
}

// runOne executes a single normalised prompt and converts the outcome
// into a record.
func (b *BatchRunner) runOne(ctx context.Context, p domain.BatchPrompt) domain.BatchRecord {
	rec := domain.BatchRecord{
		PromptID:     p.ID,
		Prompt:       p.Prompt,
		Timestamp:    time.Now().UTC(),
		TopK:         p.TopK,
		ResponseMode: p.ResponseMode,
		Metadata:     p.Metadata,
		Sources:      []domain.BatchSource{},
	}

	// Cancellation is honoured between prompts, in the feed loop. A
	// prompt already handed to a worker runs to completion: a partial
	// LLM response is not a usable record, and the adapters bound each
	// call with their own timeouts.
	start := time.Now()
	answer, chunks, err := b.query.Ask(context.WithoutCancel(ctx), p.Prompt, domain.QueryOptions{
		TopK: p.TopK,
		Mode: p.ResponseMode,
	})
	rec.Duration = time.Since(start).Seconds()

	if err != nil {
		rec.Status = domain.BatchStatusError
		rec.Error = err.Error()
		logger.Warn("Prompt %s failed: %v", p.ID, err)
		return rec
	}

	rec.Status = domain.BatchStatusSuccess
	rec.Response = answer.Text
	rec.SourcesCount = len(chunks)
	for _, rc := range chunks {
		rec.Sources = append(rec.Sources, domain.BatchSource{
			FileName:    rc.Chunk.SourceFile,
			Page:        rc.Chunk.PageNumber,
			Score:       rc.Score,
			TextPreview: rc.Preview(sourcePreviewBytes),
		})
	}
	return rec
}

// cancelledRecord marks a prompt that was never attempted because the
// run was cancelled first.
func cancelledRecord(p domain.BatchPrompt, cause error) domain.BatchRecord {
	return domain.BatchRecord{
		PromptID:     p.ID,
		Prompt:       p.Prompt,
		Timestamp:    time.Now().UTC(),
		TopK:         p.TopK,
		ResponseMode: p.ResponseMode,
		Metadata:     p.Metadata,
		Sources:      []domain.BatchSource{},
		Status:       domain.BatchStatusError,
		Error:        fmt.Sprintf("cancelled before execution: %v", cause),
	}
}
