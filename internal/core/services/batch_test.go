package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian-labs/docquery/internal/core/domain"
)

func batchPrompts(n int) []domain.BatchPrompt {
	prompts := make([]domain.BatchPrompt, n)
	for i := range prompts {
		prompts[i] = domain.BatchPrompt{
			Prompt:   fmt.Sprintf("question %d", i+1),
			Metadata: map[string]string{"category": "ops"},
		}
	}
	return prompts
}

func TestBatchRunnerProcessesInOrder(t *testing.T) {
	query := &stubQuery{
		answer: func(question string) (*domain.Answer, []domain.RetrievedChunk, error) {
			if strings.Contains(question, "question 4") {
				return nil, nil, fmt.Errorf("%w: model overloaded", domain.ErrSynthesis)
			}
			chunks := []domain.RetrievedChunk{{
				Chunk: domain.Chunk{SourceFile: "a.pdf", PageNumber: 2, Text: "grounding text"},
				Score: 0.91,
			}}
			return &domain.Answer{Text: "answer: " + question, Status: domain.AnswerOK}, chunks, nil
		},
	}
	runner := NewBatchRunner(query, 3)

	var emitted []string
	records, summary, err := runner.Run(context.Background(), batchPrompts(6), func(r domain.BatchRecord) {
		emitted = append(emitted, r.PromptID)
	})
	require.NoError(t, err)
	require.Len(t, records, 6)

	// Records and emissions keep input order no matter which worker
	// finished first.
	for i, r := range records {
		assert.Equal(t, fmt.Sprintf("prompt_%d", i+1), r.PromptID)
		assert.Equal(t, fmt.Sprintf("question %d", i+1), r.Prompt)
	}
	assert.Equal(t, []string{"prompt_1", "prompt_2", "prompt_3", "prompt_4", "prompt_5", "prompt_6"}, emitted)

	// The one failure is isolated.
	assert.Equal(t, domain.BatchStatusError, records[3].Status)
	assert.Contains(t, records[3].Error, "model overloaded")
	assert.Empty(t, records[3].Response)
	for _, i := range []int{0, 1, 2, 4, 5} {
		assert.Equal(t, domain.BatchStatusSuccess, records[i].Status)
		assert.Equal(t, 1, records[i].SourcesCount)
		require.Len(t, records[i].Sources, 1)
		assert.Equal(t, "a.pdf", records[i].Sources[0].FileName)
		assert.Equal(t, 2, records[i].Sources[0].Page)
		assert.InDelta(t, 0.91, records[i].Sources[0].Score, 1e-9)
	}

	assert.Equal(t, 6, summary.Total)
	assert.Equal(t, 5, summary.Successful)
	assert.Equal(t, 1, summary.Failed)
	assert.InDelta(t, 5.0/6.0, summary.SuccessRate, 1e-9)
	assert.Equal(t, domain.BatchCategoryStats{Total: 6, Successful: 5, Failed: 1}, summary.Categories["ops"])
}

func TestBatchRunnerAppliesDefaults(t *testing.T) {
	query := &stubQuery{
		answer: func(string) (*domain.Answer, []domain.RetrievedChunk, error) {
			return &domain.Answer{Text: "ok", Status: domain.AnswerOK}, nil, nil
		},
	}
	runner := NewBatchRunner(query, 1)

	prompts := []domain.BatchPrompt{
		{Prompt: "plain"},
		{ID: "custom", Prompt: "tuned", TopK: 9, ResponseMode: domain.ResponseModeTreeSummarize},
	}
	records, _, err := runner.Run(context.Background(), prompts, nil)
	require.NoError(t, err)

	assert.Equal(t, "prompt_1", records[0].PromptID)
	assert.Equal(t, domain.DefaultTopK, records[0].TopK)
	assert.Equal(t, domain.DefaultResponseMode, records[0].ResponseMode)

	assert.Equal(t, "custom", records[1].PromptID)
	assert.Equal(t, 9, records[1].TopK)
	assert.Equal(t, domain.ResponseModeTreeSummarize, records[1].ResponseMode)
}

func TestBatchRunnerRejectsInvalidInput(t *testing.T) {
	runner := NewBatchRunner(&stubQuery{}, 2)

	_, _, err := runner.Run(context.Background(), nil, nil)
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, _, err = runner.Run(context.Background(), []domain.BatchPrompt{{Prompt: "  "}}, nil)
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, _, err = runner.Run(context.Background(), []domain.BatchPrompt{
		{Prompt: "fine"},
		{Prompt: "bad mode", ResponseMode: domain.ResponseMode("chatty")},
	}, nil)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestBatchRunnerCancellation(t *testing.T) {
	gate := make(chan struct{})
	query := &stubQuery{gate: gate}
	runner := NewBatchRunner(query, 1)

	ctx, cancel := context.WithCancel(context.Background())

	type result struct {
		records []domain.BatchRecord
		err     error
	}
	done := make(chan result, 1)
	go func() {
		records, _, err := runner.Run(ctx, batchPrompts(3), nil)
		done <- result{records: records, err: err}
	}()

	// Let the single worker pick up the first prompt, then cancel and
	// release it. The remaining prompts must never reach the query
	// service.
	time.Sleep(20 * time.Millisecond)
	cancel()
	time.Sleep(20 * time.Millisecond)
	close(gate)

	res := <-done
	require.ErrorIs(t, res.err, context.Canceled)
	require.Len(t, res.records, 3)

	// The prompt that was in flight at cancellation time finishes and
	// records a full answer; only the untouched tail is cancelled.
	assert.Equal(t, domain.BatchStatusSuccess, res.records[0].Status)
	assert.NotEmpty(t, res.records[0].Response)
	assert.Empty(t, res.records[0].Error)
	for _, i := range []int{1, 2} {
		assert.Equal(t, domain.BatchStatusError, res.records[i].Status)
		assert.Contains(t, res.records[i].Error, "cancelled")
	}
	assert.Len(t, query.calls, 1)
}

func TestBatchRunnerClampsWorkerCount(t *testing.T) {
	runner := NewBatchRunner(&stubQuery{}, 0)
	assert.Equal(t, 1, runner.workers)

	records, summary, err := NewBatchRunner(&stubQuery{}, 16).Run(context.Background(), batchPrompts(2), nil)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, 2, summary.Total)
}
