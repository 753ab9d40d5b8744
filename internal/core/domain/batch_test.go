package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchPromptNormalise(t *testing.T) {
	t.Run("fills defaults", func(t *testing.T) {
		p := BatchPrompt{Prompt: "what is mission command?"}
		require.NoError(t, p.Normalise(3))

		assert.Equal(t, "prompt_4", p.ID)
		assert.Equal(t, DefaultTopK, p.TopK)
		assert.Equal(t, ResponseModeCompact, p.ResponseMode)
	})

	t.Run("keeps explicit values", func(t *testing.T) {
		p := BatchPrompt{
			ID:           "q1",
			Prompt:       "summarise",
			TopK:         7,
			ResponseMode: ResponseModeTreeSummarize,
		}
		require.NoError(t, p.Normalise(0))

		assert.Equal(t, "q1", p.ID)
		assert.Equal(t, 7, p.TopK)
		assert.Equal(t, ResponseModeTreeSummarize, p.ResponseMode)
	})

	t.Run("missing prompt field", func(t *testing.T) {
		p := BatchPrompt{Prompt: "   "}
		err := p.Normalise(0)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("unknown response mode", func(t *testing.T) {
		p := BatchPrompt{Prompt: "q", ResponseMode: "refine"}
		err := p.Normalise(0)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestBatchPromptCategory(t *testing.T) {
	p := BatchPrompt{Prompt: "q", Metadata: map[string]string{"category": "search"}}
	assert.Equal(t, "search", p.Category())

	p = BatchPrompt{Prompt: "q"}
	assert.Equal(t, "uncategorized", p.Category())
}

func TestSummarise(t *testing.T) {
	records := []BatchRecord{
		{Status: BatchStatusSuccess, Duration: 1.0, Metadata: map[string]string{"category": "summary"}},
		{Status: BatchStatusSuccess, Duration: 2.0, Metadata: map[string]string{"category": "summary"}},
		{Status: BatchStatusSuccess, Duration: 3.0, Metadata: map[string]string{"category": "search"}},
		{Status: BatchStatusError, Duration: 0.5},
		{Status: BatchStatusSuccess, Duration: 1.5},
		{Status: BatchStatusSuccess, Duration: 1.0, Metadata: map[string]string{"category": "search"}},
	}

	s := Summarise(records)

	assert.Equal(t, 6, s.Total)
	assert.Equal(t, 5, s.Successful)
	assert.Equal(t, 1, s.Failed)
	assert.InDelta(t, 0.833, s.SuccessRate, 0.001)
	assert.InDelta(t, 1.5, s.AverageDuration, 0.001)

	assert.Equal(t, BatchCategoryStats{Total: 2, Successful: 2}, s.Categories["summary"])
	assert.Equal(t, BatchCategoryStats{Total: 2, Successful: 2}, s.Categories["search"])
	assert.Equal(t, BatchCategoryStats{Total: 2, Successful: 1, Failed: 1}, s.Categories["uncategorized"])
}

func TestSummariseEmpty(t *testing.T) {
	s := Summarise(nil)
	assert.Equal(t, 0, s.Total)
	assert.Zero(t, s.SuccessRate)
	assert.Zero(t, s.AverageDuration)
}
