package domain

import (
	"fmt"
	"strings"
	"time"
)

// Batch processing defaults.
const (
	// DefaultTopK is the similarity_top_k applied when a prompt omits it.
	DefaultTopK = 5

	// DefaultResponseMode is applied when a prompt omits response_mode.
	DefaultResponseMode = ResponseModeCompact
)

// BatchPrompt is one record of the batch query input.
type BatchPrompt struct {
	// ID identifies the prompt. Auto-generated when empty.
	ID string `json:"id,omitempty"`

	// Prompt is the question text. Required.
	Prompt string `json:"prompt"`

	// Metadata carries arbitrary caller data. The "category" key, when
	// present, groups prompts in the run summary.
	Metadata map[string]string `json:"metadata,omitempty"`

	// TopK overrides the retrieval depth. Defaults to DefaultTopK.
	TopK int `json:"similarity_top_k,omitempty"`

	// ResponseMode overrides the synthesis mode. Defaults to compact.
	ResponseMode ResponseMode `json:"response_mode,omitempty"`
}

// Normalise fills defaults and validates the prompt.
// The index is the prompt's position in the input, used for
// auto-generated IDs and error context.
func (p *BatchPrompt) Normalise(index int) error {
	if strings.TrimSpace(p.Prompt) == "" {
		return fmt.Errorf("%w: prompt %d missing 'prompt' field", ErrInvalidInput, index)
	}
	if p.ID == "" {
		p.ID = fmt.Sprintf("prompt_%d", index+1)
	}
	if p.TopK <= 0 {
		p.TopK = DefaultTopK
	}
	if p.ResponseMode == "" {
		p.ResponseMode = DefaultResponseMode
	}
	if !p.ResponseMode.IsValid() {
		return fmt.Errorf("%w: prompt %q has unknown response_mode %q",
			ErrInvalidInput, p.ID, p.ResponseMode)
	}
	return nil
}

// Category returns the metadata category, or "uncategorized".
func (p *BatchPrompt) Category() string {
	if c := p.Metadata["category"]; c != "" {
		return c
	}
	return "uncategorized"
}

// Batch record statuses.
const (
	// BatchStatusSuccess marks a prompt that completed.
	BatchStatusSuccess = "success"

	// BatchStatusError marks a prompt that failed. The failure is
	// isolated; the run continues.
	BatchStatusError = "error"
)

// BatchSource describes one citation in a batch record.
type BatchSource struct {
	FileName    string  `json:"file_name"`
	Page        int     `json:"page"`
	Score       float64 `json:"score"`
	TextPreview string  `json:"text_preview"`
}

// BatchRecord is one record of the batch query output, in input order.
type BatchRecord struct {
	PromptID     string            `json:"prompt_id"`
	Prompt       string            `json:"prompt"`
	Response     string            `json:"response,omitempty"`
	Duration     float64           `json:"duration_seconds"`
	Timestamp    time.Time         `json:"timestamp"`
	TopK         int               `json:"similarity_top_k"`
	ResponseMode ResponseMode      `json:"response_mode"`
	SourcesCount int               `json:"sources_count"`
	Sources      []BatchSource     `json:"sources"`
	Metadata     map[string]string `json:"input_metadata,omitempty"`
	Status       string            `json:"status"`
	Error        string            `json:"error,omitempty"`
}

// BatchCategoryStats aggregates results per metadata category.
type BatchCategoryStats struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// BatchSummary is the trailing run-level summary of a batch run.
type BatchSummary struct {
	Total           int                           `json:"total"`
	Successful      int                           `json:"successful"`
	Failed          int                           `json:"failed"`
	SuccessRate     float64                       `json:"success_rate"`
	AverageDuration float64                       `json:"average_duration_seconds"`
	Categories      map[string]BatchCategoryStats `json:"categories,omitempty"`
}

// Summarise computes the run summary from the ordered records.
// Category keys come from each record's input metadata.
func Summarise(records []BatchRecord) BatchSummary {
	s := BatchSummary{Total: len(records)}
	if len(records) == 0 {
		return s
	}

	var totalDuration float64
	categories := make(map[string]BatchCategoryStats)

	for _, r := range records {
		totalDuration += r.Duration

		category := r.Metadata["category"]
		if category == "" {
			category = "uncategorized"
		}
		stats := categories[category]
		stats.Total++

		if r.Status == BatchStatusSuccess {
			s.Successful++
			stats.Successful++
		} else {
			s.Failed++
			stats.Failed++
		}
		categories[category] = stats
	}

	s.SuccessRate = float64(s.Successful) / float64(s.Total)
	s.AverageDuration = totalDuration / float64(s.Total)
	s.Categories = categories
	return s
}
