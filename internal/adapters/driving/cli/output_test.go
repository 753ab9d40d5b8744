package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/veridian-labs/docquery/internal/core/domain"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		name string
		in   int64
		want string
	}{
		{"bytes", 512, "512 B"},
		{"kibibytes", 2048, "2.0 KiB"},
		{"mebibytes", 5 * 1024 * 1024, "5.0 MiB"},
		{"fractional", 1536, "1.5 KiB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatBytes(tt.in))
		})
	}
}

func TestDescribeIndexOutcome(t *testing.T) {
	manifest := &domain.Manifest{
		Provider:    "ollama",
		Model:       "nomic-embed-text",
		Dimensions:  768,
		TotalChunks: 42,
		Files: []domain.ManifestFile{
			{Path: "a.pdf"},
			{Path: "b.md"},
		},
	}

	rebuilt := describeIndexOutcome(manifest, true)
	assert.Contains(t, rebuilt, "Indexed 2 documents into 42 chunks")
	assert.Contains(t, rebuilt, "nomic-embed-text")

	reused := describeIndexOutcome(manifest, false)
	assert.Contains(t, reused, "Reusing existing index")
	assert.Contains(t, reused, "42 chunks")
}

func TestRenderAnswer_NoContext(t *testing.T) {
	answer := &domain.Answer{
		Status: domain.AnswerNoContext,
		Text:   "No relevant passages were found for this question.",
	}

	out := renderAnswer(answer, nil)

	assert.Contains(t, out, "No relevant passages")
	assert.NotContains(t, out, "Sources")
}

func TestRenderAnswer_WithCitations(t *testing.T) {
	chunks := []domain.RetrievedChunk{
		{
			Chunk: domain.Chunk{SourceFile: "report.pdf", PageNumber: 3, Text: "quarterly revenue grew"},
			Score: 0.912,
		},
	}
	answer := &domain.Answer{
		Status:    domain.AnswerOK,
		Text:      "Revenue grew.",
		Citations: chunks,
		Latency:   1200 * time.Millisecond,
	}

	out := renderAnswer(answer, chunks)

	assert.Contains(t, out, "Revenue grew.")
	assert.Contains(t, out, "Sources (1)")
	assert.Contains(t, out, "report.pdf, page 3")
	assert.Contains(t, out, "0.912")
	assert.Contains(t, out, "(1.20s)")
}

func TestRenderAnswer_UncitedFallsBackToRetrieved(t *testing.T) {
	chunks := []domain.RetrievedChunk{
		{Chunk: domain.Chunk{SourceFile: "notes.md", PageNumber: 1, Text: "alpha"}, Score: 0.5},
		{Chunk: domain.Chunk{SourceFile: "notes.md", PageNumber: 2, Text: "beta"}, Score: 0.4},
	}
	answer := &domain.Answer{Status: domain.AnswerOK, Text: "Both pages apply."}

	out := renderAnswer(answer, chunks)

	assert.Contains(t, out, "Sources (2)")
}
