package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/veridian-labs/docquery/internal/core/domain"
	"github.com/veridian-labs/docquery/internal/core/ports/driven"
	"github.com/veridian-labs/docquery/internal/logger"
)

// treeFanout is the number of passages summarised per group in
// tree_summarize mode.
const treeFanout = 5

// noContextAnswer is returned when retrieval produced nothing to
// ground an answer on.
const noContextAnswer = "No relevant content was found in the indexed documents for this question."

// answerSystemPrompt constrains the model to the supplied passages and
// asks for a machine-readable attribution line.
const answerSystemPrompt = `You are a documentation assistant. Answer the question using only the numbered context passages provided. If the passages do not contain the answer, say so plainly.

After your answer, on a final line by itself, write the passage numbers you relied on in the form:
SOURCES: [1, 3]`

// summariseSystemPrompt is used for the intermediate passes of
// tree_summarize mode.
const summariseSystemPrompt = `You are a documentation assistant. Summarise everything in the numbered context passages that is relevant to the question. Keep concrete details. If nothing is relevant, say "Nothing relevant."

After your summary, on a final line by itself, write the passage numbers you drew from in the form:
SOURCES: [1, 3]`

// sourcesLineRe matches the trailing attribution line emitted by the
// model, e.g. "SOURCES: [1, 3]".
var sourcesLineRe = regexp.MustCompile(`(?s)\n?\s*SOURCES:\s*\[([0-9,\s]*)\]\s*$`)

// Synthesizer turns retrieved chunks into a grounded answer using an
// LLM, honouring the configured response mode.
type Synthesizer struct {
	llm         driven.LLMService
	maxTokens   int
	temperature float64
}

// NewSynthesizer creates a synthesizer bound to one LLM backend.
func NewSynthesizer(llm driven.LLMService, settings domain.LLMSettings) *Synthesizer {
	return &Synthesizer{
		llm:         llm,
		maxTokens:   settings.MaxTokens,
		temperature: settings.Temperature,
	}
}

// Synthesize produces an answer for the question from the retrieved
// chunks. Citations index into chunks and always appear in ascending
// order. With no chunks the answer reports the no-context outcome and
// the LLM is never called. Mode no_text skips the LLM as well and
// leaves the answer text empty.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, chunks []domain.RetrievedChunk, mode domain.ResponseMode) (*domain.Answer, error) {
	if !mode.IsValid() {
		return nil, fmt.Errorf("%w: unknown response mode %q", domain.ErrInvalidInput, mode)
	}
	if len(chunks) == 0 {
		return &domain.Answer{Text: noContextAnswer, Status: domain.AnswerNoContext}, nil
	}
	if mode == domain.ResponseModeNoText {
		return &domain.Answer{Status: domain.AnswerOK, Citations: chunks}, nil
	}

	var (
		text  string
		cites []int
		err   error
	)
	switch mode {
	case domain.ResponseModeTreeSummarize:
		text, cites, err = s.treeSynthesize(ctx, question, chunks)
	default:
		// compact and simple_summarize both fit our chunk sizes into a
		// single call; compact packs the passages verbatim, simple
		// truncation is unnecessary at these context lengths.
		text, cites, err = s.singleShot(ctx, question, chunks)
	}
	if err != nil {
		return nil, err
	}

	citations := make([]domain.RetrievedChunk, len(cites))
	for i, idx := range cites {
		citations[i] = chunks[idx]
	}
	return &domain.Answer{Text: text, Status: domain.AnswerOK, Citations: citations}, nil
}

// singleShot sends every passage in one generation call.
func (s *Synthesizer) singleShot(ctx context.Context, question string, chunks []domain.RetrievedChunk) (string, []int, error) {
	prompt := buildPrompt(question, chunks)
	raw, err := s.generate(ctx, prompt, answerSystemPrompt)
	if err != nil {
		return "", nil, err
	}

	text, cites := parseSources(raw, len(chunks))
	if cites == nil {
		// Model omitted the attribution line; every supplied passage
		// was available to it.
		cites = allIndices(len(chunks))
	}
	return text, cites, nil
}

// treeSynthesize summarises passages in groups, then combines the
// group summaries into a final answer. Citations are mapped back to
// the original chunk positions and deduplicated in ascending order.
func (s *Synthesizer) treeSynthesize(ctx context.Context, question string, chunks []domain.RetrievedChunk) (string, []int, error) {
	if len(chunks) <= treeFanout {
		return s.singleShot(ctx, question, chunks)
	}

	type groupSummary struct {
		text  string
		cites []int // global chunk indices
	}

	var summaries []groupSummary
	for start := 0; start < len(chunks); start += treeFanout {
		end := start + treeFanout
		if end > len(chunks) {
			end = len(chunks)
		}
		group := chunks[start:end]

		raw, err := s.generate(ctx, buildPrompt(question, group), summariseSystemPrompt)
		if err != nil {
			return "", nil, err
		}

		text, local := parseSources(raw, len(group))
		if local == nil {
			local = allIndices(len(group))
		}
		global := make([]int, len(local))
		for i, idx := range local {
			global[i] = start + idx
		}
		summaries = append(summaries, groupSummary{text: text, cites: global})
		logger.Debug("tree_summarize: group %d-%d cited %d passages", start, end-1, len(global))
	}

	// Final pass over the intermediate summaries.
	parts := make([]string, len(summaries))
	for i, gs := range summaries {
		parts[i] = gs.text
	}
	raw, err := s.generate(ctx, buildSummaryPrompt(question, parts), answerSystemPrompt)
	if err != nil {
		return "", nil, err
	}

	text, used := parseSources(raw, len(summaries))
	if used == nil {
		used = allIndices(len(summaries))
	}

	seen := make(map[int]bool)
	var cites []int
	for _, si := range used {
		for _, gi := range summaries[si].cites {
			if !seen[gi] {
				seen[gi] = true
				cites = append(cites, gi)
			}
		}
	}
	sort.Ints(cites)
	return text, cites, nil
}

func (s *Synthesizer) generate(ctx context.Context, prompt, system string) (string, error) {
	out, err := s.llm.Generate(ctx, prompt, driven.GenerateOptions{
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
		System:      system,
	})
	if err != nil {
		return "", fmt.Errorf("synthesize answer: %w", err)
	}
	return out, nil
}

// buildPrompt numbers each passage, labels it with its origin and
// appends the question.
func buildPrompt(question string, chunks []domain.RetrievedChunk) string {
	var b strings.Builder
	b.WriteString("Context passages:\n\n")
	for i, rc := range chunks {
		fmt.Fprintf(&b, "[%d] (%s, page %d)\n%s\n\n",
			i+1, rc.Chunk.SourceFile, rc.Chunk.PageNumber, rc.Chunk.Text)
	}
	fmt.Fprintf(&b, "Question: %s", question)
	return b.String()
}

// buildSummaryPrompt numbers intermediate summaries for the final
// tree_summarize pass.
func buildSummaryPrompt(question string, summaries []string) string {
	var b strings.Builder
	b.WriteString("Context passages:\n\n")
	for i, s := range summaries {
		fmt.Fprintf(&b, "[%d]\n%s\n\n", i+1, s)
	}
	fmt.Fprintf(&b, "Question: %s", question)
	return b.String()
}

// parseSources strips the trailing SOURCES line from the model output
// and returns 0-based passage indices, ascending and deduplicated,
// limited to the valid range. Returns nil indices when no attribution
// line is present.
func parseSources(raw string, count int) (string, []int) {
	match := sourcesLineRe.FindStringSubmatchIndex(raw)
	if match == nil {
		return strings.TrimSpace(raw), nil
	}

	text := strings.TrimSpace(raw[:match[0]])
	list := raw[match[2]:match[3]]

	seen := make(map[int]bool)
	cites := []int{}
	for _, field := range strings.Split(list, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil || n < 1 || n > count || seen[n] {
			continue
		}
		seen[n] = true
		cites = append(cites, n-1)
	}
	sort.Ints(cites)
	return text, cites
}

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
