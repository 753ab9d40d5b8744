package domain

const unknownDescription = "Unknown"

// ResponseMode defines how retrieved context is turned into an answer.
type ResponseMode string

// Available response modes.
const (
	// ResponseModeCompact sends all retrieved passages in a single
	// synthesis call. The default.
	ResponseModeCompact ResponseMode = "compact"

	// ResponseModeTreeSummarize summarizes passages in groups and then
	// synthesizes the final answer from the intermediate summaries.
	ResponseModeTreeSummarize ResponseMode = "tree_summarize"

	// ResponseModeSimpleSummarize sends all retrieved passages in a
	// single synthesis call, like compact. The modes differ only in
	// how an oversized context would be trimmed, which retrieval
	// depths here never produce.
	ResponseModeSimpleSummarize ResponseMode = "simple_summarize"

	// ResponseModeNoText skips synthesis and returns the retrieved
	// passages as citations with empty answer text. Used for pure
	// retrieval testing.
	ResponseModeNoText ResponseMode = "no_text"
)

// IsValid returns true if the response mode is recognised.
func (m ResponseMode) IsValid() bool {
	switch m {
	case ResponseModeCompact, ResponseModeTreeSummarize,
		ResponseModeSimpleSummarize, ResponseModeNoText:
		return true
	default:
		return false
	}
}

// RequiresLLM returns true if this mode calls the LLM.
func (m ResponseMode) RequiresLLM() bool {
	return m != ResponseModeNoText
}

// String returns the string representation.
func (m ResponseMode) String() string {
	return string(m)
}

// Description returns a human-readable description of the mode.
func (m ResponseMode) Description() string {
	switch m {
	case ResponseModeCompact:
		return "Compact (single call, full passages)"
	case ResponseModeTreeSummarize:
		return "Tree Summarize (hierarchical summarisation)"
	case ResponseModeSimpleSummarize:
		return "Simple Summarize (single call, full passages)"
	case ResponseModeNoText:
		return "No Text (retrieval only)"
	default:
		return unknownDescription
	}
}
