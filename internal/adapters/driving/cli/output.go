package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/veridian-labs/docquery/internal/core/domain"
)

// Shared output styles.
var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	answerStyle  = lipgloss.NewStyle().PaddingLeft(2)
	sourceStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// citationPreviewBytes bounds how much chunk text is shown per source.
const citationPreviewBytes = 120

// renderAnswer formats an answer with its citations for the terminal.
func renderAnswer(answer *domain.Answer, chunks []domain.RetrievedChunk) string {
	var b strings.Builder

	if answer.Status == domain.AnswerNoContext {
		b.WriteString(warnStyle.Render(answer.Text))
		b.WriteString("\n")
		return b.String()
	}

	if answer.Text != "" {
		b.WriteString(headingStyle.Render("Answer"))
		b.WriteString("\n")
		b.WriteString(answerStyle.Render(answer.Text))
		b.WriteString("\n\n")
	}

	cited := answer.Citations
	if len(cited) == 0 {
		cited = chunks
	}
	if len(cited) > 0 {
		b.WriteString(headingStyle.Render(fmt.Sprintf("Sources (%d)", len(cited))))
		b.WriteString("\n")
		for i, rc := range cited {
			b.WriteString(fmt.Sprintf("  [%d] %s\n", i+1,
				sourceStyle.Render(fmt.Sprintf("%s, page %d", rc.Chunk.SourceFile, rc.Chunk.PageNumber))))
			b.WriteString(fmt.Sprintf("      %s %s\n",
				scoreStyle.Render(fmt.Sprintf("%.3f", rc.Score)),
				sourceStyle.Render(rc.Preview(citationPreviewBytes))))
		}
	}

	b.WriteString(sourceStyle.Render(fmt.Sprintf("\n(%.2fs)", answer.Latency.Seconds())))
	b.WriteString("\n")
	return b.String()
}

// renderStats formats index statistics for the terminal.
func renderStats(stats *domain.IndexStats) string {
	var b strings.Builder
	b.WriteString(headingStyle.Render("Index Statistics"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  Documents:     %d\n", stats.Documents)
	fmt.Fprintf(&b, "  Chunks:        %d\n", stats.Chunks)
	fmt.Fprintf(&b, "  Content size:  %s\n", formatBytes(stats.ContentBytes))
	fmt.Fprintf(&b, "  Storage size:  %s\n", formatBytes(stats.StorageBytes))
	fmt.Fprintf(&b, "  Embeddings:    %s/%s (%d dims)\n", stats.Provider, stats.Model, stats.Dimensions)
	fmt.Fprintf(&b, "  Chunking:      %d tokens, %d overlap\n", stats.Chunking.Size, stats.Chunking.Overlap)
	fmt.Fprintf(&b, "  Built:         %s\n", stats.BuiltAt.Local().Format("2006-01-02 15:04:05"))
	return b.String()
}

// formatBytes renders a byte count with a binary unit suffix.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
