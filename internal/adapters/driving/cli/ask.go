package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/veridian-labs/docquery/internal/core/domain"
)

var (
	askTopK int
	askMode string
	askJSON bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question against the indexed documents",
	Long: `Retrieves the most relevant chunks for the question and synthesizes a
grounded answer with source citations. The index is built first if it
does not exist or is out of date.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	askCmd.Flags().StringVarP(&askMode, "mode", "m", "", "response mode: compact, tree_summarize, simple_summarize, no_text")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

// askResult is the JSON output shape of a single question.
type askResult struct {
	Question string               `json:"question"`
	Answer   string               `json:"answer"`
	Status   domain.AnswerStatus  `json:"status"`
	Duration float64              `json:"duration_seconds"`
	Sources  []domain.BatchSource `json:"sources"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	// One-shot command: skip the connectivity pings, the first real
	// call surfaces an unreachable backend just as quickly.
	application, err := newApp(false)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, _, err := application.indexer.EnsureIndex(ctx, false); err != nil {
		return err
	}

	engine, err := application.queryEngine(false)
	if err != nil {
		return err
	}

	answer, chunks, err := engine.Ask(ctx, args[0], domain.QueryOptions{
		TopK: askTopK,
		Mode: domain.ResponseMode(askMode),
	})
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if askJSON {
		return outputAskJSON(cmd, args[0], answer)
	}
	cmd.Print(renderAnswer(answer, chunks))
	return nil
}

func outputAskJSON(cmd *cobra.Command, question string, answer *domain.Answer) error {
	result := askResult{
		Question: question,
		Answer:   answer.Text,
		Status:   answer.Status,
		Duration: answer.Latency.Round(time.Millisecond).Seconds(),
		Sources:  make([]domain.BatchSource, 0, len(answer.Citations)),
	}
	for _, rc := range answer.Citations {
		result.Sources = append(result.Sources, domain.BatchSource{
			FileName:    rc.Chunk.SourceFile,
			Page:        rc.Chunk.PageNumber,
			Score:       rc.Score,
			TextPreview: rc.Preview(citationPreviewBytes),
		})
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal answer: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
