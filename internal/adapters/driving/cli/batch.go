package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/veridian-labs/docquery/internal/core/domain"
	"github.com/veridian-labs/docquery/internal/core/services"
)

var (
	batchOutput       string
	batchWorkers      int
	batchCreateSample bool
)

var batchCmd = &cobra.Command{
	Use:   "batch [prompts-file]",
	Short: "Run a file of prompts against the index",
	Long: `Reads a JSON array of prompts and answers each one, writing results
as JSON Lines: one record per prompt in input order, then a run summary
as the final line. Individual prompt failures are recorded without
stopping the run.

Use --create-sample to write an example prompts file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVarP(&batchOutput, "output", "o", "", "write results to this file instead of stdout")
	batchCmd.Flags().IntVarP(&batchWorkers, "workers", "w", 0, "concurrent workers (defaults to configuration)")
	batchCmd.Flags().BoolVar(&batchCreateSample, "create-sample", false, "write a sample prompts file and exit")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	if batchCreateSample {
		path := "prompts.sample.json"
		if len(args) == 1 {
			path = args[0]
		}
		if err := writeSamplePrompts(path); err != nil {
			return err
		}
		cmd.Printf("Sample prompts written to %s\n", path)
		return nil
	}
	if len(args) != 1 {
		return fmt.Errorf("%w: a prompts file is required", domain.ErrInvalidInput)
	}

	prompts, err := readPrompts(args[0])
	if err != nil {
		return err
	}

	application, err := newApp(true)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, _, err := application.indexer.EnsureIndex(ctx, false); err != nil {
		return err
	}
	engine, err := application.queryEngine(true)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if batchOutput != "" {
		f, err := os.Create(batchOutput)
		if err != nil {
			return fmt.Errorf("%w: create output file: %v", domain.ErrPersistence, err)
		}
		defer f.Close()
		out = f
	}
	writer := newJSONLWriter(out)

	workers := cfg.BatchWorkers
	if batchWorkers > 0 {
		workers = batchWorkers
	}

	runner := services.NewBatchRunner(engine, workers)
	_, summary, runErr := runner.Run(ctx, prompts, writer.write)
	if writer.err != nil {
		return fmt.Errorf("%w: write record: %v", domain.ErrPersistence, writer.err)
	}
	if err := writer.enc.Encode(summary); err != nil {
		return fmt.Errorf("%w: write summary: %v", domain.ErrPersistence, err)
	}

	if batchOutput != "" {
		cmd.Printf("Results written to %s\n", batchOutput)
	}
	cmd.PrintErrf("Batch complete: %d/%d successful (%.0f%%)\n",
		summary.Successful, summary.Total, summary.SuccessRate*100)
	return runErr
}

// jsonlWriter encodes batch records as JSON Lines. It keeps the first
// write failure so a full disk or closed pipe surfaces as the run's
// error instead of silently dropped records.
type jsonlWriter struct {
	enc *json.Encoder
	err error
}

func newJSONLWriter(w io.Writer) *jsonlWriter {
	return &jsonlWriter{enc: json.NewEncoder(w)}
}

// write is the emit callback handed to the batch runner. Records after
// the first failure are skipped; the run still completes so the
// failure can be reported with the summary counts intact.
func (jw *jsonlWriter) write(rec domain.BatchRecord) {
	if jw.err == nil {
		jw.err = jw.enc.Encode(rec)
	}
}

// readPrompts loads and decodes the prompts file, a JSON array of
// prompt objects.
func readPrompts(path string) ([]domain.BatchPrompt, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read prompts file: %v", domain.ErrInvalidInput, err)
	}
	var prompts []domain.BatchPrompt
	if err := json.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("%w: parse prompts file: %v", domain.ErrInvalidInput, err)
	}
	return prompts, nil
}

func writeSamplePrompts(path string) error {
	sample := []domain.BatchPrompt{
		{
			ID:       "q1",
			Prompt:   "What are the main topics covered in these documents?",
			Metadata: map[string]string{"category": "overview"},
		},
		{
			ID:           "q2",
			Prompt:       "Summarise the key findings.",
			TopK:         8,
			ResponseMode: domain.ResponseModeTreeSummarize,
			Metadata:     map[string]string{"category": "summary"},
		},
		{
			Prompt: "Which document mentions deadlines, and on what page?",
		},
	}
	data, err := json.MarshalIndent(sample, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: write sample file: %v", domain.ErrPersistence, err)
	}
	return nil
}
