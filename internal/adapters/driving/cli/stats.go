package cli

import (
	"github.com/spf13/cobra"

	vectorsqlite "github.com/veridian-labs/docquery/internal/adapters/driven/vectorstore/sqlite"
	"github.com/veridian-labs/docquery/internal/core/services"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show statistics for the persisted index",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

// runStats reads the manifest directly. No credentials or document
// access are needed, so the full app wiring is skipped.
func runStats(cmd *cobra.Command, _ []string) error {
	indexer := services.NewIndexer(cfg, nil, nil, vectorsqlite.NewProvider())
	defer indexer.Close()

	stats, err := indexer.Stats(cmd.Context())
	if err != nil {
		return err
	}
	cmd.Print(renderStats(stats))
	return nil
}
