// Package cli implements the docquery command line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veridian-labs/docquery/internal/adapters/driven/ai"
	configfile "github.com/veridian-labs/docquery/internal/adapters/driven/config/file"
	sourcefs "github.com/veridian-labs/docquery/internal/adapters/driven/source/fs"
	vectorsqlite "github.com/veridian-labs/docquery/internal/adapters/driven/vectorstore/sqlite"
	"github.com/veridian-labs/docquery/internal/core/domain"
	"github.com/veridian-labs/docquery/internal/core/ports/driven"
	"github.com/veridian-labs/docquery/internal/core/services"
	"github.com/veridian-labs/docquery/internal/logger"
)

// version is set from main at startup.
var version = "dev"

// Persistent flag values.
var (
	configPath  string
	verboseFlag bool
	docsFlag    string
	storageFlag string
)

// cfg is loaded once before any command runs.
var cfg *domain.Config

var rootCmd = &cobra.Command{
	Use:   "docquery",
	Short: "Question answering over a local document corpus",
	Long: `docquery indexes a directory of PDF, text and markdown documents and
answers questions about them using retrieval-augmented generation.

The index is built once and reused until the corpus or its parameters
change. Credentials are read from the environment (OPENAI_API_KEY,
ANTHROPIC_API_KEY) or a .env file in the working directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		logger.SetVerbose(verboseFlag)

		loaded, err := configfile.Load(configPath)
		if err != nil {
			return err
		}
		if docsFlag != "" {
			loaded.DocsDir = docsFlag
		}
		if storageFlag != "" {
			loaded.StorageDir = storageFlag
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default ./docquery.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&docsFlag, "docs", "", "override the documents directory")
	rootCmd.PersistentFlags().StringVar(&storageFlag, "storage", "", "override the index storage directory")
}

// Execute runs the CLI with the given build version.
func Execute(buildVersion string) error {
	if buildVersion != "" {
		version = buildVersion
	}
	return rootCmd.Execute()
}

// app bundles the wired services a command needs. Constructed after
// flag parsing so config overrides are in effect.
type app struct {
	cfg      *domain.Config
	indexer  *services.Indexer
	embedder driven.EmbeddingService
	llm      driven.LLMService
}

// newApp validates the configuration and wires the index manager with
// real adapters. With validate set, embedding backend connectivity is
// checked up front so a dead backend fails before any work starts
// instead of partway through an index build.
func newApp(validate bool) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	create := ai.CreateEmbeddingService
	if validate {
		create = ai.CreateAndValidateEmbeddingService
	}
	embedder, err := create(cfg.Embedding)
	if err != nil {
		return nil, err
	}

	source := sourcefs.New(cfg.DocsDir, sourcefs.NewExecRunner())
	indexer := services.NewIndexer(cfg, source, embedder, vectorsqlite.NewProvider())

	return &app{cfg: cfg, indexer: indexer, embedder: embedder}, nil
}

// queryEngine wires retrieval and synthesis over the open index.
// Call only after a successful EnsureIndex. With validate set, LLM
// connectivity is checked before the first question.
func (a *app) queryEngine(validate bool) (*services.QueryEngine, error) {
	create := ai.CreateLLMService
	if validate {
		create = ai.CreateAndValidateLLMService
	}
	llm, err := create(a.cfg.LLM)
	if err != nil {
		return nil, err
	}
	a.llm = llm

	retriever := services.NewRetriever(a.embedder, a.indexer.Store())
	synthesizer := services.NewSynthesizer(llm, a.cfg.LLM)
	return services.NewQueryEngine(retriever, synthesizer, a.cfg), nil
}

// Close releases the app's adapters.
func (a *app) Close() {
	if a.indexer != nil {
		a.indexer.Close()
	}
	if a.llm != nil {
		a.llm.Close()
	}
	if a.embedder != nil {
		a.embedder.Close()
	}
}

// describeIndexOutcome renders the EnsureIndex result for humans.
func describeIndexOutcome(manifest *domain.Manifest, rebuilt bool) string {
	if rebuilt {
		return fmt.Sprintf("Indexed %d documents into %d chunks (%s, %s, %d dims)",
			len(manifest.Files), manifest.TotalChunks,
			manifest.Provider, manifest.Model, manifest.Dimensions)
	}
	return fmt.Sprintf("Reusing existing index: %d documents, %d chunks",
		len(manifest.Files), manifest.TotalChunks)
}
