// Package file loads application configuration from a TOML file,
// layering defaults underneath and resolving API credentials from the
// environment.
package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/veridian-labs/docquery/internal/core/domain"
)

// DefaultFileName is the config file looked up when no path is given.
const DefaultFileName = "docquery.toml"

// Built-in defaults.
const (
	defaultDocsDir      = "./docs"
	defaultStorageDir   = "./storage"
	defaultChunkSize    = 512
	defaultChunkOverlap = 50
	defaultBatchWorkers = 4
	defaultMaxTokens    = 1024
	defaultTemperature  = 0.1
)

// fileConfig mirrors the TOML layout.
type fileConfig struct {
	DocsDir      string         `toml:"docs_dir"`
	StorageDir   string         `toml:"storage_dir"`
	ChunkSize    int            `toml:"chunk_size"`
	ChunkOverlap int            `toml:"chunk_overlap"`
	TopK         int            `toml:"top_k"`
	ResponseMode string         `toml:"response_mode"`
	BatchWorkers int            `toml:"batch_workers"`
	Embedding    embeddingTable `toml:"embedding"`
	LLM          llmTable       `toml:"llm"`
}

type embeddingTable struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	BaseURL  string `toml:"base_url"`
}

type llmTable struct {
	Provider    string  `toml:"provider"`
	Model       string  `toml:"model"`
	BaseURL     string  `toml:"base_url"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float64 `toml:"temperature"`
}

// Defaults returns the configuration used when no file is present:
// local Ollama for embeddings, Anthropic for synthesis.
func Defaults() *domain.Config {
	return &domain.Config{
		DocsDir:    defaultDocsDir,
		StorageDir: defaultStorageDir,
		Chunking: domain.ChunkParams{
			Size:    defaultChunkSize,
			Overlap: defaultChunkOverlap,
		},
		TopK:         domain.DefaultTopK,
		ResponseMode: domain.DefaultResponseMode,
		BatchWorkers: defaultBatchWorkers,
		Embedding: domain.EmbeddingSettings{
			Provider: domain.AIProviderOllama,
		},
		LLM: domain.LLMSettings{
			Provider:    domain.AIProviderAnthropic,
			MaxTokens:   defaultMaxTokens,
			Temperature: defaultTemperature,
		},
	}
}

// Load reads the configuration from path, fills unset fields with
// defaults and resolves API keys from the environment. A missing file
// is not an error; the defaults apply. path may be empty, in which
// case DefaultFileName in the working directory is used.
func Load(path string) (*domain.Config, error) {
	if path == "" {
		path = DefaultFileName
	}

	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// No file; defaults and environment only.
	case err != nil:
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrConfiguration, path, err)
	default:
		var fc fileConfig
		if err := toml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrConfiguration, path, err)
		}
		apply(cfg, &fc)
	}

	resolveCredentials(cfg)
	return cfg, nil
}

// Save writes the configuration as TOML to path, creating parent
// directories as needed. API keys are never written.
func Save(path string, cfg *domain.Config) error {
	fc := fileConfig{
		DocsDir:      cfg.DocsDir,
		StorageDir:   cfg.StorageDir,
		ChunkSize:    cfg.Chunking.Size,
		ChunkOverlap: cfg.Chunking.Overlap,
		TopK:         cfg.TopK,
		ResponseMode: cfg.ResponseMode.String(),
		BatchWorkers: cfg.BatchWorkers,
		Embedding: embeddingTable{
			Provider: cfg.Embedding.Provider.String(),
			Model:    cfg.Embedding.Model,
			BaseURL:  cfg.Embedding.BaseURL,
		},
		LLM: llmTable{
			Provider:    cfg.LLM.Provider.String(),
			Model:       cfg.LLM.Model,
			BaseURL:     cfg.LLM.BaseURL,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
		},
	}

	data, err := toml.Marshal(fc)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// apply overlays non-zero file values onto the defaults.
func apply(cfg *domain.Config, fc *fileConfig) {
	if fc.DocsDir != "" {
		cfg.DocsDir = fc.DocsDir
	}
	if fc.StorageDir != "" {
		cfg.StorageDir = fc.StorageDir
	}
	if fc.ChunkSize > 0 {
		cfg.Chunking.Size = fc.ChunkSize
	}
	if fc.ChunkOverlap > 0 {
		cfg.Chunking.Overlap = fc.ChunkOverlap
	}
	if fc.TopK > 0 {
		cfg.TopK = fc.TopK
	}
	if fc.ResponseMode != "" {
		cfg.ResponseMode = domain.ResponseMode(fc.ResponseMode)
	}
	if fc.BatchWorkers > 0 {
		cfg.BatchWorkers = fc.BatchWorkers
	}

	if fc.Embedding.Provider != "" {
		cfg.Embedding.Provider = domain.AIProvider(fc.Embedding.Provider)
	}
	if fc.Embedding.Model != "" {
		cfg.Embedding.Model = fc.Embedding.Model
	}
	if fc.Embedding.BaseURL != "" {
		cfg.Embedding.BaseURL = fc.Embedding.BaseURL
	}

	if fc.LLM.Provider != "" {
		cfg.LLM.Provider = domain.AIProvider(fc.LLM.Provider)
	}
	if fc.LLM.Model != "" {
		cfg.LLM.Model = fc.LLM.Model
	}
	if fc.LLM.BaseURL != "" {
		cfg.LLM.BaseURL = fc.LLM.BaseURL
	}
	if fc.LLM.MaxTokens > 0 {
		cfg.LLM.MaxTokens = fc.LLM.MaxTokens
	}
	if fc.LLM.Temperature > 0 {
		cfg.LLM.Temperature = fc.LLM.Temperature
	}
}

// resolveCredentials fills API keys from the environment based on each
// provider's credential variable.
func resolveCredentials(cfg *domain.Config) {
	if env := cfg.Embedding.Provider.CredentialEnvVar(); env != "" {
		cfg.Embedding.APIKey = os.Getenv(env)
	}
	if env := cfg.LLM.Provider.CredentialEnvVar(); env != "" {
		cfg.LLM.APIKey = os.Getenv(env)
	}
}
