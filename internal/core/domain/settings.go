package domain

import "fmt"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is the Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// CredentialEnvVar returns the environment variable the provider's
// API key is read from, or "" for local providers.
func (p AIProvider) CredentialEnvVar() string {
	switch p {
	case AIProviderOpenAI:
		return "OPENAI_API_KEY"
	case AIProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama or compatible APIs).
	BaseURL string

	// APIKey is the API key, resolved from the environment.
	APIKey string
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint override.
	BaseURL string

	// APIKey is the API key, resolved from the environment.
	APIKey string

	// MaxTokens caps the synthesized answer length.
	MaxTokens int

	// Temperature controls sampling randomness.
	Temperature float64
}

// Config is the explicit application configuration passed into service
// construction. There is no process-global settings object.
type Config struct {
	// DocsDir is the corpus root scanned for source documents.
	DocsDir string

	// StorageDir is the index persistence directory.
	StorageDir string

	// Chunking are the chunk parameters for index builds.
	Chunking ChunkParams

	// TopK is the default retrieval depth.
	TopK int

	// ResponseMode is the default synthesis mode.
	ResponseMode ResponseMode

	// Embedding configures the embedding provider.
	Embedding EmbeddingSettings

	// LLM configures the answer synthesis provider.
	LLM LLMSettings

	// BatchWorkers bounds the batch worker pool.
	BatchWorkers int
}

// Validate checks the configuration and reports the first problem with
// enough context to fix it, naming missing environment variables.
func (c *Config) Validate() error {
	if c.DocsDir == "" {
		return fmt.Errorf("%w: docs directory is not set", ErrConfiguration)
	}
	if c.StorageDir == "" {
		return fmt.Errorf("%w: storage directory is not set", ErrConfiguration)
	}
	if !c.Chunking.Valid() {
		return fmt.Errorf("%w: chunk size (%d) must be greater than overlap (%d), overlap must be >= 0",
			ErrConfiguration, c.Chunking.Size, c.Chunking.Overlap)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", ErrConfiguration, c.TopK)
	}
	if !c.ResponseMode.IsValid() {
		return fmt.Errorf("%w: unknown response mode %q", ErrConfiguration, c.ResponseMode)
	}
	if !c.Embedding.Provider.IsValid() {
		return fmt.Errorf("%w: unknown embedding provider %q", ErrConfiguration, c.Embedding.Provider)
	}
	if c.Embedding.Provider.RequiresAPIKey() && c.Embedding.APIKey == "" {
		return fmt.Errorf("%w: %s is not set (required by embedding provider %q)",
			ErrConfiguration, c.Embedding.Provider.CredentialEnvVar(), c.Embedding.Provider)
	}
	if !c.LLM.Provider.IsValid() {
		return fmt.Errorf("%w: unknown llm provider %q", ErrConfiguration, c.LLM.Provider)
	}
	if c.LLM.Provider.RequiresAPIKey() && c.LLM.APIKey == "" {
		return fmt.Errorf("%w: %s is not set (required by llm provider %q)",
			ErrConfiguration, c.LLM.Provider.CredentialEnvVar(), c.LLM.Provider)
	}
	if c.BatchWorkers <= 0 {
		return fmt.Errorf("%w: batch workers must be positive, got %d", ErrConfiguration, c.BatchWorkers)
	}
	return nil
}
