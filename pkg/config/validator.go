package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	errors = append(errors, validateProvider("llm", c.LLM.Provider, c.LLM.BaseURL, c.LLM.APIKey)...)

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 8192 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 8192",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	// Validate Embedder config
	errors = append(errors, validateProvider("embedder", c.Embedder.Provider, c.Embedder.BaseURL, c.Embedder.APIKey)...)

	if c.Embedder.Dimension < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedder.dimension",
			Message: "dimension must be positive",
		})
	}

	if c.Embedder.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "embedder.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	if c.Embedder.MaxRetries < 0 {
		errors = append(errors, ValidationError{
			Field:   "embedder.max_retries",
			Message: "max_retries must not be negative",
		})
	}

	// Validate Retrieval config
	if c.Retrieval.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.top_k",
			Message: "top_k must be positive",
		})
	}

	if c.Retrieval.SimilarityCutoff < -1 || c.Retrieval.SimilarityCutoff > 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.similarity_cutoff",
			Message: "similarity_cutoff must be between -1 and 1",
		})
	}

	// Validate Processor config
	if c.Processor.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	// Validate Storage config
	switch c.Storage.Driver {
	case StorageFile:
		if c.Storage.Dir == "" {
			errors = append(errors, ValidationError{
				Field:   "storage.dir",
				Message: "storage directory is required",
			})
		}
	case StoragePostgres:
		if c.Storage.DatabaseURL == "" {
			errors = append(errors, ValidationError{
				Field:   "storage.database_url",
				Message: "database URL is required for the postgres driver",
			})
		} else if _, err := url.Parse(c.Storage.DatabaseURL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "storage.database_url",
				Message: "invalid database URL",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "storage.driver",
			Message: fmt.Sprintf("unknown storage driver: %s", c.Storage.Driver),
		})
	}

	if c.Server.RequestTimeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "server.request_timeout",
			Message: "request_timeout must be positive",
		})
	}

	if c.Log.Format != "console" && c.Log.Format != "json" {
		errors = append(errors, ValidationError{
			Field:   "log.format",
			Message: fmt.Sprintf("unknown log format: %s", c.Log.Format),
		})
	}

	return errors
}

func validateProvider(section, provider, baseURL, apiKey string) []ValidationError {
	var errors []ValidationError

	switch provider {
	case ProviderOllama:
		if baseURL == "" {
			errors = append(errors, ValidationError{
				Field:   section + ".base_url",
				Message: "Ollama base URL is required",
			})
		} else if u, err := url.Parse(baseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, ValidationError{
				Field:   section + ".base_url",
				Message: "invalid Ollama base URL",
			})
		}
	case ProviderOpenAI:
		if apiKey == "" {
			errors = append(errors, ValidationError{
				Field:   section + ".api_key",
				Message: "OpenAI API key is required",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   section + ".provider",
			Message: fmt.Sprintf("unknown provider: %s", provider),
		})
	}

	return errors
}
