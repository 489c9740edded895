package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{"OLLAMA_BASE_URL", "OPENAI_API_KEY", "DATABASE_URL", "RAGQA_SOURCE_DIR", "RAGQA_STORAGE_DIR", "PORT"} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig(t *testing.T) {
	clearEnv(t)

	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
llm:
  provider: "ollama"
  base_url: "http://localhost:11434"
  model: "llama3"
  max_tokens: 1000
  temperature: 0.5
  timeout: 30s

embedder:
  provider: "ollama"
  model: "nomic-embed-text"
  dimension: 768
  rate_limit: 2.5

retrieval:
  top_k: 5
  similarity_cutoff: 0.8

processor:
  chunk_size: 500

source:
  dir: "qa"

storage:
  driver: "postgres"
  database_url: "postgres://localhost:5432/test"
  table_name: "test_nodes"

server:
  addr: ":9000"
  request_timeout: 45s
  no_answer_message: "nothing found"
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:11434", config.LLM.BaseURL)
	assert.Equal(t, "llama3", config.LLM.Model)
	assert.Equal(t, 1000, config.LLM.MaxTokens)
	assert.Equal(t, 0.5, config.LLM.Temperature)
	assert.Equal(t, 30*time.Second, config.LLM.Timeout)
	assert.Equal(t, "http://localhost:11434", config.Embedder.BaseURL)
	assert.Equal(t, 2.5, config.Embedder.RateLimit)
	assert.Equal(t, 5, config.Retrieval.TopK)
	assert.Equal(t, float32(0.8), config.Retrieval.SimilarityCutoff)
	assert.Equal(t, 500, config.Processor.ChunkSize)
	assert.Equal(t, "qa", config.Source.Dir)
	assert.Equal(t, StoragePostgres, config.Storage.Driver)
	assert.Equal(t, "test_nodes", config.Storage.TableName)
	assert.Equal(t, ":9000", config.Server.Addr)
	assert.Equal(t, 45*time.Second, config.Server.RequestTimeout)
	assert.Equal(t, "nothing found", config.Server.NoAnswerMessage)
	assert.Empty(t, config.Validate())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	clearEnv(t)

	config, err := getDefaultConfig()
	require.NoError(t, err)

	assert.Equal(t, 3, config.Retrieval.TopK)
	assert.Equal(t, float32(0.88), config.Retrieval.SimilarityCutoff)
	assert.Equal(t, "source_data", config.Source.Dir)
	assert.Equal(t, "storage", config.Storage.Dir)
	assert.Equal(t, StorageFile, config.Storage.Driver)
	assert.Equal(t, DefaultNoAnswerMessage, config.Server.NoAnswerMessage)
	assert.Equal(t, "console", config.Log.Format)
	assert.Equal(t, ProviderOllama, config.LLM.Provider)
	assert.Equal(t, "nomic-embed-text:latest", config.Embedder.Model)
	assert.Empty(t, config.Validate())
}

func TestOpenAIDefaults(t *testing.T) {
	clearEnv(t)

	config := &Config{}
	config.LLM.Provider = ProviderOpenAI
	config.Embedder.Provider = ProviderOpenAI
	applyDefaults(config)

	assert.Equal(t, "gpt-4o-mini", config.LLM.Model)
	assert.Equal(t, "text-embedding-3-small", config.Embedder.Model)
	assert.Equal(t, 1536, config.Embedder.Dimension)
	assert.Empty(t, config.LLM.BaseURL)

	errs := config.Validate()
	require.Len(t, errs, 2)
	assert.Equal(t, "llm.api_key", errs[0].Field)
	assert.Equal(t, "embedder.api_key", errs[1].Field)
}

func TestConfigValidation(t *testing.T) {
	clearEnv(t)

	valid, err := getDefaultConfig()
	require.NoError(t, err)

	invalid, err := getDefaultConfig()
	require.NoError(t, err)
	invalid.LLM.BaseURL = "invalid-url"
	invalid.LLM.MaxTokens = 10000
	invalid.LLM.Temperature = 3.0
	invalid.Retrieval.TopK = -1
	invalid.Storage.Driver = "s3"
	invalid.Log.Format = "xml"

	tests := []struct {
		name          string
		config        *Config
		expectedErrs  int
		errorMessages []string
	}{
		{
			name:         "valid config",
			config:       valid,
			expectedErrs: 0,
		},
		{
			name:         "invalid config",
			config:       invalid,
			expectedErrs: 6,
			errorMessages: []string{
				"llm.base_url: invalid Ollama base URL",
				"llm.max_tokens: max_tokens must be between 1 and 8192",
				"llm.temperature: temperature must be between 0 and 2",
				"retrieval.top_k: top_k must be positive",
				"storage.driver: unknown storage driver: s3",
				"log.format: unknown log format: xml",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errors := tt.config.Validate()
			assert.Len(t, errors, tt.expectedErrs)

			for i, msg := range tt.errorMessages {
				assert.Contains(t, errors[i].Error(), msg)
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OLLAMA_BASE_URL", "http://env-ollama:11434")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DATABASE_URL", "postgres://env-db:5432/test")
	t.Setenv("RAGQA_STORAGE_DIR", "/var/lib/ragqa")
	t.Setenv("PORT", "9090")

	config := &Config{}
	mergeWithEnv(config)

	assert.Equal(t, "http://env-ollama:11434", config.LLM.BaseURL)
	assert.Equal(t, "http://env-ollama:11434", config.Embedder.BaseURL)
	assert.Equal(t, "sk-test", config.LLM.APIKey)
	assert.Equal(t, "sk-test", config.Embedder.APIKey)
	assert.Equal(t, "postgres://env-db:5432/test", config.Storage.DatabaseURL)
	assert.Equal(t, "/var/lib/ragqa", config.Storage.Dir)
	assert.Equal(t, ":9090", config.Server.Addr)
}

func TestLoadConfigKeepsExplicitZeros(t *testing.T) {
	clearEnv(t)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configData := `
llm:
  temperature: 0
embedder:
  max_retries: 0
retrieval:
  similarity_cutoff: 0
`
	require.NoError(t, os.WriteFile(configPath, []byte(configData), 0644))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, 0.0, config.LLM.Temperature)
	assert.Equal(t, 0, config.Embedder.MaxRetries)
	assert.Equal(t, float32(0), config.Retrieval.SimilarityCutoff)
	assert.Empty(t, config.Validate())
}

func TestLoadConfigAbsentKeysKeepDefaults(t *testing.T) {
	clearEnv(t)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("retrieval:\n  top_k: 4\n"), 0644))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, 4, config.Retrieval.TopK)
	assert.Equal(t, 0.1, config.LLM.Temperature)
	assert.Equal(t, 2, config.Embedder.MaxRetries)
	assert.Equal(t, float32(0.88), config.Retrieval.SimilarityCutoff)
}
