package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	StorageFile     = "file"
	StoragePostgres = "postgres"

	DefaultNoAnswerMessage = "関連する過去の回答がみつかりませんでした。エンジニアに問い合わせてください。"
)

type Config struct {
	LLM struct {
		Provider    string        `yaml:"provider"`
		BaseURL     string        `yaml:"base_url"`
		APIKey      string        `yaml:"api_key"`
		Model       string        `yaml:"model"`
		MaxTokens   int           `yaml:"max_tokens"`
		Temperature float64       `yaml:"temperature"`
		Timeout     time.Duration `yaml:"timeout"`
	} `yaml:"llm"`

	Embedder struct {
		Provider   string  `yaml:"provider"`
		BaseURL    string  `yaml:"base_url"`
		APIKey     string  `yaml:"api_key"`
		Model      string  `yaml:"model"`
		Dimension  int     `yaml:"dimension"`
		RateLimit  float64 `yaml:"rate_limit"`
		MaxRetries int     `yaml:"max_retries"`
	} `yaml:"embedder"`

	Retrieval struct {
		TopK             int     `yaml:"top_k"`
		SimilarityCutoff float32 `yaml:"similarity_cutoff"`
	} `yaml:"retrieval"`

	Processor struct {
		ChunkSize int `yaml:"chunk_size"`
	} `yaml:"processor"`

	Source struct {
		Dir string `yaml:"dir"`
	} `yaml:"source"`

	Storage struct {
		Driver      string `yaml:"driver"`
		Dir         string `yaml:"dir"`
		DatabaseURL string `yaml:"database_url"`
		TableName   string `yaml:"table_name"`
	} `yaml:"storage"`

	Server struct {
		Addr               string        `yaml:"addr"`
		RequestTimeout     time.Duration `yaml:"request_timeout"`
		NoAnswerMessage    string        `yaml:"no_answer_message"`
		QATemplateFile     string        `yaml:"qa_template_file"`
		RefineTemplateFile string        `yaml:"refine_template_file"`
	} `yaml:"server"`

	Log struct {
		Debug  bool   `yaml:"debug"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/ragqa/config.yaml"),
			"/etc/ragqa/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := newConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(config)
	applyDefaults(config)

	return config, nil
}

func getDefaultConfig() (*Config, error) {
	config := newConfig()
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

// newConfig presets the fields for which zero is a meaningful setting, so
// that only keys absent from the file keep these values.
func newConfig() *Config {
	config := &Config{}
	config.LLM.Temperature = 0.1
	config.Embedder.MaxRetries = 2
	config.Retrieval.SimilarityCutoff = 0.88
	return config
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = ProviderOllama
	}
	if config.LLM.Model == "" {
		if config.LLM.Provider == ProviderOpenAI {
			config.LLM.Model = "gpt-4o-mini"
		} else {
			config.LLM.Model = "mistral"
		}
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.BaseURL == "" && config.LLM.Provider == ProviderOllama {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.Timeout == 0 {
		config.LLM.Timeout = 60 * time.Second
	}

	if config.Embedder.Provider == "" {
		config.Embedder.Provider = ProviderOllama
	}
	if config.Embedder.Model == "" {
		if config.Embedder.Provider == ProviderOpenAI {
			config.Embedder.Model = "text-embedding-3-small"
		} else {
			config.Embedder.Model = "nomic-embed-text:latest"
		}
	}
	if config.Embedder.BaseURL == "" && config.Embedder.Provider == ProviderOllama {
		config.Embedder.BaseURL = "http://localhost:11434"
	}
	if config.Embedder.Dimension == 0 {
		if config.Embedder.Provider == ProviderOpenAI {
			config.Embedder.Dimension = 1536
		} else {
			config.Embedder.Dimension = 768
		}
	}
	if config.Embedder.RateLimit == 0 {
		config.Embedder.RateLimit = 5.0
	}

	if config.Retrieval.TopK == 0 {
		config.Retrieval.TopK = 3
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 1000
	}

	if config.Source.Dir == "" {
		config.Source.Dir = "source_data"
	}

	if config.Storage.Driver == "" {
		config.Storage.Driver = StorageFile
	}
	if config.Storage.Dir == "" {
		config.Storage.Dir = "storage"
	}
	if config.Storage.TableName == "" {
		config.Storage.TableName = "qa_nodes"
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
	if config.Server.RequestTimeout == 0 {
		config.Server.RequestTimeout = 2 * time.Minute
	}
	if config.Server.NoAnswerMessage == "" {
		config.Server.NoAnswerMessage = DefaultNoAnswerMessage
	}

	if config.Log.Format == "" {
		config.Log.Format = "console"
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		if config.LLM.Provider == "" || config.LLM.Provider == ProviderOllama {
			config.LLM.BaseURL = baseURL
		}
		if config.Embedder.Provider == "" || config.Embedder.Provider == ProviderOllama {
			config.Embedder.BaseURL = baseURL
		}
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		if config.LLM.APIKey == "" {
			config.LLM.APIKey = apiKey
		}
		if config.Embedder.APIKey == "" {
			config.Embedder.APIKey = apiKey
		}
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Storage.DatabaseURL = dbURL
	}
	if dir := os.Getenv("RAGQA_SOURCE_DIR"); dir != "" {
		config.Source.Dir = dir
	}
	if dir := os.Getenv("RAGQA_STORAGE_DIR"); dir != "" {
		config.Storage.Dir = dir
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Addr = ":" + port
	}
}
