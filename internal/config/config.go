package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	// ProviderHash is an offline deterministic embedder, useful without a model server.
	ProviderHash = "hash"
)

type Config struct {
	ListenAddr      string `env:"LISTEN_ADDR" envDefault:":8080"`
	SystemDataDir   string `env:"SYSTEM_DATA_DIR" envDefault:"./system_data"`
	UploadDir       string `env:"UPLOAD_DIR" envDefault:"./user_uploads"`
	SystemIndexPath string `env:"SYSTEM_INDEX_PATH" envDefault:"./system_index"`
	UserIndexPath   string `env:"USER_INDEX_PATH" envDefault:"./user_index"`

	LLMProvider   string `env:"LLM_PROVIDER" envDefault:"ollama"`
	EmbedProvider string `env:"EMBED_PROVIDER" envDefault:"ollama"`

	OllamaURL        string `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	OllamaModel      string `env:"OLLAMA_MODEL" envDefault:"llama3.2"`
	OllamaEmbedModel string `env:"OLLAMA_EMBED_MODEL" envDefault:"nomic-embed-text"`
	EnsureModels     bool   `env:"ENSURE_MODELS" envDefault:"true"`

	OpenAIKey        string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string `env:"OPENAI_BASE_URL"`
	OpenAIModel      string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIEmbedModel string `env:"OPENAI_EMBED_MODEL" envDefault:"text-embedding-3-small"`

	HashEmbedDim int `env:"HASH_EMBED_DIM" envDefault:"256"`

	ChunkSize     int `env:"CHUNK_SIZE" envDefault:"1000"`
	ChunkOverlap  int `env:"CHUNK_OVERLAP" envDefault:"200"`
	TopK          int `env:"TOP_K" envDefault:"4"`
	QueryVariants int `env:"QUERY_VARIANTS" envDefault:"2"`

	ServiceTimeout time.Duration `env:"SERVICE_TIMEOUT" envDefault:"60s"`
	ServiceRetries uint64        `env:"SERVICE_RETRIES" envDefault:"1"`
	ModelRPS       float64       `env:"MODEL_RPS" envDefault:"0"`
	ModelBurst     int           `env:"MODEL_BURST" envDefault:"1"`

	MaxUploadMB     int64  `env:"MAX_UPLOAD_MB" envDefault:"32"`
	WatchSystemData bool   `env:"WATCH_SYSTEM_DATA" envDefault:"false"`
	MCPEnabled      bool   `env:"MCP_ENABLED" envDefault:"true"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	PromptsFile     string `env:"PROMPTS_FILE"`
}

func Init(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return err
	}
	return cfg.Validate()
}

// Validate rejects combinations that would make ingestion or retrieval misbehave.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, %d), got %d", c.ChunkSize, c.ChunkOverlap)
	}
	if c.TopK < 1 {
		return fmt.Errorf("TOP_K must be at least 1, got %d", c.TopK)
	}
	if c.QueryVariants < 1 {
		return fmt.Errorf("QUERY_VARIANTS must be at least 1, got %d", c.QueryVariants)
	}
	switch c.LLMProvider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	switch c.EmbedProvider {
	case ProviderOllama, ProviderOpenAI, ProviderHash:
	default:
		return fmt.Errorf("unknown EMBED_PROVIDER %q", c.EmbedProvider)
	}
	if c.ServiceTimeout <= 0 {
		return fmt.Errorf("SERVICE_TIMEOUT must be positive, got %s", c.ServiceTimeout)
	}
	return nil
}

// EmbedModelID identifies the embedding model; persisted indexes are stamped with it.
func (c *Config) EmbedModelID() string {
	switch c.EmbedProvider {
	case ProviderOpenAI:
		return ProviderOpenAI + "/" + c.OpenAIEmbedModel
	case ProviderHash:
		return fmt.Sprintf("%s/%d", ProviderHash, c.HashEmbedDim)
	default:
		return ProviderOllama + "/" + c.OllamaEmbedModel
	}
}
