package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

const defaultPath = "config.yaml"

type Config struct {
	Log       Log       `yaml:"log"`
	Server    Server    `yaml:"server"`
	Pipeline  Pipeline  `yaml:"pipeline"`
	LLM       LLM       `yaml:"llm"`
	Storage   Storage   `yaml:"storage"`
	Audit     Audit     `yaml:"audit"`
	Embedding Embedding `yaml:"embedding"`
}

type Log struct {
	// Telegram logging config
	Telegram TelegramLog `yaml:"telegram"`
}

type TelegramLog struct {
	// Chat bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Chat ID to send messages to
	ChatID string `yaml:"chat_id" example:"1001234567890"`
}

type Server struct {
	// HTTP listen address
	Addr string `yaml:"addr" example:":8080" validate:"required"`
	// Transport to serve: http or mcp (stdio)
	Mode string `yaml:"mode" example:"http" validate:"oneof=http mcp"`
}

type Pipeline struct {
	// Token threshold that triggers summarization
	MaxContextTokens int `yaml:"max_context_tokens" example:"10000" validate:"gt=0"`
	// Messages kept verbatim after summarization
	KeepRecent int `yaml:"keep_recent" example:"5" validate:"gte=0"`
	// Output token cap for answer generation
	MaxResponseTokens int `yaml:"max_response_tokens" example:"500" validate:"gt=0"`
	// Sampling temperature for answer generation
	ResponseTemperature float64 `yaml:"response_temperature" example:"0.5" validate:"gte=0,lte=2"`
	// Run spelling, ambiguity, answerability and refinement stages
	QueryUnderstanding *bool `yaml:"query_understanding" example:"true"`
	// Upper bound for a single LLM call
	LLMTimeout time.Duration `yaml:"llm_timeout" example:"30s" validate:"gt=0"`
	// Upper bound for a single storage call
	StorageTimeout time.Duration `yaml:"storage_timeout" example:"5s" validate:"gt=0"`
	// Model name for tiktoken based counting, empty means the chars/4 heuristic
	TokenModel string `yaml:"token_model" example:"gpt-4o"`
	// System prompt override for answer generation
	SystemPrompt string `yaml:"system_prompt"`
}

// QueryUnderstandingEnabled defaults to true when the flag is absent.
func (p Pipeline) QueryUnderstandingEnabled() bool {
	return p.QueryUnderstanding == nil || *p.QueryUnderstanding
}

type LLM struct {
	// Backends tried in order, the first one is primary
	Order []string `yaml:"order" example:"[gemini, ollama]" validate:"min=1,dive,oneof=gemini ollama openai"`
	// Gemini API settings
	Gemini Gemini `yaml:"gemini"`
	// Ollama settings
	Ollama Ollama `yaml:"ollama"`
	// OpenAI compatible endpoint settings
	OpenAI OpenAI `yaml:"openai"`
}

type Gemini struct {
	// Google AI Studio API key
	APIKey string `yaml:"api_key" example:"AIzaSyA-abc123"`
	// Model name
	Model string `yaml:"model" example:"gemini-2.0-flash"`
}

type Ollama struct {
	// Ollama server url
	BaseURL string `yaml:"base_url" example:"http://localhost:11434"`
	// Main model
	Model string `yaml:"model" example:"llama3.2"`
	// Small model for cheap rewrites, falls back to Model
	LightweightModel string `yaml:"lightweight_model" example:"qwen2.5:0.5b"`
}

type OpenAI struct {
	// OpenAI base url
	BaseURL string `yaml:"base_url" example:"https://openrouter.ai/api/v1"`
	// OpenAI token
	Token string `yaml:"token" example:"sk-proj-abc123456789DEF789ghi012JKL345mno678PQR901stu234VWX"`
	// OpenAI model
	Model string `yaml:"model" example:"deepseek/deepseek-chat-v3-0324:free"`
}

type Storage struct {
	// Session store backend
	Backend string `yaml:"backend" example:"file" validate:"oneof=memory file sqlite"`
	// Directory for the file backend
	Dir string `yaml:"dir" example:"data/sessions"`
	// Database path for the sqlite backend
	SQLitePath string `yaml:"sqlite_path" example:"data/sessions.db"`
}

type Audit struct {
	// Directory for JSONL audit logs, empty disables them
	Dir string `yaml:"dir" example:"data/logs"`
	// Pending records before new ones are dropped
	BufferSize int `yaml:"buffer_size" example:"256" validate:"gte=0"`
}

type Embedding struct {
	// Use embeddings for prior query similarity
	Enabled bool `yaml:"enabled" example:"false"`
	// Google AI Studio API key, defaults to llm.gemini.api_key
	APIKey string `yaml:"api_key"`
	// Embedding model
	Model string `yaml:"model" example:"gemini-embedding-001"`
}

// Load reads the file named by QUERYMIND_CONFIG, or config.yaml.
func Load() (*Config, error) {
	path := os.Getenv("QUERYMIND_CONFIG")
	if path == "" {
		path = defaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var result Config

	if err := yaml.Unmarshal(data, &result); err != nil {
		return nil, oops.Errorf("failed to parse YAML config: %w", err)
	}

	applyDefaults(&result)

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	return &result, nil
}

func applyDefaults(c *Config) {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "http"
	}

	if c.Pipeline.MaxContextTokens == 0 {
		c.Pipeline.MaxContextTokens = 10000
	}
	if c.Pipeline.KeepRecent == 0 {
		c.Pipeline.KeepRecent = 5
	}
	if c.Pipeline.MaxResponseTokens == 0 {
		c.Pipeline.MaxResponseTokens = 500
	}
	if c.Pipeline.ResponseTemperature == 0 {
		c.Pipeline.ResponseTemperature = 0.5
	}
	if c.Pipeline.LLMTimeout == 0 {
		c.Pipeline.LLMTimeout = 30 * time.Second
	}
	if c.Pipeline.StorageTimeout == 0 {
		c.Pipeline.StorageTimeout = 5 * time.Second
	}

	if len(c.LLM.Order) == 0 {
		c.LLM.Order = []string{"gemini", "ollama"}
	}
	if c.LLM.Gemini.Model == "" {
		c.LLM.Gemini.Model = "gemini-2.0-flash"
	}
	if c.LLM.Ollama.BaseURL == "" {
		c.LLM.Ollama.BaseURL = "http://localhost:11434"
	}
	if c.LLM.Ollama.Model == "" {
		c.LLM.Ollama.Model = "llama3.2"
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = "file"
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = "data/sessions"
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "data/sessions.db"
	}

	if c.Audit.BufferSize == 0 {
		c.Audit.BufferSize = 256
	}

	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = c.LLM.Gemini.APIKey
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "gemini-embedding-001"
	}
}
