package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "http", cfg.Server.Mode)
	assert.Equal(t, 10000, cfg.Pipeline.MaxContextTokens)
	assert.Equal(t, 5, cfg.Pipeline.KeepRecent)
	assert.Equal(t, 500, cfg.Pipeline.MaxResponseTokens)
	assert.Equal(t, 0.5, cfg.Pipeline.ResponseTemperature)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.LLMTimeout)
	assert.True(t, cfg.Pipeline.QueryUnderstandingEnabled())
	assert.Equal(t, []string{"gemini", "ollama"}, cfg.LLM.Order)
	assert.Equal(t, "file", cfg.Storage.Backend)
}

func TestParseOverrides(t *testing.T) {
	data := []byte(`
server:
  mode: mcp
pipeline:
  max_context_tokens: 2000
  keep_recent: 3
  query_understanding: false
  llm_timeout: 5s
llm:
  order: [ollama]
  gemini:
    api_key: secret
storage:
  backend: sqlite
`)

	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "mcp", cfg.Server.Mode)
	assert.Equal(t, 2000, cfg.Pipeline.MaxContextTokens)
	assert.Equal(t, 3, cfg.Pipeline.KeepRecent)
	assert.False(t, cfg.Pipeline.QueryUnderstandingEnabled())
	assert.Equal(t, 5*time.Second, cfg.Pipeline.LLMTimeout)
	assert.Equal(t, []string{"ollama"}, cfg.LLM.Order)
	assert.Equal(t, "secret", cfg.Embedding.APIKey)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"unknown backend":  "llm:\n  order: [claude]\n",
		"unknown storage":  "storage:\n  backend: redis\n",
		"unknown mode":     "server:\n  mode: grpc\n",
		"negative keep":    "pipeline:\n  keep_recent: -1\n",
		"malformed yaml":   "pipeline: [",
		"negative buffer":  "audit:\n  buffer_size: -4\n",
		"temperature high": "pipeline:\n  response_temperature: 3\n",
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestLoadFromEnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9090\"\n"), 0o644))
	t.Setenv("QUERYMIND_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
}
