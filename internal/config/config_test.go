package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_Defaults(t *testing.T) {
	var cfg Config
	require.NoError(t, Init(&cfg))

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.Equal(t, 2, cfg.QueryVariants)
	assert.Equal(t, 60*time.Second, cfg.ServiceTimeout)
	assert.Equal(t, uint64(1), cfg.ServiceRetries)
	assert.Equal(t, "ollama/nomic-embed-text", cfg.EmbedModelID())
}

func TestInit_EnvOverrides(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("CHUNK_OVERLAP", "50")
	t.Setenv("EMBED_PROVIDER", "hash")
	t.Setenv("HASH_EMBED_DIM", "32")
	t.Setenv("SERVICE_TIMEOUT", "5s")

	var cfg Config
	require.NoError(t, Init(&cfg))

	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, 50, cfg.ChunkOverlap)
	assert.Equal(t, 5*time.Second, cfg.ServiceTimeout)
	assert.Equal(t, "hash/32", cfg.EmbedModelID())
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		var cfg Config
		require.NoError(t, Init(&cfg))
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"overlap equals size", func(c *Config) { c.ChunkOverlap = c.ChunkSize }},
		{"overlap larger than size", func(c *Config) { c.ChunkOverlap = c.ChunkSize + 1 }},
		{"negative overlap", func(c *Config) { c.ChunkOverlap = -1 }},
		{"zero size", func(c *Config) { c.ChunkSize = 0 }},
		{"zero top k", func(c *Config) { c.TopK = 0 }},
		{"zero variants", func(c *Config) { c.QueryVariants = 0 }},
		{"unknown llm provider", func(c *Config) { c.LLMProvider = "hash" }},
		{"unknown embed provider", func(c *Config) { c.EmbedProvider = "cohere" }},
		{"zero timeout", func(c *Config) { c.ServiceTimeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadPrompts(t *testing.T) {
	t.Run("defaults without file", func(t *testing.T) {
		p, err := LoadPrompts("")
		require.NoError(t, err)
		assert.Equal(t, DefaultPrompts(), p)
	})

	t.Run("partial override", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prompts.yaml")
		require.NoError(t, os.WriteFile(path, []byte("answer: |\n  Context: {context}\n  Q: {question}\n"), 0644))

		p, err := LoadPrompts(path)
		require.NoError(t, err)
		assert.Equal(t, DefaultMultiQueryPrompt, p.MultiQuery)
		assert.Equal(t, "Context: {context}\nQ: {question}\n", p.Answer)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadPrompts(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
