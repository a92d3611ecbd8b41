package config

import (
	"testing"

	"github.com/MeKo-Tech/langdetect/internal/langerr"
	"github.com/MeKo-Tech/langdetect/internal/language"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const infoLevel = "info"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, infoLevel, cfg.LogLevel)
	assert.Equal(t, language.DefaultCodes(), cfg.Languages)
	assert.Equal(t, 50, cfg.Model.EmbeddingSize)
	assert.Equal(t, 50, cfg.Model.AttentionSize)
	assert.Equal(t, 150, cfg.Model.HiddenSize)
	assert.Equal(t, 100, cfg.Tokenizer.MaxTokenLength)
	assert.InDelta(t, 0.40, cfg.Tokenizer.CJKRatio, 1e-12)
	assert.Equal(t, uint64(743), cfg.Training.Seed)
	assert.Equal(t, 8080, cfg.Server.Port)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
		{"no languages", func(c *Config) { c.Languages = nil }},
		{"bad language code", func(c *Config) { c.Languages = []string{"english"} }},
		{"embedding size", func(c *Config) { c.Model.EmbeddingSize = 0 }},
		{"activation", func(c *Config) { c.Model.HiddenActivation = "sigmoid" }},
		{"max token length", func(c *Config) { c.Tokenizer.MaxTokenLength = 0 }},
		{"cjk ratio", func(c *Config) { c.Tokenizer.CJKRatio = 1.5 }},
		{"epochs", func(c *Config) { c.Training.Epochs = 0 }},
		{"batch size", func(c *Config) { c.Training.BatchSize = -1 }},
		{"dropout", func(c *Config) { c.Training.Dropout = 1 }},
		{"max lines", func(c *Config) { c.Training.MaxLines = -3 }},
		{"port", func(c *Config) { c.Server.Port = 70000 }},
		{"body size", func(c *Config) { c.Server.MaxBodyKB = 0 }},
		{"timeout", func(c *Config) { c.Server.TimeoutSec = 0 }},
		{"cache size", func(c *Config) { c.Server.CacheSize = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), langerr.ErrInvalidConfiguration)
		})
	}
}

func TestConversions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Languages = []string{"en", "it"}
	cfg.Tokenizer.MaxTokenLength = 42
	cfg.Model.HiddenSize = 7
	cfg.Training.Epochs = 3
	cfg.Server.CacheSize = 12

	catalog, err := cfg.Catalog()
	require.NoError(t, err)
	assert.Equal(t, []string{"en", "it"}, catalog.Codes())

	h := cfg.ToHyperparameters()
	assert.Equal(t, 42, h.MaxTokenLength)
	assert.Equal(t, 7, h.HiddenSize)

	tc := cfg.ToTrainingConfig()
	assert.Equal(t, 3, tc.Epochs)
	assert.Equal(t, 42, tc.MaxTokenLength)

	assert.Equal(t, 12, cfg.ToDetectorConfig(true).CacheSize)
	assert.Equal(t, 0, cfg.ToDetectorConfig(false).CacheSize)
	assert.Equal(t, 42, cfg.ToDetectorConfig(false).MaxTokenLength)
}

func TestToYAML(t *testing.T) {
	data, err := ToYAML(DefaultConfig())
	require.NoError(t, err)
	assert.Contains(t, string(data), "max_token_length: 100")
	assert.Contains(t, string(data), "log_level: info")
	assert.Contains(t, string(data), "embeddings_learning_rate: 0.1")
}
