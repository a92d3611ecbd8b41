package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/MeKo-Tech/langdetect/internal/detector"
	"github.com/MeKo-Tech/langdetect/internal/language"
	"github.com/MeKo-Tech/langdetect/internal/langerr"
	"github.com/MeKo-Tech/langdetect/internal/model"
	"github.com/MeKo-Tech/langdetect/internal/tokenizer"
	"github.com/MeKo-Tech/langdetect/internal/training"
)

// Default artifact locations.
const (
	DefaultModelPath      = "models/langdetect.model"
	DefaultDictionaryPath = "models/langdetect.dict"
	DefaultHistoryDB      = "langdetect-history.db"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel:  "info",
		Verbose:   false,
		Languages: language.DefaultCodes(),
		Model:     defaultModelConfig(),
		Tokenizer: TokenizerConfig{
			MaxTokenLength: model.DefaultHyperparameters().MaxTokenLength,
			CJKSegmenter:   false,
			CJKRatio:       tokenizer.DefaultCJKRatio,
		},
		Training: defaultTrainingConfig(),
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxBodyKB:       256,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			CacheSize:       10000,
		},
	}
}

// defaultModelConfig returns default model configuration.
func defaultModelConfig() ModelConfig {
	h := model.DefaultHyperparameters()
	return ModelConfig{
		Path:             DefaultModelPath,
		DictionaryPath:   DefaultDictionaryPath,
		EmbeddingSize:    h.EmbeddingSize,
		AttentionSize:    h.AttentionSize,
		HiddenSize:       h.HiddenSize,
		HiddenActivation: h.HiddenActivation,
	}
}

// defaultTrainingConfig returns default training configuration.
func defaultTrainingConfig() TrainingConfig {
	cfg := training.DefaultConfig()
	return TrainingConfig{
		Epochs:                 cfg.Epochs,
		BatchSize:              cfg.BatchSize,
		Shuffle:                cfg.Shuffle,
		Seed:                   cfg.Seed,
		MinRelevantError:       cfg.MinRelevantError,
		ParamsStepSize:         cfg.ParamsStepSize,
		EmbeddingsLearningRate: cfg.EmbeddingsLearningRate,
		HistoryDB:              DefaultHistoryDB,
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return invalid("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if _, err := c.Catalog(); err != nil {
		return err
	}
	if err := c.ToHyperparameters().Validate(); err != nil {
		return err
	}
	if err := c.ToTrainingConfig().Validate(); err != nil {
		return err
	}

	if c.Tokenizer.CJKRatio <= 0 || c.Tokenizer.CJKRatio > 1 {
		return invalid("invalid tokenizer.cjk_ratio: %.2f (must be in (0, 1])", c.Tokenizer.CJKRatio)
	}
	if c.Training.Dropout < 0 || c.Training.Dropout >= 1 {
		return invalid("invalid training.dropout: %.2f (must be in [0, 1))", c.Training.Dropout)
	}
	if c.Training.MaxLines < 0 {
		return invalid("invalid training.max_lines: %d (must not be negative)", c.Training.MaxLines)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return invalid("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxBodyKB <= 0 {
		return invalid("invalid max body size: %d (must be positive)", c.Server.MaxBodyKB)
	}
	if c.Server.TimeoutSec <= 0 {
		return invalid("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.CacheSize < 0 || c.Server.RateLimit < 0 || c.Server.DailyQuotaKB < 0 {
		return invalid("server cache_size, rate_limit and daily_quota_kb must not be negative")
	}

	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", langerr.ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}

// Catalog builds the language catalog from the configured codes.
func (c *Config) Catalog() (*language.Catalog, error) {
	return language.NewCatalog(c.Languages...)
}

// ToHyperparameters converts to model.Hyperparameters.
func (c *Config) ToHyperparameters() model.Hyperparameters {
	return model.Hyperparameters{
		EmbeddingSize:    c.Model.EmbeddingSize,
		AttentionSize:    c.Model.AttentionSize,
		HiddenSize:       c.Model.HiddenSize,
		MaxTokenLength:   c.Tokenizer.MaxTokenLength,
		HiddenActivation: c.Model.HiddenActivation,
	}
}

// ToTrainingConfig converts to training.Config.
func (c *Config) ToTrainingConfig() training.Config {
	return training.Config{
		Epochs:                 c.Training.Epochs,
		BatchSize:              c.Training.BatchSize,
		MaxTokenLength:         c.Tokenizer.MaxTokenLength,
		Shuffle:                c.Training.Shuffle,
		Seed:                   c.Training.Seed,
		MinRelevantError:       c.Training.MinRelevantError,
		ParamsStepSize:         c.Training.ParamsStepSize,
		EmbeddingsLearningRate: c.Training.EmbeddingsLearningRate,
	}
}

// ToDetectorConfig converts to detector.Config. The token cache is only
// enabled when withCache is set, i.e. for a model that no longer trains.
func (c *Config) ToDetectorConfig(withCache bool) detector.Config {
	cfg := detector.DefaultConfig()
	cfg.MaxTokenLength = c.Tokenizer.MaxTokenLength
	if withCache {
		cfg.CacheSize = c.Server.CacheSize
	}
	return cfg
}
