package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "langdetect"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "LANGDETECT"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader backed by the global viper instance, so that
// flags bound in the root command take part in the merge.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader backed by v.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load loads configuration from files, environment variables, and defaults, then validates it.
func (l *Loader) Load() (*Config, error) {
	return l.LoadWithFile("")
}

// LoadWithFile loads configuration from a specific file path. An empty path
// searches the standard locations instead.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	cfg, err := l.load(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithFileWithoutValidation is LoadWithFile without the final validation.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	return l.load(configFile)
}

func (l *Loader) load(configFile string) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		// a missing file is fine when searching; defaults and env vars still apply
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &config, nil
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for advanced usage.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

// setupEnvironmentVariables configures environment variable handling.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	// training.epochs -> LANGDETECT_TRAINING_EPOCHS
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults sets default values for all configuration options.
func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	l.v.SetDefault("log_level", defaults.LogLevel)
	l.v.SetDefault("verbose", defaults.Verbose)
	l.v.SetDefault("languages", defaults.Languages)

	l.v.SetDefault("model.path", defaults.Model.Path)
	l.v.SetDefault("model.dictionary_path", defaults.Model.DictionaryPath)
	l.v.SetDefault("model.use_dictionary", defaults.Model.UseDictionary)
	l.v.SetDefault("model.embedding_size", defaults.Model.EmbeddingSize)
	l.v.SetDefault("model.attention_size", defaults.Model.AttentionSize)
	l.v.SetDefault("model.hidden_size", defaults.Model.HiddenSize)
	l.v.SetDefault("model.hidden_activation", defaults.Model.HiddenActivation)

	l.v.SetDefault("tokenizer.max_token_length", defaults.Tokenizer.MaxTokenLength)
	l.v.SetDefault("tokenizer.cjk_segmenter", defaults.Tokenizer.CJKSegmenter)
	l.v.SetDefault("tokenizer.cjk_ratio", defaults.Tokenizer.CJKRatio)

	l.v.SetDefault("training.training_path", defaults.Training.TrainingPath)
	l.v.SetDefault("training.validation_path", defaults.Training.ValidationPath)
	l.v.SetDefault("training.test_path", defaults.Training.TestPath)
	l.v.SetDefault("training.max_lines", defaults.Training.MaxLines)
	l.v.SetDefault("training.epochs", defaults.Training.Epochs)
	l.v.SetDefault("training.batch_size", defaults.Training.BatchSize)
	l.v.SetDefault("training.dropout", defaults.Training.Dropout)
	l.v.SetDefault("training.shuffle", defaults.Training.Shuffle)
	l.v.SetDefault("training.seed", defaults.Training.Seed)
	l.v.SetDefault("training.min_relevant_error", defaults.Training.MinRelevantError)
	l.v.SetDefault("training.params_step_size", defaults.Training.ParamsStepSize)
	l.v.SetDefault("training.embeddings_learning_rate", defaults.Training.EmbeddingsLearningRate)
	l.v.SetDefault("training.history_db", defaults.Training.HistoryDB)

	l.v.SetDefault("server.host", defaults.Server.Host)
	l.v.SetDefault("server.port", defaults.Server.Port)
	l.v.SetDefault("server.cors_origin", defaults.Server.CORSOrigin)
	l.v.SetDefault("server.max_body_kb", defaults.Server.MaxBodyKB)
	l.v.SetDefault("server.timeout_sec", defaults.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)
	l.v.SetDefault("server.cache_size", defaults.Server.CacheSize)
	l.v.SetDefault("server.rate_limit", defaults.Server.RateLimit)
	l.v.SetDefault("server.daily_quota_kb", defaults.Server.DailyQuotaKB)
}

// GenerateDefaultConfigFile writes the default configuration as YAML to filename.
func GenerateDefaultConfigFile(filename string) error {
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	data, err := ToYAML(DefaultConfig())
	if err != nil {
		return err
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	return os.WriteFile(filename, data, 0o644)
}

// ToYAML renders cfg as YAML.
func ToYAML(cfg Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to render configuration: %w", err)
	}
	return data, nil
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
		if _, exists := os.LookupEnv("XDG_CONFIG_HOME"); !exists {
			paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
		}
	}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, ConfigFileName))
	}

	return append(paths, filepath.Join("/etc", ConfigFileName))
}
