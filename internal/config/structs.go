//nolint:lll
package config

// Config represents the complete configuration for the langdetect application.
// It covers every command (detect, train, evaluate, dictionary, serve, history) and
// supports loading from configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel  string   `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose   bool     `mapstructure:"verbose" yaml:"verbose" json:"verbose"`
	Languages []string `mapstructure:"languages" yaml:"languages" json:"languages"`

	// Model artifacts and hyperparameters
	Model ModelConfig `mapstructure:"model" yaml:"model" json:"model"`

	// Tokenization
	Tokenizer TokenizerConfig `mapstructure:"tokenizer" yaml:"tokenizer" json:"tokenizer"`

	// Training loop (for train command)
	Training TrainingConfig `mapstructure:"training" yaml:"training" json:"training"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// ModelConfig contains model artifact and shape settings.
type ModelConfig struct {
	Path             string `mapstructure:"path" yaml:"path" json:"path"`
	DictionaryPath   string `mapstructure:"dictionary_path" yaml:"dictionary_path" json:"dictionary_path"`
	UseDictionary    bool   `mapstructure:"use_dictionary" yaml:"use_dictionary" json:"use_dictionary"`
	EmbeddingSize    int    `mapstructure:"embedding_size" yaml:"embedding_size" json:"embedding_size"`
	AttentionSize    int    `mapstructure:"attention_size" yaml:"attention_size" json:"attention_size"`
	HiddenSize       int    `mapstructure:"hidden_size" yaml:"hidden_size" json:"hidden_size"`
	HiddenActivation string `mapstructure:"hidden_activation" yaml:"hidden_activation" json:"hidden_activation"`
}

// TokenizerConfig contains tokenization settings.
type TokenizerConfig struct {
	MaxTokenLength int     `mapstructure:"max_token_length" yaml:"max_token_length" json:"max_token_length"`
	CJKSegmenter   bool    `mapstructure:"cjk_segmenter" yaml:"cjk_segmenter" json:"cjk_segmenter"`
	CJKRatio       float64 `mapstructure:"cjk_ratio" yaml:"cjk_ratio" json:"cjk_ratio"`
}

// TrainingConfig contains dataset locations and training loop settings.
type TrainingConfig struct {
	TrainingPath   string `mapstructure:"training_path" yaml:"training_path" json:"training_path"`
	ValidationPath string `mapstructure:"validation_path" yaml:"validation_path" json:"validation_path"`
	TestPath       string `mapstructure:"test_path" yaml:"test_path" json:"test_path"`
	MaxLines       int    `mapstructure:"max_lines" yaml:"max_lines" json:"max_lines"`

	Epochs                 int     `mapstructure:"epochs" yaml:"epochs" json:"epochs"`
	BatchSize              int     `mapstructure:"batch_size" yaml:"batch_size" json:"batch_size"`
	Dropout                float64 `mapstructure:"dropout" yaml:"dropout" json:"dropout"`
	Shuffle                bool    `mapstructure:"shuffle" yaml:"shuffle" json:"shuffle"`
	Seed                   uint64  `mapstructure:"seed" yaml:"seed" json:"seed"`
	MinRelevantError       float64 `mapstructure:"min_relevant_error" yaml:"min_relevant_error" json:"min_relevant_error"`
	ParamsStepSize         float64 `mapstructure:"params_step_size" yaml:"params_step_size" json:"params_step_size"`
	EmbeddingsLearningRate float64 `mapstructure:"embeddings_learning_rate" yaml:"embeddings_learning_rate" json:"embeddings_learning_rate"`

	HistoryDB string `mapstructure:"history_db" yaml:"history_db" json:"history_db"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxBodyKB       int    `mapstructure:"max_body_kb" yaml:"max_body_kb" json:"max_body_kb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	CacheSize       int    `mapstructure:"cache_size" yaml:"cache_size" json:"cache_size"`
	RateLimit       int    `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`           // requests per minute per client; 0 disables
	DailyQuotaKB    int    `mapstructure:"daily_quota_kb" yaml:"daily_quota_kb" json:"daily_quota_kb"` // text per client per day; 0 disables
}
