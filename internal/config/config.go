package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI     OpenAIConfig     `yaml:"openai" mapstructure:"openai"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Gateway    GatewayConfig    `yaml:"gateway" mapstructure:"gateway"`
	Source     SourceConfig     `yaml:"source" mapstructure:"source"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// GatewayConfig selects which provider the pipeline talks to.
type GatewayConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"`
}

// SourceConfig configures where transcripts are read from. Dir wins when
// both are set, so a local corpus can shadow the remote catalog.
type SourceConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Dir     string `yaml:"dir" mapstructure:"dir"`
}

// PipelineConfig configures extraction and assembly behavior.
type PipelineConfig struct {
	MaxAttempts      int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	MaxTokens        int64         `yaml:"max_tokens" mapstructure:"max_tokens"`
	BatchSize        int           `yaml:"batch_size" mapstructure:"batch_size"`
	FetchConcurrency int           `yaml:"fetch_concurrency" mapstructure:"fetch_concurrency"`
	Pace             time.Duration `yaml:"pace" mapstructure:"pace"`
	MaxQuestions     int           `yaml:"max_questions" mapstructure:"max_questions"`
}

// ServerConfig configures the question API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PMPREP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "pmprep.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("gateway.provider", "anthropic")
	// Empty defaults register the env bindings for keys that have no
	// meaningful default value.
	v.SetDefault("anthropic.key", "")
	v.SetDefault("openai.key", "")
	v.SetDefault("perplexity.key", "")
	v.SetDefault("source.base_url", "")
	v.SetDefault("source.dir", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("pipeline.max_attempts", 6)
	v.SetDefault("pipeline.max_tokens", 8192)
	v.SetDefault("pipeline.batch_size", 10)
	v.SetDefault("pipeline.fetch_concurrency", 5)
	v.SetDefault("pipeline.pace", "500ms")
	v.SetDefault("pipeline.max_questions", 0)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// GatewaySettings resolves the configured provider into gateway settings:
// which credential, model, and endpoint the chosen provider uses. An
// unknown provider name surfaces here, before any network call.
func (c *Config) GatewaySettings() (provider, key, model, baseURL string, err error) {
	switch c.Gateway.Provider {
	case "anthropic":
		return "anthropic", c.Anthropic.Key, c.Anthropic.Model, "", nil
	case "openai":
		return "openai", c.OpenAI.Key, c.OpenAI.Model, c.OpenAI.BaseURL, nil
	case "perplexity":
		return "perplexity", c.Perplexity.Key, c.Perplexity.Model, c.Perplexity.BaseURL, nil
	}
	return "", "", "", "", eris.Errorf("config: unknown gateway provider %q", c.Gateway.Provider)
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
