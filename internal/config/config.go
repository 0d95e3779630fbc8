package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Policy    PolicyConfig    `yaml:"policy" mapstructure:"policy"`
	Email     EmailConfig     `yaml:"email" mapstructure:"email"`
	Anomaly   AnomalyConfig   `yaml:"anomaly" mapstructure:"anomaly"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds reasoning oracle settings.
type AnthropicConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	Model     string  `yaml:"model" mapstructure:"model"`
	MaxTokens int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	RPS       float64 `yaml:"rps" mapstructure:"rps"`
}

// PolicyConfig configures the policy snippet retriever.
type PolicyConfig struct {
	Path          string `yaml:"path" mapstructure:"path"`
	TopK          int    `yaml:"top_k" mapstructure:"top_k"`
	ChunkSize     int    `yaml:"chunk_size" mapstructure:"chunk_size"`
	ChunkOverlap  int    `yaml:"chunk_overlap" mapstructure:"chunk_overlap"`
	CacheTTLHours int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// EmailConfig holds SMTP settings for human-review notifications.
// All fields are required at startup; missing values are a fatal
// configuration error, never a per-claim error.
type EmailConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	From     string `yaml:"from" mapstructure:"from"`
	To       string `yaml:"to" mapstructure:"to"`
}

// Validate checks that every required SMTP setting is present.
func (e EmailConfig) Validate() error {
	var missing []string
	if e.Host == "" {
		missing = append(missing, "email.host")
	}
	if e.Port == 0 {
		missing = append(missing, "email.port")
	}
	if e.Username == "" {
		missing = append(missing, "email.username")
	}
	if e.Password == "" {
		missing = append(missing, "email.password")
	}
	if e.From == "" {
		missing = append(missing, "email.from")
	}
	if e.To == "" {
		missing = append(missing, "email.to")
	}
	if len(missing) > 0 {
		return eris.Errorf("config: missing required email settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// AnomalyConfig configures batch anomaly scoring.
type AnomalyConfig struct {
	Fields   []string `yaml:"fields" mapstructure:"fields"`
	StdFloor float64  `yaml:"std_floor" mapstructure:"std_floor"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the adjudication HTTP server.
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
	v.SetEnvPrefix("CLAIMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "claims.db")
	v.SetDefault("store.database_url", "")
	// Registered empty so AutomaticEnv can populate them via Unmarshal.
	v.SetDefault("anthropic.key", "")
	v.SetDefault("email.host", "")
	v.SetDefault("email.port", 0)
	v.SetDefault("email.username", "")
	v.SetDefault("email.password", "")
	v.SetDefault("email.from", "")
	v.SetDefault("email.to", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.rps", 2.0)
	v.SetDefault("policy.path", "policy.txt")
	v.SetDefault("policy.top_k", 4)
	v.SetDefault("policy.chunk_size", 800)
	v.SetDefault("policy.chunk_overlap", 150)
	v.SetDefault("policy.cache_ttl_hours", 24)
	v.SetDefault("anomaly.fields", []string{
		"total_cost", "labor_cost", "part_cost", "mileage", "previous_claims",
	})
	v.SetDefault("anomaly.std_floor", 1e-6)
	v.SetDefault("batch.concurrency", 1)

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
