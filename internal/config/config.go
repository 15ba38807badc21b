package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Functions FunctionsConfig `yaml:"functions" mapstructure:"functions"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Bulk      BulkConfig      `yaml:"bulk" mapstructure:"bulk"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the lead datastore.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// FunctionsConfig holds settings for the remote enrichment functions.
type FunctionsConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Key         string  `yaml:"key" mapstructure:"key"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	MaxAttempts int     `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// PipelineConfig configures branching in the single-lead pipeline.
type PipelineConfig struct {
	MatchScoreThreshold float64 `yaml:"match_score_threshold" mapstructure:"match_score_threshold"`
	ParkedMatchScore    float64 `yaml:"parked_match_score" mapstructure:"parked_match_score"`
	InvalidMatchScore   float64 `yaml:"invalid_match_score" mapstructure:"invalid_match_score"`
	UserID              string  `yaml:"user_id" mapstructure:"user_id"`
}

// BulkConfig configures the bulk driver defaults.
type BulkConfig struct {
	DefaultStatus string `yaml:"default_status" mapstructure:"default_status"`
	Limit         int    `yaml:"limit" mapstructure:"limit"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, the config file and the environment.
func Load() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LEADS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("functions.base_url", "")
	v.SetDefault("functions.key", "")
	v.SetDefault("functions.timeout_secs", 120)
	v.SetDefault("functions.rate_limit", 10.0)
	v.SetDefault("functions.max_attempts", 1)
	v.SetDefault("pipeline.match_score_threshold", 50.0)
	v.SetDefault("pipeline.parked_match_score", 25.0)
	v.SetDefault("pipeline.invalid_match_score", 0.0)
	v.SetDefault("pipeline.user_id", "")
	v.SetDefault("bulk.default_status", "pending")
	v.SetDefault("bulk.limit", 500)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the settings a command mode depends on. Supported modes are
// "store" (datastore only), "pipeline" (datastore + functions) and "serve"
// (pipeline + HTTP server). All problems are reported together.
func (c *Config) Validate(mode string) error {
	var errs []string

	checkStore := func() {
		switch c.Store.Driver {
		case "postgres":
			if c.Store.DatabaseURL == "" {
				errs = append(errs, "store.database_url is required for postgres (LEADS_STORE_DATABASE_URL)")
			}
		case "sqlite":
		default:
			errs = append(errs, fmt.Sprintf("store.driver %q is not supported (postgres, sqlite)", c.Store.Driver))
		}
	}
	checkPipeline := func() {
		if c.Functions.BaseURL == "" {
			errs = append(errs, "functions.base_url is required (LEADS_FUNCTIONS_BASE_URL)")
		}
		if c.Functions.MaxAttempts < 1 {
			errs = append(errs, "functions.max_attempts must be >= 1")
		}
		if c.Pipeline.MatchScoreThreshold < 0 || c.Pipeline.MatchScoreThreshold > 100 {
			errs = append(errs, "pipeline.match_score_threshold must be between 0 and 100")
		}
	}

	switch mode {
	case "store":
		checkStore()
	case "pipeline":
		checkStore()
		checkPipeline()
	case "serve":
		checkStore()
		checkPipeline()
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
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
