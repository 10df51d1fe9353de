package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tripleyak/marginal-roas-optimizer/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Optimizer OptimizerConfig `yaml:"optimizer" mapstructure:"optimizer"`
	Margin    MarginConfig    `yaml:"margin" mapstructure:"margin"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// OptimizerConfig holds default run settings and fit limits.
type OptimizerConfig struct {
	Seasonality    string        `yaml:"seasonality" mapstructure:"seasonality"`
	Recency        float64       `yaml:"recency" mapstructure:"recency"`
	FitBudget      time.Duration `yaml:"fit_budget" mapstructure:"fit_budget"`
	MaxEvaluations int           `yaml:"max_evaluations" mapstructure:"max_evaluations"`
	Workers        int           `yaml:"workers" mapstructure:"workers"`
}

// MarginConfig holds the global margin inputs in percent.
type MarginConfig struct {
	GrossMarginPct float64 `yaml:"gross_margin_pct" mapstructure:"gross_margin_pct"`
	RequiredNetPct float64 `yaml:"required_net_pct" mapstructure:"required_net_pct"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	RateLimit   float64  `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second
	Burst       int      `yaml:"burst" mapstructure:"burst"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
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
	v.SetEnvPrefix("MROAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("optimizer.seasonality", string(model.SeasonalityNone))
	v.SetDefault("optimizer.recency", 0.5)
	v.SetDefault("optimizer.fit_budget", 8*time.Second)
	v.SetDefault("optimizer.max_evaluations", 0)
	v.SetDefault("optimizer.workers", 4)
	v.SetDefault("margin.gross_margin_pct", 0.0)
	v.SetDefault("margin.required_net_pct", 0.0)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "mroas.db")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 10.0)
	v.SetDefault("server.burst", 20)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the settings a command depends on. mode is one of
// optimize, portfolio or serve. All problems are reported together.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "optimize", "portfolio", "serve":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if _, err := model.ParseSeasonality(c.Optimizer.Seasonality); err != nil {
		errs = append(errs, fmt.Sprintf("optimizer.seasonality %q is not none, weekly or monthly", c.Optimizer.Seasonality))
	}
	if c.Optimizer.Recency < 0 || c.Optimizer.Recency > 1 {
		errs = append(errs, "optimizer.recency must be between 0 and 1")
	}
	if c.Optimizer.MaxEvaluations < 0 {
		errs = append(errs, "optimizer.max_evaluations must be >= 0")
	}
	if mode != "optimize" && (c.Optimizer.Workers < 1 || c.Optimizer.Workers > 64) {
		errs = append(errs, "optimizer.workers must be between 1 and 64")
	}

	switch c.Store.Driver {
	case "", "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not sqlite or postgres", c.Store.Driver))
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required for postgres")
	}

	if mode == "serve" {
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server.rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.Burst < 1 {
			errs = append(errs, "server.burst must be >= 1 when rate limiting")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// GlobalMargin returns the configured global margin.
func (c *Config) GlobalMargin() model.MarginConfig {
	return model.NewMarginConfig(c.Margin.GrossMarginPct, c.Margin.RequiredNetPct)
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
