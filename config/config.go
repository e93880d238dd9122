package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the process configuration shared by the binaries.
type Config struct {
	HTTPAddr        string `mapstructure:"HTTP_ADDR" validate:"required"`
	DatabaseDriver  string `mapstructure:"DATABASE_DRIVER" validate:"required,oneof=sqlite3 clickhouse pgx"`
	DatabaseDSN     string `mapstructure:"DATABASE_DSN" validate:"required"`
	MetadataFile    string `mapstructure:"METADATA_FILE" validate:"required"`
	LogLevel        string `mapstructure:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	DefaultPageSize int    `mapstructure:"DEFAULT_PAGE_SIZE" validate:"min=1,ltefield=MaxPageSize"`
	MaxPageSize     int    `mapstructure:"MAX_PAGE_SIZE" validate:"min=1"`
}

var keys = []string{
	"HTTP_ADDR",
	"DATABASE_DRIVER",
	"DATABASE_DSN",
	"METADATA_FILE",
	"LOG_LEVEL",
	"DEFAULT_PAGE_SIZE",
	"MAX_PAGE_SIZE",
}

// New returns a viper instance with defaults set and every key bound to its
// environment variable. Callers may bind flags on top before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_DRIVER", "sqlite3")
	v.SetDefault("DATABASE_DSN", "./analytics.db")
	v.SetDefault("METADATA_FILE", "./catalog.yaml")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DEFAULT_PAGE_SIZE", 50)
	v.SetDefault("MAX_PAGE_SIZE", 1000)

	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	return v
}

// Load reads the optional .env file of the working directory and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	// a missing .env is fine, the environment and defaults apply
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Logger builds the process logger at the configured level.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if level == zapcore.DebugLevel {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	return zc.Build()
}

// PageSize clamps a requested page size, zero selects the default.
func (c *Config) PageSize(requested int) int {
	if requested <= 0 {
		return c.DefaultPageSize
	}

	return min(requested, c.MaxPageSize)
}
