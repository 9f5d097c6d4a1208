// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	StoreFile     = "file"
	StorePostgres = "postgres"
)

type Config struct {
	Addr              string        `env:"BOARD_ADDR" envDefault:":8080"`
	Store             string        `env:"BOARD_STORE" envDefault:"file"`
	DataDir           string        `env:"BOARD_DATA_DIR" envDefault:"data"`
	DatabaseURL       string        `env:"BOARD_DATABASE_URL"`
	PushEnabled       bool          `env:"BOARD_PUSH_ENABLED" envDefault:"true"`
	PushChannel       string        `env:"BOARD_PUSH_CHANNEL" envDefault:"board"`
	LogLevel          string        `env:"BOARD_LOG_LEVEL" envDefault:"info"`
	LogDevelopment    bool          `env:"BOARD_LOG_DEVELOPMENT" envDefault:"false"`
	ShutdownTimeout   time.Duration `env:"BOARD_SHUTDOWN_TIMEOUT" envDefault:"5s"`
	ReadHeaderTimeout time.Duration `env:"BOARD_READ_HEADER_TIMEOUT" envDefault:"5s"`
}

// LoadDotenv reads KEY=VALUE pairs from the given files into the process
// environment without overriding variables already set. Missing files are
// skipped.
func LoadDotenv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load parses and validates the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Store {
	case StoreFile:
		if strings.TrimSpace(c.DataDir) == "" {
			return errors.New("BOARD_DATA_DIR is required for the file store")
		}
	case StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("BOARD_DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown BOARD_STORE %q", c.Store)
	}
	if c.PushEnabled && strings.TrimSpace(c.PushChannel) == "" {
		return errors.New("BOARD_PUSH_CHANNEL is required when push is enabled")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("BOARD_SHUTDOWN_TIMEOUT must be positive")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("BOARD_LOG_LEVEL: %w", err)
	}
	return nil
}

// Logger builds the process logger.
func (c Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.LogDevelopment {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
