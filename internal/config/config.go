// Package config loads runner configuration from .env files and the
// environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is everything cmd/hamlet needs to run a world.
type Config struct {
	DBPath   string `env:"HAMLET_DB_PATH" envDefault:"data/hamlet.db"`
	InMemory bool   `env:"HAMLET_IN_MEMORY"`

	Seed       int64  `env:"HAMLET_SEED"` // 0 picks a fresh seed
	WorldID    uint64 `env:"HAMLET_WORLD_ID" envDefault:"1"`
	StartYear  int    `env:"HAMLET_START_YEAR" envDefault:"1839"`
	Days       int    `env:"HAMLET_DAYS" envDefault:"720"`
	Population int    `env:"HAMLET_POPULATION" envDefault:"40"`
	Settlement string `env:"HAMLET_SETTLEMENT" envDefault:"Millbrook"`

	AnthropicAPIKey    string `env:"ANTHROPIC_API_KEY"`
	NarrationPerMinute int    `env:"HAMLET_NARRATION_PER_MINUTE" envDefault:"20"`
	NarrationCacheSize int    `env:"HAMLET_NARRATION_CACHE_SIZE" envDefault:"256"`
	RandomOrgKey       string `env:"RANDOM_ORG_API_KEY"`

	LogLevel string `env:"HAMLET_LOG_LEVEL" envDefault:"info"`
}

// Load reads the file named by HAMLET_ENV (or .env), then its .secret
// sidecar, then parses the environment. Missing files are not an error.
// Variables already set in the environment win over file values.
func Load() (Config, error) {
	envFile := os.Getenv("HAMLET_ENV")
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)
	_ = godotenv.Load(envFile + ".secret")

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Days < 0 {
		return Config{}, fmt.Errorf("HAMLET_DAYS must not be negative, got %d", cfg.Days)
	}
	if cfg.Population < 2 {
		return Config{}, fmt.Errorf("HAMLET_POPULATION must be at least 2, got %d", cfg.Population)
	}
	return cfg, nil
}

// Level maps LogLevel onto a slog level, defaulting to info.
func (c Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
