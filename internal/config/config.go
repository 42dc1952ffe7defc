package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Quiz     QuizConfig     `yaml:"quiz"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Nickname NicknameConfig `yaml:"nickname"`
}

type ServerConfig struct {
	Port string `yaml:"port" env:"QUIZ_SERVER_PORT"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"QUIZ_LOG_LEVEL"`
	Format string `yaml:"format" env:"QUIZ_LOG_FORMAT"`
	Source bool   `yaml:"source" env:"QUIZ_LOG_SOURCE"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"QUIZ_REDIS_ADDR"`
	Password string `yaml:"password" env:"QUIZ_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"QUIZ_REDIS_DB"`
	TTL      string `yaml:"ttl" env:"QUIZ_REDIS_TTL"`
}

type PostgresConfig struct {
	URL string `yaml:"url" env:"QUIZ_POSTGRES_URL"`
}

type QuizConfig struct {
	TTL  string `yaml:"ttl" env:"QUIZ_CACHE_TTL"`
	File string `yaml:"file" env:"QUIZ_FILE"`
}

// ScoringConfig tunes the scoring engine.
type ScoringConfig struct {
	StreakStep       float64 `yaml:"streakStep" env:"QUIZ_SCORING_STREAK_STEP"`
	DefaultTimeLimit string  `yaml:"defaultTimeLimit" env:"QUIZ_SCORING_DEFAULT_TIME_LIMIT"`
}

// NicknameConfig bounds display name length in runes.
type NicknameConfig struct {
	MinLength int `yaml:"minLength" env:"QUIZ_NICKNAME_MIN_LENGTH"`
	MaxLength int `yaml:"maxLength" env:"QUIZ_NICKNAME_MAX_LENGTH"`
}

// Default returns the configuration used when no file or env overrides are present.
func Default() Config {
	return Config{
		Server:   ServerConfig{Port: "8080"},
		Log:      LogConfig{Level: "info", Format: "text"},
		Redis:    RedisConfig{TTL: "10m"},
		Quiz:     QuizConfig{TTL: "10m"},
		Scoring:  ScoringConfig{StreakStep: 0.1, DefaultTimeLimit: "20s"},
		Nickname: NicknameConfig{MinLength: 2, MaxLength: 20},
	}
}

// Load reads YAML config from path on top of Default, then applies QUIZ_* env overrides.
// A missing file is not an error; the defaults and environment still apply.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
