package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Lesson struct {
		TTL string `yaml:"ttl"`
	} `yaml:"lesson"`
	Model struct {
		APIKey            string `yaml:"apiKey"`
		BaseURL           string `yaml:"baseUrl"`
		Primary           string `yaml:"primary"`
		Fallback          string `yaml:"fallback"`
		MaxRetries        *int   `yaml:"maxRetries"`
		PlanBaseDelay     string `yaml:"planBaseDelay"`
		EvaluateBaseDelay string `yaml:"evaluateBaseDelay"`
		SummaryBaseDelay  string `yaml:"summaryBaseDelay"`
	} `yaml:"model"`
	Leaderboard struct {
		// Backend is one of memory, redis, postgres, sqlite.
		Backend   string `yaml:"backend"`
		KeyPrefix string `yaml:"keyPrefix"`
		Limit     int    `yaml:"limit"`
	} `yaml:"leaderboard"`
	Oembed struct {
		Endpoint string `yaml:"endpoint"`
		Timeout  string `yaml:"timeout"`
	} `yaml:"oembed"`
}

const (
	DefaultPrimaryModel  = "gpt-4o"
	DefaultFallbackModel = "gpt-4o-mini"
	DefaultMaxRetries    = 3
)

// Load reads YAML config from path, then applies environment overrides. A
// .env file in the working directory is loaded first when present. A missing
// config file leaves every setting at its default.
func Load(path string) (Config, error) {
	cfg := Config{}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, err
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	for _, key := range []string{"MODEL_API_KEY", "OPENAI_API_KEY"} {
		if v := os.Getenv(key); v != "" {
			cfg.Model.APIKey = v
			break
		}
	}
	if v := os.Getenv("MODEL_BASE_URL"); v != "" {
		cfg.Model.BaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.URL = v
	}
	if v := os.Getenv("LEADERBOARD_BACKEND"); v != "" {
		cfg.Leaderboard.Backend = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Model.Primary == "" {
		cfg.Model.Primary = DefaultPrimaryModel
	}
	if cfg.Model.Fallback == "" {
		cfg.Model.Fallback = DefaultFallbackModel
	}
	if cfg.Model.MaxRetries == nil || *cfg.Model.MaxRetries < 0 {
		n := DefaultMaxRetries
		cfg.Model.MaxRetries = &n
	}
	if cfg.Leaderboard.Backend == "" {
		cfg.Leaderboard.Backend = "memory"
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = "leaderboard.db"
	}
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
