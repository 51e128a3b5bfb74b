package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the query engine.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Learning LearningConfig `yaml:"learning"`
	Logging  LoggingConfig  `yaml:"logging"`
	Cache    CacheConfig    `yaml:"cache"`
}

// ServerConfig controls HTTP listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// StoreConfig configures the property database and query execution.
type StoreConfig struct {
	Path         string        `yaml:"path"`
	SeedPath     string        `yaml:"seedPath"`
	QueryTimeout time.Duration `yaml:"queryTimeout"`
	MaxRows      int           `yaml:"maxRows"`
}

// LearningConfig configures the feedback episode log.
type LearningConfig struct {
	Path         string `yaml:"path"`
	SimilarLimit int    `yaml:"similarLimit"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// CacheConfig controls Valkey-backed caching of similarity lookups.
type CacheConfig struct {
	Enabled            bool          `yaml:"enabled"`
	Addr               string        `yaml:"addr"`
	Username           string        `yaml:"username"`
	Password           string        `yaml:"password"`
	DB                 int           `yaml:"db"`
	DialTimeout        time.Duration `yaml:"dialTimeout"`
	ReadTimeout        time.Duration `yaml:"readTimeout"`
	WriteTimeout       time.Duration `yaml:"writeTimeout"`
	MaxRetries         int           `yaml:"maxRetries"`
	TLS                bool          `yaml:"tls"`
	SimilarEpisodesTTL time.Duration `yaml:"similarEpisodesTTL"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("PROPQUERY_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			GracefulTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Path:         "propquery.db",
			QueryTimeout: 5 * time.Second,
			MaxRows:      5000,
		},
		Learning: LearningConfig{
			Path:         "propquery_learning.db",
			SimilarLimit: 5,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Cache: CacheConfig{
			Enabled:            false,
			SimilarEpisodesTTL: 2 * time.Minute,
			DialTimeout:        2 * time.Second,
			ReadTimeout:        500 * time.Millisecond,
			WriteTimeout:       500 * time.Millisecond,
			MaxRetries:         2,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PROPQUERY_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("PROPQUERY_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("PROPQUERY_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("PROPQUERY_STORE_SEED_PATH"); v != "" {
		cfg.Store.SeedPath = v
	}
	if v := os.Getenv("PROPQUERY_STORE_QUERY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Store.QueryTimeout = d
		}
	}
	if v := os.Getenv("PROPQUERY_STORE_MAX_ROWS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Store.MaxRows = n
		}
	}
	if v := os.Getenv("PROPQUERY_LEARNING_PATH"); v != "" {
		cfg.Learning.Path = v
	}
	if v := os.Getenv("PROPQUERY_LEARNING_SIMILAR_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Learning.SimilarLimit = n
		}
	}
	if v := os.Getenv("PROPQUERY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PROPQUERY_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("PROPQUERY_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("PROPQUERY_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("PROPQUERY_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("PROPQUERY_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("PROPQUERY_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("PROPQUERY_CACHE_TLS"); strings.EqualFold(v, "true") || strings.EqualFold(v, "1") {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("PROPQUERY_CACHE_DIAL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.DialTimeout = d
		}
	}
	if v := os.Getenv("PROPQUERY_CACHE_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.ReadTimeout = d
		}
	}
	if v := os.Getenv("PROPQUERY_CACHE_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.WriteTimeout = d
		}
	}
	if v := os.Getenv("PROPQUERY_CACHE_MAX_RETRIES"); v != "" {
		if retry, err := strconv.Atoi(v); err == nil {
			cfg.Cache.MaxRetries = retry
		}
	}
	if v := os.Getenv("PROPQUERY_CACHE_SIMILAR_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.SimilarEpisodesTTL = d
		}
	}
}
