package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type DetectionConfig struct {
	LookbackDays         int           `yaml:"lookback_days"`
	MinOccurrences       int           `yaml:"min_occurrences"`
	RecomputeInterval    time.Duration `yaml:"recompute_interval"`
	NotificationInterval time.Duration `yaml:"notification_interval"`
	UpcomingWindowDays   int           `yaml:"upcoming_window_days"`
	RecomputeRateLimit   int           `yaml:"recompute_rate_limit"`
	RecomputeRateWindow  time.Duration `yaml:"recompute_rate_window"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Detection DetectionConfig `yaml:"detection"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Detection.LookbackDays <= 0 {
		cfg.Detection.LookbackDays = 365
	}
	if cfg.Detection.MinOccurrences <= 0 {
		cfg.Detection.MinOccurrences = 3
	}
	if cfg.Detection.RecomputeInterval <= 0 {
		cfg.Detection.RecomputeInterval = 6 * time.Hour
	}
	if cfg.Detection.NotificationInterval <= 0 {
		cfg.Detection.NotificationInterval = time.Hour
	}
	if cfg.Detection.UpcomingWindowDays <= 0 {
		cfg.Detection.UpcomingWindowDays = 7
	}
	if cfg.Detection.RecomputeRateLimit <= 0 {
		cfg.Detection.RecomputeRateLimit = 5
	}
	if cfg.Detection.RecomputeRateWindow <= 0 {
		cfg.Detection.RecomputeRateWindow = time.Minute
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Auth.JWTSecret == "" && !dev {
		return nil, errors.New("auth.jwt_secret is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
