package config

import (
	"os"
	"time"

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
		TTL      string `yaml:"ttl"` // session lifetime
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
		// Sessions selects the bun-backed session store even when Redis is configured.
		Sessions bool `yaml:"sessions"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL            string `yaml:"ttl"` // content cache TTL
		StorageTimeout string `yaml:"storage_timeout"`
		ShuffleSeed    int64  `yaml:"shuffle_seed"`
	} `yaml:"quiz"`
	Content struct {
		Fixture string `yaml:"fixture"`
	} `yaml:"content"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Events struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"events"`
}

// Default returns the configuration used when a key is absent from the file.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Redis.TTL = "24h"
	cfg.Quiz.TTL = "10m"
	cfg.Quiz.StorageTimeout = "3s"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Events.Enabled = true
	return cfg
}

// Load reads YAML config from path on top of Default.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
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
