/*
Package config loads the service configuration.

Values come from an optional YAML file overlaid with environment
variables; every field carries a usable default except the feed
credentials, which have none on purpose.
*/
package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the full service configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Feed   FeedConfig   `yaml:"feed"`
	Store  StoreConfig  `yaml:"store"`
	Ingest IngestConfig `yaml:"ingest"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port         int `yaml:"port" env:"VPLAN_PORT" env-default:"8080"`
	CacheSeconds int `yaml:"cacheSeconds" env:"VPLAN_CACHE_SECONDS" env-default:"600"`
}

// FeedConfig points at the school server publishing the daily documents.
type FeedConfig struct {
	BaseURL  string `yaml:"baseUrl" env:"VPLAN_FEED_URL"`
	Username string `yaml:"username" env:"VPLAN_FEED_USER"`
	Password string `yaml:"password" env:"VPLAN_FEED_PASSWORD"`
}

// StoreConfig selects the workbook database and worksheet names.
type StoreConfig struct {
	DBPath        string `yaml:"dbPath" env:"VPLAN_DB" env-default:"./data/vplan.db"`
	ScheduleSheet string `yaml:"scheduleSheet" env:"VPLAN_SCHEDULE_SHEET" env-default:"vertretungsplan"`
}

// IngestConfig tunes the fetch pool.
type IngestConfig struct {
	Workers int `yaml:"workers" env:"VPLAN_INGEST_WORKERS" env-default:"4"`
}

// Load reads the configuration file at path (when non-empty) and overlays
// environment variables on top.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
		return &cfg, nil
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read config from environment: %w", err)
	}
	return &cfg, nil
}
