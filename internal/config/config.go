// Package config loads the settings of the basex command.
//
// Values are layered: struct defaults, then configuration files (YAML, TOML
// or JSON by extension), then environment variables. A .env file only fills
// variables that are not already set.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jinzhu/configor"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds the client, logging and metrics settings.
type Config struct {
	URL      string `yaml:"url" toml:"url" json:"url" default:"http://localhost:8984/rest" env:"BASEX_URL"`
	Database string `yaml:"database" toml:"database" json:"database" env:"BASEX_DATABASE"`
	User     string `yaml:"user" toml:"user" json:"user" env:"BASEX_USER"`
	Password string `yaml:"password" toml:"password" json:"password" env:"BASEX_PASSWORD"`
	Timeout  string `yaml:"timeout" toml:"timeout" json:"timeout" default:"30s" env:"BASEX_TIMEOUT"`

	Log LogConfig `yaml:"log" toml:"log" json:"log"`

	// MetricsAddr enables the metrics endpoint when set, e.g. ":9090".
	MetricsAddr string `yaml:"metrics_addr" toml:"metrics_addr" json:"metrics_addr" env:"BASEX_METRICS_ADDR"`
}

// LogConfig configures pkg/zerolog_config.
type LogConfig struct {
	Level            string `yaml:"level" toml:"level" json:"level" default:"info" env:"BASEX_LOG_LEVEL"`
	ElasticsearchURL string `yaml:"elasticsearch_url" toml:"elasticsearch_url" json:"elasticsearch_url" env:"ELASTICSEARCH_URL"`
	Index            string `yaml:"index" toml:"index" json:"index" default:"basex-logs" env:"BASEX_LOG_INDEX"`
}

// Load reads envFile and files into a Config. An empty envFile tries ../.env
// and .env and tolerates both being absent. The result is not validated, so
// callers can apply overrides first and then call Validate.
func Load(envFile string, files ...string) (Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := configor.Load(&cfg, files...); err != nil {
		return Config{}, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
		return nil
	}

	if err := godotenv.Load("../.env"); err != nil {
		log.Debug().Msg("Not found .env file in parent directory, trying current directory")
		if err := godotenv.Load(".env"); err != nil {
			log.Debug().Msg("Not found .env file in current directory, assuming environment variables are set")
		}
	}
	return nil
}

// Validate checks the URL, timeout and log level.
func (c Config) Validate() error {
	if c.URL == "" {
		return errors.New("config: url is required")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("config: invalid url %q: %w", c.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("config: url %q must use http or https", c.URL)
	}
	if _, err := c.TimeoutDuration(); err != nil {
		return err
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// TimeoutDuration parses Timeout. Zero disables the timeout.
func (c Config) TimeoutDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("config: invalid timeout %q: %w", c.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config: negative timeout %q", c.Timeout)
	}
	return d, nil
}

// LogLevel parses Log.Level.
func (c Config) LogLevel() (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("config: invalid log level %q: %w", c.Log.Level, err)
	}
	return level, nil
}
