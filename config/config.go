package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// ServerConfig holds the HTTP server settings
type ServerConfig struct {
	Hostname    string `toml:"hostname"`
	Port        int    `toml:"port"`
	FeedListUrl string `toml:"feed_list_url"`
	LayoutCols  int    `toml:"layout_cols"`
}

// ReaderConfig holds the feed fetching settings
type ReaderConfig struct {
	UserAgent     string        `toml:"user_agent"`
	MaxErrors     int           `toml:"max_errors"`
	MaxRedirects  int           `toml:"max_redirects"`
	Timeout       time.Duration `toml:"timeout"`
	MaxFeeds      int           `toml:"max_feeds"`
	MaxBulkCreate int           `toml:"max_bulk_create"`
	UpdateLimit   int           `toml:"update_limit"`
	Workers       int           `toml:"workers"`
	LogRetention  time.Duration `toml:"log_retention"`
}

// Config is the top-level configuration
type Config struct {
	Server ServerConfig `toml:"server"`
	Reader ReaderConfig `toml:"reader"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Hostname:    "localhost",
			Port:        3000,
			FeedListUrl: "/f/feeds/",
			LayoutCols:  3,
		},
		Reader: ReaderConfig{
			UserAgent:     "PReader 0.1",
			MaxErrors:     5,
			MaxRedirects:  3,
			Timeout:       5 * time.Second,
			MaxFeeds:      5,
			MaxBulkCreate: 100,
			UpdateLimit:   100,
			Workers:       4,
			LogRetention:  30 * 24 * time.Hour,
		},
	}
}

// LoadConfig reads the TOML file at path on top of the defaults. A missing
// file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return config, nil
}

func (c *Config) Validate() error {
	switch {
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	case c.Reader.MaxErrors < 1:
		return errors.New("reader.max_errors must be at least 1")
	case c.Reader.MaxBulkCreate < 1:
		return errors.New("reader.max_bulk_create must be at least 1")
	case c.Reader.Workers < 1:
		return errors.New("reader.workers must be at least 1")
	case c.Reader.MaxRedirects < 0:
		return errors.New("reader.max_redirects must not be negative")
	}
	return nil
}
