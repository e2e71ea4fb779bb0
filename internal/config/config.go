package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/satyaki-up/sprintboard/internal/logging"
)

const FileName = "sbconfig.yaml"

// Config is the on-disk sbconfig.yaml plus environment overrides.
type Config struct {
	Path string `yaml:"-"`

	DBPath   string `yaml:"db"`
	User     string `yaml:"user"`
	Board    string `yaml:"board"`
	Listen   string `yaml:"listen"`
	LogLevel string `yaml:"log_level"`

	Toasts ToastConfig  `yaml:"toasts"`
	Feed   FeedConfig   `yaml:"feed"`
	Sprint SprintConfig `yaml:"sprint"`
}

type ToastConfig struct {
	Debounce time.Duration `yaml:"debounce"`
	Limit    int           `yaml:"limit"`
}

type FeedConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MinInterval time.Duration `yaml:"min_interval"`
	MaxInterval time.Duration `yaml:"max_interval"`
	Actors      []string      `yaml:"actors"`
	Seed        uint64        `yaml:"seed"`
}

// SprintConfig.DeletePolicy is "unassign" or "reassign". With reassign,
// callers must name a target sprint.
type SprintConfig struct {
	DeletePolicy string `yaml:"delete_policy"`
}

const (
	PolicyUnassign = "unassign"
	PolicyReassign = "reassign"
)

func Default() *Config {
	return &Config{
		Board:    "default",
		Listen:   ":8080",
		LogLevel: "info",
		Toasts: ToastConfig{
			Debounce: 3 * time.Second,
			Limit:    50,
		},
		Feed: FeedConfig{
			MinInterval: 5 * time.Second,
			MaxInterval: 15 * time.Second,
		},
		Sprint: SprintConfig{DeletePolicy: PolicyUnassign},
	}
}

// Discover walks up from startDir looking for sbconfig.yaml. It returns nil
// when no file is found.
func Discover(startDir string) (*Config, error) {
	dir := startDir
	for {
		candidate := filepath.Join(dir, FileName)
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return Load(candidate)
		}
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read %s: %w", candidate, err)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// Load reads path over the defaults. A relative db path resolves against
// the config file's directory.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	cfg.Path = path
	if cfg.DBPath != "" && !filepath.IsAbs(cfg.DBPath) {
		cfg.DBPath = filepath.Clean(filepath.Join(filepath.Dir(path), cfg.DBPath))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv lets SB_DB_PATH and SB_USER override the file.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("SB_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("SB_USER"); v != "" {
		c.User = v
	}
}

func (c *Config) Validate() error {
	c.Board = strings.TrimSpace(c.Board)
	if c.Board == "" {
		c.Board = "default"
	}
	if c.Toasts.Debounce <= 0 {
		return fmt.Errorf("toasts.debounce must be positive")
	}
	if c.Toasts.Limit < 0 {
		return fmt.Errorf("toasts.limit cannot be negative")
	}
	if c.Feed.MinInterval <= 0 {
		return fmt.Errorf("feed.min_interval must be positive")
	}
	if c.Feed.MaxInterval < c.Feed.MinInterval {
		return fmt.Errorf("feed.max_interval must not be below feed.min_interval")
	}
	switch c.Sprint.DeletePolicy {
	case "":
		c.Sprint.DeletePolicy = PolicyUnassign
	case PolicyUnassign, PolicyReassign:
	default:
		return fmt.Errorf("sprint.delete_policy must be %q or %q", PolicyUnassign, PolicyReassign)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}
