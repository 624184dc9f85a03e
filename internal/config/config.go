package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"daycal/internal/calendar"
)

// FeedConfig describes an ICS subscription imported into one user's days.
type FeedConfig struct {
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// User is the username whose calendar receives the feed's events.
	User string `yaml:"user" json:"user"`
}

// SourceID returns ID, falling back to Name and then URL.
func (f FeedConfig) SourceID() string {
	switch {
	case f.ID != "":
		return f.ID
	case f.Name != "":
		return f.Name
	default:
		return f.URL
	}
}

// PreviewConfig controls headless capture of the month page.
type PreviewConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Cron    string `yaml:"cron" json:"cron"`
	// User whose calendar is rendered into the preview.
	User   string `yaml:"user" json:"user"`
	Output string `yaml:"output" json:"output"`
	Width  int    `yaml:"width" json:"width"`
	Height int    `yaml:"height" json:"height"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone that decides what "today" is.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Database is the SQLite file path.
	Database string `yaml:"database" json:"database"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// UpcomingLimit caps the upcoming sidebar.
	UpcomingLimit int `yaml:"upcoming_limit" json:"upcoming_limit"`

	// SessionTTL is how long a login token stays valid, as a Go duration.
	SessionTTL string `yaml:"session_ttl" json:"session_ttl"`

	// RefreshCron is a cron-style schedule string (e.g. "*/30 * * * *")
	// for feed refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// CacheDir holds per-feed HTTP cache entries.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// FeedHorizonDays / FeedBackfillDays bound the window that feed
	// occurrences are expanded into.
	FeedHorizonDays  int `yaml:"feed_horizon_days" json:"feed_horizon_days"`
	FeedBackfillDays int `yaml:"feed_backfill_days" json:"feed_backfill_days"`

	Feeds []FeedConfig `yaml:"feeds" json:"feeds"`

	Preview PreviewConfig `yaml:"preview" json:"preview"`
}

const (
	defaultListen      = "127.0.0.1:8080"
	defaultTimezone    = "UTC"
	defaultDatabase    = "./daycal.db"
	defaultSessionTTL  = "720h"
	defaultRefreshCron = "*/30 * * * *"
	defaultCacheDir    = "./cache/ics-cache"
	defaultPreviewCron = "0 * * * *"
	defaultPreviewOut  = "./cache/preview.png"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Normalize()
	return cfg
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.Database == "" {
		c.Database = defaultDatabase
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.UpcomingLimit <= 0 {
		c.UpcomingLimit = calendar.DefaultUpcomingLimit
	}
	if d, err := time.ParseDuration(c.SessionTTL); err != nil || d <= 0 {
		c.SessionTTL = defaultSessionTTL
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.FeedHorizonDays <= 0 {
		c.FeedHorizonDays = 62
	}
	if c.FeedBackfillDays < 0 {
		c.FeedBackfillDays = 0
	}
	if c.Feeds == nil {
		c.Feeds = []FeedConfig{}
	}
	if c.Preview.Cron == "" {
		c.Preview.Cron = defaultPreviewCron
	}
	if c.Preview.Output == "" {
		c.Preview.Output = defaultPreviewOut
	}
}

// Location resolves Timezone, falling back to UTC when it is unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SessionDuration is SessionTTL parsed. Normalize guarantees it parses.
func (c *Config) SessionDuration() time.Duration {
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(defaultSessionTTL)
	}
	return d
}

// Validate reports settings that cannot be defaulted away.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: unknown timezone %q: %w", c.Timezone, err)
	}
	seen := make(map[string]bool, len(c.Feeds))
	for i, f := range c.Feeds {
		if f.URL == "" {
			return fmt.Errorf("config: feeds[%d]: url is required", i)
		}
		if f.User == "" {
			return fmt.Errorf("config: feeds[%d]: user is required", i)
		}
		id := f.SourceID()
		if seen[id] {
			return fmt.Errorf("config: feeds[%d]: duplicate id %q", i, id)
		}
		seen[id] = true
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically
// (temp file + rename) with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".daycal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
