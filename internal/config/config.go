// ABOUTME: meds configuration management with backend selection.
// ABOUTME: JSON file under XDG config, .env overlay, MEDS_* overrides, storage factory.

package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harperreed/meds/internal/engine"
	"github.com/harperreed/meds/internal/schedule"
	"github.com/harperreed/meds/internal/storage"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
)

// Backend names.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Defaults applied when a field is unset.
const (
	DefaultLogLevel      = "info"
	DefaultWatchInterval = time.Minute
)

// Config stores meds configuration.
type Config struct {
	// Backend selects the storage backend: "sqlite" (default) or "badger".
	Backend string `json:"backend,omitempty"`

	// DataDir is the root directory for data storage.
	// SQLite puts meds.db here. Badger puts its value log under badger/.
	// Supports ~ expansion for home directory. Defaults to ~/.local/share/meds.
	DataDir string `json:"data_dir,omitempty"`

	// ReminderWindowMinutes widens every window on both sides when deciding
	// what is due. Defaults to 30.
	ReminderWindowMinutes int `json:"reminder_window_minutes,omitempty"`

	LogLevel      string `json:"log_level,omitempty"`
	WatchInterval string `json:"watch_interval,omitempty"`
	RetryAttempts int    `json:"retry_attempts,omitempty"`
}

// GetBackend returns the configured backend, defaulting to "sqlite".
func (c *Config) GetBackend() string {
	if c.Backend == "" {
		return BackendSQLite
	}
	return c.Backend
}

// GetDataDir returns the configured data directory with ~ expanded,
// defaulting to the standard XDG data directory.
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return storage.DataDir()
	}
	return ExpandPath(c.DataDir)
}

// GetReminderWindow returns the reminder window in minutes.
func (c *Config) GetReminderWindow() int {
	if c.ReminderWindowMinutes == 0 {
		return schedule.DefaultReminderMinutes
	}
	return c.ReminderWindowMinutes
}

// GetLogLevel returns the configured log level, defaulting to "info".
func (c *Config) GetLogLevel() string {
	if c.LogLevel == "" {
		return DefaultLogLevel
	}
	return c.LogLevel
}

// GetWatchInterval parses the reminder loop interval, defaulting to one minute.
func (c *Config) GetWatchInterval() (time.Duration, error) {
	if c.WatchInterval == "" {
		return DefaultWatchInterval, nil
	}
	d, err := time.ParseDuration(c.WatchInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid watch_interval %q: %w", c.WatchInterval, err)
	}
	if d < time.Second {
		return 0, fmt.Errorf("watch_interval %s is below one second", d)
	}
	return d, nil
}

// GetRetryAttempts returns how many times a contended transaction is tried.
func (c *Config) GetRetryAttempts() int {
	if c.RetryAttempts <= 0 {
		return storage.DefaultRetryAttempts
	}
	return c.RetryAttempts
}

// Validate checks fields that have no safe fallback.
func (c *Config) Validate() error {
	switch c.GetBackend() {
	case BackendSQLite, BackendBadger:
	default:
		return fmt.Errorf("unknown backend: %q", c.Backend)
	}
	if err := schedule.ValidateReminderWindow(c.GetReminderWindow()); err != nil {
		return fmt.Errorf("reminder_window_minutes: %w", err)
	}
	if _, err := log.ParseLevel(c.GetLogLevel()); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if _, err := c.GetWatchInterval(); err != nil {
		return err
	}
	return nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// NewLogger builds the process logger at the configured level.
func (c *Config) NewLogger(w io.Writer) (*log.Logger, error) {
	level, err := log.ParseLevel(c.GetLogLevel())
	if err != nil {
		return nil, fmt.Errorf("log_level: %w", err)
	}
	return log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: true,
		Prefix:          "meds",
	}), nil
}

// StorageOptions returns the backend options for this config.
func (c *Config) StorageOptions(clock clockwork.Clock, logger *log.Logger) storage.Options {
	return storage.Options{
		Clock:         clock,
		RetryAttempts: c.GetRetryAttempts(),
		Logger:        logger,
	}
}

// EngineConfig returns the engine settings for this config.
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		ReminderWindowMinutes: c.GetReminderWindow(),
		Location:              time.Local,
	}
}

// SQLitePath is the SQLite database file under the data dir.
func (c *Config) SQLitePath() string {
	return filepath.Join(c.GetDataDir(), "meds.db")
}

// BadgerDir is the Badger directory under the data dir.
func (c *Config) BadgerDir() string {
	return filepath.Join(c.GetDataDir(), "badger")
}

// OpenStorage creates a Repository implementation based on the configured backend.
func (c *Config) OpenStorage(opts storage.Options) (storage.Repository, error) {
	backend := c.GetBackend()

	switch backend {
	case BackendSQLite:
		return storage.Open(c.SQLitePath(), opts)
	case BackendBadger:
		return storage.OpenBadger(c.BadgerDir(), opts)
	default:
		return nil, fmt.Errorf("unknown backend: %q", backend)
	}
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "meds", "config.json")
}

// Load reads config from disk, then applies a .env file in the working
// directory (if any) and MEDS_* environment overrides.
func Load() (*Config, error) {
	cfg, err := loadFile(GetConfigPath())
	if err != nil {
		return nil, err
	}

	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// applyEnv overrides fields from MEDS_* variables.
func (c *Config) applyEnv() error {
	if v := os.Getenv("MEDS_BACKEND"); v != "" {
		c.Backend = v
	}
	if v := os.Getenv("MEDS_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("MEDS_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("MEDS_WATCH_INTERVAL"); v != "" {
		c.WatchInterval = v
	}
	if v := os.Getenv("MEDS_REMINDER_WINDOW"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MEDS_REMINDER_WINDOW: %w", err)
		}
		c.ReminderWindowMinutes = n
	}
	if v := os.Getenv("MEDS_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MEDS_RETRY_ATTEMPTS: %w", err)
		}
		c.RetryAttempts = n
	}
	return nil
}

// Save writes config to disk.
func (c *Config) Save() error {
	path := GetConfigPath()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
