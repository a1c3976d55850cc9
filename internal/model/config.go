package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultBaseURL is the production portal API host.
const DefaultBaseURL = "https://wapiv2.managemyhealth.co.nz"

// PortalConfig holds settings for talking to the portal API.
type PortalConfig struct {
	// BaseURL is the root URL of the portal API.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds every individual HTTP call.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// RequestsPerSec and Burst configure the client-side rate limiter.
	RequestsPerSec float64 `mapstructure:"requests_per_sec" yaml:"requests_per_sec"`
	Burst          int     `mapstructure:"burst" yaml:"burst"`
}

// Timeout returns TimeoutSec as a duration.
func (c PortalConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// PollConfig controls the refresh cadence.
type PollConfig struct {
	IntervalMin int `mapstructure:"interval_min" yaml:"interval_min"`
}

// Interval returns IntervalMin as a duration.
func (c PollConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMin) * time.Minute
}

// StoreConfig locates the local SQLite database.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// ServerConfig holds settings for the state API.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Portal  PortalConfig  `mapstructure:"portal" yaml:"portal"`
	Poll    PollConfig    `mapstructure:"poll" yaml:"poll"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
}

// configDir returns ~/.config/managemyhealth, or the working directory
// when the home directory cannot be resolved.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "managemyhealth")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/managemyhealth/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Portal: PortalConfig{
			BaseURL:        DefaultBaseURL,
			TimeoutSec:     10,
			RequestsPerSec: 2,
			Burst:          4,
		},
		Poll:    PollConfig{IntervalMin: 30},
		Store:   StoreConfig{Path: filepath.Join(configDir(), "mmh.db")},
		Server:  ServerConfig{Addr: "127.0.0.1:8123"},
		Display: DisplayConfig{Theme: "default"},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A .env file in the working directory is loaded first and MMH_* variables
// (e.g. MMH_PORTAL_BASE_URL) override file values. If the file does not
// exist, defaults plus environment overrides are returned.
func LoadConfig(path string) (*AppConfig, error) {
	_ = godotenv.Load()

	def := defaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("MMH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults so missing keys resolve to sensible values and so
	// AutomaticEnv knows which keys to look up.
	v.SetDefault("portal.base_url", def.Portal.BaseURL)
	v.SetDefault("portal.timeout_sec", def.Portal.TimeoutSec)
	v.SetDefault("portal.requests_per_sec", def.Portal.RequestsPerSec)
	v.SetDefault("portal.burst", def.Portal.Burst)
	v.SetDefault("poll.interval_min", def.Poll.IntervalMin)
	v.SetDefault("store.path", def.Store.Path)
	v.SetDefault("server.addr", def.Server.Addr)
	v.SetDefault("display.theme", def.Display.Theme)

	if err := v.ReadInConfig(); err != nil {
		_, isPathErr := err.(*os.PathError)
		_, isNotFound := err.(viper.ConfigFileNotFoundError)
		if !isPathErr && !isNotFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := def
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Portal.TimeoutSec <= 0 {
		cfg.Portal.TimeoutSec = def.Portal.TimeoutSec
	}
	if cfg.Poll.IntervalMin <= 0 {
		cfg.Poll.IntervalMin = def.Poll.IntervalMin
	}
	cfg.Portal.BaseURL = strings.TrimRight(cfg.Portal.BaseURL, "/")

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("portal", cfg.Portal)
	v.Set("poll", cfg.Poll)
	v.Set("store", cfg.Store)
	v.Set("server", cfg.Server)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
