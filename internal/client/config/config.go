// Package config loads the scribe CLI configuration from an optional YAML
// file and SCRIBE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the CLI settings.
type Config struct {
	// ServerURL is the backend platform's base URL.
	ServerURL string `mapstructure:"server_url"`

	// StateDir holds the persisted session and auth state.
	StateDir string `mapstructure:"state_dir"`

	// Verbose lowers the log level from warn to debug.
	Verbose bool `mapstructure:"verbose"`
}

// Options let callers and tests point Load somewhere other than the
// user's home directory.
type Options struct {
	// File is an explicit config file; when set it must exist.
	File string

	// Dir is searched for config.yaml when File is empty. Defaults to
	// $XDG_CONFIG_HOME/scribe or ~/.config/scribe.
	Dir string
}

// Load reads configuration from file and environment. A missing default
// config file is not an error.
func Load(opts Options) (*Config, error) {
	v := viper.New()

	dir := opts.Dir
	if dir == "" {
		dir = defaultDir()
	}

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
	}

	v.SetEnvPrefix("SCRIBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("state_dir", filepath.Join(dir, "state"))
	v.SetDefault("verbose", false)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
	u, err := url.Parse(cfg.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("server_url must be an absolute URL, got %q", cfg.ServerURL)
	}
	return &cfg, nil
}

func defaultDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "scribe")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".scribe"
	}
	return filepath.Join(home, ".config", "scribe")
}
