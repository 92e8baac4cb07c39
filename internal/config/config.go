package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultCaptureTimeoutSeconds = 120
	DefaultSweepIntervalSeconds  = 5
	DefaultSource                = "chat"
)

// Config holds application configuration
type Config struct {
	AuthorizedUserID      string `toml:"authorized_user_id"`
	CaptureTimeoutSeconds int    `toml:"capture_timeout_seconds"`
	SweepIntervalSeconds  int    `toml:"sweep_interval_seconds"`
	IdeasDir              string `toml:"ideas_dir"`    // vault directory for idea markdown files
	StatePath             string `toml:"state_path"`   // pending-session JSON store
	JournalPath           string `toml:"journal_path"` // sqlite capture journal
	Source                string `toml:"source"`       // origin label written into note metadata
	NotifyExpiry          bool   `toml:"notify_expiry"`
	GatewayURL            string `toml:"gateway_url"` // optional chat gateway websocket URL
	Debug                 bool   `toml:"-"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		CaptureTimeoutSeconds: DefaultCaptureTimeoutSeconds,
		SweepIntervalSeconds:  DefaultSweepIntervalSeconds,
		IdeasDir:              "~/vault/ideas",
		StatePath:             "state/sessions.json",
		JournalPath:           "state/journal.db",
		Source:                DefaultSource,
	}
}

// Load merges a TOML config file (if path is non-empty) over the defaults
// and expands home-relative paths.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	var err error
	if cfg.IdeasDir, err = expandHome(cfg.IdeasDir); err != nil {
		return cfg, err
	}
	if cfg.StatePath, err = expandHome(cfg.StatePath); err != nil {
		return cfg, err
	}
	if cfg.JournalPath, err = expandHome(cfg.JournalPath); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// CaptureTimeout is the length of a capture window.
func (c Config) CaptureTimeout() time.Duration {
	return time.Duration(c.CaptureTimeoutSeconds) * time.Second
}

// SweepInterval is how often the background sweep retires expired sessions.
func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
