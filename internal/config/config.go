package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	toml "github.com/pelletier/go-toml/v2"
)

// Config captures the user editable settings stored in
// ~/.config/gitsetup/config.toml. Name and email are remembered across
// runs so the wizard only asks once.
type Config struct {
	Name     string `toml:"name"`
	Email    string `toml:"email"`
	Host     string `toml:"host"`
	SSHDir   string `toml:"ssh_dir"`
	KeyTitle string `toml:"key_title"`
}

// ErrMissingHost indicates the config cleared the required host.
var ErrMissingHost = errors.New("config.host must be set")

// Default returns a baseline configuration.
func Default() Config {
	cfg := Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "github.com"
	}
	if c.KeyTitle == "" {
		if host, err := os.Hostname(); err == nil && host != "" {
			c.KeyTitle = host
		} else {
			c.KeyTitle = "workstation"
		}
	}
}

// Validate ensures the configuration can guide the wizard.
func (c Config) Validate() error {
	if c.Host == "" {
		return ErrMissingHost
	}
	return nil
}

// ResolveSSHDir returns the configured ssh directory, defaulting to
// ~/.ssh.
func (c Config) ResolveSSHDir() (string, error) {
	if c.SSHDir != "" {
		return c.SSHDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".ssh"), nil
}

// DefaultPath locates the config file under the user config dir.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config directory: %w", err)
	}
	return filepath.Join(base, "gitsetup", "config.toml"), nil
}

// Load reads configuration from disk. Missing files return a default
// config.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, err
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes configuration to disk, creating parent directories as
// needed.
func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return atomic.WriteFile(path, bytes.NewReader(data))
}
