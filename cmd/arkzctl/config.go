package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the arkzctl config file. Flags override every field.
type Config struct {
	ServerURL string `toml:"server_url"`
	Token     string `toml:"token"`
	OrgID     string `toml:"org_id"`
}

// DefaultConfigPath is ~/.config/arkz/config.toml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating home dir: %w", err)
	}
	return filepath.Join(home, ".config", "arkz", "config.toml"), nil
}

// ReadConfig decodes a Config from r.
func ReadConfig(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// LoadConfig reads path. A missing file yields an empty Config.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()
	cfg, err := ReadConfig(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Override applies non-empty flag values.
func (c *Config) Override(serverURL, token, orgID string) {
	if serverURL != "" {
		c.ServerURL = serverURL
	}
	if token != "" {
		c.Token = token
	}
	if orgID != "" {
		c.OrgID = orgID
	}
}

func (c *Config) validate() error {
	switch {
	case c.ServerURL == "":
		return errors.New("server_url is not set (config file or --server)")
	case c.Token == "":
		return errors.New("token is not set (config file, --token or ARKZ_TOKEN)")
	case c.OrgID == "":
		return errors.New("org_id is not set (config file or --org)")
	}
	return nil
}
