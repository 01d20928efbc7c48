package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			MaxMessageChars: 32000,
		},
		Routing: RoutingConfig{
			DefaultAgentID: "main",
		},
		Sessions: SessionsConfig{
			Storage: "~/.vimagram/sessions",
		},
		Data: DataConfig{
			Dir: "~/.vimagram/data",
		},
	}
}

// Load reads the config file at path, applies defaults, env overrides, and
// validates it. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides lets secrets be supplied outside the config file.
// VIMAGRAM_TOKEN / VIMAGRAM_SIGNING_SECRET apply to every account that has
// not set the value explicitly.
func (c *Config) ApplyEnvOverrides() {
	token := os.Getenv("VIMAGRAM_TOKEN")
	secret := os.Getenv("VIMAGRAM_SIGNING_SECRET")
	for i := range c.Channels.Vimagram {
		acc := &c.Channels.Vimagram[i]
		if acc.Token == "" && token != "" {
			acc.Token = token
		}
		if acc.Signing.Secret == "" && secret != "" {
			acc.Signing.Secret = secret
		}
	}
}

// Validate rejects configurations the gateway cannot run with. A missing or
// non-https base URL on an enabled account is a hard error, not a silent skip.
func (c *Config) Validate() error {
	for i := range c.Channels.Vimagram {
		acc := &c.Channels.Vimagram[i]
		if !acc.Enabled {
			continue
		}
		if acc.AccountID == "" {
			return fmt.Errorf("channels.vimagram[%d]: account_id is required", i)
		}
		if acc.BaseURL == "" {
			return fmt.Errorf("vimagram account %s: base_url is required", acc.AccountID)
		}
		if !strings.HasPrefix(acc.BaseURL, "https://") {
			return fmt.Errorf("vimagram account %s: base_url must be https, got %q", acc.AccountID, acc.BaseURL)
		}
		if acc.Signing.Enabled && acc.Signing.Secret == "" {
			return fmt.Errorf("vimagram account %s: signing enabled without secret", acc.AccountID)
		}
	}
	return nil
}

// ExpandHome expands a leading ~ to the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
