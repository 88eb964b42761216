// Package config loads the engine's YAML configuration. Every field has a
// working default so a zero-config process runs local-only with a headless
// browser; the file only needs to name what deviates.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP API surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// RemoteConfig configures the optional remote automation server.
type RemoteConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Endpoint       string `yaml:"endpoint"`
	ConnectRetries int    `yaml:"connect_retries"`
	// Fixed backoff between connection attempts, e.g. "2s".
	RetryBackoff   Duration `yaml:"retry_backoff"`
	CommandTimeout Duration `yaml:"command_timeout"`
}

// BrowserConfig configures the local Playwright driver.
type BrowserConfig struct {
	Headless           bool    `yaml:"headless"`
	ViewportWidth      int     `yaml:"viewport_width"`
	ViewportHeight     int     `yaml:"viewport_height"`
	ActionTimeoutMS    float64 `yaml:"action_timeout_ms"`
	MaxContexts        int     `yaml:"max_contexts"`
	IdleTimeoutMinutes int     `yaml:"idle_timeout_minutes"`
}

// AssistConfig configures optional model-guided selector discovery. It is
// disabled unless an API key is available.
type AssistConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Model           string `yaml:"model"`
	APIKeyEnv       string `yaml:"api_key_env"`
	MaxPromptTokens int    `yaml:"max_prompt_tokens"`
}

// Config is the full engine configuration.
type Config struct {
	Server    ServerConfig  `yaml:"server"`
	Remote    RemoteConfig  `yaml:"remote"`
	Browser   BrowserConfig `yaml:"browser"`
	Assist    AssistConfig  `yaml:"assist"`
	Artifacts struct {
		Dir string `yaml:"dir"`
	} `yaml:"artifacts"`

	// AllowedDomains are glob patterns ("*.carrier.example") for hosts the
	// engine may navigate to. Empty means unrestricted.
	AllowedDomains []string `yaml:"allowed_domains"`
}

// Default returns the zero-config defaults.
func Default() Config {
	var c Config
	c.Server.Addr = ":8700"
	c.Remote.Enabled = false
	c.Remote.ConnectRetries = 3
	c.Remote.RetryBackoff = Duration(2 * time.Second)
	c.Remote.CommandTimeout = Duration(30 * time.Second)
	c.Browser.Headless = true
	c.Browser.ViewportWidth = 1280
	c.Browser.ViewportHeight = 720
	c.Browser.ActionTimeoutMS = 30000
	c.Browser.MaxContexts = 5
	c.Browser.IdleTimeoutMinutes = 10
	c.Assist.Model = "gpt-4o-mini"
	c.Assist.APIKeyEnv = "OPENAI_API_KEY"
	c.Assist.MaxPromptTokens = 6000
	return c
}

// Load reads a YAML config file over the defaults. A missing file is not
// an error: the defaults are returned as-is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Remote.Enabled && c.Remote.Endpoint == "" {
		return fmt.Errorf("remote.endpoint is required when remote.enabled is true")
	}
	if c.Remote.ConnectRetries < 1 {
		return fmt.Errorf("remote.connect_retries must be at least 1")
	}
	if c.Browser.MaxContexts < 1 {
		return fmt.Errorf("browser.max_contexts must be at least 1")
	}
	if _, err := NewDomainWhitelist(c.AllowedDomains); err != nil {
		return err
	}
	return nil
}
