// Package config loads and persists the application settings file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"

	"github.com/ferdousbhai/llm-terminal/internal/domain"
)

const (
	ConfigFileName = "config.yaml"
	ConfigDirName  = "llm-terminal"

	DefaultModel        = "openai:gpt-4o-mini"
	DefaultSystemPrompt = "You are a helpful AI assistant."
	DefaultMaxToolTurns = 5
)

// ProviderConfig holds per-vendor credentials.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
}

// Config holds the application configuration
type Config struct {
	Model        string                    `yaml:"model"`
	SystemPrompt string                    `yaml:"system_prompt"`
	MaxToolTurns int                       `yaml:"max_tool_turns"`
	Providers    map[string]ProviderConfig `yaml:"providers,omitempty"`
	Servers      []domain.ServerConfig     `yaml:"servers,omitempty"`

	path string
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Model:        DefaultModel,
		SystemPrompt: DefaultSystemPrompt,
		MaxToolTurns: DefaultMaxToolTurns,
		Providers:    make(map[string]ProviderConfig),
		path:         DefaultPath(),
	}
}

// Load reads the config file at path. A missing or corrupt file yields
// defaults; a partial file keeps defaults for the fields it omits.
// Empty path means DefaultPath().
func Load(path string) *Config {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()
	cfg.path = path

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			cfg = Default()
			cfg.path = path
		}
	}
	cfg.normalize()

	// A .env next to the working directory takes effect before env lookup
	godotenv.Load()
	cfg.applyEnv()

	return cfg
}

func (c *Config) normalize() {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	if c.MaxToolTurns <= 0 {
		c.MaxToolTurns = DefaultMaxToolTurns
	}
	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	// Entries written by earlier versions have no id
	for i := range c.Servers {
		if c.Servers[i].ID == "" {
			c.Servers[i].ID = ulid.Make().String()
		}
	}
}

func (c *Config) applyEnv() {
	for provider, envKey := range map[string]string{
		"openai":    "OPENAI_API_KEY",
		"anthropic": "ANTHROPIC_API_KEY",
		"gemini":    "GEMINI_API_KEY",
	} {
		if key := os.Getenv(envKey); key != "" {
			pc := c.Providers[provider]
			pc.APIKey = key
			c.Providers[provider] = pc
		}
	}
	if model := os.Getenv("LLM_TERMINAL_MODEL"); model != "" {
		c.Model = model
	}
}

// Save writes the configuration to its path, creating parent directories.
func (c *Config) Save() error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	return os.WriteFile(c.path, data, 0600)
}

// Path returns the file this config was loaded from.
func (c *Config) Path() string { return c.path }

// APIKey returns the configured key for a provider, if any.
func (c *Config) APIKey(provider string) string {
	return c.Providers[provider].APIKey
}

// BaseURL returns the configured base URL override for a provider, if any.
func (c *Config) BaseURL(provider string) string {
	return c.Providers[provider].BaseURL
}

// SetAPIKey stores a key for a provider.
func (c *Config) SetAPIKey(provider, key string) {
	pc := c.Providers[provider]
	pc.APIKey = key
	c.Providers[provider] = pc
}

// AddServer appends a server config, rejecting duplicate names.
func (c *Config) AddServer(sc domain.ServerConfig) error {
	for _, existing := range c.Servers {
		if existing.Name == sc.Name {
			return fmt.Errorf("server %q already exists", sc.Name)
		}
	}
	c.Servers = append(c.Servers, sc)
	return nil
}

// UpdateServer replaces the server with the same id.
func (c *Config) UpdateServer(sc domain.ServerConfig) error {
	for i, existing := range c.Servers {
		if existing.ID == sc.ID {
			c.Servers[i] = sc
			return nil
		}
	}
	return fmt.Errorf("server %s not found", sc.ID)
}

// RemoveServer deletes the server with the given id.
func (c *Config) RemoveServer(id string) error {
	for i, existing := range c.Servers {
		if existing.ID == id {
			c.Servers = append(c.Servers[:i], c.Servers[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("server %s not found", id)
}

// SetServerEnabled toggles a server by id.
func (c *Config) SetServerEnabled(id string, enabled bool) error {
	for i := range c.Servers {
		if c.Servers[i].ID == id {
			c.Servers[i].Enabled = enabled
			return nil
		}
	}
	return fmt.Errorf("server %s not found", id)
}

// FindServer looks a server up by name.
func (c *Config) FindServer(name string) (domain.ServerConfig, bool) {
	for _, sc := range c.Servers {
		if sc.Name == name {
			return sc, true
		}
	}
	return domain.ServerConfig{}, false
}

// EnabledServers returns the servers that should be connected at startup.
func (c *Config) EnabledServers() []domain.ServerConfig {
	var enabled []domain.ServerConfig
	for _, sc := range c.Servers {
		if sc.Enabled {
			enabled = append(enabled, sc)
		}
	}
	return enabled
}

// DefaultPath returns the standard config file location.
func DefaultPath() string {
	if p := os.Getenv("LLM_TERMINAL_CONFIG"); p != "" {
		return p
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, ConfigDirName, ConfigFileName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", ConfigDirName, ConfigFileName)
}

// DataDir returns the directory for logs and other app data.
func DataDir() string {
	return filepath.Dir(DefaultPath())
}
