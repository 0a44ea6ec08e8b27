package domain

import "github.com/oklog/ulid/v2"

// ServerConfig is the launch recipe for one external tool server.
// ID is stable across renames; sessions and CLI operations reference it,
// the name is display-only.
type ServerConfig struct {
	ID      string            `json:"id" yaml:"id"`
	Name    string            `json:"name" yaml:"name"`
	Command string            `json:"command" yaml:"command"`
	Args    []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	Enabled bool              `json:"enabled" yaml:"enabled"`
}

// NewServerConfig creates an enabled server config with a fresh ID.
func NewServerConfig(name, command string, args []string) ServerConfig {
	return ServerConfig{
		ID:      ulid.Make().String(),
		Name:    name,
		Command: command,
		Args:    args,
		Enabled: true,
	}
}
