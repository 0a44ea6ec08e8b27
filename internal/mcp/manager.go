package mcp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/ferdousbhai/llm-terminal/internal/domain"
)

// ErrToolNotFound is returned when no connected session exposes the
// requested tool.
var ErrToolNotFound = errors.New("tool not found")

type toolCaller interface {
	ListTools(ctx context.Context) ([]domain.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
	Close() error
}

// Session is one live connection to a tool server.
type Session struct {
	ServerID   string
	ServerName string

	client toolCaller
	tools  []domain.Tool
}

// Tools returns the session's tool list.
func (s *Session) Tools() []domain.Tool { return s.tools }

// Manager owns the connected sessions. Sessions are kept in connection
// order so tool dispatch is deterministic: when two servers expose a
// tool with the same name, the first-connected one wins.
type Manager struct {
	sessions []*Session
	connect  func(sc domain.ServerConfig, logger *log.Logger) (toolCaller, error)
	logger   *log.Logger
	mu       sync.RWMutex
}

func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		connect: func(sc domain.ServerConfig, logger *log.Logger) (toolCaller, error) {
			return NewClient(sc.Command, sc.Args, sc.Env, logger)
		},
		logger: logger,
	}
}

// Connect spawns the server and registers its session. On any failure
// the process is torn down and no session is retained.
func (m *Manager) Connect(ctx context.Context, sc domain.ServerConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sessions {
		if s.ServerID == sc.ID {
			return nil
		}
	}

	client, err := m.connect(sc, m.logger.With("server", sc.Name))
	if err != nil {
		return fmt.Errorf("connect to %s: %w", sc.Name, err)
	}

	tools, err := client.ListTools(ctx)
	if err != nil {
		client.Close()
		return fmt.Errorf("list tools from %s: %w", sc.Name, err)
	}

	m.sessions = append(m.sessions, &Session{
		ServerID:   sc.ID,
		ServerName: sc.Name,
		client:     client,
		tools:      tools,
	})
	m.logger.Info("connected tool server", "server", sc.Name, "tools", len(tools))
	return nil
}

// ConnectAll connects every given server, collecting per-server errors
// instead of aborting on the first failure.
func (m *Manager) ConnectAll(ctx context.Context, servers []domain.ServerConfig) map[string]error {
	failures := make(map[string]error)
	for _, sc := range servers {
		if err := m.Connect(ctx, sc); err != nil {
			m.logger.Warn("tool server connection failed", "server", sc.Name, "err", err)
			failures[sc.Name] = err
		}
	}
	return failures
}

// Disconnect tears down the session for a server id.
func (m *Manager) Disconnect(serverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, s := range m.sessions {
		if s.ServerID == serverID {
			m.sessions = append(m.sessions[:i], m.sessions[i+1:]...)
			return s.client.Close()
		}
	}
	return fmt.Errorf("no session for server %s", serverID)
}

// Sessions returns the live sessions in connection order.
func (m *Manager) Sessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Session(nil), m.sessions...)
}

// Tools aggregates tools across sessions in connection order. A name
// exposed by more than one server appears once, from the session that
// would win dispatch.
func (m *Manager) Tools() []domain.Tool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var all []domain.Tool
	for _, s := range m.sessions {
		for _, t := range s.tools {
			if seen[t.Name] {
				continue
			}
			seen[t.Name] = true
			all = append(all, t)
		}
	}
	return all
}

// CallTool dispatches one invocation to the first session exposing the
// tool name.
func (m *Manager) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	m.mu.RLock()
	var target *Session
	for _, s := range m.sessions {
		for _, t := range s.tools {
			if t.Name == name {
				target = s
				break
			}
		}
		if target != nil {
			break
		}
	}
	m.mu.RUnlock()

	if target == nil {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return target.client.CallTool(ctx, name, args)
}

// Close tears down every session.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sessions {
		s.client.Close()
	}
	m.sessions = nil
}
