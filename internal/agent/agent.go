// Package agent runs the tool-call orchestration loop: stream a model
// turn, execute any requested tools, feed the results back, and repeat
// until the model answers in plain text or the turn limit is reached.
package agent

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ferdousbhai/llm-terminal/internal/config"
	"github.com/ferdousbhai/llm-terminal/internal/domain"
	"github.com/ferdousbhai/llm-terminal/pkg/llm"
)

// TruncationNotice is appended when the loop exhausts its tool turns.
const TruncationNotice = "*Maximum tool turns reached*"

// ToolDispatcher resolves and executes tool calls. Implemented by the
// MCP session manager.
type ToolDispatcher interface {
	Tools() []domain.Tool
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
}

// Agent owns the in-memory conversation history. History is mutated
// only from the goroutine running Run; the UI reads copies.
type Agent struct {
	registry *llm.Registry
	tools    ToolDispatcher
	cfg      *config.Config
	logger   *log.Logger

	mu      sync.Mutex
	history []domain.Message
}

func New(registry *llm.Registry, tools ToolDispatcher, cfg *config.Config, logger *log.Logger) *Agent {
	if logger == nil {
		logger = log.Default()
	}
	return &Agent{
		registry: registry,
		tools:    tools,
		cfg:      cfg,
		logger:   logger,
	}
}

// History returns a copy of the conversation so far.
func (a *Agent) History() []domain.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.Message(nil), a.history...)
}

// NewConversation clears the in-memory history. Persisted config is
// untouched.
func (a *Agent) NewConversation() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = nil
}

func (a *Agent) appendHistory(msg domain.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = append(a.history, msg)
}

// Run processes one user prompt and streams events until the turn is
// complete. The returned channel is closed when the run ends, whether
// normally, by error, or by turn-limit truncation.
func (a *Agent) Run(ctx context.Context, input string) (<-chan domain.StreamEvent, error) {
	provider, model, err := a.registry.Resolve(a.cfg.Model)
	if err != nil {
		return nil, err
	}

	a.appendHistory(domain.NewMessage(domain.RoleUser, domain.TextPart{Text: input}))

	events := make(chan domain.StreamEvent, 100)
	go func() {
		defer close(events)
		a.loop(ctx, provider, model, events)
	}()
	return events, nil
}

func (a *Agent) loop(ctx context.Context, provider llm.Provider, model string, events chan<- domain.StreamEvent) {
	tools := a.tools.Tools()
	toolTurns := 0
	maxTurns := a.cfg.MaxToolTurns

	for {
		req := &llm.ChatRequest{
			Model:        model,
			Messages:     a.History(),
			Tools:        tools,
			SystemPrompt: a.cfg.SystemPrompt,
		}

		start := time.Now()
		providerEvents, err := provider.Chat(ctx, req)
		if err != nil {
			events <- domain.StreamEvent{Type: domain.StreamEventError, Error: err}
			return
		}

		var pendingCalls []domain.ToolCallPart
		var textBuffer string

		for event := range providerEvents {
			switch event.Type {
			case domain.StreamEventText:
				textBuffer += event.Content
				events <- event

			case domain.StreamEventThinking, domain.StreamEventUsage:
				events <- event

			case domain.StreamEventError:
				events <- event
				// Drain the rest so the provider's send goroutine can exit
				for range providerEvents {
				}
				return

			case domain.StreamEventToolCall:
				if tc, ok := event.Part.(domain.ToolCallPart); ok {
					pendingCalls = append(pendingCalls, tc)
					events <- event
				}

			case domain.StreamEventDone:
				a.logger.Debug("model turn finished",
					"model", model,
					"duration", time.Since(start),
					"tool_calls", len(pendingCalls))
			}
		}

		if len(pendingCalls) == 0 {
			if textBuffer != "" {
				a.appendHistory(domain.NewMessage(domain.RoleAssistant, domain.TextPart{Text: textBuffer}))
			}
			events <- domain.StreamEvent{Type: domain.StreamEventDone, Done: true}
			return
		}

		// Record the assistant turn with its tool requests
		assistantParts := make([]domain.Part, 0, len(pendingCalls)+1)
		if textBuffer != "" {
			assistantParts = append(assistantParts, domain.TextPart{Text: textBuffer})
		}
		for _, tc := range pendingCalls {
			assistantParts = append(assistantParts, tc)
		}
		a.appendHistory(domain.NewMessage(domain.RoleAssistant, assistantParts...))

		if toolTurns >= maxTurns {
			a.logger.Warn("tool turn limit reached", "max", maxTurns)
			events <- domain.StreamEvent{Type: domain.StreamEventText, Content: "\n\n" + TruncationNotice}
			a.appendHistory(domain.NewMessage(domain.RoleAssistant, domain.TextPart{Text: TruncationNotice}))
			events <- domain.StreamEvent{Type: domain.StreamEventDone, Done: true}
			return
		}
		toolTurns++

		// Execute calls in request order, all results as one turn
		resultParts := make([]domain.Part, 0, len(pendingCalls))
		for _, tc := range pendingCalls {
			resultParts = append(resultParts, a.executeCall(ctx, tc, events))
		}
		a.appendHistory(domain.NewMessage(domain.RoleTool, resultParts...))
	}
}

// executeCall runs one tool call. Failures, including unknown tool
// names, become an error payload fed back to the model rather than
// aborting the run.
func (a *Agent) executeCall(ctx context.Context, tc domain.ToolCallPart, events chan<- domain.StreamEvent) domain.Part {
	start := time.Now()
	output, err := a.tools.CallTool(ctx, tc.Name, tc.Args)
	tc.Duration = time.Since(start)

	if err != nil {
		a.logger.Warn("tool call failed", "tool", tc.Name, "err", err)
		tc.Error = err.Error()
		tc.Result = mustJSON(map[string]any{"error": err.Error()})
	} else {
		tc.Result = mustJSON(map[string]any{"result": output})
	}

	events <- domain.StreamEvent{Type: domain.StreamEventToolDone, Part: tc}
	return tc
}

func mustJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}
