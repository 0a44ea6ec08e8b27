// Package testutil provides common test helpers and mocks.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/ferdousbhai/llm-terminal/internal/domain"
	"github.com/ferdousbhai/llm-terminal/pkg/llm"
)

// MockProvider replays queued event sequences, one per Chat call.
type MockProvider struct {
	responses [][]domain.StreamEvent
	callCount int
	requests  []*llm.ChatRequest
	mu        sync.Mutex
}

func NewMockProvider(responses ...[]domain.StreamEvent) *MockProvider {
	return &MockProvider{responses: responses}
}

func (m *MockProvider) ID() string   { return "mock" }
func (m *MockProvider) Name() string { return "Mock" }
func (m *MockProvider) Models() []domain.Model {
	return []domain.Model{{ID: "mock-1", Name: "Mock Model"}}
}

func (m *MockProvider) Verify(ctx context.Context) error { return nil }

func (m *MockProvider) Chat(ctx context.Context, req *llm.ChatRequest) (<-chan domain.StreamEvent, error) {
	m.mu.Lock()
	idx := m.callCount
	m.callCount++
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	events := make(chan domain.StreamEvent, 100)
	go func() {
		defer close(events)
		if idx < len(m.responses) {
			for _, event := range m.responses[idx] {
				events <- event
			}
		}
	}()
	return events, nil
}

// CallCount reports how many times Chat was invoked.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Request returns the i-th captured ChatRequest.
func (m *MockProvider) Request(i int) *llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[i]
}

// MockDispatcher satisfies the agent's tool dispatcher with canned
// results.
type MockDispatcher struct {
	ToolList []domain.Tool
	Results  map[string]string
	Errs     map[string]error

	mu    sync.Mutex
	calls []string
}

func (d *MockDispatcher) Tools() []domain.Tool { return d.ToolList }

func (d *MockDispatcher) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	d.mu.Lock()
	d.calls = append(d.calls, name)
	d.mu.Unlock()

	if err, ok := d.Errs[name]; ok {
		return "", err
	}
	if result, ok := d.Results[name]; ok {
		return result, nil
	}
	return "", fmt.Errorf("tool not found: %s", name)
}

// Calls returns the tool names dispatched, in order.
func (d *MockDispatcher) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// TextResponse creates a plain text turn.
func TextResponse(text string) []domain.StreamEvent {
	return []domain.StreamEvent{
		{Type: domain.StreamEventText, Content: text},
		{Type: domain.StreamEventDone, Done: true},
	}
}

// ToolCallResponse creates a turn requesting the given tool calls.
func ToolCallResponse(calls ...domain.ToolCallPart) []domain.StreamEvent {
	events := make([]domain.StreamEvent, 0, len(calls)+1)
	for _, tc := range calls {
		events = append(events, domain.StreamEvent{Type: domain.StreamEventToolCall, Part: tc})
	}
	events = append(events, domain.StreamEvent{Type: domain.StreamEventDone, Done: true})
	return events
}

// DoneResponse creates an empty turn.
func DoneResponse() []domain.StreamEvent {
	return []domain.StreamEvent{
		{Type: domain.StreamEventDone, Done: true},
	}
}

// CollectEvents drains a channel and tallies it by type.
func CollectEvents(events <-chan domain.StreamEvent) (text string, toolCalls, toolDones int) {
	for event := range events {
		switch event.Type {
		case domain.StreamEventText:
			text += event.Content
		case domain.StreamEventToolCall:
			toolCalls++
		case domain.StreamEventToolDone:
			toolDones++
		}
	}
	return
}
