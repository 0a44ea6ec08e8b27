// Package domain defines the core types shared across the application:
// messages and their parts, stream events, tools, and server configs.
package domain

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Message represents a single message in a conversation
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Parts     []Part    `json:"parts"`
	Timestamp time.Time `json:"timestamp"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// NewMessage creates a message with a fresh ID and timestamp.
func NewMessage(role Role, parts ...Part) Message {
	return Message{
		ID:        ulid.Make().String(),
		Role:      role,
		Parts:     parts,
		Timestamp: time.Now(),
	}
}

// Text concatenates the text parts of the message.
func (m Message) Text() string {
	var s string
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			s += tp.Text
		}
	}
	return s
}

// ToolCalls returns the tool call parts of the message, in order.
func (m Message) ToolCalls() []ToolCallPart {
	var calls []ToolCallPart
	for _, p := range m.Parts {
		if tc, ok := p.(ToolCallPart); ok {
			calls = append(calls, tc)
		}
	}
	return calls
}

// Part represents content within a message
type Part interface {
	PartType() string
}

type TextPart struct {
	Text string `json:"text"`
}

func (p TextPart) PartType() string { return "text" }

type ReasoningPart struct {
	Text string `json:"text"`
}

func (p ReasoningPart) PartType() string { return "reasoning" }

type ToolCallPart struct {
	ToolID   string         `json:"toolID"`
	Name     string         `json:"name"`
	Args     map[string]any `json:"args"`
	Result   string         `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
	Duration time.Duration  `json:"duration,omitempty"`
}

func (p ToolCallPart) PartType() string { return "tool_call" }
