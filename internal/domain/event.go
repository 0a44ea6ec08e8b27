package domain

// StreamEvent represents events emitted while streaming a model turn.
// Every vendor stream is normalized into this tagged form so consumers
// can switch exhaustively instead of inspecting vendor payload shapes.
type StreamEvent struct {
	Type    StreamEventType `json:"type"`
	Content string          `json:"content,omitempty"`
	Part    Part            `json:"part,omitempty"`
	Error   error           `json:"error,omitempty"`
	Done    bool            `json:"done,omitempty"`
	Usage   *Usage          `json:"usage,omitempty"`
}

type StreamEventType string

const (
	StreamEventText     StreamEventType = "text"
	StreamEventThinking StreamEventType = "thinking"
	StreamEventToolCall StreamEventType = "tool_call"
	StreamEventToolDone StreamEventType = "tool_done"
	StreamEventUsage    StreamEventType = "usage"
	StreamEventError    StreamEventType = "error"
	StreamEventDone     StreamEventType = "done"
)
