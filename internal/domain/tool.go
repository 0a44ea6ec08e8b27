package domain

// Tool describes a callable capability exposed by a connected server.
type Tool struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  JSONSchema `json:"parameters"`
}

type JSONSchema map[string]any
