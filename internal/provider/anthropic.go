package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ferdousbhai/llm-terminal/internal/domain"
	"github.com/ferdousbhai/llm-terminal/pkg/llm"
)

const (
	anthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
)

type Anthropic struct {
	apiKey  string
	baseURL string
	client  HTTPClient
}

func NewAnthropic(apiKey, baseURL string, client HTTPClient) *Anthropic {
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	if client == nil {
		client = &http.Client{}
	}
	return &Anthropic{apiKey: apiKey, baseURL: baseURL, client: client}
}

func (a *Anthropic) ID() string   { return "anthropic" }
func (a *Anthropic) Name() string { return "Anthropic" }

func (a *Anthropic) Models() []domain.Model {
	return []domain.Model{
		{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", ContextSize: 200000},
		{ID: "claude-opus-4-20250514", Name: "Claude Opus 4", ContextSize: 200000},
		{ID: "claude-3-5-haiku-20241022", Name: "Claude 3.5 Haiku", ContextSize: 200000},
	}
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
	Stream      bool               `json:"stream"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
}

type anthropicTool struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	InputSchema domain.JSONSchema `json:"input_schema"`
}

func (a *Anthropic) Chat(ctx context.Context, req *llm.ChatRequest) (<-chan domain.StreamEvent, error) {
	msgs := make([]anthropicMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == domain.RoleSystem {
			continue
		}

		role := string(m.Role)
		if m.Role == domain.RoleTool {
			// Tool results go back as user content blocks
			role = "user"
		}

		var content []contentPart
		for _, p := range m.Parts {
			switch part := p.(type) {
			case domain.TextPart:
				content = append(content, contentPart{Type: "text", Text: part.Text})
			case domain.ToolCallPart:
				if m.Role == domain.RoleAssistant {
					content = append(content, contentPart{
						Type:  "tool_use",
						ID:    part.ToolID,
						Name:  part.Name,
						Input: part.Args,
					})
				} else {
					content = append(content, contentPart{
						Type:      "tool_result",
						ToolUseID: part.ToolID,
						Content:   part.Result,
					})
				}
			}
		}

		if len(content) > 0 {
			msgs = append(msgs, anthropicMessage{Role: role, Content: content})
		}
	}

	var tools []anthropicTool
	for _, t := range req.Tools {
		tools = append(tools, anthropicTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Parameters,
		})
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 8192
	}

	body := anthropicRequest{
		Model:       req.Model,
		MaxTokens:   maxTokens,
		System:      req.SystemPrompt,
		Messages:    msgs,
		Tools:       tools,
		Stream:      true,
		Temperature: req.Temperature,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+"/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("anthropic API error %d: %s", resp.StatusCode, string(body))
	}

	events := make(chan domain.StreamEvent, 100)
	go a.streamResponse(resp.Body, events)
	return events, nil
}

func (a *Anthropic) Verify(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", a.baseURL+"/models", nil)
	if err != nil {
		return err
	}
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("anthropic API error %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

type anthropicStreamEvent struct {
	Type         string          `json:"type"`
	Index        int             `json:"index,omitempty"`
	Delta        json.RawMessage `json:"delta,omitempty"`
	ContentBlock *struct {
		Type string `json:"type"`
		ID   string `json:"id,omitempty"`
		Name string `json:"name,omitempty"`
	} `json:"content_block,omitempty"`
	Usage *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage,omitempty"`
}

func (a *Anthropic) streamResponse(body io.ReadCloser, events chan<- domain.StreamEvent) {
	defer close(events)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	var currentToolID, currentToolName string
	var toolInputBuffer bytes.Buffer

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := line[6:]

		var event anthropicStreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			continue
		}

		switch event.Type {
		case "content_block_start":
			if event.ContentBlock != nil && event.ContentBlock.Type == "tool_use" {
				currentToolID = event.ContentBlock.ID
				currentToolName = event.ContentBlock.Name
				toolInputBuffer.Reset()
			}

		case "content_block_delta":
			var delta struct {
				Type        string `json:"type"`
				Text        string `json:"text"`
				Thinking    string `json:"thinking"`
				PartialJSON string `json:"partial_json"`
			}
			json.Unmarshal(event.Delta, &delta)

			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					events <- domain.StreamEvent{
						Type:    domain.StreamEventText,
						Content: delta.Text,
					}
				}
			case "thinking_delta":
				if delta.Thinking != "" {
					events <- domain.StreamEvent{
						Type:    domain.StreamEventThinking,
						Content: delta.Thinking,
					}
				}
			case "input_json_delta":
				toolInputBuffer.WriteString(delta.PartialJSON)
			}

		case "content_block_stop":
			if currentToolID != "" {
				var args map[string]any
				json.Unmarshal(toolInputBuffer.Bytes(), &args)

				events <- domain.StreamEvent{
					Type: domain.StreamEventToolCall,
					Part: domain.ToolCallPart{
						ToolID: currentToolID,
						Name:   currentToolName,
						Args:   args,
					},
				}
				currentToolID = ""
				currentToolName = ""
			}

		case "message_delta":
			if event.Usage != nil {
				events <- domain.StreamEvent{
					Type: domain.StreamEventUsage,
					Usage: &domain.Usage{
						InputTokens:  event.Usage.InputTokens,
						OutputTokens: event.Usage.OutputTokens,
					},
				}
			}

		case "message_stop":
			events <- domain.StreamEvent{Type: domain.StreamEventDone, Done: true}
			return
		}
	}

	events <- domain.StreamEvent{Type: domain.StreamEventDone, Done: true}
}

var _ llm.Provider = (*Anthropic)(nil)
