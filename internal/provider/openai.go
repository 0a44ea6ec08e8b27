package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/ferdousbhai/llm-terminal/internal/domain"
	"github.com/ferdousbhai/llm-terminal/pkg/llm"
)

const openaiBaseURL = "https://api.openai.com/v1"

// OpenAI speaks the chat/completions streaming API. It also covers
// OpenAI-compatible endpoints via a base URL override.
type OpenAI struct {
	apiKey  string
	baseURL string
	client  HTTPClient
}

func NewOpenAI(apiKey, baseURL string, client HTTPClient) *OpenAI {
	if baseURL == "" {
		baseURL = openaiBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	if client == nil {
		client = &http.Client{}
	}
	return &OpenAI{apiKey: apiKey, baseURL: baseURL, client: client}
}

func (o *OpenAI) ID() string   { return "openai" }
func (o *OpenAI) Name() string { return "OpenAI" }

func (o *OpenAI) Models() []domain.Model {
	return []domain.Model{
		{ID: "gpt-4o", Name: "GPT-4o", ContextSize: 128000},
		{ID: "gpt-4o-mini", Name: "GPT-4o Mini", ContextSize: 128000},
		{ID: "gpt-4.1", Name: "GPT-4.1", ContextSize: 1000000},
		{ID: "o4-mini", Name: "o4 Mini", ContextSize: 200000},
	}
}

type openaiMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCalls  []openaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openaiToolCall struct {
	Index    int    `json:"index"`
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openaiTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string            `json:"name"`
		Description string            `json:"description"`
		Parameters  domain.JSONSchema `json:"parameters"`
	} `json:"function"`
}

func (o *OpenAI) Chat(ctx context.Context, req *llm.ChatRequest) (<-chan domain.StreamEvent, error) {
	msgs := make([]openaiMessage, 0, len(req.Messages)+1)

	if req.SystemPrompt != "" {
		msgs = append(msgs, openaiMessage{Role: "system", Content: req.SystemPrompt})
	}

	for _, m := range req.Messages {
		if m.Role == domain.RoleSystem {
			continue
		}

		msg := openaiMessage{Role: string(m.Role)}
		for _, p := range m.Parts {
			switch part := p.(type) {
			case domain.TextPart:
				msg.Content += part.Text
			case domain.ToolCallPart:
				if m.Role == domain.RoleAssistant {
					tc := openaiToolCall{ID: part.ToolID, Type: "function"}
					tc.Function.Name = part.Name
					tc.Function.Arguments = mustJSON(part.Args)
					msg.ToolCalls = append(msg.ToolCalls, tc)
				} else {
					// Tool results travel as their own role:tool messages
					msgs = append(msgs, openaiMessage{
						Role:       "tool",
						Content:    part.Result,
						ToolCallID: part.ToolID,
					})
				}
			}
		}
		if m.Role == domain.RoleTool {
			continue
		}
		if msg.Content != "" || len(msg.ToolCalls) > 0 {
			msgs = append(msgs, msg)
		}
	}

	var tools []openaiTool
	for _, t := range req.Tools {
		tool := openaiTool{Type: "function"}
		tool.Function.Name = t.Name
		tool.Function.Description = t.Description
		tool.Function.Parameters = t.Parameters
		tools = append(tools, tool)
	}

	reqBody := map[string]any{
		"model":    req.Model,
		"messages": msgs,
		"stream":   true,
		"stream_options": map[string]any{
			"include_usage": true,
		},
	}
	if len(tools) > 0 {
		reqBody["tools"] = tools
	}
	if req.MaxTokens > 0 {
		reqBody["max_completion_tokens"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		reqBody["temperature"] = req.Temperature
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("OpenAI API error %d: %s", resp.StatusCode, string(body))
	}

	events := make(chan domain.StreamEvent, 100)
	go o.streamResponse(resp.Body, events)
	return events, nil
}

func (o *OpenAI) Verify(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", o.baseURL+"/models", nil)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("OpenAI API error %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

type openaiStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string           `json:"content"`
			ToolCalls []openaiToolCall `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage,omitempty"`
}

// pendingCall accumulates a tool call whose arguments arrive as
// string fragments across chunks.
type pendingCall struct {
	id      string
	name    string
	argBuf  strings.Builder
	emitted bool
}

func (o *OpenAI) streamResponse(body io.ReadCloser, events chan<- domain.StreamEvent) {
	defer close(events)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	calls := make(map[int]*pendingCall)

	flushCalls := func() {
		indexes := make([]int, 0, len(calls))
		for i := range calls {
			indexes = append(indexes, i)
		}
		sort.Ints(indexes)
		for _, i := range indexes {
			call := calls[i]
			if call.emitted {
				continue
			}
			call.emitted = true

			var args map[string]any
			if call.argBuf.Len() > 0 {
				json.Unmarshal([]byte(call.argBuf.String()), &args)
			}
			events <- domain.StreamEvent{
				Type: domain.StreamEventToolCall,
				Part: domain.ToolCallPart{
					ToolID: call.id,
					Name:   call.name,
					Args:   args,
				},
			}
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := line[6:]
		if data == "[DONE]" {
			flushCalls()
			events <- domain.StreamEvent{Type: domain.StreamEventDone, Done: true}
			return
		}

		var chunk openaiStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}

		if chunk.Usage != nil {
			events <- domain.StreamEvent{
				Type: domain.StreamEventUsage,
				Usage: &domain.Usage{
					InputTokens:  chunk.Usage.PromptTokens,
					OutputTokens: chunk.Usage.CompletionTokens,
				},
			}
		}

		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				events <- domain.StreamEvent{
					Type:    domain.StreamEventText,
					Content: choice.Delta.Content,
				}
			}

			for _, tc := range choice.Delta.ToolCalls {
				call, ok := calls[tc.Index]
				if !ok {
					call = &pendingCall{}
					calls[tc.Index] = call
				}
				if tc.ID != "" {
					call.id = tc.ID
				}
				if tc.Function.Name != "" {
					call.name = tc.Function.Name
				}
				call.argBuf.WriteString(tc.Function.Arguments)
			}

			switch choice.FinishReason {
			case "tool_calls":
				flushCalls()
			case "stop":
				events <- domain.StreamEvent{Type: domain.StreamEventDone, Done: true}
				return
			}
		}
	}

	// Stream ended without a terminal chunk
	flushCalls()
	events <- domain.StreamEvent{Type: domain.StreamEventDone, Done: true}
}

func mustJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

var _ llm.Provider = (*OpenAI)(nil)
