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

	"github.com/google/uuid"

	"github.com/ferdousbhai/llm-terminal/internal/domain"
	"github.com/ferdousbhai/llm-terminal/pkg/llm"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

type Gemini struct {
	apiKey  string
	baseURL string
	client  HTTPClient
}

func NewGemini(apiKey, baseURL string, client HTTPClient) *Gemini {
	if baseURL == "" {
		baseURL = geminiBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	if client == nil {
		client = &http.Client{}
	}
	return &Gemini{apiKey: apiKey, baseURL: baseURL, client: client}
}

func (g *Gemini) ID() string   { return "gemini" }
func (g *Gemini) Name() string { return "Gemini" }

func (g *Gemini) Models() []domain.Model {
	return []domain.Model{
		{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", ContextSize: 1000000},
		{ID: "gemini-2.5-pro", Name: "Gemini 2.5 Pro", ContextSize: 1000000},
		{ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash", ContextSize: 1000000},
	}
}

type geminiRequest struct {
	Contents          []geminiContent   `json:"contents"`
	SystemInstruction *geminiContent    `json:"systemInstruction,omitempty"`
	Tools             []geminiToolDef   `json:"tools,omitempty"`
	GenerationConfig  *geminiGenConfig  `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text             string              `json:"text,omitempty"`
	FunctionCall     *geminiFunctionCall `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResp `json:"functionResponse,omitempty"`
}

type geminiFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type geminiFunctionResp struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type geminiToolDef struct {
	FunctionDeclarations []geminiFuncDecl `json:"functionDeclarations"`
}

type geminiFuncDecl struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Parameters  domain.JSONSchema `json:"parameters"`
}

type geminiGenConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
}

func (g *Gemini) Chat(ctx context.Context, req *llm.ChatRequest) (<-chan domain.StreamEvent, error) {
	var contents []geminiContent
	for _, m := range req.Messages {
		if m.Role == domain.RoleSystem {
			continue
		}

		role := "user"
		if m.Role == domain.RoleAssistant {
			role = "model"
		}

		var parts []geminiPart
		for _, p := range m.Parts {
			switch part := p.(type) {
			case domain.TextPart:
				parts = append(parts, geminiPart{Text: part.Text})
			case domain.ToolCallPart:
				if m.Role == domain.RoleAssistant {
					parts = append(parts, geminiPart{
						FunctionCall: &geminiFunctionCall{
							Name: part.Name,
							Args: part.Args,
						},
					})
				} else {
					parts = append(parts, geminiPart{
						FunctionResponse: &geminiFunctionResp{
							Name: part.Name,
							Response: map[string]any{
								"result": part.Result,
							},
						},
					})
				}
			}
		}

		if len(parts) > 0 {
			contents = append(contents, geminiContent{Role: role, Parts: parts})
		}
	}

	var system *geminiContent
	if req.SystemPrompt != "" {
		system = &geminiContent{Parts: []geminiPart{{Text: req.SystemPrompt}}}
	}

	var tools []geminiToolDef
	if len(req.Tools) > 0 {
		var funcs []geminiFuncDecl
		for _, t := range req.Tools {
			funcs = append(funcs, geminiFuncDecl{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			})
		}
		tools = append(tools, geminiToolDef{FunctionDeclarations: funcs})
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 8192
	}

	body := geminiRequest{
		Contents:          contents,
		SystemInstruction: system,
		Tools:             tools,
		GenerationConfig: &geminiGenConfig{
			MaxOutputTokens: maxTokens,
			Temperature:     req.Temperature,
		},
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s", g.baseURL, req.Model, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("gemini API error %d: %s", resp.StatusCode, string(body))
	}

	events := make(chan domain.StreamEvent, 100)
	go g.streamResponse(resp.Body, events)
	return events, nil
}

func (g *Gemini) Verify(ctx context.Context) error {
	url := fmt.Sprintf("%s/models?key=%s", g.baseURL, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return err
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("gemini API error %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

type geminiStreamResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
			Role  string       `json:"role"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata,omitempty"`
}

func (g *Gemini) streamResponse(body io.ReadCloser, events chan<- domain.StreamEvent) {
	defer close(events)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := line[6:]

		var resp geminiStreamResponse
		if err := json.Unmarshal([]byte(data), &resp); err != nil {
			continue
		}

		if resp.UsageMetadata != nil {
			events <- domain.StreamEvent{
				Type: domain.StreamEventUsage,
				Usage: &domain.Usage{
					InputTokens:  resp.UsageMetadata.PromptTokenCount,
					OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
				},
			}
		}

		for _, candidate := range resp.Candidates {
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					events <- domain.StreamEvent{
						Type:    domain.StreamEventText,
						Content: part.Text,
					}
				}

				if part.FunctionCall != nil {
					// The API carries no call id; mint one so results
					// can be matched back to the request
					events <- domain.StreamEvent{
						Type: domain.StreamEventToolCall,
						Part: domain.ToolCallPart{
							ToolID: uuid.NewString(),
							Name:   part.FunctionCall.Name,
							Args:   part.FunctionCall.Args,
						},
					}
				}
			}

		}
	}

	// Usage metadata may trail the final candidate, so Done is emitted
	// when the stream closes rather than at finishReason
	events <- domain.StreamEvent{Type: domain.StreamEventDone, Done: true}
}

var _ llm.Provider = (*Gemini)(nil)
