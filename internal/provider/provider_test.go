package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ferdousbhai/llm-terminal/internal/domain"
	"github.com/ferdousbhai/llm-terminal/pkg/llm"
)

func sseServer(t *testing.T, sseData string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(sseData))
	}))
}

func TestOpenAIStreamText(t *testing.T) {
	sseData := `data: {"choices":[{"delta":{"content":"Hello"},"finish_reason":null}]}

data: {"choices":[{"delta":{"content":" world"},"finish_reason":null}]}

data: {"choices":[{"delta":{},"finish_reason":"stop"}]}

`
	server := sseServer(t, sseData, func(r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Error("Missing or wrong Authorization header")
		}
	})
	defer server.Close()

	p := NewOpenAI("test-key", server.URL, nil)

	events, err := p.Chat(context.Background(), &llm.ChatRequest{
		Model: "gpt-4o-mini",
		Messages: []domain.Message{
			{Role: domain.RoleUser, Parts: []domain.Part{domain.TextPart{Text: "Hi"}}},
		},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	var text string
	var done bool
	for event := range events {
		switch event.Type {
		case domain.StreamEventText:
			text += event.Content
		case domain.StreamEventDone:
			done = true
		}
	}

	if text != "Hello world" {
		t.Errorf("Text = %q, want %q", text, "Hello world")
	}
	if !done {
		t.Error("Stream should end with a done event")
	}
}

func TestOpenAIStreamToolCallFragmentedArgs(t *testing.T) {
	sseData := `data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_123","type":"function","function":{"name":"get_weather","arguments":""}}]},"finish_reason":null}]}

data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"city\":"}}]},"finish_reason":null}]}

data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"Tokyo\"}"}}]},"finish_reason":null}]}

data: {"choices":[{"delta":{},"finish_reason":"tool_calls"}]}

data: [DONE]

`
	server := sseServer(t, sseData, nil)
	defer server.Close()

	p := NewOpenAI("test-key", server.URL, nil)

	events, err := p.Chat(context.Background(), &llm.ChatRequest{
		Model: "gpt-4o-mini",
		Messages: []domain.Message{
			{Role: domain.RoleUser, Parts: []domain.Part{domain.TextPart{Text: "weather in tokyo"}}},
		},
		Tools: []domain.Tool{{Name: "get_weather"}},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	var toolCalls []domain.ToolCallPart
	for event := range events {
		if event.Type == domain.StreamEventToolCall {
			toolCalls = append(toolCalls, event.Part.(domain.ToolCallPart))
		}
	}

	if len(toolCalls) != 1 {
		t.Fatalf("Got %d tool calls, want 1", len(toolCalls))
	}
	if toolCalls[0].ToolID != "call_123" {
		t.Errorf("Tool ID = %q, want call_123", toolCalls[0].ToolID)
	}
	if toolCalls[0].Name != "get_weather" {
		t.Errorf("Tool name = %q, want get_weather", toolCalls[0].Name)
	}
	// Arguments arrive as fragments and must parse once assembled
	if toolCalls[0].Args["city"] != "Tokyo" {
		t.Errorf("Args = %v, want city=Tokyo", toolCalls[0].Args)
	}
}

func TestOpenAIAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Invalid API key"}}`))
	}))
	defer server.Close()

	p := NewOpenAI("bad-key", server.URL, nil)

	_, err := p.Chat(context.Background(), &llm.ChatRequest{
		Model: "gpt-4o-mini",
		Messages: []domain.Message{
			{Role: domain.RoleUser, Parts: []domain.Part{domain.TextPart{Text: "Hi"}}},
		},
	})
	if err == nil {
		t.Error("Expected error for unauthorized request")
	}
}

func TestOpenAIMessageConversion(t *testing.T) {
	var captured struct {
		Model    string          `json:"model"`
		Messages []openaiMessage `json:"messages"`
		Stream   bool            `json:"stream"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	p := NewOpenAI("test-key", server.URL, nil)

	events, err := p.Chat(context.Background(), &llm.ChatRequest{
		Model:        "gpt-4o-mini",
		SystemPrompt: "You are helpful",
		Messages: []domain.Message{
			{Role: domain.RoleUser, Parts: []domain.Part{domain.TextPart{Text: "list files"}}},
			{Role: domain.RoleAssistant, Parts: []domain.Part{
				domain.ToolCallPart{ToolID: "call_1", Name: "list_dir", Args: map[string]any{"path": "."}},
			}},
			{Role: domain.RoleTool, Parts: []domain.Part{
				domain.ToolCallPart{ToolID: "call_1", Name: "list_dir", Result: `{"result": "a.txt"}`},
			}},
		},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	for range events {
	}

	if !captured.Stream {
		t.Error("Stream should be true")
	}
	// system + user + assistant tool_calls + tool result
	if len(captured.Messages) != 4 {
		t.Fatalf("Messages count = %d, want 4", len(captured.Messages))
	}
	if captured.Messages[0].Role != "system" {
		t.Errorf("First message role = %q, want system", captured.Messages[0].Role)
	}
	if len(captured.Messages[2].ToolCalls) != 1 {
		t.Errorf("Assistant tool calls = %d, want 1", len(captured.Messages[2].ToolCalls))
	}
	last := captured.Messages[3]
	if last.Role != "tool" || last.ToolCallID != "call_1" {
		t.Errorf("Tool result message = %+v, want role=tool tool_call_id=call_1", last)
	}
}

func TestAnthropicStreamToolUse(t *testing.T) {
	sseData := `event: message_start
data: {"type":"message_start"}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Checking."}}

event: content_block_start
data: {"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_1","name":"get_weather"}}

event: content_block_delta
data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"city\":"}}

event: content_block_delta
data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"\"Oslo\"}"}}

event: content_block_stop
data: {"type":"content_block_stop","index":1}

event: message_delta
data: {"type":"message_delta","usage":{"input_tokens":12,"output_tokens":34}}

event: message_stop
data: {"type":"message_stop"}

`
	server := sseServer(t, sseData, func(r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Error("Missing or wrong x-api-key header")
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Error("Missing anthropic-version header")
		}
	})
	defer server.Close()

	p := NewAnthropic("test-key", server.URL, nil)

	events, err := p.Chat(context.Background(), &llm.ChatRequest{
		Model: "claude-sonnet-4-20250514",
		Messages: []domain.Message{
			{Role: domain.RoleUser, Parts: []domain.Part{domain.TextPart{Text: "weather in oslo"}}},
		},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	var text string
	var toolCalls []domain.ToolCallPart
	var usage *domain.Usage
	for event := range events {
		switch event.Type {
		case domain.StreamEventText:
			text += event.Content
		case domain.StreamEventToolCall:
			toolCalls = append(toolCalls, event.Part.(domain.ToolCallPart))
		case domain.StreamEventUsage:
			usage = event.Usage
		}
	}

	if text != "Checking." {
		t.Errorf("Text = %q, want %q", text, "Checking.")
	}
	if len(toolCalls) != 1 {
		t.Fatalf("Got %d tool calls, want 1", len(toolCalls))
	}
	if toolCalls[0].ToolID != "toolu_1" || toolCalls[0].Name != "get_weather" {
		t.Errorf("Tool call = %+v", toolCalls[0])
	}
	if toolCalls[0].Args["city"] != "Oslo" {
		t.Errorf("Args = %v, want city=Oslo", toolCalls[0].Args)
	}
	if usage == nil || usage.InputTokens != 12 || usage.OutputTokens != 34 {
		t.Errorf("Usage = %+v, want 12/34", usage)
	}
}

func TestGeminiStreamFunctionCall(t *testing.T) {
	sseData := `data: {"candidates":[{"content":{"parts":[{"text":"Looking it up. "}],"role":"model"}}]}

data: {"candidates":[{"content":{"parts":[{"functionCall":{"name":"get_weather","args":{"city":"Lima"}}}],"role":"model"},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":5,"candidatesTokenCount":9}}

`
	server := sseServer(t, sseData, nil)
	defer server.Close()

	p := NewGemini("test-key", server.URL, nil)

	events, err := p.Chat(context.Background(), &llm.ChatRequest{
		Model: "gemini-2.0-flash",
		Messages: []domain.Message{
			{Role: domain.RoleUser, Parts: []domain.Part{domain.TextPart{Text: "weather in lima"}}},
		},
		Tools: []domain.Tool{{Name: "get_weather"}},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	var text string
	var toolCalls []domain.ToolCallPart
	for event := range events {
		switch event.Type {
		case domain.StreamEventText:
			text += event.Content
		case domain.StreamEventToolCall:
			toolCalls = append(toolCalls, event.Part.(domain.ToolCallPart))
		}
	}

	if text != "Looking it up. " {
		t.Errorf("Text = %q", text)
	}
	if len(toolCalls) != 1 {
		t.Fatalf("Got %d tool calls, want 1", len(toolCalls))
	}
	if toolCalls[0].Name != "get_weather" {
		t.Errorf("Tool name = %q", toolCalls[0].Name)
	}
	if toolCalls[0].ToolID == "" {
		t.Error("Tool ID should be minted when the API omits one")
	}
	if toolCalls[0].Args["city"] != "Lima" {
		t.Errorf("Args = %v, want city=Lima", toolCalls[0].Args)
	}
}

func TestVerify(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data":[]}`))
	}))
	defer ok.Close()

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer bad.Close()

	if err := NewOpenAI("key", ok.URL, nil).Verify(context.Background()); err != nil {
		t.Errorf("Verify() against healthy endpoint = %v", err)
	}
	if err := NewOpenAI("key", bad.URL, nil).Verify(context.Background()); err == nil {
		t.Error("Verify() should fail on 401")
	}
	if err := NewAnthropic("key", ok.URL, nil).Verify(context.Background()); err != nil {
		t.Errorf("Anthropic Verify() = %v", err)
	}
	if err := NewGemini("key", bad.URL, nil).Verify(context.Background()); err == nil {
		t.Error("Gemini Verify() should fail on 401")
	}
}

func TestProviderIdentity(t *testing.T) {
	tests := []struct {
		p    llm.Provider
		id   string
		name string
	}{
		{NewOpenAI("", "", nil), "openai", "OpenAI"},
		{NewAnthropic("", "", nil), "anthropic", "Anthropic"},
		{NewGemini("", "", nil), "gemini", "Gemini"},
	}
	for _, tt := range tests {
		if tt.p.ID() != tt.id {
			t.Errorf("ID() = %q, want %q", tt.p.ID(), tt.id)
		}
		if tt.p.Name() != tt.name {
			t.Errorf("Name() = %q, want %q", tt.p.Name(), tt.name)
		}
		if len(tt.p.Models()) == 0 {
			t.Errorf("%s Models() should not be empty", tt.id)
		}
	}
}

func TestFactoryCachesPerConfig(t *testing.T) {
	f := NewFactory()

	a, err := f.Create(TypeOpenAI, WithAPIKey("key-1"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	b, err := f.Create(TypeOpenAI, WithAPIKey("key-1"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if a != b {
		t.Error("Same config should return the cached instance")
	}

	if _, err := f.Create(Type("mystery")); err == nil {
		t.Error("Unknown type should error")
	}
}

func TestFactoryDistinguishesKeysWithSharedPrefix(t *testing.T) {
	f := NewFactory()

	a, err := f.Create(TypeOpenAI, WithAPIKey("sk-proj-AAAAAAAAAAAA"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	b, err := f.Create(TypeOpenAI, WithAPIKey("sk-proj-BBBBBBBBBBBB"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if a == b {
		t.Fatal("Different keys must not share a cached instance")
	}
	if got := b.(*OpenAI).apiKey; got != "sk-proj-BBBBBBBBBBBB" {
		t.Errorf("second Create() holds key %q, want the newly supplied key", got)
	}
	if got := a.(*OpenAI).apiKey; got != "sk-proj-AAAAAAAAAAAA" {
		t.Errorf("first Create() holds key %q", got)
	}
}

func TestKeyedRegistryCoversAllVendors(t *testing.T) {
	f := NewFactory()
	registry, err := f.KeyedRegistry(func(t Type) (string, string) {
		return "key-" + string(t), ""
	})
	if err != nil {
		t.Fatalf("KeyedRegistry() error = %v", err)
	}

	for _, id := range []string{"openai", "anthropic", "gemini"} {
		if _, ok := registry.Get(id); !ok {
			t.Errorf("registry missing %s", id)
		}
	}

	p, model, err := registry.Resolve("gemini:gemini-2.0-flash")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if p.ID() != "gemini" || model != "gemini-2.0-flash" {
		t.Errorf("Resolve() = %s, %s", p.ID(), model)
	}

	if _, _, err := registry.Resolve("no-colon"); err == nil {
		t.Error("Resolve without colon should error")
	}
}
