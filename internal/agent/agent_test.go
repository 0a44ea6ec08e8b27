package agent

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferdousbhai/llm-terminal/internal/config"
	"github.com/ferdousbhai/llm-terminal/internal/domain"
	"github.com/ferdousbhai/llm-terminal/internal/testutil"
	"github.com/ferdousbhai/llm-terminal/pkg/llm"
)

func testAgent(t *testing.T, provider *testutil.MockProvider, dispatcher *testutil.MockDispatcher) *Agent {
	t.Helper()
	registry := llm.NewRegistry()
	registry.Register(provider)

	cfg := config.Default()
	cfg.Model = "mock:mock-1"

	return New(registry, dispatcher, cfg, log.New(io.Discard))
}

func weatherCall(id string) domain.ToolCallPart {
	return domain.ToolCallPart{ToolID: id, Name: "get_weather", Args: map[string]any{"city": "Paris"}}
}

func TestPlainTextTurnInvokesModelOnce(t *testing.T) {
	provider := testutil.NewMockProvider(testutil.TextResponse("Hello there."))
	dispatcher := &testutil.MockDispatcher{}
	a := testAgent(t, provider, dispatcher)

	events, err := a.Run(context.Background(), "hi")
	require.NoError(t, err)

	text, toolCalls, _ := testutil.CollectEvents(events)
	assert.Equal(t, "Hello there.", text)
	assert.Zero(t, toolCalls)
	assert.Equal(t, 1, provider.CallCount())

	history := a.History()
	require.Len(t, history, 2)
	assert.Equal(t, domain.RoleUser, history[0].Role)
	assert.Equal(t, domain.RoleAssistant, history[1].Role)
	assert.Equal(t, "Hello there.", history[1].Text())
}

func TestToolTurnsReinvokeModel(t *testing.T) {
	provider := testutil.NewMockProvider(
		testutil.ToolCallResponse(weatherCall("c1")),
		testutil.ToolCallResponse(weatherCall("c2")),
		testutil.TextResponse("It is sunny."),
	)
	dispatcher := &testutil.MockDispatcher{
		ToolList: []domain.Tool{{Name: "get_weather"}},
		Results:  map[string]string{"get_weather": `{"temp": 21}`},
	}
	a := testAgent(t, provider, dispatcher)

	events, err := a.Run(context.Background(), "weather in paris?")
	require.NoError(t, err)

	text, toolCalls, toolDones := testutil.CollectEvents(events)
	assert.Equal(t, "It is sunny.", text)
	assert.Equal(t, 2, toolCalls)
	assert.Equal(t, 2, toolDones)

	// k tool turns cost k+1 model invocations
	assert.Equal(t, 3, provider.CallCount())
	assert.Equal(t, []string{"get_weather", "get_weather"}, dispatcher.Calls())

	// Tool results are fed back as their own turn with a result payload
	history := a.History()
	require.Len(t, history, 6)
	assert.Equal(t, domain.RoleTool, history[2].Role)
	results := history[2].ToolCalls()
	require.Len(t, results, 1)
	assert.JSONEq(t, `{"result": "{\"temp\": 21}"}`, results[0].Result)

	// The follow-up request carries the tool turn
	secondReq := provider.Request(1)
	assert.Len(t, secondReq.Messages, 3)
}

func TestMultipleCallsInOneTurnRunInOrder(t *testing.T) {
	provider := testutil.NewMockProvider(
		testutil.ToolCallResponse(
			domain.ToolCallPart{ToolID: "c1", Name: "first"},
			domain.ToolCallPart{ToolID: "c2", Name: "second"},
		),
		testutil.TextResponse("done"),
	)
	dispatcher := &testutil.MockDispatcher{
		Results: map[string]string{"first": "1", "second": "2"},
	}
	a := testAgent(t, provider, dispatcher)

	events, err := a.Run(context.Background(), "go")
	require.NoError(t, err)
	testutil.CollectEvents(events)

	assert.Equal(t, []string{"first", "second"}, dispatcher.Calls())

	// All results land in a single tool turn, request order preserved
	history := a.History()
	toolMsg := history[2]
	require.Equal(t, domain.RoleTool, toolMsg.Role)
	results := toolMsg.ToolCalls()
	require.Len(t, results, 2)
	assert.Equal(t, "first", results[0].Name)
	assert.Equal(t, "second", results[1].Name)
}

func TestTurnLimitTruncation(t *testing.T) {
	// Six consecutive tool-requesting turns against a limit of five
	responses := make([][]domain.StreamEvent, 0, 6)
	for i := 0; i < 6; i++ {
		responses = append(responses, testutil.ToolCallResponse(weatherCall("c")))
	}
	provider := testutil.NewMockProvider(responses...)
	dispatcher := &testutil.MockDispatcher{
		Results: map[string]string{"get_weather": "cloudy"},
	}
	a := testAgent(t, provider, dispatcher)

	events, err := a.Run(context.Background(), "loop forever")
	require.NoError(t, err)

	text, _, _ := testutil.CollectEvents(events)
	assert.Contains(t, text, TruncationNotice)

	// Exactly five tool turns executed, six model invocations
	assert.Equal(t, 6, provider.CallCount())
	assert.Len(t, dispatcher.Calls(), 5)

	history := a.History()
	last := history[len(history)-1]
	assert.Equal(t, TruncationNotice, last.Text())
}

func TestUnknownToolInjectsErrorAndContinues(t *testing.T) {
	provider := testutil.NewMockProvider(
		testutil.ToolCallResponse(domain.ToolCallPart{ToolID: "c1", Name: "nonexistent"}),
		testutil.TextResponse("recovered"),
	)
	dispatcher := &testutil.MockDispatcher{}
	a := testAgent(t, provider, dispatcher)

	events, err := a.Run(context.Background(), "use a tool")
	require.NoError(t, err)

	text, _, toolDones := testutil.CollectEvents(events)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, 1, toolDones)
	assert.Equal(t, 2, provider.CallCount())

	history := a.History()
	results := history[2].ToolCalls()
	require.Len(t, results, 1)
	assert.NotEmpty(t, results[0].Error)
	assert.Contains(t, results[0].Result, `"error"`)
}

func TestToolFailureBecomesErrorResult(t *testing.T) {
	provider := testutil.NewMockProvider(
		testutil.ToolCallResponse(weatherCall("c1")),
		testutil.TextResponse("noted"),
	)
	dispatcher := &testutil.MockDispatcher{
		Errs: map[string]error{"get_weather": assert.AnError},
	}
	a := testAgent(t, provider, dispatcher)

	events, err := a.Run(context.Background(), "weather?")
	require.NoError(t, err)
	text, _, _ := testutil.CollectEvents(events)

	assert.Equal(t, "noted", text)
	results := a.History()[2].ToolCalls()
	require.Len(t, results, 1)
	assert.True(t, strings.HasPrefix(results[0].Result, `{"error"`))
}

// trailingErrorProvider emits an error mid-stream and keeps sending
// over an unbuffered channel, so its sender goroutine can only exit if
// the consumer drains the stream.
type trailingErrorProvider struct {
	senderDone chan struct{}
}

func (p *trailingErrorProvider) ID() string                       { return "mock" }
func (p *trailingErrorProvider) Name() string                     { return "Mock" }
func (p *trailingErrorProvider) Models() []domain.Model           { return []domain.Model{{ID: "mock-1"}} }
func (p *trailingErrorProvider) Verify(ctx context.Context) error { return nil }

func (p *trailingErrorProvider) Chat(ctx context.Context, req *llm.ChatRequest) (<-chan domain.StreamEvent, error) {
	events := make(chan domain.StreamEvent)
	go func() {
		defer close(p.senderDone)
		defer close(events)
		events <- domain.StreamEvent{Type: domain.StreamEventText, Content: "partial"}
		events <- domain.StreamEvent{Type: domain.StreamEventError, Error: assert.AnError}
		for i := 0; i < 200; i++ {
			events <- domain.StreamEvent{Type: domain.StreamEventText, Content: "trailing"}
		}
		events <- domain.StreamEvent{Type: domain.StreamEventDone, Done: true}
	}()
	return events, nil
}

func TestMidStreamErrorDrainsProviderStream(t *testing.T) {
	provider := &trailingErrorProvider{senderDone: make(chan struct{})}
	registry := llm.NewRegistry()
	registry.Register(provider)
	cfg := config.Default()
	cfg.Model = "mock:mock-1"
	a := New(registry, &testutil.MockDispatcher{}, cfg, log.New(io.Discard))

	events, err := a.Run(context.Background(), "hi")
	require.NoError(t, err)

	var sawError bool
	for event := range events {
		if event.Type == domain.StreamEventError {
			sawError = true
		}
	}
	assert.True(t, sawError)

	select {
	case <-provider.senderDone:
	case <-time.After(5 * time.Second):
		t.Fatal("provider stream was not drained after the error")
	}
}

func TestNewConversationClearsHistoryOnly(t *testing.T) {
	provider := testutil.NewMockProvider(testutil.TextResponse("hi"))
	dispatcher := &testutil.MockDispatcher{}
	a := testAgent(t, provider, dispatcher)

	events, err := a.Run(context.Background(), "hello")
	require.NoError(t, err)
	testutil.CollectEvents(events)
	require.NotEmpty(t, a.History())

	modelBefore := a.cfg.Model
	promptBefore := a.cfg.SystemPrompt

	a.NewConversation()

	assert.Empty(t, a.History())
	assert.Equal(t, modelBefore, a.cfg.Model)
	assert.Equal(t, promptBefore, a.cfg.SystemPrompt)
}

func TestRunRejectsUnknownModel(t *testing.T) {
	provider := testutil.NewMockProvider()
	dispatcher := &testutil.MockDispatcher{}
	a := testAgent(t, provider, dispatcher)
	a.cfg.Model = "nosuch:model"

	_, err := a.Run(context.Background(), "hi")
	assert.Error(t, err)
}

func TestSystemPromptAndToolsForwarded(t *testing.T) {
	provider := testutil.NewMockProvider(testutil.TextResponse("ok"))
	dispatcher := &testutil.MockDispatcher{
		ToolList: []domain.Tool{{Name: "get_weather", Description: "weather lookup"}},
	}
	a := testAgent(t, provider, dispatcher)
	a.cfg.SystemPrompt = "Answer briefly."

	events, err := a.Run(context.Background(), "hi")
	require.NoError(t, err)
	testutil.CollectEvents(events)

	req := provider.Request(0)
	assert.Equal(t, "Answer briefly.", req.SystemPrompt)
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "get_weather", req.Tools[0].Name)
	assert.Equal(t, "mock-1", req.Model)
}
