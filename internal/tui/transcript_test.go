package tui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferdousbhai/llm-terminal/internal/domain"
)

func TestTranscriptStreamingTurn(t *testing.T) {
	tr := newTranscript()
	tr.addUser("hello")
	tr.appendText("Hi ")
	tr.appendText("there.")
	tr.finishTurn(nil)

	out := tr.render()
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "Hi there.")
}

func TestTranscriptToolLifecycle(t *testing.T) {
	tr := newTranscript()
	tr.addUser("weather?")
	tr.appendText("Checking.")
	tr.startTool(domain.ToolCallPart{Name: "get_weather", Args: map[string]any{"city": "Paris"}})

	out := tr.render()
	assert.Contains(t, out, "get_weather")
	assert.Contains(t, out, "running...")

	tr.finishTool(domain.ToolCallPart{Name: "get_weather", Result: `{"result":"sunny"}`})
	out = tr.render()
	assert.NotContains(t, out, "running...")
	assert.Contains(t, out, "sunny")
}

func TestTranscriptRepeatedToolKeepsResultsSeparate(t *testing.T) {
	tr := newTranscript()
	tr.startTool(domain.ToolCallPart{ToolID: "c1", Name: "get_weather", Args: map[string]any{"city": "Paris"}})
	tr.startTool(domain.ToolCallPart{ToolID: "c2", Name: "get_weather", Args: map[string]any{"city": "Oslo"}})

	// Results may land out of order; each goes to its own call
	tr.finishTool(domain.ToolCallPart{ToolID: "c2", Name: "get_weather", Result: "rainy"})
	tr.finishTool(domain.ToolCallPart{ToolID: "c1", Name: "get_weather", Result: "sunny"})

	out := tr.render()
	parisIdx := strings.Index(out, "Paris")
	osloIdx := strings.Index(out, "Oslo")
	sunnyIdx := strings.Index(out, "sunny")
	rainyIdx := strings.Index(out, "rainy")
	require.True(t, parisIdx >= 0 && osloIdx >= 0 && sunnyIdx >= 0 && rainyIdx >= 0)
	assert.Less(t, parisIdx, sunnyIdx)
	assert.Less(t, sunnyIdx, osloIdx)
	assert.Less(t, osloIdx, rainyIdx)
}

func TestTranscriptToolFailure(t *testing.T) {
	tr := newTranscript()
	tr.startTool(domain.ToolCallPart{Name: "broken"})
	tr.finishTool(domain.ToolCallPart{Name: "broken", Error: "exit status 1"})

	assert.Contains(t, tr.render(), "exit status 1")
}

func TestTranscriptReset(t *testing.T) {
	tr := newTranscript()
	tr.addUser("hi")
	tr.appendText("hello")
	tr.reset()
	assert.Empty(t, tr.render())
}

func TestFormatArgsSortedAndTruncated(t *testing.T) {
	args := map[string]any{"b": 2, "a": "x"}
	assert.Equal(t, "(a=x, b=2)", formatArgs(args))
	assert.Empty(t, formatArgs(nil))

	long := map[string]any{"key": string(make([]byte, 200))}
	assert.LessOrEqual(t, len(formatArgs(long)), maxArgsDisplay)
}

func TestParseEnv(t *testing.T) {
	env, err := parseEnv("FOO=bar BAZ=qux")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"FOO": "bar", "BAZ": "qux"}, env)

	env, err = parseEnv("  ")
	require.NoError(t, err)
	assert.Nil(t, env)

	_, err = parseEnv("NOEQUALS")
	assert.Error(t, err)
}
