package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/ferdousbhai/llm-terminal/internal/domain"
)

const (
	maxArgsDisplay   = 100
	maxResultDisplay = 500
)

type entryKind int

const (
	entryUser entryKind = iota
	entryAssistant
	entryTool
	entryError
)

type entry struct {
	kind entryKind

	text      string
	reasoning string
	rendered  string
	streaming bool

	toolID     string
	toolName   string
	toolArgs   string
	toolResult string
	toolErr    string
	toolDone   bool
}

// transcript accumulates the conversation for display. The assistant
// entry at the tail streams in place; finishTurn freezes it with a
// markdown render.
type transcript struct {
	entries []entry
}

func newTranscript() *transcript {
	return &transcript{}
}

func (t *transcript) reset() {
	t.entries = nil
}

func (t *transcript) addUser(text string) {
	t.entries = append(t.entries, entry{kind: entryUser, text: text})
}

// current returns the streaming assistant entry at the tail, creating
// one if the last entry is something else.
func (t *transcript) current() *entry {
	if n := len(t.entries); n > 0 {
		if e := &t.entries[n-1]; e.kind == entryAssistant && e.streaming {
			return e
		}
	}
	t.entries = append(t.entries, entry{kind: entryAssistant, streaming: true})
	return &t.entries[len(t.entries)-1]
}

func (t *transcript) appendText(s string) {
	t.current().text += s
}

func (t *transcript) appendReasoning(s string) {
	t.current().reasoning += s
}

func (t *transcript) startTool(tc domain.ToolCallPart) {
	// Close out any streaming text before the tool block
	if n := len(t.entries); n > 0 && t.entries[n-1].kind == entryAssistant {
		t.entries[n-1].streaming = false
	}
	t.entries = append(t.entries, entry{
		kind:     entryTool,
		toolID:   tc.ToolID,
		toolName: tc.Name,
		toolArgs: formatArgs(tc.Args),
	})
}

// finishTool attaches a result to its call entry. Matching is by call
// id so repeated calls to the same tool within one turn keep their own
// results; entries without an id fall back to name order.
func (t *transcript) finishTool(tc domain.ToolCallPart) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.kind != entryTool || e.toolDone {
			continue
		}
		matched := e.toolID == tc.ToolID
		if tc.ToolID == "" {
			matched = e.toolName == tc.Name
		}
		if !matched {
			continue
		}
		e.toolDone = true
		e.toolErr = tc.Error
		e.toolResult = truncate(tc.Result, maxResultDisplay)
		return
	}
}

func (t *transcript) setError(err error) {
	if err == nil {
		return
	}
	t.entries = append(t.entries, entry{kind: entryError, text: err.Error()})
}

// finishTurn freezes the streaming assistant entry, swapping the raw
// text for a markdown render when one is available.
func (t *transcript) finishTurn(renderer *glamour.TermRenderer) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.kind != entryAssistant || !e.streaming {
			continue
		}
		e.streaming = false
		if renderer != nil && e.text != "" {
			if out, err := renderer.Render(e.text); err == nil {
				e.rendered = strings.TrimRight(out, "\n") + "\n"
			}
		}
	}
}

func (t *transcript) render() string {
	var b strings.Builder
	for _, e := range t.entries {
		switch e.kind {
		case entryUser:
			b.WriteString(userStyle.Render("❯ "+e.text) + "\n\n")

		case entryAssistant:
			if e.reasoning != "" {
				b.WriteString(thinkingStyle.Render(e.reasoning) + "\n")
			}
			if e.rendered != "" {
				b.WriteString(e.rendered)
			} else if e.text != "" {
				b.WriteString(textStyle.Render(e.text) + "\n")
			}
			if !e.streaming {
				b.WriteString("\n")
			}

		case entryTool:
			b.WriteString(toolStyle.Render("▶ "+e.toolName))
			if e.toolArgs != "" {
				b.WriteString(dimStyle.Render(" " + e.toolArgs))
			}
			b.WriteString("\n")
			switch {
			case !e.toolDone:
				b.WriteString(thinkingStyle.Render("  running...") + "\n")
			case e.toolErr != "":
				b.WriteString(errorStyle.Render("  ✗ "+e.toolErr) + "\n")
			default:
				b.WriteString(successStyle.Render("  ✓ ") + toolOutputStyle.Render(e.toolResult) + "\n")
			}
			b.WriteString("\n")

		case entryError:
			b.WriteString(errorStyle.Render("Error: "+e.text) + "\n\n")
		}
	}
	return b.String()
}

func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, args[k]))
	}
	return truncate("("+strings.Join(pairs, ", ")+")", maxArgsDisplay)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
