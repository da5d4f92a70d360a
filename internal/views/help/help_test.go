package help

import (
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/key"
)

func sections() []Section {
	return []Section{
		{Title: "Connection", Bindings: []key.Binding{
			key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reconnect")),
			key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "disconnect")),
		}},
		{Title: "Audio", Bindings: []key.Binding{
			key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		}},
	}
}

func TestMarkdownListsBindings(t *testing.T) {
	md := New("notty", sections()...).Markdown()
	for _, want := range []string{"## Connection", "| `r` | reconnect |", "## Audio", "| `space` | play/pause |"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestViewRendersAndCaches(t *testing.T) {
	m := New("notty", sections()...)
	v := m.View(80)
	for _, want := range []string{"reconnect", "disconnect", "esc:close"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q:\n%s", want, v)
		}
	}
	cached := m.rendered
	m.View(80)
	if m.rendered != cached {
		t.Error("same width should reuse the cached render")
	}
	m.View(120)
	if m.width != 120 {
		t.Errorf("width not updated, got %d", m.width)
	}
}

func TestUnknownStyleFallsBackToMarkdown(t *testing.T) {
	m := New("no-such-style", sections()...)
	if got := m.render(80); !strings.Contains(got, "| `r` | reconnect |") {
		t.Errorf("expected raw markdown fallback, got:\n%s", got)
	}
}
