// Package help renders the key binding reference as Markdown through
// glamour.
package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/XDukeHD/nex-client/internal/theme"
)

// Section is a titled group of bindings.
type Section struct {
	Title    string
	Bindings []key.Binding
}

// Model caches the rendered overlay per width.
type Model struct {
	sections []Section
	style    string

	width    int
	rendered string
}

// New creates a help model. style is a glamour standard style name such
// as "dark", "light" or "notty".
func New(style string, sections ...Section) Model {
	return Model{sections: sections, style: style}
}

// Markdown returns the source document.
func (m Model) Markdown() string {
	var b strings.Builder
	b.WriteString("# Keys\n")
	for _, s := range m.sections {
		fmt.Fprintf(&b, "\n## %s\n\n| Key | Action |\n| --- | --- |\n", s.Title)
		for _, kb := range s.Bindings {
			h := kb.Help()
			fmt.Fprintf(&b, "| `%s` | %s |\n", h.Key, h.Desc)
		}
	}
	return b.String()
}

// View renders the overlay for width, re-rendering only when the width
// changes. Rendering errors fall back to the raw Markdown.
func (m *Model) View(width int) string {
	if width < 40 {
		width = 40
	}
	if m.rendered == "" || m.width != width {
		m.width = width
		m.rendered = m.render(width - 4)
	}
	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder).
		Render(m.rendered + "\n" + theme.StyleDimmed.Render("  esc:close"))
}

func (m Model) render(wrap int) string {
	md := m.Markdown()
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.style),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}
