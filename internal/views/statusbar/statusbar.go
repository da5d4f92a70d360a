// Package statusbar renders the connection status line at the top of the
// TUI.
package statusbar

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/XDukeHD/nex-client/internal/status"
	"github.com/XDukeHD/nex-client/internal/theme"
)

// Model holds the status bar state.
type Model struct {
	Endpoint  string
	Status    status.ConnectionStatus
	LastFrame time.Time
	LoggedOut bool
	Width     int

	spinner spinner.Model
}

// New creates a status bar model for endpoint.
func New(endpoint string) Model {
	return Model{
		Endpoint: endpoint,
		Status:   status.ConnectionStatus{State: status.StateDisconnected},
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(theme.ColorConnecting)),
		),
	}
}

// Tick starts the spinner animation.
func (m Model) Tick() tea.Cmd {
	return m.spinner.Tick
}

// Update advances the spinner. Other messages are ignored.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	state := string(m.Status.State)
	stateStyle := lipgloss.NewStyle().Foreground(theme.StateColor(state))

	var connStr string
	switch {
	case m.LoggedOut:
		connStr = stateStyle.Render("○ Logged out")
	case m.Status.State == status.StateConnected:
		connStr = stateStyle.Render(theme.StateGlyph(state) + " Connected")
	case m.Status.State == status.StateConnecting:
		connStr = m.spinner.View() + stateStyle.Render(" Connecting...")
	default:
		connStr = stateStyle.Render(theme.StateGlyph(state) + " Disconnected")
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	var updated, errStr string
	if !m.LastFrame.IsZero() {
		updated = theme.StyleDimmed.Render("updated " + m.LastFrame.Format("15:04:05"))
	}
	if m.Status.Err != "" && m.Status.State == status.StateDisconnected {
		errStr = lipgloss.NewStyle().Foreground(theme.ColorError).Render(firstLine(m.Status.Err))
	}

	// The bar stays one row: drop the frame time, then the error, then cut.
	inner := width - 2
	content := join(sep, connStr, m.Endpoint, updated, errStr)
	if lipgloss.Width(content) > inner {
		content = join(sep, connStr, m.Endpoint, errStr)
	}
	if lipgloss.Width(content) > inner {
		content = join(sep, connStr, m.Endpoint)
	}
	content = lipgloss.NewStyle().MaxWidth(inner).Render(content)

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}

func join(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

// firstLine trims structured error text to its headline.
func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
