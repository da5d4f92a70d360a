// Package metrics renders the latest system snapshot: an animated CPU
// gauge, resource counters, device state and the audio players.
package metrics

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"

	"github.com/XDukeHD/nex-client/internal/client"
	"github.com/XDukeHD/nex-client/internal/theme"
)

// FPS is the gauge animation frame rate.
const FPS = 30

const (
	barWidth   = 24
	labelWidth = 11

	settleEpsilon = 0.05
)

var (
	styleLabel = lipgloss.NewStyle().
			Foreground(theme.ColorDimmed).
			Width(labelWidth)

	styleValue = lipgloss.NewStyle().
			Foreground(theme.ColorBright)

	styleSection = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorDimmed)
)

// Model holds the snapshot and gauge animation state.
type Model struct {
	Width    int
	Selected int

	snap *client.Snapshot

	spring harmonica.Spring
	cpu    float64 // displayed value
	cpuVel float64
}

// New creates an empty metrics model.
func New() Model {
	return Model{
		spring: harmonica.NewSpring(harmonica.FPS(FPS), 6.0, 1.0),
	}
}

// SetSnapshot replaces the snapshot. A nil snap clears the view. The
// selection is clamped to the new player list.
func (m *Model) SetSnapshot(snap *client.Snapshot) {
	m.snap = snap
	if snap == nil {
		m.Selected = 0
		m.cpu, m.cpuVel = 0, 0
		return
	}
	if m.Selected >= len(snap.Audio) {
		m.Selected = max(len(snap.Audio)-1, 0)
	}
}

// HasSnapshot reports whether a snapshot is shown.
func (m Model) HasSnapshot() bool {
	return m.snap != nil
}

// Animating reports whether the gauge has not reached its target yet.
func (m Model) Animating() bool {
	if m.snap == nil {
		return false
	}
	return math.Abs(m.cpu-m.snap.CPUAbsolute) > settleEpsilon || math.Abs(m.cpuVel) > settleEpsilon
}

// Step advances the gauge by one frame and snaps it once settled.
func (m *Model) Step() {
	if m.snap == nil {
		return
	}
	target := m.snap.CPUAbsolute
	m.cpu, m.cpuVel = m.spring.Update(m.cpu, m.cpuVel, target)
	if math.Abs(m.cpu-target) <= settleEpsilon && math.Abs(m.cpuVel) <= settleEpsilon {
		m.cpu, m.cpuVel = target, 0
	}
}

// DisplayedCPU is the gauge position, in percent.
func (m Model) DisplayedCPU() float64 {
	return m.cpu
}

// SelectNext moves the player selection down, wrapping.
func (m *Model) SelectNext() {
	if n := m.playerCount(); n > 0 {
		m.Selected = (m.Selected + 1) % n
	}
}

// SelectPrev moves the player selection up, wrapping.
func (m *Model) SelectPrev() {
	if n := m.playerCount(); n > 0 {
		m.Selected = (m.Selected - 1 + n) % n
	}
}

// SelectedPlayer returns the highlighted audio player.
func (m Model) SelectedPlayer() (client.AudioPlayer, bool) {
	if m.snap == nil || m.Selected >= len(m.snap.Audio) {
		return client.AudioPlayer{}, false
	}
	return m.snap.Audio[m.Selected], true
}

func (m Model) playerCount() int {
	if m.snap == nil {
		return 0
	}
	return len(m.snap.Audio)
}

// View renders the panel.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}
	panel := lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder)

	if m.snap == nil {
		return panel.Render(theme.StyleDimmed.Render("Waiting for data..."))
	}
	s := m.snap

	var b strings.Builder
	b.WriteString(styleSection.Render("System") + "\n")
	cpuPct := clamp(m.cpu/100, 0, 1)
	writeRow(&b, "CPU", renderBar(cpuPct, barWidth, theme.GaugeColor(cpuPct))+fmt.Sprintf(" %5.1f%%", m.cpu))
	writeRow(&b, "Memory", FormatBytes(s.MemoryBytes))
	writeRow(&b, "Disk", FormatBytes(s.DiskBytes))
	writeRow(&b, "Network", fmt.Sprintf("↓ %s  ↑ %s", FormatBytes(s.Network.RxBytes), FormatBytes(s.Network.TxBytes)))
	writeRow(&b, "Uptime", FormatUptime(s.Uptime))

	b.WriteString("\n" + styleSection.Render("Device") + "\n")
	wifi := "offline"
	if s.Wifi.Connected {
		wifi = s.Wifi.SSID
	}
	writeRow(&b, "Wi-Fi", wifi)
	battery := fmt.Sprintf("%.0f%%", s.Battery.Percentage)
	if s.Battery.PluggedIn {
		battery += " (charging)"
	}
	writeRow(&b, "Battery", battery)
	writeRow(&b, "Volume", renderBar(clamp(s.Volume/100, 0, 1), 10, theme.ColorInfo)+fmt.Sprintf(" %.0f%%", s.Volume))
	writeRow(&b, "Backlight", renderBar(clamp(s.Backlight/100, 0, 1), 10, theme.ColorInfo)+fmt.Sprintf(" %.0f%%", s.Backlight))

	b.WriteString("\n" + styleSection.Render(fmt.Sprintf("Audio (%d)", len(s.Audio))) + "\n")
	if len(s.Audio) == 0 {
		b.WriteString(theme.StyleDimmed.Render("  No players"))
	}
	for i, p := range s.Audio {
		b.WriteString(renderPlayer(p, i == m.Selected))
		if i < len(s.Audio)-1 {
			b.WriteString("\n")
		}
	}

	return panel.Render(b.String())
}

func renderPlayer(p client.AudioPlayer, selected bool) string {
	prefix := "  "
	if selected {
		prefix = theme.StyleSelected.Render("> ")
	}
	glyph, color := "⏸", theme.ColorPaused
	if p.Playing {
		glyph, color = "▶", theme.ColorPlaying
	}
	track := p.Title
	if p.Artist != "" {
		track = p.Artist + " - " + track
	}
	if track == "" {
		track = "(nothing loaded)"
	}
	pos := fmt.Sprintf("%s / %s", formatClock(p.Timestamp), formatClock(p.Duration))
	return prefix +
		lipgloss.NewStyle().Foreground(color).Render(glyph) + " " +
		lipgloss.NewStyle().Foreground(theme.ColorBright).Bold(selected).Render(p.Name) + "  " +
		track + "  " + theme.StyleDimmed.Render(pos)
}

func writeRow(b *strings.Builder, label, value string) {
	b.WriteString(styleLabel.Render(label+":") + styleValue.Render(value) + "\n")
}

func renderBar(pct float64, width int, color lipgloss.Color) string {
	filled := int(pct * float64(width))
	empty := width - filled
	bar := strings.Repeat("█", filled) + strings.Repeat("░", empty)
	return lipgloss.NewStyle().Foreground(color).Render(bar)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// FormatBytes renders a byte count with a binary unit, e.g. "1.5 GiB".
func FormatBytes(n float64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%.0f B", n)
	}
	units := []string{"KiB", "MiB", "GiB", "TiB", "PiB"}
	i := -1
	for n >= unit && i < len(units)-1 {
		n /= unit
		i++
	}
	return fmt.Sprintf("%.1f %s", n, units[i])
}

// FormatUptime renders seconds as "3d 4h 12m", dropping leading zero units.
func FormatUptime(seconds float64) string {
	total := int64(seconds)
	days := total / 86400
	hours := (total % 86400) / 3600
	mins := (total % 3600) / 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, mins)
	default:
		return fmt.Sprintf("%dm", mins)
	}
}

func formatClock(seconds float64) string {
	s := int(seconds)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
