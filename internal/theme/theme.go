// Package theme provides the Lip Gloss color palette and reusable styles
// for the nex-client TUI. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Connection state colors.
var (
	ColorConnected    = lipgloss.Color("#22c55e")
	ColorConnecting   = lipgloss.Color("#d97706")
	ColorDisconnected = lipgloss.Color("#dc2626")
)

// Notice level colors.
var (
	ColorInfo    = lipgloss.Color("#3b82f6")
	ColorSuccess = lipgloss.Color("#16a34a")
	ColorError   = lipgloss.Color("#dc2626")
)

// Gauge thresholds.
var (
	ColorGaugeLow  = lipgloss.Color("#22c55e") // <50%
	ColorGaugeMid  = lipgloss.Color("#d97706") // 50-80%
	ColorGaugeHigh = lipgloss.Color("#dc2626") // >80%
)

// Audio player colors.
var (
	ColorPlaying = lipgloss.Color("#a855f7")
	ColorPaused  = lipgloss.Color("#6b7280")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorBg      = lipgloss.Color("#111827")
	ColorDefault = lipgloss.Color("#9ca3af")
)

// StateColor returns the color for a connection state name.
func StateColor(state string) lipgloss.Color {
	switch state {
	case "connected":
		return ColorConnected
	case "connecting":
		return ColorConnecting
	case "disconnected":
		return ColorDisconnected
	default:
		return ColorDefault
	}
}

// StateGlyph returns the glyph shown next to a connection state.
func StateGlyph(state string) string {
	switch state {
	case "connected":
		return "●"
	case "connecting":
		return "◎"
	default:
		return "○"
	}
}

// LevelColor returns the color for a notice level.
func LevelColor(level string) lipgloss.Color {
	switch level {
	case "info":
		return ColorInfo
	case "success":
		return ColorSuccess
	case "error":
		return ColorError
	default:
		return ColorDimmed
	}
}

// GaugeColor returns the color for a utilization fraction in [0,1].
func GaugeColor(pct float64) lipgloss.Color {
	switch {
	case pct > 0.8:
		return ColorGaugeHigh
	case pct > 0.5:
		return ColorGaugeMid
	default:
		return ColorGaugeLow
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)
)
