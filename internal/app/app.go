// Package app is the root Bubble Tea model for `nex-client watch`. It
// renders the Status Surface and turns key presses into session calls.
package app

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/XDukeHD/nex-client/internal/client"
	nexerr "github.com/XDukeHD/nex-client/internal/errors"
	"github.com/XDukeHD/nex-client/internal/status"
	"github.com/XDukeHD/nex-client/internal/theme"
	"github.com/XDukeHD/nex-client/internal/views/debug"
	"github.com/XDukeHD/nex-client/internal/views/help"
	"github.com/XDukeHD/nex-client/internal/views/metrics"
	"github.com/XDukeHD/nex-client/internal/views/statusbar"
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDebug
	OverlayHelp
)

const (
	toastTTL      = 4 * time.Second
	updateBuffer  = 64
	frameInterval = time.Second / metrics.FPS
)

// Controller is the part of the stream session the UI drives.
type Controller interface {
	Reconnect()
	Disconnect()
	Logout()
	SendCommand(event, targetID string) error
}

// LoggedOutMsg tells the model the credentials were purged. Send it with
// tea.Program.Send from the session's logout hook.
type LoggedOutMsg struct{}

type updateMsg status.Update

type frameMsg struct{}

type toastExpiredMsg struct{ seq int }

type commandResultMsg struct {
	event  string
	target string
	err    error
}

// Options tweak rendering.
type Options struct {
	// Endpoint is shown in the status bar.
	Endpoint string
	// HelpStyle is the glamour style for the help overlay. Defaults to
	// "dark".
	HelpStyle string
}

// Model is the root Bubble Tea model.
type Model struct {
	ctrl        Controller
	updates     <-chan status.Update
	unsubscribe func()

	keys    KeyMap
	width   int
	height  int
	overlay Overlay

	// Sub-views.
	statusBar statusbar.Model
	metrics   metrics.Model
	debug     debug.Model
	help      *help.Model

	toast     *status.Notice
	toastSeq  int
	animating bool
	loggedOut bool
}

// New creates the root model and subscribes to surface. The current
// state and notice history are loaded immediately.
func New(ctrl Controller, surface *status.Surface, opts Options) Model {
	if opts.HelpStyle == "" {
		opts.HelpStyle = "dark"
	}
	keys := DefaultKeyMap()
	hm := help.New(opts.HelpStyle, keys.HelpSections()...)

	m := Model{
		ctrl:      ctrl,
		keys:      keys,
		statusBar: statusbar.New(opts.Endpoint),
		metrics:   metrics.New(),
		debug:     debug.New(),
		help:      &hm,
	}

	m.updates, m.unsubscribe = surface.Subscribe(updateBuffer)
	m.statusBar.Status = surface.Status()
	if snap, ok := surface.Snapshot(); ok {
		m.metrics.SetSnapshot(&snap)
	}
	for _, n := range surface.Notices() {
		m.debug.AddNotice(n)
	}
	return m
}

// Init starts listening for surface updates.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), m.statusBar.Tick())
}

func waitForUpdate(ch <-chan status.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return nil
		}
		return updateMsg(u)
	}
}

func frameTick() tea.Cmd {
	return tea.Tick(frameInterval, func(time.Time) tea.Msg { return frameMsg{} })
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.metrics.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case updateMsg:
		return m.applyUpdate(status.Update(msg))

	case frameMsg:
		m.metrics.Step()
		if m.metrics.Animating() {
			return m, frameTick()
		}
		m.animating = false
		return m, nil

	case toastExpiredMsg:
		if msg.seq == m.toastSeq {
			m.toast = nil
		}
		return m, nil

	case commandResultMsg:
		// Not-connected failures already produced a notice.
		if msg.err != nil && !nexerr.IsCode(msg.err, nexerr.ErrNotConnected) {
			m.debug.AddNotice(status.Notice{
				Level:  status.LevelError,
				Title:  "Command failed",
				Detail: msg.event + " " + msg.target,
				Time:   time.Now(),
			})
		}
		return m, nil

	case LoggedOutMsg:
		m.loggedOut = true
		m.statusBar.LoggedOut = true
		return m, nil
	}

	var cmd tea.Cmd
	m.statusBar, cmd = m.statusBar.Update(msg)
	return m, cmd
}

func (m Model) applyUpdate(u status.Update) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{waitForUpdate(m.updates)}

	// A publish that changes neither status nor notices is a new snapshot.
	if u.Notice == nil && u.Status == m.statusBar.Status && u.Snapshot != nil {
		m.statusBar.LastFrame = time.Now()
	}
	m.statusBar.Status = u.Status
	if u.Status.State == status.StateConnected {
		m.loggedOut = false
		m.statusBar.LoggedOut = false
	}

	m.metrics.SetSnapshot(u.Snapshot)
	if !m.animating && m.metrics.Animating() {
		m.animating = true
		cmds = append(cmds, frameTick())
	}

	if u.Notice != nil {
		n := *u.Notice
		m.debug.AddNotice(n)
		m.toast = &n
		m.toastSeq++
		seq := m.toastSeq
		cmds = append(cmds, tea.Tick(toastTTL, func(time.Time) tea.Msg { return toastExpiredMsg{seq: seq} }))
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.overlay != OverlayNone {
		switch {
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Help) && m.overlay == OverlayHelp:
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.Quit):
			return m.quit()
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Up):
			m.debug.ScrollUp(1)
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Down):
			m.debug.ScrollDown(1)
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()

	case key.Matches(msg, m.keys.Down):
		m.metrics.SelectNext()
		return m, nil

	case key.Matches(msg, m.keys.Up):
		m.metrics.SelectPrev()
		return m, nil

	case key.Matches(msg, m.keys.PlayPause):
		return m, m.command(client.CommandAudioPlayPause)

	case key.Matches(msg, m.keys.Next):
		return m, m.command(client.CommandAudioNext)

	case key.Matches(msg, m.keys.Previous):
		return m, m.command(client.CommandAudioPrevious)

	case key.Matches(msg, m.keys.Stop):
		return m, m.command(client.CommandAudioStop)

	case key.Matches(msg, m.keys.Reconnect):
		ctrl := m.ctrl
		return m, func() tea.Msg { ctrl.Reconnect(); return nil }

	case key.Matches(msg, m.keys.Disconnect):
		ctrl := m.ctrl
		return m, func() tea.Msg { ctrl.Disconnect(); return nil }

	case key.Matches(msg, m.keys.Logout):
		ctrl := m.ctrl
		return m, func() tea.Msg { ctrl.Logout(); return nil }

	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.overlay = OverlayHelp
		return m, nil
	}

	return m, nil
}

// command sends event to the selected player. Without a player there is
// nothing to target and no command is sent.
func (m Model) command(event string) tea.Cmd {
	player, ok := m.metrics.SelectedPlayer()
	if !ok {
		return nil
	}
	ctrl, target := m.ctrl, player.ID
	return func() tea.Msg {
		return commandResultMsg{event: event, target: target, err: ctrl.SendCommand(event, target)}
	}
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	return m, tea.Quit
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var body string
	switch m.overlay {
	case OverlayDebug:
		body = m.debug.View(m.width, m.height-4)
	case OverlayHelp:
		body = m.help.View(m.width)
	default:
		body = m.metrics.View()
	}

	sections := []string{m.statusBar.View()}
	if banner := m.banner(); banner != "" {
		sections = append(sections, banner)
	}
	sections = append(sections,
		body,
		m.renderToast(),
		theme.StyleDimmed.Render("  j/k:player  space/n/p/s:audio  r:reconnect  x:disconnect  L:logout  d:log  ?:help  q:quit"),
	)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) banner() string {
	style := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorDisconnected).Padding(0, 1)
	switch {
	case m.loggedOut:
		return style.Render("LOGGED OUT") + theme.StyleDimmed.Render("Run 'nex-client login' to sign in again")
	case m.statusBar.Status.State == status.StateDisconnected:
		return style.Render("DISCONNECTED") + theme.StyleDimmed.Render("Press r to reconnect")
	}
	return ""
}

func (m Model) renderToast() string {
	if m.toast == nil {
		return ""
	}
	text := m.toast.Title
	if m.toast.Detail != "" {
		text += "  " + theme.StyleDimmed.Render(m.toast.Detail)
	}
	return lipgloss.NewStyle().
		Foreground(theme.LevelColor(string(m.toast.Level))).
		Padding(0, 1).
		Render(text)
}
