// Package logging configures the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DebugEnv forces debug level when set to any non-empty value.
const DebugEnv = "NEX_DEBUG"

// FileName is the default log file name inside the state directory.
const FileName = "nex-client.log"

// Manager owns logger configuration and the optional log file.
type Manager struct {
	mu     sync.RWMutex
	logger *slog.Logger
	file   *os.File
}

// NewManager returns a Manager logging at info level to stderr.
func NewManager() *Manager {
	return &Manager{
		logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})),
	}
}

// Configure installs a new default logger. Records go to console (if not
// nil) and to filePath (if not empty), which is created with its parent
// directory and appended to.
func (m *Manager) Configure(level string, console io.Writer, filePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.file != nil {
		_ = m.file.Close()
		m.file = nil
	}

	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	if os.Getenv(DebugEnv) != "" {
		lvl = slog.LevelDebug
	}

	var writers []io.Writer
	if console != nil {
		writers = append(writers, console)
	}
	if filePath != "" {
		cleanPath := filepath.Clean(filePath)
		if err := os.MkdirAll(filepath.Dir(cleanPath), 0o700); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		file, err := os.OpenFile(cleanPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		m.file = file
		writers = append(writers, file)
	}

	var w io.Writer = io.Discard
	if len(writers) > 0 {
		w = newFanoutWriter(writers...)
	}

	m.logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(m.logger)
	return nil
}

// Logger returns the configured logger tagged with component.
func (m *Manager) Logger(component string) *slog.Logger {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.logger.With("component", component)
}

// Close releases the log file, if any.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.file != nil {
		if err := m.file.Close(); err != nil {
			return err
		}
		m.file = nil
	}
	return nil
}

// ParseLevel maps a config string to a slog level. Empty means info.
func ParseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported log level: %q", raw)
	}
}

type fanoutWriter struct {
	writers []io.Writer
}

func newFanoutWriter(writers ...io.Writer) io.Writer {
	if len(writers) == 1 {
		return writers[0]
	}
	return &fanoutWriter{writers: writers}
}

// Write succeeds if any destination took the whole record.
func (w *fanoutWriter) Write(p []byte) (int, error) {
	var (
		wroteAny bool
		firstErr error
	)
	for _, dst := range w.writers {
		n, err := dst.Write(p)
		if err == nil && n != len(p) {
			err = io.ErrShortWrite
		}
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		wroteAny = true
	}
	if wroteAny {
		return len(p), nil
	}
	return 0, firstErr
}
