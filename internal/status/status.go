// Package status holds the observable side of the stream: connection
// state, the latest snapshot, the last error and a bounded notice history.
// The stream session writes into a Surface; front-ends read it or
// subscribe to updates.
package status

import (
	"sync"
	"time"

	"github.com/eapache/queue"

	"github.com/XDukeHD/nex-client/internal/client"
)

// State is the connection lifecycle state shown to the user.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// ConnectionStatus is the current state plus the error that caused it, if
// any.
type ConnectionStatus struct {
	State     State
	Err       string
	Timestamp time.Time
}

// Level classifies a Notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice is a short user-visible message about the connection.
type Notice struct {
	Level  Level
	Title  string
	Detail string
	Time   time.Time
}

// Update is delivered to subscribers on every change. Notice is nil unless
// the change was a new notice.
type Update struct {
	Status   ConnectionStatus
	Snapshot *client.Snapshot
	Notice   *Notice
}

// DefaultHistory is the notice history size used when none is configured.
const DefaultHistory = 50

// Surface is safe for concurrent use.
type Surface struct {
	mu       sync.Mutex
	status   ConnectionStatus
	snapshot *client.Snapshot
	lastErr  error

	notices *queue.Queue
	limit   int

	subs   map[int]chan Update
	nextID int

	now func() time.Time
}

// New creates a Surface in the Disconnected state. history bounds the
// notice log; values below 1 use DefaultHistory. A nil now uses time.Now.
func New(history int, now func() time.Time) *Surface {
	if history < 1 {
		history = DefaultHistory
	}
	if now == nil {
		now = time.Now
	}
	return &Surface{
		status:  ConnectionStatus{State: StateDisconnected, Timestamp: now()},
		notices: queue.New(),
		limit:   history,
		subs:    make(map[int]chan Update),
		now:     now,
	}
}

// Status returns the current connection status.
func (s *Surface) Status() ConnectionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Snapshot returns a copy of the latest snapshot and whether one exists.
func (s *Surface) Snapshot() (client.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return client.Snapshot{}, false
	}
	return *s.snapshot, true
}

// LastError returns the error recorded with the most recent status change,
// or nil.
func (s *Surface) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Notices returns the notice history, oldest first.
func (s *Surface) Notices() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notice, 0, s.notices.Length())
	for i := 0; i < s.notices.Length(); i++ {
		out = append(out, s.notices.Get(i).(Notice))
	}
	return out
}

// SetStatus records a state change. A nil err clears the last error.
func (s *Surface) SetStatus(state State, err error) {
	s.mu.Lock()
	s.status = ConnectionStatus{State: state, Timestamp: s.now()}
	s.lastErr = err
	if err != nil {
		s.status.Err = err.Error()
	}
	s.publishLocked(nil)
	s.mu.Unlock()
}

// SetSnapshot replaces the latest snapshot wholesale.
func (s *Surface) SetSnapshot(snap client.Snapshot) {
	s.mu.Lock()
	s.snapshot = &snap
	s.publishLocked(nil)
	s.mu.Unlock()
}

// ClearSnapshot forgets the latest snapshot.
func (s *Surface) ClearSnapshot() {
	s.mu.Lock()
	s.snapshot = nil
	s.publishLocked(nil)
	s.mu.Unlock()
}

// Notify appends a notice to the history and publishes it.
func (s *Surface) Notify(level Level, title, detail string) {
	n := Notice{Level: level, Title: title, Detail: detail, Time: s.now()}

	s.mu.Lock()
	s.notices.Add(n)
	for s.notices.Length() > s.limit {
		s.notices.Remove()
	}
	s.publishLocked(&n)
	s.mu.Unlock()
}

// Subscribe returns a channel of updates and a function that cancels the
// subscription. Updates are dropped for subscribers whose buffer is full;
// the next update carries the full current state, so readers only miss
// intermediate notices.
func (s *Surface) Subscribe(buffer int) (<-chan Update, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Update, buffer)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *Surface) publishLocked(n *Notice) {
	if len(s.subs) == 0 {
		return
	}
	u := Update{Status: s.status, Notice: n}
	if s.snapshot != nil {
		snap := *s.snapshot
		u.Snapshot = &snap
	}
	for _, ch := range s.subs {
		select {
		case ch <- u:
		default:
		}
	}
}
