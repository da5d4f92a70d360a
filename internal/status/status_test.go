package status

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XDukeHD/nex-client/internal/client"
)

func fixedNow() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

func TestNewStartsDisconnected(t *testing.T) {
	s := New(0, fixedNow)

	st := s.Status()
	assert.Equal(t, StateDisconnected, st.State)
	assert.Empty(t, st.Err)
	assert.Equal(t, fixedNow(), st.Timestamp)

	_, ok := s.Snapshot()
	assert.False(t, ok)
	assert.NoError(t, s.LastError())
	assert.Empty(t, s.Notices())
}

func TestSetStatusRecordsError(t *testing.T) {
	s := New(0, fixedNow)

	boom := errors.New("boom")
	s.SetStatus(StateDisconnected, boom)
	assert.Equal(t, "boom", s.Status().Err)
	assert.ErrorIs(t, s.LastError(), boom)

	s.SetStatus(StateConnected, nil)
	assert.Equal(t, StateConnected, s.Status().State)
	assert.Empty(t, s.Status().Err)
	assert.NoError(t, s.LastError())
}

func TestSnapshotReplacedWholesale(t *testing.T) {
	s := New(0, fixedNow)

	s.SetSnapshot(client.Snapshot{CPUAbsolute: 42, Volume: 10})
	s.SetSnapshot(client.Snapshot{CPUAbsolute: 7})

	snap, ok := s.Snapshot()
	require.True(t, ok)
	assert.Equal(t, 7.0, snap.CPUAbsolute)
	assert.Zero(t, snap.Volume, "fields from the previous snapshot must not survive")

	s.ClearSnapshot()
	_, ok = s.Snapshot()
	assert.False(t, ok)
}

func TestNoticeHistoryBounded(t *testing.T) {
	s := New(3, fixedNow)
	for i := 0; i < 5; i++ {
		s.Notify(LevelInfo, fmt.Sprintf("n%d", i), "")
	}

	got := s.Notices()
	require.Len(t, got, 3)
	assert.Equal(t, "n2", got[0].Title)
	assert.Equal(t, "n4", got[2].Title)
}

func TestSubscribe(t *testing.T) {
	s := New(0, fixedNow)
	ch, cancel := s.Subscribe(8)

	s.SetStatus(StateConnecting, nil)
	s.Notify(LevelSuccess, "Connected to NEX server", "")
	s.SetSnapshot(client.Snapshot{Uptime: 60})

	u := <-ch
	assert.Equal(t, StateConnecting, u.Status.State)
	assert.Nil(t, u.Notice)

	u = <-ch
	require.NotNil(t, u.Notice)
	assert.Equal(t, LevelSuccess, u.Notice.Level)

	u = <-ch
	require.NotNil(t, u.Snapshot)
	assert.Equal(t, 60.0, u.Snapshot.Uptime)

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open, "channel closed after cancel")

	// Publishing after cancel must not panic.
	s.SetStatus(StateConnected, nil)
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	s := New(0, fixedNow)
	_, cancel := s.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.SetSnapshot(client.Snapshot{Uptime: float64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publisher blocked on a full subscriber")
	}
}
