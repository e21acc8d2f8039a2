package hub

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingMirror struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *recordingMirror) Publish(msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func drain(q *Queue) []Message {
	var out []Message
	for {
		select {
		case msg := <-q.C():
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestBroadcastReachesOnlyRoomMembers(t *testing.T) {
	h := New()
	a := NewQueue("a", 8)
	b := NewQueue("b", 8)
	c := NewQueue("c", 8)

	require.NoError(t, h.Join(a, "s1"))
	require.NoError(t, h.Join(b, "s1"))
	require.NoError(t, h.Join(c, "s2"))

	require.Equal(t, 2, h.Broadcast("s1", "audience-update", 5))

	require.Len(t, drain(a), 1)
	require.Len(t, drain(b), 1)
	require.Empty(t, drain(c))
}

func TestBroadcastPreservesEmissionOrder(t *testing.T) {
	h := New()
	q := NewQueue("a", 16)
	require.NoError(t, h.Join(q, "s1"))

	for i := 0; i < 10; i++ {
		h.Broadcast("s1", "fake-chat-message", i)
	}

	got := drain(q)
	require.Len(t, got, 10)
	for i, msg := range got {
		require.Equal(t, i, msg.Data)
		require.Equal(t, "s1", msg.StreamID)
	}
}

func TestDisconnectLeavesAllRooms(t *testing.T) {
	h := New()
	q := NewQueue("a", 8)
	require.NoError(t, h.Join(q, "s1"))
	require.NoError(t, h.Join(q, "s2"))

	h.Disconnect("a")

	require.Zero(t, h.Broadcast("s1", "x", nil))
	require.Zero(t, h.Broadcast("s2", "x", nil))
	require.Equal(t, 0, h.Stats().Members)
	require.Equal(t, 0, h.Stats().Rooms)
}

func TestFullQueueDropsAndClosedMemberIsRemoved(t *testing.T) {
	h := New()
	slow := NewQueue("slow", 1)
	gone := NewQueue("gone", 1)
	require.NoError(t, h.Join(slow, "s1"))
	require.NoError(t, h.Join(gone, "s1"))
	gone.Close()

	h.Broadcast("s1", "x", 1)
	h.Broadcast("s1", "x", 2)

	stats := h.Stats()
	require.Equal(t, uint64(2), stats.Broadcasts)
	require.Equal(t, uint64(1), stats.Sent)
	require.Equal(t, uint64(2), stats.Dropped)
	require.Equal(t, 1, h.Members("s1"))
}

func TestJoinRequiresStreamAndMirrorSeesBroadcasts(t *testing.T) {
	mirror := &recordingMirror{}
	h := New(WithMirror(mirror))

	require.ErrorIs(t, h.Join(NewQueue("a", 1), " "), ErrStreamIDRequired)

	h.Broadcast("s1", "stream-stopped", nil)
	require.Len(t, mirror.msgs, 1)
	require.Equal(t, "stream-stopped", mirror.msgs[0].Event)
}
