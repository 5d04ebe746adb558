package hub

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storyparty/story-party-backend/internal/room"
	"github.com/storyparty/story-party-backend/internal/story"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := NewHub(ctx, story.NewRegistry(), room.DefaultConfig(), zap.NewNop())
	t.Cleanup(func() { h.Inbox() <- ShutdownHub{} })
	return h
}

func createRoom(t *testing.T, h *Hub) *room.Room {
	t.Helper()
	reply := make(chan *room.Room, 1)
	h.Inbox() <- CreateRoom{Reply: reply}
	select {
	case rm := <-reply:
		require.NotNil(t, rm)
		return rm
	case <-time.After(time.Second):
		t.Fatalf("timed out creating room")
		return nil
	}
}

func getRoom(t *testing.T, h *Hub, code string) *room.Room {
	t.Helper()
	reply := make(chan *room.Room, 1)
	h.Inbox() <- GetRoom{Code: code, Reply: reply}
	select {
	case rm := <-reply:
		return rm
	case <-time.After(time.Second):
		t.Fatalf("timed out looking up room")
		return nil
	}
}

func TestCreateRoom_CodeShapeAndLookup(t *testing.T) {
	h := newTestHub(t)
	rm := createRoom(t, h)

	code := rm.Code()
	require.Len(t, code, codeLength)
	for _, c := range code {
		assert.True(t, strings.ContainsRune(codeChars, c), "code %q uses char outside alphabet", code)
	}

	assert.Same(t, rm, getRoom(t, h, code))
	assert.Nil(t, getRoom(t, h, "ZZZZ"))
}

func TestCreateRoom_CodesAreUnique(t *testing.T) {
	h := newTestHub(t)
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		code := createRoom(t, h).Code()
		assert.False(t, seen[code], "duplicate live code %q", code)
		seen[code] = true
	}
}

func TestDisposedRoomLeavesHub(t *testing.T) {
	h := newTestHub(t)
	rm := createRoom(t, h)
	code := rm.Code()

	out := make(chan room.Outbound, 16)
	reply := make(chan error, 1)
	require.True(t, rm.Send(room.Join{SessionID: "s1", Name: "Ann", Outbox: out, Reply: reply}))
	require.NoError(t, <-reply)
	require.True(t, rm.Send(room.Leave{SessionID: "s1", Voluntary: true}))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if getRoom(t, h, code) == nil {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("disposed room %q still resolvable", code)
}
