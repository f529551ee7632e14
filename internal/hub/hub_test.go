package hub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/replay/internal/adapter/sim"
	"github.com/xiaot623/gogo/replay/internal/domain"
	"github.com/xiaot623/gogo/replay/internal/protocol"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub()
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h
}

func receive(t *testing.T, conn *Connection) []byte {
	t.Helper()
	select {
	case data, ok := <-conn.Send:
		require.True(t, ok, "send queue closed")
		return data
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for message on %s", conn.ID)
		return nil
	}
}

func assertNoMessage(t *testing.T, conn *Connection) {
	t.Helper()
	select {
	case data := <-conn.Send:
		t.Fatalf("unexpected message: %s", data)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestHubBroadcastReachesBoundConnections(t *testing.T) {
	h := startHub(t)

	joined := h.NewConnection(nil)
	other := h.NewConnection(nil)
	h.Register(joined)
	h.Register(other)
	h.BindSession(joined, "sess_1")

	require.Eventually(t, func() bool { return h.ConnectionCount() == 2 }, time.Second, time.Millisecond)
	assert.True(t, h.HasViewers("sess_1"))
	assert.Equal(t, "sess_1", h.SessionOf(joined))
	assert.Equal(t, "", h.SessionOf(other))

	require.NoError(t, h.BroadcastJSON("sess_1", map[string]string{"type": "progress"}))

	assert.JSONEq(t, `{"type":"progress"}`, string(receive(t, joined)))
	assertNoMessage(t, other)
}

func TestHubRebindLeavesPreviousSession(t *testing.T) {
	h := startHub(t)
	conn := h.NewConnection(nil)
	h.Register(conn)

	h.BindSession(conn, "a")
	h.BindSession(conn, "b")

	assert.False(t, h.HasViewers("a"))
	assert.True(t, h.HasViewers("b"))
}

func TestHubUnregisterClosesSendQueue(t *testing.T) {
	h := startHub(t)
	conn := h.NewConnection(nil)
	h.Register(conn)
	h.BindSession(conn, "sess_1")

	h.Unregister(conn)

	select {
	case _, ok := <-conn.Send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatalf("send queue not closed")
	}
	assert.False(t, h.HasViewers("sess_1"))
	assert.Equal(t, 0, h.ConnectionCount())
}

func TestSendToConnectionBufferFull(t *testing.T) {
	h := NewHub()
	conn := h.NewConnection(nil)
	for i := 0; i < sendBuffer; i++ {
		require.NoError(t, h.SendToConnection(conn, []byte("x")))
	}
	assert.ErrorIs(t, h.SendToConnection(conn, []byte("x")), ErrBufferFull)
}

func TestHubStopsCleanly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub()
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	conn := h.NewConnection(nil)
	h.Register(conn)
	cancel()
	<-done

	_, ok := <-conn.Send
	assert.False(t, ok)

	// Calls after shutdown return instead of blocking.
	h.Broadcast("sess_1", []byte("late"))
	h.Unregister(conn)
}

type staticCanvas struct{ frame sim.Frame }

func (c staticCanvas) Frame() sim.Frame { return c.frame }

func TestViewBroadcastsUpdates(t *testing.T) {
	h := startHub(t)
	conn := h.NewConnection(nil)
	h.Register(conn)
	h.BindSession(conn, "sess_1")
	view := NewView(h, "sess_1")

	canvas := staticCanvas{frame: sim.Frame{Width: 2, Height: 1, Rows: []string{"A "}}}
	view.SetCanvas(domain.SideRight, canvas)
	view.SetProgressText("1/20")
	view.SetLaneProgress(domain.SideRight, 3, 7)
	view.Navigate(domain.GoodbyeRoute)

	var canvasMsg protocol.CanvasMessage
	require.NoError(t, json.Unmarshal(receive(t, conn), &canvasMsg))
	assert.Equal(t, protocol.TypeCanvas, canvasMsg.Type)
	assert.Equal(t, "sess_1", canvasMsg.SessionID)
	assert.Equal(t, domain.SideRight, canvasMsg.Side)
	assert.Equal(t, []string{"A "}, canvasMsg.Frame.Rows)

	var progress protocol.ProgressMessage
	require.NoError(t, json.Unmarshal(receive(t, conn), &progress))
	assert.Equal(t, "1/20", progress.Text)

	var lane protocol.LaneMessage
	require.NoError(t, json.Unmarshal(receive(t, conn), &lane))
	assert.Equal(t, protocol.TypeLane, lane.Type)
	assert.Equal(t, 3, lane.Time)
	assert.Equal(t, 7, lane.Length)
	require.NotNil(t, lane.Frame)
	assert.Equal(t, 2, lane.Frame.Width)

	var nav protocol.NavigateMessage
	require.NoError(t, json.Unmarshal(receive(t, conn), &nav))
	assert.Equal(t, domain.GoodbyeRoute, nav.Route)
}

func TestViewSnapshot(t *testing.T) {
	h := startHub(t)
	view := NewView(h, "sess_1")

	assert.Empty(t, view.Snapshot())

	view.SetCanvas(domain.SideLeft, staticCanvas{})
	view.SetProgressText("2/20")
	view.SetLaneProgress(domain.SideLeft, 1, 4)

	snapshot := view.Snapshot()
	require.Len(t, snapshot, 3)
	assert.Equal(t, protocol.TypeCanvas, snapshot[0].(protocol.CanvasMessage).Type)
	assert.Equal(t, "2/20", snapshot[1].(protocol.ProgressMessage).Text)
	assert.Equal(t, 1, snapshot[2].(protocol.LaneMessage).Time)
}
