package ws

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/leandro-lugaresi/hub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/traPtitech/callsignal/signaling"
	"github.com/traPtitech/callsignal/testutils"
)

const (
	testConnected    = "test.connected"
	testDisconnected = "test.disconnected"
)

// echoHandler 受信したメッセージをerrorとして送り返すハンドラ
type echoHandler struct {
	mu           sync.Mutex
	connected    []signaling.UserID
	disconnected []signaling.UserID
}

func (h *echoHandler) OnConnect(s Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connected = append(h.connected, s.UserID())
}

func (h *echoHandler) OnMessage(s Session, data []byte) {
	_ = s.Send(&signaling.Error{Message: string(data)})
}

func (h *echoHandler) OnDisconnect(s Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnected = append(h.disconnected, s.UserID())
}

func (h *echoHandler) disconnectedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.disconnected)
}

func setupStreamer(t *testing.T) (*hub.Hub, *Streamer, *echoHandler) {
	t.Helper()
	h := hub.New()
	handler := &echoHandler{}
	s := NewStreamer(h, handler, zap.NewNop(), Options{
		Name:              "test",
		ConnectedEvent:    testConnected,
		DisconnectedEvent: testDisconnected,
	})
	return h, s, handler
}

func TestStreamer_ServeHTTP(t *testing.T) {
	t.Parallel()

	t.Run("unauthorized", func(t *testing.T) {
		t.Parallel()
		_, s, _ := setupStreamer(t)
		server := testutils.NewWSServer(t, s)

		res, err := http.Get(server.URL)
		require.NoError(t, err)
		defer res.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	})

	t.Run("connect and disconnect", func(t *testing.T) {
		t.Parallel()
		h, s, handler := setupStreamer(t)
		sub := h.Subscribe(8, testConnected, testDisconnected)
		defer h.Unsubscribe(sub)
		server := testutils.NewWSServer(t, s)

		c := testutils.DialWS(t, server, 1, "alice", "room1", nil)

		e := <-sub.Receiver
		assert.Equal(t, testConnected, e.Topic())
		assert.Equal(t, signaling.UserID(1), e.Fields["user_id"])
		assert.Equal(t, "room1", e.Fields["room_id"])
		testutils.Eventually(t, func() bool { return s.SessionCount() == 1 })

		require.NoError(t, c.Conn.Close())

		e = <-sub.Receiver
		assert.Equal(t, testDisconnected, e.Topic())
		assert.Equal(t, signaling.UserID(1), e.Fields["user_id"])
		assert.Equal(t, 0, s.SessionCount())
		assert.Equal(t, 1, handler.disconnectedCount())
	})

	t.Run("message", func(t *testing.T) {
		t.Parallel()
		_, s, _ := setupStreamer(t)
		server := testutils.NewWSServer(t, s)

		c := testutils.DialWS(t, server, 1, "alice", "", nil)
		c.SendRaw("hello")
		m := c.Expect(signaling.TypeError)
		assert.Equal(t, "hello", m["message"])
	})

	t.Run("closed", func(t *testing.T) {
		t.Parallel()
		_, s, _ := setupStreamer(t)
		server := testutils.NewWSServer(t, s)

		c := testutils.DialWS(t, server, 1, "alice", "", nil)
		testutils.Eventually(t, func() bool { return s.SessionCount() == 1 })

		require.NoError(t, s.Close())
		c.ExpectClosed()
		assert.ErrorIs(t, s.Close(), ErrAlreadyClosed)

		res, err := http.Get(server.URL + "/?uid=1")
		require.NoError(t, err)
		defer res.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	})
}

func TestStreamer_WriteMessage(t *testing.T) {
	t.Parallel()

	_, s, _ := setupStreamer(t)
	server := testutils.NewWSServer(t, s)

	c1 := testutils.DialWS(t, server, 1, "alice", "room1", nil)
	c2 := testutils.DialWS(t, server, 2, "bob", "room1", nil)
	c3 := testutils.DialWS(t, server, 3, "carol", "room2", nil)
	testutils.Eventually(t, func() bool { return s.SessionCount() == 3 })

	t.Run("users", func(t *testing.T) {
		n := s.WriteMessage(&signaling.Error{Message: "to bob"}, TargetUsers(2))
		assert.Equal(t, 1, n)
		assert.Equal(t, "to bob", c2.Expect(signaling.TypeError)["message"])
	})

	t.Run("room", func(t *testing.T) {
		n := s.WriteMessage(&signaling.Error{Message: "to room1"}, TargetRoom("room1"))
		assert.Equal(t, 2, n)
		assert.Equal(t, "to room1", c1.Expect(signaling.TypeError)["message"])
		assert.Equal(t, "to room1", c2.Expect(signaling.TypeError)["message"])
	})

	t.Run("nobody", func(t *testing.T) {
		n := s.WriteMessage(&signaling.Error{Message: "to dave"}, TargetUsers(4))
		assert.Equal(t, 0, n)
	})

	t.Run("all", func(t *testing.T) {
		n := s.WriteMessage(&signaling.Error{Message: "to all"}, TargetAll())
		assert.Equal(t, 3, n)
		for _, c := range []*testutils.WSClient{c1, c2, c3} {
			assert.Equal(t, "to all", c.Expect(signaling.TypeError)["message"])
		}
	})

	t.Run("not delivered after close", func(t *testing.T) {
		require.NoError(t, c3.Conn.Close())
		testutils.Eventually(t, func() bool { return s.SessionCount() == 2 })
		n := s.WriteMessage(&signaling.Error{Message: "to carol"}, TargetUsers(3))
		assert.Equal(t, 0, n)
		c1.ExpectNone(100 * time.Millisecond)
	})
}
