package callroom

import (
	"net/url"
	"testing"
	"time"

	"github.com/leandro-lugaresi/hub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/traPtitech/callsignal/service/ws"
	"github.com/traPtitech/callsignal/signaling"
	"github.com/traPtitech/callsignal/testutils"
)

type relayEnv struct {
	manager *Manager
	relay   *Relay
	dial    func(userID signaling.UserID, userName, roomID string, query url.Values) *testutils.WSClient
}

func setupRelay(t *testing.T) *relayEnv {
	t.Helper()
	h := hub.New()
	m := NewManager(h)
	r := NewRelay(h, m, zap.NewNop(), 0)
	server := testutils.NewWSServer(t, r)
	t.Cleanup(func() { _ = r.Close() })

	return &relayEnv{
		manager: m,
		relay:   r,
		dial: func(userID signaling.UserID, userName, roomID string, query url.Values) *testutils.WSClient {
			c := testutils.DialWS(t, server, userID, userName, roomID, query)
			m := c.Expect(signaling.TypeRoomConnected)
			assert.Equal(t, roomID, m["room_id"])
			assert.EqualValues(t, userID, m["user_id"])
			return c
		},
	}
}

// join 接続してjoin_callを送り、join_ackを返します
func (env *relayEnv) join(userID signaling.UserID, userName, roomID string) (*testutils.WSClient, map[string]any) {
	c := env.dial(userID, userName, roomID, nil)
	c.Send(map[string]any{"type": "join_call"})
	return c, c.Expect(signaling.TypeJoinAck)
}

func TestRelay_Join(t *testing.T) {
	t.Parallel()

	t.Run("first participant", func(t *testing.T) {
		t.Parallel()
		env := setupRelay(t)

		_, ack := env.join(1, "alice", "room1")
		assert.Equal(t, "room1", ack["room_id"])
		assert.Nil(t, ack["participants"])
		assert.True(t, env.manager.IsJoined("room1", 1, keyOf(t, env, 1)))
	})

	t.Run("existing participants", func(t *testing.T) {
		t.Parallel()
		env := setupRelay(t)

		alice, _ := env.join(1, "alice", "room1")
		_, ack := env.join(2, "bob", "room1")
		assert.Equal(t, []any{
			map[string]any{"user_id": float64(1), "user_name": "alice"},
		}, ack["participants"])

		m := alice.Expect(signaling.TypeUserJoined)
		assert.EqualValues(t, 2, m["from_user_id"])
		assert.Equal(t, "bob", m["user_name"])
	})

	t.Run("not broadcast to unjoined sessions", func(t *testing.T) {
		t.Parallel()
		env := setupRelay(t)

		watcher := env.dial(3, "carol", "room1", nil)
		env.join(1, "alice", "room1")
		env.join(2, "bob", "room1")
		watcher.ExpectNone(200 * time.Millisecond)
	})

	t.Run("twice", func(t *testing.T) {
		t.Parallel()
		env := setupRelay(t)

		alice, _ := env.join(1, "alice", "room1")
		bob, _ := env.join(2, "bob", "room1")
		alice.Expect(signaling.TypeUserJoined)

		bob.Send(map[string]any{"type": "join_call"})
		ack := bob.Expect(signaling.TypeJoinAck)
		assert.Len(t, ack["participants"], 1)
		alice.ExpectNone(200 * time.Millisecond)
	})

	t.Run("another connection", func(t *testing.T) {
		t.Parallel()
		env := setupRelay(t)

		env.join(1, "alice", "room1")
		c := env.dial(1, "alice", "room1", nil)
		c.Send(map[string]any{"type": "join_call"})
		c.Expect(signaling.TypeError)
	})

	t.Run("room kind", func(t *testing.T) {
		t.Parallel()
		env := setupRelay(t)

		c := env.dial(1, "alice", "room1", url.Values{"kind": {"group"}, "name": {"team"}})
		c.Send(map[string]any{"type": "join_call"})
		c.Expect(signaling.TypeJoinAck)

		room, ok := env.manager.GetRoom("room1")
		require.True(t, ok)
		assert.Equal(t, signaling.RoomKindGroup, room.Kind)
		assert.Equal(t, "team", room.Name)
	})
}

func TestRelay_Leave(t *testing.T) {
	t.Parallel()

	t.Run("leave_call", func(t *testing.T) {
		t.Parallel()
		env := setupRelay(t)

		alice, _ := env.join(1, "alice", "room1")
		bob, _ := env.join(2, "bob", "room1")
		alice.Expect(signaling.TypeUserJoined)

		bob.Send(map[string]any{"type": "leave_call"})
		m := alice.Expect(signaling.TypeUserLeft)
		assert.EqualValues(t, 2, m["from_user_id"])
		bob.ExpectNone(200 * time.Millisecond)
	})

	t.Run("disconnect", func(t *testing.T) {
		t.Parallel()
		env := setupRelay(t)

		alice, _ := env.join(1, "alice", "room1")
		bob, _ := env.join(2, "bob", "room1")
		alice.Expect(signaling.TypeUserJoined)

		require.NoError(t, bob.Conn.Close())
		m := alice.Expect(signaling.TypeUserLeft)
		assert.EqualValues(t, 2, m["from_user_id"])

		require.NoError(t, alice.Conn.Close())
		testutils.Eventually(t, func() bool {
			_, ok := env.manager.GetRoom("room1")
			return !ok
		})
	})

	t.Run("unjoined disconnect", func(t *testing.T) {
		t.Parallel()
		env := setupRelay(t)

		alice, _ := env.join(1, "alice", "room1")
		watcher := env.dial(2, "bob", "room1", nil)
		require.NoError(t, watcher.Conn.Close())
		alice.ExpectNone(200 * time.Millisecond)
	})
}

func TestRelay_Forward(t *testing.T) {
	t.Parallel()

	offer := func(to signaling.UserID) map[string]any {
		return map[string]any{
			"type":         "offer",
			"from_user_id": 99,
			"to_user_id":   to,
			"offer":        map[string]any{"type": "offer", "sdp": "v=0"},
		}
	}

	t.Run("offer answer candidate", func(t *testing.T) {
		t.Parallel()
		env := setupRelay(t)

		alice, _ := env.join(1, "alice", "room1")
		bob, _ := env.join(2, "bob", "room1")
		alice.Expect(signaling.TypeUserJoined)

		alice.Send(offer(2))
		m := bob.Expect(signaling.TypeOffer)
		assert.EqualValues(t, 1, m["from_user_id"])
		assert.EqualValues(t, 2, m["to_user_id"])
		assert.Equal(t, map[string]any{"type": "offer", "sdp": "v=0"}, m["offer"])

		bob.Send(map[string]any{
			"type":       "answer",
			"to_user_id": 1,
			"answer":     map[string]any{"type": "answer", "sdp": "v=0"},
		})
		m = alice.Expect(signaling.TypeAnswer)
		assert.EqualValues(t, 2, m["from_user_id"])

		bob.Send(map[string]any{
			"type":       "ice_candidate",
			"to_user_id": 1,
			"candidate":  map[string]any{"candidate": "candidate:1 1 udp 1 127.0.0.1 5000 typ host", "sdpMid": "0", "sdpMLineIndex": 0},
		})
		m = alice.Expect(signaling.TypeICECandidate)
		assert.EqualValues(t, 2, m["from_user_id"])
		assert.Equal(t, "0", m["candidate"].(map[string]any)["sdpMid"])
	})

	t.Run("other rooms are isolated", func(t *testing.T) {
		t.Parallel()
		env := setupRelay(t)

		alice, _ := env.join(1, "alice", "room1")
		bob, _ := env.join(2, "bob", "room2")

		alice.Send(offer(2))
		m := alice.Expect(signaling.TypeError)
		assert.Equal(t, "user 2 is not in this room", m["message"])
		bob.ExpectNone(200 * time.Millisecond)
	})

	t.Run("not joined", func(t *testing.T) {
		t.Parallel()
		env := setupRelay(t)

		env.join(1, "alice", "room1")
		carol := env.dial(3, "carol", "room1", nil)
		carol.Send(offer(1))
		carol.Expect(signaling.TypeError)
	})

	t.Run("to self", func(t *testing.T) {
		t.Parallel()
		env := setupRelay(t)

		alice, _ := env.join(1, "alice", "room1")
		alice.Send(offer(1))
		alice.Expect(signaling.TypeError)
	})

	t.Run("invalid message", func(t *testing.T) {
		t.Parallel()
		env := setupRelay(t)

		alice, _ := env.join(1, "alice", "room1")
		alice.SendRaw("{")
		alice.Expect(signaling.TypeError)
		alice.Send(map[string]any{"type": "offer", "to_user_id": 2})
		alice.Expect(signaling.TypeError)
		alice.Send(map[string]any{"type": "call_invitation"})
		alice.Expect(signaling.TypeError)
	})
}

// keyOf ユーザーのセッションキーを取得します
func keyOf(t *testing.T, env *relayEnv, userID signaling.UserID) string {
	t.Helper()
	var key string
	env.relay.streamer.IterateSessions(func(s ws.Session) {
		if s.UserID() == userID {
			key = s.Key()
		}
	})
	require.NotEmpty(t, key)
	return key
}
