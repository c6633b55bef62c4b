package callroom

import (
	"testing"

	"github.com/leandro-lugaresi/hub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traPtitech/callsignal/event"
	"github.com/traPtitech/callsignal/signaling"
)

func TestManager_Join(t *testing.T) {
	t.Parallel()

	t.Run("create room", func(t *testing.T) {
		t.Parallel()
		h := hub.New()
		sub := h.Subscribe(8, event.RoomCreated, event.RoomUserJoined)
		defer h.Unsubscribe(sub)
		m := NewManager(h)

		others, joined, err := m.Join("room1", JoinParams{UserID: 1, UserName: "alice", SessionKey: "s1"})
		require.NoError(t, err)
		assert.True(t, joined)
		assert.Empty(t, others)

		e := <-sub.Receiver
		assert.Equal(t, event.RoomCreated, e.Topic())
		assert.Equal(t, "room1", e.Fields["room_id"])
		assert.Equal(t, signaling.RoomKindPrivate, e.Fields["kind"])
		e = <-sub.Receiver
		assert.Equal(t, event.RoomUserJoined, e.Topic())
		assert.Equal(t, signaling.UserID(1), e.Fields["user_id"])

		room, ok := m.GetRoom("room1")
		require.True(t, ok)
		assert.Equal(t, "room1", room.Name)
		assert.Equal(t, signaling.RoomKindPrivate, room.Kind)
		if assert.Len(t, room.Participants, 1) {
			assert.Equal(t, "alice", room.Participants[0].UserName)
		}
	})

	t.Run("kind and name", func(t *testing.T) {
		t.Parallel()
		m := NewManager(hub.New())

		_, _, err := m.Join("room1", JoinParams{UserID: 1, SessionKey: "s1", Kind: signaling.RoomKindGroup, Name: "team"})
		require.NoError(t, err)
		// 作成済みのルームでは無視される
		_, _, err = m.Join("room1", JoinParams{UserID: 2, SessionKey: "s2", Kind: signaling.RoomKindPrivate, Name: "other"})
		require.NoError(t, err)

		room, ok := m.GetRoom("room1")
		require.True(t, ok)
		assert.Equal(t, signaling.RoomKindGroup, room.Kind)
		assert.Equal(t, "team", room.Name)
	})

	t.Run("others", func(t *testing.T) {
		t.Parallel()
		m := NewManager(hub.New())

		_, _, err := m.Join("room1", JoinParams{UserID: 1, UserName: "alice", SessionKey: "s1"})
		require.NoError(t, err)
		_, _, err = m.Join("room1", JoinParams{UserID: 2, UserName: "bob", SessionKey: "s2"})
		require.NoError(t, err)
		others, joined, err := m.Join("room1", JoinParams{UserID: 3, UserName: "carol", SessionKey: "s3"})
		require.NoError(t, err)
		assert.True(t, joined)
		assert.ElementsMatch(t, []signaling.Participant{
			{UserID: 1, UserName: "alice"},
			{UserID: 2, UserName: "bob"},
		}, others)
	})

	t.Run("same session", func(t *testing.T) {
		t.Parallel()
		m := NewManager(hub.New())

		_, _, err := m.Join("room1", JoinParams{UserID: 1, SessionKey: "s1"})
		require.NoError(t, err)
		_, _, err = m.Join("room1", JoinParams{UserID: 2, UserName: "bob", SessionKey: "s2"})
		require.NoError(t, err)

		others, joined, err := m.Join("room1", JoinParams{UserID: 1, SessionKey: "s1"})
		require.NoError(t, err)
		assert.False(t, joined)
		assert.Equal(t, []signaling.Participant{{UserID: 2, UserName: "bob"}}, others)

		room, _ := m.GetRoom("room1")
		assert.Len(t, room.Participants, 2)
	})

	t.Run("occupied", func(t *testing.T) {
		t.Parallel()
		m := NewManager(hub.New())

		_, _, err := m.Join("room1", JoinParams{UserID: 1, SessionKey: "s1"})
		require.NoError(t, err)
		_, _, err = m.Join("room1", JoinParams{UserID: 1, SessionKey: "s2"})
		assert.ErrorIs(t, err, ErrOccupied)
		assert.True(t, m.IsJoined("room1", 1, "s1"))
		assert.False(t, m.IsJoined("room1", 1, "s2"))
	})
}

func TestManager_Leave(t *testing.T) {
	t.Parallel()

	t.Run("not joined", func(t *testing.T) {
		t.Parallel()
		m := NewManager(hub.New())

		left, err := m.Leave("room1", 1, "s1")
		assert.NoError(t, err)
		assert.False(t, left)
	})

	t.Run("other session", func(t *testing.T) {
		t.Parallel()
		m := NewManager(hub.New())

		_, _, err := m.Join("room1", JoinParams{UserID: 1, SessionKey: "s1"})
		require.NoError(t, err)
		left, err := m.Leave("room1", 1, "s2")
		assert.ErrorIs(t, err, ErrOccupied)
		assert.False(t, left)
		assert.True(t, m.IsJoined("room1", 1, "s1"))
	})

	t.Run("close room", func(t *testing.T) {
		t.Parallel()
		h := hub.New()
		sub := h.Subscribe(8, event.RoomUserLeft, event.RoomClosed)
		defer h.Unsubscribe(sub)
		m := NewManager(h)

		_, _, err := m.Join("room1", JoinParams{UserID: 1, SessionKey: "s1"})
		require.NoError(t, err)
		_, _, err = m.Join("room1", JoinParams{UserID: 2, SessionKey: "s2"})
		require.NoError(t, err)

		left, err := m.Leave("room1", 1, "s1")
		require.NoError(t, err)
		assert.True(t, left)
		e := <-sub.Receiver
		assert.Equal(t, event.RoomUserLeft, e.Topic())
		assert.Equal(t, signaling.UserID(1), e.Fields["user_id"])
		_, ok := m.GetRoom("room1")
		assert.True(t, ok)

		left, err = m.Leave("room1", 2, "s2")
		require.NoError(t, err)
		assert.True(t, left)
		e = <-sub.Receiver
		assert.Equal(t, event.RoomUserLeft, e.Topic())
		e = <-sub.Receiver
		assert.Equal(t, event.RoomClosed, e.Topic())
		assert.Equal(t, "room1", e.Fields["room_id"])
		_, ok = m.GetRoom("room1")
		assert.False(t, ok)
	})
}

func TestManager_GetRooms(t *testing.T) {
	t.Parallel()

	m := NewManager(hub.New())
	assert.Empty(t, m.GetRooms())

	for i, id := range []string{"room1", "room2", "room3"} {
		_, _, err := m.Join(id, JoinParams{UserID: signaling.UserID(i + 1), SessionKey: id})
		require.NoError(t, err)
	}

	rooms := m.GetRooms()
	if assert.Len(t, rooms, 3) {
		assert.Equal(t, "room1", rooms[0].RoomID)
		assert.Equal(t, "room3", rooms[2].RoomID)
	}

	count := 0
	m.IterateRooms(func(state RoomState) {
		count += len(state.Participants)
	})
	assert.Equal(t, 3, count)
}
