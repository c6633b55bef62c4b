package callroom

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/leandro-lugaresi/hub"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/lo"

	"github.com/traPtitech/callsignal/event"
	"github.com/traPtitech/callsignal/signaling"
)

var (
	// ErrOccupied 既に別のコネクションで参加しています
	ErrOccupied = errors.New("connection has already existed")

	callRoomsCounter = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "callsignal",
		Name:      "call_rooms",
	})
	callParticipantsCounter = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "callsignal",
		Name:      "call_room_participants",
	})
)

// Participant 通話ルームの参加者
type Participant struct {
	UserID   signaling.UserID `json:"userId"`
	UserName string           `json:"userName"`
	JoinedAt time.Time        `json:"joinedAt"`
}

// RoomState 通話ルームの状態
type RoomState struct {
	RoomID       string             `json:"roomId"`
	Kind         signaling.RoomKind `json:"kind"`
	Name         string             `json:"name"`
	CreatedAt    time.Time          `json:"createdAt"`
	Participants []Participant      `json:"participants"`
}

// JoinParams 参加パラメータ
type JoinParams struct {
	UserID     signaling.UserID
	UserName   string
	SessionKey string
	// Kind ルームを新規作成する場合のみ使われます
	Kind signaling.RoomKind
	// Name ルームを新規作成する場合のみ使われます
	Name string
}

type participant struct {
	Participant
	sessionKey string
}

type roomState struct {
	id           string
	kind         signaling.RoomKind
	name         string
	createdAt    time.Time
	participants map[signaling.UserID]*participant
}

func (rs *roomState) snapshot() RoomState {
	ps := lo.MapToSlice(rs.participants, func(_ signaling.UserID, p *participant) Participant {
		return p.Participant
	})
	slices.SortFunc(ps, func(a, b Participant) int {
		return a.JoinedAt.Compare(b.JoinedAt)
	})
	return RoomState{
		RoomID:       rs.id,
		Kind:         rs.kind,
		Name:         rs.name,
		CreatedAt:    rs.createdAt,
		Participants: ps,
	}
}

// Manager 通話ルームマネージャー
type Manager struct {
	eventbus   *hub.Hub
	rooms      map[string]*roomState
	statesLock sync.RWMutex
}

// NewManager 通話ルームマネージャーを生成します
func NewManager(eventbus *hub.Hub) *Manager {
	return &Manager{
		eventbus: eventbus,
		rooms:    map[string]*roomState{},
	}
}

// Join 指定したルームに参加します
//
// 参加前から居た参加者の一覧を返します。同じセッションで既に参加済みの場合はjoinedがfalseになります
func (m *Manager) Join(roomID string, p JoinParams) (others []signaling.Participant, joined bool, err error) {
	m.statesLock.Lock()
	defer m.statesLock.Unlock()

	rs, ok := m.rooms[roomID]
	if !ok {
		kind := p.Kind
		if !kind.Valid() {
			kind = signaling.RoomKindPrivate
		}
		name := p.Name
		if len(name) == 0 {
			name = roomID
		}
		rs = &roomState{
			id:           roomID,
			kind:         kind,
			name:         name,
			createdAt:    time.Now(),
			participants: map[signaling.UserID]*participant{},
		}
		m.rooms[roomID] = rs
		callRoomsCounter.Inc()
		m.eventbus.Publish(hub.Message{
			Name: event.RoomCreated,
			Fields: hub.Fields{
				"room_id": roomID,
				"kind":    kind,
			},
		})
	}

	if cur, ok := rs.participants[p.UserID]; ok {
		if cur.sessionKey != p.SessionKey {
			return nil, false, ErrOccupied
		}
	} else {
		rs.participants[p.UserID] = &participant{
			Participant: Participant{
				UserID:   p.UserID,
				UserName: p.UserName,
				JoinedAt: time.Now(),
			},
			sessionKey: p.SessionKey,
		}
		joined = true
		callParticipantsCounter.Inc()
		m.eventbus.Publish(hub.Message{
			Name: event.RoomUserJoined,
			Fields: hub.Fields{
				"room_id": roomID,
				"user_id": p.UserID,
			},
		})
	}

	for _, o := range rs.snapshot().Participants {
		if o.UserID == p.UserID {
			continue
		}
		others = append(others, signaling.Participant{UserID: o.UserID, UserName: o.UserName})
	}
	return others, joined, nil
}

// Leave 指定したルームから退出します
//
// 参加していなかった場合はfalseを返します。別のセッションで参加している場合はErrOccupiedを返します
func (m *Manager) Leave(roomID string, userID signaling.UserID, sessionKey string) (bool, error) {
	m.statesLock.Lock()
	defer m.statesLock.Unlock()

	rs, ok := m.rooms[roomID]
	if !ok {
		return false, nil
	}
	p, ok := rs.participants[userID]
	if !ok {
		return false, nil
	}
	if p.sessionKey != sessionKey {
		return false, ErrOccupied
	}

	delete(rs.participants, userID)
	callParticipantsCounter.Dec()
	m.eventbus.Publish(hub.Message{
		Name: event.RoomUserLeft,
		Fields: hub.Fields{
			"room_id": roomID,
			"user_id": userID,
		},
	})

	if len(rs.participants) == 0 {
		delete(m.rooms, roomID)
		callRoomsCounter.Dec()
		m.eventbus.Publish(hub.Message{
			Name: event.RoomClosed,
			Fields: hub.Fields{
				"room_id": roomID,
			},
		})
	}
	return true, nil
}

// IsJoined 指定したセッションがルームに参加しているかどうか
func (m *Manager) IsJoined(roomID string, userID signaling.UserID, sessionKey string) bool {
	m.statesLock.RLock()
	defer m.statesLock.RUnlock()

	rs, ok := m.rooms[roomID]
	if !ok {
		return false
	}
	p, ok := rs.participants[userID]
	return ok && p.sessionKey == sessionKey
}

// GetRoom 指定したルームの状態を取得します
func (m *Manager) GetRoom(roomID string) (RoomState, bool) {
	m.statesLock.RLock()
	defer m.statesLock.RUnlock()

	rs, ok := m.rooms[roomID]
	if !ok {
		return RoomState{}, false
	}
	return rs.snapshot(), true
}

// GetRooms 全ルームの状態を作成日時順で取得します
func (m *Manager) GetRooms() []RoomState {
	m.statesLock.RLock()
	defer m.statesLock.RUnlock()

	rooms := lo.MapToSlice(m.rooms, func(_ string, rs *roomState) RoomState {
		return rs.snapshot()
	})
	slices.SortFunc(rooms, func(a, b RoomState) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.RoomID, b.RoomID)
	})
	return rooms
}

// IterateRooms 全ルームの状態をイテレートします
func (m *Manager) IterateRooms(f func(state RoomState)) {
	m.statesLock.RLock()
	defer m.statesLock.RUnlock()
	for _, rs := range m.rooms {
		f(rs.snapshot())
	}
}
