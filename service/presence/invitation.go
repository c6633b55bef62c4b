package presence

import (
	"fmt"
	"sync"
	"time"

	"github.com/traPtitech/callsignal/signaling"
)

// InvalidInvitationError 自分自身への招待や、存在しない招待への応答
type InvalidInvitationError struct {
	RoomID string
	From   signaling.UserID
	To     signaling.UserID
	Reason string
}

// Error implements error interface.
func (e *InvalidInvitationError) Error() string {
	return fmt.Sprintf("invalid invitation (room: %s, from: %d, to: %d): %s", e.RoomID, e.From, e.To, e.Reason)
}

// Invitation 応答待ちの通話招待
type Invitation struct {
	RoomID   string             `json:"roomId"`
	From     signaling.UserID   `json:"from"`
	To       signaling.UserID   `json:"to"`
	CallType signaling.CallType `json:"callType"`
	SentAt   time.Time          `json:"sentAt"`
}

type invitationKey struct {
	roomID string
	from   signaling.UserID
	to     signaling.UserID
}

func (i *Invitation) key() invitationKey {
	return invitationKey{roomID: i.RoomID, from: i.From, to: i.To}
}

// invitations 応答待ちの通話招待の集合
type invitations struct {
	m  map[invitationKey]*Invitation
	mu sync.Mutex
}

func newInvitations() *invitations {
	return &invitations{m: map[invitationKey]*Invitation{}}
}

func (is *invitations) put(inv *Invitation) {
	is.mu.Lock()
	defer is.mu.Unlock()
	is.m[inv.key()] = inv
}

// take 指定した招待を取り除いて返します
func (is *invitations) take(roomID string, from, to signaling.UserID) (*Invitation, bool) {
	is.mu.Lock()
	defer is.mu.Unlock()
	k := invitationKey{roomID: roomID, from: from, to: to}
	inv, ok := is.m[k]
	if ok {
		delete(is.m, k)
	}
	return inv, ok
}

// takeIf 条件に一致する招待を全て取り除いて返します
func (is *invitations) takeIf(f func(inv *Invitation) bool) []*Invitation {
	is.mu.Lock()
	defer is.mu.Unlock()
	var res []*Invitation
	for k, inv := range is.m {
		if f(inv) {
			res = append(res, inv)
			delete(is.m, k)
		}
	}
	return res
}

func (is *invitations) list() []Invitation {
	is.mu.Lock()
	defer is.mu.Unlock()
	res := make([]Invitation, 0, len(is.m))
	for _, inv := range is.m {
		res = append(res, *inv)
	}
	return res
}
