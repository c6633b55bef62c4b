package service

import (
	"github.com/traPtitech/callsignal/service/callroom"
	"github.com/traPtitech/callsignal/service/presence"
)

type Services struct {
	Presence      *presence.Relay
	OnlineCounter *presence.OnlineCounter
	CallRoom      *callroom.Relay
	RoomManager   *callroom.Manager
}
