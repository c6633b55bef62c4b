package call

import (
	"maps"
	"slices"

	"github.com/traPtitech/callsignal/client/media"
	"github.com/traPtitech/callsignal/client/negotiation"
	"github.com/traPtitech/callsignal/signaling"
)

// Status 通話状態
type Status string

const (
	StatusIdle      Status = "idle"
	StatusCalling   Status = "calling"
	StatusRinging   Status = "ringing"
	StatusConnected Status = "connected"
	StatusFailed    Status = "failed"
)

// Invitation 通話招待
type Invitation struct {
	RoomID       string
	FromUserID   signaling.UserID
	FromUserName string
	ToUserID     signaling.UserID
	CallType     signaling.CallType
}

// State 通話セッションの状態
type State struct {
	Status Status
	// RoomID 接続中の通話ルームID。通話ルームを開いていない場合は空文字列
	RoomID string
	// LocalStream ローカルメディアストリーム
	LocalStream *media.Stream
	// RemoteStreams 相手ユーザーごとのリモートストリームID
	RemoteStreams map[signaling.UserID]string
	// Peers 相手ユーザーごとのピア接続状態
	Peers map[signaling.UserID]negotiation.PeerState
	// Participants 自分以外の参加者
	Participants []signaling.Participant
	AudioMuted   bool
	VideoMuted   bool
	// Incoming 応答待ちの着信
	Incoming *Invitation
	// Outgoing 応答待ちの発信
	Outgoing *Invitation
	// Err 直近の失敗の原因
	Err error
}

func newState() State {
	return State{
		Status:        StatusIdle,
		RemoteStreams: map[signaling.UserID]string{},
		Peers:         map[signaling.UserID]negotiation.PeerState{},
	}
}

func (s State) clone() State {
	s.RemoteStreams = maps.Clone(s.RemoteStreams)
	s.Peers = maps.Clone(s.Peers)
	s.Participants = slices.Clone(s.Participants)
	if s.Incoming != nil {
		inv := *s.Incoming
		s.Incoming = &inv
	}
	if s.Outgoing != nil {
		inv := *s.Outgoing
		s.Outgoing = &inv
	}
	return s
}
