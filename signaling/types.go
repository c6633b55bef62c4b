package signaling

import (
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigFastest

// UserID ユーザーID
type UserID int64

// String implements fmt.Stringer interface.
func (id UserID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// CallType 通話種別
type CallType string

const (
	// CallTypeVideo ビデオ通話
	CallTypeVideo CallType = "video"
	// CallTypeAudio 音声通話
	CallTypeAudio CallType = "audio"
)

// Valid 有効な通話種別かどうか
func (t CallType) Valid() bool {
	return t == CallTypeVideo || t == CallTypeAudio
}

// RoomKind ルーム種別
type RoomKind string

const (
	// RoomKindPrivate 1対1通話
	RoomKindPrivate RoomKind = "private"
	// RoomKindGroup グループ通話
	RoomKindGroup RoomKind = "group"
)

// Valid 有効なルーム種別かどうか
func (k RoomKind) Valid() bool {
	return k == RoomKindPrivate || k == RoomKindGroup
}

// Participant 通話参加者
type Participant struct {
	UserID   UserID `json:"user_id"`
	UserName string `json:"user_name"`
}

// SessionDescription SDP
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// ICECandidateInit ICE候補
type ICECandidateInit struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}
