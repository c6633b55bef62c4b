package signaling

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownMessageType 不明なメッセージ種別です
	ErrUnknownMessageType = errors.New("unknown message type")
	// ErrInvalidMessage メッセージの必須フィールドが欠けています
	ErrInvalidMessage = errors.New("invalid message")
)

// MessageType メッセージ種別
type MessageType string

// プレゼンスチャンネルのメッセージ種別
const (
	TypePresenceConnected MessageType = "presence_connected"
	TypeCallInvitation    MessageType = "call_invitation"
	TypeCallResponse      MessageType = "call_response"
	TypeCallCancelled     MessageType = "call_cancelled"
)

// 通話ルームチャンネルのメッセージ種別
const (
	TypeRoomConnected MessageType = "room_connected"
	TypeJoinCall      MessageType = "join_call"
	TypeJoinAck       MessageType = "join_ack"
	TypeLeaveCall     MessageType = "leave_call"
	TypeUserJoined    MessageType = "user_joined"
	TypeUserLeft      MessageType = "user_left"
	TypeOffer         MessageType = "offer"
	TypeAnswer        MessageType = "answer"
	TypeICECandidate  MessageType = "ice_candidate"
)

// TypeError 両チャンネル共通のエラー通知
const TypeError MessageType = "error"

// Message チャンネル上を流れるメッセージ
type Message interface {
	Type() MessageType
	toWire() *wireMessage
}

// PresenceMessage プレゼンスチャンネルのメッセージ
type PresenceMessage interface {
	Message
	presence()
}

// RoomMessage 通話ルームチャンネルのメッセージ
type RoomMessage interface {
	Message
	room()
}

// wireMessage JSON上の表現
type wireMessage struct {
	Type         MessageType         `json:"type"`
	RoomID       string              `json:"room_id,omitempty"`
	UserID       UserID              `json:"user_id,omitempty"`
	FromUserID   UserID              `json:"from_user_id,omitempty"`
	ToUserID     UserID              `json:"to_user_id,omitempty"`
	UserName     string              `json:"user_name,omitempty"`
	FromUserName string              `json:"from_user_name,omitempty"`
	CallType     CallType            `json:"call_type,omitempty"`
	Accepted     *bool               `json:"accepted,omitempty"`
	Offer        *SessionDescription `json:"offer,omitempty"`
	Answer       *SessionDescription `json:"answer,omitempty"`
	Candidate    *ICECandidateInit   `json:"candidate,omitempty"`
	Participants []Participant       `json:"participants,omitempty"`
	Message      string              `json:"message,omitempty"`
}

// Encode メッセージをJSONにエンコードします
func Encode(m Message) ([]byte, error) {
	w := m.toWire()
	w.Type = m.Type()
	return json.Marshal(w)
}

// MustEncode メッセージをJSONにエンコードします。失敗した場合はpanicします
func MustEncode(m Message) []byte {
	b, err := Encode(m)
	if err != nil {
		panic(err)
	}
	return b
}

func decodeWire(data []byte) (*wireMessage, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if len(w.Type) == 0 {
		return nil, fmt.Errorf("%w: missing type", ErrInvalidMessage)
	}
	return &w, nil
}

// DecodePresence プレゼンスチャンネルのメッセージをデコードします
func DecodePresence(data []byte) (PresenceMessage, error) {
	w, err := decodeWire(data)
	if err != nil {
		return nil, err
	}

	switch w.Type {
	case TypePresenceConnected:
		return &PresenceConnected{UserID: w.UserID}, nil
	case TypeCallInvitation:
		if len(w.RoomID) == 0 {
			return nil, fmt.Errorf("%w: call_invitation without room_id", ErrInvalidMessage)
		}
		name := w.FromUserName
		if len(name) == 0 {
			name = w.UserName
		}
		callType := w.CallType
		if len(callType) == 0 {
			callType = CallTypeVideo
		}
		return &CallInvitation{
			RoomID:       w.RoomID,
			FromUserID:   w.FromUserID,
			FromUserName: name,
			CallType:     callType,
			ToUserID:     w.ToUserID,
		}, nil
	case TypeCallResponse:
		if len(w.RoomID) == 0 || w.Accepted == nil {
			return nil, fmt.Errorf("%w: call_response without room_id or accepted", ErrInvalidMessage)
		}
		return &CallResponse{
			RoomID:     w.RoomID,
			Accepted:   *w.Accepted,
			FromUserID: w.FromUserID,
			UserName:   w.UserName,
			ToUserID:   w.ToUserID,
		}, nil
	case TypeCallCancelled:
		if len(w.RoomID) == 0 {
			return nil, fmt.Errorf("%w: call_cancelled without room_id", ErrInvalidMessage)
		}
		return &CallCancelled{
			RoomID:     w.RoomID,
			FromUserID: w.FromUserID,
			ToUserID:   w.ToUserID,
		}, nil
	case TypeError:
		return &Error{Message: w.Message}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessageType, w.Type)
	}
}

// DecodeRoom 通話ルームチャンネルのメッセージをデコードします
func DecodeRoom(data []byte) (RoomMessage, error) {
	w, err := decodeWire(data)
	if err != nil {
		return nil, err
	}

	switch w.Type {
	case TypeRoomConnected:
		return &RoomConnected{RoomID: w.RoomID, UserID: w.UserID}, nil
	case TypeJoinCall:
		return &JoinCall{FromUserID: w.FromUserID, UserName: w.UserName}, nil
	case TypeJoinAck:
		return &JoinAck{RoomID: w.RoomID, Participants: w.Participants}, nil
	case TypeLeaveCall:
		return &LeaveCall{FromUserID: w.FromUserID}, nil
	case TypeUserJoined:
		return &UserJoined{FromUserID: w.FromUserID, UserName: w.UserName}, nil
	case TypeUserLeft:
		return &UserLeft{FromUserID: w.FromUserID}, nil
	case TypeOffer:
		if w.Offer == nil {
			return nil, fmt.Errorf("%w: offer without sdp", ErrInvalidMessage)
		}
		return &Offer{FromUserID: w.FromUserID, ToUserID: w.ToUserID, SDP: *w.Offer}, nil
	case TypeAnswer:
		if w.Answer == nil {
			return nil, fmt.Errorf("%w: answer without sdp", ErrInvalidMessage)
		}
		return &Answer{FromUserID: w.FromUserID, ToUserID: w.ToUserID, SDP: *w.Answer}, nil
	case TypeICECandidate:
		if w.Candidate == nil {
			return nil, fmt.Errorf("%w: ice_candidate without candidate", ErrInvalidMessage)
		}
		return &ICECandidate{FromUserID: w.FromUserID, ToUserID: w.ToUserID, Candidate: *w.Candidate}, nil
	case TypeError:
		return &Error{Message: w.Message}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessageType, w.Type)
	}
}
