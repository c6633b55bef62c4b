package signaling

// RoomConnected 通話ルームチャンネルの接続完了通知
type RoomConnected struct {
	RoomID string
	UserID UserID
}

// JoinCall 通話への参加要求
type JoinCall struct {
	FromUserID UserID
	UserName   string
}

// JoinAck 参加要求の受理通知。既存の参加者一覧を含む
type JoinAck struct {
	RoomID       string
	Participants []Participant
}

// LeaveCall 通話からの退出要求
type LeaveCall struct {
	FromUserID UserID
}

// UserJoined 他ユーザーの参加通知
type UserJoined struct {
	FromUserID UserID
	UserName   string
}

// UserLeft 他ユーザーの退出通知
type UserLeft struct {
	FromUserID UserID
}

// Offer SDPオファー
type Offer struct {
	FromUserID UserID
	ToUserID   UserID
	SDP        SessionDescription
}

// Answer SDPアンサー
type Answer struct {
	FromUserID UserID
	ToUserID   UserID
	SDP        SessionDescription
}

// ICECandidate ICE候補
type ICECandidate struct {
	FromUserID UserID
	ToUserID   UserID
	Candidate  ICECandidateInit
}

func (*RoomConnected) Type() MessageType { return TypeRoomConnected }
func (*JoinCall) Type() MessageType      { return TypeJoinCall }
func (*JoinAck) Type() MessageType       { return TypeJoinAck }
func (*LeaveCall) Type() MessageType     { return TypeLeaveCall }
func (*UserJoined) Type() MessageType    { return TypeUserJoined }
func (*UserLeft) Type() MessageType      { return TypeUserLeft }
func (*Offer) Type() MessageType         { return TypeOffer }
func (*Answer) Type() MessageType        { return TypeAnswer }
func (*ICECandidate) Type() MessageType  { return TypeICECandidate }

func (*RoomConnected) room() {}
func (*JoinCall) room()      {}
func (*JoinAck) room()       {}
func (*LeaveCall) room()     {}
func (*UserJoined) room()    {}
func (*UserLeft) room()      {}
func (*Offer) room()         {}
func (*Answer) room()        {}
func (*ICECandidate) room()  {}

func (m *RoomConnected) toWire() *wireMessage {
	return &wireMessage{RoomID: m.RoomID, UserID: m.UserID}
}

func (m *JoinCall) toWire() *wireMessage {
	return &wireMessage{FromUserID: m.FromUserID, UserName: m.UserName}
}

func (m *JoinAck) toWire() *wireMessage {
	return &wireMessage{RoomID: m.RoomID, Participants: m.Participants}
}

func (m *LeaveCall) toWire() *wireMessage {
	return &wireMessage{FromUserID: m.FromUserID}
}

func (m *UserJoined) toWire() *wireMessage {
	return &wireMessage{FromUserID: m.FromUserID, UserName: m.UserName}
}

func (m *UserLeft) toWire() *wireMessage {
	return &wireMessage{FromUserID: m.FromUserID}
}

func (m *Offer) toWire() *wireMessage {
	sdp := m.SDP
	return &wireMessage{FromUserID: m.FromUserID, ToUserID: m.ToUserID, Offer: &sdp}
}

func (m *Answer) toWire() *wireMessage {
	sdp := m.SDP
	return &wireMessage{FromUserID: m.FromUserID, ToUserID: m.ToUserID, Answer: &sdp}
}

func (m *ICECandidate) toWire() *wireMessage {
	c := m.Candidate
	return &wireMessage{FromUserID: m.FromUserID, ToUserID: m.ToUserID, Candidate: &c}
}

// Sender 送信者IDを取得します。送信者を持たないメッセージは0を返します
func Sender(m RoomMessage) UserID {
	switch v := m.(type) {
	case *JoinCall:
		return v.FromUserID
	case *LeaveCall:
		return v.FromUserID
	case *UserJoined:
		return v.FromUserID
	case *UserLeft:
		return v.FromUserID
	case *Offer:
		return v.FromUserID
	case *Answer:
		return v.FromUserID
	case *ICECandidate:
		return v.FromUserID
	default:
		return 0
	}
}
