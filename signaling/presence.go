package signaling

// PresenceConnected プレゼンスチャンネルの接続完了通知
type PresenceConnected struct {
	UserID UserID
}

// CallInvitation 通話招待
type CallInvitation struct {
	RoomID       string
	FromUserID   UserID
	FromUserName string
	CallType     CallType
	ToUserID     UserID
}

// CallResponse 通話招待への応答
type CallResponse struct {
	RoomID     string
	Accepted   bool
	FromUserID UserID
	UserName   string
	ToUserID   UserID
}

// CallCancelled 発信者による通話招待の取り消し
type CallCancelled struct {
	RoomID     string
	FromUserID UserID
	ToUserID   UserID
}

// Error エラー通知
type Error struct {
	Message string
}

func (*PresenceConnected) Type() MessageType { return TypePresenceConnected }
func (*CallInvitation) Type() MessageType    { return TypeCallInvitation }
func (*CallResponse) Type() MessageType      { return TypeCallResponse }
func (*CallCancelled) Type() MessageType     { return TypeCallCancelled }
func (*Error) Type() MessageType             { return TypeError }

func (*PresenceConnected) presence() {}
func (*CallInvitation) presence()    {}
func (*CallResponse) presence()      {}
func (*CallCancelled) presence()     {}
func (*Error) presence()             {}
func (*Error) room()                 {}

func (m *PresenceConnected) toWire() *wireMessage {
	return &wireMessage{UserID: m.UserID}
}

func (m *CallInvitation) toWire() *wireMessage {
	return &wireMessage{
		RoomID:       m.RoomID,
		FromUserID:   m.FromUserID,
		FromUserName: m.FromUserName,
		UserName:     m.FromUserName,
		CallType:     m.CallType,
		ToUserID:     m.ToUserID,
	}
}

func (m *CallResponse) toWire() *wireMessage {
	accepted := m.Accepted
	return &wireMessage{
		RoomID:     m.RoomID,
		Accepted:   &accepted,
		FromUserID: m.FromUserID,
		UserName:   m.UserName,
		ToUserID:   m.ToUserID,
	}
}

func (m *CallCancelled) toWire() *wireMessage {
	return &wireMessage{
		RoomID:     m.RoomID,
		FromUserID: m.FromUserID,
		ToUserID:   m.ToUserID,
	}
}

func (m *Error) toWire() *wireMessage {
	return &wireMessage{Message: m.Message}
}

// Error implements error interface.
func (m *Error) Error() string {
	return m.Message
}
