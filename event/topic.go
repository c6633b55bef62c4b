package event

const (
	// UserOnline ユーザーがオンラインになった
	// 	Fields:
	// 		user_id: signaling.UserID
	// 		datetime: time.Time
	UserOnline = "user.online"
	// UserOffline ユーザーがオフラインになった
	// 	Fields:
	// 		user_id: signaling.UserID
	// 		datetime: time.Time
	UserOffline = "user.offline"

	// PresenceConnected プレゼンスチャンネルに接続した
	// 	Fields:
	// 		user_id: signaling.UserID
	// 		req: *http.Request
	PresenceConnected = "presence.connected"
	// PresenceDisconnected プレゼンスチャンネルから切断した
	// 	Fields:
	// 		user_id: signaling.UserID
	// 		req: *http.Request
	PresenceDisconnected = "presence.disconnected"

	// CallInvitationSent 通話招待が送信された
	// 	Fields:
	// 		room_id: string
	// 		from_user_id: signaling.UserID
	// 		to_user_id: signaling.UserID
	// 		call_type: signaling.CallType
	CallInvitationSent = "call_invitation.sent"
	// CallInvitationResponded 通話招待に応答があった
	// 	Fields:
	// 		room_id: string
	// 		from_user_id: signaling.UserID
	// 		to_user_id: signaling.UserID
	// 		accepted: bool
	CallInvitationResponded = "call_invitation.responded"
	// CallInvitationCancelled 通話招待が取り消された
	// 	Fields:
	// 		room_id: string
	// 		from_user_id: signaling.UserID
	// 		to_user_id: signaling.UserID
	// 		reason: string
	CallInvitationCancelled = "call_invitation.cancelled"

	// RoomWSConnected 通話ルームチャンネルに接続した
	// 	Fields:
	// 		room_id: string
	// 		user_id: signaling.UserID
	// 		req: *http.Request
	RoomWSConnected = "room.ws_connected"
	// RoomWSDisconnected 通話ルームチャンネルから切断した
	// 	Fields:
	// 		room_id: string
	// 		user_id: signaling.UserID
	// 		req: *http.Request
	RoomWSDisconnected = "room.ws_disconnected"
	// RoomCreated 通話ルームが作成された
	// 	Fields:
	// 		room_id: string
	// 		kind: signaling.RoomKind
	RoomCreated = "room.created"
	// RoomClosed 通話ルームから全員が退出した
	// 	Fields:
	// 		room_id: string
	RoomClosed = "room.closed"
	// RoomUserJoined ユーザーが通話ルームに参加した
	// 	Fields:
	// 		room_id: string
	// 		user_id: signaling.UserID
	RoomUserJoined = "room.user_joined"
	// RoomUserLeft ユーザーが通話ルームから退出した
	// 	Fields:
	// 		room_id: string
	// 		user_id: signaling.UserID
	RoomUserLeft = "room.user_left"
)
