package ctxkey

// CtxKey context.Context用のキータイプ
type CtxKey int

const (
	// UserID ユーザーIDキー
	UserID CtxKey = iota
	// UserName ユーザー表示名キー
	UserName
	// RoomID 通話ルームIDキー
	RoomID
)
