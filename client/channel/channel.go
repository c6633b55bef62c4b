//go:generate mockgen -source=$GOFILE -destination=mock_$GOPACKAGE/mock_$GOFILE

package channel

import (
	"context"

	"github.com/traPtitech/callsignal/signaling"
)

// Sender メッセージ送信口
type Sender interface {
	// Send メッセージを送信します。
	// 接続完了前に送られたメッセージはバッファされ、接続完了時に順に送信されます
	Send(m signaling.Message) error
}

// Conn 接続済みのチャンネル
type Conn interface {
	Sender
	// Close チャンネルを閉じます。以降の再接続は行われません
	Close() error
}

// RoomDialer 通話ルームチャンネルの接続口
type RoomDialer interface {
	// DialRoom 通話ルームチャンネルを開き、room_connectedを受信するまで待ちます
	DialRoom(ctx context.Context, roomID string, opts RoomOptions, h Handlers) (Conn, error)
}

// TokenProvider アクセストークンの取得元
type TokenProvider interface {
	// GetAccessToken アクセストークンを返します。トークンが無い場合はfalseを返します
	GetAccessToken() (string, bool)
}

// StaticToken 固定のアクセストークン
type StaticToken string

// GetAccessToken implements TokenProvider interface.
func (t StaticToken) GetAccessToken() (string, bool) {
	return string(t), len(t) > 0
}

// Handlers チャンネルのイベントハンドラ
//
// 全てのハンドラは接続ごとに単一のgoroutineから受信順に呼び出されます
type Handlers struct {
	// OnReady 接続(再接続を含む)が完了した時に呼ばれます
	OnReady func()
	// OnMessage メッセージを受信した時に呼ばれます
	OnMessage func(m signaling.Message)
	// OnClose 予期せず切断された時に呼ばれます。Closeによる切断では呼ばれません
	OnClose func(err error)
}

// RoomOptions 通話ルーム作成時のオプション
type RoomOptions struct {
	Kind signaling.RoomKind
	Name string
}
