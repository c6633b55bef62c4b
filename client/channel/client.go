package channel

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/traPtitech/callsignal/signaling"
)

const (
	// PresencePath プレゼンスチャンネルのパス
	PresencePath = "/api/ws/videocall/notifications/"
	// RoomPathPrefix 通話ルームチャンネルのパスの接頭辞
	RoomPathPrefix = "/api/ws/videocall/"

	defaultOpenTimeout       = 5 * time.Second
	defaultPingPeriod        = 30 * time.Second
	defaultReconnectDelay    = 3 * time.Second
	defaultMaxReconnectDelay = 30 * time.Second
	defaultMaxPending        = 256
)

// Config チャンネル設定
type Config struct {
	// BaseURL 中継サーバーのURL (ws://host:port)
	BaseURL string
	// Token アクセストークンの取得元
	Token TokenProvider
	// Dialer WebSocketダイアラ。nilの場合はwebsocket.DefaultDialer
	Dialer *websocket.Dialer
	// OpenTimeout 接続完了通知までの待ち時間 (default: 5s)
	OpenTimeout time.Duration
	// PingPeriod キープアライブの間隔 (default: 30s)
	PingPeriod time.Duration
	// ReconnectDelay プレゼンスチャンネルの最初の再接続までの時間 (default: 3s)
	ReconnectDelay time.Duration
	// MaxReconnectDelay プレゼンスチャンネルの再接続間隔の上限 (default: 30s)
	MaxReconnectDelay time.Duration
	// MaxPending 接続完了前に溜めておけるメッセージ数 (default: 256)
	MaxPending int
}

// Client 中継サーバーへの接続を生成します
type Client struct {
	config Config
	logger *zap.Logger
}

// NewClient Clientを生成します
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.Dialer == nil {
		config.Dialer = websocket.DefaultDialer
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = defaultOpenTimeout
	}
	if config.PingPeriod <= 0 {
		config.PingPeriod = defaultPingPeriod
	}
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = defaultReconnectDelay
	}
	if config.MaxReconnectDelay < config.ReconnectDelay {
		config.MaxReconnectDelay = max(defaultMaxReconnectDelay, config.ReconnectDelay)
	}
	if config.MaxPending <= 0 {
		config.MaxPending = defaultMaxPending
	}
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	return &Client{config: config, logger: logger.Named("channel")}
}

// Presence 未接続のプレゼンスチャンネルを生成します
//
// 予期せず切断された場合は指数バックオフで再接続し続けます
func (c *Client) Presence(h Handlers) *Channel {
	return newChannel(&c.config, c.config.BaseURL+PresencePath, signaling.TypePresenceConnected, decodePresence, true, h, c.logger.Named("presence"))
}

// Room 未接続の通話ルームチャンネルを生成します
//
// 切断されても再接続は行いません
func (c *Client) Room(roomID string, opts RoomOptions, h Handlers) *Channel {
	u := c.config.BaseURL + RoomPathPrefix + url.PathEscape(roomID) + "/"
	q := url.Values{}
	if len(opts.Kind) > 0 {
		q.Set("kind", string(opts.Kind))
	}
	if len(opts.Name) > 0 {
		q.Set("name", opts.Name)
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return newChannel(&c.config, u, signaling.TypeRoomConnected, decodeRoom, false, h, c.logger.Named("room").With(zap.String("roomID", roomID)))
}

// DialRoom implements RoomDialer interface.
func (c *Client) DialRoom(ctx context.Context, roomID string, opts RoomOptions, h Handlers) (Conn, error) {
	ch := c.Room(roomID, opts, h)
	if err := ch.Connect(ctx); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return ch, nil
}

func decodePresence(data []byte) (signaling.Message, error) {
	return signaling.DecodePresence(data)
}

func decodeRoom(data []byte) (signaling.Message, error) {
	return signaling.DecodeRoom(data)
}
