package router

import (
	"github.com/traPtitech/callsignal/signaling"
)

// Config APIサーバー設定
type Config struct {
	// Development 開発モードかどうか
	Development bool
	// Version サーバーバージョン
	Version string
	// Revision サーバーリビジョン
	Revision string
	// Origin サーバーオリジン。開発モードでは全オリジンからのアクセスを許可します
	Origin string
	// AccessLogging アクセスログを記録するかどうか
	AccessLogging bool
	// ConnectRate ユーザーごとのWebSocket接続試行の許容レート(回/秒)。0以下で無制限
	ConnectRate float64
	// ConnectBurst WebSocket接続試行のバースト数
	ConnectBurst int
	// ICEServers クライアントに配布するICEサーバー
	ICEServers []signaling.ICEServer
}
