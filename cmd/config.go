package cmd

import (
	"fmt"
	"os"
	"time"

	vd "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/leandro-lugaresi/hub"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/traPtitech/callsignal/router"
	"github.com/traPtitech/callsignal/service"
	"github.com/traPtitech/callsignal/service/callroom"
	"github.com/traPtitech/callsignal/service/presence"
	"github.com/traPtitech/callsignal/signaling"
	"github.com/traPtitech/callsignal/utils/jwt"
)

// Config 設定
type Config struct {
	// DevMode 開発モードかどうか (default: false)
	DevMode bool `mapstructure:"dev" yaml:"dev"`
	// Pprof pprofを有効にするかどうか (default: false)
	Pprof bool `mapstructure:"pprof" yaml:"pprof"`
	// LogLevel ログレベル。設定ファイルの変更が即座に反映されます (default: info)
	LogLevel string `mapstructure:"logLevel" yaml:"logLevel"`

	// Origin サーバーオリジン (default: http://localhost:3000)
	Origin string `mapstructure:"origin" yaml:"origin"`
	// Port サーバーポート番号 (default: 3000)
	Port int `mapstructure:"port" yaml:"port"`
	// ShutdownTimeout シャットダウンの待ち時間(秒) (default: 10)
	ShutdownTimeout int `mapstructure:"shutdownTimeout" yaml:"shutdownTimeout"`

	// AccessLog HTTPアクセスログ設定
	AccessLog struct {
		// Enabled 有効かどうか (default: true)
		Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	} `mapstructure:"accessLog" yaml:"accessLog"`

	// JWT JsonWebToken設定
	JWT struct {
		// Keys 鍵設定
		Keys struct {
			// Private ECDSA秘密鍵ファイル。空の場合は起動ごとに一時鍵を生成します
			Private string `mapstructure:"private" yaml:"private"`
		} `mapstructure:"keys" yaml:"keys"`
		// TokenExp tokenコマンドで発行するトークンの有効期間(秒) (default: 86400)
		TokenExp int `mapstructure:"tokenExp" yaml:"tokenExp"`
	} `mapstructure:"jwt" yaml:"jwt"`

	// WS WebSocket設定
	WS struct {
		// MaxMessageSize 受信メッセージの最大サイズ(byte) (default: 65536)
		MaxMessageSize int64 `mapstructure:"maxMessageSize" yaml:"maxMessageSize"`
		// ConnectRate ユーザーごとの接続試行の許容レート(回/秒)。0で無制限 (default: 1)
		ConnectRate float64 `mapstructure:"connectRate" yaml:"connectRate"`
		// ConnectBurst 接続試行のバースト数 (default: 10)
		ConnectBurst int `mapstructure:"connectBurst" yaml:"connectBurst"`
	} `mapstructure:"ws" yaml:"ws"`

	// ICE ICEサーバー設定
	ICE struct {
		// Servers クライアントに配布するICEサーバー。未設定の場合は既定のSTUNサーバー
		Servers []signaling.ICEServer `mapstructure:"servers" yaml:"servers"`
	} `mapstructure:"ice" yaml:"ice"`

	// Presence プレゼンスチャンネル設定
	Presence struct {
		// InvitationTTL 応答待ちの招待が失効するまでの時間(秒) (default: 60)
		InvitationTTL int `mapstructure:"invitationTTL" yaml:"invitationTTL"`
	} `mapstructure:"presence" yaml:"presence"`

	// Client dialコマンドの接続設定
	Client struct {
		// Server 接続先サーバー (default: http://localhost:3000)
		Server string `mapstructure:"server" yaml:"server"`
		// Token アクセストークン
		Token string `mapstructure:"token" yaml:"token"`
		// OpenTimeout チャンネルを開く際の待ち時間(秒) (default: 5)
		OpenTimeout int `mapstructure:"openTimeout" yaml:"openTimeout"`
		// Loopback ループバックアドレスをICE候補に含めるかどうか (default: false)
		Loopback bool `mapstructure:"loopback" yaml:"loopback"`
	} `mapstructure:"client" yaml:"client"`
}

// Configのデフォルト値設定
func init() {
	viper.SetDefault("dev", false)
	viper.SetDefault("pprof", false)
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("origin", "http://localhost:3000")
	viper.SetDefault("port", 3000)
	viper.SetDefault("shutdownTimeout", 10)
	viper.SetDefault("accessLog.enabled", true)
	viper.SetDefault("jwt.keys.private", "")
	viper.SetDefault("jwt.tokenExp", 60*60*24)
	viper.SetDefault("ws.maxMessageSize", 64*1024)
	viper.SetDefault("ws.connectRate", 1)
	viper.SetDefault("ws.connectBurst", 10)
	viper.SetDefault("ice.servers", []signaling.ICEServer{})
	viper.SetDefault("presence.invitationTTL", 60)
	viper.SetDefault("client.server", "http://localhost:3000")
	viper.SetDefault("client.token", "")
	viper.SetDefault("client.openTimeout", 5)
	viper.SetDefault("client.loopback", false)
}

// Validate implements validation.Validatable interface.
func (c Config) Validate() error {
	if err := vd.ValidateStruct(&c,
		vd.Field(&c.LogLevel, vd.In("debug", "info", "warn", "error", "dpanic", "panic", "fatal")),
		vd.Field(&c.Origin, vd.Required, is.URL),
		vd.Field(&c.Port, vd.Required, vd.Min(1), vd.Max(65535)),
		vd.Field(&c.ShutdownTimeout, vd.Min(0)),
	); err != nil {
		return err
	}
	if err := vd.Validate(c.ICE.Servers); err != nil {
		return fmt.Errorf("ice.servers: %w", err)
	}
	return nil
}

func (c Config) iceServers() []signaling.ICEServer {
	if len(c.ICE.Servers) > 0 {
		return c.ICE.Servers
	}
	return signaling.DefaultICEServers()
}

func (c Config) getSigner(logger *zap.Logger) (*jwt.Signer, error) {
	if priv := c.JWT.Keys.Private; priv != "" {
		privRaw, err := os.ReadFile(priv)
		if err != nil {
			return nil, fmt.Errorf("failed to read jwt private key: %w", err)
		}
		return jwt.NewSigner(privRaw)
	}
	// 一時鍵を発行
	logger.Warn("a temporary key for JWT was generated. Tokens issued by the token command cannot be verified by this server.")
	return jwt.NewTemporarySigner()
}

func provideSigner(c *Config, logger *zap.Logger) (*jwt.Signer, error) {
	return c.getSigner(logger)
}

func providePresenceConfig(c *Config) presence.Config {
	return presence.Config{
		InvitationTTL:  time.Duration(c.Presence.InvitationTTL) * time.Second,
		MaxMessageSize: c.WS.MaxMessageSize,
	}
}

func provideCallRoomRelay(h *hub.Hub, m *callroom.Manager, logger *zap.Logger, c *Config) *callroom.Relay {
	return callroom.NewRelay(h, m, logger, c.WS.MaxMessageSize)
}

func provideRouterServices(ss *service.Services, signer *jwt.Signer) *router.Services {
	return &router.Services{
		Presence:      ss.Presence,
		OnlineCounter: ss.OnlineCounter,
		CallRoom:      ss.CallRoom,
		RoomManager:   ss.RoomManager,
		Signer:        signer,
	}
}

func provideRouterConfig(c *Config) *router.Config {
	return &router.Config{
		Development:   c.DevMode,
		Version:       Version,
		Revision:      Revision,
		Origin:        c.Origin,
		AccessLogging: c.AccessLog.Enabled,
		ConnectRate:   c.WS.ConnectRate,
		ConnectBurst:  c.WS.ConnectBurst,
		ICEServers:    c.iceServers(),
	}
}
