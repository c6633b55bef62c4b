package v1

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/traPtitech/callsignal/router/middlewares"
	"github.com/traPtitech/callsignal/service/callroom"
	"github.com/traPtitech/callsignal/service/presence"
	"github.com/traPtitech/callsignal/signaling"
)

// Handlers ハンドラ
type Handlers struct {
	Rooms    *callroom.Manager
	Presence *presence.Relay
	Online   *presence.OnlineCounter
	Logger   *zap.Logger

	// ICEServers クライアントに配布するICEサーバー
	ICEServers []signaling.ICEServer
}

// Setup APIルーティングを行います
//
// eには認証ミドルウェアが設定されている必要があります
func (h *Handlers) Setup(e *echo.Group) {
	apiCalls := e.Group("/calls")
	{
		apiCalls.GET("", h.GetCalls)
		apiCalls.POST("", h.PostCall)
		apiCalls.GET("/:roomID", h.GetCall, middlewares.RoomIDParam())
	}
	e.GET("/ice-servers", h.GetICEServers)
	apiUsers := e.Group("/users")
	{
		apiUsers.GET("/online", h.GetOnlineUsers)
		apiUsers.GET("/me", h.GetMe)
		apiUsers.GET("/me/invitations", h.GetMyInvitations)
	}
}
