package router

import (
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/traPtitech/callsignal/router/consts"
	"github.com/traPtitech/callsignal/router/extension"
	"github.com/traPtitech/callsignal/router/middlewares"
	v1 "github.com/traPtitech/callsignal/router/v1"
	"github.com/traPtitech/callsignal/service/callroom"
	"github.com/traPtitech/callsignal/service/presence"
	"github.com/traPtitech/callsignal/utils/jwt"
)

// Router APIルーター
type Router struct {
	e        *echo.Echo
	v1       *v1.Handlers
	presence *presence.Relay
	callRoom *callroom.Relay
	signer   *jwt.Signer
	logger   *zap.Logger
	config   *Config
}

// Services ルーターが使うサービス
type Services struct {
	Presence      *presence.Relay
	OnlineCounter *presence.OnlineCounter
	CallRoom      *callroom.Relay
	RoomManager   *callroom.Manager
	Signer        *jwt.Signer
}

// Setup APIサーバーのルーティングを行います
func Setup(ss *Services, logger *zap.Logger, config *Config) *echo.Echo {
	logger = logger.Named("router")
	r := &Router{
		e:        newEcho(logger, config),
		presence: ss.Presence,
		callRoom: ss.CallRoom,
		signer:   ss.Signer,
		logger:   logger,
		config:   config,
		v1: &v1.Handlers{
			Rooms:      ss.RoomManager,
			Presence:   ss.Presence,
			Online:     ss.OnlineCounter,
			ICEServers: config.ICEServers,
			Logger:     logger.Named("v1"),
		},
	}

	api := r.e.Group("/api")
	api.GET("/metrics", echoprometheus.NewHandler())
	api.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, http.StatusText(http.StatusOK)) })
	api.GET("/version", r.getVersion)

	auth := middlewares.TokenAuthenticate(r.signer)
	r.v1.Setup(api.Group("/v1", auth))

	// 旧クライアント向けに/ws以下にも同じエンドポイントを用意する
	for _, g := range []*echo.Group{api.Group("/ws/videocall"), r.e.Group("/ws/videocall")} {
		r.setupWS(g, auth)
	}

	return r.e
}

func (r *Router) setupWS(g *echo.Group, auth echo.MiddlewareFunc) {
	mws := []echo.MiddlewareFunc{auth}
	if r.config.ConnectRate > 0 {
		mws = append(mws, middlewares.ConnectRateLimit(rate.Limit(r.config.ConnectRate), r.config.ConnectBurst, r.logger))
	}
	g.Use(mws...)

	g.GET("/notifications", r.getPresenceWS)
	g.GET("/notifications/", r.getPresenceWS)
	g.GET("/:roomID", r.getCallRoomWS, middlewares.RoomIDParam())
	g.GET("/:roomID/", r.getCallRoomWS, middlewares.RoomIDParam())
}

// getPresenceWS GET /ws/videocall/notifications/
func (r *Router) getPresenceWS(c echo.Context) error {
	r.presence.ServeHTTP(c.Response(), c.Request())
	return nil
}

// getCallRoomWS GET /ws/videocall/:roomID/
func (r *Router) getCallRoomWS(c echo.Context) error {
	r.callRoom.ServeHTTP(c.Response(), c.Request())
	return nil
}

// getVersion GET /version
func (r *Router) getVersion(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"version":  r.config.Version,
		"revision": r.config.Revision,
	})
}

func newEcho(logger *zap.Logger, config *Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = extension.ErrorHandler(logger)

	// ミドルウェア設定
	e.Use(middlewares.ServerVersion(config.Version))
	e.Use(middlewares.RequestID())
	if config.AccessLogging {
		e.Use(middlewares.AccessLogging(logger.Named("access_log"), config.Development))
	}
	e.Use(middlewares.Recovery(logger))
	e.Use(extension.Wrap())
	e.Use(middlewares.RequestCounter())
	allowOrigins := []string{"*"}
	if !config.Development && len(config.Origin) > 0 {
		allowOrigins = []string{config.Origin}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  allowOrigins,
		ExposeHeaders: []string{consts.HeaderVersion, echo.HeaderXRequestID},
		AllowHeaders:  []string{echo.HeaderContentType, echo.HeaderAuthorization},
		MaxAge:        3600,
	}))
	e.Use(echoprometheus.NewMiddleware("echo"))

	return e
}
