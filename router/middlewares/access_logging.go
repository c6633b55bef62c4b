package middlewares

import (
	"strconv"
	"strings"
	"time"

	"github.com/blendle/zapdriver"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/traPtitech/callsignal/router/consts"
	"github.com/traPtitech/callsignal/router/extension"
	"github.com/traPtitech/callsignal/signaling"
)

// AccessLogging アクセスログミドルウェア
//
// WebSocketの場合は接続終了時に記録されます
func AccessLogging(logger *zap.Logger, dev bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipAccessLog(c.Path()) {
				return next(c)
			}

			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			latency := time.Since(start)

			req := c.Request()
			res := c.Response()
			fields := make([]zap.Field, 0, 4)
			if userID, ok := c.Get(consts.KeyUserID).(signaling.UserID); ok {
				fields = append(fields, zap.Stringer("userId", userID))
			}
			if roomID, ok := c.Get(consts.KeyRoomID).(string); ok {
				fields = append(fields, zap.String("roomId", roomID))
			}

			if dev {
				logger.Info(req.Method+" "+req.URL.Path, append(fields, zap.Int("status", res.Status), zap.Duration("latency", latency))...)
				return nil
			}
			// トークンがクエリに含まれるためパスのみ記録する
			fields = append(fields, zap.String("logging.googleapis.com/trace", extension.GetTraceID(c)), zapdriver.HTTP(&zapdriver.HTTPPayload{
				RequestMethod: req.Method,
				Status:        res.Status,
				UserAgent:     req.UserAgent(),
				RemoteIP:      c.RealIP(),
				Protocol:      req.Proto,
				RequestURL:    req.URL.Path,
				ResponseSize:  strconv.FormatInt(res.Size, 10),
				Latency:       strconv.FormatFloat(latency.Seconds(), 'f', 9, 64) + "s",
			}))
			logger.Info("", fields...)
			return nil
		}
	}
}

func skipAccessLog(path string) bool {
	return strings.HasSuffix(path, "/ping") || strings.HasSuffix(path, "/metrics")
}
