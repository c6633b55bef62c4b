package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/traPtitech/callsignal/router/consts"
	"github.com/traPtitech/callsignal/router/extension/herror"
	"github.com/traPtitech/callsignal/signaling"
)

// ConnectRateLimit ユーザーごとのWebSocket接続試行回数を制限するミドルウェア
//
// TokenAuthenticateの後に使う必要があります
func ConnectRateLimit(r rate.Limit, burst int, logger *zap.Logger) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      r,
		Burst:     burst,
		ExpiresIn: 3 * time.Minute,
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identifier := c.RealIP()
			if userID, ok := c.Get(consts.KeyUserID).(signaling.UserID); ok {
				identifier = fmt.Sprintf("user:%d", userID)
			}

			ok, err := store.Allow(identifier)
			if err != nil {
				return herror.InternalServerError(err)
			}
			if !ok {
				logger.Warn("Exceeded connect rate limit.",
					zap.String("path", c.Path()),
					zap.String("identifier", identifier),
					zap.String("ip", c.RealIP()))
				return herror.HTTPError(http.StatusTooManyRequests, "too many connection attempts")
			}
			return next(c)
		}
	}
}
