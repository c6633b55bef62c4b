package middlewares

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/traPtitech/callsignal/router/consts"
	"github.com/traPtitech/callsignal/router/extension/ctxkey"
	"github.com/traPtitech/callsignal/router/extension/herror"
	"github.com/traPtitech/callsignal/signaling"
	"github.com/traPtitech/callsignal/utils/jwt"
)

const authScheme = "Bearer"

// TokenAuthenticate アクセストークン認証ミドルウェア
//
// WebSocketではヘッダーを付けられないため、tokenクエリパラメータも受け付けます
func TokenAuthenticate(signer *jwt.Signer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := c.QueryParam(consts.QueryToken)
			if ah := c.Request().Header.Get(echo.HeaderAuthorization); len(ah) > 0 {
				// Authorizationスキーム検証
				l := len(authScheme)
				if !(len(ah) > l+1 && strings.EqualFold(ah[:l], authScheme)) {
					return herror.Unauthorized("invalid authorization scheme")
				}
				token = ah[l+1:]
			}
			if len(token) == 0 {
				return herror.Unauthorized("you are not logged in")
			}

			claims, err := signer.VerifyUserToken(token)
			if err != nil {
				return herror.Unauthorized("invalid token")
			}

			userID := signaling.UserID(claims.UserID)
			c.Set(consts.KeyUserID, userID)
			c.Set(consts.KeyUserName, claims.Name)
			ctx := context.WithValue(c.Request().Context(), ctxkey.UserID, userID)
			ctx = context.WithValue(ctx, ctxkey.UserName, claims.Name)
			c.SetRequest(c.Request().WithContext(ctx)) // WebSocketストリーマーで使う
			return next(c)
		}
	}
}
