package middlewares

import (
	"context"

	vd "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/labstack/echo/v4"

	"github.com/traPtitech/callsignal/router/consts"
	"github.com/traPtitech/callsignal/router/extension/ctxkey"
	"github.com/traPtitech/callsignal/router/extension/herror"
	"github.com/traPtitech/callsignal/utils/validator"
)

// RoomIDParam パスパラメータの通話ルームIDを検証するミドルウェア
func RoomIDParam() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			roomID := c.Param(consts.ParamRoomID)
			if err := vd.Validate(roomID, validator.RoomIDRuleRequired...); err != nil {
				return herror.BadRequest(err)
			}

			c.Set(consts.KeyRoomID, roomID)
			c.SetRequest(c.Request().WithContext(context.WithValue(c.Request().Context(), ctxkey.RoomID, roomID)))
			return next(c)
		}
	}
}
