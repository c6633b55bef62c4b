package v1

import (
	"github.com/labstack/echo/v4"

	"github.com/traPtitech/callsignal/router/consts"
	"github.com/traPtitech/callsignal/signaling"
)

// getRequestUserID リクエストしてきたユーザーのIDを取得
func getRequestUserID(c echo.Context) signaling.UserID {
	return c.Get(consts.KeyUserID).(signaling.UserID)
}

// getRequestUserName リクエストしてきたユーザーの表示名を取得
func getRequestUserName(c echo.Context) string {
	name, _ := c.Get(consts.KeyUserName).(string)
	return name
}

func getParamRoomID(c echo.Context) string {
	return c.Get(consts.KeyRoomID).(string)
}
