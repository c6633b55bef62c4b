package extension

import (
	"strings"

	"github.com/gofrs/uuid"
	"github.com/labstack/echo/v4"

	"github.com/traPtitech/callsignal/router/consts"
)

// GetRequestID リクエストIDを返します
func GetRequestID(c echo.Context) string {
	rid := c.Request().Header.Get(echo.HeaderXRequestID)
	if len(rid) == 0 {
		rid = uuid.Must(uuid.NewV4()).String()
		c.Request().Header.Set(echo.HeaderXRequestID, rid)
	}
	return rid
}

// GetTraceID Cloud Loggingのトレースidを返します
//
// X-Cloud-Trace-Contextヘッダーが無い場合はリクエストIDを返します
func GetTraceID(c echo.Context) string {
	if tc := c.Request().Header.Get(consts.HeaderCloudTrace); len(tc) > 0 {
		traceID, _, _ := strings.Cut(tc, "/")
		return traceID
	}
	return GetRequestID(c)
}
