package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/traPtitech/callsignal/router/extension/herror"
	"github.com/traPtitech/callsignal/signaling"
)

// GetCalls GET /calls
func (h *Handlers) GetCalls(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Rooms.GetRooms())
}

// GetCall GET /calls/:roomID
func (h *Handlers) GetCall(c echo.Context) error {
	room, ok := h.Rooms.GetRoom(getParamRoomID(c))
	if !ok {
		return herror.NotFound("the call room does not exist")
	}
	return c.JSON(http.StatusOK, room)
}

// PostCall POST /calls
//
// 発信用の新しいルームIDを払い出します。ルーム自体は最初の参加者がjoin_callした時に作られます
func (h *Handlers) PostCall(c echo.Context) error {
	return c.JSON(http.StatusCreated, echo.Map{
		"roomId": signaling.NewRoomID(getRequestUserID(c), time.Now()),
	})
}
