package v1

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"github.com/traPtitech/callsignal/service/presence"
)

// GetOnlineUsers GET /users/online
func (h *Handlers) GetOnlineUsers(c echo.Context) error {
	users := h.Online.GetOnlineUserIDs()
	slices.Sort(users)
	return c.JSON(http.StatusOK, users)
}

// GetMe GET /users/me
func (h *Handlers) GetMe(c echo.Context) error {
	userID := getRequestUserID(c)
	return c.JSON(http.StatusOK, echo.Map{
		"userId": userID,
		"name":   getRequestUserName(c),
		"online": h.Online.IsOnline(userID),
	})
}

// GetMyInvitations GET /users/me/invitations
func (h *Handlers) GetMyInvitations(c echo.Context) error {
	userID := getRequestUserID(c)
	invs := lo.Filter(h.Presence.PendingInvitations(), func(inv presence.Invitation, _ int) bool {
		return inv.From == userID || inv.To == userID
	})
	if invs == nil {
		invs = []presence.Invitation{}
	}
	return c.JSON(http.StatusOK, invs)
}

