package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/traPtitech/callsignal/signaling"
)

// GetICEServers GET /ice-servers
func (h *Handlers) GetICEServers(c echo.Context) error {
	servers := h.ICEServers
	if len(servers) == 0 {
		servers = signaling.DefaultICEServers()
	}
	return c.JSON(http.StatusOK, echo.Map{
		"iceServers":           servers,
		"iceCandidatePoolSize": signaling.ICECandidatePoolSize,
	})
}
