package handlers

import (
	"DentalClinic/database"
	"DentalClinic/realtime"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type RealtimeHandler struct {
	hub *realtime.Hub
}

func NewRealtimeHandler(hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{hub: hub}
}

// ServeWS upgrades to the live calendar channel of the request's clinic.
func (h *RealtimeHandler) ServeWS(c *gin.Context) {
	tenant, err := database.TenantFromContext(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown clinic"})
		return
	}
	if err := h.hub.ServeWS(c.Writer, c.Request, tenant); err != nil {
		// the upgrader has already written the failure response
		zerolog.Ctx(c.Request.Context()).Debug().Err(err).Msg("websocket upgrade failed")
	}
}
