package handlers

import (
	"DentalClinic/database"
	"DentalClinic/middlewares"
	"DentalClinic/scheduling"
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// respondError maps domain errors to status codes. Slot conflicts carry a
// reason so the client can tell the patient why the slot is unavailable.
func respondError(c *gin.Context, err error) {
	var slotErr *scheduling.SlotError
	switch {
	case errors.As(err, &slotErr):
		middlewares.RespondJSON(c, gin.H{"error": slotErr.Error(), "reason": slotErr.Reason}, http.StatusBadRequest)
	case errors.Is(err, scheduling.ErrValidation):
		middlewares.RespondJSON(c, gin.H{"error": err.Error()}, http.StatusBadRequest)
	case errors.Is(err, scheduling.ErrNotFound):
		middlewares.RespondJSON(c, gin.H{"error": err.Error()}, http.StatusNotFound)
	case errors.Is(err, database.ErrUnknownTenant):
		middlewares.RespondJSON(c, gin.H{"error": "unknown clinic"}, http.StatusNotFound)
	case errors.Is(err, context.DeadlineExceeded):
		middlewares.HttpError(c, "request timed out", http.StatusGatewayTimeout, err)
	default:
		middlewares.HttpError(c, "internal server error", http.StatusInternalServerError, err)
	}
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		middlewares.RespondJSON(c, gin.H{"error": "invalid request body: " + err.Error()}, http.StatusBadRequest)
		return false
	}
	return true
}
