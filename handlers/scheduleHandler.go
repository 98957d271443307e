package handlers

import (
	"DentalClinic/services"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ScheduleHandler edits the weekly hours and days off of medics.
type ScheduleHandler struct {
	service *services.AvailabilityService
}

func NewScheduleHandler(service *services.AvailabilityService) *ScheduleHandler {
	return &ScheduleHandler{service: service}
}

func (h *ScheduleHandler) ReplaceWorkingHours(c *gin.Context) {
	var input []services.WorkingHoursInput
	if !bindJSON(c, &input) {
		return
	}
	hours, err := h.service.ReplaceWorkingHours(c.Request.Context(), c.Param("medic_id"), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, hours)
}

func (h *ScheduleHandler) CreateDayOff(c *gin.Context) {
	var input services.DayOffInput
	if !bindJSON(c, &input) {
		return
	}
	dayOff, err := h.service.CreateDayOff(c.Request.Context(), c.Param("medic_id"), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dayOff)
}

func (h *ScheduleHandler) DeleteDayOff(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("day_off_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid day off ID"})
		return
	}
	if err := h.service.DeleteDayOff(c.Request.Context(), c.Param("medic_id"), uint(id)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
