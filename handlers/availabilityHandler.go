package handlers

import (
	"DentalClinic/services"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type AvailabilityHandler struct {
	availability *services.AvailabilityService
	reservations *services.ReservationService
}

func NewAvailabilityHandler(availability *services.AvailabilityService, reservations *services.ReservationService) *AvailabilityHandler {
	return &AvailabilityHandler{availability: availability, reservations: reservations}
}

func (h *AvailabilityHandler) GetAvailableDates(c *gin.Context) {
	dates, err := h.availability.AvailableDates(c.Request.Context(), c.Query("medic_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"availableDates": dates})
}

func (h *AvailabilityHandler) GetAvailableTimeSlots(c *gin.Context) {
	slots, err := h.availability.AvailableTimeSlots(c.Request.Context(), c.Query("date"), c.Query("medic_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"availableTimeSlots": slots})
}

func (h *AvailabilityHandler) RequestAppointment(c *gin.Context) {
	var input services.ReservationInput
	if !bindJSON(c, &input) {
		return
	}
	request, err := h.reservations.Reserve(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, request)
}

type decisionBody struct {
	Status string `json:"status"`
}

func (h *AvailabilityHandler) DecideRequest(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("request_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request ID"})
		return
	}
	var body decisionBody
	if !bindJSON(c, &body) {
		return
	}
	request, err := h.reservations.Decide(c.Request.Context(), uint(id), body.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, request)
}

func (h *AvailabilityHandler) ListPendingRequests(c *gin.Context) {
	requests, err := h.reservations.ListPending(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}
