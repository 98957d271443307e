package handlers

import (
	"DentalClinic/scheduling"
	"DentalClinic/services"
	"net/http"

	"github.com/gin-gonic/gin"
)

type AppointmentHandler struct {
	service *services.AppointmentService
}

func NewAppointmentHandler(service *services.AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{service: service}
}

func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	var input services.AppointmentInput
	if !bindJSON(c, &input) {
		return
	}
	appointment, err := h.service.Create(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, appointment)
}

func (h *AppointmentHandler) GetAppointmentByID(c *gin.Context) {
	appointment, err := h.service.Get(c.Request.Context(), c.Param("appointment_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, appointment)
}

// GetAllAppointments returns the formatted records of a date range, the current week by default.
func (h *AppointmentHandler) GetAllAppointments(c *gin.Context) {
	q := scheduling.ViewQuery{
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
		MedicID:   c.Query("medic_id"),
	}
	q, appointments, err := h.service.List(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	records := make([]scheduling.Record, 0, len(appointments))
	for _, a := range appointments {
		records = append(records, services.FormatAppointment(a))
	}
	c.JSON(http.StatusOK, gin.H{
		"startDate":    q.StartDate,
		"endDate":      q.EndDate,
		"appointments": records,
	})
}

func (h *AppointmentHandler) UpdateAppointment(c *gin.Context) {
	var input services.AppointmentUpdate
	if !bindJSON(c, &input) {
		return
	}
	appointment, err := h.service.Update(c.Request.Context(), c.Param("appointment_id"), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, appointment)
}

func (h *AppointmentHandler) DeleteAppointment(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("appointment_id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
