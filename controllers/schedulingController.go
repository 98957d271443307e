package controllers

import (
	"DentalClinic/handlers"

	"github.com/gin-gonic/gin"
)

// SetupAvailabilityRoutes registers the booking routes used by patients and staff.
func SetupAvailabilityRoutes(router gin.IRoutes, availabilityHandler *handlers.AvailabilityHandler) {
	router.GET("/availability/dates", availabilityHandler.GetAvailableDates)
	router.GET("/availability/time-slots", availabilityHandler.GetAvailableTimeSlots)
	router.POST("/availability/request", availabilityHandler.RequestAppointment)
}

// SetupStaffRoutes registers the routes that change the clinic calendar.
func SetupStaffRoutes(router gin.IRoutes, availabilityHandler *handlers.AvailabilityHandler, appointmentHandler *handlers.AppointmentHandler, scheduleHandler *handlers.ScheduleHandler) {
	router.GET("/availability/requests", availabilityHandler.ListPendingRequests)
	router.PUT("/availability/requests/:request_id", availabilityHandler.DecideRequest)

	router.POST("/appointments", appointmentHandler.CreateAppointment)
	router.GET("/appointments", appointmentHandler.GetAllAppointments)
	router.GET("/appointments/:appointment_id", appointmentHandler.GetAppointmentByID)
	router.PUT("/appointments/:appointment_id", appointmentHandler.UpdateAppointment)
	router.DELETE("/appointments/:appointment_id", appointmentHandler.DeleteAppointment)

	router.PUT("/medics/:medic_id/working-hours", scheduleHandler.ReplaceWorkingHours)
	router.POST("/medics/:medic_id/days-off", scheduleHandler.CreateDayOff)
	router.DELETE("/medics/:medic_id/days-off/:day_off_id", scheduleHandler.DeleteDayOff)
}

// SetupRealtimeRoute registers the live calendar channel.
func SetupRealtimeRoute(router gin.IRoutes, realtimeHandler *handlers.RealtimeHandler) {
	router.GET("/ws", realtimeHandler.ServeWS)
}
