package routes

import (
	"DentalClinic/cache"
	"DentalClinic/config"
	"DentalClinic/controllers"
	"DentalClinic/database"
	"DentalClinic/handlers"
	"DentalClinic/middlewares"
	"DentalClinic/realtime"
	"DentalClinic/repositories"
	"DentalClinic/services"
	"DentalClinic/utils"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Dependencies are the process-wide collaborators the routes are built from.
type Dependencies struct {
	Config   *config.AppConfig
	Tenants  repositories.Tenants
	Cache    *cache.Cache
	Locker   *database.Locker
	Notifier services.Notifier
	Tokens   *utils.TokenIssuer
	Logger   zerolog.Logger
}

// SetupRoutes initializes the routes and middleware for the server. The
// returned hub serves the live calendars and must be closed on shutdown.
func SetupRoutes(deps Dependencies) (http.Handler, *realtime.Hub) {
	cfg := deps.Config
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middlewares.CorsMiddleware(&middlewares.CorsConfig{
		AllowedOrigins:   cfg.Origins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", middlewares.AccessTokenHeader, middlewares.TenantHeader},
		AllowCredentials: true,
	}))

	// Initialize repositories, services, and handlers
	medicRepo := repositories.NewMedicRepository(deps.Tenants, deps.Cache, deps.Logger)
	patientRepo := repositories.NewPatientRepository(deps.Tenants, deps.Cache, deps.Logger)
	scheduleRepo := repositories.NewAvailabilityRepository(deps.Tenants, deps.Cache, deps.Logger)
	requestRepo := repositories.NewPatientRequestRepository(deps.Tenants, deps.Cache, deps.Logger)
	appointmentRepo := repositories.NewAppointmentRepository(deps.Tenants, deps.Cache, deps.Logger)

	availabilityService := services.NewAvailabilityService(medicRepo, scheduleRepo, deps.Cache, cfg.Clinic, deps.Logger)
	reservationService := services.NewReservationService(
		availabilityService,
		scheduleRepo,
		requestRepo,
		patientRepo,
		medicRepo,
		deps.Locker,
		deps.Notifier,
		deps.Logger,
	)
	appointmentService := services.NewAppointmentService(appointmentRepo, patientRepo, medicRepo, availabilityService, nil, deps.Logger)

	hub := realtime.NewHub(appointmentService, cfg.Origins(), deps.Logger)
	appointmentService.SetBroadcaster(hub)

	availabilityHandler := handlers.NewAvailabilityHandler(availabilityService, reservationService)
	appointmentHandler := handlers.NewAppointmentHandler(appointmentService)
	scheduleHandler := handlers.NewScheduleHandler(availabilityService)
	realtimeHandler := handlers.NewRealtimeHandler(hub)

	// Register routes
	controllers.SetupRootRoute(router)

	clinic := router.Group("/",
		middlewares.TenantMiddleware(cfg.BaseDomain),
		middlewares.LoggingMiddleware(deps.Logger),
		middlewares.NewRateLimiterMiddleware(middlewares.RateLimiterConfig{
			RequestsPerSecond: cfg.HTTP.RateLimitRPS,
			Burst:             cfg.HTTP.RateLimitBurst,
			MaxTenants:        cfg.Database.MaxTenants * 4,
		}),
	)
	controllers.SetupRealtimeRoute(clinic, realtimeHandler)

	api := clinic.Group("/",
		middlewares.TimeoutMiddleware(cfg.HTTP.RequestTimeout),
		middlewares.ValidateBearerToken(cfg.GetBearerToken()),
	)
	controllers.SetupAvailabilityRoutes(api, availabilityHandler)

	staff := api.Group("/", middlewares.TokenAuthMiddleware(deps.Tokens, utils.RoleAdmin, utils.RoleMedic, utils.RoleReceptionist))
	controllers.SetupStaffRoutes(staff, availabilityHandler, appointmentHandler, scheduleHandler)

	return router, hub
}
