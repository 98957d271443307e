package main

import (
	"DentalClinic/cache"
	"DentalClinic/config"
	"DentalClinic/database"
	"DentalClinic/logger"
	"DentalClinic/metrics"
	"DentalClinic/notify"
	"DentalClinic/realtime"
	"DentalClinic/routes"
	"DentalClinic/utils"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	// clinic timezones must resolve on hosts without a zoneinfo database
	_ "time/tzdata"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		stderrLog := zerolog.New(os.Stderr)
		stderrLog.Fatal().Err(err).Msg("failed to load configuration")
	}
	log := logger.New(cfg.LogLevel, cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tenants, err := database.NewTenantManager(
		cfg.Database.MaxTenants,
		database.DSNOpener(cfg.Database.Driver, cfg.Database.DSNTemplate, cfg.IsDevelopment()),
		log,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tenant databases")
	}
	defer tenants.Close()

	// Redis is optional: without it there is no cache, no lock and no cross-instance relay.
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = database.NewRedisClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize Redis client")
		}
		defer redisClient.Close()
	} else {
		log.Warn().Msg("REDIS_URL not set, running without cache and relay")
	}

	tokens, err := utils.NewTokenIssuer(cfg.SymmetricKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize token issuer")
	}

	metrics.Register()

	handler, hub := routes.SetupRoutes(routes.Dependencies{
		Config:   cfg,
		Tenants:  tenants,
		Cache:    cache.NewCache(redisClient),
		Locker:   database.NewLocker(redisClient),
		Notifier: notify.NewMailer(cfg.SMTP, log),
		Tokens:   tokens,
		Logger:   log,
	})
	defer hub.Close()

	if redisClient != nil {
		relay := realtime.NewRelay(redisClient, hub, log)
		if err := relay.Subscribe(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start appointment relay")
		}
		hub.SetPublisher(relay)
	}

	srv := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        handler,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
		IdleTimeout:    60 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		log.Info().Str("addr", cfg.HTTPAddr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listenAndServe failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	log.Info().Msg("shutting down server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	wg.Wait()
	log.Info().Msg("server exited gracefully")
}
