package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"communityevents/config"
	"communityevents/internal/adapters/auth"
	deliveryhttp "communityevents/internal/delivery/http"
	"communityevents/internal/delivery/http/controllers"
	"communityevents/internal/domain"
	"communityevents/internal/repository/memory"
	"communityevents/internal/repository/postgres"
	"communityevents/internal/services"
)

// stores groups the repositories and transactor of one backend.
type stores struct {
	events        domain.EventRepository
	registrations domain.RegistrationRepository
	tx            domain.Transactor
	ping          deliveryhttp.PingFunc
	close         func() error
}

func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("using in-memory store; data is lost on restart")
		store := memory.NewStore()
		return &stores{
			events:        memory.NewEventRepository(store),
			registrations: memory.NewRegistrationRepository(store),
			tx:            memory.NewTransactor(store),
			close:         func() error { return nil },
		}, nil
	}
	db, err := postgres.Open(ctx, cfg.DBUrl)
	if err != nil {
		return nil, err
	}
	return &stores{
		events:        postgres.NewEventRepository(db),
		registrations: postgres.NewRegistrationRepository(db),
		tx:            postgres.NewTransactor(db),
		ping:          pinger(db),
		close:         db.Close,
	}, nil
}

func pinger(db *sql.DB) deliveryhttp.PingFunc {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return db.PingContext(ctx)
	}
}

// @title Community Events API
// @version 1.0
// @description Event capacity and registration service: public browsing and registration, waitlisting, cancellation and administration.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := config.NewLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := st.close(); err != nil {
			logger.Error("failed to close store", "err", err)
		}
	}()

	eventService := services.NewEventService(st.events, st.registrations, st.tx, logger, cfg.ContextTimeout)
	registrationService := services.NewRegistrationService(st.events, st.registrations, st.tx,
		services.GenerateTicketCode, cfg.TicketCodeAttempts, logger, cfg.ContextTimeout)
	reconcileService := services.NewReconcileService(st.events, logger, cfg.ContextTimeout)

	router := deliveryhttp.NewRouter(
		logger,
		auth.NewJWTVerifier(cfg.JWTSecret),
		controllers.NewEventController(logger, eventService),
		controllers.NewRegistrationController(logger, registrationService),
		controllers.NewReconcileController(logger, reconcileService),
		st.ping,
	)

	if cfg.ReconcileInterval > 0 {
		go services.RunReconciliation(ctx, reconcileService, cfg.ReconcileInterval, logger)
		logger.Info("periodic reconciliation enabled", "interval", cfg.ReconcileInterval.String())
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           deliveryhttp.NewHandler(router, logger, cfg.CORSAllowedOrigins),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Port, "env", cfg.Environment, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Error("server failed", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	}
}
