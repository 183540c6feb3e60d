package http

import (
	"context"
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "communityevents/docs"
	"communityevents/internal/delivery/http/controllers"
	"communityevents/internal/delivery/http/helpers"
	"communityevents/internal/delivery/http/middleware"
	"communityevents/internal/domain"
)

// PingFunc reports whether the backing store is reachable. Nil means always healthy.
type PingFunc func(ctx context.Context) error

// NewRouter initializes the HTTP router with all application routes
func NewRouter(
	logger *slog.Logger,
	verifier domain.TokenVerifier,
	eventController *controllers.EventController,
	registrationController *controllers.RegistrationController,
	reconcileController *controllers.ReconcileController,
	ping PingFunc,
) *http.ServeMux {
	mux := http.NewServeMux()

	// admin wraps h so that it runs only for a verified principal holding capability.
	admin := func(capability domain.Capability, h http.HandlerFunc) http.HandlerFunc {
		return middleware.RequireAuth(verifier, logger)(middleware.RequireCapability(capability, logger)(h))
	}

	// Public
	mux.HandleFunc("GET /events", eventController.ListPublicEvents)
	mux.HandleFunc("GET /events/{key}", eventController.GetPublicEvent)
	mux.HandleFunc("POST /events/{eventID}/registrations", registrationController.Register)
	mux.HandleFunc("POST /registrations/{registrationID}/cancel", registrationController.Cancel)
	mux.HandleFunc("GET /registrations/ticket/{ticketCode}", registrationController.GetByTicketCode)

	// Admin: events
	mux.HandleFunc("GET /admin/events", admin(domain.CapManageEvents, eventController.ListEvents))
	mux.HandleFunc("POST /admin/events", admin(domain.CapManageEvents, eventController.CreateEvent))
	mux.HandleFunc("GET /admin/events/{eventID}", admin(domain.CapManageEvents, eventController.GetEvent))
	mux.HandleFunc("PATCH /admin/events/{eventID}", admin(domain.CapManageEvents, eventController.UpdateEvent))
	mux.HandleFunc("DELETE /admin/events/{eventID}", admin(domain.CapManageEvents, eventController.DeleteEvent))

	// Admin: registrations
	mux.HandleFunc("GET /admin/events/{eventID}/registrations", admin(domain.CapReadRegistrations, registrationController.ListEventRegistrations))
	mux.HandleFunc("GET /admin/registrations", admin(domain.CapReadRegistrations, registrationController.ListRegistrations))
	mux.HandleFunc("PATCH /admin/registrations/{registrationID}", admin(domain.CapManageRegistrations, registrationController.UpdateRegistration))
	mux.HandleFunc("POST /admin/registrations/{registrationID}/cancel", admin(domain.CapManageRegistrations, registrationController.AdminCancel))

	// Admin: integrity
	mux.HandleFunc("POST /admin/reconciliations", admin(domain.CapReconcile, reconcileController.Run))

	mux.HandleFunc("GET /health", health(logger, ping))

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}

// NewHandler wraps the router with request ids, CORS, request logging and panic recovery.
func NewHandler(router http.Handler, logger *slog.Logger, corsAllowedOrigins []string) http.Handler {
	h := chimw.Recoverer(router)
	h = middleware.LoggingMiddleware(logger, h)
	h = middleware.CORS(corsAllowedOrigins, h)
	return chimw.RequestID(h)
}

// health godoc
// @Summary Liveness and store connectivity
// @Tags health
// @Produce json
// @Success 200 {object} helpers.APIResponse "data.status is ok"
// @Failure 503 {object} helpers.APIResponse "error.code: internal_error"
// @Router /health [get]
func health(logger *slog.Logger, ping PingFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			if err := ping(r.Context()); err != nil {
				logger.ErrorContext(r.Context(), "health check failed", "err", err)
				helpers.WriteJSONError(w, http.StatusServiceUnavailable, helpers.ErrCodeInternalError, "store unavailable")
				return
			}
		}
		helpers.WriteJSONSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
