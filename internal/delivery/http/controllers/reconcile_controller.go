package controllers

import (
	"log/slog"
	"net/http"

	"communityevents/internal/delivery/http/helpers"
	"communityevents/internal/domain"
)

// ReconciliationSuccessResponse is the success response envelope for POST /admin/reconciliations (200).
type ReconciliationSuccessResponse struct {
	Data  *domain.ReconciliationReport `json:"data"`
	Error *helpers.APIError            `json:"error"`
}

type ReconcileController struct {
	Logger  *slog.Logger
	Service domain.ReconcileService
}

func NewReconcileController(logger *slog.Logger, svc domain.ReconcileService) *ReconcileController {
	return &ReconcileController{
		Logger:  logger,
		Service: svc,
	}
}

// Run godoc
// @Summary Check attendee counters
// @Description Recomputes each event's confirmed registrations and reports events whose stored counter differs. Nothing is repaired. Requires the integrity:reconcile capability.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} controllers.ReconciliationSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /admin/reconciliations [post]
func (c *ReconcileController) Run(w http.ResponseWriter, r *http.Request) {
	report, err := c.Service.Reconcile(r.Context())
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err, "not found")
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, report)
}
