package controllers

import (
	"log/slog"
	"net/http"
	"strings"

	"communityevents/internal/delivery/http/helpers"
	"communityevents/internal/domain"
)

// Messages returned alongside a new registration.
const (
	msgRegistered = "You're registered. Keep your ticket code for check-in."
	msgWaitlisted = "This event is full. You have been added to the waitlist."
)

// RegisterRequest is the request body for POST /events/{eventID}/registrations.
type RegisterRequest struct {
	Name               string `json:"name"`
	Email              string `json:"email"`
	Phone              string `json:"phone"`
	AccessibilityNotes string `json:"accessibility_notes"`
}

func (req RegisterRequest) attendee() domain.Attendee {
	a := domain.Attendee{
		Name:               req.Name,
		Email:              req.Email,
		Phone:              req.Phone,
		AccessibilityNotes: req.AccessibilityNotes,
	}
	a.Normalize()
	return a
}

// Validate implements Validator.
func (req RegisterRequest) Validate() []string {
	return req.attendee().Problems()
}

// RegisterResponse is the data payload for a new registration.
type RegisterResponse struct {
	Registration *domain.PublicRegistration `json:"registration"`
	Waitlisted   bool                       `json:"waitlisted"`
	Message      string                     `json:"message"`
}

// RegisterSuccessResponse is the success response envelope for POST /events/{eventID}/registrations (201).
type RegisterSuccessResponse struct {
	Data  RegisterResponse  `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// PublicRegistrationSuccessResponse is the success response envelope for a registration
// returned on an unauthenticated route.
type PublicRegistrationSuccessResponse struct {
	Data  *domain.PublicRegistration `json:"data"`
	Error *helpers.APIError          `json:"error"`
}

// RegistrationSuccessResponse is the success response envelope for a single registration.
type RegistrationSuccessResponse struct {
	Data  *domain.Registration `json:"data"`
	Error *helpers.APIError    `json:"error"`
}

// ListRegistrationsResponse is the data payload of registration listings.
type ListRegistrationsResponse struct {
	Items      []*domain.Registration `json:"items"`
	Pagination helpers.PaginationMeta `json:"pagination"`
}

// ListRegistrationsSuccessResponse is the success response envelope for registration listings (200).
type ListRegistrationsSuccessResponse struct {
	Data  ListRegistrationsResponse `json:"data"`
	Error *helpers.APIError         `json:"error"`
}

// UpdateRegistrationRequest is the request body for PATCH /admin/registrations/{registrationID}.
// Only administrator fields are editable; status changes go through the cancel endpoint.
type UpdateRegistrationRequest struct {
	Notes         *string               `json:"notes"`
	PaymentStatus *domain.PaymentStatus `json:"payment_status"`
}

func (u UpdateRegistrationRequest) patch() domain.RegistrationAdminPatch {
	return domain.RegistrationAdminPatch{Notes: u.Notes, PaymentStatus: u.PaymentStatus}
}

// Validate implements Validator.
func (u UpdateRegistrationRequest) Validate() []string {
	return problemsOf(u.patch().Validate())
}

type RegistrationController struct {
	Logger  *slog.Logger
	Service domain.RegistrationService
}

func NewRegistrationController(logger *slog.Logger, svc domain.RegistrationService) *RegistrationController {
	return &RegistrationController{
		Logger:  logger,
		Service: svc,
	}
}

// Register godoc
// @Summary Register for an event
// @Description Registers an attendee. When the event has a spot left the registration is confirmed; when it is full the registration is waitlisted instead of failing.
// @Tags registrations
// @Accept json
// @Produce json
// @Param eventID path string true "Event ID (UUID)"
// @Param body body RegisterRequest true "Attendee details"
// @Success 201 {object} controllers.RegisterSuccessResponse "data.waitlisted tells confirmed and waitlisted apart"
// @Failure 400 {object} helpers.APIResponse "error.code: validation_failed or invalid_state (not published, registration closed)"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict (email already registered)"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/registrations [post]
func (c *RegistrationController) Register(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")
	if !validID(eventID) {
		helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "event not found")
		return
	}
	var req RegisterRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	result, err := c.Service.RegisterForEvent(r.Context(), eventID, req.attendee())
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err, "event not found")
		return
	}
	msg := msgRegistered
	if result.Waitlisted {
		msg = msgWaitlisted
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, RegisterResponse{
		Registration: domain.NewPublicRegistration(result.Registration),
		Waitlisted:   result.Waitlisted,
		Message:      msg,
	})
}

// Cancel godoc
// @Summary Cancel a registration
// @Description Cancels a confirmed or waitlisted registration. Cancelling a confirmed registration frees its spot; nobody is promoted from the waitlist. Cancelling twice is an error.
// @Tags registrations
// @Produce json
// @Param registrationID path string true "Registration ID (UUID)"
// @Success 200 {object} controllers.PublicRegistrationSuccessResponse "data contains the cancelled registration"
// @Failure 400 {object} helpers.APIResponse "error.code: invalid_state (already cancelled)"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /registrations/{registrationID}/cancel [post]
func (c *RegistrationController) Cancel(w http.ResponseWriter, r *http.Request) {
	reg, ok := c.cancel(w, r)
	if !ok {
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, domain.NewPublicRegistration(reg))
}

func (c *RegistrationController) cancel(w http.ResponseWriter, r *http.Request) (*domain.Registration, bool) {
	registrationID := r.PathValue("registrationID")
	if !validID(registrationID) {
		helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "registration not found")
		return nil, false
	}
	reg, err := c.Service.CancelRegistration(r.Context(), registrationID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err, "registration not found")
		return nil, false
	}
	return reg, true
}

// AdminCancel godoc
// @Summary Cancel a registration (admin)
// @Description Same as the public cancel, but returns the full registration. Requires the registrations:manage capability.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param registrationID path string true "Registration ID (UUID)"
// @Success 200 {object} controllers.RegistrationSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: invalid_state"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /admin/registrations/{registrationID}/cancel [post]
func (c *RegistrationController) AdminCancel(w http.ResponseWriter, r *http.Request) {
	reg, ok := c.cancel(w, r)
	if !ok {
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, reg)
}

// GetByTicketCode godoc
// @Summary Look up a registration by ticket code
// @Tags registrations
// @Produce json
// @Param ticketCode path string true "Ticket code, e.g. PV-PRI-7K3M9Q"
// @Success 200 {object} controllers.PublicRegistrationSuccessResponse
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /registrations/ticket/{ticketCode} [get]
func (c *RegistrationController) GetByTicketCode(w http.ResponseWriter, r *http.Request) {
	reg, err := c.Service.GetByTicketCode(r.Context(), r.PathValue("ticketCode"))
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err, "registration not found")
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, domain.NewPublicRegistration(reg))
}

func registrationFilter(r *http.Request) domain.RegistrationFilter {
	q := r.URL.Query()
	filter := domain.RegistrationFilter{
		EventID: strings.TrimSpace(q.Get("event_id")),
		Search:  strings.TrimSpace(q.Get("search")),
	}
	if s := q.Get("status"); s != "" {
		status := domain.RegistrationStatus(strings.ToLower(s))
		filter.Status = &status
	}
	return filter
}

func (c *RegistrationController) writeList(w http.ResponseWriter, r *http.Request, filter domain.RegistrationFilter) {
	params := helpers.ParsePagination(r)
	regs, total, err := c.Service.ListRegistrations(r.Context(), filter, params)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err, "event not found")
		return
	}
	meta := helpers.NewPaginationMeta(params.Page, params.PageSize, total)
	helpers.WriteJSONSuccess(w, http.StatusOK, ListRegistrationsResponse{Items: regs, Pagination: meta})
}

// ListEventRegistrations godoc
// @Summary List an event's registrations
// @Description Paginated, newest first. Requires the registrations:read capability.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Param status query string false "confirmed, waitlisted or cancelled"
// @Param search query string false "Case-insensitive match on name, email or ticket code"
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} controllers.ListRegistrationsSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: validation_failed"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /admin/events/{eventID}/registrations [get]
func (c *RegistrationController) ListEventRegistrations(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")
	if !validID(eventID) {
		helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "event not found")
		return
	}
	filter := registrationFilter(r)
	filter.EventID = eventID
	c.writeList(w, r, filter)
}

// ListRegistrations godoc
// @Summary List all registrations
// @Description Paginated, newest first. Requires the registrations:read capability.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param event_id query string false "Only registrations of this event"
// @Param status query string false "confirmed, waitlisted or cancelled"
// @Param search query string false "Case-insensitive match on name, email or ticket code"
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} controllers.ListRegistrationsSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: validation_failed"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Router /admin/registrations [get]
func (c *RegistrationController) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	filter := registrationFilter(r)
	if filter.EventID != "" && !validID(filter.EventID) {
		helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "event not found")
		return
	}
	c.writeList(w, r, filter)
}

// UpdateRegistration godoc
// @Summary Edit a registration's notes or payment status
// @Description Neither field affects capacity. Requires the registrations:manage capability.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param registrationID path string true "Registration ID (UUID)"
// @Param body body UpdateRegistrationRequest true "Fields to update"
// @Success 200 {object} controllers.RegistrationSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request or validation_failed"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /admin/registrations/{registrationID} [patch]
func (c *RegistrationController) UpdateRegistration(w http.ResponseWriter, r *http.Request) {
	registrationID := r.PathValue("registrationID")
	if !validID(registrationID) {
		helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "registration not found")
		return
	}
	var req UpdateRegistrationRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	reg, err := c.Service.UpdateRegistration(r.Context(), registrationID, req.patch())
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err, "registration not found")
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, reg)
}
