package controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"communityevents/internal/delivery/http/helpers"
	"communityevents/internal/domain"
)

// validID reports whether id is a canonical UUID. Malformed ids are answered with 404
// without reaching the store.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// problemsOf returns the messages of a *domain.ValidationError, or the error text otherwise.
func problemsOf(err error) []string {
	if err == nil {
		return nil
	}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return verr.Problems
	}
	return []string{err.Error()}
}

// CreateEventRequest is the request body for POST /admin/events. The slug is derived from
// the title; the attendee counter always starts at zero.
type CreateEventRequest struct {
	Title            string             `json:"title"`
	Description      string             `json:"description"`
	Location         string             `json:"location"`
	Category         string             `json:"category"`
	ImageURL         string             `json:"image_url"`
	StartsAt         *time.Time         `json:"starts_at"`
	EndsAt           *time.Time         `json:"ends_at"`
	IsFree           bool               `json:"is_free"`
	PriceCents       int64              `json:"price_cents"`
	MaxAttendees     *int               `json:"max_attendees"`
	Status           domain.EventStatus `json:"status"`
	RegistrationOpen bool               `json:"registration_open"`
}

func (c CreateEventRequest) draft() domain.EventDraft {
	return domain.EventDraft{
		Title:            c.Title,
		Description:      c.Description,
		Location:         c.Location,
		Category:         c.Category,
		ImageURL:         c.ImageURL,
		StartsAt:         c.StartsAt,
		EndsAt:           c.EndsAt,
		IsFree:           c.IsFree,
		PriceCents:       c.PriceCents,
		MaxAttendees:     c.MaxAttendees,
		Status:           c.Status,
		RegistrationOpen: c.RegistrationOpen,
	}
}

// Validate implements Validator.
func (c CreateEventRequest) Validate() []string {
	d := c.draft()
	return problemsOf(d.Validate())
}

// UpdateEventRequest is the request body for PATCH /admin/events/{eventID}. All fields are
// optional; omitted fields are unchanged. current_attendees and slug are accepted by the
// decoder only so that a request carrying them can be rejected with a clear message.
type UpdateEventRequest struct {
	Title             *string             `json:"title"`
	Description       *string             `json:"description"`
	Location          *string             `json:"location"`
	Category          *string             `json:"category"`
	ImageURL          *string             `json:"image_url"`
	StartsAt          *time.Time          `json:"starts_at"`
	EndsAt            *time.Time          `json:"ends_at"`
	IsFree            *bool               `json:"is_free"`
	PriceCents        *int64              `json:"price_cents"`
	MaxAttendees      *int                `json:"max_attendees"`
	ClearMaxAttendees bool                `json:"clear_max_attendees"`
	Status            *domain.EventStatus `json:"status"`
	RegistrationOpen  *bool               `json:"registration_open"`
	CurrentAttendees  *int                `json:"current_attendees,omitempty" swaggerignore:"true"`
	Slug              *string             `json:"slug,omitempty" swaggerignore:"true"`
}

func (u UpdateEventRequest) patch() domain.EventPatch {
	return domain.EventPatch{
		Title:             u.Title,
		Description:       u.Description,
		Location:          u.Location,
		Category:          u.Category,
		ImageURL:          u.ImageURL,
		StartsAt:          u.StartsAt,
		EndsAt:            u.EndsAt,
		IsFree:            u.IsFree,
		PriceCents:        u.PriceCents,
		MaxAttendees:      u.MaxAttendees,
		ClearMaxAttendees: u.ClearMaxAttendees,
		Status:            u.Status,
		RegistrationOpen:  u.RegistrationOpen,
	}
}

// Validate implements Validator.
func (u UpdateEventRequest) Validate() []string {
	var errs []string
	if u.CurrentAttendees != nil {
		errs = append(errs, "current_attendees cannot be set directly; it changes only through registrations")
	}
	if u.Slug != nil {
		errs = append(errs, "slug is immutable")
	}
	p := u.patch()
	return append(errs, problemsOf(p.Validate())...)
}

// ListEventsResponse is the data payload of event listings.
type ListEventsResponse struct {
	Items      []*domain.EventView    `json:"items"`
	Pagination helpers.PaginationMeta `json:"pagination"`
}

// ListEventsSuccessResponse is the success response envelope for event listings (200).
type ListEventsSuccessResponse struct {
	Data  ListEventsResponse `json:"data"`
	Error *helpers.APIError  `json:"error"`
}

// EventSuccessResponse is the success response envelope for a single event.
type EventSuccessResponse struct {
	Data  *domain.EventView `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// DeleteEventResponse is the data payload for DELETE /admin/events/{eventID} (200).
type DeleteEventResponse struct {
	Status string `json:"status"`
}

// DeleteEventSuccessResponse is the success response envelope for DELETE /admin/events/{eventID} (200).
type DeleteEventSuccessResponse struct {
	Data  DeleteEventResponse `json:"data"`
	Error *helpers.APIError   `json:"error"`
}

type EventController struct {
	Logger  *slog.Logger
	Service domain.EventService
}

func NewEventController(logger *slog.Logger, svc domain.EventService) *EventController {
	return &EventController{
		Logger:  logger,
		Service: svc,
	}
}

// eventFilter reads search and upcoming from the query string.
func eventFilter(r *http.Request) domain.EventFilter {
	q := r.URL.Query()
	return domain.EventFilter{
		Search:   strings.TrimSpace(q.Get("search")),
		Upcoming: q.Get("upcoming") == "true",
	}
}

func (c *EventController) writeList(w http.ResponseWriter, r *http.Request, filter domain.EventFilter) {
	params := helpers.ParsePagination(r)
	events, total, err := c.Service.ListEvents(r.Context(), filter, params)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err, "event not found")
		return
	}
	meta := helpers.NewPaginationMeta(params.Page, params.PageSize, total)
	helpers.WriteJSONSuccess(w, http.StatusOK, ListEventsResponse{Items: domain.NewEventViews(events), Pagination: meta})
}

// ListPublicEvents godoc
// @Summary List published events
// @Description Paginated list of published events, soonest first. Each event carries spots_left and is_sold_out.
// @Tags events
// @Produce json
// @Param search query string false "Case-insensitive match on title or slug"
// @Param upcoming query bool false "Only events that have not started yet"
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} controllers.ListEventsSuccessResponse
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events [get]
func (c *EventController) ListPublicEvents(w http.ResponseWriter, r *http.Request) {
	filter := eventFilter(r)
	published := domain.EventStatusPublished
	filter.Status = &published
	c.writeList(w, r, filter)
}

// GetPublicEvent godoc
// @Summary Get a published event
// @Description Looks the event up by id or slug. Events that are not published are reported as not found.
// @Tags events
// @Produce json
// @Param key path string true "Event ID (UUID) or slug"
// @Success 200 {object} controllers.EventSuccessResponse
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{key} [get]
func (c *EventController) GetPublicEvent(w http.ResponseWriter, r *http.Request) {
	event, err := c.Service.GetEvent(r.Context(), r.PathValue("key"))
	if err == nil && event.Status != domain.EventStatusPublished {
		err = domain.ErrNotFound
	}
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err, "event not found")
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, domain.NewEventView(event))
}

// ListEvents godoc
// @Summary List all events
// @Description Paginated list of events in any status. Requires the events:manage capability.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "draft, published, cancelled or completed"
// @Param search query string false "Case-insensitive match on title or slug"
// @Param upcoming query bool false "Only events that have not started yet"
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} controllers.ListEventsSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: validation_failed"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Router /admin/events [get]
func (c *EventController) ListEvents(w http.ResponseWriter, r *http.Request) {
	filter := eventFilter(r)
	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.EventStatus(strings.ToLower(s))
		filter.Status = &status
	}
	c.writeList(w, r, filter)
}

// GetEvent godoc
// @Summary Get any event
// @Description Returns the event in any status. Requires the events:manage capability.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Success 200 {object} controllers.EventSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /admin/events/{eventID} [get]
func (c *EventController) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")
	if !validID(eventID) {
		helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "event not found")
		return
	}
	event, err := c.Service.GetEvent(r.Context(), eventID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err, "event not found")
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, domain.NewEventView(event))
}

// CreateEvent godoc
// @Summary Create an event
// @Description Creates an event. The slug is derived from the title and must be unique; the attendee counter starts at zero. Status defaults to draft.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param event body CreateEventRequest true "Event definition"
// @Success 201 {object} controllers.EventSuccessResponse "data contains the created event"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request or validation_failed"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict (slug taken)"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /admin/events [post]
func (c *EventController) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	event, err := c.Service.CreateEvent(r.Context(), req.draft())
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err, "event not found")
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, domain.NewEventView(event))
}

// UpdateEvent godoc
// @Summary Update an event
// @Description Partially updates an event. current_attendees and slug cannot be changed; a body carrying either is rejected with 400. max_attendees may be lowered below the current count, which leaves the event sold out.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Param body body UpdateEventRequest true "Fields to update (all optional)"
// @Success 200 {object} controllers.EventSuccessResponse "data contains the updated event"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request or validation_failed"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /admin/events/{eventID} [patch]
func (c *EventController) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")
	if !validID(eventID) {
		helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "event not found")
		return
	}
	var req UpdateEventRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	event, err := c.Service.UpdateEvent(r.Context(), eventID, req.patch())
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err, "event not found")
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, domain.NewEventView(event))
}

// DeleteEvent godoc
// @Summary Delete an event
// @Description Closes the event to registrations, then deletes it together with all its registrations.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Success 200 {object} controllers.DeleteEventSuccessResponse "data contains status"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /admin/events/{eventID} [delete]
func (c *EventController) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")
	if !validID(eventID) {
		helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "event not found")
		return
	}
	if err := c.Service.DeleteEvent(r.Context(), eventID); err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err, "event not found")
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, DeleteEventResponse{Status: "deleted"})
}
