package domain

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusPublished EventStatus = "published"
	EventStatusCancelled EventStatus = "cancelled"
	EventStatusCompleted EventStatus = "completed"
)

// Valid reports whether s is one of the known event statuses.
func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusDraft, EventStatusPublished, EventStatusCancelled, EventStatusCompleted:
		return true
	}
	return false
}

// Field limits for events.
const (
	MaxEventTitleLen       = 200
	MaxEventDescriptionLen = 10000
	MaxEventLocationLen    = 300
	MaxEventCategoryLen    = 60
)

// Event represents a community event and its live capacity counter.
// swagger:model Event
type Event struct {
	ID               string      `json:"id"`
	Slug             string      `json:"slug"`
	Title            string      `json:"title"`
	Description      string      `json:"description"`
	Location         string      `json:"location"`
	Category         string      `json:"category"`
	ImageURL         string      `json:"image_url"`
	StartsAt         *time.Time  `json:"starts_at"`
	EndsAt           *time.Time  `json:"ends_at"`
	IsFree           bool        `json:"is_free"`
	PriceCents       int64       `json:"price_cents"`
	MaxAttendees     *int        `json:"max_attendees"`
	CurrentAttendees int         `json:"current_attendees"`
	Status           EventStatus `json:"status"`
	RegistrationOpen bool        `json:"registration_open"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// Bounded reports whether the event has a capacity limit.
func (e *Event) Bounded() bool {
	return e.MaxAttendees != nil
}

// SpotsLeft returns the remaining confirmed spots, or nil when capacity is unbounded.
// An administrator may shrink capacity below the current count; the result is floored at 0.
func (e *Event) SpotsLeft() *int {
	if !e.Bounded() {
		return nil
	}
	left := *e.MaxAttendees - e.CurrentAttendees
	if left < 0 {
		left = 0
	}
	return &left
}

// IsSoldOut reports whether a bounded event has no confirmed spot left.
func (e *Event) IsSoldOut() bool {
	if !e.Bounded() {
		return false
	}
	return e.CurrentAttendees >= *e.MaxAttendees
}

// HasSpot reports whether one more confirmed registration fits.
func (e *Event) HasSpot() bool {
	return !e.Bounded() || e.CurrentAttendees < *e.MaxAttendees
}

// AcceptsRegistrations reports whether a public registration may be attempted.
func (e *Event) AcceptsRegistrations() error {
	if e.Status != EventStatusPublished {
		return ErrEventNotPublished
	}
	if !e.RegistrationOpen {
		return ErrRegistrationClosed
	}
	return nil
}

// EventView is an Event with its derived capacity fields, as returned to callers.
// swagger:model EventView
type EventView struct {
	*Event
	SpotsLeft *int `json:"spots_left"`
	IsSoldOut bool `json:"is_sold_out"`
}

// NewEventView wraps e with its derived fields.
func NewEventView(e *Event) *EventView {
	return &EventView{Event: e, SpotsLeft: e.SpotsLeft(), IsSoldOut: e.IsSoldOut()}
}

// NewEventViews wraps every event in events.
func NewEventViews(events []*Event) []*EventView {
	out := make([]*EventView, 0, len(events))
	for _, e := range events {
		out = append(out, NewEventView(e))
	}
	return out
}

// EventDraft holds the administrator-supplied fields of a new event.
type EventDraft struct {
	Title            string
	Description      string
	Location         string
	Category         string
	ImageURL         string
	StartsAt         *time.Time
	EndsAt           *time.Time
	IsFree           bool
	PriceCents       int64
	MaxAttendees     *int
	Status           EventStatus
	RegistrationOpen bool
}

// Validate checks the draft and returns a *ValidationError listing every problem.
func (d *EventDraft) Validate() error {
	var problems []string
	title := strings.TrimSpace(d.Title)
	if title == "" {
		problems = append(problems, "title is required")
	} else if len(title) > MaxEventTitleLen {
		problems = append(problems, "title is too long")
	}
	problems = append(problems, validateEventText(&d.Description, &d.Location, &d.Category, &d.ImageURL)...)
	if d.StartsAt != nil && d.EndsAt != nil && d.EndsAt.Before(*d.StartsAt) {
		problems = append(problems, "ends_at must not be before starts_at")
	}
	if d.PriceCents < 0 {
		problems = append(problems, "price_cents must not be negative")
	}
	if d.MaxAttendees != nil && *d.MaxAttendees < 1 {
		problems = append(problems, "max_attendees must be at least 1")
	}
	if d.Status != "" && !d.Status.Valid() {
		problems = append(problems, "status must be one of draft, published, cancelled, completed")
	}
	return NewValidationError(problems)
}

// EventPatch is a partial update of an event. It has no attendee counter
// and no slug: the counter moves only through AdjustAttendees and the slug is immutable.
type EventPatch struct {
	Title             *string
	Description       *string
	Location          *string
	Category          *string
	ImageURL          *string
	StartsAt          *time.Time
	EndsAt            *time.Time
	IsFree            *bool
	PriceCents        *int64
	MaxAttendees      *int
	ClearMaxAttendees bool
	Status            *EventStatus
	RegistrationOpen  *bool
}

// Empty reports whether the patch changes nothing.
func (p *EventPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Location == nil && p.Category == nil &&
		p.ImageURL == nil && p.StartsAt == nil && p.EndsAt == nil && p.IsFree == nil &&
		p.PriceCents == nil && p.MaxAttendees == nil && !p.ClearMaxAttendees &&
		p.Status == nil && p.RegistrationOpen == nil
}

// Validate checks the patch and returns a *ValidationError listing every problem.
func (p *EventPatch) Validate() error {
	var problems []string
	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		if t == "" {
			problems = append(problems, "title must not be empty")
		} else if len(t) > MaxEventTitleLen {
			problems = append(problems, "title is too long")
		}
		*p.Title = t
	}
	problems = append(problems, validateEventText(p.Description, p.Location, p.Category, p.ImageURL)...)
	if p.StartsAt != nil && p.EndsAt != nil && p.EndsAt.Before(*p.StartsAt) {
		problems = append(problems, "ends_at must not be before starts_at")
	}
	if p.PriceCents != nil && *p.PriceCents < 0 {
		problems = append(problems, "price_cents must not be negative")
	}
	if p.MaxAttendees != nil && *p.MaxAttendees < 1 {
		problems = append(problems, "max_attendees must be at least 1")
	}
	if p.MaxAttendees != nil && p.ClearMaxAttendees {
		problems = append(problems, "max_attendees cannot be set and cleared at once")
	}
	if p.Status != nil && !p.Status.Valid() {
		problems = append(problems, "status must be one of draft, published, cancelled, completed")
	}
	return NewValidationError(problems)
}

// Apply copies the patch onto e. Counter and slug are never touched.
func (p *EventPatch) Apply(e *Event) {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Location != nil {
		e.Location = *p.Location
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.ImageURL != nil {
		e.ImageURL = *p.ImageURL
	}
	if p.StartsAt != nil {
		t := *p.StartsAt
		e.StartsAt = &t
	}
	if p.EndsAt != nil {
		t := *p.EndsAt
		e.EndsAt = &t
	}
	if p.IsFree != nil {
		e.IsFree = *p.IsFree
	}
	if p.PriceCents != nil {
		e.PriceCents = *p.PriceCents
	}
	if e.IsFree {
		e.PriceCents = 0
	}
	if p.MaxAttendees != nil {
		n := *p.MaxAttendees
		e.MaxAttendees = &n
	}
	if p.ClearMaxAttendees {
		e.MaxAttendees = nil
	}
	if p.Status != nil {
		e.Status = *p.Status
	}
	if p.RegistrationOpen != nil {
		e.RegistrationOpen = *p.RegistrationOpen
	}
}

func validateEventText(description, location, category, imageURL *string) []string {
	var problems []string
	if description != nil && len(*description) > MaxEventDescriptionLen {
		problems = append(problems, "description is too long")
	}
	if location != nil && len(*location) > MaxEventLocationLen {
		problems = append(problems, "location is too long")
	}
	if category != nil && len(*category) > MaxEventCategoryLen {
		problems = append(problems, "category is too long")
	}
	if imageURL != nil && *imageURL != "" {
		u, err := url.Parse(*imageURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			problems = append(problems, "image_url must be an http(s) URL")
		}
	}
	return problems
}

// EventFilter narrows event listings.
type EventFilter struct {
	Status   *EventStatus
	Search   string
	Upcoming bool
	Now      time.Time
}

// AttendeeCounter pairs an event's stored counter with its confirmed registrations,
// both read from the same snapshot.
type AttendeeCounter struct {
	EventID          string
	Slug             string
	CurrentAttendees int
	ConfirmedCount   int
}

// EventRepository defines the interface for event storage
type EventRepository interface {
	// Create stores e and sets its ID. Returns ErrSlugTaken when the slug is in use.
	Create(ctx context.Context, e *Event) error
	GetByID(ctx context.Context, id string) (*Event, error)
	GetBySlug(ctx context.Context, slug string) (*Event, error)
	// Update applies patch and returns the stored event.
	Update(ctx context.Context, id string, patch EventPatch) (*Event, error)
	// AdjustAttendees atomically moves the counter by delta (+1 or -1).
	// +1 fails with ErrCapacityReached when the event is bounded and full;
	// -1 fails with ErrNegativeAttendees when the counter is already 0.
	AdjustAttendees(ctx context.Context, id string, delta int) (*Event, error)
	List(ctx context.Context, filter EventFilter, params PaginationParams) ([]*Event, int, error)
	Delete(ctx context.Context, id string) error
	// ListAttendeeCounters returns every event's counter together with the number of its
	// confirmed registrations, taken in one read so concurrent writes cannot skew the pair.
	ListAttendeeCounters(ctx context.Context) ([]AttendeeCounter, error)
}

// EventService defines event administration and public browsing.
type EventService interface {
	CreateEvent(ctx context.Context, draft EventDraft) (*Event, error)
	// GetEvent resolves key as an event ID (UUID) or, failing that, a slug.
	GetEvent(ctx context.Context, key string) (*Event, error)
	UpdateEvent(ctx context.Context, id string, patch EventPatch) (*Event, error)
	DeleteEvent(ctx context.Context, id string) error
	ListEvents(ctx context.Context, filter EventFilter, params PaginationParams) ([]*Event, int, error)
}
