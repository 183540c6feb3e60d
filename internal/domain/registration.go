package domain

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// RegistrationStatus is the lifecycle state of a registration.
type RegistrationStatus string

const (
	RegistrationConfirmed  RegistrationStatus = "confirmed"
	RegistrationWaitlisted RegistrationStatus = "waitlisted"
	RegistrationCancelled  RegistrationStatus = "cancelled"
)

// Valid reports whether s is one of the known registration statuses.
func (s RegistrationStatus) Valid() bool {
	switch s {
	case RegistrationConfirmed, RegistrationWaitlisted, RegistrationCancelled:
		return true
	}
	return false
}

// registrationTransitions is the complete transition table. The empty status is a
// registration that does not exist yet. Waitlisted entries are never promoted here.
var registrationTransitions = map[RegistrationStatus][]RegistrationStatus{
	"":                     {RegistrationConfirmed, RegistrationWaitlisted},
	RegistrationConfirmed:  {RegistrationCancelled},
	RegistrationWaitlisted: {RegistrationCancelled},
}

// CanTransitionTo reports whether the table allows moving from s to next.
func (s RegistrationStatus) CanTransitionTo(next RegistrationStatus) bool {
	for _, allowed := range registrationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CountsAgainstCapacity reports whether a registration in this status holds a seat.
func (s RegistrationStatus) CountsAgainstCapacity() bool {
	return s == RegistrationConfirmed
}

// PaymentStatus records the payment state; no settlement happens in this service.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Valid reports whether s is one of the known payment statuses.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// Attendee field limits.
const (
	MaxAttendeeNameLen       = 120
	MaxAccessibilityNotesLen = 1000
	MaxRegistrationNotesLen  = 2000
)

var (
	emailRegexp = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phoneRegexp = regexp.MustCompile(`^[0-9+\-() ]{7,20}$`)
)

// Attendee holds the person-level fields of a registration. None of them affect capacity.
type Attendee struct {
	Name               string `json:"name"`
	Email              string `json:"email"`
	Phone              string `json:"phone"`
	AccessibilityNotes string `json:"accessibility_notes"`
}

// Normalize trims every field and lowercases the email.
func (a *Attendee) Normalize() {
	a.Name = strings.TrimSpace(a.Name)
	a.Email = NormalizeEmail(a.Email)
	a.Phone = strings.TrimSpace(a.Phone)
	a.AccessibilityNotes = strings.TrimSpace(a.AccessibilityNotes)
}

// Problems returns one message per invalid field; nil means valid.
func (a Attendee) Problems() []string {
	var problems []string
	name := strings.TrimSpace(a.Name)
	if name == "" {
		problems = append(problems, "name is required")
	} else if len(name) > MaxAttendeeNameLen {
		problems = append(problems, "name is too long")
	}
	email := NormalizeEmail(a.Email)
	if email == "" {
		problems = append(problems, "email is required")
	} else if !emailRegexp.MatchString(email) {
		problems = append(problems, "invalid email format")
	}
	if phone := strings.TrimSpace(a.Phone); phone != "" && !phoneRegexp.MatchString(phone) {
		problems = append(problems, "invalid phone format")
	}
	if len(strings.TrimSpace(a.AccessibilityNotes)) > MaxAccessibilityNotesLen {
		problems = append(problems, "accessibility_notes is too long")
	}
	return problems
}

// Validate returns a *ValidationError when any field is invalid.
func (a Attendee) Validate() error {
	return NewValidationError(a.Problems())
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Registration is one attempt to claim a seat at an event.
// swagger:model Registration
type Registration struct {
	ID         string `json:"id"`
	EventID    string `json:"event_id"`
	TicketCode string `json:"ticket_code"`
	Attendee
	Notes         string             `json:"notes"`
	Status        RegistrationStatus `json:"status"`
	PaymentStatus PaymentStatus      `json:"payment_status"`
	AmountCents   int64              `json:"amount_cents"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	CancelledAt   *time.Time         `json:"cancelled_at"`
}

// PublicRegistration is what unauthenticated callers see of a registration. Contact
// details and administrator notes are only returned on the admin routes.
// swagger:model PublicRegistration
type PublicRegistration struct {
	ID            string             `json:"id"`
	EventID       string             `json:"event_id"`
	TicketCode    string             `json:"ticket_code"`
	Status        RegistrationStatus `json:"status"`
	PaymentStatus PaymentStatus      `json:"payment_status"`
	AmountCents   int64              `json:"amount_cents"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	CancelledAt   *time.Time         `json:"cancelled_at"`
}

// NewPublicRegistration projects r onto its public fields.
func NewPublicRegistration(r *Registration) *PublicRegistration {
	return &PublicRegistration{
		ID:            r.ID,
		EventID:       r.EventID,
		TicketCode:    r.TicketCode,
		Status:        r.Status,
		PaymentStatus: r.PaymentStatus,
		AmountCents:   r.AmountCents,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		CancelledAt:   r.CancelledAt,
	}
}

// NewRegistration builds a registration for event in the given initial status.
// Free events are always recorded as paid with a zero amount.
func NewRegistration(event *Event, attendee Attendee, status RegistrationStatus, now time.Time) *Registration {
	reg := &Registration{
		EventID:   event.ID,
		Attendee:  attendee,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if event.IsFree {
		reg.PaymentStatus = PaymentPaid
		reg.AmountCents = 0
	} else {
		reg.PaymentStatus = PaymentPending
		reg.AmountCents = event.PriceCents
	}
	return reg
}

// RegistrationResult is a created registration plus whether it landed on the waitlist.
// swagger:model RegistrationResult
type RegistrationResult struct {
	Registration *Registration `json:"registration"`
	Waitlisted   bool          `json:"waitlisted"`
}

// RegistrationAdminPatch holds the fields an administrator may edit. Neither affects capacity.
type RegistrationAdminPatch struct {
	Notes         *string
	PaymentStatus *PaymentStatus
}

// Validate returns a *ValidationError when any field is invalid.
func (p RegistrationAdminPatch) Validate() error {
	var problems []string
	if p.Notes == nil && p.PaymentStatus == nil {
		problems = append(problems, "nothing to update")
	}
	if p.Notes != nil && len(*p.Notes) > MaxRegistrationNotesLen {
		problems = append(problems, "notes is too long")
	}
	if p.PaymentStatus != nil && !p.PaymentStatus.Valid() {
		problems = append(problems, "payment_status must be one of pending, paid, failed, refunded")
	}
	return NewValidationError(problems)
}

// RegistrationFilter narrows registration listings.
type RegistrationFilter struct {
	EventID string
	Status  *RegistrationStatus
	Search  string
}

// RegistrationRepository defines storage operations for registrations.
type RegistrationRepository interface {
	// Create stores reg and sets its ID. Returns ErrDuplicateTicketCode when the ticket
	// code is taken and ErrDuplicateRegistration when (event, email) already has an
	// active registration.
	Create(ctx context.Context, reg *Registration) error
	GetByID(ctx context.Context, id string) (*Registration, error)
	GetByTicketCode(ctx context.Context, code string) (*Registration, error)
	// GetActiveByEventAndEmail returns the non-cancelled registration for the pair, if any.
	GetActiveByEventAndEmail(ctx context.Context, eventID, email string) (*Registration, error)
	// UpdateStatus moves the registration from `from` to `to` only if it is still in `from`.
	// Returns ErrInvalidTransition when the stored status differs.
	UpdateStatus(ctx context.Context, id string, from, to RegistrationStatus, at time.Time) (*Registration, error)
	UpdateAdminFields(ctx context.Context, id string, patch RegistrationAdminPatch) (*Registration, error)
	List(ctx context.Context, filter RegistrationFilter, params PaginationParams) ([]*Registration, int, error)
	DeleteByEventID(ctx context.Context, eventID string) (int, error)
}

// RegistrationService is the registration engine plus its listing views.
type RegistrationService interface {
	RegisterForEvent(ctx context.Context, eventID string, attendee Attendee) (*RegistrationResult, error)
	CancelRegistration(ctx context.Context, registrationID string) (*Registration, error)
	GetByTicketCode(ctx context.Context, code string) (*Registration, error)
	UpdateRegistration(ctx context.Context, registrationID string, patch RegistrationAdminPatch) (*Registration, error)
	ListRegistrations(ctx context.Context, filter RegistrationFilter, params PaginationParams) ([]*Registration, int, error)
}
