package domain

import (
	"context"
	"time"
)

// CounterMismatch is an event whose stored counter differs from its confirmed registrations.
// swagger:model CounterMismatch
type CounterMismatch struct {
	EventID          string `json:"event_id"`
	Slug             string `json:"slug"`
	CurrentAttendees int    `json:"current_attendees"`
	ConfirmedCount   int    `json:"confirmed_count"`
}

// ReconciliationReport is the outcome of one reconciliation pass.
// swagger:model ReconciliationReport
type ReconciliationReport struct {
	CheckedEvents int               `json:"checked_events"`
	Mismatches    []CounterMismatch `json:"mismatches"`
	RanAt         time.Time         `json:"ran_at"`
}

// ReconcileService recomputes attendee counters from registrations and reports mismatches.
// It never writes.
type ReconcileService interface {
	Reconcile(ctx context.Context) (*ReconciliationReport, error)
}
