package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"communityevents/internal/domain"
)

type reconcileService struct {
	eventRepo      domain.EventRepository
	logger         *slog.Logger
	contextTimeout time.Duration
	now            func() time.Time
}

func NewReconcileService(eventRepo domain.EventRepository,
	logger *slog.Logger,
	timeout time.Duration,
) domain.ReconcileService {
	return &reconcileService{
		eventRepo:      eventRepo,
		logger:         logger,
		contextTimeout: timeout,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Reconcile compares every event's stored counter with its confirmed registrations and
// reports the events where they differ. Counters are left untouched.
func (s *reconcileService) Reconcile(ctx context.Context) (*domain.ReconciliationReport, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	counters, err := s.eventRepo.ListAttendeeCounters(ctx)
	if err != nil {
		return nil, fmt.Errorf("list attendee counters: %w", err)
	}

	report := &domain.ReconciliationReport{
		CheckedEvents: len(counters),
		Mismatches:    []domain.CounterMismatch{},
		RanAt:         s.now(),
	}
	for _, c := range counters {
		n := c.ConfirmedCount
		if n == c.CurrentAttendees {
			continue
		}
		report.Mismatches = append(report.Mismatches, domain.CounterMismatch{
			EventID:          c.EventID,
			Slug:             c.Slug,
			CurrentAttendees: c.CurrentAttendees,
			ConfirmedCount:   n,
		})
		s.logger.ErrorContext(ctx, "data integrity fault: attendee counter mismatch",
			"event_id", c.EventID, "slug", c.Slug, "current_attendees", c.CurrentAttendees, "confirmed", n)
	}
	return report, nil
}

// RunReconciliation calls svc.Reconcile every interval until ctx is done.
func RunReconciliation(ctx context.Context, svc domain.ReconcileService, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := svc.Reconcile(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "reconciliation failed", "err", err)
				continue
			}
			logger.InfoContext(ctx, "reconciliation finished",
				"checked_events", report.CheckedEvents, "mismatches", len(report.Mismatches))
		}
	}
}
