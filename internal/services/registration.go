package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"communityevents/internal/domain"
)

type registrationService struct {
	eventRepo        domain.EventRepository
	registrationRepo domain.RegistrationRepository
	tx               domain.Transactor
	newTicketCode    TicketCodeGenerator
	ticketAttempts   int
	logger           *slog.Logger
	contextTimeout   time.Duration
	now              func() time.Time
}

func NewRegistrationService(eventRepo domain.EventRepository,
	registrationRepo domain.RegistrationRepository,
	tx domain.Transactor,
	newTicketCode TicketCodeGenerator,
	ticketAttempts int,
	logger *slog.Logger,
	timeout time.Duration,
) domain.RegistrationService {
	if newTicketCode == nil {
		newTicketCode = GenerateTicketCode
	}
	if ticketAttempts < 1 {
		ticketAttempts = 1
	}
	return &registrationService{
		eventRepo:        eventRepo,
		registrationRepo: registrationRepo,
		tx:               tx,
		newTicketCode:    newTicketCode,
		ticketAttempts:   ticketAttempts,
		logger:           logger,
		contextTimeout:   timeout,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// RegisterForEvent confirms the attendee when the event's conditional increment claims a
// spot and waitlists them otherwise. The duplicate check, the increment and the insert
// commit or roll back together.
func (s *registrationService) RegisterForEvent(ctx context.Context, eventID string, attendee domain.Attendee) (*domain.RegistrationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	attendee.Normalize()
	if err := attendee.Validate(); err != nil {
		return nil, err
	}

	var result *domain.RegistrationResult
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		event, err := s.eventRepo.GetByID(ctx, eventID)
		if err != nil {
			return fmt.Errorf("get event: %w", err)
		}
		if err := event.AcceptsRegistrations(); err != nil {
			return err
		}

		_, err = s.registrationRepo.GetActiveByEventAndEmail(ctx, eventID, attendee.Email)
		switch {
		case err == nil:
			return domain.ErrDuplicateRegistration
		case !errors.Is(err, domain.ErrNotFound):
			return fmt.Errorf("check existing registration: %w", err)
		}

		status := domain.RegistrationConfirmed
		if _, err := s.eventRepo.AdjustAttendees(ctx, eventID, 1); err != nil {
			if !errors.Is(err, domain.ErrCapacityReached) {
				return fmt.Errorf("claim spot: %w", err)
			}
			status = domain.RegistrationWaitlisted
		}

		reg := domain.NewRegistration(event, attendee, status, s.now())
		if err := s.insertWithTicketCode(ctx, event.Slug, reg); err != nil {
			return err
		}
		result = &domain.RegistrationResult{Registration: reg, Waitlisted: status == domain.RegistrationWaitlisted}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrTicketCodeExhausted) {
			s.logger.ErrorContext(ctx, "ticket code allocation failed", "event_id", eventID, "attempts", s.ticketAttempts)
		}
		return nil, err
	}
	return result, nil
}

// insertWithTicketCode stores reg, drawing a fresh ticket code whenever the previous one
// is already taken.
func (s *registrationService) insertWithTicketCode(ctx context.Context, eventSlug string, reg *domain.Registration) error {
	for attempt := 0; attempt < s.ticketAttempts; attempt++ {
		code, err := s.newTicketCode(eventSlug)
		if err != nil {
			return fmt.Errorf("generate ticket code: %w", err)
		}
		reg.TicketCode = code
		err = s.registrationRepo.Create(ctx, reg)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrDuplicateTicketCode) {
			return fmt.Errorf("create registration: %w", err)
		}
	}
	return domain.ErrTicketCodeExhausted
}

// CancelRegistration moves a confirmed or waitlisted registration to cancelled and, for a
// confirmed one, releases its spot. A waitlisted entry is not promoted into the freed spot.
func (s *registrationService) CancelRegistration(ctx context.Context, registrationID string) (*domain.Registration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	reg, err := s.registrationRepo.GetByID(ctx, registrationID)
	if err != nil {
		return nil, fmt.Errorf("get registration: %w", err)
	}
	if reg.Status == domain.RegistrationCancelled {
		return nil, domain.ErrAlreadyCancelled
	}

	var cancelled *domain.Registration
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		updated, err := s.registrationRepo.UpdateStatus(ctx, reg.ID, reg.Status, domain.RegistrationCancelled, s.now())
		if err != nil {
			return err
		}
		cancelled = updated
		if !reg.Status.CountsAgainstCapacity() {
			return nil
		}
		_, err = s.eventRepo.AdjustAttendees(ctx, reg.EventID, -1)
		if errors.Is(err, domain.ErrNegativeAttendees) {
			// The cancellation stands; the counter stays at 0 for reconciliation to report.
			s.logger.ErrorContext(ctx, "data integrity fault: attendee counter already at zero",
				"event_id", reg.EventID, "registration_id", reg.ID, "err", err)
			return nil
		}
		if err != nil {
			return fmt.Errorf("release spot: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

func (s *registrationService) GetByTicketCode(ctx context.Context, code string) (*domain.Registration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	reg, err := s.registrationRepo.GetByTicketCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

// UpdateRegistration edits the administrator fields. Status changes go through CancelRegistration.
func (s *registrationService) UpdateRegistration(ctx context.Context, registrationID string, patch domain.RegistrationAdminPatch) (*domain.Registration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := patch.Validate(); err != nil {
		return nil, err
	}
	reg, err := s.registrationRepo.UpdateAdminFields(ctx, registrationID, patch)
	if err != nil {
		return nil, fmt.Errorf("update registration: %w", err)
	}
	return reg, nil
}

func (s *registrationService) ListRegistrations(ctx context.Context, filter domain.RegistrationFilter, params domain.PaginationParams) ([]*domain.Registration, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if filter.Status != nil && !filter.Status.Valid() {
		return nil, 0, domain.NewValidationError([]string{"status must be one of confirmed, waitlisted, cancelled"})
	}
	if filter.EventID != "" {
		if _, err := s.eventRepo.GetByID(ctx, filter.EventID); err != nil {
			return nil, 0, fmt.Errorf("get event: %w", err)
		}
	}
	regs, total, err := s.registrationRepo.List(ctx, filter, params)
	if err != nil {
		return nil, 0, fmt.Errorf("list registrations: %w", err)
	}
	return regs, total, nil
}
