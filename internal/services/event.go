package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"communityevents/internal/domain"
)

type eventService struct {
	eventRepo        domain.EventRepository
	registrationRepo domain.RegistrationRepository
	tx               domain.Transactor
	logger           *slog.Logger
	contextTimeout   time.Duration
	now              func() time.Time
}

func NewEventService(eventRepo domain.EventRepository,
	registrationRepo domain.RegistrationRepository,
	tx domain.Transactor,
	logger *slog.Logger,
	timeout time.Duration,
) domain.EventService {
	return &eventService{
		eventRepo:        eventRepo,
		registrationRepo: registrationRepo,
		tx:               tx,
		logger:           logger,
		contextTimeout:   timeout,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (s *eventService) CreateEvent(ctx context.Context, draft domain.EventDraft) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := draft.Validate(); err != nil {
		return nil, err
	}
	slug := Slugify(draft.Title)
	if slug == "" {
		return nil, domain.NewValidationError([]string{"title must contain at least one letter or digit"})
	}

	now := s.now()
	event := &domain.Event{
		Slug:             slug,
		Title:            strings.TrimSpace(draft.Title),
		Description:      draft.Description,
		Location:         draft.Location,
		Category:         draft.Category,
		ImageURL:         draft.ImageURL,
		StartsAt:         draft.StartsAt,
		EndsAt:           draft.EndsAt,
		IsFree:           draft.IsFree,
		PriceCents:       draft.PriceCents,
		MaxAttendees:     draft.MaxAttendees,
		CurrentAttendees: 0,
		Status:           draft.Status,
		RegistrationOpen: draft.RegistrationOpen,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if event.Status == "" {
		event.Status = domain.EventStatusDraft
	}
	if event.IsFree {
		event.PriceCents = 0
	}

	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return event, nil
}

// GetEvent resolves key as an event ID when it parses as a UUID, otherwise as a slug.
func (s *eventService) GetEvent(ctx context.Context, key string) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	key = strings.TrimSpace(key)
	if key == "" {
		return nil, domain.ErrNotFound
	}
	var (
		event *domain.Event
		err   error
	)
	if _, parseErr := uuid.Parse(key); parseErr == nil {
		event, err = s.eventRepo.GetByID(ctx, key)
	} else {
		event, err = s.eventRepo.GetBySlug(ctx, key)
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

// UpdateEvent validates patch against the stored event and applies it. The attendee
// counter and the slug are never part of a patch.
func (s *eventService) UpdateEvent(ctx context.Context, id string, patch domain.EventPatch) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := patch.Validate(); err != nil {
		return nil, err
	}
	current, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if patch.Empty() {
		return current, nil
	}

	candidate := *current
	patch.Apply(&candidate)
	if candidate.StartsAt != nil && candidate.EndsAt != nil && candidate.EndsAt.Before(*candidate.StartsAt) {
		return nil, domain.NewValidationError([]string{"ends_at must not be before starts_at"})
	}
	if candidate.IsFree && (current.PriceCents != 0 || patch.PriceCents != nil) {
		zero := int64(0)
		patch.PriceCents = &zero
	}
	if candidate.Bounded() && *candidate.MaxAttendees < current.CurrentAttendees {
		s.logger.WarnContext(ctx, "capacity reduced below confirmed attendees",
			"event_id", id, "max_attendees", *candidate.MaxAttendees, "current_attendees", current.CurrentAttendees)
	}

	updated, err := s.eventRepo.Update(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return updated, nil
}

// DeleteEvent closes the event to registrations first, then removes its registrations
// and the event in one transaction, so a registration that slips in between is removed too.
func (s *eventService) DeleteEvent(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get event: %w", err)
	}
	if event.Status != domain.EventStatusCancelled || event.RegistrationOpen {
		cancelled := domain.EventStatusCancelled
		closed := false
		if _, err := s.eventRepo.Update(ctx, id, domain.EventPatch{Status: &cancelled, RegistrationOpen: &closed}); err != nil {
			return fmt.Errorf("close event: %w", err)
		}
	}

	var removed int
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		n, err := s.registrationRepo.DeleteByEventID(ctx, id)
		if err != nil {
			return fmt.Errorf("delete registrations: %w", err)
		}
		removed = n
		if err := s.eventRepo.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete event: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "event deleted", "event_id", id, "slug", event.Slug, "registrations_removed", removed)
	return nil
}

func (s *eventService) ListEvents(ctx context.Context, filter domain.EventFilter, params domain.PaginationParams) ([]*domain.Event, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if filter.Status != nil && !filter.Status.Valid() {
		return nil, 0, domain.NewValidationError([]string{"status must be one of draft, published, cancelled, completed"})
	}
	if filter.Upcoming && filter.Now.IsZero() {
		filter.Now = s.now()
	}
	events, total, err := s.eventRepo.List(ctx, filter, params)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	return events, total, nil
}
