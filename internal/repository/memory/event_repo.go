package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"communityevents/internal/domain"
)

type eventRepository struct {
	store *Store
}

func NewEventRepository(s *Store) domain.EventRepository {
	return &eventRepository{store: s}
}

func (r *eventRepository) Create(ctx context.Context, e *domain.Event) error {
	s := r.store
	defer s.lock(ctx)()

	slug := strings.ToLower(e.Slug)
	if _, taken := s.slugs[slug]; taken {
		return domain.ErrSlugTaken
	}
	e.ID = uuid.NewString()
	e.Slug = slug
	s.events[e.ID] = cloneEvent(e)
	s.slugs[slug] = e.ID
	id := e.ID
	s.record(ctx, func() {
		delete(s.events, id)
		delete(s.slugs, slug)
	})
	return nil
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	s := r.store
	defer s.lock(ctx)()

	e, ok := s.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneEvent(e), nil
}

func (r *eventRepository) GetBySlug(ctx context.Context, slug string) (*domain.Event, error) {
	s := r.store
	defer s.lock(ctx)()

	id, ok := s.slugs[strings.ToLower(strings.TrimSpace(slug))]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneEvent(s.events[id]), nil
}

func (r *eventRepository) Update(ctx context.Context, id string, p domain.EventPatch) (*domain.Event, error) {
	s := r.store
	defer s.lock(ctx)()

	old, ok := s.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if p.Empty() {
		return cloneEvent(old), nil
	}
	updated := cloneEvent(old)
	p.Apply(updated)
	updated.UpdatedAt = s.Now()
	s.events[id] = updated
	s.record(ctx, func() { s.events[id] = old })
	return cloneEvent(updated), nil
}

func (r *eventRepository) AdjustAttendees(ctx context.Context, id string, delta int) (*domain.Event, error) {
	if delta != 1 && delta != -1 {
		return nil, domain.NewValidationError([]string{"attendee delta must be +1 or -1"})
	}
	s := r.store
	defer s.lock(ctx)()

	old, ok := s.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if delta > 0 && !old.HasSpot() {
		return nil, domain.ErrCapacityReached
	}
	if delta < 0 && old.CurrentAttendees == 0 {
		return nil, domain.ErrNegativeAttendees
	}
	updated := cloneEvent(old)
	updated.CurrentAttendees += delta
	updated.UpdatedAt = s.Now()
	s.events[id] = updated
	s.record(ctx, func() { s.events[id] = old })
	return cloneEvent(updated), nil
}

func (r *eventRepository) List(ctx context.Context, f domain.EventFilter, params domain.PaginationParams) ([]*domain.Event, int, error) {
	s := r.store
	defer s.lock(ctx)()

	search := strings.ToLower(strings.TrimSpace(f.Search))
	matched := make([]*domain.Event, 0)
	for _, e := range s.events {
		if f.Status != nil && e.Status != *f.Status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(e.Title), search) && !strings.Contains(e.Slug, search) {
			continue
		}
		if f.Upcoming && e.StartsAt != nil && e.StartsAt.Before(f.Now) {
			continue
		}
		matched = append(matched, e)
	}
	// Same order as the SQL listing: starts_at ascending with unscheduled last, newest first on ties.
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch {
		case a.StartsAt != nil && b.StartsAt == nil:
			return true
		case a.StartsAt == nil && b.StartsAt != nil:
			return false
		case a.StartsAt != nil && !a.StartsAt.Equal(*b.StartsAt):
			return a.StartsAt.Before(*b.StartsAt)
		case !a.CreatedAt.Equal(b.CreatedAt):
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	total := len(matched)
	start, end := params.Window(total)
	page := make([]*domain.Event, 0, end-start)
	for _, e := range matched[start:end] {
		page = append(page, cloneEvent(e))
	}
	return page, total, nil
}

func (r *eventRepository) Delete(ctx context.Context, id string) error {
	s := r.store
	defer s.lock(ctx)()

	old, ok := s.events[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(s.events, id)
	delete(s.slugs, old.Slug)
	s.record(ctx, func() {
		s.events[id] = old
		s.slugs[old.Slug] = id
	})
	return nil
}

func (r *eventRepository) ListAttendeeCounters(ctx context.Context) ([]domain.AttendeeCounter, error) {
	s := r.store
	defer s.lock(ctx)()

	events := make([]*domain.Event, 0, len(s.events))
	for _, e := range s.events {
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].CreatedAt.Before(events[j].CreatedAt)
		}
		return events[i].ID < events[j].ID
	})
	confirmed := make(map[string]int)
	for _, reg := range s.regs {
		if reg.Status == domain.RegistrationConfirmed {
			confirmed[reg.EventID]++
		}
	}
	counters := make([]domain.AttendeeCounter, 0, len(events))
	for _, e := range events {
		counters = append(counters, domain.AttendeeCounter{
			EventID:          e.ID,
			Slug:             e.Slug,
			CurrentAttendees: e.CurrentAttendees,
			ConfirmedCount:   confirmed[e.ID],
		})
	}
	return counters, nil
}
