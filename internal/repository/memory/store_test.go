package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"communityevents/internal/domain"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func intPtr(n int) *int { return &n }

func seedEvent(t *testing.T, s *Store, slug string, max *int) *domain.Event {
	t.Helper()
	e := &domain.Event{
		Slug: slug, Title: slug, IsFree: true, MaxAttendees: max,
		Status: domain.EventStatusPublished, RegistrationOpen: true, CreatedAt: t0, UpdatedAt: t0,
	}
	require.NoError(t, NewEventRepository(s).Create(context.Background(), e))
	return e
}

func TestEventRepository_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := NewEventRepository(s)

	e := seedEvent(t, s, "pride-walk", intPtr(2))
	require.NotEmpty(t, e.ID)

	got, err := repo.GetBySlug(ctx, " Pride-Walk ")
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)

	got.Title = "mutated"
	again, err := repo.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "pride-walk", again.Title, "returned events must be copies")

	err = repo.Create(ctx, &domain.Event{Slug: "pride-walk", Title: "dup"})
	assert.ErrorIs(t, err, domain.ErrSlugTaken)
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEventRepository_AdjustAttendees(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := NewEventRepository(s)
	e := seedEvent(t, s, "bounded", intPtr(1))

	_, err := repo.AdjustAttendees(ctx, e.ID, -1)
	assert.ErrorIs(t, err, domain.ErrNegativeAttendees)

	got, err := repo.AdjustAttendees(ctx, e.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentAttendees)

	_, err = repo.AdjustAttendees(ctx, e.ID, 1)
	assert.ErrorIs(t, err, domain.ErrCapacityReached)

	_, err = repo.AdjustAttendees(ctx, e.ID, 3)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = repo.AdjustAttendees(ctx, "missing", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEventRepository_AdjustAttendeesConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := NewEventRepository(s)
	e := seedEvent(t, s, "rush", intPtr(5))

	var wg sync.WaitGroup
	var mu sync.Mutex
	claimed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.AdjustAttendees(ctx, e.ID, 1); err == nil {
				mu.Lock()
				claimed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, err := repo.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, claimed)
	assert.Equal(t, 5, got.CurrentAttendees)
}

func TestEventRepository_List(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := NewEventRepository(s)

	later := t0.Add(48 * time.Hour)
	sooner := t0.Add(24 * time.Hour)
	for _, e := range []*domain.Event{
		{Slug: "unscheduled", Title: "Unscheduled", Status: domain.EventStatusPublished, CreatedAt: t0},
		{Slug: "later", Title: "Later picnic", StartsAt: &later, Status: domain.EventStatusPublished, CreatedAt: t0},
		{Slug: "sooner", Title: "Sooner picnic", StartsAt: &sooner, Status: domain.EventStatusPublished, CreatedAt: t0},
		{Slug: "hidden", Title: "Hidden picnic", StartsAt: &sooner, Status: domain.EventStatusDraft, CreatedAt: t0},
	} {
		require.NoError(t, repo.Create(ctx, e))
	}

	published := domain.EventStatusPublished
	events, total, err := repo.List(ctx, domain.EventFilter{Status: &published}, domain.PaginationParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, events, 3)
	assert.Equal(t, []string{"sooner", "later", "unscheduled"}, []string{events[0].Slug, events[1].Slug, events[2].Slug})

	events, total, err = repo.List(ctx, domain.EventFilter{Search: "PICNIC"}, domain.PaginationParams{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, events, 1)
	assert.Equal(t, "later", events[0].Slug)

	events, _, err = repo.List(ctx, domain.EventFilter{Upcoming: true, Now: t0.Add(36 * time.Hour)}, domain.PaginationParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	events, total, err = repo.List(ctx, domain.EventFilter{}, domain.PaginationParams{Page: 9, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Empty(t, events)
}

func TestEventRepository_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := NewEventRepository(s)
	e := seedEvent(t, s, "edit-me", intPtr(10))

	title := "Edited"
	got, err := repo.Update(ctx, e.ID, domain.EventPatch{Title: &title, ClearMaxAttendees: true})
	require.NoError(t, err)
	assert.Equal(t, "Edited", got.Title)
	assert.Nil(t, got.MaxAttendees)
	assert.Equal(t, "edit-me", got.Slug)

	require.NoError(t, repo.Delete(ctx, e.ID))
	assert.ErrorIs(t, repo.Delete(ctx, e.ID), domain.ErrNotFound)
	_, err = repo.GetBySlug(ctx, "edit-me")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEventRepository_ListAttendeeCountersConsistent(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	events := NewEventRepository(s)
	regs := NewRegistrationRepository(s)
	txr := NewTransactor(s)
	e := seedEvent(t, s, "snapshot", nil)

	const writers = 20
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()
			err := txr.WithinTx(ctx, func(ctx context.Context) error {
				if _, err := events.AdjustAttendees(ctx, e.ID, 1); err != nil {
					return err
				}
				code := fmt.Sprintf("PV-SNA-%06d", i)
				return regs.Create(ctx, newReg(e.ID, code, code+"@example.org", domain.RegistrationConfirmed))
			})
			assert.NoError(t, err)
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		counters, err := events.ListAttendeeCounters(ctx)
		require.NoError(t, err)
		require.Len(t, counters, 1)
		require.Equal(t, counters[0].CurrentAttendees, counters[0].ConfirmedCount)
		select {
		case <-done:
			counters, err = events.ListAttendeeCounters(ctx)
			require.NoError(t, err)
			assert.Equal(t, domain.AttendeeCounter{
				EventID: e.ID, Slug: "snapshot", CurrentAttendees: writers, ConfirmedCount: writers,
			}, counters[0])
			return
		default:
		}
	}
}

func TestTransactor_RollsBackEveryWrite(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	events := NewEventRepository(s)
	regs := NewRegistrationRepository(s)
	e := seedEvent(t, s, "atomic", intPtr(3))

	boom := errors.New("boom")
	err := NewTransactor(s).WithinTx(ctx, func(ctx context.Context) error {
		if _, err := events.AdjustAttendees(ctx, e.ID, 1); err != nil {
			return err
		}
		reg := &domain.Registration{EventID: e.ID, TicketCode: "PV-ATO-AAAAAA", Status: domain.RegistrationConfirmed,
			Attendee: domain.Attendee{Name: "A", Email: "a@example.org"}}
		if err := regs.Create(ctx, reg); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := events.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentAttendees)
	_, err = regs.GetByTicketCode(ctx, "PV-ATO-AAAAAA")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTransactor_CommitsAndNests(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	events := NewEventRepository(s)
	e := seedEvent(t, s, "nested", nil)
	tr := NewTransactor(s)

	err := tr.WithinTx(ctx, func(ctx context.Context) error {
		return tr.WithinTx(ctx, func(ctx context.Context) error {
			_, err := events.AdjustAttendees(ctx, e.ID, 1)
			return err
		})
	})
	require.NoError(t, err)

	got, err := events.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentAttendees)
}

func TestTransactor_RollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	events := NewEventRepository(s)
	e := seedEvent(t, s, "panicky", nil)

	assert.Panics(t, func() {
		_ = NewTransactor(s).WithinTx(ctx, func(ctx context.Context) error {
			_, _ = events.AdjustAttendees(ctx, e.ID, 1)
			panic("boom")
		})
	})

	got, err := events.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentAttendees)
}
