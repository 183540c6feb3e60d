package services

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"communityevents/internal/domain"
	"communityevents/internal/repository/memory"
)

const testTimeout = 5 * time.Second

// testEnv wires the services to an in-memory store.
type testEnv struct {
	events        domain.EventRepository
	registrations domain.RegistrationRepository
	tx            domain.Transactor
	logs          *bytes.Buffer
	logger        *slog.Logger
}

func newTestEnv() *testEnv {
	store := memory.NewStore()
	logs := &bytes.Buffer{}
	return &testEnv{
		events:        memory.NewEventRepository(store),
		registrations: memory.NewRegistrationRepository(store),
		tx:            memory.NewTransactor(store),
		logs:          logs,
		logger:        slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (e *testEnv) eventService() domain.EventService {
	return NewEventService(e.events, e.registrations, e.tx, e.logger, testTimeout)
}

func (e *testEnv) registrationService() domain.RegistrationService {
	return NewRegistrationService(e.events, e.registrations, e.tx, GenerateTicketCode, 5, e.logger, testTimeout)
}

// publishedEvent creates a published, open event with the given capacity.
func (e *testEnv) publishedEvent(t *testing.T, title string, max *int, free bool, priceCents int64) *domain.Event {
	t.Helper()
	ev, err := e.eventService().CreateEvent(context.Background(), domain.EventDraft{
		Title:            title,
		IsFree:           free,
		PriceCents:       priceCents,
		MaxAttendees:     max,
		Status:           domain.EventStatusPublished,
		RegistrationOpen: true,
	})
	require.NoError(t, err)
	return ev
}

func (e *testEnv) currentAttendees(t *testing.T, eventID string) int {
	t.Helper()
	ev, err := e.events.GetByID(context.Background(), eventID)
	require.NoError(t, err)
	return ev.CurrentAttendees
}

// confirmedCount counts confirmed registrations of eventID straight from the store.
func (e *testEnv) confirmedCount(t *testing.T, eventID string) int {
	t.Helper()
	confirmed := domain.RegistrationConfirmed
	_, total, err := e.registrations.List(context.Background(),
		domain.RegistrationFilter{EventID: eventID, Status: &confirmed}, domain.PaginationParams{Page: 1, PageSize: 1})
	require.NoError(t, err)
	return total
}

func intPtr(n int) *int { return &n }

func attendee(name, email string) domain.Attendee {
	return domain.Attendee{Name: name, Email: email}
}
