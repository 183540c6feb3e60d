package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"communityevents/internal/domain"
)

var (
	t0          = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	eventColSet = []string{"id", "slug", "title", "description", "location", "category", "image_url", "starts_at", "ends_at",
		"is_free", "price_cents", "max_attendees", "current_attendees", "status", "registration_open", "created_at", "updated_at"}
)

func intPtr(n int) *int { return &n }

// eventRow returns the driver values of a published event with the given counters.
func eventRow(id string, maxAttendees any, current int) []driver.Value {
	return []driver.Value{id, "pride-walk-2024", "Pride Walk 2024", "", "Main St", "march", "", t0, nil,
		true, int64(0), maxAttendees, int64(current), "published", true, t0, t0}
}

func TestEventRepository_Create(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		event   *domain.Event
		mock    func(mock sqlmock.Sqlmock)
		wantID  string
		wantErr error
	}{
		{
			name: "success",
			event: &domain.Event{
				Slug: "pride-walk-2024", Title: "Pride Walk 2024", IsFree: true, MaxAttendees: intPtr(50),
				Status: domain.EventStatusPublished, RegistrationOpen: true, CreatedAt: t0, UpdatedAt: t0,
			},
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO events \(slug, title`).
					WithArgs("pride-walk-2024", "Pride Walk 2024", "", "", "", "", nil, nil, true, int64(0),
						int64(50), "published", true, t0, t0).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("ev-uuid-1"))
			},
			wantID: "ev-uuid-1",
		},
		{
			name:  "slug taken",
			event: &domain.Event{Slug: "pride-walk-2024", Title: "Pride Walk 2024", Status: domain.EventStatusDraft},
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO events`).
					WillReturnError(&pq.Error{Code: pqUniqueViolation, Constraint: constraintEventSlug})
			},
			wantErr: domain.ErrSlugTaken,
		},
		{
			name:  "db error",
			event: &domain.Event{Slug: "x", Title: "X", Status: domain.EventStatusDraft},
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO events`).WillReturnError(sql.ErrConnDone)
			},
			wantErr: sql.ErrConnDone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			tt.mock(mock)
			repo := NewEventRepository(db)
			err = repo.Create(ctx, tt.event)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantID, tt.event.ID)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestEventRepository_GetByID(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		id      string
		mock    func(mock sqlmock.Sqlmock)
		want    *domain.Event
		wantErr error
	}{
		{
			name: "success bounded",
			id:   "ev-1",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT id, slug, title`).
					WithArgs("ev-1").
					WillReturnRows(sqlmock.NewRows(eventColSet).AddRow(eventRow("ev-1", int64(10), 3)...))
			},
			want: &domain.Event{
				ID: "ev-1", Slug: "pride-walk-2024", Title: "Pride Walk 2024", Location: "Main St", Category: "march",
				StartsAt: &t0, IsFree: true, MaxAttendees: intPtr(10), CurrentAttendees: 3,
				Status: domain.EventStatusPublished, RegistrationOpen: true, CreatedAt: t0, UpdatedAt: t0,
			},
		},
		{
			name: "not found",
			id:   "ev-missing",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT id, slug, title`).
					WithArgs("ev-missing").
					WillReturnError(sql.ErrNoRows)
			},
			wantErr: domain.ErrNotFound,
		},
		{
			name: "malformed uuid is not found",
			id:   "nope",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT id, slug, title`).
					WithArgs("nope").
					WillReturnError(&pq.Error{Code: pqInvalidTextRepresentation})
			},
			wantErr: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			tt.mock(mock)
			repo := NewEventRepository(db)
			got, err := repo.GetByID(ctx, tt.id)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.Nil(t, got)
				require.NoError(t, mock.ExpectationsWereMet())
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestEventRepository_AdjustAttendees(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		delta       int
		mock        func(mock sqlmock.Sqlmock)
		wantCurrent int
		wantErr     error
	}{
		{
			name:  "increment claims a spot",
			delta: 1,
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`UPDATE events SET current_attendees = current_attendees \+ 1.*max_attendees IS NULL OR current_attendees < max_attendees`).
					WithArgs("ev-1").
					WillReturnRows(sqlmock.NewRows(eventColSet).AddRow(eventRow("ev-1", int64(2), 2)...))
			},
			wantCurrent: 2,
		},
		{
			name:  "increment on a full event",
			delta: 1,
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`UPDATE events SET current_attendees = current_attendees \+ 1`).
					WithArgs("ev-1").
					WillReturnRows(sqlmock.NewRows(eventColSet))
				mock.ExpectQuery(`SELECT EXISTS`).
					WithArgs("ev-1").
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
			},
			wantErr: domain.ErrCapacityReached,
		},
		{
			name:  "increment on a missing event",
			delta: 1,
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`UPDATE events SET current_attendees = current_attendees \+ 1`).
					WithArgs("ev-1").
					WillReturnRows(sqlmock.NewRows(eventColSet))
				mock.ExpectQuery(`SELECT EXISTS`).
					WithArgs("ev-1").
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
			},
			wantErr: domain.ErrNotFound,
		},
		{
			name:  "decrement releases a spot",
			delta: -1,
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`UPDATE events SET current_attendees = current_attendees - 1.*current_attendees > 0`).
					WithArgs("ev-1").
					WillReturnRows(sqlmock.NewRows(eventColSet).AddRow(eventRow("ev-1", nil, 0)...))
			},
			wantCurrent: 0,
		},
		{
			name:  "decrement at zero is a data integrity fault",
			delta: -1,
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`UPDATE events SET current_attendees = current_attendees - 1`).
					WithArgs("ev-1").
					WillReturnRows(sqlmock.NewRows(eventColSet))
				mock.ExpectQuery(`SELECT EXISTS`).
					WithArgs("ev-1").
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
			},
			wantErr: domain.ErrDataIntegrity,
		},
		{
			name:    "other deltas are rejected",
			delta:   2,
			mock:    func(mock sqlmock.Sqlmock) {},
			wantErr: domain.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			tt.mock(mock)
			repo := NewEventRepository(db)
			got, err := repo.AdjustAttendees(ctx, "ev-1", tt.delta)
			require.NoError(t, mock.ExpectationsWereMet())
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.Nil(t, got)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantCurrent, got.CurrentAttendees)
		})
	}
}

func TestEventRepository_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("writes only patched columns", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		title := "Pride Walk 2025"
		open := false
		mock.ExpectQuery(`UPDATE events SET updated_at = NOW\(\), title = \$1, max_attendees = NULL, registration_open = \$2 WHERE id = \$3 RETURNING`).
			WithArgs("Pride Walk 2025", false, "ev-1").
			WillReturnRows(sqlmock.NewRows(eventColSet).AddRow(eventRow("ev-1", nil, 4)...))

		repo := NewEventRepository(db)
		got, err := repo.Update(ctx, "ev-1", domain.EventPatch{Title: &title, RegistrationOpen: &open, ClearMaxAttendees: true})
		require.NoError(t, err)
		require.Equal(t, 4, got.CurrentAttendees)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty patch reads the row", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT id, slug, title`).
			WithArgs("ev-1").
			WillReturnRows(sqlmock.NewRows(eventColSet).AddRow(eventRow("ev-1", nil, 0)...))

		repo := NewEventRepository(db)
		_, err = repo.Update(ctx, "ev-1", domain.EventPatch{})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing event", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		title := "x"
		mock.ExpectQuery(`UPDATE events SET`).WillReturnError(sql.ErrNoRows)

		repo := NewEventRepository(db)
		_, err = repo.Update(ctx, "ev-1", domain.EventPatch{Title: &title})
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestEventRepository_List(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	status := domain.EventStatusPublished
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM events WHERE status = \$1 AND \(title ILIKE \$2 OR slug ILIKE \$2\)`).
		WithArgs("published", "%pride\\_walk%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))
	mock.ExpectQuery(`SELECT id, slug, .* FROM events WHERE .* ORDER BY starts_at ASC NULLS LAST, created_at DESC LIMIT \$3 OFFSET \$4`).
		WithArgs("published", "%pride\\_walk%", 20, 20).
		WillReturnRows(sqlmock.NewRows(eventColSet).AddRow(eventRow("ev-21", nil, 0)...))

	repo := NewEventRepository(db)
	events, total, err := repo.List(ctx, domain.EventFilter{Status: &status, Search: "pride_walk"}, domain.PaginationParams{Page: 2, PageSize: 20})
	require.NoError(t, err)
	require.Equal(t, 21, total)
	require.Len(t, events, 1)
	require.Equal(t, "ev-21", events[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepository_Delete(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		rows    int64
		wantErr error
	}{
		{"deleted", 1, nil},
		{"not found", 0, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectExec(`DELETE FROM events WHERE id = \$1`).
				WithArgs("ev-1").
				WillReturnResult(sqlmock.NewResult(0, tt.rows))

			err = NewEventRepository(db).Delete(ctx, "ev-1")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestEventRepository_ListAttendeeCounters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// One statement, so the counter and the confirmed count share a snapshot.
	mock.ExpectQuery(`SELECT e.id, e.slug, e.current_attendees,\s+COUNT\(r.id\) FILTER \(WHERE r.status = 'confirmed'\)\s+` +
		`FROM events e\s+LEFT JOIN registrations r ON r.event_id = e.id\s+GROUP BY e.id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "current_attendees", "confirmed"}).
			AddRow("ev-1", "a", 2, 2).
			AddRow("ev-2", "b", 0, 1))

	got, err := NewEventRepository(db).ListAttendeeCounters(context.Background())
	require.NoError(t, err)
	require.Equal(t, []domain.AttendeeCounter{
		{EventID: "ev-1", Slug: "a", CurrentAttendees: 2, ConfirmedCount: 2},
		{EventID: "ev-2", Slug: "b", ConfirmedCount: 1},
	}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}
