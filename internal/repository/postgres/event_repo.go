package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"communityevents/internal/domain"
)

const eventColumns = `id, slug, title, description, location, category, image_url, starts_at, ends_at,
	is_free, price_cents, max_attendees, current_attendees, status, registration_open, created_at, updated_at`

type eventRepository struct {
	DB *sql.DB
}

func NewEventRepository(db *sql.DB) domain.EventRepository {
	return &eventRepository{
		DB: db,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*domain.Event, error) {
	e := &domain.Event{}
	var startsNull, endsNull sql.NullTime
	var maxNull sql.NullInt64
	var status string
	err := row.Scan(
		&e.ID, &e.Slug, &e.Title, &e.Description, &e.Location, &e.Category, &e.ImageURL,
		&startsNull, &endsNull, &e.IsFree, &e.PriceCents, &maxNull, &e.CurrentAttendees,
		&status, &e.RegistrationOpen, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Status = domain.EventStatus(status)
	if startsNull.Valid {
		e.StartsAt = &startsNull.Time
	}
	if endsNull.Valid {
		e.EndsAt = &endsNull.Time
	}
	if maxNull.Valid {
		n := int(maxNull.Int64)
		e.MaxAttendees = &n
	}
	return e, nil
}

// notFound maps "no row" and malformed UUID errors to domain.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if code, _ := pqCode(err); code == pqInvalidTextRepresentation {
		return domain.ErrNotFound
	}
	return err
}

func (r *eventRepository) Create(ctx context.Context, e *domain.Event) error {
	query := `
		INSERT INTO events (slug, title, description, location, category, image_url, starts_at, ends_at,
			is_free, price_cents, max_attendees, status, registration_open, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`
	err := conn(ctx, r.DB).QueryRowContext(ctx, query,
		e.Slug, e.Title, e.Description, e.Location, e.Category, e.ImageURL,
		nullableTime(e.StartsAt), nullableTime(e.EndsAt), e.IsFree, e.PriceCents,
		nullableInt(e.MaxAttendees), string(e.Status), e.RegistrationOpen, e.CreatedAt, e.UpdatedAt,
	).Scan(&e.ID)
	if err != nil {
		if code, constraint := pqCode(err); code == pqUniqueViolation && constraint == constraintEventSlug {
			return domain.ErrSlugTaken
		}
		return err
	}
	return nil
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	e, err := scanEvent(conn(ctx, r.DB).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

func (r *eventRepository) GetBySlug(ctx context.Context, slug string) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE slug = $1`
	e, err := scanEvent(conn(ctx, r.DB).QueryRowContext(ctx, query, strings.ToLower(strings.TrimSpace(slug))))
	if err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

func (r *eventRepository) Update(ctx context.Context, id string, p domain.EventPatch) (*domain.Event, error) {
	setClauses := []string{"updated_at = NOW()"}
	args := []any{}
	set := func(column string, value any) {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if p.Title != nil {
		set("title", *p.Title)
	}
	if p.Description != nil {
		set("description", *p.Description)
	}
	if p.Location != nil {
		set("location", *p.Location)
	}
	if p.Category != nil {
		set("category", *p.Category)
	}
	if p.ImageURL != nil {
		set("image_url", *p.ImageURL)
	}
	if p.StartsAt != nil {
		set("starts_at", *p.StartsAt)
	}
	if p.EndsAt != nil {
		set("ends_at", *p.EndsAt)
	}
	if p.IsFree != nil {
		set("is_free", *p.IsFree)
	}
	if p.PriceCents != nil {
		set("price_cents", *p.PriceCents)
	}
	if p.MaxAttendees != nil {
		set("max_attendees", int64(*p.MaxAttendees))
	}
	if p.ClearMaxAttendees {
		setClauses = append(setClauses, "max_attendees = NULL")
	}
	if p.Status != nil {
		set("status", string(*p.Status))
	}
	if p.RegistrationOpen != nil {
		set("registration_open", *p.RegistrationOpen)
	}
	if p.Empty() {
		// No fields to update; just fetch current row
		return r.GetByID(ctx, id)
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE events SET %s WHERE id = $%d RETURNING `+eventColumns,
		strings.Join(setClauses, ", "), len(args))
	e, err := scanEvent(conn(ctx, r.DB).QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

// AdjustAttendees applies the bounded counter change as a single conditional UPDATE, so
// the row lock taken by Postgres serializes concurrent adjustments of the same event.
func (r *eventRepository) AdjustAttendees(ctx context.Context, id string, delta int) (*domain.Event, error) {
	var query string
	switch delta {
	case 1:
		query = `UPDATE events SET current_attendees = current_attendees + 1, updated_at = NOW()
			WHERE id = $1 AND (max_attendees IS NULL OR current_attendees < max_attendees)
			RETURNING ` + eventColumns
	case -1:
		query = `UPDATE events SET current_attendees = current_attendees - 1, updated_at = NOW()
			WHERE id = $1 AND current_attendees > 0
			RETURNING ` + eventColumns
	default:
		return nil, domain.NewValidationError([]string{"attendee delta must be +1 or -1"})
	}
	db := conn(ctx, r.DB)
	e, err := scanEvent(db.QueryRowContext(ctx, query, id))
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(err)
	}
	var exists bool
	if err := db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM events WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, notFound(err)
	}
	if !exists {
		return nil, domain.ErrNotFound
	}
	if delta > 0 {
		return nil, domain.ErrCapacityReached
	}
	return nil, domain.ErrNegativeAttendees
}

func (r *eventRepository) List(ctx context.Context, f domain.EventFilter, params domain.PaginationParams) ([]*domain.Event, int, error) {
	var w whereClause
	if f.Status != nil {
		w.add("status = ?", string(*f.Status))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		w.add("(title ILIKE ? OR slug ILIKE ?)", likePattern(s))
	}
	if f.Upcoming {
		w.add("(starts_at IS NULL OR starts_at >= ?)", f.Now)
	}
	db := conn(ctx, r.DB)

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := w.next()
	query := fmt.Sprintf(`SELECT %s FROM events%s ORDER BY starts_at ASC NULLS LAST, created_at DESC LIMIT $%d OFFSET $%d`,
		eventColumns, w.String(), n, n+1)
	args := append(w.args, params.PageSize, params.Offset())
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	events := make([]*domain.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (r *eventRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM events WHERE id = $1`
	result, err := conn(ctx, r.DB).ExecContext(ctx, query, id)
	if err != nil {
		return notFound(err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListAttendeeCounters reads counters and confirmed counts in a single statement, so both
// come from the same snapshot even at READ COMMITTED.
func (r *eventRepository) ListAttendeeCounters(ctx context.Context) ([]domain.AttendeeCounter, error) {
	query := `
		SELECT e.id, e.slug, e.current_attendees,
			COUNT(r.id) FILTER (WHERE r.status = 'confirmed')
		FROM events e
		LEFT JOIN registrations r ON r.event_id = e.id
		GROUP BY e.id
		ORDER BY e.created_at, e.id
	`
	rows, err := conn(ctx, r.DB).QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var counters []domain.AttendeeCounter
	for rows.Next() {
		var c domain.AttendeeCounter
		if err := rows.Scan(&c.EventID, &c.Slug, &c.CurrentAttendees, &c.ConfirmedCount); err != nil {
			return nil, err
		}
		counters = append(counters, c)
	}
	return counters, rows.Err()
}
