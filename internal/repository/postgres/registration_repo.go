package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"communityevents/internal/domain"
)

const registrationColumns = `id, event_id, ticket_code, name, email, phone, accessibility_notes, notes,
	status, payment_status, amount_cents, created_at, updated_at, cancelled_at`

type registrationRepository struct {
	DB *sql.DB
}

func NewRegistrationRepository(db *sql.DB) domain.RegistrationRepository {
	return &registrationRepository{
		DB: db,
	}
}

func scanRegistration(row rowScanner) (*domain.Registration, error) {
	reg := &domain.Registration{}
	var status, payment string
	var cancelledNull sql.NullTime
	err := row.Scan(
		&reg.ID, &reg.EventID, &reg.TicketCode, &reg.Name, &reg.Email, &reg.Phone,
		&reg.AccessibilityNotes, &reg.Notes, &status, &payment, &reg.AmountCents,
		&reg.CreatedAt, &reg.UpdatedAt, &cancelledNull,
	)
	if err != nil {
		return nil, err
	}
	reg.Status = domain.RegistrationStatus(status)
	reg.PaymentStatus = domain.PaymentStatus(payment)
	if cancelledNull.Valid {
		reg.CancelledAt = &cancelledNull.Time
	}
	return reg, nil
}

// Create inserts reg. A ticket-code clash is absorbed by ON CONFLICT so it does not abort
// the surrounding transaction and the caller can retry with a new code.
func (r *registrationRepository) Create(ctx context.Context, reg *domain.Registration) error {
	query := `
		INSERT INTO registrations (event_id, ticket_code, name, email, phone, accessibility_notes, notes,
			status, payment_status, amount_cents, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (ticket_code) DO NOTHING
		RETURNING id
	`
	err := conn(ctx, r.DB).QueryRowContext(ctx, query,
		reg.EventID, reg.TicketCode, reg.Name, reg.Email, reg.Phone, reg.AccessibilityNotes, reg.Notes,
		string(reg.Status), string(reg.PaymentStatus), reg.AmountCents, reg.CreatedAt, reg.UpdatedAt,
	).Scan(&reg.ID)
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrDuplicateTicketCode
	}
	switch code, constraint := pqCode(err); {
	case code == pqUniqueViolation && constraint == constraintRegistrationActiveEmail:
		return domain.ErrDuplicateRegistration
	case code == pqUniqueViolation && constraint == constraintRegistrationTicketCode:
		return domain.ErrDuplicateTicketCode
	case code == pqForeignKeyViolation:
		return domain.ErrNotFound
	}
	return err
}

func (r *registrationRepository) GetByID(ctx context.Context, id string) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	reg, err := scanRegistration(conn(ctx, r.DB).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return reg, nil
}

func (r *registrationRepository) GetByTicketCode(ctx context.Context, code string) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE ticket_code = $1`
	reg, err := scanRegistration(conn(ctx, r.DB).QueryRowContext(ctx, query, strings.ToUpper(strings.TrimSpace(code))))
	if err != nil {
		return nil, notFound(err)
	}
	return reg, nil
}

func (r *registrationRepository) GetActiveByEventAndEmail(ctx context.Context, eventID, email string) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations
		WHERE event_id = $1 AND email = $2 AND status <> 'cancelled'`
	reg, err := scanRegistration(conn(ctx, r.DB).QueryRowContext(ctx, query, eventID, domain.NormalizeEmail(email)))
	if err != nil {
		return nil, notFound(err)
	}
	return reg, nil
}

func (r *registrationRepository) UpdateStatus(ctx context.Context, id string, from, to domain.RegistrationStatus, at time.Time) (*domain.Registration, error) {
	if !from.CanTransitionTo(to) {
		return nil, domain.ErrInvalidTransition
	}
	var cancelledAt any
	if to == domain.RegistrationCancelled {
		cancelledAt = at
	}
	query := `UPDATE registrations SET status = $1, updated_at = $2, cancelled_at = COALESCE($3, cancelled_at)
		WHERE id = $4 AND status = $5
		RETURNING ` + registrationColumns
	db := conn(ctx, r.DB)
	reg, err := scanRegistration(db.QueryRowContext(ctx, query, string(to), at, cancelledAt, id, string(from)))
	if err == nil {
		return reg, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(err)
	}
	// Nothing matched: either the row is gone or another request moved it first.
	var current string
	if err := db.QueryRowContext(ctx, `SELECT status FROM registrations WHERE id = $1`, id).Scan(&current); err != nil {
		return nil, notFound(err)
	}
	if domain.RegistrationStatus(current) == domain.RegistrationCancelled {
		return nil, domain.ErrAlreadyCancelled
	}
	return nil, domain.ErrInvalidTransition
}

func (r *registrationRepository) UpdateAdminFields(ctx context.Context, id string, p domain.RegistrationAdminPatch) (*domain.Registration, error) {
	setClauses := []string{"updated_at = NOW()"}
	args := []any{}
	if p.Notes != nil {
		args = append(args, *p.Notes)
		setClauses = append(setClauses, fmt.Sprintf("notes = $%d", len(args)))
	}
	if p.PaymentStatus != nil {
		args = append(args, string(*p.PaymentStatus))
		setClauses = append(setClauses, fmt.Sprintf("payment_status = $%d", len(args)))
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE registrations SET %s WHERE id = $%d RETURNING `+registrationColumns,
		strings.Join(setClauses, ", "), len(args))
	reg, err := scanRegistration(conn(ctx, r.DB).QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, notFound(err)
	}
	return reg, nil
}

func (r *registrationRepository) List(ctx context.Context, f domain.RegistrationFilter, params domain.PaginationParams) ([]*domain.Registration, int, error) {
	var w whereClause
	if f.EventID != "" {
		w.add("event_id = ?", f.EventID)
	}
	if f.Status != nil {
		w.add("status = ?", string(*f.Status))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		w.add("(name ILIKE ? OR email ILIKE ? OR ticket_code ILIKE ?)", likePattern(s))
	}
	db := conn(ctx, r.DB)

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM registrations`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, notFound(err)
	}

	n := w.next()
	query := fmt.Sprintf(`SELECT %s FROM registrations%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		registrationColumns, w.String(), n, n+1)
	args := append(w.args, params.PageSize, params.Offset())
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var regs []*domain.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, 0, err
		}
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if regs == nil {
		regs = []*domain.Registration{}
	}
	return regs, total, nil
}

func (r *registrationRepository) DeleteByEventID(ctx context.Context, eventID string) (int, error) {
	result, err := conn(ctx, r.DB).ExecContext(ctx, `DELETE FROM registrations WHERE event_id = $1`, eventID)
	if err != nil {
		return 0, notFound(err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}
