package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"communityevents/internal/domain"
)

func newReg(eventID, code, email string, status domain.RegistrationStatus) *domain.Registration {
	return &domain.Registration{
		EventID:    eventID,
		TicketCode: code,
		Attendee:   domain.Attendee{Name: "Sam", Email: email},
		Status:     status,
		CreatedAt:  t0,
		UpdatedAt:  t0,
	}
}

func TestRegistrationRepository_CreateConstraints(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := NewRegistrationRepository(s)
	e := seedEvent(t, s, "constraints", nil)

	first := newReg(e.ID, "pv-con-aaaaaa", "Sam@Example.org", domain.RegistrationConfirmed)
	require.NoError(t, repo.Create(ctx, first))
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "PV-CON-AAAAAA", first.TicketCode)
	assert.Equal(t, "sam@example.org", first.Email)

	err := repo.Create(ctx, newReg(e.ID, "PV-CON-AAAAAA", "other@example.org", domain.RegistrationConfirmed))
	assert.ErrorIs(t, err, domain.ErrDuplicateTicketCode)

	err = repo.Create(ctx, newReg(e.ID, "PV-CON-BBBBBB", "sam@example.org", domain.RegistrationWaitlisted))
	assert.ErrorIs(t, err, domain.ErrDuplicateRegistration)

	err = repo.Create(ctx, newReg("missing", "PV-CON-CCCCCC", "x@example.org", domain.RegistrationConfirmed))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// A cancelled registration frees the email for a new one.
	_, err = repo.UpdateStatus(ctx, first.ID, domain.RegistrationConfirmed, domain.RegistrationCancelled, t0)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, newReg(e.ID, "PV-CON-DDDDDD", "sam@example.org", domain.RegistrationConfirmed)))
}

func TestRegistrationRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := NewRegistrationRepository(s)
	e := seedEvent(t, s, "status", nil)
	reg := newReg(e.ID, "PV-STA-AAAAAA", "a@example.org", domain.RegistrationWaitlisted)
	require.NoError(t, repo.Create(ctx, reg))

	_, err := repo.UpdateStatus(ctx, reg.ID, domain.RegistrationConfirmed, domain.RegistrationCancelled, t0)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	got, err := repo.UpdateStatus(ctx, reg.ID, domain.RegistrationWaitlisted, domain.RegistrationCancelled, t0)
	require.NoError(t, err)
	assert.Equal(t, domain.RegistrationCancelled, got.Status)
	require.NotNil(t, got.CancelledAt)

	_, err = repo.UpdateStatus(ctx, reg.ID, domain.RegistrationWaitlisted, domain.RegistrationCancelled, t0)
	assert.ErrorIs(t, err, domain.ErrAlreadyCancelled)

	_, err = repo.UpdateStatus(ctx, reg.ID, domain.RegistrationCancelled, domain.RegistrationConfirmed, t0)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = repo.UpdateStatus(ctx, "missing", domain.RegistrationConfirmed, domain.RegistrationCancelled, t0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRegistrationRepository_ListAndCounts(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := NewRegistrationRepository(s)
	a := seedEvent(t, s, "a", nil)
	b := seedEvent(t, s, "b", nil)

	require.NoError(t, repo.Create(ctx, newReg(a.ID, "PV-AAA-000001", "one@example.org", domain.RegistrationConfirmed)))
	require.NoError(t, repo.Create(ctx, newReg(a.ID, "PV-AAA-000002", "two@example.org", domain.RegistrationWaitlisted)))
	require.NoError(t, repo.Create(ctx, newReg(b.ID, "PV-BBB-000003", "three@example.org", domain.RegistrationConfirmed)))

	regs, total, err := repo.List(ctx, domain.RegistrationFilter{EventID: a.ID}, domain.PaginationParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, regs, 2)
	assert.Equal(t, "two@example.org", regs[0].Email, "newest first")

	regs, _, err = repo.List(ctx, domain.RegistrationFilter{Search: "pv-bbb"}, domain.PaginationParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, b.ID, regs[0].EventID)

	counters, err := NewEventRepository(s).ListAttendeeCounters(ctx)
	require.NoError(t, err)
	confirmed := make(map[string]int)
	for _, c := range counters {
		confirmed[c.EventID] = c.ConfirmedCount
	}
	assert.Equal(t, map[string]int{a.ID: 1, b.ID: 1}, confirmed)

	n, err := repo.DeleteByEventID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, err = repo.GetByTicketCode(ctx, "PV-AAA-000001")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRegistrationRepository_UpdateAdminFields(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := NewRegistrationRepository(s)
	e := seedEvent(t, s, "admin", nil)
	reg := newReg(e.ID, "PV-ADM-AAAAAA", "a@example.org", domain.RegistrationConfirmed)
	require.NoError(t, repo.Create(ctx, reg))

	notes := "wheelchair seat"
	paid := domain.PaymentPaid
	got, err := repo.UpdateAdminFields(ctx, reg.ID, domain.RegistrationAdminPatch{Notes: &notes, PaymentStatus: &paid})
	require.NoError(t, err)
	assert.Equal(t, notes, got.Notes)
	assert.Equal(t, domain.PaymentPaid, got.PaymentStatus)
	assert.Equal(t, domain.RegistrationConfirmed, got.Status)

	_, err = repo.UpdateAdminFields(ctx, "missing", domain.RegistrationAdminPatch{Notes: &notes})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
