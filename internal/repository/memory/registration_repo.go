package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"communityevents/internal/domain"
)

type registrationRepository struct {
	store *Store
}

func NewRegistrationRepository(s *Store) domain.RegistrationRepository {
	return &registrationRepository{store: s}
}

// activeFor returns the non-cancelled registration of email at eventID. Caller holds the lock.
func (s *Store) activeFor(eventID, email string) *domain.Registration {
	for _, reg := range s.regs {
		if reg.EventID == eventID && reg.Email == email && reg.Status != domain.RegistrationCancelled {
			return reg
		}
	}
	return nil
}

func (r *registrationRepository) Create(ctx context.Context, reg *domain.Registration) error {
	s := r.store
	defer s.lock(ctx)()

	if _, ok := s.events[reg.EventID]; !ok {
		return domain.ErrNotFound
	}
	code := strings.ToUpper(reg.TicketCode)
	if _, taken := s.tickets[code]; taken {
		return domain.ErrDuplicateTicketCode
	}
	email := domain.NormalizeEmail(reg.Email)
	if reg.Status != domain.RegistrationCancelled && s.activeFor(reg.EventID, email) != nil {
		return domain.ErrDuplicateRegistration
	}
	reg.ID = uuid.NewString()
	reg.TicketCode = code
	reg.Email = email
	s.nextSeq++
	s.regs[reg.ID] = cloneRegistration(reg)
	s.regSeq[reg.ID] = s.nextSeq
	s.tickets[code] = reg.ID
	id := reg.ID
	s.record(ctx, func() {
		delete(s.regs, id)
		delete(s.regSeq, id)
		delete(s.tickets, code)
	})
	return nil
}

func (r *registrationRepository) GetByID(ctx context.Context, id string) (*domain.Registration, error) {
	s := r.store
	defer s.lock(ctx)()

	reg, ok := s.regs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneRegistration(reg), nil
}

func (r *registrationRepository) GetByTicketCode(ctx context.Context, code string) (*domain.Registration, error) {
	s := r.store
	defer s.lock(ctx)()

	id, ok := s.tickets[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneRegistration(s.regs[id]), nil
}

func (r *registrationRepository) GetActiveByEventAndEmail(ctx context.Context, eventID, email string) (*domain.Registration, error) {
	s := r.store
	defer s.lock(ctx)()

	reg := s.activeFor(eventID, domain.NormalizeEmail(email))
	if reg == nil {
		return nil, domain.ErrNotFound
	}
	return cloneRegistration(reg), nil
}

func (r *registrationRepository) UpdateStatus(ctx context.Context, id string, from, to domain.RegistrationStatus, at time.Time) (*domain.Registration, error) {
	if !from.CanTransitionTo(to) {
		return nil, domain.ErrInvalidTransition
	}
	s := r.store
	defer s.lock(ctx)()

	old, ok := s.regs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if old.Status != from {
		if old.Status == domain.RegistrationCancelled {
			return nil, domain.ErrAlreadyCancelled
		}
		return nil, domain.ErrInvalidTransition
	}
	updated := cloneRegistration(old)
	updated.Status = to
	updated.UpdatedAt = at
	if to == domain.RegistrationCancelled {
		t := at
		updated.CancelledAt = &t
	}
	s.regs[id] = updated
	s.record(ctx, func() { s.regs[id] = old })
	return cloneRegistration(updated), nil
}

func (r *registrationRepository) UpdateAdminFields(ctx context.Context, id string, p domain.RegistrationAdminPatch) (*domain.Registration, error) {
	s := r.store
	defer s.lock(ctx)()

	old, ok := s.regs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	updated := cloneRegistration(old)
	if p.Notes != nil {
		updated.Notes = *p.Notes
	}
	if p.PaymentStatus != nil {
		updated.PaymentStatus = *p.PaymentStatus
	}
	updated.UpdatedAt = s.Now()
	s.regs[id] = updated
	s.record(ctx, func() { s.regs[id] = old })
	return cloneRegistration(updated), nil
}

func (r *registrationRepository) List(ctx context.Context, f domain.RegistrationFilter, params domain.PaginationParams) ([]*domain.Registration, int, error) {
	s := r.store
	defer s.lock(ctx)()

	search := strings.ToLower(strings.TrimSpace(f.Search))
	matched := make([]*domain.Registration, 0)
	for _, reg := range s.regs {
		if f.EventID != "" && reg.EventID != f.EventID {
			continue
		}
		if f.Status != nil && reg.Status != *f.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(reg.Name), search) &&
			!strings.Contains(reg.Email, search) &&
			!strings.Contains(strings.ToLower(reg.TicketCode), search) {
			continue
		}
		matched = append(matched, reg)
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return s.regSeq[a.ID] > s.regSeq[b.ID]
	})

	total := len(matched)
	start, end := params.Window(total)
	page := make([]*domain.Registration, 0, end-start)
	for _, reg := range matched[start:end] {
		page = append(page, cloneRegistration(reg))
	}
	return page, total, nil
}

func (r *registrationRepository) DeleteByEventID(ctx context.Context, eventID string) (int, error) {
	s := r.store
	defer s.lock(ctx)()

	n := 0
	for id, reg := range s.regs {
		if reg.EventID != eventID {
			continue
		}
		seq := s.regSeq[id]
		delete(s.regs, id)
		delete(s.regSeq, id)
		delete(s.tickets, reg.TicketCode)
		s.record(ctx, func() {
			s.regs[id] = reg
			s.regSeq[id] = seq
			s.tickets[reg.TicketCode] = id
		})
		n++
	}
	return n, nil
}
