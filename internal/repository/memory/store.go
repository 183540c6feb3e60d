// Package memory is an in-process implementation of the event and registration
// repositories. It is used by the memory store driver and by service tests.
package memory

import (
	"context"
	"sync"
	"time"

	"communityevents/internal/domain"
)

// Store holds events and registrations behind one mutex. Writers serialize on the mutex
// for the whole of a transaction, which gives the same guarantees as a row lock taken
// by the conditional counter update in Postgres.
type Store struct {
	mu sync.Mutex

	events  map[string]*domain.Event
	slugs   map[string]string
	regs    map[string]*domain.Registration
	regSeq  map[string]int64
	tickets map[string]string
	nextSeq int64

	// Now stamps updated_at on writes.
	Now func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		events:  make(map[string]*domain.Event),
		slugs:   make(map[string]string),
		regs:    make(map[string]*domain.Registration),
		regSeq:  make(map[string]int64),
		tickets: make(map[string]string),
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

type txKey struct{}

// tx is the undo journal of one WithinTx call.
type tx struct {
	store *Store
	undo  []func()
}

func (s *Store) txFrom(ctx context.Context) *tx {
	if t, ok := ctx.Value(txKey{}).(*tx); ok && t.store == s {
		return t
	}
	return nil
}

// lock takes the store mutex unless ctx already carries a transaction of this store,
// whose WithinTx holds it.
func (s *Store) lock(ctx context.Context) func() {
	if s.txFrom(ctx) != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// record registers the inverse of a mutation. Outside a transaction it is dropped.
func (s *Store) record(ctx context.Context, undo func()) {
	if t := s.txFrom(ctx); t != nil {
		t.undo = append(t.undo, undo)
	}
}

type transactor struct {
	store *Store
}

// NewTransactor returns a domain.Transactor over s.
func NewTransactor(s *Store) domain.Transactor {
	return &transactor{store: s}
}

// WithinTx holds the store mutex while fn runs and replays the undo journal in
// reverse when fn fails or panics. Nested calls join the outer transaction.
func (t *transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	s := t.store
	if s.txFrom(ctx) != nil {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	journal := &tx{store: s}
	rollback := func() {
		for i := len(journal.undo) - 1; i >= 0; i-- {
			journal.undo[i]()
		}
	}
	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
	}()
	if err = fn(context.WithValue(ctx, txKey{}, journal)); err != nil {
		rollback()
		return err
	}
	return nil
}

func cloneEvent(e *domain.Event) *domain.Event {
	c := *e
	if e.StartsAt != nil {
		t := *e.StartsAt
		c.StartsAt = &t
	}
	if e.EndsAt != nil {
		t := *e.EndsAt
		c.EndsAt = &t
	}
	if e.MaxAttendees != nil {
		n := *e.MaxAttendees
		c.MaxAttendees = &n
	}
	return &c
}

func cloneRegistration(r *domain.Registration) *domain.Registration {
	c := *r
	if r.CancelledAt != nil {
		t := *r.CancelledAt
		c.CancelledAt = &t
	}
	return &c
}
