package memory

import (
	"context"
	"errors"
	"sync"

	appoutbox "motorent/internal/app/outbox"
	"motorent/internal/app/uow"
	domainbooking "motorent/internal/domain/booking"
)

var (
	ErrUnitClosed   = errors.New("memory: unit of work already finished")
	ErrReadOnlyUnit = errors.New("memory: write attempted in read-only unit")
)

// Store keeps committed bookings and outbox entries. Write units are serialised
// so the overlap check and the insert cannot interleave.
type Store struct {
	writeMu sync.Mutex

	mu       sync.RWMutex
	bookings map[domainbooking.BookingID]*domainbooking.Booking
	outbox   []*outboxEntry
	wake     chan struct{}
}

func NewStore() *Store {
	return &Store{
		bookings: make(map[domainbooking.BookingID]*domainbooking.Booking),
		wake:     make(chan struct{}, 1),
	}
}

// Seed stores bookings as committed state, bypassing availability checks.
func (s *Store) Seed(items ...*domainbooking.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range items {
		c := clone(b)
		if c.Version == 0 {
			c.Version = 1
		}
		s.bookings[c.ID] = c
	}
}

// Begin starts a unit. Writable units hold the store's write lock until they finish.
func (s *Store) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if !opts.ReadOnly {
		s.writeMu.Lock()
	}
	return &Unit{
		store:    s,
		readOnly: opts.ReadOnly,
		staged:   make(map[domainbooking.BookingID]*domainbooking.Booking),
	}, nil
}

// Unit buffers writes until Commit.
type Unit struct {
	store    *Store
	readOnly bool
	staged   map[domainbooking.BookingID]*domainbooking.Booking
	records  []appoutbox.EventRecord
	done     bool
}

func (u *Unit) Bookings() domainbooking.Repository {
	return &BookingRepository{unit: u}
}

func (u *Unit) Commit(ctx context.Context) error {
	if u.done {
		return ErrUnitClosed
	}
	u.store.mu.Lock()
	for id, b := range u.staged {
		u.store.bookings[id] = b
	}
	for _, rec := range u.records {
		u.store.outbox = append(u.store.outbox, newOutboxEntry(rec))
	}
	u.store.mu.Unlock()
	u.finish()
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.finish()
	return nil
}

func (u *Unit) finish() {
	u.done = true
	u.staged = nil
	u.records = nil
	if !u.readOnly {
		u.store.writeMu.Unlock()
	}
}

func (u *Unit) writable() error {
	if u.done {
		return ErrUnitClosed
	}
	if u.readOnly {
		return ErrReadOnlyUnit
	}
	return nil
}

func (u *Unit) stage(b *domainbooking.Booking) {
	u.staged[b.ID] = clone(b)
}

func (u *Unit) lookup(id domainbooking.BookingID) (*domainbooking.Booking, bool) {
	if b, ok := u.staged[id]; ok {
		return b, true
	}
	u.store.mu.RLock()
	defer u.store.mu.RUnlock()
	b, ok := u.store.bookings[id]
	return b, ok
}

// snapshot merges committed bookings with the unit's staged writes.
func (u *Unit) snapshot() []*domainbooking.Booking {
	u.store.mu.RLock()
	out := make([]*domainbooking.Booking, 0, len(u.store.bookings)+len(u.staged))
	for id, b := range u.store.bookings {
		if _, shadowed := u.staged[id]; !shadowed {
			out = append(out, b)
		}
	}
	u.store.mu.RUnlock()
	for _, b := range u.staged {
		out = append(out, b)
	}
	return out
}

var _ uow.UoWFactory = (*Store)(nil)
