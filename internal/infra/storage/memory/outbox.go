package memory

import (
	"context"
	"time"

	appoutbox "motorent/internal/app/outbox"
	"motorent/internal/app/uow"
	infraoutbox "motorent/internal/infra/outbox"
)

const (
	stateNew     = "NEW"
	stateClaimed = "CLAIMED"
	stateSent    = "SENT"
	stateFailed  = "FAILED"
)

type outboxEntry struct {
	record      appoutbox.EventRecord
	state       string
	attempts    int
	nextAttempt time.Time
	lastError   string
}

func newOutboxEntry(rec appoutbox.EventRecord) *outboxEntry {
	return &outboxEntry{record: rec, state: stateNew, nextAttempt: time.Now().UTC()}
}

// Outbox stages events in the current memory unit so they become visible to the
// relay only when the unit commits.
type Outbox struct {
	store *Store
}

func (s *Store) Outbox() *Outbox {
	return &Outbox{store: s}
}

// Wake signals the relay that committed events are waiting.
func (s *Store) Wake() <-chan struct{} {
	return s.wake
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	if unit, ok := uow.FromContext(ctx); ok {
		if mu, ok := unit.(*Unit); ok && mu.store == o.store {
			if err := mu.writable(); err != nil {
				return err
			}
			mu.records = append(mu.records, record)
			return nil
		}
	}
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	o.store.outbox = append(o.store.outbox, newOutboxEntry(record))
	return nil
}

func (o *Outbox) Flush(ctx context.Context) error {
	select {
	case o.store.wake <- struct{}{}:
	default:
	}
	return nil
}

// Records returns every committed record in insertion order.
func (o *Outbox) Records() []appoutbox.EventRecord {
	o.store.mu.RLock()
	defer o.store.mu.RUnlock()
	out := make([]appoutbox.EventRecord, 0, len(o.store.outbox))
	for _, e := range o.store.outbox {
		out = append(out, e.record)
	}
	return out
}

func (o *Outbox) Claim(ctx context.Context, workerID string) (*infraoutbox.Message, error) {
	now := time.Now().UTC()
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	for _, e := range o.store.outbox {
		if (e.state == stateNew || e.state == stateFailed) && !e.nextAttempt.After(now) {
			e.state = stateClaimed
			rec := e.record
			return &infraoutbox.Message{
				ID:         rec.ID,
				Name:       rec.Name,
				Payload:    rec.Payload,
				OccurredAt: rec.OccurredAt,
				Aggregate:  rec.Aggregate,
				Headers:    rec.Headers,
				Attempts:   e.attempts,
			}, nil
		}
	}
	return nil, nil
}

func (o *Outbox) MarkSent(ctx context.Context, id string) error {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	if e := o.find(id); e != nil {
		e.state = stateSent
	}
	return nil
}

func (o *Outbox) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	if e := o.find(id); e != nil {
		e.state = stateFailed
		e.attempts++
		e.nextAttempt = next
		e.lastError = errMsg
	}
	return nil
}

func (o *Outbox) find(id string) *outboxEntry {
	for _, e := range o.store.outbox {
		if e.record.ID == id {
			return e
		}
	}
	return nil
}

var (
	_ appoutbox.Outbox   = (*Outbox)(nil)
	_ infraoutbox.Source = (*Outbox)(nil)
)
