package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"motorent/internal/app/middleware"
	appoutbox "motorent/internal/app/outbox"
	infraoutbox "motorent/internal/infra/outbox"
	"motorent/internal/infra/inbox"
)

const (
	stateNew     = "NEW"
	stateClaimed = "CLAIMED"
	stateSent    = "SENT"
	stateFailed  = "FAILED"
)

type outboxRow struct {
	ID          string    `gorm:"primaryKey;size:64"`
	Name        string    `gorm:"size:128;not null"`
	Payload     []byte    `gorm:"not null"`
	OccurredAt  time.Time `gorm:"not null"`
	Aggregate   string    `gorm:"size:64"`
	Headers     []byte
	State       string    `gorm:"size:16;not null;index:idx_outbox_pending,priority:1"`
	Attempts    int       `gorm:"not null;default:0"`
	NextAttempt time.Time `gorm:"not null;index:idx_outbox_pending,priority:2"`
	ClaimedBy   string    `gorm:"size:64"`
	ClaimedAt   *time.Time
	SentAt      *time.Time
	LastError   string
	CreatedAt   time.Time `gorm:"autoCreateTime:false"`
}

func (outboxRow) TableName() string { return "app_outbox" }

// OutboxStore inserts events through the unit's transaction when one is in ctx.
type OutboxStore struct {
	db   *gorm.DB
	wake chan struct{}
}

func NewOutboxStore(db *gorm.DB) *OutboxStore {
	return &OutboxStore{db: db, wake: make(chan struct{}, 1)}
}

func (s *OutboxStore) Add(ctx context.Context, record appoutbox.EventRecord) error {
	headers, err := json.Marshal(record.Headers)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	row := outboxRow{
		ID:          record.ID,
		Name:        record.Name,
		Payload:     record.Payload,
		OccurredAt:  record.OccurredAt,
		Aggregate:   record.Aggregate,
		Headers:     headers,
		State:       stateNew,
		NextAttempt: now,
		CreatedAt:   now,
	}
	return txFrom(ctx, s.db).Create(&row).Error
}

func (s *OutboxStore) Flush(context.Context) error {
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

func (s *OutboxStore) Wake() <-chan struct{} {
	return s.wake
}

// Claim locks one due row with SKIP LOCKED so several relays can share the table.
func (s *OutboxStore) Claim(ctx context.Context, workerID string) (*infraoutbox.Message, error) {
	var claimed *outboxRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		var row outboxRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("state IN ? AND next_attempt <= ?", []string{stateNew, stateFailed}, now).
			Order("next_attempt ASC").
			Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		err = tx.Model(&outboxRow{}).Where("id = ?", row.ID).
			Updates(map[string]any{"state": stateClaimed, "claimed_by": workerID, "claimed_at": now}).Error
		if err != nil {
			return err
		}
		claimed = &row
		return nil
	})
	if err != nil || claimed == nil {
		return nil, err
	}
	headers := map[string]string{}
	if len(claimed.Headers) > 0 {
		if err := json.Unmarshal(claimed.Headers, &headers); err != nil {
			return nil, err
		}
	}
	return &infraoutbox.Message{
		ID:         claimed.ID,
		Name:       claimed.Name,
		Payload:    claimed.Payload,
		OccurredAt: claimed.OccurredAt,
		Aggregate:  claimed.Aggregate,
		Headers:    headers,
		Attempts:   claimed.Attempts,
	}, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Model(&outboxRow{}).Where("id = ?", id).
		Updates(map[string]any{"state": stateSent, "sent_at": time.Now().UTC()}).Error
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	return s.db.WithContext(ctx).Model(&outboxRow{}).Where("id = ?", id).
		Updates(map[string]any{
			"state":        stateFailed,
			"next_attempt": next,
			"last_error":   errMsg,
			"attempts":     gorm.Expr("attempts + 1"),
		}).Error
}

type idempotencyRow struct {
	Key         string    `gorm:"primaryKey;size:255"`
	RequestHash string    `gorm:"size:64"`
	Payload     []byte
	OccurredAt  time.Time `gorm:"not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime:false;index"`
}

func (idempotencyRow) TableName() string { return "app_idempotency" }

// IdempotencyStore ignores records older than TTL; expired rows are pruned by Purge.
type IdempotencyStore struct {
	db  *gorm.DB
	ttl time.Duration
}

func NewIdempotencyStore(db *gorm.DB, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{db: db, ttl: ttl}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	var row idempotencyRow
	err := s.db.WithContext(ctx).
		Where("key = ? AND created_at > ?", key, time.Now().UTC().Add(-s.ttl)).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return middleware.IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return middleware.IdempotencyRecord{}, false, err
	}
	return middleware.IdempotencyRecord{Key: row.Key, RequestHash: row.RequestHash, Payload: row.Payload, OccurredAt: row.OccurredAt}, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	row := idempotencyRow{Key: rec.Key, RequestHash: rec.RequestHash, Payload: rec.Payload, OccurredAt: rec.OccurredAt, CreatedAt: time.Now().UTC()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

// Purge deletes records past the TTL.
func (s *IdempotencyStore) Purge(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("created_at <= ?", time.Now().UTC().Add(-s.ttl)).Delete(&idempotencyRow{}).Error
}

type inboxRow struct {
	EventID     string    `gorm:"primaryKey;size:128"`
	Consumer    string    `gorm:"primaryKey;size:64"`
	ProcessedAt time.Time `gorm:"not null"`
}

func (inboxRow) TableName() string { return "app_inbox" }

type InboxStore struct {
	db       *gorm.DB
	consumer string
}

func NewInboxStore(db *gorm.DB, consumer string) *InboxStore {
	return &InboxStore{db: db, consumer: consumer}
}

func (s *InboxStore) Processed(ctx context.Context, eventID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&inboxRow{}).Where("event_id = ? AND consumer = ?", eventID, s.consumer).Limit(1).Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *InboxStore) Record(ctx context.Context, eventID string) error {
	row := inboxRow{EventID: eventID, Consumer: s.consumer, ProcessedAt: time.Now().UTC()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

var (
	_ appoutbox.Outbox            = (*OutboxStore)(nil)
	_ infraoutbox.Source          = (*OutboxStore)(nil)
	_ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
	_ inbox.Inbox                 = (*InboxStore)(nil)
)
