package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"motorent/internal/app/middleware"
	"motorent/internal/app/policies"
	"motorent/internal/domain/assets"
	"motorent/internal/infra/catalog"
)

func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	return client, nil
}

// CatalogCache keeps catalog lookups for TTL. Cache failures fall through to Next.
type CatalogCache struct {
	Next   policies.CatalogPort
	Client goredis.Cmdable
	TTL    time.Duration
	Logger *slog.Logger
}

func (c *CatalogCache) key(id assets.AssetID) string {
	return "catalog:asset:" + string(id)
}

func (c *CatalogCache) Asset(ctx context.Context, id assets.AssetID) (assets.Asset, error) {
	raw, err := c.Client.Get(ctx, c.key(id)).Bytes()
	switch {
	case err == nil:
		var doc catalog.AssetDocument
		if jsonErr := json.Unmarshal(raw, &doc); jsonErr == nil {
			return doc.ToAsset(), nil
		}
	case !errors.Is(err, goredis.Nil):
		c.warn("catalog cache read failed", id, err)
	}

	asset, err := c.Next.Asset(ctx, id)
	if err != nil {
		return assets.Asset{}, err
	}
	payload, err := json.Marshal(catalog.FromAsset(asset))
	if err == nil {
		if setErr := c.Client.Set(ctx, c.key(id), payload, c.ttl()).Err(); setErr != nil {
			c.warn("catalog cache write failed", id, setErr)
		}
	}
	return asset, nil
}

func (c *CatalogCache) ttl() time.Duration {
	if c.TTL > 0 {
		return c.TTL
	}
	return time.Minute
}

func (c *CatalogCache) warn(msg string, id assets.AssetID, err error) {
	if c.Logger != nil {
		c.Logger.Warn(msg, "asset_id", id, "error", err)
	}
}

// IdempotencyStore keeps command results under their scoped key for TTL.
type IdempotencyStore struct {
	Client goredis.Cmdable
	TTL    time.Duration
}

type idempotencyDocument struct {
	RequestHash string    `json:"request_hash,omitempty"`
	Payload     []byte    `json:"payload"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func (s *IdempotencyStore) key(k string) string {
	return "idempotency:" + k
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	raw, err := s.Client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return middleware.IdempotencyRecord{}, false, nil
		}
		return middleware.IdempotencyRecord{}, false, err
	}
	var doc idempotencyDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return middleware.IdempotencyRecord{}, false, err
	}
	return middleware.IdempotencyRecord{Key: key, RequestHash: doc.RequestHash, Payload: doc.Payload, OccurredAt: doc.OccurredAt}, true, nil
}

// Save keeps the first stored result; a concurrent duplicate does not overwrite it.
func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	payload, err := json.Marshal(idempotencyDocument{RequestHash: rec.RequestHash, Payload: rec.Payload, OccurredAt: rec.OccurredAt})
	if err != nil {
		return err
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return s.Client.SetNX(ctx, s.key(rec.Key), payload, ttl).Err()
}

var (
	_ policies.CatalogPort        = (*CatalogCache)(nil)
	_ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
)
