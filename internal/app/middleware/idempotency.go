package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"time"

	"motorent/internal/app/commands"
)

// IdempotentCommand must be implemented by commands that want idempotency guarantees.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	ResultPrototype() any // should match the handler result type
}

// FingerprintedCommand describes the request behind an idempotency key. A key
// replayed with a different fingerprint is rejected instead of answered with the
// first result.
type FingerprintedCommand interface {
	RequestFingerprint() string
}

type IdempotencyRecord struct {
	Key         string
	RequestHash string
	Payload     []byte
	OccurredAt  time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	Save(ctx context.Context, rec IdempotencyRecord) error
}

type ResultCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

type JSONResultCodec struct{}

func (JSONResultCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONResultCodec) Decode(data []byte, out any) error {
	return json.Unmarshal(data, out)
}

var (
	ErrIdempotencyKeyReused = errors.New("idempotency key reused with a different request")

	errMissingPrototype = errors.New("middleware: idempotent command requires result prototype")
)

// Idempotency replays the stored result of a previously successful command with
// the same key. Failed attempts are not stored so the caller may retry them.
func Idempotency(store IdempotencyStore, codec ResultCodec) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	if codec == nil {
		codec = JSONResultCodec{}
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			idCmd, ok := cmd.(IdempotentCommand)
			if !ok {
				return nextFn(ctx, cmd)
			}
			key := scopedKey(idCmd)
			if key == "" {
				return nextFn(ctx, cmd)
			}
			hash := requestHash(cmd)
			rec, found, err := store.Get(ctx, key)
			if err != nil {
				return nil, err
			}
			if found {
				if rec.RequestHash != "" && hash != "" && rec.RequestHash != hash {
					return nil, ErrIdempotencyKeyReused
				}
				return replay(codec, idCmd, rec)
			}

			result, err := nextFn(ctx, cmd)
			if err != nil {
				return nil, err
			}
			record := IdempotencyRecord{Key: key, RequestHash: hash, OccurredAt: time.Now().UTC()}
			if result != nil {
				if record.Payload, err = codec.Encode(result); err != nil {
					return nil, err
				}
			}
			if err := store.Save(ctx, record); err != nil {
				return nil, err
			}
			return result, nil
		})
	}
}

func replay(codec ResultCodec, cmd IdempotentCommand, rec IdempotencyRecord) (any, error) {
	proto := cmd.ResultPrototype()
	if proto == nil {
		return nil, errMissingPrototype
	}
	if len(rec.Payload) == 0 {
		return nil, nil
	}
	if err := codec.Decode(rec.Payload, proto); err != nil {
		return nil, err
	}
	return normalizePrototype(proto), nil
}

// scopedKey namespaces the client key by command and, when known, by caller so two
// users cannot collide on the same header value.
func scopedKey(cmd IdempotentCommand) string {
	key := strings.TrimSpace(cmd.IdempotencyKey())
	if key == "" {
		return ""
	}
	if actor, ok := cmd.(commands.ActorCommand); ok {
		return cmd.Key() + ":" + actor.ActorIdentity().UserID + ":" + key
	}
	return cmd.Key() + ":" + key
}

func requestHash(cmd commands.Command) string {
	fp, ok := cmd.(FingerprintedCommand)
	if !ok {
		return ""
	}
	sum := sha256.Sum256([]byte(fp.RequestFingerprint()))
	return hex.EncodeToString(sum[:])
}

func normalizePrototype(proto any) any {
	rv := reflect.ValueOf(proto)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return rv.Interface()
	}
	return proto
}
