// ABOUTME: Redis-backed session store for multi-process deployments
// ABOUTME: Records are JSON values whose Redis expiry tracks the cookie expiry

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces session keys.
const DefaultRedisPrefix = "timecard:session:"

// RedisStore keeps sessions in Redis.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	opts   Options
	logger *slog.Logger
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps client. The store takes ownership and closes it on Close.
func NewRedisStore(client redis.UniversalClient, prefix string, opts Options) *RedisStore {
	opts.setDefaults()
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		opts:   opts,
		logger: slog.Default().With("component", "session-redis"),
	}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

// Create stores a new record with SETNX so an identifier is never reused.
func (s *RedisStore) Create(ctx context.Context, data Data) (string, error) {
	for range maxIDAttempts {
		id, err := s.opts.NewID()
		if err != nil {
			return "", err
		}

		payload, err := json.Marshal(s.opts.newRecord(id, data))
		if err != nil {
			return "", fmt.Errorf("encoding session: %w", err)
		}

		ok, err := s.client.SetNX(ctx, s.key(id), payload, s.opts.TTL).Result()
		if err != nil {
			return "", fmt.Errorf("storing session: %w", err)
		}
		if ok {
			return id, nil
		}
	}
	return "", fmt.Errorf("generating session id: %d collisions", maxIDAttempts)
}

// Get loads a record. Missing keys and records past their cookie expiry are ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		s.logger.Warn("discarding undecodable session", "session", Fingerprint(id), "error", err)
		_ = s.client.Del(ctx, s.key(id)).Err()
		return nil, ErrNotFound
	}
	rec.ID = id

	if rec.Expired(s.opts.Now()) {
		_ = s.client.Del(ctx, s.key(id)).Err()
		return nil, ErrNotFound
	}
	return &rec, nil
}

// Set replaces the data of an existing record, keeping its Redis expiry.
func (s *RedisStore) Set(ctx context.Context, id string, data Data) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	rec.Data = data

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	err = s.client.SetArgs(ctx, s.key(id), payload, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("storing session: %w", err)
	}
	return nil
}

// Touch extends an existing record to now + TTL. Absent records are ignored.
func (s *RedisStore) Touch(ctx context.Context, id string) error {
	rec, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	now := s.opts.Now()
	rec.TouchedAt = now
	rec.Cookie.Expires = now.Add(s.opts.TTL)

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	if err := s.client.SetXX(ctx, s.key(id), payload, s.opts.TTL).Err(); err != nil {
		return fmt.Errorf("touching session: %w", err)
	}
	return nil
}

// Destroy deletes a record. Deleting a missing key is not an error.
func (s *RedisStore) Destroy(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// Regenerate writes the record under a new identifier and deletes the old key
// in one MULTI/EXEC. If the old key was already gone by then, a concurrent
// destroy or regenerate won; the new key is rolled back and ErrNotFound returned.
func (s *RedisStore) Regenerate(ctx context.Context, id string) (string, error) {
	old, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}

	newID, err := s.opts.NewID()
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(s.opts.newRecord(newID, old.Data))
	if err != nil {
		return "", fmt.Errorf("encoding session: %w", err)
	}

	var del *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(newID), payload, s.opts.TTL)
		del = pipe.Del(ctx, s.key(id))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("regenerating session: %w", err)
	}

	if del.Val() == 0 {
		if err := s.client.Del(ctx, s.key(newID)).Err(); err != nil {
			s.logger.Error("rolling back regenerated session", "session", Fingerprint(newID), "error", err)
		}
		return "", ErrNotFound
	}
	return newID, nil
}

// Close releases the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
