// Package redissess persists sessions in Redis, keyed by token with a
// sliding TTL so idle conversations expire on their own.
package redissess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adeyemi/chopbot/internal/model/session"
)

const keyPrefix = "session:"

// Store implements session.Store on top of a Redis client.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a Redis session store. Sessions expire ttl after their last
// write.
func New(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Get retrieves a session by token.
func (s *Store) Get(ctx context.Context, token string) (session.Session, error) {
	raw, err := s.client.Get(ctx, keyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return session.Session{}, session.ErrNotFound
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("session get: %w", err)
	}
	var sess session.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return session.Session{}, fmt.Errorf("session decode: %w", err)
	}
	return sess, nil
}

// Save writes the whole session as one value, so cart and stage are always
// observed together, and refreshes the TTL.
func (s *Store) Save(ctx context.Context, sess session.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session encode: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+sess.Token, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("session save: %w", err)
	}
	return nil
}

// Delete removes the session for the token.
func (s *Store) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, keyPrefix+token).Err(); err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	return nil
}
