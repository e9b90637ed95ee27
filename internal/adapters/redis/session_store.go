package redis

// Package redis provides Redis-based adapters for the outpass portal.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domainsession "github.com/mith/outpass-portal/internal/domain/session"
	"github.com/mith/outpass-portal/internal/ports"
)

// SessionStore is a Redis-based portal session store. The Redis entry is the
// only cross-reload shared resource: whatever is recovered from here at
// request time is the single source of truth for authentication state.
// TTL follows the session's ExpiresAt.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
}

// NewSessionStore creates a session store with the default key namespace.
func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return &SessionStore{client: client, prefix: "portal:session:"}
}

// NewSessionStoreWithPrefix creates a session store with a custom key prefix.
func NewSessionStoreWithPrefix(client redis.UniversalClient, prefix string) *SessionStore {
	return &SessionStore{client: client, prefix: prefix}
}

func (s *SessionStore) Save(ctx context.Context, sess domainsession.Session) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return errors.New("session is expired")
	}

	return s.client.Set(ctx, s.prefix+sess.ID, data, ttl).Err()
}

func (s *SessionStore) Get(ctx context.Context, id string) (domainsession.Session, error) {
	if id == "" {
		return domainsession.Session{}, ErrNotFound
	}

	data, err := s.client.Get(ctx, s.prefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainsession.Session{}, ErrNotFound
		}
		return domainsession.Session{}, fmt.Errorf("redis get: %w", err)
	}

	var sess domainsession.Session
	if unmarshalErr := json.Unmarshal([]byte(data), &sess); unmarshalErr != nil {
		return domainsession.Session{}, fmt.Errorf("unmarshal session: %w", unmarshalErr)
	}

	// Redis TTL should have evicted expired entries already; re-check in
	// case of clock drift between writers.
	if time.Now().After(sess.ExpiresAt) {
		if deleteErr := s.Delete(ctx, id); deleteErr != nil {
			return domainsession.Session{}, fmt.Errorf("cleanup expired session: %w", deleteErr)
		}
		return domainsession.Session{}, ErrNotFound
	}

	return sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil // Nothing to delete
	}
	return s.client.Del(ctx, s.prefix+id, s.seqKey(id)).Err()
}

// BumpLoginSeq increments the session's login attempt counter with a single
// INCR, so concurrent attempts can never take the same value. The counter
// lives next to the session entry and inherits its TTL.
func (s *SessionStore) BumpLoginSeq(ctx context.Context, id string) (uint64, error) {
	if id == "" {
		return 0, ErrNotFound
	}

	n, err := s.client.Incr(ctx, s.seqKey(id)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr: %w", err)
	}
	if ttl, ttlErr := s.client.TTL(ctx, s.prefix+id).Result(); ttlErr == nil && ttl > 0 {
		_ = s.client.Expire(ctx, s.seqKey(id), ttl).Err()
	}
	return uint64(n), nil
}

func (s *SessionStore) seqKey(id string) string { return s.prefix + "seq:" + id }

// ErrNotFound is returned when a session is not found.
var ErrNotFound = ports.ErrSessionNotFound
