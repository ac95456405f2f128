// Package redisstore is a sessionstore.Store backed by Redis, using the
// store's native key TTL instead of an in-process GC sweep.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"goa.design/federator/planner/sessionstore"
)

// Store wraps a *redis.Client, namespacing keys under prefix.
type Store struct {
	rdb    *redis.Client
	prefix string
}

// New builds a Store. prefix is prepended to every session id to form the
// Redis key (e.g. "federator:plan-session:").
func New(rdb *redis.Client, prefix string) *Store {
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + sessionID
}

// Get implements sessionstore.Store.
func (s *Store) Get(ctx context.Context, sessionID string) (map[string]string, bool, error) {
	raw, err := s.rdb.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var results map[string]string
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, false, err
	}
	return results, true, nil
}

// Save implements sessionstore.Store, setting the session's native Redis
// TTL to sessionstore.TTL on every call.
func (s *Store) Save(ctx context.Context, sessionID string, results map[string]string) error {
	raw, err := json.Marshal(results)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(sessionID), raw, sessionstore.TTL).Err()
}
