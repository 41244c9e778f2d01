// Package cache holds the Redis-backed session blocklist.
package cache

import (
	"context"
	"errors"
	"time"
)

var ErrMiss = errors.New("cache miss")

type Cache interface {
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

const blocklistPrefix = "authd:session:revoked:"

// SessionBlocklist marks sessions whose access tokens must stop
// authenticating before they expire. Entries live for the access-token TTL.
type SessionBlocklist struct {
	cache Cache
}

func NewSessionBlocklist(cache Cache) *SessionBlocklist {
	return &SessionBlocklist{cache: cache}
}

func (b *SessionBlocklist) Block(ctx context.Context, sessionID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return b.cache.Set(ctx, blocklistPrefix+sessionID, "1", ttl)
}

func (b *SessionBlocklist) IsBlocked(ctx context.Context, sessionID string) (bool, error) {
	_, err := b.cache.Get(ctx, blocklistPrefix+sessionID)
	if errors.Is(err, ErrMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
