package utils

import (
	"context"
	"sync"
	"time"
)

// expiringSet is a set of keys with per-key expiry, kept in Redis when available and in memory otherwise.
type expiringSet struct {
	prefix string
	mu     sync.Mutex
	mem    map[string]time.Time
}

func newExpiringSet(prefix string) *expiringSet {
	return &expiringSet{prefix: prefix, mem: map[string]time.Time{}}
}

func (s *expiringSet) Add(key string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rc.Set(ctx, s.prefix+key, "1", ttl).Err(); err == nil {
			return
		}
	}
	s.mu.Lock()
	s.mem[key] = expiresAt
	s.mu.Unlock()
}

func (s *expiringSet) Has(key string) bool {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if n, err := rc.Exists(ctx, s.prefix+key).Result(); err == nil && n > 0 {
			return true
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.mem[key]
	if !ok {
		return false
	}
	if time.Now().After(exp) {
		delete(s.mem, key)
		return false
	}
	return true
}

var revokedTokens = newExpiringSet("jwt:blacklist:")

// BlacklistToken revokes a token until its natural expiry.
func BlacklistToken(token string, expiresAt time.Time) {
	revokedTokens.Add(token, expiresAt)
}

// IsTokenBlacklisted checks if a token was revoked before natural expiration.
func IsTokenBlacklisted(token string) bool {
	return revokedTokens.Has(token)
}
