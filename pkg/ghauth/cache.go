package ghauth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultRefreshBuffer is the margin before expiry at which a cached token
// is proactively refreshed instead of returned.
const DefaultRefreshBuffer = 5 * time.Minute

var ErrTokenExchange = errors.New("installation token exchange failed")

// Grant is one installation token with its expiry and granted permissions.
type Grant struct {
	Token       string
	ExpiresAt   time.Time
	Permissions map[string]string
}

// Exchanger trades an app assertion for an installation token in one round
// trip.
type Exchanger interface {
	Exchange(ctx context.Context, installationID int64) (Grant, error)
}

// TokenCache caches installation tokens per installation id. A returned
// token always has more than refreshBuffer of life left. Refresh is gated
// per installation so concurrent misses perform a single exchange.
type TokenCache struct {
	mu       sync.Mutex
	entries  map[int64]Grant
	inflight map[int64]*sync.Mutex

	exchanger     Exchanger
	refreshBuffer time.Duration
	now           func() time.Time
}

func NewTokenCache(exchanger Exchanger, refreshBuffer time.Duration) *TokenCache {
	if refreshBuffer <= 0 {
		refreshBuffer = DefaultRefreshBuffer
	}
	return &TokenCache{
		entries:       map[int64]Grant{},
		inflight:      map[int64]*sync.Mutex{},
		exchanger:     exchanger,
		refreshBuffer: refreshBuffer,
		now:           time.Now,
	}
}

// Token returns a cached token for the installation, exchanging a fresh one
// when the cache misses or the entry is inside the refresh buffer. A failed
// exchange caches nothing.
func (c *TokenCache) Token(ctx context.Context, installationID int64) (string, error) {
	if token, ok := c.cached(installationID); ok {
		return token, nil
	}

	gate := c.gate(installationID)
	gate.Lock()
	defer gate.Unlock()

	// Another caller may have refreshed while we waited on the gate.
	if token, ok := c.cached(installationID); ok {
		return token, nil
	}
	grant, err := c.exchanger.Exchange(ctx, installationID)
	if err != nil {
		return "", fmt.Errorf("installation %d: %w: %w", installationID, ErrTokenExchange, err)
	}
	c.mu.Lock()
	c.entries[installationID] = grant
	c.mu.Unlock()
	return grant.Token, nil
}

// Permissions reports the permission scopes granted with the cached token,
// if one is present.
func (c *TokenCache) Permissions(installationID int64) (map[string]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	grant, ok := c.entries[installationID]
	if !ok {
		return nil, false
	}
	out := make(map[string]string, len(grant.Permissions))
	for k, v := range grant.Permissions {
		out[k] = v
	}
	return out, true
}

// Invalidate drops one installation's entry, forcing the next Token call to
// exchange even if the entry had not expired.
func (c *TokenCache) Invalidate(installationID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, installationID)
}

// InvalidateAll clears every entry.
func (c *TokenCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[int64]Grant{}
}

func (c *TokenCache) cached(installationID int64) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	grant, ok := c.entries[installationID]
	if !ok || grant.ExpiresAt.Sub(c.now()) <= c.refreshBuffer {
		return "", false
	}
	return grant.Token, true
}

func (c *TokenCache) gate(installationID int64) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	gate, ok := c.inflight[installationID]
	if !ok {
		gate = &sync.Mutex{}
		c.inflight[installationID] = gate
	}
	return gate
}
