// profile.go
package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const profileCacheTTL = 24 * time.Hour

// profileFetcher is the Graph lookup behind the cache.
type profileFetcher interface {
	FetchProfile(ctx context.Context, userID, accessToken string) (string, error)
}

// ProfileCache resolves sender ids to display names. Lookup order: Redis
// (when connected), the in-memory map, then the Graph API behind a
// singleflight so one burst of messages from the same sender costs one
// upstream call. Enrichment is best-effort: any failure yields a generated
// placeholder, never an error.
type ProfileCache struct {
	fetcher profileFetcher
	rdb     *redis.Client // nil when Redis is not configured or unreachable

	mu    sync.RWMutex
	local map[string]cachedName
	sf    singleflight.Group
}

type cachedName struct {
	name      string
	expiresAt time.Time
}

func NewProfileCache(fetcher profileFetcher, rdb *redis.Client) *ProfileCache {
	return &ProfileCache{
		fetcher: fetcher,
		rdb:     rdb,
		local:   make(map[string]cachedName),
	}
}

// DisplayName returns a human-readable name for userID, falling back to a
// placeholder derived from the id.
func (p *ProfileCache) DisplayName(ctx context.Context, userID, accessToken string) string {
	if userID == "" {
		return "user"
	}

	if name, ok := p.fromRedis(ctx, userID); ok {
		return name
	}
	if name, ok := p.fromLocal(userID); ok {
		return name
	}

	name, err, _ := p.sf.Do(userID, func() (interface{}, error) {
		return p.fetcher.FetchProfile(ctx, userID, accessToken)
	})
	if err != nil {
		LogDebug("Profile lookup failed for %s: %v", userID, err)
		return placeholderName(userID)
	}

	p.store(ctx, userID, name.(string))
	return name.(string)
}

func (p *ProfileCache) fromRedis(ctx context.Context, userID string) (string, bool) {
	if p.rdb == nil {
		return "", false
	}
	name, err := p.rdb.Get(ctx, "profile:"+userID).Result()
	if err != nil {
		return "", false
	}
	return name, true
}

func (p *ProfileCache) fromLocal(userID string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	entry, ok := p.local[userID]
	if !ok || time.Now().After(entry.expiresAt) {
		return "", false
	}
	return entry.name, true
}

func (p *ProfileCache) store(ctx context.Context, userID, name string) {
	p.mu.Lock()
	p.local[userID] = cachedName{name: name, expiresAt: time.Now().Add(profileCacheTTL)}
	p.mu.Unlock()

	if p.rdb != nil {
		if err := p.rdb.Set(ctx, "profile:"+userID, name, profileCacheTTL).Err(); err != nil {
			LogDebug("Redis profile cache write failed for %s: %v", userID, err)
		}
	}
}

// placeholderName is the terminal fallback for profile enrichment.
func placeholderName(userID string) string {
	if len(userID) > 6 {
		userID = userID[len(userID)-6:]
	}
	return fmt.Sprintf("user-%s", userID)
}
