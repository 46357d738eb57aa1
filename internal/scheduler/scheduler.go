// Package scheduler manages scheduled-rule expiry and the pre-warm cache
// for cron rules, grounded on this codebase's ticker-driven staleness sweep
// (internal/server's heartbeat checker) — here adapted into a host-driven
// sweep rather than an internally-scheduled goroutine, per the
// single-threaded cooperative contract the engine promises its callers.
package scheduler

import (
	"log"
	"sync"

	"github.com/personafy/personafy-core/internal/rules"
	"github.com/personafy/personafy-core/internal/vaulttypes"
)

var logger = log.New(log.Writer(), "[SCHED] ", log.LstdFlags)

// PreWarmed is the cached, materialized disclosure for a cron rule's
// sourceId, computed without recording an audit entry.
type PreWarmed struct {
	SourceID string
	Fields   map[string]string
}

// Cache is the process-local pre-warm cache. It is never persisted, and its
// entries are invalidated whenever the underlying rule expires or the vault
// is reloaded (Clear).
type Cache struct {
	mu      sync.RWMutex
	entries map[string]PreWarmed
}

// NewCache returns an empty pre-warm cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]PreWarmed)}
}

// PreWarm evaluates the cron rule identified by sourceID against v at nowMs,
// without auditing, caches the materialized fields, and returns them.
func PreWarm(cache *Cache, v *vaulttypes.Vault, getFieldValue func(persona, field string) (string, bool), sourceID string, nowMs int64) (PreWarmed, bool) {
	var match *vaulttypes.ScheduledRule
	for _, sr := range v.ScheduledRules {
		if sr.Kind == vaulttypes.ScheduledCron && sr.SourceID == sourceID {
			match = sr
			break
		}
	}
	if match == nil {
		return PreWarmed{}, false
	}
	if nowMs >= match.ExpiresAtMs {
		return PreWarmed{}, false
	}
	if match.TimeWindow != nil && !rules.TimeWindowActive(*match.TimeWindow, nowMs) {
		return PreWarmed{}, false
	}

	fields := make(map[string]string, len(match.Fields))
	for _, f := range match.Fields {
		if v, ok := getFieldValue(match.Persona, f); ok {
			fields[f] = v
		}
	}
	pw := PreWarmed{SourceID: sourceID, Fields: fields}

	cache.mu.Lock()
	cache.entries[sourceID] = pw
	cache.mu.Unlock()

	return pw, true
}

// GetPreWarmed returns a previously pre-warmed payload for sourceID, if any.
func (c *Cache) GetPreWarmed(sourceID string) (PreWarmed, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pw, ok := c.entries[sourceID]
	return pw, ok
}

// ClearPreWarmed evicts sourceID's cached entry.
func (c *Cache) ClearPreWarmed(sourceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sourceID)
}

// Clear evicts every cached entry — called on vault save/reload.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]PreWarmed)
}

// ExpireRules drops scheduled rules whose ExpiresAtMs <= now from v,
// invalidating any pre-warm cache entry for a dropped cron rule's
// sourceId. Returns the count dropped.
func ExpireRules(v *vaulttypes.Vault, cache *Cache, nowMs int64) int {
	kept := v.ScheduledRules[:0:0]
	count := 0
	for _, sr := range v.ScheduledRules {
		if nowMs >= sr.ExpiresAtMs {
			count++
			if sr.Kind == vaulttypes.ScheduledCron {
				cache.ClearPreWarmed(sr.SourceID)
			}
			continue
		}
		kept = append(kept, sr)
	}
	v.ScheduledRules = kept
	if count > 0 {
		logger.Printf("expired %d scheduled rules", count)
	}
	return count
}
