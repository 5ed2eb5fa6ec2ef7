// Package cache memoizes the two expensive fitted artifacts of the
// pipeline — C5's payout curves and C4's ownership predictions — keyed
// by slate fingerprint, so repeated calls against the same slate within
// a process don't re-fit a curve or re-run the ownership ensemble.
//
// Grounded on internal/cache/analytics_cache.go's AnalyticsCache in the
// teacher codebase (key-prefixed entries, per-entry TTL, hit/miss/set
// counters, a WarmCache-style bulk path, periodic expired-key sweep);
// this keeps that entry/TTL/stats shape but drops github.com/go-redis/
// redis/v8 for an in-process sync.RWMutex-guarded map. A standalone
// numerical library has no Redis deployment to connect to — spec.md's
// non-goals exclude a persistent store, and nothing in this repo
// crosses a process boundary where a shared cache server would help, so
// the teacher's only out-of-process dependency here has no component
// left to serve it.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/constraintspec"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/dfslog"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/dfstypes"
)

// Stats mirrors the teacher's CacheStats, trimmed to what an in-process
// map can actually report.
type Stats struct {
	Hits    int64
	Misses  int64
	Sets    int64
	Evicted int64
}

type entry struct {
	value     any
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Cache is a slate-fingerprint-keyed store for payout curves and
// ownership predictions. The zero value is not usable; construct with
// New.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	defaultTTL time.Duration
	logger     *logrus.Entry

	stats Stats
}

// New builds a Cache whose entries expire after defaultTTL unless a
// call-site override is given. defaultTTL<=0 means entries never expire
// on their own; Purge sweeps only expired entries, so such entries stay
// until the process exits.
func New(defaultTTL time.Duration) *Cache {
	return &Cache{
		entries:    make(map[string]entry),
		defaultTTL: defaultTTL,
		logger:     dfslog.Root().WithField("component", "cache"),
	}
}

func (c *Cache) set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expiresAt: expiresAt}
	c.stats.Sets++
}

func (c *Cache) get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		c.mu.Lock()
		c.stats.Misses++
		c.mu.Unlock()
		return nil, false
	}
	if e.expired(time.Now()) {
		c.mu.Lock()
		delete(c.entries, key)
		c.stats.Misses++
		c.stats.Evicted++
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	c.stats.Hits++
	c.mu.Unlock()
	return e.value, true
}

// SetPayoutCurve caches the fitted curve for a (slate, tier) pair.
func (c *Cache) SetPayoutCurve(fp dfstypes.Fingerprint, tier dfstypes.ContestTier, curve dfstypes.PayoutCurve, ttl time.Duration) {
	c.set(payoutKey(fp, tier), curve, ttl)
	c.logger.WithFields(logrus.Fields{"fingerprint": fp, "tier": tier}).Debug("cached payout curve")
}

// GetPayoutCurve returns the cached curve for (fp, tier), if present and
// unexpired.
func (c *Cache) GetPayoutCurve(fp dfstypes.Fingerprint, tier dfstypes.ContestTier) (dfstypes.PayoutCurve, bool) {
	v, ok := c.get(payoutKey(fp, tier))
	if !ok {
		return dfstypes.PayoutCurve{}, false
	}
	return v.(dfstypes.PayoutCurve), true
}

// SetOwnership caches ownership predictions for a slate.
func (c *Cache) SetOwnership(fp dfstypes.Fingerprint, predictions []dfstypes.OwnershipPrediction, ttl time.Duration) {
	c.set(ownershipKey(fp), predictions, ttl)
	c.logger.WithFields(logrus.Fields{"fingerprint": fp, "driver_count": len(predictions)}).Debug("cached ownership predictions")
}

// GetOwnership returns the cached ownership predictions for fp, if
// present and unexpired.
func (c *Cache) GetOwnership(fp dfstypes.Fingerprint) ([]dfstypes.OwnershipPrediction, bool) {
	v, ok := c.get(ownershipKey(fp))
	if !ok {
		return nil, false
	}
	return v.([]dfstypes.OwnershipPrediction), true
}

// Purge removes every expired entry and reports how many were swept.
func (c *Cache) Purge() int {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	swept := 0
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			swept++
		}
	}
	c.stats.Evicted += int64(swept)
	return swept
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

func payoutKey(fp dfstypes.Fingerprint, tier dfstypes.ContestTier) string {
	return "payout:" + string(fp) + ":" + string(tier)
}

func ownershipKey(fp dfstypes.Fingerprint) string {
	return "ownership:" + string(fp)
}

// Fingerprint computes the SHA-256 cache key of spec.md §6: normalized
// drivers (sorted by ID so the hash is independent of Slate.Drivers
// ordering) plus archetype attributes plus the compiled constraint
// spec's team-stack bounds. Any change to either input changes the
// fingerprint and invalidates every entry keyed on the old one.
func Fingerprint(slate dfstypes.Slate, spec *constraintspec.Spec) dfstypes.Fingerprint {
	rows := make([]string, len(slate.Drivers))
	for i, d := range slate.Drivers {
		rows[i] = fmt.Sprintf("%s|%d|%s|%.6f|%.6f|%.6f|%.6f",
			d.DriverID, d.Salary, d.TeamID,
			d.Archetype.Skill, d.Archetype.Aggression, d.Archetype.ShadowRisk, d.Archetype.RealpolitikPos)
	}
	sort.Strings(rows)

	minStack, maxStack := 0, 0
	if spec != nil {
		minStack, maxStack = spec.TeamStackBounds()
	}

	h := sha256.New()
	fmt.Fprintf(h, "salary_cap=%d|roster_size=%d|track=%s|min_stack=%d|max_stack=%d|drivers=%s",
		slate.SalaryCap, slate.RosterSize, slate.TrackArchetype, minStack, maxStack, strings.Join(rows, ";"))
	return dfstypes.Fingerprint(hex.EncodeToString(h.Sum(nil)))
}
