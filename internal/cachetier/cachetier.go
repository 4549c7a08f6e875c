// Package cachetier implements C2: a bounded in-process LRU (L1) in front
// of a shared Redis store (L2), consulted in order, with TTL/pattern/
// version invalidation and per-tier metrics (spec.md §4.2). Adapted from
// the teacher's internal/cache.MultiLevelCache, which layers a
// golang-lru.Cache ahead of a Redis-backed Cache interface the same way.
package cachetier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/corkum-labs/graphcore/internal/observability"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// entry wraps a cached value with its own expiry so L1 eviction and TTL
// expiry are independent concerns (spec.md §4.2: "each entry carrying a
// per-entry expiry").
type entry struct {
	value   []byte
	expires time.Time
}

// Tier is the two-level cache C2 exposes to the service layer. Result
// payloads are opaque []byte blobs (callers own their own serialization);
// Tier itself only manages keys, tiers, TTLs, and invalidation.
type Tier struct {
	mu  sync.Mutex
	l1  *lru.Cache[string, entry]
	l2  redis.UniversalClient
	ttl time.Duration

	version int64
	l1Max   int
	metrics observability.MetricsClient
	logger  observability.Logger
}

// Config bounds L1 size and the default L2 TTL (spec.md §4.2 defaults:
// 1,000 result entries, 300s TTL).
type Config struct {
	L1Entries int
	L2TTL     time.Duration
	Version   int64
}

// New constructs a Tier. l2 may be nil, in which case the cache degrades
// to L1-only (spec.md §4.2: "L2 unavailability degrades to L1-only").
func New(l2 redis.UniversalClient, cfg Config, metrics observability.MetricsClient, logger observability.Logger) (*Tier, error) {
	l1, err := lru.New[string, entry](cfg.L1Entries)
	if err != nil {
		return nil, err
	}
	return &Tier{
		l1:      l1,
		l2:      l2,
		ttl:     cfg.L2TTL,
		version: cfg.Version,
		l1Max:   cfg.L1Entries,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// Key derives the deterministic cache key for (normalized query, group
// ids, params), truncating a SHA-256 digest to 64 bits as spec.md §4.2
// mandates: "a deterministic SHA-256 truncated to 64 bits over the tuple
// (cache-version, normalized query, sorted group identifier list,
// canonicalized additional parameters)".
func (t *Tier) Key(normalizedQuery string, groupIDs []string, params string) string {
	sorted := append([]string(nil), groupIDs...)
	sort.Strings(sorted)
	material := fmt.Sprintf("v%d|%s|%s|%s", t.version, normalizedQuery, strings.Join(sorted, ","), params)
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:8])
}

// Get consults L1, then L2 on miss, populating L1 on an L2 hit. It never
// returns an error: L2 failures are swallowed and treated as a miss
// (spec.md §4.2 contract: "non-blocking beyond brief lock acquisition").
func (t *Tier) Get(ctx context.Context, key string, out any) bool {
	now := time.Now()

	t.mu.Lock()
	e, ok := t.l1.Get(key)
	if ok && e.expires.After(now) {
		t.mu.Unlock()
		t.metrics.IncrementCounter("cachetier_hits_total", map[string]string{"tier": "l1"})
		if err := msgpack.Unmarshal(e.value, out); err != nil {
			t.logger.Warn("cachetier: l1 payload unmarshal failed", map[string]any{"error": err.Error()})
			return false
		}
		return true
	}
	if ok {
		t.l1.Remove(key)
	}
	t.mu.Unlock()

	if t.l2 == nil {
		t.metrics.IncrementCounter("cachetier_misses_total", map[string]string{"tier": "l1"})
		return false
	}

	raw, err := t.l2.Get(ctx, key).Bytes()
	if err != nil {
		t.metrics.IncrementCounter("cachetier_misses_total", map[string]string{"tier": "l2"})
		return false
	}
	if err := msgpack.Unmarshal(raw, out); err != nil {
		t.logger.Warn("cachetier: l2 payload format mismatch, discarding", map[string]any{"key": key, "error": err.Error()})
		return false
	}

	t.metrics.IncrementCounter("cachetier_hits_total", map[string]string{"tier": "l2"})
	t.mu.Lock()
	t.l1.Add(key, entry{value: raw, expires: now.Add(t.ttl)})
	t.mu.Unlock()
	return true
}

// Set writes value to both tiers and, for each groupID the entry is
// scoped to, records key under that group's index set so a later
// InvalidateGroup can find it: cache keys are opaque SHA-256 digests
// (Key, above) and carry no group identifier a pattern scan could match
// against, so membership has to be tracked explicitly at write time. L2
// errors are logged, never returned (spec.md §4.2: "L2 errors are logged
// and do not fail the call").
func (t *Tier) Set(ctx context.Context, key string, value any, ttl time.Duration, groupIDs []string) {
	if ttl <= 0 {
		ttl = t.ttl
	}
	raw, err := msgpack.Marshal(value)
	if err != nil {
		t.logger.Warn("cachetier: serialization failed", map[string]any{"error": err.Error()})
		return
	}

	t.mu.Lock()
	t.l1.Add(key, entry{value: raw, expires: time.Now().Add(ttl)})
	t.mu.Unlock()

	if t.l2 == nil {
		return
	}
	if err := t.l2.Set(ctx, key, raw, ttl).Err(); err != nil {
		t.logger.Warn("cachetier: l2 write failed", map[string]any{"key": key, "error": err.Error()})
	}
	for _, groupID := range groupIDs {
		idxKey := groupIndexKey(groupID)
		if err := t.l2.SAdd(ctx, idxKey, key).Err(); err != nil {
			t.logger.Warn("cachetier: group index write failed", map[string]any{"group_id": groupID, "error": err.Error()})
			continue
		}
		if err := t.l2.Expire(ctx, idxKey, ttl).Err(); err != nil {
			t.logger.Warn("cachetier: group index ttl refresh failed", map[string]any{"group_id": groupID, "error": err.Error()})
		}
	}
}

func groupIndexKey(groupID string) string {
	return "group-idx:" + groupID
}

// InvalidateGroup deletes every L2 key recorded under groupID's index set
// (populated by Set), then clears that index set itself, and purges L1
// entirely since L1 keys can't be selectively matched against a group
// (spec.md §4.2: "L1 is cleared on any invalidation that targets L2").
// Returns the count of removed L2 result keys.
func (t *Tier) InvalidateGroup(ctx context.Context, groupID string) (int, error) {
	t.purgeL1()
	if t.l2 == nil {
		return 0, nil
	}

	idxKey := groupIndexKey(groupID)
	keys, err := t.l2.SMembers(ctx, idxKey).Result()
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	removed, err := t.l2.Del(ctx, keys...).Result()
	if err != nil {
		return int(removed), err
	}
	if err := t.l2.Del(ctx, idxKey).Err(); err != nil {
		t.logger.Warn("cachetier: group index cleanup failed", map[string]any{"group_id": groupID, "error": err.Error()})
	}
	return int(removed), nil
}

// InvalidateAll bumps the cache version, implicitly invalidating every
// key derived under the previous version, and flushes both tiers.
func (t *Tier) InvalidateAll(ctx context.Context) (int, error) {
	t.mu.Lock()
	t.version++
	t.mu.Unlock()
	t.purgeL1()
	if t.l2 == nil {
		return 0, nil
	}
	return t.scanDelete(ctx, "*")
}

func (t *Tier) purgeL1() {
	t.mu.Lock()
	t.l1.Purge()
	t.mu.Unlock()
}

func (t *Tier) scanDelete(ctx context.Context, pattern string) (int, error) {
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := t.l2.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return removed, err
		}
		if len(keys) > 0 {
			n, err := t.l2.Del(ctx, keys...).Result()
			if err != nil {
				return removed, err
			}
			removed += int(n)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return removed, nil
}

// Stats reports current tier occupancy for the cache-stats debug endpoint.
type Stats struct {
	L1Len     int
	L1MaxLen  int
	L2Enabled bool
	Version   int64
}

func (t *Tier) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{L1Len: t.l1.Len(), L1MaxLen: t.l1Max, L2Enabled: t.l2 != nil, Version: t.version}
}
