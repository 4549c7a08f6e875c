package cachetier

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/corkum-labs/graphcore/internal/observability"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTier(t *testing.T) (*Tier, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tier, err := New(client, Config{L1Entries: 10, L2TTL: time.Minute}, observability.NoopMetrics{}, observability.NewStandardLogger("test"))
	require.NoError(t, err)
	return tier, mr
}

type payload struct {
	Value string
}

func TestSetThenGetHitsL1(t *testing.T) {
	tier, _ := newTestTier(t)
	tier.Set(t.Context(), "k1", payload{Value: "hello"}, time.Minute, nil)

	var out payload
	ok := tier.Get(t.Context(), "k1", &out)
	assert.True(t, ok)
	assert.Equal(t, "hello", out.Value)
}

func TestGetMissReturnsFalse(t *testing.T) {
	tier, _ := newTestTier(t)
	var out payload
	ok := tier.Get(t.Context(), "missing", &out)
	assert.False(t, ok)
}

func TestL2HitPopulatesL1(t *testing.T) {
	tier, _ := newTestTier(t)
	tier.Set(t.Context(), "k1", payload{Value: "hello"}, time.Minute, nil)

	// Purge L1 directly to force an L2-only path.
	tier.purgeL1()

	var out payload
	ok := tier.Get(t.Context(), "k1", &out)
	require.True(t, ok)
	assert.Equal(t, "hello", out.Value)

	stats := tier.Stats()
	assert.Equal(t, 1, stats.L1Len, "L2 hit should repopulate L1")
}

func TestInvalidateGroupRemovesMatchingKeys(t *testing.T) {
	tier, _ := newTestTier(t)
	key := tier.Key("query text", []string{"group-a"}, "")
	tier.Set(t.Context(), key, payload{Value: "hello"}, time.Minute, []string{"group-a"})

	removed, err := tier.InvalidateGroup(t.Context(), "group-a")
	require.NoError(t, err)
	assert.Equal(t, 1, removed, "the L2 entry indexed under group-a must actually be deleted")

	var out payload
	ok := tier.Get(t.Context(), key, &out)
	assert.False(t, ok, "invalidated key must be gone from both L1 (purged) and L2 (deleted)")
}

func TestInvalidateGroupLeavesOtherGroupsIntact(t *testing.T) {
	tier, _ := newTestTier(t)
	keyA := tier.Key("query a", []string{"group-a"}, "")
	keyB := tier.Key("query b", []string{"group-b"}, "")
	tier.Set(t.Context(), keyA, payload{Value: "a"}, time.Minute, []string{"group-a"})
	tier.Set(t.Context(), keyB, payload{Value: "b"}, time.Minute, []string{"group-b"})

	removed, err := tier.InvalidateGroup(t.Context(), "group-a")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	var out payload
	assert.False(t, tier.Get(t.Context(), keyA, &out), "group-a's entry must be gone")
	assert.True(t, tier.Get(t.Context(), keyB, &out), "group-b's entry must be untouched")
	assert.Equal(t, "b", out.Value)
}

func TestInvalidateGroupWithNoEntriesReturnsZero(t *testing.T) {
	tier, _ := newTestTier(t)
	removed, err := tier.InvalidateGroup(t.Context(), "never-written")
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestKeyIsDeterministicAndOrderIndependent(t *testing.T) {
	tier, _ := newTestTier(t)
	k1 := tier.Key("same query", []string{"b", "a"}, "p=1")
	k2 := tier.Key("same query", []string{"a", "b"}, "p=1")
	assert.Equal(t, k1, k2, "group id order must not affect the derived key")
}

func TestKeyChangesWithVersionBump(t *testing.T) {
	tier, _ := newTestTier(t)
	before := tier.Key("q", []string{"g"}, "")
	_, err := tier.InvalidateAll(t.Context())
	require.NoError(t, err)
	after := tier.Key("q", []string{"g"}, "")
	assert.NotEqual(t, before, after)
}

func TestGetDegradesWhenL2Unavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tier, err := New(client, Config{L1Entries: 10, L2TTL: time.Minute}, observability.NoopMetrics{}, observability.NewStandardLogger("test"))
	require.NoError(t, err)

	tier.Set(t.Context(), "k1", payload{Value: "hello"}, time.Minute, nil)
	mr.Close()

	tier.purgeL1()
	var out payload
	ok := tier.Get(t.Context(), "k1", &out)
	assert.False(t, ok, "L2 unavailability must degrade to a miss, not an error")
}
