package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/corkum-labs/graphcore/internal/cachetier"
	"github.com/corkum-labs/graphcore/internal/config"
	"github.com/corkum-labs/graphcore/internal/embedcollab"
	"github.com/corkum-labs/graphcore/internal/graphstore"
	"github.com/corkum-labs/graphcore/internal/model"
	"github.com/corkum-labs/graphcore/internal/observability"
	"github.com/corkum-labs/graphcore/internal/preparer"
	"github.com/corkum-labs/graphcore/internal/retrieval"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct{}

func (fakeConn) Release() {}
func (fakeConn) Cancel()  {}

type stubDialect struct {
	nodeID uuid.UUID
}

func (d *stubDialect) Name() string { return "stub" }

func (d *stubDialect) Fulltext(ctx context.Context, req graphstore.FulltextRequest) ([]graphstore.Hit, error) {
	if req.Limit <= 0 {
		return nil, nil
	}
	return []graphstore.Hit{{UUID: d.nodeID, Score: 1.0, Rank: 0}}, nil
}
func (d *stubDialect) Similarity(ctx context.Context, req graphstore.SimilarityRequest) ([]graphstore.Hit, error) {
	if req.Limit <= 0 {
		return nil, nil
	}
	return []graphstore.Hit{{UUID: d.nodeID, Score: 0.9, Rank: 0}}, nil
}
func (d *stubDialect) BFS(ctx context.Context, req graphstore.BFSRequest) ([]graphstore.Hit, error) {
	return nil, nil
}
func (d *stubDialect) FetchNodes(ctx context.Context, ids []uuid.UUID) ([]model.Node, error) {
	var out []model.Node
	for _, id := range ids {
		if id == d.nodeID {
			out = append(out, model.Node{UUID: id, Name: "Ada Lovelace", Summary: "mathematician", GroupID: "g1", CreatedAt: time.Now()})
		}
	}
	return out, nil
}
func (d *stubDialect) FetchEdges(ctx context.Context, ids []uuid.UUID) ([]model.Edge, error) { return nil, nil }
func (d *stubDialect) FetchEpisodes(ctx context.Context, ids []uuid.UUID) ([]model.Episode, error) {
	return nil, nil
}
func (d *stubDialect) FetchCommunities(ctx context.Context, ids []uuid.UUID) ([]model.Community, error) {
	return nil, nil
}
func (d *stubDialect) ShortestPath(ctx context.Context, center uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	return nil, nil
}
func (d *stubDialect) NodesExist(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	return nil, nil
}

func newTestService(t *testing.T) *Service {
	t.Helper()

	embedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{{"embedding": []float32{0.1, 0.2}}}})
	}))
	t.Cleanup(embedSrv.Close)
	embedClient, err := embedcollab.New(embedSrv.URL, "test-model", 2, 100, time.Second)
	require.NoError(t, err)

	cfg := config.New()
	prep := preparer.New(embedClient, &cfg.Search)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache, err := cachetier.New(redisClient, cachetier.Config{L1Entries: 100, L2TTL: time.Minute}, observability.NoopMetrics{}, observability.NewStandardLogger("test"))
	require.NoError(t, err)

	nodeID := uuid.New()
	dialect := &stubDialect{nodeID: nodeID}
	pool := graphstore.NewPool([]graphstore.Conn{fakeConn{}, fakeConn{}, fakeConn{}, fakeConn{}})
	engine := retrieval.New(dialect, pool, retrieval.Config{MethodTimeout: time.Second, AggregateTimeout: 2 * time.Second, MaxConcurrent: 4}, observability.NoopMetrics{}, observability.NewStandardLogger("test"))

	return New(prep, cache, engine, dialect, observability.NewStandardLogger("test"), observability.NoopMetrics{})
}

func TestSearchReturnsNodeResults(t *testing.T) {
	svc := newTestService(t)
	result, err := svc.Search(t.Context(), SearchInput{
		Query:  "ada lovelace",
		Filter: model.Filter{GroupIDs: []string{"g1"}},
		Options: preparer.Options{
			Node: preparer.KindOptions{Enabled: true, SearchMethods: []preparer.Method{preparer.MethodFulltext}},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Nodes, 1)
	assert.Equal(t, "Ada Lovelace", result.Nodes[0].Name)
}

func TestSearchCachesSecondIdenticalRequest(t *testing.T) {
	svc := newTestService(t)
	in := SearchInput{
		Query:  "ada lovelace",
		Filter: model.Filter{GroupIDs: []string{"g1"}},
		Options: preparer.Options{
			Node: preparer.KindOptions{Enabled: true, SearchMethods: []preparer.Method{preparer.MethodFulltext}},
		},
	}
	r1, err := svc.Search(t.Context(), in)
	require.NoError(t, err)
	r2, err := svc.Search(t.Context(), in)
	require.NoError(t, err)
	assert.Equal(t, r1.Nodes, r2.Nodes)
}

func TestSearchWithExplicitZeroLimitReturnsEmptyResultWithLatency(t *testing.T) {
	svc := newTestService(t)
	zero := 0
	result, err := svc.Search(t.Context(), SearchInput{
		Query:  "ada lovelace",
		Filter: model.Filter{GroupIDs: []string{"g1"}},
		Options: preparer.Options{
			Limit: &zero,
			Node:  preparer.KindOptions{Enabled: true, SearchMethods: []preparer.Method{preparer.MethodFulltext}},
		},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Nodes, "limit:0 must yield an empty per-kind result, not the deployment default")
	assert.GreaterOrEqual(t, result.LatencyMS, int64(0), "latency_ms must still be populated")
}

func TestInvalidateGroupRequiresGroupID(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.InvalidateGroup(t.Context(), "")
	require.Error(t, err)
}
