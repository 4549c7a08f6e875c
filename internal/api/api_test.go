package api

import (
	"bytes"
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
	"github.com/corkum-labs/graphcore/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeConn struct{}

func (fakeConn) Release() {}
func (fakeConn) Cancel()  {}

type stubDialect struct {
	nodeID  uuid.UUID
	fetchErr error
}

func (d *stubDialect) Name() string { return "stub" }
func (d *stubDialect) Fulltext(ctx context.Context, req graphstore.FulltextRequest) ([]graphstore.Hit, error) {
	return []graphstore.Hit{{UUID: d.nodeID, Score: 1.0}}, nil
}
func (d *stubDialect) Similarity(ctx context.Context, req graphstore.SimilarityRequest) ([]graphstore.Hit, error) {
	return nil, nil
}
func (d *stubDialect) BFS(ctx context.Context, req graphstore.BFSRequest) ([]graphstore.Hit, error) {
	return nil, nil
}
func (d *stubDialect) FetchNodes(ctx context.Context, ids []uuid.UUID) ([]model.Node, error) {
	if d.fetchErr != nil {
		return nil, d.fetchErr
	}
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
	return nil, d.fetchErr
}

func newTestRouter(t *testing.T) (*gin.Engine, *stubDialect) {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	dialect := &stubDialect{nodeID: uuid.New()}
	pool := graphstore.NewPool([]graphstore.Conn{fakeConn{}, fakeConn{}, fakeConn{}, fakeConn{}})
	engine := retrieval.New(dialect, pool, retrieval.Config{MethodTimeout: time.Second, AggregateTimeout: 2 * time.Second, MaxConcurrent: 4}, observability.NoopMetrics{}, observability.NewStandardLogger("test"))

	svc := service.New(prep, cache, engine, dialect, observability.NewStandardLogger("test"), observability.NoopMetrics{})
	h := NewHandler(svc, dialect, observability.NewStandardLogger("test"), observability.NoopMetrics{})
	return NewRouter(h, 256), dialect
}

func TestHealthReportsOK(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "healthy", body["status"])
}

func TestHealthReportsDegradedOnDialectFailure(t *testing.T) {
	router, dialect := newTestRouter(t)
	dialect.fetchErr = errBoom{}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "degraded", body["status"])
	require.Equal(t, "unreachable", body["database"])
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func TestSearchNodesReturnsMatches(t *testing.T) {
	router, _ := newTestRouter(t)

	body := map[string]any{
		"query":          "ada lovelace",
		"search_methods": []string{"fulltext"},
		"filters":        map[string]any{"group_ids": []string{"g1"}},
	}
	buf, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/search/nodes", bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp searchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Nodes, 1)
	require.Equal(t, "Ada Lovelace", resp.Nodes[0].Name)
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	router, _ := newTestRouter(t)

	body := map[string]any{"query": "", "filters": map[string]any{"group_ids": []string{"g1"}}}
	buf, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvalidateRequiresGroupID(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/invalidate", bytes.NewReader([]byte(`{"operation":"delete"}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCacheStatsReturnsOccupancy(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/search/cache/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
