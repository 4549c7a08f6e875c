package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/corkum-labs/graphcore/internal/apperr"
	"github.com/corkum-labs/graphcore/internal/graphstore"
	"github.com/corkum-labs/graphcore/internal/model"
	"github.com/corkum-labs/graphcore/internal/observability"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct{}

func (fakeConn) Release() {}
func (fakeConn) Cancel()  {}

func newTestPool(n int) *graphstore.Pool {
	conns := make([]graphstore.Conn, n)
	for i := range conns {
		conns[i] = fakeConn{}
	}
	return graphstore.NewPool(conns)
}

type fakeDialect struct {
	fulltextErr   error
	similarityErr error
	bfsErr        error
}

func (f *fakeDialect) Name() string { return "fake" }

func (f *fakeDialect) Fulltext(ctx context.Context, req graphstore.FulltextRequest) ([]graphstore.Hit, error) {
	if f.fulltextErr != nil {
		return nil, f.fulltextErr
	}
	return []graphstore.Hit{{UUID: uuid.New(), Score: 1.0, Rank: 0}}, nil
}

func (f *fakeDialect) Similarity(ctx context.Context, req graphstore.SimilarityRequest) ([]graphstore.Hit, error) {
	if f.similarityErr != nil {
		return nil, f.similarityErr
	}
	return []graphstore.Hit{{UUID: uuid.New(), Score: 0.9, Rank: 0}}, nil
}

func (f *fakeDialect) BFS(ctx context.Context, req graphstore.BFSRequest) ([]graphstore.Hit, error) {
	if f.bfsErr != nil {
		return nil, f.bfsErr
	}
	return []graphstore.Hit{{UUID: uuid.New(), Score: 0, Rank: 0}}, nil
}

func (f *fakeDialect) FetchNodes(ctx context.Context, ids []uuid.UUID) ([]model.Node, error) { return nil, nil }
func (f *fakeDialect) FetchEdges(ctx context.Context, ids []uuid.UUID) ([]model.Edge, error) { return nil, nil }
func (f *fakeDialect) FetchEpisodes(ctx context.Context, ids []uuid.UUID) ([]model.Episode, error) {
	return nil, nil
}
func (f *fakeDialect) FetchCommunities(ctx context.Context, ids []uuid.UUID) ([]model.Community, error) {
	return nil, nil
}
func (f *fakeDialect) ShortestPath(ctx context.Context, center uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	return nil, nil
}
func (f *fakeDialect) NodesExist(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	return nil, nil
}

func testEngine(t *testing.T, d graphstore.Dialect) *Engine {
	t.Helper()
	pool := newTestPool(4)
	cfg := Config{MethodTimeout: time.Second, AggregateTimeout: 2 * time.Second, MaxConcurrent: 4}
	return New(d, pool, cfg, observability.NoopMetrics{}, observability.NewStandardLogger("test"))
}

func TestRetrieveAllMethodsSucceed(t *testing.T) {
	e := testEngine(t, &fakeDialect{})
	results, err := e.Retrieve(t.Context(), []Request{
		{Kind: model.KindNode, Methods: []graphstore.Method{graphstore.MethodFulltext, graphstore.MethodSimilarity}, Embedding: []float32{0.1}},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Degraded)
	assert.False(t, results[0].AllFailed())
}

func TestRetrieveDegradesOnPartialFailure(t *testing.T) {
	e := testEngine(t, &fakeDialect{similarityErr: apperr.New(apperr.KindUnavailable, "boom")})
	results, err := e.Retrieve(t.Context(), []Request{
		{Kind: model.KindNode, Methods: []graphstore.Method{graphstore.MethodFulltext, graphstore.MethodSimilarity}, Embedding: []float32{0.1}},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Degraded)
	assert.False(t, results[0].AllFailed(), "fulltext still succeeded")
}

func TestAllFailedWhenEveryMethodFails(t *testing.T) {
	e := testEngine(t, &fakeDialect{
		fulltextErr:   apperr.New(apperr.KindUnavailable, "a"),
		similarityErr: apperr.New(apperr.KindDependencyFailed, "b"),
	})
	results, err := e.Retrieve(t.Context(), []Request{
		{Kind: model.KindNode, Methods: []graphstore.Method{graphstore.MethodFulltext, graphstore.MethodSimilarity}, Embedding: []float32{0.1}},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].AllFailed())
	assert.Equal(t, apperr.KindDependencyFailed, apperr.KindOf(results[0].MostSevereError()))
}

func TestRetrieveRunsMultipleKindsConcurrently(t *testing.T) {
	e := testEngine(t, &fakeDialect{})
	results, err := e.Retrieve(t.Context(), []Request{
		{Kind: model.KindNode, Methods: []graphstore.Method{graphstore.MethodFulltext}},
		{Kind: model.KindEdge, Methods: []graphstore.Method{graphstore.MethodFulltext}},
		{Kind: model.KindEpisode, Methods: []graphstore.Method{graphstore.MethodFulltext}},
	})
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestSimilarityWithoutEmbeddingFails(t *testing.T) {
	e := testEngine(t, &fakeDialect{})
	results, err := e.Retrieve(t.Context(), []Request{
		{Kind: model.KindNode, Methods: []graphstore.Method{graphstore.MethodSimilarity}},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].AllFailed())
}
