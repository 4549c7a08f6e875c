package preparer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/corkum-labs/graphcore/internal/apperr"
	"github.com/corkum-labs/graphcore/internal/config"
	"github.com/corkum-labs/graphcore/internal/embedcollab"
	"github.com/corkum-labs/graphcore/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEmbedServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float32{0.1, 0.2, 0.3, 0.4}}},
		})
	}))
}

func testPreparer(t *testing.T) *Preparer {
	t.Helper()
	srv := testEmbedServer(t)
	t.Cleanup(srv.Close)
	client, err := embedcollab.New(srv.URL, "test-model", 4, 100, time.Second)
	require.NoError(t, err)
	cfg := config.New().Search
	return New(client, &cfg)
}

func TestPrepareRejectsEmptyQuery(t *testing.T) {
	p := testPreparer(t)
	_, err := p.Prepare(t.Context(), "   ", model.Filter{GroupIDs: []string{"g1"}}, nil, Options{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
}

func TestPrepareRejectsMissingGroupIDsWithoutOptIn(t *testing.T) {
	p := testPreparer(t)
	_, err := p.Prepare(t.Context(), "hello", model.Filter{}, nil, Options{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
}

func TestPrepareAllowsTenancyWideWhenOptedIn(t *testing.T) {
	p := testPreparer(t)
	req, err := p.Prepare(t.Context(), "hello", model.Filter{}, nil, Options{AllowTenancyWide: true})
	require.NoError(t, err)
	assert.Equal(t, "hello", req.NormalizedQuery)
}

func TestPrepareCollapsesWhitespace(t *testing.T) {
	p := testPreparer(t)
	req, err := p.Prepare(t.Context(), "  hello   world  ", model.Filter{GroupIDs: []string{"g1"}}, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, "hello world", req.NormalizedQuery)
}

func TestPrepareUsesSuppliedEmbeddingOverCollaborator(t *testing.T) {
	p := testPreparer(t)
	vec := []float32{9, 9, 9, 9}
	req, err := p.Prepare(t.Context(), "hello", model.Filter{GroupIDs: []string{"g1"}}, vec,
		Options{Node: KindOptions{Enabled: true, SearchMethods: []Method{MethodSimilarity}}})
	require.NoError(t, err)
	assert.Equal(t, vec, req.Embedding)
}

func TestPrepareSkipsEmbeddingWhenNoKindNeedsIt(t *testing.T) {
	p := testPreparer(t)
	req, err := p.Prepare(t.Context(), "hello", model.Filter{GroupIDs: []string{"g1"}}, nil,
		Options{Node: KindOptions{Enabled: true, SearchMethods: []Method{MethodFulltext}}})
	require.NoError(t, err)
	assert.Nil(t, req.Embedding)
}

func TestPrepareClampsLimitToMax(t *testing.T) {
	p := testPreparer(t)
	huge := 10000
	req, err := p.Prepare(t.Context(), "hello", model.Filter{GroupIDs: []string{"g1"}}, nil, Options{Limit: &huge})
	require.NoError(t, err)
	require.NotNil(t, req.Options.Limit)
	assert.Equal(t, 100, *req.Options.Limit)
}

func TestPrepareDefaultsLimitWhenOmitted(t *testing.T) {
	p := testPreparer(t)
	req, err := p.Prepare(t.Context(), "hello", model.Filter{GroupIDs: []string{"g1"}}, nil, Options{})
	require.NoError(t, err)
	require.NotNil(t, req.Options.Limit)
	assert.Equal(t, p.cfg.DefaultLimit, *req.Options.Limit)
}

func TestPrepareKeepsExplicitZeroLimit(t *testing.T) {
	p := testPreparer(t)
	zero := 0
	req, err := p.Prepare(t.Context(), "hello", model.Filter{GroupIDs: []string{"g1"}}, nil, Options{Limit: &zero})
	require.NoError(t, err)
	require.NotNil(t, req.Options.Limit, "an explicit limit:0 must survive resolution, not fall back to the default")
	assert.Equal(t, 0, *req.Options.Limit)
}

func TestPrepareDefaultsBFSDepthWithinBound(t *testing.T) {
	p := testPreparer(t)
	req, err := p.Prepare(t.Context(), "hello", model.Filter{GroupIDs: []string{"g1"}}, nil,
		Options{Edge: KindOptions{Enabled: true, BFSMaxDepth: 99}})
	require.NoError(t, err)
	assert.LessOrEqual(t, req.Options.Edge.BFSMaxDepth, 5)
}

func TestPrepareRejectsOversizeQuery(t *testing.T) {
	p := testPreparer(t)
	huge := make([]byte, 5000)
	for i := range huge {
		huge[i] = 'a'
	}
	_, err := p.Prepare(t.Context(), string(huge), model.Filter{GroupIDs: []string{"g1"}}, nil, Options{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
}
