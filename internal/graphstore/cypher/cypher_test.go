package cypher

import (
	"testing"
	"time"

	"github.com/corkum-labs/graphcore/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestKindLabel(t *testing.T) {
	cases := []struct {
		kind model.Kind
		want string
	}{
		{model.KindNode, "Entity"},
		{model.KindEdge, "RELATES_TO"},
		{model.KindEpisode, "Episodic"},
		{model.KindCommunity, "Community"},
		{model.Kind(99), "Entity"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, kindLabel(c.kind))
	}
}

func TestFilterWhereEmpty(t *testing.T) {
	where, params := filterWhere(model.Filter{IncludeInvalidated: true}, "n")
	assert.Empty(t, where)
	assert.Empty(t, params)
}

func TestFilterWhereExcludesInvalidatedByDefault(t *testing.T) {
	where, params := filterWhere(model.Filter{}, "n")
	assert.Equal(t, "WHERE n.invalid_at IS NULL", where)
	assert.Empty(t, params)
}

func TestFilterWhereGroupIDs(t *testing.T) {
	where, params := filterWhere(model.Filter{GroupIDs: []string{"g1", "g2"}, IncludeInvalidated: true}, "n")
	assert.Equal(t, "WHERE n.group_id IN $group_ids", where)
	assert.Equal(t, []string{"g1", "g2"}, params["group_ids"])
}

func TestFilterWhereNodeTypes(t *testing.T) {
	where, params := filterWhere(model.Filter{NodeTypes: []string{"Person"}, IncludeInvalidated: true}, "n")
	assert.Equal(t, "WHERE any(l IN labels(n) WHERE l IN $node_types)", where)
	assert.Equal(t, []string{"Person"}, params["node_types"])
}

func TestFilterWhereValidAfterAndBefore(t *testing.T) {
	after := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	before := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	where, params := filterWhere(model.Filter{ValidAfter: &after, ValidBefore: &before, IncludeInvalidated: true}, "n")
	assert.Equal(t, "WHERE n.valid_at >= $valid_after AND n.valid_at <= $valid_before", where)
	assert.Equal(t, after.UTC().Format(time.RFC3339), params["valid_after"])
	assert.Equal(t, before.UTC().Format(time.RFC3339), params["valid_before"])
}

func TestFilterWhereCombinesAllClauses(t *testing.T) {
	after := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	where, params := filterWhere(model.Filter{
		GroupIDs:   []string{"g1"},
		NodeTypes:  []string{"Person"},
		ValidAfter: &after,
	}, "x")
	assert.Equal(t, "WHERE x.group_id IN $group_ids AND any(l IN labels(x) WHERE l IN $node_types) AND x.invalid_at IS NULL AND x.valid_at >= $valid_after", where)
	assert.Len(t, params, 3)
}

func TestWhereOrAnd(t *testing.T) {
	assert.Equal(t, "WHERE", whereOrAnd(""))
	assert.Equal(t, "AND", whereOrAnd("WHERE n.invalid_at IS NULL"))
}

func TestToFloat64(t *testing.T) {
	got := toFloat64([]float32{1.5, -2.25, 0})
	assert.Equal(t, []float64{1.5, -2.25, 0}, got)
}

func TestToFloat64Empty(t *testing.T) {
	got := toFloat64(nil)
	assert.Empty(t, got)
}

func TestToFloat(t *testing.T) {
	assert.Equal(t, 1.5, toFloat(1.5))
	assert.Equal(t, float64(3), toFloat(int64(3)))
	assert.Equal(t, float64(0), toFloat("not a number"))
	assert.Equal(t, float64(0), toFloat(nil))
}

func TestDialectName(t *testing.T) {
	d := New(nil)
	assert.Equal(t, "cypher", d.Name())
}
