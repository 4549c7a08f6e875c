package falkor

import (
	"testing"
	"time"

	"github.com/corkum-labs/graphcore/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestGroupLabel(t *testing.T) {
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
		assert.Equal(t, c.want, groupLabel(c.kind))
	}
}

func TestFilterWhereInlineEmpty(t *testing.T) {
	assert.Empty(t, filterWhereInline(model.Filter{IncludeInvalidated: true}, "n"))
}

func TestFilterWhereInlineExcludesInvalidatedByDefault(t *testing.T) {
	got := filterWhereInline(model.Filter{}, "n")
	assert.Equal(t, "WHERE n.invalid_at IS NULL", got)
}

func TestFilterWhereInlineEscapesGroupIDs(t *testing.T) {
	got := filterWhereInline(model.Filter{GroupIDs: []string{"a'b"}, IncludeInvalidated: true}, "n")
	assert.Contains(t, got, "n.group_id IN")
	assert.Contains(t, got, Quote("a'b"))
}

func TestFilterWhereInlineValidAfterBefore(t *testing.T) {
	after := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	before := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	got := filterWhereInline(model.Filter{ValidAfter: &after, ValidBefore: &before, IncludeInvalidated: true}, "n")
	assert.Contains(t, got, "n.valid_at >=")
	assert.Contains(t, got, "n.valid_at <=")
}

func TestToFloat(t *testing.T) {
	assert.Equal(t, 1.5, toFloat(1.5))
	assert.Equal(t, float64(3), toFloat(int64(3)))
	assert.Equal(t, 2.5, toFloat("2.5"))
	assert.Equal(t, float64(0), toFloat("not a number"))
	assert.Equal(t, float64(0), toFloat(nil))
}

func TestDialectName(t *testing.T) {
	d := New(nil, "graphcore", 0)
	assert.Equal(t, "falkor", d.Name())
}

func TestDialectSkippedDrainsRecordedReasons(t *testing.T) {
	d := New(nil, "graphcore", 0)
	d.record("query too long")
	d.record("unsupported predicate")

	got := d.Skipped()
	assert.Equal(t, []string{"query too long", "unsupported predicate"}, got)
	assert.Empty(t, d.Skipped())
}
