package cypher

import (
	"errors"
	"testing"
	"time"

	"github.com/corkum-labs/graphcore/internal/apperr"
	"github.com/google/uuid"
	neo4j "github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapErrPassesThroughNil(t *testing.T) {
	assert.NoError(t, wrapErr(nil))
}

func TestWrapErrWrapsAsUnavailable(t *testing.T) {
	err := wrapErr(errors.New("connection reset"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnavailable, apperr.KindOf(err))
}

func TestIDStrings(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	out := idStrings([]uuid.UUID{a, b})
	assert.Equal(t, []string{a.String(), b.String()}, out)
}

func TestIDStringsEmpty(t *testing.T) {
	assert.Empty(t, idStrings(nil))
}

func TestParseTimeFromGoTime(t *testing.T) {
	want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	got := parseTime(want)
	assert.Equal(t, want.UTC(), got)
}

func TestParseTimeFromRFC3339String(t *testing.T) {
	got := parseTime("2026-03-01T12:00:00Z")
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), got)
}

func TestParseTimeFromMalformedString(t *testing.T) {
	assert.True(t, parseTime("not a time").IsZero())
}

func TestParseTimeFromNeo4jDate(t *testing.T) {
	d := neo4j.DateOf(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	got := parseTime(d)
	assert.Equal(t, 2026, got.Year())
	assert.Equal(t, time.Month(3), got.Month())
	assert.Equal(t, 1, got.Day())
}

func TestParseTimeUnknownTypeReturnsZero(t *testing.T) {
	assert.True(t, parseTime(42).IsZero())
}
