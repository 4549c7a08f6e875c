package graphstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRFC3339UTCConvertsNonUTCZone(t *testing.T) {
	t1 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.FixedZone("x", -5*3600))
	assert.Equal(t, "2026-03-01T14:00:00Z", RFC3339UTC(t1))
}

func TestRFC3339UTCPassesThroughUTC(t *testing.T) {
	t1 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-01T09:00:00Z", RFC3339UTC(t1))
}
