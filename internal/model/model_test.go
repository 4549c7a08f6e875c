package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "node", KindNode.String())
	assert.Equal(t, "edge", KindEdge.String())
	assert.Equal(t, "episode", KindEpisode.String())
	assert.Equal(t, "community", KindCommunity.String())
	assert.Equal(t, "unknown", Kind(99).String())
}

func TestSourceKindString(t *testing.T) {
	assert.Equal(t, "text", SourceText.String())
	assert.Equal(t, "message", SourceMessage.String())
	assert.Equal(t, "structured", SourceStructured.String())
	assert.Equal(t, "unknown", SourceKind(99).String())
}

func TestEdgeSuperseded(t *testing.T) {
	e := Edge{}
	assert.False(t, e.Superseded())

	now := time.Now()
	e.InvalidAt = &now
	assert.True(t, e.Superseded())
}

func TestEdgeValidateRejectsSelfLoop(t *testing.T) {
	id := uuid.New()
	e := Edge{SourceUUID: id, TargetUUID: id}
	err := e.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "distinct")
}

func TestEdgeValidateRejectsInvalidBeforeValid(t *testing.T) {
	validAt := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	invalidAt := validAt.Add(-time.Hour)
	e := Edge{
		SourceUUID: uuid.New(),
		TargetUUID: uuid.New(),
		ValidAt:    &validAt,
		InvalidAt:  &invalidAt,
	}
	err := e.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "precede")
}

func TestEdgeValidateAcceptsWellFormedEdge(t *testing.T) {
	validAt := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	invalidAt := validAt.Add(time.Hour)
	e := Edge{
		SourceUUID: uuid.New(),
		TargetUUID: uuid.New(),
		ValidAt:    &validAt,
		InvalidAt:  &invalidAt,
	}
	assert.NoError(t, e.Validate())
}

func TestEdgeValidateAcceptsNilValidity(t *testing.T) {
	e := Edge{SourceUUID: uuid.New(), TargetUUID: uuid.New()}
	assert.NoError(t, e.Validate())
}
