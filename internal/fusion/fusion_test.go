package fusion

import (
	"context"
	"testing"

	"github.com/corkum-labs/graphcore/internal/graphstore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRRFCombinesAcrossMethods(t *testing.T) {
	id1, id2, id3 := uuid.New(), uuid.New(), uuid.New()
	fulltext := []graphstore.Hit{{UUID: id1, Rank: 0}, {UUID: id2, Rank: 1}}
	similarity := []graphstore.Hit{{UUID: id1, Rank: 0}, {UUID: id3, Rank: 1}}

	out := RRF([][]graphstore.Hit{fulltext, similarity}, 60)
	require.Len(t, out, 3)
	assert.Equal(t, id1, out[0].UUID, "present in both methods at rank 0 should score highest")
}

func TestRRFEmptyInputReturnsEmpty(t *testing.T) {
	out := RRF(nil, 60)
	assert.Empty(t, out)
}

func TestRRFTieBreaksByIdentifier(t *testing.T) {
	idA := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	idB := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	hits := []graphstore.Hit{{UUID: idB, Rank: 0}, {UUID: idA, Rank: 0}}
	out := RRF([][]graphstore.Hit{hits}, 60)
	require.Len(t, out, 2)
	assert.Equal(t, idA, out[0].UUID)
}

// TestMMRPrefersDiverseCandidateOverNearDuplicate mirrors spec.md's seed
// scenario S2: candidates with query-similarity 0.9, 0.88, 0.87, 0.5; the
// 0.88 candidate is a near-duplicate of the top pick (cosine ~0.999) while
// the 0.5 candidate is nearly orthogonal to it, so a balanced lambda
// should prefer diversity on the second pick.
func TestMMRPrefersDiverseCandidateOverNearDuplicate(t *testing.T) {
	query := []float32{1, 0, 0}
	c1 := Candidate{UUID: uuid.New(), Score: 0.9, Embedding: []float32{0.9, 0.436, 0}}
	c2 := Candidate{UUID: uuid.New(), Score: 0.88, Embedding: []float32{0.88, 0.475, 0}} // near-dup of c1
	c3 := Candidate{UUID: uuid.New(), Score: 0.87, Embedding: []float32{0.87, -0.4931, 0}}
	c4 := Candidate{UUID: uuid.New(), Score: 0.5, Embedding: []float32{0.5, -0.866, 0}} // diverse from c1

	out := MMR([]Candidate{c1, c2, c3, c4}, query, 0.5)
	require.Len(t, out, 4)
	assert.Equal(t, c1.UUID, out[0].UUID)
	assert.Equal(t, c4.UUID, out[1].UUID, "diverse low-similarity candidate should beat the near-duplicate")
}

func TestMMRSingleCandidateReturnsUnchanged(t *testing.T) {
	c1 := Candidate{UUID: uuid.New(), Score: 0.9}
	out := MMR([]Candidate{c1}, []float32{1, 0}, 0.5)
	assert.Equal(t, []Candidate{c1}, out)
}

func TestNodeDistanceOrdersByAscendingDistance(t *testing.T) {
	idFar := uuid.New()
	idNear := uuid.New()
	idUnreachable := uuid.New()
	candidates := []Candidate{{UUID: idFar}, {UUID: idNear}, {UUID: idUnreachable}}
	distances := map[uuid.UUID]int{idFar: 3, idNear: 1}

	out := NodeDistance(candidates, distances)
	require.Len(t, out, 3)
	assert.Equal(t, idNear, out[0].UUID)
	assert.Equal(t, idFar, out[1].UUID)
	assert.Equal(t, idUnreachable, out[2].UUID, "unreachable items go last")
}

func TestMinScoreFilterDropsBelowThreshold(t *testing.T) {
	in := []Candidate{{Score: 0.9}, {Score: 0.1}, {Score: 0.5}}
	out := MinScoreFilter(in, 0.3)
	assert.Len(t, out, 2)
}

func TestDedupFactsRemovesExactAndFuzzyDuplicates(t *testing.T) {
	candidates := []Candidate{
		{UUID: uuid.New(), Score: 0.9, Fact: "Alice works at Acme Corp"},
		{UUID: uuid.New(), Score: 0.8, Fact: "alice works at acme corp"},
		{UUID: uuid.New(), Score: 0.7, Fact: "Alice works at Acme Corporation"},
		{UUID: uuid.New(), Score: 0.6, Fact: "Bob lives in Springfield"},
	}
	out := DedupFacts(candidates, 0.85)
	require.Len(t, out, 2)
	assert.Equal(t, "Alice works at Acme Corp", out[0].Fact)
	assert.Equal(t, "Bob lives in Springfield", out[1].Fact)
}

func TestRerankFallsBackToRRFOnEmbeddingFetchFailure(t *testing.T) {
	id1 := uuid.New()
	hits := []graphstore.Hit{{UUID: id1, Rank: 0}}

	failingFetch := func(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]float32, error) {
		return nil, assertErr{}
	}

	out, err := Rerank(context.Background(), StrategyMMR, [][]graphstore.Hit{hits}, 60, nil, 0.5, nil, failingFetch, nil)
	require.Error(t, err)
	require.Len(t, out, 1, "falls back to the RRF ranking already computed")
	assert.Equal(t, id1, out[0].UUID)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
