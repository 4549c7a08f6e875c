// Package fusion implements C4: it combines per-method ranked lists into
// one ordered list per entity kind via RRF, MMR, or node-distance
// reranking, applies a minimum-score filter, and deduplicates near-
// identical facts (spec.md §4.4). Adapted from the teacher's
// pkg/rag/retrieval/mmr.go (iterative λ-weighted diversity selection) and
// pkg/rag/retrieval/hybrid.go (reciprocal rank fusion).
package fusion

import (
	"context"
	"math"
	"sort"

	"github.com/antzucaro/matchr"
	"github.com/corkum-labs/graphcore/internal/apperr"
	"github.com/corkum-labs/graphcore/internal/graphstore"
	"github.com/google/uuid"
)

// Candidate is one entity's fused score, carried through reranking and
// dedup before becoming a response record.
type Candidate struct {
	UUID      uuid.UUID
	Score     float64
	Embedding []float32
	Fact      string
}

// EmbeddingFetcher batch-fetches embeddings for a set of identifiers, the
// suspension point MMR rerank needs (spec.md §5).
type EmbeddingFetcher func(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]float32, error)

// DistanceFetcher backs the node-distance reranker via the graph store's
// shortest-path primitive.
type DistanceFetcher func(ctx context.Context, center uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]int, error)

const defaultRRFK = 60

// RRF combines per-method ranked hit lists via Reciprocal Rank Fusion:
// combined score is Σ 1/(k+rank) over methods the identifier appears in
// (spec.md §4.4).
func RRF(methodHits [][]graphstore.Hit, k int) []Candidate {
	if k <= 0 {
		k = defaultRRFK
	}
	scores := map[uuid.UUID]float64{}
	for _, hits := range methodHits {
		for _, h := range hits {
			scores[h.UUID] += 1.0 / float64(k+h.Rank)
		}
	}
	out := make([]Candidate, 0, len(scores))
	for id, score := range scores {
		out = append(out, Candidate{UUID: id, Score: score})
	}
	sortByScoreDesc(out)
	return out
}

func sortByScoreDesc(cands []Candidate) {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		return cands[i].UUID.String() < cands[j].UUID.String()
	})
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// MMR reorders candidates by Maximal Marginal Relevance: starting from the
// highest-similarity candidate, repeatedly picks the candidate maximizing
// λ·sim(candidate, query) − (1−λ)·max_over_selected sim(candidate,
// selected) (spec.md §4.4). Every candidate must carry an embedding;
// callers batch-fetch these beforehand.
func MMR(candidates []Candidate, queryEmbedding []float32, lambda float64) []Candidate {
	if len(candidates) <= 1 {
		return candidates
	}
	ordered := append([]Candidate(nil), candidates...)
	sortByScoreDesc(ordered)

	first, firstSim := 0, math.Inf(-1)
	for i, c := range ordered {
		if sim := cosineSimilarity(c.Embedding, queryEmbedding); sim > firstSim {
			first, firstSim = i, sim
		}
	}
	selected := []Candidate{ordered[first]}
	remaining := append(ordered[:first:first], ordered[first+1:]...)

	for len(remaining) > 0 {
		bestIdx := -1
		bestScore := math.Inf(-1)
		for i, c := range remaining {
			relevance := cosineSimilarity(c.Embedding, queryEmbedding)
			maxSim := 0.0
			for _, s := range selected {
				if sim := cosineSimilarity(c.Embedding, s.Embedding); sim > maxSim {
					maxSim = sim
				}
			}
			mmrScore := lambda*relevance - (1-lambda)*maxSim
			if mmrScore > bestScore {
				bestScore = mmrScore
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

// NodeDistance reorders candidates by ascending graph distance from
// center; unreachable items (absent from distances) are placed last,
// ties retaining incoming order (spec.md §4.4).
func NodeDistance(candidates []Candidate, distances map[uuid.UUID]int) []Candidate {
	ordered := append([]Candidate(nil), candidates...)
	sort.SliceStable(ordered, func(i, j int) bool {
		di, iok := distances[ordered[i].UUID]
		dj, jok := distances[ordered[j].UUID]
		if !iok && !jok {
			return false
		}
		if !iok {
			return false
		}
		if !jok {
			return true
		}
		return di < dj
	})
	return ordered
}

// MinScoreFilter drops candidates whose score is below minScore (spec.md
// §4.4: "items whose final combined score is below reranker_min_score are
// dropped").
func MinScoreFilter(candidates []Candidate, minScore float64) []Candidate {
	out := candidates[:0:0]
	for _, c := range candidates {
		if c.Score >= minScore {
			out = append(out, c)
		}
	}
	return out
}

// DedupFacts removes near-duplicate facts from an edge candidate list,
// keeping the first (highest-scoring) occurrence. A candidate is a
// duplicate if its normalized form hashes identically to an accepted
// fact, or its Jaro-Winkler similarity against any accepted fact exceeds
// threshold (spec.md §4.4, default 0.85).
func DedupFacts(candidates []Candidate, threshold float64) []Candidate {
	seen := map[string]bool{}
	var accepted []Candidate
	var acceptedNorm []string

	for _, c := range candidates {
		norm := normalizeFact(c.Fact)
		if seen[norm] {
			continue
		}
		isDup := false
		for _, an := range acceptedNorm {
			if matchr.JaroWinkler(norm, an, false) > threshold {
				isDup = true
				break
			}
		}
		if isDup {
			continue
		}
		seen[norm] = true
		acceptedNorm = append(acceptedNorm, norm)
		accepted = append(accepted, c)
	}
	return accepted
}

func normalizeFact(fact string) string {
	return collapseWhitespace(toLower(fact))
}

func toLower(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r >= 'A' && r <= 'Z' {
			out[i] = r + ('a' - 'A')
		}
	}
	return string(out)
}

func collapseWhitespace(s string) string {
	var b []rune
	lastSpace := false
	for _, r := range s {
		isSpace := r == ' ' || r == '\t' || r == '\n' || r == '\r'
		if isSpace {
			if !lastSpace && len(b) > 0 {
				b = append(b, ' ')
			}
			lastSpace = true
			continue
		}
		lastSpace = false
		b = append(b, r)
	}
	for len(b) > 0 && b[len(b)-1] == ' ' {
		b = b[:len(b)-1]
	}
	return string(b)
}

// Strategy identifies a reranking algorithm.
type Strategy string

const (
	StrategyRRF          Strategy = "rrf"
	StrategyMMR          Strategy = "mmr"
	StrategyNodeDistance Strategy = "node_distance"
)

// Rerank dispatches to the configured strategy. MMR and node-distance
// degrade to RRF's already-computed ranking when their required fetch
// fails (spec.md §4.4: "the engine falls back to RRF over the already-
// available rank positions").
func Rerank(ctx context.Context, strategy Strategy, methodHits [][]graphstore.Hit, rrfK int, queryEmbedding []float32, lambda float64, center *uuid.UUID, fetchEmbeddings EmbeddingFetcher, fetchDistances DistanceFetcher) ([]Candidate, error) {
	base := RRF(methodHits, rrfK)
	if len(base) == 0 {
		return base, nil
	}

	switch strategy {
	case StrategyMMR:
		ids := candidateIDs(base)
		embeddings, err := fetchEmbeddings(ctx, ids)
		if err != nil {
			return base, apperr.Wrap(apperr.KindDependencyFailed, err, "fusion: batched embedding fetch failed, falling back to RRF")
		}
		withEmb := attachEmbeddings(base, embeddings)
		return MMR(withEmb, queryEmbedding, lambda), nil

	case StrategyNodeDistance:
		if center == nil {
			return base, nil
		}
		ids := candidateIDs(base)
		distances, err := fetchDistances(ctx, *center, ids)
		if err != nil {
			return base, apperr.Wrap(apperr.KindDependencyFailed, err, "fusion: shortest-path fetch failed, falling back to RRF")
		}
		return NodeDistance(base, distances), nil

	default:
		return base, nil
	}
}

func candidateIDs(cands []Candidate) []uuid.UUID {
	ids := make([]uuid.UUID, len(cands))
	for i, c := range cands {
		ids[i] = c.UUID
	}
	return ids
}

func attachEmbeddings(cands []Candidate, embeddings map[uuid.UUID][]float32) []Candidate {
	out := make([]Candidate, len(cands))
	for i, c := range cands {
		c.Embedding = embeddings[c.UUID]
		out[i] = c
	}
	return out
}
