// Package graphstore implements C5, the Graph Adapter: it presents a single
// retrieval interface to C3 while hiding which of the two supported
// dialects — a Cypher-family store or a Redis-graph-style store — actually
// answers the query (spec.md §4.5). Adapted in shape from the teacher's
// pkg/repository/vector package (repository wrapping a driver, normalizing
// rows into canonical structs); the dual-dialect split itself is grounded on
// original_source/sync_service's Neo4j/FalkorDB extractor-loader pairing.
package graphstore

import (
	"context"
	"time"

	"github.com/corkum-labs/graphcore/internal/model"
	"github.com/google/uuid"
)

// Method identifies one of the three retrieval methods C3 may issue.
type Method int

const (
	MethodFulltext Method = iota
	MethodSimilarity
	MethodBFS
)

// Hit is a single (identifier, raw score, rank) triple returned by one
// retrieval method for one entity kind (spec.md §4.3).
type Hit struct {
	UUID  uuid.UUID
	Score float64
	Rank  int
}

// FulltextRequest issues a lexical query against the store's text index.
type FulltextRequest struct {
	Kind    model.Kind
	Query   string
	Filter  model.Filter
	Limit   int
}

// SimilarityRequest issues a cosine-similarity query against an embedding
// index, restricted to results scoring at least MinScore.
type SimilarityRequest struct {
	Kind      model.Kind
	Embedding []float32
	MinScore  float64
	Filter    model.Filter
	Limit     int
}

// BFSRequest expands outward from Origins up to Depth hops.
type BFSRequest struct {
	Origins []uuid.UUID
	Depth   int
	Filter  model.Filter
	Limit   int
}

// Dialect is the interface every graph-store backend implements. Index
// contract consumed: text indexes on node name/summary, edge name/fact,
// episode content; vector indexes (cosine) on node/edge/community
// embeddings; point lookups on the identifier property (spec.md §4.5).
type Dialect interface {
	Name() string

	Fulltext(ctx context.Context, req FulltextRequest) ([]Hit, error)
	Similarity(ctx context.Context, req SimilarityRequest) ([]Hit, error)
	BFS(ctx context.Context, req BFSRequest) ([]Hit, error)

	// FetchNodes/FetchEdges/FetchEpisodes/FetchCommunities project raw store
	// records into the canonical §3 shapes for the given identifiers.
	FetchNodes(ctx context.Context, ids []uuid.UUID) ([]model.Node, error)
	FetchEdges(ctx context.Context, ids []uuid.UUID) ([]model.Edge, error)
	FetchEpisodes(ctx context.Context, ids []uuid.UUID) ([]model.Episode, error)
	FetchCommunities(ctx context.Context, ids []uuid.UUID) ([]model.Community, error)

	// ShortestPath returns the hop distance from center to each of ids,
	// backing the node-distance reranker (spec.md §4.4). Unreachable ids are
	// omitted from the result map.
	ShortestPath(ctx context.Context, center uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]int, error)

	// NodesExist backs invariant checks (spec.md §8,
	// invariant 1: every returned edge references nodes that exist/existed).
	NodesExist(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error)
}

// RFC3339UTC renders t in the wire format §4.5 mandates for every
// normalized datetime field.
func RFC3339UTC(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
