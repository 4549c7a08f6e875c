// Package cypher implements the Cypher-family graphstore.Dialect, issuing
// parameterized MATCH/WHERE/RETURN queries with Neo4j's vector and
// full-text index call syntax (spec.md §6.3). Adapted from the teacher's
// pkg/repository/vector/repository.go: a thin driver-wrapping repository
// that builds queries with bound parameters rather than string
// interpolation.
package cypher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/corkum-labs/graphcore/internal/graphstore"
	"github.com/corkum-labs/graphcore/internal/model"
	"github.com/google/uuid"
	neo4j "github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Dialect issues Cypher queries over a Neo4j driver session.
type Dialect struct {
	driver neo4j.DriverWithContext
}

// New wraps an already-constructed Neo4j driver.
func New(driver neo4j.DriverWithContext) *Dialect {
	return &Dialect{driver: driver}
}

func (d *Dialect) Name() string { return "cypher" }

func (d *Dialect) session(ctx context.Context) neo4j.SessionWithContext {
	return d.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
}

func kindLabel(k model.Kind) string {
	switch k {
	case model.KindNode:
		return "Entity"
	case model.KindEdge:
		return "RELATES_TO"
	case model.KindEpisode:
		return "Episodic"
	case model.KindCommunity:
		return "Community"
	default:
		return "Entity"
	}
}

func filterWhere(f model.Filter, nodeAlias string) (string, map[string]any) {
	var clauses []string
	params := map[string]any{}
	if len(f.GroupIDs) > 0 {
		clauses = append(clauses, fmt.Sprintf("%s.group_id IN $group_ids", nodeAlias))
		params["group_ids"] = f.GroupIDs
	}
	if len(f.NodeTypes) > 0 {
		clauses = append(clauses, fmt.Sprintf("any(l IN labels(%s) WHERE l IN $node_types)", nodeAlias))
		params["node_types"] = f.NodeTypes
	}
	if !f.IncludeInvalidated {
		clauses = append(clauses, fmt.Sprintf("%s.invalid_at IS NULL", nodeAlias))
	}
	if f.ValidAfter != nil {
		clauses = append(clauses, fmt.Sprintf("%s.valid_at >= $valid_after", nodeAlias))
		params["valid_after"] = f.ValidAfter.UTC().Format(time.RFC3339)
	}
	if f.ValidBefore != nil {
		clauses = append(clauses, fmt.Sprintf("%s.valid_at <= $valid_before", nodeAlias))
		params["valid_before"] = f.ValidBefore.UTC().Format(time.RFC3339)
	}
	if len(clauses) == 0 {
		return "", params
	}
	return "WHERE " + strings.Join(clauses, " AND "), params
}

// Fulltext issues a CALL db.index.fulltext.queryNodes-style query.
func (d *Dialect) Fulltext(ctx context.Context, req graphstore.FulltextRequest) ([]graphstore.Hit, error) {
	sess := d.session(ctx)
	defer sess.Close(ctx)

	indexName := fmt.Sprintf("%s_fulltext", kindLabel(req.Kind))
	where, params := filterWhere(req.Filter, "n")
	params["query"] = req.Query
	params["limit"] = req.Limit

	cypher := fmt.Sprintf(`
		CALL db.index.fulltext.queryNodes($index, $query) YIELD node AS n, score
		%s
		RETURN n.uuid AS uuid, score
		ORDER BY score DESC, n.uuid ASC
		LIMIT $limit`, where)
	params["index"] = indexName

	result, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return nil, wrapErr(err)
	}
	return collectHits(ctx, result)
}

// Similarity issues a vector-index cosine-similarity query.
func (d *Dialect) Similarity(ctx context.Context, req graphstore.SimilarityRequest) ([]graphstore.Hit, error) {
	sess := d.session(ctx)
	defer sess.Close(ctx)

	indexName := fmt.Sprintf("%s_embedding", kindLabel(req.Kind))
	where, params := filterWhere(req.Filter, "n")
	params["embedding"] = toFloat64(req.Embedding)
	params["k"] = req.Limit
	params["min_score"] = req.MinScore

	cypher := fmt.Sprintf(`
		CALL db.index.vector.queryNodes($index, $k, $embedding) YIELD node AS n, score
		%s
		%s score >= $min_score
		RETURN n.uuid AS uuid, score
		ORDER BY score DESC, n.uuid ASC`,
		where, whereOrAnd(where))
	params["index"] = indexName

	result, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return nil, wrapErr(err)
	}
	return collectHits(ctx, result)
}

func whereOrAnd(where string) string {
	if where == "" {
		return "WHERE"
	}
	return "AND"
}

// BFS expands outward from the origin set.
func (d *Dialect) BFS(ctx context.Context, req graphstore.BFSRequest) ([]graphstore.Hit, error) {
	sess := d.session(ctx)
	defer sess.Close(ctx)

	if len(req.Origins) == 0 || req.Depth <= 0 {
		return nil, nil
	}
	ids := make([]string, len(req.Origins))
	for i, id := range req.Origins {
		ids[i] = id.String()
	}

	// Neo4j does not accept a parameter inside a variable-length relationship
	// range; req.Depth is a server-resolved int (clamped 1-5 by C1), not user
	// text, so interpolating it here carries no injection risk.
	cypher := fmt.Sprintf(`
		MATCH (o:Entity)-[r:RELATES_TO*1..%d]-(n)
		WHERE o.uuid IN $origins AND n.invalid_at IS NULL
		RETURN DISTINCT n.uuid AS uuid, length(r) AS depth
		ORDER BY depth ASC, n.uuid ASC
		LIMIT $limit`, req.Depth)
	params := map[string]any{
		"origins": ids,
		"limit":   req.Limit,
	}
	result, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return nil, wrapErr(err)
	}
	return collectDepthHits(ctx, result)
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

func collectHits(ctx context.Context, result neo4j.ResultWithContext) ([]graphstore.Hit, error) {
	var hits []graphstore.Hit
	rank := 0
	for result.Next(ctx) {
		rec := result.Record()
		idStr, _ := rec.Get("uuid")
		score, _ := rec.Get("score")
		id, err := uuid.Parse(fmt.Sprintf("%v", idStr))
		if err != nil {
			continue
		}
		hits = append(hits, graphstore.Hit{UUID: id, Score: toFloat(score), Rank: rank})
		rank++
	}
	return hits, wrapErr(result.Err())
}

func collectDepthHits(ctx context.Context, result neo4j.ResultWithContext) ([]graphstore.Hit, error) {
	var hits []graphstore.Hit
	for result.Next(ctx) {
		rec := result.Record()
		idStr, _ := rec.Get("uuid")
		depth, _ := rec.Get("depth")
		id, err := uuid.Parse(fmt.Sprintf("%v", idStr))
		if err != nil {
			continue
		}
		d := toFloat(depth)
		hits = append(hits, graphstore.Hit{UUID: id, Score: -d, Rank: int(d)})
	}
	return hits, wrapErr(result.Err())
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		return 0
	}
}
