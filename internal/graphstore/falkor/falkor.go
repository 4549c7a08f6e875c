package falkor

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/corkum-labs/graphcore/internal/apperr"
	"github.com/corkum-labs/graphcore/internal/graphstore"
	"github.com/corkum-labs/graphcore/internal/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Dialect issues GRAPH.QUERY commands against a FalkorDB/RedisGraph
// instance through the same go-redis client family internal/cachetier uses
// for L2 caching — a second, independent use of the Redis stack.
type Dialect struct {
	client    redis.UniversalClient
	graphName string
	maxBytes  int
	skipCh    chan string
}

// New wraps a Redis client bound to the named graph.
func New(client redis.UniversalClient, graphName string, maxQueryBytes int) *Dialect {
	if maxQueryBytes <= 0 {
		maxQueryBytes = MaxQueryBytes
	}
	return &Dialect{client: client, graphName: graphName, maxBytes: maxQueryBytes, skipCh: make(chan string, 64)}
}

func (d *Dialect) Name() string { return "falkor" }

// Skipped drains recorded per-query skip reasons (spec.md §6.3: "a
// per-query skip list recorded in telemetry").
func (d *Dialect) Skipped() []string {
	var out []string
	for {
		select {
		case s := <-d.skipCh:
			out = append(out, s)
		default:
			return out
		}
	}
}

func (d *Dialect) record(reason string) {
	select {
	case d.skipCh <- reason:
	default:
	}
}

func (d *Dialect) query(ctx context.Context, cypher string) (*redis.GraphQueryCmd, error) {
	if len(cypher) > d.maxBytes {
		d.record(fmt.Sprintf("query length %d exceeds bound %d", len(cypher), d.maxBytes))
	}
	cmd := d.client.GraphQuery(ctx, d.graphName, cypher, nil)
	if err := cmd.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, err, "falkor: GRAPH.QUERY failed")
	}
	return cmd, nil
}

func groupLabel(k model.Kind) string {
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

func filterWhereInline(f model.Filter, alias string) string {
	var clauses []string
	if len(f.GroupIDs) > 0 {
		quoted := make([]string, len(f.GroupIDs))
		for i, g := range f.GroupIDs {
			quoted[i] = Quote(g)
		}
		clauses = append(clauses, fmt.Sprintf("%s.group_id IN [%s]", alias, strings.Join(quoted, ", ")))
	}
	if !f.IncludeInvalidated {
		clauses = append(clauses, fmt.Sprintf("%s.invalid_at IS NULL", alias))
	}
	if f.ValidAfter != nil {
		clauses = append(clauses, fmt.Sprintf("%s.valid_at >= %s", alias, Quote(f.ValidAfter.UTC().Format(time.RFC3339))))
	}
	if f.ValidBefore != nil {
		clauses = append(clauses, fmt.Sprintf("%s.valid_at <= %s", alias, Quote(f.ValidBefore.UTC().Format(time.RFC3339))))
	}
	if len(clauses) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(clauses, " AND ")
}

// Fulltext issues an inline-escaped lexical query (RedisGraph lacks a
// dedicated full-text call syntax equivalent to Cypher's; a CONTAINS
// predicate over the escaped literal stands in, matching §6.3's "all
// literals are escaped inline" for this dialect).
func (d *Dialect) Fulltext(ctx context.Context, req graphstore.FulltextRequest) ([]graphstore.Hit, error) {
	label := groupLabel(req.Kind)
	where := filterWhereInline(req.Filter, "n")
	joiner := "WHERE"
	if where != "" {
		joiner = "AND"
	}
	essential := fmt.Sprintf(
		"MATCH (n:%s) %s %s (toLower(n.name) CONTAINS toLower(%s) OR toLower(n.summary) CONTAINS toLower(%s)) RETURN n.uuid, 1.0 ORDER BY n.uuid LIMIT %d",
		label, where, joiner, Quote(req.Query), Quote(req.Query), req.Limit)
	cypher := Bound(essential, "", d.maxBytes, d.record)

	cmd, err := d.query(ctx, cypher)
	if err != nil {
		return nil, err
	}
	return resultToHits(cmd)
}

// Similarity issues a GRAPH.QUERY using RedisGraph's vector distance
// function; embeddings are passed as fixed-length float32 arrays (§4.5).
func (d *Dialect) Similarity(ctx context.Context, req graphstore.SimilarityRequest) ([]graphstore.Hit, error) {
	label := groupLabel(req.Kind)
	where := filterWhereInline(req.Filter, "n")
	joiner := "WHERE"
	if where != "" {
		joiner = "AND"
	}
	vec := make([]string, len(req.Embedding))
	for i, f := range req.Embedding {
		vec[i] = strconv.FormatFloat(float64(f), 'f', -1, 32)
	}
	essential := fmt.Sprintf(
		"MATCH (n:%s) %s %s vec.cosineDistance(n.embedding, vecf32([%s])) <= %s RETURN n.uuid, 1 - vec.cosineDistance(n.embedding, vecf32([%s])) AS score ORDER BY score DESC LIMIT %d",
		label, where, joiner, strings.Join(vec, ","), strconv.FormatFloat(1-req.MinScore, 'f', -1, 64), strings.Join(vec, ","), req.Limit)
	cypher := Bound(essential, "", d.maxBytes, d.record)

	cmd, err := d.query(ctx, cypher)
	if err != nil {
		return nil, err
	}
	return resultToHits(cmd)
}

// BFS expands from origins up to depth hops.
func (d *Dialect) BFS(ctx context.Context, req graphstore.BFSRequest) ([]graphstore.Hit, error) {
	if len(req.Origins) == 0 || req.Depth <= 0 {
		return nil, nil
	}
	ids := make([]string, len(req.Origins))
	for i, id := range req.Origins {
		ids[i] = Quote(id.String())
	}
	cypher := fmt.Sprintf(
		"MATCH (o:Entity)-[r:RELATES_TO*1..%d]-(n) WHERE o.uuid IN [%s] AND n.invalid_at IS NULL RETURN DISTINCT n.uuid, length(r) ORDER BY length(r) ASC, n.uuid ASC LIMIT %d",
		req.Depth, strings.Join(ids, ","), req.Limit)

	cmd, err := d.query(ctx, cypher)
	if err != nil {
		return nil, err
	}
	return resultToHits(cmd)
}

func resultToHits(cmd *redis.GraphQueryCmd) ([]graphstore.Hit, error) {
	res, err := cmd.Result()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, err, "falkor: reading result failed")
	}
	var hits []graphstore.Hit
	for rank, row := range res.Data {
		if len(row) == 0 {
			continue
		}
		idStr := fmt.Sprintf("%v", row[0])
		id, parseErr := uuid.Parse(idStr)
		if parseErr != nil {
			continue
		}
		score := 0.0
		if len(row) > 1 {
			score = toFloat(row[1])
		}
		hits = append(hits, graphstore.Hit{UUID: id, Score: score, Rank: rank})
	}
	return hits, nil
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	default:
		return 0
	}
}
