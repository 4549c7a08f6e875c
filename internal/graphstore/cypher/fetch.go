package cypher

import (
	"context"
	"fmt"
	"time"

	"github.com/corkum-labs/graphcore/internal/apperr"
	"github.com/corkum-labs/graphcore/internal/graphstore"
	"github.com/corkum-labs/graphcore/internal/model"
	"github.com/google/uuid"
	neo4j "github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	return apperr.Wrap(apperr.KindUnavailable, err, "cypher: query failed")
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// FetchNodes projects raw Entity records into canonical model.Node values.
func (d *Dialect) FetchNodes(ctx context.Context, ids []uuid.UUID) ([]model.Node, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sess := d.session(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, `
		MATCH (n:Entity) WHERE n.uuid IN $ids
		RETURN n.uuid AS uuid, n.name AS name, labels(n) AS labels, n.summary AS summary,
		       n.group_id AS group_id, n.created_at AS created_at, n.attributes AS attributes`,
		map[string]any{"ids": idStrings(ids)})
	if err != nil {
		return nil, wrapErr(err)
	}

	var nodes []model.Node
	for result.Next(ctx) {
		rec := result.Record()
		n := model.Node{}
		if v, ok := rec.Get("uuid"); ok {
			n.UUID, _ = uuid.Parse(fmt.Sprintf("%v", v))
		}
		if v, ok := rec.Get("name"); ok && v != nil {
			n.Name, _ = v.(string)
		}
		if v, ok := rec.Get("summary"); ok && v != nil {
			n.Summary, _ = v.(string)
		}
		if v, ok := rec.Get("group_id"); ok && v != nil {
			n.GroupID, _ = v.(string)
		}
		if v, ok := rec.Get("created_at"); ok && v != nil {
			n.CreatedAt = parseTime(v)
		}
		nodes = append(nodes, n)
	}
	return nodes, wrapErr(result.Err())
}

// FetchEdges projects raw RELATES_TO records into canonical model.Edge values.
func (d *Dialect) FetchEdges(ctx context.Context, ids []uuid.UUID) ([]model.Edge, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sess := d.session(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, `
		MATCH (s:Entity)-[r:RELATES_TO]->(t:Entity) WHERE r.uuid IN $ids
		RETURN r.uuid AS uuid, s.uuid AS source_uuid, t.uuid AS target_uuid, r.name AS name,
		       r.fact AS fact, r.group_id AS group_id, r.created_at AS created_at,
		       r.valid_at AS valid_at, r.invalid_at AS invalid_at`,
		map[string]any{"ids": idStrings(ids)})
	if err != nil {
		return nil, wrapErr(err)
	}

	var edges []model.Edge
	for result.Next(ctx) {
		rec := result.Record()
		e := model.Edge{}
		if v, ok := rec.Get("uuid"); ok {
			e.UUID, _ = uuid.Parse(fmt.Sprintf("%v", v))
		}
		if v, ok := rec.Get("source_uuid"); ok {
			e.SourceUUID, _ = uuid.Parse(fmt.Sprintf("%v", v))
		}
		if v, ok := rec.Get("target_uuid"); ok {
			e.TargetUUID, _ = uuid.Parse(fmt.Sprintf("%v", v))
		}
		if v, ok := rec.Get("name"); ok && v != nil {
			e.Name, _ = v.(string)
		}
		if v, ok := rec.Get("fact"); ok && v != nil {
			e.Fact, _ = v.(string)
		}
		if v, ok := rec.Get("group_id"); ok && v != nil {
			e.GroupID, _ = v.(string)
		}
		if v, ok := rec.Get("created_at"); ok && v != nil {
			e.CreatedAt = parseTime(v)
		}
		if v, ok := rec.Get("valid_at"); ok && v != nil {
			t := parseTime(v)
			e.ValidAt = &t
		}
		if v, ok := rec.Get("invalid_at"); ok && v != nil {
			t := parseTime(v)
			e.InvalidAt = &t
		}
		edges = append(edges, e)
	}
	return edges, wrapErr(result.Err())
}

// FetchEpisodes projects raw Episodic records into canonical model.Episode values.
func (d *Dialect) FetchEpisodes(ctx context.Context, ids []uuid.UUID) ([]model.Episode, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sess := d.session(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, `
		MATCH (e:Episodic) WHERE e.uuid IN $ids
		RETURN e.uuid AS uuid, e.name AS name, e.content AS content, e.source AS source,
		       e.source_description AS source_description, e.group_id AS group_id,
		       e.created_at AS created_at, e.valid_at AS valid_at`,
		map[string]any{"ids": idStrings(ids)})
	if err != nil {
		return nil, wrapErr(err)
	}

	var episodes []model.Episode
	for result.Next(ctx) {
		rec := result.Record()
		ep := model.Episode{}
		if v, ok := rec.Get("uuid"); ok {
			ep.UUID, _ = uuid.Parse(fmt.Sprintf("%v", v))
		}
		if v, ok := rec.Get("name"); ok && v != nil {
			ep.Name, _ = v.(string)
		}
		if v, ok := rec.Get("content"); ok && v != nil {
			ep.Content, _ = v.(string)
		}
		if v, ok := rec.Get("source_description"); ok && v != nil {
			ep.Description, _ = v.(string)
		}
		if v, ok := rec.Get("group_id"); ok && v != nil {
			ep.GroupID, _ = v.(string)
		}
		if v, ok := rec.Get("created_at"); ok && v != nil {
			ep.CreatedAt = parseTime(v)
		}
		if v, ok := rec.Get("valid_at"); ok && v != nil {
			ep.ValidAt = parseTime(v)
		}
		episodes = append(episodes, ep)
	}
	return episodes, wrapErr(result.Err())
}

// FetchCommunities projects raw Community records into canonical values.
func (d *Dialect) FetchCommunities(ctx context.Context, ids []uuid.UUID) ([]model.Community, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sess := d.session(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, `
		MATCH (c:Community) WHERE c.uuid IN $ids
		RETURN c.uuid AS uuid, c.name AS name, c.summary AS summary, c.level AS level,
		       c.group_id AS group_id, c.created_at AS created_at`,
		map[string]any{"ids": idStrings(ids)})
	if err != nil {
		return nil, wrapErr(err)
	}

	var communities []model.Community
	for result.Next(ctx) {
		rec := result.Record()
		c := model.Community{}
		if v, ok := rec.Get("uuid"); ok {
			c.UUID, _ = uuid.Parse(fmt.Sprintf("%v", v))
		}
		if v, ok := rec.Get("name"); ok && v != nil {
			c.Name, _ = v.(string)
		}
		if v, ok := rec.Get("summary"); ok && v != nil {
			c.Summary, _ = v.(string)
		}
		if v, ok := rec.Get("level"); ok && v != nil {
			c.Level = int(toFloat(v))
		}
		if v, ok := rec.Get("group_id"); ok && v != nil {
			c.GroupID, _ = v.(string)
		}
		if v, ok := rec.Get("created_at"); ok && v != nil {
			c.CreatedAt = parseTime(v)
		}
		communities = append(communities, c)
	}
	return communities, wrapErr(result.Err())
}

// ShortestPath backs the node-distance reranker.
func (d *Dialect) ShortestPath(ctx context.Context, center uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]int{}, nil
	}
	sess := d.session(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, `
		MATCH (c:Entity {uuid: $center}), (n:Entity) WHERE n.uuid IN $ids
		MATCH p = shortestPath((c)-[*..10]-(n))
		RETURN n.uuid AS uuid, length(p) AS dist`,
		map[string]any{"center": center.String(), "ids": idStrings(ids)})
	if err != nil {
		return nil, wrapErr(err)
	}

	distances := map[uuid.UUID]int{}
	for result.Next(ctx) {
		rec := result.Record()
		idv, _ := rec.Get("uuid")
		distv, _ := rec.Get("dist")
		id, parseErr := uuid.Parse(fmt.Sprintf("%v", idv))
		if parseErr != nil {
			continue
		}
		distances[id] = int(toFloat(distv))
	}
	return distances, wrapErr(result.Err())
}

// NodesExist reports which of ids currently resolve to a node.
func (d *Dialect) NodesExist(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]bool{}, nil
	}
	sess := d.session(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, `MATCH (n:Entity) WHERE n.uuid IN $ids RETURN n.uuid AS uuid`,
		map[string]any{"ids": idStrings(ids)})
	if err != nil {
		return nil, wrapErr(err)
	}

	exists := map[uuid.UUID]bool{}
	for _, id := range ids {
		exists[id] = false
	}
	for result.Next(ctx) {
		rec := result.Record()
		idv, _ := rec.Get("uuid")
		id, parseErr := uuid.Parse(fmt.Sprintf("%v", idv))
		if parseErr == nil {
			exists[id] = true
		}
	}
	return exists, wrapErr(result.Err())
}

func parseTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}
		}
		return parsed.UTC()
	case neo4j.Date:
		return t.Time().UTC()
	case neo4j.LocalDateTime:
		return t.Time().UTC()
	default:
		return time.Time{}
	}
}
