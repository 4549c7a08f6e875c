package falkor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/corkum-labs/graphcore/internal/apperr"
	"github.com/corkum-labs/graphcore/internal/model"
	"github.com/google/uuid"
)

func quotedIDs(ids []uuid.UUID) string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = Quote(id.String())
	}
	return strings.Join(out, ",")
}

// FetchNodes projects raw Entity rows into canonical model.Node values.
func (d *Dialect) FetchNodes(ctx context.Context, ids []uuid.UUID) ([]model.Node, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cypher := fmt.Sprintf(
		"MATCH (n:Entity) WHERE n.uuid IN [%s] RETURN n.uuid, n.name, n.summary, n.group_id, n.created_at",
		quotedIDs(ids))
	cmd, err := d.query(ctx, cypher)
	if err != nil {
		return nil, err
	}
	res, err := cmd.Result()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, err, "falkor: reading nodes failed")
	}
	var nodes []model.Node
	for _, row := range res.Data {
		if len(row) < 5 {
			continue
		}
		n := model.Node{}
		n.UUID, _ = uuid.Parse(fmt.Sprintf("%v", row[0]))
		n.Name, _ = row[1].(string)
		n.Summary, _ = row[2].(string)
		n.GroupID, _ = row[3].(string)
		n.CreatedAt = parseTime(row[4])
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// FetchEdges projects raw RELATES_TO rows into canonical model.Edge values.
func (d *Dialect) FetchEdges(ctx context.Context, ids []uuid.UUID) ([]model.Edge, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cypher := fmt.Sprintf(
		"MATCH (s:Entity)-[r:RELATES_TO]->(t:Entity) WHERE r.uuid IN [%s] RETURN r.uuid, s.uuid, t.uuid, r.name, r.fact, r.group_id, r.created_at, r.valid_at, r.invalid_at",
		quotedIDs(ids))
	cmd, err := d.query(ctx, cypher)
	if err != nil {
		return nil, err
	}
	res, err := cmd.Result()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, err, "falkor: reading edges failed")
	}
	var edges []model.Edge
	for _, row := range res.Data {
		if len(row) < 9 {
			continue
		}
		e := model.Edge{}
		e.UUID, _ = uuid.Parse(fmt.Sprintf("%v", row[0]))
		e.SourceUUID, _ = uuid.Parse(fmt.Sprintf("%v", row[1]))
		e.TargetUUID, _ = uuid.Parse(fmt.Sprintf("%v", row[2]))
		e.Name, _ = row[3].(string)
		e.Fact, _ = row[4].(string)
		e.GroupID, _ = row[5].(string)
		e.CreatedAt = parseTime(row[6])
		if row[7] != nil {
			t := parseTime(row[7])
			e.ValidAt = &t
		}
		if row[8] != nil {
			t := parseTime(row[8])
			e.InvalidAt = &t
		}
		edges = append(edges, e)
	}
	return edges, nil
}

// FetchEpisodes projects raw Episodic rows into canonical model.Episode values.
func (d *Dialect) FetchEpisodes(ctx context.Context, ids []uuid.UUID) ([]model.Episode, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cypher := fmt.Sprintf(
		"MATCH (e:Episodic) WHERE e.uuid IN [%s] RETURN e.uuid, e.name, e.content, e.source_description, e.group_id, e.created_at, e.valid_at",
		quotedIDs(ids))
	cmd, err := d.query(ctx, cypher)
	if err != nil {
		return nil, err
	}
	res, err := cmd.Result()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, err, "falkor: reading episodes failed")
	}
	var episodes []model.Episode
	for _, row := range res.Data {
		if len(row) < 7 {
			continue
		}
		ep := model.Episode{}
		ep.UUID, _ = uuid.Parse(fmt.Sprintf("%v", row[0]))
		ep.Name, _ = row[1].(string)
		ep.Content, _ = row[2].(string)
		ep.Description, _ = row[3].(string)
		ep.GroupID, _ = row[4].(string)
		ep.CreatedAt = parseTime(row[5])
		ep.ValidAt = parseTime(row[6])
		episodes = append(episodes, ep)
	}
	return episodes, nil
}

// FetchCommunities projects raw Community rows into canonical values.
func (d *Dialect) FetchCommunities(ctx context.Context, ids []uuid.UUID) ([]model.Community, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cypher := fmt.Sprintf(
		"MATCH (c:Community) WHERE c.uuid IN [%s] RETURN c.uuid, c.name, c.summary, c.level, c.group_id, c.created_at",
		quotedIDs(ids))
	cmd, err := d.query(ctx, cypher)
	if err != nil {
		return nil, err
	}
	res, err := cmd.Result()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, err, "falkor: reading communities failed")
	}
	var communities []model.Community
	for _, row := range res.Data {
		if len(row) < 6 {
			continue
		}
		c := model.Community{}
		c.UUID, _ = uuid.Parse(fmt.Sprintf("%v", row[0]))
		c.Name, _ = row[1].(string)
		c.Summary, _ = row[2].(string)
		c.Level = int(toFloat(row[3]))
		c.GroupID, _ = row[4].(string)
		c.CreatedAt = parseTime(row[5])
		communities = append(communities, c)
	}
	return communities, nil
}

// ShortestPath backs the node-distance reranker.
func (d *Dialect) ShortestPath(ctx context.Context, center uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]int{}, nil
	}
	cypher := fmt.Sprintf(
		"MATCH (c:Entity) WHERE c.uuid = %s MATCH (n:Entity) WHERE n.uuid IN [%s] MATCH p = shortestPath((c)-[*..10]-(n)) RETURN n.uuid, length(p)",
		Quote(center.String()), quotedIDs(ids))
	cmd, err := d.query(ctx, cypher)
	if err != nil {
		return nil, err
	}
	res, err := cmd.Result()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, err, "falkor: reading shortest path failed")
	}
	distances := map[uuid.UUID]int{}
	for _, row := range res.Data {
		if len(row) < 2 {
			continue
		}
		id, parseErr := uuid.Parse(fmt.Sprintf("%v", row[0]))
		if parseErr != nil {
			continue
		}
		distances[id] = int(toFloat(row[1]))
	}
	return distances, nil
}

// NodesExist reports which of ids currently resolve to a node.
func (d *Dialect) NodesExist(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	exists := map[uuid.UUID]bool{}
	for _, id := range ids {
		exists[id] = false
	}
	if len(ids) == 0 {
		return exists, nil
	}
	cypher := fmt.Sprintf("MATCH (n:Entity) WHERE n.uuid IN [%s] RETURN n.uuid", quotedIDs(ids))
	cmd, err := d.query(ctx, cypher)
	if err != nil {
		return nil, err
	}
	res, err := cmd.Result()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, err, "falkor: reading node existence failed")
	}
	for _, row := range res.Data {
		if len(row) < 1 {
			continue
		}
		id, parseErr := uuid.Parse(fmt.Sprintf("%v", row[0]))
		if parseErr == nil {
			exists[id] = true
		}
	}
	return exists, nil
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
	default:
		return time.Time{}
	}
}
