// Package service orchestrates the full request pipeline: C1 (prepare) →
// C2 (cache lookup) → C3 (retrieve) → C4 (fuse/rerank/dedup) → C2 (cache
// store) → response (spec.md §2, §5: "A request enters C1, consults C2;
// on miss it is dispatched through C3 ... the raw lists flow to C4, the
// final result is stored in C2, then returned"). This is the composition
// point every other internal package feeds into; cmd/server wires the
// concrete dependencies and constructs one Service per process.
package service

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/corkum-labs/graphcore/internal/apperr"
	"github.com/corkum-labs/graphcore/internal/cachetier"
	"github.com/corkum-labs/graphcore/internal/fusion"
	"github.com/corkum-labs/graphcore/internal/graphstore"
	"github.com/corkum-labs/graphcore/internal/model"
	"github.com/corkum-labs/graphcore/internal/observability"
	"github.com/corkum-labs/graphcore/internal/preparer"
	"github.com/corkum-labs/graphcore/internal/retrieval"
	"github.com/google/uuid"
)

// Record is one ranked result item ready for wire serialization (spec.md
// §6.2 field sets, collapsed into one internal shape; handlers project
// the subset relevant to each kind).
type Record struct {
	UUID            uuid.UUID
	Name            string
	NodeType        string
	Summary         string
	GroupID         string
	CreatedAt       time.Time
	Score           float64
	SourceUUID      uuid.UUID
	TargetUUID      uuid.UUID
	Fact            string
	ValidAt         *time.Time
	InvalidAt       *time.Time
	Content         string
	Source          string
	SourceDesc      string
}

// Result is the combined-search response body (spec.md §6.1 POST /search).
type Result struct {
	Edges       []Record
	Nodes       []Record
	Episodes    []Record
	Communities []Record
	LatencyMS   int64
	Degraded    bool
	DegradedOn  []string
}

// Service wires C1 through C5 into one request pipeline.
type Service struct {
	prep     *preparer.Preparer
	cache    *cachetier.Tier
	engine   *retrieval.Engine
	dialect  graphstore.Dialect
	logger   observability.Logger
	metrics  observability.MetricsClient
}

// New constructs a Service from its already-built component dependencies
// (the composition root in cmd/server builds each of these exactly once).
func New(prep *preparer.Preparer, cache *cachetier.Tier, engine *retrieval.Engine, dialect graphstore.Dialect, logger observability.Logger, metrics observability.MetricsClient) *Service {
	return &Service{prep: prep, cache: cache, engine: engine, dialect: dialect, logger: logger, metrics: metrics}
}

// SearchInput is the caller-facing request for a combined search.
type SearchInput struct {
	Query             string
	Filter            model.Filter
	QueryVector       []float32
	Options           preparer.Options
}

// Search runs the full C1→C2→C3→C4→C2 pipeline for a combined search
// across every enabled kind.
func (s *Service) Search(ctx context.Context, in SearchInput) (*Result, error) {
	start := time.Now()

	prepared, err := s.prep.Prepare(ctx, in.Query, in.Filter, in.QueryVector, in.Options)
	if err != nil {
		return nil, err
	}

	cacheKey := s.cache.Key(prepared.NormalizedQuery, prepared.Filter.GroupIDs, cacheParams(prepared.Options, prepared.Filter))
	var cached Result
	if s.cache.Get(ctx, cacheKey, &cached) {
		cached.LatencyMS = time.Since(start).Milliseconds()
		return &cached, nil
	}

	result, err := s.executeKinds(ctx, prepared)
	if err != nil {
		return nil, err
	}
	result.LatencyMS = time.Since(start).Milliseconds()

	s.cache.Set(ctx, cacheKey, result, 0, prepared.Filter.GroupIDs)
	return result, nil
}

func cacheParams(opts preparer.Options, filter model.Filter) string {
	raw, _ := json.Marshal(struct {
		Options preparer.Options
		Filter  model.Filter
	}{opts, filter})
	return string(raw)
}

func (s *Service) executeKinds(ctx context.Context, prepared *preparer.PreparedRequest) (*Result, error) {
	result := &Result{}
	var degradedOn []string

	kindPlan := []struct {
		kind model.Kind
		opts preparer.KindOptions
	}{
		{model.KindEdge, prepared.Options.Edge},
		{model.KindNode, prepared.Options.Node},
		{model.KindEpisode, prepared.Options.Episode},
		{model.KindCommunity, prepared.Options.Community},
	}

	var requests []retrieval.Request
	for _, kp := range kindPlan {
		if !kp.opts.Enabled {
			continue
		}
		requests = append(requests, retrieval.Request{
			Kind:        kp.kind,
			Methods:     toGraphstoreMethods(kp.opts.SearchMethods),
			Query:       prepared.NormalizedQuery,
			Embedding:   prepared.Embedding,
			SimMinScore: kp.opts.SimMinScore,
			Filter:      prepared.Filter,
			BFSOrigins:  prepared.Filter.BFSOriginUUIDs,
			BFSDepth:    kp.opts.BFSMaxDepth,
			Limit:       *prepared.Options.Limit,
		})
	}
	if len(requests) == 0 {
		return result, nil
	}

	kindResults, err := s.engine.Retrieve(ctx, requests)
	if err != nil {
		return nil, err
	}

	var mostSevere error
	allFailedCount := 0
	for _, kr := range kindResults {
		if kr.AllFailed() {
			allFailedCount++
			if mostSevere == nil {
				mostSevere = kr.MostSevereError()
			}
			continue
		}
		if kr.Degraded {
			degradedOn = append(degradedOn, kr.Kind.String())
		}

		var opts preparer.KindOptions
		for _, kp := range kindPlan {
			if kp.kind == kr.Kind {
				opts = kp.opts
			}
		}
		methodHits := make([][]graphstore.Hit, 0, len(kr.Methods))
		for _, mr := range kr.Methods {
			if mr.Err == nil {
				methodHits = append(methodHits, mr.Hits)
			}
		}

		candidates, rerankErr := fusion.Rerank(ctx, fusion.Strategy(opts.Reranker), methodHits, 60, prepared.Embedding, opts.MMRLambda,
			prepared.Filter.CenterNodeUUID, s.fetchEmbeddings(kr.Kind), s.fetchDistances)
		if rerankErr != nil {
			degradedOn = append(degradedOn, kr.Kind.String()+":rerank")
		}
		candidates = fusion.MinScoreFilter(candidates, prepared.Options.RerankerMinScore)

		s.populateRecords(ctx, result, kr.Kind, candidates)
	}

	if allFailedCount == len(requests) {
		return nil, mostSevere
	}

	result.Degraded = len(degradedOn) > 0
	result.DegradedOn = degradedOn
	return s.dedupEdges(ctx, result), nil
}

func toGraphstoreMethods(methods []preparer.Method) []graphstore.Method {
	out := make([]graphstore.Method, 0, len(methods))
	for _, m := range methods {
		switch m {
		case preparer.MethodFulltext:
			out = append(out, graphstore.MethodFulltext)
		case preparer.MethodSimilarity:
			out = append(out, graphstore.MethodSimilarity)
		case preparer.MethodBFS:
			out = append(out, graphstore.MethodBFS)
		}
	}
	return out
}

func (s *Service) fetchEmbeddings(kind model.Kind) fusion.EmbeddingFetcher {
	return func(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]float32, error) {
		out := map[uuid.UUID][]float32{}
		switch kind {
		case model.KindNode:
			nodes, err := s.dialect.FetchNodes(ctx, ids)
			if err != nil {
				return nil, err
			}
			for _, n := range nodes {
				out[n.UUID] = n.Embedding
			}
		case model.KindEdge:
			edges, err := s.dialect.FetchEdges(ctx, ids)
			if err != nil {
				return nil, err
			}
			for _, e := range edges {
				out[e.UUID] = e.Embedding
			}
		case model.KindCommunity:
			communities, err := s.dialect.FetchCommunities(ctx, ids)
			if err != nil {
				return nil, err
			}
			for _, c := range communities {
				out[c.UUID] = c.Embedding
			}
		}
		return out, nil
	}
}

func (s *Service) fetchDistances(ctx context.Context, center uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	return s.dialect.ShortestPath(ctx, center, ids)
}

func (s *Service) populateRecords(ctx context.Context, result *Result, kind model.Kind, candidates []fusion.Candidate) {
	ids := make([]uuid.UUID, len(candidates))
	scores := map[uuid.UUID]float64{}
	pos := map[uuid.UUID]int{}
	for i, c := range candidates {
		ids[i] = c.UUID
		scores[c.UUID] = c.Score
		pos[c.UUID] = i
	}

	switch kind {
	case model.KindNode:
		nodes, _ := s.dialect.FetchNodes(ctx, ids)
		sort.SliceStable(nodes, func(a, b int) bool { return pos[nodes[a].UUID] < pos[nodes[b].UUID] })
		for _, n := range nodes {
			result.Nodes = append(result.Nodes, Record{UUID: n.UUID, Name: n.Name, Summary: n.Summary, GroupID: n.GroupID, CreatedAt: n.CreatedAt, Score: scores[n.UUID]})
		}
	case model.KindEdge:
		edges, _ := s.dialect.FetchEdges(ctx, ids)
		sort.SliceStable(edges, func(a, b int) bool { return pos[edges[a].UUID] < pos[edges[b].UUID] })
		for _, e := range edges {
			result.Edges = append(result.Edges, Record{UUID: e.UUID, SourceUUID: e.SourceUUID, TargetUUID: e.TargetUUID, Name: e.Name, Fact: e.Fact, ValidAt: e.ValidAt, InvalidAt: e.InvalidAt, CreatedAt: e.CreatedAt, Score: scores[e.UUID]})
		}
	case model.KindEpisode:
		episodes, _ := s.dialect.FetchEpisodes(ctx, ids)
		sort.SliceStable(episodes, func(a, b int) bool { return pos[episodes[a].UUID] < pos[episodes[b].UUID] })
		for _, ep := range episodes {
			result.Episodes = append(result.Episodes, Record{UUID: ep.UUID, Name: ep.Name, Content: ep.Content, Source: ep.Source.String(), SourceDesc: ep.Description, CreatedAt: ep.CreatedAt, ValidAt: &ep.ValidAt, Score: scores[ep.UUID]})
		}
	case model.KindCommunity:
		communities, _ := s.dialect.FetchCommunities(ctx, ids)
		sort.SliceStable(communities, func(a, b int) bool { return pos[communities[a].UUID] < pos[communities[b].UUID] })
		for _, c := range communities {
			result.Communities = append(result.Communities, Record{UUID: c.UUID, Name: c.Name, Summary: c.Summary, GroupID: c.GroupID, CreatedAt: c.CreatedAt, Score: scores[c.UUID]})
		}
	}
}

// dedupEdges applies C4's fact dedup pass over the final edge list
// (spec.md §4.4).
func (s *Service) dedupEdges(_ context.Context, result *Result) *Result {
	candidates := make([]fusion.Candidate, len(result.Edges))
	for i, e := range result.Edges {
		candidates[i] = fusion.Candidate{UUID: e.UUID, Score: e.Score, Fact: e.Fact}
	}
	deduped := fusion.DedupFacts(candidates, 0.85)

	keep := map[uuid.UUID]bool{}
	for _, c := range deduped {
		keep[c.UUID] = true
	}
	out := result.Edges[:0]
	for _, e := range result.Edges {
		if keep[e.UUID] {
			out = append(out, e)
		}
	}
	result.Edges = out
	return result
}

// InvalidateGroup drives the webhook-triggered invalidation path (spec.md
// §6.5).
func (s *Service) InvalidateGroup(ctx context.Context, groupID string) (int, error) {
	if groupID == "" {
		return 0, apperr.New(apperr.KindInvalidInput, "group_id is required")
	}
	return s.cache.InvalidateGroup(ctx, groupID)
}

// CacheStats exposes C2 occupancy for the debug endpoint.
func (s *Service) CacheStats() cachetier.Stats {
	return s.cache.Stats()
}
