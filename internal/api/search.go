package api

import (
	"net/http"
	"time"

	"github.com/corkum-labs/graphcore/internal/apperr"
	"github.com/corkum-labs/graphcore/internal/graphstore"
	"github.com/corkum-labs/graphcore/internal/model"
	"github.com/corkum-labs/graphcore/internal/preparer"
	"github.com/corkum-labs/graphcore/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// kindConfigRequest is the per-kind subset of the §6.1 config object:
// search_methods/reranker/bfs_max_depth/sim_min_score/mmr_lambda plus
// whether the kind is included at all.
type kindConfigRequest struct {
	Enabled       bool     `json:"enabled"`
	SearchMethods []string `json:"search_methods,omitempty"`
	Reranker      string   `json:"reranker,omitempty"`
	BFSMaxDepth   int      `json:"bfs_max_depth,omitempty"`
	SimMinScore   float64  `json:"sim_min_score,omitempty"`
	MMRLambda     float64  `json:"mmr_lambda,omitempty"`
}

// configRequest is the combined-search `config` object (spec.md §6.1).
// Limit is *int, not int: an omitted field must fall back to the
// deployment default, while an explicit "limit": 0 must reach the
// preparer as a genuine zero (spec.md §8 testable property #10).
type configRequest struct {
	Limit            *int              `json:"limit,omitempty"`
	RerankerMinScore float64           `json:"reranker_min_score,omitempty"`
	EdgeConfig       kindConfigRequest `json:"edge_config,omitempty"`
	NodeConfig       kindConfigRequest `json:"node_config,omitempty"`
	EpisodeConfig    kindConfigRequest `json:"episode_config,omitempty"`
	CommunityConfig  kindConfigRequest `json:"community_config,omitempty"`
	AllowTenancyWide bool              `json:"allow_tenancy_wide,omitempty"`
}

// filtersRequest is the request-scoped predicate set shared by every kind.
type filtersRequest struct {
	GroupIDs           []string   `json:"group_ids,omitempty"`
	NodeTypes          []string   `json:"node_types,omitempty"`
	ValidAfter         *time.Time `json:"valid_after,omitempty"`
	ValidBefore        *time.Time `json:"valid_before,omitempty"`
	IncludeInvalidated bool       `json:"include_invalidated,omitempty"`
}

// searchRequest is the POST /search body.
type searchRequest struct {
	Query              string         `json:"query" binding:"required"`
	Config             configRequest  `json:"config,omitempty"`
	Filters            filtersRequest `json:"filters,omitempty"`
	CenterNodeUUID     string         `json:"center_node_uuid,omitempty"`
	BFSOriginNodeUUIDs []string       `json:"bfs_origin_node_uuids,omitempty"`
	QueryVector        []float32      `json:"query_vector,omitempty"`
}

// kindSearchRequest is the POST /search/{edges,nodes} body: the config
// object flattened to one kind's subset (spec.md §6.1).
type kindSearchRequest struct {
	Query              string         `json:"query" binding:"required"`
	Limit              *int           `json:"limit,omitempty"`
	RerankerMinScore   float64        `json:"reranker_min_score,omitempty"`
	SearchMethods      []string       `json:"search_methods,omitempty"`
	Reranker           string         `json:"reranker,omitempty"`
	BFSMaxDepth        int            `json:"bfs_max_depth,omitempty"`
	SimMinScore        float64        `json:"sim_min_score,omitempty"`
	MMRLambda          float64        `json:"mmr_lambda,omitempty"`
	AllowTenancyWide   bool           `json:"allow_tenancy_wide,omitempty"`
	Filters            filtersRequest `json:"filters,omitempty"`
	CenterNodeUUID     string         `json:"center_node_uuid,omitempty"`
	BFSOriginNodeUUIDs []string       `json:"bfs_origin_node_uuids,omitempty"`
	QueryVector        []float32      `json:"query_vector,omitempty"`
}

func toKindOptions(kc kindConfigRequest) preparer.KindOptions {
	return preparer.KindOptions{
		Enabled:       kc.Enabled,
		SearchMethods: toMethods(kc.SearchMethods),
		Reranker:      preparer.Reranker(kc.Reranker),
		BFSMaxDepth:   kc.BFSMaxDepth,
		SimMinScore:   kc.SimMinScore,
		MMRLambda:     kc.MMRLambda,
	}
}

func toMethods(ss []string) []preparer.Method {
	out := make([]preparer.Method, 0, len(ss))
	for _, s := range ss {
		out = append(out, preparer.Method(s))
	}
	return out
}

func toFilter(fr filtersRequest, centerNodeUUID string, bfsOrigins []string) (model.Filter, error) {
	filter := model.Filter{
		GroupIDs:           fr.GroupIDs,
		NodeTypes:          fr.NodeTypes,
		ValidAfter:         fr.ValidAfter,
		ValidBefore:        fr.ValidBefore,
		IncludeInvalidated: fr.IncludeInvalidated,
	}
	if centerNodeUUID != "" {
		id, err := uuid.Parse(centerNodeUUID)
		if err != nil {
			return filter, apperr.New(apperr.KindInvalidInput, "center_node_uuid is not a valid uuid")
		}
		filter.CenterNodeUUID = &id
	}
	if len(bfsOrigins) > 0 {
		ids := make([]uuid.UUID, 0, len(bfsOrigins))
		for _, s := range bfsOrigins {
			id, err := uuid.Parse(s)
			if err != nil {
				return filter, apperr.New(apperr.KindInvalidInput, "bfs_origin_node_uuids contains an invalid uuid")
			}
			ids = append(ids, id)
		}
		filter.BFSOriginUUIDs = ids
	}
	return filter, nil
}

// HandleSearchAll implements POST /search: combined search across every
// kind the request's config enables.
func (h *Handler) HandleSearchAll(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.New(apperr.KindInvalidInput, err.Error()))
		return
	}

	filter, err := toFilter(req.Filters, req.CenterNodeUUID, req.BFSOriginNodeUUIDs)
	if err != nil {
		writeError(c, err)
		return
	}

	in := service.SearchInput{
		Query:       req.Query,
		Filter:      filter,
		QueryVector: req.QueryVector,
		Options: preparer.Options{
			Limit:            req.Config.Limit,
			RerankerMinScore: req.Config.RerankerMinScore,
			Edge:             toKindOptions(req.Config.EdgeConfig),
			Node:             toKindOptions(req.Config.NodeConfig),
			Episode:          toKindOptions(req.Config.EpisodeConfig),
			Community:        toKindOptions(req.Config.CommunityConfig),
			AllowTenancyWide: req.Config.AllowTenancyWide,
		},
	}

	result, err := h.svc.Search(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSearchResponse(result))
}

// HandleSearchEdges implements POST /search/edges.
func (h *Handler) HandleSearchEdges(c *gin.Context) {
	h.handleKindSearch(c, func(ko preparer.KindOptions) preparer.Options {
		ko.Enabled = true
		return preparer.Options{Edge: ko}
	})
}

// HandleSearchNodes implements POST /search/nodes.
func (h *Handler) HandleSearchNodes(c *gin.Context) {
	h.handleKindSearch(c, func(ko preparer.KindOptions) preparer.Options {
		ko.Enabled = true
		return preparer.Options{Node: ko}
	})
}

func (h *Handler) handleKindSearch(c *gin.Context, wrap func(preparer.KindOptions) preparer.Options) {
	var req kindSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.New(apperr.KindInvalidInput, err.Error()))
		return
	}

	filter, err := toFilter(req.Filters, req.CenterNodeUUID, req.BFSOriginNodeUUIDs)
	if err != nil {
		writeError(c, err)
		return
	}

	opts := wrap(preparer.KindOptions{
		SearchMethods: toMethods(req.SearchMethods),
		Reranker:      preparer.Reranker(req.Reranker),
		BFSMaxDepth:   req.BFSMaxDepth,
		SimMinScore:   req.SimMinScore,
		MMRLambda:     req.MMRLambda,
	})
	opts.Limit = req.Limit
	opts.RerankerMinScore = req.RerankerMinScore
	opts.AllowTenancyWide = req.AllowTenancyWide

	in := service.SearchInput{
		Query:       req.Query,
		Filter:      filter,
		QueryVector: req.QueryVector,
		Options:     opts,
	}

	result, err := h.svc.Search(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSearchResponse(result))
}

// nodeResponse is the wire shape for a node record (spec.md §6.2).
type nodeResponse struct {
	UUID      string  `json:"uuid"`
	Name      string  `json:"name"`
	NodeType  string  `json:"node_type"`
	Summary   string  `json:"summary"`
	GroupID   string  `json:"group_id"`
	CreatedAt string  `json:"created_at"`
	Score     float64 `json:"score"`
}

// edgeResponse is the wire shape for an edge record (spec.md §6.2).
type edgeResponse struct {
	UUID           string  `json:"uuid"`
	SourceNodeUUID string  `json:"source_node_uuid"`
	TargetNodeUUID string  `json:"target_node_uuid"`
	Name           string  `json:"name"`
	Fact           string  `json:"fact"`
	ValidAt        *string `json:"valid_at,omitempty"`
	InvalidAt      *string `json:"invalid_at,omitempty"`
	CreatedAt      string  `json:"created_at"`
	ExpiredAt      *string `json:"expired_at,omitempty"`
	Score          float64 `json:"score"`
}

// episodeResponse is the wire shape for an episode record (spec.md §6.2).
type episodeResponse struct {
	UUID              string `json:"uuid"`
	Name              string `json:"name"`
	Content           string `json:"content"`
	Source            string `json:"source"`
	SourceDescription string `json:"source_description"`
	CreatedAt         string `json:"created_at"`
	ValidAt           string `json:"valid_at"`
}

// communityResponse mirrors nodeResponse without node_type. The community's
// hierarchy level (model.Community.Level) is not included in the response.
type communityResponse struct {
	UUID      string  `json:"uuid"`
	Name      string  `json:"name"`
	Summary   string  `json:"summary"`
	GroupID   string  `json:"group_id"`
	CreatedAt string  `json:"created_at"`
	Score     float64 `json:"score"`
}

type searchResponse struct {
	Edges       []edgeResponse      `json:"edges"`
	Nodes       []nodeResponse      `json:"nodes"`
	Episodes    []episodeResponse   `json:"episodes"`
	Communities []communityResponse `json:"communities"`
	LatencyMS   int64               `json:"latency_ms"`
	Degraded    bool                `json:"degraded,omitempty"`
	DegradedOn  []string            `json:"degraded_on,omitempty"`
}

func toSearchResponse(r *service.Result) searchResponse {
	out := searchResponse{
		Edges:       make([]edgeResponse, 0, len(r.Edges)),
		Nodes:       make([]nodeResponse, 0, len(r.Nodes)),
		Episodes:    make([]episodeResponse, 0, len(r.Episodes)),
		Communities: make([]communityResponse, 0, len(r.Communities)),
		LatencyMS:   r.LatencyMS,
		Degraded:    r.Degraded,
		DegradedOn:  r.DegradedOn,
	}
	for _, n := range r.Nodes {
		out.Nodes = append(out.Nodes, nodeResponse{
			UUID: n.UUID.String(), Name: n.Name, Summary: n.Summary, GroupID: n.GroupID,
			CreatedAt: graphstore.RFC3339UTC(n.CreatedAt), Score: n.Score,
		})
	}
	for _, e := range r.Edges {
		out.Edges = append(out.Edges, edgeResponse{
			UUID: e.UUID.String(), SourceNodeUUID: e.SourceUUID.String(), TargetNodeUUID: e.TargetUUID.String(),
			Name: e.Name, Fact: e.Fact, ValidAt: formatTimePtr(e.ValidAt), InvalidAt: formatTimePtr(e.InvalidAt),
			CreatedAt: graphstore.RFC3339UTC(e.CreatedAt), Score: e.Score,
		})
	}
	for _, ep := range r.Episodes {
		out.Episodes = append(out.Episodes, episodeResponse{
			UUID: ep.UUID.String(), Name: ep.Name, Content: ep.Content, Source: ep.Source,
			SourceDescription: ep.SourceDesc, CreatedAt: graphstore.RFC3339UTC(ep.CreatedAt),
			ValidAt: graphstore.RFC3339UTC(derefTime(ep.ValidAt)),
		})
	}
	for _, cm := range r.Communities {
		out.Communities = append(out.Communities, communityResponse{
			UUID: cm.UUID.String(), Name: cm.Name, Summary: cm.Summary, GroupID: cm.GroupID,
			CreatedAt: graphstore.RFC3339UTC(cm.CreatedAt), Score: cm.Score,
		})
	}
	return out
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := graphstore.RFC3339UTC(*t)
	return &s
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
