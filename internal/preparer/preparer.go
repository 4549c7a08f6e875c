// Package preparer implements C1, the Query Preparer: it normalizes a raw
// query string, resolves the effective filter set, acquires or reuses a
// query embedding, and bounds the requested limits before the request
// reaches C2/C3 (spec.md §4.1). Adapted from the teacher's request
// validation layer in apps/rest-api/internal/api/search_handlers.go, which
// does the equivalent normalize-then-validate pass ahead of retrieval.
package preparer

import (
	"context"
	"strings"

	"github.com/corkum-labs/graphcore/internal/apperr"
	"github.com/corkum-labs/graphcore/internal/config"
	"github.com/corkum-labs/graphcore/internal/model"
)

// Embedder acquires a query embedding; satisfied directly by
// *embedcollab.Client and, at the composition root, by a
// resilience-wrapped adapter around it (circuit breaker + bounded retry,
// spec.md §7 propagation policy for embedding-only retries).
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

const (
	minQueryLen = 1
	maxQueryLen = 4096
)

// Method identifies one of the three retrieval methods a kind may request.
type Method string

const (
	MethodFulltext   Method = "fulltext"
	MethodSimilarity Method = "similarity"
	MethodBFS        Method = "bfs"
)

// Reranker identifies the fusion strategy for one kind.
type Reranker string

const (
	RerankerRRF          Reranker = "rrf"
	RerankerMMR          Reranker = "mmr"
	RerankerNodeDistance Reranker = "node_distance"
)

// KindOptions carries the per-kind search_methods/reranker/bfs_max_depth/
// sim_min_score/mmr_lambda schema spec.md §9 decided on (§6.1).
type KindOptions struct {
	Enabled         bool
	SearchMethods   []Method
	Reranker        Reranker
	BFSMaxDepth     int
	SimMinScore     float64
	MMRLambda       float64
}

// Options is the config object accompanying a raw query (spec.md §6.1).
type Options struct {
	// Limit is nilable so an explicit "limit: 0" (spec.md §8 testable
	// property #10: empty per-kind result, latency_ms still present) can
	// be told apart from an omitted field, which falls back to
	// cfg.DefaultLimit. Resolved by resolveOptions before C3 ever sees it.
	Limit             *int
	RerankerMinScore  float64
	Edge              KindOptions
	Node              KindOptions
	Episode           KindOptions
	Community         KindOptions
	AllowTenancyWide  bool
}

// PreparedRequest is the canonical internal request C2/C3 consume.
type PreparedRequest struct {
	NormalizedQuery string
	Filter          model.Filter
	Embedding       []float32
	Options         Options
}

// Preparer normalizes raw requests into PreparedRequest values.
type Preparer struct {
	embed Embedder
	cfg   *config.SearchConfig
}

// New constructs a Preparer bound to the embedding collaborator and the
// deployment's search defaults/maxima.
func New(embed Embedder, cfg *config.SearchConfig) *Preparer {
	return &Preparer{embed: embed, cfg: cfg}
}

func needsEmbedding(opts Options) bool {
	for _, ko := range []KindOptions{opts.Edge, opts.Node, opts.Community} {
		if !ko.Enabled {
			continue
		}
		for _, m := range ko.SearchMethods {
			if m == MethodSimilarity {
				return true
			}
		}
		if ko.Reranker == RerankerMMR {
			return true
		}
	}
	return false
}

// Prepare normalizes query, resolves filters against deployment defaults,
// acquires an embedding when one of the enabled methods needs it, and
// clamps limits to deployment maxima.
func (p *Preparer) Prepare(ctx context.Context, rawQuery string, filter model.Filter, queryVector []float32, opts Options) (*PreparedRequest, error) {
	normalized := strings.Join(strings.Fields(rawQuery), " ")
	if len(normalized) < minQueryLen {
		return nil, apperr.New(apperr.KindInvalidInput, "query must not be empty")
	}
	if len(normalized) > maxQueryLen {
		return nil, apperr.New(apperr.KindInvalidInput, "query exceeds maximum length")
	}

	if len(filter.GroupIDs) == 0 && !opts.AllowTenancyWide {
		return nil, apperr.New(apperr.KindInvalidInput, "group_ids required unless tenancy-wide search is explicitly allowed")
	}

	resolved := resolveOptions(opts, p.cfg)

	var embedding []float32
	if len(queryVector) > 0 {
		embedding = queryVector
	} else if needsEmbedding(resolved) {
		vec, err := p.embed.Embed(ctx, normalized)
		if err != nil {
			return nil, err
		}
		embedding = vec
	}

	return &PreparedRequest{
		NormalizedQuery: normalized,
		Filter:          filter,
		Embedding:       embedding,
		Options:         resolved,
	}, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func resolveKind(ko KindOptions, cfg *config.SearchConfig) KindOptions {
	if ko.BFSMaxDepth == 0 {
		ko.BFSMaxDepth = cfg.MaxBFSDepth
	}
	ko.BFSMaxDepth = clampInt(ko.BFSMaxDepth, 1, cfg.MaxBFSDepth)
	if ko.Reranker == "" {
		ko.Reranker = RerankerRRF
	}
	if len(ko.SearchMethods) == 0 {
		ko.SearchMethods = []Method{MethodFulltext, MethodSimilarity}
	}
	ko.SimMinScore = clampFloat(ko.SimMinScore, 0, 1)
	ko.MMRLambda = clampFloat(ko.MMRLambda, 0, 1)
	if ko.MMRLambda == 0 {
		ko.MMRLambda = 0.5
	}
	return ko
}

func resolveOptions(opts Options, cfg *config.SearchConfig) Options {
	if opts.Limit == nil {
		v := cfg.DefaultLimit
		opts.Limit = &v
	} else {
		v := clampInt(*opts.Limit, 0, cfg.MaxLimit)
		opts.Limit = &v
	}
	opts.Edge = resolveKind(opts.Edge, cfg)
	opts.Node = resolveKind(opts.Node, cfg)
	opts.Episode = resolveKind(opts.Episode, cfg)
	opts.Community = resolveKind(opts.Community, cfg)
	return opts
}
