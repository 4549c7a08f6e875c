// Package retrieval implements C3, the Retrieval Engine: it dispatches the
// enabled methods (fulltext, similarity, BFS) concurrently per requested
// kind, applies per-method and aggregate deadlines, and degrades rather
// than fails when at least one enabled method per kind succeeds (spec.md
// §4.3). Adapted from the teacher's pkg/rag/retrieval hybrid search,
// which fans candidate generation out across BM25 and vector lookups the
// same way before fusing results.
package retrieval

import (
	"context"
	"time"

	"github.com/corkum-labs/graphcore/internal/apperr"
	"github.com/corkum-labs/graphcore/internal/graphstore"
	"github.com/corkum-labs/graphcore/internal/model"
	"github.com/corkum-labs/graphcore/internal/observability"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// MethodResult is one method's contribution for one entity kind.
type MethodResult struct {
	Method graphstore.Method
	Hits   []graphstore.Hit
	Err    error
}

// KindResult aggregates every enabled method's outcome for one kind.
type KindResult struct {
	Kind     model.Kind
	Methods  []MethodResult
	Degraded bool
}

// Request describes what to retrieve for one kind.
type Request struct {
	Kind          model.Kind
	Methods       []graphstore.Method
	Query         string
	Embedding     []float32
	SimMinScore   float64
	Filter        model.Filter
	BFSOrigins    []uuid.UUID
	BFSDepth      int
	Limit         int
}

// Engine dispatches retrieval methods against a graphstore.Dialect, bounded
// by a connection pool and a concurrency semaphore. The semaphore belongs to
// the Engine, so its MaxConcurrent slots are shared by all requests in
// flight rather than granted to each request.
type Engine struct {
	dialect          graphstore.Dialect
	pool             *graphstore.Pool
	methodTimeout    time.Duration
	aggregateTimeout time.Duration
	acquireWait      time.Duration
	semaphore        chan struct{}
	metrics          observability.MetricsClient
	logger           observability.Logger
	tracer           trace.Tracer
}

// Config bounds per-method/aggregate deadlines and per-request concurrency
// (spec.md §4.3 defaults: 5s method, 10s aggregate).
type Config struct {
	MethodTimeout    time.Duration
	AggregateTimeout time.Duration
	MaxConcurrent    int
	AcquireWait      time.Duration
}

// New constructs an Engine bound to a dialect and connection pool.
func New(dialect graphstore.Dialect, pool *graphstore.Pool, cfg Config, metrics observability.MetricsClient, logger observability.Logger) *Engine {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	acquireWait := cfg.AcquireWait
	if acquireWait <= 0 {
		acquireWait = 2 * time.Second
	}
	return &Engine{
		dialect:          dialect,
		pool:             pool,
		methodTimeout:    cfg.MethodTimeout,
		aggregateTimeout: cfg.AggregateTimeout,
		acquireWait:      acquireWait,
		semaphore:        make(chan struct{}, maxConcurrent),
		metrics:          metrics,
		logger:           logger,
		tracer:           observability.Tracer("graphcore/retrieval"),
	}
}

// Retrieve runs every request concurrently (one per kind), each fanning
// out its enabled methods concurrently in turn, all bounded by the
// aggregate deadline.
func (e *Engine) Retrieve(ctx context.Context, requests []Request) ([]KindResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.aggregateTimeout)
	defer cancel()

	results := make([]KindResult, len(requests))
	g, gctx := errgroup.WithContext(ctx)
	for i, req := range requests {
		i, req := i, req
		g.Go(func() error {
			results[i] = e.retrieveKind(gctx, req)
			return nil
		})
	}
	// Errors are absorbed into per-kind results; g.Wait() only surfaces
	// panics/context issues the goroutines themselves don't handle.
	_ = g.Wait()
	return results, nil
}

func (e *Engine) retrieveKind(ctx context.Context, req Request) KindResult {
	ctx, span := e.tracer.Start(ctx, "retrieval.kind", trace.WithAttributes(
		attribute.String("kind", req.Kind.String()),
	))
	defer span.End()

	kr := KindResult{Kind: req.Kind}
	var mg errgroup.Group
	methodResults := make([]MethodResult, len(req.Methods))

	for i, method := range req.Methods {
		i, method := i, method
		mg.Go(func() error {
			e.semaphore <- struct{}{}
			defer func() { <-e.semaphore }()

			mctx, span := e.tracer.Start(ctx, "retrieval.method", trace.WithAttributes(
				attribute.Int("method", int(method)),
			))
			defer span.End()

			mctx, cancel := context.WithTimeout(mctx, e.methodTimeout)
			defer cancel()

			conn, err := e.pool.Acquire(mctx, e.acquireWait)
			if err != nil {
				span.RecordError(err)
				methodResults[i] = MethodResult{Method: method, Err: err}
				return nil
			}
			defer e.pool.Release(conn)

			hits, err := e.runMethod(mctx, method, req)
			if err != nil {
				span.RecordError(err)
			}
			if mctx.Err() != nil {
				conn.Cancel()
			}
			methodResults[i] = MethodResult{Method: method, Hits: hits, Err: err}
			return nil
		})
	}
	_ = mg.Wait()

	kr.Methods = methodResults
	kr.Degraded = ctx.Err() != nil
	for _, mr := range methodResults {
		if mr.Err != nil {
			kr.Degraded = true
			e.logger.Warn("retrieval: method failed", map[string]any{
				"kind": req.Kind.String(), "method": int(mr.Method), "error": mr.Err.Error(),
			})
		}
	}
	return kr
}

func (e *Engine) runMethod(ctx context.Context, method graphstore.Method, req Request) ([]graphstore.Hit, error) {
	switch method {
	case graphstore.MethodFulltext:
		return e.dialect.Fulltext(ctx, graphstore.FulltextRequest{
			Kind: req.Kind, Query: req.Query, Filter: req.Filter, Limit: req.Limit,
		})
	case graphstore.MethodSimilarity:
		if len(req.Embedding) == 0 {
			return nil, apperr.New(apperr.KindInvalidInput, "similarity method requires a query embedding")
		}
		return e.dialect.Similarity(ctx, graphstore.SimilarityRequest{
			Kind: req.Kind, Embedding: req.Embedding, MinScore: req.SimMinScore, Filter: req.Filter, Limit: req.Limit,
		})
	case graphstore.MethodBFS:
		return e.dialect.BFS(ctx, graphstore.BFSRequest{
			Origins: req.BFSOrigins, Depth: req.BFSDepth, Filter: req.Filter, Limit: req.Limit,
		})
	default:
		return nil, apperr.New(apperr.KindInvalidInput, "unknown retrieval method")
	}
}

// AllFailed reports whether every enabled method for a kind failed, the
// condition under which the request fails outright rather than degrading
// (spec.md §4.3: "does not fail the request unless all enabled methods
// for a requested kind fail").
func (kr KindResult) AllFailed() bool {
	if len(kr.Methods) == 0 {
		return false
	}
	for _, m := range kr.Methods {
		if m.Err == nil {
			return false
		}
	}
	return true
}

// MostSevereError returns the most severe error among a kind's failed
// methods, for surfacing when AllFailed is true.
func (kr KindResult) MostSevereError() error {
	var worst error
	worstRank := -1
	for _, m := range kr.Methods {
		if m.Err == nil {
			continue
		}
		rank := severityRank(apperr.KindOf(m.Err))
		if rank > worstRank {
			worstRank = rank
			worst = m.Err
		}
	}
	return worst
}

func severityRank(k apperr.Kind) int {
	switch k {
	case apperr.KindInternal:
		return 4
	case apperr.KindDependencyFailed:
		return 3
	case apperr.KindUnavailable:
		return 2
	case apperr.KindResourceExhausted:
		return 1
	default:
		return 0
	}
}
