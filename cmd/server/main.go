// Command server is the graphcore search service's composition root: it
// builds every component exactly once (graph-store dialect, connection
// pool, two-tier cache, embedding collaborator, query preparer, retrieval
// engine, orchestration service) and serves the HTTP surface until a
// shutdown signal arrives. Adapted from the teacher's
// apps/mcp-server/cmd/server/main.go: flag-driven config path, startup
// logging, signal-triggered graceful shutdown with a bounded drain
// deadline.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corkum-labs/graphcore/internal/api"
	"github.com/corkum-labs/graphcore/internal/cachetier"
	"github.com/corkum-labs/graphcore/internal/config"
	"github.com/corkum-labs/graphcore/internal/embedcollab"
	"github.com/corkum-labs/graphcore/internal/graphstore"
	"github.com/corkum-labs/graphcore/internal/graphstore/cypher"
	"github.com/corkum-labs/graphcore/internal/graphstore/falkor"
	"github.com/corkum-labs/graphcore/internal/observability"
	"github.com/corkum-labs/graphcore/internal/preparer"
	"github.com/corkum-labs/graphcore/internal/resilience"
	"github.com/corkum-labs/graphcore/internal/retrieval"
	"github.com/corkum-labs/graphcore/internal/service"
	"github.com/gin-gonic/gin"
	neo4j "github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
)

var (
	configPath  = flag.String("config", "", "Path to config.yaml (overrides defaults/env)")
	showVersion = flag.Bool("version", false, "Show version information and exit")
	validate    = flag.Bool("validate", false, "Validate configuration and exit")
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("graphcore search service\nversion: %s\nbuild time: %s\n", version, buildTime)
		os.Exit(0)
	}

	logger := observability.NewStandardLogger("graphcore")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config load failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	if *validate {
		logger.Info("configuration validated successfully", nil)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	metrics := observability.NewPrometheusMetrics(registry, "kind", "method", "breaker", "to", "tier")

	// No span exporter is wired here (spec.md's supplied dependency set carries
	// no OTLP/stdout exporter package); the provider still samples and
	// propagates, and an exporter can be attached later without touching any
	// of the Start call sites in internal/retrieval.
	tracerProvider := observability.NewTracerProvider("graphcore", nil)
	otel.SetTracerProvider(tracerProvider)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer provider shutdown failed", map[string]any{"error": err.Error()})
		}
	}()

	embedClient, err := embedcollab.New(cfg.Embedding.Endpoint, cfg.Embedding.Model, cfg.Embedding.Dimension, cfg.Cache.L1EmbeddingEntries, cfg.Embedding.Timeout)
	if err != nil {
		logger.Error("embedding client construction failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	embedBreaker := resilience.NewBreaker(resilience.Config{Name: "embedding"}, logger.WithPrefix("embedding"), metrics)
	resilientEmbedder := resilience.NewResilientEmbedder(embedClient, embedBreaker, cfg.Embedding.MaxRetries)

	dialect, err := buildDialect(ctx, cfg, logger)
	if err != nil {
		logger.Error("graph store dialect construction failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	pool := graphstore.NewPool(noopConns(cfg.GraphStore.PoolSize))

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	cache, err := cachetier.New(redisClient, cachetier.Config{
		L1Entries: cfg.Cache.L1ResultEntries,
		L2TTL:     cfg.Cache.L2TTL,
		Version:   int64(cfg.Cache.CacheVersion),
	}, metrics, logger.WithPrefix("cache"))
	if err != nil {
		logger.Error("cache tier construction failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	prep := preparer.New(resilientEmbedder, &cfg.Search)
	engine := retrieval.New(dialect, pool, retrieval.Config{
		MethodTimeout:    cfg.Search.MethodTimeout,
		AggregateTimeout: cfg.Search.AggregateTimeout,
		MaxConcurrent:    cfg.HTTP.MaxConcurrent,
		AcquireWait:      cfg.GraphStore.AcquireWait,
	}, metrics, logger.WithPrefix("retrieval"))

	svc := service.New(prep, cache, engine, dialect, logger.WithPrefix("service"), metrics)

	handler := api.NewHandler(svc, dialect, logger.WithPrefix("api"), metrics)
	router := api.NewRouter(handler, cfg.HTTP.MaxConcurrent)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: router,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info("listening", map[string]any{"addr": cfg.HTTP.Addr})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	if err := waitForShutdown(ctx, httpServer, serverErrCh, logger); err != nil {
		logger.Error("server exited with error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}

func buildDialect(ctx context.Context, cfg *config.Config, logger observability.Logger) (graphstore.Dialect, error) {
	switch cfg.GraphStore.Dialect {
	case "falkor":
		client := redis.NewClient(&redis.Options{Addr: cfg.GraphStore.URI, Password: cfg.GraphStore.Password})
		return falkor.New(client, "graphcore", cfg.GraphStore.MaxQueryLen), nil
	default:
		driver, err := neo4j.NewDriverWithContext(cfg.GraphStore.URI, neo4j.BasicAuth(cfg.GraphStore.Username, cfg.GraphStore.Password, ""))
		if err != nil {
			return nil, err
		}
		if err := driver.VerifyConnectivity(ctx); err != nil {
			logger.Warn("neo4j connectivity check failed at startup", map[string]any{"error": err.Error()})
		}
		return cypher.New(driver), nil
	}
}

// noopConns stands in for the pool's leased-connection type until a
// dialect-specific session/transaction wrapper is introduced; the pool's
// bulkhead semantics (bounded slot count, Acquire/Release/Cancel) are
// exercised regardless of what each slot represents, since the dialects
// themselves are not yet session-scoped (spec.md §4.5 treats the store as
// stateless per-call).
type noopConn struct{}

func (noopConn) Release() {}
func (noopConn) Cancel()  {}

func noopConns(n int) []graphstore.Conn {
	if n <= 0 {
		n = 1
	}
	conns := make([]graphstore.Conn, n)
	for i := range conns {
		conns[i] = noopConn{}
	}
	return conns
}

func waitForShutdown(ctx context.Context, server *http.Server, serverErrCh <-chan error, logger observability.Logger) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", map[string]any{"signal": sig.String()})
	case err := <-serverErrCh:
		return err
	case <-ctx.Done():
		logger.Info("context cancelled", nil)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("shutting down gracefully", nil)
	return server.Shutdown(shutdownCtx)
}
