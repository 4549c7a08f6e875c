// Package resilience wraps calls to the embedding collaborator and the
// graph store with a circuit breaker and, for the embedding collaborator
// only, bounded exponential backoff with jitter (spec.md §7 propagation
// policy: "internal retries ... may occur for embedding only"). Adapted in
// shape from the teacher's pkg/resilience circuit breaker, rebuilt on
// github.com/sony/gobreaker — a real dependency already in the teacher's
// go.mod and already wrapped once in internal/adapters/resilience — rather
// than reproducing the teacher's separate hand-rolled implementation.
package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/corkum-labs/graphcore/internal/apperr"
	"github.com/corkum-labs/graphcore/internal/observability"
	"github.com/sony/gobreaker"
)

// Breaker wraps a single named dependency call with circuit-breaking.
type Breaker struct {
	cb      *gobreaker.CircuitBreaker
	logger  observability.Logger
	metrics observability.MetricsClient
}

// Config tunes the breaker's trip/reset behavior.
type Config struct {
	Name                string
	MaxHalfOpenRequests uint32
	OpenTimeout         time.Duration
	FailureRatio        float64
	MinRequests         uint32
}

// NewBreaker constructs a circuit breaker around one dependency.
func NewBreaker(cfg Config, logger observability.Logger, metrics observability.MetricsClient) *Breaker {
	if cfg.MaxHalfOpenRequests == 0 {
		cfg.MaxHalfOpenRequests = 1
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.FailureRatio == 0 {
		cfg.FailureRatio = 0.5
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 10
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxHalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= cfg.MinRequests &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("resilience: circuit breaker state change", map[string]any{
				"breaker": name, "from": from.String(), "to": to.String(),
			})
			metrics.IncrementCounter("resilience_breaker_state_changes_total", map[string]string{"breaker": name, "to": to.String()})
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings), logger: logger, metrics: metrics}
}

// Do executes fn through the breaker, translating an open-circuit
// rejection into ErrorKind::Unavailable so callers don't need to know
// about gobreaker's sentinel errors.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return fn(ctx)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, apperr.Wrap(apperr.KindUnavailable, err, "resilience: circuit breaker rejected request")
	}
	return result, err
}

// EmbeddingRetry wraps an embedding-collaborator call with bounded
// exponential backoff and jitter; only ErrorKind::Unavailable failures are
// retried (spec.md §7: dependency-down failures may be retried for
// embedding, not DependencyFailed or InvalidInput).
func EmbeddingRetry(ctx context.Context, maxRetries int, fn func(ctx context.Context) ([]float32, error)) ([]float32, error) {
	policy := backoff.WithContext(boundedExponential(maxRetries), ctx)

	var result []float32
	op := func() error {
		v, err := fn(ctx)
		if err == nil {
			result = v
			return nil
		}
		if apperr.KindOf(err) != apperr.KindUnavailable {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return result, nil
}

// embedder is the minimal shape of an embedding collaborator client;
// satisfied by *embedcollab.Client without an import (resilience sits below
// preparer/embedcollab in the dependency graph).
type embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ResilientEmbedder wraps an embedding-collaborator client with a circuit
// breaker and bounded retry, presenting the same Embed method so it can
// stand in wherever the bare client would (preparer.Embedder).
type ResilientEmbedder struct {
	client     embedder
	breaker    *Breaker
	maxRetries int
}

// NewResilientEmbedder constructs a ResilientEmbedder around an
// already-built client and breaker.
func NewResilientEmbedder(client embedder, breaker *Breaker, maxRetries int) *ResilientEmbedder {
	return &ResilientEmbedder{client: client, breaker: breaker, maxRetries: maxRetries}
}

// Embed runs the client call through the breaker, retrying
// ErrorKind::Unavailable failures with bounded backoff.
func (r *ResilientEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return EmbeddingRetry(ctx, r.maxRetries, func(ctx context.Context) ([]float32, error) {
		v, err := r.breaker.Do(ctx, func(ctx context.Context) (any, error) {
			return r.client.Embed(ctx, text)
		})
		if err != nil {
			return nil, err
		}
		return v.([]float32), nil
	})
}

func boundedExponential(maxRetries int) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 100 * time.Millisecond
	eb.MaxInterval = 2 * time.Second
	eb.MaxElapsedTime = 0
	return backoff.WithMaxRetries(eb, uint64(maxRetries))
}
