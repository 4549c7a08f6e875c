package graphstore

import (
	"context"
	"time"

	"github.com/corkum-labs/graphcore/internal/apperr"
)

// Conn is a leased handle returned by Pool.Acquire; Release must be called
// exactly once regardless of outcome.
type Conn interface {
	Release()
	// Cancel aborts any in-flight operation on this connection where the
	// underlying driver supports it (spec.md §5 cancellation); a best-effort
	// no-op otherwise.
	Cancel()
}

// Pool is a bounded pool of long-lived graph-store connections, shared
// across all requests (spec.md §4.5, §5). Acquire is bounded-wait FIFO;
// exhaustion surfaces as ErrorKind::ResourceExhausted. Grounded on the
// teacher's bulkhead bounded-slot acquire/release pattern
// (pkg/resilience/policies.go's BulkheadPolicy).
type Pool struct {
	slots chan Conn
}

// NewPool creates a pool backed by the given pre-built connections.
func NewPool(conns []Conn) *Pool {
	p := &Pool{slots: make(chan Conn, len(conns))}
	for _, c := range conns {
		p.slots <- c
	}
	return p
}

// Acquire blocks up to wait for a free connection. It returns
// ErrorKind::ResourceExhausted if none frees up in time, and
// ErrorKind::Unavailable if ctx is cancelled first.
func (p *Pool) Acquire(ctx context.Context, wait time.Duration) (Conn, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case c := <-p.slots:
		return c, nil
	case <-ctx.Done():
		return nil, apperr.Wrap(apperr.KindUnavailable, ctx.Err(), "graphstore: acquire cancelled")
	case <-timer.C:
		return nil, apperr.New(apperr.KindResourceExhausted, "graphstore: connection pool exhausted")
	}
}

// Release returns a connection to the pool.
func (p *Pool) Release(c Conn) {
	c.Release()
	p.slots <- c
}

// Len reports the number of currently idle connections.
func (p *Pool) Len() int { return len(p.slots) }
