package graphstore

import (
	"context"
	"testing"
	"time"

	"github.com/corkum-labs/graphcore/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	released bool
	canceled bool
}

func (c *fakeConn) Release() { c.released = true }
func (c *fakeConn) Cancel()  { c.canceled = true }

func TestPoolAcquireRelease(t *testing.T) {
	c := &fakeConn{}
	p := NewPool([]Conn{c})
	assert.Equal(t, 1, p.Len())

	got, err := p.Acquire(t.Context(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Len())

	p.Release(got)
	assert.Equal(t, 1, p.Len())
	assert.True(t, c.released)
}

func TestPoolAcquireExhaustedTimesOut(t *testing.T) {
	c := &fakeConn{}
	p := NewPool([]Conn{c})

	_, err := p.Acquire(t.Context(), time.Second)
	require.NoError(t, err)

	_, err = p.Acquire(t.Context(), 20*time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, apperr.KindResourceExhausted, apperr.KindOf(err))
}

func TestPoolAcquireCancelledContext(t *testing.T) {
	c := &fakeConn{}
	p := NewPool([]Conn{c})
	_, err := p.Acquire(t.Context(), time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err = p.Acquire(ctx, time.Second)
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnavailable, apperr.KindOf(err))
}

func TestPoolAcquireUnblocksOnConcurrentRelease(t *testing.T) {
	c := &fakeConn{}
	p := NewPool([]Conn{c})

	held, err := p.Acquire(t.Context(), time.Second)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		time.Sleep(20 * time.Millisecond)
		p.Release(held)
	}()

	got, err := p.Acquire(t.Context(), time.Second)
	require.NoError(t, err)
	assert.Same(t, c, got)
	<-done
}
