package pool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id int64
}

func fakeFactory(counter *int64) Factory[*fakeConn] {
	return func(ctx context.Context) (*fakeConn, error) {
		n := atomic.AddInt64(counter, 1)
		return &fakeConn{id: n}, nil
	}
}

func TestPoolAcquireReleaseReusesConnections(t *testing.T) {
	var created int64
	p := New(Config{MaxConns: 2, AcquireTimeout: time.Second}, fakeFactory(&created), func(*fakeConn) error { return nil }, nil)
	defer p.Close()

	c1, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(c1)

	c2, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(c2)

	assert.EqualValues(t, 1, created, "second acquire should reuse the released connection")
}

func TestPoolAcquireTimesOutWhenExhausted(t *testing.T) {
	var created int64
	p := New(Config{MaxConns: 1, AcquireTimeout: 20 * time.Millisecond}, fakeFactory(&created), func(*fakeConn) error { return nil }, nil)
	defer p.Close()

	c1, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer p.Release(c1)

	_, err = p.Acquire(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PoolExhausted")
}

func TestPoolIdleTimeoutEvictsConnection(t *testing.T) {
	var created int64
	p := New(Config{MaxConns: 2, AcquireTimeout: time.Second, IdleTimeout: 5 * time.Millisecond}, fakeFactory(&created), func(*fakeConn) error { return nil }, nil)
	defer p.Close()

	c1, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(c1)

	time.Sleep(15 * time.Millisecond)

	c2, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(c2)

	assert.EqualValues(t, 2, created, "idle-expired connection must be replaced, not reused")
}

func TestPoolDiscardClosesAndFreesSlot(t *testing.T) {
	var created, closed int64
	p := New(Config{MaxConns: 1, AcquireTimeout: time.Second}, fakeFactory(&created),
		func(*fakeConn) error { atomic.AddInt64(&closed, 1); return nil }, nil)
	defer p.Close()

	c1, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Discard(c1)

	c2, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(c2)

	assert.EqualValues(t, 1, closed)
	assert.EqualValues(t, 2, created)
}
