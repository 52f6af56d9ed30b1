// Package pool implements a per-alias connection pool: bounded
// concurrency, idle/lifetime eviction, a background keepalive probe, and
// backoff-retried connection creation. The pool is never exposed outside
// the core — internal/alias wires one pool per alias and only the
// alias's internal/worker.Worker ever calls Acquire/Release.
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/crossdeck/odm/internal/odmerr"
)

// Config holds the pool's tunable parameters. Every duration field is a
// time.Duration and carries its own unit.
type Config struct {
	MinConns           int
	MaxConns           int
	AcquireTimeout     time.Duration
	IdleTimeout        time.Duration
	MaxLifetime        time.Duration
	MaxRetries         int
	RetryInterval      time.Duration
	KeepaliveInterval  time.Duration
	HealthCheckTimeout time.Duration
}

// Factory creates a new backend connection of type C.
type Factory[C any] func(ctx context.Context) (C, error)

// Closer closes a connection of type C.
type Closer[C any] func(c C) error

// Pinger issues a cheap liveness probe against a connection, e.g. SELECT 1
// or the backend's equivalent.
type Pinger[C any] func(ctx context.Context, c C) error

type entry[C any] struct {
	conn      C
	createdAt time.Time
	lastUsed  time.Time
}

// Pool is a generic, per-alias connection pool. C is whatever connection
// handle a backend adapter uses (a *sql.DB, a *mongo.Client, ...).
type Pool[C any] struct {
	cfg     Config
	factory Factory[C]
	closer  Closer[C]
	pinger  Pinger[C]

	mu    sync.Mutex
	idle  []*entry[C]
	open  int
	slots chan struct{}

	closeOnce sync.Once
	stop      chan struct{}
	wg        sync.WaitGroup
}

// New creates a pool and starts its background keepalive/eviction loop. It
// does not eagerly open MinConns connections; the first Acquire calls will
// create them on demand up to MaxConns.
func New[C any](cfg Config, factory Factory[C], closer Closer[C], pinger Pinger[C]) *Pool[C] {
	p := &Pool[C]{
		cfg:     cfg,
		factory: factory,
		closer:  closer,
		pinger:  pinger,
		slots:   make(chan struct{}, cfg.MaxConns),
		stop:    make(chan struct{}),
	}
	for i := 0; i < cfg.MaxConns; i++ {
		p.slots <- struct{}{}
	}
	if cfg.KeepaliveInterval > 0 {
		p.wg.Add(1)
		go p.keepaliveLoop()
	}
	return p
}

// Conn is a leased connection; callers must call Release exactly once.
type Conn[C any] struct {
	pool *Pool[C]
	ent  *entry[C]
}

func (c *Conn[C]) Value() C { return c.ent.conn }

// Acquire waits up to Config.AcquireTimeout for a connection, reusing an
// idle one that hasn't exceeded MaxLifetime/IdleTimeout or creating a fresh
// one (retried up to MaxRetries with RetryInterval backoff).
func (p *Pool[C]) Acquire(ctx context.Context) (*Conn[C], error) {
	acquireCtx := ctx
	var cancel context.CancelFunc
	if p.cfg.AcquireTimeout > 0 {
		acquireCtx, cancel = context.WithTimeout(ctx, p.cfg.AcquireTimeout)
		defer cancel()
	}

	select {
	case <-p.slots:
	case <-acquireCtx.Done():
		return nil, odmerr.New(odmerr.KindPoolExhausted, "timed out waiting for a free connection slot")
	}

	ent := p.takeIdle()
	if ent != nil {
		return &Conn[C]{pool: p, ent: ent}, nil
	}

	conn, err := p.createWithRetry(ctx)
	if err != nil {
		p.slots <- struct{}{}
		return nil, err
	}

	p.mu.Lock()
	p.open++
	p.mu.Unlock()

	return &Conn[C]{pool: p, ent: &entry[C]{conn: conn, createdAt: time.Now(), lastUsed: time.Now()}}, nil
}

// Release returns a connection to the idle set for reuse, or closes it if
// it has already outlived MaxLifetime.
func (p *Pool[C]) Release(c *Conn[C]) {
	if c == nil {
		return
	}
	expired := p.cfg.MaxLifetime > 0 && time.Since(c.ent.createdAt) > p.cfg.MaxLifetime
	if expired {
		p.discard(c.ent)
		return
	}
	c.ent.lastUsed = time.Now()
	p.mu.Lock()
	p.idle = append(p.idle, c.ent)
	p.mu.Unlock()
	p.slots <- struct{}{}
}

// Discard closes a connection instead of returning it to the idle set, used
// when the caller observed a transport error on it.
func (p *Pool[C]) Discard(c *Conn[C]) {
	if c == nil {
		return
	}
	p.discard(c.ent)
}

func (p *Pool[C]) discard(ent *entry[C]) {
	if p.closer != nil {
		_ = p.closer(ent.conn)
	}
	p.mu.Lock()
	p.open--
	p.mu.Unlock()
	p.slots <- struct{}{}
}

func (p *Pool[C]) takeIdle() *entry[C] {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.idle) > 0 {
		ent := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]

		if p.cfg.MaxLifetime > 0 && time.Since(ent.createdAt) > p.cfg.MaxLifetime {
			p.open--
			if p.closer != nil {
				_ = p.closer(ent.conn)
			}
			continue
		}
		if p.cfg.IdleTimeout > 0 && time.Since(ent.lastUsed) > p.cfg.IdleTimeout {
			p.open--
			if p.closer != nil {
				_ = p.closer(ent.conn)
			}
			continue
		}
		return ent
	}
	return nil
}

func (p *Pool[C]) createWithRetry(ctx context.Context) (C, error) {
	var zero C
	var conn C

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.cfg.RetryInterval
	bo.MaxInterval = p.cfg.RetryInterval * 10
	retrier := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(maxInt(p.cfg.MaxRetries, 0))), ctx)

	attempt := func() error {
		c, err := p.factory(ctx)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}

	if err := backoff.Retry(attempt, retrier); err != nil {
		return zero, odmerr.Wrap(odmerr.KindTransportError, err, "failed to create connection after retries").WithRetryable(true)
	}
	return conn, nil
}

func (p *Pool[C]) keepaliveLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.KeepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.probeIdle()
		}
	}
}

func (p *Pool[C]) probeIdle() {
	if p.pinger == nil {
		return
	}
	p.mu.Lock()
	candidates := make([]*entry[C], len(p.idle))
	copy(candidates, p.idle)
	p.mu.Unlock()

	for _, ent := range candidates {
		ctx := context.Background()
		var cancel context.CancelFunc
		if p.cfg.HealthCheckTimeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, p.cfg.HealthCheckTimeout)
		}
		err := p.pinger(ctx, ent.conn)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			p.mu.Lock()
			for i, e := range p.idle {
				if e == ent {
					p.idle = append(p.idle[:i], p.idle[i+1:]...)
					break
				}
			}
			p.open--
			p.mu.Unlock()
			if p.closer != nil {
				_ = p.closer(ent.conn)
			}
			p.slots <- struct{}{}
		}
	}
}

// Close stops the keepalive loop and closes every idle connection. It does
// not wait for leased connections in flight; callers must drain the worker
// first so that ordering is guaranteed.
func (p *Pool[C]) Close() {
	p.closeOnce.Do(func() {
		close(p.stop)
	})
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ent := range p.idle {
		if p.closer != nil {
			_ = p.closer(ent.conn)
		}
	}
	p.idle = nil
}

// OpenCount reports the number of connections currently open (idle + leased).
func (p *Pool[C]) OpenCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
