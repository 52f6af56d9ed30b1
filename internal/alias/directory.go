// Package alias owns the process-wide AliasDirectory: the mapping from an
// alias name to a live database connection, its per-alias worker, pool and
// cache. Every Facade operation resolves an alias through the directory
// before it ever touches a backend.Adapter.
package alias

import (
	"context"
	"sync"

	"github.com/crossdeck/odm/internal/backend"
	"github.com/crossdeck/odm/internal/backend/factory"
	"github.com/crossdeck/odm/internal/cache"
	"github.com/crossdeck/odm/internal/config"
	"github.com/crossdeck/odm/internal/dbconfig"
	"github.com/crossdeck/odm/internal/eventsink"
	"github.com/crossdeck/odm/internal/idgen"
	"github.com/crossdeck/odm/internal/model"
	"github.com/crossdeck/odm/internal/odmerr"
	"github.com/crossdeck/odm/internal/pool"
	"github.com/crossdeck/odm/internal/value"
	"github.com/crossdeck/odm/internal/worker"
)

// workerQueueCapacity bounds how many requests may sit enqueued on one
// alias's worker before Enqueue fails fast with QueueFull.
const workerQueueCapacity = 256

// Handle is everything the directory owns for one connected alias.
type Handle struct {
	Alias      string
	Cache      *cache.Cache
	IdStrategy value.IdStrategy

	pool   *pool.Pool[backend.Adapter]
	worker *worker.Worker
}

// Submit forwards req to the alias's worker, the only path a Facade
// operation uses to reach the backend.
func (h *Handle) Submit(ctx context.Context, req *worker.Request) (worker.Response, error) {
	return h.worker.Submit(ctx, req)
}

// Directory is the process-wide, concurrency-safe registry of connected
// aliases. There is exactly one Directory per ODM facade instance.
type Directory struct {
	registry *model.Registry
	idgen    idgen.Generator
	sink     eventsink.Sink
	defaults *config.Defaults

	mu      sync.RWMutex
	handles map[string]*Handle
	def     string
}

// New creates an empty Directory. sink may be nil, in which case every
// lifecycle event is silently dropped. config.Load() is resolved once here
// (built-in defaults, then an optional odm.yaml, then ODM_-prefixed env
// vars) and its results back-fill any alias whose Pool/Cache config is left
// zero-valued in AddDatabase.
func New(registry *model.Registry, generator idgen.Generator, sink eventsink.Sink) *Directory {
	if sink == nil {
		sink = eventsink.NoopSink{}
	}
	return &Directory{
		registry: registry,
		idgen:    generator,
		sink:     sink,
		defaults: config.Load(),
		handles:  make(map[string]*Handle),
	}
}

// AddDatabase connects cfg.Connection, wires its pool/worker/cache, and
// registers it under cfg.Alias. The first alias ever added becomes the
// default; a later AddDatabase never changes the default implicitly. Adding
// an alias that already exists fails with AliasExists.
func (d *Directory) AddDatabase(ctx context.Context, cfg dbconfig.DatabaseConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.handles[cfg.Alias]; exists {
		return odmerr.New(odmerr.KindAliasExists, "alias is already registered").WithAlias(cfg.Alias)
	}

	poolCfg := cfg.Pool
	if poolCfg.MaxConns == 0 {
		poolCfg = d.defaults.PoolConfig()
	}
	// Every concrete Adapter already owns its own internal connection
	// pool (database/sql for the three SQL backends, a single shared
	// *mongo.Client for Mongo); the outer pool here wraps the whole
	// adapter handle as the unit being pooled, so MaxConns is pinned to
	// 1 regardless of what the caller configured for the inner pool.
	outerCfg := poolCfg
	outerCfg.MinConns = 1
	outerCfg.MaxConns = 1

	factoryFn := func(ctx context.Context) (backend.Adapter, error) {
		return factory.Open(ctx, cfg)
	}
	closerFn := func(a backend.Adapter) error { return a.Close() }
	pingerFn := func(ctx context.Context, a backend.Adapter) error {
		_, err := a.ServerVersion(ctx)
		return err
	}

	p := pool.New(outerCfg, factoryFn, closerFn, pingerFn)

	// Fail fast: prove the alias actually connects before it is visible
	// to callers, rather than deferring the failure to the first query.
	probe, err := p.Acquire(ctx)
	if err != nil {
		p.Close()
		return err
	}
	p.Release(probe)

	var c *cache.Cache
	if cfg.Cache != nil {
		cacheCfg := *cfg.Cache
		if cacheCfg.L2Enabled && cacheCfg.CacheDir == "" {
			cacheCfg.CacheDir = d.defaults.CacheDir
		}
		if cacheCfg.CheckInterval == 0 {
			cacheCfg.CheckInterval = d.defaults.CacheSweepInterval
		}
		c, err = cache.New(cacheCfg)
		if err != nil {
			p.Close()
			return odmerr.Wrap(odmerr.KindConfigError, err, "failed to construct cache").WithAlias(cfg.Alias)
		}
	}

	h := &Handle{
		Alias:      cfg.Alias,
		Cache:      c,
		IdStrategy: cfg.IdStrategy,
		pool:       p,
	}
	h.worker = worker.New(cfg.Alias, workerQueueCapacity, d.buildHandler(h))

	d.handles[cfg.Alias] = h
	if d.def == "" {
		d.def = cfg.Alias
	}

	eventsink.Info(d.sink).Alias(cfg.Alias).Field("backend", cfg.Connection.Kind().String()).Msg("alias connected")
	return nil
}

// RemoveDatabase drains and closes alias's worker, pool and cache, and
// removes it from the directory. Removing the current default alias leaves
// the directory without one; a subsequent call resolving the empty alias
// fails with AliasNotFound until SetDefaultAlias picks a new one.
func (d *Directory) RemoveDatabase(alias string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	h, ok := d.handles[alias]
	if !ok {
		return odmerr.New(odmerr.KindAliasNotFound, "alias is not registered").WithAlias(alias)
	}

	h.worker.Close()
	h.pool.Close()
	if h.Cache != nil {
		h.Cache.Close()
	}

	delete(d.handles, alias)
	if d.def == alias {
		d.def = ""
	}

	eventsink.Info(d.sink).Alias(alias).Msg("alias disconnected")
	return nil
}

// SetDefaultAlias changes which alias the empty string resolves to.
func (d *Directory) SetDefaultAlias(alias string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.handles[alias]; !ok {
		return odmerr.New(odmerr.KindAliasNotFound, "alias is not registered").WithAlias(alias)
	}
	d.def = alias
	return nil
}

// ListAliases returns every registered alias name, in no particular order.
func (d *Directory) ListAliases() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.handles))
	for name := range d.handles {
		names = append(names, name)
	}
	return names
}

// Resolve returns the Handle for alias, or the current default when alias
// is empty.
func (d *Directory) Resolve(alias string) (*Handle, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	name := alias
	if name == "" {
		name = d.def
	}
	if name == "" {
		return nil, odmerr.New(odmerr.KindAliasNotFound, "no default alias has been set")
	}
	h, ok := d.handles[name]
	if !ok {
		return nil, odmerr.New(odmerr.KindAliasNotFound, "alias is not registered").WithAlias(alias)
	}
	return h, nil
}

// Registry exposes the shared ModelRegistry so the Facade can register and
// look up models.
func (d *Directory) Registry() *model.Registry { return d.registry }

// IdGenerator exposes the shared id Generator so the Facade can mint ids
// for strategies the backend does not assign itself.
func (d *Directory) IdGenerator() idgen.Generator { return d.idgen }

// Close tears down every registered alias, used on process shutdown.
func (d *Directory) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for name, h := range d.handles {
		h.worker.Close()
		h.pool.Close()
		if h.Cache != nil {
			h.Cache.Close()
		}
		delete(d.handles, name)
	}
	d.def = ""
}
