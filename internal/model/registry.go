package model

import (
	"context"
	"sync"

	"github.com/crossdeck/odm/internal/odmerr"
)

// TableEnsurer is implemented by a backend adapter: given a freshly
// registered ModelMeta, make its table/collection and declared indexes
// exist. Ensuring must be idempotent (CREATE TABLE IF NOT EXISTS or the
// backend's equivalent) since Register calls it at most once per collection
// but a process may register the same model from multiple goroutines
// racing on first use.
type TableEnsurer interface {
	EnsureTable(ctx context.Context, meta *ModelMeta) error
}

// Registry is the process-wide, append-mostly mapping from collection name
// to ModelMeta. It is safe for concurrent use.
//
// Table ensurance is guarded by a per-collection lock rather than the
// registry-wide mutex, so that a slow EnsureTable call against one
// collection's backend never blocks lookups or registrations of unrelated
// collections — a lock scoped to a resource key, an in-process striped
// lock since table ensurance here never crosses process boundaries.
type Registry struct {
	mu    sync.RWMutex
	metas map[string]*ModelMeta

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

func NewRegistry() *Registry {
	return &Registry{
		metas: make(map[string]*ModelMeta),
		locks: make(map[string]*sync.Mutex),
	}
}

// Register is idempotent by collection name: re-registering with an
// identical meta succeeds silently both times; re-registering with a
// different schema fails with ModelConflict. On first successful
// registration, ensurer.EnsureTable is invoked to create the table/indexes.
func (r *Registry) Register(ctx context.Context, meta *ModelMeta, ensurer TableEnsurer) error {
	collectionLock := r.lockFor(meta.Collection)
	collectionLock.Lock()
	defer collectionLock.Unlock()

	r.mu.RLock()
	existing, ok := r.metas[meta.Collection]
	r.mu.RUnlock()

	if ok {
		if !existing.sameSchema(meta) {
			return odmerr.New(odmerr.KindModelConflict,
				"model re-registered with a conflicting schema").WithCollection(meta.Collection)
		}
		return nil
	}

	if ensurer != nil {
		if err := ensurer.EnsureTable(ctx, meta); err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.metas[meta.Collection] = meta
	r.mu.Unlock()
	return nil
}

// Lookup returns the ModelMeta registered for collection, used by the
// Facade to validate fields before enqueuing and to instruct adapters on
// decoding.
func (r *Registry) Lookup(collection string) (*ModelMeta, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.metas[collection]
	return m, ok
}

// MustLookup is the Lookup variant that returns a SchemaError instead of a
// boolean, for call sites where an unregistered collection is itself the
// failure worth reporting.
func (r *Registry) MustLookup(collection string) (*ModelMeta, error) {
	m, ok := r.Lookup(collection)
	if !ok {
		return nil, odmerr.New(odmerr.KindSchemaError, "collection is not registered").WithCollection(collection)
	}
	return m, nil
}

func (r *Registry) lockFor(collection string) *sync.Mutex {
	r.lockMu.Lock()
	defer r.lockMu.Unlock()
	l, ok := r.locks[collection]
	if !ok {
		l = &sync.Mutex{}
		r.locks[collection] = l
	}
	return l
}
