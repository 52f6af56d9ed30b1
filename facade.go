// Package odm is a cross-database object-document mapper: one facade over
// SQLite, MySQL, Postgres and MongoDB, with a shared model registry,
// per-alias worker/pool/cache, and a single error taxonomy. Following the
// root beads.go pattern this package wraps, the logic lives under
// internal/; this file and its neighbors only re-export a curated surface.
package odm

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/crossdeck/odm/internal/alias"
	"github.com/crossdeck/odm/internal/cache"
	"github.com/crossdeck/odm/internal/eventsink"
	"github.com/crossdeck/odm/internal/idgen"
	"github.com/crossdeck/odm/internal/model"
	"github.com/crossdeck/odm/internal/odmerr"
	"github.com/crossdeck/odm/internal/value"
	"github.com/crossdeck/odm/internal/worker"
)

// EventSink is re-exported so a host application can supply its own
// logging backend instead of the default zerolog one.
type EventSink = eventsink.Sink

// CacheStats is a read-only snapshot of one alias's cache effectiveness.
type CacheStats = cache.Stats

// NewZerologSink wraps logger as an EventSink.
func NewZerologSink(logger zerolog.Logger) EventSink {
	return eventsink.NewZerologSink(logger)
}

// ODM is the facade every caller constructs once per process (or once per
// logical tenant, for a multi-tenant host). It owns the shared
// ModelRegistry and the AliasDirectory that every operation resolves
// through.
type ODM struct {
	dir      *alias.Directory
	registry *model.Registry
}

// New constructs an empty ODM with no aliases registered. sink may be nil,
// in which case lifecycle and request events are silently dropped.
func New(sink EventSink) *ODM {
	registry := model.NewRegistry()
	return &ODM{
		dir:      alias.New(registry, idgen.NewDefault(), sink),
		registry: registry,
	}
}

// Close tears down every registered alias: workers drain, pools close,
// caches close.
func (o *ODM) Close() { o.dir.Close() }

// Alias lifecycle.

func (o *ODM) AddDatabase(ctx context.Context, cfg DatabaseConfig) error {
	return o.dir.AddDatabase(ctx, cfg)
}

func (o *ODM) RemoveDatabase(alias string) error {
	return o.dir.RemoveDatabase(alias)
}

func (o *ODM) SetDefaultAlias(alias string) error {
	return o.dir.SetDefaultAlias(alias)
}

func (o *ODM) ListAliases() []string {
	return o.dir.ListAliases()
}

// Cache introspection.

func (o *ODM) CacheStats(aliasName string) (CacheStats, error) {
	h, err := o.dir.Resolve(aliasName)
	if err != nil {
		return CacheStats{}, err
	}
	if h.Cache == nil {
		return CacheStats{}, nil
	}
	return h.Cache.Stats(), nil
}

func (o *ODM) ClearCache(aliasName string) error {
	h, err := o.dir.Resolve(aliasName)
	if err != nil {
		return err
	}
	if h.Cache != nil {
		h.Cache.InvalidateAlias(h.Alias)
	}
	return nil
}

func (o *ODM) ClearAllCaches() {
	for _, a := range o.dir.ListAliases() {
		_ = o.ClearCache(a)
	}
}

// resolveForCollection finds the Handle and ModelMeta for a collection,
// resolving the alias from the model's registration (if one exists) or
// the caller-supplied alias override.
func (o *ODM) resolveForCollection(collection, aliasOverride string) (*alias.Handle, *model.ModelMeta, error) {
	meta, _ := o.registry.Lookup(collection)
	resolveAlias := aliasOverride
	if resolveAlias == "" && meta != nil {
		resolveAlias = meta.Alias
	}
	h, err := o.dir.Resolve(resolveAlias)
	if err != nil {
		return nil, nil, err
	}
	return h, meta, nil
}

// validateFields rejects a record/patch/conditions referencing a field
// collection's registered meta doesn't declare, before the request is ever
// enqueued. A collection with no registered meta (e.g. an ad hoc Mongo
// collection) skips validation entirely.
func validateFields(meta *model.ModelMeta, collection string, names ...string) error {
	if meta == nil {
		return nil
	}
	for _, n := range names {
		if !meta.HasField(n) {
			return odmerr.New(odmerr.KindUnknownField, "field is not declared on this model").
				WithCollection(collection).WithField(n)
		}
	}
	return nil
}

func fieldNamesOf(rec Record, conds []QueryCondition) []string {
	names := make([]string, 0, len(rec)+len(conds))
	for k := range rec {
		names = append(names, k)
	}
	for _, c := range conds {
		names = append(names, c.Field)
	}
	return names
}

// Create inserts record into collection, returning the assigned id. If the
// model's IdStrategy isn't AutoIncrement and record doesn't already carry
// its id field, a fresh id is minted before the request is enqueued.
func (o *ODM) Create(ctx context.Context, collection string, record Record, aliasName ...string) (Value, error) {
	h, meta, err := o.resolveForCollection(collection, firstOr(aliasName, ""))
	if err != nil {
		return Value{}, err
	}
	if err := validateFields(meta, collection, fieldNamesOf(record, nil)...); err != nil {
		return Value{}, err
	}

	record = withGeneratedID(ctx, o.dir.IdGenerator(), meta, record)

	resp, err := h.Submit(ctx, &worker.Request{
		Op:         worker.OpCreate,
		Collection: collection,
		Payload:    worker.CreatePayload{Record: record},
	})
	if err != nil {
		return Value{}, err
	}
	return resp.Value, nil
}

func withGeneratedID(ctx context.Context, gen idgen.Generator, meta *model.ModelMeta, record Record) Record {
	if meta == nil {
		return record
	}
	if existing, ok := record[meta.IdField]; ok && !existing.IsNull() {
		return record
	}
	if meta.IdStrategy.Kind == value.StrategyAutoIncrement {
		return record
	}
	id, err := gen.Generate(ctx, meta.IdStrategy)
	if err != nil || id.IsNull() {
		return record
	}
	out := make(Record, len(record)+1)
	for k, v := range record {
		out[k] = v
	}
	out[meta.IdField] = id
	return out
}

// FindByID looks up collection's record by id. The second return reports
// whether a record was found, matching the adapter-level Option<Record>
// shape.
func (o *ODM) FindByID(ctx context.Context, collection string, id Value, aliasName ...string) (Record, bool, error) {
	return o.findByID(ctx, collection, id, false, firstOr(aliasName, ""))
}

// FindByIDWithCacheControl is FindByID with the cache bypass flag exposed
// directly, the untyped-Facade equivalent of find_with_cache_control.
func (o *ODM) FindByIDWithCacheControl(ctx context.Context, collection string, id Value, bypassCache bool, aliasName ...string) (Record, bool, error) {
	return o.findByID(ctx, collection, id, bypassCache, firstOr(aliasName, ""))
}

func (o *ODM) findByID(ctx context.Context, collection string, id Value, bypassCache bool, aliasName string) (Record, bool, error) {
	h, _, err := o.resolveForCollection(collection, aliasName)
	if err != nil {
		return nil, false, err
	}
	resp, err := h.Submit(ctx, &worker.Request{
		Op:          worker.OpFindByID,
		Collection:  collection,
		BypassCache: bypassCache,
		Payload:     worker.FindByIDPayload{ID: id},
	})
	if err != nil {
		return nil, false, err
	}
	if len(resp.Records) == 0 {
		return nil, false, nil
	}
	return resp.Records[0], true, nil
}

// Find returns every record in collection matching conditions, ordered,
// paginated and projected per opts.
func (o *ODM) Find(ctx context.Context, collection string, conditions []QueryCondition, opts FindOptions, aliasName ...string) ([]Record, error) {
	h, meta, err := o.resolveForCollection(collection, firstOr(aliasName, ""))
	if err != nil {
		return nil, err
	}
	if err := validateFields(meta, collection, fieldNamesOf(nil, conditions)...); err != nil {
		return nil, err
	}
	resp, err := h.Submit(ctx, &worker.Request{
		Op:         worker.OpFind,
		Collection: collection,
		Payload:    worker.FindPayload{Conditions: conditions, Opts: opts},
	})
	if err != nil {
		return nil, err
	}
	return resp.Records, nil
}

// FindWithCacheControl is Find with the cache bypass flag exposed
// directly, the untyped-Facade equivalent of find_with_cache_control.
func (o *ODM) FindWithCacheControl(ctx context.Context, collection string, conditions []QueryCondition, opts FindOptions, bypassCache bool, aliasName ...string) ([]Record, error) {
	h, meta, err := o.resolveForCollection(collection, firstOr(aliasName, ""))
	if err != nil {
		return nil, err
	}
	if err := validateFields(meta, collection, fieldNamesOf(nil, conditions)...); err != nil {
		return nil, err
	}
	resp, err := h.Submit(ctx, &worker.Request{
		Op:          worker.OpFind,
		Collection:  collection,
		BypassCache: bypassCache,
		Payload:     worker.FindPayload{Conditions: conditions, Opts: opts},
	})
	if err != nil {
		return nil, err
	}
	return resp.Records, nil
}

// Update applies patch to every record in collection matching conditions,
// returning the matched-or-modified count.
func (o *ODM) Update(ctx context.Context, collection string, conditions []QueryCondition, patch Record, aliasName ...string) (int64, error) {
	h, meta, err := o.resolveForCollection(collection, firstOr(aliasName, ""))
	if err != nil {
		return 0, err
	}
	if err := validateFields(meta, collection, fieldNamesOf(patch, conditions)...); err != nil {
		return 0, err
	}
	resp, err := h.Submit(ctx, &worker.Request{
		Op:         worker.OpUpdate,
		Collection: collection,
		Payload:    worker.UpdatePayload{Conditions: conditions, Patch: patch},
	})
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// UpdateByID applies patch to collection's record with the given id,
// reporting whether a record was found and updated.
func (o *ODM) UpdateByID(ctx context.Context, collection string, id Value, patch Record, aliasName ...string) (bool, error) {
	h, meta, err := o.resolveForCollection(collection, firstOr(aliasName, ""))
	if err != nil {
		return false, err
	}
	if err := validateFields(meta, collection, fieldNamesOf(patch, nil)...); err != nil {
		return false, err
	}
	resp, err := h.Submit(ctx, &worker.Request{
		Op:         worker.OpUpdateByID,
		Collection: collection,
		Payload:    worker.UpdateByIDPayload{ID: id, Patch: patch},
	})
	if err != nil {
		return false, err
	}
	return resp.Count > 0, nil
}

// Delete removes every record in collection matching conditions, returning
// the number deleted.
func (o *ODM) Delete(ctx context.Context, collection string, conditions []QueryCondition, aliasName ...string) (int64, error) {
	h, meta, err := o.resolveForCollection(collection, firstOr(aliasName, ""))
	if err != nil {
		return 0, err
	}
	if err := validateFields(meta, collection, fieldNamesOf(nil, conditions)...); err != nil {
		return 0, err
	}
	resp, err := h.Submit(ctx, &worker.Request{
		Op:         worker.OpDelete,
		Collection: collection,
		Payload:    worker.ConditionsPayload{Conditions: conditions},
	})
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// DeleteByID removes collection's record with the given id, reporting
// whether one was found.
func (o *ODM) DeleteByID(ctx context.Context, collection string, id Value, aliasName ...string) (bool, error) {
	h, _, err := o.resolveForCollection(collection, firstOr(aliasName, ""))
	if err != nil {
		return false, err
	}
	resp, err := h.Submit(ctx, &worker.Request{
		Op:         worker.OpDeleteByID,
		Collection: collection,
		Payload:    worker.DeleteByIDPayload{ID: id},
	})
	if err != nil {
		return false, err
	}
	return resp.Count > 0, nil
}

// Count reports how many records in collection match conditions.
func (o *ODM) Count(ctx context.Context, collection string, conditions []QueryCondition, aliasName ...string) (int64, error) {
	h, meta, err := o.resolveForCollection(collection, firstOr(aliasName, ""))
	if err != nil {
		return 0, err
	}
	if err := validateFields(meta, collection, fieldNamesOf(nil, conditions)...); err != nil {
		return 0, err
	}
	resp, err := h.Submit(ctx, &worker.Request{
		Op:         worker.OpCount,
		Collection: collection,
		Payload:    worker.ConditionsPayload{Conditions: conditions},
	})
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// Exists reports whether any record in collection matches conditions.
func (o *ODM) Exists(ctx context.Context, collection string, conditions []QueryCondition, aliasName ...string) (bool, error) {
	h, meta, err := o.resolveForCollection(collection, firstOr(aliasName, ""))
	if err != nil {
		return false, err
	}
	if err := validateFields(meta, collection, fieldNamesOf(nil, conditions)...); err != nil {
		return false, err
	}
	resp, err := h.Submit(ctx, &worker.Request{
		Op:         worker.OpExists,
		Collection: collection,
		Payload:    worker.ConditionsPayload{Conditions: conditions},
	})
	if err != nil {
		return false, err
	}
	return resp.Count > 0, nil
}

func firstOr(vals []string, fallback string) string {
	if len(vals) > 0 {
		return vals[0]
	}
	return fallback
}
