package alias

import (
	"context"
	"encoding/json"

	"github.com/crossdeck/odm/internal/backend"
	"github.com/crossdeck/odm/internal/cache"
	"github.com/crossdeck/odm/internal/eventsink"
	"github.com/crossdeck/odm/internal/odmerr"
	"github.com/crossdeck/odm/internal/worker"
)

// buildHandler returns the worker.Handler for h: acquire the pooled
// adapter, dispatch on req.Op, cache reads and invalidate on writes,
// release the adapter. Every request holds the pool's single slot for its
// own duration, which is fine since the alias's worker already serializes
// all requests onto one goroutine.
func (d *Directory) buildHandler(h *Handle) worker.Handler {
	return func(ctx context.Context, req *worker.Request) worker.Response {
		conn, err := h.pool.Acquire(ctx)
		if err != nil {
			return worker.Response{Err: err}
		}
		adapter := conn.Value()

		resp := dispatch(ctx, adapter, h.Cache, h.Alias, req)

		if resp.Err != nil && isTransportFailure(resp.Err) {
			h.pool.Discard(conn)
		} else {
			h.pool.Release(conn)
		}

		ev := eventsink.Debug(d.sink)
		if resp.Err != nil {
			ev = eventsink.Warn(d.sink)
		}
		ev.Alias(h.Alias).Collection(req.Collection).Field("op", opName(req.Op)).Msg("request dispatched")

		return resp
	}
}

func isTransportFailure(err error) bool {
	var odmErr *odmerr.Error
	if e, ok := err.(*odmerr.Error); ok {
		odmErr = e
	}
	return odmErr != nil && odmErr.Kind == odmerr.KindTransportError
}

func dispatch(ctx context.Context, a backend.Adapter, c *cache.Cache, alias string, req *worker.Request) worker.Response {
	switch req.Op {
	case worker.OpCreate:
		return handleCreate(ctx, a, c, alias, req)
	case worker.OpFindByID:
		return handleFindByID(ctx, a, c, alias, req)
	case worker.OpFind:
		return handleFind(ctx, a, c, alias, req)
	case worker.OpUpdate:
		return handleUpdate(ctx, a, c, alias, req)
	case worker.OpUpdateByID:
		return handleUpdateByID(ctx, a, c, alias, req)
	case worker.OpDelete:
		return handleDelete(ctx, a, c, alias, req)
	case worker.OpDeleteByID:
		return handleDeleteByID(ctx, a, c, alias, req)
	case worker.OpCount:
		return handleCount(ctx, a, c, alias, req)
	case worker.OpExists:
		return handleExists(ctx, a, c, alias, req)
	case worker.OpCreateTable:
		return handleCreateTable(ctx, a, req)
	case worker.OpCreateIndex:
		return handleCreateIndex(ctx, a, req)
	case worker.OpTableExists:
		return handleTableExists(ctx, a, req)
	case worker.OpDropTable:
		return handleDropTable(ctx, a, c, alias, req)
	default:
		return worker.Response{Err: odmerr.Newf(odmerr.KindInternal, "unhandled worker op %d", req.Op).WithAlias(alias)}
	}
}

func invalidate(c *cache.Cache, alias, collection string) {
	if c != nil {
		c.Invalidate(alias, collection)
	}
}

func handleCreate(ctx context.Context, a backend.Adapter, c *cache.Cache, alias string, req *worker.Request) worker.Response {
	p, ok := req.Payload.(worker.CreatePayload)
	if !ok {
		return badPayload(alias)
	}
	id, err := a.Create(ctx, req.Collection, p.Record)
	if err != nil {
		return worker.Response{Err: err}
	}
	invalidate(c, alias, req.Collection)
	return worker.Response{OK: true, Value: id}
}

func handleFindByID(ctx context.Context, a backend.Adapter, c *cache.Cache, alias string, req *worker.Request) worker.Response {
	p, ok := req.Payload.(worker.FindByIDPayload)
	if !ok {
		return badPayload(alias)
	}

	var cacheKey string
	if c != nil && !req.BypassCache {
		cacheKey = cache.Fingerprint(alias, req.Collection, "find_by_id", map[string]any{"id": p.ID.String()})
		if payload, hit := c.Get(cacheKey); hit {
			rec, ok := decodeRecord(payload)
			if ok {
				return worker.Response{OK: true, Records: []backend.Record{rec}}
			}
		}
	}

	rec, found, err := a.FindByID(ctx, req.Collection, p.ID)
	if err != nil {
		return worker.Response{Err: err}
	}
	if !found {
		return worker.Response{OK: true}
	}
	if cacheKey != "" {
		if payload, err := encodeRecord(rec); err == nil {
			c.Set(alias, req.Collection, cacheKey, payload, 0)
		}
	}
	return worker.Response{OK: true, Records: []backend.Record{rec}}
}

func handleFind(ctx context.Context, a backend.Adapter, c *cache.Cache, alias string, req *worker.Request) worker.Response {
	p, ok := req.Payload.(worker.FindPayload)
	if !ok {
		return badPayload(alias)
	}

	var cacheKey string
	if c != nil && !req.BypassCache {
		cacheKey = cache.Fingerprint(alias, req.Collection, "find", findCacheArgs(p))
		if payload, hit := c.Get(cacheKey); hit {
			if recs, ok := decodeRecords(payload); ok {
				return worker.Response{OK: true, Records: recs}
			}
		}
	}

	recs, err := a.Find(ctx, req.Collection, p.Conditions, p.Opts)
	if err != nil {
		return worker.Response{Err: err}
	}
	if cacheKey != "" {
		if payload, err := encodeRecords(recs); err == nil {
			c.Set(alias, req.Collection, cacheKey, payload, 0)
		}
	}
	return worker.Response{OK: true, Records: recs}
}

func handleUpdate(ctx context.Context, a backend.Adapter, c *cache.Cache, alias string, req *worker.Request) worker.Response {
	p, ok := req.Payload.(worker.UpdatePayload)
	if !ok {
		return badPayload(alias)
	}
	n, err := a.Update(ctx, req.Collection, p.Conditions, p.Patch)
	if err != nil {
		return worker.Response{Err: err}
	}
	invalidate(c, alias, req.Collection)
	return worker.Response{OK: true, Count: n}
}

func handleUpdateByID(ctx context.Context, a backend.Adapter, c *cache.Cache, alias string, req *worker.Request) worker.Response {
	p, ok := req.Payload.(worker.UpdateByIDPayload)
	if !ok {
		return badPayload(alias)
	}
	ok2, err := a.UpdateByID(ctx, req.Collection, p.ID, p.Patch)
	if err != nil {
		return worker.Response{Err: err}
	}
	invalidate(c, alias, req.Collection)
	count := int64(0)
	if ok2 {
		count = 1
	}
	return worker.Response{OK: true, Count: count}
}

func handleDelete(ctx context.Context, a backend.Adapter, c *cache.Cache, alias string, req *worker.Request) worker.Response {
	p, ok := req.Payload.(worker.ConditionsPayload)
	if !ok {
		return badPayload(alias)
	}
	n, err := a.Delete(ctx, req.Collection, p.Conditions)
	if err != nil {
		return worker.Response{Err: err}
	}
	invalidate(c, alias, req.Collection)
	return worker.Response{OK: true, Count: n}
}

func handleDeleteByID(ctx context.Context, a backend.Adapter, c *cache.Cache, alias string, req *worker.Request) worker.Response {
	p, ok := req.Payload.(worker.DeleteByIDPayload)
	if !ok {
		return badPayload(alias)
	}
	found, err := a.DeleteByID(ctx, req.Collection, p.ID)
	if err != nil {
		return worker.Response{Err: err}
	}
	invalidate(c, alias, req.Collection)
	count := int64(0)
	if found {
		count = 1
	}
	return worker.Response{OK: true, Count: count}
}

func handleCount(ctx context.Context, a backend.Adapter, c *cache.Cache, alias string, req *worker.Request) worker.Response {
	p, ok := req.Payload.(worker.ConditionsPayload)
	if !ok {
		return badPayload(alias)
	}

	var cacheKey string
	if c != nil && !req.BypassCache {
		cacheKey = cache.Fingerprint(alias, req.Collection, "count", conditionsCacheArgs(p.Conditions))
		if payload, hit := c.Get(cacheKey); hit {
			if n, ok := decodeCount(payload); ok {
				return worker.Response{OK: true, Count: n}
			}
		}
	}

	n, err := a.Count(ctx, req.Collection, p.Conditions)
	if err != nil {
		return worker.Response{Err: err}
	}
	if cacheKey != "" {
		if payload, err := json.Marshal(n); err == nil {
			c.Set(alias, req.Collection, cacheKey, payload, 0)
		}
	}
	return worker.Response{OK: true, Count: n}
}

func handleExists(ctx context.Context, a backend.Adapter, c *cache.Cache, alias string, req *worker.Request) worker.Response {
	p, ok := req.Payload.(worker.ConditionsPayload)
	if !ok {
		return badPayload(alias)
	}

	var cacheKey string
	if c != nil && !req.BypassCache {
		cacheKey = cache.Fingerprint(alias, req.Collection, "exists", conditionsCacheArgs(p.Conditions))
		if payload, hit := c.Get(cacheKey); hit {
			if n, ok := decodeCount(payload); ok {
				return worker.Response{OK: true, Count: n}
			}
		}
	}

	found, err := a.Exists(ctx, req.Collection, p.Conditions)
	if err != nil {
		return worker.Response{Err: err}
	}
	count := int64(0)
	if found {
		count = 1
	}
	if cacheKey != "" {
		if payload, err := json.Marshal(count); err == nil {
			c.Set(alias, req.Collection, cacheKey, payload, 0)
		}
	}
	return worker.Response{OK: true, Count: count}
}

func handleCreateTable(ctx context.Context, a backend.Adapter, req *worker.Request) worker.Response {
	p, ok := req.Payload.(worker.CreateTablePayload)
	if !ok {
		return worker.Response{Err: odmerr.New(odmerr.KindInternal, "create_table payload missing model meta")}
	}
	if err := a.CreateTable(ctx, req.Collection, p.Meta); err != nil {
		return worker.Response{Err: err}
	}
	return worker.Response{OK: true}
}

func handleCreateIndex(ctx context.Context, a backend.Adapter, req *worker.Request) worker.Response {
	p, ok := req.Payload.(worker.CreateIndexPayload)
	if !ok {
		return worker.Response{Err: odmerr.New(odmerr.KindInternal, "create_index payload missing index definition")}
	}
	if err := a.CreateIndex(ctx, req.Collection, p.Name, p.Fields, p.Unique); err != nil {
		return worker.Response{Err: err}
	}
	return worker.Response{OK: true}
}

func handleTableExists(ctx context.Context, a backend.Adapter, req *worker.Request) worker.Response {
	found, err := a.TableExists(ctx, req.Collection)
	if err != nil {
		return worker.Response{Err: err}
	}
	count := int64(0)
	if found {
		count = 1
	}
	return worker.Response{OK: true, Count: count}
}

func handleDropTable(ctx context.Context, a backend.Adapter, c *cache.Cache, alias string, req *worker.Request) worker.Response {
	if err := a.DropTable(ctx, req.Collection); err != nil {
		return worker.Response{Err: err}
	}
	invalidate(c, alias, req.Collection)
	return worker.Response{OK: true}
}

func badPayload(alias string) worker.Response {
	return worker.Response{Err: odmerr.New(odmerr.KindInternal, "request payload did not match its op").WithAlias(alias)}
}

func conditionsCacheArgs(conditions []backend.QueryCondition) map[string]any {
	conds := make([]map[string]any, len(conditions))
	for i, c := range conditions {
		conds[i] = map[string]any{
			"field": c.Field,
			"op":    int(c.Operator),
			"value": c.Value.String(),
			"ci":    c.CaseInsensitive,
		}
	}
	return map[string]any{"conditions": conds}
}

func findCacheArgs(p worker.FindPayload) map[string]any {
	conds := make([]map[string]any, len(p.Conditions))
	for i, c := range p.Conditions {
		conds[i] = map[string]any{
			"field": c.Field,
			"op":    int(c.Operator),
			"value": c.Value.String(),
			"ci":    c.CaseInsensitive,
		}
	}
	sorts := make([]map[string]any, len(p.Opts.Sort))
	for i, s := range p.Opts.Sort {
		sorts[i] = map[string]any{"field": s.Field, "dir": int(s.Direction)}
	}
	return map[string]any{
		"conditions": conds,
		"sort":       sorts,
		"skip":       p.Opts.Skip,
		"limit":      p.Opts.Limit,
		"projection": p.Opts.Projection,
	}
}

// encodeRecord/decodeRecord spill a cached Find/FindByID result to bytes
// using Value's own MarshalJSON, which round-trips the exact Kind rather
// than a lossy string rendering.
func encodeRecord(rec backend.Record) ([]byte, error) {
	return json.Marshal(rec)
}

func decodeRecord(payload []byte) (backend.Record, bool) {
	var rec backend.Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, false
	}
	return rec, true
}

func encodeRecords(recs []backend.Record) ([]byte, error) {
	return json.Marshal(recs)
}

func decodeRecords(payload []byte) ([]backend.Record, bool) {
	var recs []backend.Record
	if err := json.Unmarshal(payload, &recs); err != nil {
		return nil, false
	}
	return recs, true
}

func decodeCount(payload []byte) (int64, bool) {
	var n int64
	if err := json.Unmarshal(payload, &n); err != nil {
		return 0, false
	}
	return n, true
}

func opName(op worker.Op) string {
	switch op {
	case worker.OpCreate:
		return "create"
	case worker.OpFindByID:
		return "find_by_id"
	case worker.OpFind:
		return "find"
	case worker.OpUpdate:
		return "update"
	case worker.OpUpdateByID:
		return "update_by_id"
	case worker.OpDelete:
		return "delete"
	case worker.OpDeleteByID:
		return "delete_by_id"
	case worker.OpCount:
		return "count"
	case worker.OpExists:
		return "exists"
	case worker.OpCreateTable:
		return "create_table"
	case worker.OpCreateIndex:
		return "create_index"
	case worker.OpTableExists:
		return "table_exists"
	case worker.OpDropTable:
		return "drop_table"
	default:
		return "unknown"
	}
}
