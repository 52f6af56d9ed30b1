// Package mongo implements the backend.Adapter trait against MongoDB via
// the official go.mongodb.org/mongo-driver/v2 client.
package mongo

import (
	"context"
	"strings"
	"sync"
	"time"

	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/crossdeck/odm/internal/backend"
	"github.com/crossdeck/odm/internal/model"
	"github.com/crossdeck/odm/internal/odmerr"
	"github.com/crossdeck/odm/internal/value"
)

// Adapter is the backend.Adapter implementation for MongoDB. Collections
// map to Mongo collections directly; CreateTable/CreateIndex/DropTable
// become createCollection/createIndex/drop, and TableState tracks
// existence the same way the SQL adapters do even though Mongo itself is
// schemaless.
type Adapter struct {
	client *mongodriver.Client
	db     *mongodriver.Database
	alias  string

	lock   *backend.TableLock
	states *backend.StateTracker

	mu    sync.RWMutex
	metas map[string]*model.ModelMeta
}

type Config struct {
	URI      string
	Database string
}

func Open(ctx context.Context, alias string, cfg Config) (*Adapter, error) {
	client, err := mongodriver.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, odmerr.Wrap(odmerr.KindConfigError, err, "failed to connect to mongodb").WithAlias(alias)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, odmerr.Wrap(odmerr.KindTransportError, err, "failed to ping mongodb").WithAlias(alias)
	}

	return &Adapter{
		client: client,
		db:     client.Database(cfg.Database),
		alias:  alias,
		lock:   backend.NewTableLock(),
		states: backend.NewStateTracker(),
		metas:  make(map[string]*model.ModelMeta),
	}, nil
}

func (a *Adapter) fieldType(collection, field string) value.FieldType {
	a.mu.RLock()
	defer a.mu.RUnlock()
	meta, ok := a.metas[collection]
	if !ok {
		return nil
	}
	def, ok := meta.Field(field)
	if !ok {
		return nil
	}
	return def.Type
}

func (a *Adapter) Close() error {
	return a.client.Disconnect(context.Background())
}

func (a *Adapter) ServerVersion(ctx context.Context) (string, error) {
	var result bson.M
	cmd := bson.D{{Key: "buildInfo", Value: 1}}
	if err := a.db.RunCommand(ctx, cmd).Decode(&result); err != nil {
		return "", odmerr.Wrap(odmerr.KindTransportError, err, "server_version").WithAlias(a.alias)
	}
	if v, ok := result["version"].(string); ok {
		return v, nil
	}
	return "", nil
}

func (a *Adapter) CreateTable(ctx context.Context, collection string, meta *model.ModelMeta) error {
	release := a.lock.Acquire(ctx, a.alias, collection)
	defer release()

	a.states.Set(collection, backend.StateCreating)

	if err := a.db.CreateCollection(ctx, collection); err != nil {
		if !strings.Contains(err.Error(), "already exists") && !strings.Contains(err.Error(), "NamespaceExists") {
			a.states.Set(collection, backend.StateUnknown)
			return backend.WrapDDLError("create_table", collection, err)
		}
	}

	for _, name := range meta.FieldNames() {
		def, _ := meta.Field(name)
		if def.Unique {
			if err := a.createIndexLocked(ctx, collection, name+"_unique_idx", []string{name}, true); err != nil {
				a.states.Set(collection, backend.StateUnknown)
				return err
			}
		}
	}
	for _, idx := range meta.Indexes {
		if err := a.createIndexLocked(ctx, collection, idx.Name, idx.Fields, idx.Unique); err != nil {
			a.states.Set(collection, backend.StateUnknown)
			return err
		}
	}

	a.mu.Lock()
	a.metas[collection] = meta
	a.mu.Unlock()

	a.states.Set(collection, backend.StateReady)
	return nil
}

func (a *Adapter) CreateIndex(ctx context.Context, collection, name string, fields []string, unique bool) error {
	release := a.lock.Acquire(ctx, a.alias, collection)
	defer release()
	return a.createIndexLocked(ctx, collection, name, fields, unique)
}

func (a *Adapter) createIndexLocked(ctx context.Context, collection, name string, fields []string, unique bool) error {
	keys := bson.D{}
	for _, f := range fields {
		keys = append(keys, bson.E{Key: f, Value: 1})
	}
	idxOpts := options.Index().SetName(name).SetUnique(unique)
	_, err := a.db.Collection(collection).Indexes().CreateOne(ctx, mongodriver.IndexModel{Keys: keys, Options: idxOpts})
	if err != nil {
		return odmerr.Wrap(odmerr.KindSchemaError, err, "create_index").WithCollection(collection).WithField(name)
	}
	return nil
}

func (a *Adapter) TableExists(ctx context.Context, collection string) (bool, error) {
	if a.states.IsReady(collection) {
		return true, nil
	}
	names, err := a.db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: collection}})
	if err != nil {
		return false, odmerr.Wrap(odmerr.KindTransportError, err, "table_exists").WithCollection(collection).WithRetryable(true)
	}
	if len(names) == 0 {
		return false, nil
	}
	a.states.Set(collection, backend.StateReady)
	return true, nil
}

func (a *Adapter) DropTable(ctx context.Context, collection string) error {
	release := a.lock.Acquire(ctx, a.alias, collection)
	defer release()

	if err := a.db.Collection(collection).Drop(ctx); err != nil {
		return backend.WrapDDLError("drop_table", collection, err)
	}
	a.states.Set(collection, backend.StateDropped)
	a.mu.Lock()
	delete(a.metas, collection)
	a.mu.Unlock()
	return nil
}

func (a *Adapter) ensureReady(ctx context.Context, collection string) error {
	exists, err := a.TableExists(ctx, collection)
	if err != nil {
		return err
	}
	if !exists {
		return odmerr.TableNotExist(collection)
	}
	return nil
}

// Create inserts record into collection, auto-creating the collection on
// first write if it has never been registered or created — Mongo is
// schemaless, so unlike the SQL adapters a missing collection here is not
// terminal, only an unregistered one is.
func (a *Adapter) Create(ctx context.Context, collection string, record backend.Record) (value.Value, error) {
	exists, err := a.TableExists(ctx, collection)
	if err != nil {
		return value.Value{}, err
	}
	if !exists {
		if err := a.db.CreateCollection(ctx, collection); err != nil &&
			!strings.Contains(err.Error(), "already exists") && !strings.Contains(err.Error(), "NamespaceExists") {
			return value.Value{}, backend.WrapDDLError("create_table", collection, err)
		}
		a.states.Set(collection, backend.StateReady)
	}

	a.mu.RLock()
	meta, hasMeta := a.metas[collection]
	a.mu.RUnlock()

	idField := "id"
	if hasMeta {
		idField = meta.IdField
	}

	doc := bson.M{}
	for name, v := range record {
		if v.IsNull() && name == idField {
			continue
		}
		enc, err := encodeValue(v)
		if err != nil {
			return value.Value{}, err
		}
		key := name
		if name == idField {
			key = "_id"
		}
		doc[key] = enc
	}

	res, err := a.db.Collection(collection).InsertOne(ctx, doc)
	if err != nil {
		return value.Value{}, backend.WrapWriteError("create", collection, err, isMongoDuplicateKeyError)
	}

	if idv, ok := record[idField]; ok && !idv.IsNull() {
		return idv, nil
	}
	return decodeValue(res.InsertedID, a.fieldType(collection, idField))
}

// idFieldOf returns meta's id field name, defaulting to "id" when meta is
// nil — a collection Create auto-created never backfills a.metas, so every
// other operation against it sees no registered meta at all.
func idFieldOf(meta *model.ModelMeta) string {
	if meta == nil {
		return "id"
	}
	return meta.IdField
}

func (a *Adapter) toDoc(collection string, meta *model.ModelMeta, raw bson.M) (backend.Record, error) {
	idField := idFieldOf(meta)
	rec := make(backend.Record, len(raw))
	for k, v := range raw {
		name := k
		if k == "_id" {
			name = idField
		}
		dv, err := decodeValue(v, a.fieldType(collection, name))
		if err != nil {
			return nil, err
		}
		rec[name] = dv
	}
	return rec, nil
}

func (a *Adapter) FindByID(ctx context.Context, collection string, id value.Value) (backend.Record, bool, error) {
	if err := a.ensureReady(ctx, collection); err != nil {
		return nil, false, err
	}
	a.mu.RLock()
	meta := a.metas[collection]
	a.mu.RUnlock()

	idEnc, err := encodeValue(id)
	if err != nil {
		return nil, false, err
	}

	var raw bson.M
	err = a.db.Collection(collection).FindOne(ctx, bson.M{"_id": idEnc}).Decode(&raw)
	if err == mongodriver.ErrNoDocuments {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, odmerr.Wrap(odmerr.KindTransportError, err, "find_by_id").WithCollection(collection).WithRetryable(true)
	}

	rec, err := a.toDoc(collection, meta, raw)
	return rec, true, err
}

func conditionsToFilter(collection string, meta *model.ModelMeta, conditions []backend.QueryCondition) (bson.M, error) {
	idField := idFieldOf(meta)
	filter := bson.M{}
	for _, c := range conditions {
		key := c.Field
		if c.Field == idField {
			key = "_id"
		}

		switch c.Operator {
		case backend.OpEq:
			v, err := encodeValue(c.Value)
			if err != nil {
				return nil, err
			}
			if c.CaseInsensitive {
				s, _ := c.Value.AsString()
				filter[key] = bson.M{"$regex": "^" + regexpQuoteMeta(s) + "$", "$options": "i"}
			} else {
				filter[key] = v
			}
		case backend.OpNe:
			v, err := encodeValue(c.Value)
			if err != nil {
				return nil, err
			}
			filter[key] = bson.M{"$ne": v}
		case backend.OpGt, backend.OpGte, backend.OpLt, backend.OpLte:
			v, err := encodeValue(c.Value)
			if err != nil {
				return nil, err
			}
			filter[key] = bson.M{mongoCompareOp(c.Operator): v}
		case backend.OpIn, backend.OpNotIn:
			arr, _ := c.Value.AsArray()
			vals := make(bson.A, len(arr))
			for i, e := range arr {
				v, err := encodeValue(e)
				if err != nil {
					return nil, err
				}
				vals[i] = v
			}
			op := "$in"
			if c.Operator == backend.OpNotIn {
				op = "$nin"
			}
			filter[key] = bson.M{op: vals}
		case backend.OpContains, backend.OpStartsWith, backend.OpEndsWith:
			s, _ := c.Value.AsString()
			pattern := regexpQuoteMeta(s)
			switch c.Operator {
			case backend.OpContains:
				// no anchors
			case backend.OpStartsWith:
				pattern = "^" + pattern
			case backend.OpEndsWith:
				pattern = pattern + "$"
			}
			opts := ""
			if c.CaseInsensitive {
				opts = "i"
			}
			filter[key] = bson.M{"$regex": pattern, "$options": opts}
		case backend.OpRegex:
			s, _ := c.Value.AsString()
			filter[key] = bson.M{"$regex": s}
		case backend.OpIsNull:
			filter[key] = nil
		case backend.OpIsNotNull, backend.OpExists:
			filter[key] = bson.M{"$exists": true, "$ne": nil}
		case backend.OpJsonContains:
			v, err := encodeValue(c.Value)
			if err != nil {
				return nil, err
			}
			addContainsFilter(filter, key, v)
		default:
			return nil, odmerr.New(odmerr.KindUnsupportedOperator, "unknown operator").WithField(c.Field)
		}
	}
	return filter, nil
}

// addContainsFilter implements JsonContains natively: a scalar value
// against an array field relies on Mongo's implicit "field matches if any
// array element equals this" behavior, so it's a plain equality filter. An
// object value is flattened into dot-path equalities so a sub-document
// match doesn't require the queried field to be an array of documents.
func addContainsFilter(filter bson.M, key string, v any) {
	doc, ok := v.(bson.M)
	if !ok {
		filter[key] = v
		return
	}
	for k, sub := range doc {
		addContainsFilter(filter, key+"."+k, sub)
	}
}

func mongoCompareOp(op backend.Operator) string {
	switch op {
	case backend.OpGt:
		return "$gt"
	case backend.OpGte:
		return "$gte"
	case backend.OpLt:
		return "$lt"
	default:
		return "$lte"
	}
}

func regexpQuoteMeta(s string) string {
	special := `\.+*?()|[]{}^$`
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(special, r) {
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (a *Adapter) Find(ctx context.Context, collection string, conditions []backend.QueryCondition, opts backend.FindOptions) ([]backend.Record, error) {
	if err := a.ensureReady(ctx, collection); err != nil {
		return nil, err
	}
	a.mu.RLock()
	meta := a.metas[collection]
	a.mu.RUnlock()

	filter, err := conditionsToFilter(collection, meta, conditions)
	if err != nil {
		return nil, err
	}

	findOpts := options.Find()
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}
	idField := idFieldOf(meta)
	if len(opts.Sort) > 0 {
		sortDoc := bson.D{}
		for _, s := range opts.Sort {
			key := s.Field
			if key == idField {
				key = "_id"
			}
			dir := 1
			if s.Direction == backend.SortDescending {
				dir = -1
			}
			sortDoc = append(sortDoc, bson.E{Key: key, Value: dir})
		}
		findOpts.SetSort(sortDoc)
	}
	if len(opts.Projection) > 0 {
		proj := bson.M{}
		for _, f := range opts.Projection {
			key := f
			if key == idField {
				key = "_id"
			}
			proj[key] = 1
		}
		findOpts.SetProjection(proj)
	}

	cur, err := a.db.Collection(collection).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, odmerr.Wrap(odmerr.KindTransportError, err, "find").WithCollection(collection).WithRetryable(true)
	}
	defer cur.Close(ctx)

	var out []backend.Record
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, odmerr.Wrap(odmerr.KindTransportError, err, "find").WithCollection(collection).WithRetryable(true)
		}
		rec, err := a.toDoc(collection, meta, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, cur.Err()
}

func (a *Adapter) Update(ctx context.Context, collection string, conditions []backend.QueryCondition, patch backend.Record) (int64, error) {
	if err := a.ensureReady(ctx, collection); err != nil {
		return 0, err
	}
	a.mu.RLock()
	meta := a.metas[collection]
	a.mu.RUnlock()

	filter, err := conditionsToFilter(collection, meta, conditions)
	if err != nil {
		return 0, err
	}

	idField := idFieldOf(meta)
	set := bson.M{}
	for name, v := range patch {
		enc, err := encodeValue(v)
		if err != nil {
			return 0, err
		}
		key := name
		if name == idField {
			key = "_id"
		}
		set[key] = enc
	}

	res, err := a.db.Collection(collection).UpdateMany(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return 0, backend.WrapWriteError("update", collection, err, isMongoDuplicateKeyError)
	}
	return res.ModifiedCount, nil
}

func (a *Adapter) UpdateByID(ctx context.Context, collection string, id value.Value, patch backend.Record) (bool, error) {
	a.mu.RLock()
	meta := a.metas[collection]
	a.mu.RUnlock()
	if meta == nil {
		return false, odmerr.TableNotExist(collection)
	}
	n, err := a.Update(ctx, collection, []backend.QueryCondition{{Field: meta.IdField, Operator: backend.OpEq, Value: id}}, patch)
	return n > 0, err
}

func (a *Adapter) Delete(ctx context.Context, collection string, conditions []backend.QueryCondition) (int64, error) {
	if err := a.ensureReady(ctx, collection); err != nil {
		return 0, err
	}
	a.mu.RLock()
	meta := a.metas[collection]
	a.mu.RUnlock()

	filter, err := conditionsToFilter(collection, meta, conditions)
	if err != nil {
		return 0, err
	}

	res, err := a.db.Collection(collection).DeleteMany(ctx, filter)
	if err != nil {
		return 0, odmerr.Wrap(odmerr.KindTransportError, err, "delete").WithCollection(collection).WithRetryable(true)
	}
	return res.DeletedCount, nil
}

func (a *Adapter) DeleteByID(ctx context.Context, collection string, id value.Value) (bool, error) {
	a.mu.RLock()
	meta := a.metas[collection]
	a.mu.RUnlock()
	if meta == nil {
		return false, odmerr.TableNotExist(collection)
	}
	n, err := a.Delete(ctx, collection, []backend.QueryCondition{{Field: meta.IdField, Operator: backend.OpEq, Value: id}})
	return n > 0, err
}

func (a *Adapter) Count(ctx context.Context, collection string, conditions []backend.QueryCondition) (int64, error) {
	if err := a.ensureReady(ctx, collection); err != nil {
		return 0, err
	}
	a.mu.RLock()
	meta := a.metas[collection]
	a.mu.RUnlock()

	filter, err := conditionsToFilter(collection, meta, conditions)
	if err != nil {
		return 0, err
	}

	n, err := a.db.Collection(collection).CountDocuments(ctx, filter)
	if err != nil {
		return 0, odmerr.Wrap(odmerr.KindTransportError, err, "count").WithCollection(collection).WithRetryable(true)
	}
	return n, nil
}

func (a *Adapter) Exists(ctx context.Context, collection string, conditions []backend.QueryCondition) (bool, error) {
	n, err := a.Count(ctx, collection, conditions)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func isMongoDuplicateKeyError(err error) bool {
	var we mongodriver.WriteException
	if ok := asWriteException(err, &we); ok {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	return strings.Contains(err.Error(), "E11000")
}

func asWriteException(err error, target *mongodriver.WriteException) bool {
	we, ok := err.(mongodriver.WriteException)
	if !ok {
		return false
	}
	*target = we
	return true
}
