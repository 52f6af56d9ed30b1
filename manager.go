package odm

import (
	"context"

	"github.com/crossdeck/odm/internal/odmerr"
)

// Model is implemented by a pointer to a caller's struct, the translation
// layer between a typed instance and the neutral Record map the Facade
// exchanges with adapters.
type Model interface {
	ToRecord() Record
	FromRecord(Record) error
}

// ModelManager wraps a registered collection with a typed interface over T:
// it serializes an instance to a Record, calls the untyped Facade, and
// deserializes results back. PT is constrained to *T implementing Model —
// the constructor-constraint generics pattern that lets FindByID/Find
// manufacture a fresh *T without reflection.
type ModelManager[T any, PT interface {
	*T
	Model
}] struct {
	odm        *ODM
	collection string
	idField    string
}

// NewModelManager builds a ModelManager for a collection already passed to
// RegisterModel. If the collection was never registered, the id field
// defaults to "id".
func NewModelManager[T any, PT interface {
	*T
	Model
}](o *ODM, collection string) *ModelManager[T, PT] {
	idField := "id"
	if meta, ok := o.registry.Lookup(collection); ok {
		idField = meta.IdField
	}
	return &ModelManager[T, PT]{odm: o, collection: collection, idField: idField}
}

// Save routes to Create when instance's id field is empty/null, or
// UpdateByID otherwise, returning the (possibly newly assigned) id.
func (m *ModelManager[T, PT]) Save(ctx context.Context, instance PT, aliasName ...string) (Value, error) {
	rec := instance.ToRecord()
	existing, hasID := rec[m.idField]
	if !hasID || existing.IsNull() {
		id, err := m.odm.Create(ctx, m.collection, rec, aliasName...)
		if err != nil {
			return Value{}, err
		}
		return id, nil
	}
	if _, err := m.odm.UpdateByID(ctx, m.collection, existing, rec, aliasName...); err != nil {
		return Value{}, err
	}
	return existing, nil
}

// FindByID looks up the collection's record by id and deserializes it into
// a fresh *T.
func (m *ModelManager[T, PT]) FindByID(ctx context.Context, id Value, aliasName ...string) (PT, bool, error) {
	rec, found, err := m.odm.FindByID(ctx, m.collection, id, aliasName...)
	if err != nil || !found {
		return nil, found, err
	}
	instance := PT(new(T))
	if err := instance.FromRecord(rec); err != nil {
		return nil, false, err
	}
	return instance, true, nil
}

// Find returns every matching record, deserialized into *T.
func (m *ModelManager[T, PT]) Find(ctx context.Context, conditions []QueryCondition, opts FindOptions, aliasName ...string) ([]PT, error) {
	recs, err := m.odm.Find(ctx, m.collection, conditions, opts, aliasName...)
	if err != nil {
		return nil, err
	}
	out := make([]PT, len(recs))
	for i, rec := range recs {
		instance := PT(new(T))
		if err := instance.FromRecord(rec); err != nil {
			return nil, err
		}
		out[i] = instance
	}
	return out, nil
}

// Delete removes instance's record by its id field.
func (m *ModelManager[T, PT]) Delete(ctx context.Context, instance PT, aliasName ...string) (bool, error) {
	rec := instance.ToRecord()
	id, ok := rec[m.idField]
	if !ok || id.IsNull() {
		return false, odmerr.New(odmerr.KindInvalidValue, "cannot delete a model instance with no id").WithCollection(m.collection)
	}
	return m.odm.DeleteByID(ctx, m.collection, id, aliasName...)
}
