package odm

import (
	"context"

	"github.com/crossdeck/odm/internal/alias"
	"github.com/crossdeck/odm/internal/model"
	"github.com/crossdeck/odm/internal/worker"
)

// ModelMeta and IndexDef are re-exports of internal/model's registry
// schema types.
type (
	ModelMeta = model.ModelMeta
	IndexDef  = model.IndexDef
)

// NamedField pairs a field name with its definition, the shape NewModelMeta
// takes for its ordered field list.
type NamedField = struct {
	Name string
	Def  FieldDefinition
}

// NewModelMeta builds a ModelMeta describing one collection's schema.
func NewModelMeta(collection, alias, idField string, strategy IdStrategy, fields []NamedField, indexes []IndexDef) *ModelMeta {
	return model.NewModelMeta(collection, alias, idField, strategy, fields, indexes)
}

// tableEnsurer adapts the Directory into model.TableEnsurer: registering a
// model issues create_table plus one create_index per declared index
// against the model's resolved alias.
type tableEnsurer struct {
	dir *alias.Directory
}

func (e tableEnsurer) EnsureTable(ctx context.Context, meta *model.ModelMeta) error {
	h, err := e.dir.Resolve(meta.Alias)
	if err != nil {
		return err
	}

	if _, err := h.Submit(ctx, &worker.Request{
		Op:         worker.OpCreateTable,
		Collection: meta.Collection,
		Payload:    worker.CreateTablePayload{Meta: meta},
	}); err != nil {
		return err
	}

	for _, idx := range meta.Indexes {
		if _, err := h.Submit(ctx, &worker.Request{
			Op:         worker.OpCreateIndex,
			Collection: meta.Collection,
			Payload:    worker.CreateIndexPayload{Name: idx.Name, Fields: idx.Fields, Unique: idx.Unique},
		}); err != nil {
			return err
		}
	}
	return nil
}

// RegisterModel registers meta in the shared ModelRegistry, creating its
// table/collection and declared indexes on first registration. Re-
// registering with an identical schema succeeds silently; a conflicting
// schema fails with ModelConflict.
func (o *ODM) RegisterModel(ctx context.Context, meta *ModelMeta) error {
	return o.registry.Register(ctx, meta, tableEnsurer{dir: o.dir})
}
