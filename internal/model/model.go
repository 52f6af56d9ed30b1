// Package model holds the process-wide registry of collection schemas: a
// ModelRegistry mapping a collection name to the ModelMeta that describes
// its fields, indexes, and id strategy.
package model

import "github.com/crossdeck/odm/internal/value"

// IndexDef describes one secondary or composite index a model declares.
// For SQL backends, the sum of maximum string-field byte sizes across a
// composite index must not exceed the backend's key-length limit; violating
// this is a registration-time SchemaError, not a runtime one.
type IndexDef struct {
	Fields []string
	Unique bool
	Name   string
}

// orderedField pairs a field name with its definition, preserving
// registration order so encoded output (JSON, SQL column lists) is
// deterministic rather than following Go's randomized map iteration.
type orderedField struct {
	Name string
	Def  value.FieldDefinition
}

// ModelMeta is the full schema of one registered collection. IdField always
// exists in Fields; its FieldType must match IdStrategy.NaturalFieldType().
type ModelMeta struct {
	Collection string
	Alias      string // empty means "use the directory's default alias"
	IdField    string
	IdStrategy value.IdStrategy
	Indexes    []IndexDef

	fields      []orderedField
	fieldByName map[string]value.FieldDefinition
}

// NewModelMeta builds a ModelMeta from an ordered field list, preserving the
// given order for FieldNames/deterministic encoding.
func NewModelMeta(collection, alias, idField string, strategy value.IdStrategy, fields []struct {
	Name string
	Def  value.FieldDefinition
}, indexes []IndexDef) *ModelMeta {
	m := &ModelMeta{
		Collection:  collection,
		Alias:       alias,
		IdField:     idField,
		IdStrategy:  strategy,
		Indexes:     indexes,
		fieldByName: make(map[string]value.FieldDefinition, len(fields)),
	}
	for _, f := range fields {
		m.fields = append(m.fields, orderedField{Name: f.Name, Def: f.Def})
		m.fieldByName[f.Name] = f.Def
	}
	return m
}

// FieldNames returns field names in registration order.
func (m *ModelMeta) FieldNames() []string {
	names := make([]string, len(m.fields))
	for i, f := range m.fields {
		names[i] = f.Name
	}
	return names
}

// Field looks up a field definition by name.
func (m *ModelMeta) Field(name string) (value.FieldDefinition, bool) {
	d, ok := m.fieldByName[name]
	return d, ok
}

// HasField reports whether name is a declared field, used by the Facade and
// ModelManager to reject unknown fields before enqueue.
func (m *ModelMeta) HasField(name string) bool {
	_, ok := m.fieldByName[name]
	return ok
}

// sameSchema reports whether two ModelMeta values describe an identical
// schema, used by Registry.Register to distinguish idempotent
// re-registration from a genuine ModelConflict.
func (m *ModelMeta) sameSchema(other *ModelMeta) bool {
	if m.Collection != other.Collection || m.IdField != other.IdField {
		return false
	}
	if m.IdStrategy != other.IdStrategy {
		return false
	}
	if len(m.fields) != len(other.fields) {
		return false
	}
	for i, f := range m.fields {
		of := other.fields[i]
		if f.Name != of.Name || f.Def.Type.Kind() != of.Def.Type.Kind() ||
			f.Def.Required != of.Def.Required || f.Def.Unique != of.Def.Unique ||
			f.Def.Indexed != of.Def.Indexed {
			return false
		}
	}
	if len(m.Indexes) != len(other.Indexes) {
		return false
	}
	for i, idx := range m.Indexes {
		oi := other.Indexes[i]
		if idx.Name != oi.Name || idx.Unique != oi.Unique || len(idx.Fields) != len(oi.Fields) {
			return false
		}
		for j, fn := range idx.Fields {
			if fn != oi.Fields[j] {
				return false
			}
		}
	}
	return true
}
