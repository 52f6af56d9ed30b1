// Package value defines the neutral data model shared by every caller input,
// cache payload, worker request, and backend adapter in the ODM: a single
// tagged-value variant plus the schema types (FieldType, FieldDefinition,
// IdStrategy) that describe it.
package value

import (
	"fmt"
	"time"
)

// Kind discriminates the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindDateTime
	KindUuid
	KindObjectId
	KindArray
	KindObject
	KindReference
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindBool:
		return "Bool"
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindString:
		return "String"
	case KindBytes:
		return "Bytes"
	case KindDateTime:
		return "DateTime"
	case KindUuid:
		return "Uuid"
	case KindObjectId:
		return "ObjectId"
	case KindArray:
		return "Array"
	case KindObject:
		return "Object"
	case KindReference:
		return "Reference"
	default:
		return "Unknown"
	}
}

// Reference holds the target collection name and an ID value of the
// referent's own ID kind.
type Reference struct {
	Collection string
	ID         Value
}

// Value is the tagged union over the scalar and composite kinds the ODM
// exchanges between callers, the cache, the worker queue, and backend
// adapters. Only the field matching Kind is meaningful; accessor methods
// guard against misuse instead of exposing the union directly.
type Value struct {
	kind Kind

	b    bool
	i    int64
	f    float64
	s    string
	by   []byte
	t    time.Time
	arr  []Value
	obj  map[string]Value
	ref  Reference
}

func Null() Value                   { return Value{kind: KindNull} }
func Bool(v bool) Value             { return Value{kind: KindBool, b: v} }
func Int(v int64) Value             { return Value{kind: KindInt, i: v} }
func Float(v float64) Value         { return Value{kind: KindFloat, f: v} }
func String(v string) Value         { return Value{kind: KindString, s: v} }
func Bytes(v []byte) Value          { return Value{kind: KindBytes, by: v} }
func Array(v []Value) Value         { return Value{kind: KindArray, arr: v} }
func Object(v map[string]Value) Value { return Value{kind: KindObject, obj: v} }

// DateTime always stores UTC, per the invariant "DateTime is always UTC."
func DateTime(v time.Time) Value { return Value{kind: KindDateTime, t: v.UTC()} }

// Uuid stores the canonical hyphenated lowercase string form of a UUID.
func Uuid(v string) Value { return Value{kind: KindUuid, s: v} }

// ObjectId stores exactly 24 lowercase hex characters.
func ObjectId(v string) Value { return Value{kind: KindObjectId, s: v} }

func RefValue(collection string, id Value) Value {
	return Value{kind: KindReference, ref: Reference{Collection: collection, ID: id}}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool)             { return v.b, v.kind == KindBool }
func (v Value) AsInt() (int64, bool)              { return v.i, v.kind == KindInt }
func (v Value) AsFloat() (float64, bool)          { return v.f, v.kind == KindFloat }
func (v Value) AsString() (string, bool) {
	if v.kind == KindString || v.kind == KindUuid || v.kind == KindObjectId {
		return v.s, true
	}
	return "", false
}
func (v Value) AsBytes() ([]byte, bool)           { return v.by, v.kind == KindBytes }
func (v Value) AsDateTime() (time.Time, bool)     { return v.t, v.kind == KindDateTime }
func (v Value) AsArray() ([]Value, bool)          { return v.arr, v.kind == KindArray }
func (v Value) AsObject() (map[string]Value, bool) { return v.obj, v.kind == KindObject }
func (v Value) AsReference() (Reference, bool)    { return v.ref, v.kind == KindReference }

// Equal reports deep equality. DateTime equality is to-the-microsecond UTC,
// matching the precision every backend round-trips losslessly.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindInt:
		return v.i == other.i
	case KindFloat:
		return v.f == other.f
	case KindString, KindUuid, KindObjectId:
		return v.s == other.s
	case KindBytes:
		if len(v.by) != len(other.by) {
			return false
		}
		for i := range v.by {
			if v.by[i] != other.by[i] {
				return false
			}
		}
		return true
	case KindDateTime:
		return v.t.Truncate(time.Microsecond).Equal(other.t.Truncate(time.Microsecond))
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.obj) != len(other.obj) {
			return false
		}
		for k, vv := range v.obj {
			ov, ok := other.obj[k]
			if !ok || !vv.Equal(ov) {
				return false
			}
		}
		return true
	case KindReference:
		return v.ref.Collection == other.ref.Collection && v.ref.ID.Equal(other.ref.ID)
	default:
		return false
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "<null>"
	case KindBool:
		return fmt.Sprintf("%v", v.b)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%v", v.f)
	case KindString:
		return v.s
	case KindUuid, KindObjectId:
		return v.s
	case KindBytes:
		return fmt.Sprintf("%x", v.by)
	case KindDateTime:
		return v.t.Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("<%s>", v.kind)
	}
}
