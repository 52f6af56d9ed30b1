package sqlite

import (
	"strconv"

	"github.com/crossdeck/odm/internal/backend"
	"github.com/crossdeck/odm/internal/odmerr"
	"github.com/crossdeck/odm/internal/value"
)

// encodeValue converts a ValueDomain into the driver-native representation
// for SQLite: Boolean as INTEGER 0/1, ObjectId as a 24-char TEXT column,
// DateTime with no native TZ-aware type available.
//
// DateTime equality must hold to the microsecond, which a whole-second
// epoch INTEGER column cannot satisfy. This adapter stores epoch
// *microseconds* in the INTEGER column instead — still a single INTEGER,
// still epoch-based, but precise enough for exact round-trips. See
// DESIGN.md.
func encodeValue(v value.Value, ft value.FieldType) (any, error) {
	switch v.Kind() {
	case value.KindNull:
		return nil, nil
	case value.KindBool:
		b, _ := v.AsBool()
		if b {
			return int64(1), nil
		}
		return int64(0), nil
	case value.KindInt:
		n, _ := v.AsInt()
		return n, nil
	case value.KindFloat:
		f, _ := v.AsFloat()
		return f, nil
	case value.KindString, value.KindUuid, value.KindObjectId:
		s, _ := v.AsString()
		return s, nil
	case value.KindBytes:
		b, _ := v.AsBytes()
		return b, nil
	case value.KindDateTime:
		t, _ := v.AsDateTime()
		return t.UnixMicro(), nil
	case value.KindArray, value.KindObject:
		return backend.EncodeJSON(v)
	case value.KindReference:
		ref, _ := v.AsReference()
		return ref.ID.String(), nil
	default:
		return nil, odmerr.Newf(odmerr.KindInvalidValue, "cannot encode value of kind %s for sqlite", v.Kind())
	}
}

// decodeValue converts a driver-native column value back to a ValueDomain,
// guided by the field's declared FieldType.
func decodeValue(raw any, ft value.FieldType) (value.Value, error) {
	if raw == nil {
		return value.Null(), nil
	}
	if ft == nil {
		return value.String(backend.AsString(raw)), nil
	}

	switch ft.Kind() {
	case value.FieldBoolean:
		return value.Bool(backend.Truthy(raw)), nil
	case value.FieldInteger:
		n, err := backend.AsInt64(raw)
		if err != nil {
			return value.Value{}, err
		}
		return value.Int(n), nil
	case value.FieldFloat:
		f, err := backend.AsFloat64(raw)
		if err != nil {
			return value.Value{}, err
		}
		return value.Float(f), nil
	case value.FieldString:
		return value.String(backend.AsString(raw)), nil
	case value.FieldUuid:
		return value.Uuid(backend.AsString(raw)), nil
	case value.FieldObjectId:
		return value.ObjectId(backend.AsString(raw)), nil
	case value.FieldDateTime:
		micros, err := backend.AsInt64(raw)
		if err != nil {
			return value.Value{}, err
		}
		return value.DateTime(backend.MicrosToTime(micros)), nil
	case value.FieldJson, value.FieldArray, value.FieldObject:
		return backend.DecodeJSON(raw)
	case value.FieldReference:
		refType, _ := ft.(value.ReferenceType)
		s := backend.AsString(raw)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return value.RefValue(refType.TargetCollection, value.Int(n)), nil
		}
		return value.RefValue(refType.TargetCollection, value.String(s)), nil
	default:
		return value.String(backend.AsString(raw)), nil
	}
}

// encodeCondition adapts encodeValue to backend.ValueEncoder's signature for
// use in BuildWhereClause, looking the field's declared FieldType up from
// the adapter's registered ModelMeta for the collection currently being
// queried.
func (a *Adapter) encodeCondition(collection string) backend.ValueEncoder {
	return func(field string, v value.Value) (any, error) {
		ft := a.fieldType(collection, field)
		return encodeValue(v, ft)
	}
}
