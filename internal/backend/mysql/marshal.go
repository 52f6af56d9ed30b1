package mysql

import (
	"strconv"
	"time"

	"github.com/crossdeck/odm/internal/backend"
	"github.com/crossdeck/odm/internal/odmerr"
	"github.com/crossdeck/odm/internal/value"
)

// encodeValue converts a ValueDomain to its driver-native form for MySQL:
// Boolean as TINYINT(1), UUID/ObjectId as CHAR(36)/CHAR(24), DateTime as
// DATETIME(6) for microsecond precision, Array/Object as a JSON column.
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
		return t, nil // driver marshals time.Time to DATETIME(6) directly
	case value.KindArray, value.KindObject:
		return backend.EncodeJSON(v)
	case value.KindReference:
		ref, _ := v.AsReference()
		return ref.ID.String(), nil
	default:
		return nil, odmerr.Newf(odmerr.KindInvalidValue, "cannot encode value of kind %s for mysql", v.Kind())
	}
}

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
		if t, ok := raw.(time.Time); ok {
			return value.DateTime(t), nil
		}
		// parseTime=true is set on the DSN, but fall back to a manual parse
		// defensively in case a future DSN change drops it.
		t, err := time.Parse("2006-01-02 15:04:05.999999", backend.AsString(raw))
		if err != nil {
			return value.Value{}, odmerr.Wrap(odmerr.KindInternal, err, "failed to parse mysql datetime column")
		}
		return value.DateTime(t), nil
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

// encodeCondition adapts encodeValue to backend.ValueEncoder, looking up the
// field's declared FieldType from the adapter's registered ModelMeta.
func (a *Adapter) encodeCondition(collection string) backend.ValueEncoder {
	return func(field string, v value.Value) (any, error) {
		return encodeValue(v, a.fieldType(collection, field))
	}
}

// jsonContains rejects JsonContains on MySQL with UnsupportedOperator, the
// same outcome SQLite reaches by passing no builder at all.
func (a *Adapter) jsonContains(field string, v value.Value, argIdx int) (string, []any, error) {
	return "", nil, odmerr.New(odmerr.KindUnsupportedOperator, "JsonContains is not supported by this backend").WithField(field)
}
