package postgres

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/crossdeck/odm/internal/backend"
	"github.com/crossdeck/odm/internal/odmerr"
	"github.com/crossdeck/odm/internal/value"
)

// encodeValue converts a ValueDomain to its driver-native form for
// Postgres: native UUID and JSONB columns, BOOLEAN, TIMESTAMPTZ for
// microsecond-precision UTC DateTime.
func encodeValue(v value.Value, ft value.FieldType) (any, error) {
	switch v.Kind() {
	case value.KindNull:
		return nil, nil
	case value.KindBool:
		b, _ := v.AsBool()
		return b, nil
	case value.KindInt:
		n, _ := v.AsInt()
		return n, nil
	case value.KindFloat:
		f, _ := v.AsFloat()
		return f, nil
	case value.KindString, value.KindObjectId:
		s, _ := v.AsString()
		if v.Kind() == value.KindString && ft != nil && ft.Kind() == value.FieldUuid {
			parsed, err := uuid.Parse(s)
			if err != nil {
				return nil, odmerr.Wrap(odmerr.KindInvalidValue, err, "uuid must parse strictly on postgres")
			}
			return parsed, nil
		}
		return s, nil
	case value.KindUuid:
		s, _ := v.AsString()
		parsed, err := uuid.Parse(s)
		if err != nil {
			return nil, odmerr.Wrap(odmerr.KindInvalidValue, err, "uuid must parse strictly on postgres")
		}
		return parsed, nil
	case value.KindBytes:
		b, _ := v.AsBytes()
		return b, nil
	case value.KindDateTime:
		t, _ := v.AsDateTime()
		return t, nil
	case value.KindArray, value.KindObject:
		return backend.EncodeJSON(v)
	case value.KindReference:
		ref, _ := v.AsReference()
		return ref.ID.String(), nil
	default:
		return nil, odmerr.Newf(odmerr.KindInvalidValue, "cannot encode value of kind %s for postgres", v.Kind())
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
		switch t := raw.(type) {
		case [16]byte:
			return value.Uuid(uuid.UUID(t).String()), nil
		case uuid.UUID:
			return value.Uuid(t.String()), nil
		default:
			parsed, err := uuid.Parse(backend.AsString(raw))
			if err != nil {
				return value.Value{}, odmerr.Wrap(odmerr.KindInvalidValue, err, "uuid column failed to parse")
			}
			return value.Uuid(parsed.String()), nil
		}
	case value.FieldObjectId:
		return value.ObjectId(backend.AsString(raw)), nil
	case value.FieldDateTime:
		if t, ok := raw.(time.Time); ok {
			return value.DateTime(t), nil
		}
		return value.Value{}, odmerr.Newf(odmerr.KindInternal, "expected time.Time for timestamptz column, got %T", raw)
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

func (a *Adapter) encodeCondition(collection string) backend.ValueEncoder {
	return func(field string, v value.Value) (any, error) {
		return encodeValue(v, a.fieldType(collection, field))
	}
}

// jsonContains renders JsonContains using Postgres's native JSONB
// containment operator.
func (a *Adapter) jsonContains(field string, v value.Value, argIdx int) (string, []any, error) {
	native, err := backend.EncodeJSON(v)
	if err != nil {
		return "", nil, err
	}
	return backend.DoubleQuoteIdent(field) + " @> $" + itoa(argIdx), []any{native}, nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
