package mongo

import (
	"strconv"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/crossdeck/odm/internal/odmerr"
	"github.com/crossdeck/odm/internal/value"
)

// encodeValue converts a ValueDomain to its BSON-native form: ObjectId
// maps to bson.ObjectID natively, DateTime to bson.DateTime (millisecond
// precision — the one backend that cannot satisfy the microsecond
// round-trip equality every other backend provides; values are truncated
// on write and the loss is accepted as a MongoDB-specific, documented
// exception).
func encodeValue(v value.Value) (any, error) {
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
	case value.KindString, value.KindUuid:
		s, _ := v.AsString()
		return s, nil
	case value.KindObjectId:
		s, _ := v.AsString()
		oid, err := bson.ObjectIDFromHex(s)
		if err != nil {
			return nil, odmerr.Wrap(odmerr.KindInvalidValue, err, "object id must be 24 lowercase hex characters")
		}
		return oid, nil
	case value.KindBytes:
		b, _ := v.AsBytes()
		return b, nil
	case value.KindDateTime:
		t, _ := v.AsDateTime()
		return bson.NewDateTimeFromTime(t), nil
	case value.KindArray:
		arr, _ := v.AsArray()
		out := make(bson.A, len(arr))
		for i, e := range arr {
			enc, err := encodeValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = enc
		}
		return out, nil
	case value.KindObject:
		obj, _ := v.AsObject()
		out := bson.M{}
		for k, e := range obj {
			enc, err := encodeValue(e)
			if err != nil {
				return nil, err
			}
			out[k] = enc
		}
		return out, nil
	case value.KindReference:
		ref, _ := v.AsReference()
		return ref.ID.String(), nil
	default:
		return nil, odmerr.Newf(odmerr.KindInvalidValue, "cannot encode value of kind %s for mongodb", v.Kind())
	}
}

func decodeValue(raw any, ft value.FieldType) (value.Value, error) {
	if raw == nil {
		return value.Null(), nil
	}

	switch t := raw.(type) {
	case bson.ObjectID:
		return value.ObjectId(t.Hex()), nil
	case bson.DateTime:
		return value.DateTime(t.Time()), nil
	case bool:
		return value.Bool(t), nil
	case int32:
		return value.Int(int64(t)), nil
	case int64:
		return value.Int(t), nil
	case float64:
		return value.Float(t), nil
	case string:
		if ft != nil {
			switch ft.Kind() {
			case value.FieldUuid:
				return value.Uuid(t), nil
			case value.FieldReference:
				refType, _ := ft.(value.ReferenceType)
				if n, err := strconv.ParseInt(t, 10, 64); err == nil {
					return value.RefValue(refType.TargetCollection, value.Int(n)), nil
				}
				return value.RefValue(refType.TargetCollection, value.String(t)), nil
			}
		}
		return value.String(t), nil
	case bson.A:
		out := make([]value.Value, len(t))
		for i, e := range t {
			dv, err := decodeValue(e, nil)
			if err != nil {
				return value.Value{}, err
			}
			out[i] = dv
		}
		return value.Array(out), nil
	case bson.M:
		out := make(map[string]value.Value, len(t))
		for k, e := range t {
			dv, err := decodeValue(e, nil)
			if err != nil {
				return value.Value{}, err
			}
			out[k] = dv
		}
		return value.Object(out), nil
	case bson.D:
		out := make(map[string]value.Value, len(t))
		for _, elem := range t {
			dv, err := decodeValue(elem.Value, nil)
			if err != nil {
				return value.Value{}, err
			}
			out[elem.Key] = dv
		}
		return value.Object(out), nil
	default:
		return value.Value{}, odmerr.Newf(odmerr.KindInternal, "cannot decode bson value of type %T", raw)
	}
}
