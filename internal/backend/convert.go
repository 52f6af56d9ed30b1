package backend

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/crossdeck/odm/internal/odmerr"
	"github.com/crossdeck/odm/internal/value"
)

// Truthy implements SQLite's boolean decode rule: on read, any of
// {0,1,"0","1","true","false",true,false} decodes to Boolean.
func Truthy(raw any) bool {
	switch t := raw.(type) {
	case bool:
		return t
	case int64:
		return t != 0
	case int:
		return t != 0
	case float64:
		return t != 0
	case string:
		return t == "1" || t == "true" || t == "TRUE" || t == "True"
	case []byte:
		s := string(t)
		return s == "1" || s == "true" || s == "TRUE" || s == "True"
	default:
		return false
	}
}

func AsInt64(raw any) (int64, error) {
	switch t := raw.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case float64:
		return int64(t), nil
	case []byte:
		var n int64
		if _, err := fmt.Sscanf(string(t), "%d", &n); err != nil {
			return 0, odmerr.Wrap(odmerr.KindInternal, err, "failed to parse integer column")
		}
		return n, nil
	case string:
		var n int64
		if _, err := fmt.Sscanf(t, "%d", &n); err != nil {
			return 0, odmerr.Wrap(odmerr.KindInternal, err, "failed to parse integer column")
		}
		return n, nil
	default:
		return 0, odmerr.Newf(odmerr.KindInternal, "cannot convert %T to int64", raw)
	}
}

func AsFloat64(raw any) (float64, error) {
	switch t := raw.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case []byte:
		var f float64
		if _, err := fmt.Sscanf(string(t), "%g", &f); err != nil {
			return 0, odmerr.Wrap(odmerr.KindInternal, err, "failed to parse float column")
		}
		return f, nil
	default:
		return 0, odmerr.Newf(odmerr.KindInternal, "cannot convert %T to float64", raw)
	}
}

func AsString(raw any) string {
	switch t := raw.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func MicrosToTime(micros int64) time.Time {
	return time.UnixMicro(micros).UTC()
}

// EncodeJSON renders an Array or Object ValueDomain into the Go-native JSON
// representation adapters store in a JSON/JSONB/TEXT column.
func EncodeJSON(v value.Value) (any, error) {
	native, err := toNative(v)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(native)
	if err != nil {
		return nil, odmerr.Wrap(odmerr.KindSerializationError, err, "failed to encode json value")
	}
	return b, nil
}

// DecodeJSON parses a stored JSON column back into an Array or Object
// ValueDomain.
func DecodeJSON(raw any) (value.Value, error) {
	var data []byte
	switch t := raw.(type) {
	case []byte:
		data = t
	case string:
		data = []byte(t)
	default:
		return value.Value{}, odmerr.Newf(odmerr.KindSerializationError, "cannot decode json from %T", raw)
	}

	var native any
	if err := json.Unmarshal(data, &native); err != nil {
		return value.Value{}, odmerr.Wrap(odmerr.KindSerializationError, err, "failed to decode json value")
	}
	return fromNative(native), nil
}

func toNative(v value.Value) (any, error) {
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
	case value.KindString, value.KindUuid, value.KindObjectId:
		s, _ := v.AsString()
		return s, nil
	case value.KindDateTime:
		t, _ := v.AsDateTime()
		return t.Format(time.RFC3339Nano), nil
	case value.KindArray:
		arr, _ := v.AsArray()
		out := make([]any, len(arr))
		for i, e := range arr {
			n, err := toNative(e)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case value.KindObject:
		obj, _ := v.AsObject()
		out := make(map[string]any, len(obj))
		for k, e := range obj {
			n, err := toNative(e)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	default:
		return nil, odmerr.Newf(odmerr.KindInvalidValue, "cannot encode %s inside a json value", v.Kind())
	}
}

func fromNative(n any) value.Value {
	switch t := n.(type) {
	case nil:
		return value.Null()
	case bool:
		return value.Bool(t)
	case float64:
		if t == float64(int64(t)) {
			return value.Int(int64(t))
		}
		return value.Float(t)
	case string:
		return value.String(t)
	case []any:
		out := make([]value.Value, len(t))
		for i, e := range t {
			out[i] = fromNative(e)
		}
		return value.Array(out)
	case map[string]any:
		out := make(map[string]value.Value, len(t))
		for k, e := range t {
			out[k] = fromNative(e)
		}
		return value.Object(out)
	default:
		return value.Null()
	}
}
