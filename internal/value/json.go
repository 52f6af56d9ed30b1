package value

import (
	"encoding/json"
	"fmt"
	"time"
)

// wireValue is the JSON wire shape for Value, used wherever a Value needs
// to survive outside the process: cache payloads spilled to L2, and the
// JsonType field encoding itself. Only the field matching Kind is
// populated; the others are omitted.
type wireValue struct {
	Kind string            `json:"kind"`
	B    bool              `json:"b,omitempty"`
	I    int64             `json:"i,omitempty"`
	F    float64           `json:"f,omitempty"`
	S    string            `json:"s,omitempty"`
	By   []byte            `json:"by,omitempty"`
	T    *time.Time        `json:"t,omitempty"`
	Arr  []Value           `json:"arr,omitempty"`
	Obj  map[string]Value  `json:"obj,omitempty"`
	Ref  *wireReferenceVal `json:"ref,omitempty"`
}

type wireReferenceVal struct {
	Collection string `json:"collection"`
	ID         Value  `json:"id"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	w := wireValue{Kind: v.kind.String()}
	switch v.kind {
	case KindNull:
	case KindBool:
		w.B = v.b
	case KindInt:
		w.I = v.i
	case KindFloat:
		w.F = v.f
	case KindString, KindUuid, KindObjectId:
		w.S = v.s
	case KindBytes:
		w.By = v.by
	case KindDateTime:
		t := v.t
		w.T = &t
	case KindArray:
		w.Arr = v.arr
	case KindObject:
		w.Obj = v.obj
	case KindReference:
		w.Ref = &wireReferenceVal{Collection: v.ref.Collection, ID: v.ref.ID}
	default:
		return nil, fmt.Errorf("value: cannot marshal unknown kind %d", v.kind)
	}
	return json.Marshal(w)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Kind {
	case "Null", "":
		*v = Null()
	case "Bool":
		*v = Bool(w.B)
	case "Int":
		*v = Int(w.I)
	case "Float":
		*v = Float(w.F)
	case "String":
		*v = String(w.S)
	case "Uuid":
		*v = Uuid(w.S)
	case "ObjectId":
		*v = ObjectId(w.S)
	case "Bytes":
		*v = Bytes(w.By)
	case "DateTime":
		if w.T != nil {
			*v = DateTime(*w.T)
		} else {
			*v = DateTime(time.Time{})
		}
	case "Array":
		*v = Array(w.Arr)
	case "Object":
		*v = Object(w.Obj)
	case "Reference":
		if w.Ref != nil {
			*v = RefValue(w.Ref.Collection, w.Ref.ID)
		} else {
			*v = Null()
		}
	default:
		return fmt.Errorf("value: cannot unmarshal unknown kind %q", w.Kind)
	}
	return nil
}
