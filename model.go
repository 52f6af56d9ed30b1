package odm

import "github.com/crossdeck/odm/internal/value"

// Schema types, re-exported from internal/value so a caller can describe a
// model without importing internal/ directly.
type (
	FieldType       = value.FieldType
	FieldDefinition = value.FieldDefinition
	Value           = value.Value
)

// Field type constructors.
type (
	IntegerType   = value.IntegerType
	FloatType     = value.FloatType
	StringType    = value.StringType
	BooleanType   = value.BooleanType
	DateTimeType  = value.DateTimeType
	UuidType      = value.UuidType
	ObjectIdType  = value.ObjectIdType
	JsonType      = value.JsonType
	ArrayType     = value.ArrayType
	ObjectType    = value.ObjectType
	ReferenceType = value.ReferenceType
)

// Value constructors, re-exported so callers building records never reach
// into internal/value.
var (
	Null     = value.Null
	Bool     = value.Bool
	Int      = value.Int
	Float    = value.Float
	String   = value.String
	Bytes    = value.Bytes
	Array    = value.Array
	Object   = value.Object
	DateTime = value.DateTime
	Uuid     = value.Uuid
	ObjectId = value.ObjectId
	Ref      = value.RefValue
)
