package value

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValueEqualScalars(t *testing.T) {
	assert.True(t, Int(5).Equal(Int(5)))
	assert.False(t, Int(5).Equal(Int(6)))
	assert.True(t, Bool(true).Equal(Bool(true)))
	assert.True(t, String("ada").Equal(String("ada")))
	assert.True(t, Null().Equal(Null()))
	assert.False(t, Int(5).Equal(String("5")))
}

func TestValueEqualDateTimeMicrosecond(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 123456789, time.UTC)
	a := DateTime(base)
	b := DateTime(base.Add(200 * time.Nanosecond))
	assert.True(t, a.Equal(b), "equality is to-the-microsecond UTC")
}

func TestValueEqualArrayAndObject(t *testing.T) {
	a := Array([]Value{Int(1), String("x")})
	b := Array([]Value{Int(1), String("x")})
	assert.True(t, a.Equal(b))

	o1 := Object(map[string]Value{"k": Int(1)})
	o2 := Object(map[string]Value{"k": Int(1)})
	assert.True(t, o1.Equal(o2))
}

func TestValueEqualReference(t *testing.T) {
	r1 := RefValue("users", Int(7))
	r2 := RefValue("users", Int(7))
	r3 := RefValue("users", Int(8))
	assert.True(t, r1.Equal(r2))
	assert.False(t, r1.Equal(r3))
}

func TestDateTimeAlwaysUTC(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	local := time.Date(2026, 1, 1, 0, 0, 0, 0, loc)
	v := DateTime(local)
	got, ok := v.AsDateTime()
	assert.True(t, ok)
	assert.Equal(t, time.UTC, got.Location())
}

func TestIdStrategyNaturalFieldType(t *testing.T) {
	assert.Equal(t, FieldInteger, IdStrategy{Kind: StrategyAutoIncrement}.NaturalFieldType().Kind())
	assert.Equal(t, FieldInteger, IdStrategy{Kind: StrategySnowflake}.NaturalFieldType().Kind())
	assert.Equal(t, FieldUuid, IdStrategy{Kind: StrategyUuid}.NaturalFieldType().Kind())
	assert.Equal(t, FieldObjectId, IdStrategy{Kind: StrategyObjectId}.NaturalFieldType().Kind())
	assert.Equal(t, FieldString, IdStrategy{Kind: StrategyCustomPrefix}.NaturalFieldType().Kind())
}
