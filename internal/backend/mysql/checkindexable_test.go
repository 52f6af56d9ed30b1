package mysql

import (
	"errors"
	"testing"

	"github.com/crossdeck/odm/internal/model"
	"github.com/crossdeck/odm/internal/odmerr"
	"github.com/crossdeck/odm/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexableMeta(fieldMaxLens ...int) *model.ModelMeta {
	fields := []struct {
		Name string
		Def  value.FieldDefinition
	}{
		{Name: "id", Def: value.FieldDefinition{Type: value.IntegerType{}}},
	}
	for i, maxLen := range fieldMaxLens {
		ml := maxLen
		fields = append(fields, struct {
			Name string
			Def  value.FieldDefinition
		}{Name: fieldName(i), Def: value.FieldDefinition{Type: value.StringType{MaxLen: &ml}}})
	}
	return model.NewModelMeta("docs", "default", "id", value.IdStrategy{Kind: value.StrategyAutoIncrement}, fields, nil)
}

func fieldName(i int) string {
	return []string{"a", "b", "c", "d"}[i]
}

func TestCheckIndexableAllowsSingleFieldIndex(t *testing.T) {
	a := &Adapter{}
	meta := indexableMeta(10000)
	err := a.checkIndexable(meta, model.IndexDef{Name: "idx_a", Fields: []string{"a"}})
	assert.NoError(t, err)
}

func TestCheckIndexableAllowsCompositeUnderKeyLimit(t *testing.T) {
	a := &Adapter{}
	meta := indexableMeta(100, 200)
	err := a.checkIndexable(meta, model.IndexDef{Name: "idx_ab", Fields: []string{"a", "b"}})
	assert.NoError(t, err)
}

func TestCheckIndexableRejectsCompositeOverKeyLimit(t *testing.T) {
	a := &Adapter{}
	// 500 + 500 chars * 4 bytes/char (utf8mb4 worst case) = 4000 bytes > 3072.
	meta := indexableMeta(500, 500)
	err := a.checkIndexable(meta, model.IndexDef{Name: "idx_ab", Fields: []string{"a", "b"}})
	require.Error(t, err)

	var odmErr *odmerr.Error
	require.True(t, errors.As(err, &odmErr))
	assert.Equal(t, odmerr.KindSchemaError, odmErr.Kind)
}

func TestCheckIndexableRejectsUnboundedStringField(t *testing.T) {
	a := &Adapter{}
	meta := model.NewModelMeta("docs", "default", "id", value.IdStrategy{Kind: value.StrategyAutoIncrement}, []struct {
		Name string
		Def  value.FieldDefinition
	}{
		{Name: "id", Def: value.FieldDefinition{Type: value.IntegerType{}}},
		{Name: "a", Def: value.FieldDefinition{Type: value.StringType{}}},
		{Name: "b", Def: value.FieldDefinition{Type: value.StringType{}}},
	}, nil)

	err := a.checkIndexable(meta, model.IndexDef{Name: "idx_ab", Fields: []string{"a", "b"}})
	require.Error(t, err)

	var odmErr *odmerr.Error
	require.True(t, errors.As(err, &odmErr))
	assert.Equal(t, odmerr.KindSchemaError, odmErr.Kind)
}
