package model

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/crossdeck/odm/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEnsurer struct {
	calls int32
}

func (c *countingEnsurer) EnsureTable(ctx context.Context, meta *ModelMeta) error {
	atomic.AddInt32(&c.calls, 1)
	return nil
}

func userMeta() *ModelMeta {
	return NewModelMeta("users", "", "id", value.IdStrategy{Kind: value.StrategyUuid},
		[]struct {
			Name string
			Def  value.FieldDefinition
		}{
			{Name: "id", Def: value.FieldDefinition{Type: value.UuidType{}, Required: true}},
			{Name: "name", Def: value.FieldDefinition{Type: value.StringType{}, Required: true}},
		}, nil)
}

func TestRegisterIdempotent(t *testing.T) {
	r := NewRegistry()
	ensurer := &countingEnsurer{}

	require.NoError(t, r.Register(context.Background(), userMeta(), ensurer))
	require.NoError(t, r.Register(context.Background(), userMeta(), ensurer))

	assert.EqualValues(t, 1, ensurer.calls, "table is ensured only on first successful register")

	meta, ok := r.Lookup("users")
	require.True(t, ok)
	assert.Equal(t, "id", meta.IdField)
}

func TestRegisterConflictingSchemaFails(t *testing.T) {
	r := NewRegistry()
	ensurer := &countingEnsurer{}
	require.NoError(t, r.Register(context.Background(), userMeta(), ensurer))

	conflicting := NewModelMeta("users", "", "id", value.IdStrategy{Kind: value.StrategyUuid},
		[]struct {
			Name string
			Def  value.FieldDefinition
		}{
			{Name: "id", Def: value.FieldDefinition{Type: value.UuidType{}, Required: true}},
			{Name: "name", Def: value.FieldDefinition{Type: value.IntegerType{}, Required: true}},
		}, nil)

	err := r.Register(context.Background(), conflicting, ensurer)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ModelConflict")
}

func TestRegisterConcurrentEnsuresOnce(t *testing.T) {
	r := NewRegistry()
	ensurer := &countingEnsurer{}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Register(context.Background(), userMeta(), ensurer)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, ensurer.calls)
}

func TestLookupMissingCollection(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Lookup("ghost")
	assert.False(t, ok)

	_, err := r.MustLookup("ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SchemaError")
}
