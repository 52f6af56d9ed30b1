package mongo

import (
	"context"
	"errors"
	"testing"

	"github.com/crossdeck/odm/internal/backend"
	"github.com/crossdeck/odm/internal/model"
	"github.com/crossdeck/odm/internal/odmerr"
	"github.com/crossdeck/odm/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmongodb "github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func setupMongoAdapter(t *testing.T) *Adapter {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := tcmongodb.Run(ctx, "mongo:7")
	require.NoError(t, err, "failed to start mongodb container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	a, err := Open(ctx, "default", Config{URI: uri, Database: "odm_test"})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func mongoUsersMeta() *model.ModelMeta {
	return model.NewModelMeta("users", "default", "id", value.IdStrategy{Kind: value.StrategyObjectId}, []struct {
		Name string
		Def  value.FieldDefinition
	}{
		{Name: "id", Def: value.FieldDefinition{Type: value.ObjectIdType{}}},
		{Name: "name", Def: value.FieldDefinition{Type: value.StringType{}, Required: true}},
		{Name: "tags", Def: value.FieldDefinition{Type: value.ArrayType{Element: value.StringType{}}}},
	}, nil)
}

func TestMongoCreateTableAndCRUD(t *testing.T) {
	a := setupMongoAdapter(t)
	ctx := context.Background()
	require.NoError(t, a.CreateTable(ctx, "users", mongoUsersMeta()))

	id, err := a.Create(ctx, "users", backend.Record{
		"name": value.String("lovelace"),
		"tags": value.Array([]value.Value{value.String("math"), value.String("engine")}),
	})
	require.NoError(t, err)

	rec, found, err := a.FindByID(ctx, "users", id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "lovelace", rec["name"].String())

	n, err := a.Update(ctx, "users",
		[]backend.QueryCondition{{Field: "name", Operator: backend.OpEq, Value: value.String("lovelace")}},
		backend.Record{"name": value.String("ada")})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	count, err := a.Count(ctx, "users", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	deleted, err := a.DeleteByID(ctx, "users", id)
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestMongoJsonContainsQuery(t *testing.T) {
	a := setupMongoAdapter(t)
	ctx := context.Background()
	require.NoError(t, a.CreateTable(ctx, "users", mongoUsersMeta()))

	_, err := a.Create(ctx, "users", backend.Record{
		"name": value.String("hopper"),
		"tags": value.Array([]value.Value{value.String("navy"), value.String("compiler")}),
	})
	require.NoError(t, err)

	recs, err := a.Find(ctx, "users", []backend.QueryCondition{
		{Field: "tags", Operator: backend.OpJsonContains, Value: value.String("compiler")},
	}, backend.FindOptions{})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestMongoTableNotExistSurfacesOnFindByID(t *testing.T) {
	a := setupMongoAdapter(t)
	ctx := context.Background()

	a.mu.Lock()
	a.metas["ghosts"] = mongoUsersMeta()
	a.mu.Unlock()

	_, _, err := a.FindByID(ctx, "ghosts", value.ObjectId("507f1f77bcf86cd799439011"))
	require.Error(t, err)

	var odmErr *odmerr.Error
	require.True(t, errors.As(err, &odmErr))
	assert.Equal(t, odmerr.KindTableNotExist, odmErr.Kind)
}
