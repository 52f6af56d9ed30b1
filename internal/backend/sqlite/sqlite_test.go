package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/crossdeck/odm/internal/backend"
	"github.com/crossdeck/odm/internal/model"
	"github.com/crossdeck/odm/internal/odmerr"
	"github.com/crossdeck/odm/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	a, err := Open("default", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func usersMeta() *model.ModelMeta {
	return model.NewModelMeta("users", "default", "id", value.IdStrategy{Kind: value.StrategyAutoIncrement}, []struct {
		Name string
		Def  value.FieldDefinition
	}{
		{Name: "id", Def: value.FieldDefinition{Type: value.IntegerType{}}},
		{Name: "name", Def: value.FieldDefinition{Type: value.StringType{}, Required: true}},
		{Name: "email", Def: value.FieldDefinition{Type: value.StringType{}, Unique: true}},
		{Name: "active", Def: value.FieldDefinition{Type: value.BooleanType{}}},
		{Name: "created_at", Def: value.FieldDefinition{Type: value.DateTimeType{}}},
	}, nil)
}

func TestCreateTableThenFindByIDRoundTrips(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	meta := usersMeta()

	require.NoError(t, a.CreateTable(ctx, "users", meta))

	exists, err := a.TableExists(ctx, "users")
	require.NoError(t, err)
	assert.True(t, exists)

	id, err := a.Create(ctx, "users", backend.Record{
		"id":         value.Null(),
		"name":       value.String("ada"),
		"email":      value.String("ada@example.com"),
		"active":     value.Bool(true),
		"created_at": value.DateTime(mustTime(t, "2026-01-02T03:04:05.123456Z")),
	})
	require.NoError(t, err)
	assert.False(t, id.IsNull())

	rec, found, err := a.FindByID(ctx, "users", id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "ada", rec["name"].String())
	b, _ := rec["active"].AsBool()
	assert.True(t, b)
	assert.True(t, rec["created_at"].Equal(value.DateTime(mustTime(t, "2026-01-02T03:04:05.123456Z"))))
}

func TestFindByIDMissingReturnsFalseNotError(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	require.NoError(t, a.CreateTable(ctx, "users", usersMeta()))

	_, found, err := a.FindByID(ctx, "users", value.Int(999))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestOperationOnUnknownCollectionReturnsTableNotExist(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	_, _, err := a.FindByID(ctx, "ghosts", value.Int(1))
	require.Error(t, err)

	var odmErr *odmerr.Error
	require.True(t, errors.As(err, &odmErr))
	assert.Equal(t, odmerr.KindTableNotExist, odmErr.Kind)
}

func TestUniqueConstraintViolationSurfacesAsConstraintViolation(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	require.NoError(t, a.CreateTable(ctx, "users", usersMeta()))

	_, err := a.Create(ctx, "users", backend.Record{
		"id": value.Null(), "name": value.String("a"), "email": value.String("dup@example.com"),
		"active": value.Bool(false), "created_at": value.DateTime(mustTime(t, "2026-01-01T00:00:00Z")),
	})
	require.NoError(t, err)

	_, err = a.Create(ctx, "users", backend.Record{
		"id": value.Null(), "name": value.String("b"), "email": value.String("dup@example.com"),
		"active": value.Bool(false), "created_at": value.DateTime(mustTime(t, "2026-01-01T00:00:00Z")),
	})
	require.Error(t, err)
}

func TestFindWithConditionsAndSort(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	require.NoError(t, a.CreateTable(ctx, "users", usersMeta()))

	for i, name := range []string{"carol", "alice", "bob"} {
		_, err := a.Create(ctx, "users", backend.Record{
			"id": value.Null(), "name": value.String(name), "email": value.String(name + "@example.com"),
			"active": value.Bool(i%2 == 0), "created_at": value.DateTime(mustTime(t, "2026-01-01T00:00:00Z")),
		})
		require.NoError(t, err)
	}

	recs, err := a.Find(ctx, "users",
		[]backend.QueryCondition{{Field: "active", Operator: backend.OpEq, Value: value.Bool(true)}},
		backend.FindOptions{Sort: []backend.SortField{{Field: "name", Direction: backend.SortAscending}}})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "bob", recs[0]["name"].String())
	assert.Equal(t, "carol", recs[1]["name"].String())
}

func TestUpdateByIDAndDeleteByID(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	require.NoError(t, a.CreateTable(ctx, "users", usersMeta()))

	id, err := a.Create(ctx, "users", backend.Record{
		"id": value.Null(), "name": value.String("dave"), "email": value.String("dave@example.com"),
		"active": value.Bool(false), "created_at": value.DateTime(mustTime(t, "2026-01-01T00:00:00Z")),
	})
	require.NoError(t, err)

	ok, err := a.UpdateByID(ctx, "users", id, backend.Record{"active": value.Bool(true)})
	require.NoError(t, err)
	assert.True(t, ok)

	rec, _, err := a.FindByID(ctx, "users", id)
	require.NoError(t, err)
	b, _ := rec["active"].AsBool()
	assert.True(t, b)

	ok, err = a.DeleteByID(ctx, "users", id)
	require.NoError(t, err)
	assert.True(t, ok)

	_, found, err := a.FindByID(ctx, "users", id)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCountAndExists(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	require.NoError(t, a.CreateTable(ctx, "users", usersMeta()))

	for _, name := range []string{"x", "y"} {
		_, err := a.Create(ctx, "users", backend.Record{
			"id": value.Null(), "name": value.String(name), "email": value.String(name + "@example.com"),
			"active": value.Bool(true), "created_at": value.DateTime(mustTime(t, "2026-01-01T00:00:00Z")),
		})
		require.NoError(t, err)
	}

	n, err := a.Count(ctx, "users", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	exists, err := a.Exists(ctx, "users", []backend.QueryCondition{{Field: "name", Operator: backend.OpEq, Value: value.String("x")}})
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDropTableThenTableExistsIsFalse(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	require.NoError(t, a.CreateTable(ctx, "users", usersMeta()))
	require.NoError(t, a.DropTable(ctx, "users"))

	exists, err := a.TableExists(ctx, "users")
	require.NoError(t, err)
	assert.False(t, exists)
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339Nano, s)
	require.NoError(t, err)
	return parsed
}
