package mysql

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
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
)

func setupMySQLAdapter(t *testing.T) *Adapter {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := tcmysql.Run(ctx, "mysql:8.0",
		tcmysql.WithDatabase("odm_test"),
		tcmysql.WithUsername("root"),
		tcmysql.WithPassword("testpass"),
	)
	require.NoError(t, err, "failed to start mysql container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "parseTime=true")
	require.NoError(t, err)

	a, err := Open("default", Config{DSN: dsn, MaxOpenConns: 5})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func mysqlUsersMeta() *model.ModelMeta {
	maxLen := 120
	return model.NewModelMeta("users", "default", "id", value.IdStrategy{Kind: value.StrategyAutoIncrement}, []struct {
		Name string
		Def  value.FieldDefinition
	}{
		{Name: "id", Def: value.FieldDefinition{Type: value.IntegerType{}}},
		{Name: "name", Def: value.FieldDefinition{Type: value.StringType{MaxLen: &maxLen}, Required: true}},
		{Name: "tags", Def: value.FieldDefinition{Type: value.JsonType{}}},
	}, nil)
}

func TestMySQLCreateTableAndCRUD(t *testing.T) {
	a := setupMySQLAdapter(t)
	ctx := context.Background()
	meta := mysqlUsersMeta()

	require.NoError(t, a.CreateTable(ctx, "users", meta))

	id, err := a.Create(ctx, "users", backend.Record{
		"id":   value.Null(),
		"name": value.String("grace"),
		"tags": value.Array([]value.Value{value.String("admin"), value.String("vip")}),
	})
	require.NoError(t, err)

	rec, found, err := a.FindByID(ctx, "users", id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "grace", rec["name"].String())

	n, err := a.Count(ctx, "users", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	ok, err := a.DeleteByID(ctx, "users", id)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMySQLJsonContainsQuery(t *testing.T) {
	a := setupMySQLAdapter(t)
	ctx := context.Background()
	require.NoError(t, a.CreateTable(ctx, "users", mysqlUsersMeta()))

	_, err := a.Create(ctx, "users", backend.Record{
		"id": value.Null(), "name": value.String("eve"), "tags": value.Array([]value.Value{value.String("vip")}),
	})
	require.NoError(t, err)

	_, err = a.Find(ctx, "users", []backend.QueryCondition{
		{Field: "tags", Operator: backend.OpJsonContains, Value: value.Array([]value.Value{value.String("vip")})},
	}, backend.FindOptions{})
	require.Error(t, err)

	var odmErr *odmerr.Error
	require.True(t, errors.As(err, &odmErr))
	assert.Equal(t, odmerr.KindUnsupportedOperator, odmErr.Kind)
}
