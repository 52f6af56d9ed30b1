package postgres

import (
	"context"
	"testing"

	"github.com/crossdeck/odm/internal/backend"
	"github.com/crossdeck/odm/internal/model"
	"github.com/crossdeck/odm/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func setupPostgresAdapter(t *testing.T) *Adapter {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("odm_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("testpass"),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	a, err := Open(ctx, "default", Config{URL: url, MaxOpenConns: 5})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func postgresUsersMeta() *model.ModelMeta {
	return model.NewModelMeta("users", "default", "id", value.IdStrategy{Kind: value.StrategyUuid}, []struct {
		Name string
		Def  value.FieldDefinition
	}{
		{Name: "id", Def: value.FieldDefinition{Type: value.UuidType{}}},
		{Name: "name", Def: value.FieldDefinition{Type: value.StringType{}, Required: true}},
		{Name: "profile", Def: value.FieldDefinition{Type: value.JsonType{}}},
	}, nil)
}

func TestPostgresCreateTableAndCRUD(t *testing.T) {
	a := setupPostgresAdapter(t)
	ctx := context.Background()
	require.NoError(t, a.CreateTable(ctx, "users", postgresUsersMeta()))

	id, err := a.Create(ctx, "users", backend.Record{
		"id":      value.Uuid("11111111-1111-4111-8111-111111111111"),
		"name":    value.String("hopper"),
		"profile": value.Object(map[string]value.Value{"team": value.String("navy")}),
	})
	require.NoError(t, err)

	rec, found, err := a.FindByID(ctx, "users", id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "hopper", rec["name"].String())
}

func TestPostgresJsonContainsQuery(t *testing.T) {
	a := setupPostgresAdapter(t)
	ctx := context.Background()
	require.NoError(t, a.CreateTable(ctx, "users", postgresUsersMeta()))

	_, err := a.Create(ctx, "users", backend.Record{
		"id": value.Uuid("22222222-2222-4222-8222-222222222222"), "name": value.String("turing"),
		"profile": value.Object(map[string]value.Value{"team": value.String("codebreakers")}),
	})
	require.NoError(t, err)

	recs, err := a.Find(ctx, "users", []backend.QueryCondition{
		{Field: "profile", Operator: backend.OpJsonContains, Value: value.Object(map[string]value.Value{"team": value.String("codebreakers")})},
	}, backend.FindOptions{})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}
