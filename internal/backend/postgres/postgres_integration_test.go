package postgres

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
)

func articlesMeta() *model.ModelMeta {
	return model.NewModelMeta("articles", "default", "id", value.IdStrategy{Kind: value.StrategyUuid}, []struct {
		Name string
		Def  value.FieldDefinition
	}{
		{Name: "id", Def: value.FieldDefinition{Type: value.UuidType{}}},
		{Name: "author_id", Def: value.FieldDefinition{Type: value.UuidType{}}},
		{Name: "title", Def: value.FieldDefinition{Type: value.StringType{}}},
	}, nil)
}

// S2 — UUID coercion on Postgres: a well-formed string UUID round-trips
// through native UUID columns, while a malformed one fails fast with
// InvalidValue rather than being silently stored as text.
func TestPostgresUuidCoercion(t *testing.T) {
	a := setupPostgresAdapter(t)
	ctx := context.Background()
	require.NoError(t, a.CreateTable(ctx, "articles", articlesMeta()))

	authorID := "550e8400-e29b-41d4-a716-446655440000"
	id, err := a.Create(ctx, "articles", backend.Record{
		"id":        value.Uuid("660e8400-e29b-41d4-a716-446655440000"),
		"author_id": value.Uuid(authorID),
		"title":     value.String("on distributed systems"),
	})
	require.NoError(t, err)
	require.False(t, id.IsNull())

	recs, err := a.Find(ctx, "articles", []backend.QueryCondition{
		{Field: "author_id", Operator: backend.OpEq, Value: value.Uuid(authorID)},
	}, backend.FindOptions{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, authorID, recs[0]["author_id"].String())

	_, err = a.Create(ctx, "articles", backend.Record{
		"id":        value.Uuid("770e8400-e29b-41d4-a716-446655440000"),
		"author_id": value.Uuid("not-a-uuid"),
		"title":     value.String("broken"),
	})
	require.Error(t, err)

	var odmErr *odmerr.Error
	require.True(t, errors.As(err, &odmErr))
	assert.Equal(t, odmerr.KindInvalidValue, odmErr.Kind)
}
