package mongo

import (
	"context"
	"testing"

	"github.com/crossdeck/odm/internal/backend"
	"github.com/crossdeck/odm/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// S3 — ObjectId parity: under MongoDB, create then find_by_id returns an
// ObjectId value that round-trips through update_by_id unchanged.
func TestMongoObjectIdParity(t *testing.T) {
	a := setupMongoAdapter(t)
	ctx := context.Background()
	require.NoError(t, a.CreateTable(ctx, "users", mongoUsersMeta()))

	id, err := a.Create(ctx, "users", backend.Record{"name": value.String("turing")})
	require.NoError(t, err)
	require.Equal(t, value.KindObjectId, id.Kind())

	rec, found, err := a.FindByID(ctx, "users", id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "turing", rec["name"].String())

	ok, err := a.UpdateByID(ctx, "users", id, backend.Record{"name": value.String("church")})
	require.NoError(t, err)
	assert.True(t, ok)

	rec, found, err = a.FindByID(ctx, "users", id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "church", rec["name"].String())
	assert.Equal(t, value.KindObjectId, rec["id"].Kind())
}
