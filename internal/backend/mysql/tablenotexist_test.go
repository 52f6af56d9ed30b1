package mysql

import (
	"context"
	"errors"
	"testing"

	"github.com/crossdeck/odm/internal/backend"
	"github.com/crossdeck/odm/internal/odmerr"
	"github.com/crossdeck/odm/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMySQLFindByIDOnMissingCollectionIsTableNotExist(t *testing.T) {
	a := setupMySQLAdapter(t)
	ctx := context.Background()

	_, _, err := a.FindByID(ctx, "missing", value.Int(1))
	require.Error(t, err)

	var odmErr *odmerr.Error
	require.True(t, errors.As(err, &odmErr))
	assert.Equal(t, odmerr.KindTableNotExist, odmErr.Kind)
}

func TestMySQLCreateOnMissingCollectionFailsWithoutPriorRegistration(t *testing.T) {
	a := setupMySQLAdapter(t)
	ctx := context.Background()

	_, err := a.Create(ctx, "missing", backend.Record{"name": value.String("x")})
	require.Error(t, err)

	var odmErr *odmerr.Error
	require.True(t, errors.As(err, &odmErr))
	assert.Equal(t, odmerr.KindTableNotExist, odmErr.Kind)
}
