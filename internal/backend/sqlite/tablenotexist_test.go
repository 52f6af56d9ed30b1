package sqlite

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

func TestFindByIDOnMissingCollectionIsTableNotExist(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	_, _, err := a.FindByID(ctx, "missing", value.Int(1))
	require.Error(t, err)

	var odmErr *odmerr.Error
	require.True(t, errors.As(err, &odmErr))
	assert.Equal(t, odmerr.KindTableNotExist, odmErr.Kind)
	assert.Equal(t, "missing", odmErr.Collection)
}

func TestCreateOnMissingCollectionFailsWithoutPriorRegistration(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	_, err := a.Create(ctx, "missing", backend.Record{"name": value.String("x")})
	require.Error(t, err)

	var odmErr *odmerr.Error
	require.True(t, errors.As(err, &odmErr))
	assert.Equal(t, odmerr.KindTableNotExist, odmErr.Kind)
}
