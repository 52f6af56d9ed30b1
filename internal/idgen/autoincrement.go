package idgen

import (
	"context"

	"github.com/crossdeck/odm/internal/value"
)

// generateAutoIncrement defers id assignment to the backend: the adapter
// omits the id column/field on insert and reports the backend-assigned
// value back in its response.
func generateAutoIncrement(ctx context.Context, strategy value.IdStrategy) (value.Value, error) {
	return value.Null(), nil
}
