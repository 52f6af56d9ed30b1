package idgen

import (
	"context"

	"github.com/crossdeck/odm/internal/odmerr"
	"github.com/crossdeck/odm/internal/value"
	"github.com/google/uuid"
)

// generateUuid produces a random (v4) UUID in canonical hyphenated lowercase
// form, matching the ValueDomain invariant that Uuid holds a well-formed
// UUID.
func generateUuid(ctx context.Context, strategy value.IdStrategy) (value.Value, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return value.Value{}, odmerr.Wrap(odmerr.KindInternal, err, "failed to generate uuid")
	}
	return value.Uuid(id.String()), nil
}
