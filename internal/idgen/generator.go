// Package idgen produces fresh primary-key values per a model's IdStrategy:
// AutoIncrement (deferred to the backend), Uuid, Snowflake, ObjectId, and
// CustomPrefix.
package idgen

import (
	"context"

	"github.com/crossdeck/odm/internal/value"
)

// Generator produces a new ID value for the given strategy. AutoIncrement
// returns value.Null() — the adapter relies on the backend to assign the id
// and reports the assigned value back in its response.
type Generator interface {
	Generate(ctx context.Context, strategy value.IdStrategy) (value.Value, error)
}

// Default dispatches to the strategy-specific generator for each
// value.IdStrategyKind. It is stateful only where the strategy demands it:
// the Snowflake path tracks its own last-timestamp/sequence, and the
// CustomPrefix path tracks issued suffixes to avoid collisions within a
// process lifetime.
type Default struct {
	snowflake *snowflakeGenerator
	prefix    *customPrefixGenerator
}

func NewDefault() *Default {
	return &Default{
		snowflake: newSnowflakeGenerator(),
		prefix:    newCustomPrefixGenerator(),
	}
}

func (d *Default) Generate(ctx context.Context, strategy value.IdStrategy) (value.Value, error) {
	switch strategy.Kind {
	case value.StrategyAutoIncrement:
		return generateAutoIncrement(ctx, strategy)
	case value.StrategyUuid:
		return generateUuid(ctx, strategy)
	case value.StrategySnowflake:
		return d.snowflake.generate(ctx, strategy)
	case value.StrategyObjectId:
		return generateObjectId(ctx, strategy)
	case value.StrategyCustomPrefix:
		return d.prefix.generate(ctx, strategy)
	default:
		return value.Null(), nil
	}
}
