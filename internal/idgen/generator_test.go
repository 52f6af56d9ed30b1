package idgen

import (
	"context"
	"regexp"
	"testing"

	"github.com/crossdeck/odm/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var objectIDPattern = regexp.MustCompile(`^[0-9a-f]{24}$`)
var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func TestGenerateAutoIncrementReturnsNull(t *testing.T) {
	g := NewDefault()
	v, err := g.Generate(context.Background(), value.IdStrategy{Kind: value.StrategyAutoIncrement})
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestGenerateUuidIsWellFormed(t *testing.T) {
	g := NewDefault()
	v, err := g.Generate(context.Background(), value.IdStrategy{Kind: value.StrategyUuid})
	require.NoError(t, err)
	s, ok := v.AsString()
	require.True(t, ok)
	assert.Regexp(t, uuidPattern, s)
}

func TestGenerateObjectIdIs24Hex(t *testing.T) {
	g := NewDefault()
	v, err := g.Generate(context.Background(), value.IdStrategy{Kind: value.StrategyObjectId})
	require.NoError(t, err)
	s, ok := v.AsString()
	require.True(t, ok)
	assert.Regexp(t, objectIDPattern, s)
}

func TestGenerateObjectIdCounterIncrements(t *testing.T) {
	g := NewDefault()
	v1, err := g.Generate(context.Background(), value.IdStrategy{Kind: value.StrategyObjectId})
	require.NoError(t, err)
	v2, err := g.Generate(context.Background(), value.IdStrategy{Kind: value.StrategyObjectId})
	require.NoError(t, err)
	assert.False(t, v1.Equal(v2))
}

func TestGenerateSnowflakeIsPositiveAndMonotonic(t *testing.T) {
	g := NewDefault()
	strategy := value.IdStrategy{Kind: value.StrategySnowflake, MachineID: 1, DatacenterID: 2}

	var last int64
	for i := 0; i < 100; i++ {
		v, err := g.Generate(context.Background(), strategy)
		require.NoError(t, err)
		n, ok := v.AsInt()
		require.True(t, ok)
		assert.Greater(t, n, int64(0))
		assert.Greater(t, n, last)
		last = n
	}
}

func TestGenerateSnowflakeRejectsOutOfRangeIDs(t *testing.T) {
	g := NewDefault()
	_, err := g.Generate(context.Background(), value.IdStrategy{Kind: value.StrategySnowflake, MachineID: 99, DatacenterID: 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InvalidValue")
}

var customPrefixSuffixPattern = regexp.MustCompile(`^usr_[0-9a-z]{24}$`)

func TestGenerateCustomPrefix(t *testing.T) {
	g := NewDefault()
	v, err := g.Generate(context.Background(), value.IdStrategy{Kind: value.StrategyCustomPrefix, Prefix: "usr_"})
	require.NoError(t, err)
	s, ok := v.AsString()
	require.True(t, ok)
	assert.Contains(t, s, "usr_")
	assert.Regexp(t, customPrefixSuffixPattern, s, "suffix should be a base36 token, not a raw hyphenated UUID")
}

func TestGenerateCustomPrefixNeverCollides(t *testing.T) {
	g := NewDefault()
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		v, err := g.Generate(context.Background(), value.IdStrategy{Kind: value.StrategyCustomPrefix, Prefix: "p_"})
		require.NoError(t, err)
		s, _ := v.AsString()
		_, dup := seen[s]
		require.False(t, dup)
		seen[s] = struct{}{}
	}
}
