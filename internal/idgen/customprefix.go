package idgen

import (
	"context"
	"sync"

	"github.com/crossdeck/odm/internal/value"
	"github.com/google/uuid"
)

// customPrefixSuffixLen is the base36-encoded suffix length: 16 random
// bytes hold 128 bits of entropy, slightly more than the ~124 bits
// customPrefixSuffixLen base36 digits (log2(36) * 24 ≈ 124 bits) can
// represent, so truncating EncodeBase36's output to this length still
// leaves collisions vanishingly unlikely within one process's lifetime.
const customPrefixSuffixLen = 24

// customPrefixGenerator produces Prefix + base36-suffix ids, tracking
// issued suffixes in-process to guard against the vanishingly unlikely
// collision: on collision it just retries with a fresh random draw. The
// suffix is base36 rather than a raw UUID string so it reads as a single
// compact token instead of a hyphenated 36-character UUID.
type customPrefixGenerator struct {
	mu     sync.Mutex
	issued map[string]struct{}
}

func newCustomPrefixGenerator() *customPrefixGenerator {
	return &customPrefixGenerator{issued: make(map[string]struct{})}
}

func (g *customPrefixGenerator) generate(ctx context.Context, strategy value.IdStrategy) (value.Value, error) {
	for {
		random, err := uuid.NewRandom()
		if err != nil {
			return value.Value{}, err
		}
		suffix := EncodeBase36(random[:], customPrefixSuffixLen)
		id := strategy.Prefix + suffix

		g.mu.Lock()
		_, collided := g.issued[id]
		if !collided {
			g.issued[id] = struct{}{}
		}
		g.mu.Unlock()

		if !collided {
			return value.String(id), nil
		}
	}
}
