package idgen

import (
	"context"
	"sync"
	"time"

	"github.com/crossdeck/odm/internal/odmerr"
	"github.com/crossdeck/odm/internal/value"
)

// snowflakeEpoch is the fixed epoch the 41-bit timestamp field counts
// milliseconds from. The bit layout below (41-bit timestamp, 10-bit
// machine/datacenter, 12-bit sequence) is implemented directly rather
// than pulled from a third-party library.
var snowflakeEpoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

const (
	snowflakeTimestampBits = 41
	snowflakeDatacenterBits = 5
	snowflakeMachineBits    = 5
	snowflakeSequenceBits   = 12

	snowflakeMaxSequence    = (1 << snowflakeSequenceBits) - 1
	snowflakeMachineShift   = snowflakeSequenceBits
	snowflakeDatacenterShift = snowflakeSequenceBits + snowflakeMachineBits
	snowflakeTimestampShift = snowflakeSequenceBits + snowflakeMachineBits + snowflakeDatacenterBits
)

type snowflakeGenerator struct {
	mu            sync.Mutex
	lastTimestamp int64
	sequence      int64
}

func newSnowflakeGenerator() *snowflakeGenerator {
	return &snowflakeGenerator{lastTimestamp: -1}
}

// generate produces a 41-bit-timestamp/5-bit-datacenter/5-bit-machine/
// 12-bit-sequence id. On clock regression it blocks up to one millisecond
// waiting for the clock to catch up, then fails with ClockSkew if it still
// hasn't.
func (g *snowflakeGenerator) generate(ctx context.Context, strategy value.IdStrategy) (value.Value, error) {
	if strategy.DatacenterID < 0 || strategy.DatacenterID >= (1<<snowflakeDatacenterBits) {
		return value.Value{}, odmerr.Newf(odmerr.KindInvalidValue, "datacenter_id %d out of range [0, %d)", strategy.DatacenterID, 1<<snowflakeDatacenterBits)
	}
	if strategy.MachineID < 0 || strategy.MachineID >= (1<<snowflakeMachineBits) {
		return value.Value{}, odmerr.Newf(odmerr.KindInvalidValue, "machine_id %d out of range [0, %d)", strategy.MachineID, 1<<snowflakeMachineBits)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := currentMillis()
	if now < g.lastTimestamp {
		select {
		case <-ctx.Done():
			return value.Value{}, odmerr.Wrap(odmerr.KindCancelled, ctx.Err(), "snowflake generation cancelled while waiting out clock skew")
		case <-time.After(time.Millisecond):
		}
		now = currentMillis()
		if now < g.lastTimestamp {
			return value.Value{}, odmerr.New(odmerr.KindClockSkew, "system clock moved backwards")
		}
	}

	if now == g.lastTimestamp {
		g.sequence = (g.sequence + 1) & snowflakeMaxSequence
		if g.sequence == 0 {
			for now <= g.lastTimestamp {
				now = currentMillis()
			}
		}
	} else {
		g.sequence = 0
	}
	g.lastTimestamp = now

	id := (now << snowflakeTimestampShift) |
		(strategy.DatacenterID << snowflakeDatacenterShift) |
		(strategy.MachineID << snowflakeMachineShift) |
		g.sequence

	return value.Int(id), nil
}

func currentMillis() int64 {
	return time.Since(snowflakeEpoch).Milliseconds()
}
