package idgen

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"sync/atomic"
	"time"

	"github.com/crossdeck/odm/internal/odmerr"
	"github.com/crossdeck/odm/internal/value"
)

// processRandom is the 5-byte value randomized once per process, shared by
// every ObjectId this process mints, mirroring the MongoDB ObjectId layout:
// 4-byte seconds since epoch, 5-byte process-random, 3-byte counter.
var processRandom = mustProcessRandom()

var objectIDCounter uint32

func mustProcessRandom() [5]byte {
	var b [5]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("idgen: failed to seed process-random ObjectId bytes: " + err.Error())
	}
	return b
}

// generateObjectId builds a 24-hex-character ObjectId, the storage form
// non-Mongo backends use for value.KindObjectId.
func generateObjectId(ctx context.Context, strategy value.IdStrategy) (value.Value, error) {
	var buf [12]byte

	secs := uint32(time.Now().Unix())
	binary.BigEndian.PutUint32(buf[0:4], secs)
	copy(buf[4:9], processRandom[:])

	count := atomic.AddUint32(&objectIDCounter, 1)
	buf[9] = byte(count >> 16)
	buf[10] = byte(count >> 8)
	buf[11] = byte(count)

	encoded := hex.EncodeToString(buf[:])
	if len(encoded) != 24 {
		return value.Value{}, odmerr.New(odmerr.KindInternal, "generated ObjectId is not 24 hex characters")
	}
	return value.ObjectId(encoded), nil
}
