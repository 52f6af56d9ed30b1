package cache

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
)

// l2 is the optional persistent tier: one file per fingerprint at
// {cache_dir}/<shard>/<hex(key)>.blob, compressed with zstd above
// CompressionThresholdBytes. A hit promotes into L1 (handled by Cache, not
// here).
type l2 struct {
	dir       string
	threshold int64

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

const l2ShardCount = 256

// blob layout: 1 byte compressed-flag, 8 bytes unix-nano expiry (0 = no
// expiry), then payload.
const l2HeaderSize = 9

func newL2(cfg Config) (*l2, error) {
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &l2{dir: cfg.CacheDir, threshold: cfg.CompressionThresholdBytes, encoder: enc, decoder: dec}, nil
}

func (c *l2) path(key string) string {
	shard := key
	if len(shard) > 2 {
		shard = shard[:2]
	}
	return filepath.Join(c.dir, shard, key+".blob")
}

func (c *l2) Get(key string) ([]byte, time.Time, bool) {
	data, err := os.ReadFile(c.path(key))
	if err != nil || len(data) < l2HeaderSize {
		return nil, time.Time{}, false
	}

	compressed := data[0] == 1
	expiryNano := int64(binary.BigEndian.Uint64(data[1:9]))
	var expiresAt time.Time
	if expiryNano != 0 {
		expiresAt = time.Unix(0, expiryNano)
		if time.Now().After(expiresAt) {
			_ = os.Remove(c.path(key))
			return nil, time.Time{}, false
		}
	}

	payload := data[l2HeaderSize:]
	if compressed {
		decoded, err := c.decoder.DecodeAll(payload, nil)
		if err != nil {
			return nil, time.Time{}, false
		}
		payload = decoded
	}
	return payload, expiresAt, true
}

func (c *l2) Set(key string, payload []byte, ttl time.Duration) error {
	compressed := false
	out := payload
	if c.threshold > 0 && int64(len(payload)) >= c.threshold {
		out = c.encoder.EncodeAll(payload, nil)
		compressed = true
	}

	var expiryNano int64
	if ttl > 0 {
		expiryNano = time.Now().Add(ttl).UnixNano()
	}

	buf := bytes.NewBuffer(make([]byte, 0, l2HeaderSize+len(out)))
	if compressed {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	var expiryBytes [8]byte
	binary.BigEndian.PutUint64(expiryBytes[:], uint64(expiryNano))
	buf.Write(expiryBytes[:])
	buf.Write(out)

	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func (c *l2) Delete(key string) {
	_ = os.Remove(c.path(key))
}

func (c *l2) Close() {
	c.encoder.Close()
	c.decoder.Close()
}
