package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeBase36PadsToExactLength(t *testing.T) {
	got := EncodeBase36([]byte{0x00, 0x01}, 8)
	assert.Len(t, got, 8)
	assert.Equal(t, "00000001", got)
}

func TestEncodeBase36TruncatesKeepingLeastSignificantDigits(t *testing.T) {
	got := EncodeBase36([]byte{0xff, 0xff, 0xff, 0xff}, 3)
	assert.Len(t, got, 3)
}

func TestEncodeBase36OnlyUsesBase36Alphabet(t *testing.T) {
	got := EncodeBase36([]byte{0xde, 0xad, 0xbe, 0xef, 0x01, 0x23}, 16)
	for _, r := range got {
		assert.Contains(t, base36Alphabet, string(r))
	}
}

func TestEncodeBase36ZeroBytesIsAllZeroDigits(t *testing.T) {
	got := EncodeBase36([]byte{0x00, 0x00}, 4)
	assert.Equal(t, "0000", got)
}
