package zune

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestReadASCIIZ(t *testing.T) {
	var b = []byte("hello\x00world")
	var s, end, ok = readASCIIZ(b, 0)
	assert.True(t, ok)
	assert.Equal(t, "hello", s)
	assert.Equal(t, 6, end)
}

func TestReadASCIIZ_NoTerminator(t *testing.T) {
	var _, _, ok = readASCIIZ([]byte("noterm"), 0)
	assert.False(t, ok)
}

func TestReadUTF16LEZ(t *testing.T) {
	var b = []byte{'A', 0, 'B', 0, 0, 0}
	var s, end, ok = readUTF16LEZ(b, 0)
	assert.True(t, ok)
	assert.Equal(t, "AB", s)
	assert.Equal(t, 6, end)
}

func TestReadUTF16LEUntil_Suffix(t *testing.T) {
	var b = encodeUTF16LE("Artist--")
	b = append(b, 0, 0)
	var s, _, ok = readUTF16LEUntil(b, 0, "--")
	assert.True(t, ok)
	assert.Equal(t, "Artist--", s)
}

func TestReadUTF16LEUntil_HitsZeroBeforeSuffixFails(t *testing.T) {
	var b = encodeUTF16LE("NoSuffixHere")
	b = append(b, 0, 0)
	var _, _, ok = readUTF16LEUntil(b, 0, "--")
	assert.False(t, ok)
}

func TestFiletime_RoundTrip(t *testing.T) {
	var original = time.Date(2010, time.March, 15, 12, 30, 0, 0, time.UTC)
	var ft = timeToFiletime(original)
	var roundTripped = filetimeToTime(ft)
	assert.WithinDuration(t, original, roundTripped, time.Microsecond)
}

func TestFiletime_RoundTrip_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		var unixSeconds = rapid.Int64Range(0, 4102444800).Draw(rt, "unixSeconds") // 1970-2100
		var original = time.Unix(unixSeconds, 0).UTC()
		var roundTripped = filetimeToTime(timeToFiletime(original))
		assert.True(rt, original.Equal(roundTripped))
	})
}
