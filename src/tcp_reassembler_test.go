package zune

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestReassembler_InOrderPassthrough(t *testing.T) {
	var r = NewReassembler(1000)
	assert.Equal(t, []byte("abc"), r.Insert(1000, []byte("abc")))
	assert.Equal(t, []byte("def"), r.Insert(1003, []byte("def")))
	assert.Equal(t, uint32(1006), r.NextSeq())
}

func TestReassembler_OutOfOrderBuffersThenDrains(t *testing.T) {
	var r = NewReassembler(1000)
	assert.Empty(t, r.Insert(1003, []byte("def")))
	assert.Equal(t, []byte("abcdef"), r.Insert(1000, []byte("abc")))
	assert.Equal(t, uint32(1006), r.NextSeq())
}

func TestReassembler_DuplicateSegmentIgnored(t *testing.T) {
	var r = NewReassembler(1000)
	require.Equal(t, []byte("abc"), r.Insert(1000, []byte("abc")))
	assert.Empty(t, r.Insert(1000, []byte("abc")))
}

func TestReassembler_OverlappingSegmentTrimmed(t *testing.T) {
	var r = NewReassembler(1000)
	require.Equal(t, []byte("abc"), r.Insert(1000, []byte("abc")))
	// Retransmission that repeats "bc" and adds new "def".
	assert.Equal(t, []byte("def"), r.Insert(1001, []byte("bcdef")))
}

func TestReassembler_SequenceWraparound(t *testing.T) {
	var r = NewReassembler(0xFFFFFFFE)
	assert.Equal(t, []byte("xy"), r.Insert(0xFFFFFFFE, []byte("xy")))
	assert.Equal(t, []byte("z"), r.Insert(0, []byte("z")))
	assert.Equal(t, uint32(1), r.NextSeq())
}

// TestReassembler_OrderingLaw is the §8 law: feeding any permutation of a
// message's non-overlapping segments through Insert always yields the
// original bytes in order, exactly once.
func TestReassembler_OrderingLaw(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		var chunkCount = rapid.IntRange(1, 12).Draw(rt, "chunkCount")
		var chunks = make([][]byte, chunkCount)
		var full []byte
		var seq = uint32(rapid.Uint32().Draw(rt, "initialSeq"))
		var offsets = make([]uint32, chunkCount)

		for i := 0; i < chunkCount; i++ {
			var n = rapid.IntRange(1, 8).Draw(rt, "chunkLen")
			var chunk = make([]byte, n)
			for j := range chunk {
				chunk[j] = byte(rapid.IntRange(0, 255).Draw(rt, "byte"))
			}
			chunks[i] = chunk
			offsets[i] = seq + uint32(len(full))
			full = append(full, chunk...)
		}

		var order = rapid.Permutation(indexRange(chunkCount)).Draw(rt, "order")

		var reassembler = NewReassembler(seq)
		var got []byte
		for _, idx := range order {
			got = append(got, reassembler.Insert(offsets[idx], chunks[idx])...)
		}

		assert.Equal(rt, full, got)
		assert.Equal(rt, seq+uint32(len(full)), reassembler.NextSeq())
	})
}

func indexRange(n int) []int {
	var out = make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestReassembler_RandomizedShuffle(t *testing.T) {
	var r = NewReassembler(500)
	var data = []byte("the quick brown fox jumps over the lazy dog")
	var seq = uint32(500)
	var chunks [][]byte
	var offs []uint32
	for i := 0; i < len(data); i += 5 {
		var end = i + 5
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[i:end])
		offs = append(offs, seq+uint32(i))
	}

	var idx = rand.Perm(len(chunks))
	var got []byte
	for _, i := range idx {
		got = append(got, r.Insert(offs[i], chunks[i])...)
	}
	assert.Equal(t, data, got)
}
