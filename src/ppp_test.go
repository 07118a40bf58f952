package zune

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestFramePPP_RoundTrip(t *testing.T) {
	var payload = []byte{0x45, 0x00, 0x00, 0x1c, 0x7e, 0x7d, 0x01, 0x02}
	var frame = FramePPP(payload, ProtoIPv4)

	var decoded, err = UnframePPP(frame)
	require.NoError(t, err)
	assert.Equal(t, ProtoIPv4, decoded.Protocol)
	assert.Equal(t, payload, decoded.Payload)
}

// TestFramePPP_RoundTrip_Property is the quantified round-trip law from
// §8: unframe(frame(X, P)) = (X, P), including when X contains 0x7E, 0x7D,
// and bytes below 0x20.
func TestFramePPP_RoundTrip_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		var payload = rapid.SliceOf(rapid.Byte()).Draw(rt, "payload")
		var protocol = rapid.Uint16().Draw(rt, "protocol")

		var frame = FramePPP(payload, protocol)
		var decoded, err = UnframePPP(frame)
		require.NoError(rt, err)

		assert.Equal(rt, protocol, decoded.Protocol)
		if len(payload) == 0 {
			assert.Empty(rt, decoded.Payload)
		} else {
			assert.Equal(rt, payload, decoded.Payload)
		}
	})
}

func TestPPPFramer_MultipleFramesPerRead(t *testing.T) {
	var f PPPFramer

	var frame1 = FramePPP([]byte{0x01, 0x02}, ProtoIPv4)
	var frame2 = FramePPP([]byte{0x03}, ProtoIPCP)

	// Two frames concatenated, each with its own opening and closing flag:
	// the framer must extract both from a single Feed call.
	var chunk = append(append([]byte{}, frame1...), frame2...)

	var frames = f.Feed(chunk)
	require.Len(t, frames, 2)
	assert.Equal(t, ProtoIPv4, frames[0].Protocol)
	assert.Equal(t, []byte{0x01, 0x02}, frames[0].Payload)
	assert.Equal(t, ProtoIPCP, frames[1].Protocol)
	assert.Equal(t, []byte{0x03}, frames[1].Payload)
}

func TestPPPFramer_SplitAcrossReads(t *testing.T) {
	var f PPPFramer

	var frame = FramePPP([]byte{0xAA, 0xBB, 0xCC, 0xDD}, ProtoIPv4)
	require.True(t, len(frame) > 4)

	var split = len(frame) / 2
	var first = f.Feed(frame[:split])
	assert.Empty(t, first, "no frame should complete before the closing flag arrives")

	var second = f.Feed(frame[split:])
	require.Len(t, second, 1)
	assert.Equal(t, ProtoIPv4, second[0].Protocol)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC, 0xDD}, second[0].Payload)
}

func TestPPPFramer_DropsMalformedFrame(t *testing.T) {
	var f PPPFramer

	var good = FramePPP([]byte{0x01}, ProtoIPv4)
	var corrupt = append([]byte{}, good...)
	corrupt[len(corrupt)-3] ^= 0xFF // flip a byte inside the stuffed FCS

	var frames = f.Feed(corrupt)
	assert.Empty(t, frames)
}

func TestPPPFramer_EmptyKeepaliveFlagsSkipped(t *testing.T) {
	var f PPPFramer

	var frame = FramePPP([]byte{0x09}, ProtoIPv4)
	// Prepend extra bare flags (common line-idle filler); they must not
	// produce spurious empty frames.
	var chunk = append([]byte{pppFlag, pppFlag}, frame...)

	var frames = f.Feed(chunk)
	require.Len(t, frames, 1)
	assert.Equal(t, []byte{0x09}, frames[0].Payload)
}

func TestEncodeDecodeProtocol_Compression(t *testing.T) {
	assert.Equal(t, []byte{0x21}, encodeProtocol(ProtoIPv4))

	var protocol, rest, ok = decodeProtocol([]byte{0x21, 0xFF})
	require.True(t, ok)
	assert.Equal(t, ProtoIPv4, protocol)
	assert.Equal(t, []byte{0xFF}, rest)

	assert.Equal(t, []byte{0x80, 0x21}, encodeProtocol(ProtoIPCP))
	protocol, rest, ok = decodeProtocol([]byte{0x80, 0x21, 0xFF})
	require.True(t, ok)
	assert.Equal(t, ProtoIPCP, protocol)
	assert.Equal(t, []byte{0xFF}, rest)
}
