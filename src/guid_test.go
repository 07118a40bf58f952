package zune

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestValidGUID(t *testing.T) {
	assert.True(t, ValidGUID("01234567-89ab-cdef-0123-456789abcdef"))
	assert.False(t, ValidGUID("not-a-guid"))
	assert.False(t, ValidGUID("01234567-89ab-cdef-0123-456789abcde")) // too short
}

func TestIsNullGUID(t *testing.T) {
	assert.True(t, IsNullGUID("00000000-0000-0000-0000-000000000000"))
	assert.True(t, IsNullGUID("00000000-0000-0000-0000-000000000000"))
	assert.False(t, IsNullGUID("01234567-89ab-cdef-0123-456789abcdef"))
}

func TestGuidMixedEndian_RoundTrip(t *testing.T) {
	var guid = "01234567-89ab-cdef-0123-456789abcdef"
	var bytes, err = GuidToMixedEndianBytes(guid)
	require.NoError(t, err)
	assert.Equal(t, guid, MixedEndianBytesToGUID(bytes))
}

func TestGuidMixedEndian_RejectsMalformed(t *testing.T) {
	var _, err = GuidToMixedEndianBytes("garbage")
	assert.Error(t, err)
}

// TestGuidMixedEndian_RoundTrip_Property is the §8 law: for every valid
// GUID string, MixedEndianBytesToGUID(GuidToMixedEndianBytes(g)) == g.
func TestGuidMixedEndian_RoundTrip_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		var hexDigit = rapid.SampledFrom([]rune("0123456789abcdef"))
		var randomHex = func(n int) string {
			var runes = make([]rune, n)
			for i := range runes {
				runes[i] = hexDigit.Draw(rt, "digit")
			}
			return string(runes)
		}
		var guid = randomHex(8) + "-" + randomHex(4) + "-" + randomHex(4) + "-" + randomHex(4) + "-" + randomHex(12)

		var bytes, err = GuidToMixedEndianBytes(guid)
		require.NoError(rt, err)
		assert.Equal(rt, guid, MixedEndianBytesToGUID(bytes))
	})
}
