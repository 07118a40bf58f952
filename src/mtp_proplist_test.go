package zune

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestBuildTrackPropList_FieldOrderAndDiscNumberAlwaysZero(t *testing.T) {
	var props = BuildTrackPropList("track.mp3", "Geogaddi", "Boards of Canada", "Gyroscope", "Boards of Canada", "Electronic", 180000, 2, 2002)
	require.Len(t, props, 13)
	assert.Equal(t, PropObjectFilename, props[0].Code)
	assert.Equal(t, PropDiscNumberCode, props[6].Code)
	assert.Equal(t, uint16(0), props[6].U16)
	assert.Equal(t, PropDateAuthoredCode, props[12].Code)
	assert.Equal(t, "20020101T160000.0", props[12].Str)
}

func TestBuildPlaylistPropList(t *testing.T) {
	var props, err = BuildPlaylistPropList("Road Trip", "01234567-89ab-cdef-0123-456789abcdef")
	require.NoError(t, err)
	require.Len(t, props, 4)
	assert.Equal(t, "Road Trip.pla", props[1].Str)
	assert.Equal(t, PropTypeUUID128, props[2].Type)
}

func TestBuildPlaylistPropList_BadGUID(t *testing.T) {
	var _, err = BuildPlaylistPropList("x", "not-a-guid")
	assert.Error(t, err)
}

func TestPropList_SerializeParse_RoundTrip(t *testing.T) {
	var props = BuildTrackPropList("a.mp3", "Album", "AlbumArtist", "Title", "Artist", "Genre", 12345, 3, 1999)
	var data = SerializePropList(props)
	var got, err = ParsePropList(data)
	require.NoError(t, err)
	assert.Equal(t, props, got)
}

func TestPropList_SerializeParse_RoundTrip_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		var n = rapid.IntRange(0, 8).Draw(rt, "n")
		var props = make([]PropValue, n)
		for i := range props {
			var typ = rapid.SampledFrom([]PropType{PropTypeUint8, PropTypeUint16, PropTypeUint32, PropTypeString}).Draw(rt, "type")
			var p = PropValue{Code: rapid.Uint16().Draw(rt, "code"), Type: typ}
			switch typ {
			case PropTypeUint8:
				p.U8 = rapid.Uint8().Draw(rt, "u8")
			case PropTypeUint16:
				p.U16 = rapid.Uint16().Draw(rt, "u16")
			case PropTypeUint32:
				p.U32 = rapid.Uint32().Draw(rt, "u32")
			case PropTypeString:
				p.Str = rapid.StringOfN(rapid.RuneFrom([]rune("abcXYZ123")), 0, 20, -1).Draw(rt, "str")
			}
			props[i] = p
		}

		var data = SerializePropList(props)
		var got, err = ParsePropList(data)
		require.NoError(rt, err)
		assert.Equal(rt, props, got)
	})
}

func TestParsePropList_TruncatedRejected(t *testing.T) {
	var _, err = ParsePropList([]byte{1, 0, 0})
	assert.Error(t, err)
}
