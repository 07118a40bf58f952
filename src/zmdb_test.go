package zune

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildClassicBlob constructs a minimal synthetic ZMDB blob for a classic
// (non-Pavo) family exercising the step-1 direct-read path: one MP3 track
// pointing at album pid 0x0600[1], whose metadata pid 0x0800[1] has a
// pointer that resolves directly to an ASCIIZ album name followed by UTF-16LE artist/alb-reference fields.
func buildClassicBlob() []byte {
	var blob = make([]byte, 900)

	const trackOff = 40
	const albumNamePtr = 200

	binary.LittleEndian.PutUint16(blob[trackOff:], CodecMP3)
	copy(blob[trackOff+4:], append([]byte("Song"), 0))
	blob[trackOff-4] = 2 // track number

	binary.LittleEndian.PutUint32(blob[trackOff-24:], makePid(pidCatAlbum, 1)) // album pid
	binary.LittleEndian.PutUint32(blob[trackOff-20:], 0)                      // ref, unused by direct read

	var nameOff = albumNamePtr + 24
	copy(blob[nameOff:], append([]byte("Geogaddi"), 0))
	var artistOff = nameOff + len("Geogaddi") + 1
	copy(blob[artistOff:], encodeUTF16LE("Boards of Canada--"))
	var refOff = artistOff + len(encodeUTF16LE("Boards of Canada--"))
	copy(blob[refOff:], encodeUTF16LE("Geogaddi.alb"))

	binary.LittleEndian.PutUint32(blob[propertyMapStart:], uint32(albumNamePtr))
	binary.LittleEndian.PutUint32(blob[propertyMapStart+4:], makePid(pidCatMeta, 1))
	// (0,0) terminator follows automatically since blob is zero-initialized.

	return blob
}

func TestZMDBExtractor_Parse_EmptyBlob(t *testing.T) {
	var e = ZMDBExtractor{Family: ZMDBKeel}
	var lib, err = e.Parse(nil)
	require.NoError(t, err)
	require.NotNil(t, lib)
	assert.Empty(t, lib.Tracks)
}

func TestZMDBExtractor_Parse_ClassicDirectRead(t *testing.T) {
	var blob = buildClassicBlob()
	var e = ZMDBExtractor{Family: ZMDBKeel, TrackScanStart: 16}

	var lib, err = e.Parse(blob)
	require.NoError(t, err)

	require.Len(t, lib.Albums, 1)
	require.Len(t, lib.Artists, 1)
	require.Len(t, lib.Tracks, 1)

	var album = lib.Albums[1]
	assert.Equal(t, "Geogaddi", album.Title)
	assert.Equal(t, "Boards of Canada", album.ArtistName)
	assert.Equal(t, "Boards of Canada--Geogaddi.alb", album.AlbReference)

	var artist = lib.Artists[1]
	assert.Equal(t, "Boards of Canada", artist.Name)

	var track = lib.Tracks[1]
	assert.Equal(t, "Song", track.Title)
	assert.Equal(t, uint16(2), track.TrackNumber)
	assert.Equal(t, CodecMP3, track.CodecTag)
	assert.Equal(t, album.AtomID, track.AlbumRef)
}

func TestZMDBExtractor_Parse_MissingAlbumMetadataOmitsAlbum(t *testing.T) {
	var blob = buildClassicBlob()
	// Corrupt the property map pointer so step 1 (and every fallback) fails.
	binary.LittleEndian.PutUint32(blob[propertyMapStart:], 0)
	var e = ZMDBExtractor{Family: ZMDBKeel, TrackScanStart: 16}

	var lib, err = e.Parse(blob)
	require.NoError(t, err)
	assert.Empty(t, lib.Albums)
	assert.Empty(t, lib.Tracks)
}

func TestMakePid_CategoryAndIndex(t *testing.T) {
	var pid = makePid(pidCatAlbum, 5)
	assert.Equal(t, pidCatAlbum, pidCategory(pid))
	assert.Equal(t, uint32(5), pidIndex(pid))
}

func TestMatchesFMarker(t *testing.T) {
	var b = []byte{0x11, 0x22, 0x00, 0x46}
	assert.True(t, matchesFMarker(b, 0))
	assert.False(t, matchesFMarker([]byte{0x11, 0x22, 0x01, 0x46}, 0))
}
