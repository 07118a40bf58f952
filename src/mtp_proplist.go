package zune

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/lestrrat-go/strftime"
)

// MTP object property codes used by the track and playlist property lists.
// Object-filename and Name are the standard PTP/MTP codes; the rest are
// vendor/extension codes the device expects in a fixed order (see
// UploadTrack step 5 and BuildPlaylistPropList).
const (
	PropZuneCollectionIDCode uint16 = 0xD901
	PropMetaGenreCode        uint16 = 0xD902
	PropZuneDAB2Code         uint16 = 0xDAB2
	PropAlbumNameCode        uint16 = 0xD903
	PropAlbumArtistCode      uint16 = 0xD904
	PropDiscNumberCode       uint16 = 0xD905
	PropTrackNameCode        uint16 = 0xD906
	PropDurationMSCode       uint16 = 0xDA44
	PropTrackNumberCode      uint16 = 0xD907
	PropArtistCode           uint16 = 0xD908
	PropGenreCode            uint16 = 0xD909
	PropDateAuthoredCode     uint16 = 0xD90A
	PropContentTypeUUIDCode  uint16 = 0xD90B
)

// PropType identifies how a PropValue.Value is encoded on the wire.
type PropType uint16

const (
	PropTypeUint8   PropType = 0x0002
	PropTypeUint16  PropType = 0x0004
	PropTypeUint32  PropType = 0x0006
	PropTypeString  PropType = 0xFFFF
	PropTypeUUID128 PropType = 0x0008
)

// PropValue is one (code, type, value) triple in an MTP property list.
type PropValue struct {
	Code uint16
	Type PropType
	U8   uint8
	U16  uint16
	U32  uint32
	Str  string
	U128 [16]byte
}

// dateAuthoredYearLayout extracts just the year component; the remainder
// of the wire format ("0101T160000.0") is fixed regardless of the actual
// authoring date, per §4.2 step 5.
const dateAuthoredYearLayout = "%Y"

// FormatDateAuthored renders the date-authored track property for year y.
func FormatDateAuthored(y int) string {
	var t = time.Date(y, time.January, 1, 16, 0, 0, 0, time.UTC)
	var yearStr, err = strftime.Format(dateAuthoredYearLayout, t)
	if err != nil {
		// The layout is a compile-time constant; a format failure here is a
		// programming error, not a runtime condition callers can recover from.
		panic(err)
	}
	return yearStr + "0101T160000.0"
}

// BuildTrackPropList returns the 13 track properties in the fixed order
// step 5 of UploadTrack requires.
func BuildTrackPropList(filename, albumName, albumArtist, trackName, artist, genre string, durationMS uint32, trackNumber uint16, year int) []PropValue {
	return []PropValue{
		{Code: PropObjectFilename, Type: PropTypeString, Str: filename},
		{Code: PropZuneCollectionIDCode, Type: PropTypeUint8, U8: 0},
		{Code: PropMetaGenreCode, Type: PropTypeUint16, U16: 1},
		{Code: PropZuneDAB2Code, Type: PropTypeUint8, U8: 0},
		{Code: PropAlbumNameCode, Type: PropTypeString, Str: albumName},
		{Code: PropAlbumArtistCode, Type: PropTypeString, Str: albumArtist},
		{Code: PropDiscNumberCode, Type: PropTypeUint16, U16: 0}, // wire value always 0
		{Code: PropTrackNameCode, Type: PropTypeString, Str: trackName},
		{Code: PropDurationMSCode, Type: PropTypeUint32, U32: durationMS},
		{Code: PropTrackNumberCode, Type: PropTypeUint16, U16: trackNumber},
		{Code: PropArtistCode, Type: PropTypeString, Str: artist},
		{Code: PropGenreCode, Type: PropTypeString, Str: genre},
		{Code: PropDateAuthoredCode, Type: PropTypeString, Str: FormatDateAuthored(year)},
	}
}

// BuildPlaylistPropList returns the 4 playlist properties: collection id,
// filename, content-type UUID (mixed-endian, see guid.go), and name.
func BuildPlaylistPropList(name, guid string) ([]PropValue, error) {
	var uuidBytes, err = GuidToMixedEndianBytes(guid)
	if err != nil {
		return nil, fmt.Errorf("BuildPlaylistPropList: %w", err)
	}

	return []PropValue{
		{Code: PropZuneCollectionIDCode, Type: PropTypeUint8, U8: 0},
		{Code: PropObjectFilename, Type: PropTypeString, Str: name + ".pla"},
		{Code: PropContentTypeUUIDCode, Type: PropTypeUUID128, U128: uuidBytes},
		{Code: PropName, Type: PropTypeString, Str: name},
	}, nil
}

// SerializePropList encodes props into the wire format a SendObjectPropList
// call carries: a u32 element count, then per element a u16 code, u16 type,
// and a type-tagged value (u8/u16/u32 raw, string as a u32 UTF-16LE
// byte-length prefix followed by the code units, UUID128 as 16 raw bytes).
func SerializePropList(props []PropValue) []byte {
	var buf = make([]byte, 0, 64)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(props)))

	for _, p := range props {
		buf = binary.LittleEndian.AppendUint16(buf, p.Code)
		buf = binary.LittleEndian.AppendUint16(buf, uint16(p.Type))

		switch p.Type {
		case PropTypeUint8:
			buf = append(buf, p.U8)
		case PropTypeUint16:
			buf = binary.LittleEndian.AppendUint16(buf, p.U16)
		case PropTypeUint32:
			buf = binary.LittleEndian.AppendUint32(buf, p.U32)
		case PropTypeString:
			var utf16 = encodeUTF16LE(p.Str)
			buf = binary.LittleEndian.AppendUint32(buf, uint32(len(utf16)))
			buf = append(buf, utf16...)
		case PropTypeUUID128:
			buf = append(buf, p.U128[:]...)
		}
	}

	return buf
}

// ParsePropList is the inverse of SerializePropList.
func ParsePropList(data []byte) ([]PropValue, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("ParsePropList: truncated count")
	}
	var count = binary.LittleEndian.Uint32(data)
	var off = 4

	var props = make([]PropValue, 0, count)
	for i := uint32(0); i < count; i++ {
		if off+4 > len(data) {
			return nil, fmt.Errorf("ParsePropList: truncated header at element %d", i)
		}
		var code = binary.LittleEndian.Uint16(data[off:])
		var typ = PropType(binary.LittleEndian.Uint16(data[off+2:]))
		off += 4

		var p = PropValue{Code: code, Type: typ}
		switch typ {
		case PropTypeUint8:
			if off+1 > len(data) {
				return nil, fmt.Errorf("ParsePropList: truncated u8")
			}
			p.U8 = data[off]
			off++
		case PropTypeUint16:
			if off+2 > len(data) {
				return nil, fmt.Errorf("ParsePropList: truncated u16")
			}
			p.U16 = binary.LittleEndian.Uint16(data[off:])
			off += 2
		case PropTypeUint32:
			if off+4 > len(data) {
				return nil, fmt.Errorf("ParsePropList: truncated u32")
			}
			p.U32 = binary.LittleEndian.Uint32(data[off:])
			off += 4
		case PropTypeString:
			if off+4 > len(data) {
				return nil, fmt.Errorf("ParsePropList: truncated string length")
			}
			var n = binary.LittleEndian.Uint32(data[off:])
			off += 4
			if off+int(n) > len(data) {
				return nil, fmt.Errorf("ParsePropList: truncated string body")
			}
			p.Str = decodeUTF16LE(data[off : off+int(n)])
			off += int(n)
		case PropTypeUUID128:
			if off+16 > len(data) {
				return nil, fmt.Errorf("ParsePropList: truncated uuid")
			}
			copy(p.U128[:], data[off:off+16])
			off += 16
		default:
			return nil, fmt.Errorf("ParsePropList: unknown type 0x%04x", typ)
		}

		props = append(props, p)
	}

	return props, nil
}

func encodeUTF16LE(s string) []byte {
	var out = make([]byte, 0, len(s)*2)
	for _, r := range s {
		out = binary.LittleEndian.AppendUint16(out, uint16(r))
	}
	return out
}

func decodeUTF16LE(b []byte) string {
	var runes = make([]rune, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		runes = append(runes, rune(binary.LittleEndian.Uint16(b[i:])))
	}
	return string(runes)
}
