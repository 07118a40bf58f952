package zune

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// guidPattern matches the MusicBrainz-style 8-4-4-4-12 hex GUID format used
// for artist/album-artist identifiers.
var guidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// ValidGUID reports whether s matches the artist/album-artist GUID format.
func ValidGUID(s string) bool {
	return guidPattern.MatchString(s)
}

// NullGUID is the sync-partner GUID meaning "unpaired".
const NullGUID = "00000000-0000-0000-0000-000000000000"

// IsNullGUID reports whether s is the all-zero GUID (case-insensitively).
func IsNullGUID(s string) bool {
	return strings.EqualFold(s, NullGUID)
}

// GuidToMixedEndianBytes encodes a 36-character hex GUID string into its
// 16-byte Windows wire representation: the first u32 and the next two u16
// components are little-endian, the final 2+6 bytes are written as given
// (big-endian-as-written, i.e. untouched hex byte order). This layout is
// only used for the playlist content-type UUID (see mtp_authoring.go);
// MusicBrainz-style artist GUIDs are carried as plain strings and never
// byte-flipped.
func GuidToMixedEndianBytes(s string) ([16]byte, error) {
	var out [16]byte

	var parts = strings.Split(s, "-")
	if len(parts) != 5 {
		return out, fmt.Errorf("guid %q: expected 5 hyphen-separated components", s)
	}

	var raw [5][]byte
	for i, p := range parts {
		var b, err = hex.DecodeString(p)
		if err != nil {
			return out, fmt.Errorf("guid %q: component %d: %w", s, i, err)
		}
		raw[i] = b
	}
	if len(raw[0]) != 4 || len(raw[1]) != 2 || len(raw[2]) != 2 || len(raw[3]) != 2 || len(raw[4]) != 6 {
		return out, fmt.Errorf("guid %q: wrong component lengths", s)
	}

	// Data1 (u32) little-endian.
	out[0], out[1], out[2], out[3] = raw[0][3], raw[0][2], raw[0][1], raw[0][0]
	// Data2 (u16) little-endian.
	out[4], out[5] = raw[1][1], raw[1][0]
	// Data3 (u16) little-endian.
	out[6], out[7] = raw[2][1], raw[2][0]
	// Data4[0:2] as written (big-endian-as-written).
	copy(out[8:10], raw[3])
	// Data4[2:8] as written.
	copy(out[10:16], raw[4])

	return out, nil
}

// MixedEndianBytesToGUID is the inverse of GuidToMixedEndianBytes, returning
// the canonical lowercase 8-4-4-4-12 hex string.
func MixedEndianBytesToGUID(b [16]byte) string {
	var data1 = [4]byte{b[3], b[2], b[1], b[0]}
	var data2 = [2]byte{b[5], b[4]}
	var data3 = [2]byte{b[7], b[6]}
	var data4a = b[8:10]
	var data4b = b[10:16]

	return fmt.Sprintf("%s-%s-%s-%s-%s",
		hex.EncodeToString(data1[:]),
		hex.EncodeToString(data2[:]),
		hex.EncodeToString(data3[:]),
		hex.EncodeToString(data4a),
		hex.EncodeToString(data4b),
	)
}
