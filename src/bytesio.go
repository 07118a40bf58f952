package zune

import (
	"encoding/binary"
	"strings"
	"time"
)

// Byte codecs for the ZMDB blob and MTP wire formats: little-endian
// integers, UTF-16LE strings, and Windows FILETIME. GUID parsing and
// encoding live in guid.go.

// leU16 reads a little-endian uint16 at offset off. Callers are expected to
// bounds-check beforehand; this stays a raw accessor so the scanning loops
// in zmdb.go can stay tight.
func leU16(b []byte, off int) uint16 {
	return binary.LittleEndian.Uint16(b[off : off+2])
}

// leU32 reads a little-endian uint32 at offset off.
func leU32(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off : off+4])
}

// hasBytes reports whether [off, off+n) is within b.
func hasBytes(b []byte, off, n int) bool {
	return off >= 0 && n >= 0 && off+n <= len(b)
}

// readASCIIZ reads a NUL-terminated ASCII string starting at off. It
// returns the decoded string and the offset just past the terminating NUL.
// If no NUL is found before the end of the blob, ok is false.
func readASCIIZ(b []byte, off int) (s string, end int, ok bool) {
	if off < 0 || off > len(b) {
		return "", off, false
	}
	for i := off; i < len(b); i++ {
		if b[i] == 0 {
			return string(b[off:i]), i + 1, true
		}
	}
	return "", off, false
}

// readUTF16LEZ decodes little-endian UTF-16 code units starting at off
// until a zero code unit or the end of the blob, emitting UTF-8. Only the
// BMP range is handled (no surrogate pairs), matching the ZMDB corpus.
// Returns the decoded string and the offset just past the terminating zero
// code unit. If no zero code unit is found before the end of the blob, ok
// is false and the string is empty.
func readUTF16LEZ(b []byte, off int) (s string, end int, ok bool) {
	if off < 0 || off > len(b) {
		return "", off, false
	}

	var sb strings.Builder
	var i = off
	for i+1 < len(b) {
		var unit = leU16(b, i)
		if unit == 0 {
			return sb.String(), i + 2, true
		}
		sb.WriteRune(rune(unit))
		i += 2
	}
	return "", off, false
}

// readUTF16LEUntil decodes little-endian UTF-16 starting at off, stopping
// either at a zero code unit or when the accumulated string ends with
// stopSuffix (not including stopSuffix's own code units past the match).
// Used to split the combined "<artist>--<album>.alb" field: the artist
// name ends at "--", and the full alb-reference continues through ".alb".
func readUTF16LEUntil(b []byte, off int, stopSuffix string) (s string, end int, ok bool) {
	if off < 0 || off > len(b) {
		return "", off, false
	}

	var sb strings.Builder
	var i = off
	for i+1 < len(b) {
		var unit = leU16(b, i)
		if unit == 0 {
			// Ran out of field before the delimiter was found.
			return "", off, false
		}
		sb.WriteRune(rune(unit))
		i += 2
		if stopSuffix != "" && strings.HasSuffix(sb.String(), stopSuffix) {
			return sb.String(), i, true
		}
	}
	return "", off, false
}

// filetimeEpochOffset100ns is the number of 100ns ticks between the Windows
// FILETIME epoch (1601-01-01 UTC) and the Unix epoch (1970-01-01 UTC).
const filetimeEpochOffset100ns = 116444736000000000

// filetimeToTime converts a Windows FILETIME (100ns ticks since
// 1601-01-01 UTC) to a time.Time.
func filetimeToTime(ft uint64) time.Time {
	var unix100ns = int64(ft) - filetimeEpochOffset100ns
	var seconds = unix100ns / 10_000_000
	var remainder100ns = unix100ns % 10_000_000
	return time.Unix(seconds, remainder100ns*100).UTC()
}

// timeToFiletime converts a time.Time to a Windows FILETIME.
func timeToFiletime(t time.Time) uint64 {
	var unix100ns = t.UnixNano() / 100
	return uint64(unix100ns + filetimeEpochOffset100ns)
}
