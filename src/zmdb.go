package zune

import (
	"io"
	"sort"

	"github.com/charmbracelet/log"
)

// Family tags recognized by the extractor. Pavo is structurally distinct
// from the three "classic" families, which all share the same blob layout.
type ZMDBFamily int

const (
	ZMDBKeel ZMDBFamily = iota
	ZMDBScorpius
	ZMDBDraco
	ZMDBPavo
)

// IsPavo reports whether this is the structurally distinct Pavo layout.
func (f ZMDBFamily) IsPavo() bool { return f == ZMDBPavo }

// propertyMapStart is the fixed offset where the (ptr, pid) property
// records begin.
const propertyMapStart = 0x2F0

// classicTrackScanStart skips stale data present in classic-family blobs.
// Empirical; see DESIGN.md Open Question on firmware variance.
const classicTrackScanStart = 0x000312B0

// pid category tags. The high 16 bits of a pid select one of these.
const (
	pidCatOrg      uint32 = 0x0100 << 16
	pidCatAltAlbum uint32 = 0x0500 << 16
	pidCatAlbum    uint32 = 0x0600 << 16
	pidCatAltMeta  uint32 = 0x0700 << 16
	pidCatMeta     uint32 = 0x0800 << 16
)

func makePid(category uint32, index uint32) uint32 {
	return category | (index & 0xFFFF)
}

func pidCategory(pid uint32) uint32 { return pid &^ 0xFFFF }
func pidIndex(pid uint32) uint32    { return pid & 0xFFFF }

// fMarker is the signature of a nested metadata record: byte[3] == 'F'
// (0x46), byte[2] == 0x00.
const fMarkerMask = 0x00FF0000 // bits covering byte[2] within the little-endian u32
// matchesFMarker checks byte[2] and byte[3] directly rather than through
// fMarkerMask, since the mask shortcut reads poorly.

func matchesFMarker(b []byte, off int) bool {
	if !hasBytes(b, off, 4) {
		return false
	}
	return b[off+2] == 0x00 && b[off+3] == 0x46
}

// ZMDBExtractor parses a ZMDB blob into a Library. It is stateless and
// deterministic: the same bytes always yield the same library.
type ZMDBExtractor struct {
	Family ZMDBFamily
	// TrackScanStart overrides classicTrackScanStart for classic families,
	// to accommodate older firmware (see DESIGN.md Open Question). Zero
	// means "use the default for the family."
	TrackScanStart int

	Logger *log.Logger
}

func (e *ZMDBExtractor) logger() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.NewWithOptions(io.Discard, log.Options{Prefix: "zmdb"})
}

type zmdbAlbumInfo struct {
	pid          uint32
	name         string
	artistName   string
	albReference string
}

// Parse decodes blob into a Library. An empty blob yields an empty,
// non-nil Library. Albums whose six-step search fails are logged and
// omitted rather than causing an error.
func (e *ZMDBExtractor) Parse(blob []byte) (*Library, error) {
	var lib = NewLibrary()
	if len(blob) == 0 {
		return lib, nil
	}

	var propMap = e.buildPropertyMap(blob)

	var tracksByAlbumPid, refsByAlbumPid = e.scanTracks(blob, propMap)

	var artistAtomSeq, albumAtomSeq uint32
	var artistByName = make(map[string]*Artist)

	// Deterministic ordering so atom-id assignment (and therefore test
	// expectations) doesn't depend on Go's randomized map iteration.
	var albumPids = make([]uint32, 0, len(tracksByAlbumPid))
	for pid := range tracksByAlbumPid {
		albumPids = append(albumPids, pid)
	}
	sort.Slice(albumPids, func(i, j int) bool { return albumPids[i] < albumPids[j] })

	for _, albumPid := range albumPids {
		if e.Family.IsPavo() && e.isGarbagePid(propMap, albumPid) {
			continue
		}

		var info, ok = e.extractAlbum(blob, propMap, albumPid, refsByAlbumPid[albumPid])
		if !ok {
			e.logger().Warn("album extraction failed, omitting", "pid", albumPid)
			continue
		}

		var artist = artistByName[info.artistName]
		if artist == nil {
			artistAtomSeq++
			artist = &Artist{AtomID: artistAtomSeq, Name: info.artistName}
			artistByName[info.artistName] = artist
			lib.Artists[artist.AtomID] = artist
		}

		albumAtomSeq++
		var album = &Album{
			AtomID:       albumAtomSeq,
			Title:        info.name,
			ArtistName:   info.artistName,
			ArtistRef:    artist.AtomID,
			AlbReference: info.albReference,
			PropertyID:   albumPid,
		}
		lib.Albums[album.AtomID] = album

		for _, tr := range tracksByAlbumPid[albumPid] {
			tr.AlbumName = info.name
			tr.AlbumArtistName = info.artistName
			tr.AlbumRef = album.AtomID
			lib.Tracks[tr.AtomID] = tr
		}
	}

	lib.reindex()
	return lib, nil
}

// buildPropertyMap reads (ptr:u32, pid:u32) records starting at
// propertyMapStart until the (0,0) terminator, keeping only the first-seen
// pointer for each pid.
func (e *ZMDBExtractor) buildPropertyMap(blob []byte) map[uint32]uint32 {
	var m = make(map[uint32]uint32)

	var off = propertyMapStart
	for hasBytes(blob, off, 8) {
		var ptr = leU32(blob, off)
		var pid = leU32(blob, off+4)
		if ptr == 0 && pid == 0 {
			break
		}
		if _, seen := m[pid]; !seen {
			m[pid] = ptr
		}
		off += 8
	}

	return m
}

// albumPidOffset returns the ALBUM_PID_OFF constant for this family.
func (e *ZMDBExtractor) albumPidOffset() int {
	if e.Family.IsPavo() {
		return -28
	}
	return -24
}

func (e *ZMDBExtractor) trackScanStart() int {
	if e.Family.IsPavo() {
		return 0
	}
	if e.TrackScanStart != 0 {
		return e.TrackScanStart
	}
	return classicTrackScanStart
}

// scanTracks linearly scans blob for codec markers and groups the tracks it
// finds by album-metadata pid, also accumulating the set of 0x0800 refs
// observed per album (used to constrain later F-marker searches).
func (e *ZMDBExtractor) scanTracks(blob []byte, propMap map[uint32]uint32) (map[uint32][]*Track, map[uint32]map[uint32]bool) {
	var tracksByAlbumPid = make(map[uint32][]*Track)
	var refsByAlbumPid = make(map[uint32]map[uint32]bool)

	var start = e.trackScanStart()
	var atomSeq uint32

	for o := start; o+2 <= len(blob); o++ {
		var marker = leU16(blob, o)
		if marker != CodecMP3 && marker != CodecWMA {
			continue
		}

		var title, _, ok = readASCIIZ(blob, o+4)
		if !ok || title == "" {
			continue
		}

		if o-4 < 0 {
			continue
		}
		var trackNumber = uint16(blob[o-4])

		var albumPidOff = o + e.albumPidOffset()
		if !hasBytes(blob, albumPidOff, 4) {
			continue
		}
		var albumPid = leU32(blob, albumPidOff)
		if pidCategory(albumPid) != pidCatAlbum {
			continue
		}

		var refOff = o - 20
		var ref uint32
		if hasBytes(blob, refOff, 4) {
			ref = leU32(blob, refOff)
		}

		var metaPid uint32
		if e.Family.IsPavo() {
			metaPid = makePid(pidCatMeta, pidIndex(albumPid))
		} else {
			metaPid = albumPid
		}

		atomSeq++
		var tr = &Track{
			AtomID:      atomSeq,
			Title:       title,
			TrackNumber: trackNumber,
			CodecTag:    marker,
		}
		tracksByAlbumPid[metaPid] = append(tracksByAlbumPid[metaPid], tr)

		if refsByAlbumPid[metaPid] == nil {
			refsByAlbumPid[metaPid] = make(map[uint32]bool)
		}
		if ref != 0 {
			refsByAlbumPid[metaPid][ref] = true
		}
	}

	_ = propMap // property map isn't needed for the scan itself, only album extraction
	return tracksByAlbumPid, refsByAlbumPid
}

// isGarbagePid implements the Pavo-only skip rule: an album pid lacking
// 0x0800[idx], 0x0700[idx], 0x0100[idx+1], and 0x0500[idx] simultaneously is
// dropped as garbage.
func (e *ZMDBExtractor) isGarbagePid(propMap map[uint32]uint32, metaPid uint32) bool {
	var idx = pidIndex(metaPid)
	var _, has0800 = propMap[makePid(pidCatMeta, idx)]
	var _, has0700 = propMap[makePid(pidCatAltMeta, idx)]
	var _, has0100 = propMap[makePid(pidCatOrg, idx+1)]
	var _, has0500 = propMap[makePid(pidCatAltAlbum, idx)]
	return !has0800 && !has0700 && !has0100 && !has0500
}

// nameOffset returns the album-name-after-pointer offset for this family.
func (e *ZMDBExtractor) nameOffset() int {
	if e.Family.IsPavo() {
		return 32
	}
	return 24
}

// fMarkerNameOffset returns the F-marker-relative album-name offset for
// this family.
func (e *ZMDBExtractor) fMarkerNameOffset() int {
	if e.Family.IsPavo() {
		return 24
	}
	return 16
}

// directRead attempts a "direct read" at pointer p: album name as ASCIIZ at
// p+nameOffset(), then artist (through "--") and full alb-reference
// (through ".alb") as UTF-16LE immediately following.
func (e *ZMDBExtractor) directRead(blob []byte, p uint32) (zmdbAlbumInfo, bool) {
	if p == 0 {
		return zmdbAlbumInfo{}, false
	}
	var nameOff = int(p) + e.nameOffset()
	return e.readAlbumNameAndRef(blob, nameOff, 0)
}

// readAlbumNameAndRef reads the album name ASCIIZ at nameOff, then decodes
// the trailing UTF-16LE artist/alb-reference pair. pid is carried through
// only for logging.
func (e *ZMDBExtractor) readAlbumNameAndRef(blob []byte, nameOff int, pid uint32) (zmdbAlbumInfo, bool) {
	var name, afterName, ok = readASCIIZ(blob, nameOff)
	if !ok || name == "" {
		return zmdbAlbumInfo{}, false
	}

	var artist, afterArtist, ok2 = readUTF16LEUntil(blob, afterName, "--")
	if !ok2 {
		return zmdbAlbumInfo{}, false
	}
	artist = trimSuffixStr(artist, "--")

	var fullRef, _, ok3 = readUTF16LEUntil(blob, afterArtist, ".alb")
	if !ok3 {
		return zmdbAlbumInfo{}, false
	}

	return zmdbAlbumInfo{
		pid:          pid,
		name:         name,
		artistName:   artist,
		albReference: artist + "--" + fullRef,
	}, true
}

func trimSuffixStr(s, suffix string) string {
	if len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix {
		return s[:len(s)-len(suffix)]
	}
	return s
}

// fMarkerSearch scans forward from pointer p in 4-byte strides looking for
// an F-marker whose 0x0800-ref (bytes +4..+7) is in refs (or unconditional
// if refs is empty). On a hit it reads the album name/artist/alb-reference
// starting at the F-marker-relative name offset, skipping an optional
// 18-byte GUID prefix when marker 0x1410 is present at +16..+17.
func (e *ZMDBExtractor) fMarkerSearch(blob []byte, p uint32, refs map[uint32]bool) (zmdbAlbumInfo, bool) {
	if p == 0 {
		return zmdbAlbumInfo{}, false
	}

	for off := int(p); off+8 <= len(blob); off += 4 {
		if !matchesFMarker(blob, off) {
			continue
		}

		var ref = leU32(blob, off+4)
		if len(refs) > 0 && !refs[ref] {
			continue
		}

		var nameOff = off + e.fMarkerNameOffset()
		if hasBytes(blob, off+17, 2) && leU16(blob, off+16) == 0x1410 {
			nameOff += 18
		}

		if info, ok := e.readAlbumNameAndRef(blob, nameOff, 0); ok {
			return info, true
		}
	}

	return zmdbAlbumInfo{}, false
}

// extractAlbum runs the six-step search described in §4.1 for a single
// album metadata pid.
func (e *ZMDBExtractor) extractAlbum(blob []byte, propMap map[uint32]uint32, metaPid uint32, refs map[uint32]bool) (zmdbAlbumInfo, bool) {
	var idx = pidIndex(metaPid)

	// Step 1: 0x0800[idx] direct.
	if p, ok := propMap[makePid(pidCatMeta, idx)]; ok {
		if info, ok := e.directRead(blob, p); ok {
			return info, true
		}
	}

	// Step 2: 0x0700[idx].
	if p, ok := propMap[makePid(pidCatAltMeta, idx)]; ok {
		if e.Family.IsPavo() {
			if info, ok := e.directRead(blob, p); ok {
				return info, true
			}
		} else if info, ok := e.fMarkerSearch(blob, p, refs); ok {
			return info, true
		}
	}

	if e.Family.IsPavo() {
		// Step 3 (Pavo): choose between 0x0100[idx+1] and 0x0600[idx] based
		// on presence of 0x0500[idx]; the other is the fallback.
		var p0100, has0100 = propMap[makePid(pidCatOrg, idx+1)]
		var p0600, has0600 = propMap[makePid(pidCatAlbum, idx)]
		var _, has0500 = propMap[makePid(pidCatAltAlbum, idx)]

		var primary, fallback uint32
		var havePrimary, haveFallback bool
		if has0500 {
			primary, havePrimary = p0600, has0600
			fallback, haveFallback = p0100, has0100
		} else {
			primary, havePrimary = p0100, has0100
			fallback, haveFallback = p0600, has0600
		}

		if havePrimary {
			if info, ok := e.directRead(blob, primary); ok {
				return info, true
			}
		}
		if haveFallback {
			if info, ok := e.directRead(blob, fallback); ok {
				return info, true
			}
		}
	} else {
		// Step 3 (classic): search 0x0100[idx+1..idx+99] for a matching
		// F-marker, then 0x0100[idx+1] direct as a safety net.
		for i := uint32(1); i <= 99; i++ {
			if p, ok := propMap[makePid(pidCatOrg, idx+i)]; ok {
				if info, ok := e.fMarkerSearch(blob, p, refs); ok {
					return info, true
				}
			}
		}
		if p, ok := propMap[makePid(pidCatOrg, idx+1)]; ok {
			if info, ok := e.directRead(blob, p); ok {
				return info, true
			}
		}

		// Step 4 (classic only): 0x0600[idx] F-marker with matching.
		if p, ok := propMap[makePid(pidCatAlbum, idx)]; ok {
			if info, ok := e.fMarkerSearch(blob, p, refs); ok {
				return info, true
			}
		}
	}

	// Step 5: 0x0600[idx+1] F-marker with matching.
	if p, ok := propMap[makePid(pidCatAlbum, idx+1)]; ok {
		if info, ok := e.fMarkerSearch(blob, p, refs); ok {
			return info, true
		}
	}

	// Step 6: 0x0800[idx+1] F-marker with matching.
	if p, ok := propMap[makePid(pidCatMeta, idx+1)]; ok {
		if info, ok := e.fMarkerSearch(blob, p, refs); ok {
			return info, true
		}
	}

	return zmdbAlbumInfo{}, false
}
