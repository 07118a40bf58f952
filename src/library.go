package zune

import "sort"

// Codec tags identify the audio format embedded in a track marker.
const (
	CodecWMA uint16 = 0xB901
	CodecMP3 uint16 = 0x3009
)

// Rating is a tri-state track rating.
type Rating uint8

const (
	RatingUnrated Rating = 0
	RatingDisliked Rating = 2
	RatingLiked    Rating = 8
)

// Track is a single audio track mined from the ZMDB blob or authored via
// the MTP sequencer.
type Track struct {
	AtomID   uint32 // MTP object handle
	Title    string
	Filename string

	ArtistName string
	ArtistGUID string // optional, MusicBrainz-style

	AlbumName      string
	AlbumArtistName string
	AlbumArtistGUID string
	AlbumRef       uint32 // atom id of the owning Album

	Genre       string
	TrackNumber uint16
	DiscNumber  uint16 // 1-based; 0 is normalized to 1
	DurationMS  uint32
	FileSize    uint64

	PlayCount uint16
	SkipCount uint16
	CodecTag  uint16
	Rating    Rating

	LastPlayedFiletime uint64
}

// NormalizedDiscNumber returns DiscNumber with 0 coerced to 1, per the wire
// convention that disc 0 is serialized as disc 1.
func (t Track) NormalizedDiscNumber() uint16 {
	if t.DiscNumber == 0 {
		return 1
	}
	return t.DiscNumber
}

// Album groups tracks under an artist.
type Album struct {
	AtomID     uint32
	Title      string
	ArtistName string
	ArtistGUID string
	ArtistRef  uint32 // atom id of the owning Artist

	AlbReference string // "<artist>--<album>.alb"
	Year         int
	PropertyID   uint32 // 0x0600 | index
}

// Artist is a top-level container for albums.
type Artist struct {
	AtomID   uint32
	Name     string
	Filename string // on-device .art artwork filename
	GUID     string
}

// AlbumArtwork links an alb-reference string to the MTP object id of the
// corresponding .alb artwork object on the device.
type AlbumArtwork struct {
	AlbReference string
	ObjectID     uint32
}

// Playlist is an ordered list of track references.
type Playlist struct {
	AtomID         uint32
	Name           string
	Filename       string // e.g. "<name>.zpl" or "<name>.pla"
	GUID           string
	FolderRef      uint32
	TrackAtomIDs   []uint32
}

// Library is the normalized snapshot of everything the ZMDB blob (or a live
// device) exposes. The ZMDB extractor builds it in one pass. Authoring's
// cached copy is updated in place when it creates artists, albums, tracks
// and playlists or retrofits an artist inside a batch, and is discarded
// after a delete or a retrofit; see mtp_authoring.go for those triggers.
type Library struct {
	Tracks    map[uint32]*Track
	Albums    map[uint32]*Album
	Artists   map[uint32]*Artist
	Artworks  map[string]*AlbumArtwork // keyed by AlbReference
	Playlists map[uint32]*Playlist

	// tracksByAlbum and albumsByArtist are derived indexes, rebuilt by reindex().
	tracksByAlbum  map[uint32][]*Track
	albumsByArtist map[uint32][]*Album
}

// NewLibrary returns an empty, ready-to-populate Library.
func NewLibrary() *Library {
	return &Library{
		Tracks:    make(map[uint32]*Track),
		Albums:    make(map[uint32]*Album),
		Artists:   make(map[uint32]*Artist),
		Artworks:  make(map[string]*AlbumArtwork),
		Playlists: make(map[uint32]*Playlist),
	}
}

// reindex rebuilds the derived tracksByAlbum / albumsByArtist maps. Called
// after bulk population (ZMDB parse), and by Authoring after each track it
// adds to its cached copy.
func (l *Library) reindex() {
	l.tracksByAlbum = make(map[uint32][]*Track)
	for _, t := range l.Tracks {
		l.tracksByAlbum[t.AlbumRef] = append(l.tracksByAlbum[t.AlbumRef], t)
	}
	for _, tracks := range l.tracksByAlbum {
		sort.Slice(tracks, func(i, j int) bool {
			if tracks[i].NormalizedDiscNumber() != tracks[j].NormalizedDiscNumber() {
				return tracks[i].NormalizedDiscNumber() < tracks[j].NormalizedDiscNumber()
			}
			return tracks[i].TrackNumber < tracks[j].TrackNumber
		})
	}

	l.albumsByArtist = make(map[uint32][]*Album)
	for _, a := range l.Albums {
		l.albumsByArtist[a.ArtistRef] = append(l.albumsByArtist[a.ArtistRef], a)
	}
	for _, albums := range l.albumsByArtist {
		sort.Slice(albums, func(i, j int) bool { return albums[i].Title < albums[j].Title })
	}
}

// TracksOnAlbum returns the tracks belonging to the album with the given
// atom id, sorted by (disc, track number).
func (l *Library) TracksOnAlbum(albumAtomID uint32) []*Track {
	return l.tracksByAlbum[albumAtomID]
}

// AlbumsByArtist returns the albums belonging to the artist with the given
// atom id, sorted by title.
func (l *Library) AlbumsByArtist(artistAtomID uint32) []*Album {
	return l.albumsByArtist[artistAtomID]
}

// ArtistByName finds an artist by exact, case-sensitive name match, or nil.
func (l *Library) ArtistByName(name string) *Artist {
	for _, a := range l.Artists {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// AlbumByArtistAndTitle finds an album owned by the given artist atom id
// with the given title, or nil.
func (l *Library) AlbumByArtistAndTitle(artistAtomID uint32, title string) *Album {
	for _, a := range l.albumsByArtist[artistAtomID] {
		if a.Title == title {
			return a
		}
	}
	return nil
}

// Validate checks the cross-reference invariants from §3: every track's
// album ref must resolve to an album whose artist ref resolves to an
// artist, and track numbers must be unique per disc within an album.
func (l *Library) Validate() error {
	for _, t := range l.Tracks {
		var album, ok = l.Albums[t.AlbumRef]
		if !ok {
			return newErr(ProtocolMismatch, "Library.Validate", "track references unknown album", nil)
		}
		if _, ok := l.Artists[album.ArtistRef]; !ok {
			return newErr(ProtocolMismatch, "Library.Validate", "album references unknown artist", nil)
		}
	}

	type discTrack struct {
		album uint32
		disc  uint16
		track uint16
	}
	var seen = make(map[discTrack]bool)
	for _, t := range l.Tracks {
		var key = discTrack{t.AlbumRef, t.NormalizedDiscNumber(), t.TrackNumber}
		if seen[key] {
			return newErr(ProtocolMismatch, "Library.Validate", "duplicate track number on disc", nil)
		}
		seen[key] = true
	}

	return nil
}
