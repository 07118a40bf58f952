package zune

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
)

// FormatFolder is the MTP object format code for an association (folder).
const FormatFolder uint16 = 0x3001

// UploadTrackRequest carries everything UploadTrack needs to author one
// track. Audio, CoverArt, and Format are supplied by the host after tag
// extraction (an external collaborator per §1); this sequencer only drives
// the MTP operations.
type UploadTrackRequest struct {
	ArtistName      string
	ArtistGUID      string // optional
	AlbumName       string
	AlbumArtistName string // defaults to ArtistName if empty
	Year            int
	Title           string
	Genre           string
	Filename        string
	TrackNumber     uint16
	DiscNumber      uint16
	DurationMS      uint32
	Format          uint16 // FormatMP3, FormatWMA, or an audiobook format
	IsAudiobook     bool
	Audio           ObjectStream
	CoverArt        []byte // optional JPEG bytes
}

// ZuneUploadResult is the user-visible result of UploadTrack: Status is 0
// on success, negative on error; the object ids are only meaningful when
// Status == 0.
type ZuneUploadResult struct {
	Status         int
	TrackObjectID  ObjectID
	AlbumObjectID  ObjectID
	ArtistObjectID ObjectID
}

// RetrofitOutcome classifies the result of a single batch-retrofit entry.
type RetrofitOutcome int

const (
	RetrofitSucceeded RetrofitOutcome = iota
	RetrofitAlreadyHadGUID
	RetrofitNotFound
	RetrofitError
)

// RetrofitBatchResult is the user-visible summary of a batch retrofit.
type RetrofitBatchResult struct {
	Retrofitted   int
	AlreadyHadGUID int
	NotFound      int
	Errors        int
}

// Authoring drives the MTP operation sequences that create new content and
// retrofit GUIDs onto existing artists. It owns a lazily-initialized
// Library cache; any delete or GUID retrofit invalidates that cache so the
// next read re-fetches from the device (see §7 propagation policy).
type Authoring struct {
	Session Session
	Logger  *log.Logger

	storage uint32

	library *Library

	musicFolder      ObjectID
	albumsContainer  ObjectID
	playlistsFolder  ObjectID
	artistFolders    map[string]ObjectID // artist name -> folder object id

	// trackIDCache maps "<album_id>:<track_title>" -> track object id, per
	// the Track object-id resolution cache in §4.2.
	trackIDCache map[string]ObjectID
}

// NewAuthoring constructs an Authoring sequencer bound to session.
func NewAuthoring(session Session, logger *log.Logger) *Authoring {
	return &Authoring{
		Session:       session,
		Logger:        logger,
		artistFolders: make(map[string]ObjectID),
		trackIDCache:  make(map[string]ObjectID),
	}
}

func (a *Authoring) log() *log.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return log.Default()
}

// invalidateLibrary discards the cached Library so the next read re-fetches
// it from the device, per the cache invalidation rule in §7/§4.2.
func (a *Authoring) invalidateLibrary() {
	a.library = nil
	a.artistFolders = make(map[string]ObjectID)
	a.trackIDCache = make(map[string]ObjectID)
}

// ensureStorage picks the first storage id, caching it.
func (a *Authoring) ensureStorage(ctx context.Context) (uint32, error) {
	if a.storage != 0 {
		return a.storage, nil
	}
	var ids, err = a.Session.GetStorageIDs(ctx)
	if err != nil {
		return 0, newErr(TransportFailure, "ensureStorage", "GetStorageIDs failed", err)
	}
	if len(ids) == 0 {
		return 0, newErr(ProtocolMismatch, "ensureStorage", "device reported no storage", nil)
	}
	a.storage = ids[0]
	return a.storage, nil
}

// ensureLibrary performs step 1 of UploadTrack: if the Library cache is
// empty, fetch the device's existing album objects so get-or-create can
// recognize them.
func (a *Authoring) ensureLibrary(ctx context.Context, storage uint32) error {
	if a.library != nil {
		return nil
	}

	var lib = NewLibrary()

	var handles, err = a.Session.GetObjectHandles(ctx, storage, FormatAbstractAudioAlbum, 0)
	if err != nil {
		return newErr(TransportFailure, "ensureLibrary", "GetObjectHandles failed", err)
	}

	for _, id := range handles {
		var name, err = a.Session.GetObjectStringProperty(ctx, id, PropName)
		if err != nil {
			a.log().Warn("ensureLibrary: could not read album name, skipping", "id", id, "err", err)
			continue
		}
		lib.Albums[id] = &Album{AtomID: id, Title: name}
	}

	a.library = lib
	return nil
}

// getOrCreateFolder finds an existing folder named name under parent, or
// creates it.
func (a *Authoring) getOrCreateFolder(ctx context.Context, name string, parent ObjectID, storage uint32) (ObjectID, error) {
	var handles, err = a.Session.GetObjectHandles(ctx, storage, FormatFolder, parent)
	if err != nil {
		return 0, newErr(TransportFailure, "getOrCreateFolder", "GetObjectHandles failed", err)
	}

	for _, id := range handles {
		var info, err = a.Session.GetObjectInfo(ctx, id)
		if err == nil && info.Filename == name {
			return id, nil
		}
	}

	var id, createErr = a.Session.CreateDirectory(ctx, name, parent, storage)
	if createErr != nil {
		return 0, newErr(TransportFailure, "getOrCreateFolder", fmt.Sprintf("CreateDirectory(%q) failed", name), createErr)
	}
	return id, nil
}

// getOrCreateArtistFolder implements step 2 of UploadTrack.
func (a *Authoring) getOrCreateArtistFolder(ctx context.Context, storage, musicFolder ObjectID, name, guid string) (ObjectID, error) {
	if id, ok := a.artistFolders[name]; ok {
		return id, nil
	}

	var existingArtist = a.library.ArtistByName(name)
	if existingArtist != nil {
		if existingArtist.GUID == "" && guid != "" {
			existingArtist.GUID = guid
			// Updating the GUID in place is not a retrofit: the device
			// simply didn't have one recorded yet, and no album/track
			// references need repointing. See RetrofitArtistGUID for the
			// case where the device already rejected metadata for this
			// artist and a delete-and-recreate is required instead.
		}
		a.artistFolders[name] = existingArtist.AtomID
		return existingArtist.AtomID, nil
	}

	var id, err = a.getOrCreateFolder(ctx, name, musicFolder, storage)
	if err != nil {
		return 0, err
	}

	var artist = &Artist{AtomID: id, Name: name, GUID: guid}
	a.library.Artists[id] = artist
	a.artistFolders[name] = id
	return id, nil
}

// getOrCreateAlbumFolder implements step 3 of UploadTrack.
func (a *Authoring) getOrCreateAlbumFolder(ctx context.Context, storage, artistFolder ObjectID, artistName, albumName string, year int) (ObjectID, error) {
	if existing := a.library.AlbumByArtistAndTitle(artistFolder, albumName); existing != nil {
		return existing.AtomID, nil
	}

	var id, err = a.getOrCreateFolder(ctx, albumName, artistFolder, storage)
	if err != nil {
		return 0, err
	}

	var album = &Album{AtomID: id, Title: albumName, ArtistName: artistName, ArtistRef: artistFolder, Year: year}
	a.library.Albums[id] = album
	return id, nil
}

// UploadTrack drives the full authoring sequence from §4.2: ensure folder
// structure, create the track property-list object, stream its audio,
// attach cover art, link the album's references, and run the vendor sync
// operations. Pre-flight failures (no session, bad input) fail fast;
// post-upload decoration failures (step 9) are logged as warnings and do
// not fail the overall upload, per §7 propagation policy.
func (a *Authoring) UploadTrack(ctx context.Context, req UploadTrackRequest) ZuneUploadResult {
	if a.Session == nil {
		return ZuneUploadResult{Status: -1}
	}
	if req.Title == "" || req.ArtistName == "" || req.AlbumName == "" {
		return ZuneUploadResult{Status: -2}
	}
	if req.ArtistGUID != "" && !ValidGUID(req.ArtistGUID) {
		return ZuneUploadResult{Status: -3}
	}

	var albumArtistName = req.AlbumArtistName
	if albumArtistName == "" {
		albumArtistName = req.ArtistName
	}

	var storage, err = a.ensureStorage(ctx)
	if err != nil {
		return ZuneUploadResult{Status: -10}
	}

	if err := a.ensureLibrary(ctx, storage); err != nil {
		return ZuneUploadResult{Status: -11}
	}

	if a.musicFolder == 0 {
		var id, err = a.getOrCreateFolder(ctx, "Music", 0, storage)
		if err != nil {
			return ZuneUploadResult{Status: -12}
		}
		a.musicFolder = id
	}

	// Step 2: get-or-create artist.
	var artistID, err2 = a.getOrCreateArtistFolder(ctx, storage, a.musicFolder, req.ArtistName, req.ArtistGUID)
	if err2 != nil {
		return ZuneUploadResult{Status: -13}
	}

	// Step 3: get-or-create album.
	var albumID, err3 = a.getOrCreateAlbumFolder(ctx, storage, artistID, req.ArtistName, req.AlbumName, req.Year)
	if err3 != nil {
		return ZuneUploadResult{Status: -14}
	}

	// Step 4: validate artist GUID (non-fatal).
	if req.ArtistGUID != "" {
		if err := a.Session.Operation922a(ctx, req.ArtistGUID); err != nil {
			a.log().Warn("artist GUID validate failed, continuing", "artist", req.ArtistName, "err", err)
		}
	}

	// Step 5: build and send the track property list.
	var props = BuildTrackPropList(req.Filename, req.AlbumName, albumArtistName, req.Title, req.ArtistName, req.Genre, req.DurationMS, req.TrackNumber, req.Year)
	var propBytes = SerializePropList(props)

	var trackSize uint64
	if req.Audio != nil {
		trackSize = uint64(req.Audio.Size())
	}

	var trackID, sendErr = a.Session.SendObjectPropList(ctx, storage, albumID, req.Format, trackSize, propBytes)
	if sendErr != nil {
		return ZuneUploadResult{Status: -15, ArtistObjectID: artistID, AlbumObjectID: albumID}
	}

	// Step 6: stream the audio bytes.
	if req.Audio != nil {
		if err := a.Session.SendObject(ctx, req.Audio); err != nil {
			return ZuneUploadResult{Status: -16, TrackObjectID: trackID, ArtistObjectID: artistID, AlbumObjectID: albumID}
		}
	}

	// Step 7: attach cover art, if supplied.
	if len(req.CoverArt) > 0 {
		if err := a.Session.SetObjectProperty(ctx, albumID, PropRepresentativeSampleData, req.CoverArt); err != nil {
			return ZuneUploadResult{Status: -17, TrackObjectID: trackID, ArtistObjectID: artistID, AlbumObjectID: albumID}
		}
		var fmtBytes = make([]byte, 4)
		putLEU32(fmtBytes, RepresentativeSampleFormatJPEG)
		if err := a.Session.SetObjectProperty(ctx, albumID, PropRepresentativeSampleFormat, fmtBytes); err != nil {
			return ZuneUploadResult{Status: -18, TrackObjectID: trackID, ArtistObjectID: artistID, AlbumObjectID: albumID}
		}
	}

	// Step 8: link.
	var existingRefs []ObjectID
	if req.IsAudiobook {
		existingRefs, _ = a.Session.GetObjectReferences(ctx, albumID)
	}
	var refs = append(existingRefs, trackID)
	if err := a.Session.SetObjectReferences(ctx, albumID, refs); err != nil {
		return ZuneUploadResult{Status: -19, TrackObjectID: trackID, ArtistObjectID: artistID, AlbumObjectID: albumID}
	}

	// Step 9: finalize. Failures here are warnings only.
	if err := a.Session.Operation9217(ctx, 1); err != nil {
		a.log().Warn("post-upload sync (9217) failed", "err", err)
	}
	if err := a.Session.Operation9802(ctx, PropName, trackID); err != nil {
		a.log().Warn("post-upload property-query trigger (9802) failed", "err", err)
	}

	var track = &Track{
		AtomID: trackID, Title: req.Title, Filename: req.Filename,
		ArtistName: req.ArtistName, ArtistGUID: req.ArtistGUID,
		AlbumName: req.AlbumName, AlbumArtistName: albumArtistName, AlbumRef: albumID,
		Genre: req.Genre, TrackNumber: req.TrackNumber, DiscNumber: req.DiscNumber,
		DurationMS: req.DurationMS, CodecTag: req.Format,
	}
	a.library.Tracks[trackID] = track
	a.library.reindex()

	return ZuneUploadResult{Status: 0, TrackObjectID: trackID, AlbumObjectID: albumID, ArtistObjectID: artistID}
}

// Well-known object property codes for artwork attachment.
const (
	PropRepresentativeSampleData   uint16 = 0xDC91
	PropRepresentativeSampleFormat uint16 = 0xDC92
)

func putLEU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// RetrofitArtistGUID implements the single-artist GUID retrofit from §4.2:
// locate the artist, and if it lacks a GUID, delete-and-recreate it with
// the target GUID, repointing every album and track reference.
func (a *Authoring) RetrofitArtistGUID(ctx context.Context, artistName, guid string) (RetrofitOutcome, error) {
	if !ValidGUID(guid) {
		return RetrofitError, newErr(InvalidInput, "RetrofitArtistGUID", "malformed GUID", nil)
	}

	var storage, err = a.ensureStorage(ctx)
	if err != nil {
		return RetrofitError, err
	}
	if err := a.ensureLibrary(ctx, storage); err != nil {
		return RetrofitError, err
	}

	var artist = a.library.ArtistByName(artistName)
	if artist == nil {
		return RetrofitNotFound, nil
	}
	if artist.GUID != "" && !IsNullGUID(artist.GUID) {
		return RetrofitAlreadyHadGUID, nil
	}

	var albums = a.library.AlbumsByArtist(artist.AtomID)

	var newArtistID, createErr = a.Session.CreateDirectory(ctx, artist.Name, 0, storage)
	if createErr != nil {
		return RetrofitError, newErr(TransportFailure, "RetrofitArtistGUID", "create replacement artist failed", createErr)
	}
	if err := a.Session.SetObjectProperty(ctx, newArtistID, PropArtistGUIDCode, []byte(guid)); err != nil {
		return RetrofitError, newErr(TransportFailure, "RetrofitArtistGUID", "set GUID on replacement artist failed", err)
	}

	for _, album := range albums {
		if err := a.Session.SetObjectProperty(ctx, album.AtomID, PropArtistBackRefCode, u32Bytes(newArtistID)); err != nil {
			return RetrofitError, newErr(ProtocolMismatch, "RetrofitArtistGUID", "repoint album artist ref failed", err)
		}
		for _, track := range a.library.TracksOnAlbum(album.AtomID) {
			if err := a.Session.SetObjectProperty(ctx, track.AtomID, PropArtistBackRefCode, u32Bytes(newArtistID)); err != nil {
				return RetrofitError, newErr(ProtocolMismatch, "RetrofitArtistGUID", "repoint track artist ref failed", err)
			}
		}
	}

	if err := a.Session.DeleteObject(ctx, artist.AtomID); err != nil {
		return RetrofitError, newErr(TransportFailure, "RetrofitArtistGUID", "delete old artist failed", err)
	}

	a.invalidateLibrary()
	return RetrofitSucceeded, nil
}

// Vendor object property codes used by the retrofit path.
const (
	PropArtistGUIDCode    uint16 = 0xD910
	PropArtistBackRefCode uint16 = 0xD911
)

func u32Bytes(v uint32) []byte {
	var b = make([]byte, 4)
	putLEU32(b, v)
	return b
}

// RetrofitEntry is one (name, guid) pair in a batch retrofit request.
type RetrofitEntry struct {
	Name string
	GUID string
}

// BatchRetrofitArtistGUIDs classifies and applies a batch of retrofits.
// Each entry succeeds or fails independently (no bail-on-error); the
// Library cache is invalidated once at the end if any retrofit occurred.
func (a *Authoring) BatchRetrofitArtistGUIDs(ctx context.Context, entries []RetrofitEntry) RetrofitBatchResult {
	var result RetrofitBatchResult
	var anySucceeded bool

	var storage, err = a.ensureStorage(ctx)
	if err != nil {
		result.Errors = len(entries)
		return result
	}
	if err := a.ensureLibrary(ctx, storage); err != nil {
		result.Errors = len(entries)
		return result
	}

	for _, entry := range entries {
		var outcome, err = a.retrofitOneLocked(ctx, entry.Name, entry.GUID)
		switch outcome {
		case RetrofitSucceeded:
			result.Retrofitted++
			anySucceeded = true
		case RetrofitAlreadyHadGUID:
			result.AlreadyHadGUID++
		case RetrofitNotFound:
			result.NotFound++
		default:
			result.Errors++
			if err != nil {
				a.log().Warn("batch retrofit entry failed", "artist", entry.Name, "err", err)
			}
		}
	}

	if anySucceeded {
		a.invalidateLibrary()
	}

	return result
}

// retrofitOneLocked is RetrofitArtistGUID without the per-call
// ensureLibrary/invalidateLibrary bookkeeping, since BatchRetrofitArtistGUIDs
// does a single library fetch and a single invalidation for the whole batch.
func (a *Authoring) retrofitOneLocked(ctx context.Context, artistName, guid string) (RetrofitOutcome, error) {
	if !ValidGUID(guid) {
		return RetrofitError, newErr(InvalidInput, "retrofitOneLocked", "malformed GUID", nil)
	}

	var storage, _ = a.ensureStorage(ctx)

	var artist = a.library.ArtistByName(artistName)
	if artist == nil {
		return RetrofitNotFound, nil
	}
	if artist.GUID != "" && !IsNullGUID(artist.GUID) {
		return RetrofitAlreadyHadGUID, nil
	}

	var albums = a.library.AlbumsByArtist(artist.AtomID)

	var newArtistID, createErr = a.Session.CreateDirectory(ctx, artist.Name, 0, storage)
	if createErr != nil {
		return RetrofitError, createErr
	}
	if err := a.Session.SetObjectProperty(ctx, newArtistID, PropArtistGUIDCode, []byte(guid)); err != nil {
		return RetrofitError, err
	}

	for _, album := range albums {
		if err := a.Session.SetObjectProperty(ctx, album.AtomID, PropArtistBackRefCode, u32Bytes(newArtistID)); err != nil {
			return RetrofitError, err
		}
		for _, track := range a.library.TracksOnAlbum(album.AtomID) {
			if err := a.Session.SetObjectProperty(ctx, track.AtomID, PropArtistBackRefCode, u32Bytes(newArtistID)); err != nil {
				return RetrofitError, err
			}
		}
	}

	if err := a.Session.DeleteObject(ctx, artist.AtomID); err != nil {
		return RetrofitError, err
	}

	// Reflect the rename in the in-memory snapshot immediately so later
	// entries in the same batch see the new artist id.
	delete(a.library.Artists, artist.AtomID)
	artist.AtomID = newArtistID
	artist.GUID = guid
	a.library.Artists[newArtistID] = artist

	return RetrofitSucceeded, nil
}

// ResolveTrackObjectID implements the track object-id resolution cache
// from §4.2: an exact, case-sensitive match on "<album_id>:<track_title>".
func (a *Authoring) ResolveTrackObjectID(ctx context.Context, albumID ObjectID, trackTitle string) (ObjectID, bool, error) {
	var key = fmt.Sprintf("%d:%s", albumID, trackTitle)
	if id, ok := a.trackIDCache[key]; ok {
		return id, true, nil
	}

	var children, err = a.Session.GetObjectReferences(ctx, albumID)
	if err != nil {
		return 0, false, newErr(TransportFailure, "ResolveTrackObjectID", "GetObjectReferences failed", err)
	}

	var found ObjectID
	var foundOK bool
	for _, child := range children {
		var name, err = a.Session.GetObjectStringProperty(ctx, child, PropName)
		if err != nil {
			continue
		}
		var title = stripExtension(name)
		var childKey = fmt.Sprintf("%d:%s", albumID, title)
		a.trackIDCache[childKey] = child
		if title == trackTitle {
			found, foundOK = child, true
		}
	}

	return found, foundOK, nil
}

func stripExtension(filename string) string {
	for i := len(filename) - 1; i >= 0; i-- {
		if filename[i] == '.' {
			return filename[:i]
		}
		if filename[i] == '/' {
			break
		}
	}
	return filename
}
