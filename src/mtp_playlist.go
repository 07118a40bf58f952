package zune

import "context"

const playlistsFolderName = "Playlists"

// EmptyObjectStream satisfies ObjectStream for the empty SendObject data
// phase MTP requires after SendObjectPropList, used by playlist creation
// (which has no track stream of its own).
type EmptyObjectStream struct{}

func (EmptyObjectStream) Size() int64           { return 0 }
func (EmptyObjectStream) Read(p []byte) (int, error) { return 0, nil }

// ensurePlaylistsFolder implements "Create or find a root 'Playlists'
// folder" from §4.2.
func (a *Authoring) ensurePlaylistsFolder(ctx context.Context, storage uint32) (ObjectID, error) {
	if a.playlistsFolder != 0 {
		return a.playlistsFolder, nil
	}
	var id, err = a.getOrCreateFolder(ctx, playlistsFolderName, 0, storage)
	if err != nil {
		return 0, err
	}
	a.playlistsFolder = id
	return id, nil
}

// CreatePlaylist authors a new playlist: the 4-property list, an empty
// SendObject data phase, and SetObjectReferences to the ordered track ids.
func (a *Authoring) CreatePlaylist(ctx context.Context, name, guid string, trackIDs []ObjectID) (ObjectID, error) {
	if name == "" {
		return 0, newErr(InvalidInput, "CreatePlaylist", "empty name", nil)
	}
	if !ValidGUID(guid) {
		return 0, newErr(InvalidInput, "CreatePlaylist", "malformed GUID", nil)
	}

	var storage, err = a.ensureStorage(ctx)
	if err != nil {
		return 0, err
	}
	var folder, folderErr = a.ensurePlaylistsFolder(ctx, storage)
	if folderErr != nil {
		return 0, folderErr
	}

	var props, buildErr = BuildPlaylistPropList(name, guid)
	if buildErr != nil {
		return 0, newErr(InvalidInput, "CreatePlaylist", "bad content-type GUID", buildErr)
	}

	var propBytes = SerializePropList(props)
	var id, sendErr = a.Session.SendObjectPropList(ctx, storage, folder, FormatAbstractAVPlaylist, 0, propBytes)
	if sendErr != nil {
		return 0, newErr(TransportFailure, "CreatePlaylist", "SendObjectPropList failed", sendErr)
	}

	if err := a.Session.SendObject(ctx, EmptyObjectStream{}); err != nil {
		return 0, newErr(TransportFailure, "CreatePlaylist", "empty SendObject data phase failed", err)
	}

	if err := a.Session.SetObjectReferences(ctx, id, trackIDs); err != nil {
		return 0, newErr(TransportFailure, "CreatePlaylist", "SetObjectReferences failed", err)
	}

	if a.library != nil {
		a.library.Playlists[id] = &Playlist{AtomID: id, Name: name, GUID: guid, FolderRef: folder, TrackAtomIDs: trackIDs}
	}

	return id, nil
}

// UpdatePlaylist replaces a playlist's track list. This is a pure
// SetObjectReferences replacement, not a merge: create -> update(X) ->
// update(Y) yields the device state of one create + one update(Y).
func (a *Authoring) UpdatePlaylist(ctx context.Context, playlistID ObjectID, trackIDs []ObjectID) error {
	if err := a.Session.SetObjectReferences(ctx, playlistID, trackIDs); err != nil {
		return newErr(TransportFailure, "UpdatePlaylist", "SetObjectReferences failed", err)
	}
	if a.library != nil {
		if pl, ok := a.library.Playlists[playlistID]; ok {
			pl.TrackAtomIDs = trackIDs
		}
	}
	return nil
}

// DeletePlaylist removes a playlist object directly.
func (a *Authoring) DeletePlaylist(ctx context.Context, playlistID ObjectID) error {
	if err := a.Session.DeleteObject(ctx, playlistID); err != nil {
		return newErr(TransportFailure, "DeletePlaylist", "DeleteObject failed", err)
	}
	a.invalidateLibrary()
	return nil
}
