package zune

import "context"

// ObjectID is an MTP object handle. The ZMDB atom id and the MTP object id
// are the same number space on this device family, so Track/Album/Artist
// atom ids can be used directly as ObjectIDs once authored.
type ObjectID = uint32

// ObjectInfo is the subset of MTP GetObjectInfo this package needs.
type ObjectInfo struct {
	Filename       string
	Format         uint16
	CompressedSize uint64
}

// ObjectStream is a lazy input stream for SendObject: it reports total size
// up front and reads into a caller-supplied buffer. Implementations are
// provided by the host (e.g. wrapping an *os.File).
type ObjectStream interface {
	Size() int64
	Read(p []byte) (int, error)
}

// BulkPipe is the raw USB bulk pipe used for PPP traffic once network mode
// is enabled, and for the vendor ZMDB blob request. The USB transport
// itself is an external collaborator; this is the minimal surface the core
// needs from it.
type BulkPipe interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, p []byte) error
}

// Session is the MTP session abstraction the authoring sequencer and ZMDB
// blob fetch are built against. The USB transport, raw MTP framing, and the
// MTPZ handshake are external collaborators; an implementation of this
// interface is assumed to already have completed them. All operations are
// synchronous and serialize internally (the reference's MTP session
// serializes transactions one at a time), so the authoring sequencer does
// not need its own locking around Session calls.
type Session interface {
	GetStorageIDs(ctx context.Context) ([]uint32, error)
	GetObjectHandles(ctx context.Context, storage uint32, format uint16, parent ObjectID) ([]ObjectID, error)
	GetObjectInfo(ctx context.Context, id ObjectID) (ObjectInfo, error)

	GetObjectProperty(ctx context.Context, id ObjectID, prop uint16) ([]byte, error)
	GetObjectIntegerProperty(ctx context.Context, id ObjectID, prop uint16) (uint64, error)
	GetObjectStringProperty(ctx context.Context, id ObjectID, prop uint16) (string, error)
	GetObjectPropertyList(ctx context.Context, id ObjectID, format uint16, prop uint16, depth uint32, group uint32) ([]byte, error)
	SetObjectProperty(ctx context.Context, id ObjectID, prop uint16, value []byte) error
	SetObjectPropertyAsArray(ctx context.Context, id ObjectID, prop uint16, value []byte) error

	SendObjectPropList(ctx context.Context, storage uint32, parent ObjectID, format uint16, size uint64, propList []byte) (ObjectID, error)
	SendObject(ctx context.Context, stream ObjectStream) error

	CreateDirectory(ctx context.Context, name string, parent ObjectID, storage uint32) (ObjectID, error)
	DeleteObject(ctx context.Context, id ObjectID) error
	SetObjectReferences(ctx context.Context, id ObjectID, refs []ObjectID) error
	GetObjectReferences(ctx context.Context, id ObjectID) ([]ObjectID, error)

	GetDeviceProperty(ctx context.Context, code uint16) ([]byte, error)
	SetDeviceProperty(ctx context.Context, code uint16, value []byte) error
	GetDevicePropertyDesc(ctx context.Context, code uint16) ([]byte, error)

	GetPartialObject(ctx context.Context, id ObjectID, offset uint64, size uint32) ([]byte, error)

	// Vendor operations, named by opcode as the reference does.
	Operation9215(ctx context.Context) error
	Operation9217(ctx context.Context, p1 uint32) error
	Operation9218(ctx context.Context, p1, p2, p3 uint32) error
	Operation9224(ctx context.Context) error
	Operation9227Init(ctx context.Context) error
	Operation9230(ctx context.Context, p1 uint32) error
	Operation922a(ctx context.Context, s string) error
	Operation922b(ctx context.Context, p1, p2, p3 uint32) error
	Operation922c(ctx context.Context, p1, p2 uint32) error
	Operation922d(ctx context.Context, params ...uint32) error
	Operation922f(ctx context.Context, params ...uint32) error
	Operation9802(ctx context.Context, propCode uint16, id ObjectID) error

	GetBulkPipe(ctx context.Context) (BulkPipe, error)
}

// Well-known MTP object property codes used by the authoring sequencer and
// ZMDB blob fetch.
const (
	PropObjectFilename   uint16 = 0xDC07
	PropName             uint16 = 0xDC44
	PropZuneCollectionID uint16 = 0xDD90 // placeholder vendor code; the property lists in mtp_proplist.go send PropZuneCollectionIDCode instead
)

// MTP object formats used when authoring new content.
const (
	FormatMP3               uint16 = 0x3009
	FormatWMA               uint16 = 0xB901
	FormatAbstractAudioAlbum uint16 = 0xBA03
	FormatAbstractAVPlaylist uint16 = 0xBA05
)

// RepresentativeSampleFormat value meaning JPEG.
const RepresentativeSampleFormatJPEG uint32 = 0x3801
