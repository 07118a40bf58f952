package zune

import (
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// PersistedState is the host-side persisted pairing state from spec.md §6:
// a mac-side pairing GUID (text, one line) and the device session GUID
// (binary, raw UTF-16LE exactly as the device returns it). Both files are
// read lazily and the session GUID file is written only on a successful
// wireless pairing.
type PersistedState struct {
	PairingGUIDPath string
	SessionGUIDPath string

	Logger *log.Logger

	pairingGUID string
	sessionGUID string
	loaded      bool
}

func (p *PersistedState) log() *log.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return log.Default()
}

// load reads both files once, tolerating either being absent (first run).
func (p *PersistedState) load() {
	if p.loaded {
		return
	}
	p.loaded = true

	if data, err := os.ReadFile(p.PairingGUIDPath); err == nil {
		p.pairingGUID = strings.TrimSpace(string(data))
	} else if !os.IsNotExist(err) {
		p.log().Warn("failed to read pairing GUID file", "path", p.PairingGUIDPath, "err", err)
	}

	if data, err := os.ReadFile(p.SessionGUIDPath); err == nil {
		p.sessionGUID = decodeUTF16LE(data)
	} else if !os.IsNotExist(err) {
		p.log().Warn("failed to read session GUID file", "path", p.SessionGUIDPath, "err", err)
	}
}

// PairingGUID returns the previously-persisted mac-side pairing GUID, or ""
// if no pairing has ever completed.
func (p *PersistedState) PairingGUID() string {
	p.load()
	return p.pairingGUID
}

// SessionGUID returns the previously-persisted device session GUID, or ""
// if none has been recorded yet.
func (p *PersistedState) SessionGUID() string {
	p.load()
	return p.sessionGUID
}

// RecordPairing persists both GUIDs after a successful wireless pairing,
// per spec.md §6: "writes the device session GUID on successful wireless
// pairing." The pairing GUID is stored alongside it for symmetry with the
// reference's two-file layout.
func (p *PersistedState) RecordPairing(pairingGUID, sessionGUID string) error {
	p.load()

	if err := os.WriteFile(p.PairingGUIDPath, []byte(pairingGUID+"\n"), 0o600); err != nil {
		return newErr(TransportFailure, "RecordPairing", "writing pairing GUID file failed", err)
	}
	if err := os.WriteFile(p.SessionGUIDPath, encodeUTF16LE(sessionGUID), 0o600); err != nil {
		return newErr(TransportFailure, "RecordPairing", "writing session GUID file failed", err)
	}

	p.pairingGUID = pairingGUID
	p.sessionGUID = sessionGUID
	return nil
}
