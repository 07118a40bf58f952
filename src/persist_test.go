package zune

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistedState_FirstRunReturnsEmpty(t *testing.T) {
	var dir = t.TempDir()
	var p = &PersistedState{
		PairingGUIDPath: filepath.Join(dir, "pairing.guid"),
		SessionGUIDPath: filepath.Join(dir, "session.guid"),
	}

	assert.Equal(t, "", p.PairingGUID())
	assert.Equal(t, "", p.SessionGUID())
}

func TestPersistedState_RecordPairingThenReload(t *testing.T) {
	var dir = t.TempDir()
	var p = &PersistedState{
		PairingGUIDPath: filepath.Join(dir, "pairing.guid"),
		SessionGUIDPath: filepath.Join(dir, "session.guid"),
	}

	var err = p.RecordPairing("01234567-89ab-cdef-0123-456789abcdef", "fedcba98-7654-3210-fedc-ba9876543210")
	require.NoError(t, err)

	var reloaded = &PersistedState{
		PairingGUIDPath: p.PairingGUIDPath,
		SessionGUIDPath: p.SessionGUIDPath,
	}
	assert.Equal(t, "01234567-89ab-cdef-0123-456789abcdef", reloaded.PairingGUID())
	assert.Equal(t, "fedcba98-7654-3210-fedc-ba9876543210", reloaded.SessionGUID())
}

func TestPersistedState_LoadIsMemoized(t *testing.T) {
	var dir = t.TempDir()
	var p = &PersistedState{
		PairingGUIDPath: filepath.Join(dir, "pairing.guid"),
		SessionGUIDPath: filepath.Join(dir, "session.guid"),
	}
	require.NoError(t, p.RecordPairing("a", "b"))

	// Mutate files on disk after the first read; PersistedState should keep
	// serving the in-memory values recorded by RecordPairing.
	require.NoError(t, os.WriteFile(p.PairingGUIDPath, []byte("c\n"), 0o600))
	require.NoError(t, os.WriteFile(p.SessionGUIDPath, encodeUTF16LE("d"), 0o600))
	assert.Equal(t, "a", p.PairingGUID())
	assert.Equal(t, "b", p.SessionGUID())
}
