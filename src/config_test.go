package zune

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_OverlaysDefaults(t *testing.T) {
	var dir = t.TempDir()
	var path = filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("static_root: /srv/music\nnetwork_mode_enabled: true\n"), 0o600))

	var cfg, err = LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/music", cfg.StaticRoot)
	assert.True(t, cfg.NetworkModeEnabled)
	// Fields not set in the file keep their defaults.
	assert.Equal(t, "192.168.0.30", cfg.DNSIP)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	var _, err = LoadConfig("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestConfig_BindFlags_CLIOverridesFile(t *testing.T) {
	var cfg = DefaultConfig()
	cfg.StaticRoot = "/from/file"

	var fs = pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--static-root=/from/cli"}))

	assert.Equal(t, "/from/cli", cfg.StaticRoot)
}

func TestConfig_ApplyDeviceIDOverrides(t *testing.T) {
	var cfg = DefaultConfig()
	cfg.DeviceIDOverrides = []DeviceIDOverride{
		{FamilyID: 99, Family: "Pavo", ColorID: 250, Color: "Prototype"},
	}
	cfg.ApplyDeviceIDOverrides()
	t.Cleanup(func() {
		delete(familyByID, 99)
		delete(colorByFamily[FamilyPavo], 250)
	})

	var id = DecodeDeviceIdentity(99<<24 | 250)
	assert.Equal(t, FamilyPavo, id.Family)
	assert.Equal(t, "Prototype", id.Color)
}
