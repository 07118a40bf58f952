package zune

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeDeviceIdentity_Pavo(t *testing.T) {
	var prop uint32 = 6<<24 | 4 // family_id=6 (Pavo), color_id=4 (Red)
	var id = DecodeDeviceIdentity(prop)
	assert.Equal(t, FamilyPavo, id.Family)
	assert.Equal(t, "Red", id.Color)
	assert.True(t, id.NetworkModeCapable())
}

func TestDecodeDeviceIdentity_Keel(t *testing.T) {
	var prop uint32 = 0<<24 | 2 // family_id=0 (Keel), color_id=2 (Black)
	var id = DecodeDeviceIdentity(prop)
	assert.Equal(t, FamilyKeel, id.Family)
	assert.Equal(t, "Black", id.Color)
	assert.False(t, id.NetworkModeCapable())
}

func TestDecodeDeviceIdentity_UnknownFamilyAndColor(t *testing.T) {
	var prop uint32 = 99<<24 | 200
	var id = DecodeDeviceIdentity(prop)
	assert.Equal(t, FamilyUnknown, id.Family)
	assert.Equal(t, "Unknown", id.Color)
}

func TestDecodeDeviceIdentity_KnownFamilyUnknownColor(t *testing.T) {
	var prop uint32 = 6<<24 | 250 // Pavo with an unmapped color id
	var id = DecodeDeviceIdentity(prop)
	assert.Equal(t, FamilyPavo, id.Family)
	assert.Equal(t, "Unknown", id.Color)
}
