package zune

// Device identification decodes the vendor device-descriptor property
// (0xD21A) into a device family and color enumeration, per §4.10. This
// mirrors the teacher's deviceid.go table-lookup style (there: decoding an
// APRS destination-field tocall into vendor/model; here: decoding a 32-bit
// device property into family/color) but the tables are small enough to be
// compiled in rather than loaded from a YAML sidecar file.

// Family identifies the device hardware generation.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyKeel           // 1st gen HDD
	FamilyScorpius       // 2nd gen flash
	FamilyDraco          // 2nd gen HDD
	FamilyPavo           // HD, the only family with network-mode capability
)

func (f Family) String() string {
	switch f {
	case FamilyKeel:
		return "Keel"
	case FamilyScorpius:
		return "Scorpius"
	case FamilyDraco:
		return "Draco"
	case FamilyPavo:
		return "Pavo"
	default:
		return "Unknown"
	}
}

// familyByID maps the property's family_id byte to a Family.
var familyByID = map[uint8]Family{
	0: FamilyKeel,
	2: FamilyScorpius,
	3: FamilyDraco,
	6: FamilyPavo,
}

// colorByFamily maps family -> color_id -> human name.
var colorByFamily = map[Family]map[uint8]string{
	FamilyKeel: {
		1: "White", 2: "Black", 3: "Brown",
	},
	FamilyScorpius: {
		2: "Black", 4: "Pink", 5: "Camo", 6: "Red", 7: "Citron",
		20: "BlackBlack", 22: "Blue", 24: "RedBlackBack", 25: "White",
	},
	FamilyDraco: {
		2: "Black", 6: "Red", 20: "BlackBlack", 21: "Black", 22: "BlueSilver",
		23: "BlackBlack", 24: "RedBlack", 25: "WhiteSilver", 26: "BlueBlack",
		27: "WhiteBlack", 28: "BlackBlack",
	},
	FamilyPavo: {
		0: "Black", 1: "Platinum", 3: "Pink", 4: "Red", 5: "Blue",
		6: "Purple", 7: "Magenta", 8: "Citron", 9: "Atomic",
	},
}

// DeviceIdentity is the decoded form of property 0xD21A.
type DeviceIdentity struct {
	Family Family
	Color  string // "Unknown" if the color_id has no entry for this family
}

// NetworkModeCapable reports whether this device family can tunnel PPP over
// its bulk endpoints. Only Pavo does.
func (d DeviceIdentity) NetworkModeCapable() bool {
	return d.Family == FamilyPavo
}

// DecodeDeviceIdentity decodes the 32-bit device-descriptor property value.
// Wire layout is big-endian bytes (family_id, _, _, color_id).
func DecodeDeviceIdentity(prop uint32) DeviceIdentity {
	var familyID = uint8(prop >> 24)
	var colorID = uint8(prop)

	var family = familyByID[familyID]

	var color = "Unknown"
	if table, ok := colorByFamily[family]; ok {
		if name, ok := table[colorID]; ok {
			color = name
		}
	}

	return DeviceIdentity{Family: family, Color: color}
}
