package zune

import (
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// DeviceIDOverride lets a config file extend or correct the compiled
// family/color tables in deviceid.go, the same "ship a table, let an
// operator override it" pattern the teacher uses for its tocalls.yaml.
type DeviceIDOverride struct {
	FamilyID uint8  `yaml:"family_id"`
	Family   string `yaml:"family"`
	ColorID  uint8  `yaml:"color_id"`
	Color    string `yaml:"color"`
}

// Config is the bridge's ambient configuration surface: the static-data
// root and proxy upstream the HTTP responder needs, the three IPs the
// network stack hands out over IPCP/DNS, the network-mode enable flag, and
// the two Open-Question knobs spec.md §9 leaves to this implementation.
type Config struct {
	StaticRoot    string `yaml:"static_root"`
	ProxyUpstream string `yaml:"proxy_upstream"`

	DNSIP    string `yaml:"dns_ip"`
	HostIP   string `yaml:"host_ip"`
	DeviceIP string `yaml:"device_ip"`

	NetworkModeEnabled bool `yaml:"network_mode_enabled"`

	// TrackScanStart overrides zmdb.go's classic-family track scan start
	// offset; see DESIGN.md for why this is configurable rather than a
	// hardcoded constant.
	TrackScanStart int `yaml:"track_scan_start"`

	// PreferLatestOnTie is loaded from the file and the CLI but is not read
	// by ZMDBExtractor: Pavo step 3 picks 0x0600[idx] or 0x0100[idx+1] first
	// by whether 0x0500[idx] is present, and the F-marker search always
	// returns the first match.
	PreferLatestOnTie bool `yaml:"prefer_latest_on_tie"`

	PairingGUIDPath string `yaml:"pairing_guid_path"`
	SessionGUIDPath string `yaml:"session_guid_path"`

	DeviceIDOverrides []DeviceIDOverride `yaml:"device_id_overrides"`
}

// DefaultConfig returns the configuration the bridge runs with if no config
// file and no CLI flags are supplied.
func DefaultConfig() Config {
	return Config{
		StaticRoot:      ".",
		DNSIP:           "192.168.0.30",
		HostIP:          "192.168.55.100",
		DeviceIP:        "192.168.55.101",
		TrackScanStart:  0,
		PairingGUIDPath: "pairing.guid",
		SessionGUIDPath: "session.guid",
	}
}

// LoadConfig reads a YAML config file, starting from DefaultConfig and
// overlaying whatever the file sets, mirroring the teacher's tocalls.yaml
// loading style.
func LoadConfig(path string) (Config, error) {
	var cfg = DefaultConfig()

	var data, err = os.ReadFile(path)
	if err != nil {
		return cfg, newErr(InvalidInput, "LoadConfig", "reading config file failed", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, newErr(InvalidInput, "LoadConfig", "parsing config YAML failed", err)
	}

	return cfg, nil
}

// BindFlags registers pflag overrides for every Config field onto fs,
// writing back into cfg when fs is parsed. Call after LoadConfig so CLI
// flags take precedence over the file (the teacher's cmd/ binaries layer
// flags over file config the same way).
func (cfg *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&cfg.StaticRoot, "static-root", cfg.StaticRoot, "directory served by the static HTTP responder")
	fs.StringVar(&cfg.ProxyUpstream, "proxy-upstream", cfg.ProxyUpstream, "base URL the HTTP responder proxies to in proxy mode")
	fs.StringVar(&cfg.DNSIP, "dns-ip", cfg.DNSIP, "DNS server IP address handed to the device over IPCP")
	fs.StringVar(&cfg.HostIP, "host-ip", cfg.HostIP, "host-side IP address the DNS responder answers every A query with")
	fs.StringVar(&cfg.DeviceIP, "device-ip", cfg.DeviceIP, "device-side IP address handed out over IPCP")
	fs.BoolVar(&cfg.NetworkModeEnabled, "network-mode", cfg.NetworkModeEnabled, "enable the PPP/TCP/IP network stack for Pavo-family devices")
	fs.IntVar(&cfg.TrackScanStart, "track-scan-start", cfg.TrackScanStart, "classic-family ZMDB track scan start offset override")
	fs.BoolVar(&cfg.PreferLatestOnTie, "prefer-latest-on-tie", cfg.PreferLatestOnTie, "Pavo album-metadata tie-break preference (not read by the ZMDB extractor)")
	fs.StringVar(&cfg.PairingGUIDPath, "pairing-guid-path", cfg.PairingGUIDPath, "path to the persisted pairing GUID file")
	fs.StringVar(&cfg.SessionGUIDPath, "session-guid-path", cfg.SessionGUIDPath, "path to the persisted device session GUID file")
}

// ApplyDeviceIDOverrides merges cfg's device-id table overrides into the
// compiled family/color tables in deviceid.go.
func (cfg Config) ApplyDeviceIDOverrides() {
	for _, o := range cfg.DeviceIDOverrides {
		var family = familyByID[o.FamilyID]
		if o.Family != "" {
			for f := FamilyUnknown; f <= FamilyPavo; f++ {
				if f.String() == o.Family {
					family = f
					break
				}
			}
		}
		familyByID[o.FamilyID] = family

		if colorByFamily[family] == nil {
			colorByFamily[family] = make(map[uint8]string)
		}
		colorByFamily[family][o.ColorID] = o.Color
	}
}
