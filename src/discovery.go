package zune

// Discovery announces and locates devices on the local network, the
// pure-Go cross-platform analogue of the reference's process-wide SSDP
// discovery singleton (spec.md §9 "Global SSDP discovery state"). Here it
// is an explicit object the host owns and starts, not global state.

import (
	"context"
	"net"

	"github.com/brutella/dnssd"
	"github.com/charmbracelet/log"
)

// DiscoveryServiceType is the mDNS service type the bridge browses for;
// devices in network mode are expected to advertise themselves under it
// once PPP/IPCP negotiation hands them a DNS-capable address.
const DiscoveryServiceType = "_zunebridge._tcp"

// DeviceDiscoveredFunc mirrors spec.md §6's device_discovered_callback(ip,
// uuid) signature.
type DeviceDiscoveredFunc func(ip, uuid string)

// Discovery browses for devices advertising DiscoveryServiceType and
// invokes onDiscovered for each one found, using its first IPv4 address
// and DNS-SD instance name as the uuid.
type Discovery struct {
	OnDiscovered DeviceDiscoveredFunc
	Logger       *log.Logger
}

func (d *Discovery) log() *log.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return log.Default()
}

// Browse blocks, watching for devices until ctx is cancelled.
func (d *Discovery) Browse(ctx context.Context) error {
	var added = func(e dnssd.BrowseEntry) {
		var ip = firstIPv4(e.IPs)
		if ip == "" {
			d.log().Warn("discovery: browse entry has no IPv4 address", "name", e.Name)
			return
		}
		d.log().Info("discovery: device found", "name", e.Name, "ip", ip)
		if d.OnDiscovered != nil {
			d.OnDiscovered(ip, e.Name)
		}
	}
	var removed = func(e dnssd.BrowseEntry) {
		d.log().Info("discovery: device gone", "name", e.Name)
	}

	return dnssd.LookupType(ctx, DiscoveryServiceType, added, removed)
}

// Announce advertises the bridge's own presence so a mobile/desktop
// companion app can find it, mirroring the teacher's dns_sd_announce but
// for the bridge's control endpoint rather than a KISS TCP port.
func Announce(ctx context.Context, name string, port int) error {
	var cfg = dnssd.Config{
		Name: name,
		Type: DiscoveryServiceType,
		Port: port,
	}

	var sv, err = dnssd.NewService(cfg)
	if err != nil {
		return newErr(TransportFailure, "Announce", "dnssd.NewService failed", err)
	}

	var rp, err2 = dnssd.NewResponder()
	if err2 != nil {
		return newErr(TransportFailure, "Announce", "dnssd.NewResponder failed", err2)
	}

	if _, err := rp.Add(sv); err != nil {
		return newErr(TransportFailure, "Announce", "adding service to responder failed", err)
	}

	return rp.Respond(ctx)
}

func firstIPv4(ips []net.IP) string {
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return v4.String()
		}
	}
	return ""
}
