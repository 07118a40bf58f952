package zune

import (
	"io"

	"github.com/charmbracelet/log"
)

// IPCP (RFC 1332) option types this responder understands.
const (
	ipcpOptIPAddress    uint8 = 3
	ipcpOptPrimaryDNS   uint8 = 129
	ipcpOptSecondaryDNS uint8 = 131
)

// IPCPResponder negotiates the device's IPv4 address and DNS server down
// to the fixed values this bridge assigns — it never actually offers the
// device a choice, it corrects whatever it asks for until the device
// proposes the right numbers back, per the Configure-Request/Ack/Nak
// state machine in RFC 1661 §4.
type IPCPResponder struct {
	DeviceIP [4]byte
	DNSIP    [4]byte
	Logger   *log.Logger
}

func (r *IPCPResponder) log() *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return log.NewWithOptions(io.Discard, log.Options{Prefix: "ipcp"})
}

// HandleConfigureRequest builds the appropriate Configure-Ack,
// Configure-Nak, or Configure-Reject reply to a device Configure-Request.
// Any option type this responder doesn't recognize is rejected outright;
// if none are rejected but any recognized option's value is wrong, every
// wrong option is corrected in a Configure-Nak; only when every option
// already matches is a Configure-Ack returned.
func (r *IPCPResponder) HandleConfigureRequest(req CPPacket) CPPacket {
	var rejected, corrected []CPOption

	for _, opt := range req.Options {
		var want, ok = r.wantedValue(opt.Type)
		if !ok {
			rejected = append(rejected, opt)
			continue
		}
		if !bytesEqual(opt.Data, want) {
			corrected = append(corrected, CPOption{Type: opt.Type, Data: want})
		}
	}

	if len(rejected) > 0 {
		r.log().Debug("rejecting unsupported options", "count", len(rejected))
		return CPPacket{Code: CPConfigureReject, Identifier: req.Identifier, Options: rejected}
	}
	if len(corrected) > 0 {
		r.log().Debug("nak'ing mismatched options", "count", len(corrected))
		return CPPacket{Code: CPConfigureNak, Identifier: req.Identifier, Options: corrected}
	}

	r.log().Debug("configure-ack")
	return CPPacket{Code: CPConfigureAck, Identifier: req.Identifier, Options: req.Options}
}

func (r *IPCPResponder) wantedValue(optType uint8) ([]byte, bool) {
	switch optType {
	case ipcpOptIPAddress:
		return r.DeviceIP[:], true
	case ipcpOptPrimaryDNS, ipcpOptSecondaryDNS:
		return r.DNSIP[:], true
	default:
		return nil, false
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
