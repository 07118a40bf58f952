package zune

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/charmbracelet/log"
	"github.com/miekg/dns"
)

// DNSResponder answers every A-record query the device sends with this
// bridge's own host address, so all of the device's outbound HTTP traffic
// lands on the interceptor's static/proxy responder regardless of what
// hostname it resolves (§4.6). It never recurses or forwards upstream.
type DNSResponder struct {
	HostIP net.IP
	TTL    uint32
	Logger *log.Logger
}

func (r *DNSResponder) log() *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return log.NewWithOptions(io.Discard, log.Options{Prefix: "dns"})
}

func (r *DNSResponder) ttl() uint32 {
	if r.TTL != 0 {
		return r.TTL
	}
	return 60
}

// Answer builds the wire-format reply to a single DNS message carried over
// UDP port 53: an A record pointing every A-type question at HostIP, and
// an empty-answer NOERROR reply for anything else (so the device's
// resolver doesn't stall waiting for a response it will never get).
func (r *DNSResponder) Answer(query []byte) ([]byte, error) {
	var m = new(dns.Msg)
	if err := m.Unpack(query); err != nil {
		return nil, fmt.Errorf("DNSResponder.Answer: %w", err)
	}

	var reply = new(dns.Msg)
	reply.SetReply(m)
	reply.Authoritative = true

	for _, q := range m.Question {
		if q.Qtype != dns.TypeA {
			continue
		}
		reply.Answer = append(reply.Answer, &dns.A{
			Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: r.ttl()},
			A:   r.HostIP.To4(),
		})
		r.log().Debug("answering A query", "name", q.Name, "host", r.HostIP)
	}

	return reply.Pack()
}

// Vendor TCP framing: unlike standard DNS-over-TCP's 2-byte length prefix
// (RFC 1035 §4.2.2), this device's TCP-mode resolver precedes each message
// with an 8-byte header of four big-endian uint16s: [id1][0x0035][length
// including this header][0x0000]. On the query side id1 comes first and
// 0x0035 second; on the response side the two are swapped.
const (
	vendorTCPHeaderLen   = 8
	vendorTCPMarker      = 0x0035
	vendorTCPTrailerZero = 0x0000
)

// BuildVendorTCPFrame prepends the 8-byte vendor response header to msg,
// swapping id1 and the 0x0035 marker into the reply ordering.
func BuildVendorTCPFrame(id1 uint16, msg []byte) []byte {
	var out = make([]byte, vendorTCPHeaderLen+len(msg))
	binary.BigEndian.PutUint16(out[0:2], vendorTCPMarker)
	binary.BigEndian.PutUint16(out[2:4], id1)
	binary.BigEndian.PutUint16(out[4:6], uint16(vendorTCPHeaderLen+len(msg)))
	binary.BigEndian.PutUint16(out[6:8], vendorTCPTrailerZero)
	copy(out[vendorTCPHeaderLen:], msg)
	return out
}

// IsVendorTCPFrame reports whether buf begins with the query-side vendor
// header: bytes [2..3] == 0x0035 and bytes [6..7] == 0x0000.
func IsVendorTCPFrame(buf []byte) bool {
	return len(buf) >= vendorTCPHeaderLen &&
		binary.BigEndian.Uint16(buf[2:4]) == vendorTCPMarker &&
		binary.BigEndian.Uint16(buf[6:8]) == vendorTCPTrailerZero
}

// ParseVendorTCPFrame extracts one length-prefixed message from the front
// of buf, returning the query's id1, the message, the remaining bytes, and
// whether a complete frame was available.
func ParseVendorTCPFrame(buf []byte) (id1 uint16, msg []byte, rest []byte, ok bool) {
	if !IsVendorTCPFrame(buf) {
		return 0, nil, buf, false
	}
	var length = int(binary.BigEndian.Uint16(buf[4:6]))
	if length < vendorTCPHeaderLen || len(buf) < length {
		return 0, nil, buf, false
	}
	return binary.BigEndian.Uint16(buf[0:2]), buf[vendorTCPHeaderLen:length], buf[length:], true
}

// AnswerTCP wraps Answer's reply in the vendor TCP framing, swapping id1
// into response position.
func (r *DNSResponder) AnswerTCP(id1 uint16, query []byte) ([]byte, error) {
	var reply, err = r.Answer(query)
	if err != nil {
		return nil, err
	}
	return BuildVendorTCPFrame(id1, reply), nil
}
