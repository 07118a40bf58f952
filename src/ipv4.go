package zune

import (
	"encoding/binary"
	"fmt"
)

// Minimal IPv4 + UDP header codec for the userspace network stack's
// synthesized host-side responses (§4.4-4.8). No IP options, no
// fragmentation support — every datagram this stack builds or accepts
// carries a bare 20-byte IPv4 header, matching what the device's network
// client actually sends.

const (
	ipv4HeaderLen = 20
	ipv4Version4  = 4

	ProtoICMP = 1
	ProtoTCP  = 6
	ProtoUDP  = 17
)

// IPv4Header is a parsed, option-free IPv4 header.
type IPv4Header struct {
	TOS         uint8
	TotalLength uint16
	ID          uint16
	DontFrag    bool
	FragOffset  uint16
	TTL         uint8
	Protocol    uint8
	Src         [4]byte
	Dst         [4]byte
}

// ParseIPv4Packet splits data into its header and payload. Any IHL other
// than 5 (for example options present) is rejected with an error, since no
// peer in this system sends IPv4 options.
func ParseIPv4Packet(data []byte) (IPv4Header, []byte, error) {
	if len(data) < ipv4HeaderLen {
		return IPv4Header{}, nil, fmt.Errorf("ParseIPv4Packet: truncated header (%d bytes)", len(data))
	}

	var versionIHL = data[0]
	var version = versionIHL >> 4
	var ihl = versionIHL & 0x0F
	if version != ipv4Version4 {
		return IPv4Header{}, nil, fmt.Errorf("ParseIPv4Packet: unsupported version %d", version)
	}
	if ihl != 5 {
		return IPv4Header{}, nil, fmt.Errorf("ParseIPv4Packet: unsupported IHL %d (options unsupported)", ihl)
	}

	var totalLength = binary.BigEndian.Uint16(data[2:4])
	if int(totalLength) > len(data) {
		return IPv4Header{}, nil, fmt.Errorf("ParseIPv4Packet: total length %d exceeds buffer %d", totalLength, len(data))
	}

	var flagsFrag = binary.BigEndian.Uint16(data[6:8])

	var h = IPv4Header{
		TOS:         data[1],
		TotalLength: totalLength,
		ID:          binary.BigEndian.Uint16(data[4:6]),
		DontFrag:    flagsFrag&0x4000 != 0,
		FragOffset:  flagsFrag & 0x1FFF,
		TTL:         data[8],
		Protocol:    data[9],
	}
	copy(h.Src[:], data[12:16])
	copy(h.Dst[:], data[16:20])

	if ipChecksum(data[:ipv4HeaderLen]) != 0 {
		return IPv4Header{}, nil, fmt.Errorf("ParseIPv4Packet: header checksum mismatch")
	}

	return h, data[ipv4HeaderLen:int(totalLength)], nil
}

// BuildIPv4Packet serializes h followed by payload, computing both the
// total length and header checksum.
func BuildIPv4Packet(h IPv4Header, payload []byte) []byte {
	var totalLength = ipv4HeaderLen + len(payload)
	var out = make([]byte, totalLength)

	out[0] = ipv4Version4<<4 | 5
	out[1] = h.TOS
	binary.BigEndian.PutUint16(out[2:4], uint16(totalLength))
	binary.BigEndian.PutUint16(out[4:6], h.ID)

	var flagsFrag = h.FragOffset & 0x1FFF
	if h.DontFrag {
		flagsFrag |= 0x4000
	}
	binary.BigEndian.PutUint16(out[6:8], flagsFrag)

	out[8] = h.TTL
	out[9] = h.Protocol
	// out[10:12] checksum filled below
	copy(out[12:16], h.Src[:])
	copy(out[16:20], h.Dst[:])
	copy(out[ipv4HeaderLen:], payload)

	var sum = ipChecksum(out[:ipv4HeaderLen])
	binary.BigEndian.PutUint16(out[10:12], sum)

	return out
}

// ipChecksum computes the RFC 791/768 one's-complement checksum: sum every
// 16-bit big-endian word (zero-padding an odd trailing byte), fold carries
// back in, then complement. Called both to compute a checksum (over a
// zeroed checksum field) and to verify one (over the received field,
// expecting a result of zero).
func ipChecksum(data []byte) uint16 {
	var sum uint32
	var i int
	for ; i+1 < len(data); i += 2 {
		sum += uint32(data[i])<<8 | uint32(data[i+1])
	}
	if i < len(data) {
		sum += uint32(data[i]) << 8
	}
	for sum>>16 != 0 {
		sum = sum&0xFFFF + sum>>16
	}
	return ^uint16(sum)
}

// pseudoHeaderSum accumulates (without folding or complementing) the IPv4
// pseudo-header UDP and TCP checksums cover: source/dest address, zero,
// protocol, and segment length. Callers add this into their own running
// sum before folding.
func pseudoHeaderSum(src, dst [4]byte, protocol uint8, segmentLength uint16) uint32 {
	var sum uint32
	sum += uint32(src[0])<<8 | uint32(src[1])
	sum += uint32(src[2])<<8 | uint32(src[3])
	sum += uint32(dst[0])<<8 | uint32(dst[1])
	sum += uint32(dst[2])<<8 | uint32(dst[3])
	sum += uint32(protocol)
	sum += uint32(segmentLength)
	return sum
}

// foldChecksum folds a raw accumulated sum (which may include a
// pseudo-header contribution) down to a complemented 16-bit checksum.
func foldChecksum(sum uint32) uint16 {
	for sum>>16 != 0 {
		sum = sum&0xFFFF + sum>>16
	}
	return ^uint16(sum)
}

// rawSum16 sums data as 16-bit big-endian words without folding or
// complementing, for combining with a pseudo-header sum.
func rawSum16(data []byte) uint32 {
	var sum uint32
	var i int
	for ; i+1 < len(data); i += 2 {
		sum += uint32(data[i])<<8 | uint32(data[i+1])
	}
	if i < len(data) {
		sum += uint32(data[i]) << 8
	}
	return sum
}

const udpHeaderLen = 8

// UDPHeader is a parsed UDP header.
type UDPHeader struct {
	SrcPort uint16
	DstPort uint16
}

// ParseUDPSegment validates the UDP checksum against the given IPv4
// pseudo-header and returns the header and payload.
func ParseUDPSegment(ipHeader IPv4Header, data []byte) (UDPHeader, []byte, error) {
	if len(data) < udpHeaderLen {
		return UDPHeader{}, nil, fmt.Errorf("ParseUDPSegment: truncated header (%d bytes)", len(data))
	}
	var length = binary.BigEndian.Uint16(data[4:6])
	if int(length) > len(data) || length < udpHeaderLen {
		return UDPHeader{}, nil, fmt.Errorf("ParseUDPSegment: invalid length %d", length)
	}

	var checksum = binary.BigEndian.Uint16(data[6:8])
	if checksum != 0 {
		var sum = pseudoHeaderSum(ipHeader.Src, ipHeader.Dst, ProtoUDP, length)
		sum += rawSum16(data[:length])
		if foldChecksum(sum) != 0 {
			return UDPHeader{}, nil, fmt.Errorf("ParseUDPSegment: checksum mismatch")
		}
	}

	return UDPHeader{
		SrcPort: binary.BigEndian.Uint16(data[0:2]),
		DstPort: binary.BigEndian.Uint16(data[2:4]),
	}, data[udpHeaderLen:length], nil
}

// BuildUDPSegment serializes h and payload with a computed checksum over
// ipHeader's pseudo-header.
func BuildUDPSegment(ipHeader IPv4Header, h UDPHeader, payload []byte) []byte {
	var length = udpHeaderLen + len(payload)
	var out = make([]byte, length)

	binary.BigEndian.PutUint16(out[0:2], h.SrcPort)
	binary.BigEndian.PutUint16(out[2:4], h.DstPort)
	binary.BigEndian.PutUint16(out[4:6], uint16(length))
	// out[6:8] checksum filled below
	copy(out[udpHeaderLen:], payload)

	var sum = pseudoHeaderSum(ipHeader.Src, ipHeader.Dst, ProtoUDP, uint16(length))
	sum += rawSum16(out)
	var checksum = foldChecksum(sum)
	if checksum == 0 {
		checksum = 0xFFFF // RFC 768: a computed zero checksum is transmitted as all-ones
	}
	binary.BigEndian.PutUint16(out[6:8], checksum)

	return out
}
