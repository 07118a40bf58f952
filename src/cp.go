package zune

import (
	"encoding/binary"
	"fmt"
)

// The PPP control-protocol packet format shared by LCP, IPCP, and CCP
// (RFC 1661 §5): a one-byte code, a one-byte identifier the reply must
// echo, a two-byte length covering the whole packet, and code-specific
// data (a list of TLV options for Configure-*, raw rejected data for
// Code-Reject).

// CPCode identifies a control-protocol packet's function.
type CPCode uint8

const (
	CPConfigureRequest CPCode = 1
	CPConfigureAck     CPCode = 2
	CPConfigureNak     CPCode = 3
	CPConfigureReject  CPCode = 4
	CPTerminateRequest CPCode = 5
	CPTerminateAck     CPCode = 6
	CPCodeReject       CPCode = 7
)

// CPOption is one TLV-encoded negotiation option.
type CPOption struct {
	Type uint8
	Data []byte
}

// CPPacket is a parsed control-protocol packet.
type CPPacket struct {
	Code       CPCode
	Identifier uint8
	Options    []CPOption
}

// ParseCPPacket decodes a control-protocol packet. Options are only
// meaningful for the Configure-* codes; other codes carry their payload
// as a single opaque option whose Type is unused.
func ParseCPPacket(data []byte) (CPPacket, error) {
	if len(data) < 4 {
		return CPPacket{}, fmt.Errorf("ParseCPPacket: truncated header (%d bytes)", len(data))
	}
	var length = binary.BigEndian.Uint16(data[2:4])
	if int(length) != len(data) {
		return CPPacket{}, fmt.Errorf("ParseCPPacket: length %d does not match buffer %d", length, len(data))
	}

	var p = CPPacket{Code: CPCode(data[0]), Identifier: data[1]}
	var body = data[4:length]

	switch p.Code {
	case CPConfigureRequest, CPConfigureAck, CPConfigureNak, CPConfigureReject:
		var opts, err = parseCPOptions(body)
		if err != nil {
			return CPPacket{}, err
		}
		p.Options = opts
	default:
		if len(body) > 0 {
			p.Options = []CPOption{{Data: body}}
		}
	}

	return p, nil
}

func parseCPOptions(body []byte) ([]CPOption, error) {
	var opts []CPOption
	var off int
	for off < len(body) {
		if off+2 > len(body) {
			return nil, fmt.Errorf("parseCPOptions: truncated option header at offset %d", off)
		}
		var optType = body[off]
		var optLen = int(body[off+1])
		if optLen < 2 || off+optLen > len(body) {
			return nil, fmt.Errorf("parseCPOptions: invalid option length %d at offset %d", optLen, off)
		}
		opts = append(opts, CPOption{Type: optType, Data: append([]byte{}, body[off+2:off+optLen]...)})
		off += optLen
	}
	return opts, nil
}

// BuildCPPacket serializes p, computing its length field.
func BuildCPPacket(p CPPacket) []byte {
	var body []byte
	switch p.Code {
	case CPConfigureRequest, CPConfigureAck, CPConfigureNak, CPConfigureReject:
		for _, o := range p.Options {
			body = append(body, o.Type, byte(len(o.Data)+2))
			body = append(body, o.Data...)
		}
	default:
		for _, o := range p.Options {
			body = append(body, o.Data...)
		}
	}

	var out = make([]byte, 4+len(body))
	out[0] = byte(p.Code)
	out[1] = p.Identifier
	binary.BigEndian.PutUint16(out[2:4], uint16(len(out)))
	copy(out[4:], body)
	return out
}
