package zune

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// TCPFlags is the 6-bit control-bit field of a TCP header (options
// unsupported — every segment this stack builds or parses has a bare
// 20-byte header, per §4.7).
type TCPFlags uint8

const (
	TCPFlagFIN TCPFlags = 1 << 0
	TCPFlagSYN TCPFlags = 1 << 1
	TCPFlagRST TCPFlags = 1 << 2
	TCPFlagPSH TCPFlags = 1 << 3
	TCPFlagACK TCPFlags = 1 << 4
	TCPFlagURG TCPFlags = 1 << 5
)

func (f TCPFlags) Has(bit TCPFlags) bool { return f&bit != 0 }

const tcpHeaderLen = 20

// TCPHeader is a parsed, option-free TCP segment header.
type TCPHeader struct {
	SrcPort uint16
	DstPort uint16
	Seq     uint32
	Ack     uint32
	Flags   TCPFlags
	Window  uint16
}

// ParseTCPSegment validates the checksum against ipHeader's pseudo-header
// and returns the header and payload.
func ParseTCPSegment(ipHeader IPv4Header, data []byte) (TCPHeader, []byte, error) {
	if len(data) < tcpHeaderLen {
		return TCPHeader{}, nil, fmt.Errorf("ParseTCPSegment: truncated header (%d bytes)", len(data))
	}
	var dataOffset = data[12] >> 4
	if dataOffset != 5 {
		return TCPHeader{}, nil, fmt.Errorf("ParseTCPSegment: unsupported data offset %d (options unsupported)", dataOffset)
	}

	var sum = pseudoHeaderSum(ipHeader.Src, ipHeader.Dst, ProtoTCP, uint16(len(data)))
	sum += rawSum16(data)
	if foldChecksum(sum) != 0 {
		return TCPHeader{}, nil, fmt.Errorf("ParseTCPSegment: checksum mismatch")
	}

	var h = TCPHeader{
		SrcPort: binary.BigEndian.Uint16(data[0:2]),
		DstPort: binary.BigEndian.Uint16(data[2:4]),
		Seq:     binary.BigEndian.Uint32(data[4:8]),
		Ack:     binary.BigEndian.Uint32(data[8:12]),
		Flags:   TCPFlags(data[13] & 0x3F),
		Window:  binary.BigEndian.Uint16(data[14:16]),
	}
	return h, data[tcpHeaderLen:], nil
}

// BuildTCPSegment serializes h and payload with a computed checksum.
func BuildTCPSegment(ipHeader IPv4Header, h TCPHeader, payload []byte) []byte {
	var out = make([]byte, tcpHeaderLen+len(payload))
	binary.BigEndian.PutUint16(out[0:2], h.SrcPort)
	binary.BigEndian.PutUint16(out[2:4], h.DstPort)
	binary.BigEndian.PutUint32(out[4:8], h.Seq)
	binary.BigEndian.PutUint32(out[8:12], h.Ack)
	out[12] = 5 << 4 // data offset, no options
	out[13] = byte(h.Flags)
	binary.BigEndian.PutUint16(out[14:16], h.Window)
	copy(out[tcpHeaderLen:], payload)

	var sum = pseudoHeaderSum(ipHeader.Src, ipHeader.Dst, ProtoTCP, uint16(len(out)))
	sum += rawSum16(out)
	binary.BigEndian.PutUint16(out[16:18], foldChecksum(sum))

	return out
}

// TCPState is a connection's position in the simplified state machine this
// stack needs: it only ever accepts passive opens (the device is always
// the active opener), so SYN-SENT is the one RFC 793 state left out and
// the machine has these ten states.
type TCPState int

const (
	TCPStateListen TCPState = iota
	TCPStateSynReceived
	TCPStateEstablished
	TCPStateFinWait1
	TCPStateFinWait2
	TCPStateCloseWait
	TCPStateLastAck
	TCPStateClosing
	TCPStateTimeWait
	TCPStateClosed
)

type sentSegment struct {
	seq           uint32
	length        uint32
	sentAt        time.Time
	retransmitted bool
}

// TCPConnection is one passively-opened connection's send/receive state:
// the congestion window, RTO estimator, out-of-order reassembler, and the
// unacknowledged-segment list fast retransmit and RTO retransmission need.
// Not safe for concurrent use; owned by a single worker per §5.
type TCPConnection struct {
	State TCPState

	MSS uint32

	sendNext   uint32 // next sequence number this side will send
	sendUnacked uint32 // oldest byte sent but not yet acked

	reassembler *Reassembler

	Flow *FlowController
	RTO  *RTOEstimator

	unacked    []sentSegment
	lastAck    uint32
	dupAckHits int

	Logger *log.Logger
}

func (c *TCPConnection) log() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.NewWithOptions(io.Discard, log.Options{Prefix: "tcp"})
}

// NewTCPConnection creates a connection that has just sent its SYN-ACK in
// response to the device's SYN: localISN is this side's initial sequence
// number, remoteISN is the device's.
func NewTCPConnection(localISN, remoteISN, mss uint32) *TCPConnection {
	return &TCPConnection{
		State:       TCPStateSynReceived,
		MSS:         mss,
		sendNext:    localISN + 1,
		sendUnacked: localISN + 1,
		reassembler: NewReassembler(remoteISN + 1),
		Flow:        NewFlowController(mss),
		RTO:         NewRTOEstimator(),
		lastAck:     localISN + 1,
	}
}

// AvailableWindow returns how many more bytes may be sent before waiting
// for an ACK, per the congestion window.
func (c *TCPConnection) AvailableWindow() uint32 {
	var inFlight = c.sendNext - c.sendUnacked
	if inFlight >= c.Flow.CWND() {
		return 0
	}
	return c.Flow.CWND() - inFlight
}

// Send records length bytes as newly transmitted starting at the
// connection's current send cursor, returning the sequence number they
// were sent at, and advances the cursor.
func (c *TCPConnection) Send(length uint32) uint32 {
	var seq = c.sendNext
	c.unacked = append(c.unacked, sentSegment{seq: seq, length: length, sentAt: now()})
	c.sendNext += length
	return seq
}

// now is overridable in tests that need deterministic RTT sampling.
var now = func() time.Time { return time.Now() }

// HandleAck processes an incoming ACK number, advancing the send window,
// sampling RTT for newly acknowledged non-retransmitted segments (Karn's
// algorithm), and driving fast retransmit on the third consecutive
// duplicate ACK.
func (c *TCPConnection) HandleAck(ackNum uint32) (ackedNewData bool, triggerFastRetransmit bool) {
	if seqDiff(ackNum, c.sendUnacked) <= 0 {
		if ackNum == c.lastAck {
			c.dupAckHits++
			if c.dupAckHits == 3 {
				c.Flow.OnLoss()
				c.log().Debug("fast retransmit triggered", "ack", ackNum)
				return false, true
			}
		}
		return false, false
	}

	var ackedBytes = seqDiff(ackNum, c.sendUnacked)
	c.lastAck = ackNum
	c.dupAckHits = 0
	c.sendUnacked = ackNum

	var remaining = c.unacked[:0]
	for _, seg := range c.unacked {
		var segEnd = seg.seq + seg.length
		if seqDiff(segEnd, ackNum) <= 0 {
			if !seg.retransmitted {
				c.RTO.Sample(now().Sub(seg.sentAt))
			}
			continue
		}
		remaining = append(remaining, seg)
	}
	c.unacked = remaining

	c.Flow.OnAck(uint32(ackedBytes))
	return true, false
}

// CheckRTOs returns the sequence numbers of every unacknowledged segment
// whose RTO has expired, marks them retransmitted (so their next ACK
// won't be sampled), and backs off the RTO estimator and flow controller
// once per call if anything timed out.
func (c *TCPConnection) CheckRTOs() []uint32 {
	var expired []uint32
	var rto = c.RTO.RTO()
	for i := range c.unacked {
		if now().Sub(c.unacked[i].sentAt) >= rto {
			expired = append(expired, c.unacked[i].seq)
			c.unacked[i].retransmitted = true
			c.unacked[i].sentAt = now()
		}
	}
	if len(expired) > 0 {
		c.RTO.Backoff()
		c.Flow.OnTimeout()
		c.log().Debug("RTO fired", "segments", len(expired))
	}
	return expired
}

// ReceiveSegment folds an incoming segment into the reassembler and
// advances the connection's close state machine for FIN/RST flags.
// Returns newly-available in-order application data.
func (c *TCPConnection) ReceiveSegment(h TCPHeader, payload []byte) []byte {
	var data = c.reassembler.Insert(h.Seq, payload)

	if h.Flags.Has(TCPFlagRST) {
		c.State = TCPStateClosed
		return data
	}

	switch c.State {
	case TCPStateSynReceived:
		if h.Flags.Has(TCPFlagACK) {
			c.State = TCPStateEstablished
		}
	case TCPStateEstablished:
		if h.Flags.Has(TCPFlagFIN) {
			c.State = TCPStateCloseWait
		}
	case TCPStateFinWait1:
		if h.Flags.Has(TCPFlagFIN) && h.Flags.Has(TCPFlagACK) {
			c.State = TCPStateTimeWait
		} else if h.Flags.Has(TCPFlagFIN) {
			c.State = TCPStateClosing
		} else if h.Flags.Has(TCPFlagACK) {
			c.State = TCPStateFinWait2
		}
	case TCPStateFinWait2:
		if h.Flags.Has(TCPFlagFIN) {
			c.State = TCPStateTimeWait
		}
	case TCPStateClosing:
		if h.Flags.Has(TCPFlagACK) {
			c.State = TCPStateTimeWait
		}
	case TCPStateLastAck:
		if h.Flags.Has(TCPFlagACK) {
			c.State = TCPStateClosed
		}
	}

	return data
}

// Close transitions this side to actively closing (CloseWait -> LastAck,
// Established -> FinWait1), to be called after the local FIN is sent.
func (c *TCPConnection) Close() {
	switch c.State {
	case TCPStateCloseWait:
		c.State = TCPStateLastAck
	case TCPStateEstablished:
		c.State = TCPStateFinWait1
	}
}
