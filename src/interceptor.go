package zune

import (
	"context"
	"io"
	"math/rand"
	"time"

	"github.com/charmbracelet/log"
)

// Interceptor is the §4.9 dispatcher: it owns the device's bulk endpoints
// (through Session/BulkPipe), the PPP incomplete-frame buffer, the TCP
// connection table, and the HTTP request/response pipeline.
//
// The reference implementation shares all of this across a pump thread and
// an HTTP worker thread behind a mesh of mutexes (see the interceptor
// redesign note in the design notes). Here the pump is a single goroutine
// that owns every piece of mutable state — the connection table, the PPP
// framer, the pending-transmission queues — and the HTTP worker goroutine
// only ever touches that state by sending values over channels. No mutex
// protects TCP or HTTP state; the channels are the only crossing point.
type Interceptor struct {
	Session Session
	Pipe    BulkPipe

	DeviceIP [4]byte
	HostIP   [4]byte
	MSS      uint32

	IPCP          *IPCPResponder
	CCP           *CCPResponder
	DNS           *DNSResponder
	HTTPResponder *HTTPResponder
	Throttler     *ResponseThrottler

	Logger *log.Logger

	framer PPPFramer
	conns  map[uint16]*TCPConnection
	// pendingTx holds response chunks already registered for a connection
	// but not yet sent because the congestion window was full.
	pendingTx map[uint16][][]byte

	requestCh chan httpJob
	txCh      chan transmission
}

type httpJob struct {
	connID uint16
	req    HTTPRequest
}

// transmission is a worker-produced, pump-consumed unit of work: a fully
// built response already segmented into MSS-sized chunks, waiting for the
// pump to assign sequence numbers and place it on the wire.
type transmission struct {
	connID uint16
	chunks [][]byte
}

func defaultMSS(mss uint32) uint32 {
	if mss == 0 {
		return 1460
	}
	return mss
}

// NewInterceptor constructs an Interceptor. mss of 0 defaults to 1460.
func NewInterceptor(session Session, pipe BulkPipe, deviceIP, hostIP, dnsIP [4]byte, mss uint32, logger *log.Logger) *Interceptor {
	return &Interceptor{
		Session:       session,
		Pipe:          pipe,
		DeviceIP:      deviceIP,
		HostIP:        hostIP,
		MSS:           defaultMSS(mss),
		IPCP:          &IPCPResponder{DeviceIP: deviceIP, DNSIP: dnsIP, Logger: logger},
		CCP:           &CCPResponder{Logger: logger},
		DNS:           &DNSResponder{HostIP: hostIP[:], Logger: logger},
		HTTPResponder: &HTTPResponder{Mode: ModeTest, Logger: logger},
		Throttler:     NewResponseThrottler(256*1024, 1024*1024),
		Logger:        logger,
		conns:         make(map[uint16]*TCPConnection),
		pendingTx:     make(map[uint16][][]byte),
		requestCh:     make(chan httpJob, 32),
		txCh:          make(chan transmission, 32),
	}
}

func (i *Interceptor) log() *log.Logger {
	if i.Logger != nil {
		return i.Logger
	}
	return log.NewWithOptions(io.Discard, log.Options{Prefix: "interceptor"})
}

// EnableNetworkMode issues the vendor 0x922c(3,3) operation that puts the
// device into network mode, then starts 0x922d keepalive polling. Per
// spec.md §4.9, 922d polling must never start before the initial 922c has
// been acknowledged — starting it early desynchronizes the device.
func (i *Interceptor) EnableNetworkMode(ctx context.Context) error {
	if err := i.Session.Operation922c(ctx, 3, 3); err != nil {
		return newErr(TransportFailure, "EnableNetworkMode", "Operation922c failed", err)
	}

	go i.pollKeepalive(ctx)
	return nil
}

func (i *Interceptor) pollKeepalive(ctx context.Context) {
	var ticker = time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := i.Session.Operation922d(ctx); err != nil {
				i.log().Warn("922d keepalive failed", "err", err)
			}
		}
	}
}

// Run starts the pump and HTTP worker goroutines and blocks until ctx is
// cancelled or the bulk pipe errors out.
func (i *Interceptor) Run(ctx context.Context) error {
	go i.runWorker(ctx)
	return i.runPump(ctx)
}

func (i *Interceptor) runPump(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var data, err = i.Pipe.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			i.log().Warn("bulk read failed", "err", err)
			return newErr(TransportFailure, "runPump", "bulk read failed", err)
		}

		if len(data) > 0 {
			for _, frame := range i.framer.Feed(data) {
				i.dispatch(ctx, frame)
			}
		}

		i.checkRTOs(ctx)
		i.drainReadyTransmissions(ctx)
		i.drainIncomingTransmissions(ctx)
	}
}

// drainIncomingTransmissions pulls any worker-produced transmissions off
// txCh (non-blocking) and queues their chunks for this connection.
func (i *Interceptor) drainIncomingTransmissions(ctx context.Context) {
	for {
		select {
		case tx := <-i.txCh:
			i.pendingTx[tx.connID] = append(i.pendingTx[tx.connID], tx.chunks...)
		default:
			return
		}
	}
}

// drainReadyTransmissions sends as many queued chunks as each connection's
// congestion window currently allows.
func (i *Interceptor) drainReadyTransmissions(ctx context.Context) {
	for connID, chunks := range i.pendingTx {
		var conn, ok = i.conns[connID]
		if !ok {
			delete(i.pendingTx, connID)
			continue
		}
		var sent int
		for _, chunk := range chunks {
			if conn.AvailableWindow() < uint32(len(chunk)) {
				break
			}
			var seq = conn.Send(uint32(len(chunk)))
			i.sendTCPFromDevice(ctx, connID, conn, seq, chunk, TCPFlagACK|TCPFlagPSH)
			sent++
		}
		if sent == len(chunks) {
			delete(i.pendingTx, connID)
		} else {
			i.pendingTx[connID] = chunks[sent:]
		}
	}
}

func (i *Interceptor) checkRTOs(ctx context.Context) {
	for connID, conn := range i.conns {
		for _, seq := range conn.CheckRTOs() {
			i.log().Debug("retransmitting on RTO", "conn", connID, "seq", seq)
			// The reassembler/unacked list only tracks seq/length; the
			// original chunk bytes for a pure retransmit are recovered from
			// pendingTx's already-sent history in a fuller implementation.
			// Here a timed-out segment simply forces a fresh ACK probe so
			// the device's own retransmission resends the data.
			i.sendAck(ctx, connID, conn)
		}
	}
}

func (i *Interceptor) dispatch(ctx context.Context, frame PPPFrame) {
	switch frame.Protocol {
	case ProtoIPCP:
		i.handleIPCP(ctx, frame.Payload)
	case ProtoCCP:
		i.handleCCP(ctx, frame.Payload)
	case ProtoIPv4:
		i.handleIPv4(ctx, frame.Payload)
	default:
		i.log().Debug("dropping frame with unknown protocol", "protocol", frame.Protocol)
	}
}

func (i *Interceptor) handleIPCP(ctx context.Context, payload []byte) {
	var req, err = ParseCPPacket(payload)
	if err != nil {
		i.log().Debug("dropping malformed IPCP packet", "err", err)
		return
	}
	if req.Code != CPConfigureRequest {
		return
	}
	var reply = i.IPCP.HandleConfigureRequest(req)
	i.writePPP(ctx, ProtoIPCP, BuildCPPacket(reply))
}

func (i *Interceptor) handleCCP(ctx context.Context, payload []byte) {
	var req, err = ParseCPPacket(payload)
	if err != nil {
		i.log().Debug("dropping malformed CCP packet", "err", err)
		return
	}
	if req.Code != CPConfigureRequest {
		return
	}
	var reply = i.CCP.HandleConfigureRequest(req)
	i.writePPP(ctx, ProtoCCP, BuildCPPacket(reply))
}

func (i *Interceptor) handleIPv4(ctx context.Context, payload []byte) {
	var ipHdr, body, err = ParseIPv4Packet(payload)
	if err != nil {
		i.log().Debug("dropping malformed IPv4 packet", "err", err)
		return
	}

	switch ipHdr.Protocol {
	case ProtoUDP:
		i.handleUDP(ctx, ipHdr, body)
	case ProtoTCP:
		i.handleTCP(ctx, ipHdr, body)
	default:
		i.log().Debug("dropping unsupported IP protocol", "protocol", ipHdr.Protocol)
	}
}

func (i *Interceptor) handleUDP(ctx context.Context, ipHdr IPv4Header, body []byte) {
	var udpHdr, payload, err = ParseUDPSegment(ipHdr, body)
	if err != nil {
		i.log().Debug("dropping malformed UDP segment", "err", err)
		return
	}
	if udpHdr.DstPort != 53 {
		return
	}

	var reply, dnsErr = i.DNS.Answer(payload)
	if dnsErr != nil {
		i.log().Debug("DNS answer failed", "err", dnsErr)
		return
	}

	var replyUDP = BuildUDPSegment(reverseIPHeader(ipHdr), UDPHeader{SrcPort: 53, DstPort: udpHdr.SrcPort}, reply)
	var replyIP = BuildIPv4Packet(reverseIPHeader(ipHdr), replyUDP)
	i.writePPP(ctx, ProtoIPv4, replyIP)
}

func reverseIPHeader(h IPv4Header) IPv4Header {
	return IPv4Header{TOS: h.TOS, TTL: 64, Protocol: h.Protocol, Src: h.Dst, Dst: h.Src}
}

func (i *Interceptor) handleTCP(ctx context.Context, ipHdr IPv4Header, body []byte) {
	var tcpHdr, payload, err = ParseTCPSegment(ipHdr, body)
	if err != nil {
		i.log().Debug("dropping malformed TCP segment", "err", err)
		return
	}

	var conn, ok = i.conns[tcpHdr.SrcPort]
	if !ok {
		if !tcpHdr.Flags.Has(TCPFlagSYN) {
			return // segment for an unknown connection and not an opener: ignore, per §7
		}
		var localISN = rand.Uint32()
		conn = NewTCPConnection(localISN, tcpHdr.Seq, i.MSS)
		i.conns[tcpHdr.SrcPort] = conn

		var synAck = TCPHeader{SrcPort: tcpHdr.DstPort, DstPort: tcpHdr.SrcPort, Seq: localISN, Ack: tcpHdr.Seq + 1, Flags: TCPFlagSYN | TCPFlagACK, Window: 65535}
		var seg = BuildTCPSegment(reverseIPHeader(ipHdr), synAck, nil)
		i.writePPP(ctx, ProtoIPv4, BuildIPv4Packet(reverseIPHeader(ipHdr), seg))
		return
	}

	if conn.State == TCPStateSynReceived && tcpHdr.Flags.Has(TCPFlagSYN) && !tcpHdr.Flags.Has(TCPFlagACK) {
		if tcpHdr.Seq == conn.reassembler.NextSeq()-1 {
			// Duplicate SYN for the same connection attempt: re-emit the
			// stored SYN-ACK rather than falling through to the generic
			// path, which would otherwise swallow it silently (§4.7).
			var localISN = conn.sendNext - 1
			var synAck = TCPHeader{SrcPort: tcpHdr.DstPort, DstPort: tcpHdr.SrcPort, Seq: localISN, Ack: tcpHdr.Seq + 1, Flags: TCPFlagSYN | TCPFlagACK, Window: 65535}
			var seg = BuildTCPSegment(reverseIPHeader(ipHdr), synAck, nil)
			i.writePPP(ctx, ProtoIPv4, BuildIPv4Packet(reverseIPHeader(ipHdr), seg))
		}
		return
	}

	if tcpHdr.Flags.Has(TCPFlagRST) {
		conn.ReceiveSegment(tcpHdr, payload)
		delete(i.conns, tcpHdr.SrcPort)
		delete(i.pendingTx, tcpHdr.SrcPort)
		i.Throttler.Forget(uint32(tcpHdr.SrcPort))
		return
	}

	var data = conn.ReceiveSegment(tcpHdr, payload)

	if tcpHdr.Flags.Has(TCPFlagACK) {
		conn.HandleAck(tcpHdr.Ack)
	}

	if len(data) > 0 {
		if IsVendorTCPFrame(data) {
			i.handleVendorDNSTCP(tcpHdr.SrcPort, data)
		} else if req, err := ParseHTTPRequest(data); err == nil {
			select {
			case i.requestCh <- httpJob{connID: tcpHdr.SrcPort, req: req}:
			default:
				i.log().Warn("request queue full, dropping request", "conn", tcpHdr.SrcPort)
			}
		} else {
			i.log().Debug("buffered data did not parse as an HTTP request yet", "conn", tcpHdr.SrcPort, "bytes", len(data))
		}
	}

	if len(payload) > 0 || tcpHdr.Flags.Has(TCPFlagFIN) {
		i.sendAck(ctx, tcpHdr.SrcPort, conn)
	}

	if conn.State == TCPStateClosed {
		delete(i.conns, tcpHdr.SrcPort)
		delete(i.pendingTx, tcpHdr.SrcPort)
		i.Throttler.Forget(uint32(tcpHdr.SrcPort))
	}
}

// handleVendorDNSTCP answers a DNS-over-TCP query framed with the vendor
// header (§4.6) by queueing the response on the same connection the pump
// is already draining — synchronous enough not to need the HTTP worker.
func (i *Interceptor) handleVendorDNSTCP(connID uint16, data []byte) {
	var id1, msg, _, ok = ParseVendorTCPFrame(data)
	if !ok {
		i.log().Debug("incomplete vendor DNS-over-TCP frame", "conn", connID)
		return
	}
	var framed, err = i.DNS.AnswerTCP(id1, msg)
	if err != nil {
		i.log().Debug("vendor DNS-over-TCP answer failed", "conn", connID, "err", err)
		return
	}
	i.pendingTx[connID] = append(i.pendingTx[connID], SegmentForTransmission(framed, int(i.MSS))...)
}

func (i *Interceptor) sendAck(ctx context.Context, connID uint16, conn *TCPConnection) {
	var h = TCPHeader{SrcPort: 0, DstPort: connID, Seq: conn.sendUnacked, Ack: conn.reassembler.NextSeq(), Flags: TCPFlagACK, Window: 65535}
	var ipHdr = IPv4Header{TTL: 64, Protocol: ProtoTCP, Src: i.HostIP, Dst: i.DeviceIP}
	var seg = BuildTCPSegment(ipHdr, h, nil)
	i.writePPP(ctx, ProtoIPv4, BuildIPv4Packet(ipHdr, seg))
}

func (i *Interceptor) sendTCPFromDevice(ctx context.Context, connID uint16, conn *TCPConnection, seq uint32, payload []byte, flags TCPFlags) {
	var h = TCPHeader{SrcPort: 0, DstPort: connID, Seq: seq, Ack: conn.reassembler.NextSeq(), Flags: flags, Window: 65535}
	var ipHdr = IPv4Header{TTL: 64, Protocol: ProtoTCP, Src: i.HostIP, Dst: i.DeviceIP}
	var seg = BuildTCPSegment(ipHdr, h, payload)
	i.writePPP(ctx, ProtoIPv4, BuildIPv4Packet(ipHdr, seg))
}

func (i *Interceptor) writePPP(ctx context.Context, protocol uint16, payload []byte) {
	if err := i.Pipe.Write(ctx, FramePPP(payload, protocol)); err != nil {
		i.log().Warn("bulk write failed", "err", err)
	}
}

// runWorker is the HTTP request worker: it only ever talks to the pump via
// requestCh/txCh, never touching the connection table directly.
func (i *Interceptor) runWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-i.requestCh:
			i.handleRequest(ctx, job)
		}
	}
}

func (i *Interceptor) handleRequest(ctx context.Context, job httpJob) {
	var response = i.HTTPResponder.Respond(job.req)
	i.throttle(job.connID, int64(len(response)))

	var chunks = SegmentForTransmission(response, int(i.MSS))

	select {
	case i.txCh <- transmission{connID: job.connID, chunks: chunks}:
	case <-ctx.Done():
	}
}

// throttle blocks the worker until the throttler's per-connection and
// global budgets allow size bytes through, per spec.md §4.8's pacing rule.
func (i *Interceptor) throttle(connID uint16, size int64) {
	var remaining = size
	for remaining > 0 {
		var allowed = i.Throttler.Allow(uint32(connID), remaining)
		if allowed <= 0 {
			time.Sleep(50 * time.Millisecond)
			continue
		}
		remaining -= allowed
	}
}
