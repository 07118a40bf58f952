// devicesim drives the bridge's network stack against a pty-backed fake
// device, standing in for real USB hardware the same way the teacher's
// pseudo-terminal KISS TNC stands in for a real serial TNC.
package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/charmbracelet/log"
	"github.com/creack/pty"
	"github.com/pkg/term"
	"github.com/spf13/pflag"

	zune "github.com/kjarmicki/zunebridge/src"
)

// ptyBulkPipe adapts the pty master side to zune.BulkPipe, the interface
// the Interceptor's pump goroutine reads and writes against in place of a
// real USB bulk endpoint.
type ptyBulkPipe struct {
	f *os.File
}

func (p *ptyBulkPipe) Read(ctx context.Context) ([]byte, error) {
	var buf = make([]byte, 4096)
	var n, err = p.f.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (p *ptyBulkPipe) Write(ctx context.Context, data []byte) error {
	var _, err = p.f.Write(data)
	return err
}

func ipToBytes(s string) [4]byte {
	var out [4]byte
	if v4 := net.ParseIP(s).To4(); v4 != nil {
		copy(out[:], v4)
	}
	return out
}

func main() {
	var deviceIPFlag = pflag.StringP("device-ip", "d", "192.168.55.101", "Simulated device-side IP.")
	var hostIPFlag = pflag.StringP("host-ip", "o", "192.168.55.100", "Simulated host-side IP.")
	var dnsIPFlag = pflag.StringP("dns-ip", "n", "192.168.0.30", "Simulated DNS server IP negotiated over IPCP.")
	var path = pflag.StringP("path", "p", "/", "HTTP path the simulated device requests once the TCP stack is up.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "devicesim - exercise the PPP/TCP/HTTP bridge against a simulated device, no USB hardware required.\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	var logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "devicesim", ReportTimestamp: true})

	var ptmx, pts, openErr = pty.Open()
	if openErr != nil {
		logger.Fatal("could not create pseudo terminal", "err", openErr)
	}
	defer ptmx.Close()
	defer pts.Close()

	// Put the device side in raw mode so byte-stuffed PPP frames pass
	// through untranslated, same concern as the teacher's real serial TNC.
	var raw, rawErr = term.Open(pts.Name(), term.RawMode)
	if rawErr != nil {
		logger.Fatal("could not put pty slave into raw mode", "err", rawErr)
	}
	defer raw.Close()

	var deviceIP = ipToBytes(*deviceIPFlag)
	var hostIP = ipToBytes(*hostIPFlag)
	var dnsIP = ipToBytes(*dnsIPFlag)

	// No Session is wired: the simulator only exercises the PPP/TCP/HTTP
	// half of the stack, which never touches Session directly.
	var ic = zune.NewInterceptor(nil, &ptyBulkPipe{f: ptmx}, deviceIP, hostIP, dnsIP, 1460, logger.WithPrefix("interceptor"))
	ic.HTTPResponder.Mode = zune.ModeTest
	ic.HTTPResponder.TestBody = []byte("hello from devicesim")

	var ctx, cancel = context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := ic.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("interceptor stopped", "err", err)
		}
	}()

	driveDevice(raw, deviceIP, hostIP, *path, logger)
}

// driveDevice plays the device side of the protocol: negotiate IPCP/CCP,
// open a TCP connection, issue one HTTP request, and print every response
// chunk the bridge sends back.
func driveDevice(conn io.ReadWriter, deviceIP, hostIP [4]byte, path string, logger *log.Logger) {
	var framer zune.PPPFramer

	var readFrame = func() zune.PPPFrame {
		var buf = make([]byte, 4096)
		for {
			var n, err = conn.Read(buf)
			if err != nil {
				logger.Fatal("reading from pty failed", "err", err)
			}
			var frames = framer.Feed(buf[:n])
			if len(frames) > 0 {
				return frames[0]
			}
		}
	}

	var ipcpReq = zune.CPPacket{Code: zune.CPConfigureRequest, Identifier: 1}
	conn.Write(zune.FramePPP(zune.BuildCPPacket(ipcpReq), zune.ProtoIPCP))
	var ipcpReply = readFrame()
	logger.Info("IPCP negotiated", "protocol", ipcpReply.Protocol)

	var ccpReq = zune.CPPacket{Code: zune.CPConfigureRequest, Identifier: 1}
	conn.Write(zune.FramePPP(zune.BuildCPPacket(ccpReq), zune.ProtoCCP))
	var ccpReply = readFrame()
	logger.Info("CCP negotiated", "protocol", ccpReply.Protocol)

	var ipHdr = zune.IPv4Header{TTL: 64, Protocol: zune.ProtoTCP, Src: deviceIP, Dst: hostIP}
	var clientISN uint32 = 1000
	var devicePort uint16 = 5000

	var syn = zune.BuildTCPSegment(ipHdr, zune.TCPHeader{SrcPort: devicePort, DstPort: 80, Seq: clientISN, Flags: zune.TCPFlagSYN, Window: 65535}, nil)
	conn.Write(zune.FramePPP(zune.BuildIPv4Packet(ipHdr, syn), zune.ProtoIPv4))

	var synAckFrame = readFrame()
	var synAckIPHdr, synAckBody, parseErr = zune.ParseIPv4Packet(synAckFrame.Payload)
	if parseErr != nil {
		logger.Fatal("could not parse SYN-ACK", "err", parseErr)
	}
	var synAckHdr, _, tcpParseErr = zune.ParseTCPSegment(synAckIPHdr, synAckBody)
	if tcpParseErr != nil {
		logger.Fatal("could not parse SYN-ACK TCP header", "err", tcpParseErr)
	}
	logger.Info("received SYN-ACK", "server-isn", synAckHdr.Seq)

	var request = fmt.Sprintf("GET %s HTTP/1.1\r\nHost: zune.local\r\n\r\n", path)
	var dataSeg = zune.BuildTCPSegment(ipHdr, zune.TCPHeader{
		SrcPort: devicePort, DstPort: 80, Seq: clientISN + 1, Ack: synAckHdr.Seq + 1,
		Flags: zune.TCPFlagACK | zune.TCPFlagPSH, Window: 65535,
	}, []byte(request))
	conn.Write(zune.FramePPP(zune.BuildIPv4Packet(ipHdr, dataSeg), zune.ProtoIPv4))

	for {
		var frame = readFrame()
		if frame.Protocol != zune.ProtoIPv4 {
			continue
		}
		var hdr, body, err = zune.ParseIPv4Packet(frame.Payload)
		if err != nil {
			continue
		}
		var tcpHdr, payload, tcpErr = zune.ParseTCPSegment(hdr, body)
		if tcpErr != nil || len(payload) == 0 {
			continue
		}
		fmt.Printf("--- response chunk (seq %d) ---\n%s\n", tcpHdr.Seq, payload)
	}
}
