package zune

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// HTTPRequest is a parsed request the device sent over one of its
// synthesized TCP connections.
type HTTPRequest struct {
	Method  string
	Path    string
	Headers map[string]string
	Body    []byte
}

// ParseHTTPRequest reads a single request (request line, headers, and a
// Content-Length-delimited body — chunked transfer encoding is never used
// by the device, so it isn't supported) from data.
func ParseHTTPRequest(data []byte) (HTTPRequest, error) {
	var reader = bufio.NewReader(bytes.NewReader(data))
	var requestLine, err = reader.ReadString('\n')
	if err != nil {
		return HTTPRequest{}, fmt.Errorf("ParseHTTPRequest: missing request line: %w", err)
	}
	var parts = strings.Fields(requestLine)
	if len(parts) < 2 {
		return HTTPRequest{}, fmt.Errorf("ParseHTTPRequest: malformed request line %q", requestLine)
	}

	var req = HTTPRequest{Method: parts[0], Path: parts[1], Headers: make(map[string]string)}

	for {
		var line, readErr = reader.ReadString('\n')
		if readErr != nil {
			return HTTPRequest{}, fmt.Errorf("ParseHTTPRequest: truncated headers: %w", readErr)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		var key, value, ok = strings.Cut(line, ":")
		if !ok {
			continue
		}
		req.Headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	if cl, ok := req.Headers["Content-Length"]; ok {
		var n, parseErr = strconv.Atoi(cl)
		if parseErr != nil {
			return HTTPRequest{}, fmt.Errorf("ParseHTTPRequest: bad Content-Length %q", cl)
		}
		var body = make([]byte, n)
		if _, readErr := io.ReadFull(reader, body); readErr != nil {
			return HTTPRequest{}, fmt.Errorf("ParseHTTPRequest: truncated body: %w", readErr)
		}
		req.Body = body
	}

	return req, nil
}

// BuildHTTPResponse serializes an HTTP/1.1 response with the given status,
// headers, and body, adding Content-Length itself.
func BuildHTTPResponse(status int, headers map[string]string, body []byte) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "HTTP/1.1 %d %s\r\n", status, http.StatusText(status))
	for k, v := range headers {
		fmt.Fprintf(&buf, "%s: %s\r\n", k, v)
	}
	fmt.Fprintf(&buf, "Content-Length: %d\r\n\r\n", len(body))
	buf.Write(body)
	return buf.Bytes()
}

// ResponderMode selects how HTTPResponder answers a request.
type ResponderMode int

const (
	ModeStatic ResponderMode = iota
	ModeProxy
	ModeTest
)

// HTTPResponder answers the device's HTTP requests one of three ways: from
// a static file root, forwarded to a real upstream server, or (for
// integration tests that don't want network access) a fixed canned body.
type HTTPResponder struct {
	Mode          ResponderMode
	StaticRoot    string
	ProxyUpstream string
	TestBody      []byte

	ProxyClient *http.Client
	Logger      *log.Logger
}

func (r *HTTPResponder) log() *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return log.NewWithOptions(io.Discard, log.Options{Prefix: "http"})
}

func (r *HTTPResponder) client() *http.Client {
	if r.ProxyClient != nil {
		return r.ProxyClient
	}
	return &http.Client{Timeout: 15 * time.Second}
}

// Respond builds the full response bytes for req.
func (r *HTTPResponder) Respond(req HTTPRequest) []byte {
	switch r.Mode {
	case ModeProxy:
		return r.respondProxy(req)
	case ModeTest:
		return BuildHTTPResponse(http.StatusOK, map[string]string{"Content-Type": "text/plain"}, r.TestBody)
	default:
		return r.respondStatic(req)
	}
}

func (r *HTTPResponder) respondStatic(req HTTPRequest) []byte {
	var cleanPath = filepath.Clean("/" + req.Path)
	var fsPath = filepath.Join(r.StaticRoot, cleanPath)

	if !strings.HasPrefix(fsPath, filepath.Clean(r.StaticRoot)+string(filepath.Separator)) && fsPath != filepath.Clean(r.StaticRoot) {
		return BuildHTTPResponse(http.StatusForbidden, nil, nil)
	}

	var body, err = os.ReadFile(fsPath)
	if err != nil {
		r.log().Debug("static file not found", "path", fsPath, "err", err)
		return BuildHTTPResponse(http.StatusNotFound, nil, nil)
	}

	var contentType = mime.TypeByExtension(filepath.Ext(fsPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return BuildHTTPResponse(http.StatusOK, map[string]string{"Content-Type": contentType}, body)
}

func (r *HTTPResponder) respondProxy(req HTTPRequest) []byte {
	var upstreamReq, err = http.NewRequest(req.Method, strings.TrimRight(r.ProxyUpstream, "/")+req.Path, bytes.NewReader(req.Body))
	if err != nil {
		return BuildHTTPResponse(http.StatusBadGateway, nil, nil)
	}
	for k, v := range req.Headers {
		upstreamReq.Header.Set(k, v)
	}

	var resp, doErr = r.client().Do(upstreamReq)
	if doErr != nil {
		r.log().Warn("proxy upstream request failed", "err", doErr)
		return BuildHTTPResponse(http.StatusBadGateway, nil, nil)
	}
	defer resp.Body.Close()

	var body, readErr = io.ReadAll(resp.Body)
	if readErr != nil {
		return BuildHTTPResponse(http.StatusBadGateway, nil, nil)
	}

	var headers = make(map[string]string)
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		headers["Content-Type"] = ct
	}
	return BuildHTTPResponse(resp.StatusCode, headers, body)
}

// SegmentForTransmission splits a built response into chunks no larger
// than mss bytes, for pacing across multiple TCP sends the way the pump
// thread's congestion window requires.
func SegmentForTransmission(data []byte, mss int) [][]byte {
	if mss <= 0 {
		return [][]byte{data}
	}
	var segments [][]byte
	for len(data) > 0 {
		var n = mss
		if n > len(data) {
			n = len(data)
		}
		segments = append(segments, data[:n])
		data = data[n:]
	}
	return segments
}

// ResponseThrottler paces large-response delivery: a per-connection token
// bucket plus a shared global cap, so one large download can't starve the
// other connections sharing the same USB bulk pipe.
type ResponseThrottler struct {
	perConnBytesPerSec int64
	globalBytesPerSec  int64

	connBuckets  map[uint32]*tokenBucket
	globalBucket *tokenBucket
}

type tokenBucket struct {
	capacity   int64
	tokens     int64
	refillRate int64 // tokens per second
	lastRefill time.Time
}

func newTokenBucket(ratePerSec int64) *tokenBucket {
	return &tokenBucket{capacity: ratePerSec, tokens: ratePerSec, refillRate: ratePerSec, lastRefill: now()}
}

func (b *tokenBucket) take(n int64) int64 {
	var elapsed = now().Sub(b.lastRefill).Seconds()
	b.tokens += int64(elapsed * float64(b.refillRate))
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now()

	if b.tokens <= 0 {
		return 0
	}
	var allowed = n
	if allowed > b.tokens {
		allowed = b.tokens
	}
	b.tokens -= allowed
	return allowed
}

// NewResponseThrottler returns a throttler capping each connection at
// perConnBytesPerSec and every connection combined at globalBytesPerSec.
func NewResponseThrottler(perConnBytesPerSec, globalBytesPerSec int64) *ResponseThrottler {
	return &ResponseThrottler{
		perConnBytesPerSec: perConnBytesPerSec,
		globalBytesPerSec:  globalBytesPerSec,
		connBuckets:        make(map[uint32]*tokenBucket),
		globalBucket:       newTokenBucket(globalBytesPerSec),
	}
}

// Allow returns how many of the requested bytes connID may send right now,
// bounded by both its own budget and the shared global budget.
func (t *ResponseThrottler) Allow(connID uint32, requested int64) int64 {
	var bucket, ok = t.connBuckets[connID]
	if !ok {
		bucket = newTokenBucket(t.perConnBytesPerSec)
		t.connBuckets[connID] = bucket
	}

	var connAllowed = bucket.take(requested)
	var globalAllowed = t.globalBucket.take(connAllowed)
	if globalAllowed < connAllowed {
		bucket.tokens += connAllowed - globalAllowed // refund what the global cap didn't let through
	}
	return globalAllowed
}

// Forget releases a closed connection's bucket.
func (t *ResponseThrottler) Forget(connID uint32) {
	delete(t.connBuckets, connID)
}
