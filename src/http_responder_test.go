package zune

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHTTPRequest_WithBody(t *testing.T) {
	var raw = "POST /sync HTTP/1.1\r\nHost: zune.local\r\nContent-Length: 5\r\n\r\nhello"
	var req, err = ParseHTTPRequest([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "/sync", req.Path)
	assert.Equal(t, "zune.local", req.Headers["Host"])
	assert.Equal(t, []byte("hello"), req.Body)
}

func TestHTTPResponder_Static(t *testing.T) {
	var dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>hi</html>"), 0o644))

	var r = HTTPResponder{Mode: ModeStatic, StaticRoot: dir}
	var resp = r.Respond(HTTPRequest{Method: "GET", Path: "/index.html"})

	assert.Contains(t, string(resp), "200 OK")
	assert.Contains(t, string(resp), "<html>hi</html>")
}

func TestHTTPResponder_StaticMissingFile404(t *testing.T) {
	var dir = t.TempDir()
	var r = HTTPResponder{Mode: ModeStatic, StaticRoot: dir}
	var resp = r.Respond(HTTPRequest{Method: "GET", Path: "/nope.html"})
	assert.Contains(t, string(resp), "404")
}

func TestHTTPResponder_StaticPathTraversalRejected(t *testing.T) {
	var dir = t.TempDir()
	var r = HTTPResponder{Mode: ModeStatic, StaticRoot: dir}
	var resp = r.Respond(HTTPRequest{Method: "GET", Path: "/../../etc/passwd"})
	assert.NotContains(t, string(resp), "200")
}

func TestHTTPResponder_Proxy(t *testing.T) {
	var upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer upstream.Close()

	var r = HTTPResponder{Mode: ModeProxy, ProxyUpstream: upstream.URL}
	var resp = r.Respond(HTTPRequest{Method: "GET", Path: "/status", Headers: map[string]string{}})

	assert.Contains(t, string(resp), "200 OK")
	assert.Contains(t, string(resp), `{"ok":true}`)
}

func TestHTTPResponder_TestMode(t *testing.T) {
	var r = HTTPResponder{Mode: ModeTest, TestBody: []byte("canned")}
	var resp = r.Respond(HTTPRequest{Method: "GET", Path: "/anything"})
	assert.Contains(t, string(resp), "canned")
}

func TestSegmentForTransmission(t *testing.T) {
	var data = make([]byte, 10)
	var segments = SegmentForTransmission(data, 4)
	require.Len(t, segments, 3)
	assert.Len(t, segments[0], 4)
	assert.Len(t, segments[1], 4)
	assert.Len(t, segments[2], 2)
}

func TestResponseThrottler_CapsAtPerConnRate(t *testing.T) {
	var restore = now
	defer func() { now = restore }()
	var base = time.Now()
	now = func() time.Time { return base }

	var th = NewResponseThrottler(1000, 10000)
	var allowed = th.Allow(1, 5000)
	assert.Equal(t, int64(1000), allowed)
}

func TestResponseThrottler_GlobalCapSharedAcrossConnections(t *testing.T) {
	var restore = now
	defer func() { now = restore }()
	var base = time.Now()
	now = func() time.Time { return base }

	var th = NewResponseThrottler(1000, 1200)
	var a = th.Allow(1, 1000)
	var b = th.Allow(2, 1000)
	assert.Equal(t, int64(1000), a)
	assert.LessOrEqual(t, b, int64(200))
}
