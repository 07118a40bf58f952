package zune

import (
	"net"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDNSResponder_AnswersAQuery(t *testing.T) {
	var r = DNSResponder{HostIP: net.IPv4(192, 168, 55, 1)}

	var query = new(dns.Msg)
	query.SetQuestion("zune.update.microsoft.com.", dns.TypeA)
	var queryBytes, err = query.Pack()
	require.NoError(t, err)

	var replyBytes, answerErr = r.Answer(queryBytes)
	require.NoError(t, answerErr)

	var reply = new(dns.Msg)
	require.NoError(t, reply.Unpack(replyBytes))
	require.Len(t, reply.Answer, 1)

	var a, ok = reply.Answer[0].(*dns.A)
	require.True(t, ok)
	assert.True(t, a.A.Equal(net.IPv4(192, 168, 55, 1)))
}

func TestDNSResponder_NonAQuestionGetsNoAnswers(t *testing.T) {
	var r = DNSResponder{HostIP: net.IPv4(192, 168, 55, 1)}

	var query = new(dns.Msg)
	query.SetQuestion("zune.update.microsoft.com.", dns.TypeAAAA)
	var queryBytes, err = query.Pack()
	require.NoError(t, err)

	var replyBytes, answerErr = r.Answer(queryBytes)
	require.NoError(t, answerErr)

	var reply = new(dns.Msg)
	require.NoError(t, reply.Unpack(replyBytes))
	assert.Empty(t, reply.Answer)
}

// buildVendorTCPQueryFrame constructs the query-side header a real device
// sends: [id1][0x0035][length][0x0000], per spec.md §4.6.
func buildVendorTCPQueryFrame(id1 uint16, msg []byte) []byte {
	var out = make([]byte, vendorTCPHeaderLen+len(msg))
	out[0], out[1] = byte(id1>>8), byte(id1)
	out[2], out[3] = 0x00, 0x35
	var length = uint16(vendorTCPHeaderLen + len(msg))
	out[4], out[5] = byte(length>>8), byte(length)
	out[6], out[7] = 0x00, 0x00
	copy(out[vendorTCPHeaderLen:], msg)
	return out
}

func TestVendorTCPFrame_QuerySideDetectionAndParse(t *testing.T) {
	var msg = []byte{1, 2, 3, 4, 5}
	var framed = buildVendorTCPQueryFrame(0xBEEF, msg)

	assert.True(t, IsVendorTCPFrame(framed))

	var id1, got, rest, ok = ParseVendorTCPFrame(framed)
	require.True(t, ok)
	assert.Equal(t, uint16(0xBEEF), id1)
	assert.Equal(t, msg, got)
	assert.Empty(t, rest)
}

func TestVendorTCPFrame_IncompleteFrameNotReady(t *testing.T) {
	var msg = []byte{1, 2, 3, 4, 5}
	var framed = buildVendorTCPQueryFrame(0x0001, msg)

	var _, _, _, ok = ParseVendorTCPFrame(framed[:len(framed)-1])
	assert.False(t, ok)
}

func TestBuildVendorTCPFrame_SwapsIDAndMarkerForResponse(t *testing.T) {
	var msg = []byte{9, 9, 9}
	var framed = BuildVendorTCPFrame(0xBEEF, msg)

	require.Len(t, framed, vendorTCPHeaderLen+len(msg))
	assert.Equal(t, []byte{0x00, 0x35}, framed[0:2])
	assert.Equal(t, []byte{0xBE, 0xEF}, framed[2:4])
	assert.Equal(t, []byte{0x00, 0x00}, framed[6:8])
	assert.Equal(t, msg, framed[vendorTCPHeaderLen:])

	// A response frame no longer satisfies the query-side detection check.
	assert.False(t, IsVendorTCPFrame(framed))
}

func TestDNSResponder_AnswerTCP(t *testing.T) {
	var r = DNSResponder{HostIP: net.IPv4(10, 0, 0, 1)}

	var query = new(dns.Msg)
	query.SetQuestion("example.com.", dns.TypeA)
	var queryBytes, err = query.Pack()
	require.NoError(t, err)
	var queryFrame = buildVendorTCPQueryFrame(0x1234, queryBytes)

	var id1, extracted, _, parseOk = ParseVendorTCPFrame(queryFrame)
	require.True(t, parseOk)

	var framed, tcpErr = r.AnswerTCP(id1, extracted)
	require.NoError(t, tcpErr)

	require.Greater(t, len(framed), vendorTCPHeaderLen)
	assert.Equal(t, []byte{0x00, 0x35}, framed[0:2])
	assert.Equal(t, []byte{0x12, 0x34}, framed[2:4])

	var reply = new(dns.Msg)
	require.NoError(t, reply.Unpack(framed[vendorTCPHeaderLen:]))
	require.Len(t, reply.Answer, 1)
}
