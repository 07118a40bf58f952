package zune

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCPPacket_RoundTrip(t *testing.T) {
	var p = CPPacket{
		Code:       CPConfigureRequest,
		Identifier: 7,
		Options: []CPOption{
			{Type: 3, Data: []byte{192, 168, 55, 100}},
			{Type: 129, Data: []byte{192, 168, 55, 1}},
		},
	}

	var encoded = BuildCPPacket(p)
	var decoded, err = ParseCPPacket(encoded)
	require.NoError(t, err)
	assert.Equal(t, p, decoded)
}

func TestCPPacket_TruncatedOptionRejected(t *testing.T) {
	var data = []byte{byte(CPConfigureRequest), 1, 0, 8, 3, 10, 1, 2}
	var _, err = ParseCPPacket(data)
	assert.Error(t, err)
}

func TestCPPacket_TrailingBytesBeyondDeclaredLengthRejected(t *testing.T) {
	var p = CPPacket{Code: CPConfigureRequest, Identifier: 7, Options: []CPOption{
		{Type: 3, Data: []byte{192, 168, 55, 100}},
	}}
	var encoded = append(BuildCPPacket(p), 0xFF, 0xFF, 0xFF)

	var _, err = ParseCPPacket(encoded)
	assert.Error(t, err, "a length field shorter than the buffer must be discarded, not silently truncated")
}
