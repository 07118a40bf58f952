package zune

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCCPResponder_AcksEmptyRequest(t *testing.T) {
	var r = CCPResponder{}
	var resp = r.HandleConfigureRequest(CPPacket{Code: CPConfigureRequest, Identifier: 1})
	assert.Equal(t, CPConfigureAck, resp.Code)
	assert.Empty(t, resp.Options)
}

func TestCCPResponder_RejectsAnyCompressionOption(t *testing.T) {
	var r = CCPResponder{}
	var req = CPPacket{
		Code:       CPConfigureRequest,
		Identifier: 2,
		Options:    []CPOption{{Type: 0x11, Data: []byte{0, 0, 0, 1}}},
	}
	var resp = r.HandleConfigureRequest(req)
	assert.Equal(t, CPConfigureReject, resp.Code)
	assert.Equal(t, req.Options, resp.Options)
}
