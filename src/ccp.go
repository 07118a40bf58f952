package zune

import (
	"io"

	"github.com/charmbracelet/log"
)

// CCPResponder implements the compression-control protocol as a stateless
// refusal: this bridge never compresses PPP payloads, so any requested
// compression option is rejected, and a bare Configure-Request with no
// options (the device probing whether CCP is even supported) is
// acknowledged with nothing negotiated.
type CCPResponder struct {
	Logger *log.Logger
}

func (r *CCPResponder) log() *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return log.NewWithOptions(io.Discard, log.Options{Prefix: "ccp"})
}

// HandleConfigureRequest returns Configure-Ack for an empty option list,
// Configure-Reject echoing every offered option otherwise.
func (r *CCPResponder) HandleConfigureRequest(req CPPacket) CPPacket {
	if len(req.Options) == 0 {
		r.log().Debug("configure-ack (no compression offered)")
		return CPPacket{Code: CPConfigureAck, Identifier: req.Identifier}
	}
	r.log().Debug("rejecting compression options", "count", len(req.Options))
	return CPPacket{Code: CPConfigureReject, Identifier: req.Identifier, Options: req.Options}
}
