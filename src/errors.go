package zune

import (
	"errors"
	"fmt"
)

// Kind categorizes failures the way the rest of the package expects callers
// to branch on, per the error taxonomy in the bridge's design notes: most
// kinds are surfaced as-is, Retryable is logged and swallowed by the caller
// site that produced it, and Fatal means the device and host are now out of
// sync with no automatic rollback.
type Kind int

const (
	// NotConnected means no MTP session is available.
	NotConnected Kind = iota
	// TransportFailure means a USB read/write failed; the caller should disconnect.
	TransportFailure
	// ProtocolMismatch means an MTP operation returned an unexpected status or malformed response.
	ProtocolMismatch
	// InvalidInput means the caller passed a bad GUID, empty name, zero id, etc.
	InvalidInput
	// NotFound means an object id or artist name does not resolve.
	NotFound
	// Retryable means a transient failure in a non-critical path; log and continue.
	Retryable
	// Fatal means device state desynchronization after partial authoring.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case NotConnected:
		return "not_connected"
	case TransportFailure:
		return "transport_failure"
	case ProtocolMismatch:
		return "protocol_mismatch"
	case InvalidInput:
		return "invalid_input"
	case NotFound:
		return "not_found"
	case Retryable:
		return "retryable"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind so callers can branch with
// errors.As without parsing message text.
type Error struct {
	Kind    Kind
	Op      string // the operation that failed, e.g. "UploadTrack", "ZMDB.Parse"
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// KindOf extracts the Kind from err, defaulting to Fatal if err does not
// wrap a *Error (an unannotated error reaching a caller boundary is itself
// a sign something wasn't classified, which is worth treating as the worst
// case rather than silently shrugging).
func KindOf(err error) Kind {
	var ze *Error
	if !errors.As(err, &ze) {
		return Fatal
	}
	return ze.Kind
}

func newErr(kind Kind, op, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Cause: cause}
}
