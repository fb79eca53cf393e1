// Package apperr defines the numbered error taxonomy shared by every layer
// of the rtpmidi engine, plus a pluggable sink so a caller can route
// diagnostics to its own observability stack instead of the default
// slog-backed one.
package apperr

import (
	"errors"
	"fmt"
)

// Code identifies one member of the engine's closed error taxonomy.
// Values are grouped by kind: input/protocol, resource, I/O, state,
// policy.
type Code int

const (
	// Input/protocol errors — a malformed or illegal wire value.
	BadStatus Code = iota + 1
	BadProperty
	MalformedVarLen
	MalformedCommandList
	BadRtpVersion
	ShortPacket
	NoRunningStatus
	BadSessionCommand

	// Resource errors — a fixed-capacity limit was hit.
	OutOfMemory
	TooManyPeers
	QueueFull

	// I/O errors — the transport misbehaved.
	SocketError
	BindError
	SendTruncated
	RecvError
	AddressFamilyUnsupported
	NameResolutionFailed

	// State errors — the caller's request doesn't match session state.
	NotConnected
	PeerUnknown
	TokenMismatch

	// Policy errors — the request was understood but refused.
	InvitationRejected

	// DriverIoError surfaces a fatal, no-longer-usable transport failure
	// from the next driver call.
	DriverIoError
)

var names = map[Code]string{
	BadStatus:                "bad_status",
	BadProperty:              "bad_property",
	MalformedVarLen:          "malformed_varlen",
	MalformedCommandList:     "malformed_command_list",
	BadRtpVersion:            "bad_rtp_version",
	ShortPacket:              "short_packet",
	NoRunningStatus:          "no_running_status",
	BadSessionCommand:        "bad_session_command",
	OutOfMemory:              "out_of_memory",
	TooManyPeers:             "too_many_peers",
	QueueFull:                "queue_full",
	SocketError:              "socket_error",
	BindError:                "bind_error",
	SendTruncated:            "send_truncated",
	RecvError:                "recv_error",
	AddressFamilyUnsupported: "address_family_unsupported",
	NameResolutionFailed:     "name_resolution_failed",
	NotConnected:             "not_connected",
	PeerUnknown:              "peer_unknown",
	TokenMismatch:            "token_mismatch",
	InvitationRejected:       "invitation_rejected",
	DriverIoError:            "driver_io_error",
}

// String implements fmt.Stringer.
func (c Code) String() string {
	if name, ok := names[c]; ok {
		return name
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Error is the concrete error type returned across package boundaries.
// Op names the failing operation (e.g. "rtpengine.Decode"); Peer is the
// remote address involved, when known; Err is the underlying cause, if any.
type Error struct {
	Code Code
	Op   string
	Peer string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Peer != "":
		return fmt.Sprintf("%s: %s (peer %s): %v", e.Op, e.Code, e.Peer, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	case e.Peer != "":
		return fmt.Sprintf("%s: %s (peer %s)", e.Op, e.Code, e.Peer)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target carries the same Code, so callers can write
// errors.Is(err, apperr.New(apperr.PeerUnknown, "", nil)) or, more simply,
// use Has below.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

// New constructs an *Error. op should be "package.Function"; err may be nil.
func New(code Code, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// WithPeer returns a copy of e annotated with the remote peer address.
func (e *Error) WithPeer(peer string) *Error {
	cp := *e
	cp.Peer = peer
	return &cp
}

// Has reports whether err (or anything it wraps) carries code.
func Has(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
