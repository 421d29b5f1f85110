// Package bridgeerr defines the recoverable and fatal error kinds raised by
// the bridge, following the broker's plain sentinel-error idiom.
package bridgeerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation-policy purposes: recoverable
// kinds are pushed to an errors() stream, fatal kinds drive shutdown.
type Kind int

const (
	// KindTransport covers socket connect/read/write failures; recovered by
	// reconnect.
	KindTransport Kind = iota
	// KindMalformedMessage covers a bad wire line; logged and dropped.
	KindMalformedMessage
	// KindClockTimeout covers an expired clock probe; sample discarded.
	KindClockTimeout
	// KindConfig covers invalid configuration; fatal at startup.
	KindConfig
	// KindCodecMismatch covers an agent returning the wrong tensor shapes;
	// fatal.
	KindCodecMismatch
	// KindInconsistentStatus covers a violated internal invariant; logged,
	// last valid state retained.
	KindInconsistentStatus
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport_error"
	case KindMalformedMessage:
		return "malformed_message"
	case KindClockTimeout:
		return "clock_timeout"
	case KindConfig:
		return "config_error"
	case KindCodecMismatch:
		return "codec_mismatch"
	case KindInconsistentStatus:
		return "inconsistent_status"
	default:
		return "unknown"
	}
}

// Fatal reports whether errors of this kind should drive shutdown rather
// than merely being logged and pushed to the errors() stream.
func (k Kind) Fatal() bool {
	return k == KindConfig || k == KindCodecMismatch
}

// Error is the bridge's structured error value; it wraps an underlying cause
// with a Kind so that callers can branch on propagation policy without
// string matching.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a bridge error for the given kind and operation.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// MalformedMessage describes a wire line that failed to parse.
type MalformedMessage struct {
	Prefix string
	Field  string
	Raw    string
}

func (m *MalformedMessage) Error() string {
	return fmt.Sprintf("malformed message prefix=%q field=%q raw=%q", m.Prefix, m.Field, m.Raw)
}

// AsBridgeError reports whether err is (or wraps) a *Error, returning it if so.
func AsBridgeError(err error) (*Error, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}
