package monoprice

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTimeout            = errors.New("link timeout")
	ErrDisconnected       = errors.New("link disconnected")
	ErrDecode             = errors.New("invalid response")
	ErrInvalidValue       = errors.New("invalid value")
	ErrUnknownZone        = errors.New("unknown zone")
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrUnavailable and ErrCorrupt classify a failed ReadState. Unavailable
	// means the exchange did not complete, Corrupt means a reply was received
	// but could not be used.
	ErrUnavailable = errors.New("zone state unavailable")
	ErrCorrupt     = errors.New("zone state corrupt")

	ErrEchoMismatch = errors.New("echo does not match request")
	ErrZoneMismatch = errors.New("zone does not match request")
	ErrOutOfRange   = errors.New("field out of range")
	ErrTooLong      = errors.New("string is too long")
	ErrClosed       = errors.New("transport closed")
)

// LinkError is a transport level failure. Kind is either ErrTimeout or
// ErrDisconnected.
type LinkError struct {
	Op   string
	Kind error
	Err  error
}

func (e *LinkError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *LinkError) Is(target error) bool {
	return target == e.Kind
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the exchange ran out of time rather than losing the link.
func (e *LinkError) Timeout() bool {
	return e.Kind == ErrTimeout
}

// DecodeError means a reply was received but was malformed or did not match
// the request.
type DecodeError struct {
	Response string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v: %q: %v", ErrDecode, e.Response, e.Err)
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ReadError is returned by ReadState. It matches ErrUnavailable when the
// underlying failure is a LinkError and ErrCorrupt when it is a DecodeError.
type ReadError struct {
	Zone ZoneID
	Err  error
}

func (e *ReadError) Error() string {
	kind := ErrUnavailable
	if e.Corrupt() {
		kind = ErrCorrupt
	}
	return fmt.Sprintf("zone %d: %v: %v", e.Zone, kind, e.Err)
}

func (e *ReadError) Corrupt() bool {
	var de *DecodeError
	return errors.As(e.Err, &de)
}

func (e *ReadError) Is(target error) bool {
	switch target {
	case ErrCorrupt:
		return e.Corrupt()
	case ErrUnavailable:
		return !e.Corrupt()
	}
	return false
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// RestoreError reports a restore that stopped part way. Applied lists the
// fields that were written before Field failed, in the order they were sent.
type RestoreError struct {
	Zone    ZoneID
	Field   Field
	Applied []Field
	Err     error
}

func (e *RestoreError) Error() string {
	applied := make([]string, len(e.Applied))
	for i, f := range e.Applied {
		applied[i] = f.String()
	}
	return fmt.Sprintf("zone %d: restore failed at %s (applied [%s]): %v", e.Zone, e.Field, strings.Join(applied, " "), e.Err)
}

func (e *RestoreError) Unwrap() error {
	return e.Err
}
