package faroserrors

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrNoEnumerator       = errors.New("no enumeration backend configured")
	ErrFixtureMalformed   = errors.New("fixture file is malformed")
	ErrStatusUnavailable  = errors.New("status document unavailable")
	ErrNoStatusURL        = errors.New("device has no status endpoint")
	ErrSessionNotHeld     = errors.New("no live session for device")
	ErrNothingSelected    = errors.New("no devices selected")
	ErrUnknownSerial      = errors.New("serial not present in topology")
	ErrRemapNotSupported  = errors.New("variant remap not supported for device")
	ErrCredentialsMissing = errors.New("username and password are required")
)

// DoubleClaimError reports the fatal topology invariant violation: a
// node whose fingerprint was matched by two distinct hubs. The run
// must halt before any fleet-wide action is issued.
type DoubleClaimError struct {
	NodeSerial  string
	FirstHub    string
	SecondHub   string
	Fingerprint uint32
}

func (e *DoubleClaimError) Error() string {
	return fmt.Sprintf("node %s claimed by both hub %s and hub %s (fingerprint %06x)",
		e.NodeSerial, e.FirstHub, e.SecondHub, e.Fingerprint)
}
