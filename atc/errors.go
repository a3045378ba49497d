package atc

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error taxonomy from spec §7. The AT Client surfaces Transport, Timeout and
// Modem errors (including a bare ERROR reply); ParseError is returned by the
// internal/atcmd response parsers. ErrBadInput is declared here but no code
// in this module returns it.
var (
	// ErrClosed indicates the client's Ingress/UART pipeline has shut down.
	ErrClosed = errors.New("atc: closed")
	// ErrSlotBusy indicates Begin was called while the response slot was
	// not Empty — a programming error, since the Client serializes commands
	// through a single worker goroutine.
	ErrSlotBusy = errors.New("atc: response slot busy")
	// ErrTimeout indicates a response did not arrive within the command's
	// declared window.
	ErrTimeout = errors.New("atc: timeout")
	// ErrError is a bare "ERROR" response with no CME/CMS code.
	ErrError = errors.New("atc: ERROR")
	// ErrBadInput indicates the caller violated a command precondition.
	ErrBadInput = errors.New("atc: bad input")
)

// ModemError wraps a +CME ERROR or +CMS ERROR code returned by the modem.
type ModemError struct {
	Kind string // "CME" or "CMS"
	Code string
}

func (e *ModemError) Error() string {
	return fmt.Sprintf("atc: +%s ERROR: %s", e.Kind, e.Code)
}

// ParseError indicates the digester framed a response but the caller's
// response schema could not be parsed from it.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("atc: parse error on %q: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// TransportError wraps an underlying UART I/O error.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "atc: transport: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }
