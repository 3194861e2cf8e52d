package engine

import (
	"errors"
	"fmt"

	"github.com/vortex-riscv/vxdbg/pkg/dm"
	"github.com/vortex-riscv/vxdbg/pkg/transport"
)

// Return codes, matching spec.md's stable API contract. The spec names more
// error kinds than it has codes for: WarpNotHalted and WarpNotActive share
// CodeWarpNotHalted, a property of the source taxonomy rather than an
// oversight here.
const (
	CodeOK             = 0
	CodeGeneric        = -1
	CodeTimeout        = -2
	CodeNotImplemented = -3
	CodeInvalidArg     = -4
	CodeBufferOverflow = -5
	CodeCommError      = -6
	CodeTransportError = -7
	CodeNoneSelected   = -8
	CodeWarpNotHalted  = -9
)

// Error is the typed error every engine operation returns on failure,
// carrying the stable numeric code alongside the human-readable message.
type Error struct {
	Code int
	Msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.err }

func newErr(code int, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

func wrapErr(code int, msg string, err error) *Error {
	return &Error{Code: code, Msg: msg, err: err}
}

// ErrNoneSelected is returned by any per-thread operation issued without a
// current-thread pointer.
var ErrNoneSelected = newErr(CodeNoneSelected, "no warp/thread selected")

// ErrInvalidArg is returned for out-of-range warp/thread ids, register
// names, and malformed arguments.
var ErrInvalidArg = newErr(CodeInvalidArg, "invalid argument")

// ErrNotImplemented marks an operation recognized but deliberately stubbed.
var ErrNotImplemented = newErr(CodeNotImplemented, "not implemented")

// errWarpNotHalted reports that the selected warp must be halted for this
// operation but isn't.
func errWarpNotHalted(wid int) *Error {
	return newErr(CodeWarpNotHalted, fmt.Sprintf("warp %d is not halted", wid))
}

// errWarpNotActive reports that the selected warp must be active for this
// operation but isn't.
func errWarpNotActive(wid int) *Error {
	return newErr(CodeWarpNotHalted, fmt.Sprintf("warp %d is not active", wid))
}

// classify maps a lower-layer error (dm/transport) onto the engine's stable
// code, so every public engine method returns a single *Error regardless of
// which layer produced the underlying failure.
func classify(msg string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}
	switch {
	case errors.Is(err, dm.ErrNoTransport), errors.Is(err, transport.ErrDisconnected):
		return wrapErr(CodeTransportError, msg, err)
	case errors.Is(err, dm.ErrTimeout), errors.Is(err, transport.ErrTimeout):
		return wrapErr(CodeTimeout, msg, err)
	case errors.Is(err, transport.ErrProtocol):
		return wrapErr(CodeCommError, msg, err)
	case errors.Is(err, transport.ErrTooManyAddrs):
		return wrapErr(CodeBufferOverflow, msg, err)
	default:
		return wrapErr(CodeGeneric, msg, err)
	}
}
