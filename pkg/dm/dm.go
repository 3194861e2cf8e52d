// Package dm is the DM access layer: register- and field-level read/write
// built on pkg/transport, plus the generic timed-poll primitive every
// higher-level engine operation is built from.
package dm

import (
	"errors"
	"fmt"
	"time"

	"github.com/vortex-riscv/vxdbg/pkg/dmreg"
	"github.com/vortex-riscv/vxdbg/pkg/logflags"
	"github.com/vortex-riscv/vxdbg/pkg/transport"
)

// ErrTimeout is returned by PollField when the field never reaches the
// expected value within max_retries attempts.
var ErrTimeout = errors.New("dm: poll timed out")

// ErrNoTransport is returned by every operation when the transport is nil
// or disconnected.
var ErrNoTransport = errors.New("dm: transport not connected")

// Access is the DM access layer. It holds no register cache of its own;
// pkg/engine is responsible for any caching of selection state.
type Access struct {
	t   transport.Transport
	log interface {
		Debugf(format string, args ...interface{})
	}
}

// New wraps a transport.Transport with the DM access layer.
func New(t transport.Transport) *Access {
	return &Access{t: t, log: logflags.DMLogger()}
}

func (a *Access) connected() bool {
	return a.t != nil && a.t.IsConnected()
}

// Rd reads a whole register word.
func (a *Access) Rd(reg dmreg.ID) (uint32, error) {
	if !a.connected() {
		return 0, ErrNoTransport
	}
	rinfo := dmreg.Get(reg)
	word, err := a.t.ReadReg(rinfo.Addr)
	if err != nil {
		return 0, fmt.Errorf("dm: read %s: %w", rinfo.Name, err)
	}
	a.log.Debugf("Rd DMReg[%#04x, %s] => %#08x", rinfo.Addr, rinfo.Name, word)
	return word, nil
}

// Wr writes a whole register word.
func (a *Access) Wr(reg dmreg.ID, word uint32) error {
	if !a.connected() {
		return ErrNoTransport
	}
	rinfo := dmreg.Get(reg)
	if err := a.t.WriteReg(rinfo.Addr, word); err != nil {
		return fmt.Errorf("dm: write %s: %w", rinfo.Name, err)
	}
	a.log.Debugf("Wr DMReg[%#04x, %s] <= %#08x", rinfo.Addr, rinfo.Name, word)
	return nil
}

// RdField reads the whole register, then extracts one field.
func (a *Access) RdField(reg dmreg.ID, field string) (uint32, error) {
	word, err := a.Rd(reg)
	if err != nil {
		return 0, err
	}
	val, err := dmreg.Extract(reg, field, word)
	if err != nil {
		return 0, err
	}
	a.log.Debugf("Rd DMReg[%s.%s] => %#x (word %#08x)", dmreg.Get(reg).Name, field, val, word)
	return val, nil
}

// WrField performs a read-modify-write of a single field, leaving every
// other bit of the register (including sticky status bits) untouched.
func (a *Access) WrField(reg dmreg.ID, field string, value uint32) error {
	cur, err := a.Rd(reg)
	if err != nil {
		return err
	}
	newWord, err := dmreg.Set(reg, field, cur, value)
	if err != nil {
		return err
	}
	if err := a.Wr(reg, newWord); err != nil {
		return err
	}
	a.log.Debugf("Wr DMReg[%s.%s] <= %#x (new %#08x, old %#08x)", dmreg.Get(reg).Name, field, value, newWord, cur)
	return nil
}

// PollField reads field up to maxRetries times, sleeping delay between
// attempts, until it observes expected. The deadline is computed once up
// front (a monotonic deadline, not retries*sleep accumulated through
// drifting calls) so that slow register reads don't silently extend the
// effective timeout. On success it returns (expected, nil); on exhaustion
// it returns (lastObserved, ErrTimeout).
func (a *Access) PollField(reg dmreg.ID, field string, expected uint32, maxRetries int, delay time.Duration) (uint32, error) {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	deadline := time.Now().Add(delay * time.Duration(maxRetries))
	var last uint32
	for attempt := 0; attempt < maxRetries; attempt++ {
		val, err := a.RdField(reg, field)
		if err != nil {
			return 0, err
		}
		last = val
		if val == expected {
			return val, nil
		}
		if attempt < maxRetries-1 && time.Now().Before(deadline) {
			time.Sleep(delay)
		}
	}
	return last, ErrTimeout
}
