package engine

import (
	"fmt"
	"strings"

	"github.com/vortex-riscv/vxdbg/pkg/dmreg"
	"github.com/vortex-riscv/vxdbg/pkg/riscv"
)

// ReadGPR reads one general-purpose register of the current thread by
// moving it into DSCRATCH via an injected csrw, then reading DSCRATCH.
func (e *Engine) ReadGPR(n uint32) (uint32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return 0, err
	}
	return e.readGPRLocked(n)
}

func (e *Engine) readGPRLocked(n uint32) (uint32, error) {
	if n > 31 {
		return 0, ErrInvalidArg
	}
	if n == 0 {
		return 0, nil // x0 is hardwired to zero; no need to inject anything.
	}
	if err := e.injectAsmLocked(fmt.Sprintf("csrw %#x, %s", riscv.CSRVXDscratch, riscv.GPRName(n))); err != nil {
		return 0, err
	}
	return e.dm.Rd(dmreg.DSCRATCH)
}

// WriteGPR writes one general-purpose register of the current thread by
// staging the value in DSCRATCH, then injecting a csrr that pulls it in.
func (e *Engine) WriteGPR(n, value uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return err
	}
	return e.writeGPRLocked(n, value)
}

func (e *Engine) writeGPRLocked(n, value uint32) error {
	if n > 31 {
		return ErrInvalidArg
	}
	if n == 0 {
		return nil // writes to x0 are discarded, same as real hardware.
	}
	if err := e.dm.Wr(dmreg.DSCRATCH, value); err != nil {
		return classify("write gpr: stage dscratch", err)
	}
	return e.injectAsmLocked(fmt.Sprintf("csrr %s, %#x", riscv.GPRName(n), riscv.CSRVXDscratch))
}

// saveRegs reads a set of GPRs for later restoration via restoreRegs.
func (e *Engine) saveRegs(regs []uint32) (map[uint32]uint32, error) {
	saved := make(map[uint32]uint32, len(regs))
	for _, r := range regs {
		v, err := e.readGPRLocked(r)
		if err != nil {
			return nil, err
		}
		saved[r] = v
	}
	return saved, nil
}

// restoreRegs writes back every register saveRegs captured. It always
// attempts every restore even if one fails, returning the first error
// encountered.
func (e *Engine) restoreRegs(saved map[uint32]uint32) error {
	var first error
	for r, v := range saved {
		if err := e.writeGPRLocked(r, v); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// csrReadLocked reads a CSR of the current thread. t0 is scoped-acquired
// as scratch to shuttle the CSR's value through DSCRATCH: it is saved
// before the sequence and restored afterward on every exit path --
// success, error, or panic -- by the deferred restoreRegs call, which runs
// regardless of how the surrounding function returns.
func (e *Engine) csrReadLocked(csr uint32) (value uint32, err error) {
	saved, serr := e.saveRegs([]uint32{gprT0})
	if serr != nil {
		return 0, serr
	}
	defer func() {
		if rerr := e.restoreRegs(saved); rerr != nil && err == nil {
			err = rerr
		}
	}()
	if err = e.injectAsmLocked(fmt.Sprintf("csrr %s, %#x", riscv.GPRName(gprT0), csr)); err != nil {
		return 0, err
	}
	if err = e.injectAsmLocked(fmt.Sprintf("csrw %#x, %s", riscv.CSRVXDscratch, riscv.GPRName(gprT0))); err != nil {
		return 0, err
	}
	value, err = e.dm.Rd(dmreg.DSCRATCH)
	return value, err
}

// csrWriteLocked writes a CSR of the current thread, scratching through
// t0 the same way csrReadLocked does.
func (e *Engine) csrWriteLocked(csr, value uint32) (err error) {
	saved, serr := e.saveRegs([]uint32{gprT0})
	if serr != nil {
		return serr
	}
	defer func() {
		if rerr := e.restoreRegs(saved); rerr != nil && err == nil {
			err = rerr
		}
	}()
	if err = e.dm.Wr(dmreg.DSCRATCH, value); err != nil {
		return classify("write csr: stage dscratch", err)
	}
	if err = e.injectAsmLocked(fmt.Sprintf("csrr %s, %#x", riscv.GPRName(gprT0), riscv.CSRVXDscratch)); err != nil {
		return err
	}
	return e.injectAsmLocked(fmt.Sprintf("csrw %#x, %s", csr, riscv.GPRName(gprT0)))
}

// ReadCSR reads a CSR of the current thread.
func (e *Engine) ReadCSR(csr uint32) (uint32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return 0, err
	}
	return e.csrReadLocked(csr)
}

// WriteCSR writes a CSR of the current thread.
func (e *Engine) WriteCSR(csr, value uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return err
	}
	return e.csrWriteLocked(csr, value)
}

// GetPC reads the current thread's program counter directly off DPC (no
// injection needed; DPC is a real DM register, not synthesized).
func (e *Engine) GetPC() (uint32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return 0, err
	}
	if e.selWid < 0 {
		return 0, ErrNoneSelected
	}
	v, err := e.dm.Rd(dmreg.DPC)
	if err != nil {
		return 0, classify("get pc: read dpc", err)
	}
	return v, nil
}

// SetPC writes the current thread's program counter directly to DPC.
func (e *Engine) SetPC(pc uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return err
	}
	if e.selWid < 0 {
		return ErrNoneSelected
	}
	if err := e.dm.Wr(dmreg.DPC, pc); err != nil {
		return classify("set pc: write dpc", err)
	}
	return nil
}

// ReadRegister dispatches a GDB-style register name ("x5", "pc", or a
// Vortex CSR mnemonic like "vx_warp_id") to the appropriate access path.
func (e *Engine) ReadRegister(name string) (uint32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return 0, err
	}
	if strings.EqualFold(name, "pc") {
		if e.selWid < 0 {
			return 0, ErrNoneSelected
		}
		v, err := e.dm.Rd(dmreg.DPC)
		return v, classify("read register pc", err)
	}
	if gpr, ok := riscv.ParseGPR(name); ok {
		return e.readGPRLocked(gpr)
	}
	if csr, ok := riscv.ParseCSR(name); ok {
		return e.csrReadLocked(csr)
	}
	return 0, fmt.Errorf("%w: unknown register %q", ErrInvalidArg, name)
}

// WriteRegister is the write-side counterpart of ReadRegister.
func (e *Engine) WriteRegister(name string, value uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return err
	}
	if strings.EqualFold(name, "pc") {
		if e.selWid < 0 {
			return ErrNoneSelected
		}
		return classify("write register pc", e.dm.Wr(dmreg.DPC, value))
	}
	if gpr, ok := riscv.ParseGPR(name); ok {
		return e.writeGPRLocked(gpr, value)
	}
	if csr, ok := riscv.ParseCSR(name); ok {
		return e.csrWriteLocked(csr, value)
	}
	return fmt.Errorf("%w: unknown register %q", ErrInvalidArg, name)
}
