package engine

import (
	"encoding/binary"
	"time"

	"github.com/vortex-riscv/vxdbg/pkg/dmreg"
	"github.com/vortex-riscv/vxdbg/pkg/riscv"
)

// SetBreakpoint patches the instruction at addr with ebreak, recording the
// displaced word so it can be restored later. Setting a breakpoint that is
// already set at addr is a no-op.
func (e *Engine) SetBreakpoint(addr uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return err
	}
	if _, exists := e.breakpoints[addr]; exists {
		return nil
	}
	orig, err := e.readMemLocked(addr, 4)
	if err != nil {
		return err
	}
	origWord := binary.LittleEndian.Uint32(orig)

	var patched [4]byte
	binary.LittleEndian.PutUint32(patched[:], riscv.EBreak())
	if err := e.writeMemLocked(addr, patched[:]); err != nil {
		return err
	}

	e.breakpoints[addr] = &Breakpoint{Addr: addr, OriginalInstr: origWord}
	e.log.Infof("breakpoint set at %#08x", addr)
	return nil
}

// RemoveBreakpoint restores the original instruction at addr and forgets
// the breakpoint. Removing an address with no breakpoint is a no-op.
func (e *Engine) RemoveBreakpoint(addr uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return err
	}
	bp, exists := e.breakpoints[addr]
	if !exists {
		return nil
	}
	var orig [4]byte
	binary.LittleEndian.PutUint32(orig[:], bp.OriginalInstr)
	if err := e.writeMemLocked(addr, orig[:]); err != nil {
		return err
	}
	delete(e.breakpoints, addr)
	e.log.Infof("breakpoint removed at %#08x", addr)
	return nil
}

// AnyBreakpoints reports whether at least one breakpoint is set.
func (e *Engine) AnyBreakpoints() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.breakpoints) > 0
}

// GetBreakpoints returns a snapshot of every currently-set breakpoint.
func (e *Engine) GetBreakpoints() []Breakpoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Breakpoint, 0, len(e.breakpoints))
	for _, bp := range e.breakpoints {
		out = append(out, *bp)
	}
	return out
}

// checkBreakpointHitLocked inspects a just-halted warp's cause and PC, and
// if it halted on ebreak at a known breakpoint address, increments that
// breakpoint's hit count. It assumes wid is the currently selected warp so
// DPC/DCTRL.hacause read that warp's state without needing to reselect.
func (e *Engine) checkBreakpointHitLocked(wid int) (dmreg.HaltCause, error) {
	cause, err := e.dm.RdField(dmreg.DCTRL, "hacause")
	if err != nil {
		return dmreg.HaltCauseNone, classify("check breakpoint hit: read hacause", err)
	}
	hc := dmreg.HaltCause(cause)
	if hc != dmreg.HaltCauseEbreak {
		return hc, nil
	}
	pc, err := e.dm.Rd(dmreg.DPC)
	if err != nil {
		return hc, classify("check breakpoint hit: read dpc", err)
	}
	if bp, ok := e.breakpoints[pc]; ok {
		bp.HitCount++
	}
	return hc, nil
}

// ContinueUntilBreakpoint resumes the currently selected warp and waits
// for it to halt again, polling its per-warp WSTATUS bit (rather than
// DCTRL's global anyhalted, which other, unrelated warps could already be
// asserting) up to timeout. A timeout of 0 waits indefinitely. On halt, it
// checks whether the cause was a breakpoint hit and updates the hit count
// accordingly.
func (e *Engine) ContinueUntilBreakpoint(timeout time.Duration) (dmreg.HaltCause, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return dmreg.HaltCauseNone, err
	}
	if e.selWid < 0 {
		return dmreg.HaltCauseNone, ErrNoneSelected
	}
	wid := e.selWid

	if err := e.resumeWarpsLocked([]int{wid}); err != nil {
		return dmreg.HaltCauseNone, err
	}

	var deadline time.Time
	hasDeadline := timeout > 0
	if hasDeadline {
		deadline = time.Now().Add(timeout)
	}
	delay := e.cfg.PollDelay
	if delay <= 0 {
		delay = 10 * time.Millisecond
	}
	for {
		halted, err := e.getWarpStateLocked(wid)
		if err != nil {
			return dmreg.HaltCauseNone, err
		}
		if halted {
			break
		}
		if hasDeadline && time.Now().After(deadline) {
			return dmreg.HaltCauseNone, newErr(CodeTimeout, "continue: warp did not halt before timeout")
		}
		time.Sleep(delay)
	}
	return e.checkBreakpointHitLocked(wid)
}
