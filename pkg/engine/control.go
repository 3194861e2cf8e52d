package engine

import "github.com/vortex-riscv/vxdbg/pkg/dmreg"

// HaltWarps selects exactly wids, requests a halt, and verifies every one
// of them actually halted, failing hard if any did not.
func (e *Engine) HaltWarps(wids []int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return err
	}
	return e.haltWarpsLocked(wids)
}

func (e *Engine) haltWarpsLocked(wids []int) error {
	if err := e.selectWarpsLocked(wids); err != nil {
		return err
	}
	if err := e.dm.WrField(dmreg.DCTRL, "haltreq", 1); err != nil {
		return classify("halt warps: set haltreq", err)
	}
	for _, wid := range wids {
		if wid < 0 || wid >= int(e.platform.NumTotalWarps()) {
			continue
		}
		halted, err := e.getWarpStateLocked(wid)
		if err != nil {
			return err
		}
		if !halted {
			return classify("halt warps: warp did not halt", errWarpNotHalted(wid))
		}
	}
	return nil
}

// HaltAllWarps selects every warp, requests a halt, and polls
// DCTRL.allhalted.
func (e *Engine) HaltAllWarps() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return err
	}
	if err := e.selectAllWarpsLocked(true); err != nil {
		return err
	}
	if err := e.dm.WrField(dmreg.DCTRL, "haltreq", 1); err != nil {
		return classify("halt all: set haltreq", err)
	}
	if _, err := e.dm.PollField(dmreg.DCTRL, "allhalted", 1, e.cfg.PollRetries, e.cfg.PollDelay); err != nil {
		return classify("halt all: allhalted never asserted", err)
	}
	return nil
}

// ResumeWarps selects exactly wids and requests a resume. Unlike halt, a
// warp remaining halted after resume is logged rather than treated as a
// hard failure (it may be blocked on a breakpoint the client hasn't seen
// yet).
func (e *Engine) ResumeWarps(wids []int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return err
	}
	return e.resumeWarpsLocked(wids)
}

func (e *Engine) resumeWarpsLocked(wids []int) error {
	if err := e.selectWarpsLocked(wids); err != nil {
		return err
	}
	if err := e.dm.WrField(dmreg.DCTRL, "resumereq", 1); err != nil {
		return classify("resume warps: set resumereq", err)
	}
	for _, wid := range wids {
		if wid < 0 || wid >= int(e.platform.NumTotalWarps()) {
			continue
		}
		halted, err := e.getWarpStateLocked(wid)
		if err != nil {
			return err
		}
		if halted {
			e.log.Warnf("resume warps: warp %d still halted after resumereq", wid)
		}
	}
	return nil
}

// ResumeAllWarps selects every warp, requests a resume, and polls
// DCTRL.allrunning.
func (e *Engine) ResumeAllWarps() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return err
	}
	if err := e.selectAllWarpsLocked(true); err != nil {
		return err
	}
	if err := e.dm.WrField(dmreg.DCTRL, "resumereq", 1); err != nil {
		return classify("resume all: set resumereq", err)
	}
	if _, err := e.dm.PollField(dmreg.DCTRL, "allrunning", 1, e.cfg.PollRetries, e.cfg.PollDelay); err != nil {
		return classify("resume all: allrunning never asserted", err)
	}
	return nil
}

// StepWarp single-steps the current thread. It requires a current-thread
// pointer to an active warp (otherwise errWarpNotActive); if every warp
// happens to be halted already it proceeds anyway but logs a warning,
// since stepping one thread may depend on others to make progress.
func (e *Engine) StepWarp() (dmreg.HaltCause, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return dmreg.HaltCauseNone, err
	}
	if e.selWid < 0 {
		return dmreg.HaltCauseNone, ErrNoneSelected
	}
	active, err := e.warpActiveLocked(e.selWid)
	if err != nil {
		return dmreg.HaltCauseNone, err
	}
	if !active {
		return dmreg.HaltCauseNone, errWarpNotActive(e.selWid)
	}

	summary, err := e.getWarpSummaryLocked()
	if err != nil {
		return dmreg.HaltCauseNone, err
	}
	if summary.AllHalted {
		e.log.Warn("step: every warp is currently halted, target may deadlock")
	}

	if err := e.dm.WrField(dmreg.DCTRL, "stepreq", 1); err != nil {
		return dmreg.HaltCauseNone, classify("step: set stepreq", err)
	}
	if _, err := e.dm.PollField(dmreg.DCTRL, "stepstate", 0, e.cfg.PollRetries, e.cfg.PollDelay); err != nil {
		return dmreg.HaltCauseNone, classify("step: stepstate never cleared", err)
	}

	return e.checkBreakpointHitLocked(e.selWid)
}
