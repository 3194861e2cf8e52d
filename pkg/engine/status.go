package engine

import "github.com/vortex-riscv/vxdbg/pkg/dmreg"

// GetWarpStatus reports per-warp active/halted state for every warp, and
// optionally each halted warp's PC and halt cause. Fetching PC/cause
// requires briefly moving the current-thread pointer through each halted
// warp (thread 0), so the saved pointer (or its unset state) is restored
// before a successful return; an error return leaves it where it was moved.
func (e *Engine) GetWarpStatus(includePC, includeHaltCause bool) (map[int]WarpStatus, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return nil, err
	}

	savedWid, savedTid := e.selWid, e.selTid
	total := int(e.platform.NumTotalWarps())
	nwin := windowCount(e.platform.NumTotalWarps())
	out := make(map[int]WarpStatus, total)

	for win := 0; win < nwin; win++ {
		if err := e.dm.WrField(dmreg.DSELECT, "winsel", uint32(win)); err != nil {
			return nil, classify("warp status: set winsel", err)
		}
		activeWord, err := e.dm.Rd(dmreg.WACTIVE)
		if err != nil {
			return nil, classify("warp status: read wactive", err)
		}
		statusWord, err := e.dm.Rd(dmreg.WSTATUS)
		if err != nil {
			return nil, classify("warp status: read wstatus", err)
		}
		for bit := 0; bit < 32; bit++ {
			wid := win*32 + bit
			if wid >= total {
				break
			}
			active := (activeWord>>uint(bit))&1 != 0
			halted := (statusWord>>uint(bit))&1 != 0
			st := WarpStatus{Active: active, Halted: halted}
			if halted && (includePC || includeHaltCause) {
				if err := e.selectWarpThreadLocked(wid, 0, e.platform); err != nil {
					return nil, err
				}
				if includePC {
					pc, err := e.dm.Rd(dmreg.DPC)
					if err != nil {
						return nil, classify("warp status: read dpc", err)
					}
					st.PC = pc
				}
				if includeHaltCause {
					cause, err := e.dm.RdField(dmreg.DCTRL, "hacause")
					if err != nil {
						return nil, classify("warp status: read hacause", err)
					}
					st.HaltCause = dmreg.HaltCause(cause)
				}
			}
			out[wid] = st
		}
	}

	if savedWid >= 0 {
		if err := e.selectWarpThreadLocked(savedWid, savedTid, e.platform); err != nil {
			return nil, err
		}
	} else {
		e.selWid, e.selTid = -1, -1
	}
	return out, nil
}

// GetWarpSummary reads DCTRL's six aggregate status bits in one shot.
func (e *Engine) GetWarpSummary() (Summary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return Summary{}, err
	}
	return e.getWarpSummaryLocked()
}

func (e *Engine) getWarpSummaryLocked() (Summary, error) {
	word, err := e.dm.Rd(dmreg.DCTRL)
	if err != nil {
		return Summary{}, classify("warp summary: read dctrl", err)
	}
	field := func(name string) bool {
		v, _ := dmreg.Extract(dmreg.DCTRL, name, word)
		return v != 0
	}
	return Summary{
		AllHalted:  field("allhalted"),
		AnyHalted:  field("anyhalted"),
		AllRunning: field("allrunning"),
		AnyRunning: field("anyrunning"),
		AllUnavail: field("allunavail"),
		AnyUnavail: field("anyunavail"),
	}, nil
}

// GetWarpState reports whether a single warp is currently halted, by
// selecting its window and reading the corresponding WSTATUS bit.
func (e *Engine) GetWarpState(wid int) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return false, err
	}
	return e.getWarpStateLocked(wid)
}

func (e *Engine) getWarpStateLocked(wid int) (bool, error) {
	if wid < 0 || wid >= int(e.platform.NumTotalWarps()) {
		return false, ErrInvalidArg
	}
	win, bit := windowAndBit(wid)
	if err := e.dm.WrField(dmreg.DSELECT, "winsel", uint32(win)); err != nil {
		return false, classify("warp state: set winsel", err)
	}
	word, err := e.dm.Rd(dmreg.WSTATUS)
	if err != nil {
		return false, classify("warp state: read wstatus", err)
	}
	return (word>>bit)&1 != 0, nil
}

// warpActiveLocked reports whether wid is currently participating in
// execution at all (WACTIVE), as distinct from getWarpStateLocked's
// halted/running WSTATUS bit: a warp can be inactive (never scheduled any
// work) and that is a different failure mode than an active warp that
// simply isn't halted.
func (e *Engine) warpActiveLocked(wid int) (bool, error) {
	if wid < 0 || wid >= int(e.platform.NumTotalWarps()) {
		return false, ErrInvalidArg
	}
	win, bit := windowAndBit(wid)
	if err := e.dm.WrField(dmreg.DSELECT, "winsel", uint32(win)); err != nil {
		return false, classify("warp active: set winsel", err)
	}
	word, err := e.dm.Rd(dmreg.WACTIVE)
	if err != nil {
		return false, classify("warp active: read wactive", err)
	}
	return (word>>bit)&1 != 0, nil
}
