package engine

import (
	"fmt"

	"github.com/vortex-riscv/vxdbg/pkg/dmreg"
)

// windowCount returns how many 32-bit selection windows cover every warp.
func windowCount(totalWarps uint32) int {
	if totalWarps == 0 {
		return 0
	}
	return int((totalWarps + 31) / 32)
}

func windowAndBit(wid int) (win int, bit uint32) {
	return wid / 32, uint32(wid % 32)
}

// SelectWarps builds per-window selection masks covering exactly wids and
// writes every window (including windows with no selected warp, which get
// an explicit all-zero mask). This targets DSELECT.winsel/WMASK, a
// separate sub-field from the warpsel/threadsel current-thread pointer, so
// it does not disturb whatever SelectWarpThread last established.
func (e *Engine) SelectWarps(wids []int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return err
	}
	return e.selectWarpsLocked(wids)
}

func (e *Engine) selectWarpsLocked(wids []int) error {
	total := int(e.platform.NumTotalWarps())
	nwin := windowCount(e.platform.NumTotalWarps())
	masks := make([]uint32, nwin)
	for _, wid := range wids {
		if wid < 0 || wid >= total {
			e.log.Warnf("SelectWarps: warp id %d out of range [0,%d), skipping", wid, total)
			continue
		}
		win, bit := windowAndBit(wid)
		masks[win] |= 1 << bit
	}
	for win := 0; win < nwin; win++ {
		if err := e.dm.WrField(dmreg.DSELECT, "winsel", uint32(win)); err != nil {
			return classify("select warps: set winsel", err)
		}
		if err := e.dm.Wr(dmreg.WMASK, masks[win]); err != nil {
			return classify("select warps: write wmask", err)
		}
	}
	return nil
}

// SelectAllWarps selects every warp (all=true) or none (all=false), by
// writing an all-ones or all-zero mask to every window.
func (e *Engine) SelectAllWarps(all bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return err
	}
	return e.selectAllWarpsLocked(all)
}

func (e *Engine) selectAllWarpsLocked(all bool) error {
	nwin := windowCount(e.platform.NumTotalWarps())
	mask := uint32(0)
	if all {
		mask = 0xFFFFFFFF
	}
	for win := 0; win < nwin; win++ {
		if err := e.dm.WrField(dmreg.DSELECT, "winsel", uint32(win)); err != nil {
			return classify("select all warps: set winsel", err)
		}
		if err := e.dm.Wr(dmreg.WMASK, mask); err != nil {
			return classify("select all warps: write wmask", err)
		}
	}
	return nil
}

// SelectWarpThread validates (wid, tid) against the platform descriptor and
// sets the current-thread pointer to it. It does not read DPC; the engine
// keeps no cached PC.
func (e *Engine) SelectWarpThread(wid, tid int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return err
	}
	return e.selectWarpThreadLocked(wid, tid, e.platform)
}

func (e *Engine) selectWarpThreadLocked(wid, tid int, info PlatformInfo) error {
	if wid < 0 || wid >= int(info.NumTotalWarps()) {
		return fmt.Errorf("%w: warp id %d out of range [0,%d)", ErrInvalidArg, wid, info.NumTotalWarps())
	}
	if tid < 0 || (info.NumThreads != 0 && tid >= int(info.NumThreads)) {
		return fmt.Errorf("%w: thread id %d out of range [0,%d)", ErrInvalidArg, tid, info.NumThreads)
	}
	if err := e.dm.WrField(dmreg.DSELECT, "warpsel", uint32(wid)); err != nil {
		return classify("select warp/thread: set warpsel", err)
	}
	if err := e.dm.WrField(dmreg.DSELECT, "threadsel", uint32(tid)); err != nil {
		return classify("select warp/thread: set threadsel", err)
	}
	e.selWid, e.selTid = wid, tid
	return nil
}

// GetSelectedWarpThread returns the cached current-thread pointer, a local
// read with no DM access. Operations that depend on the current-thread
// pointer check this cache and rely on DSELECT still holding what
// selectWarpThreadLocked last wrote; they do not rewrite DSELECT first.
func (e *Engine) GetSelectedWarpThread() (wid, tid int, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.selWid < 0 {
		return 0, 0, false
	}
	return e.selWid, e.selTid, true
}
