package engine

import "github.com/vortex-riscv/vxdbg/pkg/dmreg"

// requireHaltedSelected checks the preconditions every injection-based
// operation shares: a current thread must be selected, and that warp must
// be halted.
func (e *Engine) requireHaltedSelected() error {
	if e.selWid < 0 {
		return ErrNoneSelected
	}
	halted, err := e.getWarpStateLocked(e.selWid)
	if err != nil {
		return err
	}
	if !halted {
		return errWarpNotHalted(e.selWid)
	}
	return nil
}

// InjectInstruction injects a single raw 32-bit instruction word into the
// currently selected, halted warp/thread and waits for it to retire.
func (e *Engine) InjectInstruction(word uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return err
	}
	return e.injectLocked(word)
}

func (e *Engine) injectLocked(word uint32) error {
	if err := e.requireHaltedSelected(); err != nil {
		return err
	}
	if err := e.dm.Wr(dmreg.DINJECT, word); err != nil {
		return classify("inject: write dinject", err)
	}
	if err := e.dm.WrField(dmreg.DCTRL, "injectreq", 1); err != nil {
		return classify("inject: set injectreq", err)
	}
	if _, err := e.dm.PollField(dmreg.DCTRL, "injectstate", 0, e.cfg.PollRetries, e.cfg.PollDelay); err != nil {
		return classify("inject: injectstate never cleared", err)
	}
	return nil
}

// InjectAsm assembles a single line of assembly and injects it.
func (e *Engine) InjectAsm(line string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return err
	}
	return e.injectAsmLocked(line)
}

func (e *Engine) injectAsmLocked(line string) error {
	word, err := e.asm.Assemble(line)
	if err != nil {
		return wrapErr(CodeGeneric, "assemble "+line, err)
	}
	return e.injectLocked(word)
}
