package engine

import (
	"encoding/binary"
	"fmt"

	"github.com/vortex-riscv/vxdbg/pkg/dmreg"
	"github.com/vortex-riscv/vxdbg/pkg/riscv"
)

// ReadMem reads nbytes of target memory starting at addr, via t0/t1
// scratch injection: t0 walks word-aligned addresses, t1 shuttles each
// word through DSCRATCH. A read of 0 bytes returns an empty buffer without
// issuing any injection.
func (e *Engine) ReadMem(addr uint32, nbytes int) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return nil, err
	}
	return e.readMemLocked(addr, nbytes)
}

func (e *Engine) readMemLocked(addr uint32, nbytes int) (data []byte, err error) {
	if nbytes < 0 {
		return nil, ErrInvalidArg
	}
	if nbytes == 0 {
		return []byte{}, nil
	}
	if err := e.requireHaltedSelected(); err != nil {
		return nil, err
	}

	start := addr &^ 3
	end := (addr + uint32(nbytes) + 3) &^ 3
	buf := make([]byte, end-start)

	saved, serr := e.saveRegs([]uint32{gprT0, gprT1})
	if serr != nil {
		return nil, serr
	}
	defer func() {
		if rerr := e.restoreRegs(saved); rerr != nil && err == nil {
			err = rerr
		}
	}()

	if err = e.dm.Wr(dmreg.DSCRATCH, start); err != nil {
		return nil, classify("read mem: stage start address", err)
	}
	if err = e.injectAsmLocked(fmt.Sprintf("csrr %s, %#x", riscv.GPRName(gprT0), riscv.CSRVXDscratch)); err != nil {
		return nil, err
	}

	lw := fmt.Sprintf("lw %s, 0(%s)", riscv.GPRName(gprT1), riscv.GPRName(gprT0))
	stash := fmt.Sprintf("csrw %#x, %s", riscv.CSRVXDscratch, riscv.GPRName(gprT1))
	advance := fmt.Sprintf("addi %s, %s, 4", riscv.GPRName(gprT0), riscv.GPRName(gprT0))

	numWords := int(uint32(len(buf)) / 4)
	for i := 0; i < numWords; i++ {
		if err = e.injectAsmLocked(lw); err != nil {
			return nil, err
		}
		if err = e.injectAsmLocked(stash); err != nil {
			return nil, err
		}
		word, rerr := e.dm.Rd(dmreg.DSCRATCH)
		if rerr != nil {
			err = classify("read mem: read word", rerr)
			return nil, err
		}
		binary.LittleEndian.PutUint32(buf[i*4:], word)
		if i != numWords-1 {
			if err = e.injectAsmLocked(advance); err != nil {
				return nil, err
			}
		}
	}

	lead := addr - start
	return buf[lead : lead+uint32(nbytes)], nil
}

// WriteMem writes data to target memory starting at addr. Each 32-bit
// aligned word spanned by [addr, addr+len(data)) is either written
// wholesale (when data fully covers it) or read-modify-written (when addr
// or addr+len(data) falls in the middle of a word), via the same t0/t1
// scratch convention as ReadMem.
func (e *Engine) WriteMem(addr uint32, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized(); err != nil {
		return err
	}
	return e.writeMemLocked(addr, data)
}

func (e *Engine) writeMemLocked(addr uint32, data []byte) (err error) {
	if len(data) == 0 {
		return nil
	}
	if err := e.requireHaltedSelected(); err != nil {
		return err
	}

	start := addr &^ 3
	end := (addr + uint32(len(data)) + 3) &^ 3
	numWords := int((end - start) / 4)

	saved, serr := e.saveRegs([]uint32{gprT0, gprT1})
	if serr != nil {
		return serr
	}
	defer func() {
		if rerr := e.restoreRegs(saved); rerr != nil && err == nil {
			err = rerr
		}
	}()

	if err = e.dm.Wr(dmreg.DSCRATCH, start); err != nil {
		return classify("write mem: stage start address", err)
	}
	if err = e.injectAsmLocked(fmt.Sprintf("csrr %s, %#x", riscv.GPRName(gprT0), riscv.CSRVXDscratch)); err != nil {
		return err
	}

	lw := fmt.Sprintf("lw %s, 0(%s)", riscv.GPRName(gprT1), riscv.GPRName(gprT0))
	stashT1 := fmt.Sprintf("csrw %#x, %s", riscv.CSRVXDscratch, riscv.GPRName(gprT1))
	loadT1 := fmt.Sprintf("csrr %s, %#x", riscv.GPRName(gprT1), riscv.CSRVXDscratch)
	sw := fmt.Sprintf("sw %s, 0(%s)", riscv.GPRName(gprT1), riscv.GPRName(gprT0))
	advance := fmt.Sprintf("addi %s, %s, 4", riscv.GPRName(gprT0), riscv.GPRName(gprT0))

	dataEnd := addr + uint32(len(data))
	for k := 0; k < numWords; k++ {
		wordAddr := start + uint32(k)*4
		fullyCovered := wordAddr >= addr && wordAddr+4 <= dataEnd

		var wordBytes [4]byte
		if !fullyCovered {
			if err = e.injectAsmLocked(lw); err != nil {
				return err
			}
			if err = e.injectAsmLocked(stashT1); err != nil {
				return err
			}
			orig, rerr := e.dm.Rd(dmreg.DSCRATCH)
			if rerr != nil {
				return classify("write mem: read original word", rerr)
			}
			binary.LittleEndian.PutUint32(wordBytes[:], orig)
		}
		for p := uint32(0); p < 4; p++ {
			ga := wordAddr + p
			if ga >= addr && ga < dataEnd {
				wordBytes[p] = data[ga-addr]
			}
		}
		newWord := binary.LittleEndian.Uint32(wordBytes[:])

		if err = e.dm.Wr(dmreg.DSCRATCH, newWord); err != nil {
			return classify("write mem: stage new word", err)
		}
		if err = e.injectAsmLocked(loadT1); err != nil {
			return err
		}
		if err = e.injectAsmLocked(sw); err != nil {
			return err
		}
		if k != numWords-1 {
			if err = e.injectAsmLocked(advance); err != nil {
				return err
			}
		}
	}
	return nil
}
