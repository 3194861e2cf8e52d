package engine

import (
	"testing"
	"time"

	"github.com/vortex-riscv/vxdbg/pkg/dm"
	"github.com/vortex-riscv/vxdbg/pkg/dmreg"
	"github.com/vortex-riscv/vxdbg/pkg/riscv"
	"github.com/vortex-riscv/vxdbg/pkg/transport/fake"
)

// harness is a tiny single-warp, single-thread RISC-V core model driven by
// the fake transport's read/write hooks, so engine tests exercise the real
// instruction-injection sequences instead of asserting on raw DM register
// traffic.
type harness struct {
	ft *fake.Transport

	gpr     [32]uint32
	csr     map[uint32]uint32
	mem     map[uint32]uint32
	halted  bool
	hacause dmreg.HaltCause

	dctrlAddr    uint32
	wstatusAddr  uint32
	wactiveAddr  uint32
	dinjectAddr  uint32
	dscratchAddr uint32
}

func newHarness() *harness {
	h := &harness{
		ft:           fake.New(),
		csr:          map[uint32]uint32{},
		mem:          map[uint32]uint32{},
		dctrlAddr:    dmreg.Get(dmreg.DCTRL).Addr,
		wstatusAddr:  dmreg.Get(dmreg.WSTATUS).Addr,
		wactiveAddr:  dmreg.Get(dmreg.WACTIVE).Addr,
		dinjectAddr:  dmreg.Get(dmreg.DINJECT).Addr,
		dscratchAddr: dmreg.Get(dmreg.DSCRATCH).Addr,
	}
	h.ft.Regs[h.wactiveAddr] = 1
	h.ft.WriteHook = h.onWrite
	return h
}

func boolBit(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func (h *harness) onWrite(addr uint32, value uint32, regs map[uint32]uint32) {
	if addr != h.dctrlAddr {
		return
	}
	haltreq, _ := dmreg.Extract(dmreg.DCTRL, "haltreq", value)
	resumereq, _ := dmreg.Extract(dmreg.DCTRL, "resumereq", value)
	injectreq, _ := dmreg.Extract(dmreg.DCTRL, "injectreq", value)
	stepreq, _ := dmreg.Extract(dmreg.DCTRL, "stepreq", value)

	if haltreq == 1 {
		h.halted = true
		h.hacause = dmreg.HaltCauseRequested
	}
	if resumereq == 1 {
		h.halted = false
		h.hacause = dmreg.HaltCauseNone
	}
	if injectreq == 1 {
		h.execute(regs[h.dinjectAddr], regs)
	}
	_ = stepreq

	regs[h.wstatusAddr] = boolBit(h.halted)

	word := uint32(0)
	word, _ = dmreg.Set(dmreg.DCTRL, "dmactive", word, 1)
	word, _ = dmreg.Set(dmreg.DCTRL, "allhalted", word, boolBit(h.halted))
	word, _ = dmreg.Set(dmreg.DCTRL, "anyhalted", word, boolBit(h.halted))
	word, _ = dmreg.Set(dmreg.DCTRL, "allrunning", word, boolBit(!h.halted))
	word, _ = dmreg.Set(dmreg.DCTRL, "anyrunning", word, boolBit(!h.halted))
	word, _ = dmreg.Set(dmreg.DCTRL, "hacause", word, uint32(h.hacause))
	regs[h.dctrlAddr] = word
}

func signExtend12(v uint32) int32 {
	if v&0x800 != 0 {
		return int32(v) - 0x1000
	}
	return int32(v)
}

// execute interprets the fixed instruction forms pkg/riscv.Assembler ever
// produces against the modelled register file, memory, and CSRs.
func (h *harness) execute(word uint32, regs map[uint32]uint32) {
	if word == riscv.EBreak() {
		h.halted = true
		h.hacause = dmreg.HaltCauseEbreak
		return
	}
	opcode := word & 0x7F
	rd := (word >> 7) & 0x1F
	funct3 := (word >> 12) & 0x7
	rs1 := (word >> 15) & 0x1F

	switch opcode {
	case 0x73: // SYSTEM: csrrs (our csrr) or csrrw (our csrw)
		csr := word >> 20
		switch funct3 {
		case 0x2:
			h.gpr[rd] = h.readCSR(csr, regs)
		case 0x1:
			h.writeCSR(csr, h.gpr[rs1], regs)
		}
	case 0x03: // lw
		imm := int32(word) >> 20
		addr := h.gpr[rs1] + uint32(imm)
		h.gpr[rd] = h.mem[addr]
	case 0x23: // sw
		imm115 := (word >> 25) & 0x7F
		imm40 := (word >> 7) & 0x1F
		imm := signExtend12((imm115 << 5) | imm40)
		rs2 := (word >> 20) & 0x1F
		addr := h.gpr[rs1] + uint32(imm)
		h.mem[addr] = h.gpr[rs2]
	case 0x13: // addi
		imm := int32(word) >> 20
		h.gpr[rd] = h.gpr[rs1] + uint32(imm)
	}
	h.gpr[0] = 0
}

func (h *harness) readCSR(csr uint32, regs map[uint32]uint32) uint32 {
	if csr == riscv.CSRVXDscratch {
		return regs[h.dscratchAddr]
	}
	return h.csr[csr]
}

func (h *harness) writeCSR(csr, val uint32, regs map[uint32]uint32) {
	if csr == riscv.CSRVXDscratch {
		regs[h.dscratchAddr] = val
		return
	}
	h.csr[csr] = val
}

// newTestEngine builds an engine whose PLATFORM register reads platformWord
// (most tests pass platformWordOneOfEverything) and returns it already
// Initialize()'d, alongside the harness backing it.
func newTestEngine(t *testing.T, platformWord uint32, misa uint32) (*Engine, *harness) {
	t.Helper()
	h := newHarness()
	h.csr[riscv.CSRMisa] = misa
	h.ft.Regs[dmreg.Get(dmreg.PLATFORM).Addr] = platformWord

	access := dm.New(h.ft)
	cfg := Config{PollRetries: 20, PollDelay: time.Microsecond, WakeDMRetries: 5}
	e := New(access, cfg)
	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return e, h
}

// platformWordOneOfEverything encodes platform fields for exactly one
// cluster, one core, one warp, one thread (numthreads field 0 -> 2^0 = 1).
const platformWordOneOfEverything = uint32(0)
