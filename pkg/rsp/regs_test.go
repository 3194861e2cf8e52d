package rsp

import (
	"strings"
	"testing"
	"time"

	"github.com/vortex-riscv/vxdbg/pkg/dm"
	"github.com/vortex-riscv/vxdbg/pkg/dmreg"
	"github.com/vortex-riscv/vxdbg/pkg/engine"
	"github.com/vortex-riscv/vxdbg/pkg/logflags"
	"github.com/vortex-riscv/vxdbg/pkg/riscv"
	"github.com/vortex-riscv/vxdbg/pkg/transport/fake"
)

func TestEncodeDecodeRegWordRoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 0xDEADBEEF, 0x80000000, 1} {
		got, err := decodeRegWord(encodeRegWord(v))
		if err != nil {
			t.Fatalf("decodeRegWord: %v", err)
		}
		if got != v {
			t.Fatalf("round trip %#x -> %#x", v, got)
		}
	}
}

// Scenario E from spec.md §8: PC = 0x80000000 encodes byte-reversed as
// "00000080" on the wire.
func TestEncodeRegWordIsByteReversed(t *testing.T) {
	got := encodeRegWord(0x80000000)
	want := "00000080"
	if got != want {
		t.Fatalf("encodeRegWord(0x80000000) = %q, want %q", got, want)
	}
}

func TestTotalRegisterCountMatchesWireLayout(t *testing.T) {
	// 32 GPRs + PC + 9 exposed Vortex CSRs.
	if totalRegisters != 42 {
		t.Fatalf("totalRegisters = %d, want 42", totalRegisters)
	}
}

// regsHarness is a trimmed copy of pkg/engine's test harness (single warp,
// single thread), just enough to back a real *engine.Engine so the G/g
// wire-register paths are exercised against actual register traffic
// instead of a bare-struct Server.
type regsHarness struct {
	ft *fake.Transport

	gpr    [32]uint32
	csr    map[uint32]uint32
	halted bool

	dctrlAddr    uint32
	wstatusAddr  uint32
	wactiveAddr  uint32
	dinjectAddr  uint32
	dscratchAddr uint32
}

func newRegsHarness() *regsHarness {
	h := &regsHarness{
		ft:           fake.New(),
		csr:          map[uint32]uint32{},
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

func (h *regsHarness) onWrite(addr uint32, value uint32, regs map[uint32]uint32) {
	if addr != h.dctrlAddr {
		return
	}
	haltreq, _ := dmreg.Extract(dmreg.DCTRL, "haltreq", value)
	resumereq, _ := dmreg.Extract(dmreg.DCTRL, "resumereq", value)
	injectreq, _ := dmreg.Extract(dmreg.DCTRL, "injectreq", value)
	if haltreq == 1 {
		h.halted = true
	}
	if resumereq == 1 {
		h.halted = false
	}
	if injectreq == 1 {
		h.execute(regs[h.dinjectAddr], regs)
	}
	regs[h.wstatusAddr] = boolBit(h.halted)

	word := uint32(0)
	word, _ = dmreg.Set(dmreg.DCTRL, "dmactive", word, 1)
	word, _ = dmreg.Set(dmreg.DCTRL, "allhalted", word, boolBit(h.halted))
	word, _ = dmreg.Set(dmreg.DCTRL, "anyhalted", word, boolBit(h.halted))
	word, _ = dmreg.Set(dmreg.DCTRL, "allrunning", word, boolBit(!h.halted))
	word, _ = dmreg.Set(dmreg.DCTRL, "anyrunning", word, boolBit(!h.halted))
	regs[h.dctrlAddr] = word
}

func boolBit(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func (h *regsHarness) execute(word uint32, regs map[uint32]uint32) {
	if word == riscv.EBreak() {
		h.halted = true
		return
	}
	opcode := word & 0x7F
	rd := (word >> 7) & 0x1F
	funct3 := (word >> 12) & 0x7
	rs1 := (word >> 15) & 0x1F
	if opcode == 0x73 {
		csr := word >> 20
		switch funct3 {
		case 0x2:
			h.gpr[rd] = h.readCSR(csr, regs)
		case 0x1:
			h.writeCSR(csr, h.gpr[rs1], regs)
		}
	}
	h.gpr[0] = 0
}

func (h *regsHarness) readCSR(csr uint32, regs map[uint32]uint32) uint32 {
	if csr == riscv.CSRVXDscratch {
		return regs[h.dscratchAddr]
	}
	return h.csr[csr]
}

func (h *regsHarness) writeCSR(csr, val uint32, regs map[uint32]uint32) {
	if csr == riscv.CSRVXDscratch {
		regs[h.dscratchAddr] = val
		return
	}
	h.csr[csr] = val
}

// newRegsTestServer builds a Server over a real, Initialize()'d engine
// with warp 0 thread 0 selected, backed by regsHarness.
func newRegsTestServer(t *testing.T) *Server {
	t.Helper()
	h := newRegsHarness()
	h.csr[riscv.CSRMisa] = 0
	h.ft.Regs[dmreg.Get(dmreg.PLATFORM).Addr] = 0 // 1 cluster x 1 core x 1 warp x 1 thread

	access := dm.New(h.ft)
	cfg := engine.Config{PollRetries: 20, PollDelay: time.Microsecond, WakeDMRetries: 5}
	eng := engine.New(access, cfg)
	if err := eng.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := eng.SelectWarpThread(0, 0); err != nil {
		t.Fatalf("SelectWarpThread: %v", err)
	}
	if err := eng.HaltWarps([]int{0}); err != nil {
		t.Fatalf("HaltWarps: %v", err)
	}

	d := newDispatcher()
	registerCommands(d)
	return &Server{
		eng:      eng,
		threads:  newThreadTable(eng.Platform()),
		dispatch: d,
		log:      logflags.RSPLogger(),
	}
}

func TestCmdWriteRegsWritesGPRsAndPCIgnoresCSRs(t *testing.T) {
	s := newRegsTestServer(t)

	blob := strings.Repeat("00000000", totalRegisters)
	// x5 (t0) at wire index 5.
	blob = blob[:5*8] + encodeRegWord(0x2a) + blob[6*8:]
	// PC at wire index 32.
	blob = blob[:regPC*8] + encodeRegWord(0x80000010) + blob[(regPC+1)*8:]

	if got := cmdWriteRegs(s, "G"+blob); got != "OK" {
		t.Fatalf("cmdWriteRegs = %q, want OK", got)
	}

	v, err := s.eng.ReadGPR(5)
	if err != nil {
		t.Fatalf("ReadGPR: %v", err)
	}
	if v != 0x2a {
		t.Fatalf("x5 = %#x, want 0x2a", v)
	}
	pc, err := s.eng.GetPC()
	if err != nil {
		t.Fatalf("GetPC: %v", err)
	}
	if pc != 0x80000010 {
		t.Fatalf("pc = %#x, want 0x80000010", pc)
	}
}

func TestCmdWriteRegsTooShort(t *testing.T) {
	s := newRegsTestServer(t)
	if got := cmdWriteRegs(s, "G0000"); got != "E01" {
		t.Fatalf("cmdWriteRegs with short blob = %q, want E01", got)
	}
}

func TestApplyGPacketIgnoresTrailingCSRRegion(t *testing.T) {
	s := newRegsTestServer(t)

	blob := strings.Repeat("00000000", totalRegisters)
	// Corrupt the first CSR word so it would fail to decode if it were
	// ever parsed -- applyGPacket must never look at it.
	blob = blob[:firstVXCSR*8] + "zzzzzzzz" + blob[(firstVXCSR+1)*8:]

	if err := s.applyGPacket(blob); err != nil {
		t.Fatalf("applyGPacket: %v", err)
	}
}
