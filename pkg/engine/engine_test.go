package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/vortex-riscv/vxdbg/pkg/dmreg"
	"github.com/vortex-riscv/vxdbg/pkg/riscv"
)

func TestInitializeDecodesPlatformInfo(t *testing.T) {
	// numclusters=1(->2), numcores=0(->1), numwarps=3(->4), numthreads=2(log2->4)
	word := uint32(0)
	word, _ = dmreg.Set(dmreg.PLATFORM, "numclusters", word, 1)
	word, _ = dmreg.Set(dmreg.PLATFORM, "numcores", word, 0)
	word, _ = dmreg.Set(dmreg.PLATFORM, "numwarps", word, 3)
	word, _ = dmreg.Set(dmreg.PLATFORM, "numthreads", word, 2)

	misa := uint32(1<<30) | uint32(1<<8) | uint32(1<<12) // RV32, base ISA, muldiv
	e, _ := newTestEngine(t, word, misa)

	p := e.Platform()
	if p.NumClusters != 2 || p.NumCores != 1 || p.NumWarps != 4 || p.NumThreads != 4 {
		t.Fatalf("decoded platform info = %+v, want clusters=2 cores=1 warps=4 threads=4", p)
	}
	if p.MISA != misa {
		t.Fatalf("MISA = %#x, want %#x", p.MISA, misa)
	}
}

func TestGPRWriteReadRoundTrip(t *testing.T) {
	e, _ := newTestEngine(t, platformWordOneOfEverything, 0)
	if err := e.SelectWarpThread(0, 0); err != nil {
		t.Fatalf("SelectWarpThread: %v", err)
	}
	if err := e.HaltWarps([]int{0}); err != nil {
		t.Fatalf("HaltWarps: %v", err)
	}
	if err := e.WriteGPR(10, 0xCAFEBABE); err != nil {
		t.Fatalf("WriteGPR: %v", err)
	}
	got, err := e.ReadGPR(10)
	if err != nil {
		t.Fatalf("ReadGPR: %v", err)
	}
	if got != 0xCAFEBABE {
		t.Fatalf("ReadGPR(a0) = %#x, want %#x", got, 0xCAFEBABE)
	}
}

func TestGPRZeroIsAlwaysZero(t *testing.T) {
	e, _ := newTestEngine(t, platformWordOneOfEverything, 0)
	if err := e.SelectWarpThread(0, 0); err != nil {
		t.Fatal(err)
	}
	if err := e.HaltWarps([]int{0}); err != nil {
		t.Fatal(err)
	}
	if err := e.WriteGPR(0, 0xDEADBEEF); err != nil {
		t.Fatal(err)
	}
	got, err := e.ReadGPR(0)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0 {
		t.Fatalf("ReadGPR(x0) = %#x, want 0", got)
	}
}

func TestCSRReadRestoresScratchRegister(t *testing.T) {
	e, h := newTestEngine(t, platformWordOneOfEverything, 0)
	if err := e.SelectWarpThread(0, 0); err != nil {
		t.Fatal(err)
	}
	if err := e.HaltWarps([]int{0}); err != nil {
		t.Fatal(err)
	}
	if err := e.WriteGPR(gprT0, 0x11111111); err != nil {
		t.Fatal(err)
	}
	h.csr[riscv.CSRVXWarpID] = 0x42

	got, err := e.ReadCSR(riscv.CSRVXWarpID)
	if err != nil {
		t.Fatalf("ReadCSR: %v", err)
	}
	if got != 0x42 {
		t.Fatalf("ReadCSR(vx_warp_id) = %#x, want 0x42", got)
	}
	t0, err := e.ReadGPR(gprT0)
	if err != nil {
		t.Fatal(err)
	}
	if t0 != 0x11111111 {
		t.Fatalf("t0 after ReadCSR = %#x, want original 0x11111111 restored", t0)
	}
}

func TestMemoryWriteReadRoundTripUnaligned(t *testing.T) {
	e, _ := newTestEngine(t, platformWordOneOfEverything, 0)
	if err := e.SelectWarpThread(0, 0); err != nil {
		t.Fatal(err)
	}
	if err := e.HaltWarps([]int{0}); err != nil {
		t.Fatal(err)
	}

	// Seed the aligned word straddling the unaligned write so the
	// read-modify-write path has something real to preserve.
	if err := e.WriteMem(0x1000, []byte{0x11, 0x22, 0x33, 0x44}); err != nil {
		t.Fatalf("seed WriteMem: %v", err)
	}
	if err := e.WriteMem(0x1001, []byte{0xAA, 0xBB}); err != nil {
		t.Fatalf("WriteMem: %v", err)
	}
	got, err := e.ReadMem(0x1000, 4)
	if err != nil {
		t.Fatalf("ReadMem: %v", err)
	}
	want := []byte{0x11, 0xAA, 0xBB, 0x44}
	if string(got) != string(want) {
		t.Fatalf("ReadMem = %x, want %x (leading/trailing bytes preserved)", got, want)
	}
}

func TestReadMemZeroBytesReturnsEmptyWithoutInjection(t *testing.T) {
	e, _ := newTestEngine(t, platformWordOneOfEverything, 0)
	if err := e.SelectWarpThread(0, 0); err != nil {
		t.Fatal(err)
	}
	if err := e.HaltWarps([]int{0}); err != nil {
		t.Fatal(err)
	}
	got, err := e.ReadMem(0x2000, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("ReadMem(n=0) = %v, want empty", got)
	}
}

func TestBreakpointSetRemoveRoundTrip(t *testing.T) {
	e, _ := newTestEngine(t, platformWordOneOfEverything, 0)
	if err := e.SelectWarpThread(0, 0); err != nil {
		t.Fatal(err)
	}
	if err := e.HaltWarps([]int{0}); err != nil {
		t.Fatal(err)
	}
	if err := e.WriteMem(0x400, []byte{0x93, 0x02, 0x40, 0x00}); err != nil { // addi t0,x0,4
		t.Fatal(err)
	}

	if err := e.SetBreakpoint(0x400); err != nil {
		t.Fatalf("SetBreakpoint: %v", err)
	}
	patched, err := e.ReadMem(0x400, 4)
	if err != nil {
		t.Fatal(err)
	}
	wantPatched := []byte{0x73, 0x00, 0x10, 0x00}
	if string(patched) != string(wantPatched) {
		t.Fatalf("memory after SetBreakpoint = %x, want ebreak word %x", patched, wantPatched)
	}
	if !e.AnyBreakpoints() {
		t.Fatal("AnyBreakpoints() = false after SetBreakpoint")
	}

	if err := e.RemoveBreakpoint(0x400); err != nil {
		t.Fatalf("RemoveBreakpoint: %v", err)
	}
	restored, err := e.ReadMem(0x400, 4)
	if err != nil {
		t.Fatal(err)
	}
	wantOriginal := []byte{0x93, 0x02, 0x40, 0x00}
	if string(restored) != string(wantOriginal) {
		t.Fatalf("memory after RemoveBreakpoint = %x, want original %x", restored, wantOriginal)
	}
	if e.AnyBreakpoints() {
		t.Fatal("AnyBreakpoints() = true after RemoveBreakpoint")
	}
}

func TestContinueUntilBreakpointIncrementsHitCount(t *testing.T) {
	e, h := newTestEngine(t, platformWordOneOfEverything, 0)
	if err := e.SelectWarpThread(0, 0); err != nil {
		t.Fatal(err)
	}
	if err := e.HaltWarps([]int{0}); err != nil {
		t.Fatal(err)
	}
	if err := e.SetBreakpoint(0x800); err != nil {
		t.Fatalf("SetBreakpoint: %v", err)
	}

	// Simulate the warp running for a few polls, then hitting the
	// breakpoint: the model halts itself on ebreak with DPC parked at the
	// breakpoint address once a handful of WSTATUS reads have gone by.
	reads := 0
	wstatusAddr := dmreg.Get(dmreg.WSTATUS).Addr
	dpcAddr := dmreg.Get(dmreg.DPC).Addr
	dctrlAddr := dmreg.Get(dmreg.DCTRL).Addr
	h.ft.ReadHook = func(addr uint32, regs map[uint32]uint32) {
		if addr != wstatusAddr {
			return
		}
		reads++
		if reads >= 3 {
			h.halted = true
			h.hacause = dmreg.HaltCauseEbreak
			regs[wstatusAddr] = 1
			regs[dpcAddr] = 0x800
			word, _ := dmreg.Set(dmreg.DCTRL, "hacause", regs[dctrlAddr], uint32(dmreg.HaltCauseEbreak))
			regs[dctrlAddr] = word
		}
	}

	cause, err := e.ContinueUntilBreakpoint(time.Second)
	if err != nil {
		t.Fatalf("ContinueUntilBreakpoint: %v", err)
	}
	if cause != dmreg.HaltCauseEbreak {
		t.Fatalf("halt cause = %v, want Ebreak", cause)
	}
	bps := e.GetBreakpoints()
	if len(bps) != 1 || bps[0].HitCount != 1 {
		t.Fatalf("breakpoints after continue = %+v, want one breakpoint with HitCount=1", bps)
	}
}

func TestResetPlatformClearsBreakpointsAndSelection(t *testing.T) {
	e, _ := newTestEngine(t, platformWordOneOfEverything, 0)
	if err := e.SelectWarpThread(0, 0); err != nil {
		t.Fatal(err)
	}
	if err := e.HaltWarps([]int{0}); err != nil {
		t.Fatal(err)
	}
	if err := e.SetBreakpoint(0x400); err != nil {
		t.Fatal(err)
	}
	if err := e.ResetPlatform(true); err != nil {
		t.Fatalf("ResetPlatform: %v", err)
	}
	if e.AnyBreakpoints() {
		t.Fatal("breakpoints survived ResetPlatform")
	}
	if _, _, ok := e.GetSelectedWarpThread(); ok {
		t.Fatal("current-thread pointer survived ResetPlatform")
	}
}

func TestSelectWarpThreadRejectsOutOfRange(t *testing.T) {
	e, _ := newTestEngine(t, platformWordOneOfEverything, 0)
	if err := e.SelectWarpThread(5, 0); err == nil {
		t.Fatal("expected error selecting out-of-range warp id")
	}
}

func TestStepWarpSucceedsOnHaltedWarp(t *testing.T) {
	e, _ := newTestEngine(t, platformWordOneOfEverything, 0)
	if err := e.SelectWarpThread(0, 0); err != nil {
		t.Fatalf("SelectWarpThread: %v", err)
	}
	if err := e.HaltWarps([]int{0}); err != nil {
		t.Fatalf("HaltWarps: %v", err)
	}
	if _, err := e.StepWarp(); err != nil {
		t.Fatalf("StepWarp: %v", err)
	}
}

func TestStepWarpRejectsInactiveWarp(t *testing.T) {
	e, h := newTestEngine(t, platformWordOneOfEverything, 0)
	if err := e.SelectWarpThread(0, 0); err != nil {
		t.Fatalf("SelectWarpThread: %v", err)
	}
	if err := e.HaltWarps([]int{0}); err != nil {
		t.Fatalf("HaltWarps: %v", err)
	}
	h.ft.Regs[h.wactiveAddr] = 0

	_, err := e.StepWarp()
	if err == nil {
		t.Fatal("expected error stepping an inactive warp")
	}
	var ee *Error
	if !errors.As(err, &ee) || ee.Code != CodeWarpNotHalted {
		t.Fatalf("StepWarp error = %v, want *Error with CodeWarpNotHalted", err)
	}
}
