// Package riscv supplies the small slice of RISC-V knowledge the engine
// needs: GPR/CSR name tables, an ISA-word pretty-printer, and an in-process
// encoder for the handful of instruction forms the engine injects
// (csrr, csrw, lw, sw, addi, ebreak).
//
// The original debugger shelled out to a real riscv64-unknown-elf-as
// toolchain per injected instruction (see original_source/src/riscv.cpp);
// spec.md treats that invocation as an external collaborator and out of
// scope. Per the Design Notes (spec.md §9), this package substitutes a
// direct encoder for the fixed set of forms actually used, since the
// engine never assembles arbitrary assembly.
package riscv

import (
	"fmt"
	"strconv"
	"strings"
)

// GPR name <-> index tables, both x-names and ABI mnemonics.
var gprABINames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// GPRName returns the ABI mnemonic for GPR index n (0-31).
func GPRName(n uint32) string {
	if n > 31 {
		return fmt.Sprintf("x%d", n)
	}
	return gprABINames[n]
}

// ParseGPR resolves "x0".."x31" or an ABI name to a register index.
func ParseGPR(name string) (uint32, bool) {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "x") {
		if n, err := strconv.Atoi(name[1:]); err == nil && n >= 0 && n <= 31 {
			return uint32(n), true
		}
	}
	for i, abi := range gprABINames {
		if abi == name {
			return uint32(i), true
		}
	}
	return 0, false
}

// CSR addresses used by the engine and exposed through the GDB register
// bank. Supplemented from original_source/src/rvdefs.h with vx_thread_id,
// which spec.md §4.5 lists among the exposed CSRs but which the newer
// original_source/src/riscv.h dropped from its table.
const (
	CSRFflags          = 0x001
	CSRFrm             = 0x002
	CSRFcsr            = 0x003
	CSRMisa            = 0x301
	CSRMscratch        = 0x340
	CSRMcycle          = 0xb00
	CSRMcycleh         = 0xb80
	CSRMinstret        = 0xb02
	CSRMinstreth       = 0xb82
	CSRMvendorid       = 0xf11
	CSRMarchid         = 0xf12
	CSRMimpid          = 0xf13
	CSRVXThreadID      = 0xcc0
	CSRVXWarpID        = 0xcc1
	CSRVXCoreID        = 0xcc2
	CSRVXActiveWarps   = 0xcc3
	CSRVXActiveThreads = 0xcc4
	CSRVXNumThreads    = 0xfc0
	CSRVXNumWarps      = 0xfc1
	CSRVXNumCores      = 0xfc2
	CSRVXLocalMemBase  = 0xfc3
	CSRVXDscratch      = 0x7b2
)

var csrNames = map[uint32]string{
	CSRFflags:          "fflags",
	CSRFrm:             "frm",
	CSRFcsr:            "fcsr",
	CSRMisa:            "misa",
	CSRMscratch:        "mscratch",
	CSRMcycle:          "mcycle",
	CSRMcycleh:         "mcycleh",
	CSRMinstret:        "minstret",
	CSRMinstreth:       "minstreth",
	CSRMvendorid:       "mvendorid",
	CSRMarchid:         "marchid",
	CSRMimpid:          "mimpid",
	CSRVXThreadID:      "vx_thread_id",
	CSRVXWarpID:        "vx_warp_id",
	CSRVXCoreID:        "vx_core_id",
	CSRVXActiveWarps:   "vx_active_warps",
	CSRVXActiveThreads: "vx_active_threads",
	CSRVXNumThreads:    "vx_num_threads",
	CSRVXNumWarps:      "vx_num_warps",
	CSRVXNumCores:      "vx_num_cores",
	CSRVXLocalMemBase:  "vx_local_mem_base",
	CSRVXDscratch:      "vx_dscratch",
}

var csrAddrsByName = func() map[string]uint32 {
	m := make(map[string]uint32, len(csrNames))
	for addr, name := range csrNames {
		m[name] = addr
	}
	return m
}()

// CSRName returns the mnemonic for a CSR address, or a "csr_0xNNN" fallback
// if it is unnamed.
func CSRName(addr uint32) string {
	if name, ok := csrNames[addr]; ok {
		return name
	}
	return fmt.Sprintf("csr_0x%03x", addr)
}

// ParseCSR resolves a CSR mnemonic or a bare "0x..."/decimal literal to its
// address.
func ParseCSR(tok string) (uint32, bool) {
	tok = strings.TrimSpace(tok)
	if addr, ok := csrAddrsByName[tok]; ok {
		return addr, true
	}
	if v, err := strconv.ParseUint(tok, 0, 32); err == nil {
		return uint32(v), true
	}
	return 0, false
}

// ExposedVXCSRs lists the nine Vortex CSRs the GDB register bank exposes,
// in the wire order spec.md §4.5 mandates.
var ExposedVXCSRs = []uint32{
	CSRVXNumCores, CSRVXNumWarps, CSRVXNumThreads,
	CSRVXCoreID, CSRVXWarpID, CSRVXThreadID,
	CSRVXActiveWarps, CSRVXActiveThreads, CSRVXLocalMemBase,
}

// ISAString decodes a RISC-V misa CSR value into a human-readable string,
// ported from original_source/src/riscv.cpp's rv_isa_string (a feature the
// distilled spec.md dropped but which makes the platform descriptor's raw
// ISA word legible in logs).
func ISAString(misa uint32, verbose bool) string {
	bit := func(pos uint) bool { return (misa>>pos)&1 != 0 }

	atomic := bit(0)
	bitmanip := bit(1)
	compressed := bit(2)
	doublePrFloat := bit(3)
	rv32eBase := bit(4)
	singlePrFloat := bit(5)
	baseISA := bit(8)
	muldiv := bit(12)
	packedSIMD := bit(15)
	quadPrFloat := bit(16)
	userMode := bit(20)
	vector := bit(21)
	nonstdExt := bit(23)
	xlen := misa >> 30

	xlenStr := "?"
	switch xlen {
	case 1:
		xlenStr = "32"
	case 2:
		xlenStr = "64"
	case 3:
		xlenStr = "128"
	}

	var sb strings.Builder
	sb.WriteString("RV")
	sb.WriteString(xlenStr)
	switch {
	case baseISA:
		sb.WriteString("I")
	case rv32eBase:
		sb.WriteString("E")
	default:
		sb.WriteString("?")
	}

	add := func(short, long string, present bool) {
		if !present {
			return
		}
		if verbose {
			sb.WriteString(", ")
			sb.WriteString(long)
		} else {
			sb.WriteString(short)
		}
	}
	add("M", "MulDiv", muldiv)
	add("A", "Atomic", atomic)
	add("F", "SinglePrecisionFloat", singlePrFloat)
	add("D", "DoublePrecisionFloat", doublePrFloat)
	add("Q", "QuadPrecisionFloat", quadPrFloat)
	add("C", "Compressed", compressed)
	add("B", "Bitmanip", bitmanip)
	add("P", "PackedSIMD", packedSIMD)
	add("V", "Vector", vector)

	if verbose {
		sb.WriteString(", CSR")
	} else {
		sb.WriteString("_Zicsr")
	}
	if userMode && verbose {
		sb.WriteString(", UserMode")
	}
	if nonstdExt && verbose {
		sb.WriteString(", NonStdExtensionVortex")
	}
	return sb.String()
}
