package rsp

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/vortex-riscv/vxdbg/pkg/riscv"
)

// numGPRs + PC + the exposed Vortex CSRs, in the wire order spec.md §4.5
// mandates: 0..31 = x0..x31, 32 = PC, 33..41 = riscv.ExposedVXCSRs.
const (
	regPC        = 32
	firstVXCSR   = 33
	lastVXCSR    = firstVXCSR + 8 // 41, len(riscv.ExposedVXCSRs) == 9
	totalRegisters = lastVXCSR + 1
)

// readWireRegister reads engine register idx (the wire numbering above)
// and returns its 32-bit value.
func (s *Server) readWireRegister(idx int) (uint32, error) {
	switch {
	case idx >= 0 && idx <= 31:
		return s.eng.ReadGPR(uint32(idx))
	case idx == regPC:
		return s.eng.GetPC()
	case idx >= firstVXCSR && idx <= lastVXCSR:
		return s.eng.ReadCSR(riscv.ExposedVXCSRs[idx-firstVXCSR])
	default:
		return 0, fmt.Errorf("rsp: register index %d out of range", idx)
	}
}

// writeWireRegister writes engine register idx. The exposed Vortex CSRs are
// read-only from the GDB side (they describe platform topology, not
// mutable thread state), matching spec.md's "Vortex CSRs are read-only".
func (s *Server) writeWireRegister(idx int, value uint32) error {
	switch {
	case idx >= 0 && idx <= 31:
		return s.eng.WriteGPR(uint32(idx), value)
	case idx == regPC:
		return s.eng.SetPC(value)
	case idx >= firstVXCSR && idx <= lastVXCSR:
		return fmt.Errorf("rsp: register %d (vortex csr) is read-only", idx)
	default:
		return fmt.Errorf("rsp: register index %d out of range", idx)
	}
}

// encodeRegWord renders a register value as the 8 hex digits GDB expects
// on the wire. RSP transmits register bytes in target byte order; since
// the target is little-endian this reads as "byte-reversed" relative to
// the value's natural big-endian hex notation (spec.md §4.5 Scenario E:
// PC=0x80000000 goes out as "00000080").
func encodeRegWord(v uint32) string {
	var le [4]byte
	binary.LittleEndian.PutUint32(le[:], v)
	return hex.EncodeToString(le[:])
}

// decodeRegWord is the inverse of encodeRegWord.
func decodeRegWord(hexWord string) (uint32, error) {
	raw, err := hex.DecodeString(hexWord)
	if err != nil || len(raw) != 4 {
		return 0, fmt.Errorf("rsp: malformed register word %q", hexWord)
	}
	return binary.LittleEndian.Uint32(raw), nil
}

// buildGReply assembles the full "g" response: every register in wire
// order, concatenated.
func (s *Server) buildGReply() (string, error) {
	out := make([]byte, 0, totalRegisters*8)
	for idx := 0; idx < totalRegisters; idx++ {
		v, err := s.readWireRegister(idx)
		if err != nil {
			return "", err
		}
		out = append(out, encodeRegWord(v)...)
	}
	return string(out), nil
}

// applyGPacket writes every register in wire order from a "G<hex>" payload.
// A conformant client sends a word for every register target.xml advertises,
// including the trailing Vortex CSR range, but those are read-only: only
// GPRs 0-31 and PC (wire indices 0..regPC) are ever parsed and written, per
// spec.md's G command and _examples/original_source/src/gdbstub.cpp's
// cmd_write_regs. The CSR words are present in the blob but ignored.
func (s *Server) applyGPacket(hexBlob string) error {
	if len(hexBlob) < totalRegisters*8 {
		return fmt.Errorf("rsp: G packet too short: %d chars", len(hexBlob))
	}
	for idx := 0; idx <= regPC; idx++ {
		word := hexBlob[idx*8 : idx*8+8]
		v, err := decodeRegWord(word)
		if err != nil {
			return err
		}
		if err := s.writeWireRegister(idx, v); err != nil {
			return err
		}
	}
	return nil
}
