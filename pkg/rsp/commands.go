package rsp

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

func parseHexUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 16, 32)
	if err != nil {
		return 0, fmt.Errorf("rsp: malformed hex value %q: %w", s, err)
	}
	return uint32(v), nil
}

func parseHexInt(s string) (int, error) {
	v, err := parseHexUint32(s)
	return int(v), err
}

func registerCommands(d *dispatcher) {
	d.register("?", cmdHalted)
	d.register("qSupported", cmdSupported)
	d.register("qAttached", cmdAttached)
	d.register("vMustReplyEmpty", cmdEmpty)
	d.register("D", cmdDetach)
	d.register("g", cmdReadRegs)
	d.register("G", cmdWriteRegs)
	d.register("p", cmdReadReg)
	d.register("P", cmdWriteReg)
	d.register("m", cmdReadMem)
	d.register("M", cmdWriteMem)
	d.register("c", cmdContinue)
	d.register("s", cmdStep)
	d.register("Z", cmdInsertBreakpoint)
	d.register("z", cmdRemoveBreakpoint)
	d.register("qfThreadInfo", cmdFirstThreadInfo)
	d.register("qsThreadInfo", cmdSubsequentThreadInfo)
	d.register("qThreadExtraInfo,", cmdThreadExtraInfo)
	d.register("Hc", cmdSelectThread)
	d.register("Hg", cmdSelectThread)
	d.register("T", cmdThreadAlive)
	d.register("qXfer:features:read:target.xml:", cmdXferTargetXML)
}

// cmd: ? -- reason for halt. The stub always reports SIGTRAP, mirroring
// original_source/src/gdbstub.cpp's cmd_halted: the engine's own halt
// cause (breakpoint vs. requested vs. step) is available via
// GetWarpStatus for richer tooling but GDB's stop-reply only needs a
// signal number to resume its state machine.
func cmdHalted(s *Server, cmd string) string {
	return "S05"
}

func cmdEmpty(s *Server, cmd string) string {
	return ""
}

// cmd: qSupported[:feature;feature...]
func cmdSupported(s *Server, cmd string) string {
	args := strings.TrimPrefix(cmd, "qSupported")
	args = strings.TrimPrefix(args, ":")
	clientWantsSwbreak := false
	for _, feat := range strings.Split(args, ";") {
		if feat == "swbreak+" {
			clientWantsSwbreak = true
		}
	}
	reply := "PacketSize=4096;qXfer:features:read+;"
	if clientWantsSwbreak {
		reply += "swbreak+;"
	}
	return reply
}

func cmdAttached(s *Server, cmd string) string {
	return "1"
}

// cmd: D[:pid] -- detach: resume every warp so the target is left running.
func cmdDetach(s *Server, cmd string) string {
	if err := s.eng.ResumeAllWarps(); err != nil {
		s.log.Warnf("detach: resume all warps: %v", err)
	}
	return "OK"
}

// cmd: g -- read all registers.
func cmdReadRegs(s *Server, cmd string) string {
	reply, err := s.buildGReply()
	if err != nil {
		s.log.Warnf("g: %v", err)
		return "E01"
	}
	return reply
}

// cmd: G<hex> -- write all registers.
func cmdWriteRegs(s *Server, cmd string) string {
	blob := strings.TrimPrefix(cmd, "G")
	if err := s.applyGPacket(blob); err != nil {
		s.log.Warnf("G: %v", err)
		return "E01"
	}
	return "OK"
}

// cmd: p<hex reg idx> -- read one register.
func cmdReadReg(s *Server, cmd string) string {
	idx, err := parseHexInt(strings.TrimPrefix(cmd, "p"))
	if err != nil {
		return "E01"
	}
	v, err := s.readWireRegister(idx)
	if err != nil {
		s.log.Warnf("p: %v", err)
		return "E02"
	}
	return encodeRegWord(v)
}

// cmd: P<reg idx>=<hex value> -- write one register.
func cmdWriteReg(s *Server, cmd string) string {
	args := strings.TrimPrefix(cmd, "P")
	eq := strings.IndexByte(args, '=')
	if eq < 0 {
		return "E01"
	}
	idx, err := parseHexInt(args[:eq])
	if err != nil {
		return "E01"
	}
	v, err := decodeRegWord(args[eq+1:])
	if err != nil {
		return "E01"
	}
	if err := s.writeWireRegister(idx, v); err != nil {
		s.log.Warnf("P: %v", err)
		return "E03"
	}
	return "OK"
}

// cmd: m<addr>,<len> -- read memory.
func cmdReadMem(s *Server, cmd string) string {
	args := strings.TrimPrefix(cmd, "m")
	addr, length, err := parseAddrLen(args)
	if err != nil {
		return "E02"
	}
	data, err := s.eng.ReadMem(addr, length)
	if err != nil {
		s.log.Warnf("m: %v", err)
		return "E01"
	}
	return hex.EncodeToString(data)
}

// cmd: M<addr>,<len>:<hex data> -- write memory.
func cmdWriteMem(s *Server, cmd string) string {
	args := strings.TrimPrefix(cmd, "M")
	colon := strings.IndexByte(args, ':')
	if colon < 0 {
		return "E02"
	}
	addr, length, err := parseAddrLen(args[:colon])
	if err != nil {
		return "E02"
	}
	data, err := hex.DecodeString(args[colon+1:])
	if err != nil || len(data) != length {
		return "E02"
	}
	if err := s.eng.WriteMem(addr, data); err != nil {
		s.log.Warnf("M: %v", err)
		return "E01"
	}
	return "OK"
}

func parseAddrLen(args string) (addr uint32, length int, err error) {
	comma := strings.IndexByte(args, ',')
	if comma < 0 {
		return 0, 0, fmt.Errorf("rsp: missing comma in %q", args)
	}
	addr, err = parseHexUint32(args[:comma])
	if err != nil {
		return 0, 0, err
	}
	length, err = parseHexInt(args[comma+1:])
	return addr, length, err
}

// cmd: c[<addr>] -- continue, optionally from addr, until the next
// breakpoint or an unbounded wait if ContinueTimeout is 0.
func cmdContinue(s *Server, cmd string) string {
	args := strings.TrimPrefix(cmd, "c")
	if args != "" {
		addr, err := parseHexUint32(args)
		if err != nil {
			return "E02"
		}
		if err := s.eng.SetPC(addr); err != nil {
			return "E01"
		}
	}
	if _, err := s.eng.ContinueUntilBreakpoint(s.continueTimeout); err != nil {
		s.log.Warnf("c: %v", err)
		return "E01"
	}
	return "S05"
}

// cmd: s[<addr>] -- single-step, optionally from addr.
func cmdStep(s *Server, cmd string) string {
	args := strings.TrimPrefix(cmd, "s")
	if args != "" {
		addr, err := parseHexUint32(args)
		if err != nil {
			return "E02"
		}
		if err := s.eng.SetPC(addr); err != nil {
			return "E01"
		}
	}
	if _, err := s.eng.StepWarp(); err != nil {
		s.log.Warnf("s: %v", err)
		return "E01"
	}
	return "S05"
}

func parseBreakpointArgs(args string) (kind int, addr uint32, err error) {
	parts := strings.Split(args, ",")
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("rsp: malformed breakpoint args %q", args)
	}
	kind, err = parseHexInt(parts[0])
	if err != nil {
		return 0, 0, err
	}
	addr, err = parseHexUint32(parts[1])
	return kind, addr, err
}

// cmd: Z<type>,<addr>,<kind> -- insert breakpoint. Only software (0) and
// hardware (1) execution breakpoints are meaningful on this target; both
// map onto the engine's single software-breakpoint mechanism since Vortex
// exposes no separate hardware breakpoint comparators.
func cmdInsertBreakpoint(s *Server, cmd string) string {
	kind, addr, err := parseBreakpointArgs(strings.TrimPrefix(cmd, "Z"))
	if err != nil || (kind != 0 && kind != 1) {
		return ""
	}
	if err := s.eng.SetBreakpoint(addr); err != nil {
		s.log.Warnf("Z: %v", err)
		return "E01"
	}
	return "OK"
}

// cmd: z<type>,<addr>,<kind> -- remove breakpoint.
func cmdRemoveBreakpoint(s *Server, cmd string) string {
	kind, addr, err := parseBreakpointArgs(strings.TrimPrefix(cmd, "z"))
	if err != nil || (kind != 0 && kind != 1) {
		return ""
	}
	if err := s.eng.RemoveBreakpoint(addr); err != nil {
		s.log.Warnf("z: %v", err)
		return "E01"
	}
	return "OK"
}

const threadInfoChunkSize = 64

// cmd: qfThreadInfo -- begin thread enumeration.
func cmdFirstThreadInfo(s *Server, cmd string) string {
	s.threadInfoCursor = 0
	return threadInfoChunk(s)
}

// cmd: qsThreadInfo -- continue thread enumeration.
func cmdSubsequentThreadInfo(s *Server, cmd string) string {
	return threadInfoChunk(s)
}

func threadInfoChunk(s *Server) string {
	gtids := s.threads.gtids()
	if s.threadInfoCursor >= len(gtids) {
		return "l"
	}
	end := s.threadInfoCursor + threadInfoChunkSize
	if end > len(gtids) {
		end = len(gtids)
	}
	chunk := gtids[s.threadInfoCursor:end]
	s.threadInfoCursor = end

	ids := make([]string, len(chunk))
	for i, g := range chunk {
		ids[i] = strconv.FormatInt(int64(g), 16)
	}
	return "m" + strings.Join(ids, ",")
}

// cmd: qThreadExtraInfo,<tid> -- human-readable thread description.
func cmdThreadExtraInfo(s *Server, cmd string) string {
	args := strings.TrimPrefix(cmd, "qThreadExtraInfo,")
	gtid, err := parseHexInt(args)
	if err != nil {
		return "E02"
	}
	wt, ok := s.threads.lookup(gtid)
	if !ok {
		return "E02"
	}
	desc := fmt.Sprintf("Warp %d Thread %d", wt.Warp, wt.Thread)
	return hex.EncodeToString([]byte(desc))
}

// cmd: Hc<tid> / Hg<tid> -- select the current thread. Both letters
// collapse onto the same engine.SelectWarpThread call: the target
// exposes exactly one current-thread pointer (DSELECT.warpsel/threadsel),
// so there is no distinct "thread for step/continue" vs. "thread for
// register/memory access" the way a native multi-threaded stub needs.
func cmdSelectThread(s *Server, cmd string) string {
	args := cmd[2:] // strip "Hc" or "Hg"
	if args == "-1" {
		// -1 means "all threads": leave selection as-is.
		return "OK"
	}
	gtid, err := parseHexInt(args)
	if err != nil {
		return "E02"
	}
	if gtid <= 0 {
		// 0 means "any thread": leave selection as-is.
		return "OK"
	}
	wt, ok := s.threads.lookup(gtid)
	if !ok {
		return "E02"
	}
	if err := s.eng.SelectWarpThread(wt.Warp, wt.Thread); err != nil {
		s.log.Warnf("H: %v", err)
		return "E01"
	}
	return "OK"
}

// cmd: T<tid> -- is thread alive?
func cmdThreadAlive(s *Server, cmd string) string {
	gtid, err := parseHexInt(strings.TrimPrefix(cmd, "T"))
	if err != nil {
		return "E01"
	}
	wt, ok := s.threads.lookup(gtid)
	if !ok {
		return "E01"
	}
	status, err := s.eng.GetWarpStatus(false, false)
	if err != nil {
		return "E01"
	}
	if st, ok := status[wt.Warp]; ok && st.Active {
		return "OK"
	}
	return "E01"
}

// cmd: qXfer:features:read:target.xml:<off>,<len> -- serve the static
// target description in chunks, as the protocol's transfer commands
// require for replies that might exceed one packet.
func cmdXferTargetXML(s *Server, cmd string) string {
	args := strings.TrimPrefix(cmd, "qXfer:features:read:target.xml:")
	comma := strings.IndexByte(args, ',')
	if comma < 0 {
		return "E02"
	}
	off, err := parseHexInt(args[:comma])
	if err != nil || off < 0 {
		return "E02"
	}
	length, err := parseHexInt(args[comma+1:])
	if err != nil || length < 0 {
		return "E02"
	}

	doc := targetXML
	if off >= len(doc) {
		return "l"
	}
	end := off + length
	marker := "m"
	if end >= len(doc) {
		end = len(doc)
		marker = "l"
	}
	return marker + doc[off:end]
}

// sortedGtids is exposed for tests that want to assert the enumeration
// order without reaching into threadTable internals.
func sortedGtids(gtids []int) []int {
	out := append([]int(nil), gtids...)
	sort.Ints(out)
	return out
}
