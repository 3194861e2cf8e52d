// Package engine implements the warp-control engine: the stateful layer
// sitting on top of pkg/dm that understands warp selection, halt/resume/
// step, register and memory access via instruction injection, and software
// breakpoints. It is grounded on original_source/src/backend.cpp and
// backend.h, translated from a C++ object with bare mutex-guarded methods
// into a Go type with the same single-engine-mutex serialization model.
package engine

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vortex-riscv/vxdbg/pkg/dm"
	"github.com/vortex-riscv/vxdbg/pkg/dmreg"
	"github.com/vortex-riscv/vxdbg/pkg/logflags"
	"github.com/vortex-riscv/vxdbg/pkg/riscv"
)

// Scratch GPRs the engine borrows for CSR and memory access sequences. t0
// holds an address/CSR value in flight, t1 a data word.
const (
	gprT0 = 5
	gprT1 = 6
)

// Config bounds the engine's retry/polling behavior. PollRetries, PollDelay
// and WakeDMRetries mirror knobs in pkg/config.Config; cmd/vxdbg translates
// one into the other. ContinueTimeout has no pkg/config knob and is not read
// by the engine: ContinueUntilBreakpoint takes its timeout as an argument.
type Config struct {
	PollRetries     int
	PollDelay       time.Duration
	WakeDMRetries   int
	ContinueTimeout time.Duration
}

// DefaultConfig returns reasonable defaults for interactive use.
func DefaultConfig() Config {
	return Config{
		PollRetries:     10,
		PollDelay:       100 * time.Millisecond,
		WakeDMRetries:   5,
		ContinueTimeout: 0, // 0 means wait indefinitely
	}
}

// PlatformInfo is the decoded contents of the PLATFORM register plus the
// target's MISA CSR, fetched once during Initialize.
type PlatformInfo struct {
	PlatformID  uint32
	NumClusters uint32
	NumCores    uint32
	NumWarps    uint32
	NumThreads  uint32 // already decoded from the register's log2 encoding
	MISA        uint32
}

// NumTotalWarps is the number of independently selectable warps across all
// clusters and cores.
func (p PlatformInfo) NumTotalWarps() uint32 {
	return p.NumClusters * p.NumCores * p.NumWarps
}

// Breakpoint records a software breakpoint's patched address and the
// original instruction word it displaced.
type Breakpoint struct {
	Addr          uint32
	OriginalInstr uint32
	HitCount      int
}

// WarpStatus is the point-in-time state of one warp, as reported by
// GetWarpStatus.
type WarpStatus struct {
	Active    bool
	Halted    bool
	PC        uint32
	HaltCause dmreg.HaltCause
}

// Summary is the aggregate status reported by GetWarpSummary, read directly
// off DCTRL's sticky/aggregate bits.
type Summary struct {
	AllHalted  bool
	AnyHalted  bool
	AllRunning bool
	AnyRunning bool
	AllUnavail bool
	AnyUnavail bool
}

// Engine is the warp-control engine. A single mutex serializes every
// operation end to end (not just individual register accesses), matching
// the single-threaded cooperative model: at most one DM access sequence is
// ever in flight.
type Engine struct {
	mu  sync.Mutex
	dm  *dm.Access
	asm *riscv.Assembler
	cfg Config
	log *logrus.Entry

	platform PlatformInfo
	initDone bool

	selWid int // -1 if no current warp selected
	selTid int // -1 if no current thread selected

	breakpoints map[uint32]*Breakpoint
}

// New constructs an Engine over an already-wired DM access layer.
func New(access *dm.Access, cfg Config) *Engine {
	return &Engine{
		dm:          access,
		asm:         riscv.NewAssembler(),
		cfg:         cfg,
		log:         logflags.EngineLogger(),
		selWid:      -1,
		selTid:      -1,
		breakpoints: make(map[uint32]*Breakpoint),
	}
}

// Platform returns the platform descriptor fetched by Initialize. Calling
// it before Initialize returns the zero value.
func (e *Engine) Platform() PlatformInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.platform
}

// Initialize wakes the debug module and fetches the platform descriptor.
// It must be called once before any other engine operation.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initializeLocked()
}

func (e *Engine) initializeLocked() error {
	if err := e.wakeDMLocked(); err != nil {
		return err
	}
	info, err := e.fetchPlatformInfoLocked()
	if err != nil {
		return err
	}
	e.platform = info
	e.initDone = true
	e.log.Infof("initialized: %d cluster(s) x %d core(s) x %d warp(s) x %d thread(s), isa=%s",
		info.NumClusters, info.NumCores, info.NumWarps, info.NumThreads, riscv.ISAString(info.MISA, false))
	return nil
}

// wakeDMLocked implements the DM wake sequence: if ndmreset is currently
// set, poll it clear; then, if dmactive isn't set, loop writing dmactive=1
// and polling it set, up to cfg.WakeDMRetries times.
func (e *Engine) wakeDMLocked() error {
	ndmreset, err := e.dm.RdField(dmreg.DCTRL, "ndmreset")
	if err != nil {
		return classify("wake dm: read ndmreset", err)
	}
	if ndmreset != 0 {
		if _, err := e.dm.PollField(dmreg.DCTRL, "ndmreset", 0, e.cfg.PollRetries, e.cfg.PollDelay); err != nil {
			return classify("wake dm: ndmreset never cleared", err)
		}
	}

	dmactive, err := e.dm.RdField(dmreg.DCTRL, "dmactive")
	if err != nil {
		return classify("wake dm: read dmactive", err)
	}
	if dmactive != 0 {
		return nil
	}

	retries := e.cfg.WakeDMRetries
	if retries <= 0 {
		retries = 1
	}
	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if err := e.dm.WrField(dmreg.DCTRL, "dmactive", 1); err != nil {
			return classify("wake dm: write dmactive", err)
		}
		val, err := e.dm.PollField(dmreg.DCTRL, "dmactive", 1, e.cfg.PollRetries, e.cfg.PollDelay)
		if err == nil && val == 1 {
			return nil
		}
		lastErr = err
	}
	return classify("wake dm: dmactive never asserted", lastErr)
}

// fetchPlatformInfoLocked reads the PLATFORM register and, with warp 0
// thread 0 momentarily halted if it wasn't already, injects a read of MISA.
func (e *Engine) fetchPlatformInfoLocked() (PlatformInfo, error) {
	word, err := e.dm.Rd(dmreg.PLATFORM)
	if err != nil {
		return PlatformInfo{}, classify("read platform register", err)
	}
	platformID, _ := dmreg.Extract(dmreg.PLATFORM, "platformid", word)
	numClusters, _ := dmreg.Extract(dmreg.PLATFORM, "numclusters", word)
	numCores, _ := dmreg.Extract(dmreg.PLATFORM, "numcores", word)
	numWarps, _ := dmreg.Extract(dmreg.PLATFORM, "numwarps", word)
	numThreadsLog2, _ := dmreg.Extract(dmreg.PLATFORM, "numthreads", word)

	info := PlatformInfo{
		PlatformID:  platformID,
		NumClusters: numClusters + 1,
		NumCores:    numCores + 1,
		NumWarps:    numWarps + 1,
		NumThreads:  1 << numThreadsLog2,
	}

	// selectWarpsLocked/selectWarpThreadLocked size their window masks and
	// validate ids against e.platform, so it must be populated before the
	// MISA probe below exercises select/halt/resume internally. Initialize
	// will overwrite it with the same value (plus MISA) once this returns.
	e.platform = info

	misa, err := e.readMISALocked(info)
	if err != nil {
		return PlatformInfo{}, err
	}
	info.MISA = misa
	return info, nil
}

// readMISALocked selects warp 0 thread 0, halting it only if it was
// running (and resuming it afterward), then injects a CSR read of MISA via
// DSCRATCH.
func (e *Engine) readMISALocked(info PlatformInfo) (uint32, error) {
	if err := e.selectWarpThreadLocked(0, 0, info); err != nil {
		return 0, err
	}
	wasHalted, err := e.getWarpStateLocked(0)
	if err != nil {
		return 0, err
	}
	if !wasHalted {
		if err := e.haltWarpsLocked([]int{0}); err != nil {
			return 0, err
		}
		defer func() {
			_ = e.resumeWarpsLocked([]int{0})
		}()
	}
	return e.csrReadLocked(riscv.CSRMisa)
}

// ResetPlatform resets the target, optionally also asserting resethaltreq
// so every warp comes up halted. Logging severity mirrors the C++
// original's reset(): info when every warp ends up halted as requested,
// warn when only some did, error when resethaltreq was requested but no
// warp ended up halted at all.
func (e *Engine) ResetPlatform(haltWarps bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if haltWarps {
		if err := e.selectAllWarpsLocked(true); err != nil {
			return err
		}
	}
	if err := e.dm.WrField(dmreg.DCTRL, "resethaltreq", boolToBit(haltWarps)); err != nil {
		return classify("reset: set resethaltreq", err)
	}
	if err := e.dm.WrField(dmreg.DCTRL, "ndmreset", 1); err != nil {
		return classify("reset: assert ndmreset", err)
	}
	if _, err := e.dm.PollField(dmreg.DCTRL, "ndmreset", 0, e.cfg.PollRetries, e.cfg.PollDelay); err != nil {
		return classify("reset: ndmreset never cleared", err)
	}

	e.selWid, e.selTid = -1, -1
	e.breakpoints = make(map[uint32]*Breakpoint)
	e.initDone = false

	if haltWarps {
		allHalted, err := e.dm.RdField(dmreg.DCTRL, "allhalted")
		if err != nil {
			return classify("reset: read allhalted", err)
		}
		anyHalted, err := e.dm.RdField(dmreg.DCTRL, "anyhalted")
		if err != nil {
			return classify("reset: read anyhalted", err)
		}
		switch {
		case allHalted == 1:
			e.log.Info("platform reset, all warps halted")
		case anyHalted == 1:
			e.log.Warn("platform reset, only some warps halted on reset-halt request")
		default:
			e.log.Error("platform reset, no warps halted despite reset-halt request")
		}
	} else {
		e.log.Info("platform reset")
	}

	if err := e.initializeLocked(); err != nil {
		return err
	}
	// initializeLocked's MISA probe selects warp 0 thread 0; a reset leaves
	// no current-thread pointer behind.
	e.selWid, e.selTid = -1, -1
	return nil
}

func boolToBit(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func (e *Engine) requireInitialized() error {
	if !e.initDone {
		return newErr(CodeGeneric, "engine not initialized")
	}
	return nil
}
