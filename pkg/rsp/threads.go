package rsp

import "github.com/vortex-riscv/vxdbg/pkg/engine"

// warpThread is a (warp, local thread) pair.
type warpThread struct {
	Warp, Thread int
}

// threadTable is the bijection between GDB thread ids and (warp, thread)
// pairs, built once from the platform descriptor. gtid 0 is reserved (GDB
// treats it as "any thread"); real threads start at 1, per spec.md's
// gtid = 1 + w*num_threads + l -- a deliberate departure from
// original_source/src/gdbstub.cpp's 0-indexed thread_map_, which this
// protocol's convention of reserving 0 does not tolerate.
type threadTable struct {
	numThreads int
	total      int
	ordered    []int // gtids in ascending order, for thread-info enumeration
}

func newThreadTable(info engine.PlatformInfo) *threadTable {
	total := int(info.NumTotalWarps())
	numThreads := int(info.NumThreads)
	if numThreads == 0 {
		numThreads = 1
	}
	t := &threadTable{numThreads: numThreads, total: total * numThreads}
	t.ordered = make([]int, 0, t.total)
	for w := 0; w < total; w++ {
		for l := 0; l < numThreads; l++ {
			t.ordered = append(t.ordered, gtidOf(w, numThreads, l))
		}
	}
	return t
}

func gtidOf(w, numThreads, l int) int {
	return 1 + w*numThreads + l
}

// lookup resolves a gtid to its (warp, thread) pair.
func (t *threadTable) lookup(gtid int) (warpThread, bool) {
	if gtid <= 0 || gtid > t.total {
		return warpThread{}, false
	}
	zero := gtid - 1
	return warpThread{Warp: zero / t.numThreads, Thread: zero % t.numThreads}, true
}

// gtids returns every valid gtid in ascending order.
func (t *threadTable) gtids() []int {
	return t.ordered
}
