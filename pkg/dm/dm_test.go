package dm

import (
	"testing"
	"time"

	"github.com/vortex-riscv/vxdbg/pkg/dmreg"
	"github.com/vortex-riscv/vxdbg/pkg/transport/fake"
)

func TestRdWrRoundTrip(t *testing.T) {
	ft := fake.New()
	a := New(ft)
	if err := a.Wr(dmreg.DPC, 0x80000000); err != nil {
		t.Fatal(err)
	}
	got, err := a.Rd(dmreg.DPC)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x80000000 {
		t.Fatalf("got %#x, want %#x", got, 0x80000000)
	}
}

func TestWrFieldPreservesOtherBits(t *testing.T) {
	ft := fake.New()
	a := New(ft)
	rinfo := dmreg.Get(dmreg.DCTRL)
	ft.Regs[rinfo.Addr] = 0xFFFFFFFF

	if err := a.WrField(dmreg.DCTRL, "haltreq", 0); err != nil {
		t.Fatal(err)
	}
	word, _ := a.Rd(dmreg.DCTRL)
	if word != 0xFFFFFFFE {
		t.Fatalf("got %#x, want %#x (only haltreq bit cleared)", word, 0xFFFFFFFE)
	}
}

func TestPollFieldSucceedsWhenValueConverges(t *testing.T) {
	ft := fake.New()
	a := New(ft)
	rinfo := dmreg.Get(dmreg.DCTRL)

	reads := 0
	ft.ReadHook = func(addr uint32, regs map[uint32]uint32) {
		if addr != rinfo.Addr {
			return
		}
		reads++
		if reads >= 3 {
			word, _ := dmreg.Set(dmreg.DCTRL, "allhalted", regs[addr], 1)
			regs[addr] = word
		}
	}

	val, err := a.PollField(dmreg.DCTRL, "allhalted", 1, 10, time.Microsecond)
	if err != nil {
		t.Fatalf("PollField: %v", err)
	}
	if val != 1 {
		t.Fatalf("got %d, want 1", val)
	}
}

func TestPollFieldTimesOut(t *testing.T) {
	ft := fake.New()
	a := New(ft)
	val, err := a.PollField(dmreg.DCTRL, "allhalted", 1, 3, time.Microsecond)
	if err != ErrTimeout {
		t.Fatalf("got err=%v, want ErrTimeout", err)
	}
	if val != 0 {
		t.Fatalf("got %d, want last observed value 0", val)
	}
}

func TestNoTransportShortCircuits(t *testing.T) {
	a := New(nil)
	if _, err := a.Rd(dmreg.DCTRL); err != ErrNoTransport {
		t.Fatalf("got %v, want ErrNoTransport", err)
	}
}
