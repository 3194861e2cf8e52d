// Package fake provides an in-memory transport.Transport backed by a
// register file, used by pkg/dm and pkg/engine tests in place of a live
// target, mirroring the teacher's convention of exercising protocol logic
// against a fake/recorded backend.
package fake

import (
	"fmt"

	"github.com/vortex-riscv/vxdbg/pkg/transport"
)

// Transport is a fake transport.Transport backed by a map of register
// addresses to values. Tests can install a ReadHook to simulate a register
// that changes value after N reads, for exercising dm.PollField.
type Transport struct {
	Regs      map[uint32]uint32
	Connected bool

	// ReadHook, if set, is called before every ReadReg and may mutate Regs
	// to simulate the target's state evolving (e.g. a poll converging).
	ReadHook func(addr uint32, regs map[uint32]uint32)

	// WriteHook, if set, is called after every WriteReg has stored value
	// into Regs, and may mutate Regs further to simulate a side effect of
	// the write (e.g. an injected instruction executing and clearing its
	// own request bit).
	WriteHook func(addr uint32, value uint32, regs map[uint32]uint32)

	ReadLog  []uint32
	WriteLog []uint32
}

var _ transport.Transport = (*Transport)(nil)

// New returns a connected fake transport with an empty register file.
func New() *Transport {
	return &Transport{Regs: map[uint32]uint32{}, Connected: true}
}

func (f *Transport) Connect(map[string]string) error {
	f.Connected = true
	return nil
}

func (f *Transport) Disconnect() error {
	f.Connected = false
	return nil
}

func (f *Transport) IsConnected() bool { return f.Connected }

func (f *Transport) ReadReg(addr uint32) (uint32, error) {
	if !f.Connected {
		return 0, transport.ErrDisconnected
	}
	if f.ReadHook != nil {
		f.ReadHook(addr, f.Regs)
	}
	f.ReadLog = append(f.ReadLog, addr)
	return f.Regs[addr], nil
}

func (f *Transport) WriteReg(addr uint32, value uint32) error {
	if !f.Connected {
		return transport.ErrDisconnected
	}
	f.WriteLog = append(f.WriteLog, addr)
	f.Regs[addr] = value
	if f.WriteHook != nil {
		f.WriteHook(addr, value, f.Regs)
	}
	return nil
}

func (f *Transport) ReadRegs(addrs []uint32) ([]uint32, error) {
	out := make([]uint32, len(addrs))
	for i, a := range addrs {
		v, err := f.ReadReg(a)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *Transport) WriteRegs(addrs []uint32, values []uint32) error {
	if len(addrs) != len(values) {
		return fmt.Errorf("fake: length mismatch")
	}
	for i, a := range addrs {
		if err := f.WriteReg(a, values[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *Transport) SendCmd(text string) (string, error) {
	return "", fmt.Errorf("fake: SendCmd not supported")
}
