// Package dmreg is the static catalog of Debug Module (DM) registers and
// their bit fields. Every higher layer speaks in register and field names;
// this package is the single source of truth translating those names to
// wire addresses, masks, and shifts.
package dmreg

import "fmt"

// ID identifies one DM register.
type ID uint8

const (
	PLATFORM ID = iota
	DCONFIG
	DSELECT
	WMASK
	WACTIVE
	WSTATUS
	DCTRL
	DPC
	DINJECT
	DSCRATCH

	numRegs
)

// Field describes one bit field of a register, msb/lsb inclusive within a
// 32-bit word.
type Field struct {
	Name string
	MSB  uint8
	LSB  uint8
}

// Width returns the number of bits the field occupies.
func (f Field) Width() uint32 {
	return uint32(f.MSB) - uint32(f.LSB) + 1
}

// Mask returns the field's bitmask within the 32-bit word, already
// positioned at LSB.
func (f Field) Mask() uint32 {
	w := f.Width()
	if w == 32 {
		return 0xFFFFFFFF
	}
	return ((uint32(1) << w) - 1) << f.LSB
}

// Descriptor is the immutable, compile-time description of one DM register.
type Descriptor struct {
	ID     ID
	Name   string
	Addr   uint32
	Fields []Field
}

// UnknownFieldError is returned by FindField when the named field does not
// exist on the register.
type UnknownFieldError struct {
	Reg   string
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q on register %q", e.Field, e.Reg)
}

var platformFields = []Field{
	{"platformid", 31, 28},
	{"numclusters", 27, 21},
	{"numcores", 20, 12},
	{"numwarps", 11, 3},
	{"numthreads", 2, 0},
}

var dconfigFields = []Field{
	{"ndmresetcyc", 31, 29},
	{"resethaltreqcyc", 28, 26},
	{"ebreakh", 0, 0},
}

var dselectFields = []Field{
	{"winsel", 31, 22},
	{"warpsel", 21, 7},
	{"threadsel", 6, 0},
}

var wmaskFields = []Field{
	{"mask", 31, 0},
}

var wactiveFields = []Field{
	{"astatus", 31, 0},
}

var wstatusFields = []Field{
	{"status", 31, 0},
}

var dctrlFields = []Field{
	{"dmactive", 31, 31},
	{"ndmreset", 30, 30},
	{"allhalted", 29, 29},
	{"anyhalted", 28, 28},
	{"allrunning", 27, 27},
	{"anyrunning", 26, 26},
	{"allunavail", 25, 25},
	{"anyunavail", 24, 24},
	{"hacause", 11, 9},
	{"injectstate", 8, 7},
	{"injectreq", 6, 6},
	{"stepstate", 5, 4},
	{"stepreq", 3, 3},
	{"resethaltreq", 2, 2},
	{"resumereq", 1, 1},
	{"haltreq", 0, 0},
}

var dpcFields = []Field{
	{"pc", 31, 0},
}

var dinjectFields = []Field{
	{"instr", 31, 0},
}

var dscratchFields = []Field{
	{"data", 31, 0},
}

// registers is the compile-time catalog, indexed by ID.
var registers = [numRegs]Descriptor{
	PLATFORM: {PLATFORM, "platform", 0x00, platformFields},
	DCONFIG:  {DCONFIG, "dconfig", 0x01, dconfigFields},
	DSELECT:  {DSELECT, "dselect", 0x02, dselectFields},
	WMASK:    {WMASK, "wmask", 0x03, wmaskFields},
	WACTIVE:  {WACTIVE, "wactive", 0x04, wactiveFields},
	WSTATUS:  {WSTATUS, "wstatus", 0x05, wstatusFields},
	DCTRL:    {DCTRL, "dctrl", 0x06, dctrlFields},
	DPC:      {DPC, "dpc", 0x07, dpcFields},
	DINJECT:  {DINJECT, "dinject", 0x08, dinjectFields},
	DSCRATCH: {DSCRATCH, "dscratch", 0x09, dscratchFields},
}

// HaltCause enumerates the DCTRL.hacause values.
type HaltCause uint32

const (
	HaltCauseNone HaltCause = iota
	HaltCauseEbreak
	HaltCauseRequested
	HaltCauseStepRequested
	HaltCauseResetHaltRequested
)

func (c HaltCause) String() string {
	switch c {
	case HaltCauseNone:
		return "None"
	case HaltCauseEbreak:
		return "Ebreak"
	case HaltCauseRequested:
		return "Halt Requested"
	case HaltCauseStepRequested:
		return "Step Requested"
	case HaltCauseResetHaltRequested:
		return "Reset Halt Requested"
	default:
		return "Unknown"
	}
}

// Get returns the descriptor for a register ID.
func Get(id ID) Descriptor {
	return registers[id]
}

// FindField returns the field descriptor for name on reg.
func FindField(id ID, name string) (Field, error) {
	rinfo := registers[id]
	for _, f := range rinfo.Fields {
		if f.Name == name {
			return f, nil
		}
	}
	return Field{}, &UnknownFieldError{Reg: rinfo.Name, Field: name}
}

// Extract pulls field's value out of a full register word.
func Extract(id ID, name string, word uint32) (uint32, error) {
	f, err := FindField(id, name)
	if err != nil {
		return 0, err
	}
	return (word & f.Mask()) >> f.LSB, nil
}

// Set returns word with field replaced by value, leaving every other bit
// untouched.
func Set(id ID, name string, word uint32, value uint32) (uint32, error) {
	f, err := FindField(id, name)
	if err != nil {
		return 0, err
	}
	mask := f.Mask()
	return (word &^ mask) | ((value << f.LSB) & mask), nil
}
