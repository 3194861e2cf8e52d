package dmreg

import "testing"

func allRegIDs() []ID {
	return []ID{PLATFORM, DCONFIG, DSELECT, WMASK, WACTIVE, WSTATUS, DCTRL, DPC, DINJECT, DSCRATCH}
}

func TestFieldsDoNotOverlap(t *testing.T) {
	for _, id := range allRegIDs() {
		rinfo := Get(id)
		var used uint32
		for _, f := range rinfo.Fields {
			if f.MSB > 31 || f.LSB > f.MSB {
				t.Fatalf("%s.%s: invalid msb/lsb %d/%d", rinfo.Name, f.Name, f.MSB, f.LSB)
			}
			mask := f.Mask()
			if used&mask != 0 {
				t.Fatalf("%s.%s: field overlaps another field (mask %#x, used %#x)", rinfo.Name, f.Name, mask, used)
			}
			used |= mask
		}
	}
}

func TestWidth32IsAllOnes(t *testing.T) {
	f := Field{Name: "x", MSB: 31, LSB: 0}
	if f.Mask() != 0xFFFFFFFF {
		t.Fatalf("expected all-ones mask for 32-bit field, got %#x", f.Mask())
	}
}

func TestExtractSetRoundTrip(t *testing.T) {
	for _, id := range allRegIDs() {
		rinfo := Get(id)
		for _, f := range rinfo.Fields {
			widthMask := uint32(0)
			if f.Width() == 32 {
				widthMask = 0xFFFFFFFF
			} else {
				widthMask = (uint32(1) << f.Width()) - 1
			}
			for _, v := range []uint32{0, 1, widthMask, widthMask ^ 0x2A} {
				v &= widthMask
				word, err := Set(id, f.Name, 0, v)
				if err != nil {
					t.Fatalf("Set(%s.%s): %v", rinfo.Name, f.Name, err)
				}
				got, err := Extract(id, f.Name, word)
				if err != nil {
					t.Fatalf("Extract(%s.%s): %v", rinfo.Name, f.Name, err)
				}
				if got != v {
					t.Fatalf("%s.%s: set(%#x) then extract = %#x, want %#x", rinfo.Name, f.Name, v, got, v)
				}
			}
		}
	}
}

func TestSetLeavesOtherBitsUnchanged(t *testing.T) {
	const original uint32 = 0xFFFFFFFF
	word, err := Set(DCTRL, "haltreq", original, 0)
	if err != nil {
		t.Fatal(err)
	}
	// Only bit 0 should have changed.
	if word != original&^uint32(1) {
		t.Fatalf("got %#x, want %#x", word, original&^uint32(1))
	}
}

func TestSetIdempotentOnComplement(t *testing.T) {
	word, err := Set(DCTRL, "haltreq", 0xDEADBEEF, 1)
	if err != nil {
		t.Fatal(err)
	}
	word2, err := Set(DCTRL, "haltreq", word, 1)
	if err != nil {
		t.Fatal(err)
	}
	if word != word2 {
		t.Fatalf("set is not idempotent: %#x != %#x", word, word2)
	}
}

func TestFindFieldUnknown(t *testing.T) {
	_, err := FindField(DCTRL, "nosuchfield")
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
	if _, ok := err.(*UnknownFieldError); !ok {
		t.Fatalf("expected *UnknownFieldError, got %T", err)
	}
}

func TestHaltCauseString(t *testing.T) {
	cases := map[HaltCause]string{
		HaltCauseNone:               "None",
		HaltCauseEbreak:             "Ebreak",
		HaltCauseRequested:          "Halt Requested",
		HaltCauseStepRequested:      "Step Requested",
		HaltCauseResetHaltRequested: "Reset Halt Requested",
	}
	for cause, want := range cases {
		if got := cause.String(); got != want {
			t.Fatalf("HaltCause(%d).String() = %q, want %q", cause, got, want)
		}
	}
}
