package hwio

import "testing"

func TestReg8(t *testing.T) {
	r := Reg8{Value: 0x11, RoMask: 0xF0}

	if got := r.Read8(0, false); got != 0x11 {
		t.Errorf("invalid read: %x", got)
	}
	if got := r.Read8(9999, false); got != 0x11 {
		t.Errorf("invalid read with offset: %x", got)
	}

	r.Write8(0, 0x77)
	if r.Value != 0x17 {
		t.Errorf("writemask not respected: %x", r.Value)
	}
	r.Write8(9999, 0x88)
	if r.Value != 0x18 {
		t.Errorf("writemask with offset not respected: %x", r.Value)
	}
}

func TestReg8Callbacks(t *testing.T) {
	var gotOld, gotVal uint8
	reads := 0
	r := Reg8{
		Name:    "SC",
		Value:   0x01,
		ReadCb:  func(val uint8) uint8 { reads++; return val | 0x7E },
		WriteCb: func(old, val uint8) { gotOld, gotVal = old, val },
	}

	r.Write8(0, 0x81)
	if gotOld != 0x01 || gotVal != 0x81 {
		t.Errorf("WriteCb(old=%02x, val=%02x), want (01, 81)", gotOld, gotVal)
	}
	if got := r.Read8(0, false); got != 0xFF {
		t.Errorf("Read8 = %02x, want ff", got)
	}
	if got := r.Read8(0, true); got != 0x81 {
		t.Errorf("peek = %02x, want 81", got)
	}
	if reads != 1 {
		t.Errorf("ReadCb called %d times, want 1", reads)
	}
}

func TestReg8Flags(t *testing.T) {
	ro := Reg8{Name: "ro", Value: 0x12, Flags: ReadOnlyFlag}
	ro.Write8(0, 0x34)
	if ro.Value != 0x12 {
		t.Errorf("readonly reg written: %02x", ro.Value)
	}

	wo := Reg8{Name: "wo", Value: 0x12, Flags: WriteOnlyFlag}
	if got := wo.Read8(0, false); got != 0xFF {
		t.Errorf("writeonly reg read = %02x, want ff", got)
	}
}

func TestBitops(t *testing.T) {
	v := uint8(0x80)
	if !GetBit8(v, 7) || GetBit8(v, 3) {
		t.Fatalf("GetBit8(%02x) wrong", v)
	}
	SetBit8(&v, 3)
	if v != 0x88 {
		t.Errorf("SetBit8 = %02x, want 88", v)
	}
	ClearBit8(&v, 7)
	if v != 0x08 {
		t.Errorf("ClearBit8 = %02x, want 08", v)
	}
	v = 0xFF
	ClearBits8(&v, 0x81)
	if v != 0x7E {
		t.Errorf("ClearBits8 = %02x, want 7e", v)
	}
}
