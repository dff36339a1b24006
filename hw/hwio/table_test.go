package hwio_test

import (
	"testing"

	"gblink/hw/hwio"
)

type testTable struct {
	t   testing.TB
	Bus *hwio.Table

	// $FF01
	Reg1 hwio.Reg8
	// $FF02
	Reg2 hwio.Reg8
}

func newTestTable(tb testing.TB) *testTable {
	tbl := &testTable{t: tb}
	tbl.Reg1 = hwio.Reg8{Name: "reg1", Value: 0x99}
	tbl.Reg2 = hwio.Reg8{Name: "reg2", RoMask: 0x7E, ReadCb: tbl.ReadReg2}

	tbl.Bus = hwio.NewTable("io", 0xFF00, 0x80)
	tbl.Bus.MapReg8(0xFF01, &tbl.Reg1)
	tbl.Bus.MapReg8(0xFF02, &tbl.Reg2)
	return tbl
}

func (tbl *testTable) ReadReg2(val uint8) uint8 {
	return val | 0x7E
}

func (tbl *testTable) wantRead8(addr uint16, want uint8) {
	tbl.t.Helper()
	if got := tbl.Bus.Read8(addr, false); got != want {
		tbl.t.Errorf("Read8(%04X) = %02X, want %02X", addr, got, want)
	}
}

func TestTableMapReg(t *testing.T) {
	tbl := newTestTable(t)

	tbl.wantRead8(0xFF01, 0x99)
	tbl.Bus.Write8(0xFF01, 0x42)
	tbl.wantRead8(0xFF01, 0x42)

	tbl.Bus.Write8(0xFF02, 0xFF)
	if tbl.Reg2.Value != 0x81 {
		t.Errorf("reg2 = %02X, want 81", tbl.Reg2.Value)
	}
	tbl.wantRead8(0xFF02, 0xFF)
}

func TestTableUnmapped(t *testing.T) {
	tbl := newTestTable(t)

	tbl.wantRead8(0xFF03, hwio.OpenBus)
	tbl.Bus.Write8(0xFF03, 0x12) // must not panic

	// Outside of the table window.
	tbl.wantRead8(0x0000, hwio.OpenBus)
	tbl.wantRead8(0xFF80, hwio.OpenBus)

	tbl.Bus.Unmap(0xFF01)
	tbl.wantRead8(0xFF01, hwio.OpenBus)
	if got := tbl.Bus.Peek8(0xFF02); got != 0x00 {
		t.Errorf("Peek8(FF02) = %02X, want 00", got)
	}
}

func TestTableDoubleMapPanics(t *testing.T) {
	tbl := newTestTable(t)
	defer func() {
		if recover() == nil {
			t.Errorf("mapping twice the same address should panic")
		}
	}()
	tbl.Bus.MapReg8(0xFF01, &tbl.Reg2)
}
