package hwio

import (
	"fmt"

	"gblink/emu/log"
)

// log unmapped accesses (useful for debugging but verbose since games poll
// unused IO ports).
const logUnmapped = false

// OpenBus is the value read from unmapped addresses.
const OpenBus = 0xFF

type BankIO8 interface {
	// Read8 reads a byte from the given address. If peek is true, the read
	// shouldn't have any side effects (debugging/tracing).
	Read8(addr uint16, peek bool) uint8
	Write8(addr uint16, val uint8)
}

// Table dispatches accesses within a fixed address window, such as a memory
// mapped IO page, to the device mapped at each address.
type Table struct {
	Name string

	base uint16
	devs []BankIO8
}

// NewTable creates a table covering size addresses starting at base.
func NewTable(name string, base uint16, size int) *Table {
	if size <= 0 || int(base)+size > 0x10000 {
		panic(fmt.Sprintf("hwio: invalid table window %04x+%x", base, size))
	}
	return &Table{
		Name: name,
		base: base,
		devs: make([]BankIO8, size),
	}
}

func (t *Table) slot(addr uint16) (int, bool) {
	if addr < t.base {
		return 0, false
	}
	off := int(addr - t.base)
	return off, off < len(t.devs)
}

// MapReg8 maps reg at addr. Mapping an already mapped address panics.
func (t *Table) MapReg8(addr uint16, reg *Reg8) {
	t.Map(addr, reg)
}

// Map maps io at addr.
func (t *Table) Map(addr uint16, io BankIO8) {
	off, ok := t.slot(addr)
	if !ok {
		panic(fmt.Sprintf("hwio: %s: address %04x out of table", t.Name, addr))
	}
	if t.devs[off] != nil {
		panic(fmt.Sprintf("hwio: %s: address %04x already mapped", t.Name, addr))
	}

	log.ModHwIo.DebugZ("mapping io").
		Hex16("addr", addr).
		String("bus", t.Name).
		End()
	t.devs[off] = io
}

func (t *Table) Unmap(addr uint16) {
	if off, ok := t.slot(addr); ok {
		t.devs[off] = nil
	}
}

func (t *Table) search(addr uint16) BankIO8 {
	off, ok := t.slot(addr)
	if !ok {
		return nil
	}
	return t.devs[off]
}

// Read8 forwards the read to the device mapped at addr. Unmapped addresses
// read as OpenBus.
func (t *Table) Read8(addr uint16, peek bool) uint8 {
	io := t.search(addr)
	if io == nil {
		if logUnmapped && !peek {
			log.ModHwIo.ErrorZ("unmapped Read8").
				String("name", t.Name).
				Hex16("addr", addr).
				End()
		}
		return OpenBus
	}
	return io.Read8(addr, peek)
}

// Peek8 is a convenience function.
func (t *Table) Peek8(addr uint16) uint8 {
	return t.Read8(addr, true)
}

func (t *Table) Write8(addr uint16, val uint8) {
	io := t.search(addr)
	if io == nil {
		if logUnmapped {
			log.ModHwIo.ErrorZ("unmapped Write8").
				String("name", t.Name).
				Hex16("addr", addr).
				Hex8("val", val).
				End()
		}
		return
	}
	io.Write8(addr, val)
}
