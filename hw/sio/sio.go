// Package sio emulates the serial port of the handheld: the SB data register,
// the SC control register and the serial interrupt. The link itself is
// delegated to a Driver; without one, the port behaves as if no cable was
// plugged in.
package sio

import (
	"fmt"

	"gblink/emu/log"
	"gblink/hw/hwio"
	"gblink/hw/timing"
)

// IO addresses.
const (
	AddrSB = 0xFF01
	AddrSC = 0xFF02
	AddrIF = 0xFF0F
)

// SC bits.
const (
	SCInternalClock = 1 << 0
	SCFastClock     = 1 << 1 // CGB only
	SCStart         = 1 << 7
)

// IRQSerial is the serial interrupt bit in IF.
const IRQSerial = 1 << 3

// DisconnectedByte is what the data line reads when nothing drives it.
const DisconnectedByte = 0xFF

// Cycles per transferred bit, indexed by the SC clock speed bit.
var cyclesPerBit = [2]int64{512, 16}

// A Driver connects the serial port to the other end of the link cable.
type Driver interface {
	// Init is called when the driver is attached to a port.
	Init(p Port) error
	// Deinit is called when the driver is detached.
	Deinit()
	// WriteSB is called on every CPU write to SB.
	WriteSB(val uint8)
	// WriteSC is called on every CPU write to SC, it returns the value to
	// store into SC.
	WriteSC(val uint8) uint8
}

// Port is the serial port as seen by a Driver.
type Port interface {
	// Timing returns the scheduler driving the port.
	Timing() *timing.Scheduler
	// TransferCycles returns the duration of a full 8-bit transfer at the
	// current clock speed and CPU speed mode.
	TransferCycles() int64
	// BeginExternal marks a transfer as in progress, when the peer clocks us.
	BeginExternal()
	// Complete ends the current transfer: val is loaded into SB, the
	// transfer bit is cleared and the serial interrupt is raised.
	Complete(val uint8)
	// Control returns the current SC value.
	Control() uint8
}

type SIO struct {
	SB hwio.Reg8
	SC hwio.Reg8

	// IF is the interrupt flag register, owned by the host.
	IF *hwio.Reg8
	// OnIRQ, if set, is called each time the serial interrupt is raised.
	OnIRQ func()

	DoubleSpeed bool
	CGB         bool

	timing *timing.Scheduler
	driver Driver
	period int64

	// transfer event used when no driver is attached.
	unplugged timing.Event
}

// New creates a serial port driven by t, raising interrupts into ifreg.
func New(t *timing.Scheduler, ifreg *hwio.Reg8) *SIO {
	s := &SIO{
		IF:     ifreg,
		timing: t,
		period: cyclesPerBit[0],
	}
	s.SB = hwio.Reg8{Name: "SB", WriteCb: s.writeSB}
	s.SC = hwio.Reg8{Name: "SC", ReadCb: s.readSC, WriteCb: s.writeSC}
	s.unplugged = timing.Event{
		Name:     "SIO unplugged",
		Priority: 0x80,
		Callback: func(int64) { s.Complete(DisconnectedByte) },
	}
	return s
}

// MapBus maps SB and SC onto the IO bus.
func (s *SIO) MapBus(bus *hwio.Table) {
	bus.MapReg8(AddrSB, &s.SB)
	bus.MapReg8(AddrSC, &s.SC)
}

// SetDriver detaches the current driver, if any, and attaches d. A nil d
// leaves the port unplugged. If d fails to initialize, the port is left
// unplugged and the error is returned.
func (s *SIO) SetDriver(d Driver) error {
	if s.driver != nil {
		log.ModSerial.DebugZ("detaching driver").End()
		s.driver.Deinit()
		s.driver = nil
	}
	s.timing.Deschedule(&s.unplugged)
	if d == nil {
		return nil
	}
	if err := d.Init(s); err != nil {
		return fmt.Errorf("sio: driver init: %w", err)
	}
	s.driver = d
	log.ModSerial.DebugZ("driver attached").End()
	return nil
}

// Driver returns the attached driver, or nil.
func (s *SIO) Driver() Driver { return s.driver }

func (s *SIO) Timing() *timing.Scheduler { return s.timing }

func (s *SIO) TransferCycles() int64 {
	speed := int64(2)
	if s.DoubleSpeed {
		speed = 1
	}
	return s.period * speed * 8
}

func (s *SIO) BeginExternal() {
	hwio.SetBit8(&s.SC.Value, 7)
}

func (s *SIO) Complete(val uint8) {
	s.SB.Value = val
	hwio.ClearBits8(&s.SC.Value, SCStart)
	if s.IF != nil {
		hwio.SetBit8(&s.IF.Value, 3)
	}

	log.ModSerial.DebugZ("transfer complete").
		Hex8("sb", val).
		End()

	if s.OnIRQ != nil {
		s.OnIRQ()
	}
}

func (s *SIO) Control() uint8 { return s.SC.Value }

func (s *SIO) writeSB(_, val uint8) {
	if s.driver != nil {
		s.driver.WriteSB(val)
	}
}

func (s *SIO) readSC(val uint8) uint8 {
	if s.CGB {
		return val | 0x7C
	}
	return val | 0x7E
}

func (s *SIO) writeSC(old, val uint8) {
	s.period = cyclesPerBit[0]
	if s.CGB && hwio.GetBit8(val, 1) {
		s.period = cyclesPerBit[1]
	}

	if s.driver != nil {
		// Control reports the previous value until the driver decides.
		s.SC.Value = old
		s.SC.Value = s.driver.WriteSC(val)
		return
	}

	switch {
	case val&SCStart == 0:
		s.timing.Deschedule(&s.unplugged)
	case val&SCInternalClock != 0:
		// Nothing answers: all bits shifted in are 1s.
		s.timing.Schedule(&s.unplugged, s.TransferCycles())
	}
}
