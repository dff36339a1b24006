package emu

import (
	"gblink/emu/log"
	"gblink/hw/sio"
)

// A Pump is a minimal serial program. It sends a list of bytes, one
// transfer each, and records the bytes received in exchange.
//
// The primary pump starts each transfer with the internal clock, the
// secondary one arms the port and waits to be clocked.
type Pump struct {
	c    *Console
	sc   uint8
	send []uint8
	recv []uint8
}

// NewPump creates a pump for c and hooks it to the serial interrupt.
func NewPump(c *Console, primary bool, send []uint8) *Pump {
	p := &Pump{
		c:    c,
		sc:   sio.SCStart,
		send: send,
	}
	if primary {
		p.sc |= sio.SCInternalClock
	}
	c.OnSerial = p.onSerial
	return p
}

// Start loads the first byte.
func (p *Pump) Start() {
	if len(p.send) > 0 {
		p.load(p.send[0])
	}
}

func (p *Pump) load(val uint8) {
	p.c.Bus.Write8(sio.AddrSB, val)
	p.c.Bus.Write8(sio.AddrSC, p.sc)
}

func (p *Pump) onSerial() {
	val := p.c.Bus.Read8(sio.AddrSB, false)
	p.recv = append(p.recv, val)

	log.ModEmu.DebugZ("pump received").
		Hex8("val", val).
		Int("count", len(p.recv)).
		End()

	if n := len(p.recv); n < len(p.send) {
		p.load(p.send[n])
	}
}

// Received returns the bytes received so far.
func (p *Pump) Received() []uint8 { return p.recv }

// Done reports whether every byte has been exchanged.
func (p *Pump) Done() bool { return len(p.recv) >= len(p.send) }
