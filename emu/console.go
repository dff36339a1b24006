package emu

import (
	"context"
	"sync/atomic"
	"time"

	"gblink/emu/log"
	"gblink/hw/hwio"
	"gblink/hw/sio"
	"gblink/hw/timing"
)

const (
	// CyclesPerFrame is the length of a video frame, in scheduler cycles.
	CyclesPerFrame = 70224 * 2
	// FrameRate is the number of frames per second at normal speed.
	FrameRate = 59.7275
)

// frameDuration is 1/FrameRate, rounded down to the nanosecond.
const frameDuration = time.Second * 10000 / 597275

// A Console is a headless handheld: a scheduler, the IO page and the serial
// port. Programs interact with it through the bus, as the CPU would.
type Console struct {
	Sched *timing.Scheduler
	Bus   *hwio.Table
	IF    hwio.Reg8
	SIO   *sio.SIO

	// OnSerial is called when the serial interrupt is raised, after it has
	// been acknowledged.
	OnSerial func()

	frames int64
	quit   atomic.Bool

	// Emulated time as seen by log contexts, which run on any goroutine.
	logCycle atomic.Int64
	logFrame atomic.Int64
}

func NewConsole(cfg GeneralConfig) *Console {
	c := &Console{
		Sched: timing.NewScheduler(),
		Bus:   hwio.NewTable("io", 0xFF00, 0x80),
	}
	c.IF = hwio.Reg8{
		Name:   "IF",
		RoMask: 0xE0,
		ReadCb: func(val uint8) uint8 { return val | 0xE0 },
	}
	c.Bus.MapReg8(sio.AddrIF, &c.IF)

	c.SIO = sio.New(c.Sched, &c.IF)
	c.SIO.CGB = cfg.CGB
	c.SIO.DoubleSpeed = cfg.CGB && cfg.DoubleSpeed
	c.SIO.OnIRQ = c.serialIRQ
	c.SIO.MapBus(c.Bus)
	return c
}

func (c *Console) serialIRQ() {
	hwio.ClearBits8(&c.IF.Value, sio.IRQSerial)
	if c.OnSerial != nil {
		c.OnSerial()
	}
}

// AddLogContext adds the emulated time to log entries. It's safe to call
// from any goroutine.
func (c *Console) AddLogContext(z *log.EntryZ) {
	z.Int64("cycle", c.logCycle.Load())
	z.Int64("frame", c.logFrame.Load())
}

// SetDriver plugs d into the serial port, nil unplugs the cable.
func (c *Console) SetDriver(d sio.Driver) error {
	return c.SIO.SetDriver(d)
}

// Close unplugs the cable.
func (c *Console) Close() {
	c.SIO.SetDriver(nil)
}

// Step runs the console for the given number of cycles. The scheduler is
// advanced event by event, so callbacks always observe the cycle they were
// scheduled at.
func (c *Console) Step(cycles int64) {
	for cycles > 0 {
		n := c.Sched.Next()
		if n < 0 || n > cycles {
			n = cycles
		}
		c.Sched.Advance(n)
		c.logCycle.Store(c.Sched.Cycles())
		cycles -= n
	}
}

func (c *Console) RunFrame() {
	c.Step(CyclesPerFrame)
	c.frames++
	c.logFrame.Store(c.frames)
}

func (c *Console) Frames() int64 { return c.frames }

// Stop makes Run return after the current frame. It's safe to call from any
// goroutine.
func (c *Console) Stop() { c.quit.Store(true) }

// Run runs frames at the console frame rate until ctx is done, Stop is
// called, limit frames have run (if limit > 0) or onFrame, called after each
// frame, returns true.
func (c *Console) Run(ctx context.Context, limit int64, onFrame func() bool) error {
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	start := c.frames
	for !c.quit.Load() {
		if limit > 0 && c.frames-start >= limit {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		c.RunFrame()
		if onFrame != nil && onFrame() {
			break
		}
	}
	log.ModEmu.InfoZ("Emulation loop exited").
		Int64("frames", c.frames-start).
		End()
	return nil
}
