package link

import (
	"time"

	"gblink/emu/log"
	"gblink/hw/sio"
	"gblink/hw/timing"
)

// Reasons for the disconnected byte to be substituted to the peer's.
const (
	causeNoSession = "no session"
	causeTimeout   = "timeout"
	causeSend      = "send"
	causeReceive   = "receive"
)

const eventPriority = 0x80

// Stats counts what happened on a link.
type Stats struct {
	Transfers uint64 // completed transfers, fallbacks included
	Fallbacks uint64 // transfers completed with the disconnected byte
	Rejected  uint64 // SC writes rejected while a transfer was in progress
	Dropped   uint64 // frames received out of place
}

// A Driver is a serial port driver that exchanges bytes with a peer over
// a Link.
//
// Nothing ever blocks: SC writes only send, and all incoming frames are
// handled on a periodic scheduler tick. Completion always happens one
// transfer length after the transfer began, as on real hardware.
type Driver struct {
	link *Link
	cfg  Config

	port  sio.Port
	sched *timing.Scheduler

	state    State
	pending  uint8 // next byte to send, mirrors SB
	sbWrite  bool  // SB written during the current transfer
	req      TransferRequest
	incoming uint8
	cause    string // non-empty when incoming is a fallback

	sync   timing.Event
	bridge bridge
	sentAt time.Time
	owed   int // late replies to timed out requests, on ordered sessions

	now    func() time.Time
	tracer *Tracer
	stats  Stats

	orphanLogged bool
}

// NewDriver returns a driver for the session of l. l may still be
// negotiating, in which case transfers behave as if no cable was plugged.
func NewDriver(l *Link, cfg Config) *Driver {
	return &Driver{
		link: l,
		cfg:  cfg,
		now:  time.Now,
	}
}

// SetTracer makes the driver report every completed transfer to t.
func (d *Driver) SetTracer(t *Tracer) { d.tracer = t }

func (d *Driver) Init(p sio.Port) error {
	if err := d.cfg.Check(); err != nil {
		return err
	}

	d.port = p
	d.sched = p.Timing()
	d.state = Idle
	d.req = TransferRequest{}
	d.owed = 0
	d.sync = timing.Event{
		Name:     "Link sync",
		Priority: eventPriority,
		Callback: d.tick,
	}
	d.bridge = bridge{
		sched: d.sched,
		ev: timing.Event{
			Name:     "Link transfer",
			Priority: eventPriority,
			Callback: func(int64) { d.complete() },
		},
	}
	d.sched.Schedule(&d.sync, d.cfg.PollCycles)

	log.ModLink.DebugZ("driver initialized").
		Int64("poll_cycles", d.cfg.PollCycles).
		Duration("reply_timeout", d.cfg.ReplyTimeout).
		End()
	return nil
}

// Deinit cancels the pending completion, if any, before closing the link.
// The sync tick is always descheduled, idle or not, since it belongs to the
// driver and not to a transfer.
func (d *Driver) Deinit() {
	cancelled := d.bridge.cancel()
	d.sched.Deschedule(&d.sync)
	d.state = Idle
	d.sbWrite = false
	d.owed = 0

	log.ModLink.DebugZ("driver deinitialized").
		Bool("cancelled", cancelled).
		Uint("transfers", d.stats.Transfers).
		End()

	if d.link != nil {
		if err := d.link.Close(); err != nil {
			log.ModLink.WarnZ("closing link").Error("err", err).End()
		}
	}
}

func (d *Driver) WriteSB(val uint8) {
	d.pending = val
	if d.state != Idle {
		d.sbWrite = true
	}
}

func (d *Driver) WriteSC(val uint8) uint8 {
	if d.state != Idle {
		d.stats.Rejected++
		log.ModLink.WarnZ("SC write during transfer").
			Hex8("val", val).
			Stringer("state", d.state).
			End()
		return d.port.Control()
	}
	if val&sio.SCStart == 0 || val&sio.SCInternalClock == 0 {
		// Nothing to do until the peer clocks us.
		return val
	}

	sess := d.session()
	if sess == nil {
		d.begin(Primary, d.pending, 0)
		d.finish(sio.DisconnectedByte, causeNoSession)
		return val
	}
	if sess.Role() == Secondary {
		log.ModLink.DebugZ("internal clock on secondary, waiting for peer clock").
			Hex8("val", val).
			End()
		return val
	}

	d.begin(Primary, d.pending, 0)
	if err := sess.sendRequest(d.req.Payload); err != nil {
		d.fail(sess, err)
		d.finish(sio.DisconnectedByte, causeSend)
		return val
	}
	d.sentAt = d.now()
	return val
}

// State returns the current state of the transfer state machine.
func (d *Driver) State() State { return d.state }

// PendingByte returns the byte to be sent on the next transfer.
func (d *Driver) PendingByte() uint8 { return d.pending }

// Request returns the transfer in progress, valid unless State is Idle.
func (d *Driver) Request() TransferRequest { return d.req }

func (d *Driver) Stats() Stats { return d.stats }

// session returns the session, or nil if there's none or it's broken.
func (d *Driver) session() *Session {
	sess := d.link.Session()
	if sess == nil {
		if d.link == nil {
			return nil
		}
		if err := d.link.Err(); err != nil && !d.orphanLogged {
			d.orphanLogged = true
			log.ModLink.WarnZ("no session, link behaves as unplugged").
				Error("err", err).
				End()
		}
		return nil
	}
	if sess.Err() != nil {
		return nil
	}
	return sess
}

func (d *Driver) fail(sess *Session, err error) {
	if sess.Err() == nil {
		log.ModLink.WarnZ("session broken, link behaves as unplugged").
			Error("err", err).
			End()
	}
	sess.Fail(err)
}

// begin starts a transfer of the initiator's payload byte.
func (d *Driver) begin(initiator Role, payload uint8, late int64) {
	d.state = Starting
	d.req = TransferRequest{Initiator: initiator, Payload: payload}
	d.bridge.begin(d.port.TransferCycles(), late)

	log.ModLink.DebugZ("transfer started").
		Stringer("initiator", initiator).
		Hex8("payload", payload).
		Hex8("pending", d.pending).
		End()
}

// finish records the incoming byte and schedules completion.
func (d *Driver) finish(incoming uint8, cause string) {
	d.state = Finished
	d.incoming = incoming
	d.cause = cause
	if cause != "" {
		d.stats.Fallbacks++
		log.ModLink.DebugZ("transfer falls back to disconnected byte").
			String("cause", cause).
			End()
	}
	d.bridge.finish()
}

func (d *Driver) drop(f Frame) {
	d.stats.Dropped++
	log.ModLink.DebugZ("dropped frame").
		Stringer("frame", f).
		Stringer("state", d.state).
		End()
}

func (d *Driver) tick(late int64) {
	d.sched.Schedule(&d.sync, d.cfg.PollCycles-late)

	// A transfer is already decided, anything new waits until it completes.
	if d.state == Finished {
		return
	}
	sess := d.session()
	if sess == nil {
		return
	}
	if sess.Role() == Primary {
		d.pollPrimary(sess)
	} else {
		d.pollSecondary(sess, late)
	}
}

func (d *Driver) pollPrimary(sess *Session) {
	for {
		f, ok, err := sess.pollIncoming()
		if err != nil {
			d.fail(sess, err)
			if d.state == Starting {
				d.finish(sio.DisconnectedByte, causeReceive)
			}
			return
		}
		if !ok {
			break
		}
		if f.Tag == ClockResponse && d.owed > 0 {
			// Answer to a request we gave up on.
			d.owed--
			d.drop(f)
			continue
		}
		if d.state != Starting || f.Tag != ClockResponse {
			d.drop(f)
			continue
		}
		d.req.Response = f.Payload
		d.req.Answered = true
		d.finish(f.Payload, "")
		return
	}

	if d.state == Starting && d.now().Sub(d.sentAt) > d.cfg.ReplyTimeout {
		log.ModLink.WarnZ("no reply from peer").
			Duration("timeout", d.cfg.ReplyTimeout).
			End()
		if sess.ordered {
			d.owed++
		}
		d.finish(sio.DisconnectedByte, causeTimeout)
	}
}

func (d *Driver) pollSecondary(sess *Session, late int64) {
	for {
		f, ok, err := sess.pollIncoming()
		if err != nil {
			d.fail(sess, err)
			return
		}
		if !ok {
			return
		}
		if f.Tag != ClockRequest {
			d.drop(f)
			continue
		}

		d.port.BeginExternal()
		d.begin(Primary, f.Payload, late)
		d.req.Response = d.pending
		d.req.Answered = true

		if err := sess.sendResponse(d.pending); err != nil {
			d.fail(sess, err)
			d.finish(sio.DisconnectedByte, causeSend)
			return
		}
		d.finish(f.Payload, "")
		return
	}
}

// complete is the bridge callback, it ends the transfer on the port.
func (d *Driver) complete() {
	val := d.incoming
	ev := TransferEvent{
		Initiator: d.req.Initiator,
		Received:  val,
		Start:     d.bridge.start,
		Done:      d.sched.Cycles(),
		Fallback:  d.cause != "",
		Cause:     d.cause,
	}
	ev.Role, ev.Sent = Primary, d.req.Payload
	if sess := d.link.Session(); sess != nil && sess.Role() == Secondary {
		ev.Role, ev.Sent = Secondary, d.req.Response
	}

	d.stats.Transfers++
	// SB now holds the received byte, so does the next byte to send unless
	// SB was written meanwhile. mGBA resets it to 0xFF instead, which real
	// hardware doesn't do.
	if !d.sbWrite {
		d.pending = val
	}
	d.sbWrite = false
	d.state = Idle
	d.req = TransferRequest{}
	d.cause = ""

	// The interrupt handler may start the next transfer right away.
	d.port.Complete(val)

	if d.tracer != nil {
		if err := d.tracer.Transfer(ev); err != nil {
			log.ModLink.WarnZ("trace").Error("err", err).End()
		}
	}
}
