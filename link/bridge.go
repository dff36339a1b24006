package link

import "gblink/hw/timing"

// bridge schedules transfer completion so that it happens exactly one
// transfer length after the transfer began, however long the network took.
type bridge struct {
	sched *timing.Scheduler
	ev    timing.Event

	start  int64 // cycle the transfer began at
	length int64
}

// begin records the start of a transfer lasting length cycles. late is the
// number of cycles the caller runs behind the scheduler clock.
func (b *bridge) begin(length, late int64) {
	b.start = b.sched.Cycles() - late
	b.length = length
}

// finish schedules the completion event, now if the transfer length
// already elapsed.
func (b *bridge) finish() {
	elapsed := b.sched.Cycles() - b.start
	b.sched.Schedule(&b.ev, max(0, b.length-elapsed))
}

// cancel deschedules the completion event and reports if it was pending.
func (b *bridge) cancel() bool {
	if !b.sched.IsScheduled(&b.ev) {
		return false
	}
	b.sched.Deschedule(&b.ev)
	return true
}

func (b *bridge) pending() bool { return b.sched.IsScheduled(&b.ev) }
