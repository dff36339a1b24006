// Package timing implements the cycle-accurate event scheduler driving the
// emulated hardware. Time is counted in scheduler cycles; events fire in
// order of due cycle, then priority (lower first), then insertion order.
package timing

import (
	"gblink/emu/log"
)

// An Event is a callback to invoke at a given point in emulated time. Events
// are owned by their subsystem and can be scheduled at most once at a time.
type Event struct {
	Name     string
	Priority uint

	// Callback is invoked when the event fires, with the number of cycles
	// the event is late by.
	Callback func(cyclesLate int64)

	when      int64
	seq       uint64
	scheduled bool
}

func (ev *Event) String() string { return ev.Name }

// Scheduler keeps the emulated clock and the queue of pending events.
type Scheduler struct {
	now   int64
	seq   uint64
	queue []*Event // sorted, next event first
}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Cycles returns the current emulated time.
func (s *Scheduler) Cycles() int64 { return s.now }

func (ev *Event) before(other *Event) bool {
	if ev.when != other.when {
		return ev.when < other.when
	}
	if ev.Priority != other.Priority {
		return ev.Priority < other.Priority
	}
	return ev.seq < other.seq
}

// Schedule schedules ev to fire cycles from now. If ev is already scheduled,
// it is rescheduled. Negative values are treated as zero.
func (s *Scheduler) Schedule(ev *Event, cycles int64) {
	if ev.scheduled {
		s.Deschedule(ev)
	}
	ev.when = s.now + max(cycles, 0)
	ev.seq = s.seq
	ev.scheduled = true
	s.seq++

	i := len(s.queue)
	for i > 0 && ev.before(s.queue[i-1]) {
		i--
	}
	s.queue = append(s.queue, nil)
	copy(s.queue[i+1:], s.queue[i:])
	s.queue[i] = ev

	log.ModTiming.DebugZ("schedule").
		String("event", ev.Name).
		Int64("when", ev.when).
		End()
}

// Deschedule removes ev from the queue. It's a no-op if ev is not scheduled.
func (s *Scheduler) Deschedule(ev *Event) {
	if !ev.scheduled {
		return
	}
	for i, qev := range s.queue {
		if qev == ev {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			break
		}
	}
	ev.scheduled = false

	log.ModTiming.DebugZ("deschedule").
		String("event", ev.Name).
		End()
}

// IsScheduled reports whether ev is currently in the queue.
func (s *Scheduler) IsScheduled(ev *Event) bool {
	return ev.scheduled
}

// Until returns the number of cycles before ev fires. ok is false if ev is
// not scheduled.
func (s *Scheduler) Until(ev *Event) (cycles int64, ok bool) {
	if !ev.scheduled {
		return 0, false
	}
	return ev.when - s.now, true
}

// Next returns the number of cycles until the next event, or -1 if the
// queue is empty.
func (s *Scheduler) Next() int64 {
	if len(s.queue) == 0 {
		return -1
	}
	return max(s.queue[0].when-s.now, 0)
}

// Advance moves the emulated clock cycles forward and fires all the events
// that became due, in order. Callbacks observe the clock at its new value.
func (s *Scheduler) Advance(cycles int64) {
	s.now += max(cycles, 0)
	for len(s.queue) > 0 && s.queue[0].when <= s.now {
		ev := s.queue[0]
		s.queue = s.queue[1:]
		ev.scheduled = false
		if ev.Callback != nil {
			ev.Callback(s.now - ev.when)
		}
	}
}

// Reset deschedules all events and rewinds the clock to zero.
func (s *Scheduler) Reset() {
	for _, ev := range s.queue {
		ev.scheduled = false
	}
	s.queue = s.queue[:0]
	s.now = 0
}
