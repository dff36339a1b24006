package timing

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

type firing struct {
	Name string
	At   int64
	Late int64
}

type recorder struct {
	s     *Scheduler
	fired []firing
}

func (r *recorder) event(name string, prio uint) *Event {
	ev := &Event{Name: name, Priority: prio}
	ev.Callback = func(late int64) {
		r.fired = append(r.fired, firing{Name: name, At: r.s.Cycles(), Late: late})
	}
	return ev
}

func TestSchedulerOrder(t *testing.T) {
	s := NewScheduler()
	r := &recorder{s: s}

	a := r.event("a", 0x80)
	b := r.event("b", 0x80)
	c := r.event("c", 0x10)
	d := r.event("d", 0x80)

	s.Schedule(a, 10)
	s.Schedule(b, 5)
	s.Schedule(c, 10) // same cycle as a, higher priority
	s.Schedule(d, 10) // same cycle and priority as a, inserted later

	s.Advance(4)
	if len(r.fired) != 0 {
		t.Fatalf("events fired too early: %v", r.fired)
	}
	s.Advance(8)

	want := []firing{
		{Name: "b", At: 12, Late: 7},
		{Name: "c", At: 12, Late: 2},
		{Name: "a", At: 12, Late: 2},
		{Name: "d", At: 12, Late: 2},
	}
	if diff := cmp.Diff(want, r.fired); diff != "" {
		t.Errorf("fired events mismatch (-want +got):\n%s", diff)
	}
}

func TestSchedulerReschedule(t *testing.T) {
	s := NewScheduler()
	r := &recorder{s: s}
	ev := r.event("ev", 0)

	s.Schedule(ev, 100)
	s.Advance(50)
	s.Schedule(ev, 100)

	if until, ok := s.Until(ev); !ok || until != 100 {
		t.Fatalf("Until = %d, %t, want 100, true", until, ok)
	}

	s.Advance(99)
	if len(r.fired) != 0 {
		t.Fatalf("rescheduled event fired at its former date")
	}
	s.Advance(1)
	want := []firing{{Name: "ev", At: 150}}
	if diff := cmp.Diff(want, r.fired); diff != "" {
		t.Errorf("fired events mismatch (-want +got):\n%s", diff)
	}
	if s.IsScheduled(ev) {
		t.Errorf("one-shot event still scheduled after firing")
	}
}

func TestSchedulerDeschedule(t *testing.T) {
	s := NewScheduler()
	r := &recorder{s: s}
	ev := r.event("ev", 0)

	s.Deschedule(ev) // not scheduled, no-op
	s.Schedule(ev, 10)
	s.Deschedule(ev)
	if s.IsScheduled(ev) {
		t.Fatalf("event still scheduled")
	}
	if next := s.Next(); next != -1 {
		t.Errorf("Next = %d, want -1", next)
	}
	s.Advance(20)
	if len(r.fired) != 0 {
		t.Errorf("descheduled event fired: %v", r.fired)
	}
}

func TestSchedulerPeriodic(t *testing.T) {
	s := NewScheduler()
	ticks := 0
	tick := &Event{Name: "tick"}
	tick.Callback = func(int64) {
		ticks++
		s.Schedule(tick, 24)
	}
	s.Schedule(tick, 0)

	for range 240 {
		s.Advance(1)
	}
	// Fires at cycles 1, 25, 49... when stepping one cycle at a time.
	if ticks != 10 {
		t.Errorf("ticks = %d, want 10", ticks)
	}
}

func TestSchedulerZeroDelayFromCallback(t *testing.T) {
	s := NewScheduler()
	r := &recorder{s: s}
	second := r.event("second", 0)
	first := &Event{Name: "first", Callback: func(int64) { s.Schedule(second, 0) }}

	s.Schedule(first, 3)
	s.Advance(3)

	want := []firing{{Name: "second", At: 3}}
	if diff := cmp.Diff(want, r.fired); diff != "" {
		t.Errorf("fired events mismatch (-want +got):\n%s", diff)
	}
}

func TestSchedulerReset(t *testing.T) {
	s := NewScheduler()
	ev := &Event{Name: "ev"}
	s.Schedule(ev, 10)
	s.Advance(5)
	s.Reset()

	if s.Cycles() != 0 || s.IsScheduled(ev) || s.Next() != -1 {
		t.Errorf("scheduler not reset: cycles=%d scheduled=%t next=%d", s.Cycles(), s.IsScheduled(ev), s.Next())
	}
}
