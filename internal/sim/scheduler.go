package sim

import (
	"container/heap"
	"time"

	"github.com/gmessina/lrasim/lra"
)

// Event is a callback scheduled on the virtual clock. Cancellation is
// explicit and O(1); dropping a handle never cancels, and a handle is
// safe to keep after the event fired.
type Event struct {
	// at is the virtual time the event fires at.
	at time.Duration

	// seq breaks ties between events scheduled for the same instant:
	// insertion order wins.
	seq uint64

	// fn is the deferred work.
	fn func()

	cancelled bool
}

// Cancel prevents the event from firing. A no-op once the event fired or
// was already cancelled.
func (e *Event) Cancel() {
	e.cancelled = true
}

// At is the virtual time the event fires at.
func (e *Event) At() time.Duration {
	return e.at
}

// Scheduler is a single-threaded discrete-event scheduler. Every handler
// runs to completion before the next event; events scheduled for the
// same instant run in FIFO order of insertion.
type Scheduler struct {
	now     time.Duration
	seq     uint64
	queue   eventQueue
	stopped bool
}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Now is the current virtual time.
func (s *Scheduler) Now() time.Duration {
	return s.now
}

// Schedule runs fn after delay of virtual time.
func (s *Scheduler) Schedule(delay time.Duration, fn func()) lra.Event {
	ev := &Event{at: s.now + delay, seq: s.seq, fn: fn}
	s.seq++
	heap.Push(&s.queue, ev)
	return ev
}

// Run drains the queue, advancing virtual time, until no events remain
// or Stop is called from inside a handler.
func (s *Scheduler) Run() {
	s.stopped = false
	for len(s.queue) > 0 && !s.stopped {
		s.step()
	}
}

// RunUntil processes every event scheduled up to and including virtual
// time t, then advances the clock to t.
func (s *Scheduler) RunUntil(t time.Duration) {
	s.stopped = false
	for len(s.queue) > 0 && !s.stopped && s.queue[0].at <= t {
		s.step()
	}
	if s.now < t {
		s.now = t
	}
}

// Stop makes Run return once the current handler completes.
func (s *Scheduler) Stop() {
	s.stopped = true
}

// Pending is the number of events still queued, cancelled ones included.
func (s *Scheduler) Pending() int {
	return len(s.queue)
}

func (s *Scheduler) step() {
	ev := heap.Pop(&s.queue).(*Event)
	s.now = ev.at
	if ev.cancelled {
		return
	}
	ev.fn()
}

// eventQueue orders events by fire time, then insertion sequence.
type eventQueue []*Event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	return q[i].seq < q[j].seq
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) {
	*q = append(*q, x.(*Event))
}

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return ev
}
