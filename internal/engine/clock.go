// Package engine implements the discrete-event scheduler the whole
// simulation kernel runs on (spec.md §4.1, §5). It generalizes a
// container/heap-based priority queue that used to dispatch worker-pool
// tasks by priority into one that dispatches timed events by
// (time, tie-break tier, insertion order) — the ordering guarantee spec.md
// §4.1 requires so KPI counters observe a consistent view per tick.
package engine

import (
	"container/heap"
	"context"
)

// Tier is the stable tie-break order for events scheduled at the same
// instant: generator → fault injector → device processes → AGV processes →
// publisher (spec.md §4.1).
type Tier int

const (
	TierGenerator Tier = iota
	TierFault
	TierDevice
	TierAGV
	TierPublisher
)

// event is one entry in the clock's heap.
type event struct {
	at   float64
	tier Tier
	seq  uint64
	fn   func(c *Clock)
}

// eventHeap implements container/heap.Interface, ordering by (at, tier, seq).
type eventHeap []*event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	if h[i].tier != h[j].tier {
		return h[i].tier < h[j].tier
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x interface{}) {
	*h = append(*h, x.(*event))
}
func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Clock is the single logical clock every line and the KPI aggregator share.
// It is single-threaded with respect to world state: Run executes one
// event's callback to completion before popping the next one, so no two
// callbacks ever mutate a device concurrently (spec.md §5).
type Clock struct {
	now    float64
	heap   eventHeap
	seq    uint64
	Waits  *WaitSet
	ending bool

	// inbox lets other goroutines (the HTTP command handler, the
	// interactive menu) hand work to the clock's own goroutine instead of
	// mutating device state directly — Run drains it between events so a
	// posted command executes with the same single-threaded guarantee as
	// every other mutation (spec.md §5).
	inbox chan func(c *Clock)
}

// NewClock creates a clock starting at t=0.
func NewClock() *Clock {
	c := &Clock{Waits: NewWaitSet(), inbox: make(chan func(c *Clock), 256)}
	heap.Init(&c.heap)
	return c
}

// Post hands fn to the clock's own goroutine, to run at the current
// simulated time before the next queued event. Safe to call from any
// goroutine; fn itself must not be, since it runs inside Run's loop.
func (c *Clock) Post(fn func(c *Clock)) {
	c.inbox <- fn
}

func (c *Clock) drainInbox() {
	for {
		select {
		case fn := <-c.inbox:
			fn(c)
		default:
			return
		}
	}
}

// Now returns the current simulated time in seconds.
func (c *Clock) Now() float64 { return c.now }

// Schedule queues fn to run at now+delay, with the given tie-break tier.
// delay must be >= 0.
func (c *Clock) Schedule(delay float64, tier Tier, fn func(c *Clock)) {
	c.ScheduleAt(c.now+delay, tier, fn)
}

// ScheduleAt queues fn to run at an absolute simulated time.
func (c *Clock) ScheduleAt(at float64, tier Tier, fn func(c *Clock)) {
	if at < c.now {
		at = c.now
	}
	c.seq++
	heap.Push(&c.heap, &event{at: at, tier: tier, seq: c.seq, fn: fn})
}

// Pending reports whether any event remains in the queue.
func (c *Clock) Pending() bool { return c.heap.Len() > 0 }

// Run drains the event queue until it is empty, the context is cancelled, or
// an event's time would exceed until. Each event's callback may itself
// schedule more events (including for the same instant); those are picked up
// by the same loop, honoring tier ordering among same-instant events.
//
// Scheduler overrun — the queue going empty before `until` — is benign: the
// loop simply returns (spec.md §7).
func (c *Clock) Run(ctx context.Context, until float64) {
	for {
		c.drainInbox()
		if ctx.Err() != nil {
			return
		}
		if c.heap.Len() == 0 {
			return
		}
		next := c.heap[0]
		if next.at > until {
			return
		}
		heap.Pop(&c.heap)
		c.now = next.at
		next.fn(c)
	}
}

// RunStep pops and executes exactly one pending event, advancing Now to its
// timestamp. Used by tests that want to single-step the clock. Returns false
// if the queue was empty.
func (c *Clock) RunStep() bool {
	if c.heap.Len() == 0 {
		return false
	}
	next := heap.Pop(&c.heap).(*event)
	c.now = next.at
	next.fn(c)
	return true
}
