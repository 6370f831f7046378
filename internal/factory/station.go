package factory

import (
	"fmt"
	"math/rand"

	"github.com/nldf-sim/factory-kernel/internal/engine"
	"github.com/nldf-sim/factory-kernel/internal/fsm"
	"github.com/nldf-sim/factory-kernel/internal/metrics"
	"github.com/nldf-sim/factory-kernel/internal/types"
)

// ProcRange is a uniform (min, max) sampling range for a processing duration.
type ProcRange struct{ Min, Max float64 }

func (r ProcRange) sample() float64 {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + rand.Float64()*(r.Max-r.Min)
}

// Station processes one product at a time from its input buffer into a
// single output slot; the buffer and the product in process together hold
// at most three products (spec.md §4.2).
type Station struct {
	*Device

	ProcessingTimes map[types.ProductType]ProcRange
	Output          *types.Product

	// Downstream is where a finished product is handed off next. StationC
	// on the line-3 special conveyor routes P3's first pass elsewhere via
	// RouteOverride.
	Downstream Receiver

	// RouteOverride, when non-nil, picks the downstream for a specific
	// product instead of the default Downstream (spec.md §4.2's P3-on-C
	// rule).
	RouteOverride func(p *types.Product) Receiver

	onHandoff func(clock *engine.Clock, p *types.Product) // KPI/publisher hook, set by Line
}

// NewStation creates an idle station with a capacity-3 input buffer.
func NewStation(id, lineID string, times map[types.ProductType]ProcRange) *Station {
	return &Station{
		Device:          NewDevice(id, types.KindStation, lineID, 3),
		ProcessingTimes: times,
	}
}

// ID implements Receiver.
func (s *Station) ID() string { return s.Device.ID }

// TryEnqueue admits a product to the input buffer (spec.md §4.2). Returns
// false if the station is faulted or already holds Capacity products, the
// one being processed included.
func (s *Station) TryEnqueue(clock *engine.Clock, p *types.Product) bool {
	held := len(s.Buffer)
	if s.Status() == types.StatusProcessing {
		held++
	}
	if s.InFault() || held >= s.Capacity {
		return false
	}
	s.pushBuffer(p)
	p.RecordVisit(s.ID())
	s.tryStart(clock)
	return true
}

// TryAccept implements Receiver for stations that sit downstream of an AGV
// unload (e.g. StationA receiving from raw material via AGV).
func (s *Station) TryAccept(clock *engine.Clock, p *types.Product) bool {
	return s.TryEnqueue(clock, p)
}

// tryStart begins processing the head of the input buffer if the station is
// idle, has room for output, and is not faulted.
func (s *Station) tryStart(clock *engine.Clock) {
	if s.InFault() || s.Output != nil || len(s.Buffer) == 0 {
		return
	}
	if s.Status() != types.StatusIdle && s.Status() != types.StatusBlocked {
		return
	}
	p, ok := s.popBuffer()
	if !ok {
		return
	}
	_ = s.FSM.Fire(fsm.EventStart)
	rng := s.ProcessingTimes[p.Type]
	duration := rng.sample()
	s.WorkingSeconds += duration
	if clock != nil {
		startedAt := clock.Now()
		clock.Schedule(duration, engine.TierDevice, func(c *engine.Clock) {
			metrics.StationProcessingDuration.WithLabelValues(s.LineID, s.ID()).Observe(duration)
			s.finishProcessing(c, p, startedAt)
		})
	}
}

func (s *Station) finishProcessing(clock *engine.Clock, p *types.Product, startedAt float64) {
	_ = s.FSM.Fire(fsm.EventFinish)
	s.Output = p
	if s.onHandoff != nil {
		s.onHandoff(clock, p)
	}
	s.attemptHandoff(clock)
	s.wakeFreedInput(clock)
}

// attemptHandoff tries to push the staged output to its downstream sink. On
// success it immediately tries to start the next queued product; on
// failure it parks on the downstream's wake key, the primary source of
// backpressure spec.md §4.3 describes.
func (s *Station) attemptHandoff(clock *engine.Clock) {
	if s.Output == nil {
		return
	}
	sink := s.Downstream
	if s.RouteOverride != nil {
		if override := s.RouteOverride(s.Output); override != nil {
			sink = override
		}
	}
	if sink == nil {
		return
	}
	if sink.TryAccept(clock, s.Output) {
		s.Output = nil
		if s.Status() == types.StatusBlocked {
			_ = s.FSM.Fire(fsm.EventUnblock)
		}
		s.tryStart(clock)
		return
	}
	_ = s.FSM.Fire(fsm.EventBlock)
	clock.Waits.Wait(recvKey(sink.ID()), func() { s.attemptHandoff(clock) })
}

// wakeFreedInput wakes anything parked waiting for this station's input
// buffer to have room (an upstream conveyor blocked on "station full").
func (s *Station) wakeFreedInput(clock *engine.Clock) {
	if clock != nil {
		clock.Waits.Wake(recvKey(s.ID()))
	}
}

// ResumeAfterFault restarts the autonomous loop once a fault clears,
// preserving whatever was already staged (spec.md §5).
func (s *Station) ResumeAfterFault(clock *engine.Clock) {
	s.ClearFault()
	s.attemptHandoff(clock)
	s.tryStart(clock)
}

func recvKey(deviceID string) string { return fmt.Sprintf("recv:%s", deviceID) }

// Receiver is anything a finished product can be handed to: a conveyor, a
// station's input buffer, the quality checker, or a warehouse.
type Receiver interface {
	ID() string
	TryAccept(clock *engine.Clock, p *types.Product) bool
}
