package factory

import (
	"math/rand"

	"github.com/nldf-sim/factory-kernel/internal/engine"
	"github.com/nldf-sim/factory-kernel/internal/fsm"
	"github.com/nldf-sim/factory-kernel/internal/types"
)

// QualityCheckTimes are the per-type inspection duration ranges, grounded on
// the original quality_checker defaults.
var QualityCheckTimes = map[types.ProductType]ProcRange{
	types.ProductP1: {Min: 10, Max: 15},
	types.ProductP2: {Min: 12, Max: 18},
	types.ProductP3: {Min: 10, Max: 15},
}

// QualityOutcome is the result a quality check produces, reported to the
// KPI aggregator and the dashboard publisher.
type QualityOutcome struct {
	Product  *types.Product
	Passed   bool
	Scrapped bool
	At       float64
}

// QualityCheck inspects one product at a time; its two slots hold the
// queued products and the one under inspection together (spec.md §4.5). A pass stages the product for AGV pickup toward
// finished goods; a first failure stages it for AGV pickup back to Station
// C; a second failure scraps it at 0.8x its material cost.
type QualityCheck struct {
	*Device

	Output       *types.Product // passed, waiting for AGV pickup to FinishedGoods
	ReworkOutput *types.Product // first-fail reject, waiting for AGV pickup to StationC

	OnOutcome func(o QualityOutcome)
}

// NewQualityCheck creates an idle quality checker with a two-slot buffer.
func NewQualityCheck(id, lineID string) *QualityCheck {
	return &QualityCheck{Device: NewDevice(id, types.KindQualityCheck, lineID, 2)}
}

// ID implements Receiver.
func (q *QualityCheck) ID() string { return q.Device.ID }

// TryAccept admits a product for inspection (spec.md §4.5).
func (q *QualityCheck) TryAccept(clock *engine.Clock, p *types.Product) bool {
	held := len(q.Buffer)
	if q.Status() == types.StatusProcessing {
		held++
	}
	if q.InFault() || held >= q.Capacity {
		return false
	}
	q.pushBuffer(p)
	q.tryStart(clock)
	return true
}

func (q *QualityCheck) tryStart(clock *engine.Clock) {
	if q.InFault() || len(q.Buffer) == 0 {
		return
	}
	if q.Output != nil || q.ReworkOutput != nil {
		return
	}
	if q.Status() != types.StatusIdle && q.Status() != types.StatusBlocked {
		return
	}
	p, ok := q.popBuffer()
	if !ok {
		return
	}
	_ = q.FSM.Fire(fsm.EventStart)
	rng := QualityCheckTimes[p.Type]
	duration := rng.Min + rand.Float64()*(rng.Max-rng.Min)
	q.WorkingSeconds += duration
	if clock != nil {
		clock.Schedule(duration, engine.TierDevice, func(c *engine.Clock) {
			q.finish(c, p)
		})
	}
}

func (q *QualityCheck) finish(clock *engine.Clock, p *types.Product) {
	_ = q.FSM.Fire(fsm.EventFinish)
	p.Attempts++
	passed := rand.Float64() >= p.Type.FailureProbability()

	switch {
	case passed:
		q.Output = p
	case p.Attempts >= 2:
		if q.OnOutcome != nil {
			q.OnOutcome(QualityOutcome{Product: p, Passed: false, Scrapped: true, At: clock.Now()})
		}
		q.wakeFreedInput(clock)
		q.tryStart(clock)
		return
	default:
		q.ReworkOutput = p
	}

	if q.OnOutcome != nil {
		q.OnOutcome(QualityOutcome{Product: p, Passed: passed, At: clock.Now()})
	}
	q.wakeFreedInput(clock)
	q.tryStart(clock)
}

func (q *QualityCheck) wakeFreedInput(clock *engine.Clock) {
	if clock != nil {
		clock.Waits.Wake(recvKey(q.ID()))
	}
}

// TakePassed removes and returns a passed product waiting for AGV pickup.
func (q *QualityCheck) TakePassed() (*types.Product, bool) {
	if q.Output == nil {
		return nil, false
	}
	p := q.Output
	q.Output = nil
	return p, true
}

// TakeRework removes and returns a first-fail reject waiting for AGV
// pickup back to Station C.
func (q *QualityCheck) TakeRework() (*types.Product, bool) {
	if q.ReworkOutput == nil {
		return nil, false
	}
	p := q.ReworkOutput
	q.ReworkOutput = nil
	return p, true
}

// ResumeAfterFault restarts the inspection loop once a fault clears.
func (q *QualityCheck) ResumeAfterFault(clock *engine.Clock) {
	q.ClearFault()
	q.tryStart(clock)
}
