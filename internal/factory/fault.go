package factory

import (
	"math/rand"

	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"
	"github.com/nldf-sim/factory-kernel/internal/engine"
)

// FaultMaintenanceCost is the cost-unit charge the KPI aggregator books for
// every injected fault (spec.md §4.6).
const FaultMaintenanceCost = 8.0

// DefaultFaultRule is the eligibility expression evaluated, via
// antonmedv/expr, against each candidate device before it is chosen as a
// fault target: never re-fault an already-faulted device, and never target
// an AGV mid-charge (spec.md §4.6's "a device already in FAULT is not
// re-selected").
const DefaultFaultRule = `status != "FAULT" && status != "CHARGING"`

// Faultable is anything the injector can target: every device kind
// satisfies it via the embedded *Device.
type Faultable interface {
	ID() string
	DeviceStatus() string
	Fault(untilTime float64)
}

// FaultCandidate pairs a target with the line it belongs to, since Device's
// LineID is a plain field (shared with metrics labeling) rather than a
// method and so cannot appear in the Faultable interface itself.
type FaultCandidate struct {
	Target Faultable
	LineID string
}

// FaultInjector periodically disables a randomly chosen eligible device for
// a sampled duration (spec.md §4.6). Faults self-clear; the injector itself
// only opens them, the engine's per-tick sweep closes them when due.
type FaultInjector struct {
	IntervalRange ProcRange
	DurationRange ProcRange
	Rule          string

	program *vm.Program
	OnFault func(deviceID, lineID string)
}

// NewFaultInjector compiles Rule once (or DefaultFaultRule if empty).
func NewFaultInjector(intervalRange, durationRange ProcRange, rule string) (*FaultInjector, error) {
	if rule == "" {
		rule = DefaultFaultRule
	}
	program, err := expr.Compile(rule, expr.Env(map[string]interface{}{"status": "", "line_id": ""}))
	if err != nil {
		return nil, err
	}
	return &FaultInjector{
		IntervalRange: intervalRange,
		DurationRange: durationRange,
		Rule:          rule,
		program:       program,
	}, nil
}

// eligible evaluates the compiled rule against one candidate's status.
func (f *FaultInjector) eligible(status, lineID string) bool {
	out, err := expr.Run(f.program, map[string]interface{}{"status": status, "line_id": lineID})
	if err != nil {
		return false
	}
	ok, _ := out.(bool)
	return ok
}

// Schedule arms the next fault draw on clock, recursing forever (the
// simulation's run-until-horizon bound stops it, not the injector itself).
func (f *FaultInjector) Schedule(clock *engine.Clock, candidates func() []FaultCandidate) {
	delay := f.IntervalRange.sample()
	clock.Schedule(delay, engine.TierFault, func(c *engine.Clock) {
		pool := candidates()
		var eligible []FaultCandidate
		for _, d := range pool {
			if f.eligible(d.Target.DeviceStatus(), d.LineID) {
				eligible = append(eligible, d)
			}
		}
		if len(eligible) > 0 {
			target := eligible[rand.Intn(len(eligible))]
			duration := f.DurationRange.sample()
			target.Target.Fault(c.Now() + duration)
			if f.OnFault != nil {
				f.OnFault(target.Target.ID(), target.LineID)
			}
		}
		f.Schedule(c, candidates)
	})
}
