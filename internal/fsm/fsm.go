// Package fsm provides a small finite-state machine used to drive the status
// field of every device in the factory (stations, conveyors, AGVs, the
// quality checker). It is a direct generalization of a workflow-engine FSM
// that originally modeled product lifecycle states: the same transition
// table + callback shape, retargeted at device status transitions.
package fsm

import (
	"fmt"
	"sync"

	"github.com/nldf-sim/factory-kernel/internal/types"
)

// Event names the trigger that moves a device from one status to another.
type Event string

const (
	EventStart       Event = "START" // begin processing (or loading/unloading for AGVs)
	EventMove        Event = "MOVE"  // AGV begins traveling to a destination
	EventFinish      Event = "FINISH"
	EventChargeStart Event = "CHARGE_START"
	EventChargeDone  Event = "CHARGE_DONE"
	EventFault       Event = "FAULT" // fault injector fires
	EventClear       Event = "CLEAR" // fault cleared, back to idle
	EventBlock       Event = "BLOCK" // backpressure: a ready item has nowhere to go
	EventUnblock     Event = "UNBLOCK"
)

// FSM is a generic status state machine. One is embedded in every device.
type FSM struct {
	mu          sync.Mutex
	current     types.Status
	transitions map[types.Status]map[Event]types.Status
	callbacks   map[types.Status][]func(deviceID string)
	deviceID    string
}

// New creates an FSM starting in IDLE with the standard device transition
// table (spec.md §4, the AGV transition diagram generalized to every
// device kind: stations/conveyors/quality checks never MOVE, AGVs additionally
// use LOADING/UNLOADING/CHARGING).
func New(deviceID string) *FSM {
	f := &FSM{
		current:     types.StatusIdle,
		transitions: make(map[types.Status]map[Event]types.Status),
		callbacks:   make(map[types.Status][]func(string)),
		deviceID:    deviceID,
	}
	f.addTransition(types.StatusIdle, EventStart, types.StatusProcessing)
	f.addTransition(types.StatusIdle, EventMove, types.StatusMoving)
	f.addTransition(types.StatusProcessing, EventFinish, types.StatusIdle)
	f.addTransition(types.StatusMoving, EventFinish, types.StatusIdle)
	f.addTransition(types.StatusIdle, EventChargeStart, types.StatusCharging)
	f.addTransition(types.StatusCharging, EventChargeDone, types.StatusIdle)
	f.addTransition(types.StatusIdle, EventBlock, types.StatusBlocked)
	f.addTransition(types.StatusProcessing, EventBlock, types.StatusBlocked)
	f.addTransition(types.StatusBlocked, EventUnblock, types.StatusIdle)
	// Fault can be injected from (almost) any state and always clears to IDLE;
	// dispatch-time code decides whether that's really safe for the device.
	for _, s := range []types.Status{
		types.StatusIdle, types.StatusProcessing, types.StatusMoving,
		types.StatusLoading, types.StatusUnloading, types.StatusBlocked,
	} {
		f.addTransition(s, EventFault, types.StatusFault)
	}
	f.addTransition(types.StatusFault, EventClear, types.StatusIdle)
	return f
}

func (f *FSM) addTransition(from types.Status, event Event, to types.Status) {
	if _, ok := f.transitions[from]; !ok {
		f.transitions[from] = make(map[Event]types.Status)
	}
	f.transitions[from][event] = to
}

// AddTransition lets a device extend the base table (e.g. AGV adds the
// LOADING transitions StationA..QualityCheck never need).
func (f *FSM) AddTransition(from types.Status, event Event, to types.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addTransition(from, event, to)
}

// OnEnter registers a callback invoked every time the FSM enters the given
// status.
func (f *FSM) OnEnter(status types.Status, cb func(deviceID string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callbacks[status] = append(f.callbacks[status], cb)
}

// Current returns the device's current status.
func (f *FSM) Current() types.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Fire attempts the transition for event from the current state. It is an
// error to fire an event with no matching transition from the current
// state — callers should check CanFire first when the transition is
// conditional on world state outside the FSM.
func (f *FSM) Fire(event Event) error {
	f.mu.Lock()
	next, ok := f.transitions[f.current][event]
	if !ok {
		cur := f.current
		f.mu.Unlock()
		return fmt.Errorf("fsm %s: invalid transition: event %s from state %s", f.deviceID, event, cur)
	}
	prev := f.current
	f.current = next
	f.mu.Unlock()

	_ = prev
	for _, cb := range f.callbacks[next] {
		cb(f.deviceID)
	}
	return nil
}

// CanFire reports whether event has a defined transition from the current
// state, without performing it.
func (f *FSM) CanFire(event Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.transitions[f.current][event]
	return ok
}

// Force sets the state directly, bypassing the transition table. Used only
// for fault injection, which the spec allows to fire "from any state".
func (f *FSM) Force(status types.Status) {
	f.mu.Lock()
	f.current = status
	f.mu.Unlock()
	for _, cb := range f.callbacks[status] {
		cb(f.deviceID)
	}
}
