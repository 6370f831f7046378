package factory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nldf-sim/factory-kernel/internal/engine"
	"github.com/nldf-sim/factory-kernel/internal/types"
)

// fakeReceiver is a Receiver whose acceptance can be toggled, for testing
// backpressure without standing up a real downstream device.
type fakeReceiver struct {
	id     string
	accept bool
	got    []*types.Product
}

func (f *fakeReceiver) ID() string { return f.id }
func (f *fakeReceiver) TryAccept(clock *engine.Clock, p *types.Product) bool {
	if !f.accept {
		return false
	}
	f.got = append(f.got, p)
	return true
}

func fixedTimes(d float64) map[types.ProductType]ProcRange {
	return map[types.ProductType]ProcRange{
		types.ProductP1: {Min: d, Max: d},
		types.ProductP2: {Min: d, Max: d},
		types.ProductP3: {Min: d, Max: d},
	}
}

func TestStationTryEnqueueRejectsWhenFullOrFaulted(t *testing.T) {
	s := NewStation("s1", "line1", fixedTimes(10))
	s.Downstream = &fakeReceiver{id: "sink", accept: false}
	clock := engine.NewClock()

	for i := 0; i < 3; i++ {
		require.True(t, s.TryEnqueue(clock, types.NewProduct(types.ProductP1, "o1", "line1", 0)))
	}
	assert.False(t, s.TryEnqueue(clock, types.NewProduct(types.ProductP1, "o1", "line1", 0)))

	s2 := NewStation("s2", "line1", fixedTimes(10))
	s2.Fault(100)
	assert.False(t, s2.TryEnqueue(clock, types.NewProduct(types.ProductP1, "o1", "line1", 0)))
}

func TestStationProcessesAndHandsOffToDownstream(t *testing.T) {
	s := NewStation("s1", "line1", fixedTimes(10))
	sink := &fakeReceiver{id: "sink", accept: true}
	s.Downstream = sink

	clock := engine.NewClock()
	p := types.NewProduct(types.ProductP1, "o1", "line1", 0)
	require.True(t, s.TryEnqueue(clock, p))
	assert.Equal(t, types.StatusProcessing, s.Status())

	clock.Run(context.Background(), 100)

	assert.Equal(t, types.StatusIdle, s.Status())
	require.Len(t, sink.got, 1)
	assert.Same(t, p, sink.got[0])
	assert.Nil(t, s.Output)
	assert.Equal(t, 10.0, s.WorkingSeconds)
}

func TestStationBlocksWhenDownstreamRejectsThenResumesOnWake(t *testing.T) {
	s := NewStation("s1", "line1", fixedTimes(5))
	sink := &fakeReceiver{id: "sink", accept: false}
	s.Downstream = sink

	clock := engine.NewClock()
	p := types.NewProduct(types.ProductP1, "o1", "line1", 0)
	require.True(t, s.TryEnqueue(clock, p))
	clock.Run(context.Background(), 100)

	assert.Equal(t, types.StatusBlocked, s.Status())
	assert.Same(t, p, s.Output)

	sink.accept = true
	clock.Waits.Wake(recvKey(sink.ID()))

	assert.Equal(t, types.StatusIdle, s.Status())
	assert.Nil(t, s.Output)
	require.Len(t, sink.got, 1)
}

func TestStationStartsNextQueuedItemAfterHandoff(t *testing.T) {
	s := NewStation("s1", "line1", fixedTimes(5))
	sink := &fakeReceiver{id: "sink", accept: true}
	s.Downstream = sink

	clock := engine.NewClock()
	p1 := types.NewProduct(types.ProductP1, "o1", "line1", 0)
	p2 := types.NewProduct(types.ProductP1, "o1", "line1", 0)
	require.True(t, s.TryEnqueue(clock, p1))
	require.True(t, s.TryEnqueue(clock, p2))

	clock.Run(context.Background(), 100)

	require.Len(t, sink.got, 2)
	assert.Same(t, p1, sink.got[0])
	assert.Same(t, p2, sink.got[1])
}

func TestStationRouteOverrideRedirectsOutput(t *testing.T) {
	s := NewStation("s1", "line1", fixedTimes(5))
	defaultSink := &fakeReceiver{id: "default", accept: true}
	overrideSink := &fakeReceiver{id: "override", accept: true}
	s.Downstream = defaultSink
	s.RouteOverride = func(p *types.Product) Receiver {
		if p.Type == types.ProductP3 {
			return overrideSink
		}
		return nil
	}

	clock := engine.NewClock()
	p := types.NewProduct(types.ProductP3, "o1", "line1", 0)
	require.True(t, s.TryEnqueue(clock, p))
	clock.Run(context.Background(), 100)

	assert.Len(t, overrideSink.got, 1)
	assert.Len(t, defaultSink.got, 0)
}

func TestResumeAfterFaultRetriesStagedHandoff(t *testing.T) {
	s := NewStation("s1", "line1", fixedTimes(5))
	sink := &fakeReceiver{id: "sink", accept: false}
	s.Downstream = sink

	clock := engine.NewClock()
	p := types.NewProduct(types.ProductP1, "o1", "line1", 0)
	require.True(t, s.TryEnqueue(clock, p))
	clock.Run(context.Background(), 100)
	require.Equal(t, types.StatusBlocked, s.Status())

	s.Fault(200)
	sink.accept = true
	s.ResumeAfterFault(clock)

	assert.Equal(t, types.StatusIdle, s.Status())
	assert.Nil(t, s.Output)
	require.Len(t, sink.got, 1)
}
