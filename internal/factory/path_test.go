package factory

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceIsEuclidean(t *testing.T) {
	d := Distance(CorridorLower, P0, P1)
	want := math.Hypot(12-5, 15-15)
	assert.InDelta(t, want, d, 1e-9)
}

func TestDistanceZeroForUnknownPoint(t *testing.T) {
	d := Distance(CorridorLower, P0, PathPoint("nope"))
	assert.Equal(t, 0.0, d)
}

func TestTravelTimeIsDistanceOverSpeed(t *testing.T) {
	dist := Distance(CorridorUpper, P0, P9)
	got := TravelTime(CorridorUpper, P0, P9, 2.0)
	assert.InDelta(t, dist/2.0, got, 1e-9)
}

func TestTravelTimeZeroSpeedIsZero(t *testing.T) {
	assert.Equal(t, 0.0, TravelTime(CorridorLower, P0, P1, 0))
}

func TestValidPathPoint(t *testing.T) {
	assert.True(t, ValidPathPoint(P0))
	assert.True(t, ValidPathPoint(P10))
	assert.False(t, ValidPathPoint(PathPoint("P99")))
}

func TestCorridorsHaveDisjointYCoordinates(t *testing.T) {
	lower := CoordsFor(CorridorLower)[P1]
	upper := CoordsFor(CorridorUpper)[P1]
	assert.Equal(t, lower.X, upper.X)
	assert.NotEqual(t, lower.Y, upper.Y)
}
