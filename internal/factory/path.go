package factory

import "math"

// PathPoint names one of the discrete stops on an AGV corridor (spec.md §6.2).
type PathPoint string

const (
	P0  PathPoint = "P0"
	P1  PathPoint = "P1"
	P2  PathPoint = "P2"
	P3  PathPoint = "P3"
	P4  PathPoint = "P4"
	P5  PathPoint = "P5"
	P6  PathPoint = "P6"
	P7  PathPoint = "P7"
	P8  PathPoint = "P8"
	P9  PathPoint = "P9"
	P10 PathPoint = "P10"
)

// Coord is a nominal (x, y) position in meters, used only for energy and
// move-duration computation (spec.md §6.2).
type Coord struct {
	X, Y float64
}

// Corridor identifies which AGV's side of the line a path point belongs to.
type Corridor string

const (
	CorridorLower Corridor = "lower" // AGV_1
	CorridorUpper Corridor = "upper" // AGV_2
)

// agv1Coords and agv2Coords are the per-AGV coordinate tables from spec.md
// §6.2. The two AGVs share path-point names but occupy disjoint corridors
// (lower y≈15 vs upper y≈25), so each AGV looks up its own table.
var agv1Coords = map[PathPoint]Coord{
	P0: {5, 15}, P1: {12, 15}, P2: {25, 15}, P3: {32, 15}, P4: {45, 15},
	P5: {52, 15}, P6: {65, 10}, P7: {72, 15}, P8: {80, 15}, P9: {95, 15},
	P10: {10, 10},
}

var agv2Coords = map[PathPoint]Coord{
	P0: {5, 25}, P1: {12, 25}, P2: {25, 25}, P3: {32, 25}, P4: {45, 25},
	P5: {52, 25}, P6: {65, 25}, P7: {72, 25}, P8: {80, 25}, P9: {95, 25},
	P10: {10, 30},
}

// CoordsFor returns the coordinate table for the given corridor.
func CoordsFor(c Corridor) map[PathPoint]Coord {
	if c == CorridorUpper {
		return agv2Coords
	}
	return agv1Coords
}

// Distance returns the straight-line distance in meters between two path
// points on the given corridor.
func Distance(c Corridor, from, to PathPoint) float64 {
	coords := CoordsFor(c)
	a, aok := coords[from]
	b, bok := coords[to]
	if !aok || !bok {
		return 0
	}
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// TravelTime returns distance/speed — the move-duration formula spec.md
// §6.2 specifies directly, rather than a hand-tuned timing table.
func TravelTime(c Corridor, from, to PathPoint, speedMPS float64) float64 {
	if speedMPS <= 0 {
		return 0
	}
	return Distance(c, from, to) / speedMPS
}

// DeviceAtPoint names which device occupies each path point (spec.md §6.2).
// QualityCheck occupies both P7 (input) and P8 (output).
func DeviceAtPoint(p PathPoint) string {
	switch p {
	case P0:
		return "RawMaterial"
	case P1:
		return "StationA"
	case P2:
		return "Conveyor_AB"
	case P3:
		return "StationB"
	case P4:
		return "Conveyor_BC"
	case P5:
		return "StationC"
	case P6:
		return "Conveyor_CQ"
	case P7, P8:
		return "QualityCheck"
	case P9:
		return "Warehouse"
	case P10:
		return "Charging"
	default:
		return ""
	}
}

// ValidPathPoint reports whether p is a known path point. Every point exists
// on both corridors (AGVs share topology, not coordinates), so AGV_1's table
// answers for both; corridor restrictions (spec.md §4.4) are checked
// separately by agvMayVisit.
func ValidPathPoint(p PathPoint) bool {
	_, ok := agv1Coords[p]
	return ok
}
