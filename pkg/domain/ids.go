// Package domain defines the opaque identifiers and small value types shared
// by the cargo distribution core: cargo types, stations, tiles and the
// economy-date timestamps attached to graph nodes and edges.
//
// The core never dereferences these identifiers; stations, cargo types and
// tiles are owned by the surrounding simulation. The only structure the core
// relies on is the tile coordinate, which feeds the distance heuristic used
// by the solver.
package domain

import "fmt"

// CargoID identifies one cargo type. Each cargo type owns exactly one link
// graph per connected part of the transport network.
type CargoID uint8

// InvalidCargo marks the absence of a cargo type.
const InvalidCargo CargoID = 0xFF

// StationID identifies a station in the surrounding simulation.
// The core treats it as opaque.
type StationID uint16

// InvalidStation marks the absence of a station.
const InvalidStation StationID = 0xFFFF

// IsValid reports whether the station ID refers to a real station.
func (s StationID) IsValid() bool { return s != InvalidStation }

// Tile is the map coordinate of a station, cached on graph nodes so the
// solver can compute distances without consulting the map.
type Tile struct {
	X int
	Y int
}

// String implements fmt.Stringer.
func (t Tile) String() string { return fmt.Sprintf("(%d,%d)", t.X, t.Y) }

// DistanceMaxPlusManhattan returns the larger of the two coordinate deltas
// plus the sum of both. This over-weights diagonal separation compared to a
// plain Manhattan distance and is the metric used for link graph edges.
func DistanceMaxPlusManhattan(a, b Tile) uint {
	dx := absDelta(a.X, b.X)
	dy := absDelta(a.Y, b.Y)
	if dx > dy {
		return uint(dx + dx + dy)
	}
	return uint(dy + dx + dy)
}

func absDelta(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
