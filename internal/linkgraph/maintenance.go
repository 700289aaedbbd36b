package linkgraph

import (
	"cargodist/pkg/domain"
)

// =============================================================================
// Whole-Graph Maintenance
// =============================================================================

// scale rescales val from origAge to targetAge, keeping nonzero values at
// a floor of 1 so that rescaling never silently erases an observation.
func scale(val uint64, targetAge, origAge uint64) uint64 {
	if val == 0 {
		return 0
	}
	return max(1, val*targetAge/origAge)
}

// Merge destructively merges other into g. The other graph's supply,
// capacity, usage and travel-time values are rescaled by the ratio of the
// two graphs' ages since last compression, so a long-stale branch does
// not overstate its current relevance. Node indices from other are
// offset by g's prior size; the mapping is returned so callers can fix
// up the stations' cached node indices. Other must not be used afterwards.
func (g *Graph) Merge(other *Graph, now domain.Date) map[domain.StationID]NodeID {
	if other == nil || other == g {
		return nil
	}

	age := uint64(now.AgeSince(g.lastCompression))
	otherAge := uint64(now.AgeSince(other.lastCompression))
	first := NodeID(len(g.nodes))

	remapped := make(map[domain.StationID]NodeID, len(other.nodes))
	for i := range other.nodes {
		src := &other.nodes[i]
		id := g.AddNode(src.Station, src.Tile, src.Demand)
		node := &g.nodes[id]
		node.Supply = scale(src.Supply, age, otherAge)
		node.LastUpdate = src.LastUpdate
		remapped[src.Station] = id
	}

	for _, key := range other.EdgeKeys() {
		if key.From == key.To {
			continue
		}
		src := other.edges[key]
		capacity := scale(src.Capacity, age, otherAge)
		g.edges[EdgeKey{From: key.From + first, To: key.To + first}] = &Edge{
			Capacity:         capacity,
			Usage:            scale(src.Usage, age, otherAge),
			TravelTimeSum:    scale(src.TravelTimeSum, age, otherAge),
			LastUnrestricted: src.LastUnrestricted,
			LastRestricted:   src.LastRestricted,
			LastAircraft:     src.LastAircraft,
		}
	}

	if other.lastCompression < g.lastCompression {
		g.lastCompression = other.lastCompression
	}

	other.nodes = nil
	other.edges = nil
	return remapped
}

// compressCapacityThreshold is the capacity below which Compress rescales
// the travel-time sum through the exact mean instead of halving it. Small
// sums lose too much precision under plain halving; large ones would
// overflow the intermediate product of the exact form.
const compressCapacityThreshold = 1 << 16

// Compress halves every node's supply and every edge's capacity and
// usage, letting old observations decay so the graph stays bounded over
// a long simulation. Capacity keeps a floor of 1 so edges never vanish
// through compression alone. The compression date moves to the midpoint
// between now and the previous compression.
func (g *Graph) Compress(now domain.Date) {
	g.lastCompression = (now + g.lastCompression) / 2

	for i := range g.nodes {
		g.nodes[i].Supply /= 2
	}

	for _, edge := range g.edges {
		newCapacity := max(1, edge.Capacity/2)
		if edge.Capacity < compressCapacityThreshold {
			edge.TravelTimeSum = edge.TravelTimeSum / edge.Capacity * newCapacity
		} else if edge.TravelTimeSum != 0 {
			edge.TravelTimeSum = max(1, edge.TravelTimeSum/2)
		}
		edge.Capacity = newCapacity
		edge.Usage /= 2
	}
}

// ShiftDates moves every recorded date by interval. Only used when the
// simulation's date epoch itself is adjusted; "never" dates stay put.
func (g *Graph) ShiftDates(interval int64) {
	g.lastCompression = g.lastCompression.Shift(interval)
	for i := range g.nodes {
		g.nodes[i].LastUpdate = g.nodes[i].LastUpdate.Shift(interval)
	}
	for _, edge := range g.edges {
		edge.LastUnrestricted = edge.LastUnrestricted.Shift(interval)
		edge.LastRestricted = edge.LastRestricted.Shift(interval)
		edge.LastAircraft = edge.LastAircraft.Shift(interval)
	}
}
