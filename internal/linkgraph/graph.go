// Package linkgraph maintains the per-cargo station link graphs: which
// stations supply a cargo, which accept it, and the observed capacity and
// usage of the transport links between them.
package linkgraph

import (
	"fmt"
	"sort"

	"cargodist/pkg/domain"
)

// =============================================================================
// Identifiers and Update Modes
// =============================================================================

// NodeID is a dense, zero-based node index. It is only valid within one
// Graph instance: RemoveNode moves the highest index into the freed slot,
// so externally cached indices must be fixed up through RemoveNode's
// return value.
type NodeID uint16

// InvalidNode marks the absence of a node reference.
const InvalidNode NodeID = 0xFFFF

// EdgeUpdateMode selects the update policy and which of an edge's
// last-update timestamps a single UpdateEdge call touches. Policy bits
// (Increase, Refresh) are mutually exclusive; timestamp bits combine
// freely with either policy.
type EdgeUpdateMode uint8

const (
	// ModeIncrease adds the given capacity and usage onto the edge.
	ModeIncrease EdgeUpdateMode = 1 << iota
	// ModeRefresh raises capacity and usage to at least the given values.
	ModeRefresh
	// ModeUnrestricted marks the unrestricted-route timestamp for update.
	ModeUnrestricted
	// ModeRestricted marks the route-constrained timestamp for update.
	ModeRestricted
	// ModeAircraft marks the aircraft timestamp for update.
	ModeAircraft
)

// Increase reports whether the additive policy bit is set.
func (m EdgeUpdateMode) Increase() bool { return m&ModeIncrease != 0 }

// Refresh reports whether the raise-to-at-least policy bit is set.
func (m EdgeUpdateMode) Refresh() bool { return m&ModeRefresh != 0 }

// Unrestricted reports whether the unrestricted timestamp bit is set.
func (m EdgeUpdateMode) Unrestricted() bool { return m&ModeUnrestricted != 0 }

// Restricted reports whether the restricted timestamp bit is set.
func (m EdgeUpdateMode) Restricted() bool { return m&ModeRestricted != 0 }

// Aircraft reports whether the aircraft timestamp bit is set.
func (m EdgeUpdateMode) Aircraft() bool { return m&ModeAircraft != 0 }

// =============================================================================
// Nodes and Edges
// =============================================================================

// Node is one station's record within a cargo's link graph.
type Node struct {
	// Tile is the station's map coordinate, cached for distance calculations.
	Tile domain.Tile

	// Station is the opaque reference back to the station.
	Station domain.StationID

	// Supply is the cargo supplied here since the last compression.
	Supply uint64

	// Demand is how much cargo this node currently accepts.
	Demand uint64

	// LastUpdate is the date of the last supply update touching this node.
	LastUpdate domain.Date
}

// EdgeKey identifies a directed edge by its ordered node pair. A key with
// From == To is the local-consumption sentinel and never owns a stored edge.
type EdgeKey struct {
	From NodeID
	To   NodeID
}

// Edge holds the observed statistics of one directed transport link.
//
// Capacity == 0 never occurs on a stored edge: the map entry is the
// existence marker, and UpdateEdge rejects zero capacities.
type Edge struct {
	// Capacity is the maximum throughput observed since the last reset.
	Capacity uint64

	// Usage is the cargo actually moved over the link.
	Usage uint64

	// TravelTimeSum is the capacity-weighted cumulative travel time.
	// Divide by Capacity for the mean travel time.
	TravelTimeSum uint64

	// The three last-update dates are tracked independently because
	// different transport subtypes refresh a shared edge at different
	// cadences.
	LastUnrestricted domain.Date
	LastRestricted   domain.Date
	LastAircraft     domain.Date
}

// TravelTime returns the mean travel time over the edge.
func (e *Edge) TravelTime() uint64 {
	if e.Capacity == 0 {
		return 0
	}
	return e.TravelTimeSum / e.Capacity
}

// =============================================================================
// Graph
// =============================================================================

// Graph is the mutable link graph of one cargo type.
//
// Graph is not safe for concurrent use; the simulation driver mutates it
// outside of any active solve, and solver jobs work on private snapshots.
type Graph struct {
	cargo           domain.CargoID
	lastCompression domain.Date

	nodes []Node
	edges map[EdgeKey]*Edge
}

// New creates an empty link graph for the given cargo.
func New(cargo domain.CargoID, now domain.Date) *Graph {
	return &Graph{
		cargo:           cargo,
		lastCompression: now,
		edges:           make(map[EdgeKey]*Edge),
	}
}

// Cargo returns the cargo type this graph tracks.
func (g *Graph) Cargo() domain.CargoID { return g.cargo }

// LastCompression returns the date supply and capacity were last halved.
func (g *Graph) LastCompression() domain.Date { return g.lastCompression }

// Size returns the number of nodes.
func (g *Graph) Size() int { return len(g.nodes) }

// Node returns a pointer to the node at the given index.
func (g *Graph) Node(id NodeID) *Node {
	return &g.nodes[id]
}

// EdgeCount returns the number of stored edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Edge returns the stored edge for (from, to), or nil if none exists.
// The sentinel pair (x, x) never has a stored edge.
func (g *Graph) Edge(from, to NodeID) *Edge {
	return g.edges[EdgeKey{From: from, To: to}]
}

// EdgeKeys returns all edge keys sorted by (From, To). Algorithms iterate
// this instead of the edge map to stay deterministic.
func (g *Graph) EdgeKeys() []EdgeKey {
	keys := make([]EdgeKey, 0, len(g.edges))
	for key := range g.edges {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].From != keys[j].From {
			return keys[i].From < keys[j].From
		}
		return keys[i].To < keys[j].To
	})
	return keys
}

// =============================================================================
// Node Operations
// =============================================================================

// AddNode appends a node for the given station and returns its fresh
// index. Demand reflects the station's current acceptance state; the
// last-update date starts out as "never". Existing edges are unaffected.
func (g *Graph) AddNode(station domain.StationID, tile domain.Tile, demand uint64) NodeID {
	if len(g.nodes) >= int(InvalidNode) {
		panic("linkgraph: node capacity exhausted")
	}
	g.nodes = append(g.nodes, Node{
		Tile:       tile,
		Station:    station,
		Demand:     demand,
		LastUpdate: domain.DateNever,
	})
	return NodeID(len(g.nodes) - 1)
}

// UpdateSupply adds freshly produced cargo to a node's supply total and
// stamps the node's last-update date.
func (g *Graph) UpdateSupply(id NodeID, amount uint64, now domain.Date) {
	node := &g.nodes[id]
	node.Supply += amount
	node.LastUpdate = now
}

// SetDemand replaces a node's acceptance amount.
func (g *Graph) SetDemand(id NodeID, demand uint64) {
	g.nodes[id].Demand = demand
}

// RemoveNode erases the node at id together with every edge touching it,
// then moves the node at the highest index into the freed slot so that
// indices stay dense. It returns the station whose node was moved (and
// now lives at id), or InvalidStation when id was the last index and
// nothing moved. The caller must update that station's cached node index.
func (g *Graph) RemoveNode(id NodeID) domain.StationID {
	if int(id) >= len(g.nodes) {
		panic(fmt.Sprintf("linkgraph: RemoveNode(%d) out of range, size %d", id, len(g.nodes)))
	}
	last := NodeID(len(g.nodes) - 1)

	for key := range g.edges {
		if key.From == id || key.To == id {
			delete(g.edges, key)
		}
	}

	moved := domain.InvalidStation
	if id != last {
		// Re-key the last node's edges onto the freed slot. The pairs
		// touching id are already gone, so no key can collapse onto the
		// (id, id) sentinel here.
		var rekey []EdgeKey
		for key := range g.edges {
			if key.From == last || key.To == last {
				rekey = append(rekey, key)
			}
		}
		for _, key := range rekey {
			edge := g.edges[key]
			delete(g.edges, key)
			newKey := key
			if newKey.From == last {
				newKey.From = id
			}
			if newKey.To == last {
				newKey.To = id
			}
			g.edges[newKey] = edge
		}

		g.nodes[id] = g.nodes[last]
		moved = g.nodes[id].Station
	}

	g.nodes = g.nodes[:last]
	return moved
}

// =============================================================================
// Edge Operations
// =============================================================================

// UpdateEdge records an observation of the link from -> to. The edge is
// created on first contact and updated per the policy bits in mode
// afterwards. Calling with capacity == 0, usage > capacity, or from == to
// on a nonexistent edge is a programmer error and panics.
func (g *Graph) UpdateEdge(from, to NodeID, capacity, usage, travelTime uint64, mode EdgeUpdateMode, now domain.Date) {
	if capacity == 0 {
		panic("linkgraph: UpdateEdge with zero capacity")
	}
	if usage > capacity {
		panic(fmt.Sprintf("linkgraph: UpdateEdge usage %d exceeds capacity %d", usage, capacity))
	}

	key := EdgeKey{From: from, To: to}
	edge := g.edges[key]
	if edge == nil {
		if from == to {
			panic("linkgraph: UpdateEdge would create a self-edge")
		}
		edge = &Edge{
			Capacity:         capacity,
			Usage:            usage,
			TravelTimeSum:    travelTime * capacity,
			LastUnrestricted: domain.DateNever,
			LastRestricted:   domain.DateNever,
			LastAircraft:     domain.DateNever,
		}
		g.edges[key] = edge
		edge.stamp(mode, now)
		return
	}

	edge.update(capacity, usage, travelTime, mode, now)
}

// update applies one of the two mutually exclusive policies to an
// existing edge and stamps the selected timestamps.
func (e *Edge) update(capacity, usage, travelTime uint64, mode EdgeUpdateMode, now domain.Date) {
	switch {
	case mode.Increase():
		if e.TravelTimeSum == 0 {
			// No prior travel-time data: seed the sum from the combined
			// capacity so the mean comes out as the supplied value.
			e.TravelTimeSum = (e.Capacity + capacity) * travelTime
		} else if travelTime == 0 {
			// Caller supplied no new measurement: extend the existing
			// mean over the added capacity.
			e.TravelTimeSum += e.TravelTimeSum / e.Capacity * capacity
		} else {
			e.TravelTimeSum += travelTime * capacity
		}
		e.Capacity += capacity
		e.Usage += usage

	case mode.Refresh():
		if e.TravelTimeSum == 0 {
			e.Capacity = max(e.Capacity, capacity)
			e.TravelTimeSum = travelTime * e.Capacity
		} else if capacity > e.Capacity {
			e.TravelTimeSum = e.TravelTimeSum / e.Capacity * capacity
			e.Capacity = capacity
		}
		e.Usage = max(e.Usage, usage)

	default:
		panic(fmt.Sprintf("linkgraph: edge update without policy bit, mode %#x", uint8(mode)))
	}

	e.stamp(mode, now)
}

func (e *Edge) stamp(mode EdgeUpdateMode, now domain.Date) {
	if mode.Unrestricted() {
		e.LastUnrestricted = now
	}
	if mode.Restricted() {
		e.LastRestricted = now
	}
	if mode.Aircraft() {
		e.LastAircraft = now
	}
}

// SetUsage overwrites an edge's usage with solver-assigned flow, clamped
// at the edge's capacity since the second solver pass may overcommit.
// Unknown edges are ignored.
func (g *Graph) SetUsage(from, to NodeID, usage uint64) {
	edge := g.Edge(from, to)
	if edge == nil {
		return
	}
	edge.Usage = min(usage, edge.Capacity)
}

// RemoveEdge erases the edge from -> to. Calls with from == to are
// no-ops to protect the local-consumption sentinel.
func (g *Graph) RemoveEdge(from, to NodeID) {
	if from == to {
		return
	}
	delete(g.edges, EdgeKey{From: from, To: to})
}

// =============================================================================
// Connectivity
// =============================================================================

// Components partitions the node set into connected components, treating
// edges as undirected. Components and their member lists are sorted by
// node ID, so the result is deterministic. Solver jobs are dispatched per
// component.
func (g *Graph) Components() [][]NodeID {
	n := len(g.nodes)
	if n == 0 {
		return nil
	}

	adjacency := make([][]NodeID, n)
	for key := range g.edges {
		adjacency[key.From] = append(adjacency[key.From], key.To)
		adjacency[key.To] = append(adjacency[key.To], key.From)
	}
	for _, neighbors := range adjacency {
		sort.Slice(neighbors, func(i, j int) bool { return neighbors[i] < neighbors[j] })
	}

	visited := make([]bool, n)
	var components [][]NodeID
	for start := 0; start < n; start++ {
		if visited[start] {
			continue
		}
		var component []NodeID
		queue := []NodeID{NodeID(start)}
		visited[start] = true
		for len(queue) > 0 {
			node := queue[0]
			queue = queue[1:]
			component = append(component, node)
			for _, next := range adjacency[node] {
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}
		sort.Slice(component, func(i, j int) bool { return component[i] < component[j] })
		components = append(components, component)
	}
	return components
}
