package solver

import (
	"container/heap"
	"math"

	"cargodist/internal/linkgraph"
	"cargodist/pkg/domain"
)

// =============================================================================
// Annotation Strategies
// =============================================================================

// annotationKind selects what the Dijkstra frontier optimizes for. Only
// two strategies exist, so the engine branches on an enum instead of
// dispatching through an interface.
type annotationKind uint8

const (
	// annotateDistance prefers capacity-having paths, breaking ties by
	// cumulative distance. Used by the first solver pass.
	annotateDistance annotationKind = iota
	// annotateCapacity prefers the highest residual-capacity ratio,
	// breaking exact ties by distance. Used by the second pass.
	annotateCapacity
)

// edgeIterKind selects which outgoing edges a node expansion considers.
type edgeIterKind uint8

const (
	// iterAllEdges walks every outgoing hop, discovering fresh capacity.
	iterAllEdges edgeIterKind = iota
	// iterFlowEdges walks only hops already carrying flow of the current
	// source, consolidating established routes instead of opening new ones.
	iterFlowEdges
)

// Capacity-ratio transform constants. The clamp bounds keep the
// multiplication below from overflowing.
const (
	capRatioMultiplier       = 16
	capRatioMinFree    int64 = math.MinInt64 / capRatioMultiplier
	capRatioMaxFree    int64 = math.MaxInt64 / capRatioMultiplier
)

// capacityRatio maps (free, total) capacity onto a comparable scalar.
// The multiplier keeps small differences in free capacity visible after
// the integer division by total.
func capacityRatio(free, total int64) int64 {
	clamped := min(max(free, capRatioMinFree), capRatioMaxFree)
	return clamped * capRatioMultiplier / max(total, 1)
}

// isBetterDistance decides whether extending base by an edge with the
// given residual capacity and distance beats the incumbent path. A
// disconnected candidate never wins; among connected paths, ones with
// free capacity win over saturated ones, and distance breaks ties.
func isBetterDistance(incumbent, base *pathNode, edgeFree int64, edgeDist uint64) bool {
	if base.distance == distanceDisconnected {
		return false
	}
	if incumbent.distance == distanceDisconnected {
		return true
	}

	// A candidate with capacity beats a saturated incumbent outright and a
	// capacity-having incumbent on distance.
	if edgeFree > 0 && base.freeCapacity > 0 {
		return incumbent.freeCapacity <= 0 || incumbent.distance > base.distance+edgeDist
	}

	// The candidate runs out of capacity somewhere. Keep an incumbent
	// that still has some; otherwise compare plain distance.
	if incumbent.freeCapacity > 0 {
		return false
	}
	return incumbent.distance > base.distance+edgeDist
}

// isBetterCapacity compares capacity ratios, falling back to distance on
// exact ties. A disconnected incumbent carries the most negative ratio
// possible and loses to any connected candidate.
func isBetterCapacity(incumbent, base *pathNode, edgeCap, edgeFree int64, edgeDist uint64) bool {
	incumbentRatio := capacityRatio(incumbent.freeCapacity, incumbent.capacity)
	candidateRatio := capacityRatio(min(base.freeCapacity, edgeFree), min(base.capacity, edgeCap))
	if candidateRatio == incumbentRatio {
		if base.distance == distanceDisconnected {
			return false
		}
		return incumbent.distance > base.distance+edgeDist
	}
	return candidateRatio > incumbentRatio
}

// =============================================================================
// Frontier
// =============================================================================

// frontierItem is one queued annotation snapshot. Improvements push a
// fresh item instead of updating in place; stale items are recognized on
// pop by comparing against the node's current annotation.
type frontierItem struct {
	anno int64
	dist uint64
	node linkgraph.NodeID
}

// frontier is the Dijkstra open set. Ordering is by annotation value
// with node ID as the deterministic tie-break; pointer identity or map
// order must never influence results because the whole simulation relies
// on reproducible solves.
type frontier struct {
	kind  annotationKind
	items []frontierItem
}

func (f *frontier) Len() int { return len(f.items) }

func (f *frontier) Less(i, j int) bool {
	a, b := f.items[i], f.items[j]
	switch f.kind {
	case annotateDistance:
		if a.dist != b.dist {
			return a.dist < b.dist
		}
	default:
		if a.anno != b.anno {
			return a.anno > b.anno
		}
	}
	return a.node < b.node
}

func (f *frontier) Swap(i, j int) { f.items[i], f.items[j] = f.items[j], f.items[i] }

func (f *frontier) Push(x any) { f.items = append(f.items, x.(frontierItem)) }

func (f *frontier) Pop() any {
	last := len(f.items) - 1
	item := f.items[last]
	f.items = f.items[:last]
	return item
}

// =============================================================================
// Engine
// =============================================================================

// annotationOf snapshots the frontier ordering key of a path node.
func annotationOf(kind annotationKind, node *pathNode) frontierItem {
	item := frontierItem{dist: node.distance, node: node.node}
	if kind == annotateCapacity {
		item.anno = capacityRatio(node.freeCapacity, node.capacity)
	}
	return item
}

// dijkstra computes, for one source, the best path to every reachable
// node under the chosen annotation and edge-iteration strategy.
// saturation caps hop capacity as a percentage (0 = unlimited). On
// return, paths holds one arena index per graph node; unreachable nodes
// keep their disconnected annotation.
func (j *Job) dijkstra(source linkgraph.NodeID, kind annotationKind, edges edgeIterKind, saturation uint, paths []PathID) {
	j.arena.reset()
	for i := range j.nodes {
		id := linkgraph.NodeID(i)
		paths[i] = j.arena.alloc(id, source, id == source)
	}

	open := &frontier{kind: kind}
	heap.Push(open, annotationOf(kind, j.arena.get(paths[source])))

	for open.Len() > 0 {
		item := heap.Pop(open).(frontierItem)
		fromPath := j.arena.get(paths[item.node])

		// Skip entries outdated by a later improvement.
		if current := annotationOf(kind, fromPath); current != item {
			continue
		}
		from := item.node

		var neighbors []linkgraph.NodeID
		if edges == iterFlowEdges {
			neighbors = j.flowVias(source, from)
		} else {
			neighbors = j.nodes[from].neighbors
		}

		for _, to := range neighbors {
			if to == from {
				continue
			}
			hop := j.hop(from, to)
			if hop == nil {
				continue
			}

			edgeCap := int64(saturatedCap(hop.capacity, saturation))
			edgeFree := edgeCap - int64(hop.flow)

			// The +1 penalizes intermediate stops a little, so hops are
			// only taken when they actually shorten the route.
			edgeDist := uint64(domain.DistanceMaxPlusManhattan(j.nodes[from].tile, j.nodes[to].tile)) + 1

			incumbent := j.arena.get(paths[to])
			var better bool
			if kind == annotateDistance {
				better = isBetterDistance(incumbent, fromPath, edgeFree, edgeDist)
			} else {
				better = isBetterCapacity(incumbent, fromPath, edgeCap, edgeFree, edgeDist)
			}
			if better {
				j.arena.fork(paths[to], paths[from], edgeCap, edgeFree, edgeDist)
				heap.Push(open, annotationOf(kind, incumbent))
			}
		}
	}
}
