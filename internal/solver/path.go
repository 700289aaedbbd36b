// Package solver implements the multi-commodity flow solver that turns a
// link graph component plus per-pair demand into a flow assignment and,
// per station, a map of destination-keyed routing shares.
package solver

import (
	"math"

	"cargodist/internal/linkgraph"
)

// =============================================================================
// Path Arena
// =============================================================================

// PathID is an index into a job's path arena. Path nodes reference each
// other by index rather than pointer so that freed slots can be reused
// without aliasing hazards.
type PathID int32

// InvalidPath marks the absence of a path reference.
const InvalidPath PathID = -1

// Annotation sentinels. A node that no discovered path reaches keeps the
// disconnected values from initialization.
const (
	distanceDisconnected = math.MaxUint64
	freeCapDisconnected  = math.MinInt64
)

// pathNode is one hop of a candidate route. Nodes form a tree rooted at
// the Dijkstra source: multiple destinations share their common prefix.
type pathNode struct {
	// node is the graph node this hop arrives at.
	node linkgraph.NodeID

	// origin is the source node of the Dijkstra run that produced this path.
	origin linkgraph.NodeID

	// parent is the previous hop, InvalidPath only at the source.
	parent PathID

	// distance is the cumulative distance annotation.
	distance uint64

	// capacity and freeCapacity are the minimum total and minimum residual
	// capacity seen along the path so far. freeCapacity can go negative
	// once flow oversaturates a hop.
	capacity     int64
	freeCapacity int64

	// flow is the cargo currently assigned along this specific segment.
	flow uint64

	// numChildren counts path nodes whose parent chain runs through this
	// one; only childless zero-flow nodes may be freed.
	numChildren uint32
}

// pathArena is a slab of path-node slots with a free list. One Dijkstra
// run allocates a node per graph node; reusing slots across runs keeps
// the solver free of per-run allocation churn.
type pathArena struct {
	slots []pathNode
	free  []PathID
}

func newPathArena(capacity int) *pathArena {
	return &pathArena{
		slots: make([]pathNode, 0, capacity),
		free:  make([]PathID, 0, capacity),
	}
}

// alloc returns a slot initialized for the given node. A source node
// starts connected with unlimited capacity; every other node starts
// disconnected.
func (a *pathArena) alloc(node, origin linkgraph.NodeID, isSource bool) PathID {
	var id PathID
	if n := len(a.free); n > 0 {
		id = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		a.slots = append(a.slots, pathNode{})
		id = PathID(len(a.slots) - 1)
	}

	slot := &a.slots[id]
	*slot = pathNode{
		node:         node,
		origin:       origin,
		parent:       InvalidPath,
		distance:     distanceDisconnected,
		capacity:     0,
		freeCapacity: freeCapDisconnected,
	}
	if isSource {
		slot.distance = 0
		slot.capacity = math.MaxInt64
		slot.freeCapacity = math.MaxInt64
	}
	return id
}

// get resolves a path index to its slot.
func (a *pathArena) get(id PathID) *pathNode {
	return &a.slots[id]
}

// release frees a slot for reuse. The slot must have no children.
func (a *pathArena) release(id PathID) {
	a.free = append(a.free, id)
}

// reset drops all slots, live or free, for the next Dijkstra run.
func (a *pathArena) reset() {
	a.slots = a.slots[:0]
	a.free = a.free[:0]
}

// fork re-parents the path node id onto base, extending base's prefix by
// one hop with the given edge capacity, residual capacity and distance.
// Child counters on the old and new parents are kept consistent.
func (a *pathArena) fork(id, base PathID, edgeCap, edgeFree int64, edgeDist uint64) {
	node := a.get(id)
	parent := a.get(base)

	node.capacity = min(parent.capacity, edgeCap)
	node.freeCapacity = min(parent.freeCapacity, edgeFree)
	node.distance = parent.distance + edgeDist

	if node.parent != base {
		if node.parent != InvalidPath {
			a.get(node.parent).numChildren--
		}
		node.parent = base
		parent.numChildren++
	}
}

// detach unhooks a path node from its parent without freeing it.
func (a *pathArena) detach(id PathID) {
	node := a.get(id)
	if node.parent != InvalidPath {
		a.get(node.parent).numChildren--
		node.parent = InvalidPath
	}
}

// prune frees every zero-flow childless node in the given set, walking up
// each freed node's parent chain since freeing a leaf may leave its
// parent childless in turn. paths is indexed by graph node; entries are
// reset to InvalidPath as their slots are freed.
func (a *pathArena) prune(paths []PathID) {
	for i := range paths {
		id := paths[i]
		if id == InvalidPath {
			continue
		}
		for id != InvalidPath {
			current := a.get(id)
			if current.flow != 0 || current.numChildren != 0 {
				break
			}
			parent := current.parent
			if int(current.node) < len(paths) && paths[current.node] == id {
				paths[current.node] = InvalidPath
			}
			a.detach(id)
			a.release(id)
			id = parent
		}
	}
}
