package solver

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaAlloc(t *testing.T) {
	arena := newPathArena(4)

	src := arena.alloc(0, 0, true)
	other := arena.alloc(1, 0, false)

	source := arena.get(src)
	assert.Equal(t, uint64(0), source.distance)
	assert.Equal(t, int64(math.MaxInt64), source.capacity)
	assert.Equal(t, int64(math.MaxInt64), source.freeCapacity)
	assert.Equal(t, InvalidPath, source.parent)

	node := arena.get(other)
	assert.Equal(t, uint64(distanceDisconnected), node.distance)
	assert.Equal(t, int64(freeCapDisconnected), node.freeCapacity)
	assert.Equal(t, int64(0), node.capacity)
}

func TestArenaForkPropagatesMinima(t *testing.T) {
	arena := newPathArena(4)
	src := arena.alloc(0, 0, true)
	mid := arena.alloc(1, 0, false)
	leaf := arena.alloc(2, 0, false)

	arena.fork(mid, src, 100, 80, 5)
	arena.fork(leaf, mid, 40, 60, 7)

	node := arena.get(leaf)
	assert.Equal(t, uint64(12), node.distance)
	// Capacity is the minimum along the chain, free capacity likewise.
	assert.Equal(t, int64(40), node.capacity)
	assert.Equal(t, int64(60), node.freeCapacity)

	assert.Equal(t, uint32(1), arena.get(src).numChildren)
	assert.Equal(t, uint32(1), arena.get(mid).numChildren)
}

func TestArenaForkReparent(t *testing.T) {
	arena := newPathArena(4)
	src := arena.alloc(0, 0, true)
	a := arena.alloc(1, 0, false)
	b := arena.alloc(2, 0, false)
	leaf := arena.alloc(3, 0, false)

	arena.fork(a, src, 10, 10, 1)
	arena.fork(b, src, 10, 10, 1)
	arena.fork(leaf, a, 10, 10, 1)
	require.Equal(t, uint32(1), arena.get(a).numChildren)

	// A better route through b moves the leaf over.
	arena.fork(leaf, b, 10, 10, 1)

	assert.Equal(t, uint32(0), arena.get(a).numChildren)
	assert.Equal(t, uint32(1), arena.get(b).numChildren)
	assert.Equal(t, b, arena.get(leaf).parent)
}

func TestArenaPruneFreesZeroFlowChains(t *testing.T) {
	arena := newPathArena(4)
	paths := []PathID{
		arena.alloc(0, 0, true),
		arena.alloc(1, 0, false),
		arena.alloc(2, 0, false),
	}
	arena.fork(paths[1], paths[0], 10, 10, 1)
	arena.fork(paths[2], paths[1], 10, 10, 1)

	arena.prune(paths)

	// Nothing carries flow, so the whole chain is released.
	for _, id := range paths {
		assert.Equal(t, InvalidPath, id)
	}
	assert.Len(t, arena.free, 3)
}

func TestArenaPruneKeepsFlowCarriers(t *testing.T) {
	arena := newPathArena(4)
	paths := []PathID{
		arena.alloc(0, 0, true),
		arena.alloc(1, 0, false),
		arena.alloc(2, 0, false),
	}
	arena.fork(paths[1], paths[0], 10, 10, 1)
	arena.fork(paths[2], paths[1], 10, 10, 1)
	arena.get(paths[1]).flow = 5

	mid := paths[1]
	arena.prune(paths)

	// The flowless leaf goes; the flow-carrying segment and its prefix stay.
	assert.Equal(t, InvalidPath, paths[2])
	assert.Equal(t, mid, paths[1])
	assert.NotEqual(t, InvalidPath, paths[0])
	assert.Equal(t, uint32(0), arena.get(mid).numChildren)
}
