package linkgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cargodist/pkg/domain"
)

func TestCompress(t *testing.T) {
	g := newTestGraph(2)
	g.UpdateSupply(0, 100, 200)
	g.UpdateEdge(0, 1, 80, 40, 6, ModeIncrease, 200)

	g.Compress(300)

	assert.Equal(t, domain.Date(200), g.LastCompression()) // (300+100)/2
	assert.Equal(t, uint64(50), g.Node(0).Supply)

	edge := g.Edge(0, 1)
	assert.Equal(t, uint64(40), edge.Capacity)
	assert.Equal(t, uint64(20), edge.Usage)
	// Proportional rescaling keeps the mean travel time.
	assert.Equal(t, uint64(6), edge.TravelTime())
}

func TestCompress_CapacityFloor(t *testing.T) {
	g := newTestGraph(2)
	g.UpdateEdge(0, 1, 1, 1, 3, ModeIncrease, 200)

	g.Compress(300)

	edge := g.Edge(0, 1)
	assert.Equal(t, uint64(1), edge.Capacity)
	assert.LessOrEqual(t, edge.Usage, edge.Capacity)
}

func TestCompress_Monotonicity(t *testing.T) {
	g := newTestGraph(3)
	g.UpdateEdge(0, 1, 7, 7, 2, ModeIncrease, 200)
	g.UpdateEdge(1, 2, 100, 99, 4, ModeIncrease, 200)

	before := map[EdgeKey]uint64{}
	for _, key := range g.EdgeKeys() {
		before[key] = g.edges[key].Capacity
	}

	g.Compress(300)

	for _, key := range g.EdgeKeys() {
		edge := g.edges[key]
		assert.Equal(t, max(1, before[key]/2), edge.Capacity)
		assert.LessOrEqual(t, edge.Usage, edge.Capacity)
	}
}

func TestCompress_LargeCapacityHalvesTravelTimeSum(t *testing.T) {
	g := newTestGraph(2)
	g.UpdateEdge(0, 1, 1<<17, 0, 10, ModeIncrease, 200)

	edge := g.Edge(0, 1)
	sumBefore := edge.TravelTimeSum

	g.Compress(300)

	assert.Equal(t, uint64(1<<16), edge.Capacity)
	assert.Equal(t, sumBefore/2, edge.TravelTimeSum)
}

func TestMerge_Conservation(t *testing.T) {
	now := domain.Date(300)

	a := New(1, 300) // fresh graph, age 1
	a.AddNode(10, domain.Tile{X: 0, Y: 0}, 0)
	a.AddNode(11, domain.Tile{X: 1, Y: 0}, 0)
	a.UpdateEdge(0, 1, 10, 5, 2, ModeIncrease, 300)

	b := New(1, 300)
	b.AddNode(20, domain.Tile{X: 5, Y: 0}, 0)
	b.AddNode(21, domain.Tile{X: 6, Y: 0}, 0)
	b.AddNode(22, domain.Tile{X: 7, Y: 0}, 0)
	b.UpdateSupply(0, 40, 300)
	b.UpdateEdge(0, 1, 30, 15, 4, ModeIncrease, 300)
	b.UpdateEdge(2, 0, 20, 0, 4, ModeIncrease, 300)

	remapped := a.Merge(b, now)

	require.Equal(t, 5, a.Size())

	// Every station from b got a new index offset by a's prior size.
	assert.Equal(t, NodeID(2), remapped[20])
	assert.Equal(t, NodeID(3), remapped[21])
	assert.Equal(t, NodeID(4), remapped[22])

	// Equal ages: values carry over unscaled.
	assert.Equal(t, uint64(40), a.Node(2).Supply)
	require.NotNil(t, a.Edge(2, 3))
	assert.Equal(t, uint64(30), a.Edge(2, 3).Capacity)
	assert.Equal(t, uint64(15), a.Edge(2, 3).Usage)
	require.NotNil(t, a.Edge(4, 2))

	// a's own data is untouched.
	assert.Equal(t, uint64(10), a.Edge(0, 1).Capacity)

	// No offset key may land on a self-edge.
	for _, key := range a.EdgeKeys() {
		assert.NotEqual(t, key.From, key.To)
	}
}

func TestMerge_AgeRescaling(t *testing.T) {
	now := domain.Date(400)

	a := New(1, 398) // age 2
	a.AddNode(10, domain.Tile{}, 0)

	b := New(1, 396) // age 4, twice as stale
	b.AddNode(20, domain.Tile{}, 0)
	b.AddNode(21, domain.Tile{}, 0)
	b.UpdateSupply(0, 100, 399)
	b.UpdateEdge(0, 1, 80, 40, 4, ModeIncrease, 399)

	a.Merge(b, now)

	// Stale values are scaled down by age ratio 2/4.
	assert.Equal(t, uint64(50), a.Node(1).Supply)
	edge := a.Edge(1, 2)
	require.NotNil(t, edge)
	assert.Equal(t, uint64(40), edge.Capacity)
	assert.Equal(t, uint64(20), edge.Usage)

	// The merged graph keeps the older compression date.
	assert.Equal(t, domain.Date(396), a.LastCompression())
}

func TestMerge_NonzeroValuesSurvive(t *testing.T) {
	now := domain.Date(400)

	a := New(1, 399) // age 1
	b := New(1, 300) // age 100
	b.AddNode(20, domain.Tile{}, 0)
	b.AddNode(21, domain.Tile{}, 0)
	b.UpdateEdge(0, 1, 5, 1, 1, ModeIncrease, 350)

	a.Merge(b, now)

	// Heavy downscaling floors at 1 instead of erasing the edge.
	edge := a.Edge(0, 1)
	require.NotNil(t, edge)
	assert.Equal(t, uint64(1), edge.Capacity)
}

func TestShiftDates(t *testing.T) {
	g := newTestGraph(2)
	g.UpdateSupply(0, 10, 200)
	g.UpdateEdge(0, 1, 10, 0, 1, ModeIncrease|ModeUnrestricted, 200)

	g.ShiftDates(50)

	assert.Equal(t, domain.Date(150), g.LastCompression())
	assert.Equal(t, domain.Date(250), g.Node(0).LastUpdate)

	edge := g.Edge(0, 1)
	assert.Equal(t, domain.Date(250), edge.LastUnrestricted)
	// "Never" timestamps do not move.
	assert.Equal(t, domain.DateNever, edge.LastRestricted)
	assert.Equal(t, domain.DateNever, g.Node(1).LastUpdate)
}
