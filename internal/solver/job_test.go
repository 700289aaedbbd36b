package solver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cargodist/internal/linkgraph"
	"cargodist/pkg/domain"
)

// buildGraph creates a graph with the given number of stations placed
// along the x axis, one tile apart, stations numbered from 10.
func buildGraph(stations int) *linkgraph.Graph {
	g := linkgraph.New(1, 100)
	for i := 0; i < stations; i++ {
		g.AddNode(domain.StationID(i+10), domain.Tile{X: i, Y: 0}, 0)
	}
	return g
}

func addLink(g *linkgraph.Graph, from, to linkgraph.NodeID, capacity uint64) {
	g.UpdateEdge(from, to, capacity, 0, 10, linkgraph.ModeIncrease, 200)
}

func newTestJob(g *linkgraph.Graph, settings Settings) *Job {
	return NewJob(context.Background(), g, nil, settings)
}

func TestNewJobSnapshotsWholeGraph(t *testing.T) {
	g := buildGraph(3)
	g.UpdateSupply(0, 40, 200)
	g.SetDemand(2, 7)
	addLink(g, 0, 1, 100)
	addLink(g, 1, 2, 50)

	job := newTestJob(g, Settings{Accuracy: 2})

	require.Equal(t, 3, job.Size())
	assert.Equal(t, domain.CargoID(1), job.Cargo)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, domain.StationID(10), job.Station(0))
	assert.Equal(t, uint64(40), job.nodes[0].supply)
	assert.Equal(t, uint64(7), job.nodes[2].demand)

	require.NotNil(t, job.hop(0, 1))
	assert.Equal(t, uint64(100), job.hop(0, 1).capacity)
	assert.Nil(t, job.hop(2, 0))
	assert.Equal(t, []linkgraph.NodeID{1}, job.nodes[0].neighbors)
}

func TestNewJobRemapsComponent(t *testing.T) {
	g := buildGraph(4)
	addLink(g, 0, 1, 10)
	addLink(g, 2, 3, 20)

	job := NewJob(context.Background(), g, []linkgraph.NodeID{2, 3}, Settings{Accuracy: 1})

	require.Equal(t, 2, job.Size())
	assert.Equal(t, domain.StationID(12), job.Station(0))
	assert.Equal(t, domain.StationID(13), job.Station(1))
	assert.Equal(t, linkgraph.NodeID(2), job.GraphNode(0))
	assert.Equal(t, linkgraph.NodeID(3), job.GraphNode(1))

	// The cross-component edge is excluded; the internal one is remapped.
	require.NotNil(t, job.hop(0, 1))
	assert.Equal(t, uint64(20), job.hop(0, 1).capacity)
	assert.Len(t, job.hops, 1)
}

func TestDemandPairs(t *testing.T) {
	g := buildGraph(3)
	job := newTestJob(g, Settings{Accuracy: 1})

	job.AddDemand(0, 2, 30)
	job.AddDemand(0, 1, 10)
	job.AddDemand(0, 2, 5)
	job.AddDemand(1, 1, 8) // local consumption
	job.AddDemand(0, 1, 0) // no-op

	assert.Equal(t, uint64(35), job.Demand(0, 2))
	assert.Equal(t, uint64(35), job.Unsatisfied(0, 2))
	assert.Equal(t, uint64(8), job.Demand(1, 1))
	assert.Equal(t, uint64(0), job.Demand(2, 0))
	assert.Equal(t, uint64(53), job.TotalUnsatisfied())
	assert.Equal(t, []linkgraph.NodeID{1, 2}, job.pairsFrom(0))
	assert.Empty(t, job.pairsFrom(2))
}

func TestFlowRecordsAndConsolidation(t *testing.T) {
	g := buildGraph(3)
	addLink(g, 0, 1, 10)
	addLink(g, 0, 2, 10)
	job := newTestJob(g, Settings{Accuracy: 1})

	job.recordFlow(0, 0, 1, 6)
	job.recordFlow(0, 0, 2, 4)
	assert.Equal(t, uint64(6), job.hopFlow(0, 0, 1))
	assert.Equal(t, []linkgraph.NodeID{1, 2}, job.flowVias(0, 0))

	// Zeroing one of two records makes half the map holes, which is past
	// the one-eighth threshold, so consolidation sweeps immediately.
	job.reduceFlow(0, 0, 1, 6)
	assert.Equal(t, []linkgraph.NodeID{2}, job.flowVias(0, 0))
	assert.Len(t, job.nodes[0].flows, 1)
	assert.Equal(t, 0, job.nodes[0].holes)
}

func TestRecordFlowRevivesHole(t *testing.T) {
	g := buildGraph(2)
	addLink(g, 0, 1, 10)
	job := newTestJob(g, Settings{Accuracy: 1})

	// Nine records keep one hole under the consolidation threshold.
	for via := 0; via < 9; via++ {
		job.nodes[0].flows[flowKey{Origin: 0, Via: linkgraph.NodeID(via)}] = 1
	}
	job.reduceFlow(0, 0, 1, 1)
	require.Equal(t, 1, job.nodes[0].holes)

	job.recordFlow(0, 0, 1, 3)
	assert.Equal(t, 0, job.nodes[0].holes)
	assert.Equal(t, uint64(3), job.hopFlow(0, 0, 1))
}

func TestSaturatedCap(t *testing.T) {
	assert.Equal(t, uint64(200), saturatedCap(200, 0))
	assert.Equal(t, uint64(160), saturatedCap(200, 80))
	assert.Equal(t, uint64(100), saturatedCap(200, 50))
	// Never scales an existing hop down to nothing.
	assert.Equal(t, uint64(1), saturatedCap(1, 50))
}

func TestIsAborted(t *testing.T) {
	g := buildGraph(2)
	ctx, cancel := context.WithCancel(context.Background())
	job := NewJob(ctx, g, nil, Settings{Accuracy: 1})

	assert.False(t, job.IsAborted())
	cancel()
	assert.True(t, job.IsAborted())
}
