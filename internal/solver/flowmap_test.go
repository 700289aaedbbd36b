package solver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cargodist/internal/linkgraph"
	"cargodist/pkg/domain"
)

func TestBuildFlowMapsLinearChain(t *testing.T) {
	g := buildGraph(3)
	addLink(g, 0, 1, 100)
	addLink(g, 1, 2, 100)
	job := newTestJob(g, Settings{Accuracy: 4, MaxSaturation: 100})
	job.AddDemand(0, 2, 60)

	job.Solve()
	maps := job.BuildFlowMaps()

	// Station 10 routes everything bound for 12 through 11.
	require.Contains(t, maps, domain.StationID(10))
	assert.Equal(t, []FlowStat{{Via: 11, Amount: 60}}, maps[10][12])

	// Station 11 forwards to 12, which delivers locally.
	assert.Equal(t, []FlowStat{{Via: 12, Amount: 60}}, maps[11][12])
	assert.Equal(t, []FlowStat{{Via: 12, Amount: 60}}, maps[12][12])
}

func TestBuildFlowMapsSplitsByDestination(t *testing.T) {
	// One origin ships to two destinations over a shared first hop. The
	// shared hop's flow must be split per ultimate destination.
	g := buildGraph(4)
	addLink(g, 0, 1, 200)
	addLink(g, 1, 2, 200)
	addLink(g, 1, 3, 200)
	job := newTestJob(g, Settings{Accuracy: 1, MaxSaturation: 100})
	job.AddDemand(0, 2, 30)
	job.AddDemand(0, 3, 50)

	job.Solve()
	maps := job.BuildFlowMaps()

	// The shared hop 10->11 carries both destination streams.
	assert.Equal(t, []FlowStat{{Via: 11, Amount: 30}}, maps[10][12])
	assert.Equal(t, []FlowStat{{Via: 11, Amount: 50}}, maps[10][13])

	// At the fork the streams separate.
	assert.Equal(t, []FlowStat{{Via: 12, Amount: 30}}, maps[11][12])
	assert.Equal(t, []FlowStat{{Via: 13, Amount: 50}}, maps[11][13])
}

func TestBuildFlowMapsLocalDelivery(t *testing.T) {
	g := buildGraph(2)
	addLink(g, 0, 1, 100)
	job := newTestJob(g, Settings{Accuracy: 1, MaxSaturation: 100})
	job.AddDemand(0, 0, 25)

	job.Solve()
	maps := job.BuildFlowMaps()

	// Local consumption shows up as a self-via share at the origin.
	assert.Equal(t, []FlowStat{{Via: 10, Amount: 25}}, maps[10][10])
	assert.NotContains(t, maps, domain.StationID(11))
}

func TestBuildFlowMapsSharesSumToHopFlow(t *testing.T) {
	// Odd amounts force rounding in the per-destination split; the shares
	// leaving a node must still sum to the hop flow exactly.
	g := buildGraph(4)
	addLink(g, 0, 1, 200)
	addLink(g, 1, 2, 200)
	addLink(g, 1, 3, 200)
	job := newTestJob(g, Settings{Accuracy: 1, MaxSaturation: 100})
	job.AddDemand(0, 2, 7)
	job.AddDemand(0, 3, 13)

	job.Solve()
	maps := job.BuildFlowMaps()

	var total uint64
	for _, stats := range maps[10] {
		for _, stat := range stats {
			total += stat.Amount
		}
	}
	assert.Equal(t, job.hop(0, 1).flow, total)
}

func TestEdgeFlows(t *testing.T) {
	g := buildGraph(4)
	addLink(g, 0, 1, 10)
	addLink(g, 2, 3, 100)

	job := NewJob(context.Background(), g, []linkgraph.NodeID{2, 3}, Settings{Accuracy: 1, MaxSaturation: 100})
	job.hop(0, 1).flow = 40

	flows := job.EdgeFlows()

	// Keys come back in source-graph indices; flowless hops are omitted.
	require.Len(t, flows, 1)
	assert.Equal(t, uint64(40), flows[linkgraph.EdgeKey{From: 2, To: 3}])
}
