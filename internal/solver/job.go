package solver

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"cargodist/internal/linkgraph"
	"cargodist/pkg/domain"
)

// =============================================================================
// Settings
// =============================================================================

// Distribution modes for the demand calculator.
const (
	// DistributionAsymmetric distributes a node's supply over accepting
	// nodes in proportion to their demand, one direction at a time.
	DistributionAsymmetric = "asymmetric"
	// DistributionSymmetric additionally caps each pair's demand by the
	// reverse direction, so flows come out balanced.
	DistributionSymmetric = "symmetric"
)

// Settings is the read-only tuning bundle fixed for one solve.
type Settings struct {
	// Accuracy is an inverse granularity: per-pair demand is divided by it
	// to obtain the flow quantum pushed per round. Must be at least 1.
	Accuracy uint

	// MaxSaturation caps edge capacity, as a percentage, during the first
	// solver pass to leave headroom for the second. 0 means unlimited.
	MaxSaturation uint

	// DistributionMode selects how the demand calculator spreads supply.
	DistributionMode string
}

// saturatedCap scales capacity by a saturation percentage, flooring at 1
// so an existing hop never scales down to nothing. 0 means unlimited.
func saturatedCap(capacity uint64, saturation uint) uint64 {
	if saturation == 0 {
		return capacity
	}
	scaled := capacity * uint64(saturation) / 100
	if scaled == 0 {
		scaled = 1
	}
	return scaled
}

// =============================================================================
// Job State
// =============================================================================

// flowKey identifies one hop-flow record at a node: flow of the given
// origin leaving through the given neighbor.
type flowKey struct {
	Origin linkgraph.NodeID
	Via    linkgraph.NodeID
}

// jobNode is the solver's private copy of one graph node.
type jobNode struct {
	station domain.StationID
	tile    domain.Tile
	supply  uint64
	demand  uint64

	// neighbors lists outgoing hop targets sorted by node ID; the
	// all-edges iterator walks this.
	neighbors []linkgraph.NodeID

	// flows aggregates assigned flow per (origin, via). Records zeroed by
	// cycle elimination linger as holes until consolidation sweeps them.
	flows map[flowKey]uint64
	holes int
}

// jobEdge is the snapshot of one transport hop plus the flow the solver
// has assigned across it.
type jobEdge struct {
	capacity   uint64
	travelTime uint64
	flow       uint64
}

// pairState tracks demand between one (source, destination) pair. Pairs
// with source == destination represent local consumption and never map
// to a transport hop.
type pairState struct {
	demand      uint64
	unsatisfied uint64
	flow        uint64
}

// Job is the ephemeral working view of one link graph component bound to
// solver settings. It owns private node and edge snapshots, so a solve
// never touches the live graph; results are committed back afterwards.
type Job struct {
	// ID tags log lines and traces of this solve.
	ID string

	// Cargo is the cargo type of the snapshotted graph.
	Cargo domain.CargoID

	ctx      context.Context
	settings Settings

	nodes []jobNode
	hops  map[linkgraph.EdgeKey]*jobEdge
	pairs map[linkgraph.EdgeKey]*pairState

	// graphIDs maps job-local node indices back to the source graph.
	graphIDs []linkgraph.NodeID

	arena *pathArena
}

// NewJob snapshots the given component of a link graph. A nil component
// snapshots the whole graph. The context carries the cooperative abort
// signal polled between solver rounds.
func NewJob(ctx context.Context, g *linkgraph.Graph, component []linkgraph.NodeID, settings Settings) *Job {
	if settings.Accuracy == 0 {
		settings.Accuracy = 1
	}
	if component == nil {
		component = make([]linkgraph.NodeID, g.Size())
		for i := range component {
			component[i] = linkgraph.NodeID(i)
		}
	}

	job := &Job{
		ID:       uuid.NewString(),
		Cargo:    g.Cargo(),
		ctx:      ctx,
		settings: settings,
		nodes:    make([]jobNode, len(component)),
		hops:     make(map[linkgraph.EdgeKey]*jobEdge),
		pairs:    make(map[linkgraph.EdgeKey]*pairState),
		graphIDs: append([]linkgraph.NodeID(nil), component...),
		arena:    newPathArena(len(component)),
	}

	toJob := make(map[linkgraph.NodeID]linkgraph.NodeID, len(component))
	for i, graphID := range component {
		src := g.Node(graphID)
		job.nodes[i] = jobNode{
			station: src.Station,
			tile:    src.Tile,
			supply:  src.Supply,
			demand:  src.Demand,
			flows:   make(map[flowKey]uint64),
		}
		toJob[graphID] = linkgraph.NodeID(i)
	}

	for _, key := range g.EdgeKeys() {
		from, okFrom := toJob[key.From]
		to, okTo := toJob[key.To]
		if !okFrom || !okTo {
			continue
		}
		src := g.Edge(key.From, key.To)
		job.hops[linkgraph.EdgeKey{From: from, To: to}] = &jobEdge{
			capacity:   src.Capacity,
			travelTime: src.TravelTime(),
		}
		job.nodes[from].neighbors = append(job.nodes[from].neighbors, to)
	}
	for i := range job.nodes {
		neighbors := job.nodes[i].neighbors
		sort.Slice(neighbors, func(a, b int) bool { return neighbors[a] < neighbors[b] })
	}

	return job
}

// Size returns the number of nodes in the snapshot.
func (j *Job) Size() int { return len(j.nodes) }

// Settings returns the solve's tuning bundle.
func (j *Job) Settings() Settings { return j.settings }

// Station returns the station behind a job-local node index.
func (j *Job) Station(id linkgraph.NodeID) domain.StationID {
	return j.nodes[id].station
}

// GraphNode returns the source-graph index behind a job-local node index.
func (j *Job) GraphNode(id linkgraph.NodeID) linkgraph.NodeID {
	return j.graphIDs[id]
}

// IsAborted reports whether the job's context has been cancelled. The
// solver polls this at round boundaries only, so state transitions stay
// checkpoint-aligned.
func (j *Job) IsAborted() bool {
	return j.ctx.Err() != nil
}

// =============================================================================
// Demand Pairs
// =============================================================================

// AddDemand records demand between a pair of job-local nodes. A pair
// with from == to is local consumption. Called by the demand calculator
// before the solve starts.
func (j *Job) AddDemand(from, to linkgraph.NodeID, amount uint64) {
	if amount == 0 {
		return
	}
	key := linkgraph.EdgeKey{From: from, To: to}
	pair := j.pairs[key]
	if pair == nil {
		pair = &pairState{}
		j.pairs[key] = pair
	}
	pair.demand += amount
	pair.unsatisfied += amount
}

// Demand returns the recorded demand for a pair.
func (j *Job) Demand(from, to linkgraph.NodeID) uint64 {
	if pair := j.pairs[linkgraph.EdgeKey{From: from, To: to}]; pair != nil {
		return pair.demand
	}
	return 0
}

// Unsatisfied returns the demand not yet covered by assigned flow.
func (j *Job) Unsatisfied(from, to linkgraph.NodeID) uint64 {
	if pair := j.pairs[linkgraph.EdgeKey{From: from, To: to}]; pair != nil {
		return pair.unsatisfied
	}
	return 0
}

// TotalUnsatisfied sums the uncovered demand over all pairs.
func (j *Job) TotalUnsatisfied() uint64 {
	var total uint64
	for _, pair := range j.pairs {
		total += pair.unsatisfied
	}
	return total
}

// pairsFrom returns the destinations with recorded demand from the given
// source, sorted for deterministic iteration.
func (j *Job) pairsFrom(source linkgraph.NodeID) []linkgraph.NodeID {
	var dests []linkgraph.NodeID
	for key := range j.pairs {
		if key.From == source {
			dests = append(dests, key.To)
		}
	}
	sort.Slice(dests, func(a, b int) bool { return dests[a] < dests[b] })
	return dests
}

// =============================================================================
// Hop Flow Bookkeeping
// =============================================================================

// hop returns the snapshot edge for a transport hop, or nil.
func (j *Job) hop(from, to linkgraph.NodeID) *jobEdge {
	return j.hops[linkgraph.EdgeKey{From: from, To: to}]
}

// recordFlow adds assigned flow of the given origin onto the hop
// from -> via.
func (j *Job) recordFlow(origin, from, via linkgraph.NodeID, amount uint64) {
	node := &j.nodes[from]
	key := flowKey{Origin: origin, Via: via}
	if amount == 0 {
		return
	}
	// Revives a holed record if one lingers for this key.
	if prev, ok := node.flows[key]; ok && prev == 0 {
		node.holes--
	}
	node.flows[key] += amount
}

// reduceFlow subtracts cycle-eliminated flow from the hop record. Records
// that reach zero become holes and are swept out lazily.
func (j *Job) reduceFlow(origin, from, via linkgraph.NodeID, amount uint64) {
	node := &j.nodes[from]
	key := flowKey{Origin: origin, Via: via}
	node.flows[key] -= amount
	if node.flows[key] == 0 {
		node.holes++
		j.consolidateFlows(from)
	}
}

// consolidateFlows compacts a node's flow records once at least an eighth
// of them are holes. Cheap enough to run often, pointless to run always.
func (j *Job) consolidateFlows(id linkgraph.NodeID) {
	node := &j.nodes[id]
	if node.holes == 0 || node.holes*8 < len(node.flows) {
		return
	}
	for key, amount := range node.flows {
		if amount == 0 {
			delete(node.flows, key)
		}
	}
	node.holes = 0
}

// flowVias returns the neighbors that carry positive flow of the given
// origin out of the given node, sorted by node ID. This is the edge set
// seen by the flow-only Dijkstra iterator.
func (j *Job) flowVias(origin, from linkgraph.NodeID) []linkgraph.NodeID {
	node := &j.nodes[from]
	var vias []linkgraph.NodeID
	for key, amount := range node.flows {
		if key.Origin == origin && amount > 0 {
			vias = append(vias, key.Via)
		}
	}
	sort.Slice(vias, func(a, b int) bool { return vias[a] < vias[b] })
	return vias
}

// hopFlow returns the assigned flow of one origin over one hop.
func (j *Job) hopFlow(origin, from, via linkgraph.NodeID) uint64 {
	return j.nodes[from].flows[flowKey{Origin: origin, Via: via}]
}
