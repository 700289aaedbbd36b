package solver

import (
	"cargodist/internal/linkgraph"
	"cargodist/pkg/logger"
)

// =============================================================================
// Solve Orchestration
// =============================================================================

// Result summarizes one finished (or aborted) solve.
type Result struct {
	// DijkstraRuns counts single-source searches across both passes.
	DijkstraRuns int

	// FlowPushed totals the cargo units assigned along paths.
	FlowPushed uint64

	// CyclesEliminated counts flow cycles removed during pass one.
	CyclesEliminated int

	// Unsatisfied is the demand left unrouted when the solve finished.
	// Nonzero values are a normal outcome, not an error.
	Unsatisfied uint64

	// Aborted reports that cooperative cancellation stopped the solve at
	// a round boundary. Partial results are internally consistent.
	Aborted bool
}

// Solve runs both solver passes over the job and returns the summary.
// Pass one assigns flow along shortest capacity-having paths under the
// saturation cap and eliminates flow cycles; pass two mops up remaining
// demand over the routes pass one established, without the cap.
//
// The job's flow state is left queryable through BuildFlowMaps and
// EdgeFlows afterwards.
func (j *Job) Solve() *Result {
	log := logger.WithJob(j.ID).With("cargo", j.Cargo)
	log.Debug("solve started", "nodes", j.Size(), "hops", len(j.hops))

	result := &Result{}
	j.runFirstPass(result)
	if !result.Aborted {
		j.runSecondPass(result)
	}
	result.Unsatisfied = j.TotalUnsatisfied()

	log.Debug("solve finished",
		"dijkstra_runs", result.DijkstraRuns,
		"flow_pushed", result.FlowPushed,
		"cycles_eliminated", result.CyclesEliminated,
		"unsatisfied", result.Unsatisfied,
		"aborted", result.Aborted,
	)
	return result
}

// =============================================================================
// Flow Pushing
// =============================================================================

// addFlowAlongPath assigns flow along the parent chain of dest, clamped
// per hop by the saturated residual capacity when a saturation cap is
// given. Hop flow, per-origin flow records and path-segment flow are all
// updated; the amount actually assigned is returned.
func (j *Job) addFlowAlongPath(origin linkgraph.NodeID, dest PathID, amount uint64, saturation uint) uint64 {
	if amount == 0 {
		return 0
	}

	var chain []PathID
	for id := dest; id != InvalidPath; id = j.arena.get(id).parent {
		chain = append(chain, id)
	}

	if saturation != 0 {
		for i := 0; i+1 < len(chain); i++ {
			child := j.arena.get(chain[i])
			parent := j.arena.get(chain[i+1])
			hop := j.hop(parent.node, child.node)
			usable := saturatedCap(hop.capacity, saturation)
			if usable <= hop.flow {
				return 0
			}
			amount = min(amount, usable-hop.flow)
		}
	}

	for i := len(chain) - 1; i >= 0; i-- {
		segment := j.arena.get(chain[i])
		segment.flow += amount
		if i+1 < len(chain) {
			parent := j.arena.get(chain[i+1])
			j.hop(parent.node, segment.node).flow += amount
			j.recordFlow(origin, parent.node, segment.node, amount)
		}
	}
	return amount
}

// pushFlow assigns one round's worth of flow for a demand pair. The
// normal quantum is demand/accuracy (at least 1, at most the remaining
// demand); full pushes take everything that is left. Returns the amount
// assigned after per-hop clamping.
func (j *Job) pushFlow(source linkgraph.NodeID, pair *pairState, path PathID, saturation uint, full bool, result *Result) uint64 {
	amount := pair.unsatisfied
	if !full {
		quantum := pair.demand / uint64(j.settings.Accuracy)
		amount = min(max(quantum, 1), pair.unsatisfied)
	}

	pushed := j.addFlowAlongPath(source, path, amount, saturation)
	pair.unsatisfied -= pushed
	pair.flow += pushed
	result.FlowPushed += pushed
	return pushed
}

// =============================================================================
// Pass One
// =============================================================================

// runFirstPass round-robins over all sources, assigning accuracy-sized
// flow quanta along distance-annotated shortest paths, until no pair can
// make progress and no cycles remain. The per-round quantization spreads
// assignment over multiple rounds, which matters for fairness when
// several sources compete for the same downstream capacity.
func (j *Job) runFirstPass(result *Result) {
	size := j.Size()
	paths := make([]PathID, size)
	saturation := j.settings.MaxSaturation

	for {
		moreLoops := false

		for source := 0; source < size; source++ {
			sourceID := linkgraph.NodeID(source)
			dests := j.pairsFrom(sourceID)
			if len(dests) == 0 {
				continue
			}

			j.dijkstra(sourceID, annotateDistance, iterAllEdges, saturation, paths)
			result.DijkstraRuns++

			for _, dest := range dests {
				pair := j.pairs[linkgraph.EdgeKey{From: sourceID, To: dest}]
				if pair.unsatisfied == 0 {
					continue
				}
				path := j.arena.get(paths[dest])

				if path.freeCapacity > 0 {
					if j.pushFlow(sourceID, pair, paths[dest], saturation, false, result) > 0 {
						// A successful push leaving demand behind means
						// another round can find more.
						moreLoops = moreLoops || pair.unsatisfied > 0
						continue
					}
				}

				// Bootstrap exception: a pair that never received any
				// flow gets its full demand pushed once over any path
				// that is not provably disconnected, so fresh links are
				// never starved permanently.
				if pair.flow == 0 && path.freeCapacity > freeCapDisconnected {
					j.pushFlow(sourceID, pair, paths[dest], 0, true, result)
				}
			}

			j.arena.prune(paths)
		}

		if j.IsAborted() {
			result.Aborted = true
			return
		}
		if !moreLoops && !j.eliminateCycles(result) {
			return
		}
	}
}

// =============================================================================
// Cycle Elimination
// =============================================================================

const (
	colorWhite uint8 = iota
	colorGray
	colorBlack
)

// eliminateCycles removes circular flow from every origin's assignment.
// Paths are discovered independently per source while capacity is
// shared, so pushed flow can close a loop; the loop's minimum flow is
// wasted throughput that this step reclaims. Returns whether anything
// was removed, since freed capacity can enable further pass-one rounds.
func (j *Job) eliminateCycles(result *Result) bool {
	found := false
	for origin := 0; origin < j.Size(); origin++ {
		for j.eliminateCyclesOf(linkgraph.NodeID(origin), result) {
			// Removing one cycle can reveal another; rescan until clean.
			found = true
		}
	}
	return found
}

// eliminateCyclesOf searches the positive flow digraph of one origin for
// a cycle and removes the first one found. The DFS visits nodes and
// neighbors in ID order, keeping elimination deterministic.
func (j *Job) eliminateCyclesOf(origin linkgraph.NodeID, result *Result) bool {
	color := make([]uint8, j.Size())
	var stack []linkgraph.NodeID

	var visit func(node linkgraph.NodeID) bool
	visit = func(node linkgraph.NodeID) bool {
		color[node] = colorGray
		stack = append(stack, node)

		for _, via := range j.flowVias(origin, node) {
			switch color[via] {
			case colorGray:
				j.removeCycle(origin, stack, via)
				result.CyclesEliminated++
				return true
			case colorWhite:
				if visit(via) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[node] = colorBlack
		return false
	}

	for start := 0; start < j.Size(); start++ {
		if color[start] == colorWhite {
			stack = stack[:0]
			if visit(linkgraph.NodeID(start)) {
				return true
			}
		}
	}
	return false
}

// removeCycle subtracts the cycle's minimum flow from every hop on the
// cycle, which closes at the stack entry holding first.
func (j *Job) removeCycle(origin linkgraph.NodeID, stack []linkgraph.NodeID, first linkgraph.NodeID) {
	start := 0
	for i, node := range stack {
		if node == first {
			start = i
			break
		}
	}
	cycle := stack[start:]

	minFlow := j.hopFlow(origin, cycle[len(cycle)-1], cycle[0])
	for i := 0; i+1 < len(cycle); i++ {
		minFlow = min(minFlow, j.hopFlow(origin, cycle[i], cycle[i+1]))
	}

	reduce := func(from, to linkgraph.NodeID) {
		j.reduceFlow(origin, from, to, minFlow)
		j.hop(from, to).flow -= minFlow
	}
	for i := 0; i+1 < len(cycle); i++ {
		reduce(cycle[i], cycle[i+1])
	}
	reduce(cycle[len(cycle)-1], cycle[0])
}

// =============================================================================
// Pass Two
// =============================================================================

// runSecondPass mops up remaining demand with the saturation cap lifted.
// Only routes that already carry flow are considered, via the flow-only
// edge iterator, and every reachable pair gets its full remaining demand
// pushed; this pass is exhaustive cleanup, not fair allocation.
func (j *Job) runSecondPass(result *Result) {
	size := j.Size()
	paths := make([]PathID, size)

	for {
		progress := false

		for source := 0; source < size; source++ {
			sourceID := linkgraph.NodeID(source)
			dests := j.pairsFrom(sourceID)
			remaining := false
			for _, dest := range dests {
				if j.pairs[linkgraph.EdgeKey{From: sourceID, To: dest}].unsatisfied > 0 {
					remaining = true
					break
				}
			}
			if !remaining {
				continue
			}

			j.dijkstra(sourceID, annotateCapacity, iterFlowEdges, 0, paths)
			result.DijkstraRuns++

			for _, dest := range dests {
				pair := j.pairs[linkgraph.EdgeKey{From: sourceID, To: dest}]
				if pair.unsatisfied == 0 {
					continue
				}
				path := j.arena.get(paths[dest])
				if path.freeCapacity > freeCapDisconnected {
					if j.pushFlow(sourceID, pair, paths[dest], 0, true, result) > 0 {
						progress = true
					}
				}
			}

			j.arena.prune(paths)
		}

		if !progress || j.IsAborted() {
			if j.IsAborted() {
				result.Aborted = true
			}
			return
		}
	}
}
