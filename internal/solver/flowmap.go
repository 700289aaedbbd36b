package solver

import (
	"sort"

	"cargodist/internal/linkgraph"
	"cargodist/pkg/domain"
)

// =============================================================================
// Flow Mapping
// =============================================================================

// FlowStat is one routing share at a station: Amount units of cargo bound
// for the map key's destination should leave through Via next. A share
// whose Via equals the station itself means local delivery.
type FlowStat struct {
	Via    domain.StationID
	Amount uint64
}

// FlowStatMap is the routing table of one station: for each ultimate
// destination station, the share-weighted list of next hops. This is the
// primary externally visible artifact of a solve.
type FlowStatMap map[domain.StationID][]FlowStat

// BuildFlowMaps derives the per-station routing tables from the solved
// flow assignment.
//
// The solver tracks flow per (origin, hop), which answers "how much of
// origin O's cargo leaves node X through V" but not where that cargo is
// ultimately headed. The destination split is recovered per origin by
// walking the origin's hop-flow digraph from the leaves up: a node's
// outbound flow toward each destination is the hop flow multiplied by
// the fraction of the downstream node's throughput bound for that
// destination. Cycle elimination has already made each per-origin
// digraph acyclic, so the walk terminates.
//
// Shares are integer-rounded per hop with the remainder assigned to the
// largest share, so each hop's shares sum exactly to its flow.
func (j *Job) BuildFlowMaps() map[domain.StationID]FlowStatMap {
	size := j.Size()

	// shares[node][dest][via] accumulates amounts across all origins.
	shares := make([]map[linkgraph.NodeID]map[linkgraph.NodeID]uint64, size)
	record := func(node, dest, via linkgraph.NodeID, amount uint64) {
		if amount == 0 {
			return
		}
		byDest := shares[node]
		if byDest == nil {
			byDest = make(map[linkgraph.NodeID]map[linkgraph.NodeID]uint64)
			shares[node] = byDest
		}
		byVias := byDest[dest]
		if byVias == nil {
			byVias = make(map[linkgraph.NodeID]uint64)
			byDest[dest] = byVias
		}
		byVias[via] += amount
	}

	for origin := 0; origin < size; origin++ {
		j.mapOriginFlows(linkgraph.NodeID(origin), record)
	}

	result := make(map[domain.StationID]FlowStatMap, size)
	for node := 0; node < size; node++ {
		byDest := shares[node]
		if len(byDest) == 0 {
			continue
		}
		fsm := make(FlowStatMap, len(byDest))
		for dest, byVias := range byDest {
			stats := make([]FlowStat, 0, len(byVias))
			for via, amount := range byVias {
				stats = append(stats, FlowStat{Via: j.nodes[via].station, Amount: amount})
			}
			sort.Slice(stats, func(a, b int) bool {
				if stats[a].Amount != stats[b].Amount {
					return stats[a].Amount > stats[b].Amount
				}
				return stats[a].Via < stats[b].Via
			})
			fsm[j.nodes[dest].station] = stats
		}
		result[j.nodes[node].station] = fsm
	}
	return result
}

// mapOriginFlows decomposes one origin's hop flows by ultimate
// destination and reports every (node, dest, via) share through record.
func (j *Job) mapOriginFlows(origin linkgraph.NodeID, record func(node, dest, via linkgraph.NodeID, amount uint64)) {
	// destSplit[x] is the amount of the origin's throughput at x bound
	// for each destination, filled lazily in depth-first post-order.
	destSplit := make(map[linkgraph.NodeID]map[linkgraph.NodeID]uint64)

	var resolve func(node linkgraph.NodeID) map[linkgraph.NodeID]uint64
	resolve = func(node linkgraph.NodeID) map[linkgraph.NodeID]uint64 {
		if split, ok := destSplit[node]; ok {
			return split
		}
		split := make(map[linkgraph.NodeID]uint64)
		destSplit[node] = split

		if absorbed := j.pairFlow(origin, node); absorbed > 0 {
			split[node] = absorbed
			record(node, node, node, absorbed)
		}

		for _, via := range j.flowVias(origin, node) {
			hopFlow := j.hopFlow(origin, node, via)
			downstream := resolve(via)

			var through uint64
			for _, amount := range downstream {
				through += amount
			}
			if through == 0 {
				continue
			}

			dests := make([]linkgraph.NodeID, 0, len(downstream))
			for dest := range downstream {
				dests = append(dests, dest)
			}
			sort.Slice(dests, func(a, b int) bool { return dests[a] < dests[b] })

			var assigned uint64
			var largest linkgraph.NodeID
			var largestAmount uint64
			for _, dest := range dests {
				amount := hopFlow * downstream[dest] / through
				assigned += amount
				split[dest] += amount
				record(node, dest, via, amount)
				if downstream[dest] > largestAmount {
					largest, largestAmount = dest, downstream[dest]
				}
			}
			if leftover := hopFlow - assigned; leftover > 0 {
				split[largest] += leftover
				record(node, largest, via, leftover)
			}
		}
		return split
	}

	resolve(origin)
}

// pairFlow returns the flow assigned to one demand pair.
func (j *Job) pairFlow(source, dest linkgraph.NodeID) uint64 {
	if pair := j.pairs[linkgraph.EdgeKey{From: source, To: dest}]; pair != nil {
		return pair.flow
	}
	return 0
}

// EdgeFlows returns the aggregate assigned flow per transport hop, keyed
// in source-graph node indices, ready to be committed back onto the
// long-lived graph as usage. Hops that received no flow are omitted.
func (j *Job) EdgeFlows() map[linkgraph.EdgeKey]uint64 {
	flows := make(map[linkgraph.EdgeKey]uint64)
	for key, hop := range j.hops {
		if hop.flow == 0 {
			continue
		}
		graphKey := linkgraph.EdgeKey{
			From: j.graphIDs[key.From],
			To:   j.graphIDs[key.To],
		}
		flows[graphKey] = hop.flow
	}
	return flows
}
