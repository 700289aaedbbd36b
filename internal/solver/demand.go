package solver

import (
	"cargodist/internal/linkgraph"
)

// =============================================================================
// Demand Initialization
// =============================================================================

// InitDemand populates the job's demand pairs from its node supply and
// acceptance values, according to the configured distribution mode. Each
// supplying node's supply is spread over the accepting nodes in
// proportion to their demand weight; a node that accepts its own cargo
// gets a self pair, which the solver treats as local consumption. In
// symmetric mode each direction of a pair is additionally capped by the
// reverse direction, so flows come out balanced.
//
// Must run before Solve, after the snapshot is built.
func (j *Job) InitDemand() {
	demands := j.distributeSupply()

	if j.settings.DistributionMode == DistributionSymmetric {
		for key, amount := range demands {
			if key.From == key.To {
				continue
			}
			reverse := demands[linkgraph.EdgeKey{From: key.To, To: key.From}]
			demands[key] = min(amount, reverse)
		}
	}

	for key, amount := range demands {
		j.AddDemand(key.From, key.To, amount)
	}
}

// distributeSupply computes the proportional supply split. Remainders
// from integer division go to the heaviest accepting node, so each
// source's pairs sum exactly to its supply whenever anything accepts.
func (j *Job) distributeSupply() map[linkgraph.EdgeKey]uint64 {
	var weight uint64
	var heaviest linkgraph.NodeID
	var heaviestDemand uint64
	for i := range j.nodes {
		demand := j.nodes[i].demand
		weight += demand
		if demand > heaviestDemand {
			heaviest, heaviestDemand = linkgraph.NodeID(i), demand
		}
	}

	demands := make(map[linkgraph.EdgeKey]uint64)
	if weight == 0 {
		return demands
	}

	for source := range j.nodes {
		supply := j.nodes[source].supply
		if supply == 0 {
			continue
		}
		sourceID := linkgraph.NodeID(source)

		var assigned uint64
		for dest := range j.nodes {
			demand := j.nodes[dest].demand
			if demand == 0 {
				continue
			}
			amount := supply * demand / weight
			if amount == 0 {
				continue
			}
			assigned += amount
			demands[linkgraph.EdgeKey{From: sourceID, To: linkgraph.NodeID(dest)}] += amount
		}
		if leftover := supply - assigned; leftover > 0 {
			demands[linkgraph.EdgeKey{From: sourceID, To: heaviest}] += leftover
		}
	}
	return demands
}
