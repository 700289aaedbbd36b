package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Стандартные ключи атрибутов
const (
	// Граф
	AttrCargo      = "linkgraph.cargo"
	AttrGraphNodes = "linkgraph.nodes"
	AttrGraphEdges = "linkgraph.edges"

	// Solver
	AttrJobID       = "solver.job_id"
	AttrPass        = "solver.pass"
	AttrAccuracy    = "solver.accuracy"
	AttrFlowPushed  = "solver.flow_pushed"
	AttrUnsatisfied = "solver.unsatisfied_demand"
	AttrCyclesFound = "solver.cycles_eliminated"
	AttrAborted     = "solver.aborted"
)

// GraphAttributes возвращает атрибуты графа
func GraphAttributes(cargo uint8, nodes, edges int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrCargo, int(cargo)),
		attribute.Int(AttrGraphNodes, nodes),
		attribute.Int(AttrGraphEdges, edges),
	}
}

// SolveAttributes возвращает атрибуты завершённого решения
func SolveAttributes(flowPushed, unsatisfied uint64, cycles int, aborted bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64(AttrFlowPushed, int64(flowPushed)),
		attribute.Int64(AttrUnsatisfied, int64(unsatisfied)),
		attribute.Int(AttrCyclesFound, cycles),
		attribute.Bool(AttrAborted, aborted),
	}
}
