// Package scheduler dispatches solver jobs over the connected components
// of a link graph, bounded by a worker pool, and commits the results:
// edge usage is written back to the graph and per-station routing tables
// are published to the route cache.
package scheduler

import (
	"context"
	"runtime"
	"sync"
	"time"

	"cargodist/internal/linkgraph"
	"cargodist/internal/solver"
	"cargodist/pkg/cache"
	"cargodist/pkg/config"
	"cargodist/pkg/domain"
	"cargodist/pkg/logger"
	"cargodist/pkg/metrics"
	"cargodist/pkg/telemetry"
)

// ComponentResult is the outcome of one component's job.
type ComponentResult struct {
	// Job is the finished job, queryable for flow maps. Nil when the
	// worker slot could not be acquired.
	Job *solver.Job

	// Result is the solve summary. Nil when Err is set.
	Result *solver.Result

	// Err reports a dispatch failure (context cancelled while waiting
	// for a worker slot). Solver outcomes are never errors.
	Err error
}

// Scheduler runs link graph jobs with bounded concurrency. Components of
// one graph are disjoint, so their jobs run in parallel safely; the
// commit back into the shared graph happens on the calling goroutine
// after all jobs finish.
type Scheduler struct {
	settings      solver.Settings
	jobTimeout    time.Duration
	compressEvery int64
	workers       chan struct{} // semaphore, one slot per running job
	metrics       *metrics.Metrics
	routes        *cache.RouteCache
}

// New creates a scheduler from the solver configuration. Workers <= 0
// defaults to GOMAXPROCS. Metrics and route cache are optional; nil
// disables the respective commit step.
func New(cfg config.SolverConfig, m *metrics.Metrics, routes *cache.RouteCache) *Scheduler {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Scheduler{
		settings: solver.Settings{
			Accuracy:         cfg.Accuracy,
			MaxSaturation:    cfg.MaxSaturation,
			DistributionMode: cfg.DistributionMode,
		},
		jobTimeout:    cfg.JobTimeout,
		compressEvery: int64(cfg.CompressionInterval / (24 * time.Hour)),
		workers:       make(chan struct{}, workers),
		metrics:       m,
		routes:        routes,
	}
}

// acquire obtains a worker slot, blocking until one is available or the
// context is cancelled.
func (s *Scheduler) acquire(ctx context.Context) error {
	select {
	case s.workers <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) release() {
	<-s.workers
}

// SolveGraph runs one job per connected component of the graph and
// blocks until all of them finish. Results come back in component order.
// Afterwards the assigned flow is committed onto the graph's edge usage
// and the routing tables are published to the route cache, if one is
// configured.
//
// The graph must not be mutated concurrently; jobs work on private
// snapshots, but the final commit writes back into the live edges.
func (s *Scheduler) SolveGraph(ctx context.Context, g *linkgraph.Graph) []ComponentResult {
	cargo := uint8(g.Cargo())
	ctx, span := telemetry.StartSpan(ctx, "scheduler.solve_graph",
		telemetry.WithAttributes(telemetry.GraphAttributes(cargo, g.Size(), g.EdgeCount())...))
	defer span.End()

	if s.metrics != nil {
		s.metrics.SetGraphSize(cargo, g.Size(), g.EdgeCount())
	}

	components := g.Components()
	results := make([]ComponentResult, len(components))

	var wg sync.WaitGroup
	for i, component := range components {
		wg.Add(1)
		go func(idx int, component []linkgraph.NodeID) {
			defer wg.Done()
			results[idx] = s.runComponent(ctx, g, component)
		}(i, component)
	}
	wg.Wait()

	s.commit(ctx, g, results)
	return results
}

// runComponent solves one component on a pooled worker slot.
func (s *Scheduler) runComponent(ctx context.Context, g *linkgraph.Graph, component []linkgraph.NodeID) ComponentResult {
	if err := s.acquire(ctx); err != nil {
		return ComponentResult{Err: err}
	}
	defer s.release()

	jobCtx := ctx
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}

	job := solver.NewJob(jobCtx, g, component, s.settings)
	job.InitDemand()

	spanCtx, span := telemetry.StartSpan(jobCtx, "scheduler.solve_component")
	defer span.End()

	if s.metrics != nil {
		s.metrics.JobsActive.Inc()
		defer s.metrics.JobsActive.Dec()
	}

	start := time.Now()
	result := job.Solve()

	telemetry.SetAttributes(spanCtx, telemetry.SolveAttributes(
		result.FlowPushed, result.Unsatisfied, result.CyclesEliminated, result.Aborted)...)

	if s.metrics != nil {
		s.metrics.ObserveSolve(uint8(job.Cargo), time.Since(start), result.Aborted)
		s.metrics.DijkstraRuns.Add(float64(result.DijkstraRuns))
		s.metrics.FlowPushed.Add(float64(result.FlowPushed))
		s.metrics.CyclesEliminated.Add(float64(result.CyclesEliminated))
	}

	return ComponentResult{Job: job, Result: result}
}

// commit writes solver results back: edge usage onto the graph, routing
// tables into the route cache, unsatisfied demand into the gauge.
func (s *Scheduler) commit(ctx context.Context, g *linkgraph.Graph, results []ComponentResult) {
	var unsatisfied uint64
	var plans []*cache.CachedRoutes

	for _, res := range results {
		if res.Job == nil {
			continue
		}
		for key, flow := range res.Job.EdgeFlows() {
			g.SetUsage(key.From, key.To, flow)
		}
		if res.Result != nil {
			unsatisfied += res.Result.Unsatisfied
		}
		if s.routes != nil {
			plans = append(plans, routePlans(res.Job)...)
		}
	}

	if s.metrics != nil {
		s.metrics.UnsatisfiedDemand.Set(float64(unsatisfied))
	}

	if s.routes != nil && len(plans) > 0 {
		if err := s.routes.SetAll(ctx, plans, 0); err != nil {
			logger.WithCargo(uint8(g.Cargo())).Warn("route cache publish failed", "error", err)
		}
	}
}

// routePlans flattens one job's flow maps into cacheable routing plans.
func routePlans(job *solver.Job) []*cache.CachedRoutes {
	maps := job.BuildFlowMaps()
	now := time.Now()

	plans := make([]*cache.CachedRoutes, 0, len(maps))
	for origin, fsm := range maps {
		plan := &cache.CachedRoutes{
			Cargo:      uint8(job.Cargo),
			Origin:     uint16(origin),
			ComputedAt: now,
		}
		for dest, stats := range fsm {
			for _, stat := range stats {
				plan.Shares = append(plan.Shares, cache.RouteShare{
					Destination: uint16(dest),
					Via:         uint16(stat.Via),
					Amount:      stat.Amount,
				})
			}
		}
		plans = append(plans, plan)
	}
	return plans
}

// Maintain compresses the graph when the configured interval, measured
// in economy days, has elapsed since its last compression. Returns
// whether a compression ran. Must not race with SolveGraph on the same
// graph.
func (s *Scheduler) Maintain(g *linkgraph.Graph, now domain.Date) bool {
	if s.compressEvery <= 0 {
		return false
	}
	if int64(now)-int64(g.LastCompression()) < s.compressEvery {
		return false
	}
	g.Compress(now)
	logger.WithCargo(uint8(g.Cargo())).Debug("graph compressed",
		"nodes", g.Size(), "edges", g.EdgeCount(), "last_compression", int64(g.LastCompression()))
	return true
}
