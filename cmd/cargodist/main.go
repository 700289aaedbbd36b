package main

import (
	"context"
	"log"

	"cargodist/internal/linkgraph"
	"cargodist/internal/scheduler"
	"cargodist/pkg/cache"
	"cargodist/pkg/config"
	"cargodist/pkg/domain"
	"cargodist/pkg/logger"
	"cargodist/pkg/metrics"
	"cargodist/pkg/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.InitWithConfig(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})

	ctx := context.Background()

	if cfg.Tracing.Enabled {
		tp, err := telemetry.Init(ctx, telemetry.Config{
			Enabled:     cfg.Tracing.Enabled,
			Endpoint:    cfg.Tracing.Endpoint,
			ServiceName: cfg.Tracing.ServiceName,
			Version:     cfg.App.Version,
			Environment: cfg.App.Environment,
			SampleRate:  cfg.Tracing.SampleRate,
		})
		if err != nil {
			logger.Warn("failed to init telemetry", "error", err)
		} else {
			defer func() {
				if err := tp.Shutdown(context.Background()); err != nil {
					logger.Warn("failed to shutdown telemetry", "error", err)
				}
			}()
			logger.Info("telemetry initialized", "endpoint", cfg.Tracing.Endpoint)
		}
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics.Namespace, cfg.Metrics.Subsystem)
		go func() {
			if err := m.Serve(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
		logger.Info("metrics server started", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
	}

	var routes *cache.RouteCache
	if cfg.Cache.Enabled {
		backend, err := cache.New(cache.FromConfig(&cfg.Cache))
		if err != nil {
			logger.Error("failed to init cache", "error", err)
			log.Fatalf("cache init: %v", err)
		}
		defer backend.Close()
		routes = cache.NewRouteCache(backend, cfg.Cache.DefaultTTL)
		logger.Info("route cache initialized", "backend", cfg.Cache.Backend)
	}

	sched := scheduler.New(cfg.Solver, m, routes)

	g := demoGraph()
	logger.WithCargo(uint8(g.Cargo())).Info("solving demo graph",
		"nodes", g.Size(), "edges", g.EdgeCount())

	results := sched.SolveGraph(ctx, g)
	for i, res := range results {
		if res.Err != nil {
			logger.Error("component solve failed", "component", i, "error", res.Err)
			continue
		}
		logger.Info("component solved",
			"component", i,
			"job_id", res.Job.ID,
			"flow_pushed", res.Result.FlowPushed,
			"unsatisfied", res.Result.Unsatisfied,
			"dijkstra_runs", res.Result.DijkstraRuns,
			"cycles_eliminated", res.Result.CyclesEliminated,
		)
	}

	for _, key := range g.EdgeKeys() {
		edge := g.Edge(key.From, key.To)
		logger.Info("edge usage",
			"from", uint16(g.Node(key.From).Station),
			"to", uint16(g.Node(key.To).Station),
			"capacity", edge.Capacity,
			"usage", edge.Usage,
			"travel_time", edge.TravelTime(),
		)
	}

	if sched.Maintain(g, 230) {
		logger.Info("graph compressed", "last_compression", int64(g.LastCompression()))
	}
}

// demoGraph builds a small two-cluster network: a producer feeding two
// consumers over a shared trunk hop, plus an isolated pair that forms
// its own component.
func demoGraph() *linkgraph.Graph {
	g := linkgraph.New(1, 100)

	// Trunk cluster: station 1 produces, stations 3 and 4 accept.
	g.AddNode(1, domain.Tile{X: 0, Y: 0}, 0)
	g.AddNode(2, domain.Tile{X: 4, Y: 0}, 0)
	g.AddNode(3, domain.Tile{X: 8, Y: 0}, 40)
	g.AddNode(4, domain.Tile{X: 4, Y: 4}, 20)
	g.UpdateSupply(0, 120, 200)
	g.UpdateEdge(0, 1, 90, 0, 15, linkgraph.ModeIncrease|linkgraph.ModeUnrestricted, 200)
	g.UpdateEdge(1, 2, 60, 0, 10, linkgraph.ModeIncrease|linkgraph.ModeUnrestricted, 200)
	g.UpdateEdge(1, 3, 40, 0, 12, linkgraph.ModeIncrease|linkgraph.ModeUnrestricted, 200)

	// Isolated pair.
	g.AddNode(8, domain.Tile{X: 30, Y: 30}, 0)
	g.AddNode(9, domain.Tile{X: 33, Y: 30}, 10)
	g.UpdateSupply(4, 25, 200)
	g.UpdateEdge(4, 5, 50, 0, 8, linkgraph.ModeIncrease|linkgraph.ModeUnrestricted, 200)

	return g
}
