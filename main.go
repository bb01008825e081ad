package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/dustin/go-humanize"

	"github.com/pthm-cable/drift/api"
	"github.com/pthm-cable/drift/config"
	"github.com/pthm-cable/drift/game"
	"github.com/pthm-cable/drift/persistence"
	"github.com/pthm-cable/drift/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	statsWindow := flag.Float64("stats-window", 0, "Stats window size in seconds (0 = use config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N ticks (0 = unlimited)")
	dbPath := flag.String("db", "", "SQLite file for save and resume (empty = no persistence)")
	saveEvery := flag.Int("save-every", 3000, "Ticks between saves when -db is set")
	apiAddr := flag.String("api", "", "Status API listen address, e.g. :8080 (empty = use config)")
	publishEvery := flag.Int("publish-every", 10, "Ticks between status API refreshes")

	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()
	if *statsWindow > 0 {
		cfg.Telemetry.StatsWindow = *statsWindow
	}
	if *apiAddr != "" {
		cfg.API.Address = *apiAddr
	}

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	if err := run(cfg, runOptions{
		seed:         rngSeed,
		logStats:     *logStats,
		outputDir:    *outputDir,
		maxTicks:     *maxTicks,
		dbPath:       *dbPath,
		saveEvery:    *saveEvery,
		publishEvery: *publishEvery,
	}); err != nil {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}
}

type runOptions struct {
	seed         int64
	logStats     bool
	outputDir    string
	maxTicks     int
	dbPath       string
	saveEvery    int
	publishEvery int
}

func run(cfg *config.Config, opts runOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database and resume
	var db *persistence.DB
	var saved *persistence.Snapshot
	if opts.dbPath != "" {
		var err error
		db, err = persistence.Open(opts.dbPath)
		if err != nil {
			return err
		}
		defer db.Close()

		snap, err := db.Load()
		switch {
		case errors.Is(err, persistence.ErrNoSave):
			slog.Info("no save found, starting fresh", "path", opts.dbPath)
		case err != nil:
			return err
		default:
			saved = &snap
		}
	}

	runID := telemetry.NewRunID()
	if saved != nil && saved.RunID != "" {
		runID = saved.RunID
	}

	output, err := telemetry.NewOutputManager(opts.outputDir, runID)
	if err != nil {
		return err
	}
	if err := output.WriteConfig(cfg); err != nil {
		return err
	}

	var board *api.Board
	if cfg.API.Address != "" {
		board = api.NewBoard(runID)
	}

	g := game.New(game.Options{
		Config:   cfg,
		Seed:     opts.seed,
		RunID:    runID,
		Output:   output,
		LogStats: opts.logStats,
		OnWindow: func(s telemetry.WindowStats) {
			if board != nil {
				board.PublishWindow(s)
			}
			slog.Info("window",
				"tick", humanize.Comma(int64(s.WindowEndTick)),
				"agents", s.Agents,
				"ore_sold", humanize.Commaf(s.OreSoldTotal),
				"chases", s.ChasesStarted,
				"destroyed", s.Destroyed,
			)
		},
	})
	defer g.Close()

	if saved != nil {
		if err := g.Restore(*saved); err != nil {
			return err
		}
		slog.Info("resumed", "tick", humanize.Comma(int64(g.Tick())), "agents", len(saved.Agents), "seed", saved.Seed)
	} else if err := g.Seed(); err != nil {
		return err
	}

	if board != nil {
		h := server.Default(server.WithHostPorts(cfg.API.Address))
		api.Handler{Board: board}.RegisterRoutes(h)
		go func() {
			if err := h.Run(); err != nil {
				slog.Error("api server stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := h.Shutdown(shutdownCtx); err != nil {
				slog.Warn("api shutdown", "error", err)
			}
		}()
		slog.Info("status api listening", "address", cfg.API.Address)
	}

	save := func() {
		if db == nil {
			return
		}
		if err := db.Save(g.ExportSnapshot()); err != nil {
			slog.Error("save failed", "error", err)
		}
	}

	slog.Info("starting simulation",
		"run_id", runID,
		"seed", opts.seed,
		"max_ticks", opts.maxTicks,
		"sectors", g.Network().Sectors(),
	)

	start := time.Now()
	startTick := g.Tick()
	for {
		select {
		case <-ctx.Done():
			slog.Info("received signal, shutting down", "tick", g.Tick())
			save()
			return nil
		default:
		}

		g.Step(cfg.Derived.DT32)
		tick := int(g.Tick())

		if board != nil && opts.publishEvery > 0 && tick%opts.publishEvery == 0 {
			board.Publish(g.Tick(), g.Now(), g.Views(), g.Details())
		}
		if opts.saveEvery > 0 && tick%opts.saveEvery == 0 {
			save()
		}
		if opts.maxTicks > 0 && tick-int(startTick) >= opts.maxTicks {
			break
		}
	}

	save()
	slog.Info("max ticks reached",
		"tick", humanize.Comma(int64(g.Tick())),
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
		"sim_time", humanize.Commaf(g.Now()),
	)
	return nil
}
