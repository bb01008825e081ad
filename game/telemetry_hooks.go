package game

import (
	"log/slog"

	"github.com/pthm-cable/drift/components"
	"github.com/pthm-cable/drift/telemetry"
)

// flushTelemetry checks if the stats window should be flushed and handles bookmarks.
func (g *Game) flushTelemetry() {
	if !g.collector.ShouldFlush(g.tick) {
		return
	}

	stats := g.collector.Flush(g.tick, g.census())
	stats.RunID = g.runID
	perfStats := g.perf.Stats()

	if g.onWindow != nil {
		g.onWindow(stats)
	}

	// Log stats if enabled (console output)
	if g.logStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	if g.output != nil {
		if err := g.output.WriteTelemetry(stats); err != nil {
			slog.Error("failed to write telemetry", "error", err)
		}
		if err := g.output.WritePerf(perfStats, stats.WindowEndTick); err != nil {
			slog.Error("failed to write perf", "error", err)
		}
	}

	for _, bm := range g.bookmarks.Check(stats) {
		bm.RunID = g.runID
		if g.logStats {
			bm.LogBookmark()
		}
		if g.output != nil {
			if err := g.output.WriteBookmark(bm); err != nil {
				slog.Error("failed to write bookmark", "error", err)
			}
		}
	}
}

// census samples the population by public state plus collaborator totals.
func (g *Game) census() telemetry.Census {
	var c telemetry.Census

	query := g.shipFilter.Query()
	for query.Next() {
		_, _, body, id, _, b := query.Get()
		if body.Kind != components.KindShip {
			continue
		}
		c.Agents++
		if g.isPirate(id.Faction) {
			c.Pirates++
		}
		c.States[b.State.Public()]++
	}

	c.OreMined = g.market.OreMined
	c.OreSold = g.market.OreSold
	c.GoodsTraded = g.market.GoodsBought + g.market.GoodsSold
	c.Jumps = g.network.Jumps
	c.Warps = g.network.Warps
	c.Sweeps = g.sweeps
	c.ModuleCycles = g.modules.Cycles
	return c
}
