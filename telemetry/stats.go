package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	RunID           string  `csv:"run_id"`
	WindowStartTick int32   `csv:"-"`
	WindowEndTick   int32   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Population by public state at window end
	Agents    int `csv:"agents"`
	Pirates   int `csv:"pirates"`
	Idle      int `csv:"idle"`
	Traveling int `csv:"traveling"`
	Mining    int `csv:"mining"`
	Trading   int `csv:"trading"`
	Returning int `csv:"returning"`
	Ratting   int `csv:"ratting"`
	Raiding   int `csv:"raiding"`
	Engaging  int `csv:"engaging"`
	Surveying int `csv:"surveying"`
	Repairing int `csv:"repairing"`
	Fleeing   int `csv:"fleeing"`

	// Events during window
	Transitions   int `csv:"transitions"`
	ChasesStarted int `csv:"chases_started"`
	Tackles       int `csv:"tackles"`
	Intercepts    int `csv:"intercepts"`
	Disengages    int `csv:"disengages"`
	Flees         int `csv:"flees"`
	Docks         int `csv:"docks"`
	Destroyed     int `csv:"destroyed"`

	// Pursuit verdicts
	VerdictContinue  int `csv:"verdict_continue"`
	VerdictTackle    int `csv:"verdict_tackle"`
	VerdictIntercept int `csv:"verdict_intercept"`
	VerdictDisengage int `csv:"verdict_disengage"`

	// Chase durations of chases that ended this window
	ChasesEnded  int     `csv:"chases_ended"`
	ChaseMeanSec float64 `csv:"chase_mean"`
	ChaseP50Sec  float64 `csv:"chase_p50"`
	ChaseP90Sec  float64 `csv:"chase_p90"`
	ChaseMaxSec  float64 `csv:"chase_max"`

	// Cumulative collaborator totals
	OreMinedTotal     float64 `csv:"ore_mined_total"`
	OreSoldTotal      float64 `csv:"ore_sold_total"`
	GoodsTradedTotal  float64 `csv:"goods_traded_total"`
	JumpsTotal        int     `csv:"jumps_total"`
	WarpsTotal        int     `csv:"warps_total"`
	SweepsTotal       int     `csv:"sweeps_total"`
	ModuleCyclesTotal int     `csv:"module_cycles_total"`
}

// ComputeDurationStats returns mean, median, 90th percentile and maximum
// of a set of durations. Empty input yields zeros.
func ComputeDurationStats(values []float64) (mean, p50, p90, max float64) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0, 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	mean = stat.Mean(sorted, nil)
	p50 = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	p90 = stat.Quantile(0.9, stat.Empirical, sorted, nil)
	return mean, p50, p90, sorted[n-1]
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_end", int(s.WindowEndTick)),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("agents", s.Agents),
		slog.Int("pirates", s.Pirates),
		slog.Int("engaging", s.Engaging),
		slog.Int("fleeing", s.Fleeing),
		slog.Int("transitions", s.Transitions),
		slog.Int("chases_started", s.ChasesStarted),
		slog.Int("chases_ended", s.ChasesEnded),
		slog.Float64("chase_mean", s.ChaseMeanSec),
		slog.Int("destroyed", s.Destroyed),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"sim_time", s.SimTimeSec,
		"agents", s.Agents,
		"pirates", s.Pirates,
		"mining", s.Mining,
		"trading", s.Trading,
		"ratting", s.Ratting,
		"raiding", s.Raiding,
		"engaging", s.Engaging,
		"fleeing", s.Fleeing,
		"transitions", s.Transitions,
		"chases_started", s.ChasesStarted,
		"tackles", s.Tackles,
		"intercepts", s.Intercepts,
		"disengages", s.Disengages,
		"flees", s.Flees,
		"docks", s.Docks,
		"destroyed", s.Destroyed,
		"chases_ended", s.ChasesEnded,
		"chase_mean", s.ChaseMeanSec,
		"chase_p90", s.ChaseP90Sec,
		"ore_sold_total", s.OreSoldTotal,
		"jumps_total", s.JumpsTotal,
	)
}
