package main

import (
	"log/slog"
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/drift/config"
	"github.com/pthm-cable/drift/game"
	"github.com/pthm-cable/drift/telemetry"
)

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params      *ParamVector
	maxTicks    int32
	seeds       []int64
	baseConfig  *config.Config
	statsWindow float64

	mu          sync.Mutex
	lastQuality float64 // quality from most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, maxTicks int32, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		maxTicks:    maxTicks,
		seeds:       seeds,
		baseConfig:  baseCfg,
		statsWindow: 30.0,
	}
}

// LastQuality returns the quality score from the most recent evaluation.
func (fe *FitnessEvaluator) LastQuality() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastQuality
}

// Evaluate computes fitness for a parameter vector (lower = better).
// Fitness is the negated mean quality over the seeds that ran; seeds whose
// run failed are logged and left out. If none ran, fitness is 0.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	qualities := make([]float64, len(fe.seeds))
	ran := make([]bool, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			windows, err := fe.runSimulation(x, s)
			if err != nil {
				slog.Warn("simulation failed", "seed", s, "error", err)
				return
			}
			qualities[idx] = computeQuality(windows)
			ran[idx] = true
		}(i, seed)
	}
	wg.Wait()

	quality, _ := meanQuality(qualities, ran)

	fe.mu.Lock()
	fe.lastQuality = quality
	fe.mu.Unlock()

	return -quality
}

// meanQuality averages the qualities of the runs that completed and
// reports how many did.
func meanQuality(qualities []float64, ran []bool) (float64, int) {
	weights := make([]float64, len(qualities))
	n := 0
	for i, ok := range ran {
		if ok {
			weights[i] = 1
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return stat.Mean(qualities, weights), n
}

// runSimulation executes one headless run and returns its telemetry windows.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) ([]telemetry.WindowStats, error) {
	cfg, err := fe.baseConfig.Clone()
	if err != nil {
		return nil, err
	}
	cfg.Telemetry.StatsWindow = fe.statsWindow
	fe.params.ApplyToConfig(cfg, x)

	var windows []telemetry.WindowStats
	g := game.New(game.Options{
		Config: cfg,
		Seed:   seed,
		OnWindow: func(s telemetry.WindowStats) {
			windows = append(windows, s)
		},
	})
	if err := g.Seed(); err != nil {
		return nil, err
	}
	g.Run(int(fe.maxTicks))
	return windows, nil
}

// Quality component weights.
const (
	qualityWeightChase     = 0.30
	qualityWeightTackle    = 0.20
	qualityWeightEconomy   = 0.30
	qualityWeightStability = 0.20

	qualityWarmupWindows = 2 // skip first N windows (warmup)

	targetChaseSec  = 30.0
	targetTackleHit = 0.3  // share of chases that reach tackling
	oreScale        = 40.0 // ore sold per agent per window for a ~63% score
)

// computeQuality scores a run in [0, 1]. A good frontier has chases that
// last a while without running forever, some of them landing a tackle, a
// working ore economy and a population that is not being wiped out.
func computeQuality(windows []telemetry.WindowStats) float64 {
	if len(windows) <= qualityWarmupWindows {
		return 0
	}
	valid := windows[qualityWarmupWindows:]

	var chaseSum, tackleSum float64
	var chaseCount, tackleCount int
	agents := make([]float64, 0, len(valid))

	for _, w := range valid {
		agents = append(agents, float64(w.Agents))

		if w.ChasesEnded > 0 {
			d := (w.ChaseMeanSec - targetChaseSec) / 20
			chaseSum += math.Exp(-d * d)
			chaseCount++
		}
		if w.ChasesStarted > 0 {
			r := (float64(w.Tackles)/float64(w.ChasesStarted) - targetTackleHit) / 0.2
			tackleSum += math.Exp(-r * r)
			tackleCount++
		}
	}

	chaseScore := 0.0
	if chaseCount > 0 {
		chaseScore = chaseSum / float64(chaseCount)
	}
	tackleScore := 0.0
	if tackleCount > 0 {
		tackleScore = tackleSum / float64(tackleCount)
	}

	economyScore := 0.0
	first, last := valid[0], valid[len(valid)-1]
	if mean := stat.Mean(agents, nil); mean > 0 && len(valid) > 1 {
		perAgent := (last.OreSoldTotal - first.OreSoldTotal) / mean / float64(len(valid)-1)
		economyScore = 1 - math.Exp(-perAgent/oreScale)
	}

	stabilityScore := 0.0
	if len(agents) >= 2 {
		mean, std := stat.MeanStdDev(agents, nil)
		if mean > 0 {
			cv := std / mean
			stabilityScore = math.Exp(-cv * cv)
		}
	}

	quality := qualityWeightChase*chaseScore +
		qualityWeightTackle*tackleScore +
		qualityWeightEconomy*economyScore +
		qualityWeightStability*stabilityScore

	return clamp01(quality)
}

// clamp01 clamps x to [0, 1].
func clamp01(x float64) float64 {
	return min(max(x, 0), 1)
}
