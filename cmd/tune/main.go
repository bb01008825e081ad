// Command tune searches pursuit and flee parameters with CMA-ES for a
// frontier where chases resolve and the economy keeps running.
package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/drift/config"
)

type tuneOptions struct {
	configPath string
	outputDir  string
	maxTicks   int
	seeds      int
	maxEvals   int
	population int
}

// tuner records every evaluation and remembers the best one.
type tuner struct {
	params    *ParamVector
	eval      *FitnessEvaluator
	log       *csv.Writer
	maxEvals  int
	count     int
	best      float64
	bestRaw   []float64
	startedAt time.Time
}

func main() {
	var opts tuneOptions
	flag.StringVar(&opts.configPath, "config", "", "Base config YAML file (empty = defaults)")
	flag.StringVar(&opts.outputDir, "output", "", "Output directory for tune_log.csv and best_config.yaml")
	flag.IntVar(&opts.maxTicks, "max-ticks", 18000, "Ticks per simulation run")
	flag.IntVar(&opts.seeds, "seeds", 3, "Seeds per evaluation")
	flag.IntVar(&opts.maxEvals, "max-evals", 100, "Evaluation budget")
	flag.IntVar(&opts.population, "population", 0, "CMA-ES population (0 = 4 + 1.5*dim)")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := run(opts); err != nil {
		slog.Error("tune failed", "error", err)
		os.Exit(1)
	}
}

func run(opts tuneOptions) error {
	if opts.outputDir == "" {
		return errors.New("-output is required")
	}
	if err := os.MkdirAll(opts.outputDir, 0755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	base, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	params := NewParamVector()
	seeds := make([]int64, opts.seeds)
	for i := range seeds {
		seeds[i] = int64(42 + 1000*i)
	}

	f, err := os.Create(filepath.Join(opts.outputDir, "tune_log.csv"))
	if err != nil {
		return fmt.Errorf("creating tune log: %w", err)
	}
	defer f.Close()

	tu := &tuner{
		params:    params,
		eval:      NewFitnessEvaluator(params, int32(opts.maxTicks), seeds, base),
		log:       csv.NewWriter(f),
		maxEvals:  opts.maxEvals,
		best:      1e9,
		startedAt: time.Now(),
	}
	defer tu.log.Flush()

	header := []string{"eval", "fitness"}
	for _, s := range params.Specs {
		header = append(header, s.Name)
	}
	if err := tu.log.Write(header); err != nil {
		return fmt.Errorf("writing tune log: %w", err)
	}

	pop := opts.population
	if pop == 0 {
		pop = 4 + 3*params.Dim()/2
	}
	slog.Info("tuning",
		"params", params.Dim(), "population", pop, "max_evals", opts.maxEvals,
		"seeds", opts.seeds, "ticks_per_run", humanize.Comma(int64(opts.maxTicks)))

	x0 := params.Normalize(params.ExtractFromConfig(base))
	result, err := optimize.Minimize(
		optimize.Problem{Func: tu.objective},
		x0,
		&optimize.Settings{FuncEvaluations: opts.maxEvals},
		&optimize.CmaEsChol{InitStepSize: 0.3, Population: pop},
	)
	if err != nil {
		slog.Warn("optimizer stopped", "error", err)
	}
	if tu.bestRaw == nil && result != nil {
		tu.bestRaw = params.Clamp(params.Denormalize(result.X))
	}
	if tu.bestRaw == nil {
		return errors.New("no evaluation completed")
	}

	slog.Info("tuning complete",
		"evals", tu.count, "elapsed", time.Since(tu.startedAt).Round(time.Second), "quality", -tu.best)
	for i, s := range params.Specs {
		slog.Info("best", "param", s.Name, "path", s.Path, "value", tu.bestRaw[i])
	}

	out, err := base.Clone()
	if err != nil {
		return err
	}
	params.ApplyToConfig(out, tu.bestRaw)
	path := filepath.Join(opts.outputDir, "best_config.yaml")
	if err := out.WriteYAML(path); err != nil {
		return err
	}
	slog.Info("best config written", "path", path)
	return nil
}

// objective evaluates one normalized candidate and logs the clamped values
// the simulation actually ran with.
func (tu *tuner) objective(x []float64) float64 {
	raw := tu.params.Denormalize(x)
	fitness := tu.eval.Evaluate(raw)
	used := tu.params.Clamp(raw)
	tu.count++
	if fitness < tu.best {
		tu.best = fitness
		tu.bestRaw = used
	}

	row := []string{strconv.Itoa(tu.count), strconv.FormatFloat(fitness, 'f', 6, 64)}
	for _, v := range used {
		row = append(row, strconv.FormatFloat(v, 'f', 6, 64))
	}
	if err := tu.log.Write(row); err != nil {
		slog.Error("failed to write tune log", "error", err)
	}
	tu.log.Flush()

	elapsed := time.Since(tu.startedAt)
	eta := time.Duration(tu.maxEvals-tu.count) * (elapsed / time.Duration(tu.count))
	slog.Info("eval",
		"n", tu.count, "of", tu.maxEvals,
		"quality", tu.eval.LastQuality(), "best", -tu.best,
		"elapsed", elapsed.Round(time.Second), "eta", eta.Round(time.Second))
	return fitness
}
