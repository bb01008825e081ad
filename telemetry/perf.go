package telemetry

import (
	"log/slog"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Phase identifies one stage of the simulation step.
type Phase uint8

const (
	PhaseQuery Phase = iota
	PhaseAgents
	PhaseTackle
	PhaseModules
	PhaseMovement
	PhaseTravel
	PhaseCleanup
	PhaseTelemetry
	numPhases
)

var phaseNames = [numPhases]string{
	"query", "agents", "tackle", "modules", "movement", "travel", "cleanup", "telemetry",
}

func (p Phase) String() string {
	if p < numPhases {
		return phaseNames[p]
	}
	return "unknown"
}

// tickTiming is one recorded step.
type tickTiming struct {
	total  time.Duration
	phases [numPhases]time.Duration
}

// PerfCollector keeps a ring of step timings covering one stats window.
type PerfCollector struct {
	ring    []tickTiming
	next    int
	filled  int
	current tickTiming
	started time.Time
	mark    time.Time
	phase   Phase
	inPhase bool
}

// NewPerfCollector creates a collector remembering the last n steps.
func NewPerfCollector(n int) *PerfCollector {
	if n < 1 {
		n = 100
	}
	return &PerfCollector{ring: make([]tickTiming, n)}
}

// StartTick begins timing a step.
func (p *PerfCollector) StartTick() {
	p.started = time.Now()
	p.current = tickTiming{}
	p.inPhase = false
}

// StartPhase closes the running phase, if any, and opens the next one.
func (p *PerfCollector) StartPhase(phase Phase) {
	now := time.Now()
	p.closePhase(now)
	p.phase = phase
	p.mark = now
	p.inPhase = true
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.inPhase && p.phase < numPhases {
		p.current.phases[p.phase] += now.Sub(p.mark)
	}
	p.inPhase = false
}

// EndTick closes the step and stores it in the ring.
func (p *PerfCollector) EndTick() {
	now := time.Now()
	p.closePhase(now)
	p.current.total = now.Sub(p.started)

	p.ring[p.next] = p.current
	p.next = (p.next + 1) % len(p.ring)
	if p.filled < len(p.ring) {
		p.filled++
	}
}

// PerfStats summarizes the remembered steps.
type PerfStats struct {
	Samples int
	AvgTick time.Duration
	P95Tick time.Duration
	MaxTick time.Duration

	PhaseAvg [numPhases]time.Duration
	PhasePct [numPhases]float64 // share of the average step

	TicksPerSecond float64
}

// Stats aggregates the ring. An empty collector yields zero stats.
func (p *PerfCollector) Stats() PerfStats {
	var s PerfStats
	if p.filled == 0 {
		return s
	}
	s.Samples = p.filled

	totals := make([]float64, p.filled)
	var phaseSum [numPhases]time.Duration
	for i := 0; i < p.filled; i++ {
		tt := p.ring[i]
		totals[i] = float64(tt.total)
		if tt.total > s.MaxTick {
			s.MaxTick = tt.total
		}
		for ph, d := range tt.phases {
			phaseSum[ph] += d
		}
	}

	sort.Float64s(totals)
	s.AvgTick = time.Duration(stat.Mean(totals, nil))
	s.P95Tick = time.Duration(stat.Quantile(0.95, stat.Empirical, totals, nil))

	for ph := range phaseSum {
		s.PhaseAvg[ph] = phaseSum[ph] / time.Duration(p.filled)
		if s.AvgTick > 0 {
			s.PhasePct[ph] = 100 * float64(s.PhaseAvg[ph]) / float64(s.AvgTick)
		}
	}
	if s.AvgTick > 0 {
		s.TicksPerSecond = float64(time.Second) / float64(s.AvgTick)
	}
	return s
}

// LogStats logs the summary, skipping phases below a tenth of a percent.
func (s PerfStats) LogStats() {
	slog.Info("perf", "perf", s)
}

// LogValue implements slog.LogValuer.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_tick_us", s.AvgTick.Microseconds()),
		slog.Int64("p95_tick_us", s.P95Tick.Microseconds()),
		slog.Int64("max_tick_us", s.MaxTick.Microseconds()),
		slog.Int("ticks_per_sec", int(s.TicksPerSecond)),
	}
	for ph, pct := range s.PhasePct {
		if pct > 0.1 {
			attrs = append(attrs, slog.Float64(Phase(ph).String()+"_pct", float64(int(pct*10))/10))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is one perf.csv row.
type PerfStatsCSV struct {
	WindowEnd    int32   `csv:"window_end"`
	Samples      int     `csv:"samples"`
	AvgTickUS    int64   `csv:"avg_tick_us"`
	P95TickUS    int64   `csv:"p95_tick_us"`
	MaxTickUS    int64   `csv:"max_tick_us"`
	TicksPerSec  float64 `csv:"ticks_per_sec"`
	QueryPct     float64 `csv:"query_pct"`
	AgentsPct    float64 `csv:"agents_pct"`
	TacklePct    float64 `csv:"tackle_pct"`
	ModulesPct   float64 `csv:"modules_pct"`
	MovementPct  float64 `csv:"movement_pct"`
	TravelPct    float64 `csv:"travel_pct"`
	CleanupPct   float64 `csv:"cleanup_pct"`
	TelemetryPct float64 `csv:"telemetry_pct"`
}

// ToCSV flattens the summary for the window ending at windowEnd.
func (s PerfStats) ToCSV(windowEnd int32) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:    windowEnd,
		Samples:      s.Samples,
		AvgTickUS:    s.AvgTick.Microseconds(),
		P95TickUS:    s.P95Tick.Microseconds(),
		MaxTickUS:    s.MaxTick.Microseconds(),
		TicksPerSec:  s.TicksPerSecond,
		QueryPct:     s.PhasePct[PhaseQuery],
		AgentsPct:    s.PhasePct[PhaseAgents],
		TacklePct:    s.PhasePct[PhaseTackle],
		ModulesPct:   s.PhasePct[PhaseModules],
		MovementPct:  s.PhasePct[PhaseMovement],
		TravelPct:    s.PhasePct[PhaseTravel],
		CleanupPct:   s.PhasePct[PhaseCleanup],
		TelemetryPct: s.PhasePct[PhaseTelemetry],
	}
}
