// Package telemetry records behavior events, aggregates them into windows
// and writes them out as CSV.
package telemetry

import (
	"math"

	"github.com/pthm-cable/drift/components"
	"github.com/pthm-cable/drift/pursuit"
)

// Collector accumulates behavior events within time windows and produces
// WindowStats. It satisfies systems.Recorder.
type Collector struct {
	windowDurationSec   float64
	windowDurationTicks int32
	dt                  float32

	// Current window tracking
	windowStartTick int32

	// Event counters for current window
	transitions    int
	entered        [components.NumStates]int
	verdicts       [4]int
	chaseDurations []float64
	destroyed      int

	lifetimes *LifetimeTracker
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per tick (used for tick-to-time conversion)
func NewCollector(windowDurationSec float64, dt float32) *Collector {
	ticksPerWindow := int32(math.Round(windowDurationSec / float64(dt)))
	if ticksPerWindow < 1 {
		ticksPerWindow = 1
	}

	return &Collector{
		windowDurationSec:   windowDurationSec,
		windowDurationTicks: ticksPerWindow,
		dt:                  dt,
		lifetimes:           NewLifetimeTracker(),
	}
}

// RecordTransition records a state change.
func (c *Collector) RecordTransition(id uint32, from, to components.State, reason string) {
	c.transitions++
	if to < components.NumStates {
		c.entered[to]++
	}
	c.lifetimes.RecordTransition(id, to)
}

// RecordVerdict records one pursuit evaluation outcome.
func (c *Collector) RecordVerdict(id uint32, v pursuit.Verdict) {
	if int(v) < len(c.verdicts) {
		c.verdicts[v]++
	}
}

// RecordChaseEnded records how long a chase lasted, in seconds.
func (c *Collector) RecordChaseEnded(id uint32, duration float64) {
	c.chaseDurations = append(c.chaseDurations, duration)
	c.lifetimes.RecordChase(id, duration)
}

// RecordDestroyed records a ship removed at zero hull.
func (c *Collector) RecordDestroyed(id uint32) {
	c.destroyed++
	c.lifetimes.Remove(id)
}

// Lifetimes returns the per-agent tracker.
func (c *Collector) Lifetimes() *LifetimeTracker {
	return c.lifetimes
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int32) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Census is the population and cumulative totals sampled at window end.
type Census struct {
	States  [components.NumStates]int // Public states only
	Agents  int
	Pirates int

	// Cumulative totals owned by the collaborators
	OreMined     float64
	OreSold      float64
	GoodsTraded  float64
	Jumps        int
	Warps        int
	Sweeps       int
	ModuleCycles int
}

// Flush produces a WindowStats and resets counters for the next window.
func (c *Collector) Flush(currentTick int32, census Census) WindowStats {
	chaseMean, chaseP50, chaseP90, chaseMax := ComputeDurationStats(c.chaseDurations)

	st := census.States
	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      float64(currentTick) * float64(c.dt),

		Agents:      census.Agents,
		Pirates:     census.Pirates,
		Idle:        st[components.StateIdle],
		Traveling:   st[components.StateTraveling],
		Mining:      st[components.StateMining],
		Trading:     st[components.StateTradingBuy] + st[components.StateTradingSell],
		Returning:   st[components.StateReturning],
		Ratting:     st[components.StateRatting],
		Raiding:     st[components.StateRaiding],
		Engaging:    st[components.StateEngaging],
		Surveying:   st[components.StateSurveying],
		Repairing:   st[components.StateRepairing],
		Fleeing:     st[components.StateFleeing],
		Transitions: c.transitions,

		ChasesStarted: c.entered[components.StatePursuing],
		Tackles:       c.entered[components.StateTackling],
		Intercepts:    c.entered[components.StateIntercepting],
		Disengages:    c.entered[components.StateDisengaging],
		Flees:         c.entered[components.StateFleeing],
		Docks:         c.entered[components.StateDocking],

		VerdictContinue:  c.verdicts[pursuit.Continue],
		VerdictTackle:    c.verdicts[pursuit.Tackle],
		VerdictIntercept: c.verdicts[pursuit.Intercept],
		VerdictDisengage: c.verdicts[pursuit.Disengage],

		ChasesEnded:  len(c.chaseDurations),
		ChaseMeanSec: chaseMean,
		ChaseP50Sec:  chaseP50,
		ChaseP90Sec:  chaseP90,
		ChaseMaxSec:  chaseMax,
		Destroyed:    c.destroyed,

		OreMinedTotal:     census.OreMined,
		OreSoldTotal:      census.OreSold,
		GoodsTradedTotal:  census.GoodsTraded,
		JumpsTotal:        census.Jumps,
		WarpsTotal:        census.Warps,
		SweepsTotal:       census.Sweeps,
		ModuleCyclesTotal: census.ModuleCycles,
	}

	// Reset for next window
	c.windowStartTick = currentTick
	c.transitions = 0
	c.entered = [components.NumStates]int{}
	c.verdicts = [4]int{}
	c.chaseDurations = c.chaseDurations[:0]
	c.destroyed = 0

	return stats
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int32 {
	return c.windowDurationTicks
}

// Resume starts the current window at tick, for runs restored from a save.
func (c *Collector) Resume(tick int32) {
	c.windowStartTick = tick
}
