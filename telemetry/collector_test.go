package telemetry

import (
	"math"
	"testing"

	"github.com/pthm-cable/drift/components"
	"github.com/pthm-cable/drift/pursuit"
)

func TestCollectorShouldFlush(t *testing.T) {
	c := NewCollector(10, 0.1)
	if c.WindowDurationTicks() != 100 {
		t.Fatalf("ticks per window = %d, want 100", c.WindowDurationTicks())
	}
	if c.ShouldFlush(99) {
		t.Error("flushed early")
	}
	if !c.ShouldFlush(100) {
		t.Error("did not flush at window end")
	}
	c.Flush(100, Census{})
	if c.ShouldFlush(150) {
		t.Error("window start not advanced")
	}
}

func TestCollectorFlushCountsAndResets(t *testing.T) {
	c := NewCollector(10, 0.1)
	c.Lifetimes().Register(1, 0, 3, components.RoleRaider)

	c.RecordTransition(1, components.StateRaiding, components.StateEngaging, "target")
	c.RecordTransition(1, components.StateEngaging, components.StatePursuing, "out of range")
	c.RecordTransition(1, components.StatePursuing, components.StateTackling, "close")
	c.RecordTransition(2, components.StateMining, components.StateFleeing, "hull")
	c.RecordVerdict(1, pursuit.Continue)
	c.RecordVerdict(1, pursuit.Continue)
	c.RecordVerdict(1, pursuit.Tackle)
	c.RecordChaseEnded(1, 20)
	c.RecordChaseEnded(1, 40)
	c.RecordDestroyed(9)

	var census Census
	census.Agents = 10
	census.States[components.StateTradingBuy] = 2
	census.States[components.StateTradingSell] = 1
	census.Jumps = 7

	s := c.Flush(100, census)
	if s.Transitions != 4 || s.ChasesStarted != 1 || s.Tackles != 1 || s.Flees != 1 {
		t.Errorf("event counts = %+v", s)
	}
	if s.VerdictContinue != 2 || s.VerdictTackle != 1 || s.VerdictDisengage != 0 {
		t.Errorf("verdicts = %d/%d/%d", s.VerdictContinue, s.VerdictTackle, s.VerdictDisengage)
	}
	if s.ChasesEnded != 2 || math.Abs(s.ChaseMeanSec-30) > 0.001 || s.ChaseMaxSec != 40 {
		t.Errorf("chase stats = %d mean %v max %v", s.ChasesEnded, s.ChaseMeanSec, s.ChaseMaxSec)
	}
	if s.Trading != 3 || s.Agents != 10 || s.JumpsTotal != 7 || s.Destroyed != 1 {
		t.Errorf("census = %+v", s)
	}
	if math.Abs(s.SimTimeSec-10) > 0.001 {
		t.Errorf("sim time = %v, want 10", s.SimTimeSec)
	}

	lt := c.Lifetimes().Get(1)
	if lt == nil || lt.Chases != 1 || lt.Tackles != 1 || lt.ChaseTimeSec != 60 {
		t.Errorf("lifetime = %+v", lt)
	}

	next := c.Flush(200, Census{})
	if next.Transitions != 0 || next.ChasesEnded != 0 || next.VerdictContinue != 0 || next.Destroyed != 0 {
		t.Errorf("counters not reset: %+v", next)
	}
	if next.WindowStartTick != 100 {
		t.Errorf("window start = %d, want 100", next.WindowStartTick)
	}
}

func TestLifetimeRemovedOnDestroy(t *testing.T) {
	c := NewCollector(10, 0.1)
	c.Lifetimes().Register(4, 0, 1, components.RoleMiner)
	c.RecordDestroyed(4)
	if c.Lifetimes().Get(4) != nil || c.Lifetimes().Count() != 0 {
		t.Error("destroyed agent still tracked")
	}
	// Events for unknown agents are ignored
	c.RecordTransition(4, components.StateIdle, components.StateFleeing, "x")
	c.RecordChaseEnded(4, 3)
}
