package components

import "github.com/mlange-42/ark/ecs"

// State is the behavioral state of an agent. The enumeration is flat.
type State uint8

const (
	StateIdle State = iota
	StateTraveling
	StateMining
	StateTradingBuy
	StateTradingSell
	StateReturning
	StateRatting
	StateRaiding
	StateEngaging
	StatePursuing
	StateIntercepting
	StateTackling
	StateDisengaging
	StateSurveying
	StateRepairing
	StateDocking
	StateFleeing

	NumStates
)

// Chasing reports whether the chase clock runs in this state.
func (s State) Chasing() bool {
	return s == StatePursuing || s == StateIntercepting || s == StateTackling
}

// Combat reports whether the state belongs to the engagement group.
func (s State) Combat() bool {
	return s == StateEngaging || s == StateDisengaging || s.Chasing()
}

// Public collapses transient sub-states into the coarser state that is stored.
// Pursuit sub-states become engaging; docking becomes idle.
func (s State) Public() State {
	switch {
	case s.Combat():
		return StateEngaging
	case s == StateDocking:
		return StateIdle
	}
	return s
}

// TaskKind enumerates multi-leg objectives.
type TaskKind uint8

const (
	TaskNone TaskKind = iota
	TaskMine
	TaskHaul
	TaskHunt
	TaskRaid
	TaskSurvey
	TaskRepair
)

// Task is an externally assigned objective that outlives any single state.
type Task struct {
	Kind        TaskKind `json:"kind"`
	Sector      SectorID `json:"sector,omitempty"` // Work sector, 0 = wherever the agent is
	BuyStation  uint32   `json:"buy_station,omitempty"`
	SellStation uint32   `json:"sell_station,omitempty"`
}

// Behavior holds the state machine data for one agent.
type Behavior struct {
	State  State      `inspect:"label"`
	Task   *Task      `inspect:"skip"`
	Target ecs.Entity `inspect:"skip"` // Weak handle, re-validated on every read

	ChaseStart float64 `inspect:"label,fmt:%.1fs"` // Non-zero only while chasing

	Anchor    Position `inspect:"skip"` // Last patrol point, the pursuit leash center
	HasAnchor bool     `inspect:"skip"`
	Patrol    Position `inspect:"skip"`
	HasPatrol bool     `inspect:"skip"`

	Route       []SectorID `inspect:"skip"`
	RouteIndex  int        `inspect:"label"`
	JumpPending bool       `inspect:"bool"`

	Threat       ecs.Entity `inspect:"skip"` // Who made us flee
	SafePoint    Position   `inspect:"skip"`
	HasSafePoint bool       `inspect:"skip"`

	Timer    float32    `inspect:"label,fmt:%.1fs"` // Docking wait or survey countdown
	Surveyed ecs.Entity `inspect:"skip"`            // Last completed survey target

	Reason string `inspect:"label"` // Why the last transition happened, for telemetry only
}

// TaskKind returns the current task kind, or TaskNone.
func (b *Behavior) TaskKind() TaskKind {
	if b.Task == nil {
		return TaskNone
	}
	return b.Task.Kind
}
