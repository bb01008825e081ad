package systems

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/drift/capability"
	"github.com/pthm-cable/drift/components"
	"github.com/pthm-cable/drift/config"
	"github.com/pthm-cable/drift/steering"
)

// stateHandler runs one tick of a state: evaluate, move, maybe transition.
type stateHandler func(s *AgentSystem, a *agent, dt float32)

// agent bundles the components a handler works on for one tick.
type agent struct {
	e     ecs.Entity
	pos   *components.Position
	mot   *components.Motion
	body  *components.Body
	id    *components.Identity
	hp    *components.Health
	b     *components.Behavior
	dis   *components.Disruption // nil when the entity cannot be tackled
	cargo *components.Cargo      // nil when the ship has no hold
}

// AgentSystem is the per-agent behavior controller. Each tick it applies the
// flee pre-check and then dispatches to the handler for the current state.
type AgentSystem struct {
	world *ecs.World
	cfg   *config.Config
	space steering.Space
	rng   *rand.Rand

	filter  ecs.Filter6[components.Position, components.Motion, components.Body, components.Identity, components.Health, components.Behavior]
	mapper  *ecs.Map6[components.Position, components.Motion, components.Body, components.Identity, components.Health, components.Behavior]
	posMap  *ecs.Map[components.Position]
	motMap  *ecs.Map[components.Motion]
	bodyMap *ecs.Map[components.Body]
	idMap   *ecs.Map[components.Identity]
	hpMap   *ecs.Map[components.Health]
	behMap  *ecs.Map[components.Behavior]
	disMap  *ecs.Map[components.Disruption]
	cargo   *ecs.Map[components.Cargo]
	rocks   *ecs.Map[components.Asteroid]
	gates   *ecs.Map[components.Gate]

	query    *Query
	probe    capability.Probe
	travel   Travel
	economy  Economy
	recorder Recorder

	handlers [components.NumStates]stateHandler
	batch    []ecs.Entity
	now      float64
}

// NewAgentSystem creates the state machine with its collaborators.
func NewAgentSystem(w *ecs.World, cfg *config.Config, q *Query, probe capability.Probe, travel Travel, economy Economy, rng *rand.Rand) *AgentSystem {
	s := &AgentSystem{
		world:    w,
		cfg:      cfg,
		space:    q.Space(),
		rng:      rng,
		filter:   *ecs.NewFilter6[components.Position, components.Motion, components.Body, components.Identity, components.Health, components.Behavior](w),
		mapper:   ecs.NewMap6[components.Position, components.Motion, components.Body, components.Identity, components.Health, components.Behavior](w),
		posMap:   ecs.NewMap[components.Position](w),
		motMap:   ecs.NewMap[components.Motion](w),
		bodyMap:  ecs.NewMap[components.Body](w),
		idMap:    ecs.NewMap[components.Identity](w),
		hpMap:    ecs.NewMap[components.Health](w),
		behMap:   ecs.NewMap[components.Behavior](w),
		disMap:   ecs.NewMap[components.Disruption](w),
		cargo:    ecs.NewMap[components.Cargo](w),
		rocks:    ecs.NewMap[components.Asteroid](w),
		gates:    ecs.NewMap[components.Gate](w),
		query:    q,
		probe:    probe,
		travel:   travel,
		economy:  economy,
		recorder: nopRecorder{},
	}

	s.handlers = [components.NumStates]stateHandler{
		components.StateIdle:         (*AgentSystem).idle,
		components.StateTraveling:    (*AgentSystem).traveling,
		components.StateMining:       (*AgentSystem).mining,
		components.StateTradingBuy:   (*AgentSystem).tradingBuy,
		components.StateTradingSell:  (*AgentSystem).tradingSell,
		components.StateReturning:    (*AgentSystem).returning,
		components.StateRatting:      (*AgentSystem).ratting,
		components.StateRaiding:      (*AgentSystem).raiding,
		components.StateEngaging:     (*AgentSystem).engaging,
		components.StatePursuing:     (*AgentSystem).chase,
		components.StateIntercepting: (*AgentSystem).chase,
		components.StateTackling:     (*AgentSystem).chase,
		components.StateDisengaging:  (*AgentSystem).disengaging,
		components.StateSurveying:    (*AgentSystem).surveying,
		components.StateRepairing:    (*AgentSystem).repairing,
		components.StateDocking:      (*AgentSystem).docking,
		components.StateFleeing:      (*AgentSystem).fleeing,
	}
	return s
}

// SetRecorder sets the telemetry sink for transitions and verdicts.
func (s *AgentSystem) SetRecorder(r Recorder) {
	if r == nil {
		r = nopRecorder{}
	}
	s.recorder = r
}

// Update runs every live agent once. now is simulation time in seconds and
// must already include this tick's dt.
func (s *AgentSystem) Update(now float64, dt float32) {
	s.now = now

	// Collect first; handlers may warp agents and call collaborators.
	s.batch = s.batch[:0]
	query := s.filter.Query()
	for query.Next() {
		s.batch = append(s.batch, query.Entity())
	}

	fleeAt := float32(s.cfg.Agent.FleeThreshold)
	for _, e := range s.batch {
		if !s.world.Alive(e) {
			continue
		}
		a := s.load(e)

		if a.hp.HullFraction() <= fleeAt && a.b.State != components.StateFleeing {
			s.enterFlee(&a, fmt.Sprintf("hull at %.0f%%", a.hp.HullFraction()*100))
			continue
		}
		s.handlers[a.b.State](s, &a, dt)
	}
}

// AssignTask pushes a task onto an agent and starts working on it, routing
// across sectors first when needed.
func (s *AgentSystem) AssignTask(e ecs.Entity, task components.Task) {
	if !s.world.Alive(e) || !s.behMap.Has(e) {
		return
	}
	a := s.load(e)
	t := task
	a.b.Task = &t
	a.b.Target = ecs.Entity{}
	a.b.Route = nil
	a.b.RouteIndex = 0
	s.resumeTask(&a, "task "+t.Kind.String()+" assigned")
}

// SectorChanged is called by the travel collaborator once an agent has
// rematerialized in a new sector.
func (s *AgentSystem) SectorChanged(e ecs.Entity) {
	if !s.world.Alive(e) || !s.behMap.Has(e) {
		return
	}
	a := s.load(e)
	a.b.JumpPending = false
	a.b.Target = ecs.Entity{}
	a.b.HasPatrol = false
	a.b.HasAnchor = false
	a.b.HasSafePoint = false

	if a.b.State != components.StateTraveling {
		return
	}
	a.b.RouteIndex++
	if a.b.RouteIndex >= len(a.b.Route) {
		a.b.Route = nil
		a.b.RouteIndex = 0
		s.resumeTask(&a, fmt.Sprintf("arrived in sector %d", a.body.Sector))
	}
}

func (s *AgentSystem) load(e ecs.Entity) agent {
	pos, mot, body, id, hp, b := s.mapper.Get(e)
	a := agent{e: e, pos: pos, mot: mot, body: body, id: id, hp: hp, b: b}
	if s.disMap.Has(e) {
		a.dis = s.disMap.Get(e)
	}
	if s.cargo.Has(e) {
		a.cargo = s.cargo.Get(e)
	}
	return a
}

// transition is the only place State changes. It keeps the chase clock set
// exactly while in a chasing state and stops modules when leaving combat.
func (s *AgentSystem) transition(a *agent, to components.State, reason string) {
	from := a.b.State
	a.b.Reason = reason
	if from == to {
		return
	}

	if from.Chasing() && !to.Chasing() {
		s.recorder.RecordChaseEnded(a.id.ID, s.now-a.b.ChaseStart)
		a.b.ChaseStart = 0
	}
	if to.Chasing() && !from.Chasing() {
		a.b.ChaseStart = s.chaseClock()
	}
	if !(from.Combat() && to.Combat()) {
		s.probe.DeactivateAll(a.e)
	}

	a.b.State = to
	slog.Debug("transition", "agent", a.id.ID, "from", from.String(), "to", to.String(), "reason", reason)
	s.recorder.RecordTransition(a.id.ID, from, to, reason)
}

// chaseClock returns the chase start stamp. Zero means "not chasing", so a
// chase that starts at time zero is nudged forward.
func (s *AgentSystem) chaseClock() float64 {
	if s.now > 0 {
		return s.now
	}
	return math.SmallestNonzeroFloat64
}

func (s *AgentSystem) enterFlee(a *agent, reason string) {
	threat := a.b.Target
	if !s.validShip(a, threat) || !s.hostile(a, threat) {
		threat, _, _ = s.query.NearestMatching(a.e, func(o ecs.Entity) bool { return s.hostileShip(a, o) }, float32(s.cfg.Agent.ScanRange))
	}
	a.b.Target = ecs.Entity{}
	a.b.Threat = threat
	a.b.HasSafePoint = false
	s.transition(a, components.StateFleeing, reason)
}

// resumeTask is the arrival dispatch: it picks the working state for the
// current task, routing first when the work is in another sector.
func (s *AgentSystem) resumeTask(a *agent, reason string) {
	t := a.b.Task
	if t == nil {
		s.transition(a, components.StateIdle, reason)
		return
	}

	hasCargo := a.cargo != nil && !a.cargo.Empty()
	switch {
	case t.Kind == components.TaskHaul && hasCargo:
		s.transition(a, components.StateTradingSell, reason)
		return
	case t.Kind == components.TaskMine && hasCargo:
		s.transition(a, components.StateReturning, reason)
		return
	}

	// Haul legs route by station, not by task sector.
	if t.Kind != components.TaskHaul && t.Sector != 0 && t.Sector != a.body.Sector {
		s.travelTo(a, t.Sector, reason)
		return
	}
	s.transition(a, taskState(t.Kind), reason)
}

func taskState(k components.TaskKind) components.State {
	switch k {
	case components.TaskMine:
		return components.StateMining
	case components.TaskHaul:
		return components.StateTradingBuy
	case components.TaskHunt:
		return components.StateRatting
	case components.TaskRaid:
		return components.StateRaiding
	case components.TaskSurvey:
		return components.StateSurveying
	case components.TaskRepair:
		return components.StateRepairing
	}
	return components.StateIdle
}

// fallback returns to the task family after combat ends.
func (s *AgentSystem) fallback(a *agent, reason string) {
	a.b.Target = ecs.Entity{}
	switch a.b.TaskKind() {
	case components.TaskHunt:
		s.transition(a, components.StateRatting, reason)
	case components.TaskRaid:
		s.transition(a, components.StateRaiding, reason)
	default:
		s.transition(a, components.StateIdle, reason)
	}
}

func (s *AgentSystem) travelTo(a *agent, dest components.SectorID, reason string) {
	route := s.travel.FindRoute(a.body.Sector, dest)
	if len(route) == 0 {
		s.dropTask(a, fmt.Sprintf("no route from sector %d to %d", a.body.Sector, dest))
		return
	}
	a.b.Route = route
	a.b.RouteIndex = 0
	a.b.JumpPending = false
	s.transition(a, components.StateTraveling, reason)
}

// dropTask abandons a task that can no longer complete.
func (s *AgentSystem) dropTask(a *agent, reason string) {
	a.b.Task = nil
	a.b.Route = nil
	a.b.RouteIndex = 0
	a.b.Target = ecs.Entity{}
	s.transition(a, components.StateIdle, reason)
}

// Movement intents.

func (s *AgentSystem) hold(a *agent) {
	a.mot.DesiredSpeed = 0
}

func (s *AgentSystem) steerTo(a *agent, x, y, speed float32) {
	a.mot.DesiredHeading = s.space.Direction(a.pos.X, a.pos.Y, x, y)
	if d := s.space.Distance(a.pos.X, a.pos.Y, x, y); d < speed {
		speed = d
	}
	a.mot.DesiredSpeed = speed
}

// approach steers toward target and reports whether it is within reach.
func (s *AgentSystem) approach(a *agent, target ecs.Entity, reach float32) bool {
	p := s.posMap.Get(target)
	if s.space.Distance(a.pos.X, a.pos.Y, p.X, p.Y) <= reach {
		s.hold(a)
		return true
	}
	s.steerTo(a, p.X, p.Y, s.cruise(a))
	return false
}

// orbit circles target at a reduced speed, perpendicular to the line to it.
func (s *AgentSystem) orbit(a *agent, target ecs.Entity) {
	p := s.posMap.Get(target)
	bearing := s.space.Direction(a.pos.X, a.pos.Y, p.X, p.Y)
	a.mot.DesiredHeading = steering.Tangent(bearing, a.id.ID%2 == 0)
	a.mot.DesiredSpeed = a.mot.MaxSpeed * float32(s.cfg.Agent.OrbitSpeedFactor)
}

func (s *AgentSystem) cruise(a *agent) float32 {
	return a.mot.MaxSpeed * float32(s.cfg.Agent.CruiseSpeedFactor)
}

func (s *AgentSystem) distanceTo(a *agent, e ecs.Entity) float32 {
	p := s.posMap.Get(e)
	return s.space.Distance(a.pos.X, a.pos.Y, p.X, p.Y)
}

// Target validation. Targets are weak handles: every read re-checks them.

func (s *AgentSystem) inSector(a *agent, e ecs.Entity) bool {
	return !e.IsZero() && s.world.Alive(e) && s.bodyMap.Has(e) && s.posMap.Has(e) &&
		s.bodyMap.Get(e).Sector == a.body.Sector
}

// validShip reports whether e is a live, undocked ship or player in a's sector.
func (s *AgentSystem) validShip(a *agent, e ecs.Entity) bool {
	if e == a.e || !s.inSector(a, e) {
		return false
	}
	kind := s.bodyMap.Get(e).Kind
	if kind != components.KindShip && kind != components.KindPlayer {
		return false
	}
	if s.hpMap.Has(e) && s.hpMap.Get(e).Hull <= 0 {
		return false
	}
	if s.behMap.Has(e) && s.behMap.Get(e).State == components.StateDocking {
		return false
	}
	return true
}

func (s *AgentSystem) hostile(a *agent, e ecs.Entity) bool {
	return s.idMap.Has(e) && s.cfg.Hostile(a.id.Faction, s.idMap.Get(e).Faction)
}

func (s *AgentSystem) hostileShip(a *agent, e ecs.Entity) bool {
	return s.validShip(a, e) && s.hostile(a, e)
}

func (s *AgentSystem) nearestHostile(a *agent) ecs.Entity {
	e, _, _ := s.query.NearestMatching(a.e, func(o ecs.Entity) bool { return s.hostileShip(a, o) }, float32(s.cfg.Agent.ScanRange))
	return e
}

// nearestFriendlyStation prefers the home station when it is in this sector.
func (s *AgentSystem) nearestFriendlyStation(a *agent) (ecs.Entity, float32, bool) {
	if a.id.Home != 0 {
		if st, ok := s.query.FindStation(a.id.Home); ok && s.inSector(a, st) {
			return st, s.distanceTo(a, st), true
		}
	}
	return s.query.NearestMatching(a.e, func(o ecs.Entity) bool {
		return s.bodyMap.Get(o).Kind == components.KindStation && !s.hostile(a, o)
	}, 0)
}

// patrol wanders between random points in the sector. The anchor used by
// the pursuit leash is the last patrol point reached.
func (s *AgentSystem) patrol(a *agent) {
	reroll := float32(s.cfg.Agent.PatrolRerollDistance)
	if !a.b.HasPatrol || s.space.Distance(a.pos.X, a.pos.Y, a.b.Patrol.X, a.b.Patrol.Y) <= reroll {
		if a.b.HasPatrol {
			a.b.Anchor = a.b.Patrol
		} else {
			a.b.Anchor = *a.pos
		}
		a.b.HasAnchor = true
		a.b.Patrol = s.randomPoint(0)
		a.b.HasPatrol = true
	}
	s.steerTo(a, a.b.Patrol.X, a.b.Patrol.Y, s.cruise(a))
}

func (s *AgentSystem) randomPoint(margin float32) components.Position {
	x := s.rng.Float32() * s.space.W
	y := s.rng.Float32() * s.space.H
	x, y = s.space.ClampInside(x, y, margin)
	return components.Position{X: x, Y: y}
}

// defend keeps self-repair modules cycling while the matching layer is damaged.
func (s *AgentSystem) defend(a *agent) {
	if a.hp.Shield < a.hp.MaxShield {
		s.probe.ActivateModule(a.e, components.CapRepairShield)
	} else {
		s.probe.Deactivate(a.e, components.CapRepairShield)
	}
	if a.hp.Armor < a.hp.MaxArmor {
		s.probe.ActivateModule(a.e, components.CapRepairArmor)
	} else {
		s.probe.Deactivate(a.e, components.CapRepairArmor)
	}
}
