package systems

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/drift/components"
	"github.com/pthm-cable/drift/pursuit"
)

// RaidPriority ranks raid targets. Zero means not a raid target.
func RaidPriority(kind components.Kind, role components.Role) int {
	if kind == components.KindPlayer {
		return 2
	}
	if kind != components.KindShip {
		return 0
	}
	switch role {
	case components.RoleMiner:
		return 3
	case components.RoleHauler:
		return 2
	case components.RoleRatter:
		return 1
	}
	return 0
}

func (s *AgentSystem) ratting(a *agent, dt float32) {
	if t := s.nearestHostile(a); !t.IsZero() {
		a.b.Target = t
		s.transition(a, components.StateEngaging, "hostile spotted")
		return
	}
	s.patrol(a)
}

func (s *AgentSystem) raiding(a *agent, dt float32) {
	var best ecs.Entity
	bestPrio, bestSq := 0, float32(0)
	for _, n := range s.query.Within(a.e, float32(s.cfg.Agent.ScanRange)) {
		if !s.hostileShip(a, n.E) {
			continue
		}
		var role components.Role
		if s.idMap.Has(n.E) {
			role = s.idMap.Get(n.E).Role
		}
		prio := RaidPriority(s.bodyMap.Get(n.E).Kind, role)
		if prio == 0 {
			continue
		}
		// Higher priority always wins; distance only breaks ties.
		if prio > bestPrio || (prio == bestPrio && n.DistSq < bestSq) {
			best, bestPrio, bestSq = n.E, prio, n.DistSq
		}
	}

	if bestPrio > 0 {
		a.b.Target = best
		s.transition(a, components.StateEngaging, fmt.Sprintf("raid target priority %d", bestPrio))
		return
	}
	s.patrol(a)
}

func (s *AgentSystem) engaging(a *agent, dt float32) {
	t := a.b.Target
	if !s.validShip(a, t) {
		s.fallback(a, "target lost")
		return
	}

	attack := float32(s.cfg.Agent.AttackRange)
	d := s.distanceTo(a, t)
	if d > attack*float32(s.cfg.Agent.ChaseTriggerMultiplier) {
		s.transition(a, components.StatePursuing, fmt.Sprintf("target opened to %.0f", d))
		return
	}

	if d > attack {
		p := s.posMap.Get(t)
		s.steerTo(a, p.X, p.Y, a.mot.MaxSpeed)
	} else {
		s.orbit(a, t)
	}
	s.probe.ActivateModule(a.e, components.CapWeapon)
	s.probe.ActivateModule(a.e, components.CapTackle)
	s.defend(a)
}

// chase runs pursuing, intercepting and tackling. The evaluator picks the
// sub-state every tick; none of them carry memory beyond the chase clock.
func (s *AgentSystem) chase(a *agent, dt float32) {
	t := a.b.Target
	if !s.validShip(a, t) {
		s.fallback(a, "target lost")
		return
	}
	if s.distanceTo(a, t) <= float32(s.cfg.Agent.AttackRange) {
		s.transition(a, components.StateEngaging, "back in range")
		return
	}

	res := pursuit.Evaluate(s.chaserSnapshot(a), s.targetSnapshot(t), s.pursuitContext(a))
	s.recorder.RecordVerdict(a.id.ID, res.Verdict)
	slog.Debug("pursuit", "agent", a.id.ID, "verdict", res.Verdict.String(), "reason", res.Reason)

	switch res.Verdict {
	case pursuit.Disengage:
		s.transition(a, components.StateDisengaging, res.Reason)
		return
	case pursuit.Tackle:
		s.transition(a, components.StateTackling, res.Reason)
		s.probe.ActivateModule(a.e, components.CapTackle)
	case pursuit.Intercept:
		s.transition(a, components.StateIntercepting, res.Reason)
		if s.travel.RequestLocalWarp(a.e, res.InterceptX, res.InterceptY) {
			return
		}
	default:
		s.transition(a, components.StatePursuing, res.Reason)
	}

	s.probe.ActivateModule(a.e, components.CapPropulsion)
	p := s.posMap.Get(t)
	s.steerTo(a, p.X, p.Y, a.mot.MaxSpeed)
}

func (s *AgentSystem) disengaging(a *agent, dt float32) {
	s.fallback(a, "disengaged")
}

func (s *AgentSystem) chaserSnapshot(a *agent) pursuit.Ship {
	return pursuit.Ship{
		X:           a.pos.X,
		Y:           a.pos.Y,
		Heading:     a.mot.Heading,
		Speed:       a.mot.Speed,
		MaxSpeed:    a.mot.MaxSpeed,
		TackleReady: s.probe.HasReadyModule(a.e, components.CapTackle),
		WarpReady:   s.travel.CanLocalWarp(a.e),
	}
}

func (s *AgentSystem) targetSnapshot(t ecs.Entity) pursuit.Ship {
	p := s.posMap.Get(t)
	ship := pursuit.Ship{X: p.X, Y: p.Y}
	if s.motMap.Has(t) {
		m := s.motMap.Get(t)
		ship.Heading = m.Heading
		ship.Speed = m.Speed
		ship.MaxSpeed = m.MaxSpeed
		ship.Warping = m.Warping
	}
	return ship
}

func (s *AgentSystem) pursuitContext(a *agent) pursuit.Context {
	return pursuit.Context{
		ChaseStart:       a.b.ChaseStart,
		Now:              s.now,
		MaxChaseTime:     s.cfg.MaxChaseTime(a.id.Faction),
		HasAnchor:        a.b.HasAnchor,
		AnchorX:          a.b.Anchor.X,
		AnchorY:          a.b.Anchor.Y,
		MaxHomeDistance:  s.cfg.Derived.LeashDistance,
		CloseRange:       float32(s.cfg.Pursuit.CloseRange),
		InterceptLeadCap: float32(s.cfg.Pursuit.InterceptLeadCap),
		AlliesNearby:     s.alliesNearby(a),
		Space:            s.space,
	}
}

func (s *AgentSystem) alliesNearby(a *agent) int {
	n := 0
	for _, nb := range s.query.Within(a.e, float32(s.cfg.Agent.ScanRange)) {
		if s.validShip(a, nb.E) && s.idMap.Has(nb.E) && s.idMap.Get(nb.E).Faction == a.id.Faction {
			n++
		}
	}
	return n
}

// fleeing runs for the nearest friendly station and docks there. With no
// station it hops between random safe points until nothing hostile is in
// scan range and the hull has recovered.
func (s *AgentSystem) fleeing(a *agent, dt float32) {
	threat := a.b.Threat
	if !s.hostileShip(a, threat) {
		threat = s.nearestHostile(a)
		a.b.Threat = threat
	}

	var destX, destY float32
	if st, d, ok := s.nearestFriendlyStation(a); ok {
		if d <= float32(s.cfg.Agent.DockingRange) {
			s.enterDocking(a, st, "docked while fleeing")
			return
		}
		p := s.posMap.Get(st)
		destX, destY = p.X, p.Y
	} else {
		if !a.b.HasSafePoint {
			s.pickSafePoint(a)
		}
		if s.space.Distance(a.pos.X, a.pos.Y, a.b.SafePoint.X, a.b.SafePoint.Y) <= float32(s.cfg.Agent.PatrolRerollDistance) {
			if threat.IsZero() && a.hp.HullFraction() > float32(s.cfg.Agent.FleeRecoverFraction) {
				a.b.HasSafePoint = false
				s.resumeTask(a, "shook off pursuit")
				return
			}
			s.pickSafePoint(a)
		}
		destX, destY = a.b.SafePoint.X, a.b.SafePoint.Y
	}

	if a.dis != nil && a.dis.Pointed {
		s.probe.ActivateModule(a.e, components.CapPropulsion)
		s.steerTo(a, destX, destY, a.mot.MaxSpeed)
		return
	}

	threatDist := float32(math.Inf(1))
	if !threat.IsZero() {
		threatDist = s.distanceTo(a, threat)
	}
	far := s.space.Distance(a.pos.X, a.pos.Y, destX, destY) > float32(s.cfg.Agent.DockingRange)
	if far && threatDist >= float32(s.cfg.Agent.FleeWarpMinThreatDist) && s.travel.RequestLocalWarp(a.e, destX, destY) {
		return
	}
	s.steerTo(a, destX, destY, a.mot.MaxSpeed)
}

func (s *AgentSystem) pickSafePoint(a *agent) {
	a.b.SafePoint = s.randomPoint(float32(s.cfg.Agent.FleeSafeMargin))
	a.b.HasSafePoint = true
}
