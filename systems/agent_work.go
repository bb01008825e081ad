package systems

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/drift/components"
)

func (s *AgentSystem) idle(a *agent, dt float32) {
	s.hold(a)
}

func (s *AgentSystem) traveling(a *agent, dt float32) {
	if a.b.JumpPending || a.mot.Warping {
		s.hold(a)
		return
	}
	if a.b.RouteIndex >= len(a.b.Route) {
		a.b.Route = nil
		a.b.RouteIndex = 0
		s.resumeTask(a, "route complete")
		return
	}

	next := a.b.Route[a.b.RouteIndex]
	gate, dist, ok := s.query.NearestMatching(a.e, func(o ecs.Entity) bool {
		return s.gates.Has(o) && s.gates.Get(o).Dest == next
	}, 0)
	if !ok {
		s.dropTask(a, fmt.Sprintf("no gate to sector %d", next))
		return
	}

	if dist <= float32(s.cfg.Agent.GateActivationRadius) {
		s.hold(a)
		s.travel.RequestGateJump(a.e, next)
		a.b.JumpPending = true
		return
	}
	p := s.posMap.Get(gate)
	s.steerTo(a, p.X, p.Y, s.cruise(a))
}

func (s *AgentSystem) mining(a *agent, dt float32) {
	if a.cargo == nil {
		s.dropTask(a, "no cargo hold")
		return
	}
	if a.cargo.Full() {
		s.transition(a, components.StateReturning, "cargo full")
		return
	}

	rock := a.b.Target
	if !s.validAsteroid(a, rock) {
		var ok bool
		rock, _, ok = s.query.NearestMatching(a.e, func(o ecs.Entity) bool { return s.validAsteroid(a, o) }, 0)
		if !ok {
			a.b.Target = ecs.Entity{}
			if !a.cargo.Empty() {
				s.transition(a, components.StateReturning, "field depleted")
			} else {
				s.dropTask(a, "no asteroids in sector")
			}
			return
		}
		a.b.Target = rock
	}

	if !s.approach(a, rock, float32(s.cfg.Agent.MiningRange)) {
		return
	}
	if s.probe.ActivateModule(a.e, components.CapMining) {
		s.economy.HandleMine(a.e, rock, dt)
	}
}

func (s *AgentSystem) validAsteroid(a *agent, e ecs.Entity) bool {
	return s.inSector(a, e) && s.rocks.Has(e) && !s.rocks.Get(e).Depleted()
}

func (s *AgentSystem) tradingBuy(a *agent, dt float32) {
	if a.b.Task == nil || a.cargo == nil {
		s.dropTask(a, "nothing to trade")
		return
	}
	st, ok := s.approachStation(a, a.b.Task.BuyStation, "heading to buy station")
	if !ok {
		return
	}
	s.economy.HandleBuy(a.e, st)
	if a.cargo.Empty() {
		s.dropTask(a, "nothing to buy")
		return
	}
	s.transition(a, components.StateTradingSell, "bought cargo")
}

func (s *AgentSystem) tradingSell(a *agent, dt float32) {
	if a.b.Task == nil || a.cargo == nil {
		s.dropTask(a, "nothing to trade")
		return
	}
	st, ok := s.approachStation(a, a.b.Task.SellStation, "heading to sell station")
	if !ok {
		return
	}
	s.economy.HandleSell(a.e, st)
	s.transition(a, components.StateTradingBuy, "sold cargo")
}

// approachStation moves toward the station with the given ID, routing to its
// sector first. ID zero means the nearest friendly station here. Returns the
// station once within interaction range.
func (s *AgentSystem) approachStation(a *agent, id uint32, reason string) (ecs.Entity, bool) {
	var st ecs.Entity
	if id != 0 {
		found, ok := s.query.FindStation(id)
		if !ok {
			s.dropTask(a, fmt.Sprintf("station %d gone", id))
			return st, false
		}
		if sector := s.bodyMap.Get(found).Sector; sector != a.body.Sector {
			s.travelTo(a, sector, reason)
			return st, false
		}
		st = found
	} else {
		found, _, ok := s.nearestFriendlyStation(a)
		if !ok {
			s.dropTask(a, "no station in sector")
			return st, false
		}
		st = found
	}
	return st, s.approach(a, st, float32(s.cfg.Agent.StationRange))
}

func (s *AgentSystem) returning(a *agent, dt float32) {
	st, _, ok := s.nearestFriendlyStation(a)
	if !ok {
		home, found := s.query.FindStation(a.id.Home)
		if a.id.Home == 0 || !found {
			s.dropTask(a, "nowhere to return")
			return
		}
		s.travelTo(a, s.bodyMap.Get(home).Sector, "heading home")
		return
	}

	if !s.approach(a, st, float32(s.cfg.Agent.StationRange)) {
		return
	}
	if a.cargo != nil && !a.cargo.Empty() {
		s.economy.HandleSell(a.e, st)
	}
	s.enterDocking(a, st, "returned to station")
}

// enterDocking repairs the agent and parks it at the station for the
// docking duration. The task is kept so it can resume afterwards.
func (s *AgentSystem) enterDocking(a *agent, st ecs.Entity, reason string) {
	s.economy.HandleDockAndRepair(a.e, st)
	p := s.posMap.Get(st)
	a.pos.X, a.pos.Y = p.X, p.Y
	a.mot.Speed = 0
	a.mot.DesiredSpeed = 0
	a.b.Target = st
	a.b.Threat = ecs.Entity{}
	a.b.HasSafePoint = false
	a.b.Timer = float32(s.cfg.Agent.DockingDuration)
	s.transition(a, components.StateDocking, reason)
}

func (s *AgentSystem) docking(a *agent, dt float32) {
	s.hold(a)
	a.mot.Speed = 0
	a.b.Timer -= dt
	if a.b.Timer > 0 {
		return
	}

	st := a.b.Target
	a.b.Target = ecs.Entity{}
	a.b.Timer = 0
	if s.inSector(a, st) {
		p := s.posMap.Get(st)
		angle := randomAngle(s.rng.Float64())
		off := float32(s.cfg.Agent.UndockDistance)
		a.pos.X, a.pos.Y = s.space.Wrap(
			p.X+off*float32(math.Cos(float64(angle))),
			p.Y+off*float32(math.Sin(float64(angle))),
		)
		a.mot.Heading = angle
		a.mot.DesiredHeading = angle
	}
	s.resumeTask(a, "undocked")
}

func (s *AgentSystem) surveying(a *agent, dt float32) {
	t := a.b.Target
	if !s.validSurveyTarget(a, t) {
		var ok bool
		t, _, ok = s.query.NearestMatching(a.e, func(o ecs.Entity) bool {
			return o != a.b.Surveyed && s.validSurveyTarget(a, o)
		}, 0)
		if !ok {
			a.b.Target = ecs.Entity{}
			s.patrol(a)
			return
		}
		a.b.Target = t
		a.b.Timer = float32(s.cfg.Agent.SurveyDuration)
	}

	if !s.approach(a, t, float32(s.cfg.Agent.SurveyRange)) {
		return
	}
	s.orbit(a, t)
	if s.probe.ActivateModule(a.e, components.CapSurvey) {
		a.b.Timer -= dt
	}
	if a.b.Timer <= 0 {
		slog.Debug("survey complete", "agent", a.id.ID)
		a.b.Surveyed = t
		a.b.Target = ecs.Entity{}
		s.probe.Deactivate(a.e, components.CapSurvey)
	}
}

func (s *AgentSystem) validSurveyTarget(a *agent, e ecs.Entity) bool {
	if !s.inSector(a, e) {
		return false
	}
	kind := s.bodyMap.Get(e).Kind
	return kind == components.KindAsteroid || kind == components.KindPlanet
}

func (s *AgentSystem) repairing(a *agent, dt float32) {
	s.defend(a)

	t := a.b.Target
	if !s.repairable(a, t) {
		t = s.mostDamagedAlly(a)
		a.b.Target = t
		if t.IsZero() {
			s.probe.Deactivate(a.e, components.CapRemoteRepair)
			s.patrol(a)
			return
		}
	}

	if s.distanceTo(a, t) > float32(s.cfg.Agent.RepairRange) {
		p := s.posMap.Get(t)
		s.steerTo(a, p.X, p.Y, s.cruise(a))
		return
	}
	s.orbit(a, t)
	s.probe.ActivateModule(a.e, components.CapRemoteRepair)
}

func (s *AgentSystem) repairable(a *agent, e ecs.Entity) bool {
	return s.validShip(a, e) && !s.hostile(a, e) && s.hpMap.Has(e) && s.hpMap.Get(e).Damaged()
}

// mostDamagedAlly returns the non-hostile ship in scan range with the lowest
// remaining health share.
func (s *AgentSystem) mostDamagedAlly(a *agent) ecs.Entity {
	var best ecs.Entity
	bestFrac := float32(2)
	for _, n := range s.query.Within(a.e, float32(s.cfg.Agent.ScanRange)) {
		if !s.repairable(a, n.E) {
			continue
		}
		if f := s.hpMap.Get(n.E).Fraction(); f < bestFrac {
			best, bestFrac = n.E, f
		}
	}
	return best
}
