package systems

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/drift/components"
	"github.com/pthm-cable/drift/steering"
)

// application is one tackle effect captured at the start of a sweep.
type application struct {
	source   ecs.Entity
	target   ecs.Entity
	effect   components.Effect
	strength float32
}

// TackleSystem recomputes warp disruption, webs and capacitor drain at a
// fixed rate. It is the only writer of Disruption.
type TackleSystem struct {
	world    *ecs.World
	space    steering.Space
	interval float32
	transfer float32
	accum    float32

	flags   ecs.Filter2[components.Body, components.Disruption]
	fitted  ecs.Filter3[components.Position, components.Body, components.Modules]
	posMap  *ecs.Map[components.Position]
	bodyMap *ecs.Map[components.Body]
	disMap  *ecs.Map[components.Disruption]
	capMap  *ecs.Map[components.Capacitor]

	apps []application
}

// NewTackleSystem creates a resolver sweeping every interval seconds.
// transfer is the share of drained energy returned to the drainer.
func NewTackleSystem(w *ecs.World, space steering.Space, interval, transfer float32) *TackleSystem {
	return &TackleSystem{
		world:    w,
		space:    space,
		interval: interval,
		transfer: transfer,
		flags:    *ecs.NewFilter2[components.Body, components.Disruption](w),
		fitted:   *ecs.NewFilter3[components.Position, components.Body, components.Modules](w),
		posMap:   ecs.NewMap[components.Position](w),
		bodyMap:  ecs.NewMap[components.Body](w),
		disMap:   ecs.NewMap[components.Disruption](w),
		capMap:   ecs.NewMap[components.Capacitor](w),
	}
}

// Update accumulates dt and runs as many sweeps as have come due.
// Returns the number of sweeps run.
func (s *TackleSystem) Update(dt float32) int {
	if s.interval <= 0 {
		return 0
	}
	s.accum += dt
	sweeps := 0
	for s.accum >= s.interval {
		s.accum -= s.interval
		s.Sweep()
		sweeps++
	}
	return sweeps
}

// Sweep clears every flag, then applies every in-range active tackle module.
func (s *TackleSystem) Sweep() {
	// Snapshot first so the apply phase sees positions and targets as
	// they stood when the sweep began.
	s.apps = s.apps[:0]
	query := s.fitted.Query()
	for query.Next() {
		e := query.Entity()
		pos, body, mods := query.Get()
		for i := range mods.Slots {
			m := &mods.Slots[i]
			if !m.Active || m.Tag != components.CapTackle || m.Effect == components.EffectNone {
				continue
			}
			if !s.inRange(pos, body.Sector, m.Target, m.Range) {
				continue
			}
			s.apps = append(s.apps, application{source: e, target: m.Target, effect: m.Effect, strength: m.Strength})
		}
	}

	clearQuery := s.flags.Query()
	for clearQuery.Next() {
		body, dis := clearQuery.Get()
		if body.Kind.Static() {
			continue
		}
		dis.Clear()
	}

	for _, app := range s.apps {
		s.apply(app)
	}
}

func (s *TackleSystem) inRange(pos *components.Position, sector components.SectorID, target ecs.Entity, reach float32) bool {
	if target.IsZero() || !s.world.Alive(target) || !s.disMap.Has(target) || !s.posMap.Has(target) {
		return false
	}
	body := s.bodyMap.Get(target)
	if body.Kind.Static() || body.Sector != sector {
		return false
	}
	tp := s.posMap.Get(target)
	return s.space.DistanceSq(pos.X, pos.Y, tp.X, tp.Y) <= reach*reach
}

func (s *TackleSystem) apply(app application) {
	dis := s.disMap.Get(app.target)
	switch app.effect {
	case components.EffectWarpDisrupt:
		dis.Pointed = true
	case components.EffectWeb:
		dis.Webbed = true
		// Overlapping webs keep the strongest, never stack.
		if app.strength < dis.WebSpeedFactor {
			dis.WebSpeedFactor = app.strength
		}
	case components.EffectEnergyDrain:
		dis.Nosed = true
		s.drain(app)
	}
}

// drain moves capacitor from target to source, scaled by the sweep interval.
func (s *TackleSystem) drain(app application) {
	if !s.capMap.Has(app.target) {
		return
	}
	tc := s.capMap.Get(app.target)
	amount := app.strength * s.interval
	if amount > tc.Energy {
		amount = tc.Energy
	}
	tc.Energy -= amount

	if !s.world.Alive(app.source) || !s.capMap.Has(app.source) {
		return
	}
	sc := s.capMap.Get(app.source)
	sc.Energy += amount * s.transfer
	if sc.Energy > sc.Max {
		sc.Energy = sc.Max
	}
}
