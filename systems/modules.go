package systems

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/drift/components"
	"github.com/pthm-cable/drift/steering"
)

// ModuleSystem is the module plumbing: capacitor regen, cycle cooldowns and
// per-cycle effects. Cycles are countdowns checked each tick.
type ModuleSystem struct {
	world *ecs.World
	space steering.Space
	regen float32

	filter  ecs.Filter4[components.Position, components.Body, components.Modules, components.Capacitor]
	posMap  *ecs.Map[components.Position]
	bodyMap *ecs.Map[components.Body]
	hpMap   *ecs.Map[components.Health]
	motMap  *ecs.Map[components.Motion]

	// Cycles counts module cycles started since the last reset.
	Cycles int
}

// NewModuleSystem creates the module system. regen is energy per second.
func NewModuleSystem(w *ecs.World, space steering.Space, regen float32) *ModuleSystem {
	return &ModuleSystem{
		world:   w,
		space:   space,
		regen:   regen,
		filter:  *ecs.NewFilter4[components.Position, components.Body, components.Modules, components.Capacitor](w),
		posMap:  ecs.NewMap[components.Position](w),
		bodyMap: ecs.NewMap[components.Body](w),
		hpMap:   ecs.NewMap[components.Health](w),
		motMap:  ecs.NewMap[components.Motion](w),
	}
}

// Update advances every fitting by dt.
func (s *ModuleSystem) Update(dt float32) {
	query := s.filter.Query()
	for query.Next() {
		e := query.Entity()
		pos, body, mods, energy := query.Get()

		energy.Energy += s.regen * dt
		if energy.Energy > energy.Max {
			energy.Energy = energy.Max
		}
		for i := range mods.Slots {
			if mods.Slots[i].Cooldown > 0 {
				mods.Slots[i].Cooldown -= dt
			}
		}

		boost := float32(1)
		if mods.AnyActive() {
			boost = s.runActive(e, pos, body.Sector, mods, energy)
		}
		if s.motMap.Has(e) {
			s.motMap.Get(e).BoostFactor = boost
		}
	}
}

// runActive pays for and cycles every active module that is due, and
// returns the propulsion boost still in effect. A module the capacitor
// cannot pay for shuts down on its own; the rest keep running.
func (s *ModuleSystem) runActive(e ecs.Entity, pos *components.Position, sector components.SectorID, mods *components.Modules, energy *components.Capacitor) float32 {
	boost := float32(1)
	for i := range mods.Slots {
		m := &mods.Slots[i]
		if !m.Active {
			continue
		}
		if m.Tag.NeedsTarget() && (m.Target.IsZero() || !s.world.Alive(m.Target)) {
			m.Active = false
			m.Target = ecs.Entity{}
			continue
		}
		if m.Cooldown <= 0 {
			if energy.Energy < m.CapCost {
				m.Active = false
				m.Target = ecs.Entity{}
				continue
			}
			energy.Energy -= m.CapCost
			m.Cooldown = m.CycleTime
			s.Cycles++
			s.cycle(e, pos, sector, m)
		}
		if m.Tag == components.CapPropulsion && m.Strength > boost {
			boost = m.Strength
		}
	}
	return boost
}

// cycle applies the one-shot effect of a module cycle. Tackle effects are
// continuous and belong to TackleSystem.
func (s *ModuleSystem) cycle(e ecs.Entity, pos *components.Position, sector components.SectorID, m *components.Module) {
	switch m.Tag {
	case components.CapRepairShield:
		if s.hpMap.Has(e) {
			hp := s.hpMap.Get(e)
			hp.Shield = min(hp.MaxShield, hp.Shield+m.Strength)
		}
	case components.CapRepairArmor:
		if s.hpMap.Has(e) {
			hp := s.hpMap.Get(e)
			hp.Armor = min(hp.MaxArmor, hp.Armor+m.Strength)
		}
	case components.CapRemoteRepair:
		if hp := s.targetHealth(pos, sector, m); hp != nil {
			repair(hp, m.Strength)
		}
	case components.CapWeapon:
		if hp := s.targetHealth(pos, sector, m); hp != nil {
			Damage(hp, m.Strength)
		}
	}
}

func (s *ModuleSystem) targetHealth(pos *components.Position, sector components.SectorID, m *components.Module) *components.Health {
	t := m.Target
	if !s.hpMap.Has(t) || !s.posMap.Has(t) || !s.bodyMap.Has(t) || s.bodyMap.Get(t).Sector != sector {
		return nil
	}
	tp := s.posMap.Get(t)
	if m.Range > 0 && s.space.DistanceSq(pos.X, pos.Y, tp.X, tp.Y) > m.Range*m.Range {
		return nil
	}
	return s.hpMap.Get(t)
}

// Damage applies raw damage through shield, then armor, then hull.
func Damage(hp *components.Health, amount float32) {
	for _, layer := range []*float32{&hp.Shield, &hp.Armor, &hp.Hull} {
		if amount <= 0 {
			return
		}
		taken := min(*layer, amount)
		*layer -= taken
		amount -= taken
	}
}

// repair restores armor first, then hull, then shield.
func repair(hp *components.Health, amount float32) {
	layers := []struct{ cur, max *float32 }{
		{&hp.Armor, &hp.MaxArmor},
		{&hp.Hull, &hp.MaxHull},
		{&hp.Shield, &hp.MaxShield},
	}
	for _, l := range layers {
		if amount <= 0 {
			return
		}
		add := min(*l.max-*l.cur, amount)
		if add > 0 {
			*l.cur += add
			amount -= add
		}
	}
}
