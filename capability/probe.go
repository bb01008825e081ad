// Package capability answers "does this agent have a module of kind X fitted
// and ready" without exposing module internals to the state machine.
package capability

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/drift/components"
)

// Probe is the narrow view of the equipment system that behavior code uses.
type Probe interface {
	HasReadyModule(e ecs.Entity, tag components.Capability) bool
	ActivateModule(e ecs.Entity, tag components.Capability) bool
	Deactivate(e ecs.Entity, tag components.Capability)
	DeactivateAll(e ecs.Entity)
}

// ModuleProbe implements Probe over the Modules and Capacitor components.
// Targeted modules lock onto the agent's current behavior target.
type ModuleProbe struct {
	world    *ecs.World
	modMap   *ecs.Map[components.Modules]
	capMap   *ecs.Map[components.Capacitor]
	behavMap *ecs.Map[components.Behavior]
}

// NewModuleProbe creates a probe bound to the given world.
func NewModuleProbe(w *ecs.World) *ModuleProbe {
	return &ModuleProbe{
		world:    w,
		modMap:   ecs.NewMap[components.Modules](w),
		capMap:   ecs.NewMap[components.Capacitor](w),
		behavMap: ecs.NewMap[components.Behavior](w),
	}
}

// HasReadyModule reports whether a module with the tag is fitted and either
// already cycling or off cooldown with enough capacitor for a cycle.
func (p *ModuleProbe) HasReadyModule(e ecs.Entity, tag components.Capability) bool {
	mods, energy, ok := p.lookup(e)
	if !ok {
		return false
	}
	for i := range mods.Slots {
		m := &mods.Slots[i]
		if m.Tag == tag && ready(m, energy) {
			return true
		}
	}
	return false
}

// ActivateModule starts every ready module with the tag. Returns false when
// nothing could be activated: not fitted, cooling down, out of capacitor,
// or a targeted module with no target.
func (p *ModuleProbe) ActivateModule(e ecs.Entity, tag components.Capability) bool {
	mods, energy, ok := p.lookup(e)
	if !ok {
		return false
	}

	var target ecs.Entity
	if tag.NeedsTarget() {
		if !p.behavMap.Has(e) {
			return false
		}
		target = p.behavMap.Get(e).Target
		if target.IsZero() || !p.world.Alive(target) {
			return false
		}
	}

	activated := false
	for i := range mods.Slots {
		m := &mods.Slots[i]
		if m.Tag != tag || !ready(m, energy) {
			continue
		}
		m.Active = true
		m.Target = target
		activated = true
	}
	return activated
}

// Deactivate stops every module with the tag.
func (p *ModuleProbe) Deactivate(e ecs.Entity, tag components.Capability) {
	if !p.world.Alive(e) || !p.modMap.Has(e) {
		return
	}
	mods := p.modMap.Get(e)
	for i := range mods.Slots {
		if mods.Slots[i].Tag == tag {
			stop(&mods.Slots[i])
		}
	}
}

// DeactivateAll stops every fitted module.
func (p *ModuleProbe) DeactivateAll(e ecs.Entity) {
	if !p.world.Alive(e) || !p.modMap.Has(e) {
		return
	}
	mods := p.modMap.Get(e)
	for i := range mods.Slots {
		stop(&mods.Slots[i])
	}
}

func (p *ModuleProbe) lookup(e ecs.Entity) (*components.Modules, float32, bool) {
	if e.IsZero() || !p.world.Alive(e) || !p.modMap.Has(e) {
		return nil, 0, false
	}
	var energy float32
	if p.capMap.Has(e) {
		energy = p.capMap.Get(e).Energy
	}
	return p.modMap.Get(e), energy, true
}

func ready(m *components.Module, energy float32) bool {
	if m.Active {
		return true
	}
	return m.Cooldown <= 0 && energy >= m.CapCost
}

func stop(m *components.Module) {
	m.Active = false
	m.Target = ecs.Entity{}
}
