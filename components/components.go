// Package components defines ECS components for the simulation.
package components

import "github.com/mlange-42/ark/ecs"

// Capability tags a module by what it does. The state machine asks for
// capabilities, never for specific modules.
type Capability uint8

const (
	CapTackle Capability = iota
	CapPropulsion
	CapRepairShield
	CapRepairArmor
	CapWeapon
	CapMining
	CapSurvey
	CapRemoteRepair
)

// NeedsTarget reports whether modules with this tag act on a target entity.
func (c Capability) NeedsTarget() bool {
	switch c {
	case CapTackle, CapWeapon, CapMining, CapSurvey, CapRemoteRepair:
		return true
	}
	return false
}

// Effect is the tackle effect a tackle module applies.
type Effect uint8

const (
	EffectNone Effect = iota
	EffectWarpDisrupt
	EffectWeb
	EffectEnergyDrain
)

// Module is one fitted module. Cycling is a cooldown countdown checked
// each tick, never a scheduled callback.
type Module struct {
	Tag       Capability
	Effect    Effect
	Range     float32
	Strength  float32 // Web: resulting speed factor. Drain: energy per second. Propulsion: speed multiplier.
	CapCost   float32 // Energy paid per cycle
	CycleTime float32 // Seconds per cycle
	Cooldown  float32 // Seconds until the next cycle
	Active    bool
	Target    ecs.Entity
}

// Modules holds an entity's fitting.
type Modules struct {
	Slots []Module
}

// AnyActive reports whether at least one module is cycling.
func (m *Modules) AnyActive() bool {
	for i := range m.Slots {
		if m.Slots[i].Active {
			return true
		}
	}
	return false
}
