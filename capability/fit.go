package capability

import (
	"github.com/pthm-cable/drift/components"
	"github.com/pthm-cable/drift/config"
)

// Fit builds the module slots for a role loadout. Unknown tags are skipped.
func Fit(rc config.RoleConfig) []components.Module {
	out := make([]components.Module, 0, len(rc.Modules))
	for _, mc := range rc.Modules {
		tag, ok := components.ParseCapability(mc.Tag)
		if !ok {
			continue
		}
		out = append(out, components.Module{
			Tag:       tag,
			Effect:    components.ParseEffect(mc.Effect),
			Range:     float32(mc.Range),
			Strength:  float32(mc.Strength),
			CapCost:   float32(mc.CapCost),
			CycleTime: float32(mc.CycleTime),
		})
	}
	return out
}
