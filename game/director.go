package game

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/drift/components"
)

// directorTick hands idle agents without a task their role's standing task.
// It runs every Scenario.DirectorInterval seconds; zero disables it.
func (g *Game) directorTick(dt float32) {
	interval := float32(g.cfg.Scenario.DirectorInterval)
	if interval <= 0 {
		return
	}
	g.director += dt
	if g.director < interval {
		return
	}
	g.director = 0

	var idle []ecs.Entity
	query := g.shipFilter.Query()
	for query.Next() {
		_, _, body, _, _, b := query.Get()
		if body.Kind != components.KindShip || b.State != components.StateIdle || b.Task != nil {
			continue
		}
		idle = append(idle, query.Entity())
	}

	for _, e := range idle {
		g.assignRoleTask(e)
	}
}
