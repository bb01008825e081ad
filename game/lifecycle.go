package game

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/drift/capability"
	"github.com/pthm-cable/drift/components"
)

const (
	shipRadius     = 20
	stationRadius  = 200
	asteroidRadius = 60
)

type stationInfo struct {
	e       ecs.Entity
	id      uint32
	faction uint16
	sector  components.SectorID
}

// SpawnStation creates a dockable station owned by faction.
func (g *Game) SpawnStation(faction uint16, sector components.SectorID, x, y float32) ecs.Entity {
	id := g.ids.Next()
	e := g.fixedMapper.NewEntity(
		&components.Position{X: x, Y: y},
		&components.Body{Kind: components.KindStation, Sector: sector, Radius: stationRadius},
		&components.Identity{ID: id, Faction: faction, Class: "station"},
	)
	g.stationMap.Add(e, &components.Station{ID: id})
	g.stations = append(g.stations, stationInfo{e: e, id: id, faction: faction, sector: sector})
	return e
}

// SpawnAsteroid creates a minable rock holding ore.
func (g *Game) SpawnAsteroid(sector components.SectorID, x, y, ore float32) ecs.Entity {
	return g.rockMapper.NewEntity(
		&components.Position{X: x, Y: y},
		&components.Body{Kind: components.KindAsteroid, Sector: sector, Radius: asteroidRadius},
		&components.Asteroid{Ore: ore},
	)
}

// SpawnAgent creates an idle agent with the hull and fitting of its role.
func (g *Game) SpawnAgent(faction uint16, role components.Role, home uint32, sector components.SectorID, x, y float32) (ecs.Entity, error) {
	return g.spawnAgent(g.ids.Next(), faction, role, home, sector, x, y)
}

func (g *Game) spawnAgent(id uint32, faction uint16, role components.Role, home uint32, sector components.SectorID, x, y float32) (ecs.Entity, error) {
	rc, ok := g.cfg.Role(role.String())
	if !ok {
		return ecs.Entity{}, fmt.Errorf("spawning agent %d: unknown role %q", id, role)
	}

	x, y = g.space.Wrap(x, y)
	e := g.shipMapper.NewEntity(
		&components.Position{X: x, Y: y},
		&components.Motion{
			Heading:     g.rng.Float32() * 2 * math.Pi,
			MaxSpeed:    float32(rc.MaxSpeed),
			TurnRate:    float32(rc.TurnRate),
			BoostFactor: 1,
		},
		&components.Body{Kind: components.KindShip, Sector: sector, Radius: shipRadius},
		&components.Identity{ID: id, Faction: faction, Role: role, Class: role.String(), Home: home},
		&components.Health{
			Shield: float32(rc.Shield), MaxShield: float32(rc.Shield),
			Armor: float32(rc.Armor), MaxArmor: float32(rc.Armor),
			Hull: float32(rc.Hull), MaxHull: float32(rc.Hull),
		},
		&components.Behavior{State: components.StateIdle},
	)

	dis := components.Disruption{}
	dis.Clear()
	g.gearMapper.Add(e,
		&dis,
		&components.Modules{Slots: capability.Fit(rc)},
		&components.Capacitor{Energy: float32(rc.Capacitor), Max: float32(rc.Capacitor)},
		&components.Cargo{Capacity: float32(rc.Cargo)},
	)

	g.collector.Lifetimes().Register(id, g.tick, faction, role)
	return e, nil
}

// cleanupDestroyed removes ships at zero hull and queues their respawn.
func (g *Game) cleanupDestroyed() {
	// First pass: collect wrecks (must complete before modifying)
	var wrecks []ecs.Entity
	var lost []respawn
	var ids []uint32

	query := g.shipFilter.Query()
	for query.Next() {
		_, _, body, id, hp, _ := query.Get()
		if body.Kind != components.KindShip || hp.Hull > 0 {
			continue
		}
		wrecks = append(wrecks, query.Entity())
		ids = append(ids, id.ID)
		lost = append(lost, respawn{
			faction: id.Faction,
			role:    id.Role,
			home:    id.Home,
			at:      g.now + g.cfg.Scenario.RespawnDelay,
		})
	}

	// Second pass: remove entities (query iteration complete)
	for i, e := range wrecks {
		g.collector.RecordDestroyed(ids[i])
		g.world.RemoveEntity(e)
		slog.Debug("agent destroyed", "id", ids[i], "role", lost[i].role.String(), "faction", lost[i].faction)
		if g.cfg.Scenario.RespawnDelay >= 0 {
			g.respawns = append(g.respawns, lost[i])
		}
	}
}

// respawnDue brings destroyed agents back at their home station.
func (g *Game) respawnDue() {
	if len(g.respawns) == 0 {
		return
	}
	kept := g.respawns[:0]
	for _, r := range g.respawns {
		if r.at > g.now {
			kept = append(kept, r)
			continue
		}
		e, err := g.spawnNear(r.faction, r.role, r.home)
		if err != nil {
			slog.Warn("respawn failed", "role", r.role.String(), "error", err)
			continue
		}
		g.assignRoleTask(e)
	}
	g.respawns = kept
}

// spawnNear spawns an agent a short distance from its home station. An
// unknown home falls back to any station of the faction.
func (g *Game) spawnNear(faction uint16, role components.Role, home uint32) (ecs.Entity, error) {
	st, ok := g.station(home)
	if !ok {
		st, ok = g.factionStation(faction, int(g.rng.Int31()))
	}
	if !ok {
		return ecs.Entity{}, fmt.Errorf("no station for faction %d", faction)
	}

	angle := g.rng.Float64() * 2 * math.Pi
	dist := 500 + g.rng.Float64()*1000
	p, _, _ := g.fixedMapper.Get(st.e)
	x := p.X + float32(math.Cos(angle)*dist)
	y := p.Y + float32(math.Sin(angle)*dist)
	return g.SpawnAgent(faction, role, st.id, st.sector, x, y)
}
