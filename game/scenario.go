package game

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/mlange-42/ark/ecs"
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/drift/components"
)

// Gate placement as fractions of the sector size.
const (
	gateNear = 0.15
	gateFar  = 0.85
)

// Seed builds the sector network, stations and asteroid fields from the
// game seed, then spawns the configured population with starting tasks.
func (g *Game) Seed() error {
	if err := g.buildStatics(g.seed); err != nil {
		return err
	}

	sc := g.cfg.Scenario
	population := []struct {
		role  components.Role
		count int
	}{
		{components.RoleMiner, sc.Miners},
		{components.RoleHauler, sc.Haulers},
		{components.RoleRatter, sc.Ratters},
		{components.RoleRaider, sc.Raiders},
		{components.RoleBomber, sc.Bombers},
		{components.RoleSurveyor, sc.Surveyors},
		{components.RoleLogistics, sc.Logistics},
	}

	for _, p := range population {
		for i := 0; i < p.count; i++ {
			faction := g.factionFor(p.role, i)
			st, ok := g.factionStation(faction, i)
			if !ok {
				return fmt.Errorf("seeding %s: no station for faction %d", p.role, faction)
			}
			e, err := g.spawnNear(faction, p.role, st.id)
			if err != nil {
				return fmt.Errorf("seeding %s: %w", p.role, err)
			}
			g.assignRoleTask(e)
		}
	}
	return nil
}

// buildStatics creates sectors, gates, stations and asteroids. The result
// depends only on seed and the scenario config.
func (g *Game) buildStatics(seed int64) error {
	sc := g.cfg.Scenario
	if sc.Sectors < 1 {
		return fmt.Errorf("scenario needs at least one sector, got %d", sc.Sectors)
	}
	if len(g.stations) > 0 {
		return fmt.Errorf("scenario already built")
	}

	n := components.SectorID(sc.Sectors)
	for s := components.SectorID(1); s <= n; s++ {
		g.network.AddSector(s)
	}

	// Sectors form a ring, with one shortcut across it when there is room.
	w, h := g.space.W, g.space.H
	switch {
	case n == 2:
		g.network.Link(1, 2, w*gateFar, h/2, w*gateNear, h/2)
	case n > 2:
		for s := components.SectorID(1); s <= n; s++ {
			g.network.Link(s, s%n+1, w*gateFar, h/2, w*gateNear, h/2)
		}
	}
	if n >= 4 {
		g.network.Link(1, n/2+1, w/2, h*gateFar, w/2, h*gateNear)
	}

	g.pirateFaction = 0
	var civilians []uint16
	for _, f := range g.cfg.Factions {
		if f.Pirate {
			if g.pirateFaction == 0 {
				g.pirateFaction = f.ID
			}
			continue
		}
		civilians = append(civilians, f.ID)
	}
	if len(civilians) == 0 && g.pirateFaction != 0 {
		civilians = []uint16{g.pirateFaction}
	}
	if len(civilians) == 0 {
		return fmt.Errorf("scenario needs at least one faction")
	}

	g.havenSector = 0
	if g.pirateFaction != 0 && n > 1 {
		g.havenSector = n
	}

	for s := components.SectorID(1); s <= n; s++ {
		for k := 0; k < sc.StationsPerSector; k++ {
			faction := civilians[(int(s)-1+k)%len(civilians)]
			if s == g.havenSector && k == 0 {
				faction = g.pirateFaction
			}
			g.SpawnStation(faction, s, w/2+float32(k)*2000, h/2)
		}
	}

	rng := rand.New(rand.NewSource(seed))
	noise := opensimplex.NewNormalized(seed)
	for s := components.SectorID(1); s <= n; s++ {
		g.seedAsteroids(noise, rng, s)
	}
	return nil
}

// seedAsteroids scatters candidate points and keeps those where the noise
// field is dense. Every sector gets at least its densest candidate.
func (g *Game) seedAsteroids(noise opensimplex.Noise, rng *rand.Rand, sector components.SectorID) {
	sc := g.cfg.Scenario
	offset := float64(sector) * 16
	ore := float32(sc.AsteroidOre)

	best := -1.0
	var bestX, bestY float32
	placed := 0
	for i := 0; i < sc.AsteroidSamples; i++ {
		x := rng.Float32() * g.space.W
		y := rng.Float32() * g.space.H
		v := noise.Eval2(float64(x)*sc.AsteroidNoiseScale+offset, float64(y)*sc.AsteroidNoiseScale)
		if v > best {
			best, bestX, bestY = v, x, y
		}
		if v < sc.AsteroidThreshold {
			continue
		}
		g.SpawnAsteroid(sector, x, y, ore)
		placed++
	}
	if placed == 0 && best >= 0 {
		g.SpawnAsteroid(sector, bestX, bestY, ore)
	}
}

// factionFor picks the faction an agent of role flies for.
func (g *Game) factionFor(role components.Role, i int) uint16 {
	if (role == components.RoleRaider || role == components.RoleBomber) && g.pirateFaction != 0 {
		return g.pirateFaction
	}
	var civilians []uint16
	for _, f := range g.cfg.Factions {
		if !f.Pirate {
			civilians = append(civilians, f.ID)
		}
	}
	if len(civilians) == 0 {
		return g.pirateFaction
	}
	return civilians[i%len(civilians)]
}

// station finds a station by ID.
func (g *Game) station(id uint32) (stationInfo, bool) {
	for _, st := range g.stations {
		if st.id == id {
			return st, true
		}
	}
	return stationInfo{}, false
}

// factionStation returns the i-th station owned by faction, wrapping around.
func (g *Game) factionStation(faction uint16, i int) (stationInfo, bool) {
	var owned []stationInfo
	for _, st := range g.stations {
		if st.faction == faction {
			owned = append(owned, st)
		}
	}
	if len(owned) == 0 {
		return stationInfo{}, false
	}
	if i < 0 {
		i = -i
	}
	return owned[i%len(owned)], true
}

// roleTask builds the standing task for an agent of role based at home.
func (g *Game) roleTask(role components.Role, faction uint16, home uint32) components.Task {
	var homeSector components.SectorID
	if st, ok := g.station(home); ok {
		homeSector = st.sector
	}

	switch role {
	case components.RoleMiner:
		return components.Task{Kind: components.TaskMine, Sector: homeSector}
	case components.RoleHauler:
		return components.Task{Kind: components.TaskHaul, BuyStation: home, SellStation: g.tradePartner(faction, home)}
	case components.RoleRatter:
		return components.Task{Kind: components.TaskHunt, Sector: g.randomFrontier()}
	case components.RoleRaider, components.RoleBomber:
		return components.Task{Kind: components.TaskRaid, Sector: g.randomFrontier()}
	case components.RoleSurveyor:
		return components.Task{Kind: components.TaskSurvey, Sector: g.randomSector()}
	case components.RoleLogistics:
		return components.Task{Kind: components.TaskRepair, Sector: homeSector}
	}
	return components.Task{}
}

// assignRoleTask gives an agent the standing task of its role.
func (g *Game) assignRoleTask(e ecs.Entity) {
	if !g.world.Alive(e) || !g.idMap.Has(e) {
		return
	}
	id := g.idMap.Get(e)
	task := g.roleTask(id.Role, id.Faction, id.Home)
	if task.Kind == components.TaskNone {
		return
	}
	g.agents.AssignTask(e, task)
}

// tradePartner picks a random friendly station other than home. Zero means
// the nearest friendly station wherever the hauler is.
func (g *Game) tradePartner(faction uint16, home uint32) uint32 {
	var partners []uint32
	for _, st := range g.stations {
		if st.id != home && !g.cfg.Hostile(faction, st.faction) {
			partners = append(partners, st.id)
		}
	}
	if len(partners) == 0 {
		return 0
	}
	return partners[g.rng.Intn(len(partners))]
}

// randomFrontier picks a sector other than the pirate haven.
func (g *Game) randomFrontier() components.SectorID {
	n := g.network.Sectors()
	if n <= 1 || g.havenSector == 0 {
		return g.randomSector()
	}
	s := components.SectorID(g.rng.Intn(n-1) + 1)
	if s >= g.havenSector {
		s++
	}
	return s
}

func (g *Game) randomSector() components.SectorID {
	n := g.network.Sectors()
	if n < 1 {
		return 0
	}
	return components.SectorID(g.rng.Intn(n) + 1)
}

// isPirate reports whether a faction is flagged as pirates.
func (g *Game) isPirate(faction uint16) bool {
	if i, ok := g.cfg.Derived.FactionIndex[faction]; ok {
		return g.cfg.Factions[i].Pirate
	}
	return false
}

// wrapAngle keeps headings restored from storage in range.
func wrapAngle(a float32) float32 {
	return float32(math.Remainder(float64(a), 2*math.Pi))
}
