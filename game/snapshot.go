package game

import (
	"fmt"
	"sort"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/drift/components"
	"github.com/pthm-cable/drift/inspector"
	"github.com/pthm-cable/drift/persistence"
	"github.com/pthm-cable/drift/telemetry"
)

// ExportSnapshot captures every agent and the remaining ore of every
// asteroid. Stations, gates and asteroid positions are rebuilt from the seed.
func (g *Game) ExportSnapshot() persistence.Snapshot {
	snap := persistence.Snapshot{
		RunID:  g.runID,
		Seed:   g.seed,
		Tick:   int64(g.tick),
		Now:    g.now,
		NextID: g.ids.Peek(),
	}

	query := g.shipFilter.Query()
	for query.Next() {
		e := query.Entity()
		pos, mot, body, id, hp, b := query.Get()
		if body.Kind != components.KindShip {
			continue
		}
		rec := persistence.AgentRecord{
			ID:      id.ID,
			Faction: id.Faction,
			Role:    id.Role,
			Class:   id.Class,
			Home:    id.Home,
			Sector:  body.Sector,
			X:       pos.X,
			Y:       pos.Y,
			Heading: mot.Heading,
			State:   b.State,
			Shield:  hp.Shield,
			Armor:   hp.Armor,
			Hull:    hp.Hull,
			Credits: g.market.Wallet(id.ID),
		}
		rec.SetTask(b.Task)
		rec.SetRoute(b.Route, b.RouteIndex)
		if g.capMap.Has(e) {
			rec.Energy = g.capMap.Get(e).Energy
		}
		if g.cargoMap.Has(e) {
			c := g.cargoMap.Get(e)
			rec.Ore, rec.Goods = c.Ore, c.Goods
		}
		snap.Agents = append(snap.Agents, rec)
	}
	sort.Slice(snap.Agents, func(i, j int) bool { return snap.Agents[i].ID < snap.Agents[j].ID })

	rocks := g.rockFilter.Query()
	for rocks.Next() {
		pos, body, rock := rocks.Get()
		snap.Asteroids = append(snap.Asteroids, persistence.AsteroidRecord{
			Sector: body.Sector,
			X:      pos.X,
			Y:      pos.Y,
			Ore:    rock.Ore,
		})
	}
	return snap
}

// Restore rebuilds a saved run on a fresh game. Agents resume in their saved
// public state; transient chase and docking state is not carried over.
func (g *Game) Restore(snap persistence.Snapshot) error {
	if g.tick != 0 || len(g.stations) > 0 {
		return fmt.Errorf("restore needs a fresh game")
	}

	g.seed = snap.Seed
	if snap.RunID != "" {
		g.runID = snap.RunID
	}
	if err := g.buildStatics(snap.Seed); err != nil {
		return fmt.Errorf("rebuilding scenario: %w", err)
	}

	// Regenerated asteroids are replaced by the saved ore levels.
	var rocks []ecs.Entity
	query := g.rockFilter.Query()
	for query.Next() {
		rocks = append(rocks, query.Entity())
	}
	for _, e := range rocks {
		g.world.RemoveEntity(e)
	}
	for _, r := range snap.Asteroids {
		g.SpawnAsteroid(r.Sector, r.X, r.Y, r.Ore)
	}

	g.now = snap.Now
	g.tick = int32(snap.Tick)

	next := snap.NextID
	for _, rec := range snap.Agents {
		if err := g.restoreAgent(rec); err != nil {
			return err
		}
		if rec.ID >= next {
			next = rec.ID + 1
		}
	}
	g.ids.Reset(next)
	g.collector.Resume(g.tick)
	return nil
}

func (g *Game) restoreAgent(rec persistence.AgentRecord) error {
	task, err := rec.Task()
	if err != nil {
		return err
	}
	route, err := rec.Route()
	if err != nil {
		return err
	}

	e, err := g.spawnAgent(rec.ID, rec.Faction, rec.Role, rec.Home, rec.Sector, rec.X, rec.Y)
	if err != nil {
		return err
	}

	_, mot, _, id, hp, b := g.shipMapper.Get(e)
	mot.Heading = wrapAngle(rec.Heading)
	mot.DesiredHeading = mot.Heading
	if rec.Class != "" {
		id.Class = rec.Class
	}
	hp.Shield = min(rec.Shield, hp.MaxShield)
	hp.Armor = min(rec.Armor, hp.MaxArmor)
	hp.Hull = min(rec.Hull, hp.MaxHull)

	b.State = rec.State.Public()
	if b.State >= components.NumStates {
		b.State = components.StateIdle
	}
	b.Task = task
	if b.State == components.StateTraveling && rec.RouteIndex < len(route) {
		b.Route = route
		b.RouteIndex = rec.RouteIndex
	} else if b.State == components.StateTraveling {
		b.State = components.StateIdle
	}

	_, _, capacitor, cargo := g.gearMapper.Get(e)
	capacitor.Energy = min(rec.Energy, capacitor.Max)
	cargo.Ore = rec.Ore
	cargo.Goods = rec.Goods

	g.market.SetWallet(rec.ID, rec.Credits)
	return nil
}

// AgentView is a flat, read-only summary of one agent.
type AgentView struct {
	ID      uint32              `json:"id"`
	Faction uint16              `json:"faction"`
	Role    string              `json:"role"`
	Class   string              `json:"class"`
	Home    uint32              `json:"home,omitempty"`
	Sector  components.SectorID `json:"sector"`
	X       float32             `json:"x"`
	Y       float32             `json:"y"`
	State   string              `json:"state"`
	Task    string              `json:"task"`
	Health  float32             `json:"health"`
	Ore     float32             `json:"ore"`
	Goods   float32             `json:"goods"`
	Credits float64             `json:"credits"`
}

// AgentDetail is the inspector view of one agent.
type AgentDetail struct {
	AgentView
	Sections []inspector.Section      `json:"sections"`
	Lifetime *telemetry.LifetimeStats `json:"lifetime,omitempty"`
}

// Views summarizes every live agent, ordered by ID.
func (g *Game) Views() []AgentView {
	var views []AgentView
	query := g.shipFilter.Query()
	for query.Next() {
		e := query.Entity()
		pos, _, body, id, hp, b := query.Get()
		if body.Kind != components.KindShip {
			continue
		}
		v := AgentView{
			ID:      id.ID,
			Faction: id.Faction,
			Role:    id.Role.String(),
			Class:   id.Class,
			Home:    id.Home,
			Sector:  body.Sector,
			X:       pos.X,
			Y:       pos.Y,
			State:   b.State.String(),
			Task:    b.TaskKind().String(),
			Health:  hp.Fraction(),
			Credits: g.market.Wallet(id.ID),
		}
		if g.cargoMap.Has(e) {
			c := g.cargoMap.Get(e)
			v.Ore, v.Goods = c.Ore, c.Goods
		}
		views = append(views, v)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return views
}

// Details returns inspector views for every live agent, keyed by ID.
func (g *Game) Details() map[uint32]AgentDetail {
	views := g.Views()
	details := make(map[uint32]AgentDetail, len(views))
	byID := make(map[uint32]AgentView, len(views))
	for _, v := range views {
		byID[v.ID] = v
	}

	query := g.shipFilter.Query()
	for query.Next() {
		e := query.Entity()
		pos, mot, body, id, hp, b := query.Get()
		v, ok := byID[id.ID]
		if !ok {
			continue
		}
		sections := []inspector.Section{
			inspector.Describe("Identity", *id),
			inspector.Describe("Body", *body),
			inspector.Describe("Position", *pos),
			inspector.Describe("Motion", *mot),
			inspector.Describe("Health", *hp),
			inspector.Describe("Behavior", *b),
		}
		if g.capMap.Has(e) {
			sections = append(sections, inspector.Describe("Capacitor", *g.capMap.Get(e)))
		}
		if g.cargoMap.Has(e) {
			sections = append(sections, inspector.Describe("Cargo", *g.cargoMap.Get(e)))
		}
		detail := AgentDetail{AgentView: v, Sections: sections}
		if ls := g.collector.Lifetimes().Get(id.ID); ls != nil {
			copied := *ls
			detail.Lifetime = &copied
		}
		details[id.ID] = detail
	}
	return details
}
