package systems

import (
	"math/rand"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/drift/capability"
	"github.com/pthm-cable/drift/components"
	"github.com/pthm-cable/drift/config"
	"github.com/pthm-cable/drift/pursuit"
	"github.com/pthm-cable/drift/steering"
)

func init() {
	config.MustInit("")
}

type jumpRequest struct {
	e    ecs.Entity
	dest components.SectorID
}

// fakeTravel records requests and answers routes from a fixed table.
type fakeTravel struct {
	routes  map[[2]components.SectorID][]components.SectorID
	jumps   []jumpRequest
	warps   int
	canWarp bool
}

func (f *fakeTravel) FindRoute(from, to components.SectorID) []components.SectorID {
	return f.routes[[2]components.SectorID{from, to}]
}

func (f *fakeTravel) RequestGateJump(e ecs.Entity, dest components.SectorID) {
	f.jumps = append(f.jumps, jumpRequest{e, dest})
}

func (f *fakeTravel) RequestLocalWarp(e ecs.Entity, x, y float32) bool {
	if !f.canWarp {
		return false
	}
	f.warps++
	return true
}

func (f *fakeTravel) CanLocalWarp(e ecs.Entity) bool { return f.canWarp }

// fakeEconomy performs the minimum bookkeeping the state machine observes.
type fakeEconomy struct {
	hpMap    *ecs.Map[components.Health]
	cargoMap *ecs.Map[components.Cargo]
	mined    int
	sold     int
	docked   int
}

func (f *fakeEconomy) HandleMine(e, asteroid ecs.Entity, dt float32) {
	f.mined++
	c := f.cargoMap.Get(e)
	c.Ore = min(c.Capacity, c.Ore+50)
}

func (f *fakeEconomy) HandleBuy(e, station ecs.Entity) {
	c := f.cargoMap.Get(e)
	c.Goods = c.Free()
}

func (f *fakeEconomy) HandleSell(e, station ecs.Entity) {
	f.sold++
	c := f.cargoMap.Get(e)
	c.Ore, c.Goods = 0, 0
}

func (f *fakeEconomy) HandleDockAndRepair(e, station ecs.Entity) {
	f.docked++
	f.hpMap.Get(e).Restore()
}

type transitionLog struct {
	from, to components.State
}

type fakeRecorder struct {
	transitions []transitionLog
	chases      []float64
}

func (r *fakeRecorder) RecordTransition(id uint32, from, to components.State, reason string) {
	r.transitions = append(r.transitions, transitionLog{from, to})
}

func (r *fakeRecorder) RecordVerdict(id uint32, v pursuit.Verdict) {}

func (r *fakeRecorder) RecordChaseEnded(id uint32, d float64) {
	r.chases = append(r.chases, d)
}

type harness struct {
	w        *ecs.World
	cfg      *config.Config
	q        *Query
	travel   *fakeTravel
	econ     *fakeEconomy
	sys      *AgentSystem
	tackle   *TackleSystem
	modules  *ModuleSystem
	movement *MovementSystem
	now      float64
	nextID   uint32

	ships    *ecs.Map6[components.Position, components.Motion, components.Body, components.Identity, components.Health, components.Behavior]
	statics  *ecs.Map3[components.Position, components.Body, components.Identity]
	disMap   *ecs.Map[components.Disruption]
	modMap   *ecs.Map[components.Modules]
	capMap   *ecs.Map[components.Capacitor]
	cargoMap *ecs.Map[components.Cargo]
	behMap   *ecs.Map[components.Behavior]
	hpMap    *ecs.Map[components.Health]
	posMap   *ecs.Map[components.Position]
	bodyMap  *ecs.Map[components.Body]
}

func newHarness() *harness {
	w := ecs.NewWorld()
	cfg := config.Cfg()
	space := steering.Space{W: cfg.Derived.WorldW32, H: cfg.Derived.WorldH32}
	q := NewQuery(w, space, float32(cfg.World.GridCellSize))
	h := &harness{
		w:        w,
		cfg:      cfg,
		q:        q,
		travel:   &fakeTravel{routes: map[[2]components.SectorID][]components.SectorID{}},
		ships:    ecs.NewMap6[components.Position, components.Motion, components.Body, components.Identity, components.Health, components.Behavior](w),
		statics:  ecs.NewMap3[components.Position, components.Body, components.Identity](w),
		disMap:   ecs.NewMap[components.Disruption](w),
		modMap:   ecs.NewMap[components.Modules](w),
		capMap:   ecs.NewMap[components.Capacitor](w),
		cargoMap: ecs.NewMap[components.Cargo](w),
		behMap:   ecs.NewMap[components.Behavior](w),
		hpMap:    ecs.NewMap[components.Health](w),
		posMap:   ecs.NewMap[components.Position](w),
		bodyMap:  ecs.NewMap[components.Body](w),
		now:      100,
		nextID:   1,
	}
	h.econ = &fakeEconomy{hpMap: h.hpMap, cargoMap: h.cargoMap}
	h.sys = NewAgentSystem(w, cfg, q, capability.NewModuleProbe(w), h.travel, h.econ, rand.New(rand.NewSource(7)))
	h.tackle = NewTackleSystem(w, space, cfg.Derived.ResolverInterval, float32(cfg.Tackle.DrainTransferFraction))
	h.modules = NewModuleSystem(w, space, float32(cfg.Modules.CapacitorRegen))
	h.movement = NewMovementSystem(w, space)
	return h
}

// ship spawns an agent with the role's configured hull and fitting.
func (h *harness) ship(faction uint16, role components.Role, x, y float32, state components.State) ecs.Entity {
	rc, _ := h.cfg.Role(role.String())
	id := h.nextID
	h.nextID++

	e := h.ships.NewEntity(
		&components.Position{X: x, Y: y},
		&components.Motion{MaxSpeed: float32(rc.MaxSpeed), TurnRate: float32(rc.TurnRate), BoostFactor: 1},
		&components.Body{Kind: components.KindShip, Sector: 1, Radius: 20},
		&components.Identity{ID: id, Faction: faction, Role: role, Class: role.String()},
		&components.Health{
			Shield: float32(rc.Shield), MaxShield: float32(rc.Shield),
			Armor: float32(rc.Armor), MaxArmor: float32(rc.Armor),
			Hull: float32(rc.Hull), MaxHull: float32(rc.Hull),
		},
		&components.Behavior{State: state},
	)
	dis := components.Disruption{}
	dis.Clear()
	h.disMap.Add(e, &dis)
	h.modMap.Add(e, &components.Modules{Slots: capability.Fit(rc)})
	h.capMap.Add(e, &components.Capacitor{Energy: float32(rc.Capacitor), Max: float32(rc.Capacitor)})
	h.cargoMap.Add(e, &components.Cargo{Capacity: float32(rc.Cargo)})
	return e
}

func (h *harness) station(id uint32, faction uint16, x, y float32) ecs.Entity {
	e := h.statics.NewEntity(
		&components.Position{X: x, Y: y},
		&components.Body{Kind: components.KindStation, Sector: 1, Radius: 200},
		&components.Identity{ID: id, Faction: faction},
	)
	ecs.NewMap[components.Station](h.w).Add(e, &components.Station{ID: id})
	return e
}

func (h *harness) gate(dest components.SectorID, x, y float32) ecs.Entity {
	e := h.statics.NewEntity(
		&components.Position{X: x, Y: y},
		&components.Body{Kind: components.KindGate, Sector: 1, Radius: 100},
		&components.Identity{},
	)
	ecs.NewMap[components.Gate](h.w).Add(e, &components.Gate{Dest: dest})
	return e
}

func (h *harness) asteroid(x, y, ore float32) ecs.Entity {
	e := h.statics.NewEntity(
		&components.Position{X: x, Y: y},
		&components.Body{Kind: components.KindAsteroid, Sector: 1, Radius: 50},
		&components.Identity{},
	)
	ecs.NewMap[components.Asteroid](h.w).Add(e, &components.Asteroid{Ore: ore})
	return e
}

// step advances the clock, then runs the agent tick.
func (h *harness) step(dt float32) {
	h.now += float64(dt)
	h.q.Rebuild()
	h.sys.Update(h.now, dt)
}

// run executes the full system order for n ticks.
func (h *harness) run(n int, dt float32) {
	for i := 0; i < n; i++ {
		h.step(dt)
		h.tackle.Update(dt)
		h.modules.Update(dt)
		h.movement.Update(dt)
	}
}

func (h *harness) state(e ecs.Entity) components.State {
	return h.behMap.Get(e).State
}
