package game

import (
	"path/filepath"
	"testing"

	"github.com/pthm-cable/drift/components"
	"github.com/pthm-cable/drift/config"
	"github.com/pthm-cable/drift/persistence"
	"github.com/pthm-cable/drift/telemetry"
)

func init() {
	config.MustInit("")
}

// emptyScenario returns a config copy with the default network and stations
// but no seeded agents.
func emptyScenario() *config.Config {
	cfg := *config.Cfg()
	sc := cfg.Scenario
	sc.Miners, sc.Haulers, sc.Ratters, sc.Raiders = 0, 0, 0, 0
	sc.Bombers, sc.Surveyors, sc.Logistics = 0, 0, 0
	cfg.Scenario = sc
	return &cfg
}

func totalPopulation(sc config.ScenarioConfig) int {
	return sc.Miners + sc.Haulers + sc.Ratters + sc.Raiders + sc.Bombers + sc.Surveyors + sc.Logistics
}

func TestSeedBuildsScenario(t *testing.T) {
	g := New(Options{Seed: 42})
	if err := g.Seed(); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	sc := config.Cfg().Scenario

	if got := g.Network().Sectors(); got != sc.Sectors {
		t.Errorf("sectors = %d, want %d", got, sc.Sectors)
	}
	if got := len(g.stations); got != sc.Sectors*sc.StationsPerSector {
		t.Errorf("stations = %d, want %d", got, sc.Sectors*sc.StationsPerSector)
	}

	views := g.Views()
	if len(views) != totalPopulation(sc) {
		t.Fatalf("agents = %d, want %d", len(views), totalPopulation(sc))
	}

	pirates := 0
	seen := make(map[uint32]bool)
	for _, st := range g.stations {
		seen[st.id] = true
	}
	for _, v := range views {
		if seen[v.ID] {
			t.Errorf("agent ID %d collides with another entity", v.ID)
		}
		seen[v.ID] = true
		if g.isPirate(v.Faction) {
			pirates++
		}
		if v.Home == 0 {
			t.Errorf("agent %d has no home station", v.ID)
		}
	}
	if pirates != sc.Raiders+sc.Bombers {
		t.Errorf("pirates = %d, want %d", pirates, sc.Raiders+sc.Bombers)
	}
}

func TestSeedPlacesAsteroidsInEverySector(t *testing.T) {
	g := New(Options{Config: emptyScenario(), Seed: 3})
	if err := g.Seed(); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	perSector := make(map[components.SectorID]int)
	for _, r := range g.ExportSnapshot().Asteroids {
		perSector[r.Sector]++
		if r.Ore != float32(config.Cfg().Scenario.AsteroidOre) {
			t.Errorf("asteroid ore = %v, want %v", r.Ore, config.Cfg().Scenario.AsteroidOre)
		}
	}
	for s := 1; s <= config.Cfg().Scenario.Sectors; s++ {
		if perSector[components.SectorID(s)] == 0 {
			t.Errorf("sector %d has no asteroids", s)
		}
	}
}

func TestSeedIsDeterministic(t *testing.T) {
	a := New(Options{Seed: 11})
	b := New(Options{Seed: 11})
	if err := a.Seed(); err != nil {
		t.Fatal(err)
	}
	if err := b.Seed(); err != nil {
		t.Fatal(err)
	}

	va, vb := a.Views(), b.Views()
	if len(va) != len(vb) {
		t.Fatalf("agent counts differ: %d vs %d", len(va), len(vb))
	}
	for i := range va {
		if va[i].ID != vb[i].ID || va[i].X != vb[i].X || va[i].Y != vb[i].Y || va[i].Sector != vb[i].Sector {
			t.Errorf("agent %d differs: %+v vs %+v", i, va[i], vb[i])
		}
	}

	ra, rb := a.ExportSnapshot().Asteroids, b.ExportSnapshot().Asteroids
	if len(ra) != len(rb) {
		t.Fatalf("asteroid counts differ: %d vs %d", len(ra), len(rb))
	}
}

func TestSeedRejectsEmptyNetwork(t *testing.T) {
	cfg := emptyScenario()
	cfg.Scenario.Sectors = 0
	g := New(Options{Config: cfg})
	if err := g.Seed(); err == nil {
		t.Error("expected error for zero sectors")
	}
}

func TestRandomFrontierAvoidsHaven(t *testing.T) {
	g := New(Options{Config: emptyScenario(), Seed: 5})
	if err := g.Seed(); err != nil {
		t.Fatal(err)
	}
	if g.havenSector == 0 {
		t.Fatal("default scenario should have a pirate haven")
	}
	for i := 0; i < 200; i++ {
		s := g.randomFrontier()
		if s == g.havenSector || s < 1 || int(s) > g.Network().Sectors() {
			t.Fatalf("randomFrontier = %d, haven %d", s, g.havenSector)
		}
	}
}

func TestRunFlushesTelemetryWindows(t *testing.T) {
	cfg := *config.Cfg()
	cfg.Telemetry.StatsWindow = 1
	var windows []telemetry.WindowStats
	g := New(Options{
		Config:   &cfg,
		Seed:     1,
		RunID:    "run-test",
		OnWindow: func(s telemetry.WindowStats) { windows = append(windows, s) },
	})
	if err := g.Seed(); err != nil {
		t.Fatal(err)
	}

	g.Run(25)

	if g.Tick() != 25 {
		t.Errorf("tick = %d, want 25", g.Tick())
	}
	if len(windows) != 2 {
		t.Fatalf("windows = %d, want 2", len(windows))
	}
	w := windows[0]
	if w.WindowEndTick != 10 {
		t.Errorf("first window ends at %d, want 10", w.WindowEndTick)
	}
	if w.RunID != "run-test" {
		t.Errorf("run ID = %q", w.RunID)
	}
	if w.Agents != totalPopulation(cfg.Scenario) {
		t.Errorf("census agents = %d, want %d", w.Agents, totalPopulation(cfg.Scenario))
	}
	states := w.Idle + w.Traveling + w.Mining + w.Trading + w.Returning + w.Ratting +
		w.Raiding + w.Engaging + w.Surveying + w.Repairing + w.Fleeing
	if states != w.Agents {
		t.Errorf("public state counts sum to %d, want %d", states, w.Agents)
	}
	if w.SweepsTotal == 0 {
		t.Error("tackle resolver never swept")
	}
}

func TestCleanupRemovesDestroyedAndRespawns(t *testing.T) {
	cfg := emptyScenario()
	cfg.Scenario.RespawnDelay = 1
	g := New(Options{Config: cfg, Seed: 2})
	if err := g.Seed(); err != nil {
		t.Fatal(err)
	}

	st, ok := g.factionStation(1, 0)
	if !ok {
		t.Fatal("no guild station")
	}
	e, err := g.SpawnAgent(1, components.RoleMiner, st.id, st.sector, 5000, 5000)
	if err != nil {
		t.Fatal(err)
	}
	_, _, _, id, hp, _ := g.shipMapper.Get(e)
	oldID := id.ID
	hp.Shield, hp.Armor, hp.Hull = 0, 0, 0

	g.Step(config.Cfg().Derived.DT32)

	if g.World().Alive(e) {
		t.Fatal("destroyed agent still alive")
	}
	if len(g.Views()) != 0 {
		t.Fatalf("views = %d after destruction, want 0", len(g.Views()))
	}
	if g.Collector().Lifetimes().Get(oldID) != nil {
		t.Error("lifetime stats kept for destroyed agent")
	}

	g.Run(12)

	views := g.Views()
	if len(views) != 1 {
		t.Fatalf("views = %d after respawn delay, want 1", len(views))
	}
	v := views[0]
	if v.ID == oldID {
		t.Error("respawned agent reused the old ID")
	}
	if v.Role != "miner" || v.Home != st.id || v.Sector != st.sector {
		t.Errorf("respawned %+v, want miner homed at %d in sector %d", v, st.id, st.sector)
	}
	if v.Task != "mine" {
		t.Errorf("respawned task = %q, want mine", v.Task)
	}
}

func TestDirectorAssignsIdleAgents(t *testing.T) {
	cfg := emptyScenario()
	cfg.Scenario.DirectorInterval = 0.5
	g := New(Options{Config: cfg, Seed: 4})
	if err := g.Seed(); err != nil {
		t.Fatal(err)
	}
	st, _ := g.factionStation(1, 0)
	if _, err := g.SpawnAgent(1, components.RoleRatter, st.id, st.sector, 2000, 2000); err != nil {
		t.Fatal(err)
	}
	if got := g.Views()[0].Task; got != "none" {
		t.Fatalf("fresh agent task = %q, want none", got)
	}

	g.Run(8)

	if got := g.Views()[0].Task; got != "hunt" {
		t.Errorf("task after director = %q, want hunt", got)
	}
}

func TestSpawnAgentUnknownRole(t *testing.T) {
	g := New(Options{Config: emptyScenario()})
	if _, err := g.SpawnAgent(1, components.Role(99), 0, 1, 0, 0); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	src := New(Options{Seed: 9, RunID: "resume"})
	if err := src.Seed(); err != nil {
		t.Fatal(err)
	}
	src.Run(50)
	src.Market().SetWallet(src.Views()[0].ID, 1234)
	snap := src.ExportSnapshot()

	db, err := persistence.Open(filepath.Join(t.TempDir(), "drift.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	if err := db.Save(snap); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := db.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	dst := New(Options{Seed: 1})
	if err := dst.Restore(loaded); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if dst.Tick() != src.Tick() || dst.Now() != src.Now() {
		t.Errorf("clock = (%d, %v), want (%d, %v)", dst.Tick(), dst.Now(), src.Tick(), src.Now())
	}
	if dst.RunID() != "resume" {
		t.Errorf("run ID = %q, want resume", dst.RunID())
	}
	if dst.ids.Peek() != src.ids.Peek() {
		t.Errorf("next ID = %d, want %d", dst.ids.Peek(), src.ids.Peek())
	}

	sv, dv := src.Views(), dst.Views()
	if len(sv) != len(dv) {
		t.Fatalf("agents = %d, want %d", len(dv), len(sv))
	}
	for i := range sv {
		a, b := sv[i], dv[i]
		if a.ID != b.ID || a.X != b.X || a.Y != b.Y || a.Sector != b.Sector || a.Role != b.Role {
			t.Errorf("agent %d: got %+v, want %+v", a.ID, b, a)
		}
		if a.Ore != b.Ore || a.Goods != b.Goods || a.Credits != b.Credits {
			t.Errorf("agent %d cargo/credits: got %+v, want %+v", a.ID, b, a)
		}
		want, _ := components.ParseState(a.State)
		if b.State != want.Public().String() && b.State != components.StateIdle.String() {
			t.Errorf("agent %d state = %s, want %s", a.ID, b.State, want.Public())
		}
	}

	if got, want := len(dst.ExportSnapshot().Asteroids), len(snap.Asteroids); got != want {
		t.Errorf("asteroids = %d, want %d", got, want)
	}

	if err := dst.Restore(loaded); err == nil {
		t.Error("restoring twice should fail")
	}
}

func TestSequentialIDs(t *testing.T) {
	ids := NewSequentialIDs()
	if ids.Next() != 1 || ids.Next() != 2 {
		t.Fatal("IDs should start at 1 and increase")
	}
	if ids.Peek() != 3 {
		t.Errorf("Peek = %d, want 3", ids.Peek())
	}
	ids.Reset(0)
	if ids.Next() != 1 {
		t.Error("Reset(0) should restart at 1")
	}
}
