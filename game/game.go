// Package game wires the ECS world, the behavior systems, the travel and
// market collaborators and telemetry into a fixed-step simulation.
package game

import (
	"log/slog"
	"math/rand"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/drift/capability"
	"github.com/pthm-cable/drift/components"
	"github.com/pthm-cable/drift/config"
	"github.com/pthm-cable/drift/steering"
	"github.com/pthm-cable/drift/systems"
	"github.com/pthm-cable/drift/telemetry"
	"github.com/pthm-cable/drift/world"
)

// Options configures a Game. Zero values pick sensible defaults.
type Options struct {
	Config *config.Config // nil uses config.Cfg()
	Seed   int64
	IDs    IDAllocator // nil uses SequentialIDs
	RunID  string      // empty generates one

	Output   *telemetry.OutputManager // nil disables CSV output
	LogStats bool                     // log window stats and bookmarks

	// OnWindow is called with every flushed telemetry window.
	OnWindow func(telemetry.WindowStats)
}

type respawn struct {
	faction uint16
	role    components.Role
	home    uint32
	at      float64
}

// Game holds the complete simulation state.
type Game struct {
	cfg   *config.Config
	world *ecs.World
	rng   *rand.Rand
	seed  int64
	space steering.Space
	ids   IDAllocator
	runID string

	now  float64
	tick int32

	query    *systems.Query
	agents   *systems.AgentSystem
	tackle   *systems.TackleSystem
	modules  *systems.ModuleSystem
	movement *systems.MovementSystem
	network  *world.Network
	market   *world.Market

	collector *telemetry.Collector
	perf      *telemetry.PerfCollector
	bookmarks *telemetry.BookmarkDetector
	output    *telemetry.OutputManager
	logStats  bool
	onWindow  func(telemetry.WindowStats)
	sweeps    int

	// Entity mappers
	shipMapper  *ecs.Map6[components.Position, components.Motion, components.Body, components.Identity, components.Health, components.Behavior]
	gearMapper  *ecs.Map4[components.Disruption, components.Modules, components.Capacitor, components.Cargo]
	fixedMapper *ecs.Map3[components.Position, components.Body, components.Identity]
	shipFilter  ecs.Filter6[components.Position, components.Motion, components.Body, components.Identity, components.Health, components.Behavior]
	rockFilter  ecs.Filter3[components.Position, components.Body, components.Asteroid]
	stationMap  *ecs.Map[components.Station]
	rockMapper  *ecs.Map3[components.Position, components.Body, components.Asteroid]
	idMap       *ecs.Map[components.Identity]
	capMap      *ecs.Map[components.Capacitor]
	cargoMap    *ecs.Map[components.Cargo]

	stations      []stationInfo
	havenSector   components.SectorID
	pirateFaction uint16
	respawns      []respawn
	director      float32
}

// New creates an empty simulation. Call Seed or Restore to populate it.
func New(opts Options) *Game {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Cfg()
	}
	ids := opts.IDs
	if ids == nil {
		ids = NewSequentialIDs()
	}
	runID := opts.RunID
	if runID == "" {
		runID = telemetry.NewRunID()
	}

	w := ecs.NewWorld()
	space := steering.Space{W: cfg.Derived.WorldW32, H: cfg.Derived.WorldH32}
	rng := rand.New(rand.NewSource(opts.Seed))

	g := &Game{
		cfg:         cfg,
		world:       w,
		rng:         rng,
		seed:        opts.Seed,
		space:       space,
		ids:         ids,
		runID:       runID,
		shipMapper:  ecs.NewMap6[components.Position, components.Motion, components.Body, components.Identity, components.Health, components.Behavior](w),
		gearMapper:  ecs.NewMap4[components.Disruption, components.Modules, components.Capacitor, components.Cargo](w),
		fixedMapper: ecs.NewMap3[components.Position, components.Body, components.Identity](w),
		shipFilter:  *ecs.NewFilter6[components.Position, components.Motion, components.Body, components.Identity, components.Health, components.Behavior](w),
		rockFilter:  *ecs.NewFilter3[components.Position, components.Body, components.Asteroid](w),
		stationMap:  ecs.NewMap[components.Station](w),
		rockMapper:  ecs.NewMap3[components.Position, components.Body, components.Asteroid](w),
		idMap:       ecs.NewMap[components.Identity](w),
		capMap:      ecs.NewMap[components.Capacitor](w),
		cargoMap:    ecs.NewMap[components.Cargo](w),
		output:      opts.Output,
		logStats:    opts.LogStats,
		onWindow:    opts.OnWindow,
	}

	g.query = systems.NewQuery(w, space, float32(cfg.World.GridCellSize))
	g.network = world.NewNetwork(w, space, cfg.Travel)
	g.market = world.NewMarket(w, cfg.Market)
	g.agents = systems.NewAgentSystem(w, cfg, g.query, capability.NewModuleProbe(w), g.network, g.market, rand.New(rand.NewSource(opts.Seed+1)))
	g.tackle = systems.NewTackleSystem(w, space, cfg.Derived.ResolverInterval, float32(cfg.Tackle.DrainTransferFraction))
	g.modules = systems.NewModuleSystem(w, space, float32(cfg.Modules.CapacitorRegen))
	g.movement = systems.NewMovementSystem(w, space)
	g.network.OnArrive = g.agents.SectorChanged

	g.collector = telemetry.NewCollector(cfg.Telemetry.StatsWindow, cfg.Derived.DT32)
	g.perf = telemetry.NewPerfCollector(int(g.collector.WindowDurationTicks()))
	g.bookmarks = telemetry.NewBookmarkDetector(10)
	g.agents.SetRecorder(g.collector)

	return g
}

// Step advances the simulation by one fixed tick. Time advances before
// dispatch so every handler sees now > 0.
func (g *Game) Step(dt float32) {
	g.now += float64(dt)
	g.tick++

	g.perf.StartTick()

	g.perf.StartPhase(telemetry.PhaseQuery)
	g.query.Rebuild()

	g.perf.StartPhase(telemetry.PhaseAgents)
	g.agents.Update(g.now, dt)
	g.directorTick(dt)

	g.perf.StartPhase(telemetry.PhaseTackle)
	g.sweeps += g.tackle.Update(dt)

	g.perf.StartPhase(telemetry.PhaseModules)
	g.modules.Update(dt)

	g.perf.StartPhase(telemetry.PhaseMovement)
	g.movement.Update(dt)

	g.perf.StartPhase(telemetry.PhaseTravel)
	g.network.Update(dt)
	g.market.Update(dt)

	g.perf.StartPhase(telemetry.PhaseCleanup)
	g.cleanupDestroyed()
	g.respawnDue()

	g.perf.StartPhase(telemetry.PhaseTelemetry)
	g.flushTelemetry()

	g.perf.EndTick()
}

// Run advances n ticks at the configured dt.
func (g *Game) Run(n int) {
	dt := g.cfg.Derived.DT32
	for i := 0; i < n; i++ {
		g.Step(dt)
	}
}

// AssignTask gives an agent a new task.
func (g *Game) AssignTask(e ecs.Entity, task components.Task) {
	g.agents.AssignTask(e, task)
}

// World returns the ECS world.
func (g *Game) World() *ecs.World { return g.world }

// Now returns simulation time in seconds.
func (g *Game) Now() float64 { return g.now }

// Tick returns the number of completed ticks.
func (g *Game) Tick() int32 { return g.tick }

// RunID returns the run identifier.
func (g *Game) RunID() string { return g.runID }

// Network returns the sector network.
func (g *Game) Network() *world.Network { return g.network }

// Market returns the station market.
func (g *Game) Market() *world.Market { return g.market }

// Collector returns the telemetry collector.
func (g *Game) Collector() *telemetry.Collector { return g.collector }

// Close flushes telemetry output.
func (g *Game) Close() error {
	if err := g.output.Close(); err != nil {
		slog.Error("closing output", "error", err)
		return err
	}
	return nil
}
