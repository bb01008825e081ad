// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	World     WorldConfig           `yaml:"world"`
	Agent     AgentConfig           `yaml:"agent"`
	Pursuit   PursuitConfig         `yaml:"pursuit"`
	Tackle    TackleConfig          `yaml:"tackle"`
	Modules   ModulesConfig         `yaml:"modules"`
	Travel    TravelConfig          `yaml:"travel"`
	Market    MarketConfig          `yaml:"market"`
	Factions  []FactionConfig       `yaml:"factions"`
	Roles     map[string]RoleConfig `yaml:"roles"`
	Telemetry TelemetryConfig       `yaml:"telemetry"`
	Scenario  ScenarioConfig        `yaml:"scenario"`
	API       APIConfig             `yaml:"api"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// WorldConfig holds sector dimensions and the fixed simulation step.
// Every sector is a torus of the same size.
type WorldConfig struct {
	Width        float64 `yaml:"width"`
	Height       float64 `yaml:"height"`
	GridCellSize float64 `yaml:"grid_cell_size"`
	DT           float64 `yaml:"dt"` // seconds per tick
}

// AgentConfig holds state machine tuning shared by all roles.
type AgentConfig struct {
	FleeThreshold          float64 `yaml:"flee_threshold"`        // Hull fraction that forces fleeing
	FleeRecoverFraction    float64 `yaml:"flee_recover_fraction"` // Hull fraction needed to stop fleeing without a station
	AttackRange            float64 `yaml:"attack_range"`
	ChaseTriggerMultiplier float64 `yaml:"chase_trigger_multiplier"` // Engaging -> pursuing beyond attack_range * this
	PatrolRerollDistance   float64 `yaml:"patrol_reroll_distance"`
	ScanRange              float64 `yaml:"scan_range"` // Aggro range for hunting and threat detection
	DockingRange           float64 `yaml:"docking_range"`
	DockingDuration        float64 `yaml:"docking_duration"` // Seconds spent docked
	UndockDistance         float64 `yaml:"undock_distance"`
	GateActivationRadius   float64 `yaml:"gate_activation_radius"`
	StationRange           float64 `yaml:"station_range"`
	MiningRange            float64 `yaml:"mining_range"`
	SurveyRange            float64 `yaml:"survey_range"`
	SurveyDuration         float64 `yaml:"survey_duration"`
	RepairRange            float64 `yaml:"repair_range"`
	OrbitSpeedFactor       float64 `yaml:"orbit_speed_factor"`
	CruiseSpeedFactor      float64 `yaml:"cruise_speed_factor"`
	FleeWarpMinThreatDist  float64 `yaml:"flee_warp_min_threat_distance"`
	FleeSafeMargin         float64 `yaml:"flee_safe_margin"` // Random safe points stay this far from sector edges
}

// PursuitConfig holds pursuit evaluator tuning.
type PursuitConfig struct {
	CloseRange             float64 `yaml:"close_range"`              // Tackle verdict distance
	HomeDistanceMultiplier float64 `yaml:"home_distance_multiplier"` // Leash = scan_range * this
	InterceptLeadCap       float64 `yaml:"intercept_lead_cap"`       // Max seconds of target motion to lead
}

// TackleConfig holds EWAR resolver parameters.
type TackleConfig struct {
	ResolverHz            float64 `yaml:"resolver_hz"`
	DrainTransferFraction float64 `yaml:"drain_transfer_fraction"` // Share of drained energy returned to the drainer
}

// ModulesConfig holds module plumbing parameters.
type ModulesConfig struct {
	CapacitorRegen float64 `yaml:"capacitor_regen"` // Energy per second
}

// TravelConfig holds sector travel collaborator parameters.
type TravelConfig struct {
	GateJumpDelay        float64 `yaml:"gate_jump_delay"`     // Seconds between jump request and rematerialization
	LocalWarpCooldown    float64 `yaml:"local_warp_cooldown"` // Seconds between sector-local warps
	LocalWarpMaxDistance float64 `yaml:"local_warp_max_distance"`
}

// MarketConfig holds station trade prices.
type MarketConfig struct {
	OrePrice       float64 `yaml:"ore_price"`       // Credits per unit of ore sold
	GoodsBuyPrice  float64 `yaml:"goods_buy_price"` // Credits per unit of goods bought
	GoodsSellPrice float64 `yaml:"goods_sell_price"`
	StationStock   float64 `yaml:"station_stock"` // Goods each station starts with
	StockRegen     float64 `yaml:"stock_regen"`   // Goods restocked per second
}

// FactionConfig describes one faction and its chase budget.
type FactionConfig struct {
	ID           uint16   `yaml:"id"`
	Name         string   `yaml:"name"`
	Pirate       bool     `yaml:"pirate"`
	MaxChaseTime float64  `yaml:"max_chase_time"` // Seconds before a pursuit is abandoned
	HostileTo    []uint16 `yaml:"hostile_to"`
}

// RoleConfig holds the hull and fitting for one agent role.
type RoleConfig struct {
	MaxSpeed  float64        `yaml:"max_speed"`
	TurnRate  float64        `yaml:"turn_rate"` // Radians per second
	Shield    float64        `yaml:"shield"`
	Armor     float64        `yaml:"armor"`
	Hull      float64        `yaml:"hull"`
	Capacitor float64        `yaml:"capacitor"`
	Cargo     float64        `yaml:"cargo"`
	Modules   []ModuleConfig `yaml:"modules"`
}

// ModuleConfig describes one fitted module.
type ModuleConfig struct {
	Tag       string  `yaml:"tag"`
	Effect    string  `yaml:"effect,omitempty"` // Tackle modules only
	Range     float64 `yaml:"range,omitempty"`
	Strength  float64 `yaml:"strength,omitempty"`
	CapCost   float64 `yaml:"cap_cost"`
	CycleTime float64 `yaml:"cycle_time"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow float64 `yaml:"stats_window"`
}

// ScenarioConfig holds headless scenario seeding parameters.
type ScenarioConfig struct {
	Sectors            int     `yaml:"sectors"`
	StationsPerSector  int     `yaml:"stations_per_sector"`
	AsteroidNoiseScale float64 `yaml:"asteroid_noise_scale"`
	AsteroidThreshold  float64 `yaml:"asteroid_threshold"`
	AsteroidSamples    int     `yaml:"asteroid_samples"`
	AsteroidOre        float64 `yaml:"asteroid_ore"`
	Miners             int     `yaml:"miners"`
	Haulers            int     `yaml:"haulers"`
	Ratters            int     `yaml:"ratters"`
	Raiders            int     `yaml:"raiders"`
	Bombers            int     `yaml:"bombers"`
	Surveyors          int     `yaml:"surveyors"`
	Logistics          int     `yaml:"logistics"`
	RespawnDelay       float64 `yaml:"respawn_delay"`     // Seconds before a destroyed agent returns
	DirectorInterval   float64 `yaml:"director_interval"` // Seconds between idle task assignments
}

// APIConfig holds the status server settings.
type APIConfig struct {
	Address string `yaml:"address"` // Empty disables the server
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	DT32             float32            // World.DT as float32
	WorldW32         float32            // Sector width as float32
	WorldH32         float32            // Sector height as float32
	ResolverInterval float32            // Seconds between tackle sweeps
	LeashDistance    float32            // Scan range * home distance multiplier
	FactionIndex     map[uint16]int     // faction id -> index into Factions
	hostile          map[[2]uint16]bool // symmetric hostility pairs
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.computeDerived()

	return cfg, nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.DT32 = float32(c.World.DT)
	c.Derived.WorldW32 = float32(c.World.Width)
	c.Derived.WorldH32 = float32(c.World.Height)

	hz := c.Tackle.ResolverHz
	if hz <= 0 {
		hz = 10
	}
	c.Derived.ResolverInterval = float32(1.0 / hz)
	c.Derived.LeashDistance = float32(c.Agent.ScanRange * c.Pursuit.HomeDistanceMultiplier)

	c.Derived.FactionIndex = make(map[uint16]int, len(c.Factions))
	c.Derived.hostile = make(map[[2]uint16]bool)
	for i, f := range c.Factions {
		c.Derived.FactionIndex[f.ID] = i
		for _, other := range f.HostileTo {
			c.Derived.hostile[[2]uint16{f.ID, other}] = true
			c.Derived.hostile[[2]uint16{other, f.ID}] = true
		}
	}
}

// Hostile reports whether two factions are at war. Relations are symmetric.
func (c *Config) Hostile(a, b uint16) bool {
	if a == b {
		return false
	}
	return c.Derived.hostile[[2]uint16{a, b}]
}

// MaxChaseTime returns the pursuit budget in seconds for a faction.
// Unknown factions get the longest configured budget.
func (c *Config) MaxChaseTime(faction uint16) float64 {
	if i, ok := c.Derived.FactionIndex[faction]; ok {
		return c.Factions[i].MaxChaseTime
	}
	longest := 0.0
	for _, f := range c.Factions {
		if f.MaxChaseTime > longest {
			longest = f.MaxChaseTime
		}
	}
	return longest
}

// Role returns the role configuration by name.
func (c *Config) Role(name string) (RoleConfig, bool) {
	r, ok := c.Roles[name]
	return r, ok
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Clone returns a deep copy with derived values recomputed.
func (c *Config) Clone() (*Config, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	out := &Config{}
	if err := yaml.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("parsing config copy: %w", err)
	}
	out.computeDerived()
	return out, nil
}

// Refresh recomputes derived values after fields were changed in code.
func (c *Config) Refresh() {
	c.computeDerived()
}
