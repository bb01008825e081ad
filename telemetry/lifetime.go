package telemetry

import "github.com/pthm-cable/drift/components"

// LifetimeStats tracks per-agent statistics since spawn.
type LifetimeStats struct {
	SpawnTick int32
	Faction   uint16
	Role      components.Role

	// Pursuit
	Chases       int
	Tackles      int
	Intercepts   int
	Disengages   int
	ChaseTimeSec float64

	// Survival
	Flees int
	Docks int

	LastState components.State
}

// LifetimeTracker manages per-agent lifetime statistics keyed by agent ID.
type LifetimeTracker struct {
	stats map[uint32]*LifetimeStats
}

// NewLifetimeTracker creates a new lifetime tracker.
func NewLifetimeTracker() *LifetimeTracker {
	return &LifetimeTracker{
		stats: make(map[uint32]*LifetimeStats),
	}
}

// Register creates lifetime stats for a newly spawned agent.
func (lt *LifetimeTracker) Register(id uint32, spawnTick int32, faction uint16, role components.Role) {
	lt.stats[id] = &LifetimeStats{
		SpawnTick: spawnTick,
		Faction:   faction,
		Role:      role,
	}
}

// Get returns the lifetime stats for an agent, or nil if not found.
func (lt *LifetimeTracker) Get(id uint32) *LifetimeStats {
	return lt.stats[id]
}

// Remove removes an agent's stats and returns them.
func (lt *LifetimeTracker) Remove(id uint32) *LifetimeStats {
	stats := lt.stats[id]
	delete(lt.stats, id)
	return stats
}

// RecordTransition counts entries into the states worth tracking.
func (lt *LifetimeTracker) RecordTransition(id uint32, to components.State) {
	s := lt.stats[id]
	if s == nil {
		return
	}
	s.LastState = to
	switch to {
	case components.StatePursuing:
		s.Chases++
	case components.StateTackling:
		s.Tackles++
	case components.StateIntercepting:
		s.Intercepts++
	case components.StateDisengaging:
		s.Disengages++
	case components.StateFleeing:
		s.Flees++
	case components.StateDocking:
		s.Docks++
	}
}

// RecordChase adds a finished chase to the cumulative chase time.
func (lt *LifetimeTracker) RecordChase(id uint32, duration float64) {
	if s := lt.stats[id]; s != nil {
		s.ChaseTimeSec += duration
	}
}

// All returns all tracked stats.
func (lt *LifetimeTracker) All() map[uint32]*LifetimeStats {
	return lt.stats
}

// Count returns the number of tracked agents.
func (lt *LifetimeTracker) Count() int {
	return len(lt.stats)
}
