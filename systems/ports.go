package systems

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/drift/components"
	"github.com/pthm-cable/drift/pursuit"
)

// Travel is the sector/travel collaborator. Gate jumps complete later; the
// collaborator reports rematerialization through AgentSystem.SectorChanged.
type Travel interface {
	// FindRoute returns the sectors to visit after from, ending with to.
	// Nil means no route.
	FindRoute(from, to components.SectorID) []components.SectorID
	RequestGateJump(e ecs.Entity, dest components.SectorID)
	// RequestLocalWarp fails if already warping, on cooldown or disrupted.
	RequestLocalWarp(e ecs.Entity, x, y float32) bool
	CanLocalWarp(e ecs.Entity) bool
}

// Economy performs cargo and station transactions. Each call is safe to
// repeat once per tick while in range.
type Economy interface {
	HandleMine(e, asteroid ecs.Entity, dt float32)
	HandleBuy(e, station ecs.Entity)
	HandleSell(e, station ecs.Entity)
	HandleDockAndRepair(e, station ecs.Entity)
}

// Recorder receives behavior events for telemetry.
type Recorder interface {
	RecordTransition(id uint32, from, to components.State, reason string)
	RecordVerdict(id uint32, v pursuit.Verdict)
	RecordChaseEnded(id uint32, duration float64)
}

type nopRecorder struct{}

func (nopRecorder) RecordTransition(uint32, components.State, components.State, string) {}
func (nopRecorder) RecordVerdict(uint32, pursuit.Verdict)                               {}
func (nopRecorder) RecordChaseEnded(uint32, float64)                                    {}
