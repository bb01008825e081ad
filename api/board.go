// Package api serves a read-only JSON view of a running simulation.
package api

import (
	"sync"

	"github.com/pthm-cable/drift/game"
	"github.com/pthm-cable/drift/telemetry"
)

// Board holds the latest published simulation view. The simulation loop
// publishes; HTTP handlers read.
type Board struct {
	mu      sync.RWMutex
	runID   string
	tick    int32
	now     float64
	agents  []game.AgentView
	details map[uint32]game.AgentDetail
	window  *telemetry.WindowStats
}

// NewBoard creates an empty board.
func NewBoard(runID string) *Board {
	return &Board{runID: runID, details: map[uint32]game.AgentDetail{}}
}

// Publish replaces the agent views.
func (b *Board) Publish(tick int32, now float64, agents []game.AgentView, details map[uint32]game.AgentDetail) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tick = tick
	b.now = now
	b.agents = agents
	b.details = details
}

// PublishWindow records the latest telemetry window.
func (b *Board) PublishWindow(s telemetry.WindowStats) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.window = &s
}

// Agents returns the published agent views.
func (b *Board) Agents() []game.AgentView {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.agents
}

// Agent returns one agent's detail view.
func (b *Board) Agent(id uint32) (game.AgentDetail, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	d, ok := b.details[id]
	return d, ok
}

// Status is the run summary served at /api/stats.
type Status struct {
	RunID  string                 `json:"run_id"`
	Tick   int32                  `json:"tick"`
	Now    float64                `json:"sim_time"`
	Agents int                    `json:"agents"`
	Window *telemetry.WindowStats `json:"window,omitempty"`
}

// Status returns the run summary.
func (b *Board) Status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Status{
		RunID:  b.runID,
		Tick:   b.tick,
		Now:    b.now,
		Agents: len(b.agents),
		Window: b.window,
	}
}
