// Package world provides the reference collaborators the behavior core
// talks to: sector travel and the station economy.
package world

import (
	"log/slog"
	"math"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/pthm-cable/drift/components"
	"github.com/pthm-cable/drift/config"
	"github.com/pthm-cable/drift/steering"
)

type pendingJump struct {
	e         ecs.Entity
	from      components.SectorID
	dest      components.SectorID
	remaining float32
}

// Network owns the sector graph, gates, gate jumps and sector-local warps.
type Network struct {
	world *ecs.World
	space steering.Space
	graph *simple.UndirectedGraph

	jumpDelay    float32
	warpCooldown float32
	warpMax      float32

	gateMapper *ecs.Map4[components.Position, components.Body, components.Identity, components.Gate]
	posMap     *ecs.Map[components.Position]
	bodyMap    *ecs.Map[components.Body]
	motMap     *ecs.Map[components.Motion]
	disMap     *ecs.Map[components.Disruption]

	gates     map[[2]components.SectorID]ecs.Entity
	pending   []pendingJump
	cooldowns map[ecs.Entity]float32

	// OnArrive is called after an entity rematerializes in a new sector.
	OnArrive func(e ecs.Entity)

	Jumps int
	Warps int
}

// NewNetwork creates an empty sector network.
func NewNetwork(w *ecs.World, space steering.Space, cfg config.TravelConfig) *Network {
	return &Network{
		world:        w,
		space:        space,
		graph:        simple.NewUndirectedGraph(),
		jumpDelay:    float32(cfg.GateJumpDelay),
		warpCooldown: float32(cfg.LocalWarpCooldown),
		warpMax:      float32(cfg.LocalWarpMaxDistance),
		gateMapper:   ecs.NewMap4[components.Position, components.Body, components.Identity, components.Gate](w),
		posMap:       ecs.NewMap[components.Position](w),
		bodyMap:      ecs.NewMap[components.Body](w),
		motMap:       ecs.NewMap[components.Motion](w),
		disMap:       ecs.NewMap[components.Disruption](w),
		gates:        make(map[[2]components.SectorID]ecs.Entity),
		cooldowns:    make(map[ecs.Entity]float32),
	}
}

// AddSector registers a sector. Linking registers missing sectors too.
func (n *Network) AddSector(id components.SectorID) {
	if n.graph.Node(int64(id)) == nil {
		n.graph.AddNode(simple.Node(id))
	}
}

// Sectors returns the number of registered sectors.
func (n *Network) Sectors() int {
	return n.graph.Nodes().Len()
}

// Link connects two sectors with a pair of gates at the given positions.
func (n *Network) Link(a, b components.SectorID, ax, ay, bx, by float32) {
	if a == b {
		return
	}
	n.AddSector(a)
	n.AddSector(b)
	n.graph.SetEdge(n.graph.NewEdge(simple.Node(a), simple.Node(b)))
	n.gates[[2]components.SectorID{a, b}] = n.newGate(a, b, ax, ay)
	n.gates[[2]components.SectorID{b, a}] = n.newGate(b, a, bx, by)
}

func (n *Network) newGate(sector, dest components.SectorID, x, y float32) ecs.Entity {
	return n.gateMapper.NewEntity(
		&components.Position{X: x, Y: y},
		&components.Body{Kind: components.KindGate, Sector: sector, Radius: 100},
		&components.Identity{},
		&components.Gate{Dest: dest},
	)
}

// Gate returns the gate in sector leading to dest.
func (n *Network) Gate(sector, dest components.SectorID) (ecs.Entity, bool) {
	e, ok := n.gates[[2]components.SectorID{sector, dest}]
	return e, ok && n.world.Alive(e)
}

// FindRoute returns the shortest hop sequence from one sector to another,
// excluding from. Nil when unreachable or when from == to.
func (n *Network) FindRoute(from, to components.SectorID) []components.SectorID {
	if from == to || n.graph.Node(int64(from)) == nil || n.graph.Node(int64(to)) == nil {
		return nil
	}
	shortest := path.DijkstraFrom(simple.Node(from), n.graph)
	nodes, _ := shortest.To(int64(to))
	if len(nodes) < 2 {
		return nil
	}
	route := make([]components.SectorID, 0, len(nodes)-1)
	for _, node := range nodes[1:] {
		route = append(route, components.SectorID(node.ID()))
	}
	return route
}

// RequestGateJump starts a delayed jump. The entity is marked warping until
// it rematerializes at the arrival gate.
func (n *Network) RequestGateJump(e ecs.Entity, dest components.SectorID) {
	if !n.world.Alive(e) || !n.bodyMap.Has(e) {
		return
	}
	for _, p := range n.pending {
		if p.e == e {
			return
		}
	}
	from := n.bodyMap.Get(e).Sector
	if _, ok := n.Gate(from, dest); !ok {
		return
	}
	n.pending = append(n.pending, pendingJump{e: e, from: from, dest: dest, remaining: n.jumpDelay})
	if n.motMap.Has(e) {
		n.motMap.Get(e).Warping = true
	}
}

// CanLocalWarp reports whether a sector-local warp would be accepted now.
func (n *Network) CanLocalWarp(e ecs.Entity) bool {
	if !n.world.Alive(e) {
		return false
	}
	if n.cooldowns[e] > 0 {
		return false
	}
	if n.motMap.Has(e) && n.motMap.Get(e).Warping {
		return false
	}
	if n.disMap.Has(e) && n.disMap.Get(e).Pointed {
		return false
	}
	return true
}

// RequestLocalWarp moves e toward (x,y) instantly, at most the configured
// warp distance. Fails when already warping, on cooldown or disrupted.
func (n *Network) RequestLocalWarp(e ecs.Entity, x, y float32) bool {
	if !n.CanLocalWarp(e) || !n.posMap.Has(e) {
		return false
	}
	pos := n.posMap.Get(e)
	dx, dy := n.space.Delta(pos.X, pos.Y, x, y)
	dist := float32(math.Hypot(float64(dx), float64(dy)))
	if dist > n.warpMax && dist > 0 {
		scale := n.warpMax / dist
		dx, dy = dx*scale, dy*scale
	}
	pos.X, pos.Y = n.space.Wrap(pos.X+dx, pos.Y+dy)
	n.cooldowns[e] = n.warpCooldown
	n.Warps++
	return true
}

// Update advances cooldowns and completes due gate jumps.
func (n *Network) Update(dt float32) {
	for e, cd := range n.cooldowns {
		if cd -= dt; cd <= 0 || !n.world.Alive(e) {
			delete(n.cooldowns, e)
		} else {
			n.cooldowns[e] = cd
		}
	}

	var arrived []pendingJump
	kept := n.pending[:0]
	for _, p := range n.pending {
		p.remaining -= dt
		if p.remaining <= 0 {
			arrived = append(arrived, p)
		} else {
			kept = append(kept, p)
		}
	}
	n.pending = kept

	for _, p := range arrived {
		if !n.world.Alive(p.e) {
			continue
		}
		n.rematerialize(p)
		if n.OnArrive != nil {
			n.OnArrive(p.e)
		}
	}
}

func (n *Network) rematerialize(p pendingJump) {
	body := n.bodyMap.Get(p.e)
	body.Sector = p.dest
	pos := n.posMap.Get(p.e)
	if gate, ok := n.Gate(p.dest, p.from); ok {
		gp := n.posMap.Get(gate)
		pos.X, pos.Y = n.space.Wrap(gp.X+150, gp.Y)
	} else {
		pos.X, pos.Y = n.space.W/2, n.space.H/2
	}
	if n.motMap.Has(p.e) {
		m := n.motMap.Get(p.e)
		m.Warping = false
		m.Speed = 0
	}
	n.Jumps++
	slog.Debug("gate jump", "from", p.from, "to", p.dest)
}

// Pending returns the number of jumps in progress.
func (n *Network) Pending() int { return len(n.pending) }
