// Package systems provides ECS systems for the simulation.
package systems

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/drift/components"
	"github.com/pthm-cable/drift/steering"
)

// Neighbor holds a nearby entity with precomputed spatial data.
type Neighbor struct {
	E      ecs.Entity
	DX, DY float32 // Toroidal delta from query origin
	DistSq float32
}

// SpatialGrid provides cell-based neighbor lookups within one sector.
type SpatialGrid struct {
	world    *ecs.World
	cellSize float32
	cols     int
	rows     int
	space    steering.Space
	cells    [][]ecs.Entity
}

// NewSpatialGrid creates a spatial grid covering a sector.
func NewSpatialGrid(w *ecs.World, space steering.Space, cellSize float32) *SpatialGrid {
	cols := int(space.W/cellSize) + 1
	rows := int(space.H/cellSize) + 1

	cells := make([][]ecs.Entity, cols*rows)
	for i := range cells {
		cells[i] = make([]ecs.Entity, 0, 8)
	}

	return &SpatialGrid{
		world:    w,
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		space:    space,
		cells:    cells,
	}
}

// Clear removes all entities from the grid.
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

// Insert adds an entity to the grid at the given position.
func (g *SpatialGrid) Insert(e ecs.Entity, x, y float32) {
	idx := g.cellIndex(x, y)
	if idx >= 0 && idx < len(g.cells) {
		g.cells[idx] = append(g.cells[idx], e)
	}
}

// QueryRadiusInto finds entities within radius and appends them to dst.
// Reuse dst across calls to avoid allocations.
func (g *SpatialGrid) QueryRadiusInto(dst []Neighbor, x, y, radius float32, exclude ecs.Entity, posMap *ecs.Map[components.Position]) []Neighbor {
	cellRadius := int(radius/g.cellSize) + 1

	// A radius spanning the whole grid would visit wrapped cells twice.
	colSpan, rowSpan := cellRadius, cellRadius
	if 2*colSpan+1 > g.cols {
		colSpan = -1
	}
	if 2*rowSpan+1 > g.rows {
		rowSpan = -1
	}

	centerCol := int(x / g.cellSize)
	centerRow := int(y / g.cellSize)
	radiusSq := radius * radius

	visit := func(col, row int) {
		for _, e := range g.cells[row*g.cols+col] {
			if e == exclude || !g.world.Alive(e) {
				continue
			}
			pos := posMap.Get(e)
			if pos == nil {
				continue
			}
			dx, dy := g.space.Delta(x, y, pos.X, pos.Y)
			distSq := dx*dx + dy*dy
			if distSq <= radiusSq {
				dst = append(dst, Neighbor{E: e, DX: dx, DY: dy, DistSq: distSq})
			}
		}
	}

	for _, col := range axisCells(centerCol, colSpan, g.cols) {
		for _, row := range axisCells(centerRow, rowSpan, g.rows) {
			visit(col, row)
		}
	}
	return dst
}

// axisCells lists wrapped cell indices around center. span < 0 means every cell.
func axisCells(center, span, n int) []int {
	if span < 0 {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	out := make([]int, 0, 2*span+1)
	for d := -span; d <= span; d++ {
		out = append(out, ((center+d)%n+n)%n)
	}
	return out
}

// cellIndex returns the flat index for a sector position.
func (g *SpatialGrid) cellIndex(x, y float32) int {
	col := int(x / g.cellSize)
	row := int(y / g.cellSize)

	if col < 0 {
		col = 0
	} else if col >= g.cols {
		col = g.cols - 1
	}
	if row < 0 {
		row = 0
	} else if row >= g.rows {
		row = g.rows - 1
	}

	return row*g.cols + col
}
