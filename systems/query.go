package systems

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/drift/components"
	"github.com/pthm-cable/drift/steering"
)

// Query answers world questions for behavior code: nearest match, live
// entities in a sector, station lookup. It is rebuilt once per tick and only
// read by state handlers.
type Query struct {
	world    *ecs.World
	space    steering.Space
	cellSize float32

	filter     ecs.Filter2[components.Position, components.Body]
	posMap     *ecs.Map[components.Position]
	bodyMap    *ecs.Map[components.Body]
	stationMap *ecs.Map[components.Station]

	grids    map[components.SectorID]*SpatialGrid
	live     map[components.SectorID][]ecs.Entity
	stations map[uint32]ecs.Entity
	scratch  []Neighbor
}

// NewQuery creates a world query. Call Rebuild before the first read.
func NewQuery(w *ecs.World, space steering.Space, cellSize float32) *Query {
	return &Query{
		world:      w,
		space:      space,
		cellSize:   cellSize,
		filter:     *ecs.NewFilter2[components.Position, components.Body](w),
		posMap:     ecs.NewMap[components.Position](w),
		bodyMap:    ecs.NewMap[components.Body](w),
		stationMap: ecs.NewMap[components.Station](w),
		grids:      make(map[components.SectorID]*SpatialGrid),
		live:       make(map[components.SectorID][]ecs.Entity),
		stations:   make(map[uint32]ecs.Entity),
	}
}

// Space returns the sector geometry.
func (q *Query) Space() steering.Space { return q.space }

// Rebuild re-indexes every positioned entity by sector.
func (q *Query) Rebuild() {
	for _, g := range q.grids {
		g.Clear()
	}
	for id := range q.live {
		q.live[id] = q.live[id][:0]
	}
	clear(q.stations)

	query := q.filter.Query()
	for query.Next() {
		e := query.Entity()
		pos, body := query.Get()

		g, ok := q.grids[body.Sector]
		if !ok {
			g = NewSpatialGrid(q.world, q.space, q.cellSize)
			q.grids[body.Sector] = g
		}
		g.Insert(e, pos.X, pos.Y)
		q.live[body.Sector] = append(q.live[body.Sector], e)

		if body.Kind == components.KindStation && q.stationMap.Has(e) {
			q.stations[q.stationMap.Get(e).ID] = e
		}
	}
}

// LiveInSector returns the entities in a sector that are still alive.
func (q *Query) LiveInSector(sector components.SectorID) []ecs.Entity {
	src := q.live[sector]
	out := make([]ecs.Entity, 0, len(src))
	for _, e := range src {
		if q.world.Alive(e) {
			out = append(out, e)
		}
	}
	return out
}

// Within returns live neighbors of e in its own sector within radius.
func (q *Query) Within(e ecs.Entity, radius float32) []Neighbor {
	pos, sector, ok := q.origin(e)
	if !ok {
		return nil
	}
	g, ok := q.grids[sector]
	if !ok {
		return nil
	}
	q.scratch = g.QueryRadiusInto(q.scratch[:0], pos.X, pos.Y, radius, e, q.posMap)

	out := make([]Neighbor, 0, len(q.scratch))
	for _, n := range q.scratch {
		if q.bodyMap.Get(n.E).Sector == sector {
			out = append(out, n)
		}
	}
	return out
}

// NearestMatching returns the closest entity in e's sector for which match
// is true. maxRange <= 0 searches the whole sector.
func (q *Query) NearestMatching(e ecs.Entity, match func(ecs.Entity) bool, maxRange float32) (ecs.Entity, float32, bool) {
	pos, sector, ok := q.origin(e)
	if !ok {
		return ecs.Entity{}, 0, false
	}

	var best ecs.Entity
	bestSq := float32(-1)
	consider := func(o ecs.Entity, distSq float32) {
		if bestSq >= 0 && distSq >= bestSq {
			return
		}
		if !match(o) {
			return
		}
		best, bestSq = o, distSq
	}

	if maxRange > 0 {
		for _, n := range q.Within(e, maxRange) {
			consider(n.E, n.DistSq)
		}
	} else {
		for _, o := range q.LiveInSector(sector) {
			if o == e || q.bodyMap.Get(o).Sector != sector {
				continue
			}
			p := q.posMap.Get(o)
			consider(o, q.space.DistanceSq(pos.X, pos.Y, p.X, p.Y))
		}
	}

	if bestSq < 0 {
		return ecs.Entity{}, 0, false
	}
	return best, sqrt32(bestSq), true
}

// FindStation returns the live station with the given ID.
func (q *Query) FindStation(id uint32) (ecs.Entity, bool) {
	e, ok := q.stations[id]
	if !ok || !q.world.Alive(e) {
		return ecs.Entity{}, false
	}
	return e, true
}

// Distance returns the wrapped distance between two live entities in the
// same sector.
func (q *Query) Distance(a, b ecs.Entity) (float32, bool) {
	pa, sa, ok := q.origin(a)
	if !ok {
		return 0, false
	}
	pb, sb, ok := q.origin(b)
	if !ok || sa != sb {
		return 0, false
	}
	return q.space.Distance(pa.X, pa.Y, pb.X, pb.Y), true
}

func (q *Query) origin(e ecs.Entity) (*components.Position, components.SectorID, bool) {
	if e.IsZero() || !q.world.Alive(e) || !q.posMap.Has(e) || !q.bodyMap.Has(e) {
		return nil, 0, false
	}
	return q.posMap.Get(e), q.bodyMap.Get(e).Sector, true
}
