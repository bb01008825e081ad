package systems

import (
	"math"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/drift/components"
	"github.com/pthm-cable/drift/steering"
)

// MovementSystem integrates movement intents. Handlers only set desired
// heading and speed; the effective speed limit includes propulsion boost
// and the web factor.
type MovementSystem struct {
	space  steering.Space
	filter ecs.Filter2[components.Position, components.Motion]
	disMap *ecs.Map[components.Disruption]
}

// NewMovementSystem creates a movement system.
func NewMovementSystem(w *ecs.World, space steering.Space) *MovementSystem {
	return &MovementSystem{
		space:  space,
		filter: *ecs.NewFilter2[components.Position, components.Motion](w),
		disMap: ecs.NewMap[components.Disruption](w),
	}
}

// Update moves every entity with Motion by dt.
func (s *MovementSystem) Update(dt float32) {
	query := s.filter.Query()
	for query.Next() {
		e := query.Entity()
		pos, mot := query.Get()

		if mot.Warping {
			mot.Speed = 0
			continue
		}

		mot.Heading = steering.TurnToward(mot.Heading, mot.DesiredHeading, mot.TurnRate*dt)

		boost := mot.BoostFactor
		if boost <= 0 {
			boost = 1
		}
		limit := mot.MaxSpeed * boost
		if s.disMap.Has(e) {
			if dis := s.disMap.Get(e); dis.Webbed {
				limit *= dis.WebSpeedFactor
			}
		}
		mot.Speed = clampFloat(mot.DesiredSpeed*boost, 0, limit)

		pos.X += mot.Speed * float32(math.Cos(float64(mot.Heading))) * dt
		pos.Y += mot.Speed * float32(math.Sin(float64(mot.Heading))) * dt
		pos.X, pos.Y = s.space.Wrap(pos.X, pos.Y)
	}
}
