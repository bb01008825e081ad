// Package steering provides wrapped-space distance, direction and heading math
// on a toroidal 2D plane.
package steering

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Space is a toroidal plane of fixed width and height. Every distance and
// direction is taken along the shortest path across the wrapped edges.
type Space struct {
	W, H float32
}

// Delta returns the shortest path delta from (x1,y1) to (x2,y2).
func (s Space) Delta(x1, y1, x2, y2 float32) (dx, dy float32) {
	dx = x2 - x1
	dy = y2 - y1

	if dx > s.W/2 {
		dx -= s.W
	} else if dx < -s.W/2 {
		dx += s.W
	}
	if dy > s.H/2 {
		dy -= s.H
	} else if dy < -s.H/2 {
		dy += s.H
	}

	return dx, dy
}

// DistanceSq returns the squared wrapped distance between two points.
func (s Space) DistanceSq(x1, y1, x2, y2 float32) float32 {
	dx, dy := s.Delta(x1, y1, x2, y2)
	return dx*dx + dy*dy
}

// Distance returns the wrapped distance between two points.
func (s Space) Distance(x1, y1, x2, y2 float32) float32 {
	return float32(math.Sqrt(float64(s.DistanceSq(x1, y1, x2, y2))))
}

// Direction returns the heading in radians from (x1,y1) toward (x2,y2).
// Coincident points yield 0.
func (s Space) Direction(x1, y1, x2, y2 float32) float32 {
	dx, dy := s.Delta(x1, y1, x2, y2)
	if dx == 0 && dy == 0 {
		return 0
	}
	return float32(math.Atan2(float64(dy), float64(dx)))
}

// Wrap maps a point back into [0,W) x [0,H).
func (s Space) Wrap(x, y float32) (float32, float32) {
	return mod(x, s.W), mod(y, s.H)
}

// ClampInside clamps a point to stay at least margin away from the sector edges.
// A margin wider than half the sector collapses to the center line.
func (s Space) ClampInside(x, y, margin float32) (float32, float32) {
	return clampAxis(x, s.W, margin), clampAxis(y, s.H, margin)
}

func clampAxis(v, size, margin float32) float32 {
	if margin*2 >= size {
		return size / 2
	}
	if v < margin {
		return margin
	}
	if v > size-margin {
		return size - margin
	}
	return v
}

// RadialSpeed returns how fast a target moving at (heading, speed) is opening
// the distance from an observer. Negative values mean it is closing.
func (s Space) RadialSpeed(ox, oy, tx, ty, heading, speed float32) float32 {
	dx, dy := s.Delta(ox, oy, tx, ty)
	away := r2.Vec{X: float64(dx), Y: float64(dy)}
	if r2.Norm(away) == 0 {
		return 0
	}
	return float32(r2.Dot(Velocity(heading, speed), r2.Unit(away)))
}

// PredictIntercept returns where a target at (tx,ty) moving at (heading, speed)
// will be after lead seconds, wrapped back into the sector.
func (s Space) PredictIntercept(tx, ty, heading, speed, lead float32) (float32, float32) {
	p := r2.Vec{X: float64(tx), Y: float64(ty)}
	p = r2.Add(p, r2.Scale(float64(lead), Velocity(heading, speed)))
	return s.Wrap(float32(p.X), float32(p.Y))
}

// Velocity converts a heading and speed into a vector.
func Velocity(heading, speed float32) r2.Vec {
	return r2.Scale(float64(speed), r2.Vec{
		X: math.Cos(float64(heading)),
		Y: math.Sin(float64(heading)),
	})
}

// Tangent returns the heading perpendicular to bearing, used for orbiting.
func Tangent(bearing float32, clockwise bool) float32 {
	if clockwise {
		return NormalizeAngle(bearing - math.Pi/2)
	}
	return NormalizeAngle(bearing + math.Pi/2)
}

// TurnToward rotates current toward desired by at most maxStep radians.
func TurnToward(current, desired, maxStep float32) float32 {
	diff := NormalizeAngle(desired - current)
	if diff > maxStep {
		diff = maxStep
	} else if diff < -maxStep {
		diff = -maxStep
	}
	return NormalizeAngle(current + diff)
}

// NormalizeAngle wraps an angle to [-Pi, Pi].
func NormalizeAngle(angle float32) float32 {
	for angle > math.Pi {
		angle -= 2 * math.Pi
	}
	for angle < -math.Pi {
		angle += 2 * math.Pi
	}
	return angle
}

// mod returns a non-negative remainder, for wrapping coordinates.
func mod(v, size float32) float32 {
	if size <= 0 {
		return v
	}
	r := float32(math.Mod(float64(v), float64(size)))
	if r < 0 {
		r += size
	}
	return r
}
