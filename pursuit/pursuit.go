// Package pursuit decides whether a chasing ship should keep chasing, tackle,
// warp ahead to intercept, or give up. Evaluate has no memory; everything
// it needs arrives in its arguments.
package pursuit

import (
	"fmt"

	"github.com/pthm-cable/drift/steering"
)

// Verdict is the outcome of one evaluation.
type Verdict uint8

const (
	Continue Verdict = iota
	Tackle
	Intercept
	Disengage
)

func (v Verdict) String() string {
	switch v {
	case Continue:
		return "continue"
	case Tackle:
		return "tackle"
	case Intercept:
		return "intercept"
	case Disengage:
		return "disengage"
	}
	return "unknown"
}

// Ship is a snapshot of one side of the chase.
type Ship struct {
	X, Y     float32
	Heading  float32
	Speed    float32
	MaxSpeed float32

	TackleReady bool // Chaser only: a tackle module is fitted and ready
	WarpReady   bool // Chaser only: a sector-local warp is available now
	Warping     bool // Target only: already warping out
}

// Context carries timing and leash data for one evaluation.
type Context struct {
	ChaseStart   float64
	Now          float64
	MaxChaseTime float64

	HasAnchor        bool
	AnchorX, AnchorY float32
	MaxHomeDistance  float32

	CloseRange       float32
	InterceptLeadCap float32 // Seconds

	AlliesNearby int // Carried for future weighting, not used in the decision

	Space steering.Space
}

// Result is the verdict plus a reason for logs and telemetry. Reason never
// drives control flow. InterceptX/Y are set only for Intercept.
type Result struct {
	Verdict    Verdict
	Reason     string
	InterceptX float32
	InterceptY float32
}

// Evaluate applies the first matching rule:
//  1. chase budget exceeded: disengage
//  2. chaser or target beyond the home leash: disengage
//  3. within close range with tackle ready: tackle
//  4. target escaping faster than we can close and we can warp: intercept
//  5. otherwise continue
func Evaluate(chaser, target Ship, ctx Context) Result {
	elapsed := ctx.Now - ctx.ChaseStart
	if elapsed > ctx.MaxChaseTime {
		return Result{
			Verdict: Disengage,
			Reason:  fmt.Sprintf("chase time %.1fs exceeds budget %.1fs", elapsed, ctx.MaxChaseTime),
		}
	}

	if ctx.HasAnchor {
		own := ctx.Space.Distance(ctx.AnchorX, ctx.AnchorY, chaser.X, chaser.Y)
		if own > ctx.MaxHomeDistance {
			return Result{
				Verdict: Disengage,
				Reason:  fmt.Sprintf("%.0f from anchor, leash %.0f", own, ctx.MaxHomeDistance),
			}
		}
		theirs := ctx.Space.Distance(ctx.AnchorX, ctx.AnchorY, target.X, target.Y)
		if theirs > ctx.MaxHomeDistance {
			return Result{
				Verdict: Disengage,
				Reason:  fmt.Sprintf("target %.0f from anchor, leash %.0f", theirs, ctx.MaxHomeDistance),
			}
		}
	}

	dist := ctx.Space.Distance(chaser.X, chaser.Y, target.X, target.Y)
	if dist <= ctx.CloseRange && chaser.TackleReady {
		return Result{
			Verdict: Tackle,
			Reason:  fmt.Sprintf("target at %.0f within tackle range %.0f", dist, ctx.CloseRange),
		}
	}

	if chaser.WarpReady && Escaping(chaser, target, ctx.Space) {
		lead := ctx.InterceptLeadCap
		if chaser.MaxSpeed > 0 && dist/chaser.MaxSpeed < lead {
			lead = dist / chaser.MaxSpeed
		}
		x, y := ctx.Space.PredictIntercept(target.X, target.Y, target.Heading, target.Speed, lead)
		return Result{
			Verdict:    Intercept,
			Reason:     fmt.Sprintf("target escaping, leading %.1fs", lead),
			InterceptX: x,
			InterceptY: y,
		}
	}

	return Result{
		Verdict: Continue,
		Reason:  fmt.Sprintf("closing from %.0f", dist),
	}
}

// Escaping reports whether the target is pulling away faster than the chaser
// can close in a straight line, or is already warping out.
func Escaping(chaser, target Ship, space steering.Space) bool {
	if target.Warping {
		return true
	}
	radial := space.RadialSpeed(chaser.X, chaser.Y, target.X, target.Y, target.Heading, target.Speed)
	return radial >= chaser.MaxSpeed
}
