package pursuit

import (
	"strings"
	"testing"

	"github.com/pthm-cable/drift/steering"
)

var space = steering.Space{W: 20000, H: 20000}

func baseContext() Context {
	return Context{
		ChaseStart:       100,
		Now:              110,
		MaxChaseTime:     75,
		CloseRange:       1000,
		InterceptLeadCap: 6,
		MaxHomeDistance:  15000,
		Space:            space,
	}
}

func TestEvaluateRules(t *testing.T) {
	chaser := Ship{X: 1000, Y: 1000, MaxSpeed: 200}

	tests := []struct {
		name   string
		chaser Ship
		target Ship
		mutate func(*Context)
		want   Verdict
	}{
		{
			name:   "continue when nothing applies",
			chaser: chaser,
			target: Ship{X: 3000, Y: 1000, Heading: 0, Speed: 100},
			want:   Continue,
		},
		{
			name:   "tackle inside close range",
			chaser: Ship{X: 1000, Y: 1000, MaxSpeed: 200, TackleReady: true},
			target: Ship{X: 1800, Y: 1000},
			want:   Tackle,
		},
		{
			name:   "no tackle without a ready module",
			chaser: chaser,
			target: Ship{X: 1800, Y: 1000},
			want:   Continue,
		},
		{
			name:   "intercept a faster runner",
			chaser: Ship{X: 1000, Y: 1000, MaxSpeed: 200, WarpReady: true},
			target: Ship{X: 3000, Y: 1000, Heading: 0, Speed: 300},
			want:   Intercept,
		},
		{
			name:   "intercept a warping target",
			chaser: Ship{X: 1000, Y: 1000, MaxSpeed: 200, WarpReady: true},
			target: Ship{X: 3000, Y: 1000, Warping: true},
			want:   Intercept,
		},
		{
			name:   "cannot intercept without warp",
			chaser: chaser,
			target: Ship{X: 3000, Y: 1000, Heading: 0, Speed: 300},
			want:   Continue,
		},
		{
			name:   "chaser beyond leash",
			chaser: Ship{X: 9000, Y: 1000, MaxSpeed: 200, TackleReady: true},
			target: Ship{X: 9500, Y: 1000},
			mutate: func(c *Context) {
				c.HasAnchor = true
				c.AnchorX, c.AnchorY = 1000, 1000
				c.MaxHomeDistance = 5000
			},
			want: Disengage,
		},
		{
			name:   "target beyond leash",
			chaser: Ship{X: 4000, Y: 1000, MaxSpeed: 200},
			target: Ship{X: 7000, Y: 1000},
			mutate: func(c *Context) {
				c.HasAnchor = true
				c.AnchorX, c.AnchorY = 1000, 1000
				c.MaxHomeDistance = 5000
			},
			want: Disengage,
		},
		{
			name:   "target past leash beats tackle range",
			chaser: Ship{X: 5500, Y: 1000, MaxSpeed: 200, TackleReady: true},
			target: Ship{X: 6500, Y: 1000},
			mutate: func(c *Context) {
				c.HasAnchor = true
				c.AnchorX, c.AnchorY = 1000, 1000
				c.MaxHomeDistance = 5000
			},
			want: Disengage,
		},
		{
			name:   "leash ignored without anchor",
			chaser: Ship{X: 9000, Y: 1000, MaxSpeed: 200},
			target: Ship{X: 12000, Y: 1000},
			mutate: func(c *Context) { c.MaxHomeDistance = 10 },
			want:   Continue,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := baseContext()
			if tt.mutate != nil {
				tt.mutate(&ctx)
			}
			got := Evaluate(tt.chaser, tt.target, ctx)
			if got.Verdict != tt.want {
				t.Errorf("Verdict = %s (%s), want %s", got.Verdict, got.Reason, tt.want)
			}
			if got.Reason == "" {
				t.Error("expected a reason")
			}
		})
	}
}

func TestElapsedTimeDominates(t *testing.T) {
	// Everything else says tackle or intercept; the budget still wins.
	chaser := Ship{X: 1000, Y: 1000, MaxSpeed: 200, TackleReady: true, WarpReady: true}
	target := Ship{X: 1100, Y: 1000, Warping: true}
	ctx := baseContext()
	ctx.ChaseStart = 20
	ctx.Now = 100 // 80s elapsed against a 75s budget

	if got := Evaluate(chaser, target, ctx); got.Verdict != Disengage {
		t.Errorf("Verdict = %s, want disengage", got.Verdict)
	}

	// Exactly at the budget is still allowed.
	ctx.Now = 95
	if got := Evaluate(chaser, target, ctx); got.Verdict == Disengage {
		t.Error("elapsed == budget should not disengage")
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	chaser := Ship{X: 500, Y: 500, Heading: 1, Speed: 150, MaxSpeed: 200, WarpReady: true}
	target := Ship{X: 19800, Y: 600, Heading: 3, Speed: 320}
	ctx := baseContext()
	ctx.HasAnchor = true
	ctx.AnchorX, ctx.AnchorY = 400, 400

	first := Evaluate(chaser, target, ctx)
	second := Evaluate(chaser, target, ctx)
	if first != second {
		t.Errorf("results differ: %+v vs %+v", first, second)
	}
}

func TestInterceptPointLeadsTarget(t *testing.T) {
	chaser := Ship{X: 1000, Y: 1000, MaxSpeed: 200, WarpReady: true}
	target := Ship{X: 2000, Y: 1000, Heading: 0, Speed: 400}
	ctx := baseContext()

	got := Evaluate(chaser, target, ctx)
	if got.Verdict != Intercept {
		t.Fatalf("Verdict = %s, want intercept", got.Verdict)
	}
	// Lead is 1000/200 = 5s, so the point sits 2000 ahead of the target.
	if got.InterceptX < 3990 || got.InterceptX > 4010 {
		t.Errorf("InterceptX = %v, want ~4000", got.InterceptX)
	}

	// Far targets clamp the lead.
	target.X = 6000
	got = Evaluate(chaser, target, ctx)
	want := float32(6000 + 400*6)
	if got.InterceptX < want-10 || got.InterceptX > want+10 {
		t.Errorf("capped InterceptX = %v, want ~%v", got.InterceptX, want)
	}
}

func TestEscapingAcrossSeam(t *testing.T) {
	// Target sits just across the wrap, running further away from the chaser.
	chaser := Ship{X: 19900, Y: 100, MaxSpeed: 200}
	target := Ship{X: 300, Y: 100, Heading: 0, Speed: 250}
	if !Escaping(chaser, target, space) {
		t.Error("expected escape across the seam")
	}
}

func TestLeashChecksTargetWhenChaserInside(t *testing.T) {
	ctx := baseContext()
	ctx.HasAnchor = true
	ctx.AnchorX, ctx.AnchorY = 1000, 1000
	ctx.MaxHomeDistance = 5000

	chaser := Ship{X: 5900, Y: 1000, MaxSpeed: 200}
	inside := Evaluate(chaser, Ship{X: 5950, Y: 1000}, ctx)
	if inside.Verdict != Continue {
		t.Fatalf("both inside leash = %s (%s), want continue", inside.Verdict, inside.Reason)
	}

	outside := Evaluate(chaser, Ship{X: 6100, Y: 1000}, ctx)
	if outside.Verdict != Disengage {
		t.Fatalf("target outside leash = %s (%s), want disengage", outside.Verdict, outside.Reason)
	}
	if !strings.HasPrefix(outside.Reason, "target ") {
		t.Errorf("reason = %q, want the target leash rule", outside.Reason)
	}
}
