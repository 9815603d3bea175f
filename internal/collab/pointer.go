package collab

import (
	"math"
	"math/rand"

	"github.com/aquilax/go-perlin"
)

// Activations dispatch a short cursor journey instead of a teleporting
// click: a curved path with low-frequency drift reads as real input to
// pages that gate interactions on pointer behavior.

type point struct {
	X, Y float64
}

type pathGenerator struct {
	rng    *rand.Rand
	noiseX *perlin.Perlin
	noiseY *perlin.Perlin
}

func newPathGenerator(seed int64) *pathGenerator {
	return &pathGenerator{
		rng:    rand.New(rand.NewSource(seed)),
		noiseX: perlin.NewPerlin(2, 2, 3, seed),
		noiseY: perlin.NewPerlin(2, 2, 3, seed+1),
	}
}

// path returns the cursor positions from start to end, inclusive of both.
// The route is a quadratic curve with a randomized control point, eased so
// the cursor accelerates out of the start and brakes into the target, with
// perlin drift layered on the interior points.
func (g *pathGenerator) path(start, end point) []point {
	dist := math.Hypot(end.X-start.X, end.Y-start.Y)
	steps := clampInt(int(dist/12), 8, 48)

	// Bow the curve sideways by a fraction of the travel distance.
	bow := (g.rng.Float64() - 0.5) * dist * 0.3
	mid := point{(start.X + end.X) / 2, (start.Y + end.Y) / 2}
	dx, dy := end.X-start.X, end.Y-start.Y
	ctrl := mid
	if dist > 0 {
		ctrl = point{mid.X - dy/dist*bow, mid.Y + dx/dist*bow}
	}

	drift := math.Min(dist*0.02, 4)
	pts := make([]point, 0, steps)
	for i := 0; i < steps; i++ {
		t := float64(i) / float64(steps-1)
		e := easeInOut(t)

		u := 1 - e
		p := point{
			X: u*u*start.X + 2*u*e*ctrl.X + e*e*end.X,
			Y: u*u*start.Y + 2*u*e*ctrl.Y + e*e*end.Y,
		}
		// Endpoints stay exact so the click lands where it was aimed.
		if i > 0 && i < steps-1 {
			p.X += g.noiseX.Noise1D(t*0.8) * drift
			p.Y += g.noiseY.Noise1D(t*0.8) * drift
		}
		pts = append(pts, p)
	}
	return pts
}

// easeInOut is a smoothstep: zero velocity at both ends.
func easeInOut(t float64) float64 {
	return t * t * (3 - 2*t)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
