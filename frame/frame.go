// Package frame holds the coordinate convention shared by the reconstruction
// and the renderer.
//
// COLMAP is X-right, Y-down, Z-forward. The renderer is X-right, Y-up,
// Z-backward. The two only disagree on the sign of the third axis, so every
// quantity crossing from one frame into the other goes through ToRenderFrame
// exactly once.
package frame

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// ToRenderFrame negates the third axis. It is its own inverse.
func ToRenderFrame(v r3.Vector) r3.Vector {
	return r3.Vector{X: v.X, Y: v.Y, Z: -v.Z}
}

// Ray is an origin and a unit direction.
type Ray struct {
	Origin    r3.Vector
	Direction r3.Vector
}

// NewRay normalizes dir. A zero direction stays zero.
func NewRay(origin, dir r3.Vector) Ray {
	return Ray{Origin: origin, Direction: dir.Normalize()}
}

// At returns the point t units along the ray.
func (r Ray) At(t float64) r3.Vector {
	return r.Origin.Add(r.Direction.Mul(t))
}

func (r Ray) String() string {
	return fmt.Sprintf("ray{origin: (%0.3f, %0.3f, %0.3f) dir: (%0.3f, %0.3f, %0.3f)}",
		r.Origin.X, r.Origin.Y, r.Origin.Z,
		r.Direction.X, r.Direction.Y, r.Direction.Z)
}

// ClosestPoint returns the point on the ray closest to p and its distance to p.
// Points behind the origin project onto the infinite line.
func (r Ray) ClosestPoint(p r3.Vector) (r3.Vector, float64) {
	along := p.Sub(r.Origin).Dot(r.Direction)
	closest := r.At(along)
	return closest, closest.Distance(p)
}
