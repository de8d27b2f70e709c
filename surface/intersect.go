package surface

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"

	"go.viam.com/rdk/spatialmath"

	"github.com/erh/sfmproject/frame"
)

// DefaultMaxDistance is how far a ray travels before giving up, roughly ten
// times DefaultTargetSize with headroom for cameras placed outside the surface.
const DefaultMaxDistance = 1000.0

// parallelEpsilon rejects rays that graze a triangle's plane.
const parallelEpsilon = 1e-12

// edgeEpsilon lets a ray through a shared edge hit both triangles.
const edgeEpsilon = 1e-9

// Hit is where a ray met a triangle.
type Hit struct {
	Point    r3.Vector
	Distance float64
	Normal   r3.Vector
	Triangle *spatialmath.Triangle
}

// IntersectTriangle returns the distance along r to t. Both faces count.
func IntersectTriangle(r frame.Ray, t *spatialmath.Triangle) (float64, bool) {
	pts := t.Points()
	e1 := pts[1].Sub(pts[0])
	e2 := pts[2].Sub(pts[0])

	p := r.Direction.Cross(e2)
	det := e1.Dot(p)
	if math.Abs(det) < parallelEpsilon {
		return 0, false
	}
	inv := 1 / det

	s := r.Origin.Sub(pts[0])
	u := s.Dot(p) * inv
	if u < -edgeEpsilon || u > 1+edgeEpsilon {
		return 0, false
	}

	q := s.Cross(e1)
	v := r.Direction.Dot(q) * inv
	if v < -edgeEpsilon || u+v > 1+edgeEpsilon {
		return 0, false
	}

	d := e2.Dot(q) * inv
	if d <= 0 {
		return 0, false
	}
	return d, true
}

// IntersectAll returns every hit within maxDistance, nearest first.
func IntersectAll(r frame.Ray, g Geometry, maxDistance float64) []Hit {
	if g == nil {
		return nil
	}

	hits := []Hit{}
	g.Walk(func(t *spatialmath.Triangle) bool {
		d, ok := IntersectTriangle(r, t)
		if !ok || d > maxDistance {
			return true
		}
		hits = append(hits, Hit{
			Point:    r.At(d),
			Distance: d,
			Normal:   t.Normal(),
			Triangle: t,
		})
		return true
	})

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	return hits
}

// Intersect returns the nearest hit within maxDistance. ok is false when
// nothing is hit; no point is made up in that case.
func Intersect(r frame.Ray, g Geometry, maxDistance float64) (Hit, bool) {
	if g == nil {
		return Hit{}, false
	}

	best := Hit{Distance: math.Inf(1)}
	found := false
	g.Walk(func(t *spatialmath.Triangle) bool {
		d, ok := IntersectTriangle(r, t)
		if !ok || d > maxDistance || d >= best.Distance {
			return true
		}
		best = Hit{Distance: d, Triangle: t}
		found = true
		return true
	})
	if !found {
		return Hit{}, false
	}

	best.Point = r.At(best.Distance)
	best.Normal = best.Triangle.Normal()
	return best, true
}
