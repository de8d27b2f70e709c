package surface

import (
	"fmt"
	"sync"

	"github.com/golang/geo/r3"

	"go.viam.com/rdk/logging"

	"github.com/erh/sfmproject/frame"
)

// DefaultTargetSize is what the largest extent of a surface is scaled to.
const DefaultTargetSize = 60.0

// Axis identifies a coordinate axis.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// SurfaceTransform maps reconstruction coordinates into the normalized surface frame.
type SurfaceTransform struct {
	Scale float64
	// Centroid is the bounding box center in the surface's authored frame,
	// before any flip.
	Centroid r3.Vector
	// FlipAxis is always AxisZ, see frame.ToRenderFrame.
	FlipAxis Axis
}

// ComputeTransform scales the largest extent of b to targetSize. A flat or
// point-like box keeps scale 1.
func ComputeTransform(b Box, targetSize float64) (SurfaceTransform, error) {
	if b.Empty() {
		return SurfaceTransform{}, fmt.Errorf("surface has no triangles")
	}
	if targetSize <= 0 {
		return SurfaceTransform{}, fmt.Errorf("target size must be > 0, got %v", targetSize)
	}

	scale := 1.0
	if maxDim := b.MaxExtent(); maxDim > 0 {
		scale = targetSize / maxDim
	}

	return SurfaceTransform{Scale: scale, Centroid: b.Center(), FlipAxis: AxisZ}, nil
}

// ApplyToVertex moves an authored vertex into the normalized frame.
func (st SurfaceTransform) ApplyToVertex(v r3.Vector) r3.Vector {
	return frame.ToRenderFrame(v.Sub(st.Centroid)).Mul(st.Scale)
}

// ApplyToPoint moves a point that is already in the renderer's frame into the
// normalized frame. The centroid is flipped here, and only here, so that it
// is subtracted in the same signed frame as p.
func (st SurfaceTransform) ApplyToPoint(p r3.Vector) r3.Vector {
	return p.Sub(frame.ToRenderFrame(st.Centroid)).Mul(st.Scale)
}

// ApplyToRay moves a renderer-frame ray into the normalized frame. Uniform
// scale does not change direction, so the direction is only re-normalized.
func (st SurfaceTransform) ApplyToRay(r frame.Ray) frame.Ray {
	return frame.Ray{
		Origin:    st.ApplyToPoint(r.Origin),
		Direction: r.Direction.Normalize(),
	}
}

// Asset is a loaded surface and its normalization state. The asset owns the
// geometry, everyone else gets the read-only Geometry view.
type Asset struct {
	mu         sync.Mutex
	root       *Node
	normalized bool
	transform  SurfaceTransform
}

// NewAsset wraps root. The asset takes ownership of root.
func NewAsset(root *Node) *Asset {
	return &Asset{root: root}
}

// Geometry is the queryable view of the surface.
func (a *Asset) Geometry() Geometry {
	return a.root
}

// Normalized reports whether Normalize has run.
func (a *Asset) Normalized() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.normalized
}

// Transform returns the recorded transform, ok is false before Normalize.
func (a *Asset) Transform() (SurfaceTransform, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.transform, a.normalized
}

// Normalize centers the surface at the origin, flips its third axis and
// scales its largest extent to targetSize. It runs once per asset; later
// calls return the first transform and leave the geometry alone. A nil
// logger logs under "surface".
func (a *Asset) Normalize(targetSize float64, logger logging.Logger) (SurfaceTransform, error) {
	if logger == nil {
		logger = logging.NewLogger("surface")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.normalized {
		logger.Debugf("surface already normalized, scale: %v", a.transform.Scale)
		return a.transform, nil
	}

	before := Bounds(a.root)
	st, err := ComputeTransform(before, targetSize)
	if err != nil {
		return SurfaceTransform{}, err
	}

	a.root.mapVertices(st.ApplyToVertex)
	a.transform = st
	a.normalized = true

	after := Bounds(a.root)
	logger.Infof("normalized surface - size: %v center: %v scale: %v -> size: %v center: %v",
		before.Size(), before.Center(), st.Scale, after.Size(), after.Center())

	return st, nil
}
