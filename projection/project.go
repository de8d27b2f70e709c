package projection

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"

	"github.com/erh/sfmproject/colmap"
	"github.com/erh/sfmproject/frame"
	"github.com/erh/sfmproject/surface"
)

var (
	// ErrNotLoaded means cameras, images or the surface are not available yet.
	ErrNotLoaded = errors.New("reconstruction or surface not loaded")
	// ErrUnknownImage means no image has the requested name.
	ErrUnknownImage = errors.New("unknown image")
)

// ProjectionResult is where a clicked pixel landed on the surface, in the
// normalized surface frame.
type ProjectionResult struct {
	Position  r3.Vector
	Normal    r3.Vector
	Pixel     [2]float64
	ImageName string
	Distance  float64
}

func (pr ProjectionResult) String() string {
	return fmt.Sprintf("%s (%0.1f, %0.1f) -> (%0.3f, %0.3f, %0.3f) surface hit %0.2f units away",
		pr.ImageName, pr.Pixel[0], pr.Pixel[1], pr.Position.X, pr.Position.Y, pr.Position.Z, pr.Distance)
}

// SurfaceRay is the ray through (u, v) expressed in the normalized surface frame.
func SurfaceRay(u, v float64, intr colmap.CameraIntrinsics, img colmap.ImageExtrinsics, xf surface.SurfaceTransform) frame.Ray {
	return xf.ApplyToRay(PixelToWorldRay(u, v, intr, img))
}

// ProjectPixelToSurface casts the ray through (u, v) at geom. A miss returns
// nil with no error. maxDistance <= 0 means surface.DefaultMaxDistance.
func ProjectPixelToSurface(
	u, v float64,
	intr colmap.CameraIntrinsics,
	img colmap.ImageExtrinsics,
	xf surface.SurfaceTransform,
	geom surface.Geometry,
	maxDistance float64,
) (*ProjectionResult, error) {
	if geom == nil {
		return nil, ErrNotLoaded
	}
	if intr.ID != img.CameraID {
		return nil, &colmap.IntegrityError{ImageID: img.ID, ImageName: img.Name, CameraID: img.CameraID}
	}
	if maxDistance <= 0 {
		maxDistance = surface.DefaultMaxDistance
	}

	ray := SurfaceRay(u, v, intr, img, xf)
	hit, ok := surface.Intersect(ray, geom, maxDistance)
	if !ok {
		return nil, nil
	}

	return &ProjectionResult{
		Position:  hit.Point,
		Normal:    hit.Normal,
		Pixel:     [2]float64{u, v},
		ImageName: img.Name,
		Distance:  ray.Origin.Distance(hit.Point),
	}, nil
}

// ReprojectionStats summarizes how well an image's observations agree with
// the sparse points they were triangulated into.
type ReprojectionStats struct {
	Observations int
	Behind       int
	Mean         float64
	Max          float64
}

// Reprojection projects every triangulated observation of img back into the
// image and measures the pixel error. Distortion is ignored, so errors on
// SIMPLE_RADIAL cameras include the lens term.
func Reprojection(intr colmap.CameraIntrinsics, img colmap.ImageExtrinsics, points map[int64]colmap.Point3D) ReprojectionStats {
	stats := ReprojectionStats{}
	total := 0.0
	for _, o := range img.Points2D {
		if o.Point3DID < 0 {
			continue
		}
		p, ok := points[o.Point3DID]
		if !ok {
			continue
		}
		u, v, ok := ProjectToPixel(p.Position, intr, img)
		if !ok {
			stats.Behind++
			continue
		}
		e := math.Hypot(u-o.X, v-o.Y)
		total += e
		stats.Max = math.Max(stats.Max, e)
		stats.Observations++
	}
	if stats.Observations > 0 {
		stats.Mean = total / float64(stats.Observations)
	}
	return stats
}
