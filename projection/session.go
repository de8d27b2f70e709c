package projection

import (
	"fmt"

	"github.com/golang/geo/r3"

	"github.com/erh/sfmproject/colmap"
	"github.com/erh/sfmproject/frame"
	"github.com/erh/sfmproject/surface"
)

// Session is everything a click needs, loaded once and only read afterwards.
type Session struct {
	rec         *colmap.Reconstruction
	xf          surface.SurfaceTransform
	geom        surface.Geometry
	maxDistance float64
}

// NewSession binds a reconstruction to a normalized asset. Either may be nil,
// and an asset that was never normalized is treated as not loaded; queries
// then fail with ErrNotLoaded.
func NewSession(rec *colmap.Reconstruction, asset *surface.Asset, maxDistance float64) *Session {
	if asset == nil {
		return NewSessionFromParts(rec, surface.SurfaceTransform{}, nil, maxDistance)
	}
	xf, ok := asset.Transform()
	if !ok {
		return NewSessionFromParts(rec, surface.SurfaceTransform{}, nil, maxDistance)
	}
	return NewSessionFromParts(rec, xf, asset.Geometry(), maxDistance)
}

// NewSessionFromParts is NewSession for geometry that is already in the
// normalized frame described by xf.
func NewSessionFromParts(rec *colmap.Reconstruction, xf surface.SurfaceTransform, geom surface.Geometry, maxDistance float64) *Session {
	if maxDistance <= 0 {
		maxDistance = surface.DefaultMaxDistance
	}
	return &Session{rec: rec, xf: xf, geom: geom, maxDistance: maxDistance}
}

// HasSurface reports whether Project can reach a surface.
func (s *Session) HasSurface() bool {
	return s.geom != nil
}

// Reconstruction returns the calibration data, nil if none was loaded.
func (s *Session) Reconstruction() *colmap.Reconstruction {
	return s.rec
}

// Transform is the surface transform rays go through. Without a surface it
// is the identity, so rays stay in the renderer's frame.
func (s *Session) Transform() surface.SurfaceTransform {
	if s.geom == nil {
		return surface.SurfaceTransform{Scale: 1, FlipAxis: surface.AxisZ}
	}
	return s.xf
}

// MaxDistance is how far rays travel.
func (s *Session) MaxDistance() float64 {
	return s.maxDistance
}

func (s *Session) lookup(name string) (colmap.CameraIntrinsics, colmap.ImageExtrinsics, error) {
	if s.rec == nil || s.rec.Cameras == nil || s.rec.Images == nil {
		return colmap.CameraIntrinsics{}, colmap.ImageExtrinsics{}, ErrNotLoaded
	}
	img, ok := s.rec.ImageByName(name)
	if !ok {
		return colmap.CameraIntrinsics{}, colmap.ImageExtrinsics{}, fmt.Errorf("%w: %q", ErrUnknownImage, name)
	}
	intr, err := s.rec.CameraFor(img)
	if err != nil {
		return colmap.CameraIntrinsics{}, colmap.ImageExtrinsics{}, err
	}
	return intr, img, nil
}

// CameraCenter is the named image's camera position in the normalized surface frame.
func (s *Session) CameraCenter(name string) (r3.Vector, error) {
	_, img, err := s.lookup(name)
	if err != nil {
		return r3.Vector{}, err
	}
	return s.Transform().ApplyToPoint(CameraCenterInRenderFrame(img)), nil
}

// Ray is the ray through (u, v) of the named image in the normalized surface frame.
func (s *Session) Ray(name string, u, v float64) (frame.Ray, error) {
	intr, img, err := s.lookup(name)
	if err != nil {
		return frame.Ray{}, err
	}
	return SurfaceRay(u, v, intr, img, s.Transform()), nil
}

// Project casts pixel (u, v) of the named image at the surface. A miss is (nil, nil).
func (s *Session) Project(name string, u, v float64) (*ProjectionResult, error) {
	intr, img, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	if s.geom == nil {
		return nil, ErrNotLoaded
	}
	return ProjectPixelToSurface(u, v, intr, img, s.xf, s.geom, s.maxDistance)
}
