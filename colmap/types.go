// Package colmap reads the text export of a COLMAP sparse reconstruction.
package colmap

import (
	"image/color"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/rdk/rimage/transform"
)

// CameraModel is the lens model tag of a cameras.txt record.
type CameraModel string

const (
	// SimpleRadial carries f, cx, cy, k.
	SimpleRadial CameraModel = "SIMPLE_RADIAL"
	// Pinhole carries fx, fy, cx, cy.
	Pinhole CameraModel = "PINHOLE"
)

// paramCount is the number of PARAMS[] each supported model needs.
var paramCount = map[CameraModel]int{
	SimpleRadial: 4,
	Pinhole:      4,
}

// CameraIntrinsics is one cameras.txt record.
type CameraIntrinsics struct {
	ID     int
	Model  CameraModel
	Width  int
	Height int

	// F is the focal length in pixels. Pinhole fx and fy are averaged.
	F  float64
	Cx float64
	Cy float64

	// K is the single radial coefficient, nil when the model has none.
	// It is carried but never applied to unprojection.
	K *float64
}

// PinholeIntrinsics returns the intrinsics as an rdk pinhole model with the
// averaged focal length on both axes.
func (ci CameraIntrinsics) PinholeIntrinsics() *transform.PinholeCameraIntrinsics {
	return &transform.PinholeCameraIntrinsics{
		Width:  ci.Width,
		Height: ci.Height,
		Fx:     ci.F,
		Fy:     ci.F,
		Ppx:    ci.Cx,
		Ppy:    ci.Cy,
	}
}

// Observation is one POINTS2D[] entry.
type Observation struct {
	X, Y float64
	// Point3DID is -1 when the feature was never triangulated.
	Point3DID int64
}

// ImageExtrinsics is one images.txt record.
type ImageExtrinsics struct {
	ID   int
	Name string

	// Rotation and Translation map world to camera: p_cam = R*p_world + t.
	Rotation    quat.Number
	Translation r3.Vector

	CameraID int
	Points2D []Observation
}

// RotationNormError is how far the stored quaternion is from unit length.
func (ie ImageExtrinsics) RotationNormError() float64 {
	return math.Abs(quat.Abs(ie.Rotation) - 1)
}

// TrackElement is one TRACK[] entry of points3D.txt.
type TrackElement struct {
	ImageID    int
	Point2DIdx int
}

// Point3D is one points3D.txt record.
type Point3D struct {
	ID       int64
	Position r3.Vector
	Color    color.NRGBA
	Error    float64
	Track    []TrackElement
}
