package projection

import (
	"github.com/golang/geo/r3"

	"github.com/erh/sfmproject/colmap"
	"github.com/erh/sfmproject/frame"
)

// UnprojectPixel returns the camera-space direction through pixel (u, v).
// Distortion is not applied and (u, v) is not bounds checked.
func UnprojectPixel(u, v float64, intr colmap.CameraIntrinsics) r3.Vector {
	x, y, z := intr.PinholeIntrinsics().PixelToPoint(u, v, 1)
	return r3.Vector{X: x, Y: y, Z: z}.Normalize()
}

// RayToWorld rotates a camera-space direction into the reconstruction frame
// and then into the renderer's frame.
func RayToWorld(rayCam r3.Vector, img colmap.ImageExtrinsics) r3.Vector {
	world := CameraToWorldRotation(img, rayCam).Normalize()
	return frame.ToRenderFrame(world).Normalize()
}

// PixelToWorldRay is the ray through (u, v) in the renderer's frame, before
// surface normalization.
func PixelToWorldRay(u, v float64, intr colmap.CameraIntrinsics, img colmap.ImageExtrinsics) frame.Ray {
	return frame.Ray{
		Origin:    CameraCenterInRenderFrame(img),
		Direction: RayToWorld(UnprojectPixel(u, v, intr), img),
	}
}

// ProjectToPixel is the inverse of unprojection for a reconstruction-frame
// point. ok is false when the point is behind the camera.
func ProjectToPixel(p r3.Vector, intr colmap.CameraIntrinsics, img colmap.ImageExtrinsics) (u, v float64, ok bool) {
	c := WorldToCamera(img, p)
	if c.Z <= 0 {
		return 0, 0, false
	}
	// PinholeCameraIntrinsics.PointToPixel rounds, reprojection error needs sub-pixel
	return intr.F*c.X/c.Z + intr.Cx, intr.F*c.Y/c.Z + intr.Cy, true
}
