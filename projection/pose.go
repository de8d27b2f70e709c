// Package projection turns a clicked pixel into a ray and casts it at the surface.
package projection

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"github.com/erh/sfmproject/colmap"
	"github.com/erh/sfmproject/frame"
)

// RotationMatrix converts q = (w, x, y, z) into a 3x3 rotation matrix.
// q is used as stored, a non-unit q gives a scaled, non-orthogonal matrix.
func RotationMatrix(q quat.Number) *mat.Dense {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z

	return mat.NewDense(3, 3, []float64{
		1 - 2*(yy+zz), 2 * (xy - wz), 2 * (xz + wy),
		2 * (xy + wz), 1 - 2*(xx+zz), 2 * (yz - wx),
		2 * (xz - wy), 2 * (yz + wx), 1 - 2*(xx+yy),
	})
}

func mulVec(m mat.Matrix, v r3.Vector) r3.Vector {
	var out mat.VecDense
	out.MulVec(m, mat.NewVecDense(3, []float64{v.X, v.Y, v.Z}))
	return r3.Vector{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}
}

// WorldToCamera applies the stored transform p_cam = R*p + t.
func WorldToCamera(img colmap.ImageExtrinsics, p r3.Vector) r3.Vector {
	return mulVec(RotationMatrix(img.Rotation), p).Add(img.Translation)
}

// CameraToWorldRotation applies R^T, the inverse of a pure rotation.
func CameraToWorldRotation(img colmap.ImageExtrinsics, v r3.Vector) r3.Vector {
	return mulVec(RotationMatrix(img.Rotation).T(), v)
}

// ResolveCameraCenter returns the camera position in the reconstruction frame, C = -R^T * t.
func ResolveCameraCenter(img colmap.ImageExtrinsics) r3.Vector {
	return CameraToWorldRotation(img, img.Translation).Mul(-1)
}

// CameraCenterInRenderFrame is ResolveCameraCenter moved into the renderer's frame.
func CameraCenterInRenderFrame(img colmap.ImageExtrinsics) r3.Vector {
	return frame.ToRenderFrame(ResolveCameraCenter(img))
}

// ViewDirection is the camera's optical axis in the reconstruction frame.
func ViewDirection(img colmap.ImageExtrinsics) r3.Vector {
	return CameraToWorldRotation(img, r3.Vector{Z: 1}).Normalize()
}
