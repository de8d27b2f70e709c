package colmap

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/multierr"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/pointcloud"
)

const (
	CamerasFile  = "cameras.txt"
	ImagesFile   = "images.txt"
	Points3DFile = "points3D.txt"
)

// IntegrityError means an image points at a camera id that has no intrinsics.
type IntegrityError struct {
	ImageID   int
	ImageName string
	CameraID  int
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("image %d (%s) references camera %d which is not in %s", e.ImageID, e.ImageName, e.CameraID, CamerasFile)
}

// Reconstruction is a parsed sparse model. It is built once and only read afterwards.
type Reconstruction struct {
	Cameras map[int]CameraIntrinsics
	Images  map[int]ImageExtrinsics
	Points  map[int64]Point3D

	CameraStats ParseStats
	ImageStats  ParseStats
	PointStats  ParseStats

	byName map[string]int
}

// NewReconstruction indexes images by name. points may be nil.
func NewReconstruction(cameras map[int]CameraIntrinsics, images map[int]ImageExtrinsics, points map[int64]Point3D) *Reconstruction {
	if points == nil {
		points = map[int64]Point3D{}
	}
	r := &Reconstruction{
		Cameras: cameras,
		Images:  images,
		Points:  points,
		byName:  make(map[string]int, len(images)),
	}
	for id, img := range images {
		// keep the lowest id when names collide so lookups are stable
		if prev, ok := r.byName[img.Name]; ok && prev < id {
			continue
		}
		r.byName[img.Name] = id
	}
	return r
}

// LoadDir reads cameras.txt, images.txt and, when present, points3D.txt from dir.
func LoadDir(dir string, logger logging.Logger) (*Reconstruction, error) {
	start := time.Now()

	var cameras map[int]CameraIntrinsics
	var cameraStats ParseStats
	err := parseFile(filepath.Join(dir, CamerasFile), func(r io.Reader) error {
		var err error
		cameras, cameraStats, err = ParseCameras(r)
		return err
	})
	if err != nil {
		return nil, err
	}

	var images map[int]ImageExtrinsics
	var imageStats ParseStats
	err = parseFile(filepath.Join(dir, ImagesFile), func(r io.Reader) error {
		var err error
		images, imageStats, err = ParseImages(r)
		return err
	})
	if err != nil {
		return nil, err
	}

	var points map[int64]Point3D
	var pointStats ParseStats
	err = parseFile(filepath.Join(dir, Points3DFile), func(r io.Reader) error {
		var err error
		points, pointStats, err = ParsePoints3D(r)
		return err
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	rec := NewReconstruction(cameras, images, points)
	rec.CameraStats = cameraStats
	rec.ImageStats = imageStats
	rec.PointStats = pointStats

	rec.logDiagnostics(logger)
	logger.Infof("loaded %s in %v: %d cameras %d images %d points",
		dir, time.Since(start), len(rec.Cameras), len(rec.Images), len(rec.Points))

	return rec, nil
}

func parseFile(fn string, parse func(io.Reader) error) error {
	f, err := os.Open(fn)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := parse(f); err != nil {
		return fmt.Errorf("cannot parse %s: %w", fn, err)
	}
	return nil
}

func (r *Reconstruction) logDiagnostics(logger logging.Logger) {
	for reason, n := range r.CameraStats.Dropped {
		logger.Warnf("dropped %d camera records: %s", n, reason)
	}
	if r.CameraStats.Skipped > 0 || r.ImageStats.Skipped > 0 || r.PointStats.Skipped > 0 {
		logger.Warnf("skipped short records - cameras: %d images: %d points: %d",
			r.CameraStats.Skipped, r.ImageStats.Skipped, r.PointStats.Skipped)
	}
	if r.ImageStats.NonUnitRotations > 0 {
		logger.Warnf("%d images have a rotation that is not a unit quaternion", r.ImageStats.NonUnitRotations)
	}
	if err := r.CheckIntegrity(); err != nil {
		logger.Warnf("%d images cannot be projected: %v", len(multierr.Errors(err)), err)
	}
}

// ImageByName finds the image whose file name is name.
func (r *Reconstruction) ImageByName(name string) (ImageExtrinsics, bool) {
	id, ok := r.byName[name]
	if !ok {
		return ImageExtrinsics{}, false
	}
	return r.Images[id], true
}

// ImageNames returns every image name, sorted.
func (r *Reconstruction) ImageNames() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CameraFor returns the intrinsics of img's camera.
func (r *Reconstruction) CameraFor(img ImageExtrinsics) (CameraIntrinsics, error) {
	return LookupCamera(r.Cameras, img)
}

// LookupCamera returns the intrinsics of img's camera or an *IntegrityError.
func LookupCamera(cameras map[int]CameraIntrinsics, img ImageExtrinsics) (CameraIntrinsics, error) {
	ci, ok := cameras[img.CameraID]
	if !ok {
		return CameraIntrinsics{}, &IntegrityError{ImageID: img.ID, ImageName: img.Name, CameraID: img.CameraID}
	}
	return ci, nil
}

// CheckIntegrity reports every image whose camera is missing.
func (r *Reconstruction) CheckIntegrity() error {
	ids := make([]int, 0, len(r.Images))
	for id := range r.Images {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var err error
	for _, id := range ids {
		_, e := r.CameraFor(r.Images[id])
		err = multierr.Append(err, e)
	}
	return err
}

// PointCloud returns the sparse points colored as COLMAP stored them.
func (r *Reconstruction) PointCloud() (pointcloud.PointCloud, error) {
	pc := pointcloud.NewBasicEmpty()
	for _, p := range r.Points {
		if err := pc.Set(p.Position, pointcloud.NewColoredData(p.Color)); err != nil {
			return nil, err
		}
	}
	return pc, nil
}
