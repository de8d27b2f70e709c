package picker

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	stl "neilpa.me/go-stl"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/services/generic"
	"go.viam.com/test"

	"github.com/erh/sfmproject"
	"github.com/erh/sfmproject/colmap"
	"github.com/erh/sfmproject/projection"
)

const camerasTxt = `# Camera list with one line of data per camera:
1 PINHOLE 640 480 1000 1000 320 240
`

// front.jpg sits 10 units in front of the plane, orphan.jpg has no camera.
const imagesTxt = `# Image list with two lines of data per image:
1 1 0 0 0 0 0 10 1 front.jpg

2 1 0 0 0 0 0 10 7 orphan.jpg

`

// plane is a 2x2 square at z=0 as a binary STL.
func plane(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc, err := stl.NewBinaryEncoder(&buf, "picker plane", 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, enc.WriteTriangle([3]float32{-1, -1, 0}, [3]float32{1, -1, 0}, [3]float32{1, 1, 0}), test.ShouldBeNil)
	test.That(t, enc.WriteTriangle([3]float32{-1, -1, 0}, [3]float32{1, 1, 0}, [3]float32{-1, 1, 0}), test.ShouldBeNil)
	test.That(t, enc.Close(), test.ShouldBeNil)
	return buf.Bytes()
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	colmapDir := filepath.Join(dir, "export")
	test.That(t, os.Mkdir(colmapDir, 0o755), test.ShouldBeNil)
	test.That(t, os.WriteFile(filepath.Join(colmapDir, colmap.CamerasFile), []byte(camerasTxt), 0o644), test.ShouldBeNil)
	test.That(t, os.WriteFile(filepath.Join(colmapDir, colmap.ImagesFile), []byte(imagesTxt), 0o644), test.ShouldBeNil)

	modelPath := filepath.Join(dir, "plane.stl")
	test.That(t, os.WriteFile(modelPath, plane(t), 0o644), test.ShouldBeNil)

	return &Config{ColmapDir: colmapDir, ModelPath: modelPath}
}

func testPicker(t *testing.T, cfg *Config) *Picker {
	t.Helper()
	logger := logging.NewTestLogger(t)

	res, err := newPicker(context.Background(), nil, resource.Config{
		Name:                "picker",
		API:                 generic.API,
		Model:               PickerModel,
		ConvertedAttributes: cfg,
	}, logger)
	test.That(t, err, test.ShouldBeNil)
	return res.(*Picker)
}

func TestValidate(t *testing.T) {
	_, _, err := (&Config{ModelPath: "m.stl"}).Validate("services.0")
	test.That(t, err, test.ShouldNotBeNil)

	_, _, err = (&Config{ColmapDir: "export"}).Validate("services.0")
	test.That(t, err, test.ShouldNotBeNil)

	_, _, err = (&Config{ColmapDir: "export", ModelPath: "m.stl", TargetSize: -1}).Validate("services.0")
	test.That(t, err, test.ShouldNotBeNil)

	deps, optional, err := (&Config{ColmapDir: "export", ModelPath: "m.stl"}).Validate("services.0")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, deps, test.ShouldBeNil)
	test.That(t, optional, test.ShouldBeNil)
}

func TestProject(t *testing.T) {
	ctx := context.Background()
	p := testPicker(t, testConfig(t))
	test.That(t, p.Name().ShortName(), test.ShouldEqual, "picker")

	resp, err := p.DoCommand(ctx, sfmproject.ProjectCommand("front.jpg", 320, 240))
	test.That(t, err, test.ShouldBeNil)

	res, err := sfmproject.DecodeProjection(resp)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res, test.ShouldNotBeNil)
	test.That(t, res.Position.Norm(), test.ShouldAlmostEqual, 0.0, 1e-6)
	// 2 units of surface scaled to 60, so the 10 unit standoff is 300
	test.That(t, res.Distance, test.ShouldAlmostEqual, 300.0, 1e-6)

	// remote callers go through the same DoCommand
	res, err = sfmproject.RemoteProject(ctx, p, "front.jpg", 0, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res, test.ShouldBeNil)

	_, err = p.DoCommand(ctx, sfmproject.ProjectCommand("orphan.jpg", 320, 240))
	var ie *colmap.IntegrityError
	test.That(t, errors.As(err, &ie), test.ShouldBeTrue)
	test.That(t, ie.CameraID, test.ShouldEqual, 7)

	_, err = p.DoCommand(ctx, sfmproject.ProjectCommand("nope.jpg", 320, 240))
	test.That(t, errors.Is(err, projection.ErrUnknownImage), test.ShouldBeTrue)

	_, err = p.DoCommand(ctx, map[string]interface{}{"project": true, "image": "front.jpg"})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = p.DoCommand(ctx, map[string]interface{}{"dance": true})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestCameraCenterAndRay(t *testing.T) {
	ctx := context.Background()
	p := testPicker(t, testConfig(t))

	resp, err := p.DoCommand(ctx, map[string]interface{}{"camera_center": true, "image": "front.jpg"})
	test.That(t, err, test.ShouldBeNil)
	c, err := sfmproject.VectorFromMap(resp["center"])
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.Sub(r3.Vector{Z: 300}).Norm(), test.ShouldAlmostEqual, 0.0, 1e-6)

	resp, err = p.DoCommand(ctx, map[string]interface{}{"ray": true, "image": "front.jpg", "x": 320, "y": 240})
	test.That(t, err, test.ShouldBeNil)
	d, err := sfmproject.VectorFromMap(resp["direction"])
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d.Sub(r3.Vector{Z: -1}).Norm(), test.ShouldAlmostEqual, 0.0, 1e-9)

	_, err = p.DoCommand(ctx, map[string]interface{}{"camera_center": true})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestStats(t *testing.T) {
	p := testPicker(t, testConfig(t))

	resp, err := p.DoCommand(context.Background(), map[string]interface{}{"stats": true})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp["cameras"], test.ShouldEqual, 1)
	test.That(t, resp["images"], test.ShouldEqual, 2)
	test.That(t, resp["points"], test.ShouldEqual, 0)
	test.That(t, resp["surface"], test.ShouldEqual, true)
	test.That(t, resp["scale"], test.ShouldAlmostEqual, 30.0)
	test.That(t, len(resp["integrity_errors"].([]interface{})), test.ShouldEqual, 1)
}

func TestImages(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	p := testPicker(t, cfg)

	resp, err := p.DoCommand(ctx, map[string]interface{}{"images": true})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp["total"], test.ShouldEqual, 2)
	test.That(t, resp["images"], test.ShouldResemble, []interface{}{"front.jpg", "orphan.jpg"})

	cfg.ImagesDir = t.TempDir()
	for _, n := range []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg"} {
		test.That(t, os.WriteFile(filepath.Join(cfg.ImagesDir, n), nil, 0o644), test.ShouldBeNil)
	}
	resp, err = p.DoCommand(ctx, map[string]interface{}{"images": true, "limit": 2})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp["count"], test.ShouldEqual, 2)
	test.That(t, resp["total"], test.ShouldEqual, 4)
	test.That(t, resp["images"], test.ShouldResemble, []interface{}{"a.jpg", "c.jpg"})

	resp, err = p.DoCommand(ctx, map[string]interface{}{"health": true})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp["colmap_exists"], test.ShouldEqual, true)
	test.That(t, resp["model_exists"], test.ShouldEqual, true)
	test.That(t, resp["images_exists"], test.ShouldEqual, true)
}

func TestNewPickerErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)

	cfg := testConfig(t)
	cfg.ModelPath = filepath.Join(t.TempDir(), "missing.stl")
	_, err := LoadSession(cfg, logger)
	test.That(t, err, test.ShouldNotBeNil)

	cfg = testConfig(t)
	cfg.ColmapDir = t.TempDir()
	_, err = LoadSession(cfg, logger)
	test.That(t, err, test.ShouldNotBeNil)
}
