// Package picker serves pixel to surface projection as a generic service.
package picker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/services/generic"

	"github.com/erh/sfmproject"
	"github.com/erh/sfmproject/colmap"
	"github.com/erh/sfmproject/imgutils"
	"github.com/erh/sfmproject/projection"
	"github.com/erh/sfmproject/surface"
)

var PickerModel = sfmproject.NamespaceFamily.WithModel("pixel-picker")

const defaultImageListLimit = 5

func init() {
	resource.RegisterService(
		generic.API,
		PickerModel,
		resource.Registration[resource.Resource, *Config]{
			Constructor: newPicker,
		})
}

type Config struct {
	ColmapDir      string  `json:"colmap_dir"`
	ModelPath      string  `json:"model_path"`
	ImagesDir      string  `json:"images_dir,omitempty"`
	TargetSize     float64 `json:"target_size,omitempty"`
	MaxDistance    float64 `json:"max_distance,omitempty"`
	ImageListLimit int     `json:"image_list_limit,omitempty"`
}

func (c *Config) Validate(path string) ([]string, []string, error) {
	if c.ColmapDir == "" {
		return nil, nil, resource.NewConfigValidationFieldRequiredError(path, "colmap_dir")
	}
	if c.ModelPath == "" {
		return nil, nil, resource.NewConfigValidationFieldRequiredError(path, "model_path")
	}
	if c.TargetSize < 0 {
		return nil, nil, fmt.Errorf("target_size must be > 0, got %v", c.TargetSize)
	}
	if c.MaxDistance < 0 {
		return nil, nil, fmt.Errorf("max_distance must be > 0, got %v", c.MaxDistance)
	}
	return nil, nil, nil
}

func (c *Config) targetSize() float64 {
	if c.TargetSize <= 0 {
		return surface.DefaultTargetSize
	}
	return c.TargetSize
}

func (c *Config) imageListLimit() int {
	if c.ImageListLimit <= 0 {
		return defaultImageListLimit
	}
	return c.ImageListLimit
}

func newPicker(ctx context.Context, deps resource.Dependencies, config resource.Config, logger logging.Logger) (resource.Resource, error) {
	newConf, err := resource.NativeConfig[*Config](config)
	if err != nil {
		return nil, err
	}

	session, err := LoadSession(newConf, logger)
	if err != nil {
		return nil, err
	}

	return NewPicker(config.ResourceName(), newConf, session, logger), nil
}

// LoadSession reads the reconstruction and surface cfg points at and normalizes the surface.
func LoadSession(cfg *Config, logger logging.Logger) (*projection.Session, error) {
	rec, err := colmap.LoadDir(cfg.ColmapDir, logger)
	if err != nil {
		return nil, err
	}

	asset, err := surface.LoadSTL(cfg.ModelPath)
	if err != nil {
		return nil, err
	}

	_, err = asset.Normalize(cfg.targetSize(), logger)
	if err != nil {
		return nil, fmt.Errorf("cannot normalize %s: %w", cfg.ModelPath, err)
	}

	return projection.NewSession(rec, asset, cfg.MaxDistance), nil
}

// NewPicker serves an already loaded session.
func NewPicker(name resource.Name, cfg *Config, session *projection.Session, logger logging.Logger) *Picker {
	return &Picker{
		name:    name,
		cfg:     cfg,
		logger:  logger,
		session: session,
	}
}

type Picker struct {
	resource.AlwaysRebuild
	resource.TriviallyCloseable

	name   resource.Name
	cfg    *Config
	logger logging.Logger

	session *projection.Session
}

func (p *Picker) Name() resource.Name {
	return p.name
}

func (p *Picker) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	if cmd["project"] == true {
		image, u, v, err := pixelArgs(cmd)
		if err != nil {
			return nil, err
		}
		res, err := p.session.Project(image, u, v)
		if err != nil {
			return nil, err
		}
		if res == nil {
			p.logger.Debugf("no surface hit for %s (%0.1f, %0.1f)", image, u, v)
		} else {
			p.logger.Debugf("%v", res)
		}
		return sfmproject.EncodeProjection(res), nil
	}

	if cmd["camera_center"] == true {
		image, ok := cmd["image"].(string)
		if !ok {
			return nil, fmt.Errorf("camera_center needs an image")
		}
		c, err := p.session.CameraCenter(image)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"center": sfmproject.VectorToMap(c)}, nil
	}

	if cmd["ray"] == true {
		image, u, v, err := pixelArgs(cmd)
		if err != nil {
			return nil, err
		}
		r, err := p.session.Ray(image, u, v)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"origin":    sfmproject.VectorToMap(r.Origin),
			"direction": sfmproject.VectorToMap(r.Direction),
		}, nil
	}

	if cmd["stats"] == true {
		return p.stats(), nil
	}

	if cmd["images"] == true {
		return p.images(cmd)
	}

	if cmd["health"] == true {
		return p.health(), nil
	}

	return nil, fmt.Errorf("unknown command %v", cmd)
}

func pixelArgs(cmd map[string]interface{}) (string, float64, float64, error) {
	image, ok := cmd["image"].(string)
	if !ok || image == "" {
		return "", 0, 0, fmt.Errorf("need an image")
	}
	u, err := sfmproject.ToFloat(cmd["x"])
	if err != nil {
		return "", 0, 0, fmt.Errorf("bad x: %w", err)
	}
	v, err := sfmproject.ToFloat(cmd["y"])
	if err != nil {
		return "", 0, 0, fmt.Errorf("bad y: %w", err)
	}
	return image, u, v, nil
}

func (p *Picker) stats() map[string]interface{} {
	res := map[string]interface{}{
		"surface":      p.session.HasSurface(),
		"max_distance": p.session.MaxDistance(),
	}

	if p.session.HasSurface() {
		xf := p.session.Transform()
		res["scale"] = xf.Scale
		res["centroid"] = sfmproject.VectorToMap(xf.Centroid)
	}

	rec := p.session.Reconstruction()
	if rec == nil {
		return res
	}

	res["cameras"] = len(rec.Cameras)
	res["images"] = len(rec.Images)
	res["points"] = len(rec.Points)
	res["dropped_cameras"] = rec.CameraStats.DroppedTotal()
	res["skipped_records"] = rec.CameraStats.Skipped + rec.ImageStats.Skipped + rec.PointStats.Skipped
	res["non_unit_rotations"] = rec.ImageStats.NonUnitRotations

	integrity := []interface{}{}
	if err := rec.CheckIntegrity(); err != nil {
		for _, e := range multierr.Errors(err) {
			integrity = append(integrity, e.Error())
		}
	}
	res["integrity_errors"] = integrity
	return res
}

func (p *Picker) images(cmd map[string]interface{}) (map[string]interface{}, error) {
	limit := p.cfg.imageListLimit()
	if x, ok := cmd["limit"]; ok {
		l, err := sfmproject.ToFloat(x)
		if err != nil {
			return nil, fmt.Errorf("bad limit: %w", err)
		}
		limit = int(l)
	}

	var names []string
	total := 0
	if p.cfg.ImagesDir != "" {
		var err error
		names, total, err = imgutils.SampleImageNames(p.cfg.ImagesDir, limit)
		if err != nil {
			return nil, err
		}
	} else {
		rec := p.session.Reconstruction()
		if rec == nil {
			return nil, projection.ErrNotLoaded
		}
		all := rec.ImageNames()
		names = imgutils.Sample(all, limit)
		total = len(all)
	}

	out := make([]interface{}, 0, len(names))
	for _, n := range names {
		out = append(out, n)
	}
	return map[string]interface{}{
		"count":  len(out),
		"total":  total,
		"images": out,
	}, nil
}

func (p *Picker) health() map[string]interface{} {
	exists := func(fn string) bool {
		if fn == "" {
			return false
		}
		_, err := os.Stat(fn)
		return err == nil
	}
	return map[string]interface{}{
		"status":        "ok",
		"colmap_dir":    p.cfg.ColmapDir,
		"images_dir":    p.cfg.ImagesDir,
		"model_path":    p.cfg.ModelPath,
		"colmap_exists": exists(filepath.Join(p.cfg.ColmapDir, colmap.CamerasFile)),
		"images_exists": exists(p.cfg.ImagesDir),
		"model_exists":  exists(p.cfg.ModelPath),
	}
}
