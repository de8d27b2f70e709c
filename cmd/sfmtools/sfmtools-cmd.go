package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/pointcloud"

	"github.com/erh/sfmproject"
	"github.com/erh/sfmproject/colmap"
	"github.com/erh/sfmproject/config"
	"github.com/erh/sfmproject/imgutils"
	"github.com/erh/sfmproject/picker"
	"github.com/erh/sfmproject/projection"
)

func main() {
	err := realMain()
	if err != nil {
		panic(err)
	}
}

func realMain() error {
	logger := logging.NewLogger("sfmtools")
	ctx := context.Background()

	configFile := flag.String("config", "", "yaml project file")
	cmd := flag.String("cmd", "", "command")
	colmapDir := flag.String("colmap", "", "folder with cameras.txt and images.txt")
	modelPath := flag.String("model", "", "stl surface")
	imagesDir := flag.String("images", "", "folder with the source photos")
	targetSize := flag.Float64("target-size", 0, "")
	maxDistance := flag.Float64("max-distance", 0, "")
	limit := flag.Int("limit", 0, "how many images to list")
	image := flag.String("image", "", "image name")
	x := flag.Float64("x", 0, "pixel column")
	y := flag.Float64("y", 0, "pixel row")
	out := flag.String("out", "", "output file")
	host := flag.String("host", "", "hostname, empty reads VIAM_MACHINE_FQDN and the api key from the environment")
	pickerName := flag.String("picker", "", "pixel picker service on the machine")

	flag.Parse()

	if *cmd == "" {
		return fmt.Errorf("need a cmd")
	}

	cfg := &config.Config{}
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			return err
		}
	}
	// flags win over the project file
	if *colmapDir != "" {
		cfg.ColmapDir = *colmapDir
	}
	if *modelPath != "" {
		cfg.ModelPath = *modelPath
	}
	if *imagesDir != "" {
		cfg.ImagesDir = *imagesDir
	}
	if *targetSize > 0 {
		cfg.TargetSize = *targetSize
	}
	if *maxDistance > 0 {
		cfg.MaxDistance = *maxDistance
	}
	if *limit > 0 {
		cfg.ImageListLimit = *limit
	}
	if *pickerName != "" {
		cfg.Picker = *pickerName
	}

	if *cmd == "remote" {
		if cfg.Picker == "" {
			return fmt.Errorf("need a picker")
		}

		machine, err := sfmproject.Connect(ctx, *host, logger)
		if err != nil {
			return err
		}
		defer machine.Close(ctx)

		p, err := sfmproject.PickerFromMachine(machine, cfg.Picker)
		if err != nil {
			return err
		}

		res, err := sfmproject.RemoteProject(ctx, p, *image, *x, *y)
		if err != nil {
			return err
		}
		printProjection(logger, *image, *x, *y, res)
		return nil
	}

	if *cmd == "images" && cfg.ImagesDir != "" {
		if cfg.ImageListLimit <= 0 {
			cfg.ImageListLimit = config.DefaultImageListLimit
		}
		names, total, err := imgutils.SampleImageNames(cfg.ImagesDir, cfg.ImageListLimit)
		if err != nil {
			return err
		}
		logger.Infof("%d of %d images", len(names), total)
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	if *cmd == "stats" {
		rec, err := colmap.LoadDir(cfg.ColmapDir, logger)
		if err != nil {
			return err
		}

		logger.Infof("cameras: %d (%d dropped) images: %d points: %d",
			len(rec.Cameras), rec.CameraStats.DroppedTotal(), len(rec.Images), len(rec.Points))

		for _, name := range rec.ImageNames() {
			img, _ := rec.ImageByName(name)
			intr, err := rec.CameraFor(img)
			if err != nil {
				continue
			}
			rs := projection.Reprojection(intr, img, rec.Points)
			logger.Infof("%s center: %v reprojection mean: %0.2f max: %0.2f px over %d observations (%d behind)",
				name, projection.ResolveCameraCenter(img), rs.Mean, rs.Max, rs.Observations, rs.Behind)
		}

		err = rec.CheckIntegrity()
		for _, e := range multierr.Errors(err) {
			logger.Warnf("%v", e)
		}
		return err
	}

	if *cmd == "images" {
		rec, err := colmap.LoadDir(cfg.ColmapDir, logger)
		if err != nil {
			return err
		}
		for _, n := range imgutils.Sample(rec.ImageNames(), cfg.ImageListLimit) {
			fmt.Println(n)
		}
		return nil
	}

	if *cmd == "points" {
		if *out == "" {
			return fmt.Errorf("need an out")
		}
		rec, err := colmap.LoadDir(cfg.ColmapDir, logger)
		if err != nil {
			return err
		}
		pc, err := rec.PointCloud()
		if err != nil {
			return err
		}
		logger.Infof("writing %d points to %s", pc.Size(), *out)
		return writePCToFile(*out, pc)
	}

	if *cmd == "check-images" {
		if cfg.ImagesDir == "" {
			return fmt.Errorf("need images")
		}
		rec, err := colmap.LoadDir(cfg.ColmapDir, logger)
		if err != nil {
			return err
		}

		var all error
		for _, name := range rec.ImageNames() {
			img, _ := rec.ImageByName(name)
			intr, err := rec.CameraFor(img)
			if err == nil {
				err = imgutils.CheckImageSize(filepath.Join(cfg.ImagesDir, name), intr)
			}
			all = multierr.Append(all, err)
		}
		for _, e := range multierr.Errors(all) {
			logger.Warnf("%v", e)
		}
		return all
	}

	if *cmd == "center" || *cmd == "ray" || *cmd == "project" {
		if *image == "" {
			return fmt.Errorf("need an image")
		}

		session, err := loadSession(cfg, logger)
		if err != nil {
			return err
		}

		if *cmd == "center" {
			c, err := session.CameraCenter(*image)
			if err != nil {
				return err
			}
			logger.Infof("%s camera center: %v", *image, c)
			return nil
		}

		if *cmd == "ray" {
			r, err := session.Ray(*image, *x, *y)
			if err != nil {
				return err
			}
			logger.Infof("%s (%0.1f, %0.1f) ray: %v", *image, *x, *y, r)
			return nil
		}

		res, err := session.Project(*image, *x, *y)
		if err != nil {
			return err
		}
		printProjection(logger, *image, *x, *y, res)
		return nil
	}

	return fmt.Errorf("invalid command [%s]", *cmd)
}

// loadSession reads the surface too when there is one, center and ray work without it.
func loadSession(cfg *config.Config, logger logging.Logger) (*projection.Session, error) {
	if cfg.ModelPath == "" {
		rec, err := colmap.LoadDir(cfg.ColmapDir, logger)
		if err != nil {
			return nil, err
		}
		return projection.NewSession(rec, nil, cfg.MaxDistance), nil
	}

	return picker.LoadSession(&picker.Config{
		ColmapDir:   cfg.ColmapDir,
		ModelPath:   cfg.ModelPath,
		ImagesDir:   cfg.ImagesDir,
		TargetSize:  cfg.TargetSize,
		MaxDistance: cfg.MaxDistance,
	}, logger)
}

func printProjection(logger logging.Logger, image string, x, y float64, res *projection.ProjectionResult) {
	if res == nil {
		logger.Infof("%s (%0.1f, %0.1f) does not hit the surface", image, x, y)
		return
	}
	logger.Infof("%v", res)
}

func writePCToFile(fn string, pc pointcloud.PointCloud) error {
	f, err := os.OpenFile(fn, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return pointcloud.ToPCD(pc, f, pointcloud.PCDBinary)
}
