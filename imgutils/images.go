package imgutils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.viam.com/rdk/rimage"

	"github.com/erh/sfmproject/colmap"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// IsImageFile reports whether fn has an image extension, in any case.
func IsImageFile(fn string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(fn))]
}

// ListImages returns the sorted names of the image files directly in dir.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := []string{}
	for _, e := range entries {
		if e.IsDir() || !IsImageFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Sample picks up to limit names spread evenly across names, always starting
// with the first one.
func Sample(names []string, limit int) []string {
	if limit <= 0 || limit >= len(names) {
		return names
	}

	step := float64(len(names)) / float64(limit)
	out := make([]string, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, names[int(float64(i)*step)])
	}
	return out
}

// SampleImageNames lists dir and samples it. total is how many images dir holds.
func SampleImageNames(dir string, limit int) (sampled []string, total int, err error) {
	names, err := ListImages(dir)
	if err != nil {
		return nil, 0, err
	}
	if len(names) == 0 {
		return nil, 0, fmt.Errorf("no images found in %s", dir)
	}
	return Sample(names, limit), len(names), nil
}

// CheckImageSize makes sure the photo at fn is the size its camera was calibrated at.
func CheckImageSize(fn string, intr colmap.CameraIntrinsics) error {
	img, err := rimage.ReadImageFromFile(fn)
	if err != nil {
		return err
	}

	b := img.Bounds()
	if b.Dx() != intr.Width || b.Dy() != intr.Height {
		return fmt.Errorf("%s is %dx%d but camera %d is calibrated at %dx%d",
			fn, b.Dx(), b.Dy(), intr.ID, intr.Width, intr.Height)
	}
	return nil
}
