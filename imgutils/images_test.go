package imgutils

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"github.com/erh/sfmproject/colmap"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	test.That(t, os.WriteFile(filepath.Join(dir, name), []byte{}, 0o644), test.ShouldBeNil)
}

func writePNG(t *testing.T, fn string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.Set(1, 1, color.NRGBA{R: 255, A: 255})

	f, err := os.Create(fn)
	test.That(t, err, test.ShouldBeNil)
	defer f.Close()
	test.That(t, png.Encode(f, img), test.ShouldBeNil)
}

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"b.JPG", "a.jpg", "c.png", "notes.txt", "d.jpeg"} {
		touch(t, dir, n)
	}
	test.That(t, os.Mkdir(filepath.Join(dir, "sub.jpg"), 0o755), test.ShouldBeNil)

	names, err := ListImages(dir)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, names, test.ShouldResemble, []string{"a.jpg", "b.JPG", "c.png", "d.jpeg"})

	_, err = ListImages(filepath.Join(dir, "missing"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSample(t *testing.T) {
	names := []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"}

	test.That(t, Sample(names, 5), test.ShouldResemble, []string{"0", "2", "4", "6", "8"})
	test.That(t, Sample(names, 3), test.ShouldResemble, []string{"0", "3", "6"})
	test.That(t, Sample(names, 10), test.ShouldResemble, names)
	test.That(t, Sample(names, 50), test.ShouldResemble, names)
	test.That(t, Sample(names, 0), test.ShouldResemble, names)
	test.That(t, Sample(names, 3), test.ShouldResemble, Sample(names, 3))
}

func TestSampleImageNames(t *testing.T) {
	dir := t.TempDir()
	_, _, err := SampleImageNames(dir, 5)
	test.That(t, err, test.ShouldNotBeNil)

	for _, n := range []string{"f1.jpg", "f2.jpg", "f3.jpg", "f4.jpg"} {
		touch(t, dir, n)
	}
	sampled, total, err := SampleImageNames(dir, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, total, test.ShouldEqual, 4)
	test.That(t, sampled, test.ShouldResemble, []string{"f1.jpg", "f3.jpg"})
}

func TestCheckImageSize(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "frame.png")
	writePNG(t, fn, 64, 48)

	intr := colmap.CameraIntrinsics{ID: 1, Width: 64, Height: 48}
	test.That(t, CheckImageSize(fn, intr), test.ShouldBeNil)

	intr.Width = 640
	err := CheckImageSize(fn, intr)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "64x48")

	test.That(t, CheckImageSize(fn+".missing", intr), test.ShouldNotBeNil)
}
