package colmap

import (
	"bufio"
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// maxLineSize bounds a single line. POINTS2D lines of large images run to megabytes.
const maxLineSize = 256 * 1024 * 1024

// rotationTolerance is how far from unit length a quaternion may be before it
// is counted in ParseStats.NonUnitRotations.
const rotationTolerance = 1e-3

// FormatError is returned when a record has the right shape but a numeric
// field does not parse. The whole file is rejected.
type FormatError struct {
	Line  int
	Field string
	Value string
	Err   error
}

func (e *FormatError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("line %d: bad %s %q", e.Line, e.Field, e.Value)
	}
	return fmt.Sprintf("line %d: bad %s %q: %v", e.Line, e.Field, e.Value, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// ErrNotFinite is wrapped by a FormatError when a numeric field is nan or inf.
var ErrNotFinite = errors.New("not a finite number")

// ParseStats describes what a parse kept and what it let go.
type ParseStats struct {
	Records int
	// Skipped counts lines too short to be a record.
	Skipped int
	// Dropped counts well-formed records that were not kept, by reason.
	Dropped          map[string]int
	Duplicates       int
	NonUnitRotations int
}

// DroppedTotal sums Dropped.
func (s ParseStats) DroppedTotal() int {
	total := 0
	for _, n := range s.Dropped {
		total += n
	}
	return total
}

func (s *ParseStats) drop(reason string) {
	if s.Dropped == nil {
		s.Dropped = map[string]int{}
	}
	s.Dropped[reason]++
}

type line struct {
	num    int
	fields []string
}

// readRecords returns the non-blank lines of r with their 1-based line
// numbers. Comment lines are kept so that callers can tell them apart from
// data when looking ahead.
func readRecords(r io.Reader) ([]line, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lines := []line{}
	num := 0
	for scanner.Scan() {
		num++
		lines = append(lines, line{num: num, fields: strings.Fields(scanner.Text())})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (l line) ignorable() bool {
	return len(l.fields) == 0 || strings.HasPrefix(l.fields[0], "#")
}

func parseInt(l line, field, s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, &FormatError{Line: l.num, Field: field, Value: s, Err: err}
	}
	return v, nil
}

func parseInt64(l line, field, s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, &FormatError{Line: l.num, Field: field, Value: s, Err: err}
	}
	return v, nil
}

func parseFloat(l line, field, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &FormatError{Line: l.num, Field: field, Value: s, Err: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &FormatError{Line: l.num, Field: field, Value: s, Err: ErrNotFinite}
	}
	return v, nil
}

func parseFloats(l line, names []string, values []string) ([]float64, error) {
	out := make([]float64, len(names))
	for i, n := range names {
		v, err := parseFloat(l, n, values[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// ParseCameras reads cameras.txt:
//
//	CAMERA_ID, MODEL, WIDTH, HEIGHT, PARAMS[]
//
// Only SIMPLE_RADIAL and PINHOLE are kept; other models are dropped and counted.
func ParseCameras(r io.Reader) (map[int]CameraIntrinsics, ParseStats, error) {
	stats := ParseStats{}

	lines, err := readRecords(r)
	if err != nil {
		return nil, stats, err
	}

	cameras := map[int]CameraIntrinsics{}
	for _, l := range lines {
		if l.ignorable() {
			continue
		}
		if len(l.fields) < 5 {
			stats.Skipped++
			continue
		}

		model := CameraModel(l.fields[1])
		need, ok := paramCount[model]
		if !ok {
			stats.drop("unsupported model " + string(model))
			continue
		}
		params := l.fields[4:]
		if len(params) < need {
			stats.drop("too few params for " + string(model))
			continue
		}

		ci, err := parseCamera(l, model, params)
		if err != nil {
			return nil, stats, err
		}

		if _, dup := cameras[ci.ID]; dup {
			stats.Duplicates++
		}
		cameras[ci.ID] = ci
		stats.Records++
	}

	return cameras, stats, nil
}

func parseCamera(l line, model CameraModel, params []string) (CameraIntrinsics, error) {
	ci := CameraIntrinsics{Model: model}

	var err error
	ci.ID, err = parseInt(l, "camera id", l.fields[0])
	if err != nil {
		return ci, err
	}
	ci.Width, err = parseInt(l, "width", l.fields[2])
	if err != nil {
		return ci, err
	}
	ci.Height, err = parseInt(l, "height", l.fields[3])
	if err != nil {
		return ci, err
	}
	if ci.Width <= 0 || ci.Height <= 0 {
		return ci, &FormatError{Line: l.num, Field: "size", Value: l.fields[2] + "x" + l.fields[3]}
	}

	switch model {
	case SimpleRadial:
		v, err := parseFloats(l, []string{"f", "cx", "cy", "k"}, params)
		if err != nil {
			return ci, err
		}
		ci.F, ci.Cx, ci.Cy = v[0], v[1], v[2]
		k := v[3]
		ci.K = &k
	case Pinhole:
		v, err := parseFloats(l, []string{"fx", "fy", "cx", "cy"}, params)
		if err != nil {
			return ci, err
		}
		ci.F = (v[0] + v[1]) / 2
		ci.Cx, ci.Cy = v[2], v[3]
	}

	if ci.F <= 0 {
		return ci, &FormatError{Line: l.num, Field: "focal length", Value: strconv.FormatFloat(ci.F, 'g', -1, 64)}
	}

	return ci, nil
}

// ParseImages reads images.txt:
//
//	IMAGE_ID, QW, QX, QY, QZ, TX, TY, TZ, CAMERA_ID, NAME
//	POINTS2D[] as (X, Y, POINT3D_ID)
//
// The observation line is optional. A blank line, a comment or the end of
// input right after a record means the image has no observations.
func ParseImages(r io.Reader) (map[int]ImageExtrinsics, ParseStats, error) {
	stats := ParseStats{}

	lines, err := readRecords(r)
	if err != nil {
		return nil, stats, err
	}

	images := map[int]ImageExtrinsics{}
	for i := 0; i < len(lines); i++ {
		l := lines[i]
		if l.ignorable() {
			continue
		}
		if len(l.fields) < 10 {
			stats.Skipped++
			continue
		}

		ie, err := parseImage(l)
		if err != nil {
			return nil, stats, err
		}

		if i+1 < len(lines) && !lines[i+1].ignorable() {
			ie.Points2D, err = parseObservations(lines[i+1])
			if err != nil {
				return nil, stats, err
			}
			i++
		}

		if ie.RotationNormError() > rotationTolerance {
			stats.NonUnitRotations++
		}
		if _, dup := images[ie.ID]; dup {
			stats.Duplicates++
		}
		images[ie.ID] = ie
		stats.Records++
	}

	return images, stats, nil
}

func parseImage(l line) (ImageExtrinsics, error) {
	ie := ImageExtrinsics{}

	var err error
	ie.ID, err = parseInt(l, "image id", l.fields[0])
	if err != nil {
		return ie, err
	}

	v, err := parseFloats(l, []string{"qw", "qx", "qy", "qz", "tx", "ty", "tz"}, l.fields[1:8])
	if err != nil {
		return ie, err
	}
	ie.Rotation = quat.Number{Real: v[0], Imag: v[1], Jmag: v[2], Kmag: v[3]}
	ie.Translation = r3.Vector{X: v[4], Y: v[5], Z: v[6]}

	ie.CameraID, err = parseInt(l, "camera id", l.fields[8])
	if err != nil {
		return ie, err
	}

	// names with spaces are split by Fields, put them back together
	ie.Name = strings.Join(l.fields[9:], " ")
	return ie, nil
}

// parseObservations reads flattened (x, y, point3D_id) triples. A trailing
// partial triple is ignored.
func parseObservations(l line) ([]Observation, error) {
	obs := make([]Observation, 0, len(l.fields)/3)
	for j := 0; j+2 < len(l.fields); j += 3 {
		x, err := parseFloat(l, "point2d x", l.fields[j])
		if err != nil {
			return nil, err
		}
		y, err := parseFloat(l, "point2d y", l.fields[j+1])
		if err != nil {
			return nil, err
		}
		id, err := parseInt64(l, "point3d id", l.fields[j+2])
		if err != nil {
			return nil, err
		}
		obs = append(obs, Observation{X: x, Y: y, Point3DID: id})
	}
	return obs, nil
}

// ParsePoints3D reads points3D.txt:
//
//	POINT3D_ID, X, Y, Z, R, G, B, ERROR, TRACK[] as (IMAGE_ID, POINT2D_IDX)
func ParsePoints3D(r io.Reader) (map[int64]Point3D, ParseStats, error) {
	stats := ParseStats{}

	lines, err := readRecords(r)
	if err != nil {
		return nil, stats, err
	}

	points := map[int64]Point3D{}
	for _, l := range lines {
		if l.ignorable() {
			continue
		}
		if len(l.fields) < 8 {
			stats.Skipped++
			continue
		}

		p, err := parsePoint3D(l)
		if err != nil {
			return nil, stats, err
		}

		if _, dup := points[p.ID]; dup {
			stats.Duplicates++
		}
		points[p.ID] = p
		stats.Records++
	}

	return points, stats, nil
}

func parsePoint3D(l line) (Point3D, error) {
	p := Point3D{}

	var err error
	p.ID, err = parseInt64(l, "point3d id", l.fields[0])
	if err != nil {
		return p, err
	}

	v, err := parseFloats(l, []string{"x", "y", "z"}, l.fields[1:4])
	if err != nil {
		return p, err
	}
	p.Position = r3.Vector{X: v[0], Y: v[1], Z: v[2]}

	rgb := [3]uint8{}
	for i, n := range []string{"r", "g", "b"} {
		c, err := strconv.ParseUint(l.fields[4+i], 10, 8)
		if err != nil {
			return p, &FormatError{Line: l.num, Field: n, Value: l.fields[4+i], Err: err}
		}
		rgb[i] = uint8(c)
	}
	p.Color = color.NRGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}

	p.Error, err = parseFloat(l, "error", l.fields[7])
	if err != nil {
		return p, err
	}

	for i := 8; i+1 < len(l.fields); i += 2 {
		imageID, err := parseInt(l, "track image id", l.fields[i])
		if err != nil {
			return p, err
		}
		idx, err := parseInt(l, "track point2d idx", l.fields[i+1])
		if err != nil {
			return p, err
		}
		p.Track = append(p.Track, TrackElement{ImageID: imageID, Point2DIdx: idx})
	}

	return p, nil
}
