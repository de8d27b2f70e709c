package sfmproject

import (
	"fmt"

	"github.com/golang/geo/r3"

	"github.com/erh/sfmproject/projection"
)

// VectorToMap is how vectors travel through DoCommand.
func VectorToMap(v r3.Vector) map[string]interface{} {
	return map[string]interface{}{"x": v.X, "y": v.Y, "z": v.Z}
}

// VectorFromMap reads back a VectorToMap value.
func VectorFromMap(x interface{}) (r3.Vector, error) {
	m, ok := x.(map[string]interface{})
	if !ok {
		return r3.Vector{}, fmt.Errorf("vector is not a map: %T", x)
	}

	v := r3.Vector{}
	var err error
	for _, c := range []struct {
		key string
		dst *float64
	}{{"x", &v.X}, {"y", &v.Y}, {"z", &v.Z}} {
		*c.dst, err = ToFloat(m[c.key])
		if err != nil {
			return r3.Vector{}, fmt.Errorf("bad vector field %s: %w", c.key, err)
		}
	}
	return v, nil
}

// ToFloat accepts the numeric types DoCommand arguments show up as, depending
// on whether they came over the wire or were built in process.
func ToFloat(x interface{}) (float64, error) {
	switch v := x.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case nil:
		return 0, fmt.Errorf("missing number")
	}
	return 0, fmt.Errorf("not a number: %T", x)
}

// EncodeProjection builds the project response. A miss is {"hit": false}.
func EncodeProjection(pr *projection.ProjectionResult) map[string]interface{} {
	if pr == nil {
		return map[string]interface{}{"hit": false}
	}
	return map[string]interface{}{
		"hit":      true,
		"image":    pr.ImageName,
		"u":        pr.Pixel[0],
		"v":        pr.Pixel[1],
		"position": VectorToMap(pr.Position),
		"normal":   VectorToMap(pr.Normal),
		"distance": pr.Distance,
	}
}

// DecodeProjection is the inverse of EncodeProjection, a miss decodes to nil.
func DecodeProjection(resp map[string]interface{}) (*projection.ProjectionResult, error) {
	hit, ok := resp["hit"].(bool)
	if !ok {
		return nil, fmt.Errorf("response has no hit field: %v", resp)
	}
	if !hit {
		return nil, nil
	}

	pr := &projection.ProjectionResult{}
	pr.ImageName, _ = resp["image"].(string)

	var err error
	pr.Position, err = VectorFromMap(resp["position"])
	if err != nil {
		return nil, err
	}
	pr.Normal, err = VectorFromMap(resp["normal"])
	if err != nil {
		return nil, err
	}
	pr.Distance, err = ToFloat(resp["distance"])
	if err != nil {
		return nil, fmt.Errorf("bad distance: %w", err)
	}
	pr.Pixel[0], err = ToFloat(resp["u"])
	if err != nil {
		return nil, fmt.Errorf("bad u: %w", err)
	}
	pr.Pixel[1], err = ToFloat(resp["v"])
	if err != nil {
		return nil, fmt.Errorf("bad v: %w", err)
	}
	return pr, nil
}
