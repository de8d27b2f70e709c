package surface

import (
	"fmt"
	"io"
	"os"

	"github.com/golang/geo/r3"
	stl "neilpa.me/go-stl"

	"go.viam.com/rdk/spatialmath"
)

func stlVertex(v [3]float32) r3.Vector {
	return r3.Vector{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}
}

// NodeFromSTL turns every face of f into a triangle of one node.
func NodeFromSTL(name string, f *stl.File) *Node {
	n := &Node{Name: name, Triangles: make([]*spatialmath.Triangle, 0, len(f.Faces))}
	for _, face := range f.Faces {
		n.Triangles = append(n.Triangles, spatialmath.NewTriangle(
			stlVertex(face.Verts[0]),
			stlVertex(face.Verts[1]),
			stlVertex(face.Verts[2]),
		))
	}
	return n
}

// ReadSTL decodes an ASCII or binary STL stream.
func ReadSTL(name string, r io.Reader) (n *Node, err error) {
	// go-stl panics on an ASCII solid with no name
	defer func() {
		if x := recover(); x != nil {
			n, err = nil, fmt.Errorf("cannot decode stl %s: %v", name, x)
		}
	}()

	f, err := stl.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("cannot decode stl %s: %w", name, err)
	}
	return NodeFromSTL(name, f), nil
}

// LoadSTL reads an STL file into a new asset.
func LoadSTL(fn string) (*Asset, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	root, err := ReadSTL(fn, f)
	if err != nil {
		return nil, err
	}
	if len(root.Triangles) == 0 {
		return nil, fmt.Errorf("%s has no faces", fn)
	}
	return NewAsset(root), nil
}
