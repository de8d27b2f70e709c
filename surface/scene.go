// Package surface holds the reconstructed mesh: its scene hierarchy, the
// one-time normalization into the working frame, and ray casting against it.
package surface

import (
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/rdk/spatialmath"
)

// Geometry is the read-only view of a surface that queries get.
type Geometry interface {
	// Walk calls fn for every triangle until fn returns false.
	// It returns false if the walk was stopped early.
	Walk(fn func(*spatialmath.Triangle) bool) bool
}

// Node is one level of a scene hierarchy. Triangles are in the node's own
// coordinates, which are shared with the whole tree.
type Node struct {
	Name      string
	Triangles []*spatialmath.Triangle
	Children  []*Node
}

// NewNode returns a node holding triangles.
func NewNode(name string, triangles ...*spatialmath.Triangle) *Node {
	return &Node{Name: name, Triangles: triangles}
}

// AddChild appends c and returns n.
func (n *Node) AddChild(c *Node) *Node {
	n.Children = append(n.Children, c)
	return n
}

// Walk visits n and every descendant, depth first.
func (n *Node) Walk(fn func(*spatialmath.Triangle) bool) bool {
	if n == nil {
		return true
	}
	for _, t := range n.Triangles {
		if !fn(t) {
			return false
		}
	}
	for _, c := range n.Children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// TriangleCount counts triangles in the whole tree.
func TriangleCount(g Geometry) int {
	count := 0
	g.Walk(func(*spatialmath.Triangle) bool {
		count++
		return true
	})
	return count
}

// mapVertices rewrites every triangle of the tree in place.
func (n *Node) mapVertices(fn func(r3.Vector) r3.Vector) {
	for i, t := range n.Triangles {
		pts := t.Points()
		n.Triangles[i] = spatialmath.NewTriangle(fn(pts[0]), fn(pts[1]), fn(pts[2]))
	}
	for _, c := range n.Children {
		c.mapVertices(fn)
	}
}

// Box is an axis aligned bounding box.
type Box struct {
	Min, Max r3.Vector
}

func emptyBox() Box {
	inf := math.Inf(1)
	return Box{
		Min: r3.Vector{X: inf, Y: inf, Z: inf},
		Max: r3.Vector{X: -inf, Y: -inf, Z: -inf},
	}
}

// Empty is true when nothing was added to the box.
func (b Box) Empty() bool {
	return b.Min.X > b.Max.X
}

func (b *Box) add(p r3.Vector) {
	b.Min = r3.Vector{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)}
	b.Max = r3.Vector{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)}
}

// Center is the middle of the box.
func (b Box) Center() r3.Vector {
	return b.Min.Add(b.Max).Mul(.5)
}

// Size is the extent along each axis.
func (b Box) Size() r3.Vector {
	return b.Max.Sub(b.Min)
}

// MaxExtent is the largest of the three extents.
func (b Box) MaxExtent() float64 {
	s := b.Size()
	return math.Max(s.X, math.Max(s.Y, s.Z))
}

// Bounds returns the bounding box of every triangle in g.
func Bounds(g Geometry) Box {
	b := emptyBox()
	g.Walk(func(t *spatialmath.Triangle) bool {
		for _, p := range t.Points() {
			b.add(p)
		}
		return true
	})
	return b
}
