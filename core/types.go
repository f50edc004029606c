package core

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ErrInvalidSphere is returned when a sphere specification cannot produce
// usable geometry.
var ErrInvalidSphere = errors.New("invalid sphere specification")

// Vertex is a position in model space
type Vertex = mgl64.Vec3

// Face is a triangle of vertex indices, in the winding order it was produced
type Face [3]int

// Mesh is an indexed triangle mesh. Face indices are 0-based into Vertices.
type Mesh struct {
	Vertices []Vertex `json:"vertices"`
	Faces    []Face   `json:"faces"`
}

// VertexCount returns the number of vertices.
func (m Mesh) VertexCount() int {
	return len(m.Vertices)
}

// FaceCount returns the number of triangles.
func (m Mesh) FaceCount() int {
	return len(m.Faces)
}

// Validate checks that every face index addresses a vertex of the mesh.
func (m Mesh) Validate() error {
	n := len(m.Vertices)
	for i, f := range m.Faces {
		for _, idx := range f {
			if idx < 0 || idx >= n {
				return fmt.Errorf("face %d: index %d out of range [0, %d)", i, idx, n)
			}
		}
	}
	return nil
}

// SphereSpec describes one puff of the cloud
type SphereSpec struct {
	Center       Vertex
	Radius       float64
	Subdivisions int
}

// Validate rejects specs that would produce degenerate geometry.
func (s SphereSpec) Validate() error {
	if math.IsNaN(s.Radius) || math.IsInf(s.Radius, 0) || s.Radius <= 0 {
		return fmt.Errorf("%w: radius must be positive and finite, got %v", ErrInvalidSphere, s.Radius)
	}
	if s.Subdivisions < 0 {
		return fmt.Errorf("%w: subdivisions must be >= 0, got %d", ErrInvalidSphere, s.Subdivisions)
	}
	for i, c := range s.Center {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("%w: center component %d is not finite", ErrInvalidSphere, i)
		}
	}
	return nil
}

// CloudSpec is the full input of one generation run. Spheres are generated
// in order from a single generator seeded with Seed, so reordering them
// changes the jitter of every later sphere.
type CloudSpec struct {
	Seed    uint64
	Spheres []SphereSpec
}

// Bounds is an axis-aligned bounding box
type Bounds struct {
	Min Vertex `json:"min"`
	Max Vertex `json:"max"`
}

// Size returns the extent of the box along each axis.
func (b Bounds) Size() Vertex {
	return b.Max.Sub(b.Min)
}

// Center returns the midpoint of the box.
func (b Bounds) Center() Vertex {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Bounds computes the bounding box of all vertices. An empty mesh yields a
// zero box.
func (m Mesh) Bounds() Bounds {
	if len(m.Vertices) == 0 {
		return Bounds{}
	}
	b := Bounds{Min: m.Vertices[0], Max: m.Vertices[0]}
	for _, v := range m.Vertices[1:] {
		for axis := 0; axis < 3; axis++ {
			b.Min[axis] = math.Min(b.Min[axis], v[axis])
			b.Max[axis] = math.Max(b.Max[axis], v[axis])
		}
	}
	return b
}
