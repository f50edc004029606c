package core

import (
	"math"

	"golang.org/x/exp/rand"
)

const (
	// JitterMin and JitterMax bound the per-vertex radius scale factor.
	JitterMin = 0.95
	JitterMax = 1.05
)

// Jitter is the random source consumed by GenerateIcosphere. One value is
// drawn per vertex, in vertex index order.
type Jitter interface {
	Float64() float64
}

// NewJitter returns a seeded PCG generator. The same seed always yields the
// same sequence of draws.
func NewJitter(seed uint64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// icosahedron corners before normalization, built from the golden ratio
func icosahedronVertices() []Vertex {
	t := (1.0 + math.Sqrt(5.0)) / 2.0

	return []Vertex{
		{-1, t, 0}, {1, t, 0}, {-1, -t, 0}, {1, -t, 0},
		{0, -1, t}, {0, 1, t}, {0, -1, -t}, {0, 1, -t},
		{t, 0, -1}, {t, 0, 1}, {-t, 0, -1}, {-t, 0, 1},
	}
}

var icosahedronFaces = [20]Face{
	{0, 11, 5}, {0, 5, 1}, {0, 1, 7}, {0, 7, 10}, {0, 10, 11},
	{1, 5, 9}, {5, 11, 4}, {11, 10, 2}, {10, 7, 6}, {7, 1, 8},
	{3, 9, 4}, {3, 4, 2}, {3, 2, 6}, {3, 6, 8}, {3, 8, 9},
	{4, 9, 5}, {2, 4, 11}, {6, 2, 10}, {8, 6, 7}, {9, 8, 1},
}

// VertexCount returns the vertex count of an icosphere with the given
// number of subdivisions: 10 * 4^level + 2.
func VertexCount(subdivisions int) int {
	count := 10
	for i := 0; i < subdivisions; i++ {
		count *= 4
	}
	return count + 2
}

// FaceCount returns the face count of an icosphere: 20 * 4^level.
func FaceCount(subdivisions int) int {
	count := 20
	for i := 0; i < subdivisions; i++ {
		count *= 4
	}
	return count
}

// UnitIcosphere builds an icosphere of radius 1 centered on the origin.
// Every vertex is unit length up to rounding.
func UnitIcosphere(subdivisions int) Mesh {
	vertices := icosahedronVertices()
	for i := range vertices {
		vertices[i] = vertices[i].Normalize()
	}

	faces := make([]Face, len(icosahedronFaces))
	copy(faces, icosahedronFaces[:])

	mesh := Mesh{Vertices: vertices, Faces: faces}
	for i := 0; i < subdivisions; i++ {
		mesh = subdivide(mesh)
	}
	return mesh
}

type edgeKey [2]int

func newEdgeKey(i1, i2 int) edgeKey {
	if i1 > i2 {
		return edgeKey{i2, i1}
	}
	return edgeKey{i1, i2}
}

// subdivide splits every face into four. Existing vertices keep their
// indices; edge midpoints are appended once per unique edge.
func subdivide(mesh Mesh) Mesh {
	midpoints := make(map[edgeKey]int, len(mesh.Faces)*3/2)
	vertices := make([]Vertex, len(mesh.Vertices), len(mesh.Vertices)+len(mesh.Faces)*3/2)
	copy(vertices, mesh.Vertices)
	faces := make([]Face, 0, len(mesh.Faces)*4)

	getMidpoint := func(i1, i2 int) int {
		key := newEdgeKey(i1, i2)
		if mid, ok := midpoints[key]; ok {
			return mid
		}

		// chord midpoint pushed back onto the unit sphere
		mid := vertices[i1].Add(vertices[i2]).Mul(0.5).Normalize()
		vertices = append(vertices, mid)
		midpoints[key] = len(vertices) - 1
		return midpoints[key]
	}

	for _, f := range mesh.Faces {
		v1, v2, v3 := f[0], f[1], f[2]
		a := getMidpoint(v1, v2)
		b := getMidpoint(v2, v3)
		c := getMidpoint(v3, v1)

		faces = append(faces,
			Face{v1, a, c},
			Face{v2, b, a},
			Face{v3, c, b},
			Face{a, b, c},
		)
	}

	return Mesh{Vertices: vertices, Faces: faces}
}

// GenerateIcosphere builds one jittered, translated icosphere. Each vertex
// is scaled by Radius*U, U uniform in [JitterMin, JitterMax), then moved to
// Center.
func GenerateIcosphere(spec SphereSpec, rng Jitter) (Mesh, error) {
	if err := spec.Validate(); err != nil {
		return Mesh{}, err
	}

	mesh := UnitIcosphere(spec.Subdivisions)
	for i, v := range mesh.Vertices {
		r := spec.Radius * (JitterMin + (JitterMax-JitterMin)*rng.Float64())
		mesh.Vertices[i] = v.Mul(r).Add(spec.Center)
	}
	return mesh, nil
}
