package core

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// constJitter always returns the same draw
type constJitter float64

func (c constJitter) Float64() float64 { return float64(c) }

func TestUnitIcosphereCounts(t *testing.T) {
	tests := []struct {
		level     int
		wantVerts int
		wantFaces int
	}{
		{0, 12, 20},
		{1, 42, 80},
		{2, 162, 320},
		{3, 642, 1280},
		{4, 2562, 5120},
	}

	for _, tc := range tests {
		mesh := UnitIcosphere(tc.level)
		assert.Equal(t, tc.wantVerts, mesh.VertexCount(), "level %d vertices", tc.level)
		assert.Equal(t, tc.wantFaces, mesh.FaceCount(), "level %d faces", tc.level)
		assert.Equal(t, tc.wantVerts, VertexCount(tc.level))
		assert.Equal(t, tc.wantFaces, FaceCount(tc.level))
		require.NoError(t, mesh.Validate())

		// closed triangulation: V - E + F = 2
		edges := mesh.FaceCount() * 3 / 2
		assert.Equal(t, 2, mesh.VertexCount()-edges+mesh.FaceCount())
	}
}

func TestUnitIcosphereVerticesOnUnitSphere(t *testing.T) {
	for level := 0; level <= 4; level++ {
		for i, v := range UnitIcosphere(level).Vertices {
			assert.InDelta(t, 1.0, v.Len(), 1e-12, "level %d vertex %d", level, i)
		}
	}
}

func TestSubdivideSharesEdgeMidpoints(t *testing.T) {
	mesh := UnitIcosphere(2)

	// every undirected edge of a closed mesh borders exactly two faces
	edges := make(map[edgeKey]int)
	for _, f := range mesh.Faces {
		edges[newEdgeKey(f[0], f[1])]++
		edges[newEdgeKey(f[1], f[2])]++
		edges[newEdgeKey(f[2], f[0])]++
	}
	for e, n := range edges {
		assert.Equal(t, 2, n, "edge %v", e)
	}

	seen := make(map[Vertex]int)
	for i, v := range mesh.Vertices {
		if j, ok := seen[v]; ok {
			t.Fatalf("vertex %d duplicates vertex %d", i, j)
		}
		seen[v] = i
	}
}

func TestSubdivideKeepsExistingVertices(t *testing.T) {
	base := UnitIcosphere(0)
	next := subdivide(base)
	require.Len(t, next.Vertices, 42)
	assert.Equal(t, base.Vertices, next.Vertices[:12])

	// first face of the base splits into corner, corner, corner, centre
	f := base.Faces[0]
	a, b, c := next.Faces[0][1], next.Faces[1][1], next.Faces[0][2]
	assert.Equal(t, Face{f[0], a, c}, next.Faces[0])
	assert.Equal(t, Face{f[1], b, a}, next.Faces[1])
	assert.Equal(t, Face{f[2], c, b}, next.Faces[2])
	assert.Equal(t, Face{a, b, c}, next.Faces[3])
}

func TestGenerateIcosphereDepthZero(t *testing.T) {
	mesh, err := GenerateIcosphere(SphereSpec{Radius: 1.0}, NewJitter(1))
	require.NoError(t, err)
	assert.Equal(t, 12, mesh.VertexCount())
	assert.Equal(t, 20, mesh.FaceCount())
	assert.Equal(t, icosahedronFaces[:], mesh.Faces)
}

func TestGenerateIcosphereTransform(t *testing.T) {
	spec := SphereSpec{Center: Vertex{5, -2, 1}, Radius: 2, Subdivisions: 1}

	// draw 0 gives the lower bound scale, 0.5 the midpoint
	low, err := GenerateIcosphere(spec, constJitter(0))
	require.NoError(t, err)
	mid, err := GenerateIcosphere(spec, constJitter(0.5))
	require.NoError(t, err)

	for i := range low.Vertices {
		assert.InDelta(t, 2*JitterMin, low.Vertices[i].Sub(spec.Center).Len(), 1e-9)
		assert.InDelta(t, 2.0, mid.Vertices[i].Sub(spec.Center).Len(), 1e-9)
	}
}

func TestGenerateIcosphereInvalidSpec(t *testing.T) {
	tests := []struct {
		name string
		spec SphereSpec
	}{
		{"zero radius", SphereSpec{Radius: 0}},
		{"negative radius", SphereSpec{Radius: -1}},
		{"nan radius", SphereSpec{Radius: math.NaN()}},
		{"infinite radius", SphereSpec{Radius: math.Inf(1)}},
		{"negative depth", SphereSpec{Radius: 1, Subdivisions: -1}},
		{"nan center", SphereSpec{Center: Vertex{0, math.NaN(), 0}, Radius: 1}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := GenerateIcosphere(tc.spec, NewJitter(1))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidSphere))
		})
	}
}

func TestGenerateIcosphereDeterministic(t *testing.T) {
	spec := SphereSpec{Center: Vertex{0.4, 0.7, 0.3}, Radius: 0.6, Subdivisions: 2}

	a, err := GenerateIcosphere(spec, NewJitter(42))
	require.NoError(t, err)
	b, err := GenerateIcosphere(spec, NewJitter(42))
	require.NoError(t, err)
	c, err := GenerateIcosphere(spec, NewJitter(43))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a.Vertices, c.Vertices)
	assert.Equal(t, a.Faces, c.Faces)
}

func TestGenerateIcosphereConsumesOneDrawPerVertex(t *testing.T) {
	rng := NewJitter(7)
	_, err := GenerateIcosphere(SphereSpec{Radius: 1, Subdivisions: 1}, rng)
	require.NoError(t, err)

	ref := NewJitter(7)
	for i := 0; i < VertexCount(1); i++ {
		ref.Float64()
	}
	assert.Equal(t, ref.Float64(), rng.Float64())
}

func TestPropertyJitterBound(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		spec := SphereSpec{
			Center: Vertex{
				rapid.Float64Range(-10, 10).Draw(rt, "x"),
				rapid.Float64Range(-10, 10).Draw(rt, "y"),
				rapid.Float64Range(-10, 10).Draw(rt, "z"),
			},
			Radius:       rapid.Float64Range(0.01, 100).Draw(rt, "radius"),
			Subdivisions: rapid.IntRange(0, 3).Draw(rt, "subdivisions"),
		}
		seed := rapid.Uint64().Draw(rt, "seed")

		mesh, err := GenerateIcosphere(spec, NewJitter(seed))
		require.NoError(rt, err)
		require.Equal(rt, VertexCount(spec.Subdivisions), mesh.VertexCount())
		require.Equal(rt, FaceCount(spec.Subdivisions), mesh.FaceCount())
		require.NoError(rt, mesh.Validate())

		tol := 1e-9 * (spec.Radius + spec.Center.Len())
		for i, v := range mesh.Vertices {
			d := v.Sub(spec.Center).Len()
			if d < JitterMin*spec.Radius-tol || d > JitterMax*spec.Radius+tol {
				rt.Fatalf("vertex %d at distance %v outside [%v, %v]", i, d, JitterMin*spec.Radius, JitterMax*spec.Radius)
			}
		}
	})
}
