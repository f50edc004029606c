package objfile

import (
	"bufio"
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"cloudgenerator/core"
)

func triangle() core.Mesh {
	return core.Mesh{
		Vertices: []core.Vertex{{0, 0, 0}, {1.23456, -0.5, 2}, {-0.00001, 3.14159265, -7.5}},
		Faces:    []core.Face{{0, 1, 2}},
	}
}

func TestEncodeFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, triangle(), DefaultOptions()))

	want := "# Low Poly Cloud OBJ\n" +
		"o Cloud\n" +
		"v 0.0000 0.0000 0.0000\n" +
		"v 1.2346 -0.5000 2.0000\n" +
		"v -0.0000 3.1416 -7.5000\n" +
		"f 1 2 3\n"
	assert.Equal(t, want, buf.String())
}

func TestEncodeVerticesPrecedeFaces(t *testing.T) {
	mesh := core.Merge(core.UnitIcosphere(0), core.UnitIcosphere(1))

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, mesh, Options{Header: "test", ObjectName: "Puffs"}))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2+mesh.VertexCount()+mesh.FaceCount())
	assert.Equal(t, "# test", lines[0])
	assert.Equal(t, "o Puffs", lines[1])
	for i, l := range lines[2 : 2+mesh.VertexCount()] {
		assert.True(t, strings.HasPrefix(l, "v "), "line %d: %q", i+2, l)
	}
	for i, l := range lines[2+mesh.VertexCount():] {
		assert.True(t, strings.HasPrefix(l, "f "), "face line %d: %q", i, l)
	}
}

func TestEncodeRejects(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Encode(&buf, triangle(), Options{Header: "a\nb", ObjectName: "Cloud"}))
	assert.Error(t, Encode(&buf, triangle(), Options{Header: "a", ObjectName: " "}))

	bad := triangle()
	bad.Faces[0][2] = 3
	assert.Error(t, Encode(&buf, bad, DefaultOptions()))
	assert.Zero(t, buf.Len())
}

// roughlyEqual allows for the 4-decimal rounding of the text format
func roughlyEqual(a, b core.Vertex) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > 5.1e-5 {
			return false
		}
	}
	return true
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("disk full") }

func TestEncodePropagatesWriteError(t *testing.T) {
	err := Encode(failingWriter{}, core.UnitIcosphere(3), DefaultOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestWriteFileAndReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cloud.obj")
	mesh := core.Merge(core.UnitIcosphere(1), core.UnitIcosphere(0))
	require.NoError(t, WriteFile(path, mesh, DefaultOptions()))

	doc, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultHeader}, doc.Comments)
	assert.Equal(t, DefaultObjectName, doc.ObjectName)
	assert.Equal(t, mesh.Faces, doc.Mesh.Faces)
	require.Len(t, doc.Mesh.Vertices, mesh.VertexCount())
	for i := range mesh.Vertices {
		assert.True(t, roughlyEqual(mesh.Vertices[i], doc.Mesh.Vertices[i]), "vertex %d", i)
	}
}

func TestWriteFileBadPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "cloud.obj")
	err := WriteFile(path, triangle(), DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestWriteFileInvalidKeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cloud.obj")
	require.NoError(t, WriteFile(path, triangle(), DefaultOptions()))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	bad := triangle()
	bad.Faces = append(bad.Faces, core.Face{0, 1, 7})
	require.Error(t, WriteFile(path, bad, DefaultOptions()))
	require.Error(t, WriteFile(path, triangle(), Options{Header: "a\nb", ObjectName: "Cloud"}))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestDecodeLineTooLong(t *testing.T) {
	input := "v 0 0 0\n# " + strings.Repeat("x", bufio.MaxScanTokenSize) + "\n"
	_, err := Decode(strings.NewReader(input))
	require.Error(t, err)
	assert.True(t, errors.Is(err, bufio.ErrTooLong))
	assert.Contains(t, err.Error(), "line 2")
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  int
	}{
		{"short vertex", "v 1 2\n", 1},
		{"bad coordinate", "v 1 x 2\n", 1},
		{"quad face", "v 0 0 0\nv 1 0 0\nv 0 1 0\nv 1 1 0\nf 1 2 3 4\n", 5},
		{"zero index", "v 0 0 0\nf 0 1 1\n", 2},
		{"unknown record", "# c\nvn 0 0 1\n", 2},
		{"two objects", "o A\no B\n", 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tc.input))
			var perr *ParseError
			require.True(t, errors.As(err, &perr), "got %v", err)
			assert.Equal(t, tc.line, perr.Line)
		})
	}
}

func TestDecodeIndexOutOfRange(t *testing.T) {
	_, err := Decode(strings.NewReader("v 0 0 0\nv 1 0 0\nf 1 2 3\n"))
	assert.Error(t, err)
}

func TestDecodeTolerant(t *testing.T) {
	input := "# header\n\no Cloud\nv 0 0 0\nv 1 0 0\nv 0 1 0\nf 1/1/1 -2 -1\n"
	doc, err := Decode(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []core.Face{{0, 1, 2}}, doc.Mesh.Faces)
}

func TestProperty_RoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 3).Draw(rt, "spheres")
		rng := core.NewJitter(rapid.Uint64().Draw(rt, "seed"))

		meshes := make([]core.Mesh, n)
		for i := range meshes {
			spec := core.SphereSpec{
				Center:       core.Vertex{float64(i), 0, 0},
				Radius:       rapid.Float64Range(0.1, 5).Draw(rt, "radius"),
				Subdivisions: rapid.IntRange(0, 2).Draw(rt, "subdivisions"),
			}
			m, err := core.GenerateIcosphere(spec, rng)
			require.NoError(rt, err)
			meshes[i] = m
		}
		merged := core.Merge(meshes...)

		var buf bytes.Buffer
		require.NoError(rt, Encode(&buf, merged, DefaultOptions()))
		doc, err := Decode(&buf)
		require.NoError(rt, err)

		require.Equal(rt, merged.VertexCount(), doc.Mesh.VertexCount())
		require.Equal(rt, merged.FaceCount(), doc.Mesh.FaceCount())
		require.Equal(rt, merged.Faces, doc.Mesh.Faces)
		for i := range merged.Vertices {
			if !roughlyEqual(merged.Vertices[i], doc.Mesh.Vertices[i]) {
				rt.Fatalf("vertex %d: %v != %v", i, merged.Vertices[i], doc.Mesh.Vertices[i])
			}
		}
	})
}
