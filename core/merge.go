package core

// Merge concatenates meshes into one. Vertices keep their order and each
// mesh's face indices are shifted by the number of vertices merged before
// it. Coincident vertices of different meshes are not welded.
//
// Indices stay 0-based here. OBJ files index vertices from 1, and that
// shift is applied by objfile.Encode when the mesh is written.
func Merge(meshes ...Mesh) Mesh {
	var nv, nf int
	for _, m := range meshes {
		nv += len(m.Vertices)
		nf += len(m.Faces)
	}

	merged := Mesh{
		Vertices: make([]Vertex, 0, nv),
		Faces:    make([]Face, 0, nf),
	}

	offset := 0
	for _, m := range meshes {
		merged.Vertices = append(merged.Vertices, m.Vertices...)
		for _, f := range m.Faces {
			merged.Faces = append(merged.Faces, Face{f[0] + offset, f[1] + offset, f[2] + offset})
		}
		offset += len(m.Vertices)
	}
	return merged
}
