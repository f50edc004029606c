// Package cloud runs the generation pipeline: one seeded random source,
// the sphere list in order, a merge, and an OBJ export.
package cloud

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"cloudgenerator/core"
	"cloudgenerator/internal/metrics"
	"cloudgenerator/objfile"
)

// Stats summarizes one built cloud.
type Stats struct {
	Spheres  int         `json:"spheres"`
	Vertices int         `json:"vertices"`
	Faces    int         `json:"faces"`
	Bounds   core.Bounds `json:"bounds"`
}

// StatsOf computes the summary of a merged mesh built from n spheres.
func StatsOf(mesh core.Mesh, spheres int) Stats {
	return Stats{
		Spheres:  spheres,
		Vertices: mesh.VertexCount(),
		Faces:    mesh.FaceCount(),
		Bounds:   mesh.Bounds(),
	}
}

// Generator builds and exports clouds.
type Generator struct {
	logger  *zap.Logger
	metrics *metrics.Collector
}

// New returns a generator. Both arguments may be nil.
func New(logger *zap.Logger, collector *metrics.Collector) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		logger:  logger.With(zap.String("component", "generator")),
		metrics: collector,
	}
}

// Build generates every sphere of spec from a single generator seeded with
// spec.Seed and merges them. All specs are validated before any geometry
// is produced.
func (g *Generator) Build(spec core.CloudSpec) (core.Mesh, error) {
	if len(spec.Spheres) == 0 {
		return core.Mesh{}, fmt.Errorf("%w: cloud has no spheres", core.ErrInvalidSphere)
	}
	for i, s := range spec.Spheres {
		if err := s.Validate(); err != nil {
			return core.Mesh{}, fmt.Errorf("sphere %d: %w", i, err)
		}
	}

	start := time.Now()
	rng := core.NewJitter(spec.Seed)
	meshes := make([]core.Mesh, 0, len(spec.Spheres))
	for i, s := range spec.Spheres {
		mesh, err := core.GenerateIcosphere(s, rng)
		if err != nil {
			return core.Mesh{}, fmt.Errorf("sphere %d: %w", i, err)
		}
		g.logger.Debug("generated sphere",
			zap.Int("index", i),
			zap.Float64s("center", s.Center[:]),
			zap.Float64("radius", s.Radius),
			zap.Int("subdivisions", s.Subdivisions),
			zap.Int("vertices", mesh.VertexCount()),
			zap.Int("faces", mesh.FaceCount()),
		)
		g.metrics.RecordSphere(mesh.VertexCount(), mesh.FaceCount())
		meshes = append(meshes, mesh)
	}

	merged := core.Merge(meshes...)
	elapsed := time.Since(start)
	g.metrics.RecordBuild(elapsed)

	g.logger.Info("built cloud",
		zap.Uint64("seed", spec.Seed),
		zap.Int("spheres", len(meshes)),
		zap.Int("vertices", merged.VertexCount()),
		zap.Int("faces", merged.FaceCount()),
		zap.Duration("elapsed", elapsed),
	)
	return merged, nil
}

// Export writes mesh to path.
func (g *Generator) Export(mesh core.Mesh, path string, opts objfile.Options) error {
	err := objfile.WriteFile(path, mesh, opts)
	if err != nil {
		g.metrics.RecordExport(0, err)
		return err
	}

	var size int64
	if info, statErr := os.Stat(path); statErr == nil {
		size = info.Size()
	}
	g.metrics.RecordExport(size, nil)
	g.logger.Info("exported OBJ", zap.String("path", path), zap.Int64("bytes", size))
	return nil
}

// Run builds the cloud and exports it. Nothing is written if the build
// fails.
func (g *Generator) Run(spec core.CloudSpec, path string, opts objfile.Options) (Stats, error) {
	if err := opts.Validate(); err != nil {
		return Stats{}, fmt.Errorf("export options: %w", err)
	}
	mesh, err := g.Build(spec)
	if err != nil {
		return Stats{}, err
	}
	if err := g.Export(mesh, path, opts); err != nil {
		return Stats{}, err
	}
	return StatsOf(mesh, len(spec.Spheres)), nil
}
