package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"cloudgenerator/core"
	"cloudgenerator/objfile"
)

// DefaultPath is read when no settings file is given explicitly.
const DefaultPath = "settings.json"

// MaxSubdivisions caps the per-sphere depth. Face count grows as 20*4^n,
// so level 7 is already ~330k faces per sphere.
const MaxSubdivisions = 7

type Settings struct {
	Cloud  CloudSettings  `json:"cloud" yaml:"cloud"`
	Output OutputSettings `json:"output" yaml:"output"`
	Server ServerSettings `json:"server" yaml:"server"`
	Log    LogSettings    `json:"log" yaml:"log"`
}

type CloudSettings struct {
	Seed    uint64           `json:"seed" yaml:"seed"`
	Spheres []SphereSettings `json:"spheres" yaml:"spheres"`
	Comment string           `json:"comment,omitempty" yaml:"comment,omitempty"`
}

type SphereSettings struct {
	Center       [3]float64 `json:"center" yaml:"center"`
	Radius       float64    `json:"radius" yaml:"radius"`
	Subdivisions int        `json:"subdivisions" yaml:"subdivisions"`
}

type OutputSettings struct {
	Path       string `json:"path" yaml:"path"`
	Header     string `json:"header" yaml:"header"`
	ObjectName string `json:"objectName" yaml:"object_name"`
}

type ServerSettings struct {
	Enabled           bool `json:"enabled" yaml:"enabled"`
	Port              int  `json:"port" yaml:"port"`
	ShutdownTimeoutMs int  `json:"shutdownTimeoutMs" yaml:"shutdown_timeout_ms"`
}

type LogSettings struct {
	// debug, info, warn, error
	Level string `json:"level" yaml:"level"`
	// json or console
	Format string `json:"format" yaml:"format"`
}

// Default returns the stock seven-puff cloud.
func Default() Settings {
	return Settings{
		Cloud: CloudSettings{
			Seed: 42,
			Spheres: []SphereSettings{
				{Center: [3]float64{0, 0, 0}, Radius: 1.0, Subdivisions: 1},         // main center
				{Center: [3]float64{-0.9, -0.2, 0.2}, Radius: 0.7, Subdivisions: 1}, // left
				{Center: [3]float64{0.9, -0.1, -0.1}, Radius: 0.6, Subdivisions: 1}, // right
				{Center: [3]float64{0.4, 0.7, 0.3}, Radius: 0.6, Subdivisions: 1},   // top right
				{Center: [3]float64{-0.4, 0.6, -0.2}, Radius: 0.5, Subdivisions: 1}, // top left
				{Center: [3]float64{0.2, -0.5, 0.4}, Radius: 0.4, Subdivisions: 0},  // front bottom
				{Center: [3]float64{-0.1, 0.3, -0.8}, Radius: 0.5, Subdivisions: 0}, // back
			},
		},
		Output: OutputSettings{
			Path:       "cloud.obj",
			Header:     objfile.DefaultHeader,
			ObjectName: objfile.DefaultObjectName,
		},
		Server: ServerSettings{
			Enabled:           false,
			Port:              8080,
			ShutdownTimeoutMs: 5000,
		},
		Log: LogSettings{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load returns the defaults overlaid with the file at path. An empty path
// means DefaultPath, which may be absent; an explicit path must exist.
// Files ending in .yaml or .yml are read as YAML, everything else as JSON.
func Load(path string, logger *zap.Logger) (Settings, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	settings := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			logger.Info("no settings file found, using defaults", zap.String("path", path))
			return settings, nil
		}
		return settings, fmt.Errorf("error reading %s: %w", path, err)
	}

	// A sphere list in the file replaces the defaults entry for entry, so
	// fields a sphere omits stay zero instead of coming from a default.
	settings.Cloud.Spheres = nil
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &settings)
	default:
		err = json.Unmarshal(data, &settings)
	}
	if err != nil {
		return settings, fmt.Errorf("error parsing %s: %w", path, err)
	}
	if settings.Cloud.Spheres == nil {
		settings.Cloud.Spheres = Default().Cloud.Spheres
	}

	logger.Info("loaded settings",
		zap.String("path", path),
		zap.Int("spheres", len(settings.Cloud.Spheres)),
		zap.Int("approx_vertices", settings.ApproximateVertexCount()),
	)
	return settings, nil
}

// ApproximateVertexCount is the vertex count of the merged cloud.
func (s Settings) ApproximateVertexCount() int {
	count := 0
	for _, sp := range s.Cloud.Spheres {
		if sp.Subdivisions >= 0 && sp.Subdivisions <= MaxSubdivisions {
			count += core.VertexCount(sp.Subdivisions)
		}
	}
	return count
}

// Validate reports every problem at once.
func (s Settings) Validate() error {
	var errs []error

	if len(s.Cloud.Spheres) == 0 {
		errs = append(errs, errors.New("cloud.spheres: at least one sphere is required"))
	}
	for i, sp := range s.Cloud.Spheres {
		if err := sp.spec().Validate(); err != nil {
			errs = append(errs, fmt.Errorf("cloud.spheres[%d]: %w", i, err))
		}
		if sp.Subdivisions > MaxSubdivisions {
			errs = append(errs, fmt.Errorf("cloud.spheres[%d]: subdivisions %d exceeds maximum %d", i, sp.Subdivisions, MaxSubdivisions))
		}
	}

	if strings.TrimSpace(s.Output.Path) == "" {
		errs = append(errs, errors.New("output.path is required"))
	}
	if err := s.ObjOptions().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("output: %w", err))
	}

	if s.Server.Enabled && (s.Server.Port <= 0 || s.Server.Port > 65535) {
		errs = append(errs, fmt.Errorf("server.port %d out of range", s.Server.Port))
	}

	switch s.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", s.Log.Level))
	}
	switch s.Log.Format {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not json or console", s.Log.Format))
	}

	return errors.Join(errs...)
}

func (sp SphereSettings) spec() core.SphereSpec {
	return core.SphereSpec{
		Center:       core.Vertex(sp.Center),
		Radius:       sp.Radius,
		Subdivisions: sp.Subdivisions,
	}
}

// CloudSpec converts the cloud section into the generator input.
func (s Settings) CloudSpec() core.CloudSpec {
	spec := core.CloudSpec{
		Seed:    s.Cloud.Seed,
		Spheres: make([]core.SphereSpec, len(s.Cloud.Spheres)),
	}
	for i, sp := range s.Cloud.Spheres {
		spec.Spheres[i] = sp.spec()
	}
	return spec
}

// ObjOptions returns the header and object name for export.
func (s Settings) ObjOptions() objfile.Options {
	return objfile.Options{Header: s.Output.Header, ObjectName: s.Output.ObjectName}
}
