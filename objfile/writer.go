// Package objfile reads and writes the subset of the Wavefront OBJ format
// produced by the cloud generator: one comment header, one object name,
// vertex positions and triangle faces.
package objfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"cloudgenerator/core"
)

const (
	DefaultHeader     = "Low Poly Cloud OBJ"
	DefaultObjectName = "Cloud"
)

// Options controls the non-geometry lines of the output.
type Options struct {
	Header     string
	ObjectName string
}

// DefaultOptions returns the header and object name of the stock cloud.
func DefaultOptions() Options {
	return Options{Header: DefaultHeader, ObjectName: DefaultObjectName}
}

// Validate checks that both fields fit on one line and that the object
// has a name.
func (o Options) Validate() error {
	if strings.ContainsAny(o.Header, "\r\n") {
		return errors.New("header must be a single line")
	}
	if strings.TrimSpace(o.ObjectName) == "" {
		return errors.New("object name is required")
	}
	if strings.ContainsAny(o.ObjectName, "\r\n") {
		return errors.New("object name must be a single line")
	}
	return nil
}

// Encode writes m to w. Face indices are written 1-based.
func Encode(w io.Writer, m core.Mesh, opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("refusing to encode invalid mesh: %w", err)
	}

	bw, ok := w.(*bufio.Writer)
	if !ok {
		bw = bufio.NewWriter(w)
	}

	if _, err := fmt.Fprintf(bw, "# %s\no %s\n", opts.Header, opts.ObjectName); err != nil {
		return err
	}

	line := make([]byte, 0, 64)
	for _, v := range m.Vertices {
		line = append(line[:0], 'v')
		for _, c := range v {
			line = append(line, ' ')
			line = strconv.AppendFloat(line, c, 'f', 4, 64)
		}
		line = append(line, '\n')
		if _, err := bw.Write(line); err != nil {
			return err
		}
	}

	for _, f := range m.Faces {
		line = append(line[:0], 'f')
		for _, idx := range f {
			line = append(line, ' ')
			line = strconv.AppendInt(line, int64(idx+1), 10)
		}
		line = append(line, '\n')
		if _, err := bw.Write(line); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// WriteFile encodes m into the file at path, creating or truncating it.
// Invalid options or an invalid mesh leave an existing file untouched.
// The file is closed on every path; a failed write leaves whatever was
// already flushed on disk.
func WriteFile(path string, m core.Mesh, opts Options) (err error) {
	if err := opts.Validate(); err != nil {
		return fmt.Errorf("could not write OBJ file %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("could not write OBJ file %s: refusing to encode invalid mesh: %w", path, err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create OBJ file %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("could not close OBJ file %s: %w", path, cerr)
		}
	}()

	if err := Encode(file, m, opts); err != nil {
		return fmt.Errorf("could not write OBJ file %s: %w", path, err)
	}
	return nil
}
