package objfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"cloudgenerator/core"
)

// ParseError reports a malformed line.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("obj: line %d: %s", e.Line, e.Msg)
}

// Document is a decoded OBJ file.
type Document struct {
	Comments   []string
	ObjectName string
	Mesh       core.Mesh
}

// Decode parses an OBJ stream. Face indices are converted to 0-based;
// negative (relative) indices are resolved against the vertices read so
// far. Texture and normal references in faces ("1/2/3") are ignored.
func Decode(r io.Reader) (Document, error) {
	var doc Document
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			doc.Comments = append(doc.Comments, strings.TrimSpace(line[1:]))
			continue
		}

		parts := strings.Fields(line)
		ident, val := parts[0], parts[1:]
		switch ident {
		case "o":
			if doc.ObjectName != "" {
				return doc, &ParseError{lineNo, "more than one object declaration"}
			}
			if len(val) == 0 {
				return doc, &ParseError{lineNo, "object declaration without a name"}
			}
			doc.ObjectName = strings.Join(val, " ")
		case "v":
			if len(val) != 3 {
				return doc, &ParseError{lineNo, fmt.Sprintf("vertex needs 3 coordinates, got %d", len(val))}
			}
			var v core.Vertex
			for i, s := range val {
				c, err := strconv.ParseFloat(s, 64)
				if err != nil {
					return doc, &ParseError{lineNo, fmt.Sprintf("bad coordinate %q", s)}
				}
				v[i] = c
			}
			doc.Mesh.Vertices = append(doc.Mesh.Vertices, v)
		case "f":
			if len(val) != 3 {
				return doc, &ParseError{lineNo, fmt.Sprintf("face needs 3 indices, got %d", len(val))}
			}
			var f core.Face
			for i, s := range val {
				idx, err := strconv.Atoi(strings.SplitN(s, "/", 2)[0])
				if err != nil {
					return doc, &ParseError{lineNo, fmt.Sprintf("bad index %q", s)}
				}
				switch {
				case idx > 0:
					f[i] = idx - 1
				case idx < 0:
					f[i] = len(doc.Mesh.Vertices) + idx
				default:
					return doc, &ParseError{lineNo, "index 0 is not valid in OBJ"}
				}
			}
			doc.Mesh.Faces = append(doc.Mesh.Faces, f)
		default:
			return doc, &ParseError{lineNo, fmt.Sprintf("unsupported record %q", ident)}
		}
	}
	if err := scanner.Err(); err != nil {
		return doc, fmt.Errorf("obj: line %d: %w", lineNo+1, err)
	}

	if err := doc.Mesh.Validate(); err != nil {
		return doc, fmt.Errorf("obj: %w", err)
	}
	return doc, nil
}

// ReadFile decodes the OBJ file at path.
func ReadFile(path string) (Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return Document{}, err
	}
	defer file.Close()

	doc, err := Decode(file)
	if err != nil {
		return doc, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}
