package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"cloudgenerator/cloud"
	"cloudgenerator/objfile"
)

type report struct {
	Path       string      `json:"path"`
	ObjectName string      `json:"objectName"`
	Comments   []string    `json:"comments"`
	Stats      cloud.Stats `json:"stats"`
	Closed     bool        `json:"closed"`
}

func main() {
	asJSON := flag.Bool("json", false, "Print the report as JSON")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: objinspect [-json] file.obj...")
		os.Exit(2)
	}

	failed := false
	for _, path := range flag.Args() {
		r, err := inspect(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			failed = true
			continue
		}
		if err := printReport(os.Stdout, r, *asJSON); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func inspect(path string) (report, error) {
	doc, err := objfile.ReadFile(path)
	if err != nil {
		return report{}, err
	}

	// A union of closed shells has every edge shared by exactly two faces.
	edges := make(map[[2]int]int)
	for _, f := range doc.Mesh.Faces {
		for k := 0; k < 3; k++ {
			a, b := f[k], f[(k+1)%3]
			if a > b {
				a, b = b, a
			}
			edges[[2]int{a, b}]++
		}
	}
	closed := len(doc.Mesh.Faces) > 0
	for _, n := range edges {
		if n != 2 {
			closed = false
			break
		}
	}

	return report{
		Path:       path,
		ObjectName: doc.ObjectName,
		Comments:   doc.Comments,
		Stats:      cloud.StatsOf(doc.Mesh, 0),
		Closed:     closed,
	}, nil
}

func printReport(w io.Writer, r report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	_, err := fmt.Fprintf(w, "%s (object %q)\n  vertices: %d\n  faces:    %d\n  closed:   %v\n  bounds:   [%.4f %.4f %.4f] .. [%.4f %.4f %.4f]\n",
		r.Path, r.ObjectName, r.Stats.Vertices, r.Stats.Faces, r.Closed,
		r.Stats.Bounds.Min[0], r.Stats.Bounds.Min[1], r.Stats.Bounds.Min[2],
		r.Stats.Bounds.Max[0], r.Stats.Bounds.Max[1], r.Stats.Bounds.Max[2])
	return err
}
