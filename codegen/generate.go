// Package codegen turns wrappers into the three generated artifacts: the
// Fortran bind(c) shim, the C header and the Cython pxd. Each artifact is
// produced by its own visitor pass over the same tree.
package codegen

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/migueldvb/fwrap/model"
)

// File names of the artifacts for a wrapper named name.
func ShimFile(name string) string   { return name + "_fc.f90" }
func HeaderFile(name string) string { return name + "_fc.h" }
func PxdFile(name string) string    { return name + "_fc.pxd" }

// Options control artifact text outside the generated declarations.
type Options struct {
	// Record is inserted verbatim after the first line of the shim. The
	// change tracker stores its generation record there.
	Record string
}

// Artifacts holds the generated text of one wrapper set.
type Artifacts struct {
	Name   string
	Shim   string
	Header string
	Pxd    string
}

// Generate runs the shim, header and pxd generators over root. The first
// generator error is returned unchanged and no artifacts are produced.
func Generate(name string, root model.Node, opts Options) (*Artifacts, error) {
	shim, err := NewShimGenerator().Generate(root)
	if err != nil {
		return nil, err
	}
	header, err := NewHeaderGenerator(HeaderFile(name)).Generate(root)
	if err != nil {
		return nil, err
	}
	pxd, err := NewPxdGenerator(HeaderFile(name)).Generate(root)
	if err != nil {
		return nil, err
	}
	return &Artifacts{
		Name:   name,
		Shim:   "! " + ShimFile(name) + ": generated by fwrap, do not edit\n" + opts.Record + "\n" + shim,
		Header: "/* " + HeaderFile(name) + ": generated by fwrap, do not edit */\n" + header,
		Pxd:    "# " + PxdFile(name) + ": generated by fwrap, do not edit\n\n" + pxd,
	}, nil
}

// File is one generated file.
type File struct {
	Name    string
	Content string
}

// Files lists the artifacts, shim first.
func (a *Artifacts) Files() []File {
	return []File{
		{ShimFile(a.Name), a.Shim},
		{HeaderFile(a.Name), a.Header},
		{PxdFile(a.Name), a.Pxd},
	}
}

// WriteTo writes the artifacts into dir and returns the written paths.
func (a *Artifacts) WriteTo(dir string) ([]string, error) {
	var paths []string
	for _, f := range a.Files() {
		path := filepath.Join(dir, f.Name)
		if err := os.WriteFile(path, []byte(f.Content), 0644); err != nil {
			return paths, fmt.Errorf("writing %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
