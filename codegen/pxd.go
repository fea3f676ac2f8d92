package codegen

import (
	"github.com/migueldvb/fwrap/model"
	"github.com/migueldvb/fwrap/visitor"
)

// PxdGenerator emits the Cython declarations of every shim symbol.
type PxdGenerator struct {
	out    *codeWriter
	v      *visitor.Visitor[[]string]
	header string
}

// NewPxdGenerator returns a generator whose extern block refers to header.
func NewPxdGenerator(header string) *PxdGenerator {
	g := &PxdGenerator{out: newCWriter(), v: visitor.New[[]string](), header: header}
	g.v.Handle(model.KindProgramUnit, g.unit)
	g.v.Handle(model.KindWrapper, func(n model.Node, _ visitor.Path) ([]string, error) {
		return []string{prototypeOf(n.(*model.Wrapper)).render(cythonType, "")}, nil
	})
	return g
}

func (g *PxdGenerator) unit(n model.Node, path visitor.Path) ([]string, error) {
	parts, err := g.v.VisitChildren(n, path)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out, nil
}

// Generate renders root into the output buffer and returns the buffer.
// On error the buffer is left as it was.
func (g *PxdGenerator) Generate(root model.Node) (string, error) {
	decls, err := g.v.Visit(root, nil)
	if err != nil {
		return "", err
	}
	g.out.Linef(`cdef extern from "%s":`, g.header)
	g.out.Indent()
	if len(decls) == 0 {
		g.out.Linef("pass")
	}
	g.out.Lines(decls)
	g.out.Dedent()
	return g.out.String(), nil
}
