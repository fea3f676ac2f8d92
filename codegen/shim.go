package codegen

import (
	"strings"

	"github.com/migueldvb/fwrap/model"
	"github.com/migueldvb/fwrap/visitor"
)

// ShimGenerator emits the Fortran bind(c) shim, one procedure per wrapper.
type ShimGenerator struct {
	out   *codeWriter
	v     *visitor.Visitor[string]
	iface *interfaceGen
}

// NewShimGenerator returns a generator with an empty output buffer.
func NewShimGenerator() *ShimGenerator {
	g := &ShimGenerator{
		out:   newFortranWriter(),
		v:     visitor.New[string](),
		iface: newInterfaceGen(),
	}
	g.v.Handle(model.KindProgramUnit, g.unit)
	g.v.Handle(model.KindWrapper, g.wrapper)
	return g
}

// Generate renders root into the output buffer and returns the buffer.
// On error the buffer is left as it was.
func (g *ShimGenerator) Generate(root model.Node) (string, error) {
	text, err := g.v.Visit(root, nil)
	if err != nil {
		return "", err
	}
	g.out.Raw(text)
	return g.out.String(), nil
}

func (g *ShimGenerator) unit(n model.Node, path visitor.Path) (string, error) {
	parts, err := g.v.VisitChildren(n, path)
	if err != nil {
		return "", err
	}
	return strings.Join(parts, "\n"), nil
}

// wrapper emits one shim procedure. The section order is fixed:
// declaration, preamble, interface, temporaries, pre-call, call,
// post-call, end.
func (g *ShimGenerator) wrapper(n model.Node, path visitor.Path) (string, error) {
	wr := n.(*model.Wrapper)
	p := wr.Wrapped
	w := newFortranWriter()

	kind := p.Proc.String()
	ext := wr.ExternArgs()
	names := make([]string, len(ext))
	for i, e := range ext {
		names[i] = e.Name
	}
	head := kind + " " + wr.Name() + "(" + strings.Join(names, ", ") + `) bind(c, name="` + Symbol(wr) + `")`
	if r := wr.Result(); r != nil {
		head += " result(" + r.Name + ")"
	}
	w.Linef("%s", head)
	w.Indent()

	if p.Module != "" {
		w.Linef("use %s, only: %s", p.Module, p.Name)
	}
	w.Linef("use iso_c_binding")
	w.Linef("implicit none")
	for _, e := range ext {
		w.Linef("%s :: %s", e.Decl, e.Name)
	}
	if r := wr.Result(); r != nil {
		w.Linef("%s :: %s", r.Decl, r.Name)
	}

	// Module procedures already have an explicit interface through use.
	if p.Module == "" {
		body, err := g.iface.v.Visit(p, path)
		if err != nil {
			return "", err
		}
		w.Linef("interface")
		w.Indent()
		w.Lines(body)
		w.Dedent()
		w.Linef("end interface")
	}

	for _, t := range wr.TempDecls() {
		w.Linef("%s :: %s", t.Decl, t.Name)
	}
	w.Lines(wr.PreCall())
	w.Linef("%s", wr.Call())
	w.Lines(wr.PostCall())

	w.Dedent()
	w.Linef("end %s %s", kind, wr.Name())
	return w.String(), nil
}
