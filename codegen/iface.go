package codegen

import (
	"strings"

	"github.com/migueldvb/fwrap/model"
	"github.com/migueldvb/fwrap/visitor"
)

// interfaceGen renders the Fortran interface body of an original
// procedure. It reads Procedure.Args and Procedure.Return, never the
// wrapper's extern list, since the block must describe the routine as
// it was written.
type interfaceGen struct {
	v *visitor.Visitor[[]string]
}

func newInterfaceGen() *interfaceGen {
	g := &interfaceGen{v: visitor.New[[]string]()}
	g.v.Handle(model.KindProcedure, g.procedure)
	g.v.Handle(model.KindArgument, g.argument)
	return g
}

func (g *interfaceGen) procedure(n model.Node, path visitor.Path) ([]string, error) {
	p := n.(*model.Procedure)
	names := make([]string, len(p.Args))
	for i, a := range p.Args {
		names[i] = a.Name
	}
	head := p.Proc.String() + " " + p.Name + "(" + strings.Join(names, ", ") + ")"
	if p.Return != nil && !strings.EqualFold(p.Return.Name, p.Name) {
		head += " result(" + p.Return.Name + ")"
	}

	decls, err := g.v.VisitChildren(p, path)
	if err != nil {
		return nil, err
	}
	lines := []string{head}
	for _, d := range decls {
		for _, l := range d {
			lines = append(lines, "    "+l)
		}
	}
	if p.Return != nil {
		lines = append(lines, "    "+declaration(p.Return.Type)+" :: "+p.Return.Name)
	}
	return append(lines, "end "+p.Proc.String()+" "+p.Name), nil
}

func (g *interfaceGen) argument(n model.Node, _ visitor.Path) ([]string, error) {
	a := n.(*model.Argument)
	return []string{declaration(a.Type) + ", intent(" + a.Intent.String() + ") :: " + a.Name}, nil
}

// declaration renders a type with its dimension attribute.
func declaration(t model.Type) string {
	d := t.Decl()
	if t.Rank() > 0 {
		d += ", dimension(" + strings.Join(t.Dims, ", ") + ")"
	}
	return d
}
