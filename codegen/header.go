package codegen

import (
	"strings"

	"github.com/migueldvb/fwrap/model"
	"github.com/migueldvb/fwrap/visitor"
)

// HeaderGenerator emits the C header declaring every shim symbol.
type HeaderGenerator struct {
	out   *codeWriter
	v     *visitor.Visitor[string]
	guard string
}

// NewHeaderGenerator returns a generator for the header named file.
func NewHeaderGenerator(file string) *HeaderGenerator {
	g := &HeaderGenerator{out: newCWriter(), v: visitor.New[string](), guard: includeGuard(file)}
	g.v.Handle(model.KindProgramUnit, g.unit)
	g.v.Handle(model.KindWrapper, func(n model.Node, _ visitor.Path) (string, error) {
		return prototypeOf(n.(*model.Wrapper)).render(cType, "void") + ";\n", nil
	})
	return g
}

func (g *HeaderGenerator) unit(n model.Node, path visitor.Path) (string, error) {
	parts, err := g.v.VisitChildren(n, path)
	if err != nil {
		return "", err
	}
	return strings.Join(parts, ""), nil
}

// Generate renders root into the output buffer and returns the buffer.
// On error the buffer is left as it was.
func (g *HeaderGenerator) Generate(root model.Node) (string, error) {
	body, err := g.v.Visit(root, nil)
	if err != nil {
		return "", err
	}
	g.out.Linef("#ifndef %s", g.guard)
	g.out.Linef("#define %s", g.guard)
	g.out.Linef("")
	g.out.Raw(body)
	if body != "" {
		g.out.Linef("")
	}
	g.out.Linef("#endif")
	return g.out.String(), nil
}

func includeGuard(file string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		}
		return '_'
	}, file)
}
