package codegen

import (
	"strings"

	"github.com/migueldvb/fwrap/model"
)

// Symbol is the C-visible name of a wrapper. The shim's bind(c) label,
// the header prototype and the pxd declaration all come from here so the
// three artifacts cannot disagree.
func Symbol(w *model.Wrapper) string {
	return w.Wrapped.Name
}

// Param is one C parameter.
type Param struct {
	Type string // element type; parameters are always pointers
	Name string
}

// Prototype is the C signature of a wrapper, shared by the header and
// pxd generators.
type Prototype struct {
	Return string
	Symbol string
	Params []Param
}

func prototypeOf(w *model.Wrapper) Prototype {
	p := Prototype{Return: "void", Symbol: Symbol(w)}
	if r := w.Result(); r != nil {
		p.Return = r.CType
	}
	for _, e := range w.ExternArgs() {
		p.Params = append(p.Params, Param{Type: e.CType, Name: e.Name})
	}
	return p
}

// render formats the prototype with typeName mapping each C type to the
// target language spelling. noParams is written for an empty list.
func (p Prototype) render(typeName func(string) string, noParams string) string {
	params := make([]string, len(p.Params))
	for i, prm := range p.Params {
		params[i] = typeName(prm.Type) + " *" + prm.Name
	}
	if len(params) == 0 {
		params = []string{noParams}
	}
	return typeName(p.Return) + " " + p.Symbol + "(" + strings.Join(params, ", ") + ")"
}

func cType(t string) string { return t }

var cythonTypes = map[string]string{
	"float _Complex":  "float complex",
	"double _Complex": "double complex",
}

func cythonType(t string) string {
	if ct, ok := cythonTypes[t]; ok {
		return ct
	}
	return t
}
