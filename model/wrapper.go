package model

import (
	"fmt"
	"strings"
)

// ResultName is the name of the C-visible function result in the shim.
const ResultName = "fw_result"

// ExternArg is one parameter of the C-visible shim signature. Companion
// parameters (array shapes, string lengths) have a nil Arg.
type ExternArg struct {
	Name string
	// Decl is the Fortran declaration left of "::" in the shim.
	Decl string
	// CType is the C spelling of the element type. Shim dummies are passed
	// by reference so the C parameter is always a pointer to CType.
	CType string
	Arg   *Argument
}

// TempVar is a local declared in the shim to convert an argument.
type TempVar struct {
	Name string
	Decl string
}

// BlockedError reports a procedure that cannot be wrapped.
type BlockedError struct {
	Proc   string
	Arg    string
	Reason string
}

func (e *BlockedError) Error() string {
	if e.Arg == "" {
		return fmt.Sprintf("%s: %s", e.Proc, e.Reason)
	}
	return fmt.Sprintf("%s: argument %s: %s", e.Proc, e.Arg, e.Reason)
}

// Wrapper is the generated-side procedure bound to one wrapped Procedure.
// It references the procedure without owning it; every view below is
// derived from the wrapped arguments and their intents.
type Wrapper struct {
	Wrapped *Procedure
}

// NewWrapper validates p and checks that every argument can cross the C
// boundary. A *BlockedError is returned for unsupported types.
func NewWrapper(p *Procedure) (*Wrapper, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	for _, a := range p.Args {
		if tier, reason := a.Type.Classify(); tier == TierBlocked {
			return nil, &BlockedError{Proc: p.Name, Arg: a.Name, Reason: reason}
		}
	}
	if r := p.Return; r != nil {
		tier, reason := r.Type.Classify()
		switch {
		case tier == TierBlocked:
			return nil, &BlockedError{Proc: p.Name, Reason: "result: " + reason}
		case r.Type.Base == Character:
			return nil, &BlockedError{Proc: p.Name, Reason: "character function results"}
		case r.Type.Rank() > 0:
			return nil, &BlockedError{Proc: p.Name, Reason: "array function results"}
		}
	}
	w := &Wrapper{Wrapped: p}
	if err := w.checkNames(); err != nil {
		return nil, err
	}
	return w, nil
}

// checkNames rejects wrappers whose companion, temporary or result names
// coincide with a dummy argument or with each other.
func (w *Wrapper) checkNames() error {
	names := []string{w.Wrapped.Name, w.Name()}
	for _, e := range w.ExternArgs() {
		names = append(names, e.Name)
	}
	for _, t := range w.TempDecls() {
		names = append(names, t.Name)
	}
	if r := w.Result(); r != nil {
		names = append(names, r.Name)
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		key := strings.ToLower(n)
		if seen[key] {
			return &BlockedError{Proc: w.Wrapped.Name, Arg: n, Reason: "name clashes with a generated shim variable"}
		}
		seen[key] = true
	}
	return nil
}

// WrapAll builds wrappers for procs in order, leaving out the names for
// which exclude returns true. Unsupported procedures are collected as
// BlockedErrors instead of failing the set; any other error is returned.
func WrapAll(procs []*Procedure, exclude func(name string) bool) ([]*Wrapper, []*BlockedError, error) {
	var (
		wrappers []*Wrapper
		blocked  []*BlockedError
	)
	for _, p := range procs {
		if exclude != nil && exclude(p.Name) {
			continue
		}
		w, err := NewWrapper(p)
		if b, ok := err.(*BlockedError); ok {
			blocked = append(blocked, b)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		wrappers = append(wrappers, w)
	}
	return wrappers, blocked, nil
}

func (w *Wrapper) Kind() Kind {
	if w.Wrapped.Proc == Function {
		return KindFunctionWrapper
	}
	return KindSubroutineWrapper
}

// Name is the Fortran-level name of the shim procedure. The C-visible
// symbol is the wrapped name; see codegen.Symbol.
func (w *Wrapper) Name() string { return w.Wrapped.Name + "_c" }

func shapeName(a *Argument) string { return a.Name + "_shape" }
func lenName(a *Argument) string   { return a.Name + "_len" }
func tempName(a *Argument) string  { return "fw_" + a.Name }

func shapeDims(a *Argument) string {
	dims := make([]string, a.Type.Rank())
	for i := range dims {
		dims[i] = fmt.Sprintf("%s(%d)", shapeName(a), i+1)
	}
	return strings.Join(dims, ", ")
}

// ExternArgs returns the C-visible parameter list. Arrays are preceded by
// a shape companion and character scalars by a length companion, so the
// list can be longer than Wrapped.Args.
func (w *Wrapper) ExternArgs() []ExternArg {
	var out []ExternArg
	for _, a := range w.Wrapped.Args {
		ftype, ctype := a.Type.CInterop()
		intent := ", intent(" + a.Intent.String() + ")"
		switch {
		case a.Type.Base == Character:
			out = append(out,
				ExternArg{Name: lenName(a), Decl: "integer(c_int), intent(in)", CType: "int"},
				ExternArg{Name: a.Name, Decl: ftype + ", dimension(" + lenName(a) + ")" + intent, CType: ctype, Arg: a},
			)
		case a.Type.Rank() > 0:
			out = append(out,
				ExternArg{Name: shapeName(a), Decl: fmt.Sprintf("integer(c_long), dimension(%d), intent(in)", a.Type.Rank()), CType: "long"},
				ExternArg{Name: a.Name, Decl: ftype + ", dimension(" + shapeDims(a) + ")" + intent, CType: ctype, Arg: a},
			)
		default:
			out = append(out, ExternArg{Name: a.Name, Decl: ftype + intent, CType: ctype, Arg: a})
		}
	}
	return out
}

// Result returns the C-visible function result, or nil for subroutines.
func (w *Wrapper) Result() *ExternArg {
	r := w.Wrapped.Return
	if r == nil {
		return nil
	}
	ftype, ctype := r.Type.CInterop()
	return &ExternArg{Name: ResultName, Decl: ftype, CType: ctype, Arg: r}
}

// TempDecls lists the shim locals needed to convert arguments.
func (w *Wrapper) TempDecls() []TempVar {
	var out []TempVar
	for _, a := range w.Wrapped.Args {
		switch {
		case a.Type.Base == Character:
			out = append(out, TempVar{Name: tempName(a), Decl: "character(len=" + lenName(a) + ")"})
		case a.Type.Base == Logical && a.Type.Rank() > 0:
			out = append(out, TempVar{Name: tempName(a), Decl: scalarDecl(a.Type) + ", dimension(" + shapeDims(a) + ")"})
		case a.Type.Base == Logical:
			out = append(out, TempVar{Name: tempName(a), Decl: scalarDecl(a.Type)})
		}
	}
	if r := w.Wrapped.Return; r != nil && r.Type.Base == Logical {
		out = append(out, TempVar{Name: tempName(r), Decl: scalarDecl(r.Type)})
	}
	return out
}

func scalarDecl(t Type) string {
	t.Dims = nil
	return t.Decl()
}

// PreCall returns the statements that convert inbound values into
// temporaries before the call.
func (w *Wrapper) PreCall() []string {
	var out []string
	for _, a := range w.Wrapped.Args {
		if !a.NeedsTemp() || !a.Intent.In() {
			continue
		}
		switch a.Type.Base {
		case Character:
			out = append(out, fmt.Sprintf("%s = transfer(%s, %s)", tempName(a), a.Name, tempName(a)))
		case Logical:
			out = append(out, fmt.Sprintf("%s = %s /= 0", tempName(a), a.Name))
		}
	}
	return out
}

// PostCall returns the statements that copy temporaries back to outbound
// arguments and the function result after the call.
func (w *Wrapper) PostCall() []string {
	var out []string
	for _, a := range w.Wrapped.Args {
		if !a.NeedsTemp() || !a.Intent.Out() {
			continue
		}
		switch a.Type.Base {
		case Character:
			out = append(out, fmt.Sprintf("%s = transfer(%s, %s)", a.Name, tempName(a), a.Name))
		case Logical:
			out = append(out, fmt.Sprintf("%s = merge(1, 0, %s)", a.Name, tempName(a)))
		}
	}
	if r := w.Wrapped.Return; r != nil && r.Type.Base == Logical {
		out = append(out, fmt.Sprintf("%s = merge(1, 0, %s)", ResultName, tempName(r)))
	}
	return out
}

// CallArgs returns the actual arguments passed to the wrapped procedure,
// substituting temporaries where one exists.
func (w *Wrapper) CallArgs() []string {
	out := make([]string, len(w.Wrapped.Args))
	for i, a := range w.Wrapped.Args {
		if a.NeedsTemp() {
			out[i] = tempName(a)
		} else {
			out[i] = a.Name
		}
	}
	return out
}

// ResultSlot is the variable a function call is assigned to.
func (w *Wrapper) ResultSlot() string {
	r := w.Wrapped.Return
	if r == nil {
		return ""
	}
	if r.NeedsTemp() {
		return tempName(r)
	}
	return ResultName
}

// Call renders the invocation of the wrapped procedure: a bare call for
// subroutines, an assignment into the result slot for functions.
func (w *Wrapper) Call() string {
	inv := w.Wrapped.Name + "(" + strings.Join(w.CallArgs(), ", ") + ")"
	if w.Wrapped.Proc == Function {
		return w.ResultSlot() + " = " + inv
	}
	return "call " + inv
}
