package model

import (
	"fmt"
	"strings"
)

// ProcKind distinguishes functions from subroutines.
type ProcKind int

const (
	Subroutine ProcKind = iota
	Function
)

func (k ProcKind) String() string {
	if k == Function {
		return "function"
	}
	return "subroutine"
}

// Argument is one dummy argument of a procedure. It is owned by exactly
// one Procedure.
type Argument struct {
	Name   string
	Type   Type
	Intent Intent
}

func (a *Argument) Kind() Kind { return KindArgument }

// NeedsTemp reports whether the argument is passed through a temporary
// in the shim (character length companions, logical conversion).
func (a *Argument) NeedsTemp() bool {
	tier, _ := a.Type.Classify()
	return tier == TierTemp
}

// Procedure is one wrapped Fortran routine as produced by the parser.
type Procedure struct {
	Name   string
	Proc   ProcKind
	Args   []*Argument
	Return *Argument // set iff Proc == Function; never one of Args
	Module string    // enclosing Fortran module, empty for external procedures
	File   string    // source file the procedure was parsed from
}

func (p *Procedure) Kind() Kind {
	if p.Proc == Function {
		return KindFunction
	}
	return KindSubroutine
}

// Content exposes the arguments so a procedure can be traversed like any
// other program unit.
func (p *Procedure) Content() []Node {
	nodes := make([]Node, len(p.Args))
	for i, a := range p.Args {
		nodes[i] = a
	}
	return nodes
}

// Validate checks the structural invariants the generators rely on.
func (p *Procedure) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("procedure without a name")
	}
	switch p.Proc {
	case Function:
		if p.Return == nil {
			return fmt.Errorf("function %s has no result", p.Name)
		}
		for _, a := range p.Args {
			if a == p.Return || strings.EqualFold(a.Name, p.Return.Name) {
				return fmt.Errorf("function %s: result %s is also a dummy argument", p.Name, p.Return.Name)
			}
		}
	case Subroutine:
		if p.Return != nil {
			return fmt.Errorf("subroutine %s has a result", p.Name)
		}
	}
	seen := make(map[string]bool, len(p.Args))
	for _, a := range p.Args {
		key := strings.ToLower(a.Name)
		if seen[key] {
			return fmt.Errorf("%s: duplicate argument %s", p.Name, a.Name)
		}
		seen[key] = true
	}
	return nil
}
