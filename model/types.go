package model

import (
	"fmt"
	"strconv"
	"strings"
)

// BaseType is the intrinsic Fortran type of an argument.
type BaseType int

const (
	Integer BaseType = iota
	Real
	Complex
	Logical
	Character
	Derived
)

func (b BaseType) String() string {
	switch b {
	case Integer:
		return "integer"
	case Real:
		return "real"
	case Complex:
		return "complex"
	case Logical:
		return "logical"
	case Character:
		return "character"
	case Derived:
		return "type"
	default:
		return "unknown"
	}
}

// Intent is the declared data flow direction of a dummy argument.
type Intent int

const (
	IntentInOut Intent = iota // also used when no intent is declared
	IntentIn
	IntentOut
)

func (i Intent) String() string {
	switch i {
	case IntentIn:
		return "in"
	case IntentOut:
		return "out"
	default:
		return "inout"
	}
}

// ParseIntent converts the text inside intent(...) to an Intent.
func ParseIntent(s string) (Intent, error) {
	switch strings.ToLower(strings.ReplaceAll(s, " ", "")) {
	case "in":
		return IntentIn, nil
	case "out":
		return IntentOut, nil
	case "inout", "":
		return IntentInOut, nil
	}
	return IntentInOut, fmt.Errorf("unknown intent %q", s)
}

// In reports whether the value flows into the procedure.
func (i Intent) In() bool { return i != IntentOut }

// Out reports whether the value flows back to the caller.
func (i Intent) Out() bool { return i != IntentIn }

// Type is a declared Fortran type.
type Type struct {
	Base BaseType
	// Kind is the kind parameter in bytes; 0 means the default kind and
	// -1 a kind expression that could not be resolved (see KindExpr).
	Kind     int
	KindExpr string
	// Len is the character length expression ("*", "10", "n").
	Len string
	// Name is the derived type name for Derived.
	Name string
	// Dims holds one extent expression per dimension (":" for assumed
	// shape). Empty for scalars.
	Dims []string
}

// Rank returns the number of dimensions.
func (t Type) Rank() int { return len(t.Dims) }

// Decl renders the type as it appears in a Fortran declaration, without
// attributes.
func (t Type) Decl() string {
	switch t.Base {
	case Character:
		if t.Len == "" {
			return "character"
		}
		return "character(len=" + t.Len + ")"
	case Derived:
		return "type(" + t.Name + ")"
	}
	if t.KindExpr != "" {
		return t.Base.String() + "(kind=" + t.KindExpr + ")"
	}
	if t.Kind == 0 {
		return t.Base.String()
	}
	return t.Base.String() + "(kind=" + strconv.Itoa(t.Kind) + ")"
}

// Tier classifies how an argument type crosses the C boundary.
type Tier int

const (
	TierDirect  Tier = iota // interoperable as is
	TierTemp                // needs a temporary and conversion code
	TierBlocked             // cannot be wrapped
)

func (t Tier) String() string {
	switch t {
	case TierDirect:
		return "direct"
	case TierTemp:
		return "temp"
	case TierBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// interop is the iso_c_binding kind and C spelling of a type.
type interop struct {
	fortran string // e.g. "real(c_double)"
	c       string // e.g. "double"
}

var interopTable = map[BaseType]map[int]interop{
	Integer: {
		0: {"integer(c_int)", "int"},
		1: {"integer(c_signed_char)", "signed char"},
		2: {"integer(c_short)", "short"},
		4: {"integer(c_int)", "int"},
		8: {"integer(c_long_long)", "long long"},
	},
	Real: {
		0: {"real(c_float)", "float"},
		4: {"real(c_float)", "float"},
		8: {"real(c_double)", "double"},
	},
	Complex: {
		0: {"complex(c_float_complex)", "float _Complex"},
		4: {"complex(c_float_complex)", "float _Complex"},
		8: {"complex(c_double_complex)", "double _Complex"},
	},
	Logical: {
		0: {"integer(c_int)", "int"},
		1: {"integer(c_int)", "int"},
		2: {"integer(c_int)", "int"},
		4: {"integer(c_int)", "int"},
		8: {"integer(c_int)", "int"},
	},
	Character: {
		0: {"character(kind=c_char)", "char"},
		1: {"character(kind=c_char)", "char"},
	},
}

// Classify reports how the type crosses the boundary and, for blocked
// types, why.
func (t Type) Classify() (Tier, string) {
	if t.Base == Derived {
		return TierBlocked, "derived type " + t.Name
	}
	if _, ok := interopTable[t.Base][t.Kind]; !ok {
		return TierBlocked, fmt.Sprintf("%s has no C interoperable kind", t.Decl())
	}
	switch t.Base {
	case Character:
		if t.Rank() > 0 {
			return TierBlocked, "character arrays"
		}
		return TierTemp, ""
	case Logical:
		return TierTemp, ""
	}
	return TierDirect, ""
}

// CInterop returns the iso_c_binding declaration type and the C type name.
// It must only be called on types that are not blocked.
func (t Type) CInterop() (fortran, c string) {
	ip := interopTable[t.Base][t.Kind]
	return ip.fortran, ip.c
}
