package fparser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/migueldvb/fwrap/model"
)

// namedKinds resolves the kind parameters commonly spelled by name.
// Anything else is kept unresolved and the argument becomes unwrappable.
var namedKinds = map[string]int{
	"c_int": 4, "c_long": 8, "c_long_long": 8, "c_short": 2, "c_signed_char": 1,
	"c_int8_t": 1, "c_int16_t": 2, "c_int32_t": 4, "c_int64_t": 8,
	"c_float": 4, "c_double": 8, "c_float_complex": 4, "c_double_complex": 8,
	"c_bool": 1, "c_char": 1,
	"int8": 1, "int16": 2, "int32": 4, "int64": 8, "i4": 4, "i8": 8,
	"real32": 4, "real64": 8, "sp": 4, "dp": 8, "wp": 8,
	"kind(1.0)": 4, "kind(1.0e0)": 4, "kind(0.0)": 4,
	"kind(1.d0)": 8, "kind(0.d0)": 8, "kind(1.0d0)": 8, "kind(0.0d0)": 8,
}

var (
	reDouble    = regexp.MustCompile(`^double\s*(precision|complex)\b`)
	reIntrinsic = regexp.MustCompile(`^(integer|real|complex|logical|character)\b`)
	reDerived   = regexp.MustCompile(`^(type|class)\s*\(\s*([a-z_*]\w*)\s*\)`)
	reStarLen   = regexp.MustCompile(`^\*\s*(\d+|\(\s*[^)]*\))`)
)

var intrinsicBase = map[string]model.BaseType{
	"integer":   model.Integer,
	"real":      model.Real,
	"complex":   model.Complex,
	"logical":   model.Logical,
	"character": model.Character,
}

// parseTypeSpec reads a type specification at the start of s and returns
// it with the remaining text.
func parseTypeSpec(s string) (model.Type, string, bool) {
	if m := reDouble.FindStringSubmatch(s); m != nil {
		t := model.Type{Base: model.Real, Kind: 8}
		if m[1] == "complex" {
			t.Base = model.Complex
		}
		return t, strings.TrimSpace(s[len(m[0]):]), true
	}
	if m := reDerived.FindStringSubmatch(s); m != nil {
		return model.Type{Base: model.Derived, Name: m[2]}, strings.TrimSpace(s[len(m[0]):]), true
	}
	m := reIntrinsic.FindStringSubmatch(s)
	if m == nil {
		return model.Type{}, s, false
	}
	t := model.Type{Base: intrinsicBase[m[1]]}
	rest := strings.TrimLeft(s[len(m[0]):], " ")

	if sm := reStarLen.FindStringSubmatch(rest); sm != nil {
		val := strings.Trim(strings.TrimSpace(sm[1]), "() ")
		if t.Base == model.Character {
			t.Len = val
		} else {
			t.Kind = starKind(t.Base, val)
		}
		return t, strings.TrimSpace(rest[len(sm[0]):]), true
	}
	if strings.HasPrefix(rest, "(") {
		end := matchParen(rest, 0)
		if end < 0 {
			return model.Type{}, s, false
		}
		applySelector(&t, rest[1:end])
		rest = rest[end+1:]
	}
	if t.Base == model.Character && t.Len == "" {
		t.Len = "1"
	}
	return t, strings.TrimSpace(rest), true
}

// starKind converts the old-style byte size of real*8 or complex*16 to a
// kind parameter.
func starKind(base model.BaseType, val string) int {
	n, err := strconv.Atoi(val)
	if err != nil {
		return -1
	}
	if base == model.Complex {
		return n / 2
	}
	return n
}

// applySelector interprets the contents of a type's parenthesised
// selector: "8", "kind=8", "len=*", "len=n, kind=c_char", "*".
func applySelector(t *model.Type, sel string) {
	for i, item := range splitTopLevel(sel, ',') {
		item = strings.TrimSpace(item)
		key, val, named := strings.Cut(item, "=")
		if !named {
			key, val = "", item
			if t.Base == model.Character && i == 0 {
				key = "len"
			} else {
				key = "kind"
			}
		}
		key, val = strings.TrimSpace(key), strings.ReplaceAll(strings.TrimSpace(val), " ", "")
		switch key {
		case "len":
			t.Len = val
		case "kind":
			if n, ok := resolveKind(val); ok {
				t.Kind = n
			} else {
				t.Kind, t.KindExpr = -1, val
			}
		}
	}
}

func resolveKind(val string) (int, bool) {
	if n, err := strconv.Atoi(val); err == nil {
		return n, true
	}
	n, ok := namedKinds[val]
	return n, ok
}

// implicitType applies the default implicit typing rule: names starting
// with i through n are integer, everything else real.
func implicitType(name string) model.Type {
	if c := name[0]; c >= 'i' && c <= 'n' {
		return model.Type{Base: model.Integer}
	}
	return model.Type{Base: model.Real}
}
