// Package fparser reads the procedure interfaces of free-form Fortran
// sources and f2py signature (.pyf) files into the model.
//
// Only what the wrapper generator needs is understood: module structure,
// procedure headers and the declarations of dummy arguments and function
// results. Executable statements are skipped.
package fparser

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/migueldvb/fwrap/model"
)

var (
	reEnd       = regexp.MustCompile(`^end\s*(subroutine|function|module|submodule|interface|program|type|block\s*data|python\s*module)\b|^end$`)
	reModule    = regexp.MustCompile(`^module\s+([a-z_]\w*)$`)
	rePyModule  = regexp.MustCompile(`^python\s+module\s+([a-z_]\w*)`)
	reInterface = regexp.MustCompile(`^(abstract\s+)?interface\b`)
	reProgram   = regexp.MustCompile(`^(program|submodule|block\s*data)\b`)
	reTypeDef   = regexp.MustCompile(`^type\s*(,[^:]*)?::\s*[a-z_]\w*|^type\s+([a-z_]\w*)$`)
	reHeader    = regexp.MustCompile(`\b(subroutine|function)\s+([a-z_]\w*)`)
	reResult    = regexp.MustCompile(`\bresult\s*\(\s*([a-z_]\w*)\s*\)`)
	reIdent     = regexp.MustCompile(`^[a-z_]\w*`)
	rePrefix    = regexp.MustCompile(`^(pure|impure|elemental|recursive|non_recursive|module)\b`)
)

// Parser reads Fortran and pyf files. The zero value is ready to use.
type Parser struct{}

// New returns a Parser.
func New() *Parser { return &Parser{} }

// Parse reads every file and returns their procedures in file order.
func (p *Parser) Parse(paths []string) ([]*model.Procedure, error) {
	var out []*model.Procedure
	for _, path := range paths {
		procs, err := p.ParseFile(path)
		if err != nil {
			return nil, err
		}
		out = append(out, procs...)
	}
	return out, nil
}

// ParseFile reads one file.
func (p *Parser) ParseFile(path string) ([]*model.Procedure, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ParseSource(string(src), path)
}

// ParseSource parses source text. The name is recorded as the File of
// every procedure and used in error messages.
func ParseSource(src, name string) ([]*model.Procedure, error) {
	st := &parseState{file: name}
	for _, s := range statements(src) {
		if err := st.statement(s); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", name, s.line, err)
		}
	}
	if n := len(st.scopes); n > 0 {
		sc := st.scopes[n-1]
		return nil, fmt.Errorf("%s:%d: unterminated %s", name, sc.line, sc.kind)
	}
	return st.procs, nil
}

type scopeKind int

const (
	scopeModule scopeKind = iota
	scopePyModule
	scopeInterface // interface block of a python module; its procedures count
	scopeProc
	scopeSkip // contents ignored
)

func (k scopeKind) String() string {
	switch k {
	case scopeModule:
		return "module"
	case scopePyModule:
		return "python module"
	case scopeInterface:
		return "interface"
	case scopeProc:
		return "procedure"
	default:
		return "block"
	}
}

type scope struct {
	kind         scopeKind
	name         string
	line         int
	proc         *procState
	implicitNone bool // module scopes only
}

type parseState struct {
	file   string
	scopes []*scope
	procs  []*model.Procedure
}

func (st *parseState) top() *scope {
	if len(st.scopes) == 0 {
		return nil
	}
	return st.scopes[len(st.scopes)-1]
}

func (st *parseState) push(kind scopeKind, name string, line int) *scope {
	sc := &scope{kind: kind, name: name, line: line}
	st.scopes = append(st.scopes, sc)
	return sc
}

// module returns the innermost enclosing Fortran module.
func (st *parseState) module() *scope {
	for i := len(st.scopes) - 1; i >= 0; i-- {
		if st.scopes[i].kind == scopeModule {
			return st.scopes[i]
		}
	}
	return nil
}

// hasKeyword reports whether t starts with the keyword kw as a whole word.
func hasKeyword(t, kw string) bool {
	if !strings.HasPrefix(t, kw) {
		return false
	}
	if len(t) == len(kw) {
		return true
	}
	c := t[len(kw)]
	return !(c == '_' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9')
}

// opensScope reports whether t starts a block that needs a matching end.
func opensScope(t string) bool {
	if _, ok := parseHeader(t); ok {
		return true
	}
	if m := reModule.FindStringSubmatch(t); m != nil && m[1] != "procedure" {
		return true
	}
	return rePyModule.MatchString(t) || reInterface.MatchString(t) ||
		reProgram.MatchString(t) || isTypeDef(t)
}

func isTypeDef(t string) bool {
	m := reTypeDef.FindStringSubmatch(t)
	return m != nil && m[2] != "is"
}

func (st *parseState) statement(s stmt) error {
	t := s.text
	top := st.top()

	if reEnd.MatchString(t) {
		if top == nil {
			return fmt.Errorf("unexpected %q", t)
		}
		st.scopes = st.scopes[:len(st.scopes)-1]
		if top.kind == scopeProc {
			p, err := top.proc.finish()
			if err != nil {
				return err
			}
			st.procs = append(st.procs, p)
		}
		return nil
	}

	if top != nil && top.kind == scopeSkip {
		if opensScope(t) {
			st.push(scopeSkip, "", s.line)
		}
		return nil
	}
	if top != nil && top.kind == scopeProc && top.proc.contains {
		// Internal procedures are not visible from outside.
		if opensScope(t) {
			st.push(scopeSkip, "", s.line)
		}
		return nil
	}

	if m := rePyModule.FindStringSubmatch(t); m != nil {
		st.push(scopePyModule, m[1], s.line)
		return nil
	}
	if m := reModule.FindStringSubmatch(t); m != nil && m[1] != "procedure" {
		st.push(scopeModule, m[1], s.line)
		return nil
	}
	if reInterface.MatchString(t) {
		if top != nil && top.kind == scopePyModule {
			st.push(scopeInterface, "", s.line)
		} else {
			st.push(scopeSkip, "", s.line)
		}
		return nil
	}
	if reProgram.MatchString(t) || isTypeDef(t) {
		st.push(scopeSkip, "", s.line)
		return nil
	}
	if t == "contains" {
		if top != nil && top.kind == scopeProc {
			top.proc.contains = true
		}
		return nil
	}
	if top != nil && top.kind == scopeModule && hasKeyword(t, "implicit") {
		top.implicitNone = strings.ReplaceAll(t, " ", "") == "implicitnone"
		return nil
	}
	if h, ok := parseHeader(t); ok {
		if top != nil && top.kind == scopeProc {
			return fmt.Errorf("%s %s nested in %s without contains", h.kind, h.name, top.proc.name)
		}
		ps := newProcState(h, st.file)
		if mod := st.module(); mod != nil {
			ps.module, ps.implicitNone = mod.name, mod.implicitNone
		}
		st.push(scopeProc, h.name, s.line).proc = ps
		return nil
	}
	if top != nil && top.kind == scopeProc {
		return top.proc.declare(t)
	}
	return nil
}

// header is a parsed procedure statement.
type header struct {
	kind       model.ProcKind
	name       string
	args       []string
	result     string
	resultType *model.Type
}

func parseHeader(t string) (header, bool) {
	if strings.Contains(t, "::") {
		return header{}, false
	}
	loc := reHeader.FindStringSubmatchIndex(t)
	if loc == nil {
		return header{}, false
	}
	h := header{name: t[loc[4]:loc[5]]}
	if t[loc[2]:loc[3]] == "function" {
		h.kind = model.Function
	}

	prefix := strings.TrimSpace(t[:loc[0]])
	for prefix != "" {
		if m := rePrefix.FindString(prefix); m != "" {
			prefix = strings.TrimSpace(prefix[len(m):])
			continue
		}
		typ, rest, ok := parseTypeSpec(prefix)
		if !ok || h.resultType != nil || h.kind != model.Function {
			return header{}, false
		}
		h.resultType = &typ
		prefix = rest
	}

	rest := strings.TrimSpace(t[loc[1]:])
	if strings.HasPrefix(rest, "(") {
		end := matchParen(rest, 0)
		if end < 0 {
			return header{}, false
		}
		for _, a := range splitTopLevel(rest[1:end], ',') {
			if a = strings.TrimSpace(a); a != "" && a != "*" {
				h.args = append(h.args, a)
			}
		}
		rest = rest[end+1:]
	}
	if m := reResult.FindStringSubmatch(rest); m != nil {
		h.result = m[1]
	}
	return h, true
}

// decl accumulates what is declared about one dummy argument or result.
type decl struct {
	typ      model.Type
	typed    bool
	intent   model.Intent
	dims     []string
	external bool
}

type procState struct {
	name         string
	hdr          header
	module       string
	file         string
	decls        map[string]*decl
	implicitNone bool
	contains     bool
}

func newProcState(h header, file string) *procState {
	ps := &procState{name: h.name, hdr: h, file: file, decls: make(map[string]*decl)}
	for _, a := range h.args {
		ps.decls[a] = &decl{}
	}
	if h.kind == model.Function {
		ps.decls[ps.resultName()] = &decl{}
	}
	return ps
}

func (ps *procState) resultName() string {
	if ps.hdr.result != "" {
		return ps.hdr.result
	}
	return ps.hdr.name
}

type attr struct {
	name string
	arg  string
}

func parseAttrs(s string) []attr {
	var out []attr
	s = strings.TrimSpace(s)
	for {
		s = strings.TrimLeft(s, ", ")
		name := reIdent.FindString(s)
		if name == "" {
			return out
		}
		a := attr{name: name}
		s = strings.TrimLeft(s[len(name):], " ")
		if strings.HasPrefix(s, "(") {
			end := matchParen(s, 0)
			if end < 0 {
				return out
			}
			a.arg = s[1:end]
			s = s[end+1:]
		}
		out = append(out, a)
	}
}

func splitDims(s string) []string {
	var dims []string
	for _, d := range splitTopLevel(s, ',') {
		dims = append(dims, strings.ReplaceAll(strings.TrimSpace(d), " ", ""))
	}
	return dims
}

// parseIntent folds an intent list such as "in,out" or f2py's "in,hide"
// into a model.Intent. Unknown entries are ignored.
func parseIntent(s string) model.Intent {
	var in, out bool
	for _, item := range strings.Split(s, ",") {
		i, err := model.ParseIntent(item)
		if err != nil || strings.TrimSpace(item) == "" {
			continue
		}
		switch i {
		case model.IntentIn:
			in = true
		case model.IntentOut:
			out = true
		default:
			in, out = true, true
		}
	}
	if in && !out {
		return model.IntentIn
	}
	if out && !in {
		return model.IntentOut
	}
	return model.IntentInOut
}

// entity is one name in a declaration's entity list.
type entity struct {
	name string
	dims []string
	len  string
}

func parseEntities(s string) []entity {
	var out []entity
	for _, item := range splitTopLevel(s, ',') {
		item = strings.TrimSpace(item)
		name := reIdent.FindString(item)
		if name == "" {
			continue
		}
		e := entity{name: name}
		rest := strings.TrimSpace(item[len(name):])
		if strings.HasPrefix(rest, "(") {
			if end := matchParen(rest, 0); end > 0 {
				e.dims = splitDims(rest[1:end])
				rest = strings.TrimSpace(rest[end+1:])
			}
		}
		if sm := reStarLen.FindStringSubmatch(rest); sm != nil {
			e.len = strings.Trim(strings.TrimSpace(sm[1]), "() ")
		}
		out = append(out, e)
	}
	return out
}

// namesAfter returns the entity list of an attribute statement such as
// "intent(in) :: a, b" or "external f".
func namesAfter(s string) []entity {
	if i := strings.Index(s, "::"); i >= 0 {
		return parseEntities(s[i+2:])
	}
	return parseEntities(s)
}

func (ps *procState) declare(t string) error {
	switch {
	case hasKeyword(t, "implicit"):
		ps.implicitNone = strings.ReplaceAll(t, " ", "") == "implicitnone"
		return nil
	case hasKeyword(t, "external"):
		for _, e := range namesAfter(strings.TrimPrefix(t, "external")) {
			if d := ps.decls[e.name]; d != nil {
				d.external = true
			}
		}
		return nil
	case hasKeyword(t, "intent"):
		attrs := parseAttrs(t)
		if len(attrs) == 0 || attrs[0].name != "intent" {
			return nil
		}
		intent := parseIntent(attrs[0].arg)
		for _, e := range namesAfter(t) {
			if d := ps.decls[e.name]; d != nil {
				d.intent = intent
			}
		}
		return nil
	case hasKeyword(t, "dimension"):
		for _, e := range namesAfter(strings.TrimPrefix(t, "dimension")) {
			if d := ps.decls[e.name]; d != nil && e.dims != nil {
				d.dims = e.dims
			}
		}
		return nil
	}

	typ, rest, ok := parseTypeSpec(t)
	if !ok {
		return nil
	}
	attrPart, names := "", rest
	if i := strings.Index(rest, "::"); i >= 0 {
		attrPart, names = rest[:i], rest[i+2:]
	}

	var (
		intent    model.Intent
		hasIntent bool
		dims      []string
		external  bool
	)
	for _, a := range parseAttrs(attrPart) {
		switch a.name {
		case "parameter":
			return nil
		case "intent":
			intent, hasIntent = parseIntent(a.arg), true
		case "dimension":
			dims = splitDims(a.arg)
		case "external":
			external = true
		}
	}

	for _, e := range parseEntities(names) {
		d := ps.decls[e.name]
		if d == nil {
			continue
		}
		d.typ, d.typed = typ, true
		if e.len != "" && typ.Base == model.Character {
			d.typ.Len = e.len
		}
		if hasIntent {
			d.intent = intent
		}
		if e.dims != nil {
			d.dims = e.dims
		} else if dims != nil {
			d.dims = dims
		}
		d.external = d.external || external
	}
	return nil
}

// resolve builds the argument for a declared name, applying implicit
// typing when allowed.
func (ps *procState) resolve(name string, fallback *model.Type) (*model.Argument, error) {
	d := ps.decls[name]
	a := &model.Argument{Name: name, Intent: d.intent}
	switch {
	case d.external:
		a.Type = model.Type{Base: model.Derived, Name: "procedure"}
		return a, nil
	case d.typed:
		a.Type = d.typ
	case fallback != nil:
		a.Type = *fallback
	case ps.implicitNone:
		return nil, fmt.Errorf("%s: %s has no declared type", ps.name, name)
	default:
		a.Type = implicitType(name)
	}
	a.Type.Dims = d.dims
	return a, nil
}

func (ps *procState) finish() (*model.Procedure, error) {
	p := &model.Procedure{Name: ps.name, Proc: ps.hdr.kind, Module: ps.module, File: ps.file}
	for _, name := range ps.hdr.args {
		a, err := ps.resolve(name, nil)
		if err != nil {
			return nil, err
		}
		p.Args = append(p.Args, a)
	}
	if ps.hdr.kind == model.Function {
		r, err := ps.resolve(ps.resultName(), ps.hdr.resultType)
		if err != nil {
			return nil, err
		}
		r.Intent = model.IntentOut
		p.Return = r
	}
	return p, p.Validate()
}
