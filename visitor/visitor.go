// Package visitor dispatches over model nodes by kind.
//
// Handlers are registered per model.Kind. A visit resolves the most
// specific handler by walking the kind's lineage (most to least specific)
// and caches the result in a table indexed by the kind tag, so every
// later visit of that kind is a single lookup.
//
// The access path to a node is an immutable value passed down the
// recursion; the engine keeps no per-visit state.
package visitor

import (
	"fmt"
	"strings"

	"github.com/migueldvb/fwrap/model"
)

// Step is one (parent, index) hop from the root to a node.
type Step struct {
	Parent model.Node
	Index  int
}

// Path is the sequence of steps taken to reach a node.
type Path []Step

// Push returns a new path extended by one step. The receiver is never
// modified, so sibling visits cannot observe each other's frames.
func (p Path) Push(parent model.Node, index int) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, Step{Parent: parent, Index: index})
}

func (p Path) String() string {
	if len(p) == 0 {
		return "<root>"
	}
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = fmt.Sprintf("%s[%d]", s.Parent.Kind(), s.Index)
	}
	return strings.Join(parts, " > ")
}

// NoHandlerError reports a node whose kind, and every ancestor kind, has
// no registered handler.
type NoHandlerError struct {
	Node model.Node
	Path Path
}

func (e *NoHandlerError) Error() string {
	return fmt.Sprintf("no handler for %s node (%T) at %s", e.Node.Kind(), e.Node, e.Path)
}

// Handler produces the result for one node.
type Handler[R any] func(n model.Node, path Path) (R, error)

// Visitor holds the handlers of one traversal.
type Visitor[R any] struct {
	handlers map[model.Kind]Handler[R]
	// resolved caches the lineage walk; a nil entry at index k means
	// "not resolved yet", misses are never cached.
	resolved []Handler[R]
}

// New returns a visitor with no handlers.
func New[R any]() *Visitor[R] {
	return &Visitor[R]{handlers: make(map[model.Kind]Handler[R])}
}

// Handle registers h for kind k and invalidates the resolution cache.
func (v *Visitor[R]) Handle(k model.Kind, h Handler[R]) *Visitor[R] {
	v.handlers[k] = h
	v.resolved = nil
	return v
}

func (v *Visitor[R]) lookup(k model.Kind) Handler[R] {
	if int(k) < len(v.resolved) && v.resolved[k] != nil {
		return v.resolved[k]
	}
	for _, anc := range k.Lineage() {
		if h, ok := v.handlers[anc]; ok {
			if int(k) >= len(v.resolved) {
				grown := make([]Handler[R], int(k)+1)
				copy(grown, v.resolved)
				v.resolved = grown
			}
			v.resolved[k] = h
			return h
		}
	}
	return nil
}

// Visit dispatches n to its most specific handler.
func (v *Visitor[R]) Visit(n model.Node, path Path) (R, error) {
	h := v.lookup(n.Kind())
	if h == nil {
		var zero R
		return zero, &NoHandlerError{Node: n, Path: path}
	}
	return h(n, path)
}

// VisitChildren visits every child of parent in order and returns their
// results. It returns nil, nil when parent has no content. The first
// error stops the traversal and is returned unchanged.
func (v *Visitor[R]) VisitChildren(parent model.Node, path Path) ([]R, error) {
	pu, ok := parent.(interface{ Content() []model.Node })
	if !ok {
		return nil, nil
	}
	children := pu.Content()
	out := make([]R, 0, len(children))
	for i, child := range children {
		r, err := v.Visit(child, path.Push(parent, i))
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
