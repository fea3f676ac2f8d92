// Package model is the intermediate representation shared by the parser,
// the code generators and the change tracker.
//
// Every node carries a small integer Kind tag. Kinds form a fixed nominal
// hierarchy (see Kind.Parent) which the visitor uses to fall back from a
// specific kind to a more general one when resolving handlers.
package model

// Kind identifies the concrete variant of a Node.
type Kind uint8

const (
	KindNode Kind = iota
	KindProgramUnit
	KindModule
	KindCollection
	KindProcedure
	KindSubroutine
	KindFunction
	KindArgument
	KindWrapper
	KindSubroutineWrapper
	KindFunctionWrapper

	// NumKinds is the number of kinds known to the model. Kinds at or
	// above it are treated as direct children of KindNode.
	NumKinds
)

var kindParents = [NumKinds]Kind{
	KindNode:              KindNode,
	KindProgramUnit:       KindNode,
	KindModule:            KindProgramUnit,
	KindCollection:        KindProgramUnit,
	KindProcedure:         KindNode,
	KindSubroutine:        KindProcedure,
	KindFunction:          KindProcedure,
	KindArgument:          KindNode,
	KindWrapper:           KindNode,
	KindSubroutineWrapper: KindWrapper,
	KindFunctionWrapper:   KindWrapper,
}

var kindNames = [NumKinds]string{
	KindNode:              "node",
	KindProgramUnit:       "program unit",
	KindModule:            "module",
	KindCollection:        "collection",
	KindProcedure:         "procedure",
	KindSubroutine:        "subroutine",
	KindFunction:          "function",
	KindArgument:          "argument",
	KindWrapper:           "wrapper",
	KindSubroutineWrapper: "subroutine wrapper",
	KindFunctionWrapper:   "function wrapper",
}

// Parent returns the next less specific kind. The root, KindNode, is its
// own parent.
func (k Kind) Parent() Kind {
	if k >= NumKinds {
		return KindNode
	}
	return kindParents[k]
}

// Lineage returns k followed by all of its ancestors, ending in KindNode.
func (k Kind) Lineage() []Kind {
	out := []Kind{k}
	for k != KindNode {
		k = k.Parent()
		out = append(out, k)
	}
	return out
}

func (k Kind) String() string {
	if k >= NumKinds {
		return "unknown"
	}
	return kindNames[k]
}

// Node is anything the visitor can dispatch on.
type Node interface {
	Kind() Kind
}

// ProgramUnit is a node with ordered children.
type ProgramUnit interface {
	Node
	Content() []Node
}

// Module is a named Fortran module.
type Module struct {
	Name  string
	Nodes []Node
}

func (m *Module) Kind() Kind      { return KindModule }
func (m *Module) Content() []Node { return m.Nodes }

// Collection is an unnamed, ordered group of procedures or wrappers.
type Collection struct {
	Nodes []Node
}

func (c *Collection) Kind() Kind      { return KindCollection }
func (c *Collection) Content() []Node { return c.Nodes }

// NewCollection wraps a list of wrappers in a Collection.
func NewCollection(wrappers []*Wrapper) *Collection {
	nodes := make([]Node, len(wrappers))
	for i, w := range wrappers {
		nodes[i] = w
	}
	return &Collection{Nodes: nodes}
}
