// Package graph defines the static task network searched by the graph
// planner: a tree of Root, Composite, Link and Operator nodes.
//
// Build a tree with the constructors and fluent modifiers, or load one from
// YAML, then call Finalize before planning with it:
//
//	root := graph.NewRoot("firefighter",
//		graph.Sequence("Extinguish",
//			graph.NewOperator("GoToFire", "goto-fire"),
//			graph.NewOperator("Spray", "spray").WithEffects(condition.SetValue("fireVisible", false)),
//		).When(condition.Expr("fireVisible == true")),
//		graph.NewOperator("Patrol", "wander"),
//	)
//	if err := graph.Finalize(root); err != nil { ... }
package graph

import (
	"fmt"

	"github.com/joeycumines/go-htn/internal/condition"
)

// Kind discriminates node behaviour during search.
type Kind int

const (
	KindRoot Kind = iota + 1
	KindComposite
	KindLink
	KindOperator
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindComposite:
		return "composite"
	case KindLink:
		return "link"
	case KindOperator:
		return "operator"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// DecompositionMode is how a composite combines its children.
type DecompositionMode int

const (
	// SelectOne (OR): the first child that succeeds wins. Root nodes always
	// decompose this way.
	SelectOne DecompositionMode = iota
	// SelectAll (AND): every enabled child must succeed, in order.
	SelectAll
)

func (m DecompositionMode) String() string {
	switch m {
	case SelectOne:
		return "select"
	case SelectAll:
		return "sequence"
	default:
		return fmt.Sprintf("DecompositionMode(%d)", int(m))
	}
}

// Node is one vertex of the task network. Index, Depth and Parent are
// derived by Finalize and must not be set by hand.
type Node struct {
	Name     string
	Kind     Kind
	Mode     DecompositionMode
	Children []*Node

	// Preconditions gate the node during search, and are revalidated,
	// together with every ancestor's, when its operator starts executing.
	Preconditions []condition.Precondition

	// Target is where a Link node redirects the search.
	Target *Node

	// Action names the action run by an Operator node, resolved through the
	// planner's action library. Empty means the operator cannot execute.
	Action string
	// Effects are simulated during search and applied for real when the
	// action succeeds.
	Effects []condition.Effect

	Enabled          bool
	NotInterruptable bool
	Breakpoint       bool
	DisplayName      string

	Index  int
	Depth  int
	Parent *Node
}

func newNode(name string, kind Kind, mode DecompositionMode, children []*Node) *Node {
	return &Node{
		Name:     name,
		Kind:     kind,
		Mode:     mode,
		Children: children,
		Enabled:  true,
	}
}

// NewRoot returns the root of a network. It decomposes as SelectOne.
func NewRoot(name string, children ...*Node) *Node {
	return newNode(name, KindRoot, SelectOne, children)
}

// Select returns a SelectOne composite.
func Select(name string, children ...*Node) *Node {
	return newNode(name, KindComposite, SelectOne, children)
}

// Sequence returns a SelectAll composite.
func Sequence(name string, children ...*Node) *Node {
	return newNode(name, KindComposite, SelectAll, children)
}

// NewLink returns a node redirecting the search to target, which must be
// part of the same tree.
func NewLink(name string, target *Node) *Node {
	n := newNode(name, KindLink, SelectOne, nil)
	n.Target = target
	return n
}

// NewOperator returns a primitive task running the named action.
func NewOperator(name, action string) *Node {
	n := newNode(name, KindOperator, SelectOne, nil)
	n.Action = action
	return n
}

// When appends preconditions.
func (n *Node) When(pre ...condition.Precondition) *Node {
	n.Preconditions = append(n.Preconditions, pre...)
	return n
}

// WithEffects appends effects.
func (n *Node) WithEffects(effects ...condition.Effect) *Node {
	n.Effects = append(n.Effects, effects...)
	return n
}

// Disabled excludes the node from search. Disabled children are skipped,
// not failed.
func (n *Node) Disabled() *Node {
	n.Enabled = false
	return n
}

// NonInterruptable marks an operator whose task, while executing, blocks
// replanning.
func (n *Node) NonInterruptable() *Node {
	n.NotInterruptable = true
	return n
}

// WithBreakpoint makes the operator's task report Breakpoint once, on its
// first tick.
func (n *Node) WithBreakpoint() *Node {
	n.Breakpoint = true
	return n
}

// Display sets a human-readable label.
func (n *Node) Display(name string) *Node {
	n.DisplayName = name
	return n
}

// Label returns DisplayName, or Name when unset.
func (n *Node) Label() string {
	if n.DisplayName != "" {
		return n.DisplayName
	}
	return n.Name
}

// IsChoicePoint reports whether the search picks one child here, recording
// the choice in the method traversal record.
func (n *Node) IsChoicePoint() bool {
	return n.Kind == KindRoot || (n.Kind == KindComposite && n.Mode == SelectOne)
}

func (n *Node) String() string {
	return fmt.Sprintf("%s(%s)", n.Kind, n.Label())
}
