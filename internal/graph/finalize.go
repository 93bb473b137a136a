package graph

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
)

// ErrInvalidGraph is returned when a tree violates a structural rule.
var ErrInvalidGraph = errors.New("graph: invalid graph")

// Finalize assigns Index, Depth and Parent to every node reachable through
// Children, then validates the tree:
//   - the root is a Root node
//   - Root and Composite nodes have children
//   - Link and Operator nodes have none
//   - every Link has a Target inside the tree
//   - no node appears twice
//
// Finalize may be called again after the tree is edited.
func Finalize(root *Node) error {
	if root == nil {
		return fmt.Errorf("%w: nil root", ErrInvalidGraph)
	}
	if root.Kind != KindRoot {
		return fmt.Errorf("%w: %s is not a root", ErrInvalidGraph, root)
	}
	root.Parent = nil
	root.Index = 0
	root.Depth = 0

	seen := make(map[*Node]bool)
	var links []*Node
	var errs []error
	var visit func(n *Node)
	visit = func(n *Node) {
		if seen[n] {
			errs = append(errs, fmt.Errorf("%w: %s appears more than once", ErrInvalidGraph, n))
			return
		}
		seen[n] = true

		switch n.Kind {
		case KindRoot:
			if n != root {
				errs = append(errs, fmt.Errorf("%w: nested root %s", ErrInvalidGraph, n))
			}
			fallthrough
		case KindComposite:
			if len(n.Children) == 0 {
				errs = append(errs, fmt.Errorf("%w: %s has no children", ErrInvalidGraph, n))
			}
		case KindLink:
			links = append(links, n)
			fallthrough
		case KindOperator:
			if len(n.Children) != 0 {
				errs = append(errs, fmt.Errorf("%w: %s cannot have children", ErrInvalidGraph, n))
				return
			}
		default:
			errs = append(errs, fmt.Errorf("%w: %q has unknown %s", ErrInvalidGraph, n.Name, n.Kind))
			return
		}

		for i, child := range n.Children {
			if child == nil {
				errs = append(errs, fmt.Errorf("%w: %s has a nil child at %d", ErrInvalidGraph, n, i))
				continue
			}
			child.Parent = n
			child.Index = i
			child.Depth = n.Depth + 1
			visit(child)
		}
	}
	visit(root)

	for _, link := range links {
		switch {
		case link.Target == nil:
			errs = append(errs, fmt.Errorf("%w: %s has no target", ErrInvalidGraph, link))
		case !seen[link.Target]:
			errs = append(errs, fmt.Errorf("%w: %s targets %s outside the tree", ErrInvalidGraph, link, link.Target))
		}
	}
	return errors.Join(errs...)
}

// Walk visits n and its descendants in depth-first pre-order, stopping when
// fn returns false. Link targets are not followed.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, child := range n.Children {
		if child != nil && !child.Walk(fn) {
			return false
		}
	}
	return true
}

// Find returns the first node named name, in pre-order, or nil.
func (n *Node) Find(name string) *Node {
	var found *Node
	n.Walk(func(c *Node) bool {
		if c.Name == name {
			found = c
			return false
		}
		return true
	})
	return found
}

// Path returns the chain of nodes from the root down to n, inclusive.
func Path(n *Node) []*Node {
	var path []*Node
	for c := n; c != nil; c = c.Parent {
		path = append(path, c)
	}
	slices.Reverse(path)
	return path
}

// Fprint writes an indented rendering of the finalized tree, one node per
// line with its index and depth.
func Fprint(w io.Writer, root *Node) error {
	var b strings.Builder
	root.Walk(func(n *Node) bool {
		b.WriteString(strings.Repeat("  ", n.Depth))
		fmt.Fprintf(&b, "[%d] %s", n.Index, n.Label())
		switch n.Kind {
		case KindRoot, KindComposite:
			fmt.Fprintf(&b, " <%s>", n.Mode)
		case KindLink:
			if n.Target != nil {
				fmt.Fprintf(&b, " -> %s", n.Target.Label())
			}
		case KindOperator:
			fmt.Fprintf(&b, " !%s", n.Action)
		}
		fmt.Fprintf(&b, " depth=%d", n.Depth)
		if len(n.Preconditions) != 0 {
			parts := make([]string, len(n.Preconditions))
			for i, p := range n.Preconditions {
				parts[i] = p.String()
			}
			fmt.Fprintf(&b, " when=[%s]", strings.Join(parts, "; "))
		}
		if len(n.Effects) != 0 {
			parts := make([]string, len(n.Effects))
			for i, e := range n.Effects {
				parts[i] = e.String()
			}
			fmt.Fprintf(&b, " effects=[%s]", strings.Join(parts, "; "))
		}
		if !n.Enabled {
			b.WriteString(" (disabled)")
		}
		if n.NotInterruptable {
			b.WriteString(" (not interruptable)")
		}
		if n.Breakpoint {
			b.WriteString(" (breakpoint)")
		}
		b.WriteByte('\n')
		return true
	})
	_, err := io.WriteString(w, b.String())
	return err
}
